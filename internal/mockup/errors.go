package mockup

import "errors"

var (
	ErrNoImages        = errors.New("no product or full outfit image uploaded")
	ErrBusy            = errors.New("generation already in progress")
	ErrNoImageData     = errors.New("no image data in response")
	ErrUnknownSlot     = errors.New("unknown result slot")
	ErrNotGenerated    = errors.New("nothing generated yet")
	ErrSlotUnavailable = errors.New("upload mode unavailable")
	ErrSlotIndex       = errors.New("slot index out of range")
	ErrEmptyUpload     = errors.New("empty upload")
	ErrNotImage        = errors.New("upload is not an image")
)
