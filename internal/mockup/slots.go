package mockup

import (
	"fmt"
	"strings"
	"sync"
)

type SlotID string

const (
	SlotFlatlay SlotID = "flatlay"
	SlotModel1  SlotID = "model1"
	SlotModel2  SlotID = "model2"
	SlotModel3  SlotID = "model3"
	SlotModel4  SlotID = "model4"
)

// ResultSlots lists every result slot in display order.
var ResultSlots = []SlotID{SlotFlatlay, SlotModel1, SlotModel2, SlotModel3, SlotModel4}

var ModelSlots = []SlotID{SlotModel1, SlotModel2, SlotModel3, SlotModel4}

func ParseSlot(value string) (SlotID, error) {
	id := SlotID(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range ResultSlots {
		if s == id {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSlot, value)
}

func (id SlotID) IsModel() bool {
	return id != SlotFlatlay && id != ""
}

func (id SlotID) FileName() string {
	return "mockup-" + string(id) + ".png"
}

type SlotState string

const (
	StateIdle    SlotState = "idle"
	StateLoading SlotState = "loading"
	StateSuccess SlotState = "success"
	StateError   SlotState = "error"
)

type VideoState string

const (
	VideoNone    VideoState = "none"
	VideoPending VideoState = "pending"
	VideoReady   VideoState = "ready"
	VideoFailed  VideoState = "failed"
)

const (
	MessageGenerateFailed = "Oops! Gagal generate. Coba lagi dengan gambar lain"
	MessageFlatlaySkipped = "Flat lay tidak tersedia untuk unggahan outfit lengkap."
	MessageNoImages       = "Silakan unggah setidaknya satu gambar produk atau satu outfit lengkap."
	VideoWaitingText      = "Menunggu hasil gambar model..."
	VideoFailedText       = "Gagal membuat prompt video."
)

type VideoPrompt struct {
	State VideoState `json:"state"`
	Text  string     `json:"text"`
}

type Slot struct {
	ID      SlotID      `json:"id"`
	State   SlotState   `json:"state"`
	Skipped bool        `json:"skipped"`
	Message string      `json:"message,omitempty"`
	Epoch   uint64      `json:"epoch"`
	Video   VideoPrompt `json:"video"`
	Image   ImagePart   `json:"-"`
}

func (s Slot) HasImage() bool {
	return s.State == StateSuccess && !s.Image.IsZero()
}

// Snapshot is a copy of the tracker state.
type Snapshot struct {
	Slots         []Slot `json:"slots"`
	Status        string `json:"status"`
	DownloadReady bool   `json:"download_ready"`
}

// Tracker owns the per-slot results. Every Begin hands out a fresh epoch and
// results carrying an older epoch are dropped.
type Tracker struct {
	mu       sync.Mutex
	slots    map[SlotID]*Slot
	status   string
	epoch    uint64
	onChange func()
}

func NewTracker() *Tracker {
	t := &Tracker{slots: make(map[SlotID]*Slot, len(ResultSlots))}
	t.resetLocked()
	return t
}

// OnChange registers fn to run after every state change, outside the lock.
func (t *Tracker) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Tracker) Reset() {
	t.update(func() bool {
		t.resetLocked()
		return true
	})
}

func (t *Tracker) resetLocked() {
	for _, id := range ResultSlots {
		t.epoch++
		s := &Slot{ID: id, State: StateIdle, Epoch: t.epoch, Video: VideoPrompt{State: VideoNone}}
		if id.IsModel() {
			s.Video.Text = VideoWaitingText
		}
		t.slots[id] = s
	}
	t.status = ""
}

// Begin moves a slot to loading and returns the epoch its result must carry.
func (t *Tracker) Begin(id SlotID) uint64 {
	var epoch uint64
	t.update(func() bool {
		t.epoch++
		epoch = t.epoch
		s := &Slot{ID: id, State: StateLoading, Epoch: epoch, Video: VideoPrompt{State: VideoNone}}
		if id.IsModel() {
			s.Video = VideoPrompt{State: VideoPending, Text: VideoWaitingText}
		}
		t.slots[id] = s
		return true
	})
	return epoch
}

// Succeed stores img unless the slot was restarted since epoch was issued.
func (t *Tracker) Succeed(id SlotID, epoch uint64, img ImagePart) bool {
	return t.update(func() bool {
		s, ok := t.current(id, epoch)
		if !ok {
			return false
		}
		s.State = StateSuccess
		s.Image = img
		s.Message = ""
		return true
	})
}

func (t *Tracker) Fail(id SlotID, epoch uint64, message string) bool {
	return t.update(func() bool {
		s, ok := t.current(id, epoch)
		if !ok {
			return false
		}
		s.State = StateError
		s.Image = ImagePart{}
		s.Message = message
		if id.IsModel() {
			s.Video = VideoPrompt{State: VideoNone, Text: VideoWaitingText}
		}
		return true
	})
}

// MarkSkipped resolves a slot as a successful no-op.
func (t *Tracker) MarkSkipped(id SlotID) uint64 {
	var epoch uint64
	t.update(func() bool {
		t.epoch++
		epoch = t.epoch
		t.slots[id] = &Slot{
			ID:      id,
			State:   StateSuccess,
			Skipped: true,
			Message: MessageFlatlaySkipped,
			Epoch:   epoch,
			Video:   VideoPrompt{State: VideoNone},
		}
		return true
	})
	return epoch
}

func (t *Tracker) SetVideoPrompt(id SlotID, epoch uint64, vp VideoPrompt) bool {
	return t.update(func() bool {
		s, ok := t.current(id, epoch)
		if !ok || s.State != StateSuccess {
			return false
		}
		s.Video = vp
		return true
	})
}

func (t *Tracker) SetStatus(msg string) {
	t.update(func() bool {
		if t.status == msg {
			return false
		}
		t.status = msg
		return true
	})
}

func (t *Tracker) Slot(id SlotID) (Slot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[id]
	if !ok {
		return Slot{}, false
	}
	return *s, true
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := Snapshot{
		Slots:         make([]Slot, 0, len(ResultSlots)),
		Status:        t.status,
		DownloadReady: t.readyLocked(),
	}
	for _, id := range ResultSlots {
		out.Slots = append(out.Slots, *t.slots[id])
	}
	return out
}

// DownloadReady reports whether all five slots reached success.
func (t *Tracker) DownloadReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readyLocked()
}

func (t *Tracker) readyLocked() bool {
	for _, id := range ResultSlots {
		if t.slots[id].State != StateSuccess {
			return false
		}
	}
	return true
}

func (t *Tracker) current(id SlotID, epoch uint64) (*Slot, bool) {
	s, ok := t.slots[id]
	if !ok || s.Epoch != epoch {
		return nil, false
	}
	return s, true
}

func (t *Tracker) update(fn func() bool) bool {
	t.mu.Lock()
	changed := fn()
	onChange := t.onChange
	t.mu.Unlock()

	if changed && onChange != nil {
		onChange()
	}
	return changed
}
