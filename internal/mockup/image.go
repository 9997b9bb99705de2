package mockup

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
)

// ImagePart is an uploaded or generated image held as base64 with its MIME type.
type ImagePart struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}

func NewImagePart(raw []byte, mimeType string) ImagePart {
	return ImagePart{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MimeType: normalizeMime(mimeType, raw),
	}
}

func (p ImagePart) IsZero() bool {
	return p.Data == ""
}

func (p ImagePart) Bytes() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return raw, nil
}

// PNG returns the image re-encoded as PNG. PNG input is returned as is.
func (p ImagePart) PNG() ([]byte, error) {
	raw, err := p.Bytes()
	if err != nil {
		return nil, err
	}
	if p.MimeType == "image/png" {
		return raw, nil
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", p.MimeType, err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeUpload reads an uploaded file into an ImagePart. When maxDim is
// positive, images whose long edge exceeds it are scaled down to fit.
// Formats the decoder does not know are kept untouched.
func DecodeUpload(r io.Reader, declaredMime string, maxDim int) (ImagePart, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return ImagePart{}, fmt.Errorf("read upload: %w", err)
	}
	if len(raw) == 0 {
		return ImagePart{}, ErrEmptyUpload
	}

	mimeType := normalizeMime(declaredMime, raw)
	if !strings.HasPrefix(mimeType, "image/") {
		return ImagePart{}, fmt.Errorf("%w: %s", ErrNotImage, mimeType)
	}

	if maxDim > 0 {
		if resized, resizedMime, ok := fitWithin(raw, mimeType, maxDim); ok {
			raw, mimeType = resized, resizedMime
		}
	}

	return ImagePart{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MimeType: mimeType,
	}, nil
}

func fitWithin(raw []byte, mimeType string, maxDim int) ([]byte, string, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil || (cfg.Width <= maxDim && cfg.Height <= maxDim) {
		return nil, "", false
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", false
	}
	img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	format, outMime := imaging.JPEG, "image/jpeg"
	if mimeType == "image/png" {
		format, outMime = imaging.PNG, "image/png"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(90)); err != nil {
		return nil, "", false
	}
	return buf.Bytes(), outMime, true
}

func normalizeMime(declared string, raw []byte) string {
	mimeType := stripParams(declared)
	if (mimeType == "" || mimeType == "application/octet-stream") && len(raw) > 0 {
		mimeType = stripParams(http.DetectContentType(raw))
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "image/jpeg"
	}
	return mimeType
}

func stripParams(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return strings.ToLower(mimeType)
}
