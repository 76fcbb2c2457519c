// Package scan renders scannable QR images for tag resolution URLs.
package scan

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// ContentTypePNG is the media type of encoded images.
const ContentTypePNG = "image/png"

// Image size bounds in pixels.
const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 2048
)

// ErrEmptyContent is returned when there is nothing to encode.
var ErrEmptyContent = errors.New("scan: empty content")

// Encoder produces PNG QR codes.
type Encoder struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewEncoder creates an encoder emitting size x size images.
// Out of range sizes fall back to DefaultSize.
func NewEncoder(size int) *Encoder {
	if size < MinSize || size > MaxSize {
		size = DefaultSize
	}
	return &Encoder{size: size, level: qrcode.Medium}
}

// Size returns the image edge length in pixels.
func (e *Encoder) Size() int {
	return e.size
}

// EncodePNG encodes content as a PNG QR code.
func (e *Encoder) EncodePNG(content string) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}

	png, err := qrcode.Encode(content, e.level, e.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	return png, nil
}

// ResolutionURL returns the absolute URL that resolves tagID.
func ResolutionURL(baseURL, tagID string) string {
	return strings.TrimRight(baseURL, "/") + "/redirect/" + url.PathEscape(tagID)
}
