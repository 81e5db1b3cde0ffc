// Package qrimage renders daily tokens as QR code PNGs.
package qrimage

import (
	"campusattend/internal/apperr"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the square pixel size of generated images.
const DefaultSize = 256

// PNG encodes value as a QR code PNG of the given size. A size of zero
// or less falls back to DefaultSize.
func PNG(value string, size int) ([]byte, error) {
	if value == "" {
		return nil, apperr.New(apperr.Validation, "QR value cannot be empty")
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(value, qrcode.Medium, size)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	return png, nil
}
