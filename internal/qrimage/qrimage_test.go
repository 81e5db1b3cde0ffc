package qrimage

import (
	"bytes"
	"testing"

	"campusattend/internal/apperr"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestPNG(t *testing.T) {
	data, err := PNG("DAILY_2024-06-01_abcdef0123456789abcdef0123456789", 0)
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Errorf("output does not start with PNG magic: % x", data[:4])
	}
}

func TestPNGEmptyValue(t *testing.T) {
	_, err := PNG("", DefaultSize)
	if err == nil {
		t.Fatal("expected error for empty value")
	}
	if apperr.KindOf(err) != apperr.Validation {
		t.Errorf("kind = %v, want Validation", apperr.KindOf(err))
	}
}
