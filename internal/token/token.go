// Package token manages the daily QR token lifecycle: one token per
// calendar date, issued only for today or tomorrow, deleted to regenerate.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"campusattend/internal/apperr"
)

// Prefix identifies a daily attendance token. The full format
// DAILY_<date>_<hex> is a stable external contract embedded in printed QR
// images; do not change it.
const Prefix = "DAILY"

const randomBytes = 16

// DailyToken is the single QR-encoded secret valid for one calendar date.
type DailyToken struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	QRToken   string    `json:"qr_token"`
	IsActive  bool      `json:"is_active"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Errors surfaced by the service.
var (
	ErrDateOutOfRange = apperr.New(apperr.Validation, "QR code date must be today or tomorrow")
	ErrAlreadyExists  = apperr.New(apperr.Conflict, "QR code already exists for this date")
	ErrNotFound       = apperr.New(apperr.NotFound, "No QR code found for this date")
	ErrInvalidToken   = apperr.New(apperr.Validation, "Invalid or expired QR code")
	ErrNotValidToday  = apperr.New(apperr.Validation, "QR code is not valid for today or tomorrow")
	ErrDateRequired   = apperr.New(apperr.Validation, "Date is required")
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// newValue builds the opaque token string: prefix, date, and 16 bytes of
// entropy. Tomorrow's token cannot be forged from today's.
func newValue(date string) (string, error) {
	buf := make([]byte, randomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token entropy: %w", err)
	}
	return fmt.Sprintf("%s_%s_%s", Prefix, date, hex.EncodeToString(buf)), nil
}
