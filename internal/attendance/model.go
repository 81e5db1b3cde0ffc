// Package attendance records sign-in/sign-out events and derives their
// direction. One algorithm serves both the QR-gated and the direct path;
// the daily token check is an optional gate in front of it.
package attendance

import (
	"time"

	"campusattend/internal/apperr"
)

// Directions of an attendance event. The direction is derived
// positionally: first event of the day is in, second is out.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// MaxScansPerDay caps events per student per calendar date.
const MaxScansPerDay = 2

// Student is a campus member identified by an externally supplied id.
// Created lazily on first login.
type Student struct {
	StudentID  string    `json:"student_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// FullName joins first and last name for display.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// Event is one recorded sign-in or sign-out.
type Event struct {
	ID          int64     `json:"id"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name,omitempty"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Type        string    `json:"type"`
	QRToken     string    `json:"qr_token,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ScanResult is the outcome of a successful sign-in/out.
type ScanResult struct {
	Message        string `json:"message"`
	Type           string `json:"type"`
	StudentName    string `json:"student_name"`
	RemainingScans int    `json:"remaining_scans"`
	Record         Event  `json:"record"`
}

// ClearResult reports rows removed by the administrative wipe.
type ClearResult struct {
	Tokens   int64 `json:"qr_codes_deleted"`
	Events   int64 `json:"attendance_deleted"`
	Students int64 `json:"students_deleted"`
}

// Total returns the number of rows removed across all entity types.
func (c ClearResult) Total() int64 {
	return c.Tokens + c.Events + c.Students
}

// Errors surfaced by the service.
var (
	ErrStudentNotFound  = apperr.New(apperr.NotFound, "Student not found")
	ErrDailyLimit       = apperr.New(apperr.Conflict, "You have already signed in and out today. Maximum 2 scans per day allowed.")
	ErrMissingFields    = apperr.New(apperr.Validation, "Student ID and Name are required")
	ErrMissingScanInput = apperr.New(apperr.Validation, "Student ID and QR token are required")
	ErrDirectDisabled   = apperr.New(apperr.Validation, "Direct sign-in/out is disabled; scan the daily QR code")
)
