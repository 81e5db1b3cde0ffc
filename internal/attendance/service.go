package attendance

import (
	"context"
	"fmt"
	"strings"

	"campusattend/internal/apperr"
	"campusattend/internal/clock"
	"campusattend/internal/token"
)

// TokenValidator gates scans on the daily token. It is the only difference
// between the QR path and the direct path.
type TokenValidator interface {
	Validate(ctx context.Context, value string) (*token.DailyToken, error)
}

// Service derives sign-in/sign-out state and records events.
type Service struct {
	repo        Repository
	clock       *clock.Clock
	tokens      TokenValidator
	allowDirect bool
}

// NewService creates an attendance service.
func NewService(repo Repository, clk *clock.Clock, tokens TokenValidator, allowDirect bool) *Service {
	return &Service{repo: repo, clock: clk, tokens: tokens, allowDirect: allowDirect}
}

// RegisterOrLogin resolves a student profile, creating the row on first
// login. The display name is split into first/last; email and department
// get campus defaults.
func (s *Service) RegisterOrLogin(ctx context.Context, studentID, name string) (Student, error) {
	studentID = strings.TrimSpace(studentID)
	name = strings.TrimSpace(name)
	if studentID == "" || name == "" {
		return Student{}, ErrMissingFields
	}

	existing, err := s.repo.FindStudent(ctx, studentID)
	if err != nil {
		return Student{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	if existing != nil {
		return *existing, nil
	}

	parts := strings.Fields(name)
	first, last := "Unknown", "Student"
	if len(parts) > 0 {
		first = parts[0]
	}
	if len(parts) > 1 {
		last = strings.Join(parts[1:], " ")
	}
	st := Student{
		StudentID:  studentID,
		FirstName:  first,
		LastName:   last,
		Email:      strings.ReplaceAll(strings.ToLower(studentID), "-", ".") + "@university.edu",
		Department: "General Studies",
		IsActive:   true,
	}
	if err := s.repo.CreateStudent(ctx, st); err != nil {
		if IsUniqueViolation(err) {
			// Concurrent first login won the insert; return its row.
			winner, ferr := s.repo.FindStudent(ctx, studentID)
			if ferr == nil && winner != nil {
				return *winner, nil
			}
		}
		return Student{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	return st, nil
}

// Scan records a QR-gated attendance event: resolve the student, validate
// the scanned token, then run the shared derivation.
func (s *Service) Scan(ctx context.Context, studentID, tokenValue string) (ScanResult, error) {
	if strings.TrimSpace(studentID) == "" || strings.TrimSpace(tokenValue) == "" {
		return ScanResult{}, ErrMissingScanInput
	}
	st, err := s.activeStudent(ctx, studentID)
	if err != nil {
		return ScanResult{}, err
	}
	tok, err := s.tokens.Validate(ctx, tokenValue)
	if err != nil {
		return ScanResult{}, err
	}
	return s.record(ctx, st, tok.QRToken)
}

// Direct records an event without a token gate, when the deployment allows
// it. Direction derivation and the daily cap are identical to Scan.
func (s *Service) Direct(ctx context.Context, studentID string) (ScanResult, error) {
	if !s.allowDirect {
		return ScanResult{}, ErrDirectDisabled
	}
	if strings.TrimSpace(studentID) == "" {
		return ScanResult{}, ErrMissingFields
	}
	st, err := s.activeStudent(ctx, studentID)
	if err != nil {
		return ScanResult{}, err
	}
	return s.record(ctx, st, "")
}

func (s *Service) activeStudent(ctx context.Context, studentID string) (*Student, error) {
	st, err := s.repo.FindActiveStudent(ctx, studentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	if st == nil {
		return nil, ErrStudentNotFound
	}
	return st, nil
}

// record is the shared derivation: count today's events, derive the
// direction positionally, insert, and report remaining scans. A lost race
// on the (student, date, type) index re-derives once from a fresh count.
func (s *Service) record(ctx context.Context, st *Student, qrToken string) (ScanResult, error) {
	date := s.clock.CurrentDate()
	for attempt := 0; attempt < 2; attempt++ {
		events, err := s.repo.EventsForDay(ctx, st.StudentID, date)
		if err != nil {
			return ScanResult{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
		}
		if len(events) >= MaxScansPerDay {
			return ScanResult{}, ErrDailyLimit
		}
		direction := DirectionIn
		if len(events) == 1 {
			direction = DirectionOut
		}

		evt := Event{
			StudentID: st.StudentID,
			Date:      date,
			Time:      s.clock.CurrentTime(),
			Type:      direction,
			QRToken:   qrToken,
		}
		inserted, err := s.repo.InsertEvent(ctx, evt)
		if err != nil {
			if IsUniqueViolation(err) && attempt == 0 {
				continue
			}
			if IsUniqueViolation(err) {
				return ScanResult{}, ErrDailyLimit
			}
			return ScanResult{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
		}

		verb, remaining := "signed in", 1
		if direction == DirectionOut {
			verb, remaining = "signed out", 0
		}
		inserted.StudentName = st.FullName()
		return ScanResult{
			Message:        fmt.Sprintf("Successfully %s at %s", verb, inserted.Time),
			Type:           direction,
			StudentName:    st.FullName(),
			RemainingScans: remaining,
			Record:         inserted,
		}, nil
	}
	return ScanResult{}, ErrDailyLimit
}

// ListAll returns every event with student names, newest first.
func (s *Service) ListAll(ctx context.Context) ([]Event, error) {
	events, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	return events, nil
}

// ListByStudent returns a student's newest events, capped at 50.
func (s *Service) ListByStudent(ctx context.Context, studentID string) ([]Event, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, apperr.New(apperr.Validation, "Student ID is required")
	}
	events, err := s.repo.ListByStudent(ctx, studentID, 50)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	return events, nil
}

// ClearAll wipes tokens, events and students and reports per-type counts.
func (s *Service) ClearAll(ctx context.Context) (ClearResult, error) {
	res, err := s.repo.ClearAll(ctx)
	if err != nil {
		return ClearResult{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	return res, nil
}
