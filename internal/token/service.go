package token

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"campusattend/internal/apperr"
	"campusattend/internal/clock"
)

// Cache is the optional read-through cache for today's token. A nil Cache
// disables caching.
type Cache interface {
	CacheToken(ctx context.Context, date string, payload []byte, ttl time.Duration) error
	CachedToken(ctx context.Context, date string) []byte
	InvalidateToken(ctx context.Context, date string)
}

// Service owns the daily-token state machine.
type Service struct {
	repo     Repository
	clock    *clock.Clock
	cache    Cache
	cacheTTL time.Duration
}

// NewService creates a token service. cache may be nil.
func NewService(repo Repository, clk *clock.Clock, cache Cache, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Service{repo: repo, clock: clk, cache: cache, cacheTTL: cacheTTL}
}

// Issue creates the token for a date. forTomorrow overrides date with
// tomorrow's; an empty date means today. The date must be today or
// tomorrow, and no row may already exist for it, active or not;
// regeneration requires an explicit delete first.
func (s *Service) Issue(ctx context.Context, date string, forTomorrow bool, createdBy string) (DailyToken, error) {
	switch {
	case forTomorrow:
		date = s.clock.NextDate()
	case date == "":
		date = s.clock.CurrentDate()
	case !dateRe.MatchString(date):
		return DailyToken{}, ErrDateRequired
	}
	if !s.clock.IsTodayOrTomorrow(date) {
		return DailyToken{}, ErrDateOutOfRange
	}

	value, err := newValue(date)
	if err != nil {
		return DailyToken{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	if createdBy == "" {
		createdBy = "admin"
	}
	tok := DailyToken{
		ID:        uuid.NewString(),
		Date:      date,
		QRToken:   value,
		IsActive:  true,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, tok); err != nil {
		if IsUniqueViolation(err) {
			return DailyToken{}, ErrAlreadyExists
		}
		return DailyToken{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	s.invalidate(ctx, date)
	return tok, nil
}

// Delete removes the token for a date and returns the deleted record.
func (s *Service) Delete(ctx context.Context, date string) (DailyToken, error) {
	if !dateRe.MatchString(date) {
		return DailyToken{}, ErrDateRequired
	}
	tok, err := s.repo.DeleteByDate(ctx, date)
	if err != nil {
		return DailyToken{}, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	if tok == nil {
		return DailyToken{}, ErrNotFound
	}
	s.invalidate(ctx, date)
	return *tok, nil
}

// Today returns today's active token, or nil when none has been issued.
// Reads go through the cache when one is configured.
func (s *Service) Today(ctx context.Context) (*DailyToken, error) {
	date := s.clock.CurrentDate()
	if s.cache != nil {
		if payload := s.cache.CachedToken(ctx, date); payload != nil {
			var tok DailyToken
			if err := json.Unmarshal(payload, &tok); err == nil {
				return &tok, nil
			}
		}
	}
	tok, err := s.repo.FindActiveByDate(ctx, date)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	if tok != nil && s.cache != nil {
		if payload, err := json.Marshal(tok); err == nil {
			if err := s.cache.CacheToken(ctx, date, payload, s.cacheTTL); err != nil {
				log.Printf("token cache write failed: %v", err)
			}
		}
	}
	return tok, nil
}

// ByDate returns the token for a date regardless of active flag, or nil.
func (s *Service) ByDate(ctx context.Context, date string) (*DailyToken, error) {
	tok, err := s.repo.FindByDate(ctx, date)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	return tok, nil
}

// ListRecent returns the newest tokens for the admin screen.
func (s *Service) ListRecent(ctx context.Context) ([]DailyToken, error) {
	toks, err := s.repo.ListRecent(ctx, 30)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	return toks, nil
}

// Validate resolves a scanned token value and checks its validity window:
// the token must exist, be active, and carry today's or tomorrow's date.
// Pre-issued tomorrow tokens pass so night-shift scans work before
// midnight rollover.
func (s *Service) Validate(ctx context.Context, value string) (*DailyToken, error) {
	tok, err := s.repo.FindActiveByValue(ctx, value)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	if tok == nil {
		return nil, ErrInvalidToken
	}
	if !s.clock.IsTodayOrTomorrow(tok.Date) {
		return nil, ErrNotValidToday
	}
	return tok, nil
}

func (s *Service) invalidate(ctx context.Context, date string) {
	if s.cache != nil {
		s.cache.InvalidateToken(ctx, date)
	}
}
