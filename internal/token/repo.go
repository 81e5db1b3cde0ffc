package token

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists daily tokens.
type Repository interface {
	Insert(ctx context.Context, tok DailyToken) error
	FindByDate(ctx context.Context, date string) (*DailyToken, error)
	FindActiveByDate(ctx context.Context, date string) (*DailyToken, error)
	FindActiveByValue(ctx context.Context, value string) (*DailyToken, error)
	DeleteByDate(ctx context.Context, date string) (*DailyToken, error)
	ListRecent(ctx context.Context, limit int) ([]DailyToken, error)
}

// PostgresRepo implements Repository on the daily_qr_codes table.
type PostgresRepo struct {
	db *sql.DB
}

// NewPostgresRepo creates a repo.
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const tokenColumns = `id, date, qr_token, is_active, created_by, created_at`

// Insert writes a new token row. The unique index on date rejects a second
// token for the same date; callers detect that with IsUniqueViolation.
func (r *PostgresRepo) Insert(ctx context.Context, tok DailyToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_qr_codes (id, date, qr_token, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, tok.ID, tok.Date, tok.QRToken, tok.IsActive, tok.CreatedBy)
	return err
}

func (r *PostgresRepo) findOne(ctx context.Context, where string, arg any) (*DailyToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM daily_qr_codes WHERE `+where, arg)
	var tok DailyToken
	if err := row.Scan(&tok.ID, &tok.Date, &tok.QRToken, &tok.IsActive, &tok.CreatedBy, &tok.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &tok, nil
}

// FindByDate returns the token for a date regardless of active flag, or nil.
func (r *PostgresRepo) FindByDate(ctx context.Context, date string) (*DailyToken, error) {
	return r.findOne(ctx, `date = $1`, date)
}

// FindActiveByDate returns the active token for a date, or nil.
func (r *PostgresRepo) FindActiveByDate(ctx context.Context, date string) (*DailyToken, error) {
	return r.findOne(ctx, `date = $1 AND is_active = TRUE`, date)
}

// FindActiveByValue resolves a scanned token string; inactive rows do not
// match.
func (r *PostgresRepo) FindActiveByValue(ctx context.Context, value string) (*DailyToken, error) {
	return r.findOne(ctx, `qr_token = $1 AND is_active = TRUE`, value)
}

// DeleteByDate removes the token for a date and returns the deleted row,
// or nil when none existed.
func (r *PostgresRepo) DeleteByDate(ctx context.Context, date string) (*DailyToken, error) {
	row := r.db.QueryRowContext(ctx, `
		DELETE FROM daily_qr_codes WHERE date = $1 RETURNING `+tokenColumns, date)
	var tok DailyToken
	if err := row.Scan(&tok.ID, &tok.Date, &tok.QRToken, &tok.IsActive, &tok.CreatedBy, &tok.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &tok, nil
}

// ListRecent returns the newest tokens by date for the admin screen.
func (r *PostgresRepo) ListRecent(ctx context.Context, limit int) ([]DailyToken, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+tokenColumns+` FROM daily_qr_codes ORDER BY date DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []DailyToken
	for rows.Next() {
		var tok DailyToken
		if err := rows.Scan(&tok.ID, &tok.Date, &tok.QRToken, &tok.IsActive, &tok.CreatedBy, &tok.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, tok)
	}
	return res, rows.Err()
}

// IsUniqueViolation reports whether err is a Postgres unique-index
// violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
