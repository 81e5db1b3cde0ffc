package attendance

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists students and attendance events.
type Repository interface {
	FindStudent(ctx context.Context, studentID string) (*Student, error)
	FindActiveStudent(ctx context.Context, studentID string) (*Student, error)
	CreateStudent(ctx context.Context, st Student) error

	EventsForDay(ctx context.Context, studentID, date string) ([]Event, error)
	InsertEvent(ctx context.Context, evt Event) (Event, error)
	ListAll(ctx context.Context) ([]Event, error)
	ListByStudent(ctx context.Context, studentID string, limit int) ([]Event, error)

	ClearAll(ctx context.Context) (ClearResult, error)
}

// PostgresRepo implements Repository on the students and attendance tables.
type PostgresRepo struct {
	db *sql.DB
}

// NewPostgresRepo creates a repo.
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const studentColumns = `student_id, first_name, last_name, email, department, is_active, created_at`

func (r *PostgresRepo) findStudent(ctx context.Context, where string, arg any) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE `+where, arg)
	var st Student
	if err := row.Scan(&st.StudentID, &st.FirstName, &st.LastName, &st.Email, &st.Department, &st.IsActive, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// FindStudent returns a student regardless of active flag, or nil.
func (r *PostgresRepo) FindStudent(ctx context.Context, studentID string) (*Student, error) {
	return r.findStudent(ctx, `student_id = $1`, studentID)
}

// FindActiveStudent returns an active student, or nil.
func (r *PostgresRepo) FindActiveStudent(ctx context.Context, studentID string) (*Student, error) {
	return r.findStudent(ctx, `student_id = $1 AND is_active = TRUE`, studentID)
}

// CreateStudent inserts a new student row.
func (r *PostgresRepo) CreateStudent(ctx context.Context, st Student) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (student_id, first_name, last_name, email, department, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, st.StudentID, st.FirstName, st.LastName, st.Email, st.Department, st.IsActive)
	return err
}

// EventsForDay returns a student's events for one date, newest first.
// Identical times fall back to insertion order via the serial id.
func (r *PostgresRepo) EventsForDay(ctx context.Context, studentID, date string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, date, time, type, COALESCE(qr_token, ''), created_at
		FROM attendance
		WHERE student_id = $1 AND date = $2
		ORDER BY time DESC, id DESC
	`, studentID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows, false)
}

// InsertEvent writes a new event and returns it with its assigned id. The
// unique (student_id, date, type) index rejects a duplicate direction for
// the day; callers detect that with IsUniqueViolation.
func (r *PostgresRepo) InsertEvent(ctx context.Context, evt Event) (Event, error) {
	var qrToken any
	if evt.QRToken != "" {
		qrToken = evt.QRToken
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (student_id, date, time, type, qr_token)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, evt.StudentID, evt.Date, evt.Time, evt.Type, qrToken)
	if err := row.Scan(&evt.ID, &evt.CreatedAt); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// ListAll returns every event joined with student names, newest first.
func (r *PostgresRepo) ListAll(ctx context.Context) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.student_id, a.date, a.time, a.type, COALESCE(a.qr_token, ''), a.created_at,
		       s.first_name || ' ' || s.last_name
		FROM attendance a
		JOIN students s ON s.student_id = a.student_id
		ORDER BY a.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows, true)
}

// ListByStudent returns one student's events with names, newest first.
func (r *PostgresRepo) ListByStudent(ctx context.Context, studentID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.student_id, a.date, a.time, a.type, COALESCE(a.qr_token, ''), a.created_at,
		       s.first_name || ' ' || s.last_name
		FROM attendance a
		JOIN students s ON s.student_id = a.student_id
		WHERE a.student_id = $1
		ORDER BY a.created_at DESC
		LIMIT $2
	`, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows, true)
}

func scanEvents(rows *sql.Rows, withName bool) ([]Event, error) {
	var res []Event
	for rows.Next() {
		var evt Event
		dest := []any{&evt.ID, &evt.StudentID, &evt.Date, &evt.Time, &evt.Type, &evt.QRToken, &evt.CreatedAt}
		if withName {
			dest = append(dest, &evt.StudentName)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

// ClearAll wipes tokens, events and students in one transaction so a
// failure can never leave events referencing deleted students.
func (r *PostgresRepo) ClearAll(ctx context.Context) (ClearResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ClearResult{}, err
	}
	defer tx.Rollback()

	var res ClearResult
	steps := []struct {
		query string
		count *int64
	}{
		{`DELETE FROM daily_qr_codes`, &res.Tokens},
		{`DELETE FROM attendance`, &res.Events},
		{`DELETE FROM students`, &res.Students},
	}
	for _, step := range steps {
		out, err := tx.ExecContext(ctx, step.query)
		if err != nil {
			return ClearResult{}, err
		}
		n, err := out.RowsAffected()
		if err != nil {
			return ClearResult{}, err
		}
		*step.count = n
	}
	return res, tx.Commit()
}

// IsUniqueViolation reports whether err is a Postgres unique-index
// violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
