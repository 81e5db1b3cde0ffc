package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"campusattend/internal/apperr"
	"campusattend/internal/clock"
	"campusattend/internal/token"
)

// fakeRepo keeps students and events in memory and enforces the same
// unique (student_id, date, type) constraint the attendance table does.
type fakeRepo struct {
	students     map[string]Student
	events       []Event
	nextID       int64
	err          error
	beforeInsert func() // lets tests interleave a competing writer
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{students: map[string]Student{}, nextID: 1}
}

func (f *fakeRepo) addStudent(id string, active bool) {
	f.students[id] = Student{
		StudentID: id, FirstName: "Test", LastName: "Student",
		IsActive: active, CreatedAt: time.Now(),
	}
}

func (f *fakeRepo) FindStudent(ctx context.Context, studentID string) (*Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	if st, ok := f.students[studentID]; ok {
		return &st, nil
	}
	return nil, nil
}

func (f *fakeRepo) FindActiveStudent(ctx context.Context, studentID string) (*Student, error) {
	st, err := f.FindStudent(ctx, studentID)
	if err != nil || st == nil || !st.IsActive {
		return nil, err
	}
	return st, nil
}

func (f *fakeRepo) CreateStudent(ctx context.Context, st Student) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.students[st.StudentID]; ok {
		return &pgconn.PgError{Code: "23505"}
	}
	st.CreatedAt = time.Now()
	f.students[st.StudentID] = st
	return nil
}

func (f *fakeRepo) EventsForDay(ctx context.Context, studentID, date string) ([]Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	var res []Event
	for _, evt := range f.events {
		if evt.StudentID == studentID && evt.Date == date {
			res = append(res, evt)
		}
	}
	return res, nil
}

func (f *fakeRepo) InsertEvent(ctx context.Context, evt Event) (Event, error) {
	if f.err != nil {
		return Event{}, f.err
	}
	if f.beforeInsert != nil {
		hook := f.beforeInsert
		f.beforeInsert = nil
		hook()
	}
	for _, existing := range f.events {
		if existing.StudentID == evt.StudentID && existing.Date == evt.Date && existing.Type == evt.Type {
			return Event{}, &pgconn.PgError{Code: "23505", ConstraintName: "attendance_student_date_type_key"}
		}
	}
	evt.ID = f.nextID
	f.nextID++
	evt.CreatedAt = time.Now()
	f.events = append(f.events, evt)
	return evt, nil
}

func (f *fakeRepo) ListAll(ctx context.Context) ([]Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := make([]Event, len(f.events))
	copy(res, f.events)
	for i := range res {
		if st, ok := f.students[res[i].StudentID]; ok {
			res[i].StudentName = st.FullName()
		}
	}
	return res, nil
}

func (f *fakeRepo) ListByStudent(ctx context.Context, studentID string, limit int) ([]Event, error) {
	all, err := f.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var res []Event
	for i := len(all) - 1; i >= 0 && len(res) < limit; i-- {
		if all[i].StudentID == studentID {
			res = append(res, all[i])
		}
	}
	return res, nil
}

func (f *fakeRepo) ClearAll(ctx context.Context) (ClearResult, error) {
	if f.err != nil {
		return ClearResult{}, f.err
	}
	res := ClearResult{Events: int64(len(f.events)), Students: int64(len(f.students))}
	f.events = nil
	f.students = map[string]Student{}
	return res, nil
}

// fakeValidator approves a single token value.
type fakeValidator struct {
	valid string
	err   error
}

func (f *fakeValidator) Validate(ctx context.Context, value string) (*token.DailyToken, error) {
	if f.err != nil {
		return nil, f.err
	}
	if value == f.valid {
		return &token.DailyToken{Date: "2024-06-01", QRToken: value, IsActive: true}, nil
	}
	return nil, token.ErrInvalidToken
}

func testClock(t *testing.T, at time.Time) *clock.Clock {
	t.Helper()
	c, err := clock.NewAt(clock.DefaultTimezone, func() time.Time { return at })
	if err != nil {
		t.Fatalf("clock: %v", err)
	}
	return c
}

var (
	morning = time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)  // 08:00 Lagos
	evening = time.Date(2024, 6, 1, 16, 0, 0, 0, time.UTC) // 17:00 Lagos
)

const validToken = "DAILY_2024-06-01_abcdef0123456789abcdef0123456789"

func newTestService(repo *fakeRepo, clk *clock.Clock) *Service {
	return NewService(repo, clk, &fakeValidator{valid: validToken}, true)
}

func TestScanSequenceInOutLimit(t *testing.T) {
	repo := newFakeRepo()
	repo.addStudent("S1", true)
	at := morning
	clk, err := clock.NewAt(clock.DefaultTimezone, func() time.Time { return at })
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(repo, clk, &fakeValidator{valid: validToken}, true)
	ctx := context.Background()

	first, err := svc.Scan(ctx, "S1", validToken)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if first.Type != DirectionIn || first.RemainingScans != 1 {
		t.Errorf("first scan = %+v, want in with 1 remaining", first)
	}
	if first.Message != "Successfully signed in at 08:00:00" {
		t.Errorf("message = %q", first.Message)
	}
	if first.Record.QRToken != validToken {
		t.Errorf("token reference not recorded")
	}

	at = evening
	second, err := svc.Scan(ctx, "S1", validToken)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if second.Type != DirectionOut || second.RemainingScans != 0 {
		t.Errorf("second scan = %+v, want out with 0 remaining", second)
	}
	if second.Message != "Successfully signed out at 17:00:00" {
		t.Errorf("message = %q", second.Message)
	}

	_, err = svc.Scan(ctx, "S1", validToken)
	if !errors.Is(err, ErrDailyLimit) {
		t.Fatalf("third scan err = %v, want ErrDailyLimit", err)
	}
	if apperr.KindOf(err) != apperr.Conflict {
		t.Errorf("daily limit should classify as Conflict")
	}
}

func TestScanRejections(t *testing.T) {
	repo := newFakeRepo()
	repo.addStudent("S1", true)
	repo.addStudent("S2", false)
	svc := newTestService(repo, testClock(t, morning))
	ctx := context.Background()

	cases := []struct {
		name      string
		studentID string
		token     string
		want      error
	}{
		{"unknown student", "NOBODY", validToken, ErrStudentNotFound},
		{"inactive student", "S2", validToken, ErrStudentNotFound},
		{"bad token", "S1", "DAILY_2024-06-01_ffff", token.ErrInvalidToken},
		{"missing student id", "", validToken, ErrMissingScanInput},
		{"missing token", "S1", "", ErrMissingScanInput},
	}
	for _, tc := range cases {
		if _, err := svc.Scan(ctx, tc.studentID, tc.token); !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
	if len(repo.events) != 0 {
		t.Errorf("rejected scans must not record events, got %d", len(repo.events))
	}
}

func TestDirectSharesDerivationAndCap(t *testing.T) {
	repo := newFakeRepo()
	repo.addStudent("S1", true)
	svc := newTestService(repo, testClock(t, morning))
	ctx := context.Background()

	// Mix the two entry paths: direct in, scan out.
	first, err := svc.Direct(ctx, "S1")
	if err != nil {
		t.Fatalf("direct: %v", err)
	}
	if first.Type != DirectionIn {
		t.Errorf("direct first = %q, want in", first.Type)
	}
	if first.Record.QRToken != "" {
		t.Errorf("direct events carry no token reference")
	}

	second, err := svc.Scan(ctx, "S1", validToken)
	if err != nil {
		t.Fatalf("scan after direct: %v", err)
	}
	if second.Type != DirectionOut {
		t.Errorf("scan after direct = %q, want out", second.Type)
	}

	// Cap applies to the direct path too.
	if _, err := svc.Direct(ctx, "S1"); !errors.Is(err, ErrDailyLimit) {
		t.Errorf("third direct err = %v, want ErrDailyLimit", err)
	}
}

func TestDirectDisabledByPolicy(t *testing.T) {
	repo := newFakeRepo()
	repo.addStudent("S1", true)
	svc := NewService(repo, testClock(t, morning), &fakeValidator{valid: validToken}, false)
	ctx := context.Background()

	if _, err := svc.Direct(ctx, "S1"); !errors.Is(err, ErrDirectDisabled) {
		t.Fatalf("err = %v, want ErrDirectDisabled", err)
	}
	// The gated path still works.
	if _, err := svc.Scan(ctx, "S1", validToken); err != nil {
		t.Errorf("scan with direct disabled: %v", err)
	}
}

func TestScanRaceReDerivesOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.addStudent("S1", true)
	svc := newTestService(repo, testClock(t, morning))
	ctx := context.Background()

	// A competing scan lands between our count and our insert; both derived
	// "in", the index rejects ours, and the retry must derive "out".
	repo.beforeInsert = func() {
		repo.events = append(repo.events, Event{
			ID: 99, StudentID: "S1", Date: "2024-06-01", Time: "08:00:00", Type: DirectionIn,
		})
	}
	res, err := svc.Scan(ctx, "S1", validToken)
	if err != nil {
		t.Fatalf("racing scan: %v", err)
	}
	if res.Type != DirectionOut {
		t.Errorf("race loser derived %q, want out", res.Type)
	}
	if len(repo.events) != 2 {
		t.Errorf("events = %d, want 2", len(repo.events))
	}
}

func TestScanRaceAtCapFailsConflict(t *testing.T) {
	repo := newFakeRepo()
	repo.addStudent("S1", true)
	svc := newTestService(repo, testClock(t, morning))
	ctx := context.Background()

	// Day already has an out; the competing writer fills the in slot after
	// our count, so the retry finds the day full.
	repo.events = append(repo.events, Event{
		ID: 98, StudentID: "S1", Date: "2024-06-01", Time: "07:00:00", Type: DirectionOut,
	})
	repo.beforeInsert = func() {
		repo.events = append(repo.events, Event{
			ID: 99, StudentID: "S1", Date: "2024-06-01", Time: "07:30:00", Type: DirectionIn,
		})
	}
	if _, err := svc.Scan(ctx, "S1", validToken); !errors.Is(err, ErrDailyLimit) {
		t.Errorf("err = %v, want ErrDailyLimit", err)
	}
}

func TestRegisterOrLogin(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, testClock(t, morning))
	ctx := context.Background()

	st, err := svc.RegisterOrLogin(ctx, "CS-2024-001", "Ada Lovelace King")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if st.FirstName != "Ada" || st.LastName != "Lovelace King" {
		t.Errorf("name split = %q %q", st.FirstName, st.LastName)
	}
	if st.Email != "cs.2024.001@university.edu" {
		t.Errorf("email = %q", st.Email)
	}
	if st.Department != "General Studies" || !st.IsActive {
		t.Errorf("defaults not applied: %+v", st)
	}

	// Second login returns the stored profile unchanged.
	again, err := svc.RegisterOrLogin(ctx, "CS-2024-001", "Different Name")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if again.FirstName != "Ada" {
		t.Errorf("existing profile overwritten: %+v", again)
	}

	for _, tc := range [][2]string{{"", "Name"}, {"ID", ""}, {"  ", "  "}} {
		if _, err := svc.RegisterOrLogin(ctx, tc[0], tc[1]); !errors.Is(err, ErrMissingFields) {
			t.Errorf("RegisterOrLogin(%q, %q) err = %v, want ErrMissingFields", tc[0], tc[1], err)
		}
	}
}

func TestSingleWordNameGetsDefaultLastName(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, testClock(t, morning))

	st, err := svc.RegisterOrLogin(context.Background(), "S9", "Cher")
	if err != nil {
		t.Fatal(err)
	}
	if st.FirstName != "Cher" || st.LastName != "Student" {
		t.Errorf("name = %q %q", st.FirstName, st.LastName)
	}
}

func TestListByStudentRequiresID(t *testing.T) {
	svc := newTestService(newFakeRepo(), testClock(t, morning))
	if _, err := svc.ListByStudent(context.Background(), " "); apperr.KindOf(err) != apperr.Validation {
		t.Errorf("err = %v, want Validation", err)
	}
}

func TestClearAllReportsCounts(t *testing.T) {
	repo := newFakeRepo()
	repo.addStudent("S1", true)
	repo.addStudent("S2", true)
	svc := newTestService(repo, testClock(t, morning))
	ctx := context.Background()

	if _, err := svc.Scan(ctx, "S1", validToken); err != nil {
		t.Fatal(err)
	}
	res, err := svc.ClearAll(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if res.Events != 1 || res.Students != 2 {
		t.Errorf("counts = %+v", res)
	}
	if res.Total() != res.Tokens+res.Events+res.Students {
		t.Errorf("Total() inconsistent")
	}
	if events, _ := repo.ListAll(ctx); len(events) != 0 {
		t.Errorf("events remain after clear")
	}
}

func TestRepoFailureSurfacesAsInternal(t *testing.T) {
	repo := newFakeRepo()
	repo.addStudent("S1", true)
	repo.err = errors.New("pq: connection refused")
	svc := newTestService(repo, testClock(t, morning))

	_, err := svc.Scan(context.Background(), "S1", validToken)
	if apperr.KindOf(err) != apperr.Internal {
		t.Errorf("kind = %v, want Internal", apperr.KindOf(err))
	}
	if apperr.MessageOf(err) != "Internal server error" {
		t.Errorf("driver detail leaked: %q", apperr.MessageOf(err))
	}
}
