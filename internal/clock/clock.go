package clock

import "time"

// DefaultTimezone anchors all calendar math for the campus.
const DefaultTimezone = "Africa/Lagos"

// InvalidDate is returned when a date string cannot be parsed for display.
const InvalidDate = "Invalid Date"

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Clock produces date and time strings in one fixed timezone so that
// "today" does not depend on where the process runs.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New loads the named timezone and returns a Clock anchored to it.
func New(tz string) (*Clock, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewAt returns a Clock with an injected time source, for tests.
func NewAt(tz string, now func() time.Time) (*Clock, error) {
	c, err := New(tz)
	if err != nil {
		return nil, err
	}
	c.now = now
	return c, nil
}

// CurrentDate returns the calendar date (YYYY-MM-DD) in the fixed timezone.
func (c *Clock) CurrentDate() string {
	return c.now().In(c.loc).Format(dateLayout)
}

// NextDate returns tomorrow's calendar date in the fixed timezone. It is
// computed from today's date components, not by adding 24 hours to an
// instant, so a DST transition cannot land it on the same date.
func (c *Clock) NextDate() string {
	y, m, d := c.now().In(c.loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, c.loc).Format(dateLayout)
}

// CurrentTime returns the time of day (HH:MM:SS, 24h) in the fixed timezone.
func (c *Clock) CurrentTime() string {
	return c.now().In(c.loc).Format(timeLayout)
}

// IsTodayOrTomorrow reports whether date (YYYY-MM-DD) is today or tomorrow
// in the fixed timezone.
func (c *Clock) IsTodayOrTomorrow(date string) bool {
	return date == c.CurrentDate() || date == c.NextDate()
}

// FormatDisplayDate renders a YYYY-MM-DD date for humans, e.g.
// "Monday, June 3, 2024". Malformed input yields InvalidDate.
func (c *Clock) FormatDisplayDate(date string) string {
	t, err := time.ParseInLocation(dateLayout, date, c.loc)
	if err != nil {
		return InvalidDate
	}
	return t.Format("Monday, January 2, 2006")
}

// ParseEventTimes combines a date with in/out times of day and returns the
// two instants in the fixed timezone. ok is false when either string is
// malformed; callers must treat that as "hours unknown", not an error.
func (c *Clock) ParseEventTimes(date, inTime, outTime string) (in, out time.Time, ok bool) {
	in, err := time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+inTime, c.loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	out, err = time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+outTime, c.loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return in, out, true
}
