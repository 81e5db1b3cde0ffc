package attendance

import (
	"fmt"
	"sort"
	"time"

	"campusattend/internal/clock"
)

// Per-day attendance statuses. Absent means the student clocked in and out
// but stayed under the full-day threshold; that is deliberate policy, not
// a data error.
const (
	StatusComplete     = "Complete"
	StatusSignedInOnly = "Signed In Only"
	StatusNotSignedIn  = "Not Signed In"
	StatusAbsent       = "Absent"
)

// HoursUnknown marks a day whose elapsed duration could not be computed.
const HoursUnknown = "N/A"

// SummaryRow is one (student, date) line of the admin daily summary.
type SummaryRow struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Date        string `json:"date"`
	SignInTime  string `json:"sign_in_time,omitempty"`
	SignOutTime string `json:"sign_out_time,omitempty"`
	HoursWorked string `json:"hours_worked"`
	Status      string `json:"attendance_status"`
}

// StudentTotal counts a student's distinct days with at least one event.
type StudentTotal struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	DaysPresent int    `json:"days_present"`
}

// SummaryReport is the full read-side aggregation for the admin view.
type SummaryReport struct {
	Rows   []SummaryRow   `json:"summary"`
	Totals []StudentTotal `json:"totals"`
}

// Summarizer derives per-day statuses from raw events. It mutates nothing.
type Summarizer struct {
	clock     *clock.Clock
	threshold time.Duration
}

// NewSummarizer creates a summarizer with the full-day threshold.
func NewSummarizer(clk *clock.Clock, threshold time.Duration) *Summarizer {
	if threshold <= 0 {
		threshold = 7 * time.Hour
	}
	return &Summarizer{clock: clk, threshold: threshold}
}

// DayStatus classifies one (student, date) pair. elapsedKnown is false
// when either time string failed to parse; such days keep their events
// but report unknown hours.
func (z *Summarizer) DayStatus(hasIn, hasOut bool, elapsed time.Duration, elapsedKnown bool) string {
	switch {
	case !hasIn && !hasOut:
		return StatusNotSignedIn
	case !hasIn || !hasOut:
		return StatusSignedInOnly
	case !elapsedKnown:
		return StatusComplete
	case elapsed >= z.threshold:
		return StatusComplete
	default:
		return StatusAbsent
	}
}

type dayKey struct {
	studentID string
	date      string
}

type dayAgg struct {
	name    string
	inTime  string
	outTime string
}

// Build aggregates events into the daily summary and per-student totals.
// A malformed time on one day degrades that day's hours to HoursUnknown
// and never aborts the report.
func (z *Summarizer) Build(events []Event) SummaryReport {
	days := make(map[dayKey]*dayAgg)
	for _, evt := range events {
		key := dayKey{evt.StudentID, evt.Date}
		agg, ok := days[key]
		if !ok {
			agg = &dayAgg{name: evt.StudentName}
			days[key] = agg
		}
		if agg.name == "" {
			agg.name = evt.StudentName
		}
		switch evt.Type {
		case DirectionIn:
			// Earliest sign-in wins when duplicates slip through.
			if agg.inTime == "" || evt.Time < agg.inTime {
				agg.inTime = evt.Time
			}
		case DirectionOut:
			if agg.outTime == "" || evt.Time > agg.outTime {
				agg.outTime = evt.Time
			}
		}
	}

	report := SummaryReport{}
	daysByStudent := make(map[string]map[string]bool)
	names := make(map[string]string)

	for key, agg := range days {
		hasIn, hasOut := agg.inTime != "", agg.outTime != ""
		hours := HoursUnknown
		var elapsed time.Duration
		elapsedKnown := false
		if hasIn && hasOut {
			if in, out, ok := z.clock.ParseEventTimes(key.date, agg.inTime, agg.outTime); ok && !out.Before(in) {
				elapsed = out.Sub(in)
				elapsedKnown = true
				hours = fmt.Sprintf("%.2f", elapsed.Hours())
			}
		}
		report.Rows = append(report.Rows, SummaryRow{
			StudentID:   key.studentID,
			StudentName: agg.name,
			Date:        key.date,
			SignInTime:  agg.inTime,
			SignOutTime: agg.outTime,
			HoursWorked: hours,
			Status:      z.DayStatus(hasIn, hasOut, elapsed, elapsedKnown),
		})

		if daysByStudent[key.studentID] == nil {
			daysByStudent[key.studentID] = make(map[string]bool)
		}
		daysByStudent[key.studentID][key.date] = true
		names[key.studentID] = agg.name
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		if report.Rows[i].Date != report.Rows[j].Date {
			return report.Rows[i].Date > report.Rows[j].Date
		}
		return report.Rows[i].StudentID < report.Rows[j].StudentID
	})

	for studentID, dates := range daysByStudent {
		report.Totals = append(report.Totals, StudentTotal{
			StudentID:   studentID,
			StudentName: names[studentID],
			DaysPresent: len(dates),
		})
	}
	sort.Slice(report.Totals, func(i, j int) bool {
		return report.Totals[i].StudentID < report.Totals[j].StudentID
	})
	return report
}
