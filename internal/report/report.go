// Package report queries the attendance API for daily and monthly reports and
// shapes the rows for display and CSV export. All aggregation is server side;
// the only arithmetic done here is the per-row check-in duration.
package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"attendanceconsole/internal/apiclient"
	"attendanceconsole/internal/workflow"
)

var (
	// ErrBadDate is returned for dates not in YYYY-MM-DD form.
	ErrBadDate = errors.New("report: date must be YYYY-MM-DD")
	// ErrBadMonth is returned for months not in YYYY-MM form.
	ErrBadMonth = errors.New("report: month must be YYYY-MM")
	// ErrBadPeriod is returned for a period outside the class periods.
	ErrBadPeriod = errors.New("report: period out of range")
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"

	// NotCheckedOut is shown instead of a duration when a row has no check-out.
	NotCheckedOut = "Not checked out"
	// AllDepartments is the unfiltered department value.
	AllDepartments = "all"
	// RecentLimit is how many rows the capture page lists.
	RecentLimit = 5
)

// Querier is the slice of the attendance API the reports read from.
type Querier interface {
	DailyAttendance(ctx context.Context, date string, period int) ([]apiclient.AttendanceRecord, error)
	MonthlyAttendance(ctx context.Context, month, department string) ([]apiclient.MonthlySummary, error)
	Departments(ctx context.Context) ([]string, error)
}

// Tier is the badge colour of a monthly percentage.
type Tier string

const (
	TierGood    Tier = "good"
	TierWarning Tier = "warning"
	TierBad     Tier = "bad"
)

// TierFor maps an attendance percentage onto its badge tier.
func TierFor(pct float64) Tier {
	switch {
	case pct >= 75:
		return TierGood
	case pct >= 60:
		return TierWarning
	default:
		return TierBad
	}
}

// DailyRow is one check-in event with its display duration.
type DailyRow struct {
	apiclient.AttendanceRecord
	CheckIn       string   `json:"check_in"`
	CheckOut      string   `json:"check_out,omitempty"`
	Duration      string   `json:"duration"`
	DurationHours *float64 `json:"duration_hours,omitempty"`
}

// DailyView is the daily or per-period report.
type DailyView struct {
	Date   string     `json:"date"`
	Period int        `json:"period,omitempty"`
	Rows   []DailyRow `json:"rows"`
	Count  int        `json:"count"`
}

// MonthlyRow is one pre-aggregated summary with its badge tier.
type MonthlyRow struct {
	apiclient.MonthlySummary
	Tier Tier `json:"tier"`
}

// MonthlyView is the monthly report.
type MonthlyView struct {
	Month      string       `json:"month"`
	Label      string       `json:"label"`
	Department string       `json:"department"`
	Rows       []MonthlyRow `json:"rows"`
	Count      int          `json:"count"`
}

// Service runs report queries.
type Service struct {
	api Querier
	now func() time.Time
}

// New returns a report service over api.
func New(api Querier) *Service {
	return &Service{api: api, now: time.Now}
}

// Today is the local date used for default report dates.
func (s *Service) Today() string { return s.now().Format(dateLayout) }

// Daily returns the check-ins on date, limited to period when non-zero.
// An empty date means today.
func (s *Service) Daily(ctx context.Context, date string, period int) (*DailyView, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		date = s.Today()
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, ErrBadDate
	}
	if period != 0 && !workflow.ValidPeriod(period) {
		return nil, ErrBadPeriod
	}
	recs, err := s.api.DailyAttendance(ctx, date, period)
	if err != nil {
		return nil, fmt.Errorf("daily report %s: %w", date, err)
	}
	rows := make([]DailyRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, dailyRow(rec))
	}
	return &DailyView{Date: date, Period: period, Rows: rows, Count: len(rows)}, nil
}

// Recent returns the first RecentLimit check-ins of today's period.
func (s *Service) Recent(ctx context.Context, period int) ([]DailyRow, error) {
	v, err := s.Daily(ctx, "", period)
	if err != nil {
		return nil, err
	}
	if len(v.Rows) > RecentLimit {
		return v.Rows[:RecentLimit], nil
	}
	return v.Rows, nil
}

// Monthly returns the summaries for month, filtered by department.
// An empty month means the current one and an empty department means all.
func (s *Service) Monthly(ctx context.Context, month, department string) (*MonthlyView, error) {
	month = strings.TrimSpace(month)
	if month == "" {
		month = s.now().Format(monthLayout)
	}
	m, err := time.Parse(monthLayout, month)
	if err != nil {
		return nil, ErrBadMonth
	}
	department = strings.TrimSpace(department)
	if department == "" {
		department = AllDepartments
	}
	sums, err := s.api.MonthlyAttendance(ctx, month, department)
	if err != nil {
		return nil, fmt.Errorf("monthly report %s: %w", month, err)
	}
	rows := make([]MonthlyRow, 0, len(sums))
	for _, sum := range sums {
		rows = append(rows, MonthlyRow{MonthlySummary: sum, Tier: TierFor(sum.AttendancePercentage)})
	}
	return &MonthlyView{
		Month:      month,
		Label:      m.Format("January 2006"),
		Department: department,
		Rows:       rows,
		Count:      len(rows),
	}, nil
}

// Departments lists the department filter values.
func (s *Service) Departments(ctx context.Context) ([]string, error) {
	deps, err := s.api.Departments(ctx)
	if err != nil {
		return nil, fmt.Errorf("departments: %w", err)
	}
	return deps, nil
}

func dailyRow(rec apiclient.AttendanceRecord) DailyRow {
	row := DailyRow{AttendanceRecord: rec, CheckIn: rec.CheckinTime, CheckOut: rec.CheckoutTime, Duration: NotCheckedOut}
	if row.CheckIn == "" {
		row.CheckIn = rec.Time
	}
	in, okIn := stamp(rec.Date, row.CheckIn)
	out, okOut := stamp(rec.Date, row.CheckOut)
	if okIn && okOut {
		h := math.Abs(out.Sub(in).Hours())
		h = math.Round(h*100) / 100
		row.DurationHours = &h
		row.Duration = fmt.Sprintf("%.2f", h)
	}
	return row
}

// stamp parses a full timestamp, or a clock time on the record's date.
func stamp(date, s string) (time.Time, bool) {
	if t, ok := apiclient.ParseTimestamp(s); ok {
		return t, true
	}
	if date == "" || s == "" {
		return time.Time{}, false
	}
	return apiclient.ParseTimestamp(date + " " + s)
}
