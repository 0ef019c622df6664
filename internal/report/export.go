package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrNothingToExport is returned when the view has no rows. Nothing is written.
var ErrNothingToExport = errors.New("report: no rows to export")

// DailyHeader is the column order of the daily CSV.
var DailyHeader = []string{"S.No", "Name", "Email", "Department", "Date", "Period", "Subject", "Check In", "Check Out", "Duration (hours)"}

// MonthlyHeader is the column order of the monthly CSV.
var MonthlyHeader = []string{"S.No", "Name", "Department", "Total Classes", "Classes Attended", "Attendance Percentage"}

// DailyFilename is the download name of a daily export.
func DailyFilename(v *DailyView) string {
	if v.Period != 0 {
		return fmt.Sprintf("attendance_%s_period%d.csv", v.Date, v.Period)
	}
	return fmt.Sprintf("attendance_%s.csv", v.Date)
}

// MonthlyFilename is the download name of a monthly export.
func MonthlyFilename(v *MonthlyView) string {
	return fmt.Sprintf("attendance_%s.csv", v.Month)
}

// ExportDaily writes v as CSV.
func ExportDaily(w io.Writer, v *DailyView) error {
	if v == nil || len(v.Rows) == 0 {
		return ErrNothingToExport
	}
	records := make([][]string, 0, len(v.Rows)+1)
	records = append(records, DailyHeader)
	for i, r := range v.Rows {
		period := ""
		if r.Period != 0 {
			period = strconv.Itoa(r.Period)
		}
		records = append(records, []string{
			strconv.Itoa(i + 1),
			r.UserName,
			r.UserEmail,
			r.Department,
			r.Date,
			period,
			r.Subject,
			r.CheckIn,
			r.CheckOut,
			r.Duration,
		})
	}
	return writeAll(w, records)
}

// ExportMonthly writes v as CSV. Percentages are written as the API sent them.
func ExportMonthly(w io.Writer, v *MonthlyView) error {
	if v == nil || len(v.Rows) == 0 {
		return ErrNothingToExport
	}
	records := make([][]string, 0, len(v.Rows)+1)
	records = append(records, MonthlyHeader)
	for i, r := range v.Rows {
		records = append(records, []string{
			strconv.Itoa(i + 1),
			r.UserName,
			r.Department,
			strconv.Itoa(r.TotalClasses),
			strconv.Itoa(r.ClassesAttended),
			strconv.FormatFloat(r.AttendancePercentage, 'f', -1, 64) + "%",
		})
	}
	return writeAll(w, records)
}

func writeAll(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
