package apiclient

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Roles accepted by the registration endpoint.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
)

// Roles lists the roles in the order the registration form offers them.
var Roles = []string{RoleStudent, RoleTeacher, RoleStaff, RoleAdmin}

// ID is a backend identifier. The backend emits either strings or numbers.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// UserProfile is a registered identity as the backend reports it.
type UserProfile struct {
	UserID     ID     `json:"user_id,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Image string `json:"image"`
}

// RegisterResult is returned on a successful registration.
type RegisterResult struct {
	UserID  ID     `json:"user_id"`
	Message string `json:"message,omitempty"`
}

// RecognizeRequest is the body of POST /api/recognize.
type RecognizeRequest struct {
	Image   string `json:"image"`
	Period  int    `json:"period,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// RecognitionResult is the backend's verdict on a submitted frame.
// Recognized is false both for an explicit negative payload and for a 404.
type RecognitionResult struct {
	Recognized   bool        `json:"recognized"`
	User         UserProfile `json:"user"`
	AttendanceID ID          `json:"attendance_id,omitempty"`
	Timestamp    string      `json:"timestamp,omitempty"`
}

// Time parses Timestamp. The zero time is returned when it is absent or unparseable.
func (r RecognitionResult) Time() time.Time {
	t, _ := ParseTimestamp(r.Timestamp)
	return t
}

// AttendanceRecord is one check-in row of the daily attendance listing.
type AttendanceRecord struct {
	AttendanceID ID     `json:"attendance_id,omitempty"`
	UserID       ID     `json:"user_id,omitempty"`
	UserName     string `json:"user_name"`
	UserEmail    string `json:"user_email,omitempty"`
	Department   string `json:"department,omitempty"`
	Date         string `json:"date,omitempty"`
	Period       int    `json:"period,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Time         string `json:"time,omitempty"`
	CheckinTime  string `json:"checkin_time,omitempty"`
	CheckoutTime string `json:"checkout_time,omitempty"`
}

// MonthlySummary is one pre-aggregated row of the monthly report.
type MonthlySummary struct {
	UserID               ID      `json:"user_id,omitempty"`
	UserName             string  `json:"user_name"`
	Department           string  `json:"department"`
	TotalClasses         int     `json:"total_classes"`
	ClassesAttended      int     `json:"classes_attended"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses the timestamp shapes the backend is known to emit.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0), true
	}
	return time.Time{}, false
}
