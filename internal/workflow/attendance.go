package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"attendanceconsole/internal/apiclient"
	"attendanceconsole/internal/camera"
)

// Recognizer matches a captured frame against enrolled faces.
type Recognizer interface {
	Recognize(ctx context.Context, req apiclient.RecognizeRequest) (*apiclient.RecognitionResult, error)
}

// MarkedNotifier is told about every successful attendance capture.
type MarkedNotifier interface {
	AttendanceMarked(ctx context.Context, m Marked)
}

// Marked describes an attendance capture the backend accepted.
type Marked struct {
	User         apiclient.UserProfile `json:"user"`
	AttendanceID apiclient.ID          `json:"attendance_id,omitempty"`
	Period       int                   `json:"period"`
	Subject      string                `json:"subject"`
	Timestamp    time.Time             `json:"timestamp"`
}

// Selection is the class period and subject the capture is recorded against.
type Selection struct {
	Period  int    `json:"period"`
	Subject string `json:"subject"`
}

// NotRecognizedText is the warning shown when no enrolled face matched.
const NotRecognizedText = "Face not recognized. Please try again or register the student."

// Attendance is the recognition variant.
type Attendance struct {
	api    Recognizer
	notify MarkedNotifier
	sel    Selection
	now    func() time.Time
}

// NewAttendance returns an attendance variant on period 1 with no subject.
// notify may be nil.
func NewAttendance(api Recognizer, notify MarkedNotifier) *Attendance {
	return &Attendance{api: api, notify: notify, sel: Selection{Period: MinPeriod}, now: time.Now}
}

func (a *Attendance) Kind() Kind { return KindAttendance }

func (a *Attendance) Form() any { return a.sel }

// SetPeriod switches period. Changing period clears the subject.
func (a *Attendance) SetPeriod(p int) error {
	if !ValidPeriod(p) {
		return invalid(fmt.Sprintf("Period must be between %d and %d", MinPeriod, MaxPeriod))
	}
	if p != a.sel.Period {
		a.sel = Selection{Period: p}
	}
	return nil
}

// SetSubject selects a subject of the current period; empty clears it.
func (a *Attendance) SetSubject(s string) error {
	s = strings.TrimSpace(s)
	if s != "" && !subjectInPeriod(a.sel.Period, s) {
		return invalid(fmt.Sprintf("%s is not taught in Period %d", s, a.sel.Period))
	}
	a.sel.Subject = s
	return nil
}

// Select applies a period and subject together.
func (a *Attendance) Select(sel Selection) error {
	if err := a.SetPeriod(sel.Period); err != nil {
		return err
	}
	return a.SetSubject(sel.Subject)
}

func (a *Attendance) Validate(img *camera.CapturedImage) error {
	if img == nil {
		return invalid(msgCaptureFirst)
	}
	if a.sel.Subject == "" {
		return invalid("Please select a subject")
	}
	return nil
}

func (a *Attendance) Prepare(img camera.CapturedImage) func(context.Context) (Outcome, error) {
	sel := a.sel
	req := apiclient.RecognizeRequest{Image: img.DataURI, Period: sel.Period, Subject: sel.Subject}
	return func(ctx context.Context) (Outcome, error) {
		res, err := a.api.Recognize(ctx, req)
		if err != nil {
			return Outcome{}, err
		}
		if !res.Recognized {
			return Outcome{Level: LevelWarning, Text: NotRecognizedText}, nil
		}
		ts := res.Time()
		if ts.IsZero() {
			ts = a.now()
		}
		marked := Marked{
			User:         res.User,
			AttendanceID: res.AttendanceID,
			Period:       sel.Period,
			Subject:      sel.Subject,
			Timestamp:    ts,
		}
		if a.notify != nil {
			a.notify.AttendanceMarked(ctx, marked)
		}
		return Outcome{
			Level:  LevelSuccess,
			Text:   fmt.Sprintf("Attendance marked for %s in Period %d (%s)", res.User.Name, sel.Period, sel.Subject),
			Result: marked,
		}, nil
	}
}

// Reset returns the selection to period 1 with no subject.
func (a *Attendance) Reset() { a.sel = Selection{Period: MinPeriod} }

func (a *Attendance) FailureText() string { return "Failed to process recognition" }
