package workflow

import (
	"context"

	"attendanceconsole/internal/camera"
)

// Kind names a workflow variant.
type Kind string

const (
	KindRegistration Kind = "register"
	KindAttendance   Kind = "attendance"
)

// Outcome is a completed remote submission. A non-success level lands the
// machine in ERROR with that level, which is how "not recognized" stays a
// warning rather than a failure.
type Outcome struct {
	Level        Level
	Text         string
	Result       any
	DiscardImage bool
	ResetForm    bool
}

// ValidationError is a local guard failure. It never reaches the network.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

// Variant supplies the per-page parts of a capture workflow.
// All methods except the function returned by Prepare run under the machine lock.
type Variant interface {
	Kind() Kind
	// Form returns a copy of the current form for rendering.
	Form() any
	// Validate is the submit guard; img is nil when nothing is held.
	Validate(img *camera.CapturedImage) error
	// Prepare snapshots the form and returns the network call to run unlocked.
	Prepare(img camera.CapturedImage) func(ctx context.Context) (Outcome, error)
	// Reset returns the form to its defaults.
	Reset()
	// FailureText is the danger message used when the server sends no error text.
	FailureText() string
}

const msgCaptureFirst = "Please capture an image first"
