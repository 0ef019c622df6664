// Package workflow implements the capture, review, submit and result cycle
// shared by the registration and attendance pages.
package workflow

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"attendanceconsole/internal/apiclient"
	"attendanceconsole/internal/camera"
	"attendanceconsole/internal/metrics"
)

// State is a workflow state.
type State string

const (
	StateIdle       State = "IDLE"
	StateLive       State = "LIVE"
	StateCaptured   State = "CAPTURED"
	StateSubmitting State = "SUBMITTING"
	StateResult     State = "RESULT"
	StateError      State = "ERROR"
)

// Level is the presentation lane of a message.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
	LevelInfo    Level = "info"
)

// Message is the single line shown under the capture area.
type Message struct {
	Text  string `json:"text"`
	Level Level  `json:"type"`
}

var (
	// ErrBusy is returned for actions attempted while a submission is in flight.
	ErrBusy = errors.New("workflow: submission in progress")
	// ErrInvalidTransition is returned for actions the current state does not allow.
	ErrInvalidTransition = errors.New("workflow: action not allowed in current state")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("workflow: closed")
)

// Machine is one capture workflow instance. It owns its camera: the feed is
// held only while the machine is LIVE.
type Machine[V Variant] struct {
	mu      sync.Mutex
	variant V
	cam     *camera.Camera

	state   State
	image   *camera.CapturedImage
	message *Message
	result  any
	gen     uint64
	closed  bool
}

// New creates a machine in IDLE. Call Start to acquire the camera.
func New[V Variant](variant V, cam *camera.Camera) *Machine[V] {
	return &Machine[V]{variant: variant, cam: cam, state: StateIdle}
}

// View is a snapshot for rendering.
type View struct {
	Flow       Kind       `json:"flow"`
	State      State      `json:"state"`
	Message    *Message   `json:"message,omitempty"`
	Image      string     `json:"image,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	Form       any        `json:"form"`
	Result     any        `json:"result,omitempty"`
	CanCapture bool       `json:"can_capture"`
	CanSubmit  bool       `json:"can_submit"`
	CanRetake  bool       `json:"can_retake"`
}

// Snapshot returns the current view.
func (m *Machine[V]) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

func (m *Machine[V]) viewLocked() View {
	v := View{
		Flow:       m.variant.Kind(),
		State:      m.state,
		Form:       m.variant.Form(),
		Result:     m.result,
		CanCapture: m.state == StateLive,
		CanRetake:  m.state == StateCaptured || m.state == StateResult || m.state == StateError,
	}
	if m.message != nil {
		msg := *m.message
		v.Message = &msg
	}
	if m.image != nil {
		v.Image = m.image.DataURI
		at := m.image.CapturedAt
		v.CapturedAt = &at
		v.CanSubmit = m.state != StateSubmitting && m.variant.Validate(m.image) == nil
	}
	return v
}

// Start acquires the camera and enters LIVE. It is a no-op when already LIVE.
func (m *Machine[V]) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	switch m.state {
	case StateLive:
		return nil
	case StateIdle:
		return m.goLiveLocked(ctx)
	case StateSubmitting:
		return ErrBusy
	default:
		return ErrInvalidTransition
	}
}

// Capture takes one still from the live feed, releases the camera and enters CAPTURED.
func (m *Machine[V]) Capture() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.state != StateLive {
		if m.state == StateSubmitting {
			return ErrBusy
		}
		return ErrInvalidTransition
	}
	img, err := m.cam.CaptureFrame()
	if err != nil {
		m.message = &Message{Text: captureFailureText(err), Level: LevelDanger}
		return err
	}
	if err := m.cam.StopLive(); err != nil {
		log.Printf("%s: camera release failed: %v", m.variant.Kind(), err)
	}
	m.image = img
	m.message = nil
	m.result = nil
	m.state = StateCaptured
	m.gen++
	return nil
}

// Retake discards the held image and re-acquires the camera.
func (m *Machine[V]) Retake(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retakeLocked(ctx)
}

// Reset is Retake that also returns the form to its defaults.
func (m *Machine[V]) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateIdle && !m.closed {
		m.variant.Reset()
		m.message = nil
		return nil
	}
	if err := m.retakeLocked(ctx); err != nil {
		return err
	}
	m.variant.Reset()
	return nil
}

// LiveToken identifies the current LIVE period. ok is false when not LIVE.
func (m *Machine[V]) LiveToken() (token uint64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen, m.state == StateLive && !m.closed
}

// Stop releases the camera and returns to IDLE when the machine is still in
// the LIVE period identified by token. Any other state, or a later LIVE
// period, is left alone.
func (m *Machine[V]) Stop(token uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.state != StateLive || m.gen != token {
		return nil
	}
	m.state = StateIdle
	m.message = nil
	m.gen++
	return m.cam.StopLive()
}

func (m *Machine[V]) retakeLocked(ctx context.Context) error {
	if m.closed {
		return ErrClosed
	}
	switch m.state {
	case StateSubmitting:
		return ErrBusy
	case StateIdle:
		return ErrInvalidTransition
	case StateLive:
		m.message = nil
		return nil
	}
	m.image = nil
	m.result = nil
	m.message = nil
	return m.goLiveLocked(ctx)
}

func (m *Machine[V]) goLiveLocked(ctx context.Context) error {
	if err := m.cam.StartLive(ctx); err != nil {
		m.message = &Message{Text: "Camera unavailable: " + err.Error(), Level: LevelDanger}
		return err
	}
	m.state = StateLive
	m.gen++
	return nil
}

// Update applies fn to the variant's form under the machine lock. Form edits
// are refused while a submission is in flight.
func (m *Machine[V]) Update(fn func(V) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.state == StateSubmitting {
		return ErrBusy
	}
	return fn(m.variant)
}

// Submit validates locally and, when the guard passes, sends the held image.
// A failing guard never reaches the network: the state is kept and a danger
// message is shown. A call while SUBMITTING returns ErrBusy and does nothing.
// The returned error reports local refusals only; remote outcomes land in the view.
func (m *Machine[V]) Submit(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state == StateSubmitting {
		m.mu.Unlock()
		return ErrBusy
	}
	err := invalid(msgCaptureFirst)
	if m.image != nil {
		err = m.variant.Validate(m.image)
	}
	if err != nil {
		m.message = &Message{Text: err.Error(), Level: LevelDanger}
		metrics.WorkflowOutcomes.WithLabelValues(string(m.variant.Kind()), "validation").Inc()
		m.mu.Unlock()
		return err
	}
	img := *m.image
	call := m.variant.Prepare(img)
	m.state = StateSubmitting
	m.message = nil
	m.result = nil
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	outcome, err := call(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.closed {
		log.Printf("%s: dropping stale submission result", m.variant.Kind())
		return nil
	}
	m.gen++
	if err != nil {
		log.Printf("%s: submission failed: %v", m.variant.Kind(), err)
		text := m.variant.FailureText()
		if msg, ok := apiclient.ServerMessage(err); ok {
			text = msg
		}
		m.state = StateError
		m.message = &Message{Text: text, Level: LevelDanger}
		metrics.WorkflowOutcomes.WithLabelValues(string(m.variant.Kind()), string(LevelDanger)).Inc()
		return nil
	}

	metrics.WorkflowOutcomes.WithLabelValues(string(m.variant.Kind()), string(outcome.Level)).Inc()
	m.message = &Message{Text: outcome.Text, Level: outcome.Level}
	m.result = outcome.Result
	if outcome.Level == LevelSuccess {
		m.state = StateResult
	} else {
		m.state = StateError
	}
	if outcome.DiscardImage {
		m.image = nil
	}
	if outcome.ResetForm {
		m.variant.Reset()
	}
	return nil
}

// Close releases the camera and discards everything held. The machine is
// unusable afterwards and any in-flight result is dropped.
func (m *Machine[V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.gen++
	m.image = nil
	m.result = nil
	m.state = StateIdle
	return m.cam.StopLive()
}

func captureFailureText(err error) string {
	switch {
	case errors.Is(err, camera.ErrNoFrame):
		return "Camera has not produced a frame yet, try again"
	case errors.Is(err, camera.ErrNotLive):
		return "Camera is not active"
	default:
		return "Could not capture image"
	}
}
