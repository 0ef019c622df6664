package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendanceconsole/internal/camera"
	"attendanceconsole/internal/session"
	"attendanceconsole/internal/workflow"
)

// flowMachine is the part of workflow.Machine the handlers drive, common to
// both variants.
type flowMachine interface {
	Start(ctx context.Context) error
	Capture() error
	Retake(ctx context.Context) error
	Reset(ctx context.Context) error
	Submit(ctx context.Context) error
	Snapshot() workflow.View
	LiveToken() (uint64, bool)
	Stop(token uint64) error
}

// flowResponse is the workflow view plus the reason an action was refused.
type flowResponse struct {
	workflow.View
	Error string `json:"error,omitempty"`
}

func machineFor(s *session.Session, flow string) (flowMachine, bool) {
	switch workflow.Kind(flow) {
	case workflow.KindRegistration:
		return s.Registration, true
	case workflow.KindAttendance:
		return s.Attendance, true
	}
	return nil, false
}

// FlowState returns the current view of a flow.
func (h *Handler) FlowState(c *gin.Context) {
	m, ok := machineFor(session.From(c), c.Param("flow"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown flow"})
		return
	}
	c.JSON(http.StatusOK, flowResponse{View: m.Snapshot()})
}

// FlowAction applies start, stop, capture, retake, submit or reset.
func (h *Handler) FlowAction(c *gin.Context) {
	m, ok := machineFor(session.From(c), c.Param("flow"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown flow"})
		return
	}
	ctx := c.Request.Context()
	var err error
	switch c.Param("action") {
	case "start":
		err = m.Start(ctx)
	case "capture":
		err = m.Capture()
	case "retake":
		err = m.Retake(ctx)
	case "reset":
		err = m.Reset(ctx)
	case "stop":
		if token, live := m.LiveToken(); live {
			err = m.Stop(token)
		}
	case "submit":
		// The operator cannot cancel a submission; closing the tab must not either.
		err = m.Submit(context.WithoutCancel(ctx))
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown action"})
		return
	}
	respondFlow(c, m.Snapshot(), err)
}

// UpdateRegistrationForm replaces the registration form.
func (h *Handler) UpdateRegistrationForm(c *gin.Context) {
	var form workflow.RegistrationForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m := session.From(c).Registration
	err := m.Update(func(r *workflow.Registration) error {
		r.SetForm(form)
		return nil
	})
	respondFlow(c, m.Snapshot(), err)
}

// UpdateAttendanceSelection sets the period and subject.
func (h *Handler) UpdateAttendanceSelection(c *gin.Context) {
	var sel workflow.Selection
	if err := c.ShouldBindJSON(&sel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m := session.From(c).Attendance
	err := m.Update(func(a *workflow.Attendance) error { return a.Select(sel) })
	respondFlow(c, m.Snapshot(), err)
}

func respondFlow(c *gin.Context, view workflow.View, err error) {
	if err == nil {
		c.JSON(http.StatusOK, flowResponse{View: view})
		return
	}
	var ve *workflow.ValidationError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, workflow.ErrBusy), errors.Is(err, workflow.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrClosed):
		status = http.StatusGone
	case errors.Is(err, camera.ErrNoFrame), errors.Is(err, camera.ErrNotLive):
		status = http.StatusConflict
	}
	c.JSON(status, flowResponse{View: view, Error: err.Error()})
}
