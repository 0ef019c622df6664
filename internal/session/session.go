// Package session keeps one set of capture workflows per operator browser.
// Sessions live in memory and are closed, releasing their cameras, when idle
// past their TTL or when the console shuts down.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendanceconsole/internal/camera"
	"attendanceconsole/internal/dashboard"
	"attendanceconsole/internal/metrics"
	"attendanceconsole/internal/workflow"
)

// Services are the collaborators every session is built from.
type Services struct {
	Registrar  workflow.Registrar
	Recognizer workflow.Recognizer
	Counter    dashboard.Counter
	// Notifier may be nil.
	Notifier workflow.MarkedNotifier
	Camera   camera.Options
}

// Session is one operator's workflows and camera feeds.
type Session struct {
	ID           string
	Registration *workflow.Machine[*workflow.Registration]
	Attendance   *workflow.Machine[*workflow.Attendance]
	Dashboard    *dashboard.Aggregator

	feeds map[workflow.Kind]*camera.PushSource
}

// Feed returns the browser-fed frame source of a flow.
func (s *Session) Feed(kind workflow.Kind) (*camera.PushSource, bool) {
	src, ok := s.feeds[kind]
	return src, ok
}

func (s *Session) close() {
	if err := s.Registration.Close(); err != nil {
		log.Printf("session %s: close registration: %v", s.ID, err)
	}
	if err := s.Attendance.Close(); err != nil {
		log.Printf("session %s: close attendance: %v", s.ID, err)
	}
}

// Browsers push a frame every 200ms; a feed silent for longer than this has
// been abandoned.
const feedMaxAge = 5 * time.Second

func newSession(id string, svc Services) *Session {
	regSrc := camera.NewPushSource(feedMaxAge)
	attSrc := camera.NewPushSource(feedMaxAge)
	return &Session{
		ID:           id,
		Registration: workflow.New(workflow.NewRegistration(svc.Registrar), camera.New(regSrc, svc.Camera)),
		Attendance:   workflow.New(workflow.NewAttendance(svc.Recognizer, svc.Notifier), camera.New(attSrc, svc.Camera)),
		Dashboard:    dashboard.New(svc.Counter),
		feeds: map[workflow.Kind]*camera.PushSource{
			workflow.KindRegistration: regSrc,
			workflow.KindAttendance:   attSrc,
		},
	}
}

type entry struct {
	s        *Session
	lastSeen time.Time
}

// Manager owns all live sessions.
type Manager struct {
	svc Services
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewManager returns a manager expiring sessions idle for ttl.
func NewManager(svc Services, ttl time.Duration) *Manager {
	return &Manager{svc: svc, ttl: ttl, now: time.Now, sessions: make(map[string]*entry)}
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := newSession(uuid.NewString(), m.svc)
	m.mu.Lock()
	m.sessions[s.ID] = &entry{s: s, lastSeen: m.now()}
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
	return s
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = m.now()
	return e.s, true
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle past the TTL and returns how many it closed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)
	var expired []*Session
	m.mu.Lock()
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e.s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	metrics.ActiveSessions.Set(float64(n))
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				log.Printf("expired %d idle session(s)", n)
			}
		}
	}
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()
	for _, e := range all {
		e.s.close()
	}
	metrics.ActiveSessions.Set(0)
}
