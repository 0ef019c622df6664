// Package events carries attendance notifications from the capture workflow to
// connected dashboards and to any external subscriber.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendanceconsole/internal/metrics"
	"attendanceconsole/internal/workflow"
)

// TypeAttendanceMarked is published after every recognized attendance capture.
const TypeAttendanceMarked = "attendance.marked"

// ErrClosed is returned by a bus after Close.
var ErrClosed = errors.New("events: bus closed")

// Event is one notification on the bus.
type Event struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Body json.RawMessage `json:"body"`
}

// New builds an event of type typ with body encoded as JSON.
func New(typ string, body any) (Event, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s event: %w", typ, err)
	}
	return Event{ID: uuid.NewString(), Type: typ, At: time.Now().UTC(), Body: raw}, nil
}

// Bus is the abstraction over different backends. Every subscriber receives
// every event published after it subscribed.
type Bus interface {
	Publish(ctx context.Context, evt Event) error
	// Subscribe streams events until ctx is done or the bus is closed.
	Subscribe(ctx context.Context) (<-chan Event, error)
	Close() error
}

// InMemory is a channel-backed bus for a single console process.
type InMemory struct {
	size   int
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

// NewInMemory creates a bus whose subscribers buffer up to size events.
// Events are dropped for a subscriber whose buffer is full.
func NewInMemory(size int) *InMemory {
	if size <= 0 {
		size = 16
	}
	return &InMemory{size: size, subs: make(map[chan Event]struct{})}
}

// Publish fans evt out to current subscribers.
func (b *InMemory) Publish(ctx context.Context, evt Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
			log.Printf("events: subscriber buffer full, dropping %s", evt.ID)
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done.
func (b *InMemory) Subscribe(ctx context.Context) (<-chan Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	ch := make(chan Event, b.size)
	b.subs[ch] = struct{}{}
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}()
	return ch, nil
}

// Close ends every subscription.
func (b *InMemory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	return nil
}

// Notifier publishes workflow attendance marks on a bus. Publish failures are
// logged; they never affect the capture result.
type Notifier struct {
	bus Bus
}

// NewNotifier returns a notifier over bus.
func NewNotifier(bus Bus) *Notifier {
	return &Notifier{bus: bus}
}

// AttendanceMarked implements workflow.MarkedNotifier.
func (n *Notifier) AttendanceMarked(ctx context.Context, m workflow.Marked) {
	evt, err := New(TypeAttendanceMarked, m)
	if err != nil {
		log.Printf("events: %v", err)
		metrics.EventsPublished.WithLabelValues(TypeAttendanceMarked, "error").Inc()
		return
	}
	if err := n.bus.Publish(ctx, evt); err != nil {
		log.Printf("events: publish %s failed: %v", evt.Type, err)
		metrics.EventsPublished.WithLabelValues(evt.Type, "error").Inc()
		return
	}
	metrics.EventsPublished.WithLabelValues(evt.Type, "ok").Inc()
}

func decode(payload []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return evt, nil
}
