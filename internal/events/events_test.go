package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendanceconsole/internal/apiclient"
	"attendanceconsole/internal/workflow"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "channel closed")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestInMemoryFansOut(t *testing.T) {
	bus := NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	b, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	evt, err := New(TypeAttendanceMarked, map[string]int{"period": 2})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, evt))

	assert.Equal(t, evt.ID, receive(t, a).ID)
	assert.Equal(t, evt.ID, receive(t, b).ID)
}

func TestInMemorySubscriptionEndsWithContext(t *testing.T) {
	bus := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed")
	}
}

func TestInMemoryClose(t *testing.T) {
	bus := NewInMemory(1)
	ch, err := bus.Subscribe(context.Background())
	require.NoError(t, err)
	require.NoError(t, bus.Close())
	_, ok := <-ch
	assert.False(t, ok)

	assert.ErrorIs(t, bus.Publish(context.Background(), Event{}), ErrClosed)
	_, err = bus.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, bus.Close())
}

func TestInMemoryDropsForSlowSubscriber(t *testing.T) {
	bus := NewInMemory(1)
	ch, err := bus.Subscribe(context.Background())
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), Event{ID: "1"}))
	require.NoError(t, bus.Publish(context.Background(), Event{ID: "2"}))
	assert.Equal(t, "1", receive(t, ch).ID)
	assert.Empty(t, ch)
}

func TestNotifierPublishesMark(t *testing.T) {
	bus := NewInMemory(4)
	ch, err := bus.Subscribe(context.Background())
	require.NoError(t, err)

	NewNotifier(bus).AttendanceMarked(context.Background(), workflow.Marked{
		User:    apiclient.UserProfile{Name: "Ada"},
		Period:  2,
		Subject: "Biology",
	})

	evt := receive(t, ch)
	assert.Equal(t, TypeAttendanceMarked, evt.Type)
	assert.NotEmpty(t, evt.ID)
	var m workflow.Marked
	require.NoError(t, json.Unmarshal(evt.Body, &m))
	assert.Equal(t, "Ada", m.User.Name)
	assert.Equal(t, "Biology", m.Subject)
}

func TestNotifierSurvivesClosedBus(t *testing.T) {
	bus := NewInMemory(1)
	require.NoError(t, bus.Close())
	assert.NotPanics(t, func() {
		NewNotifier(bus).AttendanceMarked(context.Background(), workflow.Marked{})
	})
}

func TestRedisBus(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	bus := NewRedisBus(client, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	evt, err := New(TypeAttendanceMarked, map[string]string{"subject": "Physics"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, evt))

	got := receive(t, ch)
	assert.Equal(t, evt.ID, got.ID)
	assert.JSONEq(t, `{"subject":"Physics"}`, string(got.Body))

	// garbage on the channel is skipped
	mr.Publish("attendance:events", "not json")
	require.NoError(t, bus.Publish(ctx, Event{ID: "next", Type: TypeAttendanceMarked}))
	assert.Equal(t, "next", receive(t, ch).ID)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestMQTTHandleRelaysToSubscribers(t *testing.T) {
	b := &MQTTBus{topic: "attendance/events", local: NewInMemory(4)}
	ch, err := b.Subscribe(context.Background())
	require.NoError(t, err)

	evt, err := New(TypeAttendanceMarked, map[string]int{"period": 5})
	require.NoError(t, err)
	payload, err := json.Marshal(evt)
	require.NoError(t, err)

	b.handle(nil, fakeMessage{topic: b.topic, payload: []byte("{broken")})
	b.handle(nil, fakeMessage{topic: b.topic, payload: payload})

	assert.Equal(t, evt.ID, receive(t, ch).ID)
	require.NoError(t, b.Close())
}
