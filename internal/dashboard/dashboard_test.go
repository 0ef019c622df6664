package dashboard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"attendanceconsole/internal/apiclient"
)

type fakeCounter struct {
	users    []apiclient.UserProfile
	records  []apiclient.AttendanceRecord
	usersErr error
	recsErr  error

	userCalls atomic.Int32
	recCalls  atomic.Int32
	date      atomic.Value
}

func (f *fakeCounter) ListUsers(context.Context) ([]apiclient.UserProfile, error) {
	f.userCalls.Add(1)
	return f.users, f.usersErr
}

func (f *fakeCounter) DailyAttendance(_ context.Context, date string, _ int) ([]apiclient.AttendanceRecord, error) {
	f.recCalls.Add(1)
	f.date.Store(date)
	return f.records, f.recsErr
}

func newAggregator(c Counter) *Aggregator {
	a := New(c)
	a.now = func() time.Time { return time.Date(2025, 3, 14, 8, 0, 0, 0, time.Local) }
	return a
}

func TestLoadCountsBoth(t *testing.T) {
	c := &fakeCounter{
		users:   make([]apiclient.UserProfile, 12),
		records: make([]apiclient.AttendanceRecord, 4),
	}
	s := newAggregator(c).Load(context.Background())
	assert.Equal(t, 12, s.TotalUsers)
	assert.Equal(t, 4, s.TodayAttendance)
	assert.Equal(t, "2025-03-14", c.date.Load())
}

func TestLoadOnlyFetchesOnce(t *testing.T) {
	c := &fakeCounter{users: make([]apiclient.UserProfile, 2)}
	a := newAggregator(c)
	first := a.Load(context.Background())
	c.users = make([]apiclient.UserProfile, 9)
	second := a.Load(context.Background())

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, c.userCalls.Load())
	assert.EqualValues(t, 1, c.recCalls.Load())
}

func TestFailedReadLeavesZero(t *testing.T) {
	c := &fakeCounter{
		usersErr: errors.New("connection refused"),
		records:  make([]apiclient.AttendanceRecord, 3),
	}
	s := newAggregator(c).Load(context.Background())
	assert.Zero(t, s.TotalUsers)
	assert.Equal(t, 3, s.TodayAttendance)
}
