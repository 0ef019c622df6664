// Package dashboard loads the two headline counts shown on the home page.
package dashboard

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"attendanceconsole/internal/apiclient"
)

// Counter is the slice of the attendance API the dashboard reads.
type Counter interface {
	ListUsers(ctx context.Context) ([]apiclient.UserProfile, error)
	DailyAttendance(ctx context.Context, date string, period int) ([]apiclient.AttendanceRecord, error)
}

// Summary holds the dashboard counts. A failed read leaves its count at zero.
type Summary struct {
	TotalUsers      int       `json:"total_users"`
	TodayAttendance int       `json:"today_attendance"`
	Date            string    `json:"date"`
	LoadedAt        time.Time `json:"loaded_at"`
}

// Aggregator loads the summary once per instance. Later loads return the
// first result unchanged.
type Aggregator struct {
	api     Counter
	now     func() time.Time
	once    sync.Once
	summary Summary
}

// New returns an aggregator that has not loaded yet.
func New(api Counter) *Aggregator {
	return &Aggregator{api: api, now: time.Now}
}

// Load fetches both counts concurrently on the first call.
func (a *Aggregator) Load(ctx context.Context) Summary {
	a.once.Do(func() { a.summary = a.fetch(ctx) })
	return a.summary
}

func (a *Aggregator) fetch(ctx context.Context) Summary {
	now := a.now()
	s := Summary{Date: now.Format("2006-01-02"), LoadedAt: now}

	var g errgroup.Group
	g.Go(func() error {
		users, err := a.api.ListUsers(ctx)
		if err != nil {
			log.Printf("dashboard: list users failed: %v", err)
			return nil
		}
		s.TotalUsers = len(users)
		return nil
	})
	var today int
	g.Go(func() error {
		recs, err := a.api.DailyAttendance(ctx, s.Date, 0)
		if err != nil {
			log.Printf("dashboard: today's attendance failed: %v", err)
			return nil
		}
		today = len(recs)
		return nil
	})
	_ = g.Wait()
	s.TodayAttendance = today
	return s
}
