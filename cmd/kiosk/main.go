// Command kiosk marks attendance once from the newest still in a directory,
// for unattended stations fed by a camera snapshot job.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendanceconsole/internal/apiclient"
	"attendanceconsole/internal/camera"
	"attendanceconsole/internal/config"
	"attendanceconsole/internal/events"
	"attendanceconsole/internal/redisconn"
	"attendanceconsole/internal/workflow"
)

const (
	exitOK       = 0
	exitDanger   = 1
	exitWarning  = 2
	exitBadUsage = 64
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	period := flag.Int("period", workflow.MinPeriod, "class period (1-5)")
	subject := flag.String("subject", "", "subject taught in the period")
	dir := flag.String("dir", cfg.KioskFramesDir, "directory holding camera stills")
	maxAge := flag.Duration("max-age", 10*time.Second, "ignore stills older than this (0 disables)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	api := apiclient.New(cfg.APIBaseURL, cfg.APITimeout, cfg.APISkip)
	notify, closeBus := kioskNotifier(cfg)
	defer closeBus()

	cam := camera.New(camera.NewDirSource(*dir, *maxAge), camera.Options{
		MaxWidth:  cfg.CaptureWidth,
		MaxHeight: cfg.CaptureHeight,
		Quality:   cfg.JPEGQuality,
	})
	view, err := runOnce(ctx, cam, workflow.NewAttendance(api, notify), workflow.Selection{Period: *period, Subject: *subject})
	if err != nil {
		log.Printf("kiosk: %v", err)
	}
	return exitCode(view, err)
}

// runOnce drives one attendance capture from start to result.
func runOnce(ctx context.Context, cam *camera.Camera, att *workflow.Attendance, sel workflow.Selection) (workflow.View, error) {
	m := workflow.New(att, cam)
	defer m.Close()

	if err := m.Update(func(a *workflow.Attendance) error { return a.Select(sel) }); err != nil {
		return m.Snapshot(), err
	}
	if err := m.Start(ctx); err != nil {
		return m.Snapshot(), fmt.Errorf("start camera: %w", err)
	}
	if err := m.Capture(); err != nil {
		return m.Snapshot(), fmt.Errorf("capture: %w", err)
	}
	if err := m.Submit(ctx); err != nil {
		return m.Snapshot(), err
	}
	return m.Snapshot(), nil
}

// exitCode prints the outcome line and maps it to the process exit status.
func exitCode(view workflow.View, err error) int {
	if view.Message != nil {
		fmt.Printf("[%s] %s\n", view.Message.Level, view.Message.Text)
	} else if err != nil {
		fmt.Printf("[%s] %s\n", workflow.LevelDanger, err)
	}
	if err != nil {
		var ve *workflow.ValidationError
		if errors.As(err, &ve) && view.Message == nil {
			return exitBadUsage
		}
		return exitDanger
	}
	if view.Message == nil {
		return exitDanger
	}
	switch view.Message.Level {
	case workflow.LevelSuccess:
		return exitOK
	case workflow.LevelWarning:
		return exitWarning
	default:
		return exitDanger
	}
}

// kioskNotifier publishes marks on the shared bus so console dashboards see
// kiosk check-ins. The in-memory backend has no other process to reach.
func kioskNotifier(cfg config.App) (workflow.MarkedNotifier, func()) {
	switch cfg.EventsBackend {
	case "redis":
		rdb := redisconn.New(cfg.RedisAddr)
		return events.NewNotifier(events.NewRedisBus(rdb.Client, cfg.EventsTopic)), func() { _ = rdb.Close() }
	case "mqtt":
		bus, err := events.NewMQTTBus(cfg.MQTTBroker, cfg.EventsTopic)
		if err != nil {
			log.Printf("WARNING: events disabled: %v", err)
			return nil, func() {}
		}
		return events.NewNotifier(bus), func() { _ = bus.Close() }
	}
	return nil, func() {}
}
