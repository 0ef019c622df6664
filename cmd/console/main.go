package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"attendanceconsole/internal/apiclient"
	"attendanceconsole/internal/camera"
	"attendanceconsole/internal/config"
	"attendanceconsole/internal/events"
	"attendanceconsole/internal/httpmiddleware"
	"attendanceconsole/internal/redisconn"
	"attendanceconsole/internal/report"
	"attendanceconsole/internal/server"
	"attendanceconsole/internal/session"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := apiclient.New(cfg.APIBaseURL, cfg.APITimeout, cfg.APISkip)
	if cfg.APISkip {
		log.Println("API_SKIP set, attendance API calls answer canned data")
	} else if err := api.Health(ctx); err != nil {
		log.Printf("WARNING: %v", err)
	} else {
		log.Printf("Attendance API: %s", cfg.APIBaseURL)
	}

	var redisClient *redisconn.Redis
	if cfg.EventsBackend == "redis" || cfg.RateLimitBackend == "redis" {
		redisClient = redisconn.New(cfg.RedisAddr)
		defer redisClient.Close()
		if st := redisClient.Check(ctx); !st.OK {
			log.Printf("warning: redis not reachable at %s: %s", cfg.RedisAddr, st.Error)
		}
	}

	bus, err := newBus(cfg, redisClient)
	if err != nil {
		return err
	}
	defer bus.Close()

	var limiter httpmiddleware.Limiter
	if cfg.RateLimitBackend == "redis" {
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin)
	} else {
		limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	hub := server.NewHub()
	go hub.Start(ctx)
	go func() {
		if err := hub.Relay(ctx, bus); err != nil {
			log.Printf("event relay stopped: %v", err)
		}
	}()

	sessions := session.NewManager(session.Services{
		Registrar:  api,
		Recognizer: api,
		Counter:    api,
		Notifier:   events.NewNotifier(bus),
		Camera: camera.Options{
			MaxWidth:  cfg.CaptureWidth,
			MaxHeight: cfg.CaptureHeight,
			Quality:   cfg.JPEGQuality,
		},
	}, cfg.SessionTTL)
	go sessions.Run(ctx, time.Minute)
	defer sessions.CloseAll()

	r, err := server.NewRouter(server.Deps{
		API:            api,
		Reports:        report.New(api),
		Sessions:       sessions,
		Signer:         session.NewSigner(cfg.SessionSecret, cfg.SessionIssuer, cfg.SessionTTL),
		Hub:            hub,
		Limiter:        limiter,
		Redis:          redisClient,
		SecureCookies:  cfg.Production(),
		AllowedOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		return err
	}

	// Graceful shutdown
	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Submissions wait on the attendance API.
		WriteTimeout: cfg.APITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting console on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down console...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Console exited")
	return nil
}

func newBus(cfg config.App, redisClient *redisconn.Redis) (events.Bus, error) {
	switch cfg.EventsBackend {
	case "memory", "":
		return events.NewInMemory(64), nil
	case "redis":
		return events.NewRedisBus(redisClient.Client, cfg.EventsTopic), nil
	case "mqtt":
		bus, err := events.NewMQTTBus(cfg.MQTTBroker, cfg.EventsTopic)
		if err != nil {
			return nil, fmt.Errorf("events: %w", err)
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("unknown EVENTS_BACKEND %q", cfg.EventsBackend)
	}
}
