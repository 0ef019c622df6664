package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env      string
	HTTPPort string

	// Attendance API the console fronts.
	APIBaseURL string
	APITimeout time.Duration
	APISkip    bool

	SessionSecret string
	SessionIssuer string
	SessionTTL    time.Duration

	// Origins allowed to call the console cross-origin. Empty means same-origin only.
	CORSOrigins []string

	EventsBackend string
	EventsTopic   string
	RedisAddr     string
	MQTTBroker    string

	RateLimitPerMin  int
	RateLimitBackend string

	CaptureWidth   int
	CaptureHeight  int
	JPEGQuality    int
	KioskFramesDir string
}

// Load returns application config populated from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() App {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env: %v", err)
	}

	return App{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPPort:         getEnv("HTTP_PORT", "9000"),
		APIBaseURL:       getEnv("API_BASE_URL", "http://localhost:5000"),
		APITimeout:       durationEnv("API_TIMEOUT", 30*time.Second),
		APISkip:          boolEnv("API_SKIP", false),
		SessionSecret:    getEnv("SESSION_SECRET", "dev-session-secret-change"),
		SessionIssuer:    getEnv("SESSION_ISSUER", "attendance-console"),
		SessionTTL:       durationEnv("SESSION_TTL", 2*time.Hour),
		CORSOrigins:      listEnv("CORS_ORIGINS"),
		EventsBackend:    getEnv("EVENTS_BACKEND", "memory"),
		EventsTopic:      getEnv("EVENTS_TOPIC", "attendance/events"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		MQTTBroker:       getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		RateLimitPerMin:  intEnv("RATE_LIMIT_PER_MIN", 240),
		RateLimitBackend: getEnv("RATE_LIMIT_BACKEND", "memory"),
		CaptureWidth:     intEnv("CAPTURE_WIDTH", 480),
		CaptureHeight:    intEnv("CAPTURE_HEIGHT", 360),
		JPEGQuality:      intEnv("JPEG_QUALITY", 90),
		KioskFramesDir:   getEnv("KIOSK_FRAMES_DIR", "./frames"),
	}
}

// Production reports whether the console runs with release settings.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}

func listEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
