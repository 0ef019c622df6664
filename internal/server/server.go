// Package server wires the console's gin router: operator pages, workflow and
// report endpoints, camera and event sockets, and the /api pass-through.
package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendanceconsole/internal/apiclient"
	"attendanceconsole/internal/httpmiddleware"
	"attendanceconsole/internal/redisconn"
	"attendanceconsole/internal/report"
	"attendanceconsole/internal/session"
)

// Deps are the collaborators the router serves from.
type Deps struct {
	API      *apiclient.Client
	Reports  *report.Service
	Sessions *session.Manager
	Signer   *session.Signer
	Hub      *Hub
	Limiter  httpmiddleware.Limiter
	// Redis is checked by /healthz when set.
	Redis *redisconn.Redis
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	// AllowedOrigins may call the console cross-origin with credentials.
	// Empty serves same-origin only.
	AllowedOrigins []string
}

// Handler serves the console endpoints.
type Handler struct {
	api      *apiclient.Client
	reports  *report.Service
	sessions *session.Manager
	hub      *Hub
	redis    *redisconn.Redis
}

// NewRouter builds the console router.
func NewRouter(d Deps) (*gin.Engine, error) {
	pages, err := loadPages()
	if err != nil {
		return nil, err
	}
	proxy, err := apiProxy(d.API.BaseURL)
	if err != nil {
		return nil, err
	}
	h := &Handler{api: d.API, reports: d.Reports, sessions: d.Sessions, hub: d.Hub, redis: d.Redis}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			AllowCredentials: true,
			MaxAge:           24 * time.Hour,
		}))
	}
	r.Use(httpmiddleware.SecurityHeaders())
	r.SetHTMLTemplate(pages)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)
	r.StaticFS("/static", staticFS())

	// Same-origin pass-through so browser tools can reach the attendance API.
	r.Any("/api/*path", httpmiddleware.RateLimit(d.Limiter), gin.WrapH(proxy))

	sess := r.Group("/", session.Middleware(d.Sessions, d.Signer, d.SecureCookies))
	{
		sess.GET("/", page("index.html", "Dashboard"))
		sess.GET("/register", page("register.html", "Register User"))
		sess.GET("/capture", page("capture.html", "Capture Attendance"))
		sess.GET("/report", page("report.html", "Attendance Report"))

		sess.GET("/ws/camera", h.CameraSocket)
		sess.GET("/ws/events", h.EventsSocket)
	}

	console := r.Group("/console",
		httpmiddleware.RateLimit(d.Limiter),
		session.Middleware(d.Sessions, d.Signer, d.SecureCookies),
	)
	{
		console.GET("/:flow", h.FlowState)
		console.POST("/:flow/:action", h.FlowAction)
		console.PUT("/register/form", h.UpdateRegistrationForm)
		console.PUT("/attendance/selection", h.UpdateAttendanceSelection)

		console.GET("/reports/daily", h.DailyReport)
		console.GET("/reports/daily.csv", h.DailyCSV)
		console.GET("/reports/monthly", h.MonthlyReport)
		console.GET("/reports/monthly.csv", h.MonthlyCSV)
		console.GET("/reports/recent", h.RecentAttendance)
		console.GET("/departments", h.Departments)
		console.GET("/subjects", h.Subjects)
		console.GET("/dashboard", h.Dashboard)
	}

	return r, nil
}

// Healthz reports attendance API reachability, Redis when configured, and
// how many operator sessions and dashboard sockets are held.
func (h *Handler) Healthz(c *gin.Context) {
	apiErr := h.api.Health(c.Request.Context())
	body := gin.H{
		"status":        "ok",
		"api":           apiErr == nil,
		"sessions":      h.sessions.Len(),
		"event_sockets": h.hub.Clients(),
	}
	status := http.StatusOK
	if apiErr != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	if h.redis != nil {
		st := h.redis.Check(c.Request.Context())
		body["redis"] = st
		if !st.OK {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func apiProxy(base string) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(base)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", base)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"attendance API unreachable"}`))
	}
	return proxy, nil
}
