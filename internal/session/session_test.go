package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendanceconsole/internal/apiclient"
	"attendanceconsole/internal/camera"
	"attendanceconsole/internal/workflow"
)

func testServices() Services {
	api := apiclient.New("http://127.0.0.1:0", time.Second, true)
	return Services{Registrar: api, Recognizer: api, Counter: api}
}

func TestSignerRoundTrip(t *testing.T) {
	s := NewSigner("secret", "console", time.Hour)
	tok, exp, err := s.Issue("abc")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := s.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "abc", claims.SessionID)

	_, err = NewSigner("other", "console", time.Hour).Parse(tok)
	assert.Error(t, err)
	_, err = NewSigner("secret", "elsewhere", time.Hour).Parse(tok)
	assert.Error(t, err)

	expired, _, err := NewSigner("secret", "console", -time.Minute).Issue("abc")
	require.NoError(t, err)
	_, err = s.Parse(expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestSweepClosesIdleSessions(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	m := NewManager(testServices(), 10*time.Minute)
	m.now = func() time.Time { return now }

	stale := m.Create()
	require.NoError(t, stale.Attendance.Start(context.Background()))
	feed, ok := stale.Feed(workflow.KindAttendance)
	require.True(t, ok)
	require.NoError(t, feed.Push([]byte("frame")))

	now = now.Add(6 * time.Minute)
	fresh := m.Create()
	now = now.Add(6 * time.Minute)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
	_, ok = m.Get(stale.ID)
	assert.False(t, ok)
	_, ok = m.Get(fresh.ID)
	assert.True(t, ok)

	assert.ErrorIs(t, feed.Push([]byte("frame")), camera.ErrNotLive, "expired session releases its camera")
	assert.ErrorIs(t, stale.Attendance.Start(context.Background()), workflow.ErrClosed)
}

func TestCloseAll(t *testing.T) {
	m := NewManager(testServices(), time.Hour)
	s := m.Create()
	require.NoError(t, s.Registration.Start(context.Background()))
	m.CloseAll()
	assert.Zero(t, m.Len())
	feed, _ := s.Feed(workflow.KindRegistration)
	assert.ErrorIs(t, feed.Push([]byte("frame")), camera.ErrNotLive)
}

func TestMiddlewareReusesSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewManager(testServices(), time.Hour)
	signer := NewSigner("secret", "console", time.Hour)

	r := gin.New()
	r.Use(Middleware(m, signer, false))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, From(c).ID) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	first := w.Body.String()
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, first, w.Body.String())
	assert.Empty(t, w.Result().Cookies())
	assert.Equal(t, 1, m.Len())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, first, w.Body.String())
	assert.Equal(t, 2, m.Len())
}
