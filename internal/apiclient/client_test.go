package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second, false)
}

func TestRegisterSendsJSONAndDecodesNumericID(t *testing.T) {
	var got RegisterRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/register", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"User registered successfully","user_id":7}`))
	})

	res, err := c.Register(context.Background(), RegisterRequest{Name: "Ada", Email: "ada@x.com", Role: RoleStudent, Image: "data:image/jpeg;base64,AAAA"})
	require.NoError(t, err)
	assert.Equal(t, ID("7"), res.UserID)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "ada@x.com", got.Email)
	assert.Equal(t, RoleStudent, got.Role)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", got.Image)
}

func TestRegisterConflictCarriesServerText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"User already exists"}`))
	})

	_, err := c.Register(context.Background(), RegisterRequest{Name: "Ada"})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	msg, ok := ServerMessage(err)
	assert.True(t, ok)
	assert.Equal(t, "User already exists", msg)
}

func TestRecognizeNotFoundIsNegativeResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"recognized":false}`))
	})

	res, err := c.Recognize(context.Background(), RecognizeRequest{Image: "data:image/jpeg;base64,AAAA", Period: 2, Subject: "Biology"})
	require.NoError(t, err)
	assert.False(t, res.Recognized)
}

func TestRecognizeSuccess(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"recognized":true,"user":{"user_id":"u1","name":"Ada","email":"ada@x.com","department":"CS"},"attendance_id":"a1","timestamp":"2025-03-04T09:15:00.123456"}`))
	})

	res, err := c.Recognize(context.Background(), RecognizeRequest{Image: "img", Period: 2, Subject: "Biology"})
	require.NoError(t, err)
	assert.True(t, res.Recognized)
	assert.Equal(t, "Ada", res.User.Name)
	assert.Equal(t, ID("a1"), res.AttendanceID)
	assert.Equal(t, 9, res.Time().Hour())
	assert.EqualValues(t, 2, got["period"])
	assert.Equal(t, "Biology", got["subject"])
}

func TestRecognizeServerErrorIsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Recognize(context.Background(), RecognizeRequest{Image: "img"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	_, ok := ServerMessage(err)
	assert.False(t, ok)
}

func TestQueriesEncodeParameters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/attendance":
			assert.Equal(t, "2025-03-04", r.URL.Query().Get("date"))
			assert.Equal(t, "3", r.URL.Query().Get("period"))
			_, _ = w.Write([]byte(`{"attendance":[{"user_name":"Ada","period":3,"subject":"Mathematics","time":"09:00:00"}]}`))
		case "/api/attendance/monthly":
			assert.Equal(t, "2025-03", r.URL.Query().Get("month"))
			assert.Equal(t, "all", r.URL.Query().Get("department"))
			_, _ = w.Write([]byte(`{"attendance":[{"user_id":1,"user_name":"Ada","department":"CS","total_classes":105,"classes_attended":80,"attendance_percentage":76.19}]}`))
		case "/api/departments":
			_, _ = w.Write([]byte(`{"departments":["CS","Physics"]}`))
		case "/api/users":
			_, _ = w.Write([]byte(`{"users":[{"user_id":"u1","name":"Ada","email":"ada@x.com"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	daily, err := c.DailyAttendance(ctx, "2025-03-04", 3)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, "Mathematics", daily[0].Subject)

	monthly, err := c.MonthlyAttendance(ctx, "2025-03", "")
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	assert.Equal(t, ID("1"), monthly[0].UserID)
	assert.InDelta(t, 76.19, monthly[0].AttendancePercentage, 0.001)

	depts, err := c.Departments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"CS", "Physics"}, depts)

	users, err := c.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, c.Health(ctx))
}

func TestTransportFailureIsNotAPIError(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second, false)
	_, err := c.ListUsers(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestSkipModeNeverDials(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second, true)
	res, err := c.Recognize(context.Background(), RecognizeRequest{})
	require.NoError(t, err)
	assert.True(t, res.Recognized)
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{"2025-03-04T09:15:00Z", "2025-03-04T09:15:00.5", "2025-03-04 09:15:00"} {
		ts, ok := ParseTimestamp(s)
		assert.True(t, ok, s)
		assert.Equal(t, 15, ts.Minute(), s)
	}
	_, ok := ParseTimestamp("yesterday")
	assert.False(t, ok)
}
