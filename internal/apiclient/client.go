package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"attendanceconsole/internal/metrics"
)

// APIError is a non-2xx answer from the attendance API.
// Message carries the server's "error" text and is empty when none was sent.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("attendance api error %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("attendance api error %d: %s", e.Status, e.Message)
}

// ServerMessage returns the server-provided error text of err, if any.
func ServerMessage(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}

// Client calls the attendance API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client with the given request timeout.
// With skip set, every call answers canned data without touching the network.
func New(baseURL string, timeout time.Duration, skip bool) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Skip:    skip,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// ListUsers returns every registered user.
func (c *Client) ListUsers(ctx context.Context) ([]UserProfile, error) {
	if c.Skip {
		return []UserProfile{{UserID: "mock-user", Name: "Mock User", Email: "mock@example.com", Role: RoleStudent}}, nil
	}
	var out struct {
		Users []UserProfile `json:"users"`
	}
	if err := c.do(ctx, "users", http.MethodGet, "/api/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// Register creates a user together with its enrollment image.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if c.Skip {
		return &RegisterResult{UserID: "mock-user", Message: "User registered successfully"}, nil
	}
	var out RegisterResult
	if err := c.do(ctx, "register", http.MethodPost, "/api/register", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Recognize submits a captured frame for matching. A 404 answer is folded into
// a negative result so callers only ever look at Recognized.
func (c *Client) Recognize(ctx context.Context, req RecognizeRequest) (*RecognitionResult, error) {
	if c.Skip {
		return &RecognitionResult{
			Recognized: true,
			User:       UserProfile{UserID: "mock-user", Name: "Mock User", Email: "mock@example.com", Department: "Mock"},
			Timestamp:  time.Now().Format(time.RFC3339),
		}, nil
	}
	if req.Image == "" {
		return nil, fmt.Errorf("image required")
	}
	var out RecognitionResult
	err := c.do(ctx, "recognize", http.MethodPost, "/api/recognize", nil, req, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return &RecognitionResult{Recognized: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DailyAttendance lists check-ins for a date. Period 0 means every period.
func (c *Client) DailyAttendance(ctx context.Context, date string, period int) ([]AttendanceRecord, error) {
	if c.Skip {
		return []AttendanceRecord{}, nil
	}
	q := url.Values{}
	q.Set("date", date)
	if period > 0 {
		q.Set("period", strconv.Itoa(period))
	}
	var out struct {
		Attendance []AttendanceRecord `json:"attendance"`
	}
	if err := c.do(ctx, "attendance", http.MethodGet, "/api/attendance", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Attendance, nil
}

// MonthlyAttendance returns the aggregate for month (YYYY-MM). An empty
// department is sent as "all".
func (c *Client) MonthlyAttendance(ctx context.Context, month, department string) ([]MonthlySummary, error) {
	if c.Skip {
		return []MonthlySummary{}, nil
	}
	if department == "" {
		department = "all"
	}
	q := url.Values{}
	q.Set("month", month)
	q.Set("department", department)
	var out struct {
		Attendance []MonthlySummary `json:"attendance"`
	}
	if err := c.do(ctx, "attendance_monthly", http.MethodGet, "/api/attendance/monthly", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Attendance, nil
}

// Departments returns the distinct department names.
func (c *Client) Departments(ctx context.Context) ([]string, error) {
	if c.Skip {
		return []string{"Mock"}, nil
	}
	var out struct {
		Departments []string `json:"departments"`
	}
	if err := c.do(ctx, "departments", http.MethodGet, "/api/departments", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Departments, nil
}

// Health checks that the attendance API answers.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	if err := c.do(ctx, "health", http.MethodGet, "/api/departments", nil, nil, nil); err != nil {
		return fmt.Errorf("attendance api unavailable: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, in, out any) error {
	start := time.Now()
	defer func() {
		metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		metrics.APIRequests.WithLabelValues(endpoint, "transport_error").Inc()
		return fmt.Errorf("attendance api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{Status: resp.StatusCode, Message: errorText(bodyBytes)}
	}
	metrics.APIRequests.WithLabelValues(endpoint, "ok").Inc()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorText pulls the "error" field out of a JSON error body.
func errorText(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Error)
}
