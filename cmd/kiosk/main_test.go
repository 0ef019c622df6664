package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendanceconsole/internal/apiclient"
	"attendanceconsole/internal/camera"
	"attendanceconsole/internal/workflow"
)

func writeStill(t *testing.T, dir string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 40, 30))))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame.png"), buf.Bytes(), 0o600))
}

func kioskAPI(t *testing.T, status int, body string) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return apiclient.New(srv.URL, 5*time.Second, false)
}

func TestRunOnceOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		level  workflow.Level
		code   int
	}{
		{"recognized", http.StatusOK, `{"recognized":true,"user":{"name":"Ada"}}`, workflow.LevelSuccess, exitOK},
		{"not recognized", http.StatusNotFound, `{"error":"no match"}`, workflow.LevelWarning, exitWarning},
		{"server error", http.StatusInternalServerError, `{"error":"db down"}`, workflow.LevelDanger, exitDanger},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeStill(t, dir)
			cam := camera.New(camera.NewDirSource(dir, 0), camera.Options{})
			att := workflow.NewAttendance(kioskAPI(t, tc.status, tc.body), nil)

			view, err := runOnce(context.Background(), cam, att, workflow.Selection{Period: 3, Subject: "Psychology"})
			require.NoError(t, err)
			require.NotNil(t, view.Message)
			assert.Equal(t, tc.level, view.Message.Level)
			assert.Equal(t, tc.code, exitCode(view, err))
			assert.False(t, cam.Live())
		})
	}
}

func TestRunOnceWithoutStill(t *testing.T) {
	cam := camera.New(camera.NewDirSource(t.TempDir(), 0), camera.Options{})
	att := workflow.NewAttendance(kioskAPI(t, http.StatusOK, `{}`), nil)
	view, err := runOnce(context.Background(), cam, att, workflow.Selection{Period: 1, Subject: "English"})
	require.ErrorIs(t, err, camera.ErrNoFrame)
	assert.Equal(t, exitDanger, exitCode(view, err))
}

func TestRunOnceBadSelection(t *testing.T) {
	cam := camera.New(camera.NewDirSource(t.TempDir(), 0), camera.Options{})
	att := workflow.NewAttendance(kioskAPI(t, http.StatusOK, `{}`), nil)
	view, err := runOnce(context.Background(), cam, att, workflow.Selection{Period: 1, Subject: "Biology"})
	require.Error(t, err)
	assert.Equal(t, exitBadUsage, exitCode(view, err))
}
