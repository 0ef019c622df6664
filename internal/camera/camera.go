// Package camera owns the live feed behind a capture workflow and turns its
// latest frame into a single encoded still.
package camera

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotLive is returned when no feed is attached.
	ErrNotLive = errors.New("camera: no live feed")
	// ErrNoFrame is returned when the feed has not produced a frame yet.
	ErrNoFrame = errors.New("camera: feed has not produced a frame yet")
)

// Source is a camera device. Open acquires it, Close releases it, and Frame
// returns the most recent encoded frame (JPEG, PNG or WebP bytes).
type Source interface {
	Open(ctx context.Context) error
	Frame() ([]byte, error)
	Close() error
}

// CapturedImage is one still taken from the feed, encoded as a JPEG data URI.
type CapturedImage struct {
	DataURI    string    `json:"image"`
	CapturedAt time.Time `json:"captured_at"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
}

// Camera wraps a Source with the live/capture/stop contract.
type Camera struct {
	mu   sync.Mutex
	src  Source
	live bool
	opts Options
	now  func() time.Time
}

// New creates a camera over src. Zero options fall back to DefaultOptions.
func New(src Source, opts Options) *Camera {
	return &Camera{src: src, opts: opts.withDefaults(), now: time.Now}
}

// StartLive activates the feed. Calling it while live is a no-op.
func (c *Camera) StartLive(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live {
		return nil
	}
	if c.src == nil {
		return ErrNotLive
	}
	if err := c.src.Open(ctx); err != nil {
		return err
	}
	c.live = true
	return nil
}

// Live reports whether the feed is currently held.
func (c *Camera) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// CaptureFrame grabs the current frame as a still. It does not stop the feed;
// the workflow decides when to release it.
func (c *Camera) CaptureFrame() (*CapturedImage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live || c.src == nil {
		return nil, ErrNotLive
	}
	raw, err := c.src.Frame()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNoFrame
	}
	uri, w, h, err := EncodeStill(raw, c.opts)
	if err != nil {
		return nil, err
	}
	return &CapturedImage{DataURI: uri, CapturedAt: c.now(), Width: w, Height: h}, nil
}

// StopLive releases the feed. It is safe to call when not live.
func (c *Camera) StopLive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live {
		return nil
	}
	c.live = false
	return c.src.Close()
}
