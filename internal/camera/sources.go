package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// PushSource is fed by the operator's browser over the camera socket. Only
// the latest frame is kept, and frames pushed while closed are dropped.
type PushSource struct {
	maxAge time.Duration
	now    func() time.Time

	mu      sync.Mutex
	open    bool
	latest  []byte
	updated time.Time
}

// NewPushSource returns a closed push source. Frames older than maxAge are
// not handed out; zero keeps the latest frame indefinitely.
func NewPushSource(maxAge time.Duration) *PushSource {
	return &PushSource{maxAge: maxAge, now: time.Now}
}

// Open starts a fresh feed; frames from a previous feed are discarded.
func (p *PushSource) Open(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = true
	p.latest = nil
	return nil
}

// Push stores frame as the latest one. It returns ErrNotLive when the feed is closed.
func (p *PushSource) Push(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return ErrNotLive
	}
	p.latest = append(p.latest[:0], frame...)
	p.updated = p.now()
	return nil
}

// Frame returns a copy of the latest frame. A frame older than maxAge
// counts as no frame: the browser stopped sending.
func (p *PushSource) Frame() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil, ErrNotLive
	}
	if len(p.latest) == 0 {
		return nil, ErrNoFrame
	}
	if p.maxAge > 0 && p.now().Sub(p.updated) > p.maxAge {
		return nil, ErrNoFrame
	}
	out := make([]byte, len(p.latest))
	copy(out, p.latest)
	return out, nil
}

// Close releases the feed and drops the held frame.
func (p *PushSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	p.latest = nil
	return nil
}

var stillExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// DirSource reads the newest still written into a directory, e.g. by an IP
// camera snapshot job. Stills older than MaxAge are not frames; zero accepts any.
type DirSource struct {
	Dir    string
	MaxAge time.Duration

	mu   sync.Mutex
	open bool
}

// NewDirSource returns a source over dir.
func NewDirSource(dir string, maxAge time.Duration) *DirSource {
	return &DirSource{Dir: dir, MaxAge: maxAge}
}

// Open checks the directory exists.
func (d *DirSource) Open(context.Context) error {
	info, err := os.Stat(d.Dir)
	if err != nil {
		return fmt.Errorf("camera: open frames dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("camera: %s is not a directory", d.Dir)
	}
	d.mu.Lock()
	d.open = true
	d.mu.Unlock()
	return nil
}

// Frame returns the newest still in the directory.
func (d *DirSource) Frame() ([]byte, error) {
	d.mu.Lock()
	open := d.open
	d.mu.Unlock()
	if !open {
		return nil, ErrNotLive
	}

	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("camera: read frames dir: %w", err)
	}
	var newest string
	var newestAt time.Time
	for _, e := range entries {
		if e.IsDir() || !stillExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if d.MaxAge > 0 && time.Since(info.ModTime()) > d.MaxAge {
			continue
		}
		if newest == "" || info.ModTime().After(newestAt) {
			newest, newestAt = e.Name(), info.ModTime()
		}
	}
	if newest == "" {
		return nil, ErrNoFrame
	}
	return os.ReadFile(filepath.Join(d.Dir, newest))
}

// Close releases the source.
func (d *DirSource) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}
