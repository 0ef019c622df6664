package camera

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const jpegDataURIPrefix = "data:image/jpeg;base64,"

// Options bound the still produced by a capture.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// DefaultOptions mirror the capture constraints of the operator pages.
var DefaultOptions = Options{MaxWidth: 480, MaxHeight: 360, Quality: 90}

func (o Options) withDefaults() Options {
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultOptions.MaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = DefaultOptions.MaxHeight
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultOptions.Quality
	}
	return o
}

// EncodeStill decodes a JPEG, PNG or WebP frame, fits it inside the option
// bounds and returns it as a JPEG data URI with its final size.
func EncodeStill(raw []byte, opts Options) (string, int, int, error) {
	opts = opts.withDefaults()
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", 0, 0, fmt.Errorf("camera: decode frame: %w", err)
	}
	b := img.Bounds()
	if b.Dx() > opts.MaxWidth || b.Dy() > opts.MaxHeight {
		img = imaging.Fit(img, opts.MaxWidth, opts.MaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(opts.Quality)); err != nil {
		return "", 0, 0, fmt.Errorf("camera: encode still: %w", err)
	}
	b = img.Bounds()
	return jpegDataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), b.Dx(), b.Dy(), nil
}

// DecodeDataURI returns the bytes of a base64 data URI. A bare base64 string
// without the data: header is accepted as well.
func DecodeDataURI(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("camera: empty frame")
	}
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 || !strings.Contains(s[:idx], ";base64") {
			return nil, errors.New("camera: frame is not a base64 data uri")
		}
		s = s[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("camera: decode data uri: %w", err)
	}
	return raw, nil
}
