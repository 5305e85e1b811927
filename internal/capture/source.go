// Package capture picks a working camera from an ordered list of sources.
// The gocv-backed implementation lives in capture/opencv.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/models"
)

var (
	// ErrNoSource means every configured source failed to produce a frame.
	ErrNoSource = errors.New("no camera source available")
	// ErrReadFailed is returned by Camera.Read when the stream stops delivering frames.
	ErrReadFailed = errors.New("camera read failed")
)

// Source is one candidate camera: a stream URL or a local device index.
type Source struct {
	Name        string
	URL         string
	DeviceIndex int
}

func (s Source) IsDevice() bool { return s.URL == "" }

func (s Source) String() string {
	if s.IsDevice() {
		return "device:" + strconv.Itoa(s.DeviceIndex)
	}
	return s.URL
}

// SourcesFromConfig returns the stream URLs in configured order followed by
// the local device, unless the device is disabled with -1.
func SourcesFromConfig(cfg config.CameraConfig) []Source {
	var out []Source
	for i, u := range cfg.Sources {
		out = append(out, Source{Name: fmt.Sprintf("url-%d", i+1), URL: u})
	}
	if cfg.DeviceIndex >= 0 {
		out = append(out, Source{Name: "local", DeviceIndex: cfg.DeviceIndex})
	}
	return out
}

// Camera delivers frames until it fails or is closed.
type Camera interface {
	Read(ctx context.Context) (models.Frame, error)
	Close() error
}

// Opener connects to a single source. Implementations should verify the
// source actually yields a frame before returning.
type Opener interface {
	Open(ctx context.Context, src Source) (Camera, error)
}

// Selector tries sources in order and keeps the first one that works.
type Selector struct {
	opener  Opener
	sources []Source
}

func NewSelector(opener Opener, sources []Source) *Selector {
	return &Selector{opener: opener, sources: sources}
}

// Open returns the first working camera. When all sources fail the error
// wraps ErrNoSource and each source's failure.
func (s *Selector) Open(ctx context.Context) (Camera, Source, error) {
	errs := []error{ErrNoSource}
	for _, src := range s.sources {
		if err := ctx.Err(); err != nil {
			return nil, Source{}, err
		}

		slog.Info("trying camera source", "source", src.String())
		cam, err := s.opener.Open(ctx, src)
		if err != nil {
			slog.Warn("camera source failed", "source", src.String(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", src, err))
			continue
		}
		slog.Info("camera source connected", "source", src.String())
		return cam, src, nil
	}
	return nil, Source{}, errors.Join(errs...)
}
