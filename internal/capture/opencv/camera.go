// Package opencv implements camera capture, recording and snapshots with gocv.
package opencv

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/your-org/homewatch/internal/capture"
	"github.com/your-org/homewatch/internal/models"
)

// Frame wraps a gocv.Mat. The Mat is BGR as delivered by OpenCV.
type Frame struct {
	Mat gocv.Mat
}

func (f *Frame) Image() (image.Image, error) {
	img, err := f.Mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("mat to image: %w", err)
	}
	return img, nil
}

func (f *Frame) Size() (int, int) { return f.Mat.Cols(), f.Mat.Rows() }

func (f *Frame) Close() error { return f.Mat.Close() }

// Opener opens URL and device sources with gocv.VideoCapture.
type Opener struct {
	Width  int
	Height int
	FPS    float64
}

func (o *Opener) Open(ctx context.Context, src capture.Source) (capture.Camera, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		vc  *gocv.VideoCapture
		err error
	)
	if src.IsDevice() {
		vc, err = gocv.VideoCaptureDevice(src.DeviceIndex)
	} else {
		vc, err = gocv.VideoCaptureFile(src.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("open video capture: %w", err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video capture not opened")
	}

	vc.Set(gocv.VideoCaptureBufferSize, 1)
	if o.Width > 0 && o.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(o.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(o.Height))
	}
	if o.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, o.FPS)
	}

	// A source only counts as working once it yields a frame.
	first := gocv.NewMat()
	if ok := vc.Read(&first); !ok || first.Empty() {
		first.Close()
		vc.Close()
		return nil, fmt.Errorf("no frame from source")
	}

	slog.Info("video capture opened",
		"source", src.String(),
		"width", first.Cols(),
		"height", first.Rows(),
		"fps", vc.Get(gocv.VideoCaptureFPS),
	)
	return &Camera{vc: vc, pending: &Frame{Mat: first}}, nil
}

// Camera reads frames from an open VideoCapture.
type Camera struct {
	mu      sync.Mutex
	vc      *gocv.VideoCapture
	pending *Frame
	closed  bool
}

func (c *Camera) Read(ctx context.Context) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, capture.ErrReadFailed
	}
	if c.pending != nil {
		f := c.pending
		c.pending = nil
		return f, nil
	}

	mat := gocv.NewMat()
	if ok := c.vc.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, capture.ErrReadFailed
	}
	return &Frame{Mat: mat}, nil
}

func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.pending != nil {
		c.pending.Close()
		c.pending = nil
	}
	return c.vc.Close()
}

// toMat returns a BGR Mat for f. The caller closes the Mat when owned is true.
func toMat(f models.Frame) (mat gocv.Mat, owned bool, err error) {
	if cf, ok := f.(*Frame); ok {
		return cf.Mat, false, nil
	}
	img, err := f.Image()
	if err != nil {
		return gocv.Mat{}, false, err
	}
	mat, err = gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, false, fmt.Errorf("image to mat: %w", err)
	}
	return mat, true, nil
}
