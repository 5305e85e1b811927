package opencv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	"github.com/your-org/homewatch/internal/capture"
	"github.com/your-org/homewatch/internal/media"
	"github.com/your-org/homewatch/internal/models"
)

// Recorder writes clips into Dir with gocv.VideoWriter.
type Recorder struct {
	Dir   string
	Codec string
	FPS   float64
}

func (r *Recorder) Create(name string, width, height int) (capture.Clip, error) {
	if !strings.HasSuffix(name, media.VideoExt) {
		name += media.VideoExt
	}
	final := filepath.Join(r.Dir, name)
	partial := filepath.Join(r.Dir, media.PartialName(name))

	vw, err := gocv.VideoWriterFile(partial, r.Codec, r.FPS, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("open video writer: %w", err)
	}
	if !vw.IsOpened() {
		vw.Close()
		os.Remove(partial)
		return nil, fmt.Errorf("video writer not opened for %s", partial)
	}
	return &clip{vw: vw, partial: partial, final: final, width: width, height: height}, nil
}

type clip struct {
	vw      *gocv.VideoWriter
	partial string
	final   string
	width   int
	height  int
	closed  bool
}

func (c *clip) Write(f models.Frame) error {
	if c.closed {
		return fmt.Errorf("write to closed clip %s", c.final)
	}
	mat, owned, err := toMat(f)
	if err != nil {
		return err
	}
	if owned {
		defer mat.Close()
	}

	// VideoWriter silently drops frames whose size differs from the header.
	if mat.Cols() != c.width || mat.Rows() != c.height {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(mat, &resized, imagePt(c.width, c.height), 0, 0, gocv.InterpolationLinear)
		return c.vw.Write(resized)
	}
	return c.vw.Write(mat)
}

func (c *clip) Finish() (string, int64, error) {
	if err := c.close(); err != nil {
		return "", 0, err
	}
	if err := os.Rename(c.partial, c.final); err != nil {
		return "", 0, fmt.Errorf("finalize clip: %w", err)
	}
	info, err := os.Stat(c.final)
	if err != nil {
		return "", 0, fmt.Errorf("stat clip: %w", err)
	}
	return c.final, info.Size(), nil
}

func (c *clip) Abort() error {
	c.close()
	if err := os.Remove(c.partial); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove partial clip: %w", err)
	}
	return nil
}

func (c *clip) close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.vw.Close(); err != nil {
		return fmt.Errorf("close video writer: %w", err)
	}
	return nil
}
