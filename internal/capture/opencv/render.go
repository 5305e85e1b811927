package opencv

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"github.com/your-org/homewatch/internal/matcher"
	"github.com/your-org/homewatch/internal/media"
	"github.com/your-org/homewatch/internal/models"
)

var (
	knownColor   = color.RGBA{0, 255, 0, 255}
	unknownColor = color.RGBA{255, 0, 0, 255}
	textColor    = color.RGBA{255, 255, 255, 255}
)

// Renderer draws face boxes onto frames and encodes them as JPEG.
type Renderer struct {
	Quality int
	// LiveDir receives latest_frame.jpg.
	LiveDir string
}

// Snapshot writes an annotated JPEG of f to path.
func (r *Renderer) Snapshot(path string, f models.Frame, faces []matcher.Result, recording bool) error {
	mat, err := r.annotate(f, faces, recording)
	if err != nil {
		return err
	}
	defer mat.Close()

	if ok := gocv.IMWriteWithParams(path, mat, []int{int(gocv.IMWriteJpegQuality), r.Quality}); !ok {
		return fmt.Errorf("write snapshot %s", path)
	}
	return nil
}

// WriteLive replaces the live frame file atomically so readers never see a
// half-written JPEG.
func (r *Renderer) WriteLive(f models.Frame, faces []matcher.Result, recording bool) error {
	mat, err := r.annotate(f, faces, recording)
	if err != nil {
		return err
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), r.Quality})
	if err != nil {
		return fmt.Errorf("encode live frame: %w", err)
	}
	defer buf.Close()

	tmp, err := os.CreateTemp(r.LiveDir, ".live-*.jpg")
	if err != nil {
		return fmt.Errorf("create live frame: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.GetBytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write live frame: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close live frame: %w", err)
	}
	return os.Rename(tmp.Name(), filepath.Join(r.LiveDir, media.LiveFrameName))
}

func (r *Renderer) annotate(f models.Frame, faces []matcher.Result, recording bool) (gocv.Mat, error) {
	src, owned, err := toMat(f)
	if err != nil {
		return gocv.Mat{}, err
	}
	mat := src.Clone()
	if owned {
		src.Close()
	}

	for _, face := range faces {
		c := unknownColor
		label := models.UnknownIdentity
		if face.Known {
			c = knownColor
			label = fmt.Sprintf("%s (%.0f%%)", face.Identity, face.Confidence)
		}
		gocv.Rectangle(&mat, face.Box, c, 2)
		gocv.PutText(&mat, label, image.Pt(face.Box.Min.X, max(face.Box.Min.Y-8, 14)),
			gocv.FontHersheySimplex, 0.6, c, 2)
	}

	if recording {
		gocv.Circle(&mat, image.Pt(20, 20), 8, unknownColor, -1)
		gocv.PutText(&mat, "REC", image.Pt(34, 27), gocv.FontHersheySimplex, 0.6, unknownColor, 2)
	}
	stamp := time.Now().Format("2006-01-02 15:04:05")
	gocv.PutText(&mat, stamp, image.Pt(10, mat.Rows()-10), gocv.FontHersheySimplex, 0.5, textColor, 1)
	return mat, nil
}

func imagePt(x, y int) image.Point { return image.Pt(x, y) }
