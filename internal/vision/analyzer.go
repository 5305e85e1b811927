package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/matcher"
	"github.com/your-org/homewatch/internal/observability"
)

const (
	detectorModel = "det_10g.onnx"
	embedderModel = "w600k_r50.onnx"
)

// Analyzer turns a frame into classified faces: detect, embed, match.
// ONNX sessions share their tensors, so calls are serialised.
type Analyzer struct {
	mu       sync.Mutex
	detector *Detector
	embedder *Embedder
	matcher  *matcher.Matcher
	minFace  int
}

// NewAnalyzer loads both models from cfg.ModelsDir. m may be nil for
// embedding-only use (enrollment).
func NewAnalyzer(cfg config.RecognitionConfig, m *matcher.Matcher) (*Analyzer, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()

	detPath := filepath.Join(cfg.ModelsDir, detectorModel)
	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold), opts)
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	embPath := filepath.Join(cfg.ModelsDir, embedderModel)
	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath, opts)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	return &Analyzer{detector: det, embedder: emb, matcher: m, minFace: cfg.MinFaceSize}, nil
}

// Analyze classifies every face in img against the registry.
func (a *Analyzer) Analyze(ctx context.Context, img image.Image) ([]matcher.Result, error) {
	if a.matcher == nil {
		return nil, fmt.Errorf("analyzer has no registry")
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	detections, err := a.detect(img)
	if err != nil {
		return nil, err
	}

	results := make([]matcher.Result, 0, len(detections))
	for _, det := range detections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embedding, err := a.embed(img, det)
		if err != nil {
			slog.Warn("embed face", "error", err)
			continue
		}

		start := time.Now()
		res := a.matcher.Match(embedding)
		observability.InferenceDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())
		res.Box = det.Rect()
		results = append(results, res)
	}
	return results, nil
}

// EmbedLargest embeds the largest face in img and returns its detector score.
func (a *Analyzer) EmbedLargest(img image.Image) ([]float32, float32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	detections, err := a.detect(img)
	if err != nil {
		return nil, 0, err
	}
	if len(detections) == 0 {
		return nil, 0, matcher.ErrNoFace
	}

	best := detections[0]
	for _, d := range detections[1:] {
		if d.Area() > best.Area() {
			best = d
		}
	}

	embedding, err := a.embed(img, best)
	if err != nil {
		return nil, 0, err
	}
	return embedding, best.Confidence, nil
}

func (a *Analyzer) detect(img image.Image) ([]Detection, error) {
	bounds := img.Bounds()

	start := time.Now()
	input := preprocessForDetection(img, a.detector.inputW, a.detector.inputH)
	observability.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())

	start = time.Now()
	detections, err := a.detector.Detect(input, bounds.Dx(), bounds.Dy(), a.minFace)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	// boxes are relative to the image origin
	if bounds.Min != (image.Point{}) {
		for i := range detections {
			detections[i].BBox[0] += float32(bounds.Min.X)
			detections[i].BBox[1] += float32(bounds.Min.Y)
			detections[i].BBox[2] += float32(bounds.Min.X)
			detections[i].BBox[3] += float32(bounds.Min.Y)
		}
	}
	return detections, nil
}

func (a *Analyzer) embed(img image.Image, det Detection) ([]float32, error) {
	crop := cropFace(img, det.BBox)
	if crop == nil {
		return nil, fmt.Errorf("face box %v outside frame", det.BBox)
	}

	start := time.Now()
	embedding, err := a.embedder.Extract(preprocessForEmbedding(crop, a.embedder.inputW, a.embedder.inputH))
	if err != nil {
		return nil, err
	}
	observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	return embedding, nil
}

// Close releases all ONNX sessions.
func (a *Analyzer) Close() {
	if a.detector != nil {
		a.detector.Close()
	}
	if a.embedder != nil {
		a.embedder.Close()
	}
}
