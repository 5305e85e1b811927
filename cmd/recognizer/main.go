package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/homewatch/internal/capture"
	"github.com/your-org/homewatch/internal/capture/opencv"
	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/matcher"
	"github.com/your-org/homewatch/internal/media"
	"github.com/your-org/homewatch/internal/observability"
	"github.com/your-org/homewatch/internal/queue"
	"github.com/your-org/homewatch/internal/recognizer"
	"github.com/your-org/homewatch/internal/storage"
	"github.com/your-org/homewatch/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("recognizer exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("starting homewatch recognizer",
		"camera_id", cfg.Camera.ID,
		"sources", len(cfg.Camera.Sources),
		"device_index", cfg.Camera.DeviceIndex,
	)

	imagesDir, videosDir, liveDir := cfg.Media.ImagesPath(), cfg.Media.VideosPath(), cfg.Media.LivePath()
	if err := media.EnsureDirs(imagesDir, videosDir, liveDir); err != nil {
		return err
	}
	orphans, err := media.SweepOrphans(videosDir, cfg.Media.CleanupOrphans)
	if err != nil {
		slog.Warn("sweep orphaned recordings", "error", err)
	}
	for _, name := range orphans {
		slog.Warn("orphaned partial recording", "video_path", name, "removed", cfg.Media.CleanupOrphans)
	}

	// Initialize ONNX Runtime
	destroy, err := vision.InitRuntime(cfg.Recognition.ONNXLibrary)
	if err != nil {
		return err
	}
	defer destroy()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	entries, err := db.LoadRegistry(ctx)
	if err != nil {
		return err
	}
	m, err := matcher.NewMatcher(entries, cfg.Recognition.Tolerance)
	if err != nil {
		return fmt.Errorf("build matcher: %w", err)
	}
	if m.Size() == 0 {
		slog.Warn("known-identity registry is empty, every face will be unknown")
	}
	slog.Info("registry loaded",
		"embeddings", m.Size(),
		"identities", len(m.Identities()),
		"tolerance", m.Tolerance(),
	)

	analyzer, err := vision.NewAnalyzer(cfg.Recognition, m)
	if err != nil {
		return err
	}
	defer analyzer.Close()

	deps := recognizer.Deps{
		Selector: capture.NewSelector(&opencv.Opener{
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
			FPS:    cfg.Camera.FPS,
		}, capture.SourcesFromConfig(cfg.Camera)),
		Analyzer: analyzer,
		Clips: &opencv.Recorder{
			Dir:   videosDir,
			Codec: cfg.Recording.Codec,
			FPS:   cfg.Camera.FPS,
		},
		Events:     db,
		Heartbeats: db,
	}
	renderer := &opencv.Renderer{Quality: cfg.Media.JPEGQuality, LiveDir: liveDir}
	deps.Snapshots = renderer
	deps.Live = renderer

	// MinIO archive is optional
	if cfg.MinIO.Enabled {
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			return fmt.Errorf("connect to minio: %w", err)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket, archive disabled", "error", err)
		} else {
			deps.Archive = minioStore
		}
	}

	// NATS notices are optional
	if cfg.NATS.URL != "" {
		producer, err := queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		defer producer.Close()
		if err := producer.EnsureStream(ctx); err != nil {
			slog.Warn("ensure nats stream, notices disabled", "error", err)
		} else {
			deps.Notices = producer
		}
	}

	if cfg.Recording.Transcode {
		tc := media.NewTranscoder()
		if tc.Available() {
			deps.Transcoder = tc
		} else {
			slog.Warn("ffmpeg not found, recordings are kept as written", "binary", tc.Binary)
		}
	}

	rt := recognizer.New(deps, recognizer.OptionsFromConfig(cfg))

	// Metrics endpoint
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsMux(rt),
	}
	go func() {
		slog.Info("recognizer metrics listening", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quit:
			slog.Info("shutting down recognizer...", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	runErr := rt.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	if runErr != nil {
		return runErr
	}
	slog.Info("recognizer stopped")
	return nil
}

func metricsMux(rt *recognizer.Runtime) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rt.Status())
	})
	return mux
}
