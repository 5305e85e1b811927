package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/your-org/homewatch/internal/api"
	"github.com/your-org/homewatch/internal/api/handlers"
	"github.com/your-org/homewatch/internal/api/ws"
	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/media"
	"github.com/your-org/homewatch/internal/observability"
	"github.com/your-org/homewatch/internal/storage"
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

	slog.Info("starting homewatch dashboard", "port", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("migrate database", "error", err)
		os.Exit(1)
	}

	liveFile := filepath.Join(cfg.Media.LivePath(), media.LiveFrameName)
	routerCfg := api.RouterConfig{
		APIKey: cfg.Server.APIKey,
		Store:  db,
		Media: handlers.MediaConfig{
			ImagesDir: cfg.Media.ImagesPath(),
			VideosDir: cfg.Media.VideosPath(),
			LiveFile:  liveFile,
		},
		System: handlers.SystemConfig{
			Directories: map[string]string{
				"known":          cfg.Media.KnownPath(),
				"unknown_images": cfg.Media.ImagesPath(),
				"unknown_videos": cfg.Media.VideosPath(),
				"live_stream":    cfg.Media.LivePath(),
			},
			LiveFile:   liveFile,
			StaleAfter: cfg.Heartbeat.StaleAfter,
		},
		PerPage:    cfg.Server.PerPage,
		MaxPerPage: cfg.Server.MaxPerPage,
	}

	// Connect to MinIO
	if cfg.MinIO.Enabled {
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		routerCfg.Archive = minioStore
		routerCfg.ArchivePing = minioStore
	}

	// WebSocket hub fed from the event log
	hub := ws.NewHub()
	go hub.Run(ctx)
	go hub.Follow(ctx, db, time.Second, nil)
	routerCfg.Hub = hub

	router := api.NewRouter(routerCfg)

	// Start HTTP server; no WriteTimeout, video and MJPEG responses are long-lived
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("dashboard listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down dashboard...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("dashboard stopped")
}
