package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/homewatch/internal/announce"
	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/observability"
	"github.com/your-org/homewatch/internal/queue"
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

	if cfg.NATS.URL == "" {
		slog.Error("nats.url is required for the announcer")
		os.Exit(1)
	}
	slog.Info("starting homewatch announcer", "nats", cfg.NATS.URL, "command", cfg.Announcer.Command)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	names := displayNames(ctx, cfg.Database)

	// The producer side owns the stream definition; ensure it so the
	// announcer can start before the first recognizer.
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	if err := producer.EnsureStream(ctx); err != nil {
		slog.Error("ensure nats stream", "error", err)
		os.Exit(1)
	}
	producer.Close()

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	a := announce.New(cfg.Announcer, names)
	done := make(chan error, 1)
	go func() {
		done <- consumer.ConsumeNotices(ctx, "announcer", a.Handle)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		slog.Info("shutting down announcer...")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			slog.Error("consume notices", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("announcer stopped")
}

// displayNames loads identity display names. The announcer works without
// the database and falls back to identity keys.
func displayNames(ctx context.Context, cfg config.DatabaseConfig) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	db, err := storage.NewPostgresStore(ctx, cfg)
	if err != nil {
		slog.Warn("database unavailable, using identity keys as names", "error", err)
		return nil
	}
	defer db.Close()

	identities, err := db.ListIdentities(ctx)
	if err != nil {
		slog.Warn("list identities", "error", err)
		return nil
	}
	names := make(map[string]string, len(identities))
	for _, id := range identities {
		names[id.Name] = id.DisplayName
	}
	return names
}
