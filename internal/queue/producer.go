package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/homewatch/internal/models"
)

const (
	NoticesStreamName  = "NOTICES"
	NoticesSubjectBase = "notices"
)

var subjectToken = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// NoticeSubject returns the subject a notice is published on,
// e.g. notices.arrival.phone_camera.
func NoticeSubject(n models.Notice) string {
	camera := subjectToken.Replace(n.CameraID)
	if camera == "" {
		camera = "default"
	}
	return fmt.Sprintf("%s.%s.%s", NoticesSubjectBase, n.Kind, camera)
}

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

// EnsureStream creates the NOTICES stream if it doesn't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStream(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        NoticesStreamName,
		Subjects:    []string{NoticesSubjectBase + ".>"},
		Retention:   jetstream.InterestPolicy,
		MaxAge:      time.Hour,
		MaxMsgs:     10000,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		Duplicates:  time.Minute,
		Description: "Arrival and intruder notices",
	}

	const maxAttempts = 30
	for attempt := 1; ; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", cfg.Name)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// PublishNotice publishes n to JetStream. The message id is derived from
// kind, camera and timestamp so a retried publish is deduplicated.
func (p *Producer) PublishNotice(ctx context.Context, n models.Notice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	msgID := fmt.Sprintf("%s-%s-%s-%d", n.Kind, n.CameraID, n.Identity, n.Timestamp.UnixNano())
	_, err = p.js.Publish(ctx, NoticeSubject(n), payload, jetstream.WithMsgID(msgID))
	if err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}
	return nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
