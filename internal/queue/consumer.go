package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/homewatch/internal/models"
)

// NoticeHandler processes one notice. A returned error naks the message
// so it is redelivered, up to the consumer's MaxDeliver.
type NoticeHandler func(ctx context.Context, n models.Notice) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
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

	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeNotices fetches notices until ctx is cancelled. Only notices
// published after the consumer is first created are delivered.
func (c *Consumer) ConsumeNotices(ctx context.Context, consumerName string, handler NoticeHandler) error {
	stream, err := c.js.Stream(ctx, NoticesStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", NoticesStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    3,
		FilterSubject: NoticesSubjectBase + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	slog.Info("notice consumer started", "consumer", consumerName)
	for {
		if ctx.Err() != nil {
			return nil
		}

		batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("fetch notices error", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for msg := range batch.Messages() {
			handleNotice(ctx, msg, handler)
		}
	}
}

func handleNotice(ctx context.Context, msg jetstream.Msg, handler NoticeHandler) {
	var n models.Notice
	if err := json.Unmarshal(msg.Data(), &n); err != nil {
		// malformed payloads are never redeliverable
		slog.Error("decode notice", "subject", msg.Subject(), "error", err)
		_ = msg.Term()
		return
	}
	if err := handler(ctx, n); err != nil {
		slog.Error("process notice error", "subject", msg.Subject(), "kind", n.Kind, "error", err)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

func (c *Consumer) Close() {
	c.nc.Close()
}
