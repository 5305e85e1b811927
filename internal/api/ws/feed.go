package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/pkg/dto"
)

// EventFeed reads the event log by sequence id.
type EventFeed interface {
	LatestEventID(ctx context.Context) (int64, error)
	EventsAfter(ctx context.Context, afterID int64, limit int) ([]models.RecognitionEvent, error)
}

// feedOverlap is how many ids below the highest one seen are re-read on
// every poll. Sequence ids are assigned at insert but rows become visible at
// commit, so with several recognizers writing a lower id can appear after a
// higher one.
const feedOverlap = 64

// feedCursor tracks which rows Follow has already broadcast.
type feedCursor struct {
	// start is the highest id at startup; older rows are never sent.
	start int64
	last  int64
	seen  map[int64]bool
}

func newFeedCursor(start int64) *feedCursor {
	return &feedCursor{start: start, last: start, seen: make(map[int64]bool)}
}

// floor is the afterID of the next poll.
func (c *feedCursor) floor() int64 {
	return max(c.start, c.last-feedOverlap)
}

// accept reports whether id is new and records it.
func (c *feedCursor) accept(id int64) bool {
	if id <= c.start || c.seen[id] {
		return false
	}
	c.seen[id] = true
	c.last = max(c.last, id)
	return true
}

// prune forgets ids the next poll can no longer return.
func (c *feedCursor) prune() {
	floor := c.floor()
	for id := range c.seen {
		if id <= floor {
			delete(c.seen, id)
		}
	}
}

// Follow polls feed for events appended after startup and broadcasts them
// until ctx is cancelled. The dashboard learns about new rows only through
// the database.
func (h *Hub) Follow(ctx context.Context, feed EventFeed, interval time.Duration, loc *time.Location) {
	if interval <= 0 {
		interval = time.Second
	}

	latest, err := feed.LatestEventID(ctx)
	if err != nil {
		slog.Warn("ws feed start", "error", err)
	}
	cur := newFeedCursor(latest)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		events, err := feed.EventsAfter(ctx, cur.floor(), 100+feedOverlap)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("ws feed poll", "after_id", cur.floor(), "error", err)
			}
			continue
		}
		for _, e := range events {
			if cur.accept(e.ID) {
				h.BroadcastEvent(dto.FromEvent(e, loc))
			}
		}
		cur.prune()
	}
}
