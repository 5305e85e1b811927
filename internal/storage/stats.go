package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Stats is the dashboard summary of the event log.
type Stats struct {
	TotalEvents      int64
	KnownEvents      int64
	UnknownEvents    int64
	Last24h          int64
	Identities       int64
	MostActive       string
	MostActiveCount  int64
	VideoCount       int64
	AvgVideoDuration float64
	TotalVideoBytes  int64
}

// Stats aggregates the event log relative to now.
func (s *PostgresStore) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	st := &Stats{}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'known'),
		       COUNT(*) FILTER (WHERE status = 'unknown'),
		       COUNT(*) FILTER (WHERE timestamp >= $1)
		FROM recognition_events`, now.Add(-24*time.Hour),
	).Scan(&st.TotalEvents, &st.KnownEvents, &st.UnknownEvents, &st.Last24h)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(video_duration), 0), COALESCE(SUM(file_size), 0)
		FROM recognition_events
		WHERE video_path <> ''`,
	).Scan(&st.VideoCount, &st.AvgVideoDuration, &st.TotalVideoBytes)
	if err != nil {
		return nil, fmt.Errorf("video stats: %w", err)
	}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM identities WHERE active`).Scan(&st.Identities); err != nil {
		return nil, fmt.Errorf("count identities: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT identity, COUNT(*) AS n
		FROM recognition_events
		WHERE status = 'known' AND timestamp >= $1
		GROUP BY identity
		ORDER BY n DESC, identity
		LIMIT 1`, now.AddDate(0, 0, -7),
	).Scan(&st.MostActive, &st.MostActiveCount)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("most active identity: %w", err)
	}

	return st, nil
}
