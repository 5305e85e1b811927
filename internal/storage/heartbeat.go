package storage

import (
	"context"
	"fmt"

	"github.com/your-org/homewatch/internal/models"
)

// BeatHeartbeat upserts the liveness row of one camera loop.
func (s *PostgresStore) BeatHeartbeat(ctx context.Context, hb models.Heartbeat) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO recognizer_heartbeats
			(camera_id, state, source, recorder_state, frames_read, last_error, started_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (camera_id) DO UPDATE SET
			state = EXCLUDED.state,
			source = EXCLUDED.source,
			recorder_state = EXCLUDED.recorder_state,
			frames_read = EXCLUDED.frames_read,
			last_error = EXCLUDED.last_error,
			started_at = EXCLUDED.started_at,
			updated_at = EXCLUDED.updated_at`,
		hb.CameraID, string(hb.State), hb.Source, hb.RecorderState, hb.FramesRead, hb.LastError,
		hb.StartedAt, hb.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("beat heartbeat: %w", err)
	}
	return nil
}

func (s *PostgresStore) Heartbeats(ctx context.Context) ([]models.Heartbeat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT camera_id, state, source, recorder_state, frames_read, last_error, started_at, updated_at
		 FROM recognizer_heartbeats ORDER BY camera_id`)
	if err != nil {
		return nil, fmt.Errorf("list heartbeats: %w", err)
	}
	defer rows.Close()

	var out []models.Heartbeat
	for rows.Next() {
		var hb models.Heartbeat
		if err := rows.Scan(&hb.CameraID, &hb.State, &hb.Source, &hb.RecorderState, &hb.FramesRead,
			&hb.LastError, &hb.StartedAt, &hb.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan heartbeat: %w", err)
		}
		out = append(out, hb)
	}
	return out, rows.Err()
}
