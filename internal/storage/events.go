package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/your-org/homewatch/internal/models"
)

const eventColumns = `id, event_id, timestamp, camera_id, identity, confidence, image_path, video_path,
	status, video_duration, file_size, capture_type, created_at`

// displayIdentity is the SQL form of RecognitionEvent.DisplayIdentity.
const displayIdentity = `COALESCE(NULLIF(identity, ''), 'Unknown')`

// AppendEvent inserts e into the event log. Appending an EventID that is
// already present is a no-op, so retries never duplicate rows.
func (s *PostgresStore) AppendEvent(ctx context.Context, e *models.RecognitionEvent) error {
	if e.CaptureType == "" {
		e.CaptureType = models.CaptureAuto
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO recognition_events
			(event_id, timestamp, camera_id, identity, confidence, image_path, video_path,
			 status, video_duration, file_size, capture_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (event_id) DO NOTHING
		 RETURNING id, created_at`,
		e.EventID, e.Timestamp, e.CameraID, e.Identity, e.Confidence, e.ImagePath, e.VideoPath,
		e.Status, e.VideoDuration, e.FileSize, e.CaptureType,
	).Scan(&e.ID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// EventFilter selects a page of the event log. Zero values mean "any".
type EventFilter struct {
	Status   models.Status
	Name     string
	Date     *time.Time
	CameraID string
	Page     int
	PerPage  int
}

// QueryEvents returns one page of events, newest first, and the total
// number of matching rows.
func (s *PostgresStore) QueryEvents(ctx context.Context, f EventFilter) ([]models.RecognitionEvent, int, error) {
	if f.PerPage <= 0 {
		f.PerPage = 20
	}
	if f.Page < 1 {
		f.Page = 1
	}
	where, args := f.where()

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM recognition_events "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM recognition_events %s ORDER BY timestamp DESC, id DESC LIMIT $%d OFFSET $%d`,
		eventColumns, where, len(args)+1, len(args)+2)
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)

	events, err := s.queryEvents(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// where builds the WHERE clause for f with positional arguments.
func (f EventFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Name != "" {
		add(displayIdentity+" ILIKE $%d", likePattern(f.Name))
	}
	if f.Date != nil {
		day := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, f.Date.Location())
		add("timestamp >= $%d", day)
		add("timestamp < $%d", day.AddDate(0, 0, 1))
	}
	if f.CameraID != "" {
		add("camera_id = $%d", f.CameraID)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// SearchEvents matches q against identity, status and camera, newest first.
// An empty query returns no rows.
func (s *PostgresStore) SearchEvents(ctx context.Context, q string, limit int) ([]models.RecognitionEvent, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM recognition_events
		WHERE %s ILIKE $1 OR status ILIKE $1 OR camera_id ILIKE $1
		ORDER BY timestamp DESC, id DESC LIMIT $2`, eventColumns, displayIdentity)
	return s.queryEvents(ctx, query, likePattern(q), limit)
}

// EventsAfter returns events with a sequence id greater than afterID, oldest first.
func (s *PostgresStore) EventsAfter(ctx context.Context, afterID int64, limit int) ([]models.RecognitionEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM recognition_events WHERE id > $1 ORDER BY id LIMIT $2`, eventColumns)
	return s.queryEvents(ctx, query, afterID, limit)
}

// LatestEventID returns the highest sequence id, or 0 for an empty log.
func (s *PostgresStore) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM recognition_events`).Scan(&id); err != nil {
		return 0, fmt.Errorf("latest event id: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) queryEvents(ctx context.Context, query string, args ...any) ([]models.RecognitionEvent, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []models.RecognitionEvent
	for rows.Next() {
		var e models.RecognitionEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.Timestamp, &e.CameraID, &e.Identity, &e.Confidence,
			&e.ImagePath, &e.VideoPath, &e.Status, &e.VideoDuration, &e.FileSize, &e.CaptureType,
			&e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// likePattern wraps q for a substring ILIKE, escaping LIKE metacharacters.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
