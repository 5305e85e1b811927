//go:build integration

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/models"
)

func setupTestContainer(t *testing.T) (*PostgresStore, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "homewatch",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		URL:      fmt.Sprintf("postgres://test:test@%s:%s/homewatch?sslmode=disable", host, port.Port()),
		MaxConns: 5,
	}
	store, err := NewPostgresStore(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("connect: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		container.Terminate(ctx)
		t.Fatalf("migrate: %v", err)
	}

	return store, func() {
		store.Close()
		container.Terminate(ctx)
	}
}

func ptr[T any](v T) *T { return &v }

func knownEvent(name string, ts time.Time) *models.RecognitionEvent {
	return &models.RecognitionEvent{
		EventID:    uuid.New(),
		Timestamp:  ts,
		CameraID:   "phone_camera",
		Identity:   name,
		Confidence: ptr(91.5),
		ImagePath:  "known_" + name + ".jpg",
		Status:     models.StatusKnown,
	}
}

func unknownEvent(ts time.Time, seconds float64, size int64) *models.RecognitionEvent {
	return &models.RecognitionEvent{
		EventID:       uuid.New(),
		Timestamp:     ts,
		CameraID:      "phone_camera",
		ImagePath:     "unknown.jpg",
		VideoPath:     fmt.Sprintf("unknown_%d.mp4", ts.Unix()),
		Status:        models.StatusUnknown,
		VideoDuration: ptr(seconds),
		FileSize:      ptr(size),
	}
}

func TestIntegrationMigrateIsIdempotent(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))
	versions, err := store.AppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"001_recognition_events.sql",
		"002_identities.sql",
		"003_recognizer_heartbeats.sql",
	}, versions)
}

func TestIntegrationAppendEventIdempotent(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	ev := knownEvent("alice", time.Now().UTC())
	require.NoError(t, store.AppendEvent(ctx, ev))
	assert.NotZero(t, ev.ID)

	retry := *ev
	retry.ID = 0
	require.NoError(t, store.AppendEvent(ctx, &retry))

	events, total, err := store.QueryEvents(ctx, EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Identity)
	assert.Equal(t, models.CaptureAuto, events[0].CaptureType)
	require.NotNil(t, events[0].Confidence)
	assert.InDelta(t, 91.5, *events[0].Confidence, 1e-9)
}

func TestIntegrationRejectsKnownWithoutIdentity(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	defer cleanup()

	ev := knownEvent("", time.Now())
	require.Error(t, store.AppendEvent(context.Background(), ev))
}

func TestIntegrationQueryFilterSearchStats(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	for _, ev := range []*models.RecognitionEvent{
		knownEvent("alice", now.Add(-1*time.Hour)),
		knownEvent("alice", now.Add(-2*time.Hour)),
		knownEvent("bob", now.Add(-3*time.Hour)),
		knownEvent("bob", now.AddDate(0, 0, -9)),
		knownEvent("bob", now.AddDate(0, 0, -10)),
		unknownEvent(now.Add(-30*time.Minute), 10, 2*1024*1024),
		unknownEvent(now.AddDate(0, 0, -2), 20, 1024*1024),
	} {
		require.NoError(t, store.AppendEvent(ctx, ev))
	}
	_, err := store.UpsertIdentity(ctx, "alice", "Alice", "alice.jpg")
	require.NoError(t, err)

	page, total, err := store.QueryEvents(ctx, EventFilter{Page: 1, PerPage: 3})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, page, 3)
	assert.Equal(t, models.StatusUnknown, page[0].Status, "newest first")

	_, total, err = store.QueryEvents(ctx, EventFilter{Status: models.StatusKnown, Name: "BO"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	_, total, err = store.QueryEvents(ctx, EventFilter{Name: "unkn"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	day := now.AddDate(0, 0, -2)
	_, total, err = store.QueryEvents(ctx, EventFilter{Date: &day})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	found, err := store.SearchEvents(ctx, "ali", 50)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.True(t, found[0].Timestamp.After(found[1].Timestamp))

	found, err = store.SearchEvents(ctx, "   ", 50)
	require.NoError(t, err)
	assert.Empty(t, found)

	st, err := store.Stats(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 7, st.TotalEvents)
	assert.EqualValues(t, 5, st.KnownEvents)
	assert.EqualValues(t, 2, st.UnknownEvents)
	assert.EqualValues(t, 4, st.Last24h)
	assert.EqualValues(t, 1, st.Identities)
	assert.Equal(t, "alice", st.MostActive)
	assert.EqualValues(t, 2, st.MostActiveCount)
	assert.EqualValues(t, 2, st.VideoCount)
	assert.InDelta(t, 15.0, st.AvgVideoDuration, 1e-9)
	assert.EqualValues(t, 3*1024*1024, st.TotalVideoBytes)

	latest, err := store.LatestEventID(ctx)
	require.NoError(t, err)
	after, err := store.EventsAfter(ctx, latest-2, 10)
	require.NoError(t, err)
	assert.Len(t, after, 2)
	assert.Less(t, after[0].ID, after[1].ID)
}

func TestIntegrationRegistry(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	vec := func(hot int) []float32 {
		v := make([]float32, 512)
		v[hot] = 1
		return v
	}

	bob, err := store.UpsertIdentity(ctx, "bob", "Bob", "bob.jpg")
	require.NoError(t, err)
	alice, err := store.UpsertIdentity(ctx, "alice", "Alice", "alice.jpg")
	require.NoError(t, err)

	_, err = store.AddEmbedding(ctx, bob.ID, vec(1), 0.9, "bob.jpg")
	require.NoError(t, err)
	_, err = store.AddEmbedding(ctx, alice.ID, vec(0), 0.9, "alice.jpg")
	require.NoError(t, err)

	entries, err := store.LoadRegistry(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].Identity)
	assert.Equal(t, float32(1), entries[0].Embedding[0])
	assert.Len(t, entries[0].Embedding, 512)

	require.NoError(t, store.ReplaceEmbeddings(ctx, alice.ID, vec(2), 0.8, "alice2.jpg"))
	entries, err = store.LoadRegistry(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, float32(1), entries[0].Embedding[2])

	again, err := store.UpsertIdentity(ctx, "alice", "Alice B.", "alice2.jpg")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, again.ID)
	assert.Equal(t, "Alice B.", again.DisplayName)

	_, err = store.GetIdentity(ctx, "carol")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIntegrationHeartbeat(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Millisecond)
	hb := models.Heartbeat{
		CameraID:      "phone_camera",
		State:         models.LoopRunning,
		Source:        "http://phone:8080/video",
		RecorderState: "idle",
		FramesRead:    10,
		StartedAt:     start,
		UpdatedAt:     start,
	}
	require.NoError(t, store.BeatHeartbeat(ctx, hb))

	hb.State = models.LoopOffline
	hb.LastError = "no camera source available"
	hb.UpdatedAt = start.Add(5 * time.Second)
	require.NoError(t, store.BeatHeartbeat(ctx, hb))

	beats, err := store.Heartbeats(ctx)
	require.NoError(t, err)
	require.Len(t, beats, 1)
	assert.Equal(t, models.LoopOffline, beats[0].State)
	assert.Equal(t, "no camera source available", beats[0].LastError)
	assert.True(t, beats[0].UpdatedAt.Equal(start.Add(5*time.Second)))
}
