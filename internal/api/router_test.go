package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/homewatch/internal/api/handlers"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/storage"
	"github.com/your-org/homewatch/pkg/dto"
)

var testNow = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)

type fakeStore struct {
	events     []models.RecognitionEvent
	total      int
	lastFilter storage.EventFilter
	searches   []string
	stats      storage.Stats
	beats      []models.Heartbeat
	pingErr    error
}

func (s *fakeStore) QueryEvents(_ context.Context, f storage.EventFilter) ([]models.RecognitionEvent, int, error) {
	s.lastFilter = f
	return s.events, s.total, nil
}

func (s *fakeStore) SearchEvents(_ context.Context, q string, _ int) ([]models.RecognitionEvent, error) {
	s.searches = append(s.searches, q)
	return s.events, nil
}

func (s *fakeStore) Stats(context.Context, time.Time) (*storage.Stats, error) {
	st := s.stats
	return &st, nil
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }

func (s *fakeStore) Heartbeats(context.Context) ([]models.Heartbeat, error) {
	return s.beats, nil
}

type fakeArchive struct {
	objects map[string][]byte
}

func (a *fakeArchive) Open(_ context.Context, name string) (*storage.Object, error) {
	data, ok := a.objects[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.Object{
		ReadSeekCloser: nopCloser{bytes.NewReader(data)},
		Size:           int64(len(data)),
		ModTime:        testNow,
		ContentType:    "video/mp4",
	}, nil
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

type testEnv struct {
	store     *fakeStore
	archive   *fakeArchive
	imagesDir string
	videosDir string
	liveDir   string
	cfg       RouterConfig
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		store:     &fakeStore{},
		archive:   &fakeArchive{objects: map[string][]byte{}},
		imagesDir: filepath.Join(root, "images"),
		videosDir: filepath.Join(root, "videos"),
		liveDir:   filepath.Join(root, "live"),
	}
	for _, d := range []string{env.imagesDir, env.videosDir, env.liveDir} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	env.cfg = RouterConfig{
		Store:   env.store,
		Archive: env.archive,
		Media: handlers.MediaConfig{
			ImagesDir:    env.imagesDir,
			VideosDir:    env.videosDir,
			LiveFile:     filepath.Join(env.liveDir, "latest_frame.jpg"),
			LiveInterval: 5 * time.Millisecond,
		},
		System: handlers.SystemConfig{
			Directories: map[string]string{"images": env.imagesDir, "videos": env.videosDir, "missing": filepath.Join(root, "nope")},
			LiveFile:    filepath.Join(env.liveDir, "latest_frame.jpg"),
			StaleAfter:  15 * time.Second,
		},
		PerPage:    20,
		MaxPerPage: 100,
		Location:   time.UTC,
		Now:        func() time.Time { return testNow },
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, hdr http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	NewRouter(e.cfg).ServeHTTP(w, req)
	return w
}

type envelope struct {
	Version string          `json:"version"`
	Kind    dto.Kind        `json:"kind"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder, kind dto.Kind) T {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	assert.Equal(t, dto.Version, env.Version)
	require.Equal(t, kind, env.Kind, w.Body.String())
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	assert.Equal(t, dto.Version, env.Version)
	assert.Equal(t, dto.KindError, env.Kind)
	return env.Error
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func TestLogsPaginationAndFilters(t *testing.T) {
	env := newEnv(t)
	env.store.total = 45
	env.store.events = []models.RecognitionEvent{
		{
			ID: 7, EventID: uuid.New(), Timestamp: testNow, CameraID: "phone_camera",
			Identity: "alice", Confidence: f64(91.54), ImagePath: "known_alice_20240501_180000_000.jpg",
			Status: models.StatusKnown, CaptureType: models.CaptureAuto,
		},
		{
			ID: 6, EventID: uuid.New(), Timestamp: testNow.Add(-time.Minute), CameraID: "phone_camera",
			ImagePath: "unknown_20240501_175900_000.jpg", VideoPath: "unknown_20240501_175900_000.mp4",
			Status: models.StatusUnknown, VideoDuration: f64(10.04), FileSize: i64(3 * 1024 * 1024),
			CaptureType: models.CaptureAuto,
		},
	}

	w := env.do(t, http.MethodGet, "/api/logs?page=2&status=known&name=ali&date=2024-05-01&camera_id=phone_camera", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	page := decode[dto.LogPage](t, w, dto.KindLogPage)
	assert.Equal(t, dto.Pagination{
		Page: 2, PerPage: 20, TotalPages: 3, TotalCount: 45, HasPrev: true, HasNext: true,
	}, page.Pagination)
	assert.Equal(t, dto.LogFilters{Status: "known", Name: "ali", Date: "2024-05-01", CameraID: "phone_camera"}, page.Filters)

	f := env.store.lastFilter
	assert.Equal(t, models.StatusKnown, f.Status)
	assert.Equal(t, "ali", f.Name)
	assert.Equal(t, "phone_camera", f.CameraID)
	require.NotNil(t, f.Date)
	assert.True(t, f.Date.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))

	require.Len(t, page.Logs, 2)
	known := page.Logs[0]
	assert.Equal(t, "alice", known.Name)
	assert.Equal(t, 91.5, *known.ConfidenceScore)
	assert.Equal(t, "/image/known_alice_20240501_180000_000.jpg", known.ImageURL)
	assert.Empty(t, known.VideoURL)

	unknown := page.Logs[1]
	assert.Equal(t, "Unknown", unknown.Name)
	assert.Nil(t, unknown.ConfidenceScore)
	assert.Equal(t, "/video/unknown_20240501_175900_000.mp4", unknown.VideoURL)
	assert.Equal(t, 10.0, *unknown.VideoDuration)
	assert.Equal(t, 3.0, *unknown.FileSizeMB)
}

func TestLogsDefaultsAndClamp(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodGet, "/api/logs?per_page=5000&page=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100, env.store.lastFilter.PerPage)
	assert.Equal(t, 1, env.store.lastFilter.Page)
	assert.Empty(t, env.store.lastFilter.Status)

	page := decode[dto.LogPage](t, w, dto.KindLogPage)
	assert.NotNil(t, page.Logs)
	assert.False(t, page.Pagination.HasPrev)
	assert.False(t, page.Pagination.HasNext)
}

func TestLogsRejectsBadQuery(t *testing.T) {
	env := newEnv(t)
	for _, q := range []string{"status=maybe", "date=05/01/2024", "page=x", "per_page=0"} {
		w := env.do(t, http.MethodGet, "/api/logs?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.NotEmpty(t, decodeError(t, w), q)
	}
}

func TestSearch(t *testing.T) {
	env := newEnv(t)
	env.store.events = []models.RecognitionEvent{
		{ID: 1, Timestamp: testNow, Identity: "alice", Status: models.StatusKnown},
	}

	w := env.do(t, http.MethodGet, "/api/search?q=%20%20", nil)
	require.Equal(t, http.StatusOK, w.Code)
	empty := decode[dto.SearchResults](t, w, dto.KindSearchResults)
	assert.Empty(t, empty.Results)
	assert.NotNil(t, empty.Results)
	assert.Empty(t, env.store.searches)

	w = env.do(t, http.MethodGet, "/api/search?q=ali", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[dto.SearchResults](t, w, dto.KindSearchResults)
	assert.Equal(t, "ali", res.Query)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, []string{"ali"}, env.store.searches)
}

func TestStats(t *testing.T) {
	env := newEnv(t)
	env.store.stats = storage.Stats{
		TotalEvents: 12, KnownEvents: 9, UnknownEvents: 3, Last24h: 4, Identities: 2,
		VideoCount: 3, AvgVideoDuration: 12.3456, TotalVideoBytes: 5 * 1024 * 1024,
	}

	w := env.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[dto.Stats](t, w, dto.KindStats)
	assert.Equal(t, dto.Stats{
		TotalLogs: 12, KnownCount: 9, UnknownCount: 3, RecentActivity: 4, FamilyCount: 2,
		MostActiveMember: "N/A", VideoCount: 3, AvgVideoDuration: 12.35, TotalStorageMB: 5,
	}, st)
}

func TestSystemStatus(t *testing.T) {
	env := newEnv(t)
	env.store.beats = []models.Heartbeat{
		{CameraID: "porch", State: models.LoopRunning, UpdatedAt: testNow.Add(-time.Minute)},
		{CameraID: "garage", State: models.LoopOffline, LastError: "system offline: no camera available", UpdatedAt: testNow},
		{CameraID: "phone_camera", State: models.LoopRunning, Source: "device:0", RecorderState: "idle", UpdatedAt: testNow.Add(-2 * time.Second)},
	}

	w := env.do(t, http.MethodGet, "/api/system/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[dto.SystemStatus](t, w, dto.KindSystemStatus)

	assert.Equal(t, dto.SystemOnline, st.System)
	assert.Equal(t, "connected", st.Database)
	assert.Equal(t, map[string]bool{"images": true, "videos": true, "missing": false}, st.Directories)
	assert.False(t, st.LiveStream.Active)

	require.Len(t, st.Cameras, 3)
	byID := map[string]dto.CameraStatus{}
	for _, c := range st.Cameras {
		byID[c.CameraID] = c
	}
	assert.Equal(t, dto.LoopOffline, byID["garage"].Status)
	assert.Equal(t, "system offline: no camera available", byID["garage"].Reason)
	assert.Equal(t, dto.LoopStale, byID["porch"].Status)
	assert.Equal(t, dto.LoopOnline, byID["phone_camera"].Status)
}

func TestSystemStatusOffline(t *testing.T) {
	t.Run("no loop online", func(t *testing.T) {
		env := newEnv(t)
		env.store.beats = []models.Heartbeat{
			{CameraID: "phone_camera", State: models.LoopOffline, LastError: "no camera source available"},
		}
		st := decode[dto.SystemStatus](t, env.do(t, http.MethodGet, "/api/system/status", nil), dto.KindSystemStatus)
		assert.Equal(t, dto.SystemOffline, st.System)
	})

	t.Run("no heartbeat yet", func(t *testing.T) {
		env := newEnv(t)
		st := decode[dto.SystemStatus](t, env.do(t, http.MethodGet, "/api/system/status", nil), dto.KindSystemStatus)
		assert.Equal(t, dto.SystemOffline, st.System)
		assert.Empty(t, st.Cameras)
	})

	t.Run("database down", func(t *testing.T) {
		env := newEnv(t)
		env.store.pingErr = errors.New("connection refused")
		env.store.beats = []models.Heartbeat{{CameraID: "phone_camera", State: models.LoopRunning, UpdatedAt: testNow}}
		w := env.do(t, http.MethodGet, "/api/system/status", nil)
		require.Equal(t, http.StatusOK, w.Code)
		st := decode[dto.SystemStatus](t, w, dto.KindSystemStatus)
		assert.Equal(t, dto.SystemOffline, st.System)
		assert.Equal(t, "error", st.Database)
		assert.Equal(t, "connection refused", st.DatabaseErr)
	})
}

func TestVideoRangeRequest(t *testing.T) {
	env := newEnv(t)
	data := bytes.Repeat([]byte("0123456789"), 100)
	require.NoError(t, os.WriteFile(filepath.Join(env.videosDir, "unknown_20240501_180000_000.mp4"), data, 0o644))

	w := env.do(t, http.MethodGet, "/video/unknown_20240501_180000_000.mp4", http.Header{"Range": {"bytes=100-199"}})
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "bytes 100-199/1000", w.Header().Get("Content-Range"))
	assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
	assert.Equal(t, data[100:200], w.Body.Bytes())

	w = env.do(t, http.MethodGet, "/video/unknown_20240501_180000_000.mp4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Body.Bytes(), 1000)
}

func TestImageFallsBackToVideosDirAndArchive(t *testing.T) {
	env := newEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.videosDir, "old.jpg"), []byte("jpeg"), 0o644))
	env.archive.objects["archived.mp4"] = []byte("archived video bytes")

	w := env.do(t, http.MethodGet, "/image/old.jpg", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg", w.Body.String())

	w = env.do(t, http.MethodGet, "/video/archived.mp4", http.Header{"Range": {"bytes=0-7"}})
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "archived", w.Body.String())
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))

	w = env.do(t, http.MethodGet, "/image/missing.jpg", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "media not found", decodeError(t, w))
}

func TestMediaRejectsUnsafeNames(t *testing.T) {
	env := newEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.videosDir, "clip.partial.mp4"), []byte("x"), 0o644))

	for _, target := range []string{
		"/image/..%5Csecret.jpg",
		"/video/.hidden.mp4",
	} {
		w := env.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}

	partial := "unknown_20240501_180000_000.partial.mp4"
	require.NoError(t, os.WriteFile(filepath.Join(env.videosDir, partial), []byte("recording"), 0o644))
	for _, target := range []string{
		"/video/clip.partial.mp4",
		"/image/clip.partial.mp4",
		"/video/" + partial,
		"/image/" + partial,
	} {
		w := env.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, target)
		assert.NotContains(t, w.Body.String(), "recording", target)
	}

	w := env.do(t, http.MethodGet, "/video/../../etc/passwd", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLiveMJPEG(t *testing.T) {
	env := newEnv(t)
	require.NoError(t, os.WriteFile(env.cfg.Media.LiveFile, []byte("frame-bytes"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/live", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	NewRouter(env.cfg).ServeHTTP(w, req)

	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "--frame")
	assert.Contains(t, body, "Content-Type: image/jpeg")
	assert.Equal(t, 1, strings.Count(body, "frame-bytes"), "unchanged file is sent once")
}

func TestOnlyGetRoutes(t *testing.T) {
	env := newEnv(t)
	for _, target := range []string{"/api/logs", "/api/stats", "/image/a.jpg"} {
		w := env.do(t, http.MethodPost, target, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, target)
	}
	w := env.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not found", decodeError(t, w))
}

func TestAPIKeyProtectsAPIButNotHealth(t *testing.T) {
	env := newEnv(t)
	env.cfg.APIKey = "secret"

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/stats", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/stats", http.Header{"X-Api-Key": {"secret"}}).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", nil).Code)
}

func TestReadyz(t *testing.T) {
	env := newEnv(t)
	env.cfg.ArchivePing = pingerFunc(func(context.Context) error { return errors.New("bucket unreachable") })

	w := env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	h := decode[dto.Health](t, w, dto.KindHealth)
	assert.Equal(t, "not ready", h.Status)
	assert.Equal(t, "ok", h.Checks["postgres"])
	assert.Equal(t, "bucket unreachable", h.Checks["minio"])
}
