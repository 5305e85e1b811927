package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/pkg/dto"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HeartbeatReader interface {
	Pinger
	Heartbeats(ctx context.Context) ([]models.Heartbeat, error)
}

type SystemConfig struct {
	// Directories maps a display name to a media directory that should exist.
	Directories map[string]string
	LiveFile    string
	StaleAfter  time.Duration
}

type SystemHandler struct {
	db      HeartbeatReader
	archive Pinger
	cfg     SystemConfig
	now     func() time.Time
}

// NewSystemHandler builds the status handler. archive is optional and only
// affects readiness.
func NewSystemHandler(db HeartbeatReader, archive Pinger, cfg SystemConfig, now func() time.Time) *SystemHandler {
	if now == nil {
		now = time.Now
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Second
	}
	return &SystemHandler{db: db, archive: archive, cfg: cfg, now: now}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	respond(c, http.StatusOK, dto.KindHealth, dto.Health{Status: "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	check := func(name string, err error) {
		if err != nil {
			checks[name] = err.Error()
			healthy = false
			return
		}
		checks[name] = "ok"
	}

	check("postgres", h.db.Ping(ctx))
	if h.archive != nil {
		check("minio", h.archive.Ping(ctx))
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	respond(c, status, dto.KindHealth, dto.Health{
		Status: map[bool]string{true: "ready", false: "not ready"}[healthy],
		Checks: checks,
	})
}

// Status serves GET /api/system/status. It always answers 200; an
// unreachable database or a dead recognition loop is reported in the body
// as "system offline".
func (h *SystemHandler) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	now := h.now()

	st := dto.SystemStatus{
		System:      dto.SystemOffline,
		Database:    "connected",
		Directories: make(map[string]bool, len(h.cfg.Directories)),
		Cameras:     []dto.CameraStatus{},
		Timestamp:   now,
	}

	for name, dir := range h.cfg.Directories {
		info, err := os.Stat(dir)
		st.Directories[name] = err == nil && info.IsDir()
	}

	if info, err := os.Stat(h.cfg.LiveFile); err == nil && h.cfg.LiveFile != "" {
		mod := info.ModTime()
		st.LiveStream = dto.LiveStatus{
			Active:    now.Sub(mod) <= h.cfg.StaleAfter,
			UpdatedAt: &mod,
		}
	}

	if err := h.db.Ping(ctx); err != nil {
		st.Database = "error"
		st.DatabaseErr = err.Error()
		respond(c, http.StatusOK, dto.KindSystemStatus, st)
		return
	}

	beats, err := h.db.Heartbeats(ctx)
	if err != nil {
		st.Database = "error"
		st.DatabaseErr = err.Error()
		respond(c, http.StatusOK, dto.KindSystemStatus, st)
		return
	}

	sort.Slice(beats, func(i, j int) bool { return beats[i].CameraID < beats[j].CameraID })
	for _, hb := range beats {
		cs := cameraStatus(hb, now, h.cfg.StaleAfter)
		if cs.Status == dto.LoopOnline {
			st.System = dto.SystemOnline
		}
		st.Cameras = append(st.Cameras, cs)
	}

	respond(c, http.StatusOK, dto.KindSystemStatus, st)
}

// cameraStatus classifies one heartbeat. A loop that reported offline or
// stopped is offline; a running loop whose row has not been refreshed
// within staleAfter is stale.
func cameraStatus(hb models.Heartbeat, now time.Time, staleAfter time.Duration) dto.CameraStatus {
	cs := dto.CameraStatus{
		CameraID:      hb.CameraID,
		State:         string(hb.State),
		Source:        hb.Source,
		RecorderState: hb.RecorderState,
		FramesRead:    hb.FramesRead,
		LastSeen:      hb.UpdatedAt,
	}

	switch {
	case hb.State == models.LoopOffline:
		cs.Status = dto.LoopOffline
		cs.Reason = hb.LastError
		if cs.Reason == "" {
			cs.Reason = "no camera available"
		}
	case hb.State == models.LoopStopped:
		cs.Status = dto.LoopOffline
		cs.Reason = "recognition loop stopped"
	case now.Sub(hb.UpdatedAt) > staleAfter:
		cs.Status = dto.LoopStale
		cs.Reason = fmt.Sprintf("no heartbeat for %s", now.Sub(hb.UpdatedAt).Round(time.Second))
	default:
		cs.Status = dto.LoopOnline
	}
	return cs
}
