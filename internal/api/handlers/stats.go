package handlers

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/homewatch/internal/storage"
	"github.com/your-org/homewatch/pkg/dto"
)

type StatsReader interface {
	Stats(ctx context.Context, now time.Time) (*storage.Stats, error)
}

type StatsHandler struct {
	stats StatsReader
	now   func() time.Time
}

func NewStatsHandler(stats StatsReader, now func() time.Time) *StatsHandler {
	if now == nil {
		now = time.Now
	}
	return &StatsHandler{stats: stats, now: now}
}

// Get serves GET /api/stats.
func (h *StatsHandler) Get(c *gin.Context) {
	st, err := h.stats.Stats(c.Request.Context(), h.now())
	if err != nil {
		slog.Error("load stats", "error", err)
		fail(c, http.StatusInternalServerError, "failed to load stats")
		return
	}

	mostActive := st.MostActive
	if mostActive == "" {
		mostActive = "N/A"
	}
	respond(c, http.StatusOK, dto.KindStats, dto.Stats{
		TotalLogs:        st.TotalEvents,
		KnownCount:       st.KnownEvents,
		UnknownCount:     st.UnknownEvents,
		RecentActivity:   st.Last24h,
		FamilyCount:      st.Identities,
		MostActiveMember: mostActive,
		MostActiveCount:  st.MostActiveCount,
		VideoCount:       st.VideoCount,
		AvgVideoDuration: math.Round(st.AvgVideoDuration*100) / 100,
		TotalStorageMB:   dto.BytesToMB(st.TotalVideoBytes),
	})
}
