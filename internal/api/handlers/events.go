package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/storage"
	"github.com/your-org/homewatch/pkg/dto"
)

const searchLimit = 50

type EventReader interface {
	QueryEvents(ctx context.Context, f storage.EventFilter) ([]models.RecognitionEvent, int, error)
	SearchEvents(ctx context.Context, q string, limit int) ([]models.RecognitionEvent, error)
}

type EventHandler struct {
	events     EventReader
	perPage    int
	maxPerPage int
	loc        *time.Location
}

func NewEventHandler(events EventReader, perPage, maxPerPage int, loc *time.Location) *EventHandler {
	if perPage <= 0 {
		perPage = 20
	}
	if maxPerPage < perPage {
		maxPerPage = perPage
	}
	if loc == nil {
		loc = time.Local
	}
	return &EventHandler{events: events, perPage: perPage, maxPerPage: maxPerPage, loc: loc}
}

// Logs serves GET /api/logs.
func (h *EventHandler) Logs(c *gin.Context) {
	f, filters, err := h.parseFilter(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	events, total, err := h.events.QueryEvents(c.Request.Context(), f)
	if err != nil {
		slog.Error("query events", "error", err)
		fail(c, http.StatusInternalServerError, "failed to load logs")
		return
	}

	respond(c, http.StatusOK, dto.KindLogPage, dto.LogPage{
		Logs:       dto.FromEvents(events, h.loc),
		Pagination: dto.NewPagination(f.Page, f.PerPage, total),
		Filters:    filters,
	})
}

// Search serves GET /api/search. An empty query returns no results.
func (h *EventHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		respond(c, http.StatusOK, dto.KindSearchResults, dto.SearchResults{Results: []dto.EventResponse{}})
		return
	}

	events, err := h.events.SearchEvents(c.Request.Context(), q, searchLimit)
	if err != nil {
		slog.Error("search events", "query", q, "error", err)
		fail(c, http.StatusInternalServerError, "search failed")
		return
	}

	results := dto.FromEvents(events, h.loc)
	respond(c, http.StatusOK, dto.KindSearchResults, dto.SearchResults{
		Query:   q,
		Count:   len(results),
		Results: results,
	})
}

func (h *EventHandler) parseFilter(c *gin.Context) (storage.EventFilter, dto.LogFilters, error) {
	f := storage.EventFilter{Page: 1, PerPage: h.perPage}
	filters := dto.LogFilters{Status: "all"}

	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, filters, fmt.Errorf("invalid page %q", v)
		}
		f.Page = max(n, 1)
	}
	if v := c.Query("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, filters, fmt.Errorf("invalid per_page %q", v)
		}
		f.PerPage = min(n, h.maxPerPage)
	}

	switch v := strings.ToLower(c.DefaultQuery("status", "all")); v {
	case "", "all":
	case string(models.StatusKnown), string(models.StatusUnknown):
		f.Status = models.Status(v)
		filters.Status = v
	default:
		return f, filters, fmt.Errorf("invalid status %q", v)
	}

	if v := strings.TrimSpace(c.Query("name")); v != "" {
		f.Name = v
		filters.Name = v
	}
	if v := strings.TrimSpace(c.Query("date")); v != "" {
		day, err := time.ParseInLocation(time.DateOnly, v, h.loc)
		if err != nil {
			return f, filters, fmt.Errorf("invalid date %q, want YYYY-MM-DD", v)
		}
		f.Date = &day
		filters.Date = v
	}
	if v := strings.TrimSpace(c.Query("camera_id")); v != "" {
		f.CameraID = v
		filters.CameraID = v
	}
	return f, filters, nil
}
