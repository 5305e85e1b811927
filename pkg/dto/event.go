package dto

import (
	"math"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/homewatch/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

type EventResponse struct {
	ID              int64     `json:"id"`
	EventID         uuid.UUID `json:"event_id"`
	Timestamp       time.Time `json:"timestamp"`
	DisplayTime     string    `json:"display_time"`
	CameraID        string    `json:"camera_id"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	ConfidenceScore *float64  `json:"confidence_score"`
	ImagePath       string    `json:"image_path,omitempty"`
	VideoPath       string    `json:"video_path,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	VideoURL        string    `json:"video_url,omitempty"`
	VideoDuration   *float64  `json:"video_duration"`
	FileSizeMB      *float64  `json:"file_size_mb"`
	CaptureType     string    `json:"capture_type"`
}

// FromEvent converts a stored event to its response form. Times are
// rendered in loc.
func FromEvent(e models.RecognitionEvent, loc *time.Location) EventResponse {
	if loc == nil {
		loc = time.Local
	}
	r := EventResponse{
		ID:              e.ID,
		EventID:         e.EventID,
		Timestamp:       e.Timestamp.In(loc),
		DisplayTime:     e.Timestamp.In(loc).Format(timeLayout),
		CameraID:        e.CameraID,
		Name:            e.DisplayIdentity(),
		Status:          string(e.Status),
		ConfidenceScore: round(e.Confidence, 1),
		ImagePath:       e.ImagePath,
		VideoPath:       e.VideoPath,
		VideoDuration:   round(e.VideoDuration, 1),
		CaptureType:     string(e.CaptureType),
	}
	if e.ImagePath != "" {
		r.ImageURL = "/image/" + url.PathEscape(e.ImagePath)
	}
	if e.VideoPath != "" {
		r.VideoURL = "/video/" + url.PathEscape(e.VideoPath)
	}
	if e.FileSize != nil {
		mb := BytesToMB(*e.FileSize)
		r.FileSizeMB = &mb
	}
	return r
}

func FromEvents(events []models.RecognitionEvent, loc *time.Location) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, FromEvent(e, loc))
	}
	return out
}

type Pagination struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	TotalCount int  `json:"total_count"`
	HasPrev    bool `json:"has_prev"`
	HasNext    bool `json:"has_next"`
}

// NewPagination computes page bounds for total rows at perPage per page.
func NewPagination(page, perPage, total int) Pagination {
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalPages: pages,
		TotalCount: total,
		HasPrev:    page > 1,
		HasNext:    page < pages,
	}
}

type LogFilters struct {
	Status   string `json:"status"`
	Name     string `json:"name,omitempty"`
	Date     string `json:"date,omitempty"`
	CameraID string `json:"camera_id,omitempty"`
}

type LogPage struct {
	Logs       []EventResponse `json:"logs"`
	Pagination Pagination      `json:"pagination"`
	Filters    LogFilters      `json:"filters"`
}

type SearchResults struct {
	Query   string          `json:"query"`
	Count   int             `json:"count"`
	Results []EventResponse `json:"results"`
}

// BytesToMB converts a byte count to mebibytes rounded to two decimals.
func BytesToMB(n int64) float64 {
	return math.Round(float64(n)/1024/1024*100) / 100
}

func round(v *float64, digits int) *float64 {
	if v == nil {
		return nil
	}
	p := math.Pow(10, float64(digits))
	r := math.Round(*v*p) / p
	return &r
}
