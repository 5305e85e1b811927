package models

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusKnown   Status = "known"
	StatusUnknown Status = "unknown"
)

type CaptureType string

const (
	CaptureAuto CaptureType = "auto"
)

// UnknownIdentity is the label shown for faces with no registry match.
const UnknownIdentity = "Unknown"

// RecognitionEvent is one row of the append-only event log.
// Identity is empty for unknown events.
type RecognitionEvent struct {
	ID            int64       `json:"id" db:"id"`
	EventID       uuid.UUID   `json:"event_id" db:"event_id"`
	Timestamp     time.Time   `json:"timestamp" db:"timestamp"`
	CameraID      string      `json:"camera_id" db:"camera_id"`
	Identity      string      `json:"identity" db:"identity"`
	Confidence    *float64    `json:"confidence,omitempty" db:"confidence"`
	ImagePath     string      `json:"image_path,omitempty" db:"image_path"`
	VideoPath     string      `json:"video_path,omitempty" db:"video_path"`
	Status        Status      `json:"status" db:"status"`
	VideoDuration *float64    `json:"video_duration,omitempty" db:"video_duration"`
	FileSize      *int64      `json:"file_size,omitempty" db:"file_size"`
	CaptureType   CaptureType `json:"capture_type" db:"capture_type"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// DisplayIdentity returns the identity, or UnknownIdentity for unmatched faces.
func (e *RecognitionEvent) DisplayIdentity() string {
	if e.Status == StatusUnknown || e.Identity == "" {
		return UnknownIdentity
	}
	return e.Identity
}

// Notice is the message published to NATS when something worth announcing happens.
type Notice struct {
	Kind       string    `json:"kind"` // arrival, intruder
	CameraID   string    `json:"camera_id"`
	Identity   string    `json:"identity,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	ImagePath  string    `json:"image_path,omitempty"`
	VideoPath  string    `json:"video_path,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	NoticeArrival  = "arrival"
	NoticeIntruder = "intruder"
)
