package models

import (
	"image"
	"time"
)

type LoopState string

const (
	LoopStarting LoopState = "starting"
	LoopRunning  LoopState = "running"
	LoopOffline  LoopState = "offline"
	LoopStopped  LoopState = "stopped"
)

// Heartbeat is the recognizer's liveness row, one per camera.
type Heartbeat struct {
	CameraID      string    `json:"camera_id" db:"camera_id"`
	State         LoopState `json:"state" db:"state"`
	Source        string    `json:"source" db:"source"`
	RecorderState string    `json:"recorder_state" db:"recorder_state"`
	FramesRead    int64     `json:"frames_read" db:"frames_read"`
	LastError     string    `json:"last_error,omitempty" db:"last_error"`
	StartedAt     time.Time `json:"started_at" db:"started_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Frame is one captured camera frame. Implementations own native memory,
// so callers must Close every frame they receive.
type Frame interface {
	Image() (image.Image, error)
	Size() (width, height int)
	Close() error
}
