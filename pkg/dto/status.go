package dto

import "time"

type Stats struct {
	TotalLogs        int64   `json:"total_logs"`
	KnownCount       int64   `json:"known_count"`
	UnknownCount     int64   `json:"unknown_count"`
	RecentActivity   int64   `json:"recent_activity"`
	FamilyCount      int64   `json:"family_count"`
	MostActiveMember string  `json:"most_active_member"`
	MostActiveCount  int64   `json:"most_active_count"`
	VideoCount       int64   `json:"video_count"`
	AvgVideoDuration float64 `json:"avg_video_duration"`
	TotalStorageMB   float64 `json:"total_storage_mb"`
}

// Liveness of one recognition loop, derived from its heartbeat row.
const (
	LoopOnline  = "online"
	LoopStale   = "stale"
	LoopOffline = "offline"
)

// System values of SystemStatus.
const (
	SystemOnline  = "online"
	SystemOffline = "system offline"
)

type CameraStatus struct {
	CameraID      string    `json:"camera_id"`
	Status        string    `json:"status"`
	State         string    `json:"state"`
	Source        string    `json:"source,omitempty"`
	RecorderState string    `json:"recorder_state,omitempty"`
	FramesRead    int64     `json:"frames_read"`
	Reason        string    `json:"reason,omitempty"`
	LastSeen      time.Time `json:"last_seen"`
}

type LiveStatus struct {
	Active    bool       `json:"active"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type SystemStatus struct {
	System      string          `json:"system"`
	Database    string          `json:"database"`
	DatabaseErr string          `json:"database_error,omitempty"`
	Directories map[string]bool `json:"directories"`
	Cameras     []CameraStatus  `json:"cameras"`
	LiveStream  LiveStatus      `json:"live_stream"`
	Timestamp   time.Time       `json:"timestamp"`
}

type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
