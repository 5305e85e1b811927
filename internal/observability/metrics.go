package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "frames_read_total",
		Help:      "Total number of frames read from the camera",
	}, []string{"camera_id"})

	FramesAnalyzed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "frames_analyzed_total",
		Help:      "Total number of frames passed to the face matcher",
	}, []string{"camera_id"})

	FramesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "frames_skipped_total",
		Help:      "Frames dropped because analysis failed",
	}, []string{"camera_id"})

	FacesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "faces_matched_total",
		Help:      "Faces classified by the matcher, by status",
	}, []string{"camera_id", "status"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "homewatch",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	RecorderState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "homewatch",
		Name:      "recorder_state",
		Help:      "Current recording state (0 idle, 1 armed, 2 recording, 3 cooling)",
	}, []string{"camera_id"})

	Recordings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "recordings_total",
		Help:      "Closed recording sessions by outcome",
	}, []string{"camera_id", "outcome", "reason"})

	ArrivalsLogged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "arrivals_logged_total",
		Help:      "Known-identity arrivals written to the event log",
	}, []string{"identity"})

	EventsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "events_appended_total",
		Help:      "Event log appends by status and result",
	}, []string{"status", "result"})

	CameraReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "camera_reconnects_total",
		Help:      "Camera source re-selections after a dropped stream",
	}, []string{"camera_id"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "homewatch",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "homewatch",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
