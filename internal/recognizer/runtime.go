// Package recognizer runs the camera loop: it reads frames, matches faces,
// drives the recording state machine and writes events.
package recognizer

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/your-org/homewatch/internal/arrival"
	"github.com/your-org/homewatch/internal/capture"
	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/matcher"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/recording"
)

// ErrCameraOffline is returned by Run when no camera source can be opened.
var ErrCameraOffline = errors.New("system offline: no camera available")

type Selector interface {
	Open(ctx context.Context) (capture.Camera, capture.Source, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, img image.Image) ([]matcher.Result, error)
}

type Snapshotter interface {
	Snapshot(path string, f models.Frame, faces []matcher.Result, recording bool) error
}

type LiveWriter interface {
	WriteLive(f models.Frame, faces []matcher.Result, recording bool) error
}

type EventLog interface {
	AppendEvent(ctx context.Context, e *models.RecognitionEvent) error
}

type HeartbeatStore interface {
	BeatHeartbeat(ctx context.Context, hb models.Heartbeat) error
}

// Archiver mirrors finished media to object storage.
type Archiver interface {
	PutFile(ctx context.Context, objectName, path, contentType string) error
}

type Notifier interface {
	PublishNotice(ctx context.Context, n models.Notice) error
}

type Transcoder interface {
	Transcode(ctx context.Context, path string) error
}

// Deps are the collaborators of a Runtime. Live, Heartbeats, Archive,
// Notices and Transcoder are optional.
type Deps struct {
	Selector   Selector
	Analyzer   Analyzer
	Clips      capture.ClipWriter
	Snapshots  Snapshotter
	Live       LiveWriter
	Events     EventLog
	Heartbeats HeartbeatStore
	Archive    Archiver
	Notices    Notifier
	Transcoder Transcoder
	// Now defaults to time.Now.
	Now func() time.Time
}

type Options struct {
	CameraID          string
	ProcessEvery      int
	LiveEvery         int
	Cooldown          time.Duration
	Recording         recording.Config
	ReconnectAttempts int
	ReconnectBackoff  time.Duration
	HeartbeatInterval time.Duration
	ImagesDir         string
	VideosDir         string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CameraID:     cfg.Camera.ID,
		ProcessEvery: cfg.Recognition.ProcessEvery,
		LiveEvery:    cfg.Media.LiveEvery,
		Cooldown:     cfg.Recognition.Cooldown,
		Recording: recording.Config{
			ArmFrames:   cfg.Recording.ArmFrames,
			Grace:       cfg.Recording.Grace,
			MaxDuration: cfg.Recording.MaxDuration,
			MinDuration: cfg.Recording.MinDuration,
		},
		ReconnectAttempts: cfg.Camera.ReconnectAttempts,
		ReconnectBackoff:  cfg.Camera.ReconnectBackoff,
		HeartbeatInterval: cfg.Heartbeat.Interval,
		ImagesDir:         cfg.Media.ImagesPath(),
		VideosDir:         cfg.Media.VideosPath(),
	}
}

// Runtime is the explicit context of one recognition loop. Everything the
// loop mutates lives here; there is no package-level state.
type Runtime struct {
	deps    Deps
	opts    Options
	machine *recording.Machine
	gate    *arrival.Gate

	// owned by the loop goroutine
	active    *activeClip
	lastFaces []matcher.Result
	frameNo   int64

	// bg tracks post-processing of finished recordings.
	bg sync.WaitGroup

	statusMu sync.Mutex
	status   models.Heartbeat
}

// activeClip is the file side of the machine's open session.
type activeClip struct {
	session   recording.Session
	clip      capture.Clip
	videoName string
	imageName string
}

func New(deps Deps, opts Options) *Runtime {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.ProcessEvery < 1 {
		opts.ProcessEvery = 1
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 5 * time.Second
	}
	return &Runtime{
		deps:    deps,
		opts:    opts,
		machine: recording.New(opts.Recording),
		gate:    arrival.NewGate(opts.Cooldown),
		status: models.Heartbeat{
			CameraID:      opts.CameraID,
			State:         models.LoopStarting,
			RecorderState: recording.Idle.String(),
		},
	}
}

// Status returns a copy of the current heartbeat.
func (r *Runtime) Status() models.Heartbeat {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	return r.status
}

func (r *Runtime) updateStatus(fn func(hb *models.Heartbeat)) {
	r.statusMu.Lock()
	fn(&r.status)
	r.status.UpdatedAt = r.deps.Now()
	r.statusMu.Unlock()
}
