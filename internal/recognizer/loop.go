package recognizer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/homewatch/internal/capture"
	"github.com/your-org/homewatch/internal/matcher"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/observability"
)

// Run selects a camera and processes frames until ctx is cancelled or no
// camera can be opened. Cancellation is a clean stop and returns nil.
// Exhausting every source returns an error wrapping ErrCameraOffline.
func (r *Runtime) Run(ctx context.Context) error {
	r.updateStatus(func(hb *models.Heartbeat) {
		hb.State = models.LoopStarting
		hb.StartedAt = r.deps.Now()
	})

	hbCtx, stopHeartbeat := context.WithCancel(context.WithoutCancel(ctx))
	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		r.heartbeatLoop(hbCtx)
	}()

	err := r.loop(ctx)

	r.bg.Wait()
	stopHeartbeat()
	<-hbDone
	r.beat(context.WithoutCancel(ctx))
	return err
}

func (r *Runtime) loop(ctx context.Context) error {
	connected := false
	failures := 0
	for {
		cam, src, err := r.deps.Selector.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.markStopped()
				return nil
			}
			failures++
			if !connected || failures >= r.opts.ReconnectAttempts {
				return r.markOffline(err)
			}
			slog.Warn("camera reconnect failed",
				"camera_id", r.opts.CameraID,
				"attempt", failures,
				"max_attempts", r.opts.ReconnectAttempts,
				"error", err,
			)
			if !sleepCtx(ctx, r.opts.ReconnectBackoff) {
				r.markStopped()
				return nil
			}
			continue
		}

		connected = true
		failures = 0
		r.updateStatus(func(hb *models.Heartbeat) {
			hb.State = models.LoopRunning
			hb.Source = src.String()
			hb.LastError = ""
		})
		slog.Info("recognition loop running", "camera_id", r.opts.CameraID, "source", src.String())

		err = r.stream(ctx, cam)
		cam.Close()
		if ctx.Err() != nil {
			r.markStopped()
			return nil
		}

		observability.CameraReconnects.WithLabelValues(r.opts.CameraID).Inc()
		slog.Warn("camera stream dropped, reselecting source",
			"camera_id", r.opts.CameraID,
			"source", src.String(),
			"error", err,
		)
		r.updateStatus(func(hb *models.Heartbeat) { hb.LastError = err.Error() })
		if !sleepCtx(ctx, r.opts.ReconnectBackoff) {
			r.markStopped()
			return nil
		}
	}
}

// stream reads frames from cam until it fails or ctx is cancelled. Either
// way an open recording is closed as interrupted.
func (r *Runtime) stream(ctx context.Context, cam capture.Camera) error {
	for {
		f, err := cam.Read(ctx)
		if err != nil {
			r.interrupt(context.WithoutCancel(ctx))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		r.handleFrame(ctx, f)
		f.Close()
	}
}

func (r *Runtime) handleFrame(ctx context.Context, f models.Frame) {
	now := r.deps.Now()
	n := r.frameNo
	r.frameNo++
	observability.FramesRead.WithLabelValues(r.opts.CameraID).Inc()

	actions := r.machine.Tick(now)
	if n%int64(r.opts.ProcessEvery) == 0 {
		faces, err := r.analyze(ctx, f)
		if err != nil {
			// matcher failures skip the frame; only the timers advance
			observability.FramesSkipped.WithLabelValues(r.opts.CameraID).Inc()
			slog.Warn("analyze frame", "camera_id", r.opts.CameraID, "error", err)
		} else {
			r.lastFaces = faces
			unknownPresent := false
			for _, face := range faces {
				if !face.Known {
					unknownPresent = true
					continue
				}
				if r.gate.Allow(face.Identity, now) {
					r.logArrival(ctx, f, face, now)
				}
			}
			actions = append(actions, r.machine.Observe(now, unknownPresent)...)
		}
	}

	r.apply(ctx, actions, f)

	if r.active != nil && r.active.clip != nil {
		if err := r.active.clip.Write(f); err != nil {
			slog.Warn("write recording frame", "video", r.active.videoName, "error", err)
		}
	}

	if r.deps.Live != nil && r.opts.LiveEvery > 0 && n%int64(r.opts.LiveEvery) == 0 {
		if err := r.deps.Live.WriteLive(f, r.lastFaces, r.active != nil); err != nil {
			slog.Debug("write live frame", "error", err)
		}
	}

	state := r.machine.State()
	observability.RecorderState.WithLabelValues(r.opts.CameraID).Set(float64(state))
	r.updateStatus(func(hb *models.Heartbeat) {
		hb.FramesRead++
		hb.RecorderState = state.String()
	})
}

func (r *Runtime) analyze(ctx context.Context, f models.Frame) ([]matcher.Result, error) {
	img, err := f.Image()
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	faces, err := r.deps.Analyzer.Analyze(ctx, img)
	if err != nil {
		return nil, err
	}

	observability.FramesAnalyzed.WithLabelValues(r.opts.CameraID).Inc()
	for _, face := range faces {
		status := models.StatusUnknown
		if face.Known {
			status = models.StatusKnown
		}
		observability.FacesMatched.WithLabelValues(r.opts.CameraID, string(status)).Inc()
	}
	return faces, nil
}

func (r *Runtime) interrupt(ctx context.Context) {
	r.apply(ctx, r.machine.Interrupt(r.deps.Now()), nil)
	observability.RecorderState.WithLabelValues(r.opts.CameraID).Set(float64(r.machine.State()))
}

func (r *Runtime) markStopped() {
	r.updateStatus(func(hb *models.Heartbeat) {
		hb.State = models.LoopStopped
		hb.RecorderState = r.machine.State().String()
	})
	slog.Info("recognition loop stopped", "camera_id", r.opts.CameraID)
}

func (r *Runtime) markOffline(cause error) error {
	r.updateStatus(func(hb *models.Heartbeat) {
		hb.State = models.LoopOffline
		hb.Source = ""
		hb.LastError = cause.Error()
	})
	slog.Error("system offline: no camera source available",
		"camera_id", r.opts.CameraID,
		"error", cause,
	)
	return fmt.Errorf("%w: %w", ErrCameraOffline, cause)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
