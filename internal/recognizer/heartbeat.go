package recognizer

import (
	"context"
	"log/slog"
	"time"
)

func (r *Runtime) heartbeatLoop(ctx context.Context) {
	if r.deps.Heartbeats == nil {
		<-ctx.Done()
		return
	}

	r.beat(ctx)
	ticker := time.NewTicker(r.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.beat(ctx)
		}
	}
}

// beat upserts the current status row. The dashboard derives liveness from it.
func (r *Runtime) beat(ctx context.Context) {
	if r.deps.Heartbeats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	hb := r.Status()
	if err := r.deps.Heartbeats.BeatHeartbeat(ctx, hb); err != nil {
		slog.Warn("write heartbeat", "camera_id", hb.CameraID, "error", err)
	}
}
