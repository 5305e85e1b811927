package recognizer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/homewatch/internal/matcher"
	"github.com/your-org/homewatch/internal/media"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/observability"
	"github.com/your-org/homewatch/internal/recording"
)

const noticeTimeout = 5 * time.Second

// apply carries out the machine's actions. f is nil when the session is
// closed without a current frame (camera drop, shutdown).
func (r *Runtime) apply(ctx context.Context, actions []recording.Action, f models.Frame) {
	for _, a := range actions {
		switch a.Kind {
		case recording.ActionStart:
			r.startClip(ctx, a.Session, f)
		case recording.ActionFinalize:
			r.finalizeClip(ctx, a)
		case recording.ActionDiscard:
			r.discardClip(a)
		}
	}
}

func (r *Runtime) startClip(ctx context.Context, s recording.Session, f models.Frame) {
	ac := &activeClip{
		session:   s,
		videoName: media.UnknownVideoName(s.StartedAt),
		imageName: media.UnknownImageName(s.StartedAt),
	}
	r.active = ac

	if f == nil {
		return
	}
	w, h := f.Size()
	clip, err := r.deps.Clips.Create(ac.videoName, w, h)
	if err != nil {
		slog.Error("open recording", "camera_id", r.opts.CameraID, "video", ac.videoName, "error", err)
	} else {
		ac.clip = clip
	}

	if err := r.deps.Snapshots.Snapshot(filepath.Join(r.opts.ImagesDir, ac.imageName), f, r.lastFaces, true); err != nil {
		slog.Warn("save unknown snapshot", "image", ac.imageName, "error", err)
		ac.imageName = ""
	}

	slog.Info("recording started",
		"camera_id", r.opts.CameraID,
		"session_id", s.ID,
		"video", ac.videoName,
	)
	r.notify(ctx, models.Notice{
		Kind:      models.NoticeIntruder,
		CameraID:  r.opts.CameraID,
		ImagePath: ac.imageName,
		VideoPath: ac.videoName,
		Timestamp: s.StartedAt,
	})
}

// finalizeClip closes the file and logs the unknown event. The file work
// and the event write run in the background so the loop keeps reading.
func (r *Runtime) finalizeClip(ctx context.Context, a recording.Action) {
	ac := r.active
	r.active = nil
	if ac == nil || ac.session.ID != a.Session.ID {
		slog.Error("finalize without matching recording", "session_id", a.Session.ID)
		return
	}
	observability.Recordings.WithLabelValues(r.opts.CameraID, "finalized", string(a.Reason)).Inc()

	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		ctx := context.WithoutCancel(ctx)

		var (
			videoName string
			fileSize  *int64
		)
		if ac.clip != nil {
			path, size, err := ac.clip.Finish()
			if err != nil {
				slog.Error("finish recording", "video", ac.videoName, "error", err)
			} else {
				if r.deps.Transcoder != nil {
					if err := r.deps.Transcoder.Transcode(ctx, path); err != nil {
						slog.Warn("transcode recording", "video", ac.videoName, "error", err)
					} else if info, err := os.Stat(path); err == nil {
						size = info.Size()
					}
				}
				videoName = ac.videoName
				fileSize = &size
				r.archive(ctx, videoName, path, "video/mp4")
			}
		}
		if ac.imageName != "" {
			r.archive(ctx, ac.imageName, filepath.Join(r.opts.ImagesDir, ac.imageName), "image/jpeg")
		}

		// without a file there is no video and no duration to report
		var duration *float64
		if videoName != "" {
			d := a.Session.Duration.Seconds()
			duration = &d
		}
		ev := &models.RecognitionEvent{
			EventID:       a.Session.ID,
			Timestamp:     a.Session.StartedAt,
			CameraID:      r.opts.CameraID,
			ImagePath:     ac.imageName,
			VideoPath:     videoName,
			Status:        models.StatusUnknown,
			VideoDuration: duration,
			FileSize:      fileSize,
			CaptureType:   models.CaptureAuto,
		}
		r.appendEvent(ctx, ev)

		slog.Info("recording finalized",
			"camera_id", r.opts.CameraID,
			"session_id", a.Session.ID,
			"video", videoName,
			"duration", a.Session.Duration,
			"presence", a.Session.Presence,
			"reason", a.Reason,
		)
	}()
}

func (r *Runtime) discardClip(a recording.Action) {
	ac := r.active
	r.active = nil
	observability.Recordings.WithLabelValues(r.opts.CameraID, "discarded", string(a.Reason)).Inc()
	if ac == nil {
		return
	}

	if ac.clip != nil {
		if err := ac.clip.Abort(); err != nil {
			slog.Warn("discard recording", "video", ac.videoName, "error", err)
		}
	}
	if ac.imageName != "" {
		if err := os.Remove(filepath.Join(r.opts.ImagesDir, ac.imageName)); err != nil && !os.IsNotExist(err) {
			slog.Warn("remove discarded snapshot", "image", ac.imageName, "error", err)
		}
	}
	slog.Info("recording discarded",
		"camera_id", r.opts.CameraID,
		"session_id", a.Session.ID,
		"duration", a.Session.Duration,
		"presence", a.Session.Presence,
		"min_duration", r.opts.Recording.MinDuration,
	)
}

// logArrival writes one known-identity event. Known faces never start a recording.
func (r *Runtime) logArrival(ctx context.Context, f models.Frame, face matcher.Result, now time.Time) {
	imageName := media.KnownImageName(face.Identity, now)
	path := filepath.Join(r.opts.ImagesDir, imageName)
	if err := r.deps.Snapshots.Snapshot(path, f, r.lastFaces, r.active != nil); err != nil {
		slog.Warn("save arrival snapshot", "identity", face.Identity, "error", err)
		imageName = ""
	}

	confidence := face.Confidence
	ev := &models.RecognitionEvent{
		EventID:     uuid.New(),
		Timestamp:   now,
		CameraID:    r.opts.CameraID,
		Identity:    face.Identity,
		Confidence:  &confidence,
		ImagePath:   imageName,
		Status:      models.StatusKnown,
		CaptureType: models.CaptureAuto,
	}
	r.appendEvent(ctx, ev)
	observability.ArrivalsLogged.WithLabelValues(face.Identity).Inc()

	slog.Info("known arrival",
		"camera_id", r.opts.CameraID,
		"identity", face.Identity,
		"confidence", confidence,
	)
	r.notify(ctx, models.Notice{
		Kind:       models.NoticeArrival,
		CameraID:   r.opts.CameraID,
		Identity:   face.Identity,
		Confidence: confidence,
		ImagePath:  imageName,
		Timestamp:  now,
	})

	if imageName != "" {
		r.bg.Add(1)
		go func() {
			defer r.bg.Done()
			r.archive(context.WithoutCancel(ctx), imageName, path, "image/jpeg")
		}()
	}
}

// appendEvent writes e once. Failures are logged and the event is dropped.
func (r *Runtime) appendEvent(ctx context.Context, e *models.RecognitionEvent) {
	if err := r.deps.Events.AppendEvent(ctx, e); err != nil {
		observability.EventsAppended.WithLabelValues(string(e.Status), "error").Inc()
		slog.Error("append event",
			"camera_id", e.CameraID,
			"event_id", e.EventID,
			"status", e.Status,
			"error", err,
		)
		return
	}
	observability.EventsAppended.WithLabelValues(string(e.Status), "ok").Inc()
}

func (r *Runtime) archive(ctx context.Context, objectName, path, contentType string) {
	if r.deps.Archive == nil {
		return
	}
	if err := r.deps.Archive.PutFile(ctx, objectName, path, contentType); err != nil {
		slog.Warn("archive media", "object", objectName, "error", err)
	}
}

// notify publishes n in the background so a slow broker never stalls frame reads.
func (r *Runtime) notify(ctx context.Context, n models.Notice) {
	if r.deps.Notices == nil {
		return
	}
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), noticeTimeout)
		defer cancel()
		if err := r.deps.Notices.PublishNotice(ctx, n); err != nil {
			slog.Warn("publish notice", "kind", n.Kind, "error", err)
		}
	}()
}
