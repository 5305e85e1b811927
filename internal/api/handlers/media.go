package handlers

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/homewatch/internal/media"
	"github.com/your-org/homewatch/internal/storage"
)

const liveBoundary = "frame"

// ObjectOpener is the archive fallback for media no longer on local disk.
type ObjectOpener interface {
	Open(ctx context.Context, name string) (*storage.Object, error)
}

type MediaConfig struct {
	ImagesDir    string
	VideosDir    string
	LiveFile     string
	LiveInterval time.Duration
}

type MediaHandler struct {
	cfg     MediaConfig
	archive ObjectOpener
}

// NewMediaHandler serves files from the media directories. archive may be nil.
func NewMediaHandler(cfg MediaConfig, archive ObjectOpener) *MediaHandler {
	if cfg.LiveInterval <= 0 {
		cfg.LiveInterval = 100 * time.Millisecond
	}
	return &MediaHandler{cfg: cfg, archive: archive}
}

// Image serves GET /image/:name. Snapshots live in the images directory;
// older layouts kept them next to the videos.
func (h *MediaHandler) Image(c *gin.Context) {
	h.serve(c, c.Param("name"), h.cfg.ImagesDir, h.cfg.VideosDir)
}

// Video serves GET /video/:name with range support for seeking.
func (h *MediaHandler) Video(c *gin.Context) {
	h.serve(c, c.Param("name"), h.cfg.VideosDir)
}

func (h *MediaHandler) serve(c *gin.Context, raw string, dirs ...string) {
	name, err := media.SafeName(raw)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid media name")
		return
	}
	// recordings still being written are never served, whichever route asks
	if media.IsPartial(name) {
		fail(c, http.StatusNotFound, "media not found")
		return
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			f.Close()
			continue
		}
		c.Header("Accept-Ranges", "bytes")
		http.ServeContent(c.Writer, c.Request, name, info.ModTime(), f)
		f.Close()
		return
	}

	if h.archive != nil {
		obj, err := h.archive.Open(c.Request.Context(), name)
		if err == nil {
			defer obj.Close()
			if obj.ContentType != "" {
				c.Header("Content-Type", obj.ContentType)
			}
			c.Header("Accept-Ranges", "bytes")
			http.ServeContent(c.Writer, c.Request, name, obj.ModTime, obj)
			return
		}
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("open archived media", "name", name, "error", err)
		}
	}

	fail(c, http.StatusNotFound, "media not found")
}

// Live serves GET /api/live as an MJPEG stream of the recognizer's latest
// frame. A part is written whenever the file changes.
func (h *MediaHandler) Live(c *gin.Context) {
	mw := multipart.NewWriter(c.Writer)
	if err := mw.SetBoundary(liveBoundary); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+liveBoundary)
	c.Header("Cache-Control", "no-cache, no-store")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.cfg.LiveInterval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		if info, err := os.Stat(h.cfg.LiveFile); err == nil && !info.ModTime().Equal(lastMod) {
			data, err := os.ReadFile(h.cfg.LiveFile)
			if err == nil && len(data) > 0 {
				lastMod = info.ModTime()
				part, err := mw.CreatePart(textproto.MIMEHeader{
					"Content-Type":   {"image/jpeg"},
					"Content-Length": {strconv.Itoa(len(data))},
				})
				if err != nil {
					return
				}
				if _, err := part.Write(data); err != nil {
					return
				}
				c.Writer.Flush()
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
