package media

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Transcoder re-encodes finalized recordings to H.264 with the moov atom up
// front, so browsers can start playback and seek before the download ends.
// OpenCV's mp4v output plays in VLC but not in most browsers.
type Transcoder struct {
	Binary string
}

func NewTranscoder() *Transcoder {
	return &Transcoder{Binary: "ffmpeg"}
}

// Available reports whether the ffmpeg binary is on PATH.
func (t *Transcoder) Available() bool {
	_, err := exec.LookPath(t.Binary)
	return err == nil
}

// Transcode rewrites path in place. On failure the original file is kept.
func (t *Transcoder) Transcode(ctx context.Context, path string) error {
	tmp := strings.TrimSuffix(path, VideoExt) + ".h264" + VideoExt
	defer os.Remove(tmp)

	cmd := exec.CommandContext(ctx, t.Binary, transcodeArgs(path, tmp)...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		slog.Debug("ffmpeg stderr", "output", scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg transcode %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func transcodeArgs(in, out string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-y",
		"-i", in,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-an",
		out,
	}
}
