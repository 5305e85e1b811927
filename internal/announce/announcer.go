// Package announce turns recognizer notices into spoken or logged messages.
package announce

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/models"
)

const intruderAlert = "Unknown person detected. Recording in progress."

// Runner executes an external command. exec.CommandContext in production.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

type Announcer struct {
	greeting string
	command  []string
	timeout  time.Duration
	run      Runner
	names    map[string]string
}

// New builds an announcer. names maps identity keys to display names and
// may be nil.
func New(cfg config.AnnouncerConfig, names map[string]string) *Announcer {
	greeting := cfg.Greeting
	if !strings.Contains(greeting, "%s") {
		greeting = "Welcome home, %s!"
	}
	return &Announcer{
		greeting: greeting,
		command:  strings.Fields(cfg.Command),
		timeout:  30 * time.Second,
		run:      execRunner,
		names:    names,
	}
}

// Message returns the text announced for n, or "" for kinds that are not announced.
func (a *Announcer) Message(n models.Notice) string {
	switch n.Kind {
	case models.NoticeArrival:
		name := n.Identity
		if display, ok := a.names[name]; ok && display != "" {
			name = display
		}
		return fmt.Sprintf(a.greeting, name)
	case models.NoticeIntruder:
		return intruderAlert
	default:
		return ""
	}
}

// Handle announces one notice. A failing speech command is returned so the
// notice is redelivered.
func (a *Announcer) Handle(ctx context.Context, n models.Notice) error {
	msg := a.Message(n)
	if msg == "" {
		slog.Debug("ignoring notice", "kind", n.Kind)
		return nil
	}

	switch n.Kind {
	case models.NoticeIntruder:
		slog.Warn(msg, "camera_id", n.CameraID, "video_path", n.VideoPath, "image_path", n.ImagePath)
	default:
		slog.Info(msg, "camera_id", n.CameraID, "identity", n.Identity, "confidence", n.Confidence)
	}

	if len(a.command) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	args := append(append([]string{}, a.command[1:]...), msg)
	if err := a.run(ctx, a.command[0], args...); err != nil {
		return fmt.Errorf("announce %s: %w", n.Kind, err)
	}
	return nil
}
