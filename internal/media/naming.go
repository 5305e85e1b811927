// Package media names, locates and post-processes the files the recognizer writes.
package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	VideoExt   = ".mp4"
	ImageExt   = ".jpg"
	PartialExt = ".partial.mp4"

	// LiveFrameName is the single file the live view reads.
	LiveFrameName = "latest_frame.jpg"
)

var ErrUnsafeName = errors.New("unsafe media name")

// Stamp formats t as YYYYmmdd_HHMMSS_mmm.
func Stamp(t time.Time) string {
	return fmt.Sprintf("%s_%03d", t.Format("20060102_150405"), t.Nanosecond()/int(time.Millisecond))
}

// UnknownStem is the shared base name of an unknown-person video and its snapshot.
func UnknownStem(t time.Time) string {
	return "unknown_" + Stamp(t)
}

func UnknownVideoName(t time.Time) string { return UnknownStem(t) + VideoExt }

func UnknownImageName(t time.Time) string { return UnknownStem(t) + ImageExt }

// KnownImageName names the arrival snapshot of a known identity.
func KnownImageName(identity string, t time.Time) string {
	key := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ' || r == '.':
			return '_'
		default:
			return -1
		}
	}, identity)
	if key == "" {
		key = "person"
	}
	return fmt.Sprintf("known_%s_%s%s", key, Stamp(t), ImageExt)
}

// PartialName returns the in-progress file name for a final video name.
func PartialName(videoName string) string {
	return strings.TrimSuffix(videoName, VideoExt) + PartialExt
}

// SafeName validates a client-supplied media file name. Only bare names
// inside the media directories are allowed.
func SafeName(name string) (string, error) {
	switch {
	case name == "", name == ".", name == "..":
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	case strings.ContainsAny(name, `/\`), strings.Contains(name, ".."):
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	case strings.HasPrefix(name, "."), strings.ContainsRune(name, 0):
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	case filepath.Base(name) != name:
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return name, nil
}

// IsPartial reports whether name belongs to an unfinished recording.
func IsPartial(name string) bool {
	return strings.HasSuffix(name, PartialExt)
}
