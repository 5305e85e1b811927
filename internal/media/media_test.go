package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	ts := time.Date(2024, 5, 1, 18, 4, 9, 42*int(time.Millisecond), time.UTC)

	assert.Equal(t, "unknown_20240501_180409_042.mp4", UnknownVideoName(ts))
	assert.Equal(t, "unknown_20240501_180409_042.jpg", UnknownImageName(ts))
	assert.Equal(t, "known_Alice_Smith_20240501_180409_042.jpg", KnownImageName("Alice Smith", ts))
	assert.Equal(t, "known_person_20240501_180409_042.jpg", KnownImageName("???", ts))
	assert.Equal(t, "unknown_20240501_180409_042.partial.mp4", PartialName(UnknownVideoName(ts)))
	assert.True(t, IsPartial(PartialName(UnknownVideoName(ts))))
	assert.False(t, IsPartial(UnknownVideoName(ts)))
}

func TestSafeName(t *testing.T) {
	for _, ok := range []string{"unknown_20240501_180409_042.mp4", "a.jpg", "frame-1.jpg"} {
		got, err := SafeName(ok)
		require.NoError(t, err, ok)
		assert.Equal(t, ok, got)
	}
	for _, bad := range []string{"", ".", "..", "../etc/passwd", "a/b.jpg", `a\b.jpg`, ".env", "x..y"} {
		_, err := SafeName(bad)
		assert.ErrorIs(t, err, ErrUnsafeName, bad)
	}
}

func TestSweepOrphans(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"unknown_1.partial.mp4", "unknown_2.mp4", "unknown_3.partial.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	found, err := SweepOrphans(dir, false)
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.FileExists(t, filepath.Join(dir, "unknown_1.partial.mp4"))

	found, err = SweepOrphans(dir, true)
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.NoFileExists(t, filepath.Join(dir, "unknown_1.partial.mp4"))
	assert.FileExists(t, filepath.Join(dir, "unknown_2.mp4"))
}

func TestSweepOrphansMissingDir(t *testing.T) {
	found, err := SweepOrphans(filepath.Join(t.TempDir(), "nope"), true)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestTranscodeArgs(t *testing.T) {
	args := transcodeArgs("in.mp4", "out.mp4")
	assert.Equal(t, "in.mp4", args[indexOf(args, "-i")+1])
	assert.Equal(t, "+faststart", args[indexOf(args, "-movflags")+1])
	assert.Equal(t, "out.mp4", args[len(args)-1])
}

func TestTranscodeKeepsOriginalOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not a video"), 0o644))

	tr := &Transcoder{Binary: filepath.Join(dir, "no-such-ffmpeg")}
	assert.False(t, tr.Available())
	require.Error(t, tr.Transcode(context.Background(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not a video", string(data))
}

func indexOf(args []string, flag string) int {
	for i, a := range args {
		if a == flag {
			return i
		}
	}
	return -1
}
