package media

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// SweepOrphans lists partial recordings left behind by an interrupted
// recorder. They are never logged as events. With remove set they are deleted.
func SweepOrphans(dir string, remove bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read media dir: %w", err)
	}

	var orphans []string
	for _, e := range entries {
		if e.IsDir() || !IsPartial(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		orphans = append(orphans, path)
		if !remove {
			slog.Warn("orphaned partial recording", "path", path)
			continue
		}
		if err := os.Remove(path); err != nil {
			slog.Warn("remove orphaned recording", "path", path, "error", err)
			continue
		}
		slog.Info("removed orphaned recording", "path", path)
	}
	return orphans, nil
}

// EnsureDirs creates every directory in dirs.
func EnsureDirs(dirs ...string) error {
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}
