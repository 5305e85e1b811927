package capture

import "github.com/your-org/homewatch/internal/models"

// Clip is a recording in progress. Frames go to a partial file that only
// becomes visible under its final name on Finish.
type Clip interface {
	Write(f models.Frame) error
	// Finish closes the clip and returns the final path and size in bytes.
	Finish() (path string, size int64, err error)
	// Abort closes the clip and removes the partial file.
	Abort() error
}

// ClipWriter opens new clips.
type ClipWriter interface {
	Create(name string, width, height int) (Clip, error)
}
