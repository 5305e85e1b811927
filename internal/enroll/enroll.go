// Package enroll builds the known-identity registry from a directory of
// labeled photos, one identity per file named after the person.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/your-org/homewatch/internal/models"
)

var ErrNoName = errors.New("file name has no usable identity")

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".tif": true, ".tiff": true,
}

type Embedder interface {
	EmbedLargest(img image.Image) ([]float32, float32, error)
}

type Registry interface {
	UpsertIdentity(ctx context.Context, name, displayName, imagePath string) (*models.Identity, error)
	AddEmbedding(ctx context.Context, identityID uuid.UUID, embedding []float32, quality float32, sourcePath string) (*models.IdentityEmbedding, error)
	ReplaceEmbeddings(ctx context.Context, identityID uuid.UUID, embedding []float32, quality float32, sourcePath string) error
}

type Result struct {
	File     string
	Identity string
	Quality  float32
	Err      error
}

type Enroller struct {
	embedder Embedder
	registry Registry
	// Replace drops an identity's previous embeddings the first time it is
	// enrolled in this run.
	Replace bool

	replaced map[string]bool
}

func New(embedder Embedder, registry Registry) *Enroller {
	return &Enroller{embedder: embedder, registry: registry, replaced: map[string]bool{}}
}

// ListImages returns the supported image files directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// DecodeImage reads a JPEG, PNG, BMP or TIFF file.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// EnrollFile embeds the largest face in path and stores it under the
// identity named by the file.
func (e *Enroller) EnrollFile(ctx context.Context, path string) Result {
	key, display := NameFromFile(path)
	res := Result{File: path, Identity: key}
	if key == "" {
		res.Err = fmt.Errorf("%w: %s", ErrNoName, filepath.Base(path))
		return res
	}

	img, err := DecodeImage(path)
	if err != nil {
		res.Err = err
		return res
	}
	embedding, quality, err := e.embedder.EmbedLargest(img)
	if err != nil {
		res.Err = fmt.Errorf("embed %s: %w", filepath.Base(path), err)
		return res
	}
	res.Quality = quality

	identity, err := e.registry.UpsertIdentity(ctx, key, display, path)
	if err != nil {
		res.Err = err
		return res
	}

	if e.Replace && !e.replaced[key] {
		e.replaced[key] = true
		res.Err = e.registry.ReplaceEmbeddings(ctx, identity.ID, embedding, quality, path)
		return res
	}
	if _, err := e.registry.AddEmbedding(ctx, identity.ID, embedding, quality, path); err != nil {
		res.Err = err
	}
	return res
}
