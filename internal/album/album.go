// Package album is the local photo sink. All images from one provider call
// land in a single batch directory, which appears atomically or not at all.
package album

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/manash/nogologo/internal/security"
	"github.com/manash/nogologo/pkg/models"
)

const (
	DefaultAlbum = "NoGoLogo"

	stagingPrefix = ".staging-"
)

var ErrNoImages = errors.New("no images to save")

type Library struct {
	root string
	now  func() time.Time
}

func NewLibrary(root string) *Library {
	return &Library{root: root, now: time.Now}
}

func (l *Library) Root() string {
	return l.root
}

// RequestWritePermission checks that the library root can be written to.
// A canceled ctx is returned as is, not as a permission error.
func (l *Library) RequestWritePermission(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.root, 0755); err != nil {
		return models.NewPermissionDenied(fmt.Errorf("cannot create library at %s: %w", l.root, err))
	}

	f, err := os.CreateTemp(l.root, ".writable-*")
	if err != nil {
		return models.NewPermissionDenied(fmt.Errorf("library %s is not writable: %w", l.root, err))
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return nil
}

// SaveBatch writes images into a new batch directory inside albumName and
// returns the final file paths. On failure nothing is left behind.
func (l *Library) SaveBatch(ctx context.Context, images [][]byte, albumName string) ([]string, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if err := l.RequestWritePermission(ctx); err != nil {
		return nil, err
	}

	albumDir := filepath.Join(l.root, security.SanitizeName(albumName, DefaultAlbum))
	if err := os.MkdirAll(albumDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create album directory: %w", err)
	}

	staging, err := os.MkdirTemp(albumDir, stagingPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	names := make([]string, 0, len(images))
	for i, data := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := GenerateFilename(i, Extension(data))
		if err := os.WriteFile(filepath.Join(staging, name), data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write image %d: %w", i+1, err)
		}
		names = append(names, name)
	}

	batchDir := filepath.Join(albumDir, BatchName(l.now(), uuid.NewString()))
	if err := os.Rename(staging, batchDir); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	committed = true

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(batchDir, name)
	}
	return paths, nil
}

// BatchName is "<timestamp>-<first 8 chars of id>".
func BatchName(t time.Time, id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s", t.Format("20060102-150405"), id)
}

func GenerateFilename(index int, ext string) string {
	return fmt.Sprintf("image-%02d.%s", index+1, ext)
}

// Extension sniffs the image format from its content.
func Extension(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "bin"
	}
}
