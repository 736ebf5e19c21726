// Package backup persists metadata snapshots taken before a photo is
// rewritten, so a later restore can put the original values back.
package backup

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/bstardust/photokit/internal/logger"
	"github.com/bstardust/photokit/pkg/models"
	"github.com/bstardust/photokit/pkg/photokit"
)

// ErrNotFound is returned by Load when no snapshot exists for a path.
var ErrNotFound = errors.New("snapshot not found")

// Store saves and loads one snapshot per photo path.
type Store interface {
	Save(ctx context.Context, path string, snapshot models.PhotoMetadata) error
	Load(ctx context.Context, path string) (models.PhotoMetadata, error)
	// Delete drops the snapshot of path. A missing snapshot is not an error.
	Delete(ctx context.Context, path string) error
	// List returns every stored snapshot ordered by path.
	List(ctx context.Context) ([]Entry, error)
}

// Entry is a stored snapshot
type Entry struct {
	Path     string               `json:"path"`
	Snapshot models.PhotoMetadata `json:"snapshot"`
	SavedAt  time.Time            `json:"savedAt"`
}

// Func returns a BackupFunc that saves the snapshot of path into store.
func Func(ctx context.Context, store Store, path string) photokit.BackupFunc {
	return func(snapshot models.PhotoMetadata) error {
		if err := store.Save(ctx, path, snapshot); err != nil {
			return err
		}
		logger.Debug("Backed up metadata of %s", path)
		return nil
	}
}

// keyFor normalizes path so the same file maps to the same entry however
// it was spelled on the command line.
func keyFor(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
