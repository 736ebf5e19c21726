package photokit

import (
	"context"
	"image"

	"github.com/bstardust/photokit/pkg/models"
)

// TransformResult carries the output of TransformAsync. The caller owns
// Image; the Kit keeps no reference to it.
type TransformResult struct {
	Path     string
	Image    image.Image
	Metadata models.PhotoMetadata
	Err      error
}

// InfoAsyncResult carries the output of ReadInfoAsync.
type InfoAsyncResult struct {
	Info ImageInfo
	Err  error
}

// UpdateResult carries the output of UpdateGPSAsync.
type UpdateResult struct {
	Snapshot models.PhotoMetadata
	Err      error
}

// TransformAsync runs Transform on the Kit's worker pool. The channel yields
// exactly one result and is then closed. The call blocks while every worker
// is busy.
func (k *Kit) TransformAsync(ctx context.Context, path string) <-chan TransformResult {
	ch := make(chan TransformResult, 1)
	k.pool.Submit(func() {
		defer close(ch)
		res := TransformResult{Path: path}
		res.Err = k.Transform(ctx, path, func(img image.Image, md models.PhotoMetadata) error {
			res.Image = img
			res.Metadata = md
			return nil
		})
		ch <- res
	})
	return ch
}

// ReadInfoAsync runs ReadInfo on the Kit's worker pool.
func (k *Kit) ReadInfoAsync(ctx context.Context, path string) <-chan InfoAsyncResult {
	ch := make(chan InfoAsyncResult, 1)
	k.pool.Submit(func() {
		defer close(ch)
		info, err := k.ReadInfo(ctx, path)
		ch <- InfoAsyncResult{Info: info, Err: err}
	})
	return ch
}

// UpdateGPSAsync runs UpdateGPS on the Kit's worker pool. Concurrent updates
// of the same path are not coordinated.
func (k *Kit) UpdateGPSAsync(ctx context.Context, path string, update GPSUpdate, backup BackupFunc) <-chan UpdateResult {
	ch := make(chan UpdateResult, 1)
	k.pool.Submit(func() {
		defer close(ch)
		snap, err := k.UpdateGPS(ctx, path, update, backup)
		ch <- UpdateResult{Snapshot: snap, Err: err}
	})
	return ch
}
