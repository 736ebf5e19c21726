package photokit

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bstardust/photokit/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformBatch(t *testing.T) {
	good := writeJPEG(t, "good.jpg", originalProps())
	missing := filepath.Join(t.TempDir(), "missing.jpg")
	unsupported := "/photos/notes.txt"

	var visited []string
	results := newTestKit().TransformBatch(context.Background(), []string{good, missing, unsupported},
		func(path string, img image.Image, md models.PhotoMetadata) error {
			visited = append(visited, path)
			assert.Equal(t, "Nikon", md.Exif.CameraMake)
			return nil
		})

	require.Len(t, results, 3)
	assert.Equal(t, good, results[0].Path)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrFileNotFound)
	assert.ErrorIs(t, results[2].Err, ErrUnsupportedFormat)
	assert.Equal(t, []string{good}, visited)
}

func TestTransformBatchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := newTestKit().TransformBatch(ctx, []string{"a.jpg", "b.jpg"}, nil)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestReadInfoBatch(t *testing.T) {
	good := writeJPEG(t, "good.jpg", nil)
	missing := filepath.Join(t.TempDir(), "missing.jpg")

	results := newTestKit().ReadInfoBatch(context.Background(), []string{good, missing})
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 24, results[0].Info.Width)
	assert.Equal(t, missing, results[1].Path)
	assert.ErrorIs(t, results[1].Err, ErrFileNotFound)
}

func TestTransformAsync(t *testing.T) {
	path := writeJPEG(t, "async.jpg", originalProps())
	k := newTestKit()

	ch := k.TransformAsync(context.Background(), path)
	res, ok := <-ch
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, image.Rect(0, 0, 24, 16), res.Image.Bounds())
	assert.Equal(t, "Z 8", res.Metadata.Exif.CameraModel)

	_, ok = <-ch
	assert.False(t, ok)
}

func TestReadInfoAsyncConcurrent(t *testing.T) {
	k := New(Options{Concurrency: 2})
	paths := []string{
		writeJPEG(t, "a.jpg", nil),
		writeJPEG(t, "b.jpg", nil),
		filepath.Join(t.TempDir(), "missing.jpg"),
	}

	var mu sync.Mutex
	var errs []error
	var wg sync.WaitGroup
	for _, p := range paths {
		ch := k.ReadInfoAsync(context.Background(), p)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for res := range ch {
				mu.Lock()
				errs = append(errs, res.Err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	k.Wait()

	require.Len(t, errs, 3)
	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.True(t, errors.Is(err, ErrFileNotFound))
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestUpdateGPSAsync(t *testing.T) {
	path := writeJPEG(t, "gps.jpg", originalProps())
	k := newTestKit()

	res := <-k.UpdateGPSAsync(context.Background(), path, GPSUpdate{Latitude: 1.5, Longitude: 2.5}, nil)
	require.NoError(t, res.Err)
	assert.InDelta(t, 48.8584, *res.Snapshot.GPS.Latitude, 1e-6)

	md, err := k.ExtractMetadata(context.Background(), path)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, *md.GPS.Latitude, 1e-6)
}
