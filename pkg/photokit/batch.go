package photokit

import (
	"context"
	"image"

	"github.com/bstardust/photokit/internal/progress"
	"github.com/bstardust/photokit/pkg/models"
)

// Result is the outcome of one item of a batch.
type Result struct {
	Path string
	Err  error
}

// InfoResult is the outcome of one ReadInfoBatch item.
type InfoResult struct {
	Path string
	Info ImageInfo
	Err  error
}

// TransformBatch runs Transform over paths one at a time. A failing item is
// recorded in its Result and the batch moves on. Items left when ctx is
// done fail with the context error.
func (k *Kit) TransformBatch(ctx context.Context, paths []string, visit func(path string, img image.Image, md models.PhotoMetadata) error) []Result {
	reporter := progress.New()
	reporter.Start("transform", len(paths))
	defer reporter.Finish()

	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		res := Result{Path: path}
		if err := ctx.Err(); err != nil {
			res.Err = err
			reporter.Skip(path)
			results = append(results, res)
			continue
		}

		res.Err = k.Transform(ctx, path, func(img image.Image, md models.PhotoMetadata) error {
			if visit == nil {
				return nil
			}
			return visit(path, img, md)
		})
		if res.Err != nil {
			reporter.Error(path, res.Err)
		} else {
			reporter.Complete(path)
		}
		results = append(results, res)
	}
	return results
}

// ReadInfoBatch runs ReadInfo over paths one at a time, isolating failures
// the same way TransformBatch does.
func (k *Kit) ReadInfoBatch(ctx context.Context, paths []string) []InfoResult {
	reporter := progress.New()
	reporter.Start("info", len(paths))
	defer reporter.Finish()

	results := make([]InfoResult, 0, len(paths))
	for _, path := range paths {
		res := InfoResult{Path: path}
		if err := ctx.Err(); err != nil {
			res.Err = err
			reporter.Skip(path)
			results = append(results, res)
			continue
		}

		res.Info, res.Err = k.ReadInfo(ctx, path)
		if res.Err != nil {
			reporter.Error(path, res.Err)
		} else {
			reporter.Complete(path)
		}
		results = append(results, res)
	}
	return results
}
