package cli

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/bstardust/photokit/internal/fshelper"
	"github.com/bstardust/photokit/internal/logger"
	"github.com/bstardust/photokit/pkg/imageio"
	"github.com/bstardust/photokit/pkg/models"
	"github.com/spf13/cobra"
)

// outputExtensions maps accepted --format values to the written extension.
var outputExtensions = map[string]string{
	"jpg":  "jpg",
	"jpeg": "jpg",
	"png":  "png",
	"tif":  "tif",
	"tiff": "tif",
}

type convertOptions struct {
	outDir    string
	format    string
	maxSize   int
	overwrite bool
}

func newConvertCommand(a *app) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert --out <dir> [flags] <file|dir|glob>...",
		Short: "Decode photos (RAW included) and save them as JPEG, PNG or TIFF with their metadata",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConvert(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.outDir, "out", "", "Output directory (required)")
	cmd.Flags().StringVar(&opts.format, "format", "jpg", "Output format: jpg, png or tiff")
	cmd.Flags().IntVar(&opts.maxSize, "max", 0, "Downscale so neither side exceeds this many pixels")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "Replace existing output files")
	cmd.MarkFlagRequired("out")

	return cmd
}

func (a *app) runConvert(ctx context.Context, args []string, opts convertOptions) error {
	ext, ok := outputExtensions[strings.ToLower(strings.TrimPrefix(opts.format, "."))]
	if !ok {
		return fmt.Errorf("unsupported output format %q", opts.format)
	}

	paths, err := fshelper.ExpandPaths(args)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	graphics := imageio.NewGraphics()
	results := a.kit.TransformBatch(ctx, paths, func(path string, img image.Image, md models.PhotoMetadata) error {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		outPath := filepath.Join(opts.outDir, base+"."+ext)

		if !opts.overwrite {
			exists, err := fshelper.Exists(outPath)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%s already exists, use --overwrite to replace it", outPath)
			}
		}

		fitted := graphics.Fit(img, opts.maxSize, opts.maxSize)
		logger.Debug("Converting %s (%dx%d) to %s", path, md.Width, md.Height, outPath)
		return a.kit.SaveProcessed(ctx, fitted, outPath, path, nil)
	})

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	return failures(failed, len(results))
}
