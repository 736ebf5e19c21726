package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bstardust/photokit/internal/backup"
	"github.com/bstardust/photokit/internal/fshelper"
	"github.com/bstardust/photokit/internal/logger"
	"github.com/bstardust/photokit/internal/progress"
	"github.com/bstardust/photokit/pkg/models"
	"github.com/bstardust/photokit/pkg/photokit"
	"github.com/spf13/cobra"
)

func newGPSCommand(a *app) *cobra.Command {
	var lat, lon, alt float64

	cmd := &cobra.Command{
		Use:   "gps --lat <deg> --lon <deg> [--alt <m>] <file|dir|glob>...",
		Short: "Write a GPS position into photos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			update := photokit.GPSUpdate{Latitude: lat, Longitude: lon}
			if cmd.Flags().Changed("alt") {
				update.Altitude = &alt
			}
			return a.runGPS(cmd.Context(), args, update)
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude in decimal degrees, negative for south (required)")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude in decimal degrees, negative for west (required)")
	cmd.Flags().Float64Var(&alt, "alt", 0, "Altitude in metres, negative below sea level")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")

	return cmd
}

func (a *app) runGPS(ctx context.Context, args []string, update photokit.GPSUpdate) error {
	paths, err := fshelper.ExpandPaths(args)
	if err != nil {
		return err
	}
	store, err := a.store(ctx)
	if err != nil {
		return fmt.Errorf("failed to open backup store: %w", err)
	}

	reporter := progress.New()
	reporter.Start("gps", len(paths))
	defer reporter.Finish()

	pending := make([]<-chan photokit.UpdateResult, len(paths))
	for i, path := range paths {
		pending[i] = a.kit.UpdateGPSAsync(ctx, path, update, a.backupFunc(ctx, store, path))
	}

	failed := 0
	for i, ch := range pending {
		res := <-ch
		if res.Err != nil {
			failed++
			reporter.Error(paths[i], res.Err)
			continue
		}
		reporter.Complete(paths[i])
	}
	return failures(failed, len(paths))
}

// exifFlags are the values accepted by the exif command.
type exifFlags struct {
	rec  models.ExifRecord
	date string
}

func newExifCommand(a *app) *cobra.Command {
	var f exifFlags

	cmd := &cobra.Command{
		Use:   "exif [flags] <file|dir|glob>...",
		Short: "Merge camera settings into the EXIF data of photos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.exifRecord(f)
			if err != nil {
				return err
			}
			return a.runExif(cmd.Context(), args, rec)
		},
	}

	cmd.Flags().StringVar(&f.rec.ISO, "iso", "", "ISO speed, e.g. 400")
	cmd.Flags().StringVar(&f.rec.FNumber, "fnumber", "", "Aperture, e.g. 2.8 or f/2.8")
	cmd.Flags().StringVar(&f.rec.ExposureTime, "exposure", "", "Shutter speed, e.g. 1/250s or 2s")
	cmd.Flags().StringVar(&f.rec.FocalLength, "focal", "", "Focal length, e.g. 35 or 35mm")
	cmd.Flags().StringVar(&f.rec.CameraMake, "make", "", "Camera make")
	cmd.Flags().StringVar(&f.rec.CameraModel, "model", "", "Camera model")
	cmd.Flags().StringVar(&f.rec.LensModel, "lens", "", "Lens model")
	cmd.Flags().StringVar(&f.date, "date", "", `Capture time as "2006-01-02 15:04:05" in the configured timezone`)

	return cmd
}

func (a *app) exifRecord(f exifFlags) (models.ExifRecord, error) {
	rec := f.rec
	if f.date != "" {
		loc, err := a.cfg.Location()
		if err != nil {
			return rec, err
		}
		t, err := time.ParseInLocation("2006-01-02 15:04:05", f.date, loc)
		if err != nil {
			return rec, fmt.Errorf("invalid --date %q: %w", f.date, err)
		}
		rec.DateTimeOriginal = &t
	}
	if rec == (models.ExifRecord{}) {
		return rec, errors.New("nothing to write: set at least one EXIF flag")
	}
	return rec, nil
}

func (a *app) runExif(ctx context.Context, args []string, rec models.ExifRecord) error {
	paths, err := fshelper.ExpandPaths(args)
	if err != nil {
		return err
	}
	store, err := a.store(ctx)
	if err != nil {
		return fmt.Errorf("failed to open backup store: %w", err)
	}

	reporter := progress.New()
	reporter.Start("exif", len(paths))
	defer reporter.Finish()

	failed := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			reporter.Skip(path)
			failed++
			continue
		}
		if _, err := a.kit.UpdateExif(ctx, path, rec, a.backupFunc(ctx, store, path)); err != nil {
			failed++
			reporter.Error(path, err)
			continue
		}
		reporter.Complete(path)
	}
	return failures(failed, len(paths))
}

func newRestoreCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file|dir|glob>...",
		Short: "Put back the metadata saved before the last edit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRestore(cmd.Context(), args)
		},
	}
}

func (a *app) runRestore(ctx context.Context, args []string) error {
	paths, err := fshelper.ExpandPaths(args)
	if err != nil {
		return err
	}
	store, err := a.store(ctx)
	if err != nil {
		return fmt.Errorf("failed to open backup store: %w", err)
	}
	if store == nil {
		return errors.New("backups are disabled, nothing to restore from")
	}

	reporter := progress.New()
	reporter.Start("restore", len(paths))
	defer reporter.Finish()

	failed := 0
	for _, path := range paths {
		snapshot, err := store.Load(ctx, path)
		if errors.Is(err, backup.ErrNotFound) {
			logger.Warn("No backup for %s", path)
			reporter.Skip(path)
			continue
		}
		if err == nil {
			err = a.kit.Restore(ctx, path, snapshot)
		}
		if err != nil {
			failed++
			reporter.Error(path, err)
			continue
		}
		// The snapshot is spent once the file carries it again.
		if err := store.Delete(ctx, path); err != nil {
			logger.Warn("Restored %s but could not drop its backup: %v", path, err)
		}
		reporter.Complete(path)
	}
	return failures(failed, len(paths))
}

func newBackupsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List the metadata backups available to restore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBackups(cmd.Context())
		},
	}
}

func (a *app) runBackups(ctx context.Context) error {
	store, err := a.store(ctx)
	if err != nil {
		return fmt.Errorf("failed to open backup store: %w", err)
	}
	if store == nil {
		return errors.New("backups are disabled")
	}

	entries, err := store.List(ctx)
	if err != nil {
		return err
	}
	if a.jsonOut {
		return a.printJSON(entries)
	}
	if len(entries) == 0 {
		a.printf("No backups\n")
		return nil
	}
	for _, e := range entries {
		a.printf("%s\t%s", e.Path, e.SavedAt.Local().Format(time.DateTime))
		if coords, ok := e.Snapshot.GPS.CoordinateString(); ok {
			a.printf("\t%s", coords)
		}
		a.printf("\n")
	}
	return nil
}
