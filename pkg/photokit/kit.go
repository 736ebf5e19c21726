// Package photokit reads and rewrites photo metadata through pluggable image
// I/O collaborators. Every operation is a single synchronous pipeline; the
// Kit holds configuration only.
package photokit

import (
	"context"
	"errors"
	"image"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bstardust/photokit/internal/logger"
	"github.com/bstardust/photokit/internal/metadata"
	"github.com/bstardust/photokit/internal/worker"
	"github.com/bstardust/photokit/pkg/formats"
	"github.com/bstardust/photokit/pkg/imageio"
	"github.com/bstardust/photokit/pkg/models"
	"github.com/bstardust/photokit/pkg/tags"
)

// BackupFunc receives the pre-mutation snapshot of a file before it is
// rewritten. Returning an error aborts the write.
type BackupFunc func(snapshot models.PhotoMetadata) error

// Options configures a Kit. Zero values select the defaults.
type Options struct {
	Decoder     imageio.Decoder
	Encoder     imageio.Encoder
	Graphics    imageio.Graphics
	ColorSpace  imageio.ColorSpace
	Location    *time.Location // zone for DateTimeOriginal, default local
	ZoneFromGPS bool           // prefer the zone at the photo's GPS position
	Concurrency int            // async workers, default 4
	Now         func() time.Time
}

// Kit is the photokit facade
type Kit struct {
	decoder    imageio.Decoder
	encoder    imageio.Encoder
	graphics   imageio.Graphics
	colorSpace imageio.ColorSpace
	extractor  *metadata.Extractor
	pool       *worker.Pool
	now        func() time.Time
}

// New creates a Kit
func New(opts Options) *Kit {
	k := &Kit{
		decoder:    opts.Decoder,
		encoder:    opts.Encoder,
		graphics:   opts.Graphics,
		colorSpace: opts.ColorSpace,
		extractor:  metadata.NewExtractor(opts.Location),
		now:        opts.Now,
	}
	if k.decoder == nil {
		k.decoder = imageio.NewDecoder()
	}
	if k.encoder == nil {
		k.encoder = imageio.NewEncoder(imageio.DefaultQuality)
	}
	if k.graphics == nil {
		k.graphics = imageio.NewGraphics()
	}
	if k.colorSpace == "" {
		k.colorSpace = imageio.SRGB
	}
	if k.now == nil {
		k.now = time.Now
	}
	if opts.ZoneFromGPS {
		k.extractor = metadata.NewGPSZoneExtractor(opts.Location)
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	k.pool = worker.NewPool(concurrency)
	return k
}

// Wait blocks until every async operation submitted so far has finished.
func (k *Kit) Wait() {
	k.pool.Wait()
}

// ReadInfo reads dimensions, file size, RAW flag and metadata of path.
func (k *Kit) ReadInfo(ctx context.Context, path string) (ImageInfo, error) {
	md, err := k.ExtractMetadata(ctx, path)
	if err != nil {
		return ImageInfo{}, err
	}
	return ImageInfo{
		Path:     path,
		Width:    md.Width,
		Height:   md.Height,
		FileSize: md.FileSize,
		RAW:      formats.IsRAW(extension(path)),
		Metadata: md,
	}, nil
}

// ExtractMetadata reads the metadata of path without decoding pixels.
func (k *Kit) ExtractMetadata(ctx context.Context, path string) (models.PhotoMetadata, error) {
	if err := ctx.Err(); err != nil {
		return models.PhotoMetadata{}, err
	}

	src, err := k.open(path)
	if err != nil {
		return models.PhotoMetadata{}, err
	}
	defer src.Close()

	props, err := src.Properties(0)
	if err != nil {
		return models.PhotoMetadata{}, newError(KindMetadataExtractionFailure, path, err)
	}
	return k.extractor.Extract(props, path), nil
}

// Transform decodes path, standardizes the pixels and hands them to visit
// together with the metadata. The buffers are only valid during visit; an
// error from visit is returned unchanged.
func (k *Kit) Transform(ctx context.Context, path string, visit func(img image.Image, md models.PhotoMetadata) error) error {
	ext := extension(path)
	if !formats.IsSupported(ext) {
		return UnsupportedFormatError(path, ext)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := k.open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	img, err := src.Frame(0)
	if err != nil {
		return newError(KindDecodeFailure, path, err)
	}
	props, err := src.Properties(0)
	if err != nil {
		return newError(KindMetadataExtractionFailure, path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logger.Debug("Standardizing %s to %s", path, k.colorSpace)
	std := k.graphics.Standardize(img, k.colorSpace)
	md := k.extractor.Extract(props, path)

	if visit == nil {
		return nil
	}
	return visit(std, md)
}

// GPSUpdate is the position written by UpdateGPS. Coordinates are signed
// decimal degrees; the reference letters are derived from the sign.
type GPSUpdate struct {
	Latitude  float64
	Longitude float64
	Altitude  *float64 // metres, negative below sea level
}

// UpdateGPS replaces the GPS section of path and returns the metadata as it
// was before the write. backup, if set, sees that snapshot first.
func (k *Kit) UpdateGPS(ctx context.Context, path string, update GPSUpdate, backup BackupFunc) (models.PhotoMetadata, error) {
	if !inRange(update.Latitude, 90) || !inRange(update.Longitude, 180) {
		return models.PhotoMetadata{}, &Error{Kind: KindInvalidData, Path: path, Detail: "coordinates out of range"}
	}
	if update.Altitude != nil && (math.IsNaN(*update.Altitude) || math.IsInf(*update.Altitude, 0)) {
		return models.PhotoMetadata{}, &Error{Kind: KindInvalidData, Path: path, Detail: "altitude is not a number"}
	}

	return k.mutate(ctx, path, backup, func(props tags.Dict) tags.Dict {
		props[tags.GPSSection] = metadata.GPSDictionary(k.gpsRecord(update))
		return props
	})
}

// inRange reports whether v lies in [-limit, limit]. NaN never does.
func inRange(v, limit float64) bool {
	return v >= -limit && v <= limit
}

// UpdateExif merges the non-empty fields of rec into the EXIF section of
// path (make and model go to the TIFF section) and returns the metadata as
// it was before the write.
func (k *Kit) UpdateExif(ctx context.Context, path string, rec models.ExifRecord, backup BackupFunc) (models.PhotoMetadata, error) {
	return k.mutate(ctx, path, backup, func(props tags.Dict) tags.Dict {
		existing, _ := props.Section(tags.ExifSection)
		props[tags.ExifSection] = metadata.MergeExif(existing, rec)
		if rec.CameraMake != "" || rec.CameraModel != "" {
			existingTIFF, _ := props.Section(tags.TIFFSection)
			props[tags.TIFFSection] = metadata.MergeTIFF(existingTIFF, rec)
		}
		return props
	})
}

// Restore overwrites the metadata of path with a dictionary rebuilt from
// snapshot alone. Whatever metadata the file currently holds is discarded.
func (k *Kit) Restore(ctx context.Context, path string, snapshot models.PhotoMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := k.openBytes(path)
	if err != nil {
		return err
	}
	defer src.Close()

	return k.rewrite(ctx, path, src, metadata.ToDictionary(snapshot))
}

// SaveProcessed encodes img to outPath carrying the properties of
// originalPath. provider receives the original metadata before the write
// and may abort it. When the original properties cannot be read the image
// is saved without metadata and provider is not called.
func (k *Kit) SaveProcessed(ctx context.Context, img image.Image, outPath, originalPath string, provider func(models.PhotoMetadata) error) error {
	if img == nil {
		return &Error{Kind: KindInvalidData, Path: outPath, Detail: "no image"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := k.open(originalPath)
	if err != nil {
		return err
	}
	props, err := src.Properties(0)
	src.Close()
	if err != nil {
		logger.Warn("Saving %s without metadata: %v", outPath, err)
		props = nil
	}

	if props != nil && provider != nil {
		if err := provider(k.extractor.Extract(props, originalPath)); err != nil {
			return err
		}
	}
	return k.encode(outPath, img, props)
}

// mutate runs the read, snapshot, backup, rewrite pipeline shared by the
// update operations. edit receives a private copy of the properties.
func (k *Kit) mutate(ctx context.Context, path string, backup BackupFunc, edit func(tags.Dict) tags.Dict) (models.PhotoMetadata, error) {
	if err := ctx.Err(); err != nil {
		return models.PhotoMetadata{}, err
	}

	src, err := k.openBytes(path)
	if err != nil {
		return models.PhotoMetadata{}, err
	}
	defer src.Close()

	props, err := src.Properties(0)
	if err != nil {
		return models.PhotoMetadata{}, newError(KindMetadataExtractionFailure, path, err)
	}
	snapshot := k.extractor.Extract(props, path)

	if backup != nil {
		if err := backup(snapshot); err != nil {
			return snapshot, newError(KindBackupFailure, path, err)
		}
	}

	updated := edit(props.Clone())
	if err := k.rewrite(ctx, path, src, updated); err != nil {
		return snapshot, err
	}
	return snapshot, nil
}

// rewrite decodes frame 0 of src and writes it back to path with props.
func (k *Kit) rewrite(ctx context.Context, path string, src imageio.Source, props tags.Dict) error {
	img, err := src.Frame(0)
	if err != nil {
		return newError(KindInvalidData, path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.encode(path, img, props)
}

func (k *Kit) encode(path string, img image.Image, props tags.Dict) error {
	format := imageio.FormatForPath(path)
	dst, err := k.encoder.Create(path, format)
	if err != nil {
		return saveError(path, "create "+string(format)+" destination", err)
	}
	if err := dst.AddImage(img, props); err != nil {
		return saveError(path, "add image", err)
	}
	if err := dst.Finalize(); err != nil {
		return saveError(path, "finalize", err)
	}
	logger.Debug("Saved %s as %s", path, format)
	return nil
}

// open opens path through the decoder. A missing file is FileNotFound, any
// other failure InvalidSource.
func (k *Kit) open(path string) (imageio.Source, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newError(KindFileNotFound, path, nil)
		}
		return nil, fileAccessError(path, "stat", err)
	}
	src, err := k.decoder.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newError(KindFileNotFound, path, nil)
		}
		return nil, newError(KindInvalidSource, path, err)
	}
	return src, nil
}

// openBytes reads path fully before decoding, so the source stays valid
// while path is overwritten.
func (k *Kit) openBytes(path string) (imageio.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newError(KindFileNotFound, path, nil)
		}
		return nil, fileAccessError(path, "read", err)
	}
	src, err := k.decoder.OpenBytes(data, path)
	if err != nil {
		return nil, newError(KindInvalidSource, path, err)
	}
	return src, nil
}

func (k *Kit) gpsRecord(u GPSUpdate) models.GpsRecord {
	latRef, lonRef := "N", "E"
	if u.Latitude < 0 {
		latRef = "S"
	}
	if u.Longitude < 0 {
		lonRef = "W"
	}
	r := models.GpsRecord{
		Latitude:     models.Float64(u.Latitude),
		LatitudeRef:  latRef,
		Longitude:    models.Float64(u.Longitude),
		LongitudeRef: lonRef,
		Timestamp:    models.Time(k.now().UTC()),
	}
	if u.Altitude != nil {
		ref := 0
		if *u.Altitude < 0 {
			ref = 1
		}
		r.Altitude = models.Float64(*u.Altitude)
		r.AltitudeRef = models.Int(ref)
	}
	return r
}

func extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
