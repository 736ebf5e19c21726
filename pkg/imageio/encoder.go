package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/bstardust/photokit/internal/logger"
	"github.com/bstardust/photokit/pkg/tags"
	"golang.org/x/image/tiff"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 92

// FileEncoder writes JPEG, PNG and TIFF files. The property dictionary is
// carried as an EXIF block, or as IFD0 entries with sub-IFDs for TIFF.
type FileEncoder struct {
	quality int
}

// NewEncoder creates the default encoder. quality outside 1..100 falls back
// to DefaultQuality.
func NewEncoder(quality int) *FileEncoder {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &FileEncoder{quality: quality}
}

// Create prepares a destination for path. The target directory must exist.
func (e *FileEncoder) Create(path string, format Format) (Destination, error) {
	switch format {
	case JPEG, PNG, TIFF:
	case HEIC, HEIF:
		return nil, fmt.Errorf("%s: %w", format, ErrUnsupportedEncoding)
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnsupportedEncoding)
	}

	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access output directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output directory %s is not a directory", dir)
	}

	return &fileDestination{path: path, format: format, quality: e.quality}, nil
}

type fileDestination struct {
	path    string
	format  Format
	quality int
	img     image.Image
	props   tags.Dict
}

func (d *fileDestination) AddImage(img image.Image, props tags.Dict) error {
	if d.img != nil {
		return ErrImageAdded
	}
	if img == nil {
		return ErrNoImage
	}
	d.img = img
	d.props = props.Clone()
	return nil
}

func (d *fileDestination) Finalize() error {
	if d.img == nil {
		return ErrNoImage
	}

	data, err := d.encode()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(d.path, data); err != nil {
		return err
	}

	logger.Debug("Wrote %s (%s, %d bytes)", d.path, d.format, len(data))
	d.img, d.props = nil, nil
	return nil
}

func (d *fileDestination) encode() ([]byte, error) {
	var buf bytes.Buffer
	block := BuildExif(d.props)

	switch d.format {
	case JPEG:
		if err := jpeg.Encode(&buf, d.img, &jpeg.Options{Quality: d.quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
		if block == nil {
			return buf.Bytes(), nil
		}
		return insertJPEGExif(buf.Bytes(), block)

	case PNG:
		if err := png.Encode(&buf, d.img); err != nil {
			return nil, fmt.Errorf("failed to encode PNG: %w", err)
		}
		if block == nil {
			return buf.Bytes(), nil
		}
		return insertPNGExif(buf.Bytes(), block)

	case TIFF:
		if err := tiff.Encode(&buf, d.img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
			return nil, fmt.Errorf("failed to encode TIFF: %w", err)
		}
		if block == nil {
			return buf.Bytes(), nil
		}
		return insertTIFFExif(buf.Bytes(), d.props)
	}
	return nil, fmt.Errorf("%q: %w", d.format, ErrUnsupportedEncoding)
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		logger.Debug("Could not set mode on %s: %v", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
