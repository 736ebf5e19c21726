package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/bstardust/photokit/internal/exif"
	"github.com/bstardust/photokit/internal/logger"
	"github.com/bstardust/photokit/pkg/tags"
	_ "github.com/nf/cr2"
	"go4.org/media/heif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// FileDecoder decodes frame 0 of any format registered with the image
// package and reads EXIF from JPEG, PNG, TIFF-based RAW, RAF and HEIF.
type FileDecoder struct{}

// NewDecoder creates the default decoder
func NewDecoder() *FileDecoder {
	return &FileDecoder{}
}

// Open reads path into memory. The returned error wraps the os error, so
// errors.Is(err, fs.ErrNotExist) holds for missing files.
func (d *FileDecoder) Open(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return d.OpenBytes(data, path)
}

// OpenBytes wraps data as a source. name is used in messages only.
func (d *FileDecoder) OpenBytes(data []byte, name string) (Source, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptySource)
	}
	return &memSource{name: name, data: data}, nil
}

type memSource struct {
	name string
	data []byte
}

func (s *memSource) Frame(index int) (image.Image, error) {
	if index != 0 {
		return nil, ErrFrameIndex
	}
	if s.data == nil {
		return nil, fmt.Errorf("%s: source closed", s.name)
	}
	img, format, err := image.Decode(bytes.NewReader(s.data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.name, err)
	}
	logger.Debug("Decoded %s as %s (%dx%d)", s.name, format, img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}

func (s *memSource) Properties(index int) (tags.Dict, error) {
	if index != 0 {
		return nil, ErrFrameIndex
	}
	if s.data == nil {
		return nil, fmt.Errorf("%s: source closed", s.name)
	}

	props := tags.Dict{}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(s.data)); err == nil {
		props[tags.PixelWidth] = cfg.Width
		props[tags.PixelHeight] = cfg.Height
		props[tags.ColorModel] = colorModelName(cfg.ColorModel)
	} else if isHEIF(s.data) {
		if w, h, ok := heifExtents(s.data); ok {
			props[tags.PixelWidth] = w
			props[tags.PixelHeight] = h
			props[tags.ColorModel] = tags.ColorModelRGB
		}
	}

	exifProps, err := s.exif()
	if err != nil && !errors.Is(err, exif.ErrNoExif) {
		logger.Debug("Ignoring unreadable EXIF in %s: %v", s.name, err)
	}
	for k, v := range exifProps {
		if _, exists := props[k]; exists && (k == tags.PixelWidth || k == tags.PixelHeight) {
			continue
		}
		props[k] = v
	}

	if len(props) == 0 {
		return nil, fmt.Errorf("%s: %w", s.name, ErrNoProperties)
	}
	return props, nil
}

func (s *memSource) Close() error {
	s.data = nil
	return nil
}

func (s *memSource) exif() (tags.Dict, error) {
	var block []byte
	switch {
	case isJPEG(s.data):
		block = jpegExif(s.data)
	case isTIFF(s.data):
		block = s.data
	case isPNG(s.data):
		block = pngExif(s.data)
	case isRAF(s.data):
		block = rafExif(s.data)
	case isHEIF(s.data):
		b, err := heif.Open(bytes.NewReader(s.data)).EXIF()
		if err != nil {
			if errors.Is(err, heif.ErrNoEXIF) {
				return nil, exif.ErrNoExif
			}
			return nil, err
		}
		block = b
	}
	if len(block) == 0 {
		return nil, exif.ErrNoExif
	}
	return exif.ReadBytes(block)
}

func heifExtents(data []byte) (int, int, bool) {
	item, err := heif.Open(bytes.NewReader(data)).PrimaryItem()
	if err != nil {
		return 0, 0, false
	}
	if w, h, ok := item.VisualDimensions(); ok {
		return w, h, true
	}
	return item.SpatialExtents()
}

func colorModelName(m color.Model) string {
	switch m {
	case color.GrayModel, color.Gray16Model:
		return tags.ColorModelGray
	case color.CMYKModel:
		return tags.ColorModelCMYK
	default:
		return tags.ColorModelRGB
	}
}
