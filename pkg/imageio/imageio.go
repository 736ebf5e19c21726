// Package imageio defines the decoder, encoder and graphics collaborators
// used by photokit, together with pure-Go default implementations.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/bstardust/photokit/pkg/tags"
)

var (
	// ErrEmptySource is returned when a source holds no bytes.
	ErrEmptySource = errors.New("empty image source")

	// ErrFrameIndex is returned for a frame index the source does not have.
	ErrFrameIndex = errors.New("frame index out of range")

	// ErrNoProperties is returned when neither image size nor EXIF could be read.
	ErrNoProperties = errors.New("no image properties found")

	// ErrUnsupportedEncoding is returned when the encoder cannot write a format.
	ErrUnsupportedEncoding = errors.New("unsupported output format")

	// ErrNoImage is returned when a destination is finalized without an image.
	ErrNoImage = errors.New("no image added to destination")

	// ErrImageAdded is returned when a second image is added to a destination.
	ErrImageAdded = errors.New("destination already holds an image")
)

// Decoder opens image sources.
type Decoder interface {
	Open(path string) (Source, error)
	OpenBytes(data []byte, name string) (Source, error)
}

// Source is an opened image.
type Source interface {
	Frame(index int) (image.Image, error)
	Properties(index int) (tags.Dict, error)
	Close() error
}

// Encoder creates output destinations.
type Encoder interface {
	Create(path string, format Format) (Destination, error)
}

// Destination receives one image and its properties. Nothing is written to
// the target path until Finalize succeeds.
type Destination interface {
	AddImage(img image.Image, props tags.Dict) error
	Finalize() error
}

// Graphics normalizes decoded pixels.
type Graphics interface {
	Standardize(img image.Image, cs ColorSpace) image.Image
}

// Format identifies an output container.
type Format string

// Output formats
const (
	JPEG Format = "JPEG"
	PNG  Format = "PNG"
	TIFF Format = "TIFF"
	HEIC Format = "HEIC"
	HEIF Format = "HEIF"
)

// FormatForPath picks the output format from the extension of path.
// Unknown extensions default to JPEG.
func FormatForPath(path string) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "png":
		return PNG
	case "tiff", "tif":
		return TIFF
	case "heic":
		return HEIC
	case "heif":
		return HEIF
	default:
		return JPEG
	}
}

// ColorSpace names the working colour space requested from Graphics.
type ColorSpace string

// Colour spaces
const (
	SRGB       ColorSpace = "sRGB"
	AdobeRGB   ColorSpace = "AdobeRGB"
	DisplayP3  ColorSpace = "DisplayP3"
	Rec2020    ColorSpace = "Rec2020"
	GenericRGB ColorSpace = "GenericRGB"
)

// ParseColorSpace resolves a case-insensitive colour space name. An empty
// name resolves to sRGB.
func ParseColorSpace(name string) (ColorSpace, error) {
	if strings.TrimSpace(name) == "" {
		return SRGB, nil
	}
	for _, cs := range []ColorSpace{SRGB, AdobeRGB, DisplayP3, Rec2020, GenericRGB} {
		if strings.EqualFold(string(cs), strings.TrimSpace(name)) {
			return cs, nil
		}
	}
	return "", fmt.Errorf("unknown color space %q", name)
}
