// Package exif converts an EXIF block decoded by goexif into a tags.Dict
// with {Exif}, {TIFF} and {GPS} sections.
package exif

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/bstardust/photokit/pkg/tags"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"github.com/rwcarlsen/goexif/tiff"
)

// ErrNoExif is returned when the input holds no EXIF block.
var ErrNoExif = errors.New("no exif data")

func init() {
	exif.RegisterParsers(mknote.All...)
	exif.RegisterParsers(sensitivityParser{})
}

// EXIF 2.3 sensitivity tags that goexif has no names for. Cameras record
// ISO above 65535 in RecommendedExposureIndex.
const (
	SensitivityType          exif.FieldName = "SensitivityType"
	RecommendedExposureIndex exif.FieldName = "RecommendedExposureIndex"
)

var sensitivityFields = map[uint16]exif.FieldName{
	0x8830: SensitivityType,
	0x8832: RecommendedExposureIndex,
}

// sensitivityParser loads sensitivityFields from the Exif sub-IFD.
type sensitivityParser struct{}

func (sensitivityParser) Parse(x *exif.Exif) error {
	ptr, err := x.Get(exif.ExifIFDPointer)
	if err != nil {
		return nil
	}
	offset, err := ptr.Int64(0)
	if err != nil {
		return nil
	}
	r := bytes.NewReader(x.Raw)
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil
	}
	dir, _, err := tiff.DecodeDir(r, x.Tiff.Order)
	if err != nil {
		return nil
	}
	x.LoadTags(dir, sensitivityFields, false)
	return nil
}

// Fields that live in IFD0 rather than the Exif sub-IFD.
var tiffFields = map[exif.FieldName]bool{
	exif.ImageWidth:       true,
	exif.ImageLength:      true,
	exif.Make:             true,
	exif.Model:            true,
	exif.Orientation:      true,
	exif.XResolution:      true,
	exif.YResolution:      true,
	exif.ResolutionUnit:   true,
	exif.Software:         true,
	exif.DateTime:         true,
	exif.Artist:           true,
	exif.Copyright:        true,
	exif.ImageDescription: true,
}

// Pointer tags are layout details, not properties.
var skipFields = map[exif.FieldName]bool{
	exif.ExifIFDPointer:             true,
	exif.GPSInfoIFDPointer:          true,
	exif.InteroperabilityIFDPointer: true,
}

// Read decodes the EXIF block in r. r may be a raw TIFF stream or a JPEG.
func Read(r io.Reader) (tags.Dict, error) {
	x, err := exif.Decode(r)
	if err != nil {
		if exif.IsCriticalError(err) {
			return nil, fmt.Errorf("%w: %v", ErrNoExif, err)
		}
		// Non-critical errors still leave a usable tag set.
		if x == nil {
			return nil, fmt.Errorf("decode exif: %w", err)
		}
	}

	w := &walker{
		exif: tags.Dict{},
		tiff: tags.Dict{},
		gps:  tags.Dict{},
	}
	if err := x.Walk(w); err != nil {
		return nil, fmt.Errorf("walk exif: %w", err)
	}
	return w.dict(), nil
}

// ReadBytes decodes an EXIF block held in memory. A leading "Exif\0\0"
// header is tolerated.
func ReadBytes(b []byte) (tags.Dict, error) {
	b = bytes.TrimPrefix(b, []byte("Exif\x00\x00"))
	if len(b) == 0 {
		return nil, ErrNoExif
	}
	return Read(bytes.NewReader(b))
}

type walker struct {
	exif tags.Dict
	tiff tags.Dict
	gps  tags.Dict
}

func (w *walker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if skipFields[name] {
		return nil
	}
	key := string(name)

	switch {
	case strings.HasPrefix(key, "GPS"):
		w.walkGPS(strings.TrimPrefix(key, "GPS"), tag)
	case tiffFields[name]:
		if v, ok := value(tag); ok {
			w.tiff[key] = v
		}
	case name == exif.ISOSpeedRatings:
		if v, ok := ints(tag); ok {
			w.exif[tags.ExifISOSpeedRatings] = v
		}
	default:
		if v, ok := value(tag); ok {
			w.exif[key] = v
		}
	}
	return nil
}

func (w *walker) walkGPS(key string, tag *tiff.Tag) {
	switch key {
	case tags.GPSLatitude, tags.GPSLongitude:
		if deg, ok := degrees(tag); ok {
			w.gps[key] = deg
		}
	case tags.GPSTimeStamp:
		if ts, ok := timeStamp(tag); ok {
			w.gps[key] = ts
		}
	default:
		if v, ok := value(tag); ok {
			w.gps[key] = v
		}
	}
}

func (w *walker) dict() tags.Dict {
	d := tags.Dict{}
	if o, ok := w.tiff.Int(tags.Orientation); ok {
		d[tags.Orientation] = o
	}
	if v, ok := w.exif.Int("PixelXDimension"); ok {
		d[tags.PixelWidth] = v
	}
	if v, ok := w.exif.Int("PixelYDimension"); ok {
		d[tags.PixelHeight] = v
	}
	if len(w.exif) > 0 {
		d[tags.ExifSection] = w.exif
	}
	if len(w.tiff) > 0 {
		d[tags.TIFFSection] = w.tiff
	}
	if len(w.gps) > 0 {
		d[tags.GPSSection] = w.gps
	}
	return d
}

// value converts a tag into a scalar for single-count tags and a slice
// otherwise. Undefined-type tags are kept as raw bytes.
func value(tag *tiff.Tag) (any, bool) {
	n := int(tag.Count)
	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return nil, false
		}
		s = strings.TrimRight(strings.TrimSpace(s), "\x00")
		return s, s != ""
	case tiff.IntVal:
		if n == 1 {
			i, err := tag.Int(0)
			return i, err == nil
		}
		return ints(tag)
	case tiff.RatVal, tiff.FloatVal:
		if n == 1 {
			return float(tag, 0)
		}
		out := make([]float64, 0, n)
		for i := 0; i < n; i++ {
			f, ok := float(tag, i)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	case tiff.UndefVal:
		return append([]byte(nil), tag.Val...), len(tag.Val) > 0
	}
	return nil, false
}

func ints(tag *tiff.Tag) ([]int, bool) {
	if tag.Format() != tiff.IntVal {
		return nil, false
	}
	out := make([]int, 0, tag.Count)
	for i := 0; i < int(tag.Count); i++ {
		v, err := tag.Int(i)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, len(out) > 0
}

func float(tag *tiff.Tag, i int) (float64, bool) {
	if tag.Format() == tiff.FloatVal {
		f, err := tag.Float(i)
		return f, err == nil
	}
	num, den, err := tag.Rat2(i)
	if err != nil || den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}

// degrees converts a degrees/minutes/seconds triple to decimal degrees.
func degrees(tag *tiff.Tag) (float64, bool) {
	if tag.Count < 3 {
		if tag.Count == 1 {
			return float(tag, 0)
		}
		return 0, false
	}
	d, ok1 := float(tag, 0)
	m, ok2 := float(tag, 1)
	s, ok3 := float(tag, 2)
	if !ok1 || !ok2 || !ok3 {
		return 0, false
	}
	return d + m/60 + s/3600, true
}

// timeStamp renders an hour/minute/second triple as "15:04:05".
func timeStamp(tag *tiff.Tag) (string, bool) {
	if tag.Count != 3 {
		return "", false
	}
	h, ok1 := float(tag, 0)
	m, ok2 := float(tag, 1)
	s, ok3 := float(tag, 2)
	if !ok1 || !ok2 || !ok3 {
		return "", false
	}
	if s == math.Trunc(s) {
		return fmt.Sprintf("%02d:%02d:%02d", int(h), int(m), int(s)), true
	}
	return fmt.Sprintf("%02d:%02d:%06.3f", int(h), int(m), s), true
}
