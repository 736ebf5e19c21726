package metadata

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bradfitz/latlong"
	"github.com/bstardust/photokit/internal/logger"
	"github.com/bstardust/photokit/pkg/models"
	"github.com/bstardust/photokit/pkg/tags"
)

// exifTimeLayout is the EXIF "yyyy:MM:dd HH:mm:ss" pattern.
const exifTimeLayout = "2006:01:02 15:04:05"

// Extractor maps decoder property dictionaries onto typed records
type Extractor struct {
	timezone    *time.Location
	zoneFromGPS bool
}

// NewExtractor creates a new metadata extractor. timezone is applied to the
// zone-less DateTimeOriginal; nil means the local zone.
func NewExtractor(timezone *time.Location) *Extractor {
	if timezone == nil {
		timezone = time.Local
	}
	return &Extractor{
		timezone: timezone,
	}
}

// NewGPSZoneExtractor creates an extractor that reads DateTimeOriginal in
// the zone containing the photo's GPS position. Photos without a position,
// or at a position with no known zone, fall back to timezone.
func NewGPSZoneExtractor(timezone *time.Location) *Extractor {
	e := NewExtractor(timezone)
	e.zoneFromGPS = true
	return e
}

// Extract builds a PhotoMetadata from a property dictionary. Missing keys
// leave their fields at the default. When path is set, FileFormat and
// FileSize are filled from it; a failing stat leaves FileSize at 0.
func (e *Extractor) Extract(props tags.Dict, path string) models.PhotoMetadata {
	m := models.NewPhotoMetadata()

	if w, ok := props.Int(tags.PixelWidth); ok {
		m.Width = w
	}
	if h, ok := props.Int(tags.PixelHeight); ok {
		m.Height = h
	}
	if o, ok := props.Int(tags.Orientation); ok {
		m.Orientation = o
	}
	if cs, ok := props.String(tags.ColorModel); ok {
		m.ColorSpace = cs
	}

	exifDict, _ := props.Section(tags.ExifSection)
	tiffDict, _ := props.Section(tags.TIFFSection)
	m.Exif = e.ExtractExif(exifDict, tiffDict)

	if gpsDict, ok := props.Section(tags.GPSSection); ok {
		m.GPS = e.ExtractGPS(gpsDict)
	}
	if e.zoneFromGPS && m.Exif.DateTimeOriginal != nil && m.GPS.HasValidCoordinates() {
		if loc := zoneAt(*m.GPS.Latitude, *m.GPS.Longitude); loc != nil {
			m.Exif.DateTimeOriginal = models.Time(inZone(*m.Exif.DateTimeOriginal, loc))
		}
	}

	if path != "" {
		m.FileFormat = strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
		if info, err := os.Stat(path); err == nil {
			m.FileSize = info.Size()
		} else {
			logger.Debug("Could not stat %s: %v", path, err)
		}
	}

	return m
}

// ExtractExif reads the {Exif} section, with {TIFF} supplying make and model.
// Either dictionary may be nil.
func (e *Extractor) ExtractExif(exif, tiff tags.Dict) models.ExifRecord {
	var r models.ExifRecord

	if iso, ok := isoSpeed(exif); ok {
		r.ISO = strconv.Itoa(iso)
	}
	if f, ok := exif.Float(tags.ExifFNumber); ok {
		r.FNumber = fmt.Sprintf("%.1f", f)
	}
	if v, ok := exif.Float(tags.ExifExposureTime); ok {
		r.ExposureTime = FormatExposureTime(v)
	}
	if f, ok := exif.Float(tags.ExifFocalLength); ok {
		r.FocalLength = fmt.Sprintf("%.1f", f)
	}
	if s, ok := exif.String(tags.ExifDateTimeOriginal); ok {
		if t, err := time.ParseInLocation(exifTimeLayout, strings.TrimSpace(s), e.timezone); err == nil {
			r.DateTimeOriginal = &t
		} else {
			logger.Debug("Ignoring DateTimeOriginal %q: %v", s, err)
		}
	}

	r.CameraMake = firstString(tiff, tags.TIFFMake, exif, tags.ExifMakerNote)
	r.CameraModel = firstString(tiff, tags.TIFFModel, exif, tags.ExifCameraOwnerName)
	if s, ok := exif.String(tags.ExifLensModel); ok {
		r.LensModel = s
	}

	return r
}

// ExtractGPS reads the {GPS} section. The stored magnitude is made
// non-negative and the sign comes from the reference letter: S and W are
// negative, an altitude is negative only when its ref is 1.
func (e *Extractor) ExtractGPS(gps tags.Dict) models.GpsRecord {
	var r models.GpsRecord

	r.LatitudeRef, _ = gps.String(tags.GPSLatitudeRef)
	r.LongitudeRef, _ = gps.String(tags.GPSLongitudeRef)

	if v, ok := gps.Float(tags.GPSLatitude); ok {
		r.Latitude = models.Float64(signed(v, r.LatitudeRef == "S"))
	}
	if v, ok := gps.Float(tags.GPSLongitude); ok {
		r.Longitude = models.Float64(signed(v, r.LongitudeRef == "W"))
	}

	if ref, ok := gps.Int(tags.GPSAltitudeRef); ok {
		r.AltitudeRef = models.Int(ref)
	}
	if v, ok := gps.Float(tags.GPSAltitude); ok {
		below := r.AltitudeRef != nil && *r.AltitudeRef == 1
		r.Altitude = models.Float64(signed(v, below))
	}

	date, okDate := gps.String(tags.GPSDateStamp)
	clock, okClock := gps.String(tags.GPSTimeStamp)
	if okDate && okClock {
		if t, err := time.ParseInLocation(exifTimeLayout, date+" "+clock, time.UTC); err == nil {
			r.Timestamp = &t
		} else {
			logger.Debug("Ignoring GPS timestamp %q %q: %v", date, clock, err)
		}
	}

	return r
}

// isoSpeed returns the first ISOSpeedRatings value. A saturated 65535 is
// replaced by RecommendedExposureIndex when one is recorded.
func isoSpeed(exif tags.Dict) (int, bool) {
	iso, ok := exif.Ints(tags.ExifISOSpeedRatings)
	if !ok || len(iso) == 0 {
		v, ok := exif.Int(tags.ExifISOSpeedRatings)
		if !ok {
			return 0, false
		}
		iso = []int{v}
	}
	if iso[0] == math.MaxUint16 {
		if rei, ok := exif.Int(tags.ExifRecommendedExposureIndex); ok && rei > iso[0] {
			return rei, true
		}
	}
	return iso[0], iso[0] > 0
}

// FormatExposureTime renders seconds as "2.0s" or, below one second, as a
// reciprocal like "1/60s". Non-positive and non-finite values render empty.
func FormatExposureTime(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return ""
	}
	if seconds >= 1 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	return fmt.Sprintf("1/%.0fs", 1/seconds)
}

// ParseExposureTime accepts "1/60", "1/60s", "2.0s" and "2".
func ParseExposureTime(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "s")
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, err2 := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return finite(n / d)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return finite(v)
}

func finite(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func signed(v float64, negative bool) float64 {
	v = math.Abs(v)
	if negative {
		return -v
	}
	return v
}

func firstString(primary tags.Dict, pk string, fallback tags.Dict, fk string) string {
	if s, ok := primary.String(pk); ok && s != "" {
		return s
	}
	if s, ok := fallback.String(fk); ok {
		return s
	}
	return ""
}

// zoneAt returns the time zone at the given position, or nil when the
// position is at sea or the zone database lacks the name.
func zoneAt(lat, lon float64) *time.Location {
	name := latlong.LookupZoneName(lat, lon)
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Debug("Unknown zone %s at %.4f,%.4f: %v", name, lat, lon, err)
		return nil
	}
	return loc
}

// inZone keeps the wall clock of t and swaps its zone.
func inZone(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}
