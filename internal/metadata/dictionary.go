package metadata

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bstardust/photokit/pkg/models"
	"github.com/bstardust/photokit/pkg/tags"
)

// ExifDictionary builds an {Exif} section from r. Fields that are empty or
// fail to parse are left out.
func ExifDictionary(r models.ExifRecord) tags.Dict {
	return MergeExif(nil, r)
}

// TIFFDictionary builds a {TIFF} section holding the camera make and model.
func TIFFDictionary(r models.ExifRecord) tags.Dict {
	return MergeTIFF(nil, r)
}

// MergeExif overlays the fields of r onto a copy of existing.
func MergeExif(existing tags.Dict, r models.ExifRecord) tags.Dict {
	d := existing.Clone()
	if d == nil {
		d = tags.Dict{}
	}

	if r.ISO != "" {
		if iso, err := strconv.Atoi(strings.TrimSpace(r.ISO)); err == nil && iso > 0 {
			d[tags.ExifISOSpeedRatings] = []int{iso}
			delete(d, tags.ExifSensitivityType)
			delete(d, tags.ExifRecommendedExposureIndex)
		}
	}
	if v, ok := parseNumber(r.FNumber, "f/", ""); ok {
		d[tags.ExifFNumber] = v
	}
	if r.ExposureTime != "" {
		if v, ok := ParseExposureTime(r.ExposureTime); ok {
			d[tags.ExifExposureTime] = v
		}
	}
	if v, ok := parseNumber(r.FocalLength, "", "mm"); ok {
		d[tags.ExifFocalLength] = v
	}
	if r.DateTimeOriginal != nil {
		d[tags.ExifDateTimeOriginal] = r.DateTimeOriginal.Format(exifTimeLayout)
	}
	if r.LensModel != "" {
		d[tags.ExifLensModel] = r.LensModel
	}
	return d
}

// MergeTIFF overlays the camera make and model of r onto a copy of existing.
func MergeTIFF(existing tags.Dict, r models.ExifRecord) tags.Dict {
	d := existing.Clone()
	if d == nil {
		d = tags.Dict{}
	}
	if r.CameraMake != "" {
		d[tags.TIFFMake] = r.CameraMake
	}
	if r.CameraModel != "" {
		d[tags.TIFFModel] = r.CameraModel
	}
	return d
}

// GPSDictionary builds a {GPS} section. Coordinates are written as
// magnitudes; the refs must already carry the sign.
func GPSDictionary(r models.GpsRecord) tags.Dict {
	d := tags.Dict{}
	if r.Latitude != nil {
		d[tags.GPSLatitude] = math.Abs(*r.Latitude)
	}
	if r.LatitudeRef != "" {
		d[tags.GPSLatitudeRef] = r.LatitudeRef
	}
	if r.Longitude != nil {
		d[tags.GPSLongitude] = math.Abs(*r.Longitude)
	}
	if r.LongitudeRef != "" {
		d[tags.GPSLongitudeRef] = r.LongitudeRef
	}
	if r.Altitude != nil {
		d[tags.GPSAltitude] = math.Abs(*r.Altitude)
	}
	if r.AltitudeRef != nil {
		d[tags.GPSAltitudeRef] = *r.AltitudeRef
	}
	if r.Timestamp != nil {
		ts := r.Timestamp.In(time.UTC)
		d[tags.GPSDateStamp] = ts.Format("2006:01:02")
		d[tags.GPSTimeStamp] = ts.Format("15:04:05")
	}
	return d
}

// ToDictionary rebuilds a full property dictionary from m.
func ToDictionary(m models.PhotoMetadata) tags.Dict {
	d := tags.Dict{}
	if m.Width > 0 {
		d[tags.PixelWidth] = m.Width
	}
	if m.Height > 0 {
		d[tags.PixelHeight] = m.Height
	}
	if m.Orientation != 0 && m.Orientation != 1 {
		d[tags.Orientation] = m.Orientation
	}
	if m.ColorSpace != "" {
		d[tags.ColorModel] = m.ColorSpace
	}
	if m.Exif.HasBasicInfo() {
		d[tags.ExifSection] = ExifDictionary(m.Exif)
	}
	if m.GPS.HasValidCoordinates() {
		d[tags.GPSSection] = GPSDictionary(m.GPS)
	}
	if m.Exif.CameraMake != "" || m.Exif.CameraModel != "" {
		d[tags.TIFFSection] = TIFFDictionary(m.Exif)
	}
	return d
}

func parseNumber(s, prefix, suffix string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.TrimPrefix(s, prefix)
	s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
