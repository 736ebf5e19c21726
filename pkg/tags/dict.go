// Package tags defines the generic property dictionary exchanged with image
// I/O collaborators, and the allow-list of keys photokit reads and writes.
package tags

import (
	"encoding/json"
	"math"
)

// Dict is a stringly-keyed property set as produced by a decoder.
// Nested sections ({Exif}, {GPS}, {TIFF}) are themselves Dicts.
type Dict map[string]any

// Top-level image properties
const (
	PixelWidth  = "PixelWidth"
	PixelHeight = "PixelHeight"
	Orientation = "Orientation"
	ColorModel  = "ColorModel"

	ExifSection = "{Exif}"
	GPSSection  = "{GPS}"
	TIFFSection = "{TIFF}"
)

// {Exif} keys
const (
	ExifISOSpeedRatings  = "ISOSpeedRatings"
	ExifFNumber          = "FNumber"
	ExifExposureTime     = "ExposureTime"
	ExifFocalLength      = "FocalLength"
	ExifDateTimeOriginal = "DateTimeOriginal"
	ExifMakerNote        = "MakerNote"
	ExifCameraOwnerName  = "CameraOwnerName"
	ExifLensModel        = "LensModel"

	ExifSensitivityType          = "SensitivityType"
	ExifRecommendedExposureIndex = "RecommendedExposureIndex"
)

// {TIFF} keys
const (
	TIFFMake  = "Make"
	TIFFModel = "Model"
)

// {GPS} keys
const (
	GPSLatitude     = "Latitude"
	GPSLatitudeRef  = "LatitudeRef"
	GPSLongitude    = "Longitude"
	GPSLongitudeRef = "LongitudeRef"
	GPSAltitude     = "Altitude"
	GPSAltitudeRef  = "AltitudeRef"
	GPSDateStamp    = "DateStamp"
	GPSTimeStamp    = "TimeStamp"
)

// Color model names reported under ColorModel.
const (
	ColorModelRGB  = "RGB"
	ColorModelGray = "Gray"
	ColorModelCMYK = "CMYK"
)

// Float returns the numeric value stored under key.
func (d Dict) Float(key string) (float64, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Int returns the value stored under key truncated to an int.
func (d Dict) Int(key string) (int, bool) {
	f, ok := d.Float(key)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// String returns the string stored under key. Non-string values are not
// converted.
func (d Dict) String(key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok
}

// Ints returns the integer array stored under key.
func (d Dict) Ints(key string) ([]int, bool) {
	switch v := d[key].(type) {
	case []int:
		return v, true
	case []any:
		out := make([]int, 0, len(v))
		for _, e := range v {
			f, ok := toFloat(e)
			if !ok {
				return nil, false
			}
			out = append(out, int(f))
		}
		return out, true
	case []float64:
		out := make([]int, len(v))
		for i, f := range v {
			out[i] = int(f)
		}
		return out, true
	}
	return nil, false
}

// Section returns the nested dictionary stored under key.
func (d Dict) Section(key string) (Dict, bool) {
	switch v := d[key].(type) {
	case Dict:
		return v, true
	case map[string]any:
		return Dict(v), true
	}
	return nil, false
}

// Clone returns a deep copy of d. Nested dictionaries and slices are copied
// so the clone can be modified without touching the original.
func (d Dict) Clone() Dict {
	if d == nil {
		return nil
	}
	out := make(Dict, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Dict:
		return t.Clone()
	case map[string]any:
		return Dict(t).Clone()
	case []int:
		return append([]int(nil), t...)
	case []float64:
		return append([]float64(nil), t...)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []byte:
		return append([]byte(nil), t...)
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
