package models

import (
	"fmt"
	"math"
	"time"
)

// ExifRecord holds the camera and exposure fields photokit understands.
// Numeric values are kept as display strings, e.g. FNumber "2.8" and
// ExposureTime "1/60s".
type ExifRecord struct {
	ISO              string     `json:"iso,omitempty"`
	FNumber          string     `json:"fNumber,omitempty"`
	ExposureTime     string     `json:"exposureTime,omitempty"`
	FocalLength      string     `json:"focalLength,omitempty"`
	CameraMake       string     `json:"cameraMake,omitempty"`
	CameraModel      string     `json:"cameraModel,omitempty"`
	LensModel        string     `json:"lensModel,omitempty"`
	DateTimeOriginal *time.Time `json:"dateTimeOriginal,omitempty"`
}

// HasBasicInfo reports whether ISO, aperture and shutter speed are all set.
func (e ExifRecord) HasBasicInfo() bool {
	return e.ISO != "" && e.FNumber != "" && e.ExposureTime != ""
}

// GpsRecord holds a signed position. An empty ref means the ref is absent.
type GpsRecord struct {
	Latitude     *float64   `json:"latitude,omitempty"`
	LatitudeRef  string     `json:"latitudeRef,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	LongitudeRef string     `json:"longitudeRef,omitempty"`
	Altitude     *float64   `json:"altitude,omitempty"`
	AltitudeRef  *int       `json:"altitudeRef,omitempty"` // 0 above sea level, 1 below
	Timestamp    *time.Time `json:"timestamp,omitempty"`
}

// HasValidCoordinates reports whether both coordinates and both refs are set.
func (g GpsRecord) HasValidCoordinates() bool {
	return g.Latitude != nil && g.Longitude != nil &&
		g.LatitudeRef != "" && g.LongitudeRef != ""
}

// CoordinateString renders the position as "39.904200°N, 116.407400°E".
// ok is false when the coordinates are not valid.
func (g GpsRecord) CoordinateString() (s string, ok bool) {
	if !g.HasValidCoordinates() {
		return "", false
	}
	return fmt.Sprintf("%.6f°%s, %.6f°%s",
		math.Abs(*g.Latitude), g.LatitudeRef,
		math.Abs(*g.Longitude), g.LongitudeRef), true
}

// PhotoMetadata aggregates everything extracted from one image.
type PhotoMetadata struct {
	Exif        ExifRecord `json:"exif"`
	GPS         GpsRecord  `json:"gps"`
	Width       int        `json:"width,omitempty"`
	Height      int        `json:"height,omitempty"`
	FileSize    int64      `json:"fileSize,omitempty"`
	FileFormat  string     `json:"fileFormat,omitempty"`
	ColorSpace  string     `json:"colorSpace,omitempty"`
	Orientation int        `json:"orientation"`
}

// NewPhotoMetadata returns an empty record with the default orientation.
func NewPhotoMetadata() PhotoMetadata {
	return PhotoMetadata{Orientation: 1}
}

// HasMetadata reports whether basic EXIF info or valid GPS coordinates exist.
func (m PhotoMetadata) HasMetadata() bool {
	return m.Exif.HasBasicInfo() || m.GPS.HasValidCoordinates()
}

// Float64 returns a pointer to v, for populating optional record fields.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Time returns a pointer to t.
func Time(t time.Time) *time.Time { return &t }
