// Package formats classifies image files by extension.
package formats

import (
	"path/filepath"
	"sort"
	"strings"
)

// Classification is the result of looking up one extension.
type Classification struct {
	Extension   string `json:"extension"`
	Supported   bool   `json:"supported"`
	RAW         bool   `json:"raw"`
	Brand       string `json:"brand,omitempty"`
	Description string `json:"description"`
	MIMEType    string `json:"mimeType"`
}

type entry struct {
	brand       string
	description string
	mime        string
}

var rawFormats = map[string]entry{
	// Canon
	"cr2": {"Canon", "Canon Raw Version 2", ""},
	"cr3": {"Canon", "Canon Raw Version 3", ""},
	"crw": {"Canon", "Canon Raw", ""},
	// Nikon
	"nef": {"Nikon", "Nikon Electronic Format", ""},
	"nrw": {"Nikon", "Nikon Raw", ""},
	// Sony
	"arw": {"Sony", "Sony Alpha Raw", ""},
	"srf": {"Sony", "Sony Raw Format", ""},
	"sr2": {"Sony", "Sony Raw Format", ""},
	// Fujifilm
	"raf": {"Fujifilm", "Fuji Raw Format", ""},
	// Olympus
	"orf": {"Olympus", "Olympus Raw Format", ""},
	// Panasonic
	"rw2": {"Panasonic", "Panasonic Raw", ""},
	"raw": {"Panasonic", "Generic Raw", ""},
	// Leica
	"dng": {"Leica", "Adobe Digital Negative", "image/x-adobe-dng"},
	"rwl": {"Leica", "Raw Format", ""},
	// Pentax
	"pef": {"Pentax", "Pentax Electronic Format", ""},
	"ptx": {"Pentax", "Pentax Raw", ""},
	// Samsung
	"srw": {"Samsung", "Samsung Raw", ""},
	// Hasselblad, Mamiya, Phase One, Red, Sigma, Kodak, Minolta
	"3fr": {"Professional", "Hasselblad 3F Raw", ""},
	"mef": {"Professional", "Mamiya Electronic Format", ""},
	"iiq": {"Professional", "Phase One Intelligent Image Quality", ""},
	"r3d": {"Professional", "Red Raw", ""},
	"x3f": {"Professional", "Sigma X3F Raw", ""},
	"dcr": {"Professional", "Kodak Raw", ""},
	"kdc": {"Professional", "Kodak Raw", ""},
	"mrw": {"Professional", "Minolta Raw", ""},
}

var standardFormats = map[string]entry{
	"jpg":  {"", "JPEG Image", "image/jpeg"},
	"jpeg": {"", "JPEG Image", "image/jpeg"},
	"png":  {"", "PNG Image", "image/png"},
	"tiff": {"", "TIFF Image", "image/tiff"},
	"tif":  {"", "TIFF Image", "image/tiff"},
	"heic": {"", "HEIC Image", "image/heic"},
	"heif": {"", "HEIF Image", "image/heif"},
	"bmp":  {"", "BMP Image", "image/bmp"},
	"gif":  {"", "GIF Image", "image/gif"},
}

const unknownDescription = "Unknown Format"

func normalize(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// Classify looks up ext, with or without a leading dot, ignoring case.
func Classify(ext string) Classification {
	e := normalize(ext)
	c := Classification{Extension: e, Description: unknownDescription, MIMEType: "application/octet-stream"}

	if f, ok := rawFormats[e]; ok {
		c.Supported = true
		c.RAW = true
		c.Brand = f.brand
		c.Description = f.description
		c.MIMEType = f.mime
		if c.MIMEType == "" {
			c.MIMEType = "image/x-" + e
		}
		return c
	}
	if f, ok := standardFormats[e]; ok {
		c.Supported = true
		c.Description = f.description
		c.MIMEType = f.mime
	}
	return c
}

// ClassifyPath classifies the extension of path.
func ClassifyPath(path string) Classification {
	return Classify(filepath.Ext(path))
}

// IsRAW reports whether ext is a known RAW extension.
func IsRAW(ext string) bool {
	_, ok := rawFormats[normalize(ext)]
	return ok
}

// IsDNG reports whether ext is the Adobe DNG extension.
func IsDNG(ext string) bool {
	return normalize(ext) == "dng"
}

// IsSupported reports whether ext is a known RAW or standard extension.
func IsSupported(ext string) bool {
	return Classify(ext).Supported
}

// SupportedExtensions returns every supported extension, sorted.
func SupportedExtensions() []string {
	out := make([]string, 0, len(rawFormats)+len(standardFormats))
	for e := range rawFormats {
		out = append(out, e)
	}
	for e := range standardFormats {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// RAWExtensions returns the RAW extensions, sorted.
func RAWExtensions() []string {
	out := make([]string, 0, len(rawFormats))
	for e := range rawFormats {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// CheckPaths classifies each path by its extension.
func CheckPaths(paths []string) map[string]Classification {
	out := make(map[string]Classification, len(paths))
	for _, p := range paths {
		out[p] = ClassifyPath(p)
	}
	return out
}

// FilterSupported returns the paths with a supported extension, in order.
func FilterSupported(paths []string) []string {
	var out []string
	for _, p := range paths {
		if IsSupported(filepath.Ext(p)) {
			out = append(out, p)
		}
	}
	return out
}

// FilterRAW returns the paths with a RAW extension, in order.
func FilterRAW(paths []string) []string {
	var out []string
	for _, p := range paths {
		if IsRAW(filepath.Ext(p)) {
			out = append(out, p)
		}
	}
	return out
}
