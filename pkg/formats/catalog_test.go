package formats

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		ext         string
		supported   bool
		raw         bool
		brand       string
		description string
		mime        string
	}{
		{"cr2", true, true, "Canon", "Canon Raw Version 2", "image/x-cr2"},
		{".NEF", true, true, "Nikon", "Nikon Electronic Format", "image/x-nef"},
		{"dng", true, true, "Leica", "Adobe Digital Negative", "image/x-adobe-dng"},
		{"raf", true, true, "Fujifilm", "Fuji Raw Format", "image/x-raf"},
		{"3FR", true, true, "Professional", "Hasselblad 3F Raw", "image/x-3fr"},
		{"JPG", true, false, "", "JPEG Image", "image/jpeg"},
		{".heic", true, false, "", "HEIC Image", "image/heic"},
		{"gif", true, false, "", "GIF Image", "image/gif"},
		{"xyz", false, false, "", "Unknown Format", "application/octet-stream"},
		{"", false, false, "", "Unknown Format", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			c := Classify(tt.ext)
			assert.Equal(t, tt.supported, c.Supported)
			assert.Equal(t, tt.raw, c.RAW)
			assert.Equal(t, tt.brand, c.Brand)
			assert.Equal(t, tt.description, c.Description)
			assert.Equal(t, tt.mime, c.MIMEType)
		})
	}
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	for _, ext := range SupportedExtensions() {
		assert.Equal(t, Classify(ext), Classify(strings.ToUpper(ext)), ext)
		assert.Equal(t, Classify(ext), Classify("."+ext), ext)
	}
}

func TestEverySupportedExtensionClassifies(t *testing.T) {
	all := SupportedExtensions()
	assert.Len(t, all, len(rawFormats)+9)
	for _, ext := range all {
		assert.True(t, Classify(ext).Supported, ext)
	}
	for _, ext := range RAWExtensions() {
		c := Classify(ext)
		assert.True(t, c.RAW, ext)
		assert.NotEmpty(t, c.Brand, ext)
	}
}

func TestIsDNG(t *testing.T) {
	assert.True(t, IsDNG("DNG"))
	assert.True(t, IsDNG(".dng"))
	assert.False(t, IsDNG("nef"))
}

func TestFilters(t *testing.T) {
	paths := []string{"/a/one.CR2", "/a/two.jpg", "/a/notes.txt", "/a/three.nef", "/a/noext"}

	assert.Equal(t, []string{"/a/one.CR2", "/a/two.jpg", "/a/three.nef"}, FilterSupported(paths))
	assert.Equal(t, []string{"/a/one.CR2", "/a/three.nef"}, FilterRAW(paths))
	assert.Nil(t, FilterRAW([]string{"x.png"}))

	checked := CheckPaths(paths)
	assert.Len(t, checked, len(paths))
	assert.True(t, checked["/a/one.CR2"].RAW)
	assert.False(t, checked["/a/notes.txt"].Supported)
	assert.Equal(t, "", checked["/a/noext"].Extension)
}
