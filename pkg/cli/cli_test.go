package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/bstardust/photokit/pkg/imageio"
	"github.com/bstardust/photokit/pkg/photokit"
	"github.com/bstardust/photokit/pkg/tags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dir     string
	config  string
	journal string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	journal := filepath.Join(dir, "state", "backups.json")
	config := filepath.Join(dir, "photokit.yaml")
	body := "timezone: UTC\nbackup:\n  journal_path: " + journal + "\n"
	require.NoError(t, os.WriteFile(config, []byte(body), 0644))
	return fixture{dir: dir, config: config, journal: journal}
}

func (f fixture) photo(t *testing.T, name string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 8), G: 80, B: 160, A: 255})
		}
	}
	path := filepath.Join(f.dir, name)
	dst, err := imageio.NewEncoder(90).Create(path, imageio.FormatForPath(path))
	require.NoError(t, err)
	require.NoError(t, dst.AddImage(img, tags.Dict{
		tags.TIFFSection: tags.Dict{tags.TIFFMake: "Sony", tags.TIFFModel: "A7"},
		tags.GPSSection: tags.Dict{
			tags.GPSLatitude:     35.6586,
			tags.GPSLatitudeRef:  "N",
			tags.GPSLongitude:    139.7454,
			tags.GPSLongitudeRef: "E",
		},
	}))
	require.NoError(t, dst.Finalize())
	return path
}

func (f fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(&out)
	cmd.SetArgs(append([]string{"--config", f.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (f fixture) info(t *testing.T, path string) photokit.ImageInfo {
	t.Helper()
	out, err := f.run(t, "--json", "info", path)
	require.NoError(t, err)

	var entries []struct {
		photokit.ImageInfo
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	require.Empty(t, entries[0].Error)
	return entries[0].ImageInfo
}

func TestFormatsCommand(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "formats")
	require.NoError(t, err)
	assert.Contains(t, out, "cr2")
	assert.Contains(t, out, "Canon")
	assert.Contains(t, out, "JPEG Image")

	out, err = f.run(t, "formats", "a.NEF", "b.png", "c.doc")
	require.NoError(t, err)
	assert.Contains(t, out, "a.NEF: Nikon Electronic Format, raw (Nikon)")
	assert.Contains(t, out, "b.png: PNG Image, supported")
	assert.Contains(t, out, "c.doc: Unknown Format, unsupported")
}

func TestInfoCommand(t *testing.T) {
	f := newFixture(t)
	path := f.photo(t, "tokyo.jpg")

	out, err := f.run(t, "info", path)
	require.NoError(t, err)
	assert.Contains(t, out, "32 × 20")
	assert.Contains(t, out, "Sony A7")
	assert.Contains(t, out, "35.658600°N, 139.745400°E")

	info := f.info(t, path)
	assert.Equal(t, 32, info.Width)
	assert.Equal(t, "Sony", info.Metadata.Exif.CameraMake)
}

func TestInfoCommandReportsFailures(t *testing.T) {
	f := newFixture(t)
	junk := filepath.Join(f.dir, "junk.jpg")
	require.NoError(t, os.WriteFile(junk, []byte("junk"), 0644))

	out, err := f.run(t, "info", junk)
	assert.EqualError(t, err, "1 of 1 files failed")
	assert.Contains(t, out, "metadata extraction failed")
}

func TestGPSAndRestoreCommands(t *testing.T) {
	f := newFixture(t)
	path := f.photo(t, "trip.jpg")

	_, err := f.run(t, "gps", "--lat", "-22.9519", "--lon", "-43.2105", "--alt", "700", path)
	require.NoError(t, err)

	info := f.info(t, path)
	assert.Equal(t, "S", info.Metadata.GPS.LatitudeRef)
	assert.Equal(t, "W", info.Metadata.GPS.LongitudeRef)
	assert.InDelta(t, 700.0, *info.Metadata.GPS.Altitude, 1e-6)
	assert.Equal(t, "Sony", info.Metadata.Exif.CameraMake)

	_, err = os.Stat(f.journal)
	require.NoError(t, err)

	out, err := f.run(t, "backups")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.Contains(t, out, "35.658600°N, 139.745400°E")

	out, err = f.run(t, "--json", "backups")
	require.NoError(t, err)
	var entries []struct {
		Path string `json:"path"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, path, entries[0].Path)

	_, err = f.run(t, "restore", path)
	require.NoError(t, err)

	info = f.info(t, path)
	assert.Equal(t, "N", info.Metadata.GPS.LatitudeRef)
	assert.InDelta(t, 35.6586, *info.Metadata.GPS.Latitude, 1e-6)
	assert.Nil(t, info.Metadata.GPS.Altitude)

	// The spent backup is dropped, so a second restore has nothing to do.
	out, err = f.run(t, "backups")
	require.NoError(t, err)
	assert.Equal(t, "No backups\n", out)

	_, err = f.run(t, "restore", path)
	require.NoError(t, err)
}

func TestGPSCommandValidation(t *testing.T) {
	f := newFixture(t)
	path := f.photo(t, "trip.jpg")

	_, err := f.run(t, "gps", "--lat", "10", path)
	assert.Error(t, err)

	_, err = f.run(t, "gps", "--lat", "100", "--lon", "0", path)
	assert.EqualError(t, err, "1 of 1 files failed")

	_, err = f.run(t, "gps", "--lat", "NaN", "--lon", "0", path)
	assert.EqualError(t, err, "1 of 1 files failed")
}

func TestGPSWithoutBackup(t *testing.T) {
	f := newFixture(t)
	path := f.photo(t, "trip.jpg")

	_, err := f.run(t, "--no-backup", "gps", "--lat", "1", "--lon", "2", path)
	require.NoError(t, err)
	_, err = os.Stat(f.journal)
	assert.True(t, os.IsNotExist(err))

	_, err = f.run(t, "--no-backup", "restore", path)
	assert.ErrorContains(t, err, "backups are disabled")

	_, err = f.run(t, "--no-backup", "backups")
	assert.ErrorContains(t, err, "backups are disabled")
}

func TestExifCommand(t *testing.T) {
	f := newFixture(t)
	path := f.photo(t, "shot.jpg")

	_, err := f.run(t, "exif", path)
	assert.ErrorContains(t, err, "nothing to write")

	_, err = f.run(t, "exif", "--iso", "800", "--fnumber", "f/1.8", "--exposure", "1/125s",
		"--lens", "FE 50mm", "--date", "2021-07-04 18:30:00", path)
	require.NoError(t, err)

	ex := f.info(t, path).Metadata.Exif
	assert.Equal(t, "800", ex.ISO)
	assert.Equal(t, "1.8", ex.FNumber)
	assert.Equal(t, "1/125s", ex.ExposureTime)
	assert.Equal(t, "FE 50mm", ex.LensModel)
	assert.Equal(t, "A7", ex.CameraModel)
	require.NotNil(t, ex.DateTimeOriginal)
	assert.Equal(t, "2021-07-04T18:30:00Z", ex.DateTimeOriginal.Format("2006-01-02T15:04:05Z07:00"))

	_, err = f.run(t, "exif", "--date", "yesterday", path)
	assert.ErrorContains(t, err, "invalid --date")
}

func TestConvertCommand(t *testing.T) {
	f := newFixture(t)
	src := f.photo(t, "big.png")
	outDir := filepath.Join(f.dir, "out")

	_, err := f.run(t, "convert", "--out", outDir, "--max", "16", src)
	require.NoError(t, err)

	converted := filepath.Join(outDir, "big.jpg")
	info := f.info(t, converted)
	assert.Equal(t, 16, info.Width)
	assert.Equal(t, 10, info.Height)
	assert.Equal(t, "Sony", info.Metadata.Exif.CameraMake)

	_, err = f.run(t, "convert", "--out", outDir, src)
	assert.EqualError(t, err, "1 of 1 files failed")

	_, err = f.run(t, "convert", "--out", outDir, "--overwrite", src)
	assert.NoError(t, err)

	_, err = f.run(t, "convert", "--out", outDir, "--format", "gif", src)
	assert.ErrorContains(t, err, "unsupported output format")
}
