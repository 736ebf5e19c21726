package cli

import (
	"strings"

	"github.com/bstardust/photokit/internal/fshelper"
	"github.com/bstardust/photokit/pkg/formats"
	"github.com/bstardust/photokit/pkg/photokit"
	"github.com/spf13/cobra"
)

func newFormatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "formats [file...]",
		Short: "List supported formats or classify files by extension",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.listFormats()
			}
			return a.classify(args)
		},
	}
}

func (a *app) listFormats() error {
	var all []formats.Classification
	for _, ext := range formats.SupportedExtensions() {
		all = append(all, formats.Classify(ext))
	}
	if a.jsonOut {
		return a.printJSON(all)
	}
	for _, c := range all {
		kind := "standard"
		if c.RAW {
			kind = "raw"
		}
		a.printf("%-5s %-8s %-12s %s\n", c.Extension, kind, c.Brand, c.Description)
	}
	return nil
}

func (a *app) classify(paths []string) error {
	checked := formats.CheckPaths(paths)
	if a.jsonOut {
		return a.printJSON(checked)
	}
	for _, p := range paths {
		c := checked[p]
		status := "unsupported"
		switch {
		case c.RAW:
			status = "raw (" + c.Brand + ")"
		case c.Supported:
			status = "supported"
		}
		a.printf("%s: %s, %s\n", p, c.Description, status)
	}
	return nil
}

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file|dir|glob>...",
		Short: "Show dimensions, camera settings and location of photos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := fshelper.ExpandPaths(args)
			if err != nil {
				return err
			}
			results := a.kit.ReadInfoBatch(cmd.Context(), paths)
			if a.jsonOut {
				return a.printJSON(infoReport(results))
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					a.printf("%s: %v\n\n", r.Path, r.Err)
					continue
				}
				a.printInfo(r.Info)
			}
			return failures(failed, len(results))
		},
	}
}

type infoEntry struct {
	*photokit.ImageInfo
	Path  string `json:"path"`
	Error string `json:"error,omitempty"`
}

func infoReport(results []photokit.InfoResult) []infoEntry {
	out := make([]infoEntry, 0, len(results))
	for _, r := range results {
		e := infoEntry{Path: r.Path}
		if r.Err != nil {
			e.Error = r.Err.Error()
		} else {
			info := r.Info
			e.ImageInfo = &info
		}
		out = append(out, e)
	}
	return out
}

func (a *app) printInfo(info photokit.ImageInfo) {
	md := info.Metadata
	a.printf("%s\n", info.Path)
	a.printf("  Size:     %s\n", info.SizeString())

	format := md.FileFormat
	if info.RAW {
		format += ", RAW"
	}
	a.printf("  File:     %s (%s)\n", info.FileSizeString(), format)

	ex := md.Exif
	if camera := strings.TrimSpace(ex.CameraMake + " " + ex.CameraModel); camera != "" {
		a.printf("  Camera:   %s\n", camera)
	}
	if ex.LensModel != "" {
		a.printf("  Lens:     %s\n", ex.LensModel)
	}
	var exposure []string
	if ex.ISO != "" {
		exposure = append(exposure, "ISO "+ex.ISO)
	}
	if ex.FNumber != "" {
		exposure = append(exposure, "f/"+ex.FNumber)
	}
	if ex.ExposureTime != "" {
		exposure = append(exposure, ex.ExposureTime)
	}
	if ex.FocalLength != "" {
		exposure = append(exposure, ex.FocalLength+"mm")
	}
	if len(exposure) > 0 {
		a.printf("  Exposure: %s\n", strings.Join(exposure, ", "))
	}
	if ex.DateTimeOriginal != nil {
		a.printf("  Taken:    %s\n", ex.DateTimeOriginal.Format("2006-01-02 15:04:05 MST"))
	}
	if coords, ok := md.GPS.CoordinateString(); ok {
		if md.GPS.Altitude != nil {
			a.printf("  GPS:      %s, %.1fm\n", coords, *md.GPS.Altitude)
		} else {
			a.printf("  GPS:      %s\n", coords)
		}
	}
	a.printf("\n")
}
