package photokit

import (
	"fmt"

	"github.com/bstardust/photokit/pkg/models"
	"github.com/dustin/go-humanize"
)

// ImageInfo summarizes one image file.
type ImageInfo struct {
	Path     string               `json:"path"`
	Width    int                  `json:"width"`
	Height   int                  `json:"height"`
	FileSize int64                `json:"fileSize"`
	RAW      bool                 `json:"raw"`
	Metadata models.PhotoMetadata `json:"metadata"`
}

// SizeString renders the pixel size as "1920 × 1080".
func (i ImageInfo) SizeString() string {
	return fmt.Sprintf("%d × %d", i.Width, i.Height)
}

// FileSizeString renders the file size for humans, e.g. "25 MB".
func (i ImageInfo) FileSizeString() string {
	if i.FileSize < 0 {
		return humanize.Bytes(0)
	}
	return humanize.Bytes(uint64(i.FileSize))
}
