package imageio

import (
	"image"

	"github.com/bstardust/photokit/internal/logger"
	"golang.org/x/image/draw"
)

// RGBAGraphics redraws images into 8-bit premultiplied RGBA buffers.
type RGBAGraphics struct{}

// NewGraphics creates the default graphics collaborator
func NewGraphics() *RGBAGraphics {
	return &RGBAGraphics{}
}

// Standardize returns img drawn into a new *image.RGBA anchored at the
// origin. Images without pixels, and any failure while drawing, return img
// unchanged. cs is a label only; pixel values are not converted.
func (g *RGBAGraphics) Standardize(img image.Image, cs ColorSpace) (out image.Image) {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	if b.Empty() {
		return img
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Standardize failed, keeping source pixels: %v", r)
			out = img
		}
	}()

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	logger.Debug("Standardized %dx%d image to RGBA (%s)", b.Dx(), b.Dy(), cs)
	return dst
}

// Fit scales img to fit within maxW x maxH, keeping the aspect ratio.
// Images already inside the box are returned unchanged.
func (g *RGBAGraphics) Fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	if maxW <= 0 || maxH <= 0 || (b.Dx() <= maxW && b.Dy() <= maxH) {
		return img
	}
	w, h := maxW, b.Dy()*maxW/b.Dx()
	if h > maxH {
		w, h = b.Dx()*maxH/b.Dy(), maxH
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
