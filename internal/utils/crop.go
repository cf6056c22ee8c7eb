package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/disintegration/imaging"
)

// CropSourceRect copies the pixels covered by r out of img. The rectangle is
// snapped to whole pixels (origin floored, size rounded), offset by the
// image's own origin and intersected with its bounds.
func CropSourceRect(img image.Image, r geometry.SourceRect) (*image.NRGBA, image.Rectangle, error) {
	if img == nil {
		return nil, image.Rectangle{}, &ImageProcessingError{Operation: "crop", Err: errors.New("input image is nil")}
	}

	bounds := img.Bounds()
	rect := r.PixelRect().Add(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return nil, rect, &ImageProcessingError{
			Operation: "crop",
			Err:       fmt.Errorf("region %s has no pixels inside %v", r, bounds),
		}
	}
	return imaging.Crop(img, rect), rect, nil
}

// AnnotateRegion returns a copy of img with rect outlined.
func AnnotateRegion(img image.Image, rect image.Rectangle, col color.Color, thickness int) *image.NRGBA {
	dst := imaging.Clone(img)
	DrawRect(dst, rect.Sub(img.Bounds().Min), col, thickness)
	return dst
}

// DrawRect draws an axis-aligned rectangle outline into dst.
func DrawRect(dst *image.NRGBA, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	for t := range thickness {
		yTop := rect.Min.Y + t
		yBot := rect.Max.Y - 1 - t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, yTop, col)
			dst.Set(x, yBot, col)
		}
	}
	for t := range thickness {
		xLeft := rect.Min.X + t
		xRight := rect.Max.X - 1 - t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(xLeft, y, col)
			dst.Set(xRight, y, col)
		}
	}
}
