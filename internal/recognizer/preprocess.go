package recognizer

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// PreprocessOptions controls the image clean-up applied before recognition.
type PreprocessOptions struct {
	Enabled   bool
	MinHeight int     // regions shorter than this are upscaled; 0 disables upscaling
	Contrast  float64 // percentage in [-100, 100]
	Sharpen   float64 // gaussian sigma; 0 disables sharpening
}

func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{
		Enabled:   true,
		MinHeight: 64,
		Contrast:  20,
		Sharpen:   0.5,
	}
}

func (o PreprocessOptions) Validate() error {
	if o.MinHeight < 0 || o.MinHeight > 4096 {
		return fmt.Errorf("preprocess min height must be 0-4096, got %d", o.MinHeight)
	}
	if o.Contrast < -100 || o.Contrast > 100 {
		return fmt.Errorf("preprocess contrast must be -100..100, got %g", o.Contrast)
	}
	if o.Sharpen < 0 {
		return fmt.Errorf("preprocess sharpen must be non-negative, got %g", o.Sharpen)
	}
	return nil
}

// Preprocess upscales small regions, converts to grayscale, boosts contrast
// and sharpens. With Enabled false the image is returned unchanged.
func Preprocess(img image.Image, opts PreprocessOptions) image.Image {
	if !opts.Enabled || img == nil {
		return img
	}

	h := img.Bounds().Dy()
	if opts.MinHeight > 0 && h > 0 && h < opts.MinHeight {
		img = imaging.Resize(img, 0, opts.MinHeight, imaging.Lanczos)
	}

	out := imaging.Grayscale(img)
	if opts.Contrast != 0 {
		out = imaging.AdjustContrast(out, opts.Contrast)
	}
	if opts.Sharpen > 0 {
		out = imaging.Sharpen(out, opts.Sharpen)
	}
	return out
}
