package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// CameraSize is the ideal capture resolution requested from the camera.
	CameraSize = ImageSize{1280, 720}
	SmallSize  = ImageSize{320, 240}
)

// TestImageConfig holds configuration for generating test images.
type TestImageConfig struct {
	Text       string
	Size       ImageSize
	Background color.Color
	Foreground color.Color
	// Scale enlarges the 7x13 bitmap glyphs by an integer factor.
	Scale int
}

// DefaultTestImageConfig returns a default configuration for test images.
func DefaultTestImageConfig() TestImageConfig {
	return TestImageConfig{
		Text:       "AB12CD34",
		Size:       SmallSize,
		Background: color.White,
		Foreground: color.Black,
		Scale:      1,
	}
}

// GenerateTextImage renders config.Text centered on a plain background.
func GenerateTextImage(config TestImageConfig) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, config.Size.Width, config.Size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	textW := font.MeasureString(face, config.Text).Ceil()
	textH := face.Metrics().Height.Ceil()

	// Draw at 1x on a tight canvas, then scale it up into place.
	glyphs := image.NewRGBA(image.Rect(0, 0, textW, textH))
	draw.Draw(glyphs, glyphs.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)
	drawer := &font.Drawer{
		Dst:  glyphs,
		Src:  &image.Uniform{config.Foreground},
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	drawer.DrawString(config.Text)

	scale := max(config.Scale, 1)
	var text image.Image = glyphs
	if scale > 1 {
		text = imaging.Resize(glyphs, textW*scale, textH*scale, imaging.NearestNeighbor)
	}

	tb := text.Bounds()
	x := (config.Size.Width - tb.Dx()) / 2
	y := (config.Size.Height - tb.Dy()) / 2
	draw.Draw(img, tb.Add(image.Pt(x, y)), text, tb.Min, draw.Src)
	return img, nil
}

// CreateTestImage creates a test image filled with one color.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// CreateMarkedFrame returns a white frame with region filled in mark, so a
// crop of exactly that region can be recognized by its color.
func CreateMarkedFrame(width, height int, region image.Rectangle, mark color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	draw.Draw(img, region.Intersect(img.Bounds()), &image.Uniform{mark}, image.Point{}, draw.Src)
	return img
}

// SaveImage writes img as PNG to path, creating parent directories.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// WriteFrame saves a frame of the given size into dir and returns its path.
func WriteFrame(t *testing.T, dir, name string, size ImageSize) string {
	t.Helper()
	path := filepath.Join(dir, name)
	SaveImage(t, CreateTestImage(size.Width, size.Height, color.White), path)
	return path
}
