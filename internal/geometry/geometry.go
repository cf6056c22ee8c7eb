// Package geometry maps a scan-window overlay drawn over a display box back into
// the pixel space of the source frame shown inside that box.
package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
)

// BoundsTolerance is the slack, in source pixels, accepted when validating a
// computed region against the source bounds.
const BoundsTolerance = 0.5

// aspectTolerance is the relative difference below which two aspect ratios are equal.
const aspectTolerance = 1e-9

var (
	// ErrInvalidGeometry is returned for non-positive or non-finite input dimensions.
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrEmptyRegion is returned when the computed region has no area.
	ErrEmptyRegion = errors.New("empty region")
	// ErrRegionOutOfBounds is matched by *RegionOutOfBoundsError.
	ErrRegionOutOfBounds = errors.New("region out of bounds")
)

// RegionOutOfBoundsError reports a computed source rectangle that leaves the source image.
type RegionOutOfBoundsError struct {
	Rect   SourceRect
	Bounds Dimensions
}

func (e *RegionOutOfBoundsError) Error() string {
	return fmt.Sprintf("region out of bounds: rect %s exceeds source %s", e.Rect, e.Bounds)
}

// Is makes errors.Is(err, ErrRegionOutOfBounds) succeed.
func (e *RegionOutOfBoundsError) Is(target error) bool {
	return target == ErrRegionOutOfBounds
}

// Dimensions is the intrinsic size of a source image or a display box.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DimensionsOf returns the pixel size of an image rectangle.
func DimensionsOf(r image.Rectangle) Dimensions {
	return Dimensions{Width: float64(r.Dx()), Height: float64(r.Dy())}
}

// Valid reports whether both sides are finite and strictly positive.
func (d Dimensions) Valid() bool {
	return positive(d.Width) && positive(d.Height)
}

// Aspect returns width / height.
func (d Dimensions) Aspect() float64 { return d.Width / d.Height }

func (d Dimensions) String() string {
	return fmt.Sprintf("%gx%g", d.Width, d.Height)
}

// ParseDimensions parses "WxH".
func ParseDimensions(s string) (Dimensions, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return Dimensions{}, fmt.Errorf("%w: dimensions %q must be WIDTHxHEIGHT", ErrInvalidGeometry, s)
	}
	vals, err := parseFloats(parts)
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: dimensions %q: %v", ErrInvalidGeometry, s, err)
	}
	return Dimensions{Width: vals[0], Height: vals[1]}, nil
}

// Point is a position in the shared display reference frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ParsePoint parses "X,Y".
func ParsePoint(s string) (Point, error) {
	vals, err := parseFloats(strings.Split(s, ","))
	if err != nil || len(vals) != 2 {
		return Point{}, fmt.Errorf("%w: point %q must be X,Y", ErrInvalidGeometry, s)
	}
	return Point{X: vals[0], Y: vals[1]}, nil
}

// DisplayRect is a rectangle in display coordinates.
type DisplayRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Origin returns the top-left corner.
func (r DisplayRect) Origin() Point { return Point{X: r.X, Y: r.Y} }

// Size returns the rectangle's dimensions.
func (r DisplayRect) Size() Dimensions { return Dimensions{Width: r.Width, Height: r.Height} }

func (r DisplayRect) String() string {
	return fmt.Sprintf("(%g,%g %gx%g)", r.X, r.Y, r.Width, r.Height)
}

// ParseDisplayRect parses "X,Y,W,H".
func ParseDisplayRect(s string) (DisplayRect, error) {
	vals, err := parseFloats(strings.Split(s, ","))
	if err != nil || len(vals) != 4 {
		return DisplayRect{}, fmt.Errorf("%w: rect %q must be X,Y,W,H", ErrInvalidGeometry, s)
	}
	return DisplayRect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}

// SourceRect is a rectangle in the source image's own pixel space.
type SourceRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r SourceRect) String() string {
	return fmt.Sprintf("(%.2f,%.2f %.2fx%.2f)", r.X, r.Y, r.Width, r.Height)
}

// Within reports whether r lies inside bounds, allowing tol pixels of slack.
func (r SourceRect) Within(bounds Dimensions, tol float64) bool {
	return r.X >= -tol && r.Y >= -tol &&
		r.X+r.Width <= bounds.Width+tol &&
		r.Y+r.Height <= bounds.Height+tol
}

// PixelRect converts r to integer pixel bounds: the origin is floored and the
// size rounded, so the copy never starts outside the region.
func (r SourceRect) PixelRect() image.Rectangle {
	x := int(math.Floor(r.X))
	y := int(math.Floor(r.Y))
	w := int(math.Round(r.Width))
	h := int(math.Round(r.Height))
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return image.Rect(x, y, x+w, y+h)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

func aspectEqual(a, b float64) bool {
	return math.Abs(a-b) <= aspectTolerance*math.Max(a, b)
}

func parseFloats(parts []string) ([]float64, error) {
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", p)
		}
		out = append(out, v)
	}
	return out, nil
}
