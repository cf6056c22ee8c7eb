package geometry

import (
	"fmt"
	"math"
)

// Layout is the overlay geometry captured at trigger time: where the display
// box sits, where the scan window sits, both in the same reference frame, and
// how the frame is fitted into the box.
type Layout struct {
	Box     DisplayRect `json:"box"`
	Overlay DisplayRect `json:"overlay"`
	Fit     FitPolicy   `json:"fit"`
}

// Extract maps the layout's overlay onto a source of the given size.
func (l Layout) Extract(source Dimensions) (SourceRect, error) {
	return ExtractSourceRegion(source, l.Box.Size(), l.Fit, l.Overlay, l.Box.Origin())
}

// ExtractSourceRegion translates overlay, expressed in the same frame as the
// box whose top-left corner is boxOrigin, into the source's pixel space.
func ExtractSourceRegion(source, box Dimensions, fit FitPolicy, overlay DisplayRect, boxOrigin Point) (SourceRect, error) {
	if !source.Valid() || !box.Valid() {
		return SourceRect{}, fmt.Errorf("%w: source %s, box %s", ErrInvalidGeometry, source, box)
	}
	if !finite(overlay.X) || !finite(overlay.Y) || !finite(boxOrigin.X) || !finite(boxOrigin.Y) ||
		!finite(overlay.Width) || !finite(overlay.Height) || overlay.Width < 0 || overlay.Height < 0 {
		return SourceRect{}, fmt.Errorf("%w: overlay %s, box origin (%g,%g)",
			ErrInvalidGeometry, overlay, boxOrigin.X, boxOrigin.Y)
	}

	rel := DisplayRect{
		X:      overlay.X - boxOrigin.X,
		Y:      overlay.Y - boxOrigin.Y,
		Width:  overlay.Width,
		Height: overlay.Height,
	}

	var (
		out SourceRect
		err error
	)
	switch fit {
	case Contain:
		out, err = extractContain(source, box, rel)
	case Cover:
		out, err = extractCover(source, box, rel)
	default:
		err = fmt.Errorf("%w: unknown fit policy %d", ErrInvalidGeometry, int(fit))
	}
	if err != nil {
		return SourceRect{}, err
	}

	if out.Width <= 0 || out.Height <= 0 {
		return SourceRect{}, fmt.Errorf("%w: %s", ErrEmptyRegion, out)
	}
	if !out.Within(source, BoundsTolerance) {
		return SourceRect{}, &RegionOutOfBoundsError{Rect: out, Bounds: source}
	}
	return out, nil
}

func extractContain(source, box Dimensions, rel DisplayRect) (SourceRect, error) {
	content, err := ComputeContentRect(source, box, Contain)
	if err != nil {
		return SourceRect{}, err
	}

	x0 := clamp(rel.X-content.X, 0, content.Width)
	y0 := clamp(rel.Y-content.Y, 0, content.Height)
	x1 := clamp(rel.X-content.X+rel.Width, 0, content.Width)
	y1 := clamp(rel.Y-content.Y+rel.Height, 0, content.Height)

	sx := source.Width / content.Width
	sy := source.Height / content.Height
	return SourceRect{
		X:      x0 * sx,
		Y:      y0 * sy,
		Width:  (x1 - x0) * sx,
		Height: (y1 - y0) * sy,
	}, nil
}

func extractCover(source, box Dimensions, rel DisplayRect) (SourceRect, error) {
	visible, err := VisibleSourceRect(source, box)
	if err != nil {
		return SourceRect{}, err
	}

	return SourceRect{
		X:      visible.X + rel.X/box.Width*visible.Width,
		Y:      visible.Y + rel.Y/box.Height*visible.Height,
		Width:  rel.Width / box.Width * visible.Width,
		Height: rel.Height / box.Height * visible.Height,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
