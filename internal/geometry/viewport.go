package geometry

import (
	"fmt"
	"strings"
)

// FitPolicy describes how a source of one aspect ratio is drawn into a box of another.
type FitPolicy int

const (
	// Cover fills the box and crops the overflowing source axis.
	Cover FitPolicy = iota
	// Contain fits the whole source inside the box and letterboxes the rest.
	Contain
)

func (f FitPolicy) String() string {
	switch f {
	case Cover:
		return "cover"
	case Contain:
		return "contain"
	default:
		return fmt.Sprintf("FitPolicy(%d)", int(f))
	}
}

// ParseFitPolicy parses "cover" or "contain" (case-insensitive).
func ParseFitPolicy(s string) (FitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cover":
		return Cover, nil
	case "contain":
		return Contain, nil
	}
	return Cover, fmt.Errorf("unknown fit policy %q (must be cover or contain)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f FitPolicy) MarshalText() ([]byte, error) {
	if f != Cover && f != Contain {
		return nil, fmt.Errorf("unknown fit policy %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FitPolicy) UnmarshalText(text []byte) error {
	p, err := ParseFitPolicy(string(text))
	if err != nil {
		return err
	}
	*f = p
	return nil
}

// ComputeContentRect returns the rectangle, in box coordinates, that the source
// content occupies when drawn into box with the given fit policy.
//
// Cover always reports the full box; which part of the source lands there is
// answered by VisibleSourceRect. Contain reports the centered letterboxed area.
func ComputeContentRect(source, box Dimensions, fit FitPolicy) (DisplayRect, error) {
	if !source.Valid() || !box.Valid() {
		return DisplayRect{}, fmt.Errorf("%w: source %s, box %s", ErrInvalidGeometry, source, box)
	}

	full := DisplayRect{Width: box.Width, Height: box.Height}
	sourceAspect, boxAspect := source.Aspect(), box.Aspect()

	switch fit {
	case Cover:
		return full, nil
	case Contain:
		if aspectEqual(sourceAspect, boxAspect) {
			return full, nil
		}
		if sourceAspect > boxAspect {
			h := box.Width / sourceAspect
			return DisplayRect{X: 0, Y: (box.Height - h) / 2, Width: box.Width, Height: h}, nil
		}
		w := box.Height * sourceAspect
		return DisplayRect{X: (box.Width - w) / 2, Y: 0, Width: w, Height: box.Height}, nil
	default:
		return DisplayRect{}, fmt.Errorf("%w: unknown fit policy %d", ErrInvalidGeometry, int(fit))
	}
}

// VisibleSourceRect returns the centered part of the source that is visible
// when it covers box. The wider side is cropped symmetrically.
func VisibleSourceRect(source, box Dimensions) (SourceRect, error) {
	if !source.Valid() || !box.Valid() {
		return SourceRect{}, fmt.Errorf("%w: source %s, box %s", ErrInvalidGeometry, source, box)
	}

	sourceAspect, boxAspect := source.Aspect(), box.Aspect()
	if aspectEqual(sourceAspect, boxAspect) {
		return SourceRect{Width: source.Width, Height: source.Height}, nil
	}
	if sourceAspect > boxAspect {
		w := source.Height * boxAspect
		return SourceRect{X: (source.Width - w) / 2, Y: 0, Width: w, Height: source.Height}, nil
	}
	h := source.Width / boxAspect
	return SourceRect{X: 0, Y: (source.Height - h) / 2, Width: source.Width, Height: h}, nil
}
