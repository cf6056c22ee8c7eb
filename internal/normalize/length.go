package normalize

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// LengthConstraint bounds the length of an accepted code.
type LengthConstraint struct {
	Min       int  `json:"min"`
	Max       int  `json:"max"`
	Unbounded bool `json:"unbounded"`
}

// Allows reports whether n lies within the constraint.
func (c LengthConstraint) Allows(n int) bool {
	if n < c.Min {
		return false
	}
	return c.Unbounded || n <= c.Max
}

func (c LengthConstraint) String() string {
	switch {
	case c.Unbounded:
		return strconv.Itoa(c.Min) + "+"
	case c.Min == c.Max:
		return strconv.Itoa(c.Min)
	default:
		return strconv.Itoa(c.Min) + "-" + strconv.Itoa(c.Max)
	}
}

// ParseLengthSpec parses a user-supplied length pattern.
//
//	"12"    exactly 12
//	"8-16"  8 through 16
//	"8-"    at least 8
//	"-16"   at most 16
//	""      any length
//
// Each bound is read from its leading integer. A bound that does not parse
// falls back to 0 for the minimum and to unbounded for a range maximum; a
// range maximum of 0 is also treated as unbounded. A single value that does
// not parse yields 0-0.
func ParseLengthSpec(spec string) LengthConstraint {
	spec = strings.TrimSpace(spec)

	if strings.Contains(spec, "-") {
		parts := strings.Split(spec, "-")
		c := LengthConstraint{Min: nonZeroOr(parts[0], 0)}
		if hi, ok := leadingInt(parts[1]); ok && hi != 0 {
			c.Max = hi
		} else {
			c.Unbounded = true
		}
		return c
	}

	if spec == "" {
		return LengthConstraint{Unbounded: true}
	}

	n := nonZeroOr(spec, 0)
	return LengthConstraint{Min: n, Max: n}
}

func nonZeroOr(s string, fallback int) int {
	if n, ok := leadingInt(s); ok && n != 0 {
		return n
	}
	return fallback
}

// leadingInt reads an optionally signed run of decimal digits after leading
// whitespace and ignores anything that follows it. Values beyond the int range
// saturate.
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		n = math.MaxInt
	}
	if neg {
		n = -n
	}
	return n, true
}
