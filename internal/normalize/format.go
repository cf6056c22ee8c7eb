// Package normalize turns raw recognizer output into a candidate code, or a
// rejection explaining why the text did not qualify.
package normalize

import (
	"fmt"
	"strings"
	"unicode"
)

// FormatPolicy selects which characters survive filtering.
type FormatPolicy int

const (
	// AlphanumericOnly keeps ASCII letters and digits. Hyphens are dropped.
	AlphanumericOnly FormatPolicy = iota
	// AlphanumericWithHyphen keeps ASCII letters, digits and hyphens in place.
	AlphanumericWithHyphen
)

// Persisted names of the format policies.
const (
	FormatAlphanumeric       = "alphanumeric"
	FormatAlphanumericHyphen = "alphanumeric_hyphen"
)

func (f FormatPolicy) String() string {
	switch f {
	case AlphanumericOnly:
		return FormatAlphanumeric
	case AlphanumericWithHyphen:
		return FormatAlphanumericHyphen
	default:
		return fmt.Sprintf("FormatPolicy(%d)", int(f))
	}
}

// ParseFormatPolicy parses a persisted format name.
func ParseFormatPolicy(s string) (FormatPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case FormatAlphanumeric:
		return AlphanumericOnly, nil
	case FormatAlphanumericHyphen:
		return AlphanumericWithHyphen, nil
	}
	return AlphanumericOnly, fmt.Errorf("unknown format %q (must be %s or %s)",
		s, FormatAlphanumeric, FormatAlphanumericHyphen)
}

// MarshalText implements encoding.TextMarshaler.
func (f FormatPolicy) MarshalText() ([]byte, error) {
	if f != AlphanumericOnly && f != AlphanumericWithHyphen {
		return nil, fmt.Errorf("unknown format policy %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FormatPolicy) UnmarshalText(text []byte) error {
	p, err := ParseFormatPolicy(string(text))
	if err != nil {
		return err
	}
	*f = p
	return nil
}

// Filter strips whitespace from raw and removes every character the policy
// does not allow. Unknown policies filter like AlphanumericOnly.
// Filter is idempotent.
func Filter(raw string, format FormatPolicy) string {
	keepHyphen := format == AlphanumericWithHyphen

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
		case isASCIIAlnum(r):
			b.WriteRune(r)
		case r == '-' && keepHyphen:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
