package normalize

import (
	"fmt"
	"strings"
)

// Rejection reasons.
const (
	ReasonNoValidChars   = "no_valid_characters"
	ReasonLengthMismatch = "length_out_of_range"
)

// Rejection explains why recognized text did not become a candidate.
// It is an expected outcome, never fatal.
type Rejection struct {
	Raw          string           `json:"raw"`
	Filtered     string           `json:"filtered"`
	LengthSpec   string           `json:"length_spec"`
	Constraint   LengthConstraint `json:"constraint"`
	NoValidChars bool             `json:"no_valid_chars"`
}

// Reason returns a stable identifier for the rejection.
func (r *Rejection) Reason() string {
	if r.NoValidChars {
		return ReasonNoValidChars
	}
	return ReasonLengthMismatch
}

func (r *Rejection) Error() string {
	msg := fmt.Sprintf("filtered text %q (length %d) does not match length spec %q",
		r.Filtered, len(r.Filtered), r.LengthSpec)
	if r.NoValidChars {
		msg += " (no valid characters found)"
	}
	return msg
}

// Normalize filters raw by format and checks the result against lengthSpec.
// It returns the accepted candidate, or a *Rejection. Empty results are
// always rejected, whatever the length spec allows.
func Normalize(raw string, format FormatPolicy, lengthSpec string) (string, error) {
	filtered := Filter(raw, format)
	constraint := ParseLengthSpec(lengthSpec)

	if len(filtered) > 0 && constraint.Allows(len(filtered)) {
		return filtered, nil
	}

	return "", &Rejection{
		Raw:          raw,
		Filtered:     filtered,
		LengthSpec:   strings.TrimSpace(lengthSpec),
		Constraint:   constraint,
		NoValidChars: filtered == "" && strings.TrimSpace(raw) != "",
	}
}
