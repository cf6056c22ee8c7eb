package scanner

import (
	"strings"

	"github.com/MeKo-Tech/codescan/internal/normalize"
	"github.com/MeKo-Tech/codescan/internal/store"
)

// Settings are the user-adjustable normalization rules.
type Settings struct {
	Format     normalize.FormatPolicy `json:"format"`
	LengthSpec string                 `json:"length_spec"`
}

// DefaultSettings accepts alphanumeric codes of any length.
func DefaultSettings() Settings {
	return Settings{Format: normalize.AlphanumericOnly}
}

// Constraint returns the parsed length constraint.
func (s Settings) Constraint() normalize.LengthConstraint {
	return normalize.ParseLengthSpec(s.LengthSpec)
}

func (s Settings) toStore() store.Settings {
	return store.Settings{Format: s.Format.String(), LengthSpec: s.LengthSpec}
}

func settingsFromStore(s store.Settings) (Settings, error) {
	format, err := normalize.ParseFormatPolicy(s.Format)
	if err != nil {
		return Settings{}, err
	}
	return Settings{Format: format, LengthSpec: strings.TrimSpace(s.LengthSpec)}, nil
}

// Validate rejects unknown format policies. Any length spec is accepted; an
// unparsable one simply matches nothing.
func (s Settings) Validate() error {
	_, err := s.Format.MarshalText()
	return err
}
