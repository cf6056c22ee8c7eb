package normalize

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		format FormatPolicy
		want   string
	}{
		{"strips whitespace and hyphens", "AB-12 cd", AlphanumericOnly, "AB12cd"},
		{"keeps hyphens in place", "AB-12 cd", AlphanumericWithHyphen, "AB-12cd"},
		{"drops punctuation", "A.B,1;2!", AlphanumericOnly, "AB12"},
		{"drops non-ascii letters", "쿠폰 AB12 번호", AlphanumericOnly, "AB12"},
		{"full-width digits are not ascii", "１２AB", AlphanumericOnly, "AB"},
		{"newlines and tabs", "AB\n12\tCD\r\n", AlphanumericWithHyphen, "AB12CD"},
		{"empty", "", AlphanumericOnly, ""},
		{"only noise", " ~~ | ", AlphanumericWithHyphen, ""},
		{"unknown policy filters alphanumeric", "AB-12", FormatPolicy(7), "AB12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filter(tt.raw, tt.format))
		})
	}
}

func TestParseLengthSpec(t *testing.T) {
	tests := []struct {
		spec string
		want LengthConstraint
	}{
		{"12", LengthConstraint{Min: 12, Max: 12}},
		{" 12 ", LengthConstraint{Min: 12, Max: 12}},
		{"8-16", LengthConstraint{Min: 8, Max: 16}},
		{"8 - 16", LengthConstraint{Min: 8, Max: 16}},
		{"8-", LengthConstraint{Min: 8, Unbounded: true}},
		{"-16", LengthConstraint{Min: 0, Max: 16}},
		{"8-0", LengthConstraint{Min: 8, Unbounded: true}},
		{"8-abc", LengthConstraint{Min: 8, Unbounded: true}},
		{"abc-16", LengthConstraint{Min: 0, Max: 16}},
		{"8-16-20", LengthConstraint{Min: 8, Max: 16}},
		{"12abc", LengthConstraint{Min: 12, Max: 12}},
		{"abc", LengthConstraint{Min: 0, Max: 0}},
		{"0", LengthConstraint{Min: 0, Max: 0}},
		{"", LengthConstraint{Unbounded: true}},
		{"   ", LengthConstraint{Unbounded: true}},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLengthSpec(tt.spec))
		})
	}
}

func TestLengthConstraint_Allows(t *testing.T) {
	c := LengthConstraint{Min: 8, Max: 16}
	assert.False(t, c.Allows(7))
	assert.True(t, c.Allows(8))
	assert.True(t, c.Allows(16))
	assert.False(t, c.Allows(17))

	open := LengthConstraint{Min: 4, Unbounded: true}
	assert.False(t, open.Allows(3))
	assert.True(t, open.Allows(1000))

	inverted := LengthConstraint{Min: 16, Max: 8}
	for n := 0; n < 20; n++ {
		assert.False(t, inverted.Allows(n))
	}
}

func TestLengthConstraint_String(t *testing.T) {
	assert.Equal(t, "12", LengthConstraint{Min: 12, Max: 12}.String())
	assert.Equal(t, "8-16", LengthConstraint{Min: 8, Max: 16}.String())
	assert.Equal(t, "8+", LengthConstraint{Min: 8, Unbounded: true}.String())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		format       FormatPolicy
		spec         string
		wantCode     string
		wantFiltered string
		noValidChars bool
	}{
		{
			name:         "length mismatch after stripping hyphen",
			raw:          "AB-12 cd",
			format:       AlphanumericOnly,
			spec:         "4",
			wantFiltered: "AB12cd",
		},
		{
			name:     "hyphen kept and length matches",
			raw:      "AB-12cd",
			format:   AlphanumericWithHyphen,
			spec:     "7",
			wantCode: "AB-12cd",
		},
		{
			name:         "empty input rejected even when zero length allowed",
			raw:          "",
			format:       AlphanumericOnly,
			spec:         "0",
			wantFiltered: "",
		},
		{
			name:         "unparsable single spec rejects everything",
			raw:          "AB12",
			format:       AlphanumericOnly,
			spec:         "abc",
			wantFiltered: "AB12",
		},
		{
			name:     "range accepts",
			raw:      " 1234 5678 90 ",
			format:   AlphanumericOnly,
			spec:     "8-16",
			wantCode: "1234567890",
		},
		{
			name:     "empty spec accepts any non-empty code",
			raw:      "X",
			format:   AlphanumericOnly,
			spec:     "",
			wantCode: "X",
		},
		{
			name:         "noise only flags missing valid characters",
			raw:          "  ~~## ",
			format:       AlphanumericOnly,
			spec:         "",
			wantFiltered: "",
			noValidChars: true,
		},
		{
			name:         "whitespace only is not flagged",
			raw:          " \n\t ",
			format:       AlphanumericOnly,
			spec:         "",
			wantFiltered: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := Normalize(tt.raw, tt.format, tt.spec)
			if tt.wantCode != "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantCode, code)
				return
			}

			require.Error(t, err)
			assert.Empty(t, code)

			var rej *Rejection
			require.True(t, errors.As(err, &rej))
			assert.Equal(t, tt.raw, rej.Raw)
			assert.Equal(t, tt.wantFiltered, rej.Filtered)
			assert.Equal(t, tt.noValidChars, rej.NoValidChars)
			assert.Equal(t, ParseLengthSpec(tt.spec), rej.Constraint)
			if tt.noValidChars {
				assert.Equal(t, ReasonNoValidChars, rej.Reason())
				assert.Contains(t, rej.Error(), "no valid characters")
			} else {
				assert.Equal(t, ReasonLengthMismatch, rej.Reason())
			}
		})
	}
}

func TestRejection_CarriesTrimmedSpec(t *testing.T) {
	_, err := Normalize("AB", AlphanumericOnly, " 4 ")
	var rej *Rejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "4", rej.LengthSpec)
	assert.Contains(t, err.Error(), `"AB"`)
}

func TestFormatPolicy_Text(t *testing.T) {
	f, err := ParseFormatPolicy("alphanumeric_hyphen")
	require.NoError(t, err)
	assert.Equal(t, AlphanumericWithHyphen, f)

	_, err = ParseFormatPolicy("numeric")
	assert.Error(t, err)

	data, err := json.Marshal(struct {
		Format FormatPolicy `json:"format"`
	}{AlphanumericOnly})
	require.NoError(t, err)
	assert.JSONEq(t, `{"format":"alphanumeric"}`, string(data))

	var out struct {
		Format FormatPolicy `json:"format"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"format":"alphanumeric_hyphen"}`), &out))
	assert.Equal(t, AlphanumericWithHyphen, out.Format)
}

func BenchmarkNormalize(b *testing.B) {
	inputs := []string{"AB-12 cd", " 1234 5678 90 ", "쿠폰 번호: AB12-CD34-EF56", ""}

	b.ResetTimer()
	for range b.N {
		for _, raw := range inputs {
			_, _ = Normalize(raw, AlphanumericWithHyphen, "8-16")
		}
	}
}
