package ledger

import (
	"strings"
	"time"
)

// Default export texts.
const (
	DefaultExportHeader    = "Saved codes:"
	DefaultExportEmptyText = "No saved codes."
)

// ExportOptions controls FormatExport output. Zero values fall back to the
// defaults above.
type ExportOptions struct {
	Header    string
	EmptyText string
}

// FormatExport renders codes as a header line followed by one code per line.
func FormatExport(codes []string, opts ExportOptions) string {
	if len(codes) == 0 {
		if opts.EmptyText == "" {
			return DefaultExportEmptyText
		}
		return opts.EmptyText
	}

	header := opts.Header
	if header == "" {
		header = DefaultExportHeader
	}
	return header + "\n" + strings.Join(codes, "\n")
}

// ExportFilename returns the download name for an export made at t.
func ExportFilename(t time.Time) string {
	return "coupons_" + t.Format("2006-01-02") + ".txt"
}
