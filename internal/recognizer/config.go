// Package recognizer turns a region-of-interest image into raw text using an
// OCR backend. It prepares the image for the engine and tidies the output,
// but never judges whether the text is a valid code.
package recognizer

import (
	"fmt"
	"strings"
	"time"
)

// Backend names.
const (
	BackendTesseract = "tesseract" // tesseract command-line binary
	BackendGosseract = "gosseract" // in-process libtesseract, needs the tesseract build tag
	BackendStatic    = "static"    // fixed text, for demos and tests
)

// Defaults mirror what works for printed coupon codes.
const (
	DefaultLanguages   = "kor+eng"
	DefaultWhitelist   = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ-"
	DefaultPageSegMode = 6 // single uniform block of text
	DefaultBinaryPath  = "tesseract"
	DefaultTimeout     = 30 * time.Second
)

// Config holds configuration for the text recognizer.
type Config struct {
	Backend     string
	Languages   string // tesseract language spec, e.g. "kor+eng"
	Whitelist   string // characters the engine may emit; empty disables the filter
	BinaryPath  string // tesseract executable for the CLI backend
	PageSegMode int
	Timeout     time.Duration // per recognition; 0 means no limit
	StaticText  string        // text returned by the static backend
	Clean       CleanOptions
	Preprocess  PreprocessOptions
}

// DefaultConfig returns a default recognizer configuration.
func DefaultConfig() Config {
	return Config{
		Backend:     BackendTesseract,
		Languages:   DefaultLanguages,
		Whitelist:   DefaultWhitelist,
		BinaryPath:  DefaultBinaryPath,
		PageSegMode: DefaultPageSegMode,
		Timeout:     DefaultTimeout,
		Clean:       DefaultCleanOptions(),
		Preprocess:  DefaultPreprocessOptions(),
	}
}

// Validate checks the configuration for obvious mistakes.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case BackendTesseract, BackendGosseract, BackendStatic:
	default:
		return fmt.Errorf("unknown recognizer backend %q", c.Backend)
	}
	if c.PageSegMode < 0 || c.PageSegMode > 13 {
		return fmt.Errorf("page segmentation mode must be 0-13, got %d", c.PageSegMode)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %v", c.Timeout)
	}
	return c.Preprocess.Validate()
}

func (c Config) languageList() []string {
	var langs []string
	for _, l := range strings.Split(c.Languages, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}
