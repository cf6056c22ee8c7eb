//go:build !tesseract

package recognizer

import "fmt"

func newGosseractBackend(Config) (Backend, error) {
	return nil, fmt.Errorf("%w: gosseract backend not linked; build with -tags=tesseract", ErrBackendUnavailable)
}
