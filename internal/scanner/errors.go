package scanner

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned by Capture while another capture is running.
	ErrBusy = errors.New("a capture is already in progress")
	// ErrNoFrame is returned by Capture when the request carries no image.
	ErrNoFrame = errors.New("no camera frame supplied")
)

// RecognitionError wraps a recognizer failure. The recognizer's error is
// surfaced as is.
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognition failed: %v", e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// PersistError reports a store failure after an in-memory change was already
// applied. The change stands; only persistence failed.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
