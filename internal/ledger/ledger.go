// Package ledger holds the pending candidate and the ordered set of accepted
// codes.
package ledger

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrNoCandidate is returned by Confirm when nothing is pending.
	ErrNoCandidate = errors.New("no candidate to confirm")
	// ErrDuplicate is returned by Confirm when the pending code was already accepted.
	ErrDuplicate = errors.New("code already saved")
	// ErrCodeNotFound is returned by Delete for a code that is not in the set.
	ErrCodeNotFound = errors.New("code not found")
)

// Ledger is not safe for concurrent use; the owning session serializes access.
type Ledger struct {
	pending  string
	accepted []string
}

// New returns a ledger seeded with previously accepted codes. Empty strings
// and repeats are dropped, keeping first occurrence order.
func New(codes []string) *Ledger {
	l := &Ledger{accepted: make([]string, 0, len(codes))}
	for _, c := range codes {
		if c == "" || l.Contains(c) {
			continue
		}
		l.accepted = append(l.accepted, c)
	}
	return l
}

// SetPending replaces the pending candidate. An empty code clears it.
func (l *Ledger) SetPending(code string) {
	l.pending = code
}

// Pending returns the pending candidate, if any.
func (l *Ledger) Pending() (string, bool) {
	return l.pending, l.pending != ""
}

// Confirm moves the pending candidate into the accepted set. A duplicate
// leaves both the set and the pending candidate untouched.
func (l *Ledger) Confirm() (string, error) {
	if l.pending == "" {
		return "", ErrNoCandidate
	}
	if l.Contains(l.pending) {
		return "", fmt.Errorf("%w: %q", ErrDuplicate, l.pending)
	}

	code := l.pending
	l.accepted = append(l.accepted, code)
	l.pending = ""
	return code, nil
}

// Discard clears the pending candidate.
func (l *Ledger) Discard() {
	l.pending = ""
}

// Delete removes code from the accepted set.
func (l *Ledger) Delete(code string) error {
	i := slices.Index(l.accepted, code)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrCodeNotFound, code)
	}
	l.accepted = slices.Delete(l.accepted, i, i+1)
	return nil
}

// DeleteAll empties the accepted set and reports how many codes it held.
func (l *Ledger) DeleteAll() int {
	n := len(l.accepted)
	l.accepted = l.accepted[:0]
	return n
}

// Codes returns a copy of the accepted codes in acceptance order.
func (l *Ledger) Codes() []string {
	return slices.Clone(l.accepted)
}

func (l *Ledger) Len() int {
	return len(l.accepted)
}

func (l *Ledger) Contains(code string) bool {
	return slices.Contains(l.accepted, code)
}
