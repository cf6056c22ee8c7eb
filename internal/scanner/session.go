// Package scanner owns a scanning session: the pending candidate, the
// accepted codes, the active settings and the single in-flight capture.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/ledger"
	"github.com/MeKo-Tech/codescan/internal/normalize"
	"github.com/MeKo-Tech/codescan/internal/store"
	"github.com/MeKo-Tech/codescan/internal/utils"
	"github.com/google/uuid"
)

// TextRecognizer reads raw text from a region image.
type TextRecognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Options configures a Session.
type Options struct {
	Store      store.Store // nil means an in-memory store
	Recognizer TextRecognizer
	// Settings apply until the store holds saved settings.
	Settings Settings
	// Override, when set, adjusts the restored settings for this session
	// only. The result is not written back to the store.
	Override func(Settings) Settings
	Export   ledger.ExportOptions
	Logger   *slog.Logger
	// KeepROI attaches the cropped region image to every CaptureResult.
	KeepROI bool
}

// CaptureRequest is one trigger of the capture command.
type CaptureRequest struct {
	Frame  image.Image
	Layout geometry.Layout
}

// PixelRect is the integer pixel rectangle that was copied out of the frame.
type PixelRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CaptureResult describes a completed capture. A rejected result is not an
// error: Rejection explains why no candidate was produced. Raw is the
// recognizer's cleaned text; the engine's untouched output is logged at
// debug level by the recognizer.
type CaptureResult struct {
	ID         string               `json:"id"`
	Raw        string               `json:"raw"`
	Filtered   string               `json:"filtered"`
	Candidate  string               `json:"candidate,omitempty"`
	Accepted   bool                 `json:"accepted"`
	Rejection  *normalize.Rejection `json:"rejection,omitempty"`
	Reason     string               `json:"reason,omitempty"`
	Region     geometry.SourceRect  `json:"region"`
	Pixels     PixelRect            `json:"pixels"`
	DurationMS int64                `json:"duration_ms"`
	ROI        image.Image          `json:"-"`
}

// Status is a point-in-time view of the session.
type Status struct {
	Busy     bool     `json:"busy"`
	Pending  string   `json:"pending,omitempty"`
	Count    int      `json:"count"`
	Settings Settings `json:"settings"`
}

// Session serializes every state change behind one mutex. Recognition runs
// outside the lock so ledger commands stay responsive during a capture.
type Session struct {
	mu         sync.Mutex
	ledger     *ledger.Ledger
	settings   Settings
	busy       bool
	store      store.Store
	recognizer TextRecognizer
	export     ledger.ExportOptions
	logger     *slog.Logger
	keepROI    bool
}

// NewSession loads the accepted codes and saved settings from the store.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	if opts.Recognizer == nil {
		return nil, errors.New("scanner: recognizer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	st := opts.Store
	if st == nil {
		st = store.NewMemoryStore()
	}

	settings := opts.Settings
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}

	codes, err := st.LoadCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: load codes: %w", err)
	}

	saved, ok, err := st.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: load settings: %w", err)
	}
	if ok {
		if restored, perr := settingsFromStore(saved); perr != nil {
			logger.Warn("ignoring saved settings", "error", perr)
		} else {
			settings = restored
		}
	}
	if opts.Override != nil {
		settings = opts.Override(settings)
		settings.LengthSpec = strings.TrimSpace(settings.LengthSpec)
		if err := settings.Validate(); err != nil {
			return nil, fmt.Errorf("scanner: %w", err)
		}
	}

	s := &Session{
		ledger:     ledger.New(codes),
		settings:   settings,
		store:      st,
		recognizer: opts.Recognizer,
		export:     opts.Export,
		logger:     logger,
		keepROI:    opts.KeepROI,
	}
	acceptedCodes.Set(float64(s.ledger.Len()))

	logger.Debug("session started",
		"codes", s.ledger.Len(),
		"format", settings.Format.String(),
		"length_spec", settings.LengthSpec)
	return s, nil
}

// Capture extracts the overlay region from the frame, recognizes it and
// normalizes the text. Any stale pending candidate is discarded first. A
// capture started while another is running fails with ErrBusy and changes
// nothing.
func (s *Session) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		capturesTotal.WithLabelValues(OutcomeBusy).Inc()
		return nil, ErrBusy
	}
	s.busy = true
	s.ledger.Discard()
	settings := s.settings
	s.mu.Unlock()

	candidate := ""
	defer func() {
		s.mu.Lock()
		s.ledger.SetPending(candidate)
		s.busy = false
		s.mu.Unlock()
	}()

	id := uuid.NewString()
	start := time.Now()
	logger := s.logger.With("capture_id", id)

	res, outcome, err := s.capture(ctx, req, settings, logger)
	capturesTotal.WithLabelValues(outcome).Inc()
	if err != nil {
		logger.Info("capture failed", "outcome", outcome, "error", err)
		return nil, err
	}

	res.ID = id
	res.DurationMS = time.Since(start).Milliseconds()
	candidate = res.Candidate

	if res.Accepted {
		logger.Info("capture produced candidate", "candidate", res.Candidate, "region", res.Region.String())
	} else {
		logger.Info("capture rejected", "reason", res.Reason, "raw", res.Raw, "filtered", res.Filtered)
	}
	return res, nil
}

func (s *Session) capture(ctx context.Context, req CaptureRequest, settings Settings, logger *slog.Logger) (*CaptureResult, string, error) {
	if req.Frame == nil {
		return nil, OutcomeInvalid, ErrNoFrame
	}

	source := geometry.DimensionsOf(req.Frame.Bounds())
	region, err := req.Layout.Extract(source)
	if err != nil {
		return nil, OutcomeGeometryError, err
	}

	roi, pixels, err := utils.CropSourceRect(req.Frame, region)
	if err != nil {
		return nil, OutcomeGeometryError, fmt.Errorf("%w: %w", geometry.ErrEmptyRegion, err)
	}
	logger.Debug("extracted region",
		"source", source.String(),
		"fit", req.Layout.Fit.String(),
		"region", region.String(),
		"pixels", pixels.String())

	recStart := time.Now()
	raw, err := s.recognizer.Recognize(ctx, roi)
	recognitionDuration.Observe(time.Since(recStart).Seconds())
	if err != nil {
		return nil, OutcomeRecognitionError, &RecognitionError{Err: err}
	}

	bounds := req.Frame.Bounds()
	res := &CaptureResult{
		Raw:    raw,
		Region: region,
		Pixels: PixelRect{
			X:      pixels.Min.X - bounds.Min.X,
			Y:      pixels.Min.Y - bounds.Min.Y,
			Width:  pixels.Dx(),
			Height: pixels.Dy(),
		},
	}
	if s.keepROI {
		res.ROI = roi
	}

	code, err := normalize.Normalize(raw, settings.Format, settings.LengthSpec)
	var rej *normalize.Rejection
	switch {
	case err == nil:
		res.Candidate = code
		res.Filtered = code
		res.Accepted = true
		return res, OutcomeAccepted, nil
	case errors.As(err, &rej):
		res.Filtered = rej.Filtered
		res.Rejection = rej
		res.Reason = rej.Reason()
		return res, OutcomeRejected, nil
	default:
		return nil, OutcomeInvalid, err
	}
}

// Confirm moves the pending candidate into the accepted set and saves it.
// If only saving fails, the code is returned together with a *PersistError.
func (s *Session) Confirm(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.ledger.Confirm()
	if err != nil {
		s.logger.Info("confirm refused", "error", err)
		return "", err
	}
	s.logger.Info("code saved", "code", code, "count", s.ledger.Len())
	return code, s.persistCodesLocked(ctx)
}

// Discard drops the pending candidate.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Discard()
}

// DeleteCode removes one accepted code. A code that is not in the set is
// reported with ledger.ErrCodeNotFound and nothing changes.
func (s *Session) DeleteCode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Delete(code); err != nil {
		return err
	}
	s.logger.Info("code deleted", "code", code, "count", s.ledger.Len())
	return s.persistCodesLocked(ctx)
}

// DeleteAll removes every accepted code and reports how many there were.
// Zero means there was nothing to delete; the store is left alone.
func (s *Session) DeleteAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.ledger.DeleteAll()
	if n == 0 {
		return 0, nil
	}
	s.logger.Info("all codes deleted", "count", n)
	return n, s.persistCodesLocked(ctx)
}

// UpdateSettings replaces the normalization settings and saves them. The
// pending candidate is kept; new settings apply from the next capture.
func (s *Session) UpdateSettings(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	settings.LengthSpec = strings.TrimSpace(settings.LengthSpec)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = settings
	s.logger.Info("settings updated",
		"format", settings.Format.String(),
		"length_spec", settings.LengthSpec)
	if err := s.store.SaveSettings(ctx, settings.toStore()); err != nil {
		s.logger.Error("failed to save settings", "error", err)
		return &PersistError{Op: "settings", Err: err}
	}
	return nil
}

// Codes returns the accepted codes in acceptance order.
func (s *Session) Codes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Codes()
}

// Pending returns the pending candidate, if any.
func (s *Session) Pending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Pending()
}

func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Busy reports whether a capture is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, _ := s.ledger.Pending()
	return Status{
		Busy:     s.busy,
		Pending:  pending,
		Count:    s.ledger.Len(),
		Settings: s.settings,
	}
}

// Export renders the accepted codes as shareable text.
func (s *Session) Export() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.FormatExport(s.ledger.Codes(), s.export)
}

// Close releases the store and, when it holds resources, the recognizer.
func (s *Session) Close() error {
	var errs []error
	if c, ok := s.recognizer.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

func (s *Session) persistCodesLocked(ctx context.Context) error {
	acceptedCodes.Set(float64(s.ledger.Len()))
	if err := s.store.SaveCodes(ctx, s.ledger.Codes()); err != nil {
		s.logger.Error("failed to save codes", "error", err)
		return &PersistError{Op: "codes", Err: err}
	}
	return nil
}
