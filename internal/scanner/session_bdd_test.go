package scanner

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/normalize"
	"github.com/MeKo-Tech/codescan/internal/store"
	"github.com/MeKo-Tech/codescan/internal/testutil"
	"github.com/cucumber/godog"
)

// sessionWorld is the per-scenario state of the session feature suite.
type sessionWorld struct {
	frameW, frameH int
	layout         geometry.Layout
	settings       Settings
	rec            *fakeRecognizer
	store          *store.MemoryStore
	session        *Session

	lastResult *CaptureResult
	lastErr    error
	deleted    int
}

func (w *sessionWorld) ensureSession() error {
	if w.session != nil {
		return nil
	}
	s, err := NewSession(context.Background(), Options{
		Store:      w.store,
		Recognizer: w.rec,
		Settings:   w.settings,
	})
	if err != nil {
		return err
	}
	w.session = s
	return nil
}

func (w *sessionWorld) aFrameShownInABox(fw, fh int, bw, bh float64, fit string) error {
	policy, err := geometry.ParseFitPolicy(fit)
	if err != nil {
		return err
	}
	w.frameW, w.frameH = fw, fh
	w.layout.Box = geometry.DisplayRect{Width: bw, Height: bh}
	w.layout.Fit = policy
	return nil
}

func (w *sessionWorld) theScanWindowIsAt(x, y, width, height float64) error {
	w.layout.Overlay = geometry.DisplayRect{X: x, Y: y, Width: width, Height: height}
	return nil
}

func (w *sessionWorld) theRecognizerReads(text string) error {
	w.rec.setText(text)
	return nil
}

func (w *sessionWorld) theFormatAndLengthAre(format, length string) error {
	f, err := normalize.ParseFormatPolicy(format)
	if err != nil {
		return err
	}
	w.settings = Settings{Format: f, LengthSpec: length}
	if w.session != nil {
		return w.session.UpdateSettings(context.Background(), w.settings)
	}
	return nil
}

func (w *sessionWorld) theSavedCodes(list string) error {
	return w.store.SaveCodes(context.Background(), splitCodes(list))
}

func (w *sessionWorld) iCapture() error {
	if err := w.ensureSession(); err != nil {
		return err
	}
	frame := testutil.CreateTestImage(w.frameW, w.frameH, color.White)
	w.lastResult, w.lastErr = w.session.Capture(context.Background(), CaptureRequest{Frame: frame, Layout: w.layout})
	return nil
}

func (w *sessionWorld) iConfirm() error {
	if err := w.ensureSession(); err != nil {
		return err
	}
	_, w.lastErr = w.session.Confirm(context.Background())
	return nil
}

func (w *sessionWorld) iDeleteTheCode(code string) error {
	if err := w.ensureSession(); err != nil {
		return err
	}
	w.lastErr = w.session.DeleteCode(context.Background(), code)
	return nil
}

func (w *sessionWorld) iDeleteAllCodes() error {
	if err := w.ensureSession(); err != nil {
		return err
	}
	w.deleted, w.lastErr = w.session.DeleteAll(context.Background())
	return w.lastErr
}

func (w *sessionWorld) theCandidateIs(want string) error {
	if w.lastErr != nil {
		return fmt.Errorf("capture failed: %w", w.lastErr)
	}
	got, ok := w.session.Pending()
	if !ok || got != want {
		return fmt.Errorf("expected candidate %q, got %q (pending=%v)", want, got, ok)
	}
	return nil
}

func (w *sessionWorld) thereIsNoCandidate() error {
	if err := w.ensureSession(); err != nil {
		return err
	}
	if got, ok := w.session.Pending(); ok {
		return fmt.Errorf("expected no candidate, got %q", got)
	}
	return nil
}

func (w *sessionWorld) theRejectionReasonIs(reason string) error {
	if w.lastResult == nil {
		return fmt.Errorf("no capture result (error: %v)", w.lastErr)
	}
	if w.lastResult.Reason != reason {
		return fmt.Errorf("expected reason %q, got %q", reason, w.lastResult.Reason)
	}
	return nil
}

func (w *sessionWorld) theFilteredTextIs(want string) error {
	if w.lastResult == nil {
		return fmt.Errorf("no capture result (error: %v)", w.lastErr)
	}
	if w.lastResult.Filtered != want {
		return fmt.Errorf("expected filtered %q, got %q", want, w.lastResult.Filtered)
	}
	return nil
}

func (w *sessionWorld) theExtractedRegionIs(x, y, width, height float64) error {
	if w.lastResult == nil {
		return fmt.Errorf("no capture result (error: %v)", w.lastErr)
	}
	r := w.lastResult.Region
	const eps = 1e-6
	if math.Abs(r.X-x) > eps || math.Abs(r.Y-y) > eps ||
		math.Abs(r.Width-width) > eps || math.Abs(r.Height-height) > eps {
		return fmt.Errorf("expected region (%g,%g %gx%g), got %s", x, y, width, height, r)
	}
	return nil
}

func (w *sessionWorld) theCaptureFailsWith(msg string) error {
	if w.lastErr == nil {
		return errors.New("expected the capture to fail")
	}
	if !strings.Contains(w.lastErr.Error(), msg) {
		return fmt.Errorf("expected error containing %q, got %q", msg, w.lastErr)
	}
	return nil
}

func (w *sessionWorld) theSavedCodesAre(list string) error {
	if err := w.ensureSession(); err != nil {
		return err
	}
	want := splitCodes(list)
	got := w.session.Codes()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("expected codes %v, got %v", want, got)
	}
	persisted, err := w.store.LoadCodes(context.Background())
	if err != nil {
		return err
	}
	if len(want) > 0 && strings.Join(persisted, ",") != strings.Join(want, ",") {
		return fmt.Errorf("expected persisted codes %v, got %v", want, persisted)
	}
	return nil
}

func (w *sessionWorld) codesWereDeleted(n int) error {
	if w.deleted != n {
		return fmt.Errorf("expected %d deleted, got %d", n, w.deleted)
	}
	return nil
}

func splitCodes(list string) []string {
	var codes []string
	for _, c := range strings.Split(list, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

func initializeSessionScenario(sc *godog.ScenarioContext) {
	w := &sessionWorld{
		settings: DefaultSettings(),
		rec:      &fakeRecognizer{},
		store:    store.NewMemoryStore(),
	}

	sc.Step(`^a (\d+)x(\d+) camera frame shown in a ([\d.]+)x([\d.]+) box with "([^"]*)" fit$`, w.aFrameShownInABox)
	sc.Step(`^the scan window is at ([\d.]+),([\d.]+) with size ([\d.]+)x([\d.]+)$`, w.theScanWindowIsAt)
	sc.Step(`^the recognizer reads "([^"]*)"$`, w.theRecognizerReads)
	sc.Step(`^the format is "([^"]*)" and the length is "([^"]*)"$`, w.theFormatAndLengthAre)
	sc.Step(`^the saved codes "([^"]*)"$`, w.theSavedCodes)
	sc.Step(`^I capture$`, w.iCapture)
	sc.Step(`^I confirm the candidate$`, w.iConfirm)
	sc.Step(`^I delete the code "([^"]*)"$`, w.iDeleteTheCode)
	sc.Step(`^I delete all codes$`, w.iDeleteAllCodes)
	sc.Step(`^the candidate is "([^"]*)"$`, w.theCandidateIs)
	sc.Step(`^there is no candidate$`, w.thereIsNoCandidate)
	sc.Step(`^the rejection reason is "([^"]*)"$`, w.theRejectionReasonIs)
	sc.Step(`^the filtered text is "([^"]*)"$`, w.theFilteredTextIs)
	sc.Step(`^the extracted region is ([\d.]+),([\d.]+) with size ([\d.]+)x([\d.]+)$`, w.theExtractedRegionIs)
	sc.Step(`^the capture fails with "([^"]*)"$`, w.theCaptureFailsWith)
	sc.Step(`^(?:confirming|deleting) fails with "([^"]*)"$`, w.theCaptureFailsWith)
	sc.Step(`^the saved codes are "([^"]*)"$`, w.theSavedCodesAre)
	sc.Step(`^(\d+) codes were deleted$`, w.codesWereDeleted)
}

func TestSessionFeatures(t *testing.T) {
	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "progress"
	}

	suite := godog.TestSuite{
		Name:                "session",
		ScenarioInitializer: initializeSessionScenario,
		Options: &godog.Options{
			Format:   format,
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
