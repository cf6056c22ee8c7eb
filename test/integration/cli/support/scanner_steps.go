package support

import (
	"context"
	"fmt"
	"image/color"
	"image/png"
	"os"
	"slices"
	"strings"

	"github.com/MeKo-Tech/codescan/internal/store"
	"github.com/MeKo-Tech/codescan/internal/testutil"
	"github.com/cucumber/godog"
)

// aCameraFrame writes a blank PNG frame of the given size.
func (testCtx *TestContext) aCameraFrame(name string, width, height int) error {
	path := testCtx.Path(name)
	if err := testutil.EnsureDir(testCtx.WorkingDir); err != nil {
		return err
	}

	f, err := os.Create(path) //nolint:gosec // G304: test frame inside the scenario directory
	if err != nil {
		return fmt.Errorf("failed to create frame %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return png.Encode(f, testutil.CreateTestImage(width, height, color.White))
}

func (testCtx *TestContext) aFileThatIsNotAnImage(name string) error {
	return os.WriteFile(testCtx.Path(name), []byte("not an image"), 0o600)
}

// theRecognizerReads fixes the text every capture will see.
func (testCtx *TestContext) theRecognizerReads(text string) error {
	testCtx.AddEnvVar("CODESCAN_RECOGNIZER_STATIC_TEXT", text)
	return nil
}

func (testCtx *TestContext) fileStore() (*store.FileStore, error) {
	slot := testCtx.EnvValue("CODESCAN_STORE_SLOT")
	return store.NewFileStore(testCtx.StorePath, slot)
}

// theStoreHoldsCodes seeds the store from a comma-separated list.
func (testCtx *TestContext) theStoreHoldsCodes(list string) error {
	fs, err := testCtx.fileStore()
	if err != nil {
		return err
	}
	return fs.SaveCodes(context.Background(), splitList(list))
}

func (testCtx *TestContext) theSavedSettingsAre(format, lengthSpec string) error {
	fs, err := testCtx.fileStore()
	if err != nil {
		return err
	}
	return fs.SaveSettings(context.Background(), store.Settings{Format: format, LengthSpec: lengthSpec})
}

func (testCtx *TestContext) savedCodes() ([]string, error) {
	fs, err := testCtx.fileStore()
	if err != nil {
		return nil, err
	}
	return fs.LoadCodes(context.Background())
}

func (testCtx *TestContext) theSavedCodesShouldBe(list string) error {
	got, err := testCtx.savedCodes()
	if err != nil {
		return err
	}
	want := splitList(list)
	if !slices.Equal(got, want) {
		return fmt.Errorf("saved codes are %v, want %v", got, want)
	}
	return nil
}

func (testCtx *TestContext) noCodesShouldBeSaved() error {
	got, err := testCtx.savedCodes()
	if err != nil {
		return err
	}
	if len(got) != 0 {
		return fmt.Errorf("expected no saved codes, got %v", got)
	}
	return nil
}

func (testCtx *TestContext) theSavedSettingsShouldBe(format, lengthSpec string) error {
	fs, err := testCtx.fileStore()
	if err != nil {
		return err
	}
	got, ok, err := fs.LoadSettings(context.Background())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no settings saved in %s", testCtx.StorePath)
	}
	if got.Format != format || got.LengthSpec != lengthSpec {
		return fmt.Errorf("saved settings are %+v, want format %q length %q", got, format, lengthSpec)
	}
	return nil
}

func splitList(list string) []string {
	codes := []string{}
	for _, c := range strings.Split(list, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

// RegisterScannerSteps registers frame, recognizer and store steps.
func (testCtx *TestContext) RegisterScannerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a camera frame "([^"]*)" of (\d+)x(\d+)$`, testCtx.aCameraFrame)
	sc.Step(`^a file "([^"]*)" that is not an image$`, testCtx.aFileThatIsNotAnImage)
	sc.Step(`^the recognizer reads "([^"]*)"$`, testCtx.theRecognizerReads)
	sc.Step(`^the store holds the codes "([^"]*)"$`, testCtx.theStoreHoldsCodes)
	sc.Step(`^the saved settings are format "([^"]*)" and length "([^"]*)"$`, testCtx.theSavedSettingsAre)
	sc.Step(`^the saved codes should be "([^"]*)"$`, testCtx.theSavedCodesShouldBe)
	sc.Step(`^no codes should be saved$`, testCtx.noCodesShouldBeSaved)
	sc.Step(`^the saved settings should be format "([^"]*)" and length "([^"]*)"$`, testCtx.theSavedSettingsShouldBe)
}
