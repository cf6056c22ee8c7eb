package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/codescan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBackend captures the image it was handed.
type recordingBackend struct {
	output string
	err    error
	got    image.Image
	closed bool
	ctxErr error
	delay  time.Duration
}

func (b *recordingBackend) Text(ctx context.Context, data []byte) (string, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	b.got = img
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			b.ctxErr = ctx.Err()
			return "", ctx.Err()
		}
	}
	return b.output, b.err
}

func (b *recordingBackend) Close() error {
	b.closed = true
	return nil
}

func TestRecognize_CleansOutput(t *testing.T) {
	backend := &recordingBackend{output: "  ＡＢ１２\u2013cd \n"}
	r := NewWithBackend(DefaultConfig(), backend)

	text, err := r.Recognize(context.Background(), testutil.CreateTestImage(120, 40, color.White))
	require.NoError(t, err)
	assert.Equal(t, "AB12-cd", text)
	require.NotNil(t, backend.got)
}

func TestRecognize_LogsBackendOutputBeforeCleaning(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	backend := &recordingBackend{output: " ＡＢ–１２\n"}
	r := NewWithBackend(DefaultConfig(), backend).WithLogger(logger)

	text, err := r.Recognize(context.Background(), testutil.CreateTestImage(120, 40, color.White))
	require.NoError(t, err)
	assert.Equal(t, "AB-12", text)

	var entry struct {
		Msg  string `json:"msg"`
		Raw  string `json:"raw"`
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "recognized region", entry.Msg)
	assert.Equal(t, backend.output, entry.Raw)
	assert.Equal(t, "AB-12", entry.Text)
}

func TestRecognize_PreprocessUpscalesSmallRegions(t *testing.T) {
	backend := &recordingBackend{output: "X"}
	cfg := DefaultConfig()
	cfg.Preprocess.MinHeight = 64
	r := NewWithBackend(cfg, backend)

	_, err := r.Recognize(context.Background(), testutil.CreateTestImage(100, 20, color.White))
	require.NoError(t, err)
	assert.Equal(t, 64, backend.got.Bounds().Dy())
	assert.Equal(t, 320, backend.got.Bounds().Dx())
}

func TestRecognize_PreprocessDisabledPassesThrough(t *testing.T) {
	backend := &recordingBackend{output: "X"}
	cfg := DefaultConfig()
	cfg.Preprocess.Enabled = false
	r := NewWithBackend(cfg, backend)

	_, err := r.Recognize(context.Background(), testutil.CreateTestImage(100, 20, color.White))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 20), backend.got.Bounds())
}

func TestRecognize_BackendErrorIsReturned(t *testing.T) {
	boom := errors.New("engine crashed")
	r := NewWithBackend(DefaultConfig(), &recordingBackend{err: boom})

	_, err := r.Recognize(context.Background(), testutil.CreateTestImage(10, 10, color.White))
	assert.ErrorIs(t, err, boom)
}

func TestRecognize_Timeout(t *testing.T) {
	backend := &recordingBackend{delay: time.Second}
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	r := NewWithBackend(cfg, backend)

	_, err := r.Recognize(context.Background(), testutil.CreateTestImage(10, 10, color.White))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, backend.ctxErr, context.DeadlineExceeded)
}

func TestRecognize_NilImage(t *testing.T) {
	r := NewWithBackend(DefaultConfig(), &recordingBackend{})
	_, err := r.Recognize(context.Background(), nil)
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	backend := &recordingBackend{}
	r := NewWithBackend(DefaultConfig(), backend)
	require.NoError(t, r.Close())
	assert.True(t, backend.closed)
}

func TestNew_StaticBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendStatic
	cfg.StaticText = "CODE-1234"
	r, err := New(cfg)
	require.NoError(t, err)

	text, err := r.Recognize(context.Background(), testutil.CreateTestImage(50, 50, color.White))
	require.NoError(t, err)
	assert.Equal(t, "CODE-1234", text)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "paddle"
	_, err := New(cfg)
	assert.ErrorContains(t, err, "unknown recognizer backend")

	cfg = DefaultConfig()
	cfg.PageSegMode = 14
	_, err = New(cfg)
	assert.ErrorContains(t, err, "page segmentation mode")

	cfg = DefaultConfig()
	cfg.Preprocess.Contrast = 150
	_, err = New(cfg)
	assert.ErrorContains(t, err, "contrast")
}

func TestNew_TesseractMissingBinary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BinaryPath = "definitely-not-a-tesseract-binary"
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestTesseractArgs(t *testing.T) {
	cfg := DefaultConfig()
	args := tesseractArgs(cfg)
	assert.Equal(t, []string{"stdin", "stdout", "-l", "kor+eng", "--psm", "6",
		"-c", "tessedit_char_whitelist=" + DefaultWhitelist}, args)

	cfg.Languages = " eng + "
	cfg.Whitelist = ""
	cfg.PageSegMode = 7
	assert.Equal(t, []string{"stdin", "stdout", "-l", "eng", "--psm", "7"}, tesseractArgs(cfg))
}

func TestTesseractCLI_RecognizesRenderedText(t *testing.T) {
	if _, err := exec.LookPath(DefaultBinaryPath); err != nil {
		t.Skip("tesseract binary not installed")
	}
	cfg := DefaultConfig()
	cfg.Languages = "eng"
	r, err := New(cfg)
	require.NoError(t, err)

	img, err := testutil.GenerateTextImage(testutil.TestImageConfig{
		Text: "AB12CD34", Size: testutil.ImageSize{Width: 400, Height: 80}, Scale: 3,
		Background: color.White, Foreground: color.Black,
	})
	require.NoError(t, err)

	text, err := r.Recognize(context.Background(), img)
	require.NoError(t, err)
	assert.True(t, strings.Contains(strings.ReplaceAll(text, " ", ""), "AB12"), "got %q", text)
}

func TestStaticBackend(t *testing.T) {
	b := &StaticBackend{Output: "x"}
	text, err := b.Text(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "x", text)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Text(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)

	b.Err = errors.New("fail")
	_, err = b.Text(context.Background(), nil)
	assert.EqualError(t, err, "fail")
}

func TestGosseractBackendSelection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendGosseract
	b, err := NewBackend(cfg)
	if err != nil {
		assert.ErrorIs(t, err, ErrBackendUnavailable)
		return
	}
	require.NoError(t, b.Close())
}
