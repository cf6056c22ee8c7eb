package server

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/scanner"
	"github.com/MeKo-Tech/codescan/internal/store"
	"github.com/MeKo-Tech/codescan/internal/testutil"
	"github.com/MeKo-Tech/codescan/internal/utils"
	"github.com/stretchr/testify/require"
)

// stubRecognizer returns canned text. With block set, Recognize waits for it
// to be closed after signalling started.
type stubRecognizer struct {
	mu      sync.Mutex
	text    string
	err     error
	block   chan struct{}
	started chan struct{}
}

func (r *stubRecognizer) Recognize(ctx context.Context, _ image.Image) (string, error) {
	r.mu.Lock()
	text, err, block, started := r.text, r.err, r.block, r.started
	r.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return text, err
}

// testLayout is a 400x300 preview over a 16:9 frame with a centered scan window.
func testLayout() geometry.Layout {
	return geometry.Layout{
		Box:     geometry.DisplayRect{Width: 400, Height: 300},
		Overlay: geometry.DisplayRect{X: 40, Y: 112.5, Width: 320, Height: 75},
		Fit:     geometry.Cover,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, rec *stubRecognizer) (*Server, *scanner.Session) {
	t.Helper()
	logger := discardLogger()
	session, err := scanner.NewSession(context.Background(), scanner.Options{
		Store:      store.NewMemoryStore(),
		Recognizer: rec,
		Settings:   scanner.DefaultSettings(),
		Logger:     logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	srv, err := NewServer(Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  5,
		Layout:      testLayout(),
		Logger:      logger,
	}, session)
	require.NoError(t, err)
	return srv, session
}

func framePNG(t *testing.T) []byte {
	t.Helper()
	data, err := utils.EncodePNG(testutil.CreateTestImage(1280, 720, color.White))
	require.NoError(t, err)
	return data
}

// captureRequest builds a multipart capture request. A nil frame omits the
// file part.
func captureRequest(t *testing.T, frame []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if frame != nil {
		part, err := mw.CreateFormFile("frame", "frame.png")
		require.NoError(t, err)
		_, err = part.Write(frame)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/capture", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func doRequest(h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return serve(h, req)
}
