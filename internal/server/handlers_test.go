package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/ledger"
	"github.com/MeKo-Tech/codescan/internal/scanner"
	"github.com/MeKo-Tech/codescan/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, body []byte) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
	return resp
}

func captureOK(t *testing.T, h http.Handler) *scanner.CaptureResult {
	t.Helper()
	w := serve(h, captureRequest(t, framePNG(t), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp CaptureResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotNil(t, resp.Result)
	return resp.Result
}

func TestServer_HealthHandler(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{})
	h := srv.Handler()

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET request success", http.MethodGet, http.StatusOK},
		{"POST request not allowed", http.MethodPost, http.StatusMethodNotAllowed},
		{"PUT request not allowed", http.MethodPut, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(h, tt.method, "/health", nil)
			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK {
				var response HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, "healthy", response.Status)
				assert.NotEmpty(t, response.Time)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestServer_CaptureConfirmFlow(t *testing.T) {
	srv, session := newTestServer(t, &stubRecognizer{text: "AB12 CD34"})
	h := srv.Handler()

	res := captureOK(t, h)
	assert.True(t, res.Accepted)
	assert.Equal(t, "AB12CD34", res.Candidate)
	assert.Equal(t, "AB12 CD34", res.Raw)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, scanner.PixelRect{X: 256, Y: 270, Width: 768, Height: 180}, res.Pixels)

	w := doRequest(h, http.MethodPost, "/api/v1/candidate/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var confirm ConfirmResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &confirm))
	assert.Equal(t, "AB12CD34", confirm.Code)
	assert.Equal(t, 1, confirm.Count)
	assert.Equal(t, []string{"AB12CD34"}, session.Codes())

	w = doRequest(h, http.MethodPost, "/api/v1/candidate/confirm", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, errTypeNoCandidate, decodeError(t, w.Body.Bytes()).ErrorType)

	w = doRequest(h, http.MethodGet, "/api/v1/codes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var codes CodesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &codes))
	assert.Equal(t, CodesResponse{Codes: []string{"AB12CD34"}, Count: 1}, codes)
}

func TestServer_ConfirmDuplicate(t *testing.T) {
	srv, session := newTestServer(t, &stubRecognizer{text: "ZZ99"})
	h := srv.Handler()

	captureOK(t, h)
	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPost, "/api/v1/candidate/confirm", nil).Code)

	captureOK(t, h)
	w := doRequest(h, http.MethodPost, "/api/v1/candidate/confirm", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, errTypeDuplicate, decodeError(t, w.Body.Bytes()).ErrorType)
	assert.Equal(t, []string{"ZZ99"}, session.Codes())
}

func TestServer_CaptureRejected(t *testing.T) {
	srv, session := newTestServer(t, &stubRecognizer{text: "~~ ##"})
	h := srv.Handler()

	res := captureOK(t, h)
	assert.False(t, res.Accepted)
	assert.Empty(t, res.Candidate)
	assert.Equal(t, "no_valid_characters", res.Reason)

	_, pending := session.Pending()
	assert.False(t, pending)
}

func TestServer_CaptureDiscard(t *testing.T) {
	srv, session := newTestServer(t, &stubRecognizer{text: "AB12"})
	h := srv.Handler()

	captureOK(t, h)
	w := doRequest(h, http.MethodDelete, "/api/v1/candidate", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, pending := session.Pending()
	assert.False(t, pending)
}

func TestServer_CaptureBadInput(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{text: "AB12"})
	h := srv.Handler()

	tests := []struct {
		name     string
		frame    []byte
		fields   map[string]string
		wantType string
	}{
		{"missing frame", nil, nil, errTypeBadRequest},
		{"not an image", []byte("definitely not a png"), nil, errTypeInvalidImage},
		{"bad fit", framePNG(t), map[string]string{"fit": "stretch"}, errTypeBadRequest},
		{"bad overlay", framePNG(t), map[string]string{"overlay": "1,2,3"}, errTypeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, captureRequest(t, tt.frame, tt.fields))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantType, decodeError(t, w.Body.Bytes()).ErrorType)
		})
	}
}

func TestServer_CaptureNotMultipart(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{})
	w := doRequest(srv.Handler(), http.MethodPost, "/api/v1/capture", strings.NewReader("{}"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_CaptureGeometryError(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{text: "AB12"})
	h := srv.Handler()

	// Overlay runs past the right edge of the box.
	w := serve(h, captureRequest(t, framePNG(t), map[string]string{"overlay": "350,0,200,50"}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeError(t, w.Body.Bytes())
	assert.Equal(t, errTypeGeometry, resp.ErrorType)
	assert.Contains(t, resp.Error, "region out of bounds")
}

func TestServer_CaptureFormOverridesLayout(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{text: "AB12"})
	h := srv.Handler()

	w := serve(h, captureRequest(t, framePNG(t), map[string]string{
		"box":     "0,0,1280,720",
		"overlay": "0,0,640,360",
		"fit":     "contain",
	}))
	require.Equal(t, http.StatusOK, w.Code)
	var resp CaptureResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, scanner.PixelRect{X: 0, Y: 0, Width: 640, Height: 360}, resp.Result.Pixels)
}

func TestServer_CaptureRecognitionError(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{err: errors.New("engine crashed")})

	w := serve(srv.Handler(), captureRequest(t, framePNG(t), nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decodeError(t, w.Body.Bytes())
	assert.Equal(t, errTypeRecognition, resp.ErrorType)
	assert.Contains(t, resp.Error, "engine crashed")
}

func TestServer_CaptureBusy(t *testing.T) {
	rec := &stubRecognizer{
		text:    "AB12",
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	srv, _ := newTestServer(t, rec)
	h := srv.Handler()

	done := make(chan int)
	first := captureRequest(t, framePNG(t), nil)
	go func() {
		done <- serve(h, first).Code
	}()
	<-rec.started

	w := serve(h, captureRequest(t, framePNG(t), nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, errTypeBusy, decodeError(t, w.Body.Bytes()).ErrorType)

	close(rec.block)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestServer_DeleteCodes(t *testing.T) {
	rec := &stubRecognizer{}
	srv, session := newTestServer(t, rec)
	h := srv.Handler()

	for _, code := range []string{"AAA1", "BBB2", "CCC3"} {
		rec.mu.Lock()
		rec.text = code
		rec.mu.Unlock()
		captureOK(t, h)
		require.Equal(t, http.StatusOK, doRequest(h, http.MethodPost, "/api/v1/candidate/confirm", nil).Code)
	}

	w := doRequest(h, http.MethodDelete, "/api/v1/codes/BBB2", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"AAA1", "CCC3"}, session.Codes())

	w = doRequest(h, http.MethodDelete, "/api/v1/codes/BBB2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errTypeNotFound, decodeError(t, w.Body.Bytes()).ErrorType)

	w = doRequest(h, http.MethodDelete, "/api/v1/codes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var del DeleteAllResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &del))
	assert.Equal(t, 2, del.Deleted)
	assert.Empty(t, session.Codes())

	w = doRequest(h, http.MethodDelete, "/api/v1/codes", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &del))
	assert.Equal(t, 0, del.Deleted)
}

func TestServer_Export(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{text: "AB12"})
	h := srv.Handler()

	w := doRequest(h, http.MethodGet, "/api/v1/codes/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ledger.DefaultExportEmptyText, w.Body.String())

	captureOK(t, h)
	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPost, "/api/v1/candidate/confirm", nil).Code)

	w = doRequest(h, http.MethodGet, "/api/v1/codes/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ledger.DefaultExportHeader+"\nAB12", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "coupons_")
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
}

func TestServer_Settings(t *testing.T) {
	srv, session := newTestServer(t, &stubRecognizer{text: "AB-12"})
	h := srv.Handler()

	w := doRequest(h, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got SettingsPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, SettingsPayload{Format: "alphanumeric", LengthSpec: ""}, got)

	w = doRequest(h, http.MethodPut, "/api/v1/settings",
		strings.NewReader(`{"format":"alphanumeric_hyphen","length_spec":" 5 "}`))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, SettingsPayload{Format: "alphanumeric_hyphen", LengthSpec: "5"}, got)
	assert.Equal(t, "5", session.Settings().LengthSpec)

	res := captureOK(t, h)
	assert.Equal(t, "AB-12", res.Candidate)

	w = doRequest(h, http.MethodPut, "/api/v1/settings", strings.NewReader(`{"format":"numeric"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(h, http.MethodPut, "/api/v1/settings", strings.NewReader(`{not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Status(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{text: "AB12"})
	h := srv.Handler()

	captureOK(t, h)
	w := doRequest(h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status scanner.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Busy)
	assert.Equal(t, "AB12", status.Pending)
	assert.Equal(t, 0, status.Count)
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{})
	h := srv.Handler()

	require.Equal(t, http.StatusOK, doRequest(h, http.MethodGet, "/health", nil).Code)
	w := doRequest(h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "codescan_http_requests_total")
}

func TestServer_SetLayout(t *testing.T) {
	srv, _ := newTestServer(t, &stubRecognizer{})
	l := testLayout()
	l.Fit = geometry.Contain
	srv.SetLayout(l)
	assert.Equal(t, geometry.Contain, srv.Layout().Fit)
}

func TestNewServer_RequiresSession(t *testing.T) {
	_, err := NewServer(Config{}, nil)
	assert.Error(t, err)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantType   string
	}{
		{scanner.ErrBusy, http.StatusConflict, errTypeBusy},
		{fmt.Errorf("%w: %q", ledger.ErrDuplicate, "X"), http.StatusConflict, errTypeDuplicate},
		{ledger.ErrNoCandidate, http.StatusConflict, errTypeNoCandidate},
		{fmt.Errorf("%w: %q", ledger.ErrCodeNotFound, "X"), http.StatusNotFound, errTypeNotFound},
		{geometry.ErrInvalidGeometry, http.StatusUnprocessableEntity, errTypeGeometry},
		{geometry.ErrEmptyRegion, http.StatusUnprocessableEntity, errTypeGeometry},
		{&geometry.RegionOutOfBoundsError{}, http.StatusUnprocessableEntity, errTypeGeometry},
		{&scanner.RecognitionError{Err: errors.New("x")}, http.StatusBadGateway, errTypeRecognition},
		{&scanner.PersistError{Op: "codes", Err: errors.New("x")}, http.StatusInternalServerError, errTypePersist},
		{scanner.ErrNoFrame, http.StatusBadRequest, errTypeInvalidImage},
		{&utils.ImageProcessingError{Operation: "decode", Err: errors.New("x")}, http.StatusBadRequest, errTypeInvalidImage},
		{errors.New("boom"), http.StatusInternalServerError, errTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.wantType, func(t *testing.T) {
			status, errType := classifyError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantType, errType)
		})
	}
}
