package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/ledger"
	"github.com/MeKo-Tech/codescan/internal/normalize"
	"github.com/MeKo-Tech/codescan/internal/scanner"
	"github.com/MeKo-Tech/codescan/internal/utils"
	"github.com/MeKo-Tech/codescan/internal/version"
	"github.com/gorilla/mux"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Status())
}

// captureHandler runs one capture on an uploaded frame. The multipart form
// carries the frame under "frame" and optional "fit", "box" and "overlay"
// fields; missing geometry falls back to the configured layout.
func (s *Server) captureHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
			s.writeErrorResponse(w, "Frame too large", errTypeTooLarge, http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", errTypeBadRequest, http.StatusBadRequest)
		}
		return
	}

	file, header, err := r.FormFile("frame")
	if err != nil {
		s.writeErrorResponse(w, "No frame provided", errTypeBadRequest, http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	frame, _, err := utils.DecodeImage(file)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Invalid frame: %v", err), errTypeInvalidImage, http.StatusBadRequest)
		return
	}

	layout, err := s.layoutFromForm(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), errTypeBadRequest, http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r.Context())
	defer cancel()

	res, err := s.session.Capture(ctx, scanner.CaptureRequest{Frame: frame, Layout: layout})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CaptureResponse{Success: true, Result: res})
}

// layoutFromForm overrides the default layout with any geometry in the form.
func (s *Server) layoutFromForm(r *http.Request) (geometry.Layout, error) {
	layout := s.Layout()

	if v := r.FormValue("fit"); v != "" {
		fit, err := geometry.ParseFitPolicy(v)
		if err != nil {
			return layout, err
		}
		layout.Fit = fit
	}
	if v := r.FormValue("box"); v != "" {
		box, err := geometry.ParseDisplayRect(v)
		if err != nil {
			return layout, err
		}
		layout.Box = box
	}
	if v := r.FormValue("overlay"); v != "" {
		overlay, err := geometry.ParseDisplayRect(v)
		if err != nil {
			return layout, err
		}
		layout.Overlay = overlay
	}
	return layout, nil
}

func (s *Server) confirmHandler(w http.ResponseWriter, r *http.Request) {
	code, err := s.session.Confirm(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConfirmResponse{Success: true, Code: code, Count: len(s.session.Codes())})
}

func (s *Server) discardHandler(w http.ResponseWriter, r *http.Request) {
	s.session.Discard()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCodesHandler(w http.ResponseWriter, r *http.Request) {
	codes := s.session.Codes()
	writeJSON(w, http.StatusOK, CodesResponse{Codes: codes, Count: len(codes)})
}

func (s *Server) deleteCodeHandler(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if err := s.session.DeleteCode(r.Context(), code); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteAllHandler(w http.ResponseWriter, r *http.Request) {
	n, err := s.session.DeleteAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteAllResponse{Success: true, Deleted: n})
}

// exportHandler serves the shareable code list as a text download.
func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", ledger.ExportFilename(time.Now())))
	if _, err := w.Write([]byte(s.session.Export())); err != nil {
		s.logger.Error("Failed to write export", "error", err)
	}
}

func (s *Server) getSettingsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSettingsPayload(s.session.Settings()))
}

func (s *Server) putSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var payload SettingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeErrorResponse(w, "Invalid settings payload", errTypeBadRequest, http.StatusBadRequest)
		return
	}

	settings, err := fromSettingsPayload(payload, s.session.Settings())
	if err != nil {
		s.writeErrorResponse(w, err.Error(), errTypeBadRequest, http.StatusBadRequest)
		return
	}
	if err := s.session.UpdateSettings(r.Context(), settings); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsPayload(s.session.Settings()))
}

func toSettingsPayload(st scanner.Settings) SettingsPayload {
	return SettingsPayload{Format: st.Format.String(), LengthSpec: st.LengthSpec}
}

// fromSettingsPayload applies p on top of current. An empty format keeps the
// current one; the length spec is always taken as sent.
func fromSettingsPayload(p SettingsPayload, current scanner.Settings) (scanner.Settings, error) {
	out := current
	if p.Format != "" {
		format, err := normalize.ParseFormatPolicy(p.Format)
		if err != nil {
			return current, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		out.Format = format
	}
	out.LengthSpec = p.LengthSpec
	return out, nil
}

// requestContext bounds recognition by the configured timeout.
func (s *Server) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeoutSec <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, time.Duration(s.timeoutSec)*time.Second)
}
