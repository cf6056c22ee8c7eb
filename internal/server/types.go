// Package server exposes a scanner session to a local device over HTTP and
// WebSocket. It is meant to run on the loopback interface next to the camera
// client and carries no authentication.
package server

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/scanner"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	session     *scanner.Session
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	logger      *slog.Logger

	mu     sync.RWMutex
	layout geometry.Layout
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	// Layout applies to captures that do not send their own geometry.
	Layout geometry.Layout
	Logger *slog.Logger
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ErrorResponse is the envelope for every failed request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type,omitempty"`
}

type CaptureResponse struct {
	Success bool                   `json:"success"`
	Result  *scanner.CaptureResult `json:"result"`
}

type ConfirmResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Count   int    `json:"count"`
}

type CodesResponse struct {
	Codes []string `json:"codes"`
	Count int      `json:"count"`
}

type DeleteAllResponse struct {
	Success bool `json:"success"`
	Deleted int  `json:"deleted"`
}

// SettingsPayload is the wire form of scanner settings.
type SettingsPayload struct {
	Format     string `json:"format"`
	LengthSpec string `json:"length_spec"`
}

// NewServer creates a bridge for session. The caller keeps ownership of the
// session and closes it after the HTTP server has shut down.
func NewServer(config Config, session *scanner.Session) (*Server, error) {
	if session == nil {
		return nil, errors.New("server: session is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := config.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 20
	}
	return &Server{
		session:     session,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: maxUpload,
		timeoutSec:  config.TimeoutSec,
		logger:      logger,
		layout:      config.Layout,
	}, nil
}

// Layout returns the default capture layout.
func (s *Server) Layout() geometry.Layout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layout
}

// SetLayout replaces the default capture layout, e.g. after a config reload.
func (s *Server) SetLayout(l geometry.Layout) {
	s.mu.Lock()
	s.layout = l
	s.mu.Unlock()
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(r *mux.Router) {
	r.Use(s.corsMiddleware)

	r.HandleFunc("/health", s.healthHandler).Methods(allowed(readMethods...)...)
	r.Handle("/metrics", promhttp.Handler()).Methods(allowed(readMethods...)...)
	r.HandleFunc("/ws", s.scanWebSocketHandler).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", s.statusHandler).Methods(allowed("GET")...)
	api.HandleFunc("/capture", s.captureHandler).Methods(allowed("POST")...)
	api.HandleFunc("/candidate/confirm", s.confirmHandler).Methods(allowed("POST")...)
	api.HandleFunc("/candidate", s.discardHandler).Methods(allowed("DELETE")...)
	api.HandleFunc("/codes", s.listCodesHandler).Methods(allowed("GET")...)
	api.HandleFunc("/codes", s.deleteAllHandler).Methods(allowed("DELETE")...)
	api.HandleFunc("/codes/export", s.exportHandler).Methods(allowed("GET")...)
	api.HandleFunc("/codes/{code}", s.deleteCodeHandler).Methods(allowed("DELETE")...)
	api.HandleFunc("/settings", s.getSettingsHandler).Methods(allowed("GET")...)
	api.HandleFunc("/settings", s.putSettingsHandler).Methods(allowed("PUT")...)
}

// Handler returns a router with all routes installed.
func (s *Server) Handler() *mux.Router {
	r := mux.NewRouter()
	s.SetupRoutes(r)
	return r
}

var readMethods = []string{"GET", "HEAD"}

// allowed adds OPTIONS so preflight requests reach the CORS middleware.
func allowed(methods ...string) []string {
	return append(append([]string{}, methods...), "OPTIONS")
}
