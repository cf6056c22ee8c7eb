package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/scanner"
	"github.com/MeKo-Tech/codescan/internal/utils"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsPingInterval = 30 * time.Second
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocket message types.
const (
	wsCapture   = "capture"
	wsConfirm   = "confirm"
	wsDiscard   = "discard"
	wsDelete    = "delete"
	wsDeleteAll = "delete_all"
	wsList      = "list"
	wsSettings  = "settings"
	wsStatus    = "status"
)

// WebSocket response statuses.
const (
	wsProcessing = "processing"
	wsCompleted  = "completed"
	wsError      = "error"
)

// The bridge listens on loopback for a local camera client, so any origin
// that can reach it is accepted.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketRequest is a command sent by the client. Frame is base64 in JSON.
// Settings with a nil payload reads the current settings.
type WebSocketRequest struct {
	Type      string           `json:"type"`
	RequestID string           `json:"request_id,omitempty"`
	Frame     []byte           `json:"frame,omitempty"`
	Layout    *geometry.Layout `json:"layout,omitempty"`
	Code      string           `json:"code,omitempty"`
	Settings  *SettingsPayload `json:"settings,omitempty"`
}

// WebSocketResponse answers one request.
type WebSocketResponse struct {
	Type      string      `json:"type"`
	Status    string      `json:"status"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorType string      `json:"error_type,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// scanWebSocketHandler upgrades the connection and serves commands until
// the client goes away.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleWebSocketConnection(r.Context(), conn)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
		}
	}
}

// handleWebSocketMessage decodes and runs one command. Requests are served
// in order; a capture blocks this connection until it finishes.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "", errTypeBadRequest, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	var (
		result interface{}
		err    error
	)
	switch req.Type {
	case wsCapture:
		result, err = s.wsCapture(ctx, conn, req)
	case wsConfirm:
		var code string
		code, err = s.session.Confirm(ctx)
		result = ConfirmResponse{Success: err == nil, Code: code, Count: len(s.session.Codes())}
	case wsDiscard:
		s.session.Discard()
		result = s.session.Status()
	case wsDelete:
		err = s.session.DeleteCode(ctx, req.Code)
		result = s.codesResult()
	case wsDeleteAll:
		var n int
		n, err = s.session.DeleteAll(ctx)
		result = DeleteAllResponse{Success: err == nil, Deleted: n}
	case wsList:
		result = s.codesResult()
	case wsSettings:
		result, err = s.wsSettings(ctx, req)
	case wsStatus:
		result = s.session.Status()
	default:
		s.sendWebSocketError(conn, req.Type, req.RequestID, errTypeBadRequest, "Unsupported request type: "+req.Type)
		return
	}

	if err != nil {
		_, errType := classifyError(err)
		s.sendWebSocketError(conn, req.Type, req.RequestID, errType, err.Error())
		return
	}
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      req.Type,
		Status:    wsCompleted,
		Result:    result,
		RequestID: req.RequestID,
	})
}

func (s *Server) wsCapture(ctx context.Context, conn WebSocketConnWriter, req WebSocketRequest) (*scanner.CaptureResult, error) {
	if len(req.Frame) == 0 {
		return nil, scanner.ErrNoFrame
	}
	frame, _, err := utils.DecodeImage(bytes.NewReader(req.Frame))
	if err != nil {
		return nil, err
	}

	layout := s.Layout()
	if req.Layout != nil {
		layout = *req.Layout
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      req.Type,
		Status:    wsProcessing,
		RequestID: req.RequestID,
	})

	ctx, cancel := s.requestContext(ctx)
	defer cancel()
	return s.session.Capture(ctx, scanner.CaptureRequest{Frame: frame, Layout: layout})
}

func (s *Server) wsSettings(ctx context.Context, req WebSocketRequest) (SettingsPayload, error) {
	if req.Settings == nil {
		return toSettingsPayload(s.session.Settings()), nil
	}
	settings, err := fromSettingsPayload(*req.Settings, s.session.Settings())
	if err != nil {
		return SettingsPayload{}, err
	}
	if err := s.session.UpdateSettings(ctx, settings); err != nil {
		return SettingsPayload{}, err
	}
	return toSettingsPayload(s.session.Settings()), nil
}

func (s *Server) codesResult() CodesResponse {
	codes := s.session.Codes()
	return CodesResponse{Codes: codes, Count: len(codes)}
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, reqType, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      reqType,
		Status:    wsError,
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
