package a2a

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server exposes the two inbound A2A endpoints (POST /messages, POST
// /requests) an external agent calls into. Each decoded Message is handed
// to Inbound, which synthesizes and publishes the corresponding internal
// event; for /requests the handler additionally waits for a matching
// response before writing back, via waitForResponse.
type Server struct {
	inbound         func(msg *Message) error
	waitForResponse func(correlationID string) (*Message, error)
	logger          *slog.Logger
}

// NewServer wires inbound to every POST, and waitForResponse to the
// synchronous /requests path (typically backed by a correlation tracker).
func NewServer(inbound func(msg *Message) error, waitForResponse func(correlationID string) (*Message, error), logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{inbound: inbound, waitForResponse: waitForResponse, logger: logger}
}

func (s *Server) Routes(mux *http.ServeMux) {
	mux.Handle("/messages", otelhttp.NewHandler(http.HandlerFunc(s.handleMessage), "a2a.messages"))
	mux.Handle("/requests", otelhttp.NewHandler(http.HandlerFunc(s.handleRequest), "a2a.requests"))
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := s.decode(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.inbound(msg); err != nil {
		s.logger.ErrorContext(r.Context(), "a2a inbound message rejected", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	msg, err := s.decode(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.inbound(msg); err != nil {
		s.logger.ErrorContext(r.Context(), "a2a inbound request rejected", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	correlationID := r.Header.Get(headerCorrelationID)
	if correlationID == "" {
		correlationID = msg.RequestID
	}

	resp, err := s.waitForResponse(correlationID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
		return
	}

	w.Header().Set(headerContentType, contentTypeJSON)
	w.Header().Set(headerA2AVersion, a2aVersion)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) decode(r *http.Request) (*Message, error) {
	defer r.Body.Close()
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
