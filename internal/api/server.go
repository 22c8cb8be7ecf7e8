// Package api exposes the assistant over a JSON HTTP API. The server
// fronts a single logical session: conversation selection, document
// selection, and uploads all act on the session state created at startup.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/docchat/internal/conversation"
	"github.com/koopa0/docchat/internal/document"
	"github.com/koopa0/docchat/internal/index"
	"github.com/koopa0/docchat/internal/session"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        *slog.Logger
	Coordinator   *session.Coordinator // Required
	Conversations *conversation.Store  // Required: transcript reads
	Documents     *document.Store      // Required: upload + summary path resolution
	Manager       *index.Manager       // Optional: nil disables document summaries
	Pool          *pgxpool.Pool        // Optional: nil disables pool stats in /ready
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured. The
// session is initialized here, so the server starts with an active
// conversation and the document directory already scanned.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Coordinator == nil {
		return nil, errors.New("session coordinator is required")
	}
	if cfg.Conversations == nil {
		return nil, errors.New("conversation store is required")
	}
	if cfg.Documents == nil {
		return nil, errors.New("document store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	state, err := cfg.Coordinator.Init()
	if err != nil {
		return nil, err
	}

	ch := &conversationHandler{
		coord:  cfg.Coordinator,
		convs:  cfg.Conversations,
		state:  state,
		logger: logger,
	}
	dh := &documentHandler{
		coord:   cfg.Coordinator,
		docs:    cfg.Documents,
		manager: cfg.Manager,
		state:   state,
		logger:  logger,
	}
	th := &chatHandler{
		coord:  cfg.Coordinator,
		state:  state,
		logger: logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/conversations", ch.list)
	mux.HandleFunc("POST /api/v1/conversations", ch.create)
	mux.HandleFunc("POST /api/v1/conversations/{id}/activate", ch.activate)
	mux.HandleFunc("GET /api/v1/conversations/{id}/messages", ch.messages)

	mux.HandleFunc("GET /api/v1/documents", dh.list)
	mux.HandleFunc("POST /api/v1/documents", dh.upload)
	mux.HandleFunc("POST /api/v1/documents/select", dh.selectDocument)
	mux.HandleFunc("GET /api/v1/documents/summary", dh.summary)

	mux.HandleFunc("POST /api/v1/chat", th.send)

	// Middleware stack (outermost first): Recovery → RequestID → Logging.
	// RequestID before Logging so request_id is available in log attributes.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Top-level mux keeps health probes out of the middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", healthHandler(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
