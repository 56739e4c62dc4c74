package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/export"
	"github.com/docveil/docveil/internal/logger"
	"github.com/docveil/docveil/internal/pipeline"
	"github.com/docveil/docveil/internal/recognizer"
	"github.com/docveil/docveil/internal/rules"
	"github.com/docveil/docveil/internal/websocket"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server exposes the detection pipeline over HTTP.
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	pipeline   *pipeline.Pipeline
	rulesStore rules.Store
	recognizer *recognizer.Adapter
	exporter   *export.Writer
	router     *mux.Router
	server     *http.Server
	wsHub      *websocket.Hub

	startTime time.Time

	mu       sync.Mutex
	sessions map[string]*pipeline.Session
}

// Options carries the wired dependencies for the server. RulesStore is
// required; the rest may be nil to disable the matching endpoints.
type Options struct {
	Pipeline   *pipeline.Pipeline
	RulesStore rules.Store
	Recognizer *recognizer.Adapter
	Hub        *websocket.Hub
	Exporter   *export.Writer
}

// New creates the HTTP server around an assembled pipeline.
func New(cfg *config.Config, log *logger.Logger, opts Options) (*Server, error) {
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("server requires a pipeline")
	}

	s := &Server{
		config:     cfg,
		logger:     log.WithComponent("server"),
		pipeline:   opts.Pipeline,
		rulesStore: opts.RulesStore,
		recognizer: opts.Recognizer,
		exporter:   opts.Exporter,
		router:     mux.NewRouter(),
		wsHub:      opts.Hub,
		startTime:  time.Now(),
		sessions:   make(map[string]*pipeline.Session),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health and info endpoints stay outside the rate limit.
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	if s.wsHub != nil && s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods("GET")
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/detect", s.handleDetect).Methods("POST")
	api.HandleFunc("/redact", s.handleRedact).Methods("POST")
	api.HandleFunc("/model/status", s.handleModelStatus).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	if s.rulesStore != nil {
		api.HandleFunc("/rules", s.handleListRules).Methods("GET")
		api.HandleFunc("/rules", s.handleCreateRule).Methods("POST")
		api.HandleFunc("/rules/{id:[0-9]+}", s.handleGetRule).Methods("GET")
		api.HandleFunc("/rules/{id:[0-9]+}", s.handleUpdateRule).Methods("PUT")
		api.HandleFunc("/rules/{id:[0-9]+}", s.handleDeleteRule).Methods("DELETE")
	}

	if s.exporter != nil && s.config.Export.Enabled {
		api.HandleFunc("/export", s.handleExport).Methods("POST")
	}
}

// session returns the detection session for one document stream, creating it
// on first use. Requests without a document id share the default session.
func (s *Server) session(documentID string) *pipeline.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[documentID]
	if !ok {
		sess = pipeline.NewSession(s.pipeline)
		s.sessions[documentID] = sess
	}
	return sess
}

// Start starts the HTTP server and, when present, the WebSocket hub.
func (s *Server) Start() error {
	s.logger.Info("Starting docveil server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("websocket", s.wsHub != nil && s.config.WebSocket.Enabled),
	)

	if s.wsHub != nil {
		go s.wsHub.Run()
	}

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping docveil server")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
