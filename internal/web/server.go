// Package web exposes a small HTTP control surface for the compression
// pipeline: start a job, poll its state, and stream progress events over a
// websocket. The graphical front end consuming it lives elsewhere.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"image-compressor-go/internal/archive"
	"image-compressor-go/internal/codec"
	"image-compressor-go/internal/config"
	"image-compressor-go/internal/discovery"
	"image-compressor-go/internal/job"
	"image-compressor-go/internal/metadata"
	"image-compressor-go/internal/progress"
	"image-compressor-go/internal/task"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Server drives compression jobs over HTTP.
type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.RWMutex

	// Current job state
	jobMutex   sync.RWMutex
	running    bool
	cancelJob  context.CancelFunc
	lastReport *job.Report
}

// APIResponse is the envelope for all JSON responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CompressRequest starts a compression job.
type CompressRequest struct {
	SourceDirectory string `json:"source_directory"`
	OutputDirectory string `json:"output_directory,omitempty"`
	Quality         int    `json:"quality,omitempty"`
	Concurrency     int    `json:"concurrency,omitempty"`
	Recursive       *bool  `json:"recursive,omitempty"`
	DeleteOriginals bool   `json:"delete_originals"`
	ArchiveFormat   string `json:"archive_format,omitempty"`
}

// WSMessage is the envelope for websocket pushes.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewServer returns a new Server.
func NewServer(cfg *config.Config, log *logrus.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")
	api.HandleFunc("/cancel", s.handleCancel).Methods("POST")
	api.HandleFunc("/report", s.handleReport).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Start runs the HTTP server on the given port, blocking until shutdown.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jobMutex.RLock()
	running := s.running
	report := s.lastReport
	s.jobMutex.RUnlock()

	var reportData interface{}
	if report != nil {
		reportData = report
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running":     running,
			"last_report": reportData,
		},
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req CompressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.SourceDirectory == "" {
		s.writeError(w, "Source directory is required", http.StatusBadRequest)
		return
	}

	s.jobMutex.Lock()
	if s.running {
		s.jobMutex.Unlock()
		s.writeError(w, "A job is already in progress", http.StatusConflict)
		return
	}

	cfg, err := s.jobConfig(req)
	if err != nil {
		s.jobMutex.Unlock()
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancelJob = cancel
	s.jobMutex.Unlock()

	go s.runJobAsync(ctx, cfg)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Compression started",
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.jobMutex.Lock()
	cancel := s.cancelJob
	running := s.running
	s.jobMutex.Unlock()

	if !running || cancel == nil {
		s.writeError(w, "No job in progress", http.StatusConflict)
		return
	}

	cancel()
	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Cancellation requested",
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.jobMutex.RLock()
	report := s.lastReport
	s.jobMutex.RUnlock()

	if report == nil {
		s.writeError(w, "No finished job yet", http.StatusNotFound)
		return
	}

	s.writeJSON(w, APIResponse{Success: true, Data: report})
}

// jobConfig builds a per-job config from the server defaults and request
// overrides. Caller holds jobMutex.
func (s *Server) jobConfig(req CompressRequest) (*config.Config, error) {
	cfg := *s.cfg
	cfg.SourceDirectory = req.SourceDirectory
	if req.OutputDirectory != "" {
		cfg.OutputDirectory = req.OutputDirectory
	}
	if req.Quality > 0 {
		cfg.Compression.Quality = req.Quality
	}
	if req.Concurrency > 0 {
		cfg.Compression.Concurrency = req.Concurrency
	}
	if req.Recursive != nil {
		cfg.Recursive = *req.Recursive
	}
	cfg.Compression.DeleteOriginals = req.DeleteOriginals
	if req.ArchiveFormat != "" {
		cfg.Archive.Format = req.ArchiveFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// runJobAsync executes a job, streaming progress to websocket clients.
func (s *Server) runJobAsync(ctx context.Context, cfg *config.Config) {
	defer func() {
		s.jobMutex.Lock()
		s.running = false
		s.cancelJob = nil
		s.jobMutex.Unlock()
	}()

	executor := task.NewCompressExecutor(
		codec.NewJPEGCodec(),
		s.log,
		task.WithCaptureTimer(metadata.NewCaptureTimer(s.log)),
		task.WithKeepLarger(cfg.Compression.KeepLarger),
	)
	coordinator := job.NewCoordinator(
		cfg,
		s.log,
		discovery.NewDiscoverer(s.log),
		executor,
		archive.NewInvoker(cfg.Archive.Format, cfg.Archive.Tool, s.log),
		progress.MultiReporter{
			&progress.LogReporter{Logger: s.log},
			s,
		},
	)

	report, err := coordinator.Run(ctx)
	if err != nil {
		s.log.Errorf("Job failed: %v", err)
		s.broadcast(WSMessage{Type: "job_error", Data: err.Error()})
		return
	}

	s.jobMutex.Lock()
	s.lastReport = report
	s.jobMutex.Unlock()

	s.broadcast(WSMessage{Type: "job_report", Data: report})
}

// Report implements progress.Reporter by pushing each event to every
// connected websocket client.
func (s *Server) Report(e progress.Event) {
	s.broadcast(WSMessage{Type: "progress", Data: e})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debugf("WebSocket client connected: %s", conn.RemoteAddr())

	// Reader loop only detects disconnects; clients never send data.
	go func() {
		defer func() {
			s.wsMutex.Lock()
			delete(s.wsClients, conn)
			s.wsMutex.Unlock()
			conn.Close()
			s.log.Debugf("WebSocket client disconnected: %s", conn.RemoteAddr())
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// broadcast serializes websocket writes; events may arrive from several
// goroutines at once and gorilla connections allow one writer at a time.
func (s *Server) broadcast(msg WSMessage) {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		if err := conn.WriteJSON(msg); err != nil {
			s.log.Debugf("WebSocket write failed: %v", err)
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Errorf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: false, Error: message})
}
