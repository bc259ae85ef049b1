package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avenlon/sitepulse/internal/version"
	"github.com/avenlon/sitepulse/scan"
)

// Server exposes the scan engine over HTTP: scan control, status polling,
// the history ledger, settings, and a websocket progress stream.
type Server struct {
	engine *scan.Engine
	logger *zap.SugaredLogger

	httpServer *http.Server

	clients map[*wsClient]bool
	mu      sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a server around the given engine.
func NewServer(engine *scan.Engine, logger *zap.SugaredLogger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		engine:  engine,
		logger:  logger.Named("server"),
		clients: map[*wsClient]bool{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// routes builds the request mux. Exposed separately so tests can drive
// handlers through httptest without binding a port.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scan", s.HandleScan)
	mux.HandleFunc("/api/scan/status", s.HandleScanStatus)
	mux.HandleFunc("/api/scan/dry-run", s.HandleScanDryRun)
	mux.HandleFunc("/api/scan/history", s.HandleScanHistory)
	mux.HandleFunc("/api/scan/history/", s.HandleScanHistoryRecord)
	mux.HandleFunc("/api/settings", s.HandleSettings)
	mux.HandleFunc("/api/healthz", s.HandleHealthz)
	mux.HandleFunc("/ws/scan", s.HandleWebSocket)
	return mux
}

// Start begins serving on the given port and blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start(port int) error {
	s.startProgressBroadcaster()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Infow("Server listening",
		"addr", s.httpServer.Addr,
		"version", version.Version)

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the listener, disconnects websocket clients, and waits for
// background goroutines to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	s.mu.Lock()
	for client := range s.clients {
		client.close()
	}
	s.clients = map[*wsClient]bool{}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// HandleHealthz reports process liveness.
func (s *Server) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}
