// Package api provides the HTTP API for controlling capture and fetching heatmaps.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"pointerheat/internal/config"
	"pointerheat/internal/render"
	"pointerheat/internal/service"
	"pointerheat/internal/session"
	"pointerheat/internal/store"
	"pointerheat/internal/topology"
)

// Server provides HTTP API for local control
type Server struct {
	configMgr *config.Manager
	svc       *service.Service
	token     string
	wsMgr     *WSManager

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a new API server and starts its WebSocket hub
func NewServer(configMgr *config.Manager, svc *service.Service) *Server {
	s := &Server{
		configMgr: configMgr,
		svc:       svc,
		token:     configMgr.Get().General.APIToken,
	}
	s.wsMgr = newWSManager(s)
	go s.wsMgr.start()

	svc.OnStateChange(func(info session.Info) {
		s.wsMgr.BroadcastState(info)
	})
	return s
}

// Routes returns the API routes without authentication
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/topology", s.handleTopology)
	mux.HandleFunc("/api/session/start", s.handleStart)
	mux.HandleFunc("/api/session/stop", s.handleStop)
	mux.HandleFunc("/api/heatmap", s.handleHeatmap)
	mux.HandleFunc("/api/heatmap.png", s.handleHeatmapPNG)
	mux.HandleFunc("/api/hotspots", s.handleHotspots)
	mux.HandleFunc("/api/timeline.png", s.handleTimelinePNG)
	mux.HandleFunc("/api/export.csv", s.handleExportCSV)
	mux.HandleFunc("/api/clear", s.handleClear)
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	return mux
}

// Handler returns the API routes wrapped with authentication and panic recovery
func (s *Server) Handler() http.Handler {
	return s.authMiddleware(s.recoverMiddleware(s.Routes()))
}

// Start serves the API on 127.0.0.1:port. It blocks until Shutdown.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		log.Printf("API: ERROR: failed to listen on %s: %v", addr, err)
		log.Printf("API: pointerheat will continue running without the HTTP API.")
		return err
	}
	log.Printf("API: Listening on %s", addr)

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.server = server
	s.mu.Unlock()

	// This is blocking
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Printf("API: ERROR: server stopped: %v", err)
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and the WebSocket hub
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsMgr.stop()

	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("API: PANIC RECOV: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		// Skip auth for health check
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if s.token != "" {
			authHeader := r.Header.Get("Authorization")
			expectedAuth := "Bearer " + s.token

			if authHeader != expectedAuth && r.URL.Query().Get("token") != s.token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: Failed to encode response: %v", err)
	}
}

// writeError maps service errors onto HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNoData):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, topology.ErrNoDisplays):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.svc.Status())
}

// handleTopology handles GET (current) and POST (re-enumerate) /api/topology
func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	var topo topology.Topology
	switch r.Method {
	case http.MethodGet:
		topo = s.svc.Topology()
	case http.MethodPost:
		log.Printf("API: Refreshing topology (request from %s)", r.RemoteAddr)
		topo = s.svc.RefreshTopology()
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := map[string]interface{}{
		"regions":  topo.Regions,
		"bounds":   topo.Bounds,
		"fallback": topo.Fallback,
	}
	if topo.Err != nil {
		resp["error"] = topo.Err.Error()
	}
	writeJSON(w, resp)
}

// handleStart handles POST /api/session/start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	started, err := s.svc.StartCapture()
	if err != nil {
		log.Printf("API: Start capture error: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"status":  "ok",
		"changed": started,
		"session": s.svc.Status().Session,
	})
}

// handleStop handles POST /api/session/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stopped := s.svc.StopCapture()
	writeJSON(w, map[string]interface{}{
		"status":  "ok",
		"changed": stopped,
		"samples": s.svc.Store().Len(),
	})
}

// handleHeatmap handles GET /api/heatmap. Visualizing ends an active session.
func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, err := s.svc.Visualize()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, v)
}

// handleHeatmapPNG handles GET /api/heatmap.png?width=<px>
func (s *Server) handleHeatmapPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := s.configMgr.Get()
	opts := render.Options{Width: cfg.Heatmap.ImageWidth, Smoothing: cfg.Heatmap.Smoothing}
	if v := r.URL.Query().Get("width"); v != "" {
		width, err := strconv.Atoi(v)
		if err != nil || width < 64 || width > 8192 {
			http.Error(w, "Invalid width parameter", http.StatusBadRequest)
			return
		}
		opts.Width = width
	}

	v, err := s.svc.Visualize()
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.WritePNG(w, v, opts); err != nil {
		log.Printf("API: Failed to encode heatmap: %v", err)
	}
}

// handleHotspots handles GET /api/hotspots?n=<count>
func (s *Server) handleHotspots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	n := 10
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			http.Error(w, "Invalid n parameter", http.StatusBadRequest)
			return
		}
		n = parsed
	}

	spots, err := s.svc.Hotspots(n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, spots)
}

// handleTimelinePNG handles GET /api/timeline.png?buckets=<n>
func (s *Server) handleTimelinePNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	buckets := 60
	if v := r.URL.Query().Get("buckets"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 2 || parsed > 10000 {
			http.Error(w, "Invalid buckets parameter", http.StatusBadRequest)
			return
		}
		buckets = parsed
	}

	samples := s.svc.Store().All()
	if len(samples) == 0 {
		writeError(w, service.ErrNoData)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.Timeline(w, samples, buckets, 1024, 360); err != nil {
		log.Printf("API: Failed to render timeline: %v", err)
	}
}

// handleExportCSV handles GET /api/export.csv
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="pointer_data.csv"`)
	if err := store.ExportCSV(w, s.svc.Store().All()); err != nil {
		log.Printf("API: CSV export failed: %v", err)
	}
}

// handleClear handles POST /api/clear?confirm=true
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Query().Get("confirm") != "true" {
		http.Error(w, "Clearing all data requires confirm=true", http.StatusBadRequest)
		return
	}

	log.Printf("API: Clearing all data (request from %s)", r.RemoteAddr)
	if err := s.svc.Clear(); err != nil {
		log.Printf("API: Clear error: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
