// Package apisrv exposes the driver as a single stateless HTTP
// endpoint. The batch toolchain has no stepping state to hold open
// across requests, so this is one route rather than the teacher's
// session/breakpoint/websocket protocol.
package apisrv

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/lookbusy1344/rv32im-sim/driver"
	"github.com/lookbusy1344/rv32im-sim/interp"
)

// Server is the HTTP front end over driver.Simulate.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
	port   int
}

// NewServer builds a Server listening on 127.0.0.1:port.
func NewServer(port int) *Server {
	s := &Server{
		mux:  http.NewServeMux(),
		port: port,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/v1/run", s.handleRun)
}

// Handler returns the HTTP handler with CORS middleware applied.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

// Start starts the HTTP server; it blocks until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Printf("apisrv: listening on http://127.0.0.1:%d", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAllowedOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	return strings.HasPrefix(origin, "http://localhost") ||
		strings.HasPrefix(origin, "https://localhost") ||
		strings.HasPrefix(origin, "http://127.0.0.1") ||
		strings.HasPrefix(origin, "https://127.0.0.1")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RunRequest is the body of POST /v1/run.
type RunRequest struct {
	Sources []string   `json:"sources"`
	Stdin   string     `json:"stdin,omitempty"`
	Config  *RunConfig `json:"config,omitempty"`
}

// RunConfig mirrors the execution-limit fields of driver.Config that
// are meaningful to expose over the wire.
type RunConfig struct {
	MaxCycles     uint64 `json:"max_cycles,omitempty"`
	MaxStorage    int    `json:"max_storage,omitempty"`
	CacheEnabled  *bool  `json:"cache_enabled,omitempty"`
	KeepDebugInfo bool   `json:"keep_debug_info,omitempty"`
}

// RunResponse is the body of a successful POST /v1/run.
type RunResponse struct {
	Stdout   string `json:"stdout"`
	Cycles   uint64 `json:"cycles"`
	ExitCode int32  `json:"exit_code"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Sources) == 0 {
		writeError(w, http.StatusBadRequest, "sources must not be empty")
		return
	}

	cfg := driver.Config{
		Sources:      req.Sources,
		InputStream:  strings.NewReader(req.Stdin),
		CacheEnabled: true,
		MaxCycles:    1_000_000,
		MaxStorage:   64 * 1024 * 1024,
	}
	if req.Config != nil {
		if req.Config.MaxCycles > 0 {
			cfg.MaxCycles = req.Config.MaxCycles
		}
		if req.Config.MaxStorage > 0 {
			cfg.MaxStorage = req.Config.MaxStorage
		}
		if req.Config.CacheEnabled != nil {
			cfg.CacheEnabled = *req.Config.CacheEnabled
		}
		cfg.KeepDebugInfo = req.Config.KeepDebugInfo
	}
	cfg.InstructionWeights = interp.DefaultWeights()

	out := &strings.Builder{}
	cfg.OutputStream = out

	res, err := driver.Simulate(cfg)
	resp := RunResponse{
		Stdout:   out.String(),
		Cycles:   res.Cycles,
		ExitCode: res.ExitCode,
	}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("apisrv: error encoding JSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
		"code":    status,
	})
}

func readJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1024*1024))
	return decoder.Decode(v)
}
