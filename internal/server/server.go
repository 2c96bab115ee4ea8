// Package server exposes the read-only admin API and prometheus metrics.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dnssentinel/internal/blocklist"
	"dnssentinel/internal/sentinel"
)

// Server wraps the admin HTTP surface.
type Server struct {
	engine    *sentinel.Engine
	blocklist *blocklist.Store
	log       *zap.SugaredLogger
	router    *mux.Router
}

func New(engine *sentinel.Engine, bl *blocklist.Store, log *zap.SugaredLogger) *Server {
	s := &Server{engine: engine, blocklist: bl, log: log, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/v1/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/blocklist", s.handleBlocklist).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) Router() http.Handler { return s.router }

// Start serves the admin API until the listener fails or is closed.
func (s *Server) Start(addr string) error {
	s.log.Infow("admin server listening", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.Status())
}

func (s *Server) handleBlocklist(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, struct {
		Version uint64   `json:"version"`
		Domains []string `json:"domains"`
		Addrs   []string `json:"addrs"`
	}{
		Version: s.blocklist.Current().Version(),
		Domains: s.blocklist.Domains(),
		Addrs:   s.blocklist.Addrs(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorw("admin response encoding failed", "err", err)
	}
}
