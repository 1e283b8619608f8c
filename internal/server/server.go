// Package server provides the operational HTTP server of the SMP.
//
// # Health & Metrics
//
//   - GET /health  - Liveness probe
//   - GET /ready   - Readiness probe (storage ping)
//   - GET /metrics - Prometheus metrics (if enabled)
//
// # Administration (requires X-Admin-Key)
//
//   - POST /admin/import - Bulk import of an <smp-data> document
//   - GET  /admin/export - Export of all service groups
//
// Import accepts the query parameters overwrite, businessCards and
// defaultOwner; export accepts owner and businessCards.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sirosfoundation/go-smp/internal/bulk"
	"github.com/sirosfoundation/go-smp/internal/config"
	"github.com/sirosfoundation/go-smp/internal/metrics"
	"github.com/sirosfoundation/go-smp/internal/registry"
	"github.com/sirosfoundation/go-smp/internal/storage"
)

// maxImportSize bounds the request body of /admin/import
const maxImportSize = 64 << 20

// Pinger reports storage readiness
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators served over HTTP
type Deps struct {
	Managers *registry.Managers
	Importer *bulk.Importer
	Exporter *bulk.Exporter

	// Metrics enables /metrics when set
	Metrics *metrics.Metrics

	// Storage is pinged by /ready; nil means always ready
	Storage Pinger
}

// Server is the SMP operational HTTP server
type Server struct {
	config  *config.Config
	deps    Deps
	logger  *slog.Logger
	httpSrv *http.Server
}

// New creates a new server
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger.With("component", "server"),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Start begins listening on the specified address
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting server", "addr", ln.Addr().String())
	if err := s.httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	if s.deps.Metrics != nil && s.config.Observability.Metrics.Enabled {
		mux.Handle("GET "+s.config.Observability.Metrics.Path, s.deps.Metrics.Handler())
	}

	if s.config.Server.AdminKey == "" {
		s.logger.Warn("admin key not set, administration endpoints are disabled")
		return
	}
	mux.HandleFunc("POST /admin/import", s.withAdmin(s.handleImport))
	mux.HandleFunc("GET /admin/export", s.withAdmin(s.handleExport))
}

// Middleware

func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-Admin-Key")
		if apiKey == "" || apiKey != s.config.Server.AdminKey {
			s.jsonError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Storage != nil {
		if err := s.deps.Storage.Ping(r.Context()); err != nil {
			s.logger.Warn("storage not ready", "error", err)
			s.jsonError(w, "storage not ready", http.StatusServiceUnavailable)
			return
		}
	}
	s.jsonResponse(w, map[string]string{"status": "ready"}, http.StatusOK)
}

// Administration handlers

type importEntry struct {
	Level       string `json:"level"`
	Participant string `json:"participant,omitempty"`
	Message     string `json:"message"`
	Error       string `json:"error,omitempty"`
}

type importResponse struct {
	ID      string                 `json:"id"`
	Status  bulk.Status            `json:"status"`
	Reason  string                 `json:"reason,omitempty"`
	Summary map[string]bulk.Counts `json:"summary"`
	Log     []importEntry          `json:"log"`
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	overwrite, err := boolParam(r, "overwrite", false)
	if err != nil {
		s.jsonError(w, "invalid overwrite parameter", http.StatusBadRequest)
		return
	}
	cards, err := boolParam(r, "businessCards", s.deps.Managers.BusinessCards.DirectoryEnabled())
	if err != nil {
		s.jsonError(w, "invalid businessCards parameter", http.StatusBadRequest)
		return
	}
	defaultOwner := r.URL.Query().Get("defaultOwner")
	if defaultOwner == "" {
		defaultOwner = s.config.Import.DefaultOwner
	}

	opts := bulk.Options{
		Overwrite:     overwrite,
		DefaultOwner:  defaultOwner,
		Workers:       s.config.Import.Workers,
		BusinessCards: cards,
	}
	res, err := s.deps.Importer.ImportReader(r.Context(), http.MaxBytesReader(w, r.Body, maxImportSize), opts)
	if err != nil {
		s.logger.Warn("rejected import document", "error", err)
		s.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveImport(res)
	}

	resp := importResponse{
		ID:      res.ID,
		Status:  res.Status,
		Reason:  res.Reason,
		Summary: res.Summary.Snapshot(),
		Log:     []importEntry{},
	}
	for _, e := range res.Log.Entries() {
		entry := importEntry{Level: string(e.Level), Participant: e.Participant, Message: e.Message}
		if e.Err != nil {
			entry.Error = e.Err.Error()
		}
		resp.Log = append(resp.Log, entry)
	}

	status := http.StatusOK
	if res.Status == bulk.StatusAborted {
		status = http.StatusUnprocessableEntity
	}
	s.jsonResponse(w, resp, status)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	cards, err := boolParam(r, "businessCards", s.deps.Managers.BusinessCards.DirectoryEnabled())
	if err != nil {
		s.jsonError(w, "invalid businessCards parameter", http.StatusBadRequest)
		return
	}

	var groups []*storage.ServiceGroup
	if owner := r.URL.Query().Get("owner"); owner != "" {
		groups = s.deps.Managers.ServiceGroups.GetAllOfOwner(owner)
	} else {
		groups = s.deps.Managers.ServiceGroups.GetAll()
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", `attachment; filename="smp-export.xml"`)
	if _, err := s.deps.Exporter.WriteTo(w, groups, cards); err != nil {
		s.logger.Error("export failed", "error", err)
	}
}

// Helper functions

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, message string, status int) {
	s.jsonResponse(w, map[string]string{"error": message}, status)
}
