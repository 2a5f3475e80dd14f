package server

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"netwatch/internal/cluster"
	"netwatch/internal/history"
	"netwatch/internal/locale"
	"netwatch/internal/metrics"
	"netwatch/internal/monitor"
	"netwatch/internal/storage"
)

//go:embed static/*
var embeddedStatic embed.FS

// Server wraps HTTP serving of the API, the websocket state stream and the
// embedded status page.
type Server struct {
	httpServer     *http.Server
	mon            *monitor.Monitor
	store          *storage.Store
	catalog        *locale.Catalog
	node           cluster.Node
	clusterService *cluster.Service
	staticFS       fs.FS
	historyLimit   int
}

// New creates a configured HTTP server for the monitor.
func New(addr string, node cluster.Node, mon *monitor.Monitor, store *storage.Store, catalog *locale.Catalog, clusterService *cluster.Service) *Server {
	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		panic("static assets missing: " + err.Error())
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer:     &http.Server{Addr: addr, Handler: mux},
		mon:            mon,
		store:          store,
		catalog:        catalog,
		node:           node,
		clusterService: clusterService,
		staticFS:       staticFS,
		historyLimit:   200,
	}
	s.registerRoutes(mux)
	return s
}

// Handler exposes the route mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	fileServer := http.FileServer(http.FS(s.staticFS))

	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		data, err := fs.ReadFile(s.staticFS, "index.html")
		if err != nil {
			http.Error(w, "index missing", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(data)
	}))
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.Handle("/favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/recheck", s.handleRecheck)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/transitions", s.handleTransitions)
	mux.HandleFunc("/api/uptime", s.handleUptime)
	mux.HandleFunc("/api/timeline", s.handleTimeline)
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/node/status", s.handleNodeStatus)
	mux.HandleFunc("/api/cluster", s.handleCluster)
	mux.HandleFunc("/ws/state", s.handleStateWS)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.statePayload(nil))
}

// handleRecheck is the manual retry entry point. The probe runs
// asynchronously; clients follow the result over /ws/state or by polling.
func (s *Server) handleRecheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mon.Recheck()
	writeJSON(w, http.StatusAccepted, s.statePayload(nil))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, s.historyLimit)
	writeJSON(w, http.StatusOK, s.store.SamplesN(limit))
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, s.historyLimit)
	writeJSON(w, http.StatusOK, s.store.TransitionsN(limit))
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, s.historyLimit)
	writeJSON(w, http.StatusOK, metrics.ComputeUptime(s.store.SamplesN(limit)))
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	hours := parsePositive(r, "hours", 24)
	points := parsePositive(r, "points", history.DefaultTimelinePoints)

	end := time.Now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)
	samples := s.store.SamplesSince(start.Add(-2 * time.Hour))
	writeJSON(w, http.StatusOK, map[string]any{
		"range_start": start,
		"range_end":   end,
		"timeline":    history.BuildTimeline(samples, start, end, points),
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("locale")
	if tag == "" {
		tag = locale.FallbackLocale
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"locale":   tag,
		"messages": s.catalog.Lookup(tag),
	})
}

func (s *Server) handleNodeStatus(w http.ResponseWriter, _ *http.Request) {
	if s.clusterService != nil {
		writeJSON(w, http.StatusOK, s.clusterService.LocalStatus())
		return
	}
	resp := cluster.NodeStatusResponse{
		Node:        s.node,
		State:       s.mon.State(),
		Uptime:      metrics.ComputeUptime(s.store.SamplesN(s.historyLimit)),
		GeneratedAt: time.Now().UTC(),
	}
	if sample, ok := s.mon.LatestSample(); ok {
		resp.Sample = &sample
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCluster(w http.ResponseWriter, _ *http.Request) {
	if s.clusterService == nil {
		status := cluster.NodeStatusResponse{
			Node:        s.node,
			State:       s.mon.State(),
			GeneratedAt: time.Now().UTC(),
		}
		writeJSON(w, http.StatusOK, cluster.ClusterSnapshot{
			GeneratedAt: time.Now().UTC(),
			Nodes: []cluster.PeerSnapshot{{
				Node:      status.Node,
				State:     status.State,
				UpdatedAt: status.GeneratedAt,
				Source:    "local",
			}},
		})
		return
	}
	writeJSON(w, http.StatusOK, s.clusterService.Snapshot())
}

func parseLimit(r *http.Request, fallback int) int {
	if fallback <= 0 {
		return fallback
	}
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func parsePositive(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
