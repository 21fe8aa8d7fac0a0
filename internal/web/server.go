// Package web provides the HTTP server for the plant-monitor daemon: the
// status page, the prediction API, and the endpoints field devices poll.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sweeney/plant-monitor/internal/control"
	"github.com/sweeney/plant-monitor/internal/ingest"
	"github.com/sweeney/plant-monitor/internal/status"
	"github.com/sweeney/plant-monitor/internal/store"
)

// Deps are the collaborators the handlers read from and write to.
type Deps struct {
	Tracker    *status.Tracker
	Store      store.Store
	Controller *control.Controller
	Ingester   *ingest.Ingester
}

// Server serves the status page and JSON API over HTTP.
type Server struct {
	httpServer *http.Server
	deps       Deps
	now        func() time.Time
}

// New creates a Server listening on addr.
func New(addr string, deps Deps) *Server {
	s := &Server{deps: deps, now: time.Now}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/predict/{plant_id}", s.handlePredict).Methods(http.MethodGet)
	api.HandleFunc("/plants/{plant_id}/readings", s.handleReadings).Methods(http.MethodGet)
	api.HandleFunc("/plants/{plant_id}/controls", s.handleGetControls).Methods(http.MethodGet)
	api.HandleFunc("/plants/{plant_id}/controls", s.handlePutControls).Methods(http.MethodPut)
	api.HandleFunc("/esp32/sensor-readings", s.handleSensorReading).Methods(http.MethodPost)
	api.HandleFunc("/esp32/controls", s.handleDeviceControls).Methods(http.MethodGet)
	api.HandleFunc("/esp32/heartbeat", s.handleHeartbeat).Methods(http.MethodPost)
	api.HandleFunc("/notifications", s.handleNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/read-all", s.handleMarkAllRead).Methods(http.MethodPost)
	api.HandleFunc("/notifications/{id}/read", s.handleMarkRead).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := pageData{Snapshot: s.deps.Tracker.Snapshot()}
	if s.deps.Store != nil {
		plants, err := s.deps.Store.Plants(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load plants")
			return
		}
		page.Plants = plants
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, page)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
