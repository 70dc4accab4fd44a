package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"vehicle-dynamics-dashboard/internal/chart"
	"vehicle-dynamics-dashboard/internal/compat"
	"vehicle-dynamics-dashboard/internal/db"
	"vehicle-dynamics-dashboard/internal/models"
	"vehicle-dynamics-dashboard/internal/session"

	"github.com/gorilla/mux"
)

// Server represents the API server
type Server struct {
	sess   *session.Session
	db     *db.Database
	router *mux.Router
}

// NewServer creates a new API server. database may be nil, in which case
// the run archive endpoints report 503.
func NewServer(sess *session.Session, database *db.Database) *Server {
	s := &Server{
		sess:   sess,
		db:     database,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Dataset endpoints
	s.router.HandleFunc("/api/v1/files", s.handleListFiles).Methods("GET")
	s.router.HandleFunc("/api/v1/load", s.handleLoad).Methods("POST")
	s.router.HandleFunc("/api/v1/generate", s.handleGenerate).Methods("POST")

	// Selection endpoints
	s.router.HandleFunc("/api/v1/combinations", s.handleCombinations).Methods("GET")
	s.router.HandleFunc("/api/v1/selection", s.handleSelection).Methods("PUT")

	// Analysis endpoints
	s.router.HandleFunc("/api/v1/summary", s.handleSummary).Methods("GET")
	s.router.HandleFunc("/api/v1/summary/all", s.handleSummaryAll).Methods("GET")
	s.router.HandleFunc("/api/v1/braking-events", s.handleBrakingEvents).Methods("GET")
	s.router.HandleFunc("/api/v1/series/{kind}", s.handleSeries).Methods("GET")
	s.router.HandleFunc("/api/v1/charts/{kind}", s.handleChart).Methods("GET")

	// Run archive endpoints
	s.router.HandleFunc("/api/v1/runs", s.handleListRuns).Methods("GET")
	s.router.HandleFunc("/api/v1/runs", s.handleArchiveRun).Methods("POST")
	s.router.HandleFunc("/api/v1/runs/{id}", s.handleGetRun).Methods("GET")
	s.router.HandleFunc("/api/v1/runs/{id}", s.handleDeleteRun).Methods("DELETE")
	s.router.HandleFunc("/api/v1/runs/{id}/load", s.handleLoadRun).Methods("POST")

	// Stats endpoint
	s.router.HandleFunc("/api/v1/stats", s.handleStats).Methods("GET")

	// Add middleware
	s.router.Use(loggingMiddleware)
	s.router.Use(jsonMiddleware)
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Middleware
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Response helpers
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    *meta       `json:"meta,omitempty"`
}

type meta struct {
	Total   int   `json:"total,omitempty"`
	QueryMs int64 `json:"query_ms,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

func respondWithMeta(w http.ResponseWriter, data interface{}, m *meta) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data, Meta: m})
}

// respondErr picks the status from the error taxonomy.
func respondErr(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrSchema),
		errors.Is(err, models.ErrEmptyDataset),
		errors.Is(err, models.ErrUnknownCombination):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrEmptySelection),
		errors.Is(err, db.ErrRunNotFound),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", models.ErrValidation, err)
	}
	return nil
}

// Handlers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.sess.Store().List()
	if err != nil {
		respondErr(w, err)
		return
	}
	if files == nil {
		files = []string{}
	}
	respondWithMeta(w, map[string]interface{}{
		"sample_dir": s.sess.Store().Dir(),
		"files":      files,
	}, &meta{Total: len(files)})
}

type loadRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if req.Path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	// bare file names refer to the sample directory
	path := req.Path
	if filepath.Base(path) == path {
		path = filepath.Join(s.sess.Store().Dir(), path)
	}

	snap, err := s.sess.Load(path)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

type generateResponse struct {
	Path     string           `json:"path"`
	Snapshot session.Snapshot `json:"snapshot"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req session.GenerateRequest
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, err)
		return
	}

	path, snap, err := s.sess.Generate(req)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, generateResponse{Path: path, Snapshot: snap})
}

func (s *Server) handleCombinations(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.sess.Snapshot())
}

type selectionRequest struct {
	Vehicle string `json:"vehicle_type,omitempty"`
	Profile string `json:"profile_type,omitempty"`
}

// handleSelection sets both sides when both are given, otherwise cascades
// from the side that is given.
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, err)
		return
	}

	var (
		pair models.Pair
		err  error
	)
	switch {
	case req.Vehicle != "" && req.Profile != "":
		vt, verr := models.ParseVehicleType(req.Vehicle)
		pt, perr := models.ParseProfileType(req.Profile)
		if err = errors.Join(verr, perr); err != nil {
			respondErr(w, fmt.Errorf("%w: %v", models.ErrValidation, err))
			return
		}
		pair, err = s.sess.Select(vt, pt)
	case req.Vehicle != "":
		pair, err = s.sess.Cascade(compat.VehicleAxis, req.Vehicle)
	case req.Profile != "":
		pair, err = s.sess.Cascade(compat.ProfileAxis, req.Profile)
	default:
		respondError(w, http.StatusBadRequest, "vehicle_type or profile_type is required")
		return
	}
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pair)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	summary, err := s.sess.Summary()
	if err != nil {
		respondErr(w, err)
		return
	}
	respondWithMeta(w, summary, &meta{Total: summary.Samples, QueryMs: time.Since(start).Milliseconds()})
}

func (s *Server) handleSummaryAll(w http.ResponseWriter, r *http.Request) {
	channels, err := s.sess.SummaryAll()
	if err != nil {
		respondErr(w, err)
		return
	}
	respondWithMeta(w, channels, &meta{Total: channels.Speed.Count})
}

func (s *Server) handleBrakingEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.sess.BrakingEvents()
	if err != nil {
		respondErr(w, err)
		return
	}
	if events == nil {
		events = []models.BrakingEvent{}
	}
	respondWithMeta(w, events, &meta{Total: len(events)})
}

func (s *Server) figure(r *http.Request) (*chart.Figure, error) {
	kind, err := chart.ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		return nil, err
	}
	return s.sess.Figure(kind)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	fig, err := s.figure(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, fig)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	fig, err := s.figure(r)
	if err != nil {
		respondErr(w, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "png":
		w.Header().Set("Content-Type", "image/png")
		if err := chart.RenderPNG(w, fig); err != nil {
			log.Printf("render %s png: %v", fig.Kind, err)
		}
	case "", "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := chart.RenderHTML(w, fig); err != nil {
			log.Printf("render %s html: %v", fig.Kind, err)
		}
	default:
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
	}
}

func (s *Server) archive(w http.ResponseWriter) bool {
	if s.db == nil {
		respondError(w, http.StatusServiceUnavailable, "run archive is not configured")
		return false
	}
	return true
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.archive(w) {
		return
	}
	start := time.Now()
	runs, err := s.db.ListRuns()
	if err != nil {
		respondErr(w, err)
		return
	}
	if runs == nil {
		runs = []models.RunInfo{}
	}
	respondWithMeta(w, runs, &meta{Total: len(runs), QueryMs: time.Since(start).Milliseconds()})
}

func (s *Server) handleArchiveRun(w http.ResponseWriter, r *http.Request) {
	if !s.archive(w) {
		return
	}
	ds := s.sess.Dataset()
	if ds.Len() == 0 {
		respondErr(w, fmt.Errorf("%w: no dataset loaded", models.ErrEmptyDataset))
		return
	}
	run, err := s.db.InsertRun(ds)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !s.archive(w) {
		return
	}
	run, err := s.db.GetRun(mux.Vars(r)["id"])
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if !s.archive(w) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.db.DeleteRun(id); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) handleLoadRun(w http.ResponseWriter, r *http.Request) {
	if !s.archive(w) {
		return
	}
	ds, err := s.db.LoadRun(mux.Vars(r)["id"])
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.sess.Install(ds))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.archive(w) {
		return
	}
	stats, err := s.db.GetStats(s.sess.BrakingThreshold())
	if err != nil {
		respondErr(w, err)
		return
	}
	counts, err := s.db.GetPairCounts()
	if err != nil {
		respondErr(w, err)
		return
	}
	stats["pairs"] = counts
	respondJSON(w, http.StatusOK, stats)
}
