package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"ossensor/internal/app"
	"ossensor/internal/enrich"
	"ossensor/internal/logging"
	"ossensor/internal/model"
	"ossensor/internal/store"
)

// Server is the HTTP + WebSocket API surface over the triage pipeline.
type Server struct {
	cfg          Config
	orchestrator *app.Orchestrator
	store        *store.SQLiteStore
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
}

// NewServer creates a Server with its own store and Orchestrator.
func NewServer(cfg Config) (*Server, error) {
	if cfg.AppConfig == nil {
		cfg.AppConfig = app.DefaultConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	st, err := store.NewSQLiteStore(logger, &cfg.AppConfig.Store)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	enricher, err := enrich.NewEnricher(cfg.AppConfig.Enrich, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("constructing enricher: %w", err)
	}

	orch := app.NewOrchestrator(cfg.AppConfig, st, enricher, logger)

	r := chi.NewRouter()
	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		store:        st,
		router:       r,
		logger:       logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: tighten for production
				return true
			},
		},
	}

	s.routes()
	return s, nil
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/health", s.optionsHandler("GET"))
	r.Options("/queue", s.optionsHandler("GET"))
	r.Options("/diff/{diffID}", s.optionsHandler("GET"))
	r.Options("/diff/{diffID}/triage", s.optionsHandler("POST"))
	r.Options("/diff/{diffID}/hunks/{hunkID}/rendered", s.optionsHandler("GET"))
	r.Options("/artifacts/{artifactID}", s.optionsHandler("GET"))
	r.Options("/reports/{diffID}", s.optionsHandler("GET"))
	r.Options("/jobs/analyze", s.optionsHandler("POST"))
	r.Options("/jobs", s.optionsHandler("GET"))
	r.Options("/jobs/{jobID}", s.optionsHandler("GET, DELETE"))
	r.Options("/ws/jobs/{jobID}", s.optionsHandler("GET"))

	r.Get("/health", s.handleHealth)

	// Triage queue and diffs
	r.Get("/queue", s.handleQueue)
	r.Get("/diff/{diffID}", s.handleGetDiff)
	r.Post("/diff/{diffID}/triage", s.handleUpdateTriage)
	r.Get("/diff/{diffID}/hunks/{hunkID}/rendered", s.handleRenderedHunk)

	// Artifacts and reports
	r.Get("/artifacts/{artifactID}", s.handleGetArtifact)
	r.Get("/reports/{diffID}", s.handleGetReports)

	// Jobs over REST
	r.Post("/jobs/analyze", s.handleStartAnalyzeJob)
	r.Get("/jobs", s.handleListJobs)
	r.Get("/jobs/{jobID}", s.handleGetJob)
	r.Delete("/jobs/{jobID}", s.handleCancelJob)

	// WebSocket for job progress
	r.Get("/ws/jobs/{jobID}", s.handleJobWS)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Close shuts down the orchestrator and underlying resources.
func (s *Server) Close() {
	if s.orchestrator != nil {
		s.orchestrator.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// --- HTTP handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.QueueFilter{
		Component: q.Get("component"),
		State:     model.TriageState(q.Get("state")),
		BuildFrom: q.Get("build_from"),
		BuildTo:   q.Get("build_to"),
	}
	if ms := q.Get("min_score"); ms != "" {
		v, err := strconv.ParseFloat(ms, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_score")
			return
		}
		filter.MinScore = v
		filter.HasMinScore = true
	}

	items, err := s.orchestrator.Queue(r.Context(), filter)
	if err != nil {
		s.logger.Warn("listing queue", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []model.QueueItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetDiff(w http.ResponseWriter, r *http.Request) {
	diffID := chi.URLParam(r, "diffID")

	detail, err := s.orchestrator.GetDiff(r.Context(), diffID)
	if err != nil {
		if errors.Is(err, store.ErrDiffNotFound) {
			writeError(w, http.StatusNotFound, "diff not found")
			return
		}
		s.logger.Warn("getting diff", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func validTriageState(state model.TriageState) bool {
	switch state {
	case model.TriagePending, model.TriageAccepted, model.TriageDenied, model.TriageInProgress:
		return true
	}
	return false
}

func (s *Server) handleUpdateTriage(w http.ResponseWriter, r *http.Request) {
	diffID := chi.URLParam(r, "diffID")

	var body TriageUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	state := model.TriageState(body.State)
	if !validTriageState(state) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid triage state %q", body.State))
		return
	}

	if err := s.orchestrator.UpdateTriage(r.Context(), diffID, state, body.Notes); err != nil {
		if errors.Is(err, store.ErrDiffNotFound) {
			writeError(w, http.StatusNotFound, "diff not found")
			return
		}
		s.logger.Warn("updating triage", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("updated triage",
		logging.Field{Key: "diff_id", Value: diffID},
		logging.Field{Key: "state", Value: body.State})
	writeJSON(w, http.StatusOK, map[string]string{"diff_id": diffID, "state": body.State})
}

func (s *Server) handleRenderedHunk(w http.ResponseWriter, r *http.Request) {
	diffID := chi.URLParam(r, "diffID")
	hunkID := chi.URLParam(r, "hunkID")

	chunks, err := s.orchestrator.RenderedHunk(r.Context(), diffID, hunkID)
	if err != nil {
		if errors.Is(err, store.ErrDiffNotFound) {
			writeError(w, http.StatusNotFound, "diff not found")
			return
		}
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, chunks)
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	artifactID := chi.URLParam(r, "artifactID")

	meta, err := s.orchestrator.GetArtifact(r.Context(), artifactID)
	if err != nil {
		if errors.Is(err, store.ErrArtifactNotFound) {
			writeError(w, http.StatusNotFound, "artifact not found")
			return
		}
		s.logger.Warn("getting artifact", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := ArtifactResponse{Artifact: meta}
	if features, err := s.orchestrator.ArtifactFeatures(r.Context(), artifactID); err == nil && len(features) > 0 {
		resp.Features = features
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetReports(w http.ResponseWriter, r *http.Request) {
	diffID := chi.URLParam(r, "diffID")

	reports, err := s.orchestrator.GetReports(r.Context(), diffID)
	if err != nil {
		s.logger.Warn("getting reports", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reports == nil {
		reports = map[string]json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// Jobs (REST)

func (s *Server) handleStartAnalyzeJob(w http.ResponseWriter, r *http.Request) {
	var body AnalyzeJobRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.BuildFrom == "" || body.BuildTo == "" || body.Component == "" {
		writeError(w, http.StatusBadRequest, "build_from, build_to and component are required")
		return
	}

	job, err := s.orchestrator.StartAnalyzeJob(context.Background(), body.BuildFrom, body.BuildTo, body.Component, body.Enrich)
	if err != nil {
		s.logger.Warn("starting analyze job", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("started analyze job",
		logging.Field{Key: "job_id", Value: job.ID},
		logging.Field{Key: "build_from", Value: body.BuildFrom},
		logging.Field{Key: "build_to", Value: body.BuildTo},
		logging.Field{Key: "component", Value: body.Component})
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	s.orchestrator.CancelJob(jobID)
	s.logger.Info("canceled job", logging.Field{Key: "job_id", Value: jobID})
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.orchestrator.ListJobs()
	writeJSON(w, http.StatusOK, jobs)
}

// WebSocket

func (s *Server) handleJobWS(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	// Send the job snapshot first, then stream events until the job's
	// channel closes.
	_ = conn.WriteJSON(job)

	for ev := range job.Events {
		if err := conn.WriteJSON(ev); err != nil {
			// Assume client disconnected; cancel job
			s.orchestrator.CancelJob(job.ID)
			return
		}
	}
}
