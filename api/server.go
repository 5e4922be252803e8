// Package api provides the HTTP REST API server for DiligenceOps.
//
// It exposes endpoints to start diligence runs, inspect their status and
// artifacts, and stream pipeline progress over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seenimoa/diligenceops/internal/agent"
	"github.com/seenimoa/diligenceops/internal/config"
	"github.com/seenimoa/diligenceops/internal/pipeline"
	"github.com/seenimoa/diligenceops/internal/store"
	"github.com/seenimoa/diligenceops/pkg/models"
	"github.com/seenimoa/diligenceops/pkg/utils"
)

const (
	runIDLength     = 8
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// Launcher executes one pipeline run. *agent.Runner satisfies it.
type Launcher interface {
	Run(ctx context.Context, runID, ticker string, sink pipeline.Sink) (*agent.Result, error)
}

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	runner   Launcher
	runs     *store.RunStore
	hub      *Hub
	validate *validator.Validate
	log      *zap.Logger
	version  string
	newID    func() string
	now      func() time.Time

	// Background runs outlive their request; Close cancels and waits.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(f func() string) Option {
	return func(s *Server) { s.newID = f }
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, runner Launcher, runs *store.RunStore, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		runner:   runner,
		runs:     runs,
		hub:      NewHub(),
		validate: newValidator(),
		log:      zap.NewNop(),
		version:  "dev",
		newID:    func() string { return uuid.NewString()[:runIDLength] },
		now:      time.Now,
		baseCtx:  ctx,
		cancel:   cancel,
	}
	for _, o := range opts {
		o(s)
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully and
// cancels in-flight runs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api: listening", zap.String("addr", addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("api: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := httpSrv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close cancels background runs and waits for them to record their outcome.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/health", s.handleHealth)

		// Runs
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Get("/runs/{runID}/files", s.handleListFiles)
		r.Get("/runs/{runID}/files/{name}", s.handleGetFile)

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)
	})

	// WebSocket
	r.Get("/ws/pipeline/{runID}", s.handlePipelineWS)

	return r
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return utils.IsValidTicker(fl.Field().String())
	})
	return v
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AnalyzeRequest is the body for POST /api/v1/analyze.
type AnalyzeRequest struct {
	Ticker string `json:"ticker" validate:"required,min=1,max=5,ticker"`
}

// AnalyzeResponse acknowledges a started run.
type AnalyzeResponse struct {
	RunID  string `json:"run_id"`
	Ticker string `json:"ticker"`
	Status string `json:"status"`
}

// RunView is the JSON form of a run record.
type RunView struct {
	RunID       string           `json:"run_id"`
	Ticker      string           `json:"ticker"`
	Status      string           `json:"status"`
	StartedAt   string           `json:"started_at"`
	CompletedAt string           `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
	Result      *pipeline.Record `json:"result,omitempty"`
}

func viewOf(rr *store.RunRecord, withResult bool) RunView {
	v := RunView{
		RunID:     rr.ID,
		Ticker:    rr.Ticker,
		Status:    rr.Status,
		StartedAt: rr.StartedAt.UTC().Format(time.RFC3339),
		Error:     rr.Error,
	}
	if !rr.CompletedAt.IsZero() {
		v.CompletedAt = rr.CompletedAt.UTC().Format(time.RFC3339)
	}
	if withResult && rr.Status == store.RunComplete {
		v.Result = rr.Result
	}
	return v
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":  "ok",
			"version": s.version,
			"llm":     s.cfg.HasLLMKey(),
			"time":    utils.NowISO(),
		},
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Ticker = utils.NormalizeTicker(req.Ticker)
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	rr := &store.RunRecord{
		ID:        s.newID(),
		Ticker:    req.Ticker,
		Status:    store.RunRunning,
		StartedAt: s.now(),
	}
	if err := s.runs.Save(rr); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.hub.Open(rr.ID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(rr)
	}()

	writeJSON(w, http.StatusAccepted, APIResponse{
		Success: true,
		Data:    AnalyzeResponse{RunID: rr.ID, Ticker: rr.Ticker, Status: rr.Status},
	})
}

// execute runs the pipeline in the background and records its outcome.
func (s *Server) execute(rr *store.RunRecord) {
	log := s.log.With(zap.String("run_id", rr.ID), zap.String("ticker", rr.Ticker))
	res, err := s.runner.Run(s.baseCtx, rr.ID, rr.Ticker, func(p models.Progress) {
		s.hub.Publish(rr.ID, WSMessage{Type: MsgProgress, Data: p})
	})

	done := *rr
	done.CompletedAt = s.now()
	if res != nil {
		done.Result = res.Record
		done.OutputDir = res.OutputDir
	}
	if err != nil {
		log.Error("run failed", zap.Error(err))
		done.Status = store.RunError
		done.Error = err.Error()
	} else {
		done.Status = store.RunComplete
	}
	if err := s.runs.Save(&done); err != nil {
		log.Error("save run", zap.Error(err))
	}
	s.hub.Finish(rr.ID, terminalMessage(&done))
}

// terminalMessage is the last WebSocket message of a run.
func terminalMessage(rr *store.RunRecord) WSMessage {
	if rr.Status == store.RunError {
		return WSMessage{Type: MsgError, Data: map[string]any{"run_id": rr.ID, "error": rr.Error}}
	}
	data := map[string]any{"run_id": rr.ID, "status": rr.Status}
	if rec := rr.Result; rec != nil {
		data["recommendation"] = rec.Recommendation
		data["confidence"] = rec.Confidence
	}
	return WSMessage{Type: MsgComplete, Data: data}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunLimit)
	}
	runs, err := s.runs.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]RunView, 0, len(runs))
	for i := range runs {
		views = append(views, viewOf(&runs[i], false))
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: views})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rr, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: viewOf(rr, true)})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	rr, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	files, err := runFiles(rr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: files})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	rr, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	files, err := runFiles(rr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !slices.Contains(files, name) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("artifact %q not found", name))
		return
	}
	http.ServeFile(w, r, filepath.Join(rr.OutputDir, name))
}

// runFiles lists the artifacts of a finished run.
func runFiles(rr *store.RunRecord) ([]string, error) {
	if rr.OutputDir == "" {
		return []string{}, nil
	}
	return store.ListFiles(rr.OutputDir)
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*store.RunRecord, bool) {
	rr, err := s.runs.Get(chi.URLParam(r, "runID"))
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return rr, true
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// validationMessage turns validator errors into one client-facing line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := fe.Field()
	if field == "Ticker" {
		field = "ticker"
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "max":
		return field + " must be 1-5 characters"
	default:
		return field + " is not a valid ticker symbol"
	}
}
