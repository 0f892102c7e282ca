package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/pipeline"
	"github.com/sells-group/sourcing-cli/internal/runner"
	"github.com/sells-group/sourcing-cli/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve exposes the sourcing pipeline over HTTP. Searches run in the
background; clients poll for progress and fetch results when complete.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		run := runner.New(cfg.Pipeline.MaxConcurrency)
		p, meter := buildPipeline(cfg, st, pipeline.MultiSink{pipeline.LogSink{}, run})
		srv := newServer(ctx, st, run, p)

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           srv.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		run.Wait()
		logSpend(meter)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// server handles the HTTP API. baseCtx outlives individual requests so
// background runs survive the response that started them.
type server struct {
	baseCtx  context.Context
	store    store.Store
	runner   *runner.Runner
	pipeline *pipeline.Pipeline
}

func newServer(baseCtx context.Context, st store.Store, run *runner.Runner, p *pipeline.Pipeline) *server {
	return &server{baseCtx: baseCtx, store: st, runner: run, pipeline: p}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/searches", func(r chi.Router) {
		r.Post("/", s.handleCreateSearch)
		r.Get("/", s.handleListSearches)
		r.Get("/{id}", s.handleGetSearch)
		r.Get("/{id}/results", s.handleGetResults)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateSearch starts a search in the background and returns its run
// ID immediately.
func (s *server) handleCreateSearch(w http.ResponseWriter, r *http.Request) {
	var criteria model.Criteria
	if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
		respondError(w, http.StatusBadRequest, "invalid criteria payload")
		return
	}
	if criteria.CreatedAt.IsZero() {
		criteria.CreatedAt = time.Now().UTC()
	}

	run, err := s.store.CreateRun(r.Context(), criteria)
	if err != nil {
		zap.L().Error("create run", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not create run")
		return
	}

	s.runner.Launch(s.baseCtx, run.ID, func(ctx context.Context) (*model.Result, error) {
		return s.pipeline.Execute(ctx, run)
	})

	respondJSON(w, http.StatusAccepted, map[string]string{
		"run_id":     run.ID,
		"status_url": "/api/searches/" + run.ID,
	})
}

func (s *server) handleListSearches(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context(), 50)
	if err != nil {
		zap.L().Error("list runs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

// handleGetSearch reports run progress: live state when the run is in
// flight, the stored snapshot otherwise.
func (s *server) handleGetSearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if state, ok := s.runner.State(id); ok {
		respondJSON(w, http.StatusOK, state)
		return
	}
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, run.State)
}

func (s *server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}

	cands, err := s.store.ListCandidates(r.Context(), id)
	if err != nil {
		zap.L().Error("list candidates", zap.String("run_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not load results")
		return
	}
	failures, err := s.store.ListFailures(r.Context(), id)
	if err != nil {
		zap.L().Error("list failures", zap.String("run_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not load results")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"run_id":     id,
		"state":      run.State,
		"candidates": cands,
		"failures":   failures,
	})
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}
