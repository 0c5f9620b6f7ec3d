package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-match/internal/geo"
	"github.com/sells-group/inspection-match/internal/match"
	"github.com/sells-group/inspection-match/internal/model"
	"github.com/sells-group/inspection-match/internal/shortlist"
	"github.com/sells-group/inspection-match/pkg/geocode"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the matching HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		go env.Health.Run(ctx)

		return startServer(ctx, buildMux(env, cfg.Server.CORSOrigins), resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// resolvePort prefers the flag value over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// buildMux registers the API routes. A nil env serves only /health and
// /metrics.
func buildMux(env *appEnv, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	if env == nil {
		return r
	}

	a := &api{env: env}
	r.Get("/ready", a.ready)
	r.Post("/search", a.search)
	r.Get("/standby", a.listStandby)
	r.Get("/standby/{id}", a.showStandby)
	r.Delete("/standby/{id}", a.discardStandby)
	r.Post("/standby/stage", a.stage)
	r.Post("/standby/commit", a.commit)
	r.Post("/resolve", a.resolve)
	return r
}

// startServer serves handler on port until ctx is cancelled, then shuts
// down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

type api struct {
	env *appEnv
}

type searchRequest struct {
	model.ServiceRequest
	Services []string `json:"services"` // names or IDs, merged into service_ids
}

type searchResponse struct {
	Seq        uint64                  `json:"seq"`
	Outcome    match.Outcome           `json:"outcome"`
	Message    string                  `json:"message"`
	Origin     *geo.Coordinates        `json:"origin,omitempty"`
	Candidates []model.RankedCandidate `json:"candidates"`
}

// ready reports the latest dependency probe results; 503 when any failed.
func (a *api) ready(w http.ResponseWriter, r *http.Request) {
	if a.env.Health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	deps, healthy := a.env.Health.Status()
	if len(deps) == 0 {
		a.env.Health.CheckNow(r.Context())
		deps, healthy = a.env.Health.Status()
	}
	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "dependencies": deps})
}

func (a *api) search(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := body.ServiceRequest
	if len(body.Services) > 0 {
		ids, err := resolveServices(a.env.Catalog, body.Services)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.ServiceIDs = append(req.ServiceIDs, ids...)
	}

	ctx, cancel := searchTimeout(r.Context())
	defer cancel()

	res, err := a.env.Engine.Search(ctx, req)
	msg := match.UserMessage(res, err)
	if err != nil {
		if res != nil {
			// A failed search still replaces whatever an older one left.
			_ = a.env.Shortlist.Supersede(res.Seq)
		}
		writeError(w, statusFor(err), msg)
		return
	}

	resp := searchResponse{Seq: res.Seq, Outcome: res.Outcome, Message: msg, Candidates: res.Candidates}
	if res.Outcome == match.OutcomeNoMatches {
		if err := a.env.Shortlist.Supersede(res.Seq); err != nil {
			writeError(w, statusFor(err), "superseded by a newer search")
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Origin = &res.Origin

	if err := a.env.Shortlist.Populate(res.Seq, res.Snapshot(), res.Origin, res.Candidates); err != nil {
		writeError(w, statusFor(err), "superseded by a newer search")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) listStandby(w http.ResponseWriter, r *http.Request) {
	entries, err := a.env.Shortlist.Entries(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	if entries == nil {
		entries = []model.StandbyEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *api) showStandby(w http.ResponseWriter, r *http.Request) {
	entry, err := a.env.Shortlist.Entry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *api) discardStandby(w http.ResponseWriter, r *http.Request) {
	if err := a.env.Shortlist.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) stage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CompanyID string `json:"company_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.CompanyID == "" {
		writeError(w, http.StatusBadRequest, "company_id is required")
		return
	}

	staged, err := a.env.Shortlist.ToggleStage(body.CompanyID)
	if err != nil {
		a.fail(w, err)
		return
	}

	ids := []string{}
	for _, c := range a.env.Shortlist.Staged() {
		ids = append(ids, c.ID())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"company_id": body.CompanyID,
		"staged":     staged,
		"staged_ids": ids,
	})
}

func (a *api) commit(w http.ResponseWriter, r *http.Request) {
	entry, err := a.env.Shortlist.Commit(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *api) resolve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CompanyID string `json:"company_id"`
		EntryID   string `json:"entry_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.CompanyID == "" {
		writeError(w, http.StatusBadRequest, "company_id is required")
		return
	}

	res, err := a.env.Shortlist.Resolve(r.Context(), body.CompanyID, body.EntryID)
	if err != nil && res == nil {
		a.fail(w, err)
		return
	}
	if err != nil {
		// Recorded in history; only the follow-up bookkeeping failed.
		zap.L().Warn("resolve: follow-up failed", zap.String("company_id", body.CompanyID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, geocode.ErrNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shortlist.ErrUnknownCandidate), errors.Is(err, shortlist.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, shortlist.ErrEmptyStage),
		errors.Is(err, shortlist.ErrAlreadyResolved),
		errors.Is(err, shortlist.ErrNotPopulated),
		errors.Is(err, shortlist.ErrStaleResult):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
