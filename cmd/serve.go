package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roteiro-pt/enrich-cli/internal/enrich"
	"github.com/roteiro-pt/enrich-cli/internal/store"
	"github.com/roteiro-pt/enrich-cli/pkg/geocode"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnrichment(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{env: env, geocoder: newGeocodeClient()}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type apiServer struct {
	env      *env
	geocoder *geocode.Client
}

func (a *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", a.handleHealth)
	r.Post("/api/geocode", a.handleGeocode)
	r.Post("/api/pois/{id}/enrich", a.handleEnrichPoi)
	r.Post("/api/enrich/run", a.handleEnrichRun)
	r.Get("/api/runs/{id}", a.handleGetRun)
	return r
}

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *apiServer) handleGeocode(w http.ResponseWriter, r *http.Request) {
	var addr geocode.Address
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := a.geocoder.Geocode(r.Context(), addr)
	if err != nil {
		var inputErr *geocode.InputError
		var notFound *geocode.NotFoundError
		switch {
		case errors.As(err, &inputErr):
			writeError(w, http.StatusBadRequest, inputErr.Error())
		case errors.As(err, &notFound):
			writeError(w, http.StatusNotFound, notFound.Error())
		default:
			zap.L().Error("geocode request failed", zap.Error(err))
			writeError(w, http.StatusBadGateway, "geocoding upstream failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *apiServer) handleEnrichPoi(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid poi id")
		return
	}

	ctx := r.Context()
	poi, err := a.env.Store.GetPoi(ctx, id)
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, nf.Error())
			return
		}
		zap.L().Error("load poi failed", zap.Int64("poi_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "load poi failed")
		return
	}

	regions, err := a.env.Store.AllRegions(ctx)
	if err != nil {
		zap.L().Error("load regions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "load regions failed")
		return
	}
	if err := enrich.ValidateRegionRef(poi, regions); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	changed := a.env.Orchestrator.EnrichOne(ctx, poi, regions)
	if changed {
		if err := a.env.Store.SavePoi(ctx, poi); err != nil {
			zap.L().Error("save poi failed", zap.Int64("poi_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "save poi failed")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"changed": changed,
		"poi":     poi,
	})
}

func (a *apiServer) handleEnrichRun(w http.ResponseWriter, r *http.Request) {
	// Batch runs take minutes; the request only kicks one off. The run id
	// comes back immediately so progress is pollable via /api/runs/{id}.
	run, err := a.env.Orchestrator.PrepareRun(r.Context())
	if err != nil {
		zap.L().Error("prepare enrichment run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "prepare run failed")
		return
	}

	bgCtx := context.WithoutCancel(r.Context())
	go func() {
		done, err := a.env.Orchestrator.Execute(bgCtx, run)
		if err != nil {
			zap.L().Error("background enrichment run failed",
				zap.String("run_id", run.ID), zap.Error(err))
			return
		}
		zap.L().Info("background enrichment run complete",
			zap.String("run_id", done.ID),
			zap.Int("processed", done.Processed),
			zap.Int("enriched", done.Enriched),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"run_id": run.ID,
	})
}

func (a *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.env.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, nf.Error())
			return
		}
		zap.L().Error("load run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "load run failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
