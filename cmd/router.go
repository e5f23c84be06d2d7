package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/cache"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/jobs"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

// newRouter builds the HTTP API around the resolution engine.
func newRouter(e *env) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/empresas/resolve", handleResolve(e))
		r.Get("/empresas/{ruc}", handleGet(e))
		r.Get("/empresas/{ruc}/crossref", handleCrossref(e))
		r.Delete("/empresas/{ruc}/cache", handleInvalidate(e))
		r.Post("/empresas/jobs", handleEnqueue(e))
		r.Get("/empresas/jobs", handleListJobs(e))
		r.Get("/empresas/jobs/{id}", handlePollJob(e))
		r.Get("/stats", handleStats(e))
		r.Get("/registry/local", handleLocalRegistry(e))
	})

	return r
}

func handleResolve(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RUC string `json:"ruc"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		resolveAndRespond(e, w, r, req.RUC)
	}
}

func handleGet(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resolveAndRespond(e, w, r, chi.URLParam(r, "ruc"))
	}
}

func resolveAndRespond(e *env, w http.ResponseWriter, r *http.Request, raw string) {
	rec, err := e.resolver.Resolve(r.Context(), raw)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusUnprocessableEntity, verr.Error())
			return
		}
		zap.L().Error("resolve failed", zap.String("ruc", raw), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "resolution failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleCrossref answers from the cache only: which registries corroborated
// this RUC on its last multi-source resolution. No live call is made.
func handleCrossref(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ruc, err := model.ParseRUC(chi.URLParam(r, "ruc"))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		sources, ok, err := cache.GetCrossref(r.Context(), e.store, ruc)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "crossref lookup failed")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "no cross-registry correlation for this RUC")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ruc": ruc, "sources": sources})
	}
}

func handleInvalidate(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "ruc")
		if err := e.resolver.Invalidate(r.Context(), raw); err != nil {
			var verr *model.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusUnprocessableEntity, verr.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "invalidate failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated", "ruc": raw})
	}
}

func handleEnqueue(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RUC string `json:"ruc"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		job, err := e.resolver.EnqueueResolve(req.RUC)
		if err != nil {
			var verr *model.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusUnprocessableEntity, verr.Error())
				return
			}
			writeError(w, http.StatusServiceUnavailable, "job queue full")
			return
		}
		writeJSON(w, http.StatusAccepted, job)
	}
}

func handleListJobs(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, e.resolver.Jobs().List())
	}
}

func handlePollJob(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := e.resolver.PollJob(chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, jobs.ErrNotFound) {
				writeError(w, http.StatusNotFound, "job not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "job lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func handleStats(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := e.collector.Collect(r.Context())
		if err != nil {
			zap.L().Error("stats collection failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "stats collection failed")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleLocalRegistry(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"count": e.local.Len(),
			"rucs":  e.local.RUCs(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encoding response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
