package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"planetcf/internal/handler/http/requestid"
	"planetcf/internal/handler/http/respond"
	"planetcf/internal/handler/http/responsewriter"
	"planetcf/internal/observability/slo"
	"planetcf/internal/observability/tracing"
	"planetcf/internal/usecase/render"
)

// newRouter wires the five public routes plus the liveness probe that
// rides along on the same HTTP surface, wrapped in request-id,
// access-logging, and tracing middleware.
func newRouter(renderer *render.Renderer, logger *slog.Logger, recorder *slo.Recorder) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", handleHome(renderer))
	mux.HandleFunc("GET /feed.atom", handleAtom(renderer))
	mux.HandleFunc("GET /feed.rss", handleRSS(renderer))
	mux.HandleFunc("GET /feeds.opml", handleOPML(renderer))
	mux.HandleFunc("GET /search", handleSearch(renderer))
	mux.HandleFunc("GET /healthz", handleHealthz)

	return requestid.Middleware(tracing.Middleware(accessLog(logger, recorder, mux)))
}

// accessLog logs one line per request with status code, latency, and
// request id, following the teacher's request-id-then-log-middleware
// ordering, and reports the outcome to the SLO recorder.
func accessLog(logger *slog.Logger, recorder *slo.Recorder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := responsewriter.Wrap(w)
		next.ServeHTTP(rw, r)
		duration := time.Since(start)
		recorder.Observe(rw.StatusCode(), duration)
		logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.StatusCode()),
			slog.Duration("duration", duration),
			slog.String("request_id", requestid.FromContext(r.Context())))
	})
}

func handleHome(renderer *render.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600, stale-while-revalidate=60")
		if err := renderer.RenderHome(r.Context(), w, time.Now()); err != nil {
			respond.SafeError(w, http.StatusInternalServerError, err)
		}
	}
}

func handleAtom(renderer *render.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := renderer.RenderAtom(r.Context(), time.Now())
		if err != nil {
			respond.SafeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
		_, _ = w.Write(body)
	}
}

func handleRSS(renderer *render.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := renderer.RenderRSS(r.Context(), time.Now())
		if err != nil {
			respond.SafeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		_, _ = w.Write(body)
	}
}

func handleOPML(renderer *render.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := renderer.RenderOPML(r.Context(), time.Now())
		if err != nil {
			respond.SafeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/x-opml; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="feeds.opml"`)
		_, _ = w.Write(body)
	}
}

const minQueryLength = 2
const defaultSearchTopK = 20

func handleSearch(renderer *render.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if len(q) < minQueryLength {
			respond.Error(w, http.StatusBadRequest, errQueryTooShort)
			return
		}
		results, err := renderer.Search(r.Context(), q, defaultSearchTopK)
		if err != nil {
			respond.SafeError(w, http.StatusInternalServerError, err)
			return
		}
		respond.JSON(w, http.StatusOK, searchResponse{Results: results})
	}
}

type searchResponse struct {
	Results []render.SearchResult `json:"results"`
}

var errQueryTooShort = errors.New("q must be at least 2 characters")

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
