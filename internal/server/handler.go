package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cast"

	"github.com/lojasmm/sqldash/internal/ai"
	"github.com/lojasmm/sqldash/internal/session"
	"github.com/lojasmm/sqldash/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Runner is the agent surface the handler serves.
type Runner interface {
	Run(ctx context.Context, message string) string
	Dashboard(ctx context.Context, message string) string
}

type Handler struct {
	agent    Runner
	store    store.Store
	sessions *session.Manager
	limiter  *RateLimiter
}

func NewHandler(agent Runner, s store.Store, sessions *session.Manager, limiter *RateLimiter) *Handler {
	return &Handler{agent: agent, store: s, sessions: sessions, limiter: limiter}
}

// Routes mounts every endpoint on a chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/run_agent/{query}", h.HandleRunAgent)
	r.Get("/run_dashboard_agent/{query}", h.HandleRunDashboard)

	r.Get("/runs", h.HandleListRuns)
	r.Get("/runs/{id}", h.HandleGetRun)
	r.Get("/runs/{id}/dashboard.html", h.HandleDownloadDashboard)
	return r
}

type runResponse struct {
	ID     string `json:"id,omitempty"`
	Result string `json:"result"`
}

func (h *Handler) HandleRunAgent(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, store.KindAgent, func(ctx context.Context, q string) (string, bool) {
		out := h.agent.Run(ctx, q)
		return out, strings.HasPrefix(out, ai.ErrorPrefix)
	})
}

func (h *Handler) HandleRunDashboard(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, store.KindDashboard, func(ctx context.Context, q string) (string, bool) {
		page := h.agent.Dashboard(ctx, q)
		return page, ai.IsErrorPage(page)
	})
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, kind string, fn func(context.Context, string) (string, bool)) {
	query := pathParam(r, "query")
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, "empty query")
		return
	}

	client := clientKey(r)
	if !h.limiter.Allow(client) {
		writeError(w, http.StatusTooManyRequests, "too many requests, wait a minute and try again")
		return
	}

	var resp runResponse
	_ = h.sessions.WithLock(client, func() error {
		log.Printf("server: %s run for %s: %q", kind, client, query)
		start := time.Now()
		result, failed := fn(r.Context(), query)

		run := &store.Run{
			Kind:       kind,
			Client:     client,
			Query:      query,
			Result:     result,
			Failed:     failed,
			DurationMS: time.Since(start).Milliseconds(),
		}
		if err := h.store.SaveRun(run); err != nil {
			log.Printf("server: failed to save %s run: %v", kind, err)
		}
		log.Printf("server: %s run %s finished in %dms (failed=%t)", kind, run.ID, run.DurationMS, failed)

		resp = runResponse{ID: run.ID, Result: result}
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := h.store.ListRuns(limit)
	if err != nil {
		log.Printf("server: list runs: %v", err)
		writeError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleDownloadDashboard serves a stored dashboard as an HTML attachment.
func (h *Handler) HandleDownloadDashboard(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if run.Kind != store.KindDashboard {
		writeError(w, http.StatusNotFound, "run has no dashboard")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="dashboard-%s.html"`, run.ID))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(run.Result))
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*store.Run, bool) {
	run, err := h.store.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("server: get run: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load run")
		return nil, false
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	return run, true
}

// pathParam returns the decoded URL parameter. chi matches against the raw
// path when the request carries escapes such as %2F.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
