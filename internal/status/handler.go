package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	// Gatherer backs GET /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer

	// Listeners is reported verbatim by GET /api/v1/status.
	Listeners []ListenerBinding

	// StaleAfter marks /healthz unhealthy when no cycle has completed for
	// this long. Zero disables the check.
	StaleAfter time.Duration
}

type handler struct {
	store *Store
	opts  HandlerOptions
	now   func() time.Time
}

// NewHandler returns the HTTP handler for the status and metrics endpoints.
func NewHandler(st *Store, opts HandlerOptions) http.Handler {
	h := &handler{store: st, opts: opts, now: time.Now}
	if h.opts.Gatherer == nil {
		h.opts.Gatherer = prometheus.DefaultGatherer
	}
	if h.opts.Listeners == nil {
		h.opts.Listeners = []ListenerBinding{}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{}))
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Get("/monitors/{name}", h.monitor)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// health reports whether dispatch cycles are still completing.
func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	cycles, last := h.store.Cycles()
	resp := HealthResponse{Status: "ok", Cycles: cycles, LastCycle: rfc3339(last)}

	if h.opts.StaleAfter > 0 {
		since := last
		if since.IsZero() {
			since = h.store.Started()
		}
		if h.now().Sub(since) > h.opts.StaleAfter {
			resp.Status = "stale"
			jsonResp(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	cycles, last := h.store.Cycles()
	jsonResp(w, http.StatusOK, StatusResponse{
		Started:   rfc3339(h.store.Started()),
		Cycles:    cycles,
		LastCycle: rfc3339(last),
		Monitors:  h.store.List(),
		Listeners: h.opts.Listeners,
	})
}

func (h *handler) monitor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	st, ok := h.store.Get(name)
	if !ok {
		jsonErr(w, http.StatusNotFound, "monitor not found or has not run yet")
		return
	}
	jsonResp(w, http.StatusOK, st)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func rfc3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
