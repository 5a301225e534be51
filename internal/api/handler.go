// Package api serves berry growth time statistics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/berry-stats/pkg/fetch"
	"github.com/Sternrassler/berry-stats/pkg/history"
	"github.com/Sternrassler/berry-stats/pkg/logging"
	"github.com/Sternrassler/berry-stats/pkg/stats"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// MissingURLMessage is the body returned when no upstream URL is configured.
const MissingURLMessage = "POKE_API_URL environment variable is not set"

const historyTimeout = 5 * time.Second

// Fetcher runs one list-then-fetch orchestration.
type Fetcher interface {
	Run(ctx context.Context, baseURL string, mode fetch.Mode) (*fetch.Result, error)
}

// Config holds handler configuration.
type Config struct {
	// APIURL is the upstream base URL. Empty makes the stats route fail.
	APIURL string

	// Mode is the configured execution mode, parsed once per request.
	Mode string

	// ContentType is set on stats responses. Defaults to application/json.
	ContentType string

	// HistogramPath receives a text histogram after each successful run.
	HistogramPath string

	// RunsLimit is the default number of runs listed by /runs.
	RunsLimit int

	// Store records run metadata. Defaults to history.NopStore.
	Store history.Store

	Logger zerolog.Logger
}

// Handler serves the HTTP routes.
type Handler struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a Handler.
func New(fetcher Fetcher, config Config) *Handler {
	if config.ContentType == "" {
		config.ContentType = "application/json"
	}
	if config.Store == nil {
		config.Store = history.NopStore{}
	}

	return &Handler{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger(config.Logger, "api"),
	}
}

// Routes returns the route multiplexer.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /allBerryStats", h.allBerryStats)
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", h.ready)
	mux.HandleFunc("GET /runs", h.runs)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) allBerryStats(w http.ResponseWriter, r *http.Request) {
	if h.config.APIURL == "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(MissingURLMessage))
		return
	}

	mode := fetch.ParseMode(h.config.Mode)
	result, err := h.fetcher.Run(r.Context(), h.config.APIURL, mode)
	h.record(r.Context(), result, err)
	if err != nil {
		h.writeError(w, err)
		return
	}

	samples, err := stats.Samples(result.Records)
	if err != nil {
		h.writeError(w, err)
		return
	}
	summary, err := stats.Compute(samples)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.config.HistogramPath != "" {
		h.saveHistogram(samples)
	}

	body, err := json.Marshal(summary.Report())
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", h.config.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handler) saveHistogram(samples []stats.Sample) {
	hist, err := stats.NewHistogram(stats.GrowthTimes(samples), stats.DefaultBins)
	if err == nil {
		err = stats.SaveHistogram(h.config.HistogramPath, hist)
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("path", h.config.HistogramPath).Msg("Failed to write histogram")
	}
}

// record saves run metadata. It outlives request cancellation so aborted
// runs are still recorded.
func (h *Handler) record(ctx context.Context, result *fetch.Result, runErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()

	if err := h.config.Store.Save(ctx, history.FromResult(result, runErr)); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to record run history")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.logger.Error().Err(err).Msg("Stats request failed")

	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	w.Header().Set("Content-Type", h.config.ContentType)
	w.WriteHeader(http.StatusInternalServerError)
	w.Write(body)
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	if err := h.config.Store.Ping(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("History store not ready")
		http.Error(w, "history store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) runs(w http.ResponseWriter, r *http.Request) {
	limit := h.config.RunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.config.Store.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read run history")
		http.Error(w, "failed to read run history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(runs); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write runs response")
	}
}
