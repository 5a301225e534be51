// Package fetch lists a collection and fetches the detail record of every
// descriptor in it, sequentially or on a bounded worker pool.
//
// Listing always completes before the first detail request. What a failed
// detail request does depends on the FailurePolicy: sequential runs abort with
// an ItemFetchError, concurrent runs drop the item and return the rest.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/berry-stats/pkg/logging"
	"github.com/Sternrassler/berry-stats/pkg/pagination"
	"github.com/Sternrassler/berry-stats/pkg/workerpool"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for orchestration runs.
var (
	fetchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "berry_fetch_runs_total",
		Help: "Total orchestration runs by mode and outcome",
	}, []string{"mode", "outcome"})

	fetchRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "berry_fetch_run_duration_seconds",
		Help:    "Orchestration run duration in seconds by mode",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"mode"})
)

// DefaultCollection is the listing path appended to the base URL.
const DefaultCollection = "berry"

// ErrEmptyRecord is returned for a detail response that decodes to null or {}.
var ErrEmptyRecord = errors.New("empty detail record")

// Record is one decoded detail object.
type Record map[string]any

// Config holds orchestrator configuration.
type Config struct {
	// Collection is appended to the base URL to form the listing endpoint.
	// Empty lists the base URL itself.
	Collection string

	// Workers bounds concurrent detail fetches in concurrent mode.
	Workers int

	// MaxPages caps the listing (0 = unbounded).
	MaxPages int

	// Policy overrides the mode-derived failure policy when not PolicyFromMode.
	Policy FailurePolicy

	// Logger receives run events.
	Logger zerolog.Logger
}

// DefaultConfig returns the default configuration: the berry collection,
// 10 workers, unbounded listing and mode-derived failure handling.
func DefaultConfig() Config {
	return Config{
		Collection: DefaultCollection,
		Workers:    10,
		MaxPages:   0,
		Policy:     PolicyFromMode,
		Logger:     zerolog.Nop(),
	}
}

// Result describes one completed run.
type Result struct {
	RunID       string
	Endpoint    string
	Mode        Mode
	Policy      FailurePolicy
	Descriptors int
	Records     []Record
	Failed      int
	StartedAt   time.Time
	Duration    time.Duration
}

// Orchestrator composes the Lister and the worker pool.
type Orchestrator struct {
	getter pagination.Getter
	lister *pagination.Lister
	config Config
	logger zerolog.Logger
}

// New creates an Orchestrator that issues every request through getter.
func New(getter pagination.Getter, config Config) *Orchestrator {
	logger := logging.NewLogger(config.Logger, "orchestrator")

	return &Orchestrator{
		getter: getter,
		lister: pagination.NewLister(getter, pagination.Config{
			MaxPages: config.MaxPages,
			Logger:   config.Logger,
		}),
		config: config,
		logger: logger,
	}
}

// FetchAll lists the collection under baseURL and returns the detail record of
// every descriptor that could be fetched.
func (o *Orchestrator) FetchAll(ctx context.Context, baseURL string, mode Mode) ([]Record, error) {
	result, err := o.Run(ctx, baseURL, mode)
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

// Run is FetchAll with the run summary. On error the returned Result still
// carries the run metadata (ID, endpoint, descriptor count) but no records.
func (o *Orchestrator) Run(ctx context.Context, baseURL string, mode Mode) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		Endpoint:  ListingEndpoint(baseURL, o.config.Collection),
		Mode:      mode,
		Policy:    o.policyFor(mode),
		StartedAt: time.Now(),
	}

	logger := o.logger.With().
		Str("run_id", result.RunID).
		Str("mode", string(mode)).
		Logger()

	defer func() {
		result.Duration = time.Since(result.StartedAt)
		fetchRunDuration.WithLabelValues(string(mode)).Observe(result.Duration.Seconds())
	}()

	logger.Info().
		Str("endpoint", result.Endpoint).
		Str("policy", result.Policy.String()).
		Msg("Fetch run started")

	descriptors, err := o.lister.List(ctx, result.Endpoint)
	if err != nil {
		fetchRunsTotal.WithLabelValues(string(mode), outcomeFor(err)).Inc()
		logger.Error().Err(err).Msg("Listing failed")
		return result, err
	}
	result.Descriptors = len(descriptors)

	var records []Record
	var failed int
	if mode == ModeSequential {
		records, failed, err = o.runSequential(ctx, result.Endpoint, descriptors, result.Policy, logger)
	} else {
		records, failed, err = o.runConcurrent(ctx, result.RunID, result.Endpoint, descriptors, result.Policy, logger)
	}
	if err != nil {
		fetchRunsTotal.WithLabelValues(string(mode), outcomeFor(err)).Inc()
		logger.Error().Err(err).Int("descriptors", len(descriptors)).Msg("Fetch run aborted")
		return result, err
	}

	result.Records = records
	result.Failed = failed

	outcome := "ok"
	if failed > 0 {
		outcome = "partial"
	}
	fetchRunsTotal.WithLabelValues(string(mode), outcome).Inc()

	logger.Info().
		Int("descriptors", len(descriptors)).
		Int("records", len(records)).
		Int("failed", failed).
		Dur("duration", time.Since(result.StartedAt)).
		Msg("Fetch run complete")

	return result, nil
}

// runSequential fetches descriptors in order on the calling goroutine.
func (o *Orchestrator) runSequential(ctx context.Context, endpoint string, descriptors []pagination.Descriptor, policy FailurePolicy, logger zerolog.Logger) ([]Record, int, error) {
	records := make([]Record, 0, len(descriptors))
	failed := 0

	for i, d := range descriptors {
		if err := ctx.Err(); err != nil {
			return nil, failed, fmt.Errorf("sequential fetch interrupted after %d records: %w", len(records), err)
		}

		rec, err := o.fetchJob(endpoint, d)(ctx)
		if err != nil {
			if policy == PolicyAbort {
				return nil, failed, &ItemFetchError{Descriptor: d, Index: i, Completed: len(records), Err: err}
			}
			failed++
			logger.Warn().Err(err).Str("name", d.Name).Str("url", d.URL).Msg("Item fetch failed, skipping")
			continue
		}
		records = append(records, rec)
	}

	return records, failed, nil
}

// runConcurrent fetches descriptors on a pool built for this call.
func (o *Orchestrator) runConcurrent(ctx context.Context, runID, endpoint string, descriptors []pagination.Descriptor, policy FailurePolicy, logger zerolog.Logger) ([]Record, int, error) {
	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		abortOnce sync.Once
		abortErr  *ItemFetchError
		completed atomic.Int64
	)

	jobs := make([]workerpool.Job[Record], 0, len(descriptors))
	for i, d := range descriptors {
		job := o.fetchJob(endpoint, d)
		if policy == PolicyAbort {
			index, desc, fetch := i, d, job
			job = func(ctx context.Context) (Record, error) {
				rec, err := fetch(ctx)
				if err != nil {
					abortOnce.Do(func() {
						abortErr = &ItemFetchError{Descriptor: desc, Index: index, Completed: int(completed.Load()), Err: err}
						cancel()
					})
					return nil, err
				}
				completed.Add(1)
				return rec, nil
			}
		}
		jobs = append(jobs, job)
	}

	pool := workerpool.New[Record](workerpool.Config{
		Workers: o.config.Workers,
		Logger:  o.config.Logger.With().Str("run_id", runID).Logger(),
	})

	records, err := pool.RunBatch(batchCtx, jobs)
	// RunBatch has joined every worker, so abortErr is safe to read
	if abortErr != nil {
		return nil, 0, abortErr
	}
	if err != nil {
		return nil, 0, err
	}

	return records, len(descriptors) - len(records), nil
}

// fetchJob builds the job that fetches one descriptor's detail record.
func (o *Orchestrator) fetchJob(endpoint string, d pagination.Descriptor) workerpool.Job[Record] {
	return func(ctx context.Context) (Record, error) {
		detailURL, err := pagination.ResolveURL(endpoint, d.URL)
		if err != nil {
			return nil, fmt.Errorf("resolve detail url %q: %w", d.URL, err)
		}

		var rec Record
		if err := o.getter.GetJSON(ctx, detailURL, &rec); err != nil {
			return nil, err
		}
		if len(rec) == 0 {
			return nil, fmt.Errorf("%s: %w", detailURL, ErrEmptyRecord)
		}
		return rec, nil
	}
}

func (o *Orchestrator) policyFor(mode Mode) FailurePolicy {
	if o.config.Policy != PolicyFromMode {
		return o.config.Policy
	}
	return mode.FailurePolicy()
}

// ListingEndpoint joins baseURL and collection with a single slash.
func ListingEndpoint(baseURL, collection string) string {
	collection = strings.Trim(collection, "/")
	if collection == "" {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + collection
}

func outcomeFor(err error) string {
	var (
		listingErr *pagination.ListingError
		itemErr    *ItemFetchError
		orchErr    *workerpool.OrchestrationError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &listingErr):
		return "listing_error"
	case errors.As(err, &itemErr):
		return "item_error"
	case errors.As(err, &orchErr):
		return "orchestration_error"
	default:
		return "error"
	}
}
