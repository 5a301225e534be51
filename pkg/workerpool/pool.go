// Package workerpool runs batches of independent jobs on a bounded set of
// worker goroutines and collects results in completion order.
//
// A Pool is built for one batch and torn down before RunBatch returns:
//
//	pool := workerpool.New[Record](workerpool.Config{Workers: 10, Logger: logger})
//	results, err := pool.RunBatch(ctx, jobs)
//
// Jobs that return an error are logged and dropped. Jobs that panic are
// recovered and counted as faults; the batch fails only when every job faulted.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/berry-stats/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for batch execution.
var (
	poolJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "berry_pool_jobs_total",
		Help: "Total pool jobs by outcome (ok, failed, fault, skipped)",
	}, []string{"outcome"})

	poolActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "berry_pool_active_jobs",
		Help: "Number of jobs currently executing across all pools",
	})

	poolTeardownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "berry_pool_teardowns_total",
		Help: "Total number of worker pool teardowns",
	})

	poolBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "berry_pool_batch_duration_seconds",
		Help:    "Duration of RunBatch calls in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

const defaultWorkers = 10

var (
	// ErrPoolClosed is returned when RunBatch is called on a pool that already ran.
	ErrPoolClosed = errors.New("worker pool already used")

	// ErrAllJobsFaulted is wrapped by OrchestrationError when no job of a
	// non-empty batch completed without panicking.
	ErrAllJobsFaulted = errors.New("all jobs faulted")
)

// Job is a unit of work. It should honour ctx for cancellation.
type Job[T any] func(ctx context.Context) (T, error)

// Config holds pool configuration.
type Config struct {
	// Workers is the maximum number of jobs executing at once.
	Workers int

	// Logger receives job and lifecycle events.
	Logger zerolog.Logger
}

// DefaultConfig returns the default configuration (10 workers).
func DefaultConfig() Config {
	return Config{
		Workers: defaultWorkers,
		Logger:  zerolog.Nop(),
	}
}

// task pairs a job with its submission index.
type task[T any] struct {
	index int
	job   Job[T]
}

// outcome is what a worker reports for one task.
type outcome[T any] struct {
	index    int
	workerID int
	value    T
	err      error
	fault    bool
	skipped  bool
}

// Pool is a single-use, fixed-size set of workers.
type Pool[T any] struct {
	config Config
	logger zerolog.Logger
	used   atomic.Bool

	teardownOnce sync.Once
	stop         chan struct{}
	wg           sync.WaitGroup
}

// New creates a pool. Workers <= 0 falls back to the default of 10.
func New[T any](config Config) *Pool[T] {
	if config.Workers <= 0 {
		config.Workers = defaultWorkers
	}

	return &Pool[T]{
		config: config,
		logger: logging.NewLogger(config.Logger, "worker-pool"),
		stop:   make(chan struct{}),
	}
}

// Workers returns the configured worker count.
func (p *Pool[T]) Workers() int {
	return p.config.Workers
}

// RunBatch executes jobs with at most Workers running concurrently and returns
// the successful results in completion order. The pool's goroutines have all
// exited by the time RunBatch returns, whatever the outcome.
func (p *Pool[T]) RunBatch(ctx context.Context, jobs []Job[T]) (results []T, err error) {
	if !p.used.CompareAndSwap(false, true) {
		return nil, ErrPoolClosed
	}

	start := time.Now()
	defer p.teardown()
	defer func() {
		poolBatchDuration.Observe(time.Since(start).Seconds())
	}()

	if len(jobs) == 0 {
		return []T{}, nil
	}

	workers := p.config.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	queue := make(chan task[T])
	// sized to the batch so workers never block on send
	completed := make(chan outcome[T], len(jobs))

	p.wg.Add(1)
	go p.feed(queue, jobs)

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i, queue, completed)
	}

	p.logger.Debug().
		Int("jobs", len(jobs)).
		Int("workers", workers).
		Msg("Batch started")

	results = make([]T, 0, len(jobs))
	var failed, faults, skipped int

	for received := 0; received < len(jobs); received++ {
		var o outcome[T]
		select {
		case o = <-completed:
		case <-ctx.Done():
			p.logger.Error().
				Err(ctx.Err()).
				Int("completed", received).
				Int("jobs", len(jobs)).
				Msg("Batch collection interrupted")
			return nil, &OrchestrationError{
				Jobs:      len(jobs),
				Completed: received,
				Err:       ctx.Err(),
			}
		}

		switch {
		case o.skipped:
			skipped++
			poolJobsTotal.WithLabelValues("skipped").Inc()
		case o.fault:
			faults++
			poolJobsTotal.WithLabelValues("fault").Inc()
			p.logger.Error().
				Err(o.err).
				Int("job", o.index).
				Int("worker_id", o.workerID).
				Msg("Job fault recovered")
		case o.err != nil:
			failed++
			poolJobsTotal.WithLabelValues("failed").Inc()
			p.logger.Warn().
				Err(o.err).
				Int("job", o.index).
				Int("worker_id", o.workerID).
				Msg("Job failed, dropping result")
		default:
			poolJobsTotal.WithLabelValues("ok").Inc()
			results = append(results, o.value)
		}
	}

	if skipped > 0 {
		// cancellation raced the last completions; report it like an interrupted collection
		return nil, &OrchestrationError{
			Jobs:      len(jobs),
			Completed: len(jobs) - skipped,
			Err:       ctx.Err(),
		}
	}

	if faults == len(jobs) {
		return nil, &OrchestrationError{
			Jobs:      len(jobs),
			Completed: len(jobs),
			Faults:    faults,
			Err:       ErrAllJobsFaulted,
		}
	}

	if failed+faults > 0 {
		p.logger.Warn().
			Int("failed", failed).
			Int("faults", faults).
			Int("results", len(results)).
			Int("jobs", len(jobs)).
			Msg("Batch completed with dropped jobs")
	} else {
		p.logger.Debug().
			Int("results", len(results)).
			Dur("duration", time.Since(start)).
			Msg("Batch completed")
	}

	return results, nil
}

// feed hands jobs to workers until the batch is exhausted or the pool stops.
func (p *Pool[T]) feed(queue chan<- task[T], jobs []Job[T]) {
	defer p.wg.Done()
	defer close(queue)

	for i, job := range jobs {
		select {
		case queue <- task[T]{index: i, job: job}:
		case <-p.stop:
			return
		}
	}
}

// worker executes queued tasks until the queue is closed.
func (p *Pool[T]) worker(ctx context.Context, workerID int, queue <-chan task[T], completed chan<- outcome[T]) {
	defer p.wg.Done()
	jobsProcessed := 0

	for t := range queue {
		if ctx.Err() != nil {
			completed <- outcome[T]{index: t.index, workerID: workerID, err: ctx.Err(), skipped: true}
			continue
		}

		completed <- p.execute(ctx, workerID, t)
		jobsProcessed++
	}

	p.logger.Debug().
		Int("worker_id", workerID).
		Int("jobs_processed", jobsProcessed).
		Msg("Worker stopped")
}

// execute runs one job, converting a panic into a fault outcome.
func (p *Pool[T]) execute(ctx context.Context, workerID int, t task[T]) (o outcome[T]) {
	o.index = t.index
	o.workerID = workerID

	poolActiveJobs.Inc()
	defer poolActiveJobs.Dec()

	defer func() {
		if r := recover(); r != nil {
			o.fault = true
			o.err = fmt.Errorf("job %d panicked: %v\n%s", t.index, r, debug.Stack())
		}
	}()

	o.value, o.err = t.job(ctx)
	return o
}

// teardown stops the feeder and waits for every goroutine to exit. It runs at
// most once per pool.
func (p *Pool[T]) teardown() {
	p.teardownOnce.Do(func() {
		close(p.stop)
		p.wg.Wait()
		poolTeardownsTotal.Inc()
		p.logger.Debug().Msg("Worker pool shut down")
	})
}
