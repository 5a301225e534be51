package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/berry-stats/pkg/fetch"
)

const (
	defaultMaxEntries = 100
	defaultRecent     = 20
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown history backend")

// Run is the metadata of one orchestration run.
type Run struct {
	ID          string        `json:"id"`
	Endpoint    string        `json:"endpoint"`
	Mode        string        `json:"mode"`
	Policy      string        `json:"policy"`
	Descriptors int           `json:"descriptors"`
	Records     int           `json:"records"`
	Failed      int           `json:"failed"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
}

// FromResult converts an orchestration result and its error into a Run.
// A nil result yields a Run with only the error set.
func FromResult(result *fetch.Result, err error) Run {
	var run Run
	if result != nil {
		run = Run{
			ID:          result.RunID,
			Endpoint:    result.Endpoint,
			Mode:        string(result.Mode),
			Policy:      result.Policy.String(),
			Descriptors: result.Descriptors,
			Records:     len(result.Records),
			Failed:      result.Failed,
			StartedAt:   result.StartedAt,
			Duration:    result.Duration,
		}
	}
	if err != nil {
		run.Error = err.Error()
	}
	return run
}

// Store persists runs.
type Store interface {
	// Save records a run.
	Save(ctx context.Context, run Run) error

	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]Run, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Backend is "none", "redis" or "sqlite".
	Backend string

	// RedisURL is a redis:// URL for the redis backend.
	RedisURL string

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string

	// MaxEntries caps the number of runs the redis backend keeps.
	MaxEntries int64
}

// Open builds the Store named by cfg.Backend and checks it is reachable.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return NopStore{}, nil
	case "redis":
		store, err := NewRedisStoreFromURL(cfg.RedisURL, cfg.MaxEntries)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRecent
	}
	return limit
}
