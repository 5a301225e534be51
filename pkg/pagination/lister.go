package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/berry-stats/pkg/client"
	"github.com/Sternrassler/berry-stats/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var listingPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "berry_listing_pages_total",
	Help: "Total listing pages requested by result",
}, []string{"result"})

// ErrMaxPagesExceeded is returned when the upstream keeps indicating further
// pages after Config.MaxPages pages were read.
var ErrMaxPagesExceeded = errors.New("maximum page count exceeded")

// ErrMalformedPage is returned for a listing body that decodes as JSON but
// carries no "results" array (null, {}, or an unrelated object).
var ErrMalformedPage = errors.New("listing page has no results array")

// Descriptor identifies one fetchable detail record.
type Descriptor struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Page is one decoded listing response. A JSON null "next" decodes to "".
type Page struct {
	Results []Descriptor `json:"results"`
	Next    string       `json:"next"`
}

// wirePage distinguishes a missing or null "results" from an empty one.
type wirePage struct {
	Results *[]Descriptor `json:"results"`
	Next    string        `json:"next"`
}

// Getter is the part of the HTTP client the Lister needs.
type Getter interface {
	GetJSON(ctx context.Context, rawURL string, v any) error
}

// Config holds lister configuration.
type Config struct {
	// MaxPages stops the listing with ErrMaxPagesExceeded once this many pages
	// were read and another is still indicated. Zero disables the limit.
	MaxPages int

	// Logger receives per-page events.
	Logger zerolog.Logger
}

// DefaultConfig returns an unbounded configuration.
func DefaultConfig() Config {
	return Config{
		MaxPages: 0,
		Logger:   zerolog.Nop(),
	}
}

// Lister accumulates descriptors across all pages of a listing endpoint.
type Lister struct {
	getter Getter
	config Config
	logger zerolog.Logger
}

// NewLister creates a new Lister.
func NewLister(getter Getter, config Config) *Lister {
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}

	return &Lister{
		getter: getter,
		config: config,
		logger: logging.NewLogger(config.Logger, "lister"),
	}
}

// List returns every descriptor reachable from endpoint, in page-visit order.
func (l *Lister) List(ctx context.Context, endpoint string) ([]Descriptor, error) {
	start := time.Now()

	var descriptors []Descriptor
	pageURL := endpoint

	for pageNum := 1; ; pageNum++ {
		var wire wirePage
		if err := l.getter.GetJSON(ctx, pageURL, &wire); err != nil {
			listingPagesTotal.WithLabelValues("error").Inc()
			return nil, &ListingError{
				URL:        pageURL,
				Page:       pageNum,
				StatusCode: client.StatusCode(err),
				Body:       client.ResponseBody(err),
				Err:        err,
			}
		}
		if wire.Results == nil {
			listingPagesTotal.WithLabelValues("error").Inc()
			return nil, &ListingError{
				URL:        pageURL,
				Page:       pageNum,
				StatusCode: http.StatusOK,
				Err:        ErrMalformedPage,
			}
		}
		listingPagesTotal.WithLabelValues("ok").Inc()

		page := Page{Results: *wire.Results, Next: wire.Next}

		descriptors = append(descriptors, page.Results...)

		l.logger.Debug().
			Str("url", pageURL).
			Int("page", pageNum).
			Int("items", len(page.Results)).
			Msg("Listing page decoded")

		if page.Next == "" {
			break
		}

		if l.config.MaxPages > 0 && pageNum >= l.config.MaxPages {
			return nil, &ListingError{
				URL:  page.Next,
				Page: pageNum + 1,
				Err:  fmt.Errorf("%w (%d)", ErrMaxPagesExceeded, l.config.MaxPages),
			}
		}

		next, err := ResolveURL(pageURL, page.Next)
		if err != nil {
			return nil, &ListingError{
				URL:  page.Next,
				Page: pageNum + 1,
				Err:  fmt.Errorf("invalid next link: %w", err),
			}
		}
		pageURL = next
	}

	l.logger.Info().
		Str("endpoint", endpoint).
		Int("descriptors", len(descriptors)).
		Dur("duration", time.Since(start)).
		Msg("Listing complete")

	return descriptors, nil
}

// ResolveURL interprets ref relative to base; absolute refs are returned unchanged.
func ResolveURL(base, ref string) (string, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if refURL.IsAbs() {
		return ref, nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
