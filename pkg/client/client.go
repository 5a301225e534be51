// Package client provides the HTTP client used to talk to the upstream JSON API,
// with error classification, response size limits and request metrics.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/berry-stats/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for upstream requests.
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "berry_http_requests_total",
		Help: "Total upstream requests by host and status",
	}, []string{"host", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "berry_http_request_duration_seconds",
		Help:    "Upstream request duration in seconds by host",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"host"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "berry_http_errors_total",
		Help: "Total upstream request failures by class",
	}, []string{"class"})
)

const (
	defaultMaxIdleConnsPerHost = 10
	defaultMaxResponseBytes    = 10 << 20 // 10MB
	defaultIdleConnTimeout     = 60 * time.Second

	// maxErrorBodyBytes bounds the response body kept on APIError.
	maxErrorBodyBytes = 512
)

// Client performs GET requests against the upstream API and decodes JSON bodies.
// It is safe for concurrent use by multiple goroutines.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// User-Agent header sent with every request
	UserAgent string

	// RequestTimeout bounds a single request. Zero means no timeout; callers can
	// still cancel through the request context.
	RequestTimeout time.Duration

	// MaxIdleConnsPerHost sizes the keep-alive pool. It should be at least the
	// worker count so concurrent fetches reuse connections.
	MaxIdleConnsPerHost int

	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes int64

	// Logger receives request events.
	Logger zerolog.Logger
}

// DefaultConfig returns a default configuration with no request timeout.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:           userAgent,
		RequestTimeout:      0,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		MaxResponseBytes:    defaultMaxResponseBytes,
		Logger:              zerolog.Nop(),
	}
}

// New creates a new Client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.RequestTimeout < 0 {
		return nil, fmt.Errorf("request_timeout must be >= 0 (got %s)", cfg.RequestTimeout)
	}

	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}

	return &Client{
		httpClient: &http.Client{
			// no client-wide timeout, see Config.RequestTimeout
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        cfg.MaxIdleConnsPerHost * 2,
				MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		config: cfg,
		logger: logging.NewLogger(cfg.Logger, "http-client"),
	}, nil
}

// Do executes req with the configured headers and records metrics.
// Transport failures are returned as *APIError with ErrorClassNetwork; any
// received response is returned as-is regardless of status.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	host := req.URL.Host

	startTime := time.Now()
	defer func() {
		httpRequestDuration.WithLabelValues(host).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("Executing upstream request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		httpErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		httpRequestsTotal.WithLabelValues(host, "network_error").Inc()
		c.logger.Debug().Err(err).Str("url", req.URL.String()).Msg("Upstream request failed")
		return nil, &APIError{
			URL:        req.URL.String(),
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}

	httpRequestsTotal.WithLabelValues(host, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

// GetJSON performs a GET on rawURL and decodes the JSON body into v.
// Every failure is returned as *APIError.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	if c.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &APIError{
			URL:        rawURL,
			ErrorClass: ErrorClassClient,
			Message:    "create request",
			Err:        err,
		}
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if class := classifyStatus(resp.StatusCode); class != "" {
		httpErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Debug().
			Str("url", rawURL).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Upstream returned error status")
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes+1))
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.config.MaxResponseBytes))
		return &APIError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    resp.Status,
			Body:       bodySnippet(snippet),
			Err:        ErrUnexpectedStatus,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes))
	if err != nil {
		httpErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return &APIError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	if err := json.Unmarshal(body, v); err != nil {
		httpErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return &APIError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "decode response body",
			Err:        err,
		}
	}

	return nil
}

// bodySnippet trims b and marks it when it was cut at maxErrorBodyBytes.
func bodySnippet(b []byte) string {
	truncated := len(b) > maxErrorBodyBytes
	if truncated {
		b = b[:maxErrorBodyBytes]
	}
	s := strings.TrimSpace(strings.ToValidUTF8(string(b), ""))
	if truncated {
		s += "..."
	}
	return s
}

// IsCanceled reports whether err was caused by context cancellation or deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Close releases idle connections held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
