package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c, err := New(DefaultConfig("berry-stats-test/1.0"))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("TestApp/1.0.0"),
			expectError: false,
		},
		{
			name:        "empty user agent",
			config:      DefaultConfig(""),
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name: "negative timeout",
			config: Config{
				UserAgent:      "TestApp/1.0.0",
				RequestTimeout: -time.Second,
			},
			expectError: true,
			errorMsg:    "request_timeout must be >= 0 (got -1s)",
		},
		{
			name: "zero limits fall back to defaults",
			config: Config{
				UserAgent: "TestApp/1.0.0",
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client.config.MaxResponseBytes <= 0 {
				t.Errorf("MaxResponseBytes = %d, want > 0", client.config.MaxResponseBytes)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("TestApp/1.0.0")

	if cfg.UserAgent != "TestApp/1.0.0" {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, "TestApp/1.0.0")
	}
	if cfg.RequestTimeout != 0 {
		t.Errorf("RequestTimeout = %v, want 0 (no timeout)", cfg.RequestTimeout)
	}
	if cfg.MaxIdleConnsPerHost < 10 {
		t.Errorf("MaxIdleConnsPerHost = %d, should cover the default worker count", cfg.MaxIdleConnsPerHost)
	}
}

func TestGetJSON_DecodesBodyAndSetsHeaders(t *testing.T) {
	var userAgent, accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name": "cheri", "growth_time": 3}`))
	}))
	defer server.Close()

	c := newTestClient(t)

	var got map[string]any
	if err := c.GetJSON(context.Background(), server.URL+"/berry/1", &got); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}

	if got["name"] != "cheri" {
		t.Errorf("name = %v, want cheri", got["name"])
	}
	if got["growth_time"] != float64(3) {
		t.Errorf("growth_time = %v, want 3", got["growth_time"])
	}
	if userAgent != "berry-stats-test/1.0" {
		t.Errorf("User-Agent = %q, want %q", userAgent, "berry-stats-test/1.0")
	}
	if accept != "application/json" {
		t.Errorf("Accept = %q, want application/json", accept)
	}
}

func TestGetJSON_ErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantClass  ErrorClass
		wantStatus int
	}{
		{"client error", http.StatusNotFound, `{"detail": "Not found."}`, ErrorClassClient, 404},
		{"server error", http.StatusInternalServerError, `{}`, ErrorClassServer, 500},
		{"bad json", http.StatusOK, `{"name":`, ErrorClassDecode, 200},
		{"array instead of object", http.StatusOK, `[1, 2]`, ErrorClassDecode, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t)

			var got map[string]any
			err := c.GetJSON(context.Background(), server.URL+"/x", &got)
			if err == nil {
				t.Fatal("GetJSON() expected error, got nil")
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %T is not *APIError", err)
			}
			if apiErr.ErrorClass != tt.wantClass {
				t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, tt.wantClass)
			}
			if apiErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestGetJSON_KeepsErrorBodySnippet(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantBody string
	}{
		{"short body", `{"detail": "Not found."}`, `{"detail": "Not found."}`},
		{"long body", strings.Repeat("x", 4096), strings.Repeat("x", maxErrorBodyBytes) + "..."},
		{"no body", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			var got map[string]any
			err := newTestClient(t).GetJSON(context.Background(), server.URL+"/berry/999/", &got)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("GetJSON() error = %v, want *APIError", err)
			}
			if apiErr.Body != tt.wantBody {
				t.Errorf("Body = %q (len %d), want len %d", apiErr.Body, len(apiErr.Body), len(tt.wantBody))
			}
			if tt.wantBody != "" && !strings.Contains(err.Error(), tt.wantBody[:10]) {
				t.Errorf("Error() = %q, want it to show the body", err.Error())
			}
		})
	}
}

func TestGetJSON_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(t)

	var got map[string]any
	err := c.GetJSON(context.Background(), url+"/gone", &got)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, ErrorClassNetwork)
	}
	if apiErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", apiErr.StatusCode)
	}
}

func TestGetJSON_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var got map[string]any
	err := c.GetJSON(ctx, server.URL+"/slow", &got)
	if err == nil {
		t.Fatal("GetJSON() expected error for cancelled context")
	}
	if !IsCanceled(err) {
		t.Errorf("IsCanceled(%v) = false, want true", err)
	}
}

func TestGetJSON_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := DefaultConfig("TestApp/1.0.0")
	cfg.RequestTimeout = 50 * time.Millisecond
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	var got map[string]any
	err = c.GetJSON(context.Background(), server.URL+"/slow", &got)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetJSON() error = %v, want deadline exceeded", err)
	}
}

func TestGetJSON_InvalidURL(t *testing.T) {
	c := newTestClient(t)

	var got map[string]any
	err := c.GetJSON(context.Background(), "://missing-scheme", &got)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Message != "create request" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "create request")
	}
}
