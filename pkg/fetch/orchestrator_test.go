package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/berry-stats/internal/testutil"
	"github.com/Sternrassler/berry-stats/pkg/client"
	"github.com/Sternrassler/berry-stats/pkg/pagination"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	c, err := client.New(client.DefaultConfig("berry-stats-test/1.0"))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// setupABC serves a single listing page with items A, B and C whose detail
// URLs are relative to the server root.
func setupABC(mock *testutil.MockAPI) {
	mock.SetListing("/berry", 0, []testutil.ListItem{
		{Name: "A", URL: "/A"},
		{Name: "B", URL: "/B"},
		{Name: "C", URL: "/C"},
	})
	for _, name := range []string{"A", "B", "C"} {
		mock.SetResponse("/"+name, testutil.NewJSONResponse(fmt.Sprintf(`{"name": %q}`, name)))
	}
}

func names(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		name, _ := r["name"].(string)
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func TestFetchAll_SinglePage(t *testing.T) {
	for _, mode := range []Mode{ModeSequential, ModeConcurrent} {
		t.Run(string(mode), func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			setupABC(mock)

			got, err := New(newTestClient(t), DefaultConfig()).FetchAll(context.Background(), mock.URL(), mode)
			if err != nil {
				t.Fatalf("FetchAll() error = %v", err)
			}

			if want := []string{"A", "B", "C"}; strings.Join(names(got), ",") != strings.Join(want, ",") {
				t.Errorf("FetchAll() names = %v, want %v", names(got), want)
			}
			if n := mock.GetPathCount("/berry"); n != 1 {
				t.Errorf("listing requested %d times, want 1", n)
			}
		})
	}
}

func TestFetchAll_TwoPages(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	berries := make([]testutil.Berry, 0, 25)
	for i := 0; i < 25; i++ {
		berries = append(berries, testutil.Berry{Name: fmt.Sprintf("berry%02d", i), GrowthTime: i + 1})
	}
	mock.SetBerries(20, berries...)

	got, err := New(newTestClient(t), DefaultConfig()).FetchAll(context.Background(), mock.URL(), ModeConcurrent)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	// page1 (20) + page2 (5)
	if len(got) != 25 {
		t.Errorf("FetchAll() returned %d records, want 25", len(got))
	}
	if n := mock.GetPathCount("/berry"); n != 2 {
		t.Errorf("listing requested %d times, want 2", n)
	}
}

func TestFetchAll_OneItemFails(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	setupABC(mock)
	mock.SetResponse("/B", testutil.NewServerErrorResponse())

	t.Run("concurrent drops the failed item", func(t *testing.T) {
		buf := &bytes.Buffer{}
		cfg := DefaultConfig()
		cfg.Logger = zerolog.New(buf)

		got, err := New(newTestClient(t), cfg).FetchAll(context.Background(), mock.URL(), ModeConcurrent)
		if err != nil {
			t.Fatalf("FetchAll() error = %v, want nil", err)
		}
		if want := "A,C"; strings.Join(names(got), ",") != want {
			t.Errorf("FetchAll() names = %v, want [A C]", names(got))
		}
		if !strings.Contains(buf.String(), "Job failed, dropping result") {
			t.Errorf("expected the dropped item to be logged, got %q", buf.String())
		}
		for _, field := range []string{`"component":"worker-pool"`, `"component":"orchestrator"`, `"run_id":`} {
			if !strings.Contains(buf.String(), field) {
				t.Errorf("log output missing %s", field)
			}
		}
		if strings.Count(buf.String(), `"component"`) != strings.Count(buf.String(), "\n") {
			t.Errorf("every event should carry exactly one component field, got %q", buf.String())
		}
	})

	t.Run("sequential aborts", func(t *testing.T) {
		mock.Reset()

		got, err := New(newTestClient(t), DefaultConfig()).FetchAll(context.Background(), mock.URL(), ModeSequential)
		if got != nil {
			t.Errorf("FetchAll() returned %d records, want none", len(got))
		}

		var itemErr *ItemFetchError
		if !errors.As(err, &itemErr) {
			t.Fatalf("FetchAll() error = %v, want *ItemFetchError", err)
		}
		if itemErr.Descriptor.Name != "B" || itemErr.Index != 1 || itemErr.Completed != 1 {
			t.Errorf("ItemFetchError = %+v, want B at index 1 after 1 record", itemErr)
		}
		if client.StatusCode(err) != http.StatusInternalServerError {
			t.Errorf("StatusCode(err) = %d, want 500", client.StatusCode(err))
		}
		if mock.GetPathCount("/C") != 0 {
			t.Error("sequential run should stop before fetching C")
		}
	})
}

func TestRun_PolicyOverride(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	setupABC(mock)
	mock.SetResponse("/A", testutil.NewNotFoundResponse())

	t.Run("sequential with skip", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Policy = PolicySkip

		result, err := New(newTestClient(t), cfg).Run(context.Background(), mock.URL(), ModeSequential)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if result.Policy != PolicySkip {
			t.Errorf("Policy = %v, want skip", result.Policy)
		}
		if len(result.Records) != 2 || result.Failed != 1 || result.Descriptors != 3 {
			t.Errorf("Run() records=%d failed=%d descriptors=%d, want 2/1/3",
				len(result.Records), result.Failed, result.Descriptors)
		}
	})

	t.Run("concurrent with abort", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Policy = PolicyAbort
		cfg.Workers = 1

		result, err := New(newTestClient(t), cfg).Run(context.Background(), mock.URL(), ModeConcurrent)

		var itemErr *ItemFetchError
		if !errors.As(err, &itemErr) {
			t.Fatalf("Run() error = %v, want *ItemFetchError", err)
		}
		if itemErr.Descriptor.Name != "A" {
			t.Errorf("failed descriptor = %q, want A", itemErr.Descriptor.Name)
		}
		if result == nil || result.Records != nil {
			t.Errorf("Run() result = %+v, want metadata without records", result)
		}
	})
}

func TestFetchAll_SingleWorkerMatchesSequential(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetBerries(4,
		testutil.Berry{Name: "cheri", GrowthTime: 3},
		testutil.Berry{Name: "chesto", GrowthTime: 3},
		testutil.Berry{Name: "pecha", GrowthTime: 3},
		testutil.Berry{Name: "rawst", GrowthTime: 3},
		testutil.Berry{Name: "aspear", GrowthTime: 3},
		testutil.Berry{Name: "leppa", GrowthTime: 4},
	)

	httpClient := newTestClient(t)

	seq, err := New(httpClient, DefaultConfig()).FetchAll(context.Background(), mock.URL(), ModeSequential)
	if err != nil {
		t.Fatalf("sequential FetchAll() error = %v", err)
	}

	cfg := DefaultConfig()
	cfg.Workers = 1
	conc, err := New(httpClient, cfg).FetchAll(context.Background(), mock.URL(), ModeConcurrent)
	if err != nil {
		t.Fatalf("concurrent FetchAll() error = %v", err)
	}

	if strings.Join(names(seq), ",") != strings.Join(names(conc), ",") {
		t.Errorf("sequential %v != concurrent %v", names(seq), names(conc))
	}
	if mock.GetMaxInFlight() != 1 {
		t.Errorf("max in-flight = %d, want 1", mock.GetMaxInFlight())
	}
}

func TestFetchAll_BoundsConcurrency(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	items := make([]testutil.ListItem, 0, 12)
	for i := 0; i < 12; i++ {
		path := fmt.Sprintf("/item/%d/", i)
		items = append(items, testutil.ListItem{Name: fmt.Sprint(i), URL: path})
		resp := testutil.NewJSONResponse(fmt.Sprintf(`{"name": "%d"}`, i))
		resp.Delay = 20 * time.Millisecond
		mock.SetResponse(path, resp)
	}
	mock.SetListing("/berry", 0, items)

	cfg := DefaultConfig()
	cfg.Workers = 3

	got, err := New(newTestClient(t), cfg).FetchAll(context.Background(), mock.URL(), ModeConcurrent)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(got) != 12 {
		t.Errorf("FetchAll() returned %d records, want 12", len(got))
	}
	// listing is done before the pool starts, so only detail requests overlap
	if m := mock.GetMaxInFlight(); m > 3 {
		t.Errorf("max in-flight = %d, want <= 3", m)
	}
}

func TestFetchAll_ListingErrorPropagates(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/berry", testutil.NewServerErrorResponse())

	before := promtest.ToFloat64(fetchRunsTotal.WithLabelValues(string(ModeConcurrent), "listing_error"))

	_, err := New(newTestClient(t), DefaultConfig()).FetchAll(context.Background(), mock.URL(), ModeConcurrent)

	var listingErr *pagination.ListingError
	if !errors.As(err, &listingErr) {
		t.Fatalf("FetchAll() error = %v, want *ListingError", err)
	}
	if listingErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", listingErr.StatusCode)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("requests = %d, want 1 (no detail fetches after listing failure)", mock.GetRequestCount())
	}

	after := promtest.ToFloat64(fetchRunsTotal.WithLabelValues(string(ModeConcurrent), "listing_error"))
	if after-before != 1 {
		t.Errorf("listing_error runs delta = %v, want 1", after-before)
	}
}

func TestFetchAll_EmptyListing(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetListing("/berry", 0, nil)

	for _, mode := range []Mode{ModeSequential, ModeConcurrent} {
		got, err := New(newTestClient(t), DefaultConfig()).FetchAll(context.Background(), mock.URL(), mode)
		if err != nil {
			t.Fatalf("%s FetchAll() error = %v", mode, err)
		}
		if len(got) != 0 {
			t.Errorf("%s FetchAll() returned %d records, want 0", mode, len(got))
		}
	}
}

func TestFetchAll_EmptyDetailIsFailure(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	setupABC(mock)
	mock.SetResponse("/C", testutil.NewJSONResponse(`{}`))

	_, err := New(newTestClient(t), DefaultConfig()).FetchAll(context.Background(), mock.URL(), ModeSequential)
	if !errors.Is(err, ErrEmptyRecord) {
		t.Errorf("FetchAll() error = %v, want ErrEmptyRecord", err)
	}
}

func TestFetchAll_Canceled(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	setupABC(mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, mode := range []Mode{ModeSequential, ModeConcurrent} {
		_, err := New(newTestClient(t), DefaultConfig()).FetchAll(ctx, mock.URL(), mode)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("%s FetchAll() error = %v, want context.Canceled", mode, err)
		}
	}
}

func TestListingEndpoint(t *testing.T) {
	tests := []struct {
		base, collection, want string
	}{
		{"https://pokeapi.co/api/v2", "berry", "https://pokeapi.co/api/v2/berry"},
		{"https://pokeapi.co/api/v2/", "/berry/", "https://pokeapi.co/api/v2/berry"},
		{"https://pokeapi.co/api/v2/berry", "", "https://pokeapi.co/api/v2/berry"},
	}

	for _, tt := range tests {
		if got := ListingEndpoint(tt.base, tt.collection); got != tt.want {
			t.Errorf("ListingEndpoint(%q, %q) = %q, want %q", tt.base, tt.collection, got, tt.want)
		}
	}
}
