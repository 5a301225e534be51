package stats

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// DefaultBins is the bin count used for growth time histograms.
const DefaultBins = 10

const barWidth = 40

// Bin is one half-open interval [Lo, Hi) of a histogram. The last bin of a
// Histogram is closed on both ends.
type Bin struct {
	Lo, Hi float64
	Count  int
}

// Histogram is an equal-width histogram over the sample range.
type Histogram struct {
	Bins  []Bin
	Total int
}

// NewHistogram bins values into n equal-width bins spanning [min, max].
// When every value is equal the range is widened to [v-0.5, v+0.5].
func NewHistogram(values []float64, n int) (*Histogram, error) {
	if len(values) == 0 {
		return nil, ErrNoSamples
	}
	if n <= 0 {
		return nil, fmt.Errorf("bin count must be > 0 (got %d)", n)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	width := (hi - lo) / float64(n)
	h := &Histogram{Bins: make([]Bin, n), Total: len(values)}
	for i := range h.Bins {
		h.Bins[i].Lo = lo + float64(i)*width
		h.Bins[i].Hi = lo + float64(i+1)*width
	}
	h.Bins[n-1].Hi = hi

	for _, v := range values {
		i := int((v - lo) / width)
		if i >= n {
			i = n - 1
		}
		h.Bins[i].Count++
	}

	return h, nil
}

// WriteHistogram renders h as a text bar chart titled
// "Berry Growth Time Distribution".
func WriteHistogram(w io.Writer, h *Histogram) error {
	bw := bufio.NewWriter(w)

	maxCount := 0
	for _, b := range h.Bins {
		maxCount = max(maxCount, b.Count)
	}

	fmt.Fprintln(bw, "Berry Growth Time Distribution")
	fmt.Fprintln(bw, "Growth Time (hours) | Frequency")
	for _, b := range h.Bins {
		bar := 0
		if maxCount > 0 {
			bar = b.Count * barWidth / maxCount
		}
		fmt.Fprintf(bw, "%8.2f - %8.2f | %-*s %d\n", b.Lo, b.Hi, barWidth, strings.Repeat("#", bar), b.Count)
	}
	fmt.Fprintf(bw, "total: %d\n", h.Total)

	return bw.Flush()
}

// SaveHistogram writes the histogram to path, creating parent directories.
func SaveHistogram(path string, h *Histogram) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create histogram directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create histogram file: %w", err)
	}

	if err := WriteHistogram(f, h); err != nil {
		_ = f.Close()
		return fmt.Errorf("write histogram: %w", err)
	}
	return f.Close()
}
