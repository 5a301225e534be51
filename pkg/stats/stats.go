// Package stats summarizes berry growth times: extremes with their owners,
// median, sample variance, mean and sample count.
package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

var (
	// ErrNoSamples is returned when there is nothing to summarize.
	ErrNoSamples = errors.New("no samples")

	// ErrInsufficientData is returned when the sample variance is undefined
	// (fewer than two samples).
	ErrInsufficientData = errors.New("variance requires at least two data points")
)

// Sample is one berry's name and growth time in hours.
type Sample struct {
	Name       string
	GrowthTime float64
}

// Summary holds the computed statistics.
type Summary struct {
	Names     []string
	Min       float64
	MinName   string
	Max       float64
	MaxName   string
	Median    float64
	Variance  float64
	Mean      float64
	Frequency int
}

// Samples extracts name and growth_time from decoded detail records.
func Samples[R ~map[string]any](records []R) ([]Sample, error) {
	samples := make([]Sample, 0, len(records))
	for i, r := range records {
		name, ok := r["name"].(string)
		if !ok {
			return nil, fmt.Errorf("record %d: missing or non-string \"name\"", i)
		}

		var growth float64
		switch v := r["growth_time"].(type) {
		case float64:
			growth = v
		case int:
			growth = float64(v)
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("record %d (%s): growth_time: %w", i, name, err)
			}
			growth = f
		default:
			return nil, fmt.Errorf("record %d (%s): missing or non-numeric \"growth_time\"", i, name)
		}

		samples = append(samples, Sample{Name: name, GrowthTime: growth})
	}
	return samples, nil
}

// Compute summarizes samples. Names keep input order; on tied extremes the
// first sample wins.
func Compute(samples []Sample) (*Summary, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if len(samples) < 2 {
		return nil, ErrInsufficientData
	}

	s := &Summary{
		Names:     make([]string, 0, len(samples)),
		Min:       math.Inf(1),
		Max:       math.Inf(-1),
		Frequency: len(samples),
	}

	values := make([]float64, 0, len(samples))
	var sum float64
	for _, sample := range samples {
		s.Names = append(s.Names, sample.Name)
		if sample.GrowthTime < s.Min {
			s.Min, s.MinName = sample.GrowthTime, sample.Name
		}
		if sample.GrowthTime > s.Max {
			s.Max, s.MaxName = sample.GrowthTime, sample.Name
		}
		values = append(values, sample.GrowthTime)
		sum += sample.GrowthTime
	}

	s.Mean = sum / float64(len(values))
	s.Median = median(values)

	var sq float64
	for _, v := range values {
		d := v - s.Mean
		sq += d * d
	}
	s.Variance = sq / float64(len(values)-1)

	return s, nil
}

// median sorts a copy of values.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Report is the JSON shape served by the stats endpoint.
type Report struct {
	BerriesNames        []string `json:"berries_names"`
	MinGrowthTime       string   `json:"min_growth_time"`
	MedianGrowthTime    string   `json:"median_growth_time"`
	MaxGrowthTime       string   `json:"max_growth_time"`
	VarianceGrowthTime  string   `json:"variance_growth_time"`
	MeanGrowthTime      string   `json:"mean_growth_time"`
	FrequencyGrowthTime string   `json:"frequency_growth_time"`
}

// Report renders the summary as sentences.
func (s *Summary) Report() Report {
	return Report{
		BerriesNames:        s.Names,
		MinGrowthTime:       fmt.Sprintf("The minimum growth time is %s hours. It belongs to the %s berry.", formatFloat(s.Min), s.MinName),
		MedianGrowthTime:    fmt.Sprintf("The median growth time is %s hours.", formatFloat(s.Median)),
		MaxGrowthTime:       fmt.Sprintf("The maximum growth time is %s hours. It belongs to the %s berry.", formatFloat(s.Max), s.MaxName),
		VarianceGrowthTime:  fmt.Sprintf("The variance of the growth time is %s.", formatFloat(s.Variance)),
		MeanGrowthTime:      fmt.Sprintf("The mean growth time of all berries is %s hours.", formatFloat(s.Mean)),
		FrequencyGrowthTime: fmt.Sprintf("The frequency of growth time is %d.", s.Frequency),
	}
}

// GrowthTimes returns the values the summary was computed from, in input order.
func GrowthTimes(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.GrowthTime
	}
	return out
}

// formatFloat prints the shortest representation that round-trips.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
