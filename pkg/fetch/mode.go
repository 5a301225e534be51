package fetch

import "strings"

// Mode selects how detail records are fetched.
type Mode string

const (
	// ModeSequential fetches descriptors one at a time, in listing order.
	ModeSequential Mode = "sequential"

	// ModeConcurrent fetches descriptors on a bounded worker pool.
	ModeConcurrent Mode = "concurrent"
)

// ParseMode maps a configuration value to a Mode. Only "sequential" selects
// the sequential path; every other value, including empty, is concurrent.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeSequential)) {
		return ModeSequential
	}
	return ModeConcurrent
}

// FailurePolicy decides what a single failed detail fetch does to the run.
type FailurePolicy int

const (
	// PolicyFromMode derives the policy from the Mode (see Mode.FailurePolicy).
	PolicyFromMode FailurePolicy = iota

	// PolicyAbort stops the run at the first item failure.
	PolicyAbort

	// PolicySkip logs the failed item, leaves it out and continues.
	PolicySkip
)

// String implements fmt.Stringer.
func (p FailurePolicy) String() string {
	switch p {
	case PolicyAbort:
		return "abort"
	case PolicySkip:
		return "skip"
	default:
		return "from_mode"
	}
}

// FailurePolicy returns the policy a mode runs with: sequential aborts,
// concurrent skips.
func (m Mode) FailurePolicy() FailurePolicy {
	if m == ModeSequential {
		return PolicyAbort
	}
	return PolicySkip
}
