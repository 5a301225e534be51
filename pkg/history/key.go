package history

import "strings"

// Key names the redis list a RedisStore writes to.
type Key struct {
	// Namespace separates deployments sharing one redis (e.g. "staging")
	Namespace string
}

// String generates the list key.
// Format: berry-stats:runs[:namespace]
//
// Example:
//
//	berry-stats:runs:staging
func (k Key) String() string {
	parts := []string{"berry-stats", "runs"}

	if ns := strings.Trim(k.Namespace, ": "); ns != "" {
		parts = append(parts, ns)
	}

	return strings.Join(parts, ":")
}
