package history

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HistoryWrites tracks Save calls by backend and result
	HistoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "berry_history_writes_total",
			Help: "Total number of run history writes",
		},
		[]string{"backend", "result"}, // "ok", "error"
	)

	// HistoryErrors tracks store operation errors
	HistoryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "berry_history_errors_total",
			Help: "Total number of run history operation errors",
		},
		[]string{"backend", "operation"}, // "save", "recent", "ping"
	)
)
