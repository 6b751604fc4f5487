package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SQLSTATE error classes (bounded cardinality — the first two characters
// of any errs.Kind's Code, with 42P split out of 42, per spec §7) so the
// error counter's label set
// never grows with arbitrary message text.
const (
	ClassSyntax          = "42" // syntax_error_or_access_rule_violation
	ClassConstraint      = "23" // integrity_constraint_violation
	ClassUndefinedObject = "42P" // undefined_table/column (reuses 42 prefix family)
	ClassTxnState        = "25" // invalid_transaction_state
	ClassFeature         = "0A" // feature_not_supported
	ClassProtocol        = "08" // connection/protocol exception
	ClassResource        = "53" // insufficient resources
	ClassInternal        = "XX" // internal error
	ClassOther           = "other"
)

// NormalizeSQLSTATEClass maps a SQLSTATE code to its bounded class label.
func NormalizeSQLSTATEClass(code string) string {
	switch {
	case strings.HasPrefix(code, "42P"):
		return ClassUndefinedObject
	case strings.HasPrefix(code, "42"):
		return ClassSyntax
	case strings.HasPrefix(code, "23"):
		return ClassConstraint
	case strings.HasPrefix(code, "25"):
		return ClassTxnState
	case strings.HasPrefix(code, "0A"):
		return ClassFeature
	case strings.HasPrefix(code, "08"):
		return ClassProtocol
	case strings.HasPrefix(code, "53"):
		return ClassResource
	case strings.HasPrefix(code, "XX"):
		return ClassInternal
	default:
		return ClassOther
	}
}

// Engine metrics (spec §4.9 Domain Stack: session gauge, query duration
// histogram, arena bytes gauge, hash table load factor gauge, error
// counter by SQLSTATE class).
var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mskql_active_sessions",
		Help: "Number of currently connected wire-protocol sessions",
	})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mskql_query_duration_seconds",
		Help:    "Statement execution duration in seconds, by statement kind",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	ArenaBytesInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mskql_arena_bytes_in_use",
		Help: "Bytes currently allocated from session arenas",
	})

	HashTableLoadFactor = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mskql_hash_table_load_factor",
		Help: "Most recently observed load factor of an arena-resident hash table",
	})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mskql_errors_total",
		Help: "Statement errors by SQLSTATE class",
	}, []string{"class"})

	NotifyPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mskql_notify_published_total",
		Help: "NOTIFY messages published, by channel",
	}, []string{"channel"})
)

// RecordError increments the error counter for a SQLSTATE code.
func RecordError(code string) {
	ErrorsTotal.WithLabelValues(NormalizeSQLSTATEClass(code)).Inc()
}

// RecordAPIRequest instruments one admin HTTP request (used by both the
// plain net/http and Gin middlewares in middleware.go).
var adminRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "mskql_admin_http_request_duration_ms",
	Help:    "Admin HTTP request duration in milliseconds",
	Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
}, []string{"method", "path", "status"})

func RecordAPIRequest(method, path, status string, durationMs float64) {
	adminRequests.WithLabelValues(method, path, status).Observe(durationMs)
}
