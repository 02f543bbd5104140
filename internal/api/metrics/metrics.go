// Package metrics defines and registers all custom Prometheus metrics for the
// access-control service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry through promauto
// at package initialisation; the /metrics endpoint exposes them together with
// the HTTP metrics collected by echoprometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "access_control"

// ── Authentication ────────────────────────────────────────────────────────────

// SignInsTotal counts sign-in attempts.
// Label:
//   - result: "success", "invalid_credentials" or "error"
var SignInsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sign_ins_total",
		Help:      "Total number of sign-in attempts, by result.",
	},
	[]string{"result"},
)

// TokenRefreshesTotal counts refresh attempts.
// Label:
//   - result: "success", "invalid_token" or "error"
var TokenRefreshesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refreshes_total",
		Help:      "Total number of token refresh attempts, by result.",
	},
	[]string{"result"},
)

// GateDecisionsTotal counts access decisions.
// Labels:
//   - gate: "global" or "tenant"
//   - decision: "allowed", "unauthorized", "forbidden", "bad_request"
var GateDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Total number of access gate decisions, by gate and outcome.",
	},
	[]string{"gate", "decision"},
)

// ── Role cache ────────────────────────────────────────────────────────────────

// RoleCacheLookupsTotal counts forward-index reads.
// Labels:
//   - scope: "global" or "tenant"
//   - result: "hit", "miss" or "error"
var RoleCacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_cache_lookups_total",
		Help:      "Total number of role cache lookups, labelled by scope kind and result.",
	},
	[]string{"scope", "result"},
)

// RoleCacheInvalidationsTotal counts invalidations.
// Label:
//   - kind: "user" or "role"
var RoleCacheInvalidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_cache_invalidations_total",
		Help:      "Total number of role cache invalidations, by kind.",
	},
	[]string{"kind"},
)

// ── Invalidation queue ────────────────────────────────────────────────────────

// InvalidationJobsEnqueuedTotal counts jobs produced by role-level fan-out.
var InvalidationJobsEnqueuedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invalidation_jobs_enqueued_total",
		Help:      "Total number of per-user invalidation jobs enqueued.",
	},
)

// InvalidationJobsTotal counts job outcomes.
// Label:
//   - result: "succeeded", "retried" or "failed"
var InvalidationJobsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invalidation_jobs_total",
		Help:      "Total number of processed invalidation jobs, by result.",
	},
	[]string{"result"},
)

// InvalidationQueueDepth tracks jobs waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var InvalidationQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "invalidation_queue_depth",
		Help:      "Current number of jobs pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// InvalidationJobDuration measures a single job attempt.
var InvalidationJobDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "invalidation_job_duration_seconds",
		Help:      "Duration of a single invalidation job attempt.",
		Buckets:   prometheus.DefBuckets,
	},
)

// ScopeLabel collapses a scope key into a low-cardinality label.
func ScopeLabel(scope string) string {
	if scope == "global" {
		return "global"
	}
	return "tenant"
}
