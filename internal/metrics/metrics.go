// Package metrics registers the minimal prometheus counters/gauges named
// in SPEC_FULL.md §1: full observability build-out is an explicit
// non-goal, but the hot-path counters every pack repo that imports
// prometheus/client_golang carries (erigon, Carmen, ethereum-mive-mive)
// are kept.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the counters/gauges this process exposes, registered on
// a dedicated registry rather than the global default so tests can
// construct independent instances.
type Registry struct {
	reg *prometheus.Registry

	BlocksIngested         prometheus.Counter
	BalanceRowsFlushed     prometheus.Counter
	DistributionTasksDone  prometheus.Counter
	DistributionTasksError prometheus.Counter
	ConsumerSafeHeight     prometheus.Gauge
}

// New constructs and registers the metrics this process reports.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		BlocksIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blocks_ingested_total",
			Help: "Block, microblock and rollback updates processed by the block analyzer.",
		}),
		BalanceRowsFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "balance_rows_flushed_total",
			Help: "Balance-history rows committed across all flushes.",
		}),
		DistributionTasksDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distribution_tasks_done_total",
			Help: "Distribution tasks that reached the done state.",
		}),
		DistributionTasksError: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distribution_tasks_error_total",
			Help: "Distribution tasks that reached the error state.",
		}),
		ConsumerSafeHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "consumer_safe_height",
			Help: "Current balance_history safe-height watermark.",
		}),
	}
	reg.MustRegister(
		r.BlocksIngested,
		r.BalanceRowsFlushed,
		r.DistributionTasksDone,
		r.DistributionTasksError,
		r.ConsumerSafeHeight,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format, meant
// to be mounted on the metrics_port listener (default 9090).
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
