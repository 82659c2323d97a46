// Package metrics exposes Prometheus counters for cluster lifecycle
// operations. Counters register against the default registry; Handler
// serves them for scraping during long-running commands.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// NodesLaunched counts instances successfully requested from the cloud.
	NodesLaunched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gridship",
		Name:      "nodes_launched_total",
		Help:      "Number of cloud instances launched.",
	})

	// LaunchFailures counts launch requests rejected by the cloud.
	LaunchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gridship",
		Name:      "node_launch_failures_total",
		Help:      "Number of cloud instance launch failures.",
	})

	// NodesTerminated counts termination requests issued.
	NodesTerminated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gridship",
		Name:      "nodes_terminated_total",
		Help:      "Number of cloud instances terminated.",
	})

	// NodesEvicted counts nodes removed from their group after missing a
	// startup deadline.
	NodesEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gridship",
		Name:      "nodes_evicted_total",
		Help:      "Number of nodes evicted for missing a startup deadline.",
	})
)

// Handler returns an HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
