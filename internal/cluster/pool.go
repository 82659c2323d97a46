package cluster

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/gridship/gridship/internal/metrics"
)

// provisioningPool launches a batch of nodes concurrently, one task per
// node. There is no queueing beyond the batch: provisioning is a fan-out
// joined before the next phase, not a throttled worker queue.
type provisioningPool struct {
	log logr.Logger
}

// launchAll starts every node in parallel and reports per-node success.
// One node's failure never cancels or blocks its siblings. In-flight
// launches are shielded from cancellation of ctx so an interrupt cannot
// leave an instance half-requested; the orchestrator observes the
// cancellation after the join instead.
func (p provisioningPool) launchAll(ctx context.Context, nodes []*Node) map[string]bool {
	launchCtx := context.WithoutCancel(ctx)

	type launchResult struct {
		name string
		ok   bool
	}
	results := make(chan launchResult, len(nodes))

	for _, n := range nodes {
		go func() {
			results <- launchResult{name: n.Name, ok: p.launchOne(launchCtx, n)}
		}()
	}

	outcome := make(map[string]bool, len(nodes))
	for range len(nodes) {
		r := <-results
		outcome[r.name] = r.ok
	}
	return outcome
}

// launchOne starts a single node. A node that is already alive is a no-op
// success, so re-running the controller after an interrupted run does not
// double-launch instances.
func (p provisioningPool) launchOne(ctx context.Context, n *Node) bool {
	if n.IsAlive(ctx) {
		p.log.Info("not starting node which is already up and running", "node", n.Name)
		return true
	}
	if err := n.Launch(ctx); err != nil {
		p.log.Error(err, "could not start node", "node", n.Name)
		metrics.LaunchFailures.Inc()
		return false
	}
	metrics.NodesLaunched.Inc()
	return true
}
