package cluster

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridship/gridship/internal/provider"
)

func TestPoolLaunchAll_AlreadyAliveIsNoOp(t *testing.T) {
	var mu sync.Mutex
	starts := 0
	cloud := &provider.MockCloud{
		StartInstanceFunc: func(context.Context, provider.LaunchSpec) (string, error) {
			mu.Lock()
			starts++
			mu.Unlock()
			return "i-new", nil
		},
		IsInstanceRunningFunc: func(context.Context, string) (bool, error) {
			return true, nil
		},
	}

	running := newTestNode(cloud, nil)
	running.InstanceID = "i-already"

	pool := provisioningPool{log: logr.Discard()}
	outcome := pool.launchAll(context.Background(), []*Node{running})

	assert.True(t, outcome["worker001"])
	assert.Zero(t, starts, "a node that is already alive must not be launched again")
	assert.Equal(t, "i-already", running.InstanceID)
}

func TestPoolLaunchAll_FailureDoesNotBlockSiblings(t *testing.T) {
	cloud := &provider.MockCloud{
		StartInstanceFunc: func(_ context.Context, spec provider.LaunchSpec) (string, error) {
			if spec.NodeName == "worker002" {
				return "", errors.New("quota exceeded")
			}
			return "i-" + spec.NodeName, nil
		},
	}

	nodes := make([]*Node, 0, 3)
	for _, name := range []string{"worker001", "worker002", "worker003"} {
		n := newTestNode(cloud, nil)
		n.Name = name
		nodes = append(nodes, n)
	}

	pool := provisioningPool{log: logr.Discard()}
	outcome := pool.launchAll(context.Background(), nodes)

	require.Len(t, outcome, 3)
	assert.True(t, outcome["worker001"])
	assert.False(t, outcome["worker002"])
	assert.True(t, outcome["worker003"])
	assert.Equal(t, "i-worker001", nodes[0].InstanceID)
	assert.Empty(t, nodes[1].InstanceID)
	assert.Equal(t, "i-worker003", nodes[2].InstanceID)
}

func TestPoolLaunchAll_InFlightLaunchesSurviveCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	launched := false
	cloud := &provider.MockCloud{
		StartInstanceFunc: func(ctx context.Context, _ provider.LaunchSpec) (string, error) {
			// The pool shields launches from cancellation; the orchestrator
			// observes the interrupt after the join.
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			launched = true
			return "i-123", nil
		},
	}
	n := newTestNode(cloud, nil)

	pool := provisioningPool{log: logr.Discard()}
	outcome := pool.launchAll(ctx, []*Node{n})

	assert.True(t, outcome["worker001"])
	assert.True(t, launched)
}
