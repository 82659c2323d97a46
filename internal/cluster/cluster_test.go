package cluster

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridship/gridship/internal/provider"
	"github.com/gridship/gridship/internal/repository"
	"github.com/gridship/gridship/internal/transport"
)

// spyStore counts writes and deletes on top of the in-memory store.
type spyStore struct {
	*repository.Memory
	mu      sync.Mutex
	saves   int
	deletes int
}

func newSpyStore() *spyStore {
	return &spyStore{Memory: repository.NewMemory()}
}

func (s *spyStore) SaveOrUpdate(ctx context.Context, cluster repository.ClusterRecord) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.Memory.SaveOrUpdate(ctx, cluster)
}

func (s *spyStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	s.deletes++
	s.mu.Unlock()
	return s.Memory.Delete(ctx, name)
}

func workerParams() provider.LaunchSpec {
	return provider.LaunchSpec{
		ImageID:       "debian-12",
		ImageUser:     "root",
		Flavor:        "cx22",
		SecurityGroup: "default",
		KeyName:       "ops",
	}
}

func newTestCluster(t *testing.T, cloud provider.CloudProvider, connector transport.Connector) (*Cluster, *spyStore, *provider.MockSetup) {
	t.Helper()
	store := newSpyStore()
	setup := &provider.MockSetup{}
	c := New("testcluster", Deps{
		Cloud:     cloud,
		Setup:     setup,
		Store:     store,
		Connector: connector,
	})
	return c, store, setup
}

func TestAddNode_RejectsInvalidKind(t *testing.T) {
	c, _, _ := newTestCluster(t, &provider.MockCloud{}, nil)

	for _, kind := range []string{"web_server", "front end", "node!", "", "a.b"} {
		_, err := c.AddNode(kind, workerParams())
		assert.Error(t, err, "kind %q should be rejected", kind)
	}
	assert.Empty(t, c.Groups, "a rejected kind must not mutate the groups")
}

func TestAddNode_GeneratedNames(t *testing.T) {
	c, _, _ := newTestCluster(t, &provider.MockCloud{}, nil)

	// Other kinds' sizes must not influence the ordinals.
	require.NoError(t, c.AddNodes("manager", 2, workerParams()))

	for i := 0; i < 3; i++ {
		_, err := c.AddNode("worker", workerParams())
		require.NoError(t, err)
	}

	names := make([]string, 0, 3)
	for _, n := range c.Groups["worker"] {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"worker001", "worker002", "worker003"}, names)
}

func TestAddNode_ExplicitAndDuplicateNames(t *testing.T) {
	c, _, _ := newTestCluster(t, &provider.MockCloud{}, nil)

	params := workerParams()
	params.NodeName = "login"
	n, err := c.AddNode("frontend", params)
	require.NoError(t, err)
	assert.Equal(t, "login", n.Name)

	_, err = c.AddNode("frontend", params)
	assert.Error(t, err, "node names must be unique within a cluster")
}

// happyCloud backs a cluster where every instance starts, runs and answers.
func happyCloud() (*provider.MockCloud, *sync.Map) {
	var stopped sync.Map
	cloud := &provider.MockCloud{
		StartInstanceFunc: func(_ context.Context, spec provider.LaunchSpec) (string, error) {
			return "i-" + spec.NodeName, nil
		},
		IsInstanceRunningFunc: func(context.Context, string) (bool, error) {
			return true, nil
		},
		GetIPsFunc: func(_ context.Context, id string) ([]string, error) {
			return []string{"10.0.0.1"}, nil
		},
		StopInstanceFunc: func(_ context.Context, id string) error {
			count, _ := stopped.LoadOrStore(id, 0)
			stopped.Store(id, count.(int)+1)
			return nil
		},
	}
	return cloud, &stopped
}

func acceptAll() *transport.MockConnector {
	return &transport.MockConnector{}
}

func TestStart_HappyPath(t *testing.T) {
	cloud, _ := happyCloud()
	c, store, _ := newTestCluster(t, cloud, acceptAll())
	c.StartupTimeout = 0 // a single poll round is enough with these mocks
	require.NoError(t, c.AddNodes("worker", 2, workerParams()))
	require.NoError(t, c.AddNodes("manager", 1, workerParams()))

	require.NoError(t, c.Start(context.Background(), nil))

	for _, n := range c.AllNodes() {
		assert.NotEmpty(t, n.InstanceID)
		assert.Equal(t, "10.0.0.1", n.PreferredIP)
	}

	rec, err := store.Get(context.Background(), "testcluster")
	require.NoError(t, err)
	assert.Len(t, rec.Groups["worker"], 2)
	assert.Len(t, rec.Groups["manager"], 1)
	assert.Equal(t, "i-worker001", rec.Groups["worker"][0].InstanceID)
	// One checkpoint per phase: launch, liveness, connectivity, size check.
	assert.GreaterOrEqual(t, store.saves, 4)
}

func TestStart_TimeoutEvictsUnreachableNode(t *testing.T) {
	cloud, stopped := happyCloud()
	cloud.IsInstanceRunningFunc = func(_ context.Context, id string) (bool, error) {
		return id != "i-worker002", nil
	}
	c, _, _ := newTestCluster(t, cloud, acceptAll())
	c.StartupTimeout = 0
	require.NoError(t, c.AddNodes("worker", 2, workerParams()))

	// Eviction is per-node, not a cluster-level error.
	require.NoError(t, c.Start(context.Background(), nil))

	require.Len(t, c.Groups["worker"], 1)
	assert.Equal(t, "worker001", c.Groups["worker"][0].Name)

	count, ok := stopped.Load("i-worker002")
	require.True(t, ok, "the evicted node must be terminated")
	assert.Equal(t, 1, count.(int), "terminate must be invoked exactly once")
}

func TestStart_ConnectTimeoutEvicts(t *testing.T) {
	cloud, stopped := happyCloud()
	connector := &transport.MockConnector{
		ConnectFunc: func(context.Context, string, transport.Credentials, time.Duration) (io.Closer, error) {
			return nil, errors.New("connection refused")
		},
	}
	c, _, _ := newTestCluster(t, cloud, connector)
	c.StartupTimeout = 0
	require.NoError(t, c.AddNodes("worker", 1, workerParams()))

	require.NoError(t, c.Start(context.Background(), nil))

	assert.Empty(t, c.Groups["worker"])
	_, ok := stopped.Load("i-worker001")
	assert.True(t, ok)
}

func TestStart_SizingErrorLeavesNodesRunning(t *testing.T) {
	cloud, stopped := happyCloud()
	c, _, _ := newTestCluster(t, cloud, acceptAll())
	c.StartupTimeout = 0
	require.NoError(t, c.AddNodes("worker", 2, workerParams()))

	err := c.Start(context.Background(), map[string]int{"worker": 5})

	var sizingErr *SizingError
	require.ErrorAs(t, err, &sizingErr)
	assert.Len(t, c.Groups["worker"], 2)
	stopped.Range(func(any, any) bool {
		t.Fatal("no instance may be terminated over a sizing mismatch")
		return false
	})
}

func TestStart_MinimumForUnknownKind(t *testing.T) {
	cloud, _ := happyCloud()
	c, _, _ := newTestCluster(t, cloud, acceptAll())
	c.StartupTimeout = 0
	require.NoError(t, c.AddNodes("worker", 1, workerParams()))

	err := c.Start(context.Background(), map[string]int{"gpu": 1})
	var sizingErr *SizingError
	require.ErrorAs(t, err, &sizingErr)
}

func TestStart_RebalanceMovesSpares(t *testing.T) {
	cloud, _ := happyCloud()
	c, _, _ := newTestCluster(t, cloud, acceptAll())
	c.StartupTimeout = 0
	require.NoError(t, c.AddNodes("a", 1, workerParams()))
	require.NoError(t, c.AddNodes("b", 3, workerParams()))

	require.NoError(t, c.Start(context.Background(), map[string]int{"a": 2, "b": 1}))

	assert.Len(t, c.Groups["a"], 2)
	assert.Len(t, c.Groups["b"], 2)
}

func TestStart_InterruptSavesBeforeExit(t *testing.T) {
	cloud, _ := happyCloud()
	c, store, _ := newTestCluster(t, cloud, acceptAll())
	require.NoError(t, c.AddNodes("worker", 1, workerParams()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Start(ctx, nil)
	require.ErrorIs(t, err, ErrInterrupted)

	// In-flight launches completed and were recorded before exiting.
	rec, getErr := store.Get(context.Background(), "testcluster")
	require.NoError(t, getErr)
	assert.Equal(t, "i-worker001", rec.Groups["worker"][0].InstanceID)
}

// cancelAwareStore refuses writes on a cancelled context, like the real
// networked backends do.
type cancelAwareStore struct {
	*repository.Memory
}

func (s *cancelAwareStore) SaveOrUpdate(ctx context.Context, cluster repository.ClusterRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Memory.SaveOrUpdate(ctx, cluster)
}

func TestStart_InterruptSavesThroughCancelAwareStore(t *testing.T) {
	cloud, _ := happyCloud()
	store := &cancelAwareStore{Memory: repository.NewMemory()}
	c := New("testcluster", Deps{
		Cloud:     cloud,
		Setup:     &provider.MockSetup{},
		Store:     store,
		Connector: acceptAll(),
	})
	require.NoError(t, c.AddNodes("worker", 1, workerParams()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Start(ctx, nil)
	require.ErrorIs(t, err, ErrInterrupted,
		"a store that honors cancellation must not turn an interrupt into a save error")

	// The launched instance id made it into the record despite the
	// cancelled context.
	rec, getErr := store.Get(context.Background(), "testcluster")
	require.NoError(t, getErr)
	assert.Equal(t, "i-worker001", rec.Groups["worker"][0].InstanceID)
}

func TestStop_PartialFailureRepersists(t *testing.T) {
	cloud, _ := happyCloud()
	cloud.StopInstanceFunc = func(_ context.Context, id string) error {
		if id == "i-worker002" {
			return errors.New("api unavailable")
		}
		return nil
	}
	c, store, setup := newTestCluster(t, cloud, acceptAll())
	cleanups := 0
	setup.CleanupFunc = func(context.Context, repository.ClusterRecord) error {
		cleanups++
		return nil
	}
	c.StartupTimeout = 0
	require.NoError(t, c.AddNodes("worker", 2, workerParams()))
	require.NoError(t, c.Start(context.Background(), nil))
	savesBefore := store.saves

	err := c.Stop(context.Background(), false)

	require.ErrorIs(t, err, ErrIncompleteStop)
	require.Len(t, c.Groups["worker"], 1, "the node that failed to terminate stays tracked")
	assert.Equal(t, "worker002", c.Groups["worker"][0].Name)
	assert.Greater(t, store.saves, savesBefore, "the partially stopped cluster is re-persisted")
	assert.Zero(t, store.deletes)
	assert.Zero(t, cleanups)

	// A second stop finds the leftover node already released and evicts it.
	require.NoError(t, c.Stop(context.Background(), false))
	assert.Empty(t, c.AllNodes())
	assert.Equal(t, 1, store.deletes)
	assert.Equal(t, 1, cleanups)
}

func TestStop_ForceRemovesDespiteFailures(t *testing.T) {
	cloud, _ := happyCloud()
	cloud.StopInstanceFunc = func(context.Context, string) error {
		return errors.New("api unavailable")
	}
	c, store, setup := newTestCluster(t, cloud, acceptAll())
	cleanups := 0
	setup.CleanupFunc = func(context.Context, repository.ClusterRecord) error {
		cleanups++
		return nil
	}
	c.StartupTimeout = 0
	require.NoError(t, c.AddNodes("worker", 1, workerParams()))
	require.NoError(t, c.Start(context.Background(), nil))

	require.NoError(t, c.Stop(context.Background(), true))

	assert.Empty(t, c.AllNodes())
	assert.Equal(t, 1, cleanups)
	assert.Equal(t, 1, store.deletes)
}

func TestStop_NeverLaunchedNodeIsEvicted(t *testing.T) {
	calls := 0
	cloud := &provider.MockCloud{
		StopInstanceFunc: func(context.Context, string) error {
			calls++
			return nil
		},
	}
	c, store, _ := newTestCluster(t, cloud, acceptAll())
	require.NoError(t, c.AddNodes("worker", 1, workerParams()))

	require.NoError(t, c.Stop(context.Background(), false))

	assert.Empty(t, c.AllNodes())
	assert.Zero(t, calls, "a node with no instance id needs no cloud call")
	assert.Equal(t, 1, store.deletes)
}

func TestUpdate_RefreshesAndPersistsOnce(t *testing.T) {
	cloud, _ := happyCloud()
	var mu sync.Mutex
	queried := map[string]int{}
	cloud.GetIPsFunc = func(_ context.Context, id string) ([]string, error) {
		mu.Lock()
		queried[id]++
		mu.Unlock()
		if id == "i-worker002" {
			return nil, errors.New("rate limited")
		}
		return []string{"10.0.0.9"}, nil
	}
	c, store, _ := newTestCluster(t, cloud, acceptAll())
	c.StartupTimeout = 0
	require.NoError(t, c.AddNodes("worker", 2, workerParams()))
	require.NoError(t, c.Start(context.Background(), nil))
	savesBefore := store.saves

	require.NoError(t, c.Update(context.Background()))

	assert.Equal(t, []string{"10.0.0.9"}, c.Groups["worker"][0].IPs)
	assert.Equal(t, store.saves, savesBefore+1, "update persists exactly once")
}

func TestSetup_FailureIsAWarning(t *testing.T) {
	c, _, setup := newTestCluster(t, &provider.MockCloud{}, acceptAll())
	require.NoError(t, c.AddNodes("worker", 1, workerParams()))

	setup.SetupClusterFunc = func(context.Context, repository.ClusterRecord) (bool, error) {
		return false, errors.New("playbook failed")
	}
	assert.False(t, c.Setup(context.Background()))

	setup.SetupClusterFunc = func(context.Context, repository.ClusterRecord) (bool, error) {
		return true, nil
	}
	assert.True(t, c.Setup(context.Background()))
}

func TestFrontendNode_Selection(t *testing.T) {
	c, _, _ := newTestCluster(t, &provider.MockCloud{}, nil)
	require.NoError(t, c.AddNodes("worker", 2, workerParams()))
	require.NoError(t, c.AddNodes("manager", 1, workerParams()))

	// No preference: first node of the lexicographically smallest kind.
	n, err := c.FrontendNode()
	require.NoError(t, err)
	assert.Equal(t, "manager001", n.Name)

	// A preferred kind wins even when another kind sorts earlier.
	c.FrontendKind = "worker"
	n, err = c.FrontendNode()
	require.NoError(t, err)
	assert.Equal(t, "worker001", n.Name)

	// An unknown preferred kind is a configuration error.
	c.FrontendKind = "gateway"
	_, err = c.FrontendNode()
	assert.ErrorIs(t, err, ErrNodeNotFound)

	// A known but empty kind falls through to the default selection.
	c.Groups["empty"] = nil
	c.FrontendKind = "empty"
	n, err = c.FrontendNode()
	require.NoError(t, err)
	assert.Equal(t, "manager001", n.Name)
}

func TestFrontendNode_NoNodes(t *testing.T) {
	c, _, _ := newTestCluster(t, &provider.MockCloud{}, nil)
	_, err := c.FrontendNode()
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	cloud, _ := happyCloud()
	c, store, _ := newTestCluster(t, cloud, acceptAll())
	c.FrontendKind = "manager"
	c.StartupTimeout = 2 * time.Minute
	require.NoError(t, c.AddNodes("worker", 2, workerParams()))
	require.NoError(t, c.AddNodes("manager", 1, workerParams()))
	c.Groups["worker"][0].InstanceID = "i-1"
	c.Groups["worker"][0].IPs = []string{"10.0.0.1", "192.0.2.1"}
	c.Groups["worker"][0].PreferredIP = "192.0.2.1"

	require.NoError(t, store.SaveOrUpdate(context.Background(), c.Snapshot()))
	rec, err := store.Get(context.Background(), "testcluster")
	require.NoError(t, err)

	restored := Restore(rec, Deps{Cloud: cloud, Setup: &provider.MockSetup{}, Store: store, Connector: acceptAll()})

	assert.Equal(t, "testcluster", restored.Name)
	assert.Equal(t, "manager", restored.FrontendKind)
	assert.Equal(t, 2*time.Minute, restored.StartupTimeout)
	require.Len(t, restored.Groups["worker"], 2)
	w := restored.Groups["worker"][0]
	assert.Equal(t, "i-1", w.InstanceID)
	assert.Equal(t, []string{"10.0.0.1", "192.0.2.1"}, w.IPs)
	assert.Equal(t, "192.0.2.1", w.PreferredIP)
	assert.Equal(t, "cx22", w.Params.Flavor)

	// A restored node is fully operational, not just bookkeeping.
	assert.True(t, w.IsAlive(context.Background()))
}
