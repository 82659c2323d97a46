package cluster

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-logr/logr"

	"github.com/gridship/gridship/internal/metrics"
	"github.com/gridship/gridship/internal/provider"
	"github.com/gridship/gridship/internal/repository"
	"github.com/gridship/gridship/internal/transport"
)

const (
	// DefaultStartupTimeout bounds each of the two polling phases of Start
	// independently.
	DefaultStartupTimeout = 10 * time.Minute

	livenessPollInterval     = 10 * time.Second
	connectivityPollInterval = 5 * time.Second
)

// Deps wires the external collaborators into a cluster. Store and Log are
// optional; Cloud, Setup and Connector must be provided.
type Deps struct {
	Cloud     provider.CloudProvider
	Setup     provider.SetupProvider
	Store     repository.Store
	Connector transport.Connector
	Log       logr.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Store == nil {
		d.Store = repository.NewMemory()
	}
	if d.Log.GetSink() == nil {
		d.Log = logr.Discard()
	}
	return d
}

// Cluster orchestrates the lifecycle of a named group of nodes organized
// into kinds. The typical workflow: create a cluster, add nodes, Start it,
// Setup it, and eventually Stop it. Structural mutation of Groups happens
// only on the orchestrating goroutine; launch tasks each touch one node.
type Cluster struct {
	Name string

	// FrontendKind optionally names the kind whose first node is the
	// default access point.
	FrontendKind string

	// StartupTimeout bounds each polling phase of Start.
	StartupTimeout time.Duration

	// Groups maps kind to its nodes in creation order.
	Groups map[string][]*Node

	deps Deps
	log  logr.Logger
}

// New creates an empty cluster. Nodes are added with AddNode or AddNodes;
// nothing touches the cloud until Start.
func New(name string, deps Deps) *Cluster {
	deps = deps.withDefaults()
	return &Cluster{
		Name:           name,
		StartupTimeout: DefaultStartupTimeout,
		Groups:         make(map[string][]*Node),
		deps:           deps,
		log:            deps.Log,
	}
}

// Restore rebuilds a cluster from its persisted record, re-attaching the
// collaborators so a previously started cluster can be set up, updated or
// stopped by a later invocation.
func Restore(rec repository.ClusterRecord, deps Deps) *Cluster {
	c := New(rec.Name, deps)
	c.FrontendKind = rec.FrontendKind
	if rec.StartupTimeout > 0 {
		c.StartupTimeout = rec.StartupTimeout
	}
	for kind, recs := range rec.Groups {
		nodes := make([]*Node, 0, len(recs))
		for _, nr := range recs {
			nodes = append(nodes, nodeFromRecord(nr, c.deps))
		}
		c.Groups[kind] = nodes
	}
	return c
}

// AddNode adds one node of the given kind. This is pure bookkeeping: no
// cloud call is made. The node name defaults to the kind plus a
// zero-padded ordinal (worker001, worker002, ...) when params.NodeName is
// empty. The kind must be usable as a hostname fragment; an invalid kind
// is rejected without mutating the groups.
func (c *Cluster) AddNode(kind string, params provider.LaunchSpec) (*Node, error) {
	if !validKind(kind) {
		return nil, fmt.Errorf("invalid kind %q: may only contain characters in [a-zA-Z0-9-], as it is used to build a hostname", kind)
	}

	name := params.NodeName
	if name == "" {
		name = nodeName(kind, len(c.Groups[kind])+1)
	}
	if c.findNode(name) != nil {
		return nil, fmt.Errorf("duplicate node name %q in cluster %s", name, c.Name)
	}
	params.NodeName = name

	node := &Node{
		Name:      name,
		Kind:      kind,
		Params:    params,
		cloud:     c.deps.Cloud,
		connector: c.deps.Connector,
		log:       c.log,
	}
	c.Groups[kind] = append(c.Groups[kind], node)
	return node, nil
}

// AddNodes adds num nodes of the same kind with generated names.
func (c *Cluster) AddNodes(kind string, num int, params provider.LaunchSpec) error {
	for i := 0; i < num; i++ {
		p := params
		p.NodeName = ""
		if _, err := c.AddNode(kind, p); err != nil {
			return err
		}
	}
	return nil
}

// RemoveNode removes a node from its group without stopping it.
func (c *Cluster) RemoveNode(node *Node) {
	group, ok := c.Groups[node.Kind]
	if !ok {
		c.log.Error(nil, "unable to remove node: unknown kind", "node", node.Name, "kind", node.Kind)
		return
	}
	for i, n := range group {
		if n == node {
			c.Groups[node.Kind] = append(group[:i], group[i+1:]...)
			return
		}
	}
}

// AllNodes returns every node of the cluster, kinds in sorted name order,
// nodes within a kind in creation order.
func (c *Cluster) AllNodes() []*Node {
	var nodes []*Node
	for _, kind := range c.sortedKinds() {
		nodes = append(nodes, c.Groups[kind]...)
	}
	return nodes
}

// Start drives the cluster to a connectable state: launch all nodes in
// parallel, poll for instance liveness, poll for connectivity, then verify
// the per-kind minimums, checkpointing the full cluster state after every
// phase so a crash between phases never loses track of a launched
// instance. Nodes that miss a phase deadline are terminated and evicted;
// they are not a cluster-level error. minimums gives the required node
// count per kind, defaulting to each kind's current count.
//
// Cancellation is cooperative: an interrupt lets in-flight work finish,
// checkpoints the state observed at that point and returns ErrInterrupted.
func (c *Cluster) Start(ctx context.Context, minimums map[string]int) error {
	nodes := c.AllNodes()
	c.log.Info("starting cluster", "cluster", c.Name, "nodes", len(nodes))

	pool := provisioningPool{log: c.log}
	pool.launchAll(ctx, nodes)

	// Checkpoint before anything else: every instance id handed out by the
	// cloud is now on record. The write must go through even when the run
	// was interrupted mid-launch, or those ids would be lost.
	if err := c.checkpoint(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	if ctx.Err() != nil {
		c.log.Info("user interruption: cluster saved before exit", "cluster", c.Name)
		return fmt.Errorf("starting cluster %s: %w", c.Name, ErrInterrupted)
	}

	liveness := NewPoller(livenessPollInterval, c.StartupTimeout, c.log)
	pending, err := liveness.Wait(ctx, c.AllNodes(), func(ctx context.Context, n *Node) bool {
		return n.IsAlive(ctx)
	})
	if err != nil {
		_ = c.checkpoint(context.WithoutCancel(ctx))
		return fmt.Errorf("starting cluster %s: %w", c.Name, ErrInterrupted)
	}
	c.evict(ctx, pending, "node could not start within the given timeout")

	if err := c.checkpoint(ctx); err != nil {
		return err
	}

	connectivity := NewPoller(connectivityPollInterval, c.StartupTimeout, c.log)
	pending, err = connectivity.Wait(ctx, c.AllNodes(), func(ctx context.Context, n *Node) bool {
		handle := n.Connect(ctx)
		if handle == nil {
			return false
		}
		closeQuietly(handle)
		c.log.Info("connection to node successful", "node", n.Name, "addr", n.ConnectionIP())
		return true
	})
	if err != nil {
		_ = c.checkpoint(context.WithoutCancel(ctx))
		return fmt.Errorf("starting cluster %s: %w", c.Name, ErrInterrupted)
	}
	c.evict(ctx, pending, "node could not be connected to within the given timeout")

	// Connect updates preferred addresses, so save again.
	if err := c.checkpoint(ctx); err != nil {
		return err
	}

	if err := c.checkSize(minimums); err != nil {
		return err
	}
	return c.checkpoint(ctx)
}

// checkSize fills in the implicit minimums and rebalances the groups.
func (c *Cluster) checkSize(minimums map[string]int) error {
	mins := make(map[string]int, len(c.Groups))
	for kind, m := range minimums {
		if _, ok := c.Groups[kind]; !ok {
			return &SizingError{
				Cluster: c.Name,
				Reason:  fmt.Sprintf("minimum given for unknown kind %q", kind),
			}
		}
		mins[kind] = m
	}
	for kind, nodes := range c.Groups {
		if _, ok := mins[kind]; !ok {
			mins[kind] = len(nodes)
		}
	}
	return rebalanceGroups(c.Name, c.Groups, mins)
}

// evict terminates the given nodes and removes them from their groups. The
// nodes are already doomed, so termination proceeds even when the caller
// has been interrupted.
func (c *Cluster) evict(ctx context.Context, nodes []*Node, reason string) {
	ctx = context.WithoutCancel(ctx)
	for _, n := range nodes {
		c.log.Error(nil, reason+", stopping it", "node", n.Name, "timeout", c.StartupTimeout.String())
		if err := n.Terminate(ctx); err != nil {
			c.log.Error(err, "could not stop node, it might already be down", "node", n.Name)
		} else {
			metrics.NodesTerminated.Inc()
		}
		c.RemoveNode(n)
		metrics.NodesEvicted.Inc()
	}
}

// Setup delegates software configuration to the setup collaborator. A
// failure leaves the cluster running and connectable but not yet
// configured; it is reported as a warning and recovered by re-invoking
// Setup.
func (c *Cluster) Setup(ctx context.Context) bool {
	ok, err := c.deps.Setup.SetupCluster(ctx, c.Snapshot())
	if err != nil {
		c.log.Error(err, "the setup provider was not able to set up the cluster, but the cluster is running by now", "cluster", c.Name)
		ok = false
	}
	if !ok {
		c.log.Info("cluster not yet configured; re-run setup and/or check your configuration", "cluster", c.Name)
	}
	return ok
}

// Stop terminates every node of the cluster. Per-node termination failures
// are logged and do not block the rest of the sweep; a node that never got
// an instance is simply evicted. When the sweep empties the cluster, the
// setup collaborator's cleanup hook runs and the persisted record is
// deleted. Otherwise the partial state is re-persisted and
// ErrIncompleteStop tells the caller to retry - unless force is set, in
// which case cleanup and deletion proceed and the leftover instances are
// knowingly abandoned.
func (c *Cluster) Stop(ctx context.Context, force bool) error {
	snapshot := c.Snapshot() // taken before eviction so cleanup sees the full membership

	for _, node := range c.AllNodes() {
		if node.InstanceID == "" {
			c.log.V(1).Info("not stopping node with no instance id; it seems it did not start correctly", "node", node.Name)
			c.RemoveNode(node)
			continue
		}
		if err := node.Terminate(ctx); err != nil {
			c.log.Error(err, "could not stop instance, it might already be down", "node", node.Name)
			continue
		}
		metrics.NodesTerminated.Inc()
		c.RemoveNode(node)
	}

	if len(c.AllNodes()) == 0 {
		c.log.Info("removing cluster", "cluster", c.Name)
		return c.teardown(ctx, snapshot)
	}
	if !force {
		c.log.Info("not all instances have been terminated; please re-run stop", "cluster", c.Name)
		if err := c.checkpoint(context.WithoutCancel(ctx)); err != nil {
			return err
		}
		return fmt.Errorf("stopping cluster %s: %w", c.Name, ErrIncompleteStop)
	}
	c.log.Info("not all instances have been terminated; as requested, the cluster is force-removed", "cluster", c.Name)
	for _, node := range c.AllNodes() {
		c.RemoveNode(node)
	}
	return c.teardown(ctx, snapshot)
}

func (c *Cluster) teardown(ctx context.Context, snapshot repository.ClusterRecord) error {
	if err := c.deps.Setup.Cleanup(ctx, snapshot); err != nil {
		c.log.Error(err, "setup provider cleanup failed", "cluster", c.Name)
	}
	if err := c.deps.Store.Delete(ctx, c.Name); err != nil {
		return fmt.Errorf("failed to delete cluster %s from the store: %w", c.Name, err)
	}
	return nil
}

// Update refreshes every node's address set from the cloud. Public
// addresses are not always available immediately after boot, so this can
// fill in what Start could not see. Per-node failures are logged and
// skipped; the cluster is persisted once at the end.
func (c *Cluster) Update(ctx context.Context) error {
	for _, node := range c.AllNodes() {
		if node.InstanceID == "" {
			continue
		}
		if err := node.RefreshIPs(ctx); err != nil {
			c.log.Info("ignoring error updating addresses", "node", node.Name, "reason", err.Error())
		}
	}
	return c.checkpoint(ctx)
}

// FrontendNode returns the node to use as the cluster's access point: the
// first node of the preferred frontend kind if one is configured, else the
// first node of the lexicographically smallest non-empty kind. A
// configured kind that does not exist is an error; a configured kind that
// is merely empty falls through to the default selection.
func (c *Cluster) FrontendNode() (*Node, error) {
	if c.FrontendKind != "" {
		group, ok := c.Groups[c.FrontendKind]
		if !ok {
			return nil, fmt.Errorf("invalid frontend kind %q for cluster %s: %w", c.FrontendKind, c.Name, ErrNodeNotFound)
		}
		if len(group) > 0 {
			return group[0], nil
		}
		c.log.Info("preferred frontend kind is empty, falling back to default selection", "kind", c.FrontendKind)
	}
	for _, kind := range c.sortedKinds() {
		if group := c.Groups[kind]; len(group) > 0 {
			return group[0], nil
		}
	}
	return nil, fmt.Errorf("unable to find a frontend, cluster %s has no nodes: %w", c.Name, ErrNodeNotFound)
}

// Snapshot captures the full persisted view of the cluster.
func (c *Cluster) Snapshot() repository.ClusterRecord {
	groups := make(map[string][]repository.NodeRecord, len(c.Groups))
	for kind, nodes := range c.Groups {
		recs := make([]repository.NodeRecord, 0, len(nodes))
		for _, n := range nodes {
			recs = append(recs, n.record())
		}
		groups[kind] = recs
	}
	return repository.ClusterRecord{
		Name:           c.Name,
		FrontendKind:   c.FrontendKind,
		StartupTimeout: c.StartupTimeout,
		Groups:         groups,
	}
}

func (c *Cluster) checkpoint(ctx context.Context) error {
	if err := c.deps.Store.SaveOrUpdate(ctx, c.Snapshot()); err != nil {
		return fmt.Errorf("failed to save cluster %s: %w", c.Name, err)
	}
	return nil
}

func (c *Cluster) findNode(name string) *Node {
	for _, group := range c.Groups {
		for _, n := range group {
			if n.Name == name {
				return n
			}
		}
	}
	return nil
}

func (c *Cluster) sortedKinds() []string {
	kinds := make([]string, 0, len(c.Groups))
	for kind := range c.Groups {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func closeQuietly(closer io.Closer) {
	_ = closer.Close()
}
