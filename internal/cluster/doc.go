// Package cluster implements the cluster lifecycle controller: concurrent
// multi-node provisioning, deadline-bound reachability polling, sticky
// connection retry, checkpointing to a persistence store, and the greedy
// node-group rebalancing that reconciles the actual node population
// against configured per-kind minimums.
//
// The package is backend-agnostic: the cloud API, the setup system, the
// connection transport and the persistence store are consumed through the
// narrow interfaces in the provider, transport and repository packages.
package cluster
