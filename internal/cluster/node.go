package cluster

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/gridship/gridship/internal/provider"
	"github.com/gridship/gridship/internal/repository"
	"github.com/gridship/gridship/internal/transport"
)

// defaultConnectTimeout bounds a single connection attempt to one address.
const defaultConnectTimeout = 5 * time.Second

// Node tracks one compute instance slot: its identity within the cluster,
// the immutable launch parameters, and the connection state discovered
// while the instance boots.
type Node struct {
	Name string
	Kind string

	// Params are fixed when the node is added and never change afterward.
	Params provider.LaunchSpec

	// InstanceID is empty while the node has no backing cloud resource.
	InstanceID string

	// IPs is the ordered set of addresses last reported by the cloud.
	IPs []string

	// PreferredIP is the address that last completed a handshake. It is
	// tried first on subsequent connection attempts.
	PreferredIP string

	ConnectTimeout time.Duration

	cloud     provider.CloudProvider
	connector transport.Connector
	log       logr.Logger
}

// Launch requests a backing instance from the cloud. It returns as soon as
// the cloud hands back an identifier; boot progress is observed through
// IsAlive. On failure the node keeps no instance id.
func (n *Node) Launch(ctx context.Context) error {
	n.log.Info("starting node", "node", n.Name)
	spec := n.Params
	spec.NodeName = n.Name
	instanceID, err := n.cloud.StartInstance(ctx, spec)
	if err != nil {
		return fmt.Errorf("failed to start node %s: %w", n.Name, err)
	}
	n.InstanceID = instanceID
	n.log.V(1).Info("node launched", "node", n.Name, "instance", instanceID)
	return nil
}

// Terminate requests destruction of the backing instance, if any. The
// instance id is cleared even when the destroy call fails: once termination
// has been requested the node is released from this controller's
// perspective, and an ambiguous result must not leave it perpetually
// "becoming". The error is still reported so callers can decide whether
// the node stays tracked.
func (n *Node) Terminate(ctx context.Context) error {
	if n.InstanceID == "" {
		return nil
	}
	n.log.Info("shutting down instance", "node", n.Name, "instance", n.InstanceID)
	err := n.cloud.StopInstance(ctx, n.InstanceID)
	n.InstanceID = ""
	if err != nil {
		return fmt.Errorf("failed to stop instance of node %s: %w", n.Name, err)
	}
	return nil
}

// IsAlive reports whether the backing instance is up according to the
// cloud. A node without an instance id is not alive and the cloud is not
// contacted. Query errors mean "not yet known": the node is not marked
// dead and the caller retries on the next poll round. A running instance
// triggers an address refresh before reporting true.
func (n *Node) IsAlive(ctx context.Context) bool {
	if n.InstanceID == "" {
		return false
	}

	running, err := n.cloud.IsInstanceRunning(ctx, n.InstanceID)
	if err != nil {
		n.log.V(1).Info("ignoring error while querying instance state", "node", n.Name, "instance", n.InstanceID, "reason", err.Error())
		return false
	}
	if !running {
		n.log.V(1).Info("node still building", "node", n.Name, "instance", n.InstanceID)
		return false
	}

	if err := n.RefreshIPs(ctx); err != nil {
		n.log.V(1).Info("ignoring error while refreshing addresses", "node", n.Name, "reason", err.Error())
	}
	return true
}

// RefreshIPs replaces the node's address set with the cloud's current
// view. An empty result is tolerated: public address assignment may lag
// instance boot, so callers poll.
func (n *Node) RefreshIPs(ctx context.Context) error {
	ips, err := n.cloud.GetIPs(ctx, n.InstanceID)
	if err != nil {
		return fmt.Errorf("failed to refresh addresses of node %s: %w", n.Name, err)
	}
	n.IPs = ips
	return nil
}

// Connect attempts a handshake against the node's candidate addresses:
// the preferred address first if one is set, then the remaining addresses
// in their discovery order. The first success becomes the new preferred
// address and its handle is returned. Exhausting all candidates returns
// nil; during boot that is the expected outcome, retried by the caller.
func (n *Node) Connect(ctx context.Context) io.Closer {
	timeout := n.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	creds := transport.Credentials{
		User:           n.Params.ImageUser,
		PrivateKeyPath: n.Params.PrivateKeyPath,
	}

	for _, addr := range n.candidateAddrs() {
		n.log.V(1).Info("trying to connect", "node", n.Name, "addr", addr)
		handle, err := n.connector.Connect(ctx, addr, creds, timeout)
		if err != nil {
			n.log.V(1).Info("connection attempt failed", "node", n.Name, "addr", addr, "reason", err.Error())
			continue
		}
		if addr != n.PreferredIP {
			n.log.V(1).Info("updating preferred address", "node", n.Name, "addr", addr)
			n.PreferredIP = addr
		}
		return handle
	}
	return nil
}

// candidateAddrs orders the known addresses for a connection sweep,
// putting the preferred address first and skipping its duplicate.
func (n *Node) candidateAddrs() []string {
	if n.PreferredIP == "" {
		return append([]string(nil), n.IPs...)
	}
	addrs := make([]string, 0, len(n.IPs)+1)
	addrs = append(addrs, n.PreferredIP)
	for _, ip := range n.IPs {
		if ip != n.PreferredIP {
			addrs = append(addrs, ip)
		}
	}
	return addrs
}

// ConnectionIP returns the address used to connect to this node.
func (n *Node) ConnectionIP() string {
	return n.PreferredIP
}

func (n *Node) String() string {
	return fmt.Sprintf("name=`%s`, id=`%s`, ips=[%s], connection ip=`%s`",
		n.Name, n.InstanceID, strings.Join(n.IPs, ", "), n.PreferredIP)
}

func (n *Node) record() repository.NodeRecord {
	return repository.NodeRecord{
		Name:           n.Name,
		Kind:           n.Kind,
		ImageID:        n.Params.ImageID,
		ImageUser:      n.Params.ImageUser,
		Flavor:         n.Params.Flavor,
		SecurityGroup:  n.Params.SecurityGroup,
		UserData:       n.Params.UserData,
		KeyName:        n.Params.KeyName,
		PublicKeyPath:  n.Params.PublicKeyPath,
		PrivateKeyPath: n.Params.PrivateKeyPath,
		InstanceID:     n.InstanceID,
		IPs:            append([]string(nil), n.IPs...),
		PreferredIP:    n.PreferredIP,
	}
}

func nodeFromRecord(rec repository.NodeRecord, deps Deps) *Node {
	return &Node{
		Name: rec.Name,
		Kind: rec.Kind,
		Params: provider.LaunchSpec{
			NodeName:       rec.Name,
			ImageID:        rec.ImageID,
			ImageUser:      rec.ImageUser,
			Flavor:         rec.Flavor,
			SecurityGroup:  rec.SecurityGroup,
			UserData:       rec.UserData,
			KeyName:        rec.KeyName,
			PublicKeyPath:  rec.PublicKeyPath,
			PrivateKeyPath: rec.PrivateKeyPath,
		},
		InstanceID:  rec.InstanceID,
		IPs:         append([]string(nil), rec.IPs...),
		PreferredIP: rec.PreferredIP,
		cloud:       deps.Cloud,
		connector:   deps.Connector,
		log:         deps.Log,
	}
}
