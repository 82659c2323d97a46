// Package repository defines the persistence contract for cluster state.
//
// Stores hold full-cluster snapshots keyed by cluster name. Writes always
// replace the whole record, so repeated saves of the same logical state are
// idempotent. Concrete backends live in subpackages; the in-memory store in
// this package is the default when no backend is configured.
package repository

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for the requested cluster.
var ErrNotFound = errors.New("cluster not found")

// NodeRecord is the persisted view of a single node.
type NodeRecord struct {
	Name           string   `json:"name"`
	Kind           string   `json:"kind"`
	ImageID        string   `json:"image_id"`
	ImageUser      string   `json:"image_user"`
	Flavor         string   `json:"flavor"`
	SecurityGroup  string   `json:"security_group"`
	UserData       string   `json:"user_data,omitempty"`
	KeyName        string   `json:"key_name"`
	PublicKeyPath  string   `json:"public_key_path"`
	PrivateKeyPath string   `json:"private_key_path"`
	InstanceID     string   `json:"instance_id,omitempty"`
	IPs            []string `json:"ips,omitempty"`
	PreferredIP    string   `json:"preferred_ip,omitempty"`
}

// ClusterRecord is the persisted view of a cluster: its identity, group
// membership and per-node state. Node order within a group is creation
// order and is preserved across save/load cycles.
type ClusterRecord struct {
	Name           string                  `json:"name"`
	FrontendKind   string                  `json:"frontend_kind,omitempty"`
	StartupTimeout time.Duration           `json:"startup_timeout"`
	Groups         map[string][]NodeRecord `json:"groups"`
}

// Store persists cluster records between controller invocations.
type Store interface {
	// SaveOrUpdate writes the full snapshot, replacing any existing record
	// with the same cluster name.
	SaveOrUpdate(ctx context.Context, cluster ClusterRecord) error

	// Get returns the record for the named cluster, or ErrNotFound.
	Get(ctx context.Context, name string) (ClusterRecord, error)

	// List returns the names of all stored clusters.
	List(ctx context.Context) ([]string, error)

	// Delete removes the record for the named cluster. Deleting a cluster
	// that does not exist is not an error.
	Delete(ctx context.Context, name string) error
}
