// Package provider defines the collaborator contracts the cluster
// controller consumes: the cloud API that backs nodes with instances and
// the configuration-management system that installs software on them.
//
// The controller never branches on a concrete backend; it only sees these
// interfaces. Real implementations live in subpackages, mocks in this
// package back the unit tests.
package provider

import (
	"context"

	"github.com/gridship/gridship/internal/repository"
)

// LaunchSpec carries the launch parameters for one instance. The fields
// are fixed when the node is added to a cluster and never change afterward.
type LaunchSpec struct {
	NodeName       string
	ImageID        string
	ImageUser      string
	Flavor         string
	SecurityGroup  string
	UserData       string
	KeyName        string
	PublicKeyPath  string
	PrivateKeyPath string
}

// CloudProvider manages the lifecycle of cloud instances.
type CloudProvider interface {
	// StartInstance requests a new instance and returns its identifier as
	// soon as the cloud accepts the request. It does not wait for boot.
	StartInstance(ctx context.Context, spec LaunchSpec) (string, error)

	// StopInstance requests destruction of the instance. Errors are
	// tolerated by callers and treated as already-terminated.
	StopInstance(ctx context.Context, instanceID string) error

	// IsInstanceRunning reports whether the instance is in a running state.
	IsInstanceRunning(ctx context.Context, instanceID string) (bool, error)

	// GetIPs returns the addresses currently assigned to the instance, in
	// connection-preference order. The result may be empty while public
	// address assignment lags instance boot.
	GetIPs(ctx context.Context, instanceID string) ([]string, error)
}

// SetupProvider installs and configures software on a running cluster.
type SetupProvider interface {
	// SetupCluster configures all nodes of the cluster. A false result
	// without an error means the provider ran but the cluster is not yet
	// fully configured.
	SetupCluster(ctx context.Context, cluster repository.ClusterRecord) (bool, error)

	// Cleanup is invoked when a cluster is fully torn down.
	Cleanup(ctx context.Context, cluster repository.ClusterRecord) error
}
