package provider

import (
	"context"

	"github.com/gridship/gridship/internal/repository"
)

// MockCloud is a mock implementation of CloudProvider.
type MockCloud struct {
	StartInstanceFunc     func(ctx context.Context, spec LaunchSpec) (string, error)
	StopInstanceFunc      func(ctx context.Context, instanceID string) error
	IsInstanceRunningFunc func(ctx context.Context, instanceID string) (bool, error)
	GetIPsFunc            func(ctx context.Context, instanceID string) ([]string, error)
}

func (m *MockCloud) StartInstance(ctx context.Context, spec LaunchSpec) (string, error) {
	if m.StartInstanceFunc != nil {
		return m.StartInstanceFunc(ctx, spec)
	}
	return "mock-instance", nil
}

func (m *MockCloud) StopInstance(ctx context.Context, instanceID string) error {
	if m.StopInstanceFunc != nil {
		return m.StopInstanceFunc(ctx, instanceID)
	}
	return nil
}

func (m *MockCloud) IsInstanceRunning(ctx context.Context, instanceID string) (bool, error) {
	if m.IsInstanceRunningFunc != nil {
		return m.IsInstanceRunningFunc(ctx, instanceID)
	}
	return true, nil
}

func (m *MockCloud) GetIPs(ctx context.Context, instanceID string) ([]string, error) {
	if m.GetIPsFunc != nil {
		return m.GetIPsFunc(ctx, instanceID)
	}
	return nil, nil
}

// MockSetup is a mock implementation of SetupProvider.
type MockSetup struct {
	SetupClusterFunc func(ctx context.Context, cluster repository.ClusterRecord) (bool, error)
	CleanupFunc      func(ctx context.Context, cluster repository.ClusterRecord) error
}

func (m *MockSetup) SetupCluster(ctx context.Context, cluster repository.ClusterRecord) (bool, error) {
	if m.SetupClusterFunc != nil {
		return m.SetupClusterFunc(ctx, cluster)
	}
	return true, nil
}

func (m *MockSetup) Cleanup(ctx context.Context, cluster repository.ClusterRecord) error {
	if m.CleanupFunc != nil {
		return m.CleanupFunc(ctx, cluster)
	}
	return nil
}
