package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Memory is an in-process Store. Records survive only for the lifetime of
// the process; it backs tests and single-shot invocations that do not need
// durable state.
type Memory struct {
	mu       sync.Mutex
	clusters map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{clusters: make(map[string][]byte)}
}

func (m *Memory) SaveOrUpdate(_ context.Context, cluster ClusterRecord) error {
	data, err := json.Marshal(cluster)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters[cluster.Name] = data
	return nil
}

func (m *Memory) Get(_ context.Context, name string) (ClusterRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.clusters[name]
	if !ok {
		return ClusterRecord{}, ErrNotFound
	}
	var rec ClusterRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ClusterRecord{}, err
	}
	return rec, nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.clusters))
	for name := range m.clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clusters, name)
	return nil
}
