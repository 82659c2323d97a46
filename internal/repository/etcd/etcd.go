// Package etcd provides an etcd-backed cluster store.
//
// Each cluster is stored as a single JSON value under a fixed key prefix,
// so a save replaces the whole record in one put.
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gridship/gridship/internal/repository"
)

// clusterKeyPrefix namespaces all cluster records in etcd.
const clusterKeyPrefix = "/gridship/clusters/"

const dialTimeout = 5 * time.Second

// Store persists cluster records in etcd.
type Store struct {
	client *clientv3.Client
}

// New connects to etcd at the given endpoints.
func New(endpoints []string) (*Store, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return &Store{client: cli}, nil
}

// Close releases the underlying etcd client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) SaveOrUpdate(ctx context.Context, cluster repository.ClusterRecord) error {
	data, err := json.Marshal(cluster)
	if err != nil {
		return fmt.Errorf("failed to marshal cluster %s: %w", cluster.Name, err)
	}
	if _, err := s.client.Put(ctx, clusterKeyPrefix+cluster.Name, string(data)); err != nil {
		return fmt.Errorf("failed to save cluster %s: %w", cluster.Name, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, name string) (repository.ClusterRecord, error) {
	resp, err := s.client.Get(ctx, clusterKeyPrefix+name)
	if err != nil {
		return repository.ClusterRecord{}, fmt.Errorf("failed to get cluster %s: %w", name, err)
	}
	if len(resp.Kvs) == 0 {
		return repository.ClusterRecord{}, repository.ErrNotFound
	}
	var rec repository.ClusterRecord
	if err := json.Unmarshal(resp.Kvs[0].Value, &rec); err != nil {
		return repository.ClusterRecord{}, fmt.Errorf("failed to unmarshal cluster %s: %w", name, err)
	}
	return rec, nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	resp, err := s.client.Get(ctx, clusterKeyPrefix,
		clientv3.WithPrefix(), clientv3.WithKeysOnly(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	names := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		names = append(names, strings.TrimPrefix(string(kv.Key), clusterKeyPrefix))
	}
	return names, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	if _, err := s.client.Delete(ctx, clusterKeyPrefix+name); err != nil {
		return fmt.Errorf("failed to delete cluster %s: %w", name, err)
	}
	return nil
}
