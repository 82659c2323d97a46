// Package handlers implements the command logic behind the CLI.
//
// Each handler loads the cluster template, wires the collaborators it
// declares (cloud provider, SSH connector, state store, setup command) and
// drives the cluster package.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/gridship/gridship/internal/cluster"
	"github.com/gridship/gridship/internal/config"
	"github.com/gridship/gridship/internal/provider"
	"github.com/gridship/gridship/internal/provider/hetzner"
	"github.com/gridship/gridship/internal/provider/script"
	"github.com/gridship/gridship/internal/repository"
	etcdstore "github.com/gridship/gridship/internal/repository/etcd"
	s3store "github.com/gridship/gridship/internal/repository/s3"
	"github.com/gridship/gridship/internal/transport"
)

// newLogger builds the stderr logger. Verbose enables V(1) debug output
// such as per-poll progress and connection attempts.
func newLogger(verbose bool) logr.Logger {
	verbosity := 0
	if verbose {
		verbosity = 1
	}
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintln(os.Stderr, prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: verbosity})
}

// buildDeps wires the collaborators declared in the template.
func buildDeps(ctx context.Context, cfg *config.Config, log logr.Logger) (cluster.Deps, error) {
	token := os.Getenv(cfg.Provider.TokenEnv)
	if token == "" {
		return cluster.Deps{}, fmt.Errorf("environment variable %s is not set", cfg.Provider.TokenEnv)
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return cluster.Deps{}, err
	}

	return cluster.Deps{
		Cloud:     hetzner.New(token, cfg.Provider.Location),
		Setup:     script.New(cfg.Setup.Command, log.WithName("setup")),
		Store:     store,
		Connector: transport.NewSSHConnector(cfg.SSH.Port, log.WithName("ssh")),
		Log:       log,
	}, nil
}

// newStore builds the persistence backend selected in the template.
func newStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return repository.NewMemory(), nil
	case "etcd":
		return etcdstore.New(cfg.Store.Etcd.Endpoints)
	case "s3":
		return s3store.New(ctx, cfg.Store.S3.Bucket, cfg.Store.S3.Prefix, cfg.Store.S3.Region, cfg.Store.S3.Endpoint)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// loadCluster restores a previously started cluster from the store.
func loadCluster(ctx context.Context, cfg *config.Config, deps cluster.Deps) (*cluster.Cluster, error) {
	rec, err := deps.Store.Get(ctx, cfg.ClusterName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("cluster %s has not been started", cfg.ClusterName)
		}
		return nil, fmt.Errorf("failed to load cluster state: %w", err)
	}
	return cluster.Restore(rec, deps), nil
}

// launchSpec translates a kind declaration into per-node launch parameters.
func launchSpec(cfg *config.Config, kind config.KindConfig) provider.LaunchSpec {
	return provider.LaunchSpec{
		ImageID:        kind.Image,
		ImageUser:      kind.ImageUser,
		Flavor:         kind.Flavor,
		SecurityGroup:  kind.SecurityGroup,
		UserData:       kind.UserData,
		KeyName:        cfg.SSH.KeyName,
		PublicKeyPath:  cfg.SSH.PublicKeyPath,
		PrivateKeyPath: cfg.SSH.PrivateKeyPath,
	}
}
