package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"

	"github.com/gridship/gridship/internal/cluster"
	"github.com/gridship/gridship/internal/config"
	"github.com/gridship/gridship/internal/metrics"
	"github.com/gridship/gridship/internal/repository"
)

// Start handles the start command.
//
// It builds the cluster from the template (or resumes a previously saved
// one), launches all nodes and waits until they are running and reachable.
// SIGINT and SIGTERM interrupt the wait cooperatively: already-achieved
// state is saved before the command exits.
func Start(ctx context.Context, configPath, metricsAddr string, verbose bool) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}

	log := newLogger(verbose)
	deps, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		serveMetrics(metricsAddr, log)
	}

	c, err := buildCluster(ctx, cfg, deps, log)
	if err != nil {
		return err
	}

	if err := c.Start(ctx, cfg.Minimums()); err != nil {
		return err
	}

	if frontend, err := c.FrontendNode(); err == nil {
		log.Info("cluster is up", "cluster", c.Name, "frontend", frontend.Name, "address", frontend.ConnectionIP())
	} else {
		log.Info("cluster is up", "cluster", c.Name)
	}
	return nil
}

// buildCluster resumes the saved cluster when a record exists, otherwise it
// creates a fresh one from the template. On resume, kinds whose declared
// count grew since the last run are topped up with new nodes.
func buildCluster(ctx context.Context, cfg *config.Config, deps cluster.Deps, log logr.Logger) (*cluster.Cluster, error) {
	rec, err := deps.Store.Get(ctx, cfg.ClusterName)
	switch {
	case err == nil:
		log.Info("resuming previously started cluster", "cluster", cfg.ClusterName)
		c := cluster.Restore(rec, deps)
		// The template stays authoritative for the frontend kind and the
		// timeout, so edits between runs take effect on resume.
		if cfg.SSHTo != "" {
			c.FrontendKind = cfg.SSHTo
		}
		if timeout := time.Duration(cfg.StartupTimeout); timeout > 0 {
			c.StartupTimeout = timeout
		}
		for _, kind := range cfg.Kinds {
			for len(c.Groups[kind.Name]) < kind.Count {
				if _, err := c.AddNode(kind.Name, launchSpec(cfg, kind)); err != nil {
					return nil, err
				}
			}
		}
		return c, nil

	case errors.Is(err, repository.ErrNotFound):
		c := cluster.New(cfg.ClusterName, deps)
		c.FrontendKind = cfg.SSHTo
		if timeout := time.Duration(cfg.StartupTimeout); timeout > 0 {
			c.StartupTimeout = timeout
		}
		for _, kind := range cfg.Kinds {
			if err := c.AddNodes(kind.Name, kind.Count, launchSpec(cfg, kind)); err != nil {
				return nil, err
			}
		}
		return c, nil

	default:
		return nil, fmt.Errorf("failed to load cluster state: %w", err)
	}
}

// serveMetrics exposes the Prometheus counters for the duration of the
// command. The server dies with the process; there is nothing to shut down.
func serveMetrics(addr string, log logr.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	log.Info("serving metrics", "addr", addr)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error(err, "metrics server stopped")
		}
	}()
}
