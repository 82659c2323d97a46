package handlers

import (
	"context"

	"github.com/gridship/gridship/internal/config"
)

// Update handles the update command.
//
// It refreshes every node's addresses from the provider and persists the
// result. Nodes the provider cannot answer for keep their saved addresses.
func Update(ctx context.Context, configPath string, verbose bool) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}

	log := newLogger(verbose)
	deps, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}

	c, err := loadCluster(ctx, cfg, deps)
	if err != nil {
		return err
	}

	if err := c.Update(ctx); err != nil {
		return err
	}
	log.Info("cluster state refreshed", "cluster", c.Name, "nodes", len(c.AllNodes()))
	return nil
}
