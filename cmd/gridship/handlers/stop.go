package handlers

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridship/gridship/internal/config"
)

// Stop handles the stop command.
//
// It terminates every instance of the saved cluster. Without force, a
// partial failure keeps the surviving nodes saved so a later stop can retry.
func Stop(ctx context.Context, configPath string, force, verbose bool) error {
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

	c, err := loadCluster(ctx, cfg, deps)
	if err != nil {
		return err
	}

	log.Info("stopping cluster", "cluster", c.Name, "nodes", len(c.AllNodes()), "force", force)
	if err := c.Stop(ctx, force); err != nil {
		return err
	}
	log.Info("cluster stopped", "cluster", c.Name)
	return nil
}
