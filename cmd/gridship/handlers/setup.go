package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridship/gridship/internal/config"
)

// Setup handles the setup command.
//
// It runs the template's setup command against the saved cluster. A failed
// setup leaves the cluster running; the command can simply be retried.
func Setup(ctx context.Context, configPath string, verbose bool) error {
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

	if !c.Setup(ctx) {
		return fmt.Errorf("setup of cluster %s did not complete, re-run setup to retry", c.Name)
	}
	log.Info("cluster configured", "cluster", c.Name)
	return nil
}
