// Package script configures clusters by running a local command against a
// generated node inventory.
package script

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/gridship/gridship/internal/repository"
)

// Setup runs a shell command after the cluster is up. The command receives
// the cluster name and the path to an inventory file through the
// GRIDSHIP_CLUSTER and GRIDSHIP_INVENTORY environment variables.
type Setup struct {
	command string
	log     logr.Logger
}

// New returns a Setup running command. An empty command makes SetupCluster
// a no-op success.
func New(command string, log logr.Logger) *Setup {
	return &Setup{command: command, log: log}
}

// SetupCluster writes the inventory and runs the configured command. The
// boolean reports whether configuration succeeded; an error is reserved for
// problems preparing the run.
func (s *Setup) SetupCluster(ctx context.Context, rec repository.ClusterRecord) (bool, error) {
	if s.command == "" {
		s.log.Info("no setup command configured, nothing to do", "cluster", rec.Name)
		return true, nil
	}

	inventory, err := writeInventory(rec)
	if err != nil {
		return false, err
	}
	defer os.Remove(inventory)

	cmd := exec.CommandContext(ctx, "sh", "-c", s.command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		"GRIDSHIP_CLUSTER="+rec.Name,
		"GRIDSHIP_INVENTORY="+inventory,
	)

	s.log.Info("running setup command", "cluster", rec.Name, "inventory", inventory)
	if err := cmd.Run(); err != nil {
		s.log.Error(err, "setup command failed", "cluster", rec.Name)
		return false, nil
	}
	return true, nil
}

// Cleanup removes nothing: the inventory is deleted after each run and the
// command owns any state it created.
func (s *Setup) Cleanup(_ context.Context, _ repository.ClusterRecord) error {
	return nil
}

// writeInventory renders one ini-style section per kind, one node per line
// with its connection address.
func writeInventory(rec repository.ClusterRecord) (string, error) {
	var b strings.Builder

	kinds := make([]string, 0, len(rec.Groups))
	for kind := range rec.Groups {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		fmt.Fprintf(&b, "[%s]\n", kind)
		for _, node := range rec.Groups[kind] {
			addr := node.PreferredIP
			if addr == "" && len(node.IPs) > 0 {
				addr = node.IPs[0]
			}
			fmt.Fprintf(&b, "%s ansible_host=%s ansible_user=%s\n", node.Name, addr, node.ImageUser)
		}
		b.WriteString("\n")
	}

	f, err := os.CreateTemp("", "gridship-inventory-*.ini")
	if err != nil {
		return "", fmt.Errorf("failed to create inventory file: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write inventory file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write inventory file: %w", err)
	}
	return f.Name(), nil
}
