package commands

import (
	"github.com/spf13/cobra"

	"github.com/gridship/gridship/cmd/gridship/handlers"
)

// Start returns the start command.
//
// Start launches every node declared in the template, waits until the
// instances are running and reachable over SSH, and persists the cluster
// state. An interrupted start saves what it achieved so far; re-running the
// command resumes from the saved state.
func Start() *cobra.Command {
	var (
		configPath  string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Launch the cluster's nodes and wait until they are reachable",
		Long: `Start brings the cluster described by the template to life.

Nodes are launched in parallel, then polled until their instances report
running and accept an SSH connection. Nodes that miss the startup deadline
are terminated and dropped; if a kind then falls below its configured
minimum, spare nodes from other kinds are reassigned to fill the gap.

The cluster state is saved after every phase, so Ctrl-C never loses track
of already-launched instances. Run start again to pick up where it left off.

Example:
  gridship start -c cluster.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Start(cmd.Context(), configPath, metricsAddr, verbose(cmd))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to cluster template file (required)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running (e.g. :9090)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
