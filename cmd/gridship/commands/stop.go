package commands

import (
	"github.com/spf13/cobra"

	"github.com/gridship/gridship/cmd/gridship/handlers"
)

// Stop returns the stop command.
//
// Stop terminates every instance of a previously started cluster and removes
// the persisted record once all of them are gone.
func Stop() *cobra.Command {
	var (
		configPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Terminate the cluster's instances and delete its record",
		Long: `Stop terminates all instances belonging to the cluster.

If some instances cannot be terminated, the remaining nodes are re-saved so
a later stop can retry, and the command fails. With --force the record is
removed regardless, abandoning any instance the provider refused to delete.

Example:
  gridship stop -c cluster.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Stop(cmd.Context(), configPath, force, verbose(cmd))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to cluster template file (required)")
	cmd.Flags().BoolVar(&force, "force", false, "Delete the cluster record even if some instances could not be terminated")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
