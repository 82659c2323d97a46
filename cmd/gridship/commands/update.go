package commands

import (
	"github.com/spf13/cobra"

	"github.com/gridship/gridship/cmd/gridship/handlers"
)

// Update returns the update command.
//
// Update re-queries the provider for each node's current addresses and
// persists the refreshed state.
func Update() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Refresh the cluster's node addresses from the provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Update(cmd.Context(), configPath, verbose(cmd))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to cluster template file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
