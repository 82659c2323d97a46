package commands

import (
	"github.com/spf13/cobra"

	"github.com/gridship/gridship/cmd/gridship/handlers"
)

// Status returns the status command.
//
// Status prints the persisted view of the cluster: its kinds, nodes,
// instance ids and addresses. It never talks to the cloud.
func Status() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted state of the cluster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.Context(), cmd.OutOrStdout(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to cluster template file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
