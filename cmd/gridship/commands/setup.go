package commands

import (
	"github.com/spf13/cobra"

	"github.com/gridship/gridship/cmd/gridship/handlers"
)

// Setup returns the setup command.
//
// Setup runs the configured setup command against a started cluster,
// passing it an inventory of the nodes and their addresses.
func Setup() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Run the configured setup command against the cluster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Setup(cmd.Context(), configPath, verbose(cmd))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to cluster template file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
