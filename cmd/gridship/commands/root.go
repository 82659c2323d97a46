// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated to
// handler functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the gridship CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gridship",
		Short: "Provision and manage compute clusters on Hetzner Cloud",
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(Start())
	cmd.AddCommand(Setup())
	cmd.AddCommand(Status())
	cmd.AddCommand(Update())
	cmd.AddCommand(Stop())
	cmd.AddCommand(Version())

	return cmd
}

func verbose(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("verbose")
	return v
}
