// Package main is the entry point for the gridship CLI.
//
// gridship starts, configures and tears down compute clusters on Hetzner
// Cloud from a declarative yaml template. Cluster state is persisted between
// invocations so a started cluster can later be set up, inspected, updated
// or stopped.
//
// Commands: start, setup, status, update, stop, version.
package main

import (
	"fmt"
	"os"

	"github.com/gridship/gridship/cmd/gridship/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
