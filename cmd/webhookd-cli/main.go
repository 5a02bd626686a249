// Command webhookd-cli is the operator CLI for the webhook delivery engine,
// exposing migrate and config subcommands over the same config package the
// apiserver and worker binaries load at startup.
package main

import (
	"fmt"
	"os"

	"github.com/webhookd/engine/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	rootCmd := cli.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
