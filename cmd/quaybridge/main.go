package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/quaybridge/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "quaybridge",
		Short: "Bridge CodePipeline jobs to Quay.io image builds",
		Long: `quaybridge reports whether the Quay.io image build for a pipeline's source
commit has finished. The same poll that runs in the build-poller Lambda can be
run locally as a dry run; nothing is reported to CodePipeline from the CLI.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(commands.AddGlobalFlags(root)...)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
