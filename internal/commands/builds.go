package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/quaybridge/internal/quay"
)

type buildsOptions struct {
	repository string
	commit     string
	timeout    time.Duration
}

func newBuildsCmd(g *globalOptions) *cobra.Command {
	var opts buildsOptions

	cmd := &cobra.Command{
		Use:   "builds",
		Short: "List recent Quay builds of a repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			deps, err := newDeps(ctx, g)
			if err != nil {
				return err
			}
			return runBuilds(ctx, cmd.OutOrStdout(), deps, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.repository, "repository", "r", "", "Quay repository (namespace/name)")
	cmd.Flags().StringVarP(&opts.commit, "commit", "c", "", "only show the build the poller would match for this commit")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "overall timeout")
	_ = cmd.MarkFlagRequired("repository")
	return cmd
}

func runBuilds(ctx context.Context, w io.Writer, deps *cliDeps, opts buildsOptions) error {
	token, err := deps.creds.Get(ctx)
	if err != nil {
		return err
	}
	builds, err := deps.quay.ListBuilds(ctx, opts.repository, token)
	if err != nil {
		return fmt.Errorf("listing builds: %w", err)
	}

	if opts.commit != "" {
		b, ok := quay.FindBuild(builds, opts.commit)
		if !ok {
			fmt.Fprintf(w, "No build for commit %s.\n", opts.commit)
			return nil
		}
		builds = builds[:0]
		builds = append(builds, b)
	}

	if len(builds) == 0 {
		fmt.Fprintln(w, "No builds.")
		return nil
	}
	for _, b := range builds {
		fmt.Fprintf(w, "  %-38s %-24s %s\n", b.ID, phaseString(b.Phase), b.TriggerMetadata.Commit)
	}
	return nil
}
