package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/quaybridge/internal/bridge"
	"github.com/dwsmith1983/quaybridge/internal/report"
	"github.com/dwsmith1983/quaybridge/pkg/types"
)

type pollOptions struct {
	repository string
	commit     string
	jobID      string
	timeout    time.Duration
}

func newPollCmd(g *globalOptions) *cobra.Command {
	var opts pollOptions

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run one poll for a commit without reporting to CodePipeline",
		Long: `Poll resolves the Quay token, fetches the repository's builds, classifies
the build for the commit and prints the report that would be sent to
CodePipeline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			deps, err := newDeps(ctx, g)
			if err != nil {
				return err
			}
			return runPoll(ctx, cmd.OutOrStdout(), deps, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.repository, "repository", "r", "", "Quay repository (namespace/name)")
	cmd.Flags().StringVarP(&opts.commit, "commit", "c", "", "source commit to look for")
	cmd.Flags().StringVar(&opts.jobID, "job-id", "local", "job id used in the printed report")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "overall timeout")
	_ = cmd.MarkFlagRequired("repository")
	_ = cmd.MarkFlagRequired("commit")
	return cmd
}

func runPoll(ctx context.Context, w io.Writer, deps *cliDeps, opts pollOptions) error {
	rep := &report.LogReporter{Logger: deps.logger}
	poller := bridge.NewPoller(deps.creds, deps.quay, rep, bridge.WithLogger(deps.logger))

	ev := types.JobEvent{Job: types.Job{
		ID: opts.jobID,
		Data: types.JobData{
			ActionConfiguration: types.ActionConfiguration{
				Configuration: types.ActionSettings{UserParameters: opts.repository},
			},
			InputArtifacts: []types.Artifact{{Name: "source", Revision: opts.commit}},
		},
	}}

	out, err := poller.Poll(ctx, ev)
	if err != nil {
		return fmt.Errorf("poll failed (%s): %w", bridge.ErrorKind(err), err)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "%s @ %s\n", opts.repository, opts.commit)
	fmt.Fprintf(w, "  Outcome: %s\n", stateString(out.State))
	if out.BuildID != "" {
		fmt.Fprintf(w, "  Build:   %s (%s)\n", out.BuildID, phaseString(out.Phase))
	}
	fmt.Fprintf(w, "  Message: %s\n", out.Message)

	switch r := rep.Last.(type) {
	case report.Success:
		if r.ContinuationToken != "" {
			fmt.Fprintf(w, "  Report:  success, continuation token %s\n", r.ContinuationToken)
		} else {
			fmt.Fprintln(w, "  Report:  success")
		}
	case report.Failure:
		fmt.Fprintf(w, "  Report:  failure %s\n", r.Type)
	}
	return nil
}
