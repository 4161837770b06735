// Package report delivers poll outcomes to the pipeline orchestrator.
package report

import (
	"context"
	"fmt"

	"github.com/dwsmith1983/quaybridge/internal/status"
	"github.com/dwsmith1983/quaybridge/pkg/types"
)

// Reporter acknowledges a job to the orchestrator. Each poll calls exactly
// one of the two methods exactly once.
type Reporter interface {
	ReportSuccess(ctx context.Context, jobID string, s Success) error
	ReportFailure(ctx context.Context, jobID string, f Failure) error
}

// Success is a success report. An empty ContinuationToken marks the job as
// finished; a non-empty one asks the orchestrator to invoke the poller again.
type Success struct {
	ContinuationToken   string
	Summary             string
	ExternalExecutionID string
}

// Failure is a failure report.
type Failure struct {
	Type                types.FailureType
	Message             string
	ExternalExecutionID string
}

// Error is returned when the orchestrator rejects or never acknowledges a
// report. Reports are not retried.
type Error struct {
	JobID string
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("reporting %s for job %s: %v", e.Op, e.JobID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Send translates an outcome into its report and delivers it through r.
func Send(ctx context.Context, r Reporter, out status.Outcome, jobID, commit string) error {
	switch out.State {
	case types.PollContinue:
		return r.ReportSuccess(ctx, jobID, Success{
			ContinuationToken:   types.ContinuationToken(commit),
			Summary:             out.Summary(),
			ExternalExecutionID: out.BuildID,
		})
	case types.PollSucceeded:
		return r.ReportSuccess(ctx, jobID, Success{
			Summary:             out.Summary(),
			ExternalExecutionID: out.BuildID,
		})
	case types.PollFailed:
		return r.ReportFailure(ctx, jobID, Failure{
			Type:                types.FailureJobFailed,
			Message:             out.Message,
			ExternalExecutionID: out.BuildID,
		})
	default:
		return fmt.Errorf("cannot report unknown poll state %q", out.State)
	}
}
