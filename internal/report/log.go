package report

import (
	"context"
	"log/slog"
)

// LogReporter logs reports instead of sending them. It backs dry-run polls
// from the CLI.
type LogReporter struct {
	Logger *slog.Logger

	// Last holds the most recent report: a Success or a Failure.
	Last interface{}
}

// ReportSuccess logs s.
func (r *LogReporter) ReportSuccess(ctx context.Context, jobID string, s Success) error {
	r.Last = s
	r.logger().InfoContext(ctx, "dry-run success report",
		"jobId", jobID,
		"continuationToken", s.ContinuationToken,
		"summary", s.Summary,
		"externalId", s.ExternalExecutionID,
	)
	return nil
}

// ReportFailure logs f.
func (r *LogReporter) ReportFailure(ctx context.Context, jobID string, f Failure) error {
	r.Last = f
	r.logger().WarnContext(ctx, "dry-run failure report",
		"jobId", jobID,
		"type", f.Type,
		"message", f.Message,
		"externalId", f.ExternalExecutionID,
	)
	return nil
}

func (r *LogReporter) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
