package report

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	cptypes "github.com/aws/aws-sdk-go-v2/service/codepipeline/types"

	"github.com/dwsmith1983/quaybridge/internal/metrics"
)

// CodePipeline field limits.
const (
	maxSummary      = 2048
	maxMessage      = 5000
	maxExternalID   = 1500
	maxContinuation = 2048
)

// CodePipelineAPI is the subset of the CodePipeline client used for reporting.
type CodePipelineAPI interface {
	PutJobSuccessResult(ctx context.Context, params *codepipeline.PutJobSuccessResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobSuccessResultOutput, error)
	PutJobFailureResult(ctx context.Context, params *codepipeline.PutJobFailureResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobFailureResultOutput, error)
}

// CodePipelineReporter reports job results through the CodePipeline API.
type CodePipelineReporter struct {
	client  CodePipelineAPI
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewCodePipelineReporter creates a reporter backed by client.
func NewCodePipelineReporter(client CodePipelineAPI, logger *slog.Logger, m *metrics.Recorder) *CodePipelineReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CodePipelineReporter{client: client, logger: logger, metrics: m}
}

// ReportSuccess calls PutJobSuccessResult.
func (r *CodePipelineReporter) ReportSuccess(ctx context.Context, jobID string, s Success) error {
	input := &codepipeline.PutJobSuccessResultInput{
		JobId: aws.String(jobID),
	}
	if s.ContinuationToken != "" {
		input.ContinuationToken = aws.String(clip(s.ContinuationToken, maxContinuation))
	}
	if s.Summary != "" || s.ExternalExecutionID != "" {
		details := &cptypes.ExecutionDetails{}
		if s.Summary != "" {
			details.Summary = aws.String(clip(s.Summary, maxSummary))
		}
		if s.ExternalExecutionID != "" {
			details.ExternalExecutionId = aws.String(clip(s.ExternalExecutionID, maxExternalID))
		}
		input.ExecutionDetails = details
	}

	if _, err := r.client.PutJobSuccessResult(ctx, input); err != nil {
		r.metrics.ReportFailed(ctx)
		return &Error{JobID: jobID, Op: "success", Err: err}
	}
	r.logger.InfoContext(ctx, "reported job success to CodePipeline",
		"jobId", jobID, "continue", s.ContinuationToken != "")
	return nil
}

// ReportFailure calls PutJobFailureResult.
func (r *CodePipelineReporter) ReportFailure(ctx context.Context, jobID string, f Failure) error {
	details := &cptypes.FailureDetails{
		Type:    cptypes.FailureType(f.Type),
		Message: aws.String(clip(f.Message, maxMessage)),
	}
	if f.ExternalExecutionID != "" {
		details.ExternalExecutionId = aws.String(clip(f.ExternalExecutionID, maxExternalID))
	}

	_, err := r.client.PutJobFailureResult(ctx, &codepipeline.PutJobFailureResultInput{
		JobId:          aws.String(jobID),
		FailureDetails: details,
	})
	if err != nil {
		r.metrics.ReportFailed(ctx)
		return &Error{JobID: jobID, Op: "failure", Err: err}
	}
	r.logger.InfoContext(ctx, "reported job failure to CodePipeline",
		"jobId", jobID, "type", f.Type, "externalId", f.ExternalExecutionID)
	return nil
}

// clip cuts s to at most n characters without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
