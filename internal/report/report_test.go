package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	cptypes "github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/quaybridge/internal/status"
	"github.com/dwsmith1983/quaybridge/pkg/types"
)

type stubCodePipeline struct {
	successIn  []*codepipeline.PutJobSuccessResultInput
	failureIn  []*codepipeline.PutJobFailureResultInput
	successErr error
	failureErr error
}

func (s *stubCodePipeline) PutJobSuccessResult(_ context.Context, in *codepipeline.PutJobSuccessResultInput, _ ...func(*codepipeline.Options)) (*codepipeline.PutJobSuccessResultOutput, error) {
	s.successIn = append(s.successIn, in)
	return &codepipeline.PutJobSuccessResultOutput{}, s.successErr
}

func (s *stubCodePipeline) PutJobFailureResult(_ context.Context, in *codepipeline.PutJobFailureResultInput, _ ...func(*codepipeline.Options)) (*codepipeline.PutJobFailureResultOutput, error) {
	s.failureIn = append(s.failureIn, in)
	return &codepipeline.PutJobFailureResultOutput{}, s.failureErr
}

func TestSend_Continue(t *testing.T) {
	cp := &stubCodePipeline{}
	r := NewCodePipelineReporter(cp, nil, nil)

	out := status.Classify(&types.BuildRecord{ID: "b1", Phase: types.PhaseBuilding})
	require.NoError(t, Send(context.Background(), r, out, "job-1", "abc123"))

	require.Len(t, cp.successIn, 1)
	assert.Empty(t, cp.failureIn)
	in := cp.successIn[0]
	assert.Equal(t, "job-1", *in.JobId)
	require.NotNil(t, in.ContinuationToken)
	assert.Equal(t, "token-abc123", *in.ContinuationToken)
	require.NotNil(t, in.ExecutionDetails)
	assert.Equal(t, "b1", *in.ExecutionDetails.ExternalExecutionId)
	assert.Contains(t, *in.ExecutionDetails.Summary, "building")
}

func TestSend_NotFoundContinues(t *testing.T) {
	cp := &stubCodePipeline{}
	r := NewCodePipelineReporter(cp, nil, nil)

	require.NoError(t, Send(context.Background(), r, status.Classify(nil), "job-1", "abc123"))

	require.Len(t, cp.successIn, 1)
	in := cp.successIn[0]
	assert.Equal(t, "token-abc123", *in.ContinuationToken)
	require.NotNil(t, in.ExecutionDetails)
	assert.Nil(t, in.ExecutionDetails.ExternalExecutionId)
}

func TestSend_Succeeded(t *testing.T) {
	cp := &stubCodePipeline{}
	r := NewCodePipelineReporter(cp, nil, nil)

	out := status.Classify(&types.BuildRecord{ID: "b1", Phase: types.PhaseComplete})
	require.NoError(t, Send(context.Background(), r, out, "job-1", "abc123"))

	require.Len(t, cp.successIn, 1)
	assert.Nil(t, cp.successIn[0].ContinuationToken)
	assert.Empty(t, cp.failureIn)
}

func TestSend_Failed(t *testing.T) {
	cp := &stubCodePipeline{}
	r := NewCodePipelineReporter(cp, nil, nil)

	out := status.Classify(&types.BuildRecord{ID: "b1", Phase: "expired"})
	require.NoError(t, Send(context.Background(), r, out, "job-1", "abc123"))

	assert.Empty(t, cp.successIn)
	require.Len(t, cp.failureIn, 1)
	in := cp.failureIn[0]
	assert.Equal(t, "job-1", *in.JobId)
	assert.Equal(t, cptypes.FailureTypeJobFailed, in.FailureDetails.Type)
	assert.Equal(t, "b1", *in.FailureDetails.ExternalExecutionId)
	assert.Contains(t, *in.FailureDetails.Message, "unexpected build phase: expired")
}

func TestSend_UnknownState(t *testing.T) {
	cp := &stubCodePipeline{}
	err := Send(context.Background(), NewCodePipelineReporter(cp, nil, nil), status.Outcome{State: "bogus"}, "job-1", "c")
	assert.Error(t, err)
	assert.Empty(t, cp.successIn)
	assert.Empty(t, cp.failureIn)
}

func TestCodePipelineReporter_Errors(t *testing.T) {
	apiErr := errors.New("throttled")
	cp := &stubCodePipeline{successErr: apiErr, failureErr: apiErr}
	r := NewCodePipelineReporter(cp, nil, nil)

	err := r.ReportSuccess(context.Background(), "job-1", Success{ContinuationToken: "token-x"})
	var repErr *Error
	require.True(t, errors.As(err, &repErr))
	assert.Equal(t, "job-1", repErr.JobID)
	assert.Equal(t, "success", repErr.Op)
	assert.ErrorIs(t, err, apiErr)

	err = r.ReportFailure(context.Background(), "job-2", Failure{Type: types.FailureJobFailed, Message: "m"})
	require.True(t, errors.As(err, &repErr))
	assert.Equal(t, "failure", repErr.Op)
	assert.Len(t, cp.successIn, 1, "no retry")
	assert.Len(t, cp.failureIn, 1, "no retry")
}

func TestCodePipelineReporter_Truncates(t *testing.T) {
	cp := &stubCodePipeline{}
	r := NewCodePipelineReporter(cp, nil, nil)

	long := strings.Repeat("x", 6000)
	require.NoError(t, r.ReportSuccess(context.Background(), "job-1", Success{Summary: long}))
	require.NoError(t, r.ReportFailure(context.Background(), "job-1", Failure{Type: types.FailureJobFailed, Message: long}))

	assert.Len(t, *cp.successIn[0].ExecutionDetails.Summary, maxSummary)
	assert.Len(t, *cp.failureIn[0].FailureDetails.Message, maxMessage)
}

func TestClipKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "abc", clip("abc", 5))
	assert.Equal(t, "héé", clip("hééé", 3))
	assert.Equal(t, "日本", clip("日本語", 2))
	assert.True(t, utf8.ValidString(clip("日本語", 2)))

	long := strings.Repeat("é", maxMessage+10)
	got := clip(long, maxMessage)
	assert.Equal(t, maxMessage, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}

func TestLogReporter(t *testing.T) {
	r := &LogReporter{}
	require.NoError(t, Send(context.Background(), r, status.Classify(nil), "job-1", "abc123"))
	s, ok := r.Last.(Success)
	require.True(t, ok)
	assert.Equal(t, "token-abc123", s.ContinuationToken)

	out := status.Classify(&types.BuildRecord{ID: "b1", Phase: "expired"})
	require.NoError(t, Send(context.Background(), r, out, "job-1", "abc123"))
	f, ok := r.Last.(Failure)
	require.True(t, ok)
	assert.Equal(t, types.FailureJobFailed, f.Type)
	assert.Equal(t, "b1", f.ExternalExecutionID)
}
