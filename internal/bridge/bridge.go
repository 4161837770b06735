// Package bridge runs one CodePipeline poll against Quay: it resolves the
// credential, fetches the build list, classifies the build for the job's
// commit and reports the outcome.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/dwsmith1983/quaybridge/internal/metrics"
	"github.com/dwsmith1983/quaybridge/internal/quay"
	"github.com/dwsmith1983/quaybridge/internal/report"
	"github.com/dwsmith1983/quaybridge/internal/status"
	"github.com/dwsmith1983/quaybridge/pkg/types"
)

// TracerName is the instrumentation scope of poll spans.
const TracerName = "github.com/dwsmith1983/quaybridge/internal/bridge"

// CredentialProvider supplies the Quay API token.
type CredentialProvider interface {
	Get(ctx context.Context) (string, error)
}

// BuildLister fetches the recent builds of a Quay repository.
type BuildLister interface {
	ListBuilds(ctx context.Context, repository, token string) ([]types.BuildRecord, error)
}

// Poller composes the poll pipeline. It is safe for concurrent use.
type Poller struct {
	creds    CredentialProvider
	builds   BuildLister
	reporter report.Reporter
	logger   *slog.Logger
	metrics  *metrics.Recorder
	tracer   trace.Tracer
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Poller) { p.metrics = r }
}

// WithTracerProvider sets the provider poll spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Poller) { p.tracer = tp.Tracer(TracerName) }
}

// NewPoller creates a Poller.
func NewPoller(creds CredentialProvider, builds BuildLister, reporter report.Reporter, opts ...Option) *Poller {
	p := &Poller{
		creds:    creds,
		builds:   builds,
		reporter: reporter,
		logger:   slog.Default(),
		tracer:   tracenoop.NewTracerProvider().Tracer(TracerName),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ParseJob validates a job event and extracts the poll request. The commit is
// the revision of the first input artifact and the repository is the action's
// UserParameters.
func ParseJob(ev types.JobEvent) (types.PollRequest, error) {
	job := ev.Job
	if job.ID == "" {
		return types.PollRequest{}, &ConfigError{Field: "job id"}
	}
	if len(job.Data.InputArtifacts) == 0 {
		return types.PollRequest{}, &ConfigError{Field: "input artifact", Reason: "job has no input artifacts"}
	}
	commit := strings.TrimSpace(job.Data.InputArtifacts[0].Revision)
	if commit == "" {
		return types.PollRequest{}, &ConfigError{Field: "input artifact revision"}
	}
	repo := strings.Trim(strings.TrimSpace(job.Data.ActionConfiguration.Configuration.UserParameters), "/")
	if repo == "" {
		return types.PollRequest{}, &ConfigError{Field: "repository", Reason: "supply the Quay repository (namespace/name) in the action's user parameters"}
	}
	return types.PollRequest{JobID: job.ID, Repository: repo, Commit: commit}, nil
}

// Handle runs one poll and absorbs every failure. Errors are logged with their
// kind and chain, panics are recovered and logged, and nothing is returned to
// the caller: a missing report is left to CodePipeline's own timeout.
func (p *Poller) Handle(ctx context.Context, ev types.JobEvent) {
	logger := p.logger.With("pollId", ulid.Make().String(), "jobId", ev.Job.ID)
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With("requestId", lc.AwsRequestID)
	}

	ctx, span := p.tracer.Start(ctx, "quaybridge.poll",
		trace.WithAttributes(attribute.String("codepipeline.job_id", ev.Job.ID)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "poll panicked",
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			span.SetStatus(codes.Error, "panic")
			p.metrics.PollErrored(ctx, KindPanic)
		}
	}()

	out, err := p.poll(ctx, ev, logger)
	if err != nil {
		kind := ErrorKind(err)
		logger.ErrorContext(ctx, "poll failed",
			"error", err,
			"kind", kind,
			"chain", errorChain(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		p.metrics.PollErrored(ctx, kind)
		return
	}

	span.SetAttributes(attribute.String("quaybridge.outcome", string(out.State)))
	p.metrics.PollCompleted(ctx, out.State)
}

// Poll runs the pipeline once and returns the reported outcome. The first
// failing stage ends the poll; an error means no outcome was reported unless
// it is a *report.Error.
func (p *Poller) Poll(ctx context.Context, ev types.JobEvent) (status.Outcome, error) {
	return p.poll(ctx, ev, p.logger)
}

func (p *Poller) poll(ctx context.Context, ev types.JobEvent, logger *slog.Logger) (status.Outcome, error) {
	req, err := ParseJob(ev)
	if err != nil {
		return status.Outcome{}, err
	}
	logger = logger.With("repository", req.Repository, "commit", req.Commit)

	if tok := ev.Job.Data.ContinuationToken; tok != "" && tok != types.ContinuationToken(req.Commit) {
		logger.WarnContext(ctx, "continuation token does not match commit",
			"continuationToken", tok,
			"expected", types.ContinuationToken(req.Commit),
		)
	}

	token, err := p.stage(ctx, "credential", func(ctx context.Context) (string, error) {
		return p.creds.Get(ctx)
	})
	if err != nil {
		return status.Outcome{}, err
	}
	req = req.WithCredential(token)

	var builds []types.BuildRecord
	_, err = p.stage(ctx, "fetch", func(ctx context.Context) (string, error) {
		var ferr error
		builds, ferr = p.builds.ListBuilds(ctx, req.Repository, req.Credential)
		return "", ferr
	})
	if err != nil {
		return status.Outcome{}, err
	}

	var out status.Outcome
	if build, ok := quay.FindBuild(builds, req.Commit); ok {
		out = status.Classify(&build)
	} else {
		out = status.Classify(nil)
	}
	logger.InfoContext(ctx, "classified quay build",
		"builds", len(builds),
		"phase", out.Phase,
		"buildId", out.BuildID,
		"outcome", out.State,
		"message", out.Message,
	)

	_, err = p.stage(ctx, "report", func(ctx context.Context) (string, error) {
		return "", report.Send(ctx, p.reporter, out, req.JobID, req.Commit)
	})
	if err != nil {
		return out, err
	}
	logger.InfoContext(ctx, "reported to codepipeline", "outcome", out.State)
	return out, nil
}

// stage runs fn inside a child span named after the pipeline stage.
func (p *Poller) stage(ctx context.Context, name string, fn func(context.Context) (string, error)) (string, error) {
	ctx, span := p.tracer.Start(ctx, "quaybridge."+name)
	defer span.End()

	v, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
	}
	return v, err
}
