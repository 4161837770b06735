// Package metrics exposes poll counters through the OpenTelemetry metric API.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dwsmith1983/quaybridge/pkg/types"
)

// MeterName is the instrumentation scope used for every instrument.
const MeterName = "github.com/dwsmith1983/quaybridge"

// Recorder holds the instruments. A nil *Recorder is valid and records nothing.
type Recorder struct {
	polls         metric.Int64Counter
	pollErrors    metric.Int64Counter
	redirects     metric.Int64Counter
	reportsFailed metric.Int64Counter
	fetchDuration metric.Float64Histogram
}

// New creates the instruments on the given provider.
func New(mp metric.MeterProvider) (*Recorder, error) {
	m := mp.Meter(MeterName)

	var (
		r   Recorder
		err error
	)
	if r.polls, err = m.Int64Counter("quaybridge.polls",
		metric.WithDescription("Completed polls by outcome"),
		metric.WithUnit("{poll}")); err != nil {
		return nil, fmt.Errorf("creating polls counter: %w", err)
	}
	if r.pollErrors, err = m.Int64Counter("quaybridge.poll.errors",
		metric.WithDescription("Polls that ended in an internal error, by error kind"),
		metric.WithUnit("{poll}")); err != nil {
		return nil, fmt.Errorf("creating poll errors counter: %w", err)
	}
	if r.redirects, err = m.Int64Counter("quaybridge.redirects",
		metric.WithDescription("Redirects followed while fetching builds"),
		metric.WithUnit("{redirect}")); err != nil {
		return nil, fmt.Errorf("creating redirects counter: %w", err)
	}
	if r.reportsFailed, err = m.Int64Counter("quaybridge.reports.failed",
		metric.WithDescription("CodePipeline report calls that failed"),
		metric.WithUnit("{report}")); err != nil {
		return nil, fmt.Errorf("creating reports failed counter: %w", err)
	}
	if r.fetchDuration, err = m.Float64Histogram("quaybridge.fetch.duration",
		metric.WithDescription("Wall time of a build list fetch including redirects"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating fetch duration histogram: %w", err)
	}
	return &r, nil
}

// PollCompleted counts a poll that produced an outcome.
func (r *Recorder) PollCompleted(ctx context.Context, state types.PollState) {
	if r == nil {
		return
	}
	r.polls.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(state))))
}

// PollErrored counts a poll that ended in an error of the given kind.
func (r *Recorder) PollErrored(ctx context.Context, kind string) {
	if r == nil {
		return
	}
	r.pollErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RedirectFollowed counts one followed redirect hop.
func (r *Recorder) RedirectFollowed(ctx context.Context) {
	if r == nil {
		return
	}
	r.redirects.Add(ctx, 1)
}

// ReportFailed counts a failed CodePipeline report call.
func (r *Recorder) ReportFailed(ctx context.Context) {
	if r == nil {
		return
	}
	r.reportsFailed.Add(ctx, 1)
}

// FetchObserved records the duration of one build list fetch.
func (r *Recorder) FetchObserved(ctx context.Context, d time.Duration) {
	if r == nil {
		return
	}
	r.fetchDuration.Record(ctx, d.Seconds())
}
