// build-poller Lambda reports the Quay build status of a CodePipeline job's
// source commit back to CodePipeline.
package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	intlambda "github.com/dwsmith1983/quaybridge/internal/lambda"
	"github.com/dwsmith1983/quaybridge/pkg/types"
)

var (
	deps     *intlambda.Deps
	depsOnce sync.Once
	depsErr  error
)

func getDeps() (*intlambda.Deps, error) {
	depsOnce.Do(func() {
		deps, depsErr = intlambda.Init(context.Background())
	})
	return deps, depsErr
}

// handleJob polls once and flushes telemetry. Poll failures are logged by the
// poller and never returned, so CodePipeline does not see a Lambda error.
func handleJob(ctx context.Context, d *intlambda.Deps, ev types.JobEvent) error {
	d.Poller.Handle(ctx, ev)
	if err := d.Telemetry.ForceFlush(ctx); err != nil {
		d.Logger.WarnContext(ctx, "telemetry flush failed", "error", err)
	}
	return nil
}

func handler(ctx context.Context, ev types.JobEvent) error {
	d, err := getDeps()
	if err != nil {
		return err
	}
	return handleJob(ctx, d, ev)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	awslambda.Start(handler)
}
