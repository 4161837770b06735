// Package lambda wires the poller's dependencies for the Lambda runtime.
package lambda

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/dwsmith1983/quaybridge/internal/bridge"
	"github.com/dwsmith1983/quaybridge/internal/config"
	"github.com/dwsmith1983/quaybridge/internal/credential"
	"github.com/dwsmith1983/quaybridge/internal/metrics"
	"github.com/dwsmith1983/quaybridge/internal/quay"
	"github.com/dwsmith1983/quaybridge/internal/report"
	"github.com/dwsmith1983/quaybridge/internal/telemetry"
	"github.com/dwsmith1983/quaybridge/pkg/types"
)

// Deps holds shared dependencies for the Lambda handler. They live for the
// lifetime of the container so the credential and circuit breaker survive
// across warm invocations.
type Deps struct {
	Config    *types.BridgeConfig
	Poller    *bridge.Poller
	Telemetry *telemetry.Providers
	Logger    *slog.Logger
}

// Clients are the API clients the poller calls. HTTP is used for Quay and
// defaults to http.DefaultClient.
type Clients struct {
	SSM            credential.SSMAPI
	SecretsManager credential.SecretsManagerAPI
	CodePipeline   report.CodePipelineAPI
	HTTP           *http.Client
}

// Init creates shared dependencies from environment variables.
// Reads: BRIDGE_CONFIG_FILE, QUAY_*, HTTP_TIMEOUT, BREAKER_*, LOG_LEVEL,
// AWS_REGION, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_SERVICE_NAME
func Init(ctx context.Context) (*Deps, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	clients := Clients{CodePipeline: codepipeline.NewFromConfig(awsCfg)}
	switch cfg.Token.Source {
	case types.TokenSourceSSM:
		clients.SSM = ssm.NewFromConfig(awsCfg)
	case types.TokenSourceSecretsManager:
		clients.SecretsManager = secretsmanager.NewFromConfig(awsCfg)
	}

	tel, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	return Wire(cfg, clients, tel, os.Stderr)
}

// Wire builds the poller from a validated config and the given clients.
// Logs are written as JSON to w.
func Wire(cfg *types.BridgeConfig, clients Clients, tel *telemetry.Providers, w io.Writer) (*Deps, error) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))

	if tel == nil {
		tel = telemetry.Noop()
	}
	rec, err := metrics.New(tel.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	src, err := CredentialSource(cfg.Token.Source, clients)
	if err != nil {
		return nil, err
	}
	creds := credential.NewCached(src, cfg.Token.Name, logger)

	qc, err := NewQuayClient(cfg, clients.HTTP, logger, rec)
	if err != nil {
		return nil, err
	}

	if clients.CodePipeline == nil {
		return nil, fmt.Errorf("codepipeline client required")
	}
	reporter := report.NewCodePipelineReporter(clients.CodePipeline, logger, rec)

	poller := bridge.NewPoller(creds, qc, reporter,
		bridge.WithLogger(logger),
		bridge.WithMetrics(rec),
		bridge.WithTracerProvider(tel.TracerProvider),
	)

	return &Deps{
		Config:    cfg,
		Poller:    poller,
		Telemetry: tel,
		Logger:    logger,
	}, nil
}

// CredentialSource selects the secret store named by source.
func CredentialSource(source types.TokenSource, clients Clients) (credential.Source, error) {
	switch source {
	case types.TokenSourceSSM:
		if clients.SSM == nil {
			return nil, fmt.Errorf("ssm client required for token source %q", source)
		}
		return credential.NewSSMSource(clients.SSM), nil
	case types.TokenSourceSecretsManager:
		if clients.SecretsManager == nil {
			return nil, fmt.Errorf("secrets manager client required for token source %q", source)
		}
		return credential.NewSecretsManagerSource(clients.SecretsManager), nil
	case types.TokenSourceEnv:
		return credential.EnvSource{}, nil
	default:
		return nil, fmt.Errorf("unknown token source %q", source)
	}
}

// NewQuayClient creates the Quay client described by cfg. The circuit breaker
// is only attached when cfg enables it.
func NewQuayClient(cfg *types.BridgeConfig, hc *http.Client, logger *slog.Logger, rec *metrics.Recorder) (*quay.Client, error) {
	if hc == nil {
		hc = http.DefaultClient
	}
	opts := []quay.Option{
		quay.WithHTTPClient(hc),
		quay.WithTimeout(config.HTTPTimeout(cfg)),
		quay.WithMaxRedirects(cfg.HTTP.MaxRedirects),
		quay.WithLogger(logger),
		quay.WithMetrics(rec),
	}
	if config.BreakerEnabled(cfg) {
		opts = append(opts, quay.WithBreaker(quay.BreakerConfig{
			FailThreshold: cfg.Breaker.FailThreshold,
			Cooldown:      config.BreakerCooldown(cfg),
		}))
	}
	qc, err := quay.NewClient(cfg.QuayBaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating quay client: %w", err)
	}
	return qc, nil
}
