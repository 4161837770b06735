// Package commands implements the CLI subcommands for the quaybridge binary.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/quaybridge/internal/config"
	"github.com/dwsmith1983/quaybridge/internal/credential"
	intlambda "github.com/dwsmith1983/quaybridge/internal/lambda"
	"github.com/dwsmith1983/quaybridge/internal/quay"
	"github.com/dwsmith1983/quaybridge/pkg/types"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath  string
	tokenSource string
	verbose     bool

	// httpClient replaces the Quay HTTP client; tests point it at a fake.
	httpClient *http.Client
}

// AddGlobalFlags registers the persistent flags on root and returns the
// subcommands bound to them.
func AddGlobalFlags(root *cobra.Command) []*cobra.Command {
	opts := &globalOptions{}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv(config.EnvConfigFile), "path to a quaybridge YAML config file")
	root.PersistentFlags().StringVar(&opts.tokenSource, "token-source", "", "where to read the Quay token: env, ssm or secretsmanager (default env)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	return []*cobra.Command{
		newPollCmd(opts),
		newBuildsCmd(opts),
	}
}

// cliDeps are the collaborators a command needs.
type cliDeps struct {
	cfg    *types.BridgeConfig
	creds  *credential.Cached
	quay   *quay.Client
	logger *slog.Logger
}

// newDeps loads the configuration and builds the credential provider and
// Quay client. Outside Lambda the token defaults to the QUAY_TOKEN
// environment variable.
func newDeps(ctx context.Context, opts *globalOptions) (*cliDeps, error) {
	cfg, err := config.Load(opts.configPath,
		config.WithDefaultTokenSource(types.TokenSourceEnv),
		config.WithTokenSource(types.TokenSource(opts.tokenSource)),
	)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	clients, err := awsClients(ctx, cfg)
	if err != nil {
		return nil, err
	}
	src, err := intlambda.CredentialSource(cfg.Token.Source, clients)
	if err != nil {
		return nil, err
	}

	qc, err := intlambda.NewQuayClient(cfg, opts.httpClient, logger, nil)
	if err != nil {
		return nil, err
	}

	return &cliDeps{
		cfg:    cfg,
		creds:  credential.NewCached(src, cfg.Token.Name, logger),
		quay:   qc,
		logger: logger,
	}, nil
}

// awsClients creates only the secret store client the token source needs.
func awsClients(ctx context.Context, cfg *types.BridgeConfig) (intlambda.Clients, error) {
	if cfg.Token.Source == types.TokenSourceEnv {
		return intlambda.Clients{}, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return intlambda.Clients{}, fmt.Errorf("loading AWS config: %w", err)
	}

	switch cfg.Token.Source {
	case types.TokenSourceSSM:
		return intlambda.Clients{SSM: ssm.NewFromConfig(awsCfg)}, nil
	default:
		return intlambda.Clients{SecretsManager: secretsmanager.NewFromConfig(awsCfg)}, nil
	}
}

// phaseString colours a build phase the way operators scan for it.
func phaseString(p types.Phase) string {
	switch {
	case p == types.PhaseComplete:
		return color.GreenString(string(p))
	case p.InProgress():
		return color.CyanString(string(p))
	default:
		return color.RedString(string(p))
	}
}

func stateString(s types.PollState) string {
	switch s {
	case types.PollSucceeded:
		return color.GreenString("SUCCEEDED")
	case types.PollContinue:
		return color.CyanString("IN PROGRESS")
	default:
		return color.RedString("FAILED")
	}
}
