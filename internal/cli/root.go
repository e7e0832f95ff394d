package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"github.com/zgpcy/omnicost/internal/aws"
	"github.com/zgpcy/omnicost/internal/azure"
	"github.com/zgpcy/omnicost/internal/config"
	"github.com/zgpcy/omnicost/internal/datadog"
	"github.com/zgpcy/omnicost/internal/gcp"
	"github.com/zgpcy/omnicost/internal/logger"
	"github.com/zgpcy/omnicost/internal/provider"
	"github.com/zgpcy/omnicost/internal/retry"
	"github.com/zgpcy/omnicost/internal/version"
)

// RunContext carries what a Builder needs to construct a provider
type RunContext struct {
	Config *config.Config
	Exec   *retry.Executor
	Logger *logger.Logger
}

// Builder constructs the provider for one command run
type Builder func(ctx context.Context, rc *RunContext) (provider.CostProvider, error)

// defaultBuilders construct the vendor adapters
var defaultBuilders = map[provider.ProviderType]Builder{
	provider.ProviderAWS: func(ctx context.Context, rc *RunContext) (provider.CostProvider, error) {
		return aws.NewClient(ctx, rc.Config.AWS, rc.Exec, rc.Logger)
	},
	provider.ProviderGCP: func(_ context.Context, rc *RunContext) (provider.CostProvider, error) {
		return gcp.NewClient(rc.Config.GCP, rc.Exec, rc.Logger)
	},
	provider.ProviderAzure: func(_ context.Context, rc *RunContext) (provider.CostProvider, error) {
		return azure.NewClient(rc.Config.Azure, rc.Config.Azure.SubscriptionID, rc.Exec, rc.Logger)
	},
	provider.ProviderDatadog: func(_ context.Context, rc *RunContext) (provider.CostProvider, error) {
		return datadog.NewClient(rc.Config.Datadog, rc.Exec, rc.Logger), nil
	},
}

// App is the omnicost command tree
type App struct {
	stdout   io.Writer
	stderr   io.Writer
	builders map[provider.ProviderType]Builder

	configPath  string
	logLevel    string
	metricsFile string
}

// NewApp creates the application writing reports to stdout and logs to stderr
func NewApp(stdout, stderr io.Writer) *App {
	return &App{
		stdout:   stdout,
		stderr:   stderr,
		builders: defaultBuilders,
	}
}

// Execute parses the command line and runs the selected command
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "omnicost",
		Short: "Multi-cloud cost report CLI",
		Long: `omnicost fetches daily cost and usage from AWS Cost Explorer, Azure Cost
Management, the GCP BigQuery billing export and Datadog, and prints them as
one normalized table.

Examples:
  omnicost aws -s 2025-01-01 -e 2025-01-31
  omnicost azure -s <subscription-id> --start 2025-01-01 --end 2025-01-31 -g REGION
  omnicost gcp --project my-project --dataset billing -s 2025-01-01 -e 2025-01-31 -f csv
  omnicost datadog -s 2025-01-01 -e 2025-03-31 -f markdown`,
		Version:       version.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to an optional YAML configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the configuration")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file")

	root.AddCommand(
		a.awsCommand(),
		a.gcpCommand(),
		a.azureCommand(),
		a.datadogCommand(),
	)
	return root
}
