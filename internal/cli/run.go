package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/zgpcy/omnicost/internal/config"
	"github.com/zgpcy/omnicost/internal/format"
	"github.com/zgpcy/omnicost/internal/logger"
	"github.com/zgpcy/omnicost/internal/metrics"
	"github.com/zgpcy/omnicost/internal/provider"
	"github.com/zgpcy/omnicost/internal/retry"
)

// command describes one vendor command run
type command struct {
	provider provider.ProviderType
	vendor   string
	opts     Options

	// configure applies command flags to the loaded configuration
	configure func(*config.Config)

	// emptyNotice, when set, is printed instead of the report when no
	// records were fetched
	emptyNotice string
}

// run validates the options, builds the provider, checks credentials,
// fetches and prints the report
func (a *App) run(ctx context.Context, c command) error {
	params, outputFormat, err := c.opts.FetchParams()
	if err != nil {
		return err
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if c.configure != nil {
		c.configure(cfg)
	}

	log := a.newLogger(cfg, c.opts.Quiet)
	recorder := metrics.NewRecorder(c.provider)
	if a.metricsFile != "" {
		defer func() {
			if err := recorder.WriteTextfile(a.metricsFile); err != nil {
				log.Warn("Failed to write metrics file", "path", a.metricsFile, "error", err)
			}
		}()
	}

	exec := &retry.Executor{
		MaxAttempts: cfg.Retry.MaxRetries,
		BaseDelay:   time.Duration(cfg.Retry.RetryDelayMS) * time.Millisecond,
		Timeout:     time.Duration(cfg.APITimeout) * time.Second,
		Logger:      log,
		Observer:    recorder,
	}

	build, ok := a.builders[c.provider]
	if !ok {
		return fmt.Errorf("no provider registered for %s", c.provider)
	}
	costProvider, err := build(ctx, &RunContext{Config: cfg, Exec: exec, Logger: log})
	if err != nil {
		return err
	}
	if closer, ok := costProvider.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Debug("Failed to close provider", "error", err)
			}
		}()
	}

	log.Info(fmt.Sprintf("Validating %s credentials...", c.vendor))
	valid, err := costProvider.ValidateCredentials(ctx)
	if err != nil {
		return err
	}
	if !valid {
		return fmt.Errorf("Invalid or missing %s credentials", c.vendor)
	}

	log.Info(fmt.Sprintf("Fetching %s costs from %s to %s...", c.vendor, params.StartDate, params.EndDate),
		"source", costProvider.DisplayName(),
		"group_by", string(params.GroupBy))

	started := time.Now()
	records, err := costProvider.FetchCosts(ctx, params)
	recorder.ObserveFetch(records, time.Since(started), err)
	if err != nil {
		return err
	}
	log.Info(fmt.Sprintf("Retrieved %d cost entries", len(records)))

	if len(records) == 0 && c.emptyNotice != "" {
		fmt.Fprintln(a.stdout, c.emptyNotice)
		return nil
	}

	output, err := format.Render(records, outputFormat)
	if err != nil {
		return err
	}

	if c.opts.Sheet != "" {
		fmt.Fprintln(a.stdout, "Google Sheets integration not yet implemented")
		fmt.Fprintln(a.stdout, "Sheet URL:", c.opts.Sheet)
		return nil
	}

	fmt.Fprintln(a.stdout, output)
	return nil
}

// newLogger builds the run logger. --log-level overrides the configuration;
// quiet mode raises the level to at least warn.
func (a *App) newLogger(cfg *config.Config, quiet bool) *logger.Logger {
	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	if quiet && logger.ParseLevel(level) < slog.LevelWarn {
		level = "warn"
	}
	return logger.NewWithWriter(a.stderr, level, cfg.LogFormat)
}
