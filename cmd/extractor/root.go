package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	exerrors "go-metadata-extractor/internal/errors"
	"go-metadata-extractor/pkg/logging"
	"go-metadata-extractor/pkg/tracing"
)

const serviceName = "metadata-extractor"

var (
	configPath   string
	logLevel     string
	logFormat    string
	dbPath       string
	otlpEndpoint string
)

var rootCmd = &cobra.Command{
	Use:   "extractor",
	Short: "Extract fields from compressed DataCite JSONL dumps",
	Long: `extractor walks a directory of compressed JSON-lines metadata records and
writes the values found at dotted field paths to CSV or JSONL, either to one
file or organized per provider and client.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML or JSON file with run options")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "console", "Log format (console, json)")
	pf.StringVar(&dbPath, "db", "", "SQLite file recording run history (disabled when empty)")
	pf.StringVar(&otlpEndpoint, "otlp-endpoint", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "OTLP/HTTP collector host:port for traces")
}

// setup builds the logger, a signal-aware context and optional tracing. The
// returned cleanup must run before exit.
func setup(cmd *cobra.Command) (context.Context, *zap.Logger, func(), error) {
	logger, err := logging.New(logLevel, logFormat)
	if err != nil {
		return nil, nil, nil, exerrors.Configuration("logging", err)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)

	var shutdown func(context.Context) error
	if otlpEndpoint != "" {
		shutdown, err = tracing.SetupTracing(ctx, tracing.DefaultConfig(serviceName, otlpEndpoint), logger)
		if err != nil {
			logger.Warn("Tracing disabled", zap.Error(err))
		}
	}

	cleanup := func() {
		stop()
		_ = tracing.ShutdownTracing(shutdown, logger)
		_ = logger.Sync()
	}
	return ctx, logger, cleanup, nil
}

// exitCode maps errors to process exit codes: 2 for bad configuration or
// input, 130 for interruption, 1 otherwise.
func exitCode(err error) int {
	switch {
	case exerrors.IsConfiguration(err), exerrors.IsInputNotFound(err):
		return 2
	case isInterrupted(err):
		return 130
	default:
		return 1
	}
}
