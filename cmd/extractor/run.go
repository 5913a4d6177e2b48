package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-metadata-extractor/internal/config"
	"go-metadata-extractor/internal/model"
	"go-metadata-extractor/internal/pipeline"
	"go-metadata-extractor/internal/publish"
	"go-metadata-extractor/internal/stats"
	"go-metadata-extractor/internal/store"
	"go-metadata-extractor/pkg/utils"
)

const maxListedOutputs = 20

// runFlags are the flags shared by the extraction commands.
type runFlags struct {
	input         string
	output        string
	fileName      string
	format        string
	suffixes      []string
	workers       int
	batchSize     int
	maxOpen       int
	maxLineBytes  int
	statsInterval time.Duration
	organize      bool
	providers     []string
	clients       []string
	resourceTypes []string
	states        []string
	required      []string
	absent        []string
	values        []string
	requireAll    bool
	uploadTo      string
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	fs := cmd.Flags()
	fs.StringVarP(&f.input, "input", "i", "", "Directory containing the compressed JSONL files")
	fs.StringVarP(&f.output, "output", "o", "-", "Output file, or root directory with --organize; - is stdout")
	fs.StringVar(&f.fileName, "file-name", model.DefaultOutputFileName, "File name used in each organized directory")
	fs.StringVar(&f.format, "format", model.FormatCSV, "Output format (csv, jsonl)")
	fs.StringSliceVar(&f.suffixes, "suffix", []string{model.DefaultSuffix}, "Input file suffixes (.jsonl.gz, .jsonl.zst, .jsonl.lz4, .jsonl)")
	fs.IntVarP(&f.workers, "workers", "w", 0, "Worker goroutines (0 = number of CPUs)")
	fs.IntVar(&f.batchSize, "batch-size", model.DefaultBatchSize, "Rows per batch handed to the writer")
	fs.IntVar(&f.maxOpen, "max-open-files", model.DefaultMaxOpenFiles, "Open file handles kept with --organize")
	fs.IntVar(&f.maxLineBytes, "max-line-bytes", model.DefaultMaxLineBytes, "Largest accepted record in bytes")
	fs.DurationVar(&f.statsInterval, "stats-interval", model.DefaultStatsInterval, "Progress log interval (0 disables)")
	fs.BoolVar(&f.organize, "organize", false, "Write one file per provider/client under the output directory")

	fs.StringSliceVar(&f.providers, "provider", nil, "Only records of these providers")
	fs.StringSliceVar(&f.clients, "client", nil, "Only records of these clients (provider.client or client)")
	fs.StringSliceVar(&f.resourceTypes, "resource-type", nil, "Only records of these resourceTypeGeneral values")
	fs.StringSliceVar(&f.states, "state", nil, "Only records in these states")
	fs.StringSliceVar(&f.required, "require", nil, "Paths that must hold a non-empty value")
	fs.StringSliceVar(&f.absent, "absent", nil, "Paths that must hold no value")
	fs.StringArrayVar(&f.values, "value", nil, "path=value constraint (repeatable)")
	fs.BoolVar(&f.requireAll, "require-all", false, "Records must contain every extracted top-level field")
	fs.StringVar(&f.uploadTo, "upload-container", "", "Upload outputs to this Azure Blob container after success")
}

// apply overlays the flags the user set on opts, which already hold the
// defaults, the config file and the environment.
func (f *runFlags) apply(cmd *cobra.Command, opts *model.Options) error {
	changed := cmd.Flags().Changed
	if changed("input") {
		opts.InputDir = f.input
	}
	if changed("output") {
		opts.Output = f.output
	}
	if changed("file-name") {
		opts.OutputFileName = f.fileName
	}
	if changed("format") {
		opts.Format = strings.ToLower(f.format)
	}
	if changed("suffix") {
		opts.Suffixes = config.SplitList(f.suffixes)
	}
	if changed("workers") {
		opts.Workers = f.workers
	}
	if changed("batch-size") {
		opts.BatchSize = f.batchSize
	}
	if changed("max-open-files") {
		opts.MaxOpenFiles = f.maxOpen
	}
	if changed("max-line-bytes") {
		opts.MaxLineBytes = f.maxLineBytes
	}
	if changed("stats-interval") {
		opts.StatsInterval = f.statsInterval
	}
	if changed("organize") {
		opts.Organize = f.organize
	}
	if changed("provider") {
		opts.Filter.Providers = config.SplitList(f.providers)
	}
	if changed("client") {
		opts.Filter.Clients = config.SplitList(f.clients)
	}
	if changed("resource-type") {
		opts.Filter.ResourceTypes = config.SplitList(f.resourceTypes)
	}
	if changed("state") {
		opts.Filter.States = config.SplitList(f.states)
	}
	if changed("require") {
		opts.Filter.RequiredFields = config.SplitList(f.required)
	}
	if changed("absent") {
		opts.Filter.AbsentFields = config.SplitList(f.absent)
	}
	if changed("value") {
		vcs, err := config.ParseValueFilters(f.values)
		if err != nil {
			return err
		}
		opts.Filter.ValueConstraints = vcs
	}
	if changed("require-all") {
		opts.Filter.RequireAllFields = f.requireAll
	}
	if changed("upload-container") {
		opts.UploadContainer = f.uploadTo
	}
	return nil
}

// loadOptions resolves defaults, config file, environment and flags.
func loadOptions(cmd *cobra.Command, tool model.Tool, f *runFlags, extra func(*model.Options) error) (model.Options, error) {
	opts, err := config.Load(configPath)
	if err != nil {
		return opts, err
	}
	opts.Tool = tool
	if err := f.apply(cmd, &opts); err != nil {
		return opts, err
	}
	if extra != nil {
		if err := extra(&opts); err != nil {
			return opts, err
		}
	}
	return opts, config.Validate(opts)
}

// executeRun runs one extraction with run history, tracing and publishing
// wired in, and prints the final report.
func executeRun(cmd *cobra.Command, opts model.Options) error {
	ctx, logger, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runID := uuid.NewString()
	engineOpts := []pipeline.Option{
		pipeline.WithRunID(runID),
		pipeline.WithLogger(logger),
		pipeline.WithStats(stats.New()),
	}

	if dbPath != "" {
		s, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		defer s.Close()
		if err := s.SaveRun(runID, opts); err != nil {
			logger.Warn("Failed to record run", zap.Error(err))
		} else {
			engineOpts = append(engineOpts, pipeline.WithRecorder(s))
		}
	}

	if opts.UploadContainer != "" {
		up, err := publish.FromEnv(opts.UploadContainer, logger)
		if err != nil {
			return fmt.Errorf("upload to %s: %w", opts.UploadContainer, err)
		}
		engineOpts = append(engineOpts, pipeline.WithPublisher(up))
	}

	fmt.Fprintf(os.Stderr, "🚀 Starting %s extraction %s\n", opts.Tool, runID)
	summary, runErr := pipeline.New(opts, engineOpts...).Run(ctx)
	printSummary(opts, summary, runErr)
	return runErr
}

func printSummary(opts model.Options, s model.RunSummary, err error) {
	w := os.Stderr
	fmt.Fprintln(w)
	fmt.Fprintf(w, "📊 Run %s (%s) finished in %s with %d workers\n",
		s.RunID, s.Tool, stats.FormatElapsed(s.Duration), s.Workers)
	fmt.Fprintf(w, "📁 Files: %d seen, %d processed, %d failed\n", s.FilesSeen, s.FilesProcessed, s.FileErrors)
	fmt.Fprintf(w, "🔍 Records: %d seen, %d matched, %d skipped\n", s.RecordsSeen, s.RecordsMatched, s.RecordsSkipped)
	fmt.Fprintf(w, "⚠️  Errors: %d parse, %d decode, %d destination\n", s.ParseErrors, s.DecodeErrors, s.DestinationErrors)
	fmt.Fprintf(w, "💾 Rows: %d written, %d dropped\n", s.RowsEmitted, s.RowsDropped)
	fmt.Fprintf(w, "🏷️  Providers: %d, clients: %d\n", s.Providers, s.Clients)
	if opts.Organize {
		for _, d := range s.TopDestinations {
			fmt.Fprintf(w, "   %-40s %d\n", d.Key.String(), d.Rows)
		}
		if n := len(s.Outputs); n > 0 {
			fmt.Fprintf(w, "📂 %d files under %s\n", n, opts.Output)
			if n <= maxListedOutputs {
				for _, rel := range utils.RelativeOutputs(opts.Output, s.Outputs) {
					fmt.Fprintf(w, "   %s\n", rel)
				}
			}
		}
	} else if len(s.Outputs) > 0 && s.Outputs[0] != "-" {
		fmt.Fprintf(w, "📂 Output: %s\n", s.Outputs[0])
	}
	switch {
	case err == nil:
		fmt.Fprintln(w, "✅ Completed")
	case isInterrupted(err):
		fmt.Fprintln(w, "🛑 Interrupted")
	default:
		fmt.Fprintf(w, "❌ Failed: %v\n", err)
	}
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
