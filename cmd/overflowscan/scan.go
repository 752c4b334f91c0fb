package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mxten777/overflowscan/internal/audit"
	"github.com/mxten777/overflowscan/internal/browser"
	"github.com/mxten777/overflowscan/internal/config"
	"github.com/mxten777/overflowscan/internal/database"
	seclog "github.com/mxten777/overflowscan/internal/log"
	"github.com/mxten777/overflowscan/internal/model"
	"github.com/mxten777/overflowscan/internal/pipeline"
	"github.com/mxten777/overflowscan/internal/report"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [baseUrl] [path]",
		Short: "Scan a page for horizontal overflow on mobile viewports",
		Long: `Scan loads a page in headless Chromium at every configured viewport and
records each element that overflows horizontally.

For every viewport the page is resized, loaded, given time to settle,
optionally filled with sample text, measured and captured as a full-page
screenshot. The JSON report is written to the output directory and also
printed to stdout after a REPORT_PATH=<path> line.

Examples:
  # Scan the Vite dev server at the default viewports
  overflowscan scan

  # Scan a specific page
  overflowscan scan http://localhost:5173 /talkbridge

  # Type a long message into the chat box before measuring
  overflowscan scan --sample-file testdata/chat.txt --sample-repeat 8 http://localhost:5173 /talkbridge

  # Use targets from the configuration file
  overflowscan scan --target talkbridge --target home

  # Custom viewports
  overflowscan scan --viewport 320x640 --viewport tablet=768x1024@2

  # Print a human-readable summary and write a Markdown report
  overflowscan scan --summary text --markdown

Configuration file (.overflowscan) example:
  viewports:
    - {name: 360x800, width: 360, height: 800, deviceScaleFactor: 2}
  targets:
    talkbridge:
      path: /talkbridge
      sample: "민지: 아 오늘 진짜 힘들었어 ㅠㅠ"
      repeat: 8`,
		Args: cobra.MaximumNArgs(2),
		RunE: runScanCmd,
	}

	addScanFlags(cmd)

	return cmd
}

// addScanFlags registers the flags shared by scan and watch.
func addScanFlags(cmd *cobra.Command) {
	// Viewport and target flags
	cmd.Flags().StringArray("viewport", nil,
		"Viewport as [name=]WIDTHxHEIGHT[@scale] (repeatable, replaces the configured list)")
	cmd.Flags().StringArrayP("target", "T", nil,
		"Scan a named target from the configuration file (repeatable)")

	// Sample injection flags
	cmd.Flags().StringP("sample", "s", "",
		"Text typed into the first text input before measuring")
	cmd.Flags().String("sample-file", "",
		"Read the sample text from a file")
	cmd.Flags().Int("sample-repeat", config.DefaultSampleRepeat,
		"Repeat the sample text this many times")

	// Timing flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Navigation timeout per viewport")
	cmd.Flags().Duration("settle", config.DefaultSettle,
		"Pause after the page loaded")
	cmd.Flags().Duration("inject-settle", config.DefaultInjectSettle,
		"Pause after the sample text was injected")

	// Detection flags
	cmd.Flags().Float64("tolerance", config.DefaultTolerance,
		"Overflow in pixels that is still accepted")

	// Batch scanning flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of targets scanned concurrently")

	// Browser flags
	cmd.Flags().String("chrome-bin", "",
		"Chromium executable (default: auto-detect or download)")
	cmd.Flags().String("browser-url", "",
		"Connect to a running Chromium DevTools endpoint instead of launching one")

	// Report flags
	cmd.Flags().StringP("output-dir", "o", config.DefaultOutputDir,
		"Directory for report and screenshot files")
	cmd.Flags().BoolP("markdown", "m", false,
		"Also write a Markdown report next to the JSON report")
	cmd.Flags().String("summary", "",
		"Print a summary to stderr: text, json or markdown")
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := prepareConfig(cmd, args)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, stop := signalContext(commandContext(cmd), logger)
	defer stop()

	return runScan(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// prepareConfig builds, validates and completes the configuration.
func prepareConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	if err := loadSampleFile(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// getBoolFlag retrieves a boolean flag from the command or the root's
// persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// getStringFlag retrieves a string flag from the command or the root's
// persistent flags.
func getStringFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return v
}

// buildConfig creates a Config from cobra command flags, positional
// arguments and the configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	if len(args) > 0 {
		cfg.BaseURL = args[0]
	}
	if len(args) > 1 {
		cfg.Path = args[1]
	}

	var err error
	flags := cmd.Flags()

	viewports, err := flags.GetStringArray("viewport")
	if err != nil {
		return nil, err
	}
	if cfg.TargetNames, err = flags.GetStringArray("target"); err != nil {
		return nil, err
	}
	if cfg.Sample, err = flags.GetString("sample"); err != nil {
		return nil, err
	}
	if cfg.SampleFile, err = flags.GetString("sample-file"); err != nil {
		return nil, err
	}
	if cfg.SampleRepeat, err = flags.GetInt("sample-repeat"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Settle, err = flags.GetDuration("settle"); err != nil {
		return nil, err
	}
	if cfg.InjectSettle, err = flags.GetDuration("inject-settle"); err != nil {
		return nil, err
	}
	if cfg.Tolerance, err = flags.GetFloat64("tolerance"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ChromeBin, err = flags.GetString("chrome-bin"); err != nil {
		return nil, err
	}
	if cfg.BrowserURL, err = flags.GetString("browser-url"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return nil, err
	}
	if cfg.Markdown, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.Summary, err = flags.GetString("summary"); err != nil {
		return nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")
	cfg.ConfigFilePath = getStringFlag(cmd, "config")

	// An explicitly given config file must exist; otherwise a missing
	// file just means no targets and default viewports.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		cfg.File, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	switch {
	case len(viewports) > 0:
		cfg.Viewports = make([]model.ViewportSpec, 0, len(viewports))
		for _, s := range viewports {
			vp, err := model.ParseViewport(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", config.ErrInvalidViewport, err)
			}
			cfg.Viewports = append(cfg.Viewports, vp)
		}
	case cfg.File != nil && len(cfg.File.Viewports) > 0:
		cfg.Viewports = cfg.File.Viewports
	}

	return cfg, nil
}

// loadSampleFile reads --sample-file into cfg.Sample.
func loadSampleFile(cfg *config.Config) error {
	if cfg.SampleFile == "" {
		return nil
	}
	data, err := os.ReadFile(cfg.SampleFile) //nolint:gosec // User-provided sample path is intentional
	if err != nil {
		return fmt.Errorf("failed to read sample file: %w", err)
	}
	cfg.Sample = string(data)
	cfg.SampleFile = ""
	return nil
}

// setupLogger creates a structured logger that masks secrets.
func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if cfg.LogJSON {
		return seclog.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return seclog.NewSecureLogger(w, cfg.Verbose)
}

// browserOptions maps the configuration to browser launch options.
func browserOptions(cfg *config.Config, logger *slog.Logger) browser.Options {
	opts := browser.DefaultOptions()
	opts.Bin = cfg.ChromeBin
	opts.ControlURL = cfg.BrowserURL
	opts.Logger = logger
	return opts
}

// runScan launches the browser, scans every target and emits the reports.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	targets, err := cfg.Targets()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger.Info("starting scan",
		"targets", len(targets),
		"viewports", len(cfg.Viewports),
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	b, err := browser.Launch(ctx, browserOptions(cfg, logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()

	s := newScanner(cfg, newPageOpener(b), logger, stdout, stderr)
	return s.scan(ctx, targets)
}

// newPageOpener opens one configured tab per target.
func newPageOpener(b *browser.Browser) pipeline.PageOpener {
	return func(ctx context.Context, target pipeline.Target) (pipeline.Page, error) {
		page, err := b.NewPage(ctx, browser.PageOptions{
			Headers:      target.Headers,
			Cookie:       target.Cookie,
			CookieURL:    target.URL,
			MaxPathDepth: audit.DefaultMaxPathDepth,
			SnippetLimit: audit.DefaultMaxSnippetLen,
		})
		if err != nil {
			return nil, err
		}
		return page, nil
	}
}

// scanner runs targets through the auditor and emits their reports.
type scanner struct {
	cfg    *config.Config
	open   pipeline.PageOpener
	files  *report.FileWriter
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func newScanner(cfg *config.Config, open pipeline.PageOpener, logger *slog.Logger, stdout, stderr io.Writer) *scanner {
	return &scanner{
		cfg:    cfg,
		open:   open,
		files:  report.NewFileWriter(cfg.OutputDir),
		logger: logger,
		stdout: stdout,
		stderr: stderr,
	}
}

// newAuditor wires the configured timings, detector and screenshot
// directory into an Auditor.
func (s *scanner) newAuditor() *pipeline.Auditor {
	settings := pipeline.Settings{
		NavigationTimeout: s.cfg.Timeout,
		Settle:            s.cfg.Settle,
		InjectSettle:      s.cfg.InjectSettle,
		Detector:          audit.NewDetector(audit.Options{Tolerance: s.cfg.Tolerance}),
		Screenshots:       s.files,
	}

	return pipeline.NewAuditor(s.open,
		func() *pipeline.Pipeline {
			return pipeline.NewViewportPipeline(settings, s.logger)
		},
		pipeline.WithViewports(s.cfg.Viewports),
		pipeline.WithAuditorLogger(s.logger),
	)
}

// scan audits targets and emits every report that was produced, even
// when the batch failed part way.
func (s *scanner) scan(ctx context.Context, targets []config.Target) error {
	bp := pipeline.NewBatchProcessor(s.newAuditor(),
		pipeline.WithConcurrency(s.cfg.BatchSize),
		pipeline.WithBatchLogger(s.logger),
	)

	runs, scanErr := bp.ProcessBatch(ctx, toPipelineTargets(targets))

	db := s.openHistory()
	if db != nil {
		defer db.Close()
	}

	for _, run := range runs {
		if run == nil {
			continue
		}
		if err := s.emit(ctx, run, db); err != nil {
			return err
		}
	}

	return scanErr
}

// emit writes the report file, prints the stdout contract, and records
// optional summaries and history.
func (s *scanner) emit(ctx context.Context, run *model.RunReport, db *database.RunDB) error {
	path, err := s.files.WriteRun(run)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.stdout, "REPORT_PATH=%s\n", path)
	if _, err := report.NewJSONWriter(s.stdout, report.WithPrettyPrint()).Write(run); err != nil {
		return fmt.Errorf("failed to print report: %w", err)
	}

	if s.cfg.Markdown {
		mdPath, err := s.files.WriteMarkdown(run)
		if err != nil {
			return err
		}
		s.logger.Info("markdown report written", "path", mdPath)
	}

	if s.cfg.Summary != "" {
		if err := writeSummary(s.stderr, s.cfg.Summary, run, s.cfg.Verbose); err != nil {
			s.logger.Warn("failed to print summary", "error", err)
		}
	}

	if db != nil {
		// History is recorded even for cancelled runs.
		id, err := db.SaveRun(context.WithoutCancel(ctx), run)
		if err != nil {
			s.logger.Error("failed to save run to history", "target", database.TargetKey(run), "error", err)
		} else {
			s.logger.Info("run saved to history", "target", database.TargetKey(run), "id", id)
		}
	}

	return nil
}

// openHistory opens the history database. Failures only disable history.
func (s *scanner) openHistory() *database.RunDB {
	if !s.cfg.SaveToDB {
		return nil
	}
	db, err := database.Open(s.cfg.DBDir, database.DefaultOptions())
	if err != nil {
		s.logger.Warn("history disabled", "dir", s.cfg.DBDir, "error", err)
		return nil
	}
	return db
}

// writeSummary prints run in the given summary format.
func writeSummary(w io.Writer, format string, run *model.RunReport, verbose bool) error {
	var err error
	switch format {
	case config.SummaryJSON:
		_, err = report.NewJSONWriter(w, report.WithPrettyPrint()).WriteSummary(model.NewSummary(run))
	case config.SummaryMarkdown:
		_, err = report.NewMarkdownWriter(w).Write(run)
	default:
		_, err = report.NewSimpleWriter(w, report.WithVerbose(verbose)).Write(run)
	}
	return err
}

func toPipelineTargets(targets []config.Target) []pipeline.Target {
	out := make([]pipeline.Target, len(targets))
	for i, t := range targets {
		out[i] = pipeline.Target{
			Name:    t.Name,
			URL:     t.URL,
			Sample:  t.Sample,
			Headers: t.Headers,
			Cookie:  t.Cookie,
		}
	}
	return out
}
