package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mxten777/overflowscan/internal/browser"
	"github.com/mxten777/overflowscan/internal/config"
	"github.com/mxten777/overflowscan/internal/watch"
	"github.com/spf13/cobra"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [baseUrl] [path]",
		Short: "Re-scan whenever the source tree changes",
		Long: `Watch runs a scan, then watches a source directory and scans again
every time files in it change. Rapid successive saves are collapsed into
one re-scan. The browser is started once and reused.

Watch accepts every scan flag.

Examples:
  # Re-scan the talkbridge page while editing ./src
  overflowscan watch --dir ./src --target talkbridge

  # Watch with a shorter debounce
  overflowscan watch --dir ./src --debounce 300ms http://localhost:5173 /talkbridge`,
		Args: cobra.MaximumNArgs(2),
		RunE: runWatchCmd,
	}

	addScanFlags(cmd)
	cmd.Flags().StringP("dir", "d", "src",
		"Source directory to watch")
	cmd.Flags().Duration("debounce", watch.DefaultDebounce,
		"Quiet period before re-scanning")

	return cmd
}

// runWatchCmd executes the watch command.
func runWatchCmd(cmd *cobra.Command, args []string) error {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return err
	}
	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return err
	}

	cfg, err := prepareConfig(cmd, args)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	targets, err := cfg.Targets()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	w, err := watch.New(dir, watch.WithDebounce(debounce), watch.WithLogger(logger),
		watch.WithIgnoreDirs(filepath.Base(cfg.OutputDir)))
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signalContext(commandContext(cmd), logger)
	defer stop()

	b, err := browser.Launch(ctx, browserOptions(cfg, logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()

	s := newScanner(cfg, newPageOpener(b), logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
	return watchAndScan(ctx, w, s, targets)
}

// watchAndScan scans once, then again after every batch of changes until
// ctx is cancelled. Errors of later scans are logged by the watcher.
func watchAndScan(ctx context.Context, w *watch.Watcher, s *scanner, targets []config.Target) error {
	if err := s.scan(ctx, targets); err != nil && ctx.Err() == nil {
		s.logger.Error("initial scan failed", "error", err)
	}

	return w.Run(ctx, func(ctx context.Context, changed []string) error {
		s.logger.Debug("re-scanning", "changed", changed)
		return s.scan(ctx, targets)
	})
}
