package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/mxten777/overflowscan/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency scans targets one after another.
const DefaultConcurrency = 1

// BatchProcessor audits multiple targets with bounded concurrency.
// Each target gets its own page; the browser is shared.
type BatchProcessor struct {
	// auditor runs one target.
	auditor *Auditor

	// concurrency is the maximum number of targets audited at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent targets.
// Non-positive values keep DefaultConcurrency.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(auditor *Auditor, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		auditor:     auditor,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch audits every target and returns their reports in target
// order. Reports are returned even when the batch fails; entries for
// targets that never started are nil. The first fatal error (page open
// failure, output write failure, cancellation) cancels the remaining
// targets and is returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []Target) ([]*model.RunReport, error) {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	// Pre-allocate results slice to maintain order. Each goroutine
	// writes only its own index.
	results := make([]*model.RunReport, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("scanning target",
				"target", target.Name,
				"url", target.URL,
				"index", i+1,
				"total", len(targets),
			)

			run, err := bp.auditor.Run(ctx, target)
			results[i] = run
			if err != nil {
				bp.logger.Warn("target failed",
					"target", target.Name,
					"error", err,
				)
				return err
			}

			bp.logger.Info("target completed",
				"target", target.Name,
				"findings", run.TotalFindings(),
				"aborted", run.Aborted,
			)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return results, err
}
