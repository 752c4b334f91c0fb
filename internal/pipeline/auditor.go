package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mxten777/overflowscan/internal/browser"
	"github.com/mxten777/overflowscan/internal/model"
	"github.com/mxten777/overflowscan/internal/report"
)

// PageOpener opens a fresh page configured for target.
type PageOpener func(ctx context.Context, target Target) (Page, error)

// Auditor audits one target at every configured viewport.
type Auditor struct {
	open        PageOpener
	viewports   []model.ViewportSpec
	newPipeline func() *Pipeline
	logger      *slog.Logger
}

// AuditorOption configures an Auditor.
type AuditorOption func(*Auditor)

// WithAuditorLogger sets a custom logger for the auditor.
func WithAuditorLogger(logger *slog.Logger) AuditorOption {
	return func(a *Auditor) {
		a.logger = logger
	}
}

// WithViewports replaces the default viewport list.
func WithViewports(viewports []model.ViewportSpec) AuditorOption {
	return func(a *Auditor) {
		if len(viewports) > 0 {
			a.viewports = viewports
		}
	}
}

// NewAuditor creates an Auditor. pipelineFactory is called once per
// viewport so no step state leaks between viewports.
func NewAuditor(open PageOpener, pipelineFactory func() *Pipeline, opts ...AuditorOption) *Auditor {
	a := &Auditor{
		open:        open,
		viewports:   model.DefaultViewports(),
		newPipeline: pipelineFactory,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = slog.Default()
	}

	return a
}

// Viewports returns the viewports audited per target, in order.
func (a *Auditor) Viewports() []model.ViewportSpec {
	return a.viewports
}

// Run audits target at every viewport, in order, on one page.
//
// A navigation failure is logged, marks the run aborted and stops the
// loop; Run then returns the partial report and a nil error. Other step
// failures are recorded in the viewport report and also stop the loop.
// An error is returned only when the page cannot be opened, an output
// file cannot be written, or ctx is cancelled. The returned report is
// never nil.
func (a *Auditor) Run(ctx context.Context, target Target) (*model.RunReport, error) {
	run := model.NewRunReport(target.Name, target.URL)
	defer run.Finish()

	page, err := a.open(ctx, target)
	if err != nil {
		run.Abort(err)
		return run, fmt.Errorf("failed to open page for %s: %w", target.URL, err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			a.logger.Debug("failed to close page", "url", target.URL, "error", cerr)
		}
	}()

	for _, vp := range a.viewports {
		state := NewState(page, target, vp)

		err := a.newPipeline().Execute(ctx, state)
		if err == nil {
			a.logger.Info("viewport scanned",
				"viewport", vp.Label(),
				"url", target.URL,
				"findings", len(state.Report.Findings),
			)
			run.AddViewport(*state.Report)
			continue
		}

		var writeErr *report.OutputWriteError
		switch {
		case ctx.Err() != nil:
			run.Abort(ctx.Err())
			return run, ctx.Err()

		case browser.IsNavigationError(err):
			a.logger.Error("failed to load page",
				"url", target.URL,
				"viewport", vp.Label(),
				"error", err,
			)
			run.Abort(err)
			return run, nil

		case errors.As(err, &writeErr):
			run.Abort(err)
			return run, err

		default:
			a.logger.Warn("viewport failed",
				"viewport", vp.Label(),
				"url", target.URL,
				"error", err,
			)
			state.Report.Error = err.Error()
			run.AddViewport(*state.Report)
			run.Abort(err)
			return run, nil
		}
	}

	return run, nil
}
