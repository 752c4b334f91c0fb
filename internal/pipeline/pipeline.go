package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/mxten777/overflowscan/internal/audit"
	"github.com/mxten777/overflowscan/internal/model"
)

// Page is the browser tab capability the steps need.
// *browser.Page satisfies it.
type Page interface {
	SetViewport(ctx context.Context, vp model.ViewportSpec) error
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Settle(ctx context.Context, d time.Duration) error
	InjectText(ctx context.Context, sample string) (bool, error)
	Snapshot(ctx context.Context) (audit.PageSnapshot, error)
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	Close() error
}

// Target is one page to audit.
type Target struct {
	// Name selects output file names. Empty for the default target.
	Name string

	// URL is the absolute address to load.
	URL string

	// Sample is typed into the first text input before measuring.
	// Empty disables injection.
	Sample string

	// Headers and Cookie are applied to the page before the first
	// navigation.
	Headers map[string]string
	Cookie  string
}

// State is the data shared by the steps of one viewport run.
type State struct {
	Page     Page
	Target   Target
	Viewport model.ViewportSpec

	// Report accumulates the results of the viewport.
	Report *model.ViewportReport

	// Completed lists the names of the steps that succeeded.
	Completed []string
}

// NewState creates the state for auditing target at vp.
func NewState(page Page, target Target, vp model.ViewportSpec) *State {
	return &State{
		Page:     page,
		Target:   target,
		Viewport: vp,
		Report:   model.NewViewportReport(vp, target.URL),
	}
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the state left by the
// previous steps.
type Step interface {
	// Do executes the pipeline step.
	// Returns an error if the step fails; the pipeline stops there.
	Do(ctx context.Context, state *State) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence and returns the first error.
// Cancellation is checked before each step; steps bound their own
// blocking work through ctx.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"viewport", state.Viewport.Label(),
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"viewport", state.Viewport.Label(),
			"url", state.Target.URL,
		)

		if err := step.Do(ctx, state); err != nil {
			p.logger.Debug("step failed",
				"step", step.Name(),
				"viewport", state.Viewport.Label(),
				"error", err,
			)
			return err
		}

		state.Completed = append(state.Completed, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
