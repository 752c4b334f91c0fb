package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mxten777/overflowscan/internal/audit"
	"github.com/mxten777/overflowscan/internal/browser"
	"github.com/mxten777/overflowscan/internal/model"
)

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	a := newTestAuditor(&fakePage{}, testSettings())

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(a)
		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(a, WithConcurrency(5)); bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(a, WithConcurrency(0)); bp.concurrency != DefaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(a, WithBatchLogger(nil)); bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})
}

// measuringAuditor audits one viewport and calls onSnapshot per measurement.
func measuringAuditor(onSnapshot func()) *Auditor {
	return NewAuditor(
		func(context.Context, Target) (Page, error) {
			return &fakePage{snapshot: func(vp model.ViewportSpec) (audit.PageSnapshot, error) {
				onSnapshot()
				return cleanSnapshot(vp), nil
			}}, nil
		},
		func() *Pipeline { return NewViewportPipeline(testSettings(), nil) },
		WithViewports(model.DefaultViewports()[:1]),
	)
}

// TestBatchProcessorProcessBatch tests batch processing.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("processes all targets in order", func(t *testing.T) {
		t.Parallel()

		var measured atomic.Int32
		bp := NewBatchProcessor(measuringAuditor(func() { measured.Add(1) }), WithConcurrency(3))

		targets := []Target{
			{Name: "home", URL: "http://localhost:5173/"},
			{Name: "talkbridge", URL: "http://localhost:5173/talkbridge"},
			{Name: "genquiz", URL: "http://localhost:5173/genquiz"},
		}

		results, err := bp.ProcessBatch(context.Background(), targets)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if measured.Load() != 3 {
			t.Errorf("expected 3 measurements, got %d", measured.Load())
		}
		for i, run := range results {
			if run.Target != targets[i].Name {
				t.Errorf("result[%d]: got %q, expected %q", i, run.Target, targets[i].Name)
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, maxSeen atomic.Int32
		var mu sync.Mutex

		bp := NewBatchProcessor(measuringAuditor(func() {
			n := current.Add(1)
			mu.Lock()
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
		}), WithConcurrency(2))

		targets := make([]Target, 8)
		for i := range targets {
			targets[i] = Target{URL: "u"}
		}

		if _, err := bp.ProcessBatch(context.Background(), targets); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if maxSeen.Load() > 2 {
			t.Errorf("max concurrent was %d, expected <= 2", maxSeen.Load())
		}
	})

	t.Run("navigation failure does not stop other targets", func(t *testing.T) {
		t.Parallel()

		a := NewAuditor(
			func(_ context.Context, target Target) (Page, error) {
				return &fakePage{navigate: func(_ context.Context, url string) error {
					if target.Name == "down" {
						return &browser.NavigationError{URL: url, Err: errors.New("refused")}
					}
					return nil
				}}, nil
			},
			func() *Pipeline { return NewViewportPipeline(testSettings(), nil) },
		)

		results, err := NewBatchProcessor(a).ProcessBatch(context.Background(), []Target{
			{Name: "up", URL: "u1"},
			{Name: "down", URL: "u2"},
			{Name: "up2", URL: "u3"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if results[0].Aborted || !results[1].Aborted || results[2].Aborted {
			t.Errorf("only the second target should be aborted")
		}
	})

	t.Run("fatal error cancels the batch", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("browser gone")
		a := NewAuditor(
			func(context.Context, Target) (Page, error) { return nil, boom },
			func() *Pipeline { return New() },
		)

		_, err := NewBatchProcessor(a).ProcessBatch(context.Background(), []Target{{URL: "a"}, {URL: "b"}})
		if !errors.Is(err, boom) {
			t.Errorf("expected %v, got %v", boom, err)
		}
	})

	t.Run("handles context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results, err := NewBatchProcessor(measuringAuditor(func() {})).ProcessBatch(ctx, []Target{{URL: "a"}, {URL: "b"}})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(results) != 2 {
			t.Errorf("expected result slots for every target, got %d", len(results))
		}
	})
}
