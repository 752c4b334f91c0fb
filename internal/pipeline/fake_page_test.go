package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/mxten777/overflowscan/internal/audit"
	"github.com/mxten777/overflowscan/internal/model"
)

// fakePage is a scripted Page. Hooks left nil succeed with zero values.
type fakePage struct {
	mu    sync.Mutex
	calls []string

	navigate   func(ctx context.Context, url string) error
	inject     func(sample string) (bool, error)
	snapshot   func(vp model.ViewportSpec) (audit.PageSnapshot, error)
	screenshot func() ([]byte, error)

	current model.ViewportSpec
	closed  bool
}

func (f *fakePage) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

// Calls returns the recorded calls in order.
func (f *fakePage) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePage) SetViewport(_ context.Context, vp model.ViewportSpec) error {
	f.record("resize:" + vp.Label())
	f.mu.Lock()
	f.current = vp
	f.mu.Unlock()
	return nil
}

func (f *fakePage) Navigate(ctx context.Context, url string, _ time.Duration) error {
	f.record("navigate:" + url)
	if f.navigate != nil {
		return f.navigate(ctx, url)
	}
	return nil
}

func (f *fakePage) Settle(ctx context.Context, d time.Duration) error {
	f.record("settle:" + d.String())
	return ctx.Err()
}

func (f *fakePage) InjectText(_ context.Context, sample string) (bool, error) {
	f.record("inject")
	if f.inject != nil {
		return f.inject(sample)
	}
	return true, nil
}

func (f *fakePage) Snapshot(_ context.Context) (audit.PageSnapshot, error) {
	f.record("snapshot")
	f.mu.Lock()
	vp := f.current
	f.mu.Unlock()
	if f.snapshot != nil {
		return f.snapshot(vp)
	}
	return cleanSnapshot(vp), nil
}

func (f *fakePage) Screenshot(_ context.Context, _ bool) ([]byte, error) {
	f.record("screenshot")
	if f.screenshot != nil {
		return f.screenshot()
	}
	return []byte("png"), nil
}

func (f *fakePage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// cleanSnapshot is a page whose only element fits the viewport.
func cleanSnapshot(vp model.ViewportSpec) audit.PageSnapshot {
	w := float64(vp.Width)
	return audit.PageSnapshot{
		ViewportWidth:       w,
		DocumentScrollWidth: vp.Width,
		DocumentClientWidth: vp.Width,
		Elements: []audit.ElementSnapshot{
			{
				Tag:         "HTML",
				ClientWidth: vp.Width,
				ScrollWidth: vp.Width,
				Rect:        audit.ElementRect{Right: w, Width: w, Bottom: 800, Height: 800},
				Display:     "block",
				Visibility:  "visible",
				Opacity:     "1",
				Ancestors:   []audit.AncestorRef{{Tag: "HTML"}},
			},
		},
	}
}

// wideSnapshot adds a 500px wide container to cleanSnapshot.
func wideSnapshot(vp model.ViewportSpec) audit.PageSnapshot {
	snap := cleanSnapshot(vp)
	snap.DocumentScrollWidth = 500
	snap.Elements = append(snap.Elements, audit.ElementSnapshot{
		Tag:         "DIV",
		ID:          "hero",
		ClientWidth: vp.Width,
		ScrollWidth: 500,
		Rect:        audit.ElementRect{Right: float64(vp.Width), Width: float64(vp.Width), Height: 20, Bottom: 20},
		Display:     "block",
		Visibility:  "visible",
		Opacity:     "1",
		Ancestors:   []audit.AncestorRef{{Tag: "HTML"}, {Tag: "BODY"}, {Tag: "DIV", ID: "hero"}},
		OuterHTML:   `<div id="hero">`,
	})
	return snap
}

// memStore records saved screenshots.
type memStore struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func (m *memStore) SaveScreenshot(target string, vp model.ViewportSpec, png []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	path := target + "-screenshot-" + vp.Label() + ".png"
	m.saved[path] = png
	return path, nil
}
