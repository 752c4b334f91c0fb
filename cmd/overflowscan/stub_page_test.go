package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mxten777/overflowscan/internal/audit"
	"github.com/mxten777/overflowscan/internal/browser"
	"github.com/mxten777/overflowscan/internal/model"
	"github.com/mxten777/overflowscan/internal/pipeline"
)

// pngHeader is enough of a PNG for file-level assertions.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// stubPage renders a page that overflows at widths of 375px and more.
type stubPage struct {
	mu       sync.Mutex
	vp       model.ViewportSpec
	injected []string
	failNav  bool
}

func (p *stubPage) SetViewport(_ context.Context, vp model.ViewportSpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vp = vp
	return nil
}

func (p *stubPage) Navigate(_ context.Context, url string, _ time.Duration) error {
	if p.failNav {
		return &browser.NavigationError{URL: url, Err: errors.New("net::ERR_CONNECTION_REFUSED")}
	}
	return nil
}

func (p *stubPage) Settle(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func (p *stubPage) InjectText(_ context.Context, sample string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.injected = append(p.injected, sample)
	return true, nil
}

func (p *stubPage) Snapshot(_ context.Context) (audit.PageSnapshot, error) {
	p.mu.Lock()
	vp := p.vp
	p.mu.Unlock()

	snap := audit.PageSnapshot{
		ViewportWidth:       float64(vp.Width),
		DocumentScrollWidth: vp.Width,
		DocumentClientWidth: vp.Width,
	}
	if vp.Width >= 375 {
		snap.DocumentScrollWidth = 500
		snap.Elements = append(snap.Elements, audit.ElementSnapshot{
			Tag:         "DIV",
			ID:          "composer",
			ClassName:   "chat-input wide",
			ClientWidth: vp.Width,
			ScrollWidth: 500,
			Rect:        audit.ElementRect{Right: 500, Width: 500, Height: 40, Bottom: 40},
			Display:     "flex",
			Visibility:  "visible",
			Opacity:     "1",
			Ancestors:   []audit.AncestorRef{{Tag: "HTML"}, {Tag: "BODY"}, {Tag: "DIV", ID: "composer"}},
			OuterHTML:   `<div id="composer" class="chat-input wide">민지: 아 오늘 진짜 힘들었어</div>`,
		})
	}
	return snap, nil
}

func (p *stubPage) Screenshot(_ context.Context, _ bool) ([]byte, error) {
	return pngHeader, nil
}

func (p *stubPage) Close() error {
	return nil
}

// stubOpener hands out stubPages and remembers them by target name.
type stubOpener struct {
	mu      sync.Mutex
	failNav bool
	pages   map[string]*stubPage
	opens   int
}

func (o *stubOpener) open(_ context.Context, target pipeline.Target) (pipeline.Page, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pages == nil {
		o.pages = make(map[string]*stubPage)
	}
	p := &stubPage{failNav: o.failNav}
	o.pages[target.Name] = p
	o.opens++
	return p, nil
}

func (o *stubOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}
