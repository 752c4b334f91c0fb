package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/mxten777/overflowscan/internal/audit"
	"github.com/mxten777/overflowscan/internal/model"
)

var (
	//go:embed js/snapshot.js
	snapshotScript string

	//go:embed js/inject.js
	injectScript string
)

// snippetTransferFactor bounds how much outerHTML the page sends back.
// JavaScript slices by UTF-16 code units, so twice the rune limit is
// always enough for the audit package to truncate precisely.
const snippetTransferFactor = 2

// PageOptions configures a new tab.
type PageOptions struct {
	// Headers are sent with every request the page makes.
	Headers map[string]string

	// Cookie is a "name=value; name2=value2" string set for CookieURL.
	Cookie string

	// CookieURL scopes Cookie. It is required when Cookie is set.
	CookieURL string

	// MaxPathDepth and SnippetLimit bound what the snapshot script
	// collects per element.
	MaxPathDepth int
	SnippetLimit int
}

// Page is a single browser tab. A Page is not safe for concurrent use;
// the viewport is a property of the whole tab.
type Page struct {
	page         *rod.Page
	idle         time.Duration
	logger       *slog.Logger
	maxPathDepth int
	snippetLimit int
}

// configure applies headers and cookies.
func (p *Page) configure(opts PageOptions) error {
	p.maxPathDepth = opts.MaxPathDepth
	if p.maxPathDepth <= 0 {
		p.maxPathDepth = audit.DefaultMaxPathDepth
	}
	p.snippetLimit = opts.SnippetLimit
	if p.snippetLimit <= 0 {
		p.snippetLimit = audit.DefaultMaxSnippetLen
	}

	if len(opts.Headers) > 0 {
		dict := make([]string, 0, len(opts.Headers)*2)
		for k, v := range opts.Headers {
			dict = append(dict, k, v)
		}
		if _, err := p.page.SetExtraHeaders(dict); err != nil {
			return fmt.Errorf("failed to set extra headers: %w", err)
		}
	}

	if opts.Cookie != "" {
		cookies := ParseCookies(opts.Cookie, opts.CookieURL)
		if err := p.page.SetCookies(cookies); err != nil {
			return fmt.Errorf("failed to set cookies: %w", err)
		}
		p.logger.Debug("cookies set", "count", len(cookies), "cookie", opts.Cookie)
	}
	return nil
}

// SetViewport resizes the tab.
func (p *Page) SetViewport(ctx context.Context, vp model.ViewportSpec) error {
	err := p.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: vp.Scale(),
	})
	if err != nil {
		return fmt.Errorf("failed to set viewport %s: %w", vp.Label(), err)
	}
	return nil
}

// Navigate loads url, waits for the load event and then for the network
// to be quiet for the idle window. The whole wait is bounded by timeout.
// A failed request or a load event that never fires is returned as a
// *NavigationError. Requests still open when the deadline passes after
// load (long polling, analytics beacons) do not fail the navigation.
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	pg := p.page.Context(navCtx)

	waitIdle := pg.WaitRequestIdle(p.idle, nil, nil, nil)
	if err := pg.Navigate(url); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	if err := pg.WaitLoad(); err != nil {
		return &NavigationError{URL: url, Err: err}
	}

	waitIdle()
	if err := ctx.Err(); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	if navCtx.Err() != nil {
		p.logger.Debug("network still busy at navigation deadline, continuing after load",
			"url", url, "timeout", timeout)
	}
	return nil
}

// Settle blocks for d so that CSS transitions and entrance animations
// finish before layout is measured.
func (p *Page) Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// InjectText writes sample into the first text input, textarea or
// contenteditable element and fires input and change events. It returns
// false when the page has no such element.
func (p *Page) InjectText(ctx context.Context, sample string) (bool, error) {
	res, err := p.page.Context(ctx).Evaluate(rod.Eval(injectScript, sample))
	if err != nil {
		return false, fmt.Errorf("failed to inject sample text: %w", err)
	}
	return res.Value.Bool(), nil
}

// Snapshot measures every element in the document.
func (p *Page) Snapshot(ctx context.Context) (audit.PageSnapshot, error) {
	var snap audit.PageSnapshot

	res, err := p.page.Context(ctx).Evaluate(
		rod.Eval(snapshotScript, p.maxPathDepth, p.snippetLimit*snippetTransferFactor),
	)
	if err != nil {
		return snap, fmt.Errorf("failed to measure page: %w", err)
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return snap, fmt.Errorf("failed to read measurements: %w", err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("failed to decode measurements: %w", err)
	}
	return snap, nil
}

// Screenshot captures a PNG of the visible viewport, or of the whole
// scrollable page when fullPage is true. The emulated viewport is left
// untouched so the capture shows the layout that was measured.
func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	pg := p.page.Context(ctx)

	req := proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng}
	if fullPage {
		metrics, err := proto.PageGetLayoutMetrics{}.Call(pg)
		if err != nil {
			return nil, fmt.Errorf("failed to read layout metrics: %w", err)
		}
		clip, err := fullPageClip(metrics)
		if err != nil {
			return nil, err
		}
		req.CaptureBeyondViewport = true
		req.Clip = clip
	}

	shot, err := req.Call(pg)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return shot.Data, nil
}

// fullPageClip covers the scrollable area, and never less than the
// layout viewport, in CSS pixels.
func fullPageClip(m *proto.PageGetLayoutMetricsResult) (*proto.PageViewport, error) {
	if m == nil || m.CSSContentSize == nil {
		return nil, errors.New("failed to capture screenshot: page reported no content size")
	}

	width, height := m.CSSContentSize.Width, m.CSSContentSize.Height
	if vp := m.CSSLayoutViewport; vp != nil {
		width = math.Max(width, float64(vp.ClientWidth))
		height = math.Max(height, float64(vp.ClientHeight))
	}
	return &proto.PageViewport{
		Width:  math.Ceil(width),
		Height: math.Ceil(height),
		Scale:  1,
	}, nil
}

// Close closes the tab.
func (p *Page) Close() error {
	return p.page.Close()
}

// ParseCookies splits a Cookie header value into cookie parameters
// scoped to url. Pairs without "=" are ignored.
func ParseCookies(header, url string) []*proto.NetworkCookieParam {
	var cookies []*proto.NetworkCookieParam
	for _, pair := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		cookies = append(cookies, &proto.NetworkCookieParam{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
			URL:   url,
		})
	}
	return cookies
}
