package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultIdleWindow is how long the network must be quiet before a
// navigation counts as settled. It mirrors Puppeteer's networkidle2.
const DefaultIdleWindow = 500 * time.Millisecond

// Options configures how Chromium is started.
type Options struct {
	// Bin is the Chromium executable. When empty, go-rod looks up a
	// local installation or downloads a revision it knows works.
	Bin string

	// ControlURL connects to an already running Chromium instead of
	// launching one. Close then leaves that process running.
	ControlURL string

	// Headless runs Chromium without a window.
	Headless bool

	// NoSandbox disables the Chromium sandbox, which is required when
	// running as root inside containers and CI.
	NoSandbox bool

	// Flags are extra command line switches such as "lang=ko-KR".
	Flags []string

	// IdleWindow is the quiet period used by Page.Navigate.
	IdleWindow time.Duration

	// Logger receives browser lifecycle events.
	Logger *slog.Logger
}

// DefaultOptions returns options for a sandboxless headless Chromium.
func DefaultOptions() Options {
	return Options{
		Headless:   true,
		NoSandbox:  true,
		IdleWindow: DefaultIdleWindow,
	}
}

// Browser is a running Chromium process.
type Browser struct {
	rod      *rod.Browser
	launcher *launcher.Launcher
	opts     Options
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Launch starts Chromium (or connects to opts.ControlURL) and returns
// a connected Browser. The caller must call Close.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IdleWindow <= 0 {
		opts.IdleWindow = DefaultIdleWindow
	}

	b := &Browser{opts: opts, logger: opts.Logger}

	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Context(ctx).Headless(opts.Headless).NoSandbox(opts.NoSandbox)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		if opts.NoSandbox {
			l = l.Set(flags.Flag("disable-setuid-sandbox"))
		}
		for _, raw := range opts.Flags {
			name, val, hasVal := strings.Cut(strings.TrimLeft(raw, "-"), "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}

		u, err := l.Launch()
		if err != nil {
			l.Kill()
			return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
		}
		b.launcher = l
		controlURL = u
	}

	r := rod.New().ControlURL(controlURL).Context(ctx)
	if err := r.Connect(); err != nil {
		b.killProcess()
		return nil, fmt.Errorf("%w: connect to %s: %w", ErrLaunch, controlURL, err)
	}
	b.rod = r

	b.logger.Debug("browser started", "controlURL", controlURL, "headless", opts.Headless)
	return b, nil
}

// NewPage opens a blank tab configured with the given headers and cookies.
func (b *Browser) NewPage(ctx context.Context, opts PageOptions) (*Page, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	p, err := b.rod.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	// Detach the page from the creation context; callers pass a context
	// to every Page method instead.
	p = p.Context(context.Background())

	page := &Page{
		page:   p,
		idle:   b.opts.IdleWindow,
		logger: b.logger,
	}
	if err := page.configure(opts); err != nil {
		_ = p.Close() //nolint:errcheck // best effort cleanup
		return nil, err
	}
	return page, nil
}

// Close disconnects from Chromium and, when this Browser launched it,
// kills the process and removes its temporary profile. Close is safe to
// call more than once.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var err error
	if b.rod != nil {
		err = b.rod.Close()
	}
	b.killProcess()
	b.logger.Debug("browser closed")
	return err
}

// killProcess terminates a launched Chromium and waits for its profile
// directory to be removed.
func (b *Browser) killProcess() {
	if b.launcher == nil {
		return
	}
	b.launcher.Kill()
	b.launcher.Cleanup()
	b.launcher = nil
}
