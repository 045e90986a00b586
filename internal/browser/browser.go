// Package browser renders pages in a headless Chrome instance and extracts
// their primary textual content and outbound links.
//
// One Browser is acquired per crawl/extraction run and must be closed on
// every exit path. Each call opens its own tab and closes it before
// returning, including on failure, so tabs never leak across calls.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/siteguide/siteguide/internal/log"
)

// Config holds browser settings for one run.
type Config struct {
	// NavigationTimeout bounds page navigation. A timeout fails the page,
	// not the run. Zero means DefaultNavigationTimeout.
	NavigationTimeout time.Duration

	// IdleTimeout bounds the wait for network idle after navigation.
	// Zero means DefaultIdleTimeout.
	IdleTimeout time.Duration

	// MinSelectorTextLen is the minimum trimmed text length for a content
	// selector to win; shorter matches fall through to the next selector.
	// Zero means DefaultMinSelectorTextLen.
	MinSelectorTextLen int
}

const (
	DefaultNavigationTimeout  = 30 * time.Second
	DefaultIdleTimeout        = 10 * time.Second
	DefaultMinSelectorTextLen = 200
)

func (c Config) navigationTimeout() time.Duration {
	if c.NavigationTimeout == 0 {
		return DefaultNavigationTimeout
	}
	return c.NavigationTimeout
}

func (c Config) idleTimeout() time.Duration {
	if c.IdleTimeout == 0 {
		return DefaultIdleTimeout
	}
	return c.IdleTimeout
}

func (c Config) minSelectorTextLen() int {
	if c.MinSelectorTextLen == 0 {
		return DefaultMinSelectorTextLen
	}
	return c.MinSelectorTextLen
}

// Browser owns one headless Chrome instance.
type Browser struct {
	cfg      Config
	launcher *launcher.Launcher
	browser  *rod.Browser
	logger   log.Logger
}

// New launches a headless Chrome and connects to it. Callers must Close the
// returned Browser when the run ends.
func New(cfg Config, logger log.Logger) (_ *Browser, retErr error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	l := launcher.New().Headless(true)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching chrome: %w", err)
	}
	defer func() {
		if retErr != nil {
			l.Cleanup()
		}
	}()

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to chrome: %w", err)
	}

	return &Browser{cfg: cfg, launcher: l, browser: b, logger: logger}, nil
}

// Close shuts down the browser and its launcher.
func (b *Browser) Close() error {
	err := b.browser.Close()
	b.launcher.Cleanup()
	if err != nil {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}

// render navigates a fresh tab to uri, waits for network idle, and returns
// the rendered HTML plus the page's final location (after redirects). The
// tab is closed before returning on every path.
func (b *Browser) render(ctx context.Context, uri string) (html string, location *url.URL, retErr error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return "", nil, fmt.Errorf("opening tab: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil && retErr == nil {
			b.logger.Warn("closing tab", "uri", uri, "error", err)
		}
	}()

	page = page.Context(ctx)

	navPage := page.Timeout(b.cfg.navigationTimeout())
	if err := navPage.Navigate(uri); err != nil {
		return "", nil, fmt.Errorf("navigating to %s: %w", uri, err)
	}
	if err := navPage.WaitLoad(); err != nil {
		return "", nil, fmt.Errorf("waiting for load of %s: %w", uri, err)
	}
	// Network idle is best effort: some pages poll forever, so a timeout
	// here falls through to whatever has rendered.
	if err := page.WaitIdle(b.cfg.idleTimeout()); err != nil {
		b.logger.Debug("network idle wait ended early", "uri", uri, "error", err)
	}

	info, err := page.Info()
	if err != nil {
		return "", nil, fmt.Errorf("reading page info for %s: %w", uri, err)
	}
	location, err = url.Parse(info.URL)
	if err != nil {
		return "", nil, fmt.Errorf("parsing final location %q: %w", info.URL, err)
	}

	html, err = page.HTML()
	if err != nil {
		return "", nil, fmt.Errorf("reading html of %s: %w", uri, err)
	}
	return html, location, nil
}

// ExtractText renders uri and returns its primary textual content.
// Readability extraction is tried first, then the ordered content selectors,
// then the whole body text.
func (b *Browser) ExtractText(ctx context.Context, uri string) (string, error) {
	html, location, err := b.render(ctx, uri)
	if err != nil {
		return "", err
	}
	text := ExtractContent(html, location, b.cfg.minSelectorTextLen())
	if strings.TrimSpace(text) == "" {
		b.logger.Debug("page yielded no text", "uri", uri)
	}
	return text, nil
}

// Links renders uri and returns its outbound anchor targets resolved to
// absolute form against the page's own final location.
func (b *Browser) Links(ctx context.Context, uri string) ([]*url.URL, error) {
	html, location, err := b.render(ctx, uri)
	if err != nil {
		return nil, err
	}
	return ExtractLinks(html, location)
}
