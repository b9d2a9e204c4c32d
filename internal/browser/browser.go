// Package browser owns the headless Chrome instance used by the pipeline.
// One Browser is launched per run; each Context is a long-lived browsing
// context carrying the session cookies, able to spawn many sequential page
// loads.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"wholesale-scraper/internal/session"
	"wholesale-scraper/internal/types"
)

// blockedPatterns lists non-essential resources aborted when resource
// blocking is enabled: heavy static assets plus analytics/tracking hosts.
// Blocking is an optimization only; pages must render without it.
var blockedPatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico",
	"*.woff", "*.woff2", "*.ttf", "*.otf",
	"*.mp4", "*.webm", "*.mp3",
	"*google-analytics*", "*googletagmanager*", "*doubleclick*",
	"*facebook*", "*hotjar*", "*analytics*",
}

// Browser wraps a launched headless Chrome process.
type Browser struct {
	cfg    *types.Config
	logger types.Logger

	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	rootCtx     context.Context
	cancelRoot  context.CancelFunc
}

// Launch starts headless Chrome. A launch failure is fatal to the whole run,
// so the error carries full detail.
func Launch(ctx context.Context, cfg *types.Config, logger types.Logger) (*Browser, error) {
	// Suppress chromedp's own debug logging.
	log.SetOutput(io.Discard)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	rootCtx, cancelRoot := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Run a no-op task so the process starts now and launch failures surface
	// here instead of on the first page load.
	if err := chromedp.Run(rootCtx); err != nil {
		cancelRoot()
		cancelAlloc()
		return nil, fmt.Errorf("browser launch: %w", err)
	}

	logger.Infof("Browser ready (headless=%v)", cfg.Headless)
	return &Browser{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		rootCtx:     rootCtx,
		cancelRoot:  cancelRoot,
	}, nil
}

// Close tears down every context and the browser process.
func (b *Browser) Close() {
	b.cancelRoot()
	b.cancelAlloc()
}

// Context is one browsing context. Cookies are written once at creation and
// not mutated during the run; many sequential page loads share it, but each
// page load is exclusive to one in-flight fetch.
type Context struct {
	cfg    *types.Config
	logger types.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewContext creates a browsing context with the session cookies installed
// and, if configured, the resource-blocking list applied.
func (b *Browser) NewContext(cookies []session.Cookie) (*Context, error) {
	tabCtx, cancel := chromedp.NewContext(b.rootCtx)

	params := session.CookieParams(cookies, cookieDomain(b.cfg.BaseURL))
	actions := []chromedp.Action{network.Enable()}
	if b.cfg.BlockResources {
		actions = append(actions, network.SetBlockedURLS(blockedPatterns))
	}
	actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, p := range params {
			if err := network.SetCookie(p.Name, p.Value).
				WithDomain(p.Domain).
				WithPath(p.Path).
				WithSecure(p.Secure).
				WithHTTPOnly(p.HTTPOnly).
				WithSameSite(p.SameSite).
				Do(ctx); err != nil {
				return fmt.Errorf("set cookie %q: %w", p.Name, err)
			}
		}
		return nil
	}))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("prepare browsing context: %w", err)
	}

	b.logger.Debugf("Browsing context ready with %d cookies", len(params))
	return &Context{cfg: b.cfg, logger: b.logger, ctx: tabCtx, cancel: cancel}, nil
}

// Close releases the browsing context.
func (c *Context) Close() {
	c.cancel()
}

// LoadPage opens a page in this context, navigates, waits for the content
// readiness markers, and returns the fully rendered markup. The primary
// readiness marker is the embedded data script; a table node is accepted as a
// secondary signal on a shorter wait. Both waits are soft: on timeout the
// page is extracted anyway, since partial content is better than none.
func (c *Context) LoadPage(ctx context.Context, url string) (string, error) {
	pageCtx, cancelPage := chromedp.NewContext(c.ctx)
	defer cancelPage()

	navCtx, cancelNav := context.WithTimeout(pageCtx, c.cfg.NavTimeout)
	defer cancelNav()

	// Propagate run-level cancellation into the page load.
	stop := context.AfterFunc(ctx, cancelNav)
	defer stop()

	var html string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		c.waitReady(`script#__NEXT_DATA__`, c.cfg.ReadyTimeout),
		c.waitReady(`table`, c.cfg.ReadyTimeout/2),
		chromedp.Sleep(c.cfg.SettleDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", url, err)
	}
	return html, nil
}

// waitReady waits for a marker selector, treating a timeout as a soft signal
// to proceed rather than a failure.
func (c *Context) waitReady(selector string, timeout time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := chromedp.WaitReady(selector, chromedp.ByQuery).Do(waitCtx)
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			c.logger.Debugf("Readiness marker %q not seen within %v, proceeding", selector, timeout)
			return nil
		}
		return err
	})
}

// cookieDomain derives the default cookie domain from the portal origin:
// the host with the first label generalized, e.g. ".lululemon.com".
func cookieDomain(baseURL string) string {
	host := baseURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	parts := strings.Split(host, ".")
	if len(parts) > 2 {
		return "." + strings.Join(parts[1:], ".")
	}
	return host
}
