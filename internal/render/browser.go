// Package render drives the headless-browser attempt-rendering pipeline
// from SPEC_FULL §4.3: one reused browser/context per job, a mocked
// attempt-report origin, an optional ready-signal handshake, PDF export,
// and optional raster post-processing.
package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserOptions configures the single browser/context created once per job.
type BrowserOptions struct {
	ViewportWidth         int
	NavigationTimeout     time.Duration
	SkipTLSVerify         bool
	ProxyURL              string
	BlockLoginNavigation  bool
}

// Browser owns one chromedp allocator/context for the lifetime of a job. It
// is created once per job (not once per attempt) and every attempt page is
// opened, used, and closed against it.
type Browser struct {
	allocCtx context.Context
	allocCancel context.CancelFunc
	ctx      context.Context
	cancel   context.CancelFunc
	opts     BrowserOptions
}

// NewBrowser launches a browser for the lifetime of one job, viewport sized
// to width x width*9/16 per §4.3.2, with CORS disabled so the mocked
// attempt-report origin can pull host-relative resources, and honoring
// configured TLS and proxy policy.
func NewBrowser(parent context.Context, opts BrowserOptions) (*Browser, error) {
	height := opts.ViewportWidth * 9 / 16

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("headless", true),
		chromedp.WindowSize(opts.ViewportWidth, height),
	)
	if opts.SkipTLSVerify {
		execOpts = append(execOpts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if opts.ProxyURL != "" {
		execOpts = append(execOpts, chromedp.ProxyServer(opts.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, execOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(ctx); err != nil {
		allocCancel()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	return &Browser{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		opts:        opts,
	}, nil
}

// Close releases the browser and its allocator. Safe to call once per
// Browser; callers should defer it immediately after NewBrowser succeeds.
func (b *Browser) Close() {
	b.cancel()
	b.allocCancel()
}

// Context returns the chromedp browser context new pages are created under.
func (b *Browser) Context() context.Context {
	return b.ctx
}

// ViewportHeight returns the derived viewport height (width * 9/16).
func (o BrowserOptions) ViewportHeight() int {
	return o.ViewportWidth * 9 / 16
}

// OptionsFromDescriptor derives BrowserOptions from a job descriptor and the
// ambient render configuration (not carried on the descriptor itself).
func OptionsFromDescriptor(viewportWidth int, navTimeout time.Duration, skipTLS bool, proxyURL string, blockLogin bool) BrowserOptions {
	return BrowserOptions{
		ViewportWidth:        viewportWidth,
		NavigationTimeout:    navTimeout,
		SkipTLSVerify:        skipTLS,
		ProxyURL:             proxyURL,
		BlockLoginNavigation: blockLogin,
	}
}
