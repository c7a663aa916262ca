// Package fetch - browser.go provides headless browser rendering for pages
// that return little or no markup from a plain GET.
package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// MinContentLength is the minimum body length for a plain GET to count as a
// real page. Shorter bodies are assumed to be JavaScript shells.
const MinContentLength = 500

// ShouldUseBrowser reports whether the fetched body is too thin and the page
// should be re-rendered in a headless browser.
func ShouldUseBrowser(body string) bool {
	return len(strings.TrimSpace(body)) < MinContentLength
}

// WithBrowser renders a page in headless Chrome and returns the final HTML.
// Requires Chrome/Chromium to be installed on the host.
func WithBrowser(ctx context.Context, url string, timeout time.Duration) (string, error) {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}
	return html, nil
}
