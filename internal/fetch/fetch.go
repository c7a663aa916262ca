// Package fetch provides the rate-limited page fetcher used by every crawl
// phase: randomized headers, a politeness delay after each success, a tiered
// retry schedule on failure, and per-run URL deduplication.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/wchen/gpuharvest/internal/politeness"
)

// ErrDeduplicated reports that a URL was skipped because it was already
// fetched during this run. Callers treat it as "nothing to do".
var ErrDeduplicated = errors.New("url already fetched this run")

// ErrExhausted reports that the retry table ran out for a URL. The unit of
// work is skipped; the run continues.
var ErrExhausted = errors.New("retry table exhausted")

// Error describes a fetch failure for one URL.
type Error struct {
	URL      string
	Attempts int
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options controls resolution and dedup behavior for a single fetch.
type Options struct {
	// Relative resolves the URL against the fetcher's base URL.
	Relative bool
	// BypassDedup fetches even if the URL was already processed this run.
	// Reconciliation passes use this to refresh content deliberately.
	BypassDedup bool
}

// Fetcher issues polite GETs against one source site.
type Fetcher struct {
	base    *url.URL
	client  *http.Client
	policy  *politeness.Policy
	logf    func(format string, args ...any)
	browser bool

	mu        sync.Mutex
	processed map[string]struct{}

	// sleep is swapped out by tests so retry schedules can be observed
	// without waiting on them.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a fetcher for baseURL. timeout applies per attempt.
func New(baseURL string, timeout time.Duration, policy *politeness.Policy, useBrowser bool) (*Fetcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	return &Fetcher{
		base:      base,
		client:    &http.Client{Timeout: timeout},
		policy:    policy,
		logf:      func(string, ...any) {},
		browser:   useBrowser,
		processed: make(map[string]struct{}),
		sleep:     sleepCtx,
	}, nil
}

// SetLogf installs a log function for per-attempt diagnostics.
func (f *Fetcher) SetLogf(logf func(format string, args ...any)) {
	if logf != nil {
		f.logf = logf
	}
}

// Fetch retrieves a page body. On transient failure it sleeps per the retry
// table and tries again; once the table is exhausted it returns an *Error
// wrapping ErrExhausted. A nil error means body holds the page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) (string, error) {
	target := rawURL
	if opts.Relative {
		ref, err := url.Parse(rawURL)
		if err != nil {
			return "", &Error{URL: rawURL, Message: "invalid URL", Cause: err}
		}
		target = f.base.ResolveReference(ref).String()
	}

	if !opts.BypassDedup && f.Processed(target) {
		f.logf("[FETCH] skipping already processed URL: %s", target)
		return "", &Error{URL: target, Message: "deduplicated", Cause: ErrDeduplicated}
	}

	for attempt := 0; ; attempt++ {
		body, err := f.attempt(ctx, target)
		if err == nil {
			// Human-like pause before handing the page back.
			if derr := f.sleep(ctx, f.policy.Delay()); derr != nil {
				return "", &Error{URL: target, Message: "cancelled", Cause: derr}
			}
			f.markProcessed(target)
			return body, nil
		}
		if ctx.Err() != nil {
			return "", &Error{URL: target, Attempts: attempt + 1, Message: "cancelled", Cause: ctx.Err()}
		}

		delay, ok := f.policy.RetryDelay(attempt)
		if !ok {
			f.logf("[FETCH] giving up on %s after %d attempts: %v", target, attempt+1, err)
			return "", &Error{URL: target, Attempts: attempt + 1, Message: "retry table exhausted", Cause: ErrExhausted}
		}
		f.logf("[FETCH] attempt %d/%d for %s failed (%v), retrying in %s", attempt+1, f.policy.MaxRetries(), target, err, delay)
		if derr := f.sleep(ctx, delay); derr != nil {
			return "", &Error{URL: target, Attempts: attempt + 1, Message: "cancelled", Cause: derr}
		}
	}
}

// attempt performs one GET. Any network error, timeout, or non-2xx status is
// a transient failure.
func (f *Fetcher) attempt(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range f.policy.Headers() {
		req.Header.Set(key, value)
	}

	f.logf("[FETCH] GET %s", target)
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("HTTP status %d", resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	body := string(bodyBytes)

	if f.browser && ShouldUseBrowser(body) {
		rendered, berr := WithBrowser(ctx, target, f.client.Timeout)
		if berr != nil {
			f.logf("[FETCH] browser fallback failed for %s: %v", target, berr)
			return body, nil
		}
		return rendered, nil
	}
	return body, nil
}

// Processed reports whether the URL was already fetched this run.
func (f *Fetcher) Processed(target string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.processed[target]
	return ok
}

// ProcessedCount returns the size of the per-run dedup set.
func (f *Fetcher) ProcessedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processed)
}

func (f *Fetcher) markProcessed(target string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed[target] = struct{}{}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
