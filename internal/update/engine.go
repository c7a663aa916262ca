package update

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/wchen/gpuharvest/internal/db"
	"github.com/wchen/gpuharvest/internal/fetch"
	"github.com/wchen/gpuharvest/internal/parse"
	"github.com/wchen/gpuharvest/internal/politeness"
)

// Stats summarizes one update run.
type Stats struct {
	Candidates int
	Discovered int
	Resolved   int
	Updated    int
	Skipped    int
	Errors     int
}

// Manager runs the three reconciliation phases in order: discover review
// URLs for stored products, resolve sub-page URLs behind them, then
// re-ingest review content. An incremental run only re-ingests reviews whose
// posted date is newer than the stored record.
type Manager struct {
	fetcher  *fetch.Fetcher
	store    *db.DB
	pol      *politeness.Policy
	pages    *PageCache
	progress func(int)

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager builds a manager for one run. progress may be nil.
func NewManager(fetcher *fetch.Fetcher, store *db.DB, pol *politeness.Policy, progress func(int)) *Manager {
	if progress == nil {
		progress = func(int) {}
	}
	return &Manager{
		fetcher:  fetcher,
		store:    store,
		pol:      pol,
		pages:    NewPageCache(),
		progress: progress,
		sleep:    sleepCtx,
	}
}

// FullUpdate re-ingests every stored review.
func (m *Manager) FullUpdate(ctx context.Context) (Stats, error) {
	return m.run(ctx, false)
}

// IncrementalUpdate re-ingests only reviews whose posted date is newer than
// the stored update timestamp.
func (m *Manager) IncrementalUpdate(ctx context.Context) (Stats, error) {
	return m.run(ctx, true)
}

func (m *Manager) run(ctx context.Context, incremental bool) (Stats, error) {
	var stats Stats

	if err := m.discoverReviewURLs(ctx, &stats); err != nil {
		return stats, err
	}
	m.progress(20)

	if err := m.resolveSubpages(ctx, &stats); err != nil {
		return stats, err
	}
	m.progress(30)

	if err := m.evaluateReviews(ctx, incremental, &stats); err != nil {
		return stats, err
	}
	m.progress(100)

	log.Printf("[UPDATE] run complete: %d discovered, %d resolved, %d updated, %d skipped, %d errors",
		stats.Discovered, stats.Resolved, stats.Updated, stats.Skipped, stats.Errors)
	return stats, nil
}

// discoverReviewURLs walks the catalog listing for products already stored
// and records the review main URL on every review the board's name matches.
func (m *Manager) discoverReviewURLs(ctx context.Context, stats *Stats) error {
	html, err := m.fetcher.Fetch(ctx, "/gpu-specs/", fetch.Options{Relative: true, BypassDedup: true})
	if err != nil {
		return err
	}
	m.progress(10)

	listing, err := parse.ProductList(html)
	if err != nil {
		return err
	}

	names, err := m.store.BuildNameCache(ctx)
	if err != nil {
		return err
	}

	for _, entry := range listing {
		if _, known := names.Lookup(entry.Name); !known {
			continue
		}
		detail, ferr := m.fetchCached(ctx, entry.URL)
		if ferr != nil {
			m.skip(stats, "fetch product detail", entry.Name, ferr)
			continue
		}
		for _, board := range parse.BoardsSection(detail) {
			if board.ReviewURL == "" {
				continue
			}
			refs, lerr := m.store.ListReviewsByProductNameLike(ctx, db.SimplifyName(board.Name))
			if lerr != nil {
				m.skip(stats, "look up reviews", board.Name, lerr)
				continue
			}
			for _, ref := range refs {
				if ref.MainURL == board.ReviewURL {
					continue
				}
				if serr := m.store.SetReviewMainURL(ctx, ref.ID, board.ReviewURL); serr != nil {
					m.skip(stats, "record review URL", board.Name, serr)
					continue
				}
				stats.Discovered++
				log.Printf("[UPDATE] review %d now points at %s", ref.ID, board.ReviewURL)
			}
		}
	}
	return nil
}

// resolveSubpages fetches each distinct review main page once and records
// the sub-page URL whose drop-down label matches the stored review type.
func (m *Manager) resolveSubpages(ctx context.Context, stats *Stats) error {
	refs, err := m.store.ListReviewsWithMainURL(ctx)
	if err != nil {
		return err
	}

	byMain := make(map[string][]db.ReviewRef)
	for _, ref := range refs {
		byMain[ref.MainURL] = append(byMain[ref.MainURL], ref)
	}

	for mainURL, group := range byMain {
		body, ferr := m.fetchCached(ctx, mainURL)
		if ferr != nil {
			m.skip(stats, "fetch review page", mainURL, ferr)
			continue
		}
		options := parse.ReviewOptions(body)
		for _, ref := range group {
			for _, option := range options {
				if !MatchOption(ref.Type, option.Text) {
					continue
				}
				if ref.PageURL != option.Value {
					if serr := m.store.SetReviewPageURL(ctx, ref.ID, option.Value); serr != nil {
						m.skip(stats, "record sub-page URL", option.Text, serr)
						break
					}
				}
				stats.Resolved++
				// Warm the cache so the evaluation phase reads it for free.
				if _, cerr := m.fetchCached(ctx, option.Value); cerr != nil {
					m.skip(stats, "prefetch sub-page", option.Value, cerr)
				}
				break
			}
		}
	}
	return nil
}

// evaluateReviews re-ingests review content. Incremental runs compare the
// page's posted date against the stored update timestamp first.
func (m *Manager) evaluateReviews(ctx context.Context, incremental bool, stats *Stats) error {
	refs, err := m.store.ListReviewsWithMainURL(ctx)
	if err != nil {
		return err
	}
	stats.Candidates = len(refs)

	for i, ref := range refs {
		m.progress(30 + (i*55)/max(len(refs), 1))

		// The posted date lives on the main page, so the incremental
		// decision is made there before the content page is touched.
		if incremental {
			mainBody, cached, ferr := m.fetchCachedInfo(ctx, ref.MainURL)
			if ferr != nil {
				m.skip(stats, "fetch review page", ref.MainURL, ferr)
				continue
			}
			if !needsReingest(ref.UpdatedAt, mainBody) {
				stats.Skipped++
				log.Printf("[UPDATE] review %d is current, skipping", ref.ID)
				if err := m.pause(ctx, cached); err != nil {
					return err
				}
				continue
			}
		}

		target := ref.PageURL
		if target == "" {
			target = ref.MainURL
		}
		body, cached, ferr := m.fetchCachedInfo(ctx, target)
		if ferr != nil {
			m.skip(stats, "fetch review", target, ferr)
			continue
		}

		if uerr := m.updateReview(ctx, ref, body); uerr != nil {
			m.skip(stats, "update review", target, uerr)
			continue
		}
		stats.Updated++
		if err := m.pause(ctx, cached); err != nil {
			return err
		}
	}
	m.progress(85)
	return nil
}

func (m *Manager) updateReview(ctx context.Context, ref db.ReviewRef, body string) error {
	content, facts, specFacts, err := parse.ReviewContentPage(body, ref.Type, ref.ProductName)
	if err != nil {
		return err
	}
	if err := m.store.UpdateReviewBody(ctx, ref.ID, content.Body); err != nil {
		return err
	}

	data := make([]db.ReviewDatumInput, 0, len(facts))
	for _, f := range facts {
		data = append(data, db.ReviewDatumInput{
			DataType:    f.DataType,
			Key:         f.Key,
			Value:       f.Value,
			Unit:        f.Unit,
			ProductName: f.ProductName,
		})
	}
	if err := m.store.ReplaceReviewData(ctx, ref.ID, data); err != nil {
		return err
	}

	specs := make([]db.SpecInput, 0, len(specFacts))
	for _, f := range specFacts {
		specs = append(specs, db.SpecInput{Category: f.Category, Name: f.Name, Value: f.Value})
	}
	if err := m.store.MergeProductSpecs(ctx, ref.ProductID, specs); err != nil {
		return err
	}
	log.Printf("[UPDATE] review %d re-ingested (%d measurements, %d specs)", ref.ID, len(data), len(specs))
	return nil
}

// needsReingest reads the posted date out of the review main page and compares
// it against the stored timestamp. A page with no recognizable posted date is
// left alone rather than blindly re-ingested.
func needsReingest(stored time.Time, mainBody string) bool {
	posted, ok := parse.ReviewPostedDate(mainBody)
	if !ok {
		return false
	}
	return shouldUpdate(stored, posted)
}

// shouldUpdate decides at date granularity: a review is stale when its
// stored timestamp's date is strictly before the page's posted date, or when
// nothing was ever recorded.
func shouldUpdate(stored, posted time.Time) bool {
	if stored.IsZero() {
		return true
	}
	storedDate := stored.UTC().Truncate(24 * time.Hour)
	postedDate := posted.UTC().Truncate(24 * time.Hour)
	return storedDate.Before(postedDate)
}

// fetchCached returns the page body, going to the network only on a cache
// miss.
func (m *Manager) fetchCached(ctx context.Context, url string) (string, error) {
	body, _, err := m.fetchCachedInfo(ctx, url)
	return body, err
}

func (m *Manager) fetchCachedInfo(ctx context.Context, url string) (body string, cached bool, err error) {
	if body, ok := m.pages.Get(url); ok {
		return body, true, nil
	}
	body, err = m.fetcher.Fetch(ctx, url, fetch.Options{Relative: true, BypassDedup: true})
	if err != nil {
		return "", false, err
	}
	m.pages.Put(url, body)
	return body, false, nil
}

// pause keeps the cadence human-like between reviews. Cache hits skip the
// fetcher's own delay, so half the usual pause is applied instead.
func (m *Manager) pause(ctx context.Context, cached bool) error {
	if !cached {
		return nil
	}
	return m.sleep(ctx, m.pol.Delay()/2)
}

func (m *Manager) skip(stats *Stats, op, unit string, err error) {
	if errors.Is(err, fetch.ErrDeduplicated) {
		return
	}
	stats.Errors++
	log.Printf("[UPDATE] skipping %s for %s: %v", op, unit, err)
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
