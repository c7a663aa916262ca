package scrape

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wchen/gpuharvest/internal/db"
	"github.com/wchen/gpuharvest/internal/fetch"
	"github.com/wchen/gpuharvest/internal/parse"
)

// ListingPath is the catalog page enumerating every GPU.
const ListingPath = "/gpu-specs/"

// RelationCategory is the spec category that links a board variant back to
// its parent GPU product; there is no native foreign key for this relation.
const RelationCategory = "Related Info"

// RelationSpecName names the back-reference spec.
const RelationSpecName = "Related GPU Product ID"

// BoardTask is one unit of board-review work discovered while draining the
// product queue.
type BoardTask struct {
	ProductID int64
	BoardID   int64
	BoardName string
	ReviewURL string
}

// Scraper drives the two-phase crawl: the product queue is drained first
// (typically by a single worker so product processing stays sequential
// against the name cache), then the board/review queue.
type Scraper struct {
	fetcher        *fetch.Fetcher
	store          *db.DB
	counters       *Counters
	productWorkers int
	boardWorkers   int

	names        *db.NameCache
	productQueue *Queue[parse.Listing]
	boardQueue   *Queue[BoardTask]
}

// New builds a scraper for one run.
func New(fetcher *fetch.Fetcher, store *db.DB, counters *Counters, productWorkers, boardWorkers int) *Scraper {
	return &Scraper{
		fetcher:        fetcher,
		store:          store,
		counters:       counters,
		productWorkers: productWorkers,
		boardWorkers:   boardWorkers,
		productQueue:   NewQueue[parse.Listing](),
		boardQueue:     NewQueue[BoardTask](),
	}
}

// Run crawls the whole catalog.
func (s *Scraper) Run(ctx context.Context) error {
	return s.run(ctx, "")
}

// RunSelected crawls only the GPU whose listing name equals gpuName
// case-insensitively. When nothing matches exactly, close matches are
// logged and the run finishes without error.
func (s *Scraper) RunSelected(ctx context.Context, gpuName string) error {
	return s.run(ctx, gpuName)
}

func (s *Scraper) run(ctx context.Context, gpuName string) error {
	listing, err := s.fetchListing(ctx)
	if err != nil {
		return err
	}
	log.Printf("[SCRAPE] found %d products on the listing page", len(listing))

	if gpuName != "" {
		listing = filterListing(listing, gpuName)
		if len(listing) == 0 {
			return nil
		}
		log.Printf("[SCRAPE] %d products left after selecting %q", len(listing), gpuName)
	}

	s.names, err = s.store.BuildNameCache(ctx)
	if err != nil {
		return err
	}
	log.Printf("[SCRAPE] name cache holds %d known products", s.names.Products())

	for _, entry := range listing {
		s.productQueue.Put(entry)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.productWorkers; i++ {
		g.Go(func() error {
			s.productWorker(gctx)
			return nil
		})
	}
	for i := 0; i < s.boardWorkers; i++ {
		g.Go(func() error {
			s.boardWorker(gctx)
			return nil
		})
	}

	// Board tasks are only discovered while products drain, so the product
	// barrier must be satisfied before the board barrier is even consulted.
	s.productQueue.Join()
	log.Printf("[SCRAPE] product queue drained")
	s.boardQueue.Join()
	log.Printf("[SCRAPE] board queue drained")

	s.productQueue.Close()
	s.boardQueue.Close()
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Scraper) fetchListing(ctx context.Context) ([]parse.Listing, error) {
	html, err := s.fetcher.Fetch(ctx, ListingPath, fetch.Options{Relative: true, BypassDedup: true})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product listing: %w", err)
	}
	listing, err := parse.ProductList(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse product listing: %w", err)
	}
	return listing, nil
}

func filterListing(listing []parse.Listing, gpuName string) []parse.Listing {
	want := strings.ToLower(strings.TrimSpace(gpuName))
	var filtered []parse.Listing
	for _, entry := range listing {
		if strings.ToLower(strings.TrimSpace(entry.Name)) == want {
			filtered = append(filtered, entry)
		}
	}
	if len(filtered) == 0 {
		log.Printf("[SCRAPE] no exact match for %q; close matches:", gpuName)
		for _, entry := range listing {
			if strings.Contains(strings.ToLower(entry.Name), want) {
				log.Printf("[SCRAPE]   - %s", entry.Name)
			}
		}
	}
	return filtered
}

// productWorker drains the product queue. A failed task is logged and
// acknowledged; it never blocks the drain or kills the worker.
func (s *Scraper) productWorker(ctx context.Context) {
	for {
		entry, ok := s.productQueue.Get()
		if !ok {
			return
		}
		s.runTask(fmt.Sprintf("product %s", entry.Name), func() {
			s.processProduct(ctx, entry)
		})
		s.productQueue.TaskDone()
	}
}

// boardWorker drains the board/review queue.
func (s *Scraper) boardWorker(ctx context.Context) {
	for {
		task, ok := s.boardQueue.Get()
		if !ok {
			return
		}
		s.runTask(fmt.Sprintf("board %s", task.BoardName), func() {
			s.processBoard(ctx, task)
		})
		s.boardQueue.TaskDone()
	}
}

// runTask isolates one unit of work: a panic degrades to a logged error
// instead of a dead worker.
func (s *Scraper) runTask(label string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.counters.AddError()
			log.Printf("[WORKER] panic while processing %s: %v", label, r)
		}
	}()
	fn()
}

func (s *Scraper) processProduct(ctx context.Context, entry parse.Listing) {
	log.Printf("[WORKER] processing product: %s", entry.Name)

	if id, known := s.names.Lookup(entry.Name); known {
		log.Printf("[WORKER] product %q already stored (id %d), skipping", entry.Name, id)
		return
	}

	html, err := s.fetcher.Fetch(ctx, entry.URL, fetch.Options{Relative: true})
	if err != nil {
		s.skip("fetch product detail", entry.Name, err)
		return
	}

	detail, specFacts, err := parse.ProductDetailPage(html, entry.URL)
	if err != nil {
		s.skip("parse product detail", entry.Name, err)
		return
	}

	productID, err := s.store.UpsertProductWithSpecs(ctx, db.ProductAttrs{
		Name:        detail.Name,
		Vendor:      detail.Vendor,
		Description: detail.Description,
		ImageURL:    detail.ImageURL,
	}, toSpecInputs(specFacts))
	if err != nil {
		s.skip("store product", entry.Name, err)
		return
	}
	s.names.Add(detail.Name, productID)
	s.counters.AddProduct()
	s.counters.AddSpecs(len(specFacts))
	log.Printf("[WORKER] stored product %s (id %d) with %d specs", detail.Name, productID, len(specFacts))

	for _, board := range parse.BoardsSection(html) {
		s.processBoardEntry(ctx, productID, board)
	}
}

// processBoardEntry stores one board variant as its own product carrying a
// back-reference spec, and enqueues its review work if any.
func (s *Scraper) processBoardEntry(ctx context.Context, productID int64, board parse.BoardEntry) {
	specs := []db.SpecInput{{
		Category: RelationCategory,
		Name:     RelationSpecName,
		Value:    fmt.Sprint(productID),
	}}
	description := ""

	if board.URL != "" {
		if html, err := s.fetcher.Fetch(ctx, board.URL, fetch.Options{Relative: true}); err == nil {
			if _, boardFacts, perr := parse.ProductDetailPage(html, board.URL); perr == nil {
				specs = append(specs, toSpecInputs(boardFacts)...)
				description = describeSpecs(boardFacts)
			}
		} else if !errors.Is(err, fetch.ErrDeduplicated) {
			s.skip("fetch board detail", board.Name, err)
		}
	}

	vendor := board.Vendor
	if vendor == "" {
		vendor = "Unknown"
	}

	boardID, err := s.store.UpsertProductWithSpecs(ctx, db.ProductAttrs{
		Name:        board.Name,
		Vendor:      vendor,
		Description: description,
	}, specs)
	if err != nil {
		s.skip("store board", board.Name, err)
		return
	}
	s.names.Add(board.Name, boardID)
	s.counters.AddBoard()
	s.counters.AddSpecs(len(specs))
	log.Printf("[WORKER] stored board %s (id %d) linked to product %d", board.Name, boardID, productID)

	if board.ReviewURL != "" {
		s.boardQueue.Put(BoardTask{
			ProductID: productID,
			BoardID:   boardID,
			BoardName: board.Name,
			ReviewURL: board.ReviewURL,
		})
		log.Printf("[WORKER] queued review work for board %s", board.Name)
	}
}

func (s *Scraper) processBoard(ctx context.Context, task BoardTask) {
	log.Printf("[WORKER] processing reviews for board: %s", task.BoardName)

	html, err := s.fetcher.Fetch(ctx, task.ReviewURL, fetch.Options{Relative: true})
	if err != nil {
		s.skip("fetch review page", task.BoardName, err)
		return
	}

	options := parse.ReviewOptions(html)
	if len(options) == 0 {
		log.Printf("[WORKER] no review sub-pages for board %s", task.BoardName)
		return
	}

	for _, option := range options {
		optionHTML, err := s.fetcher.Fetch(ctx, option.Value, fetch.Options{Relative: true})
		if err != nil {
			s.skip("fetch review sub-page", option.Value, err)
			continue
		}

		content, facts, specFacts, err := parse.ReviewContentPage(optionHTML, option.Text, task.BoardName)
		if err != nil {
			s.skip("parse review sub-page", option.Value, err)
			continue
		}

		reviewID, err := s.store.UpsertReview(ctx, task.BoardID, option.Text, content.Title, content.Body)
		if err != nil {
			s.skip("store review", option.Text, err)
			continue
		}
		if err := s.store.ReplaceReviewData(ctx, reviewID, toDatumInputs(facts)); err != nil {
			s.skip("store review data", option.Text, err)
			continue
		}
		if err := s.store.MergeProductSpecs(ctx, task.BoardID, toSpecInputs(specFacts)); err != nil {
			s.skip("merge review specs", option.Text, err)
			continue
		}
		s.counters.AddReview()
		log.Printf("[WORKER] stored review %q for board %s", option.Text, task.BoardName)
	}
}

// skip logs a failed unit of work and moves on. Deduplicated fetches are
// not failures.
func (s *Scraper) skip(op, unit string, err error) {
	if errors.Is(err, fetch.ErrDeduplicated) {
		return
	}
	s.counters.AddError()
	log.Printf("[WORKER] skipping %s for %s: %v", op, unit, err)
}

func toSpecInputs(facts []parse.SpecFact) []db.SpecInput {
	inputs := make([]db.SpecInput, 0, len(facts))
	for _, f := range facts {
		inputs = append(inputs, db.SpecInput{Category: f.Category, Name: f.Name, Value: f.Value})
	}
	return inputs
}

func toDatumInputs(facts []parse.ReviewFact) []db.ReviewDatumInput {
	inputs := make([]db.ReviewDatumInput, 0, len(facts))
	for _, f := range facts {
		inputs = append(inputs, db.ReviewDatumInput{
			DataType:    f.DataType,
			Key:         f.Key,
			Value:       f.Value,
			Unit:        f.Unit,
			ProductName: f.ProductName,
		})
	}
	return inputs
}

// describeSpecs flattens a board's parsed spec table into the description
// column, mirroring how board rows read in the admin UI.
func describeSpecs(facts []parse.SpecFact) string {
	parts := make([]string, 0, len(facts))
	for _, f := range facts {
		parts = append(parts, f.Name+": "+f.Value)
	}
	return strings.Join(parts, " | ")
}
