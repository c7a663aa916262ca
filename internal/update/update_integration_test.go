//go:build integration

package update

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wchen/gpuharvest/internal/db"
	"github.com/wchen/gpuharvest/internal/fetch"
	"github.com/wchen/gpuharvest/internal/politeness"
)

// End-to-end update run against a fixture site. Requires TEST_DATABASE_URL.

const updListing = `<html><body><table class="processors-table"><tbody>
<tr><td><a href="/gpu-specs/itest-x1">Acme U1 {TAG}</a></td></tr>
</tbody></table></body></html>`

const updDetail = `<html><body>
<h1 class="gpudb-name">Acme U1 {TAG}</h1>
<div id="boards"><table><tbody>
<tr><td><a href="/gpu-specs/itest-u1-strix">ASUS U1 STRIX {TAG}</a></td>
<td><a href="/review/itest-u1-strix/">Review</a></td></tr>
</tbody></table></div>
</body></html>`

const updReviewMain = `<html><body>
<h1>ASUS U1 STRIX {TAG} Review</h1>
<p>Posted: Jan 5th, 2024</p>
<select class="review-nav">
<option value="#">Jump to...</option>
<option value="/review/itest-u1-strix/2.html">Temperatures</option>
</select>
</body></html>`

const updReviewPage = `<html><body>
<h1>ASUS U1 STRIX {TAG} Review</h1>
<div class="review-content">
<p>Posted: Jan 5th, 2024</p>
<p>Revised thermal results.</p>
<h2>Thermals</h2>
<table><tr><td>Idle</td><td>31</td><td>°C</td></tr>
<tr><td>Load</td><td>62</td><td>°C</td></tr></table>
</div>
</body></html>`

func updFixtureSite(t *testing.T, tag string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	pages := map[string]string{
		"/gpu-specs/":                   updListing,
		"/gpu-specs/itest-x1":           updDetail,
		"/review/itest-u1-strix/":       updReviewMain,
		"/review/itest-u1-strix/2.html": updReviewPage,
	}
	for path, tmpl := range pages {
		body := strings.ReplaceAll(tmpl, "{TAG}", tag)
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestManager(t *testing.T, store *db.DB, baseURL string, progress func(int)) *Manager {
	t.Helper()
	policy := politeness.New(0, 0, nil, baseURL)
	fetcher, err := fetch.New(baseURL, 5*time.Second, policy, false)
	require.NoError(t, err)
	return NewManager(fetcher, store, policy, progress)
}

func TestIntegration_FullUpdateReingestsReviews(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	store, err := db.Connect(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate(ctx))

	tag := uuid.NewString()[:8]
	boardName := "ASUS U1 STRIX " + tag

	// Seed what a prior crawl would have left behind.
	_, err = store.UpsertProduct(ctx, db.ProductAttrs{Name: "Acme U1 " + tag, Vendor: "Acme"})
	require.NoError(t, err)
	boardID, err := store.UpsertProduct(ctx, db.ProductAttrs{Name: boardName, Vendor: "ASUS"})
	require.NoError(t, err)
	reviewID, err := store.UpsertReview(ctx, boardID, "Temperatures", boardName+" Review", "stale body")
	require.NoError(t, err)

	srv := updFixtureSite(t, tag)
	var milestones []int
	m := newTestManager(t, store, srv.URL, func(p int) { milestones = append(milestones, p) })

	stats, err := m.FullUpdate(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Discovered, 1)
	assert.GreaterOrEqual(t, stats.Resolved, 1)
	assert.Equal(t, 0, stats.Errors)

	review, err := store.GetReview(ctx, reviewID)
	require.NoError(t, err)
	assert.Equal(t, "/review/itest-u1-strix/", review.MainURL)
	assert.Equal(t, "/review/itest-u1-strix/2.html", review.PageURL)
	assert.Contains(t, review.Body, "Revised thermal results.")

	data, err := store.ListReviewData(ctx, reviewID)
	require.NoError(t, err)
	assert.Len(t, data, 2)

	specs, err := store.ListSpecs(ctx, boardID)
	require.NoError(t, err)
	byName := map[string]string{}
	for _, sp := range specs {
		byName[sp.Name] = sp.Value
	}
	assert.Equal(t, "62 °C", byName["Load"])

	require.NotEmpty(t, milestones)
	assert.Equal(t, 100, milestones[len(milestones)-1])
	assert.True(t, sortedAscending(milestones), "progress must never move backwards: %v", milestones)
}

func TestIntegration_IncrementalUpdateSkipsFreshReviews(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	store, err := db.Connect(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate(ctx))

	tag := uuid.NewString()[:8]
	boardName := "ASUS U1 STRIX " + tag

	_, err = store.UpsertProduct(ctx, db.ProductAttrs{Name: "Acme U1 " + tag, Vendor: "Acme"})
	require.NoError(t, err)
	boardID, err := store.UpsertProduct(ctx, db.ProductAttrs{Name: boardName, Vendor: "ASUS"})
	require.NoError(t, err)
	reviewID, err := store.UpsertReview(ctx, boardID, "Temperatures", boardName+" Review", "current body")
	require.NoError(t, err)

	srv := updFixtureSite(t, tag)
	m := newTestManager(t, store, srv.URL, nil)

	// The fixture review was posted Jan 5, 2024; the stored record is newer.
	stats, err := m.IncrementalUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Updated)

	review, err := store.GetReview(ctx, reviewID)
	require.NoError(t, err)
	assert.Equal(t, "current body", review.Body, "a fresh review must not be touched")
}

func sortedAscending(xs []int) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] < xs[i-1] {
			return false
		}
	}
	return true
}
