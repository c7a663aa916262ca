package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `
<html><body>
<table class="processors-table"><tbody>
  <tr><td><a href="/gpu-specs/geforce-rtx-4090.c3889">GeForce RTX 4090</a></td><td>AD102</td></tr>
  <tr><td><a href="/gpu-specs/radeon-rx-7900-xtx.c3941">Radeon RX 7900 XTX</a></td><td>Navi 31</td></tr>
  <tr><td><a href="/gpu-specs/geforce-rtx-4090.c3889">GeForce RTX 4090</a></td><td>dup</td></tr>
</tbody></table>
</body></html>`

func TestProductList(t *testing.T) {
	list, err := ProductList(listingHTML)
	require.NoError(t, err)
	require.Len(t, list, 2, "duplicate hrefs must be collapsed")
	assert.Equal(t, "GeForce RTX 4090", list[0].Name)
	assert.Equal(t, "/gpu-specs/geforce-rtx-4090.c3889", list[0].URL)
	assert.Equal(t, "Radeon RX 7900 XTX", list[1].Name)
}

func TestProductList_Empty(t *testing.T) {
	_, err := ProductList("<html><body><p>maintenance</p></body></html>")
	require.Error(t, err)

	var extractErr *ExtractionError
	assert.ErrorAs(t, err, &extractErr)
}

const detailHTML = `
<html><body>
<h1 class="gpudb-name">NVIDIA GeForce RTX 4090</h1>
<img class="gpudb-large-image" src="/images/rtx4090.jpg">
<div class="desc"><p>Flagship Ada Lovelace graphics card.</p></div>
<div class="sectioncontainer">
  <section class="details"><h2>Graphics Processor</h2>
    <dl><dt>GPU Name</dt><dd>AD102</dd><dt>Process Size</dt><dd>5 nm</dd></dl>
  </section>
  <section class="details"><h2>Clock Speeds</h2>
    <dl><dt>Base Clock</dt><dd>2235 MHz</dd></dl>
  </section>
</div>
</body></html>`

func TestProductDetailPage(t *testing.T) {
	detail, specs, err := ProductDetailPage(detailHTML, "/gpu-specs/geforce-rtx-4090.c3889")
	require.NoError(t, err)

	assert.Equal(t, "NVIDIA GeForce RTX 4090", detail.Name)
	assert.Equal(t, "NVIDIA", detail.Vendor)
	assert.Equal(t, "Flagship Ada Lovelace graphics card.", detail.Description)
	assert.Equal(t, "/images/rtx4090.jpg", detail.ImageURL)

	require.Len(t, specs, 3)
	assert.Equal(t, SpecFact{Category: "Graphics Processor", Name: "GPU Name", Value: "AD102"}, specs[0])
	assert.Equal(t, SpecFact{Category: "Clock Speeds", Name: "Base Clock", Value: "2235 MHz"}, specs[2])
}

func TestProductDetailPage_NoName(t *testing.T) {
	_, _, err := ProductDetailPage("<html><body></body></html>", "/gpu-specs/x")
	require.Error(t, err)

	var extractErr *ExtractionError
	assert.ErrorAs(t, err, &extractErr)
}

const boardsHTML = `
<html><body>
<div id="boards"><table><tbody>
  <tr>
    <td><a href="/gpu-specs/asus-rog-strix-rtx-4090.b9999">ASUS ROG STRIX RTX 4090 OC</a></td>
    <td><a href="/review/asus-rog-strix-rtx-4090">Review</a></td>
  </tr>
  <tr>
    <td><a href="/gpu-specs/msi-suprim-x-rtx-4090.b9998">MSI SUPRIM X RTX 4090</a></td>
    <td>&mdash;</td>
  </tr>
</tbody></table></div>
</body></html>`

func TestBoardsSection(t *testing.T) {
	boards := BoardsSection(boardsHTML)
	require.Len(t, boards, 2)

	assert.Equal(t, "ASUS ROG STRIX RTX 4090 OC", boards[0].Name)
	assert.Equal(t, "ASUS", boards[0].Vendor)
	assert.Equal(t, "/gpu-specs/asus-rog-strix-rtx-4090.b9999", boards[0].URL)
	assert.Equal(t, "/review/asus-rog-strix-rtx-4090", boards[0].ReviewURL)

	assert.Equal(t, "MSI SUPRIM X RTX 4090", boards[1].Name)
	assert.Empty(t, boards[1].ReviewURL)
}

func TestBoardsSection_Absent(t *testing.T) {
	assert.Nil(t, BoardsSection("<html><body><h1>no boards</h1></body></html>"))
}

const reviewMainHTML = `
<html><body>
<h1>ASUS ROG STRIX RTX 4090 Review</h1>
<p>Posted: Jan 5th, 2024 by the lab.</p>
<select class="review-nav">
  <option value="#">Jump to...</option>
  <option value="/review/asus-rog-strix-rtx-4090/38">Temperatures &amp; Fan Noise</option>
  <option value="/review/asus-rog-strix-rtx-4090/40">Overclocking</option>
</select>
</body></html>`

func TestReviewOptions(t *testing.T) {
	options := ReviewOptions(reviewMainHTML)
	require.Len(t, options, 2, "placeholder option must be dropped")
	assert.Equal(t, "Temperatures & Fan Noise", options[0].Text)
	assert.Equal(t, "/review/asus-rog-strix-rtx-4090/38", options[0].Value)
}

func TestReviewPostedDate_FromText(t *testing.T) {
	posted, ok := ReviewPostedDate(reviewMainHTML)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC), posted)
}

func TestReviewPostedDate_FromTimeElement(t *testing.T) {
	html := `<html><body><time datetime="2024-03-12">March 12th, 2024</time></body></html>`
	posted, ok := ReviewPostedDate(html)
	require.True(t, ok)
	assert.Equal(t, 2024, posted.Year())
	assert.Equal(t, time.March, posted.Month())
	assert.Equal(t, 12, posted.Day())
}

func TestReviewPostedDate_Missing(t *testing.T) {
	_, ok := ReviewPostedDate("<html><body><p>no date here</p></body></html>")
	assert.False(t, ok)
}

const reviewPageHTML = `
<html><body>
<nav>site nav</nav>
<h1>Temperatures &amp; Fan Noise</h1>
<div class="review-content">
  <p>The card stays remarkably cool under load.</p>
  <h2>Thermals</h2>
  <table>
    <tr><td>Idle Temperature</td><td>32</td><td>°C</td></tr>
    <tr><td>Load Temperature</td><td>64</td><td>°C</td></tr>
  </table>
  <table>
    <tr><td>Fan Noise</td><td>28 dBA</td></tr>
  </table>
</div>
<footer>footer junk</footer>
</body></html>`

func TestReviewContentPage(t *testing.T) {
	content, facts, specs, err := ReviewContentPage(reviewPageHTML, "Temperatures & Fan noise", "ASUS ROG STRIX RTX 4090 OC")
	require.NoError(t, err)

	assert.Equal(t, "Temperatures & Fan Noise", content.Title)
	assert.Contains(t, content.Body, "remarkably cool")
	assert.NotContains(t, content.Body, "site nav")
	assert.NotContains(t, content.Body, "footer junk")

	require.Len(t, facts, 3)
	assert.Equal(t, ReviewFact{
		DataType:    "Temperatures & Fan noise",
		Key:         "Idle Temperature",
		Value:       "32",
		Unit:        "°C",
		ProductName: "ASUS ROG STRIX RTX 4090 OC",
	}, facts[0])

	// The two-cell row has its unit split off the value.
	assert.Equal(t, "Fan Noise", facts[2].Key)
	assert.Equal(t, "28", facts[2].Value)
	assert.Equal(t, "dBA", facts[2].Unit)

	// Only the table under an h2 carries a category, so only it yields specs.
	require.Len(t, specs, 2)
	assert.Equal(t, SpecFact{Category: "Thermals", Name: "Idle Temperature", Value: "32 °C"}, specs[0])
}

func TestExtractVendor(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"NVIDIA GeForce RTX 4090", "NVIDIA"},
		{"asus ROG STRIX", "ASUS"},
		{"Acme X1 Turbo", "Acme"},
		{"", "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractVendor(tt.name), "name %q", tt.name)
	}
}
