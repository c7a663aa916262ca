// Package parse extracts structured catalog records from source-site markup.
// It is the normalizer behind the crawl pipeline: the orchestration layers
// hand it page HTML plus context and get typed records back. The CSS
// selectors in here encode site-specific business rules and are expected to
// need maintenance when the source site changes.
package parse

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ExtractionError reports that a page yielded nothing usable. The unit of
// work is skipped and logged, never fatal.
type ExtractionError struct {
	Page    string
	Message string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction error on %s page: %s", e.Page, e.Message)
}

// Listing is one row of the catalog listing page.
type Listing struct {
	Name string
	URL  string
}

// ProductDetail is the header block of a product detail page.
type ProductDetail struct {
	Name        string
	Vendor      string
	Description string
	ImageURL    string
}

// SpecFact is one named attribute value grouped under a category.
type SpecFact struct {
	Category string
	Name     string
	Value    string
}

// BoardEntry is one physical card variant listed on a product detail page.
type BoardEntry struct {
	Name      string
	Vendor    string
	URL       string
	ReviewURL string
}

// ReviewOption is one entry of the sub-page drop-down on a review page.
type ReviewOption struct {
	Text  string
	Value string
}

// ReviewContent is the readable part of a review sub-page.
type ReviewContent struct {
	Title string
	Body  string
}

// ReviewFact is a structured measurement extracted from a review page.
type ReviewFact struct {
	DataType    string
	Key         string
	Value       string
	Unit        string
	ProductName string
}

// knownVendors are matched against the first token of a product name.
var knownVendors = []string{
	"NVIDIA", "AMD", "Intel", "ASUS", "MSI", "GIGABYTE", "EVGA", "Sapphire",
	"PowerColor", "ZOTAC", "Palit", "Gainward", "XFX", "PNY", "Colorful",
	"Inno3D", "ASRock", "Matrox", "3dfx",
}

// ExtractVendor derives a vendor from a display name. Falls back to the
// first token, then to "Unknown".
func ExtractVendor(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Unknown"
	}
	first := strings.Fields(name)[0]
	for _, v := range knownVendors {
		if strings.EqualFold(first, v) {
			return v
		}
	}
	return first
}

// ProductList parses the catalog listing page into listing rows.
func ProductList(html string) ([]Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	rows := doc.Find("table.processors-table tbody tr")
	if rows.Length() == 0 {
		rows = doc.Find("table tbody tr, table tr")
	}

	var list []Listing
	seen := make(map[string]struct{})
	rows.Each(func(_ int, row *goquery.Selection) {
		link := row.Find("td a").First()
		href, ok := link.Attr("href")
		name := strings.TrimSpace(link.Text())
		if !ok || name == "" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		list = append(list, Listing{Name: name, URL: href})
	})

	if len(list) == 0 {
		return nil, &ExtractionError{Page: "listing", Message: "no product rows found"}
	}
	return list, nil
}

// ProductDetailPage parses a product detail page into header attributes and
// its full spec table.
func ProductDetailPage(html, pageURL string) (*ProductDetail, []SpecFact, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	name := strings.TrimSpace(doc.Find("h1.gpudb-name").First().Text())
	if name == "" {
		name = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if name == "" {
		return nil, nil, &ExtractionError{Page: "product detail", Message: "no product name on " + pageURL}
	}

	detail := &ProductDetail{
		Name:        name,
		Vendor:      ExtractVendor(name),
		Description: strings.TrimSpace(doc.Find(".desc p").First().Text()),
	}
	if src, ok := doc.Find("img.gpudb-large-image").First().Attr("src"); ok {
		detail.ImageURL = src
	} else if content, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		detail.ImageURL = content
	}

	var specs []SpecFact
	doc.Find("section.details").Each(func(_ int, section *goquery.Selection) {
		category := strings.TrimSpace(section.Find("h2").First().Text())
		if category == "" {
			return
		}
		dts := section.Find("dl dt")
		dds := section.Find("dl dd")
		dts.Each(func(i int, dt *goquery.Selection) {
			if i >= dds.Length() {
				return
			}
			specName := strings.TrimSpace(dt.Text())
			specValue := strings.TrimSpace(dds.Eq(i).Text())
			if specName == "" || specValue == "" {
				return
			}
			specs = append(specs, SpecFact{Category: category, Name: specName, Value: specValue})
		})
	})

	return detail, specs, nil
}

// BoardsSection parses the board-variant table of a product detail page.
// Returns nil when the page has no boards section.
func BoardsSection(html string) []BoardEntry {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	rows := doc.Find("#boards table tbody tr")
	if rows.Length() == 0 {
		rows = doc.Find("section#boards tr, div#boards tr")
	}

	var boards []BoardEntry
	rows.Each(func(_ int, row *goquery.Selection) {
		nameLink := row.Find("td a").First()
		name := strings.TrimSpace(nameLink.Text())
		if name == "" {
			return
		}
		entry := BoardEntry{Name: name, Vendor: ExtractVendor(name)}
		if href, ok := nameLink.Attr("href"); ok {
			entry.URL = href
		}
		row.Find("a").Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			if strings.Contains(href, "/review") || strings.EqualFold(strings.TrimSpace(a.Text()), "review") {
				entry.ReviewURL = href
			}
		})
		boards = append(boards, entry)
	})
	return boards
}

// ReviewOptions parses the sub-page drop-down of a review main page.
func ReviewOptions(html string) []ReviewOption {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	sel := doc.Find("select.review-nav option")
	if sel.Length() == 0 {
		sel = doc.Find("select option")
	}

	var options []ReviewOption
	sel.Each(func(_ int, opt *goquery.Selection) {
		value, ok := opt.Attr("value")
		text := strings.TrimSpace(opt.Text())
		if !ok || value == "" || value == "#" || text == "" {
			return
		}
		options = append(options, ReviewOption{Text: text, Value: value})
	})
	return options
}

var (
	postedRe  = regexp.MustCompile(`(?i)Posted:?\s+([A-Za-z]{3,9}\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4})`)
	ordinalRe = regexp.MustCompile(`(\d)(st|nd|rd|th)`)
)

// ReviewPostedDate extracts the publish date shown on a review page. ok is
// false when no date is present.
func ReviewPostedDate(html string) (time.Time, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return time.Time{}, false
	}

	if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		for _, layout := range []string{"2006-01-02", time.RFC3339} {
			if t, perr := time.Parse(layout, dt); perr == nil {
				return t, true
			}
		}
	}

	m := postedRe.FindStringSubmatch(doc.Text())
	if m == nil {
		return time.Time{}, false
	}
	raw := ordinalRe.ReplaceAllString(m[1], "$1")
	for _, layout := range []string{"Jan 2, 2006", "Jan 2 2006", "January 2, 2006", "January 2 2006"} {
		if t, perr := time.Parse(layout, raw); perr == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// noiseSelector strips chrome and script noise before body extraction.
const noiseSelector = "nav, footer, header, script, style, noscript, .ad, .ads, .sidebar, .comments"

var valueUnitRe = regexp.MustCompile(`^([-+]?[\d.,]+)\s*([A-Za-z%°/]+)$`)

// ReviewContentPage parses a review sub-page into its readable content,
// structured measurements, and the spec facts it implies. reviewType tags
// the extracted facts; productName is attached to each measurement.
func ReviewContentPage(html, reviewType, productName string) (*ReviewContent, []ReviewFact, []SpecFact, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())

	doc.Find(noiseSelector).Remove()
	content := doc.Find(".review-content, .text-content, main, article").First()
	if content.Length() == 0 {
		content = doc.Find("body")
	}
	body := cleanWhitespace(content.Text())
	if title == "" && body == "" {
		return nil, nil, nil, &ExtractionError{Page: "review", Message: "no readable content"}
	}

	var facts []ReviewFact
	var specs []SpecFact
	content.Find("table").Each(func(_ int, table *goquery.Selection) {
		category := strings.TrimSpace(table.Find("caption").First().Text())
		if category == "" {
			category = strings.TrimSpace(table.PrevFiltered("h2").Text())
		}
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() < 2 {
				return
			}
			key := strings.TrimSpace(cells.Eq(0).Text())
			value := strings.TrimSpace(cells.Eq(1).Text())
			if key == "" || value == "" {
				return
			}
			unit := ""
			if cells.Length() >= 3 {
				unit = strings.TrimSpace(cells.Eq(2).Text())
			} else if m := valueUnitRe.FindStringSubmatch(value); m != nil {
				value, unit = m[1], m[2]
			}
			facts = append(facts, ReviewFact{
				DataType:    reviewType,
				Key:         key,
				Value:       value,
				Unit:        unit,
				ProductName: productName,
			})
			if category != "" {
				specValue := value
				if unit != "" {
					specValue = value + " " + unit
				}
				specs = append(specs, SpecFact{Category: category, Name: key, Value: specValue})
			}
		})
	})

	return &ReviewContent{Title: title, Body: body}, facts, specs, nil
}

func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
