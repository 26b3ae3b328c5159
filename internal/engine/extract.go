// internal/engine/extract.go
package engine

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

// FieldStat reports how many elements one extractor matched.
type FieldStat struct {
	FieldName string
	Matches   int
	// Err is set when the selector does not compile; the field then yields nothing.
	Err error
}

// Extract evaluates every extractor against the document and zips the results
// into records: record i holds the i-th match of each extractor. A field with
// fewer matches than the longest one is absent (nil) in the trailing records.
func Extract(html, pageURL string, extractors []schemas.Extractor) ([]schemas.ResultItem, []FieldStat, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}
	base := baseURL(doc, pageURL)

	columns := make([][]*string, len(extractors))
	stats := make([]FieldStat, len(extractors))
	longest := 0

	for i, ex := range extractors {
		stats[i].FieldName = ex.FieldName
		matcher, err := cascadia.Compile(strings.TrimSpace(ex.Selector))
		if err != nil {
			stats[i].Err = fmt.Errorf("invalid selector %q: %w", ex.Selector, err)
			continue
		}
		doc.FindMatcher(matcher).Each(func(_ int, sel *goquery.Selection) {
			columns[i] = append(columns[i], extractValue(sel, ex, base))
		})
		stats[i].Matches = len(columns[i])
		if len(columns[i]) > longest {
			longest = len(columns[i])
		}
	}

	items := make([]schemas.ResultItem, longest)
	for r := 0; r < longest; r++ {
		item := make(schemas.ResultItem, len(extractors))
		for i, ex := range extractors {
			item[i].Name = ex.FieldName
			if r < len(columns[i]) {
				item[i].Value = columns[i][r]
			}
		}
		items[r] = item
	}
	return items, stats, nil
}

// extractValue applies the extractor's mode to one matched element. It
// returns nil when the element has no such value.
func extractValue(sel *goquery.Selection, ex schemas.Extractor, base *url.URL) *string {
	switch ex.Mode {
	case schemas.ModeAttribute:
		val, ok := sel.Attr(strings.TrimSpace(ex.AttributeName))
		if !ok {
			return nil
		}
		val = strings.TrimSpace(val)
		return &val

	case schemas.ModeChildLinkURL:
		link := childLink(sel)
		if link == nil {
			return nil
		}
		href, _ := link.Attr("href")
		resolved := resolve(base, strings.TrimSpace(href))
		return &resolved

	case schemas.ModeChildLinkText:
		link := childLink(sel)
		if link == nil {
			return nil
		}
		text := normalizeText(link.Text())
		return &text

	default:
		text := normalizeText(sel.Text())
		return &text
	}
}

// childLink returns the element itself when it is a link, otherwise its
// first descendant link.
func childLink(sel *goquery.Selection) *goquery.Selection {
	if goquery.NodeName(sel) == "a" {
		if _, ok := sel.Attr("href"); ok {
			return sel
		}
	}
	link := sel.Find("a[href]").First()
	if link.Length() == 0 {
		return nil
	}
	return link
}

// baseURL honors a <base href> and falls back to the page address.
func baseURL(doc *goquery.Document, pageURL string) *url.URL {
	page, err := url.Parse(pageURL)
	if err != nil {
		page = nil
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := url.Parse(strings.TrimSpace(href)); err == nil {
			if page != nil {
				return page.ResolveReference(b)
			}
			return b
		}
	}
	return page
}

func resolve(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
