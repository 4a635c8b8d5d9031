package scraper

import (
	"bytes"
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Inline scripts on the listing pages sometimes carry identifiers that never
// make it into anchors.
var (
	scriptIDPattern   = regexp.MustCompile(`(?i)instrumento[_-]?id["']?\s*[:=]\s*["']?(\d+)`)
	scriptPathPattern = regexp.MustCompile(`/instrumento/(\d+)`)
)

// staticStrategy parses the server-rendered listing pages directly. Last
// resort: it sees nothing the registry renders client side, but it needs no
// browser.
type staticStrategy struct {
	s *Scraper
}

func (st *staticStrategy) name() string { return "static_html" }

func (st *staticStrategy) attempt(ctx context.Context) ([]string, error) {
	pages := append(st.s.searchPages(), st.s.baseURL+"/")
	for _, page := range pages {
		res, err := st.s.fetch(ctx, page, 30*time.Second)
		if err != nil {
			st.s.logger.Debug("static page fetch failed", "page", page, "err", err)
			continue
		}
		if res.status != http.StatusOK {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.body))
		if err != nil {
			continue
		}
		set := newIDSet()
		harvestDocument(doc, set)
		if set.len() > 0 {
			return set.list(), nil
		}
	}
	return nil, nil
}

func harvestDocument(doc *goquery.Document, set *idSet) {
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if IsNoiseLink(sel.Text()) {
			return
		}
		href, _ := sel.Attr("href")
		set.add(idFromHref(href))
	})
	doc.Find("[data-id]").Each(func(_ int, sel *goquery.Selection) {
		if id, ok := sel.Attr("data-id"); ok {
			set.add(id)
		}
	})
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		text := sel.Text()
		for _, m := range scriptIDPattern.FindAllStringSubmatch(text, -1) {
			set.add(m[1])
		}
		for _, m := range scriptPathPattern.FindAllStringSubmatch(text, -1) {
			set.add(m[1])
		}
	})
}
