package scraper

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// browserSelectors are tried in order on each rendered page. The first
// selector that yields identifiers wins.
var browserSelectors = []string{
	`a[href*='/instrumento/']`,
	`a[href*='instrumento']`,
	`.instrumento-link`,
	`.convencao-link`,
	`[data-instrumento-id]`,
}

// browserStrategy drives a headless browser so client-rendered listings can be
// harvested. Disabled by default since it needs a Chrome binary on the host.
type browserStrategy struct {
	s *Scraper
}

func (b *browserStrategy) name() string { return "headless_browser" }

func (b *browserStrategy) attempt(ctx context.Context) ([]string, error) {
	if !b.s.browserEnabled {
		return nil, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(b.s.userAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	set := newIDSet()
	for _, page := range b.s.searchPages() {
		if err := b.harvestPage(browserCtx, page, set); err != nil {
			b.s.logger.Debug("browser page failed", "page", page, "err", err)
		}
		if set.len() > 0 {
			break
		}
	}
	return set.list(), nil
}

func (b *browserStrategy) harvestPage(browserCtx context.Context, page string, set *idSet) error {
	pageCtx, cancel := context.WithTimeout(browserCtx, b.s.browserTimeout)
	defer cancel()

	if err := chromedp.Run(pageCtx,
		chromedp.Navigate(page),
		chromedp.Sleep(2*b.s.delay),
	); err != nil {
		return err
	}

	for _, sel := range browserSelectors {
		var values []string
		script := fmt.Sprintf(
			`Array.from(document.querySelectorAll(%q)).map(el => el.getAttribute('href') || el.getAttribute('data-instrumento-id') || '').filter(v => v !== '')`,
			sel,
		)
		if err := chromedp.Run(pageCtx, chromedp.Evaluate(script, &values)); err != nil {
			continue
		}
		for _, v := range values {
			if id := idFromHref(v); id != "" {
				set.add(id)
			} else if digitsOnly.MatchString(v) {
				set.add(v)
			}
		}
		if set.len() > 0 {
			return nil
		}
	}
	return nil
}
