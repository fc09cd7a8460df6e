package scraper

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jacostaf/tcg-ygoripper-sub000/match"
	"github.com/jacostaf/tcg-ygoripper-sub000/pool"
)

// Storefront markup changes without notice, so every selector list below
// carries the known current and legacy class names.

const jsResultsCount = `() => {
	const countElements = document.querySelectorAll('.search-results__count, .search-count, [data-testid="search-count"]');
	for (const elem of countElements) {
		const text = elem.textContent || '';
		const m = text.match(/(\d+)\s+results?\s+for/i);
		if (m) return parseInt(m[1], 10);
	}
	const productCards = document.querySelectorAll('[data-testid="product-tile"], .product-card, .search-result__product');
	return productCards.length;
}`

const jsNoResults = `() => {
	if (document.querySelector('.no-results, [data-testid="no-results"]')) return true;
	const node = document.evaluate(
		"//text()[contains(., 'No results found') or contains(., '0 results')]",
		document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null
	).singleNodeValue;
	return node !== null;
}`

const jsProductLinkCount = `() => {
	return document.querySelectorAll(
		'a[href*="/product/"]:not([href*="/seller/"]):not([href*="/condition/"])'
	).length;
}`

const jsIsProductPage = `() => {
	return document.querySelector('.product-details, .product-title, h1[data-testid="product-name"]') !== null;
}`

const jsProductLinks = `() => {
	const seen = new Set();
	const links = [];
	const selectors = [
		'a[class*="product-card"]',
		'div.search-result__product a',
		'a[href*="/product/"]'
	];
	for (const selector of selectors) {
		document.querySelectorAll(selector).forEach(el => {
			if (el.href && el.href.includes('/product/') && !seen.has(el.href)) {
				seen.add(el.href);
				links.push({url: el.href, title: el.textContent.trim()});
			}
		});
	}
	return links;
}`

const jsExtractPrices = `() => {
	const extractPrice = (text) => {
		if (!text) return null;
		const m = text.match(/\$([\d,]+(?:\.\d{2})?)/);
		if (!m) return null;
		const price = parseFloat(m[1].replace(/,/g, ''));
		return (price >= 0.01 && price <= 10000) ? price : null;
	};
	const result = {tcg_price: null, tcg_market_price: null};

	const priceFromRows = (labelMatch) => {
		const rows = Array.from(document.querySelectorAll('tr')).filter(row => {
			const text = row.textContent?.toLowerCase() || '';
			return labelMatch(text) && text.includes('$');
		});
		for (const row of rows) {
			const cells = Array.from(row.querySelectorAll('td'));
			const labelIndex = cells.findIndex(cell =>
				labelMatch(cell.textContent?.toLowerCase() || ''));
			if (labelIndex < 0) continue;
			for (let i = labelIndex + 1; i < cells.length; i++) {
				const price = extractPrice(cells[i].textContent);
				if (price !== null) return price;
			}
		}
		return null;
	};

	result.tcg_market_price = priceFromRows(t => t.includes('market price'));
	result.tcg_price = priceFromRows(t =>
		t.includes('tcg low') || t.includes('low price') || t.includes('tcg direct low') ||
		(t.includes('low') && !t.includes('market')));

	if (result.tcg_market_price === null || result.tcg_price === null) {
		const visible = Array.from(document.querySelectorAll('*')).filter(el => {
			const style = window.getComputedStyle(el);
			return style.display !== 'none' && style.visibility !== 'hidden' &&
				el.offsetHeight > 0 && el.offsetWidth > 0 && el.textContent?.trim();
		});
		for (const el of visible) {
			const text = el.textContent?.toLowerCase() || '';
			if (result.tcg_market_price === null && text.includes('market price') && text.includes('$')) {
				result.tcg_market_price = extractPrice(el.textContent);
			}
			if (result.tcg_price === null && text.includes('tcg low') && text.includes('$')) {
				result.tcg_price = extractPrice(el.textContent);
			}
		}
	}
	return result;
}`

const priceSectionSelector = `section.price-points, div.price-guide-container, div[class*="price-point"]`

const resultsPollInterval = 500 * time.Millisecond

// waitForSearchResults polls the results page until listings render, an
// explicit no-results state appears, or maxWait elapses. Returns the number
// of listings found; zero means a genuine empty result set.
func waitForSearchResults(ctx context.Context, page pool.Page, maxWait time.Duration) (int, error) {
	deadline := time.Now().Add(maxWait)
	for {
		count, err := page.Eval(ctx, jsResultsCount)
		if err != nil {
			return 0, err
		}
		if n := count.Int(); n > 0 {
			return n, nil
		}

		empty, err := page.Eval(ctx, jsNoResults)
		if err != nil {
			return 0, err
		}
		if empty.Bool() {
			return 0, nil
		}

		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(resultsPollInterval):
		}
	}

	// The count banner may never render even when listings did; fall back
	// to counting product anchors directly.
	final, err := page.Eval(ctx, jsProductLinkCount)
	if err != nil {
		return 0, err
	}
	return final.Int(), nil
}

func isProductPage(ctx context.Context, page pool.Page) bool {
	res, err := page.Eval(ctx, jsIsProductPage)
	if err != nil {
		return false
	}
	return res.Bool()
}

// extractCandidates pulls every product link off a search-results page and
// parses its title into scorer inputs.
func extractCandidates(ctx context.Context, page pool.Page) ([]match.Candidate, error) {
	links, err := page.Eval(ctx, jsProductLinks)
	if err != nil {
		return nil, err
	}
	var candidates []match.Candidate
	for _, link := range links.Arr() {
		c := parseCandidate(link.Get("url").Str(), link.Get("title").Str())
		if c.URL != "" {
			candidates = append(candidates, c)
		}
	}
	return candidates, nil
}

var (
	titleCardNumberRe = regexp.MustCompile(`\b([A-Za-z0-9]{2,4}-[A-Za-z]{0,2}\d{2,3})\b`)
	titleRarityRe     = regexp.MustCompile(`\[([^\]]+)\]`)
)

// parseCandidate splits a listing title like
// "Black Metal Dragon [Quarter Century Secret Rare] RA04-EN016"
// into the fields the scorer matches on. Absent fields stay empty.
func parseCandidate(url, title string) match.Candidate {
	c := match.Candidate{URL: url, Title: title}

	if m := titleCardNumberRe.FindStringSubmatch(title); m != nil {
		c.CardNumber = strings.ToUpper(m[1])
	}
	if m := titleRarityRe.FindStringSubmatch(title); m != nil {
		c.Rarity = strings.TrimSpace(m[1])
	}

	name := title
	if i := strings.Index(name, "["); i >= 0 {
		name = name[:i]
	}
	if i := strings.Index(name, " - "); i >= 0 {
		name = name[:i]
	}
	if c.CardNumber != "" {
		if i := strings.Index(strings.ToUpper(name), c.CardNumber); i >= 0 {
			name = name[:i]
		}
	}
	c.CardName = strings.TrimSpace(name)
	return c
}

// waitForPriceData blocks until the price section renders, capturing a
// diagnostic screenshot when it never does.
func waitForPriceData(ctx context.Context, page pool.Page, timeout time.Duration) {
	if err := page.WaitVisible(ctx, priceSectionSelector, timeout); err != nil {
		slog.Warn("price section never rendered", "url", page.URL(), "error", err)
		if shot, serr := page.Screenshot(); serr == nil {
			slog.Info("captured diagnostic screenshot", "bytes", len(shot))
		}
		return
	}
	// Let the price table finish its client-side hydration.
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
	}
}

// extractPrices evaluates the price-extraction script on a product page.
// Either price may come back nil; that is an extraction outcome, not an
// error.
func extractPrices(ctx context.Context, page pool.Page) (tcgPrice, marketPrice *float64, err error) {
	res, err := page.Eval(ctx, jsExtractPrices)
	if err != nil {
		return nil, nil, err
	}
	if v := res.Get("tcg_price"); v.Val() != nil {
		p := v.Num()
		tcgPrice = &p
	}
	if v := res.Get("tcg_market_price"); v.Val() != nil {
		p := v.Num()
		marketPrice = &p
	}
	return tcgPrice, marketPrice, nil
}
