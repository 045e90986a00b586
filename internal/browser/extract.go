package browser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// contentSelectors are tried in order when readability finds nothing
// substantial. These cover the main-content regions most sites use.
var contentSelectors = []string{
	"main",
	"article",
	"[role=main]",
	"#content",
	".content",
	"#main",
}

// ExtractContent pulls the primary text out of rendered HTML. It tries
// readability first, then each content selector in order, returning the
// first result whose trimmed length exceeds minLen, and finally the whole
// body text when nothing qualifies.
func ExtractContent(html string, pageURL *url.URL, minLen int) string {
	if article, err := readability.FromReader(strings.NewReader(html), pageURL); err == nil {
		if text := strings.TrimSpace(article.TextContent); len(text) > minLen {
			return text
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	for _, sel := range contentSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if len(text) > minLen {
			return text
		}
	}

	return strings.TrimSpace(doc.Find("body").Text())
}

// ExtractLinks returns the anchor targets in the HTML, resolved to absolute
// form against pageURL. Non-http(s) targets (mailto:, javascript:, tel:)
// are dropped, as are unparsable hrefs.
func ExtractLinks(html string, pageURL *url.URL) ([]*url.URL, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var links []*url.URL
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := pageURL.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		links = append(links, abs)
	})
	return links, nil
}
