package serp

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
)

// Extract returns the normalized result URLs of one SERP in document order.
//
// Containers are matched with selector. The first anchor carrying an href in
// each container is normalized; containers without a usable URL (ads, rich
// snippets) are dropped, so positions in the returned slice are positions
// among usable results only.
func Extract(html io.Reader, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(html)
	if err != nil {
		return nil, fmt.Errorf("parse serp: %w", err)
	}

	urls := []string{}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Find("a[href]").First().Attr("href")
		if !ok {
			return
		}
		if u, ok := Normalize(href); ok {
			urls = append(urls, u)
		}
	})
	return urls, nil
}
