package crawler

import (
	"bytes"
	"io"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/nao1215/pagewalk/internal/scope"
)

// Extractor pulls anchor links out of HTML pages.
type Extractor struct {
	scope *scope.Scope
}

// NewExtractor creates an Extractor that filters links through s.
func NewExtractor(s *scope.Scope) *Extractor {
	return &Extractor{scope: s}
}

// Hrefs returns the raw href attribute of every <a> element in document
// order. Anchors without an href are skipped. The body is decoded to UTF-8
// using the charset from contentType or the document's meta tags.
// A body that cannot be parsed yields no hrefs.
func (e *Extractor) Hrefs(body []byte, contentType string) []string {
	var r io.Reader = bytes.NewReader(body)
	if decoded, err := charset.NewReader(r, contentType); err == nil {
		r = decoded
	} else {
		r = bytes.NewReader(body)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil
	}

	var hrefs []string
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs
}

// Links returns the in-scope, normalized links of a page in document order,
// each at most once.
func (e *Extractor) Links(body []byte, contentType string) []string {
	hrefs := e.Hrefs(body, contentType)
	seen := make(map[string]struct{}, len(hrefs))
	links := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		u, ok := e.scope.Accept(href)
		if !ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		links = append(links, u)
	}
	return links
}
