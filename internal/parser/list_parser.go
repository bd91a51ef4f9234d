// Package parser turns fetched directory HTML into structured data:
// detail-page links from list pages and centre records from detail pages.
package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// ListParser extracts detail-page links from a directory list page.
// A link qualifies when its resolved path matches the detail pattern.
type ListParser struct {
	detailPattern *regexp.Regexp
	allowedHosts  map[string]bool
}

// NewListParser compiles the detail-link pattern. hosts restricts the
// links to the directory's own host(s); list pages also link out to
// tenant and social sites which are never crawl targets.
func NewListParser(detailPattern string, hosts ...string) (*ListParser, error) {
	re, err := regexp.Compile(detailPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid detail pattern %q: %w", detailPattern, err)
	}
	allowed := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		allowed[h] = true
	}
	return &ListParser{detailPattern: re, allowedHosts: allowed}, nil
}

// ExtractDetailLinks parses the page and returns the absolute detail
// URLs in document order, deduplicated within the page.
func (p *ListParser) ExtractDetailLinks(pageURL string, body []byte) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var links []string
	seen := make(map[string]bool)
	p.traverse(doc, base, seen, &links)
	return links, nil
}

func (p *ListParser) traverse(n *html.Node, base *url.URL, seen map[string]bool, links *[]string) {
	if n.Type == html.ElementNode && n.Data == "a" {
		if link, ok := p.detailLink(n, base); ok && !seen[link] {
			seen[link] = true
			*links = append(*links, link)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.traverse(c, base, seen, links)
	}
}

// detailLink resolves an anchor and reports whether it points at a
// detail page on an allowed host.
func (p *ListParser) detailLink(n *html.Node, base *url.URL) (string, bool) {
	var href string
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = attr.Val
			break
		}
	}
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
		return "", false
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if len(p.allowedHosts) > 0 && !p.allowedHosts[resolved.Host] {
		return "", false
	}
	// Pagination links share the list path; only bare detail paths count.
	if resolved.Query().Get("page") != "" {
		return "", false
	}
	if !p.detailPattern.MatchString(resolved.Path) {
		return "", false
	}

	resolved.Fragment = ""
	return resolved.String(), true
}
