package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"mallcrawl/internal/crawler"
)

// DetailParser extracts a CentreRecord from a centre detail page.
// Structured attributes come from known markup (data attributes, badge
// and label spans); physical specifications fall back to text patterns
// because the site renders them as free-form copy.
type DetailParser struct{}

// NewDetailParser creates a detail-page extractor.
func NewDetailParser() *DetailParser {
	return &DetailParser{}
}

// Text patterns for specification copy, e.g. "GLA: 120,000 sqm".
var (
	glaTotalRe  = regexp.MustCompile(`(?i)(?:gla|gross leasable area|total area)[:\s]*([\d,]+)\s*(?:sqm|sq\.?\s?m)`)
	glaRetailRe = regexp.MustCompile(`(?i)(?:retail|lettable)(?:\s+gla|\s+area)[:\s]*([\d,]+)\s*(?:sqm|sq\.?\s?m)`)
	yearRe      = regexp.MustCompile(`(?i)(?:year\s+(?:built|opened|established)|opened(?:\s+in)?|established(?:\s+in)?)[:\s]*(\d{4})`)
	storesRe    = regexp.MustCompile(`(?i)(\d+)\s*(?:stores?|shops?|retailers?|tenants?)\b`)
	parkingRe   = regexp.MustCompile(`(?i)(\d+)\s*(?:parking|car)\s*(?:spaces?|parks?)`)
)

// ExtractDetail parses the page into a record. It fails only when the
// page does not look like a centre detail page at all (no name found),
// which signals site-structure drift rather than a bad record.
func (p *DetailParser) ExtractDetail(pageURL string, body []byte) (*crawler.CentreRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing detail page: %w", err)
	}

	rec := &crawler.CentreRecord{
		SourceURL: pageURL,
		ScrapedAt: time.Now().UTC(),
	}

	rec.Name = strings.TrimSpace(doc.Find("h1").First().Text())
	if rec.Name == "" {
		rec.Name = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if rec.Name == "" {
		return nil, fmt.Errorf("no centre name found on %s", pageURL)
	}

	rec.PropertyType = strings.TrimSpace(doc.Find("span.pull-left").First().Text())
	rec.Status = strings.TrimSpace(doc.Find("span.badge").First().Text())

	p.extractCoordinates(doc, rec)
	p.extractContact(doc, rec)
	p.extractSpecs(doc, rec)
	p.extractShops(doc, rec)
	p.extractImages(doc, rec)

	return rec, nil
}

// extractCoordinates reads the map marker's data attributes.
func (p *DetailParser) extractCoordinates(doc *goquery.Document, rec *crawler.CentreRecord) {
	marker := doc.Find("span.postItem, [data-lat]").First()
	latStr, ok1 := marker.Attr("data-lat")
	lngStr, ok2 := marker.Attr("data-lng")
	if !ok1 || !ok2 {
		return
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err1 != nil || err2 != nil {
		return
	}
	rec.Latitude = &lat
	rec.Longitude = &lng
}

func (p *DetailParser) extractContact(doc *goquery.Document, rec *crawler.CentreRecord) {
	rec.Address = strings.TrimSpace(doc.Find("address").First().Text())

	if href, ok := doc.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
		rec.Phone = strings.TrimPrefix(href, "tel:")
	}
	if href, ok := doc.Find(`a[href^="mailto:"]`).First().Attr("href"); ok {
		rec.Email = strings.TrimPrefix(href, "mailto:")
	}
	if href, ok := doc.Find(`a.website, a[rel="external"]`).First().Attr("href"); ok {
		rec.Website = href
	}

	doc.Find("[itemprop]").Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("itemprop")
		val := strings.TrimSpace(s.Text())
		if val == "" {
			return
		}
		switch prop {
		case "addressCountry":
			rec.Country = val
		case "addressLocality":
			rec.City = val
		case "streetAddress":
			if rec.Address == "" {
				rec.Address = val
			}
		}
	})
}

// extractSpecs scans the specification copy for physical attributes.
func (p *DetailParser) extractSpecs(doc *goquery.Document, rec *crawler.CentreRecord) {
	text := doc.Find("body").Text()

	if v, ok := matchInt(glaTotalRe, text); ok {
		rec.GLATotalSqm = &v
	}
	if v, ok := matchInt(glaRetailRe, text); ok {
		rec.GLARetailSqm = &v
	}
	if v, ok := matchInt(yearRe, text); ok {
		rec.OpeningYear = &v
	}
	if v, ok := matchInt(storesRe, text); ok {
		rec.StoreCount = &v
	}
	if v, ok := matchInt(parkingRe, text); ok {
		rec.ParkingSpaces = &v
	}
}

func (p *DetailParser) extractShops(doc *goquery.Document, rec *crawler.CentreRecord) {
	doc.Find(".tenants li, .shops li, ul.store-list li").Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Find("a").First().Text())
		if name == "" {
			name = strings.TrimSpace(s.Contents().First().Text())
		}
		if name == "" {
			return
		}
		shop := crawler.Shop{Name: name}
		if cat := strings.TrimSpace(s.Find(".category, small").First().Text()); cat != "" {
			shop.Category = cat
		}
		rec.Shops = append(rec.Shops, shop)
	})
}

func (p *DetailParser) extractImages(doc *goquery.Document, rec *crawler.CentreRecord) {
	seen := make(map[string]bool)
	doc.Find(".gallery img, .carousel img, img.property-photo").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" || seen[src] {
			return
		}
		seen[src] = true
		rec.Images = append(rec.Images, src)
	})
}

func matchInt(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return v, true
}
