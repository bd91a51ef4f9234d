package crawler

import "time"

// CrawlTarget is a detail-page URL queued for processing.
type CrawlTarget struct {
	URL        string // Detail page URL
	PageIndex  int    // List page the URL was discovered on
	RetryCount int    // Attempts consumed so far
}

// FetchResult holds the outcome of a successful fetch.
type FetchResult struct {
	StatusCode int           // HTTP status code (always 2xx here)
	Body       []byte        // Response body, never empty
	FinalURL   string        // URL after following redirects
	Latency    time.Duration // Total request duration
}

// Shop is one tenant listed on a centre's detail page.
type Shop struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// CentreRecord is one directory entry extracted from a detail page.
// Optional fields use pointers so "absent" and "zero" stay distinct
// through validation and the output sinks.
type CentreRecord struct {
	Name      string `json:"name"`
	SourceURL string `json:"source_url"`

	PropertyType string `json:"property_type,omitempty"`
	Status       string `json:"status,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`

	GLATotalSqm   *int `json:"gla_total_sqm,omitempty"`
	GLARetailSqm  *int `json:"gla_retail_sqm,omitempty"`
	StoreCount    *int `json:"store_count,omitempty"`
	ParkingSpaces *int `json:"parking_spaces,omitempty"`
	OpeningYear   *int `json:"opening_year,omitempty"`

	Shops  []Shop   `json:"shops,omitempty"`
	Images []string `json:"images,omitempty"`

	ScrapedAt time.Time `json:"scraped_at"`
}

// ValidationResult is the outcome of schema and business-rule checks
// for one record. Immutable once computed.
type ValidationResult struct {
	IsValid      bool     `json:"is_valid"`
	Errors       []string `json:"errors,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	QualityScore float64  `json:"quality_score"`
}

// Outcome is the terminal result for one crawl target. Exactly one of
// Record or Err is set; a record may still be rejected by validation.
type Outcome struct {
	Target     CrawlTarget
	Record     *CentreRecord
	Validation ValidationResult
	Attempts   int
	Err        *CrawlError
}

// RunReport aggregates per-target outcomes for the final summary.
type RunReport struct {
	Discovered int
	Skipped    int // Filtered out by the resume checkpoint
	Succeeded  int
	Rejected   int // Extracted but failed schema validation
	Failed     map[ErrorKind]int
	FailedURLs []string
	StartTime  time.Time
	Elapsed    time.Duration
}

// Throughput returns processed targets per minute.
func (r *RunReport) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Succeeded+r.Rejected) / r.Elapsed.Minutes()
}
