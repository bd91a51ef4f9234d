package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mallcrawl/internal/crawler"
)

// csvHeader is the flattened schema. Nested shops and images collapse to
// counts plus a delimited name list; validation findings join with ';'.
var csvHeader = []string{
	"name", "source_url", "property_type", "status",
	"latitude", "longitude", "country", "city", "address",
	"phone", "email", "website",
	"gla_total_sqm", "gla_retail_sqm", "store_count", "parking_spaces", "opening_year",
	"shop_count", "shop_names", "image_count",
	"is_valid", "quality_score", "errors", "warnings",
	"scraped_at",
}

// CSVSink appends one flattened row per record. Reopening an existing
// file keeps its rows; the checkpoint skips completed URLs, so prior
// output must survive a resumed run.
type CSVSink struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink opens the output file, writing the header row only when
// the file is fresh.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV output: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat CSV output: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write CSV header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write CSV header: %w", err)
		}
	}
	return &CSVSink{file: f, writer: w}, nil
}

// Append writes one row and flushes it to disk.
func (s *CSVSink) Append(rec *crawler.CentreRecord, vr crawler.ValidationResult) error {
	shopNames := make([]string, len(rec.Shops))
	for i, shop := range rec.Shops {
		shopNames[i] = shop.Name
	}

	row := []string{
		rec.Name, rec.SourceURL, rec.PropertyType, rec.Status,
		floatField(rec.Latitude), floatField(rec.Longitude),
		rec.Country, rec.City, rec.Address,
		rec.Phone, rec.Email, rec.Website,
		intField(rec.GLATotalSqm), intField(rec.GLARetailSqm),
		intField(rec.StoreCount), intField(rec.ParkingSpaces), intField(rec.OpeningYear),
		strconv.Itoa(len(rec.Shops)), strings.Join(shopNames, "|"), strconv.Itoa(len(rec.Images)),
		strconv.FormatBool(vr.IsValid), strconv.FormatFloat(vr.QualityScore, 'f', 3, 64),
		strings.Join(vr.Errors, ";"), strings.Join(vr.Warnings, ";"),
		rec.ScrapedAt.Format(time.RFC3339),
	}

	if err := s.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	s.writer.Flush()
	return s.writer.Error()
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return s.file.Close()
}

func intField(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
