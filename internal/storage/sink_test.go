package storage

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mallcrawl/internal/crawler"
)

func sampleRecord(name, url string) *crawler.CentreRecord {
	lat, lng := 25.1972, 55.2744
	gla := 350000
	stores := 1200
	return &crawler.CentreRecord{
		Name:         name,
		SourceURL:    url,
		PropertyType: "super_regional_centre",
		Status:       "existing",
		Latitude:     &lat,
		Longitude:    &lng,
		Country:      "United Arab Emirates",
		City:         "Dubai",
		GLATotalSqm:  &gla,
		StoreCount:   &stores,
		Shops: []crawler.Shop{
			{Name: "Carrefour", Category: "Hypermarket"},
			{Name: "Zara", Category: "Fashion"},
		},
		Images:    []string{"/img/1.jpg"},
		ScrapedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func validResult() crawler.ValidationResult {
	return crawler.ValidationResult{IsValid: true, QualityScore: 0.95}
}

func TestJSONSinkProducesValidArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "centres.json")
	sink, err := NewJSONSink(path)
	if err != nil {
		t.Fatalf("NewJSONSink failed: %v", err)
	}

	if err := sink.Append(sampleRecord("Alpha Mall", "https://dir.test/c/alpha"), validResult()); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	rejected := crawler.ValidationResult{IsValid: false, Errors: []string{"name is required"}, QualityScore: 0.3}
	if err := sink.Append(sampleRecord("Beta Plaza", "https://dir.test/c/beta"), rejected); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	var entries []struct {
		Centre     *crawler.CentreRecord    `json:"centre"`
		Validation crawler.ValidationResult `json:"validation"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("Output is not a valid JSON array: %v\n%s", err, data)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Centre.Name != "Alpha Mall" || !entries[0].Validation.IsValid {
		t.Errorf("Unexpected first entry: %+v", entries[0])
	}
	if entries[1].Validation.IsValid || len(entries[1].Validation.Errors) != 1 {
		t.Errorf("Rejected entry should carry its validation: %+v", entries[1].Validation)
	}
}

func TestJSONSinkEmptyRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "centres.json")
	sink, err := NewJSONSink(path)
	if err != nil {
		t.Fatalf("NewJSONSink failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("Empty run should still produce a valid array: %v\n%s", err, data)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty array, got %d entries", len(entries))
	}
}

func TestJSONSinkResumePreservesPriorRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "centres.json")

	sink, err := NewJSONSink(path)
	if err != nil {
		t.Fatalf("NewJSONSink failed: %v", err)
	}
	if err := sink.Append(sampleRecord("Alpha Mall", "https://dir.test/c/alpha"), validResult()); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// A resumed run reopens the same file; the checkpoint skips the
	// completed URL, so the prior record must survive.
	sink2, err := NewJSONSink(path)
	if err != nil {
		t.Fatalf("Reopening sink failed: %v", err)
	}
	if err := sink2.Append(sampleRecord("Beta Plaza", "https://dir.test/c/beta"), validResult()); err != nil {
		t.Fatalf("Append after reopen failed: %v", err)
	}
	if err := sink2.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var entries []struct {
		Centre *crawler.CentreRecord `json:"centre"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("Resumed output is not a valid JSON array: %v\n%s", err, data)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected both runs' records, got %d entries", len(entries))
	}
	if entries[0].Centre.Name != "Alpha Mall" || entries[1].Centre.Name != "Beta Plaza" {
		t.Errorf("Unexpected entries: %q, %q", entries[0].Centre.Name, entries[1].Centre.Name)
	}
}

func TestJSONSinkResumeAfterEmptyRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "centres.json")

	sink, err := NewJSONSink(path)
	if err != nil {
		t.Fatalf("NewJSONSink failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	sink2, err := NewJSONSink(path)
	if err != nil {
		t.Fatalf("Reopening sink failed: %v", err)
	}
	if err := sink2.Append(sampleRecord("Alpha Mall", "https://dir.test/c/alpha"), validResult()); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := sink2.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("Output is not a valid JSON array: %v\n%s", err, data)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 entry after empty first run, got %d", len(entries))
	}
}

func TestCSVSinkResumePreservesPriorRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "centres.csv")

	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink failed: %v", err)
	}
	if err := sink.Append(sampleRecord("Alpha Mall", "https://dir.test/c/alpha"), validResult()); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	sink2, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("Reopening sink failed: %v", err)
	}
	if err := sink2.Append(sampleRecord("Beta Plaza", "https://dir.test/c/beta"), validResult()); err != nil {
		t.Fatalf("Append after reopen failed: %v", err)
	}
	if err := sink2.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("CSV parse failed: %v", err)
	}
	// One header plus one row per run; the header is not repeated.
	if len(rows) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d", len(rows))
	}
	if rows[1][0] != "Alpha Mall" || rows[2][0] != "Beta Plaza" {
		t.Errorf("Unexpected rows: %q, %q", rows[1][0], rows[2][0])
	}
}

func TestCSVSinkRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "centres.csv")
	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink failed: %v", err)
	}

	if err := sink.Append(sampleRecord("Alpha Mall", "https://dir.test/c/alpha"), validResult()); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("CSV parse failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected header plus 1 row, got %d rows", len(rows))
	}
	if len(rows[0]) != len(csvHeader) {
		t.Errorf("Header has %d columns, want %d", len(rows[0]), len(csvHeader))
	}

	row := rows[1]
	byName := make(map[string]string, len(row))
	for i, col := range rows[0] {
		byName[col] = row[i]
	}
	if byName["name"] != "Alpha Mall" {
		t.Errorf("name = %q", byName["name"])
	}
	if byName["gla_total_sqm"] != "350000" {
		t.Errorf("gla_total_sqm = %q", byName["gla_total_sqm"])
	}
	if byName["shop_count"] != "2" || byName["shop_names"] != "Carrefour|Zara" {
		t.Errorf("shops = %q / %q", byName["shop_count"], byName["shop_names"])
	}
	if byName["is_valid"] != "true" {
		t.Errorf("is_valid = %q", byName["is_valid"])
	}
	// Optional fields absent from the record stay empty, not zero.
	if byName["parking_spaces"] != "" {
		t.Errorf("parking_spaces = %q, want empty", byName["parking_spaces"])
	}
}

func TestSQLiteSinkAppendAndCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "centres.db")
	sink, err := NewSQLiteSink(path)
	if err != nil {
		t.Fatalf("NewSQLiteSink failed: %v", err)
	}
	defer func() { _ = sink.Close() }()

	if err := sink.Append(sampleRecord("Alpha Mall", "https://dir.test/c/alpha"), validResult()); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	rejected := crawler.ValidationResult{IsValid: false, Errors: []string{"bad"}, QualityScore: 0.2}
	if err := sink.Append(sampleRecord("Beta Plaza", "https://dir.test/c/beta"), rejected); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	valid, invalid, err := sink.CountRecords()
	if err != nil {
		t.Fatalf("CountRecords failed: %v", err)
	}
	if valid != 1 || invalid != 1 {
		t.Errorf("Expected 1 valid / 1 invalid, got %d / %d", valid, invalid)
	}
}

func TestSQLiteSinkReplacesRescrapedURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "centres.db")
	sink, err := NewSQLiteSink(path)
	if err != nil {
		t.Fatalf("NewSQLiteSink failed: %v", err)
	}
	defer func() { _ = sink.Close() }()

	url := "https://dir.test/c/alpha"
	if err := sink.Append(sampleRecord("Alpha Mall", url), validResult()); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := sink.Append(sampleRecord("Alpha Mall Renamed", url), validResult()); err != nil {
		t.Fatalf("Second append failed: %v", err)
	}

	valid, invalid, err := sink.CountRecords()
	if err != nil {
		t.Fatalf("CountRecords failed: %v", err)
	}
	if valid+invalid != 1 {
		t.Errorf("Same URL should replace, got %d rows", valid+invalid)
	}

	var name string
	if err := sink.db.QueryRow("SELECT name FROM centres WHERE source_url = ?", url).Scan(&name); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if name != "Alpha Mall Renamed" {
		t.Errorf("Expected replaced name, got %q", name)
	}
}

func TestSQLiteSinkEmptyCount(t *testing.T) {
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "centres.db"))
	if err != nil {
		t.Fatalf("NewSQLiteSink failed: %v", err)
	}
	defer func() { _ = sink.Close() }()

	valid, invalid, err := sink.CountRecords()
	if err != nil {
		t.Fatalf("CountRecords on empty table failed: %v", err)
	}
	if valid != 0 || invalid != 0 {
		t.Errorf("Expected zero counts, got %d / %d", valid, invalid)
	}
}

func TestNewSinkFormats(t *testing.T) {
	dir := t.TempDir()

	for _, format := range []string{FormatJSON, FormatCSV, FormatSQLite} {
		sink, err := NewSink(format, dir)
		if err != nil {
			t.Errorf("NewSink(%s) failed: %v", format, err)
			continue
		}
		_ = sink.Close()
	}

	if _, err := NewSink("xml", dir); err == nil {
		t.Error("Expected error for unsupported format")
	} else if !strings.Contains(err.Error(), "xml") {
		t.Errorf("Error should name the format: %v", err)
	}
}
