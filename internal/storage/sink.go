package storage

import (
	"fmt"
	"path/filepath"

	"mallcrawl/internal/crawler"
)

// Supported output formats.
const (
	FormatJSON   = "json"
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// NewSink opens a record sink of the given format under dir. The file
// name follows the format: centres.json, centres.csv or centres.db.
func NewSink(format, dir string) (crawler.RecordSink, error) {
	switch format {
	case FormatJSON:
		return NewJSONSink(filepath.Join(dir, "centres.json"))
	case FormatCSV:
		return NewCSVSink(filepath.Join(dir, "centres.csv"))
	case FormatSQLite:
		return NewSQLiteSink(filepath.Join(dir, "centres.db"))
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}
