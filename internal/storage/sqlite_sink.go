package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mallcrawl/internal/crawler"
)

const sinkSchema = `
CREATE TABLE IF NOT EXISTS centres (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    source_url TEXT UNIQUE NOT NULL,
    property_type TEXT,
    status TEXT,
    latitude REAL,
    longitude REAL,
    country TEXT,
    city TEXT,
    address TEXT,
    phone TEXT,
    email TEXT,
    website TEXT,
    gla_total_sqm INTEGER,
    gla_retail_sqm INTEGER,
    store_count INTEGER,
    parking_spaces INTEGER,
    opening_year INTEGER,
    shops_json TEXT,
    images_json TEXT,
    is_valid INTEGER NOT NULL,
    quality_score REAL NOT NULL,
    validation_errors TEXT,
    validation_warnings TEXT,
    scraped_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_centres_valid ON centres(is_valid);
CREATE INDEX IF NOT EXISTS idx_centres_country ON centres(country) WHERE country IS NOT NULL;
`

// SQLiteSink appends records to a centres table. Re-scraped URLs
// replace their previous row.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the output database.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open output database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sinkSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize output schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Append inserts one record with its validation result.
func (s *SQLiteSink) Append(rec *crawler.CentreRecord, vr crawler.ValidationResult) error {
	shopsJSON, err := json.Marshal(rec.Shops)
	if err != nil {
		return fmt.Errorf("failed to marshal shops: %w", err)
	}
	imagesJSON, err := json.Marshal(rec.Images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO centres (
			name, source_url, property_type, status,
			latitude, longitude, country, city, address,
			phone, email, website,
			gla_total_sqm, gla_retail_sqm, store_count, parking_spaces, opening_year,
			shops_json, images_json,
			is_valid, quality_score, validation_errors, validation_warnings,
			scraped_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Name, rec.SourceURL, nullString(rec.PropertyType), nullString(rec.Status),
		nullFloat(rec.Latitude), nullFloat(rec.Longitude),
		nullString(rec.Country), nullString(rec.City), nullString(rec.Address),
		nullString(rec.Phone), nullString(rec.Email), nullString(rec.Website),
		nullInt(rec.GLATotalSqm), nullInt(rec.GLARetailSqm),
		nullInt(rec.StoreCount), nullInt(rec.ParkingSpaces), nullInt(rec.OpeningYear),
		string(shopsJSON), string(imagesJSON),
		vr.IsValid, vr.QualityScore,
		nullString(strings.Join(vr.Errors, ";")), nullString(strings.Join(vr.Warnings, ";")),
		rec.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert centre %s: %w", rec.SourceURL, err)
	}
	return nil
}

// CountRecords returns the stored row count split by validity.
func (s *SQLiteSink) CountRecords() (valid int, invalid int, err error) {
	err = s.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN is_valid = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_valid = 0 THEN 1 ELSE 0 END), 0)
		FROM centres
	`).Scan(&valid, &invalid)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count centres: %w", err)
	}
	return valid, invalid, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
