package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"mallcrawl/internal/crawler"
)

// jsonEntry is one element of the output array: the record plus its
// validation result, kept together so rejected records stay auditable.
type jsonEntry struct {
	Centre     *crawler.CentreRecord    `json:"centre"`
	Validation crawler.ValidationResult `json:"validation"`
}

// JSONSink writes records incrementally as a JSON array. Elements are
// flushed to disk as they arrive; Close terminates the array, so a long
// run never buffers the full result set. Reopening an existing file
// resumes its array instead of truncating it; the checkpoint skips
// completed URLs, so prior output must survive a resumed run.
type JSONSink struct {
	file  *os.File
	enc   *json.Encoder
	count int
}

// NewJSONSink opens the output file, starting a new array or resuming
// the one a previous run left behind.
func NewJSONSink(path string) (*JSONSink, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create JSON output: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("  ", "  ")
	s := &JSONSink{file: f, enc: enc}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat JSON output: %w", err)
	}

	size := info.Size()
	if size < 2 {
		if err := f.Truncate(0); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to reset JSON output: %w", err)
		}
		if _, err := f.WriteString("[\n"); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to start JSON array: %w", err)
		}
		return s, nil
	}

	// Resume: trim the closing bracket written by the prior Close so
	// new elements append to the same array. A file a crash left
	// unterminated already ends inside the open array.
	tail := make([]byte, 2)
	if _, err := f.ReadAt(tail, size-2); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read JSON output tail: %w", err)
	}
	if string(tail) == "]\n" {
		size -= 2
		if err := f.Truncate(size); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to reopen JSON array: %w", err)
		}
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to seek JSON output: %w", err)
	}
	// Anything beyond the opening "[\n" is an existing element that
	// needs a separator before the next one.
	if size > 2 {
		s.count = 1
	}
	return s, nil
}

// Append writes one record with its validation result.
func (s *JSONSink) Append(rec *crawler.CentreRecord, vr crawler.ValidationResult) error {
	if s.count > 0 {
		if _, err := s.file.WriteString(",\n"); err != nil {
			return fmt.Errorf("failed to write JSON separator: %w", err)
		}
	}
	if _, err := s.file.WriteString("  "); err != nil {
		return fmt.Errorf("failed to write JSON indent: %w", err)
	}
	if err := s.enc.Encode(jsonEntry{Centre: rec, Validation: vr}); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	s.count++
	return nil
}

// Close terminates the array and closes the file.
func (s *JSONSink) Close() error {
	if _, err := s.file.WriteString("]\n"); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("failed to close JSON array: %w", err)
	}
	return s.file.Close()
}
