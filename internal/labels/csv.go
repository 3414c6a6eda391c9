package labels

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CSVStore appends labels to a single CSV file. Each Save writes the
// merged file to a temp path and renames it into place, so readers never
// observe a half-written row.
type CSVStore struct {
	path string
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) Save(ctx context.Context, rows []Label) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("creating label directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	err = s.writeMerged(f, rows)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing labels: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// writeMerged copies any existing file verbatim, then appends the new
// rows. A fresh file gets the header first.
func (s *CSVStore) writeMerged(dst *os.File, rows []Label) error {
	existing, err := os.Open(s.path)
	switch {
	case err == nil:
		_, copyErr := io.Copy(dst, existing)
		_ = existing.Close()
		if copyErr != nil {
			return copyErr
		}
	case os.IsNotExist(err):
		w := csv.NewWriter(dst)
		if err := w.Write(Header()); err != nil {
			return err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
	default:
		return err
	}

	w := csv.NewWriter(dst)
	for _, l := range rows {
		if err := w.Write(l.Row()); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *CSVStore) Close() error { return nil }
