package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetFileHash retrieves the last scan hash for a file.
// Returns sql.ErrNoRows if the file has not been scanned.
func (s *Store) GetFileHash(ctx context.Context, path string) (string, error) {
	var hash string
	err := s.queryRow(ctx, "SELECT scan_hash FROM file_index WHERE file_path = ?", path).Scan(&hash)
	if err != nil {
		return "", err
	}
	return hash, nil
}

// IsFileChanged checks if a file's content has changed since last scan.
// Returns true if the file has changed or has never been scanned.
func (s *Store) IsFileChanged(ctx context.Context, path, newHash string) (bool, error) {
	oldHash, err := s.GetFileHash(ctx, path)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil // Never scanned
	}
	if err != nil {
		return false, err
	}
	return oldHash != newHash, nil
}

// GetAllFileEntries retrieves all file entries from the index.
func (s *Store) GetAllFileEntries(ctx context.Context) ([]*FileIndex, error) {
	rows, err := s.query(ctx, `
        SELECT file_path, scan_hash, scanned_at FROM file_index ORDER BY file_path`)
	if err != nil {
		return nil, fmt.Errorf("query file entries: %w", err)
	}
	defer rows.Close()

	var entries []*FileIndex
	for rows.Next() {
		var entry FileIndex
		var scannedAt string
		if err := rows.Scan(&entry.FilePath, &entry.ScanHash, &scannedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		entry.ScannedAt, _ = time.Parse(time.RFC3339, scannedAt)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
