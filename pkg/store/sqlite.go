package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/blackarrowsec/wap/pkg/types"
)

// SQLiteStore implements Store using SQLite (pure Go driver, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) a SQLite-backed store at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS scans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			scanned_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS detections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id INTEGER NOT NULL REFERENCES scans(id),
			technology TEXT NOT NULL,
			version TEXT,
			confidence INTEGER NOT NULL,
			categories_json TEXT,
			UNIQUE(scan_id, technology)
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_detections_scan_id ON detections(scan_id)
	`)
	return err
}

// AddScan records a scan run and returns its id.
func (s *SQLiteStore) AddScan(url string, statusCode int) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO scans (url, status_code, scanned_at) VALUES (?, ?, ?)",
		url, statusCode, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting scan: %w", err)
	}
	return res.LastInsertId()
}

// AddDetection records one technology match for a scan.
func (s *SQLiteStore) AddDetection(scanID int64, m types.TechMatch) error {
	names := make([]string, 0, len(m.Categories))
	for _, cat := range m.Categories {
		names = append(names, cat.Name)
	}
	categoriesJSON, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("marshaling categories: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO detections (scan_id, technology, version, confidence, categories_json)
		VALUES (?, ?, ?, ?, ?)
	`, scanID, m.Name, m.Version, m.Confidence, string(categoriesJSON))
	if err != nil {
		return fmt.Errorf("inserting detection: %w", err)
	}
	return nil
}

// Scans returns all recorded scans, newest first.
func (s *SQLiteStore) Scans() ([]*Scan, error) {
	rows, err := s.db.Query("SELECT id, url, status_code, scanned_at FROM scans ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("querying scans: %w", err)
	}
	defer rows.Close()

	var scans []*Scan
	for rows.Next() {
		var scan Scan
		var scannedAt string
		if err := rows.Scan(&scan.ID, &scan.URL, &scan.StatusCode, &scannedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		scan.ScannedAt, _ = time.Parse(time.RFC3339, scannedAt)
		scans = append(scans, &scan)
	}
	return scans, rows.Err()
}

// Detections returns the detections of one scan ordered by technology.
func (s *SQLiteStore) Detections(scanID int64) ([]*Detection, error) {
	rows, err := s.db.Query(`
		SELECT scan_id, technology, version, confidence, categories_json
		FROM detections WHERE scan_id = ? ORDER BY technology
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("querying detections: %w", err)
	}
	defer rows.Close()

	var detections []*Detection
	for rows.Next() {
		var d Detection
		var version sql.NullString
		var categoriesJSON sql.NullString
		if err := rows.Scan(&d.ScanID, &d.Technology, &version, &d.Confidence, &categoriesJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		d.Version = version.String
		if categoriesJSON.Valid && categoriesJSON.String != "" {
			if err := json.Unmarshal([]byte(categoriesJSON.String), &d.Categories); err != nil {
				return nil, fmt.Errorf("unmarshaling categories: %w", err)
			}
		}
		detections = append(detections, &d)
	}
	return detections, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
