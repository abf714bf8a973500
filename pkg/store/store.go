// Package store persists scan results. The engine itself never touches
// storage; the CLI and other callers use a Store to keep a history of what
// was detected where.
package store

import (
	"fmt"
	"time"

	"github.com/blackarrowsec/wap/pkg/types"
)

// Scan is one recorded discovery run against one URL.
type Scan struct {
	ID         int64
	URL        string
	StatusCode int
	ScannedAt  time.Time
}

// Detection is one technology detected during a scan.
type Detection struct {
	ScanID     int64
	Technology string
	Version    string
	Confidence int
	Categories []string
}

// Store provides persistence for scan results. Implementations must be safe
// for concurrent use.
type Store interface {
	// AddScan records a scan run and returns its id.
	AddScan(url string, statusCode int) (int64, error)

	// AddDetection records one technology match for a scan.
	AddDetection(scanID int64, m types.TechMatch) error

	// Scans returns all recorded scans, newest first.
	Scans() ([]*Scan, error)

	// Detections returns the detections of one scan ordered by technology.
	Detections(scanID int64) ([]*Detection, error)

	// Close releases the underlying resources.
	Close() error
}

// Config for store initialization.
type Config struct {
	// Path is the database file path. Use ":memory:" for an in-memory
	// SQLite database (useful for testing).
	Path string
}

// New creates a SQLite-backed Store.
func New(cfg Config) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	return NewSQLite(cfg.Path)
}
