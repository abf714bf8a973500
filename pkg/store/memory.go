package store

import (
	"sort"
	"sync"
	"time"

	"github.com/blackarrowsec/wap/pkg/types"
)

// MemoryStore implements Store using in-memory data structures. Useful for
// tests and for callers that only want the current run's results.
type MemoryStore struct {
	mu         sync.RWMutex
	nextID     int64
	scans      []*Scan
	detections map[int64][]*Detection // keyed by scan id
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		nextID:     1,
		detections: make(map[int64][]*Detection),
	}
}

// AddScan records a scan run and returns its id.
func (m *MemoryStore) AddScan(url string, statusCode int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.scans = append(m.scans, &Scan{
		ID:         id,
		URL:        url,
		StatusCode: statusCode,
		ScannedAt:  time.Now().UTC(),
	})
	return id, nil
}

// AddDetection records one technology match for a scan. Duplicate
// technologies for the same scan are ignored, matching the SQLite backend.
func (m *MemoryStore) AddDetection(scanID int64, match types.TechMatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.detections[scanID] {
		if d.Technology == match.Name {
			return nil
		}
	}

	names := make([]string, 0, len(match.Categories))
	for _, cat := range match.Categories {
		names = append(names, cat.Name)
	}

	m.detections[scanID] = append(m.detections[scanID], &Detection{
		ScanID:     scanID,
		Technology: match.Name,
		Version:    match.Version,
		Confidence: match.Confidence,
		Categories: names,
	})
	return nil
}

// Scans returns all recorded scans, newest first.
func (m *MemoryStore) Scans() ([]*Scan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Scan, len(m.scans))
	copy(out, m.scans)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Detections returns the detections of one scan ordered by technology.
func (m *MemoryStore) Detections(scanID int64) ([]*Detection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Detection, len(m.detections[scanID]))
	copy(out, m.detections[scanID])
	sort.Slice(out, func(i, j int) bool { return out[i].Technology < out[j].Technology })
	return out, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
