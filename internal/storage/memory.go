// internal/storage/memory.go
package storage

import (
	"sync"
	"time"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/data"
)

const defaultCapacity = 100 // Keep the last 100 ticks

// Snapshot is one refreshed apiary as seen by the monitor.
type Snapshot struct {
	Tick   uint64          `json:"tick"`
	Taken  time.Time       `json:"taken"`
	Apiary data.ApiaryData `json:"apiary"`
}

// MemoryStore is a fixed-size ring of recent snapshots. Snapshots are
// treated as immutable once added.
type MemoryStore struct {
	mu       sync.RWMutex
	buffer   []Snapshot
	capacity int
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryStore{
		buffer:   make([]Snapshot, 0, capacity),
		capacity: capacity,
	}
}

func (s *MemoryStore) Add(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buffer) >= s.capacity {
		// drop the oldest; copy so the backing array does not grow forever
		s.buffer = append(s.buffer[:0:0], s.buffer[1:]...)
	}
	s.buffer = append(s.buffer, snap)
}

// Latest returns the most recent snapshot.
func (s *MemoryStore) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.buffer) == 0 {
		return Snapshot{}, false
	}
	return s.buffer[len(s.buffer)-1], true
}

// Recent returns up to count snapshots, oldest first. count <= 0 means all.
func (s *MemoryStore) Recent(count int) []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if count <= 0 || count > len(s.buffer) {
		count = len(s.buffer)
	}
	result := make([]Snapshot, count)
	copy(result, s.buffer[len(s.buffer)-count:])
	return result
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buffer)
}

// HiveReadings returns the stored readings of one hive, newest first, as
// history points. At most count points are returned; count <= 0 means all.
func (s *MemoryStore) HiveReadings(beehiveID string, count int) []data.HistoryPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []data.HistoryPoint
	for i := len(s.buffer) - 1; i >= 0; i-- {
		if count > 0 && len(out) == count {
			break
		}
		h, ok := s.buffer[i].Apiary.Find(beehiveID)
		if !ok {
			continue
		}
		out = append(out, data.HistoryPoint{
			Date:             s.buffer[i].Taken,
			Temperature:      h.Metrics.Temperature,
			Humidity:         h.Metrics.Humidity,
			Weight:           h.Metrics.Weight,
			EntranceActivity: h.Metrics.EntranceActivity,
		})
	}
	return out
}
