package service

import (
	"artemis/models"
	"sync"
)

// HistoryStore keeps a bounded, arrival-ordered sample history per device.
// GPS and IMU entries share one sequence and one limit. A device's history
// outlives its registry entry until Clear is called.
type HistoryStore struct {
	entries map[string][]models.HistoryEntry
	limit   int
	mu      sync.RWMutex
}

func NewHistoryStore(limit int) *HistoryStore {
	if limit <= 0 {
		limit = 1
	}
	return &HistoryStore{
		entries: make(map[string][]models.HistoryEntry),
		limit:   limit,
	}
}

func (h *HistoryStore) Limit() int {
	return h.limit
}

// Append records an entry, dropping the oldest ones beyond the limit.
func (h *HistoryStore) Append(deviceID string, entry models.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	seq := append(h.entries[deviceID], entry)
	if over := len(seq) - h.limit; over > 0 {
		// Shift in place so the backing array never grows past the limit.
		n := copy(seq, seq[over:])
		for i := n; i < len(seq); i++ {
			seq[i] = models.HistoryEntry{}
		}
		seq = seq[:n]
	}
	h.entries[deviceID] = seq
}

// Recent returns up to n of the newest entries, oldest first. An unknown
// device yields an empty slice.
func (h *HistoryStore) Recent(deviceID string, n int) []models.HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seq := h.entries[deviceID]
	if n <= 0 || len(seq) == 0 {
		return []models.HistoryEntry{}
	}
	if n > len(seq) {
		n = len(seq)
	}
	out := make([]models.HistoryEntry, n)
	copy(out, seq[len(seq)-n:])
	return out
}

// Has reports whether any entry was recorded for the device.
func (h *HistoryStore) Has(deviceID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.entries[deviceID]
	return ok
}

func (h *HistoryStore) Len(deviceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries[deviceID])
}

func (h *HistoryStore) Clear(deviceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entries, deviceID)
}
