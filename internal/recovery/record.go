package recovery

import (
	"sync"
	"time"
)

// defaultMaxHistory bounds the error history when no tuning overrides
// it.
const defaultMaxHistory = 50

// ErrorRecord is an immutable entry in the error history. Action and
// Outcome are set for recovery-action invocations; Failsafe marks the
// record appended when a chain is exhausted.
type ErrorRecord struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Code      string         `json:"code,omitempty"`
	Category  Category       `json:"category"`
	Action    string         `json:"action,omitempty"`
	Outcome   string         `json:"outcome,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Critical  bool           `json:"critical,omitempty"`
	Failsafe  bool           `json:"failsafe,omitempty"`
}

// History is a bounded, most-recent-first record of classified failures
// and recovery outcomes. Oldest entries are truncated past capacity.
type History struct {
	mu      sync.Mutex
	max     int
	records []ErrorRecord
}

// NewHistory creates a History with the given capacity; non-positive
// values fall back to the default of 50.
func NewHistory(max int) *History {
	if max <= 0 {
		max = defaultMaxHistory
	}

	return &History{max: max}
}

// Append prepends a record, truncating the oldest past capacity.
func (h *History) Append(r ErrorRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append([]ErrorRecord{r}, h.records...)
	if len(h.records) > h.max {
		h.records = h.records[:h.max]
	}
}

// Records returns a copy of the history, most recent first.
func (h *History) Records() []ErrorRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]ErrorRecord, len(h.records))
	copy(out, h.records)

	return out
}

// Restore replaces the history contents, e.g. from persisted state.
// Input is most-recent-first, truncated to capacity.
func (h *History) Restore(records []ErrorRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(records) > h.max {
		records = records[:h.max]
	}

	h.records = make([]ErrorRecord, len(records))
	copy(h.records, records)
}

// Len returns the current number of records.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.records)
}
