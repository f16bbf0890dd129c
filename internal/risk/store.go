package risk

import "sync"

// DailyStats is the per-day trading ledger. One row exists per calendar day
// (UTC); the manager rewrites it after every mutation so a restart resumes
// with breaker state intact.
type DailyStats struct {
	Date           string  `json:"date"` // YYYY-MM-DD, UTC
	InitialBalance float64 `json:"initial_balance"`
	CurrentBalance float64 `json:"current_balance"`
	TradesCount    int     `json:"trades_count"`
	DailyPnL       float64 `json:"daily_pnl"`
	IsHalted       bool    `json:"is_halted"`
	HaltReason     string  `json:"halt_reason,omitempty"`
}

// StatsStore persists the daily ledger. Load returns ok=false when no row
// exists yet (fresh install), which is not an error.
type StatsStore interface {
	Load() (DailyStats, bool, error)
	Save(stats DailyStats) error
}

// MemoryStore is an in-process StatsStore for tests and mock mode.
type MemoryStore struct {
	mu    sync.Mutex
	stats DailyStats
	saved bool

	// FailNextSave forces the next Save to return an error, for testing the
	// fail-closed path.
	FailNextSave error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the last saved stats, if any.
func (m *MemoryStore) Load() (DailyStats, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats, m.saved, nil
}

// Save stores the stats snapshot.
func (m *MemoryStore) Save(stats DailyStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNextSave != nil {
		err := m.FailNextSave
		m.FailNextSave = nil
		return err
	}

	m.stats = stats
	m.saved = true
	return nil
}
