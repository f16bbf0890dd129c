// Package orders tracks the protective exit order groups (OCO stop plus
// take-profit) that guard every open satellite position.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Tracker errors
var (
	ErrGroupNotFound = errors.New("order group not found")
	ErrGroupExists   = errors.New("order group already exists")
	ErrEmptyGroupID  = errors.New("group ID cannot be empty")
	ErrEmptyPair     = errors.New("pair cannot be empty")
)

const groupTTL = 48 * time.Hour

// Group is one protective exit pair guarding an open position.
type Group struct {
	ID         string    `json:"id"`
	Pair       string    `json:"pair"`
	IntentID   string    `json:"intent_id"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// GroupTracker manages active exit groups in memory, with optional Redis
// write-through so a restart can reconcile against the exchange.
type GroupTracker struct {
	mu     sync.RWMutex
	groups map[string]*Group // keyed by group ID

	rdb    *redis.Client // optional; nil disables persistence
	logger zerolog.Logger
}

// NewGroupTracker creates a tracker. rdb may be nil.
func NewGroupTracker(rdb *redis.Client, logger zerolog.Logger) *GroupTracker {
	return &GroupTracker{
		groups: make(map[string]*Group),
		rdb:    rdb,
		logger: logger.With().Str("component", "orders").Logger(),
	}
}

// Restore loads the groups persisted by a previous run into memory. Call it
// once at startup, before the first engine cycle, so the position cap and
// trail pass see positions that were open when the process died. The caller
// reconciles the restored set against the exchange; entries whose orders are
// gone are dropped there.
func (t *GroupTracker) Restore(ctx context.Context) error {
	if t.rdb == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	restored := 0
	iter := t.rdb.Scan(ctx, 0, "orders:group:*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := t.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			t.logger.Warn().Err(err).Str("key", iter.Val()).Msg("failed to read persisted group")
			continue
		}
		var g Group
		if err := json.Unmarshal(data, &g); err != nil {
			t.logger.Warn().Err(err).Str("key", iter.Val()).Msg("failed to decode persisted group")
			continue
		}
		if g.ID == "" || g.Pair == "" {
			continue
		}
		if _, exists := t.groups[g.ID]; exists {
			continue
		}
		t.groups[g.ID] = &g
		restored++
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if restored > 0 {
		t.logger.Info().Int("groups", restored).Msg("restored exit groups from previous run")
	}
	return nil
}

// Track registers a newly placed exit group.
func (t *GroupTracker) Track(g Group) error {
	if g.ID == "" {
		return ErrEmptyGroupID
	}
	if g.Pair == "" {
		return ErrEmptyPair
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.groups[g.ID]; exists {
		return ErrGroupExists
	}

	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now
	t.groups[g.ID] = &g

	t.logger.Info().
		Str("group_id", g.ID).
		Str("pair", g.Pair).
		Float64("stop_loss", g.StopLoss).
		Float64("take_profit", g.TakeProfit).
		Msg("tracking exit group")

	t.persist(&g)
	return nil
}

// Replace swaps a cancelled group for its ratcheted successor, preserving the
// original placement time and intent.
func (t *GroupTracker) Replace(oldID string, g Group) error {
	if g.ID == "" {
		return ErrEmptyGroupID
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	old, exists := t.groups[oldID]
	if !exists {
		return ErrGroupNotFound
	}

	g.CreatedAt = old.CreatedAt
	g.UpdatedAt = time.Now()
	if g.IntentID == "" {
		g.IntentID = old.IntentID
	}

	delete(t.groups, oldID)
	t.groups[g.ID] = &g

	t.logger.Info().
		Str("old_group_id", oldID).
		Str("group_id", g.ID).
		Float64("stop_loss", g.StopLoss).
		Msg("replaced exit group")

	t.unpersist(oldID)
	t.persist(&g)
	return nil
}

// Remove forgets a group whose orders are gone from the exchange.
func (t *GroupTracker) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.groups[id]; !exists {
		return ErrGroupNotFound
	}
	delete(t.groups, id)

	t.logger.Info().Str("group_id", id).Msg("removed exit group")
	t.unpersist(id)
	return nil
}

// Get returns a copy of one group.
func (t *GroupTracker) Get(id string) (Group, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	g, ok := t.groups[id]
	if !ok {
		return Group{}, false
	}
	return *g, true
}

// ByPair returns copies of the groups guarding one pair.
func (t *GroupTracker) ByPair(pair string) []Group {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Group
	for _, g := range t.groups {
		if g.Pair == pair {
			out = append(out, *g)
		}
	}
	return out
}

// All returns copies of every tracked group.
func (t *GroupTracker) All() []Group {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Group, 0, len(t.groups))
	for _, g := range t.groups {
		out = append(out, *g)
	}
	return out
}

// Count returns the number of tracked groups.
func (t *GroupTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.groups)
}

// Persistence failures are logged and swallowed: the in-memory state is
// authoritative, Redis only helps post-restart reconciliation.

func (t *GroupTracker) persist(g *Group) {
	if t.rdb == nil {
		return
	}
	data, err := json.Marshal(g)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := t.rdb.Set(ctx, "orders:group:"+g.ID, data, groupTTL).Err(); err != nil {
		t.logger.Warn().Err(err).Str("group_id", g.ID).Msg("failed to persist exit group")
	}
}

func (t *GroupTracker) unpersist(id string) {
	if t.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := t.rdb.Del(ctx, "orders:group:"+id).Err(); err != nil {
		t.logger.Warn().Err(err).Str("group_id", id).Msg("failed to delete persisted group")
	}
}
