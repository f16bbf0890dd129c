package orders

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func newTestTracker() *GroupTracker {
	return NewGroupTracker(nil, zerolog.Nop())
}

func TestTrackAndGet(t *testing.T) {
	tr := newTestTracker()

	err := tr.Track(Group{
		ID:         "g1",
		Pair:       "SOLUSDT",
		Quantity:   1.5,
		EntryPrice: 100,
		StopLoss:   98,
		TakeProfit: 108,
	})
	if err != nil {
		t.Fatalf("Track: %v", err)
	}

	g, ok := tr.Get("g1")
	if !ok {
		t.Fatal("group not found after Track")
	}
	if g.StopLoss != 98 || g.TakeProfit != 108 {
		t.Errorf("exits = %v/%v, want 98/108", g.StopLoss, g.TakeProfit)
	}
	if g.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestRestoreWithoutRedisIsNoop(t *testing.T) {
	tr := newTestTracker()

	if err := tr.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if tr.Count() != 0 {
		t.Errorf("count = %d, want 0", tr.Count())
	}
}

func TestTrackValidation(t *testing.T) {
	tr := newTestTracker()

	if err := tr.Track(Group{Pair: "SOLUSDT"}); err != ErrEmptyGroupID {
		t.Errorf("empty ID: got %v, want ErrEmptyGroupID", err)
	}
	if err := tr.Track(Group{ID: "g1"}); err != ErrEmptyPair {
		t.Errorf("empty pair: got %v, want ErrEmptyPair", err)
	}

	if err := tr.Track(Group{ID: "g1", Pair: "SOLUSDT"}); err != nil {
		t.Fatal(err)
	}
	if err := tr.Track(Group{ID: "g1", Pair: "SOLUSDT"}); err != ErrGroupExists {
		t.Errorf("duplicate: got %v, want ErrGroupExists", err)
	}
}

func TestReplacePreservesOrigin(t *testing.T) {
	tr := newTestTracker()

	if err := tr.Track(Group{ID: "g1", Pair: "SOLUSDT", IntentID: "intent-1", StopLoss: 98, TakeProfit: 108}); err != nil {
		t.Fatal(err)
	}
	created, _ := tr.Get("g1")

	err := tr.Replace("g1", Group{ID: "g2", Pair: "SOLUSDT", StopLoss: 99, TakeProfit: 108})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}

	if _, ok := tr.Get("g1"); ok {
		t.Error("old group still tracked after Replace")
	}
	g, ok := tr.Get("g2")
	if !ok {
		t.Fatal("new group not tracked")
	}
	if g.StopLoss != 99 {
		t.Errorf("stop = %v, want ratcheted 99", g.StopLoss)
	}
	if g.IntentID != "intent-1" {
		t.Errorf("intent = %s, want inherited intent-1", g.IntentID)
	}
	if !g.CreatedAt.Equal(created.CreatedAt) {
		t.Error("CreatedAt not preserved across Replace")
	}
}

func TestReplaceMissing(t *testing.T) {
	tr := newTestTracker()
	if err := tr.Replace("nope", Group{ID: "g2", Pair: "SOLUSDT"}); err != ErrGroupNotFound {
		t.Errorf("got %v, want ErrGroupNotFound", err)
	}
}

func TestRemoveAndCount(t *testing.T) {
	tr := newTestTracker()

	tr.Track(Group{ID: "g1", Pair: "SOLUSDT"})
	tr.Track(Group{ID: "g2", Pair: "LINKUSDT"})
	if tr.Count() != 2 {
		t.Fatalf("count = %d, want 2", tr.Count())
	}

	if err := tr.Remove("g1"); err != nil {
		t.Fatal(err)
	}
	if tr.Count() != 1 {
		t.Errorf("count = %d after remove, want 1", tr.Count())
	}
	if err := tr.Remove("g1"); err != ErrGroupNotFound {
		t.Errorf("double remove: got %v, want ErrGroupNotFound", err)
	}
}

func TestByPair(t *testing.T) {
	tr := newTestTracker()

	tr.Track(Group{ID: "g1", Pair: "SOLUSDT"})
	tr.Track(Group{ID: "g2", Pair: "SOLUSDT"})
	tr.Track(Group{ID: "g3", Pair: "LINKUSDT"})

	if got := len(tr.ByPair("SOLUSDT")); got != 2 {
		t.Errorf("ByPair(SOLUSDT) = %d groups, want 2", got)
	}
	if got := len(tr.ByPair("AVAXUSDT")); got != 0 {
		t.Errorf("ByPair(AVAXUSDT) = %d groups, want 0", got)
	}
}
