package cache

import (
	"context"
	"testing"
	"time"
)

type testQuotes struct {
	Symbols []string           `json:"symbols"`
	Prices  map[string]float64 `json:"prices,omitempty"`
}

func TestMemory_SaveAndLoad(t *testing.T) {
	store := NewMemory[testQuotes]()
	ctx := context.Background()

	entry := Entry[testQuotes]{
		Value:    testQuotes{Symbols: []string{"AAPL"}, Prices: map[string]float64{"AAPL": 187.4}},
		Provider: "alpha",
		StoredAt: time.Now(),
	}
	if err := store.Save(ctx, "quotes:AAPL", entry); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load(ctx, "quotes:AAPL")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected non-nil entry")
	}
	if got.Provider != "alpha" || len(got.Value.Symbols) != 1 {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestMemory_LoadMissing(t *testing.T) {
	store := NewMemory[testQuotes]()

	got, err := store.Load(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing key, got %+v", got)
	}
}

func TestMemory_LoadReturnsStaleEntries(t *testing.T) {
	store := NewMemory[testQuotes]()
	ctx := context.Background()

	entry := Entry[testQuotes]{
		Value:    testQuotes{Symbols: []string{"BTC"}},
		Provider: "alpha",
		StoredAt: time.Now().Add(-24 * time.Hour),
	}
	store.Save(ctx, "quotes:BTC", entry)

	got, err := store.Load(ctx, "quotes:BTC")
	if err != nil || got == nil {
		t.Fatalf("expected stale entry to remain readable, got %v, err %v", got, err)
	}
	if got.Fresh(5 * time.Minute) {
		t.Error("expected a day-old entry to be stale")
	}
}

func TestMemory_ClearWithPrefix(t *testing.T) {
	store := NewMemory[testQuotes]()
	ctx := context.Background()

	for _, key := range []string{"quotes:AAPL", "quotes:MSFT", "fx:EURUSD"} {
		store.Save(ctx, key, Entry[testQuotes]{StoredAt: time.Now()})
	}

	removed, err := store.Clear(ctx, "quotes:")
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 remaining entry, got %d", store.Len())
	}

	got, _ := store.Load(ctx, "fx:EURUSD")
	if got == nil {
		t.Error("expected unrelated key to survive prefixed clear")
	}
}

func TestMemory_ClearAll(t *testing.T) {
	store := NewMemory[testQuotes]()
	ctx := context.Background()

	store.Save(ctx, "a", Entry[testQuotes]{StoredAt: time.Now()})
	store.Save(ctx, "b", Entry[testQuotes]{StoredAt: time.Now()})

	removed, err := store.Clear(ctx, "")
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 2 || store.Len() != 0 {
		t.Errorf("expected empty store, removed=%d len=%d", removed, store.Len())
	}
}

func TestEntry_Fresh(t *testing.T) {
	e := Entry[testQuotes]{StoredAt: time.Now().Add(-time.Minute)}

	if !e.Fresh(5 * time.Minute) {
		t.Error("one-minute-old entry should be fresh within 5m")
	}
	if e.Fresh(30 * time.Second) {
		t.Error("one-minute-old entry should be stale within 30s")
	}
	if e.Fresh(0) {
		t.Error("non-positive max age should mark everything stale")
	}
}

func TestCache_GetRespectsMaxAge(t *testing.T) {
	c := New[testQuotes](NewMemory[testQuotes]())
	ctx := context.Background()

	if err := c.Set(ctx, "quotes:AAPL", testQuotes{Symbols: []string{"AAPL"}}, "alpha"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, ok, err := c.Get(ctx, "quotes:AAPL", time.Minute)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || entry == nil {
		t.Fatal("expected a fresh hit")
	}
	if entry.Provider != "alpha" {
		t.Errorf("expected provider alpha, got %q", entry.Provider)
	}

	// With a zero freshness window the same entry counts as a miss.
	_, ok, err = c.Get(ctx, "quotes:AAPL", 0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected stale miss with zero max age")
	}
}

func TestCache_GetStaleIsLastResort(t *testing.T) {
	store := NewMemory[testQuotes]()
	c := New[testQuotes](store)
	ctx := context.Background()

	store.Save(ctx, "quotes:BTC", Entry[testQuotes]{
		Value:    testQuotes{Symbols: []string{"BTC"}},
		Provider: "alpha",
		StoredAt: time.Now().Add(-time.Hour),
	})

	_, ok, _ := c.Get(ctx, "quotes:BTC", time.Minute)
	if ok {
		t.Fatal("expected fresh lookup to miss")
	}

	entry, err := c.GetStale(ctx, "quotes:BTC")
	if err != nil {
		t.Fatalf("GetStale failed: %v", err)
	}
	if entry == nil {
		t.Fatal("expected stale entry to be served")
	}
	if entry.Value.Symbols[0] != "BTC" {
		t.Errorf("unexpected value %+v", entry.Value)
	}
}

func TestCache_SetStampsProvenance(t *testing.T) {
	c := New[testQuotes](NewMemory[testQuotes]())
	ctx := context.Background()

	before := time.Now()
	c.Set(ctx, "k", testQuotes{}, "beta")

	entry, _, err := c.Get(ctx, "k", time.Minute)
	if err != nil || entry == nil {
		t.Fatalf("expected entry, err %v", err)
	}
	if entry.Provider != "beta" {
		t.Errorf("expected provider beta, got %q", entry.Provider)
	}
	if entry.StoredAt.Before(before.Add(-time.Second)) {
		t.Errorf("expected recent StoredAt, got %v", entry.StoredAt)
	}
}
