package server

import (
	"io"
	"log/slog"
	"sync"
	"testing"
)

func newTestHub(opts HubOptions) *Hub {
	return NewHub(opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegistryAddRemove(t *testing.T) {
	hub := newTestHub(HubOptions{})
	reg := NewRegistry()
	a := NewClient(nil, hub, "127.0.0.1:1")
	b := NewClient(nil, hub, "127.0.0.1:2")

	reg.Add(a)
	reg.Add(b)
	reg.Add(a)
	if reg.Len() != 2 {
		t.Fatalf("Expected 2 clients, got %d", reg.Len())
	}

	if !reg.Remove(a) {
		t.Error("Expected first Remove to report removal")
	}
	if reg.Remove(a) {
		t.Error("Expected second Remove to be a no-op")
	}
	if reg.Len() != 1 {
		t.Errorf("Expected 1 client, got %d", reg.Len())
	}

	reg.Add(nil)
	if reg.Len() != 1 {
		t.Errorf("Adding nil changed registry size to %d", reg.Len())
	}
}

func TestRegistrySnapshotIsIndependent(t *testing.T) {
	hub := newTestHub(HubOptions{})
	reg := NewRegistry()
	a := NewClient(nil, hub, "a")
	b := NewClient(nil, hub, "b")
	reg.Add(a)
	reg.Add(b)

	snap := reg.Snapshot()
	reg.Remove(a)
	reg.Add(NewClient(nil, hub, "c"))

	if len(snap) != 2 {
		t.Fatalf("Snapshot changed after registry mutation: %d entries", len(snap))
	}
	seen := map[*Client]bool{}
	for _, c := range snap {
		seen[c] = true
	}
	if !seen[a] || !seen[b] {
		t.Error("Snapshot does not hold the members at snapshot time")
	}

	snap[0] = nil
	for _, c := range reg.Snapshot() {
		if c == nil {
			t.Fatal("Mutating a snapshot affected the registry")
		}
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	hub := newTestHub(HubOptions{})
	reg := NewRegistry()

	const workers = 8
	const perWorker = 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c := NewClient(nil, hub, "churn")
				reg.Add(c)
				_ = reg.Snapshot()
				reg.Remove(c)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				for _, c := range reg.Snapshot() {
					if c == nil {
						t.Error("Snapshot contained nil client")
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	if reg.Len() != 0 {
		t.Errorf("Expected empty registry after churn, got %d", reg.Len())
	}
}
