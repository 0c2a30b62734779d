package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestSession(id string, expiresAt time.Time) Session {
	return Session{
		ID:        id,
		OwnerID:   uuid.New(),
		Email:     "user@example.com",
		CreatedAt: expiresAt.Add(-time.Hour),
		ExpiresAt: expiresAt,
	}
}

func TestMemoryStoreSetGetDestroy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	sess := newTestSession("abc", time.Now().Add(time.Hour))

	if err := store.Set(ctx, sess); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	got, ok, err := store.Get(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("expected session present, ok=%v err=%v", ok, err)
	}
	if got.OwnerID != sess.OwnerID {
		t.Fatalf("unexpected owner %s", got.OwnerID)
	}

	if err := store.Destroy(ctx, "abc"); err != nil {
		t.Fatalf("Destroy returned error: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "abc"); ok {
		t.Fatalf("expected session to be gone after Destroy")
	}
}

func TestMemoryStoreMissingIDIsNotAnError(t *testing.T) {
	store := NewMemoryStore()

	_, ok, err := store.Get(context.Background(), "never-existed")
	if err != nil || ok {
		t.Fatalf("expected absent without error, ok=%v err=%v", ok, err)
	}
	if err := store.Destroy(context.Background(), "never-existed"); err != nil {
		t.Fatalf("Destroy on unknown id returned error: %v", err)
	}
}

func TestMemoryStoreExpiredLooksAbsent(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Set(ctx, newTestSession("old", now.Add(time.Minute)))

	now = now.Add(2 * time.Minute)
	_, ok, err := store.Get(ctx, "old")
	if err != nil || ok {
		t.Fatalf("expected expired session to be absent, ok=%v err=%v", ok, err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired entry to be evicted on read, %d left", store.Len())
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Set(ctx, newTestSession("a", now.Add(time.Minute)))
	_ = store.Set(ctx, newTestSession("b", now.Add(time.Hour)))
	_ = store.Set(ctx, newTestSession("c", now.Add(-time.Second)))

	now = now.Add(5 * time.Minute)
	removed, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 sessions swept, got %d", removed)
	}
	if _, ok, _ := store.Get(ctx, "b"); !ok {
		t.Fatalf("expected live session to survive sweep")
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", i)
			_ = store.Set(ctx, newTestSession(id, expires))
			if _, ok, _ := store.Get(ctx, id); !ok {
				t.Errorf("session %s missing right after Set", id)
			}
			if i%2 == 0 {
				_ = store.Destroy(ctx, id)
			}
		}(i)
	}
	wg.Wait()

	if store.Len() != 25 {
		t.Fatalf("expected 25 sessions left, got %d", store.Len())
	}
}

func TestNewIDIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := NewID()
		if err != nil {
			t.Fatalf("NewID returned error: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}
