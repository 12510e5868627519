package profile

import (
	"context"
	"testing"

	"github.com/kringlelabs/kringle/internal/cache"
	"github.com/kringlelabs/kringle/internal/phase"
	"github.com/kringlelabs/kringle/internal/storage"
)

// countingStore wraps BadgerStore and counts reads that reach the backing store.
type countingStore struct {
	*BadgerStore
	gets int
}

func (s *countingStore) Get(ctx context.Context, passcode string) (*Profile, error) {
	s.gets++
	return s.BadgerStore.Get(ctx, passcode)
}

func newCachedFixture(t *testing.T) (*CachedStore, *countingStore) {
	t.Helper()
	db, err := storage.Open(storage.TestConfig())
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	backing := &countingStore{BadgerStore: NewBadgerStore(db)}
	return NewCachedStore(backing, cache.New(db, 0), nil), backing
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()

	t.Run("read-through fills the snapshot", func(t *testing.T) {
		cached, backing := newCachedFixture(t)
		if err := cached.Put(ctx, testProfile("CCH001"), false); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		for i := 0; i < 3; i++ {
			if _, err := cached.Get(ctx, "CCH001"); err != nil {
				t.Fatalf("Get() error = %v", err)
			}
		}
		// Put refreshed the snapshot, so no Get should reach the store.
		if backing.gets != 0 {
			t.Errorf("backing store saw %d reads, want 0", backing.gets)
		}
	})

	t.Run("phase update is write-through", func(t *testing.T) {
		cached, backing := newCachedFixture(t)
		if err := cached.Put(ctx, testProfile("CCH002"), false); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		if _, err := cached.UpdatePhase(ctx, "CCH002", phase.Rewarding); err != nil {
			t.Fatalf("UpdatePhase() error = %v", err)
		}

		got, err := cached.Get(ctx, "CCH002")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Phase != phase.Rewarding {
			t.Errorf("cached Phase = %s, want rewarding", got.Phase)
		}
		if backing.gets != 0 {
			t.Errorf("backing store saw %d reads after write-through, want 0", backing.gets)
		}
	})
}
