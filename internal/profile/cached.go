package profile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/kringlelabs/kringle/internal/cache"
	"github.com/kringlelabs/kringle/internal/phase"
)

// CachedStore is a read-through, write-through layer over Store. The backing
// store is the source of truth; the cache holds a snapshot with the shared
// conversation TTL so repeat turns in one chat avoid store reads. Every
// mutation refreshes the snapshot in the same operation so the next turn
// never observes a stale phase.
type CachedStore struct {
	store  Store
	cache  *cache.Cache
	logger *slog.Logger
}

// NewCachedStore wraps store with the snapshot cache.
func NewCachedStore(store Store, c *cache.Cache, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{store: store, cache: c, logger: logger}
}

// Get returns the profile for a passcode, preferring the cached snapshot.
// A cache miss falls through to the store and refills the snapshot.
func (s *CachedStore) Get(ctx context.Context, passcode string) (*Profile, error) {
	raw, err := s.cache.Get(ctx, SnapshotKey(passcode))
	if err == nil {
		var p Profile
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return &p, nil
		}
		// A corrupt snapshot is repaired by falling through to the store.
		s.logger.Warn("corrupt profile snapshot, refetching", "passcode", passcode)
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("profile snapshot read failed, falling back to store",
			"passcode", passcode, "error", err)
	}

	p, err := s.store.Get(ctx, passcode)
	if err != nil {
		return nil, err
	}
	s.refresh(ctx, p)
	return p, nil
}

// Put writes through to the store and refreshes the snapshot.
func (s *CachedStore) Put(ctx context.Context, p *Profile, expectExists bool) error {
	if err := s.store.Put(ctx, p, expectExists); err != nil {
		return err
	}
	s.refresh(ctx, p)
	return nil
}

// UpdatePhase persists the new phase and refreshes the snapshot in the same
// operation so subsequent turns observe the transition without a stale read.
func (s *CachedStore) UpdatePhase(ctx context.Context, passcode string, ph phase.Phase) (*Profile, error) {
	p, err := s.store.UpdatePhase(ctx, passcode, ph)
	if err != nil {
		return nil, err
	}
	s.refresh(ctx, p)
	return p, nil
}

// ClearProgress resets the conversation to unstarted and refreshes the
// snapshot. Deleting the cached histories is a chat concern left to the caller.
func (s *CachedStore) ClearProgress(ctx context.Context, passcode string) (*Profile, error) {
	p, err := s.store.ClearProgress(ctx, passcode)
	if err != nil {
		return nil, err
	}
	s.refresh(ctx, p)
	return p, nil
}

// List proxies to the store. Listing is an admin operation; it skips the cache.
func (s *CachedStore) List(ctx context.Context) ([]*Profile, error) {
	return s.store.List(ctx)
}

func (s *CachedStore) refresh(ctx context.Context, p *Profile) {
	raw, err := json.Marshal(p)
	if err != nil {
		s.logger.Error("failed to encode profile snapshot", "passcode", p.Passcode, "error", err)
		return
	}
	if err := s.cache.Set(ctx, SnapshotKey(p.Passcode), raw); err != nil {
		// Snapshot refresh is best effort; the store remains authoritative,
		// but log it since a stale phase read becomes possible.
		s.logger.Warn("failed to refresh profile snapshot", "passcode", p.Passcode, "error", err)
	}
}

var _ Store = (*CachedStore)(nil)
