package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/kringlelabs/kringle/internal/phase"
	"github.com/kringlelabs/kringle/internal/storage"
)

// ErrNotFound is returned when no profile exists for a passcode.
var ErrNotFound = errors.New("profile not found")

// ErrAlreadyExists is returned by a conditional create when the passcode is taken.
var ErrAlreadyExists = errors.New("profile already exists")

// Store is the durable profile store.
type Store interface {
	// Get returns the profile for a passcode, or ErrNotFound.
	Get(ctx context.Context, passcode string) (*Profile, error)

	// Put writes a profile conditionally. With expectExists false it is an
	// insert-if-absent (ErrAlreadyExists on collision); with expectExists
	// true it is an update (ErrNotFound if missing).
	Put(ctx context.Context, p *Profile, expectExists bool) error

	// UpdatePhase persists a new phase value and returns the updated profile.
	UpdatePhase(ctx context.Context, passcode string, ph phase.Phase) (*Profile, error)

	// ClearProgress removes the recorded phase, returning the conversation
	// to unstarted. Returns the updated profile, or ErrNotFound.
	ClearProgress(ctx context.Context, passcode string) (*Profile, error)

	// List returns all profiles.
	List(ctx context.Context) ([]*Profile, error)
}

const profileKeyPrefix = "profile#"

func profileKey(passcode string) []byte {
	return []byte(profileKeyPrefix + passcode)
}

// BadgerStore implements Store on the embedded database. Conditional
// semantics come from running the existence check and the write inside a
// single transaction.
type BadgerStore struct {
	db *storage.DB
}

// NewBadgerStore creates a profile store over db.
func NewBadgerStore(db *storage.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Get(ctx context.Context, passcode string) (*Profile, error) {
	var p Profile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(passcode))
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			return json.Unmarshal(raw, &p)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, passcode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", passcode, err)
	}
	return &p, nil
}

func (s *BadgerStore) Put(ctx context.Context, p *Profile, expectExists bool) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, getErr := txn.Get(profileKey(p.Passcode))
		switch {
		case getErr == nil && !expectExists:
			return ErrAlreadyExists
		case errors.Is(getErr, badger.ErrKeyNotFound) && expectExists:
			return ErrNotFound
		case getErr != nil && !errors.Is(getErr, badger.ErrKeyNotFound):
			return getErr
		}
		return txn.Set(profileKey(p.Passcode), raw)
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s", err, p.Passcode)
		}
		return fmt.Errorf("failed to store profile %s: %w", p.Passcode, err)
	}
	return nil
}

func (s *BadgerStore) UpdatePhase(ctx context.Context, passcode string, ph phase.Phase) (*Profile, error) {
	return s.mutate(ctx, passcode, func(p *Profile) { p.Phase = ph })
}

func (s *BadgerStore) ClearProgress(ctx context.Context, passcode string) (*Profile, error) {
	return s.mutate(ctx, passcode, func(p *Profile) { p.Phase = phase.Unstarted })
}

// mutate applies fn to the stored profile inside one transaction.
func (s *BadgerStore) mutate(ctx context.Context, passcode string, fn func(*Profile)) (*Profile, error) {
	var p Profile
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(passcode))
		if err != nil {
			return err
		}
		if err := item.Value(func(raw []byte) error {
			return json.Unmarshal(raw, &p)
		}); err != nil {
			return err
		}

		fn(&p)
		raw, err := json.Marshal(&p)
		if err != nil {
			return err
		}
		return txn.Set(profileKey(passcode), raw)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, passcode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile %s: %w", passcode, err)
	}
	return &p, nil
}

func (s *BadgerStore) List(ctx context.Context) ([]*Profile, error) {
	var out []*Profile
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(profileKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var p Profile
			if err := it.Item().Value(func(raw []byte) error {
				return json.Unmarshal(raw, &p)
			}); err != nil {
				return err
			}
			out = append(out, &p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return out, nil
}
