// Package cache provides the expiring key-value and list storage that holds
// conversation history and profile snapshots. Entries carry a time-to-live;
// an expired or absent entry surfaces as ErrMiss, which callers treat as a
// degraded-context condition rather than a failure.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/kringlelabs/kringle/internal/storage"
)

// ErrMiss is returned when a key is absent or its TTL has lapsed.
var ErrMiss = errors.New("cache miss")

// DefaultTTL matches the conversation history lifetime: a chat that has been
// idle for four hours starts over with empty context.
const DefaultTTL = 4 * time.Hour

// Cache is a badger-backed expiring store. Lists are stored as JSON arrays
// under a single key so an append is atomic within one transaction.
type Cache struct {
	db  *storage.DB
	ttl time.Duration
}

// New creates a Cache over db. A zero ttl uses DefaultTTL.
func New(db *storage.DB, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{db: db, ttl: ttl}
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) key(k string) []byte {
	return []byte("cache#" + k)
}

// Get returns the raw value at key, or ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMiss, key)
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	return out, nil
}

// Set stores value at key with the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(c.key(key), value).WithTTL(c.ttl))
	})
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(c.key(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// FetchList returns the list stored at key, or ErrMiss.
func (c *Cache) FetchList(ctx context.Context, key string) ([]string, error) {
	raw, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var entries []string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("cache list %s corrupt: %w", key, err)
	}
	return entries, nil
}

// AppendList appends entries to the list at key, creating it if absent.
// The write refreshes the TTL so an active conversation never expires
// mid-exchange.
func (c *Cache) AppendList(ctx context.Context, key string, entries ...string) error {
	return c.AppendLists(ctx, ListAppend{Key: key, Entries: entries})
}

// ListAppend names one list-append operation for AppendLists.
type ListAppend struct {
	Key     string
	Entries []string
}

// AppendLists applies several list appends in a single transaction. The turn
// orchestrator uses this to keep the prompt history and the display history
// from diverging: either both appends land or neither does.
func (c *Cache) AppendLists(ctx context.Context, appends ...ListAppend) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		for _, ap := range appends {
			if len(ap.Entries) == 0 {
				continue
			}
			var list []string
			item, err := txn.Get(c.key(ap.Key))
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				// New list.
			case err != nil:
				return err
			default:
				raw, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(raw, &list); err != nil {
					return fmt.Errorf("cache list %s corrupt: %w", ap.Key, err)
				}
			}

			list = append(list, ap.Entries...)
			raw, err := json.Marshal(list)
			if err != nil {
				return err
			}
			if err := txn.SetEntry(badger.NewEntry(c.key(ap.Key), raw).WithTTL(c.ttl)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache append: %w", err)
	}
	return nil
}
