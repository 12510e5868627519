// Package storage opens and manages the embedded BadgerDB instance that backs
// both the profile store and the conversation cache. A single DB handle is
// shared; callers partition the keyspace with their own prefixes.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds BadgerDB settings.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory is set.
	Path string

	// InMemory runs the database without disk persistence. Used by tests.
	InMemory bool

	// SyncWrites forces fsync on every write.
	SyncWrites bool

	// GCInterval is how often value-log garbage collection runs.
	// Zero disables GC.
	GCInterval time.Duration

	// Logger receives BadgerDB's internal log output. Nil silences it.
	Logger *slog.Logger
}

// DefaultConfig returns production settings.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
		GCInterval: 5 * time.Minute,
	}
}

// TestConfig returns in-memory settings for tests.
func TestConfig() Config {
	return Config{InMemory: true}
}

// DB wraps a badger handle with its GC loop.
type DB struct {
	*badger.DB
	cancel context.CancelFunc
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", cfg.Path, err)
	}

	d := &DB{DB: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		ctx, cancel := context.WithCancel(context.Background())
		d.cancel = cancel
		go d.runGC(ctx, cfg.GCInterval)
	}
	return d, nil
}

// Close stops GC and closes the database.
func (d *DB) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	return d.DB.Close()
}

// runGC periodically reclaims value-log space. Badger returns ErrNoRewrite
// when there is nothing to collect; that is not an error condition.
func (d *DB) runGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				if err := d.RunValueLogGC(0.5); err != nil {
					break
				}
			}
		}
	}
}

// badgerLogger adapts slog to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
