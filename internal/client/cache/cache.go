// Package cache is the durable local copy of remote collections, one entry
// per (owner, entity type). An entry always equals the last collection
// successfully fetched from the remote store; unconfirmed optimistic state is
// never persisted here.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/fintrack-app/fintrack-go/internal/client/cache/migrations"
	"github.com/fintrack-app/fintrack-go/internal/client/models"
	"github.com/fintrack-app/fintrack-go/internal/dbx"
	"github.com/fintrack-app/fintrack-go/internal/logging"
)

// Key addresses one cache entry. Using a struct instead of ad-hoc string
// concatenation keeps owners and entity types from ever colliding.
type Key struct {
	Owner string
	Type  models.EntityType
}

// String serializes the composite key for storage.
func (k Key) String() string {
	return fmt.Sprintf("fintrack:v1:%s:%s", k.Owner, k.Type)
}

// Cache reads and writes serialized collections in the local database.
// Reads are best-effort: a corrupt or undecryptable entry is treated as
// absent, never raised.
type Cache struct {
	db   dbx.DBTX
	log  logging.Logger
	aead aead
}

// Option customizes a Cache.
type Option func(*Cache) error

// WithEncryptionKey enables AES-GCM encryption of payloads at rest. The key
// must be a valid AES key length; see DeriveKey.
func WithEncryptionKey(key []byte) Option {
	return func(c *Cache) error {
		a, err := newAEAD(key)
		if err != nil {
			return fmt.Errorf("initializing cache cipher: %w", err)
		}
		c.aead = a
		return nil
	}
}

// New returns a Cache bound to db.
func New(db dbx.DBTX, log logging.Logger, opts ...Option) (*Cache, error) {
	c := &Cache{db: db, log: log}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Open opens (creating if needed) the cache database at dsn and applies
// migrations. The sqlite driver must be imported by the binary.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("migrating cache database: %w", err)
	}
	return db, nil
}

// Read loads the cached collection for k. A missing, corrupt or
// undecryptable entry yields (nil, false).
func Read[T any](ctx context.Context, c *Cache, k Key) ([]T, bool) {
	var payload []byte
	row := c.db.QueryRowContext(ctx, `SELECT payload FROM cache_entries WHERE cache_key = ?`, k.String())
	if err := row.Scan(&payload); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.log.Warn(ctx, "cache read failed, treating as absent", "key", k.String(), "error", err)
		}
		return nil, false
	}

	if c.aead != nil {
		plain, err := c.aead.open(payload)
		if err != nil {
			c.log.Warn(ctx, "cache entry undecryptable, treating as absent", "key", k.String(), "error", err)
			return nil, false
		}
		payload = plain
	}

	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		c.log.Warn(ctx, "cache entry corrupt, treating as absent", "key", k.String(), "error", err)
		return nil, false
	}
	return items, true
}

// Write overwrites the entry for k unconditionally. Last writer wins.
func Write[T any](ctx context.Context, c *Cache, k Key, items []T) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if c.aead != nil {
		if payload, err = c.aead.seal(payload); err != nil {
			return fmt.Errorf("encrypting cache entry: %w", err)
		}
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO cache_entries (cache_key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		k.String(), payload, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Clear removes the entry for k. Clearing a missing entry is not an error.
func (c *Cache) Clear(ctx context.Context, k Key) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`, k.String()); err != nil {
		return fmt.Errorf("clearing cache entry: %w", err)
	}
	return nil
}
