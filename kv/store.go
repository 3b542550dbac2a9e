// ABOUTME: Key-value store abstraction shared by every repository
// ABOUTME: Defines Store/Txn interfaces, prefix scans, and atomic counters
package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("key not found")

// Entry is a single key/value pair returned by Scan.
type Entry struct {
	Key   string
	Value []byte
}

// Txn is the view of the store available inside an Update callback.
// Writes become visible to other callers only when the callback returns nil.
type Txn interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Store is an opaque persistent map keyed by string.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Scan returns every entry whose key starts with prefix, ordered by key.
	Scan(ctx context.Context, prefix string) ([]Entry, error)
	// Update runs fn inside a transaction. fn may be invoked more than once
	// when the backend retries on conflict, so it must not have side effects
	// outside the transaction.
	Update(ctx context.Context, fn func(tx Txn) error) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendBadger = "badger"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendCharm  = "charm"
)

// Options configures Open.
type Options struct {
	Backend   string
	Path      string
	CharmHost string
	AutoSync  bool
}

// Open returns a Store for the configured backend.
func Open(opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendBadger:
		return OpenBadger(opts.Path)
	case BackendMemory:
		return OpenBadger("")
	case BackendSQLite:
		return OpenSQLite(opts.Path)
	case BackendCharm:
		return OpenCharm(CharmOptions{Host: opts.CharmHost, AutoSync: opts.AutoSync})
	default:
		return nil, fmt.Errorf("unknown store backend: %s", opts.Backend)
	}
}

// Increment atomically adds one to the integer stored at key and returns the
// new value. A missing key counts as zero.
func Increment(ctx context.Context, s Store, key string) (int64, error) {
	var next int64
	err := s.Update(ctx, func(tx Txn) error {
		n, err := IncrementTx(tx, key)
		if err != nil {
			return err
		}
		next = n
		return nil
	})
	return next, err
}

// IncrementTx is Increment for callers already inside a transaction.
func IncrementTx(tx Txn, key string) (int64, error) {
	var current int64
	raw, err := tx.Get(key)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return 0, err
	default:
		current, err = strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("counter %s holds non-integer value: %w", key, err)
		}
	}

	next := current + 1
	if err := tx.Set(key, []byte(strconv.FormatInt(next, 10))); err != nil {
		return 0, err
	}
	return next, nil
}

func hasPrefix(key []byte, prefix string) bool {
	return len(key) >= len(prefix) && string(key[:len(prefix)]) == prefix
}
