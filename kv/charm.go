// ABOUTME: Charm KV backend with automatic sync to a charm server
// ABOUTME: Serializes transactions with a mutex since charm exposes no txn API
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	charmkv "github.com/charmbracelet/charm/kv"
	"github.com/dgraph-io/badger/v3"
)

const (
	// DefaultCharmHost is the self-hosted 2389 research server.
	DefaultCharmHost = "charm.2389.dev"

	// CharmAppName is the charm KV database name.
	CharmAppName = "taxdesk"
)

// CharmOptions configures the charm backend.
type CharmOptions struct {
	Host     string
	AutoSync bool
}

// CharmStore wraps charm KV; every committed write is synced when AutoSync is on.
type CharmStore struct {
	db       *charmkv.KV
	autoSync bool
	mu       sync.RWMutex
}

// OpenCharm opens the charm KV database for this application.
func OpenCharm(opts CharmOptions) (*CharmStore, error) {
	host := opts.Host
	if host == "" {
		host = DefaultCharmHost
	}

	// Set charm host before opening KV
	_ = os.Setenv("CHARM_HOST", host)

	db, err := charmkv.OpenWithDefaults(CharmAppName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}

	s := &CharmStore{db: db, autoSync: opts.AutoSync}

	// Sync on startup to pull remote changes
	if opts.AutoSync {
		_ = db.Sync()
	}

	return s, nil
}

func (s *CharmStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(key)
}

func (s *CharmStore) get(key string) ([]byte, error) {
	v, err := s.db.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *CharmStore) Set(ctx context.Context, key string, value []byte) error {
	return s.Update(ctx, func(tx Txn) error { return tx.Set(key, value) })
}

func (s *CharmStore) Delete(ctx context.Context, key string) error {
	return s.Update(ctx, func(tx Txn) error { return tx.Delete(key) })
}

func (s *CharmStore) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.db.Keys()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, k := range keys {
		if !hasPrefix(k, prefix) {
			continue
		}
		v, err := s.get(string(k))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: string(k), Value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Update stages writes in memory and applies them once fn succeeds.
// A crash part-way through applying leaves earlier writes in place.
func (s *CharmStore) Update(ctx context.Context, fn func(tx Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &stagedTxn{read: s.get, writes: map[string]*[]byte{}}
	if err := fn(tx); err != nil {
		return err
	}

	for _, key := range tx.order {
		v := tx.writes[key]
		var err error
		if v == nil {
			err = s.db.Delete([]byte(key))
		} else {
			err = s.db.Set([]byte(key), *v)
		}
		if err != nil {
			return fmt.Errorf("failed to apply write for %s: %w", key, err)
		}
	}

	// Sync while still holding lock to avoid race condition
	if s.autoSync && len(tx.order) > 0 {
		_ = s.db.Sync()
	}
	return nil
}

// Sync performs a manual sync with the charm server.
func (s *CharmStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Sync()
}

// Close is a no-op: charm/kv cleans up its BadgerDB on process exit.
func (s *CharmStore) Close() error {
	return nil
}

// stagedTxn buffers writes; a nil entry in writes marks a delete.
type stagedTxn struct {
	read   func(key string) ([]byte, error)
	writes map[string]*[]byte
	order  []string
}

func (t *stagedTxn) Get(key string) ([]byte, error) {
	if v, ok := t.writes[key]; ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return append([]byte(nil), (*v)...), nil
	}
	return t.read(key)
}

func (t *stagedTxn) Set(key string, value []byte) error {
	v := append([]byte(nil), value...)
	t.record(key, &v)
	return nil
}

func (t *stagedTxn) Delete(key string) error {
	t.record(key, nil)
	return nil
}

func (t *stagedTxn) record(key string, v *[]byte) {
	if _, seen := t.writes[key]; !seen {
		t.order = append(t.order, key)
	}
	t.writes[key] = v
}
