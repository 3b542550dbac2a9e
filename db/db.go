// ABOUTME: Store opening and the repository bundle built on top of it
// ABOUTME: Resolves the default badger directory under the XDG data home
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/harperreed/taxdesk/kv"
	"github.com/harperreed/taxdesk/models"
)

// DefaultStorePath returns the badger directory used when none is configured.
func DefaultStorePath() string {
	return filepath.Join(xdg.DataHome, "taxdesk", "store")
}

// OpenStore opens the configured backend, filling in the default badger path.
func OpenStore(opts kv.Options) (kv.Store, error) {
	if opts.Path == "" && (opts.Backend == "" || opts.Backend == kv.BackendBadger) {
		opts.Path = DefaultStorePath()
	}
	if opts.Path == "" && opts.Backend == kv.BackendSQLite {
		opts.Path = filepath.Join(xdg.DataHome, "taxdesk", "taxdesk.db")
	}
	return kv.Open(opts)
}

// Repositories groups every repository over one store.
type Repositories struct {
	Store    kv.Store
	Leads    *LeadRepository
	Invoices *InvoiceRepository
	Users    *UserRepository
	Filings  *FilingRepository
	Profiles *ProfileRepository
}

// New builds the repositories for store.
func New(store kv.Store) *Repositories {
	return &Repositories{
		Store:    store,
		Leads:    NewLeadRepository(store),
		Invoices: NewInvoiceRepository(store),
		Users:    NewUserRepository(store),
		Filings:  NewFilingRepository(store),
		Profiles: NewProfileRepository(store),
	}
}

func getJSON(ctx context.Context, store kv.Store, key string, v any) error {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("%s: %w", key, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func getJSONTx(tx kv.Txn, key string, v any) error {
	raw, err := tx.Get(key)
	if errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("%s: %w", key, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func putJSONTx(tx kv.Txn, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return tx.Set(key, raw)
}

func putJSON(ctx context.Context, store kv.Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, kv.ErrNotFound) {
		return models.ErrNotFound
	}
	return err
}
