// ABOUTME: Lead persistence over the key-value store
// ABOUTME: Updates run read-modify-write inside one store transaction
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/harperreed/taxdesk/kv"
	"github.com/harperreed/taxdesk/models"
)

// LeadRepository stores leads under crm-lead:<id>.
type LeadRepository struct {
	store kv.Store
}

// NewLeadRepository creates a new lead repository.
func NewLeadRepository(store kv.Store) *LeadRepository {
	return &LeadRepository{store: store}
}

// List returns every lead, newest created first.
func (r *LeadRepository) List(ctx context.Context) ([]*models.Lead, error) {
	entries, err := r.store.Scan(ctx, LeadPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan leads: %w", err)
	}

	leads := make([]*models.Lead, 0, len(entries))
	for _, e := range entries {
		var lead models.Lead
		if err := json.Unmarshal(e.Value, &lead); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", e.Key, err)
		}
		leads = append(leads, &lead)
	}

	sort.SliceStable(leads, func(i, j int) bool {
		return leads[i].CreatedAt.After(leads[j].CreatedAt)
	})
	return leads, nil
}

// Get retrieves a lead by ID.
func (r *LeadRepository) Get(ctx context.Context, id string) (*models.Lead, error) {
	var lead models.Lead
	if err := getJSON(ctx, r.store, LeadKey(id), &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// Put writes a lead unconditionally.
func (r *LeadRepository) Put(ctx context.Context, lead *models.Lead) error {
	return putJSON(ctx, r.store, LeadKey(lead.ID), lead)
}

// Update loads the lead, applies fn, and writes it back atomically.
func (r *LeadRepository) Update(ctx context.Context, id string, fn func(*models.Lead) error) (*models.Lead, error) {
	var result *models.Lead
	err := r.store.Update(ctx, func(tx kv.Txn) error {
		var lead models.Lead
		if err := getJSONTx(tx, LeadKey(id), &lead); err != nil {
			return err
		}
		if err := fn(&lead); err != nil {
			return err
		}
		if err := putJSONTx(tx, LeadKey(id), &lead); err != nil {
			return err
		}
		result = &lead
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a lead. Missing leads are not an error.
func (r *LeadRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, LeadKey(id)); err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	return nil
}
