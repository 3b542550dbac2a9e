// ABOUTME: Raw access to free-form user profile documents
// ABOUTME: Profiles are kept as JSON bytes so unknown fields survive rewrites
package db

import (
	"context"
	"fmt"

	"github.com/harperreed/taxdesk/kv"
)

// ProfileRepository stores profile:<userId> documents verbatim.
type ProfileRepository struct {
	store kv.Store
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(store kv.Store) *ProfileRepository {
	return &ProfileRepository{store: store}
}

// Get returns the raw profile document.
func (r *ProfileRepository) Get(ctx context.Context, userID string) ([]byte, error) {
	raw, err := r.store.Get(ctx, ProfileKey(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", userID, mapNotFound(err))
	}
	return raw, nil
}

// Put replaces the raw profile document.
func (r *ProfileRepository) Put(ctx context.Context, userID string, raw []byte) error {
	if err := r.store.Set(ctx, ProfileKey(userID), raw); err != nil {
		return fmt.Errorf("failed to write profile %s: %w", userID, err)
	}
	return nil
}

// UserIDs lists every user that has a profile.
func (r *ProfileRepository) UserIDs(ctx context.Context) ([]string, error) {
	entries, err := r.store.Scan(ctx, ProfilePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan profiles: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if id, ok := trimKey(e.Key, ProfilePrefix); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
