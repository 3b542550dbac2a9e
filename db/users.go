// ABOUTME: User and permission record persistence
// ABOUTME: Permission records back the authorization gate
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/harperreed/taxdesk/kv"
	"github.com/harperreed/taxdesk/models"
)

// UserRepository stores user:<id> and user-permissions:<id>.
type UserRepository struct {
	store kv.Store
}

// NewUserRepository creates a new user repository.
func NewUserRepository(store kv.Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) Get(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := getJSON(ctx, r.store, UserKey(userID), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Put(ctx context.Context, u *models.User) error {
	return putJSON(ctx, r.store, UserKey(u.ID), u)
}

// List returns every user ordered by email.
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	entries, err := r.store.Scan(ctx, UserPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}

	users := make([]*models.User, 0, len(entries))
	for _, e := range entries {
		var u models.User
		if err := json.Unmarshal(e.Value, &u); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", e.Key, err)
		}
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool {
		return strings.ToLower(users[i].Email) < strings.ToLower(users[j].Email)
	})
	return users, nil
}

// FindByEmail looks a user up by email, case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
}

// Delete removes the user and its permission record together.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	return r.store.Update(ctx, func(tx kv.Txn) error {
		if err := tx.Delete(UserKey(userID)); err != nil {
			return err
		}
		return tx.Delete(PermissionsKey(userID))
	})
}

func (r *UserRepository) GetPermissions(ctx context.Context, userID string) (*models.UserPermissions, error) {
	var p models.UserPermissions
	if err := getJSON(ctx, r.store, PermissionsKey(userID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *UserRepository) PutPermissions(ctx context.Context, p *models.UserPermissions) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return putJSON(ctx, r.store, PermissionsKey(p.UserID), p)
}
