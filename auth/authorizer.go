// ABOUTME: Single authorization gate over the permission table
// ABOUTME: Bootstrap admin emails come from configuration only
package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/harperreed/taxdesk/models"
)

// PermissionStore loads permission records.
type PermissionStore interface {
	GetPermissions(ctx context.Context, userID string) (*models.UserPermissions, error)
}

// Access is a principal's effective role and modules.
type Access struct {
	UserID  string   `json:"userId"`
	Email   string   `json:"email"`
	Role    string   `json:"role"`
	Modules []string `json:"modules"`
	IsAdmin bool     `json:"isAdmin"`
}

// Has reports whether the access grants module.
func (a *Access) Has(module string) bool {
	if a.IsAdmin {
		return true
	}
	for _, m := range a.Modules {
		if strings.EqualFold(m, module) {
			return true
		}
	}
	return false
}

// Authorizer resolves what a principal may do.
type Authorizer struct {
	perms  PermissionStore
	admins map[string]bool
}

// NewAuthorizer creates an authorizer. bootstrapAdmins are emails treated as
// admins even without a permission record.
func NewAuthorizer(perms PermissionStore, bootstrapAdmins []string) *Authorizer {
	admins := make(map[string]bool, len(bootstrapAdmins))
	for _, e := range bootstrapAdmins {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = true
		}
	}
	return &Authorizer{perms: perms, admins: admins}
}

// IsBootstrapAdmin reports whether email is on the configured admin list.
func (a *Authorizer) IsBootstrapAdmin(email string) bool {
	return a.admins[strings.ToLower(strings.TrimSpace(email))]
}

// Access resolves the principal's effective role. A user without a
// permission record is a client.
func (a *Authorizer) Access(ctx context.Context, p Principal) (*Access, error) {
	access := &Access{UserID: p.UserID, Email: p.Email, Role: models.RoleClient, Modules: []string{}}

	perms, err := a.perms.GetPermissions(ctx, p.UserID)
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	default:
		access.Role = perms.Role
		if perms.Role == models.RoleStaff {
			access.Modules = append(access.Modules, perms.Modules...)
		}
	}

	if access.Role == models.RoleAdmin || a.IsBootstrapAdmin(p.Email) {
		access.Role = models.RoleAdmin
		access.IsAdmin = true
		access.Modules = append([]string(nil), models.AllModules...)
	}
	sort.Strings(access.Modules)
	return access, nil
}

// IsAdmin reports whether the principal is an administrator.
func (a *Authorizer) IsAdmin(ctx context.Context, p Principal) (bool, error) {
	access, err := a.Access(ctx, p)
	if err != nil {
		return false, err
	}
	return access.IsAdmin, nil
}

// CanAccess reports whether the principal may use module.
func (a *Authorizer) CanAccess(ctx context.Context, p Principal, module string) (bool, error) {
	access, err := a.Access(ctx, p)
	if err != nil {
		return false, err
	}
	return access.Has(module), nil
}

// RequireModule returns ErrForbidden unless the principal may use module.
func (a *Authorizer) RequireModule(ctx context.Context, p Principal, module string) error {
	ok, err := a.CanAccess(ctx, p, module)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s access required", models.ErrForbidden, module)
	}
	return nil
}

// RequireAdmin returns ErrForbidden unless the principal is an admin.
func (a *Authorizer) RequireAdmin(ctx context.Context, p Principal) error {
	ok, err := a.IsAdmin(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: admin access required", models.ErrForbidden)
	}
	return nil
}
