// ABOUTME: User and permission records used by the authorization gate
// ABOUTME: Roles are admin, staff, and client; staff access is per module
package models

import (
	"strings"
	"time"
)

// Roles.
const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleClient = "client"
)

// Modules a staff member may be granted.
const (
	ModuleCRM      = "crm"
	ModuleInvoices = "invoices"
	ModuleUsers    = "users"
)

// AllModules lists every grantable module.
var AllModules = []string{ModuleCRM, ModuleInvoices, ModuleUsers}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserPermissions struct {
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Modules   []string  `json:"modules"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

// Validate checks the role and module names.
func (p *UserPermissions) Validate() error {
	switch p.Role {
	case RoleAdmin, RoleStaff, RoleClient:
	default:
		return Invalid("unknown role %q", p.Role)
	}
	for _, m := range p.Modules {
		if !IsValidModule(m) {
			return Invalid("unknown module %q", m)
		}
	}
	return nil
}

// HasModule reports whether the record grants module.
func (p *UserPermissions) HasModule(module string) bool {
	for _, m := range p.Modules {
		if strings.EqualFold(m, module) {
			return true
		}
	}
	return false
}

// IsValidModule reports whether m is a grantable module.
func IsValidModule(m string) bool {
	for _, known := range AllModules {
		if m == known {
			return true
		}
	}
	return false
}
