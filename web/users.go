// ABOUTME: User directory and permission management handlers
// ABOUTME: Reading users needs the users module; changing roles needs admin
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/harperreed/taxdesk/auth"
	"github.com/harperreed/taxdesk/models"
)

type userView struct {
	*models.User
	Role    string   `json:"role"`
	Modules []string `json:"modules"`
}

type permissionsRequest struct {
	Role    string   `json:"role"`
	Modules []string `json:"modules"`
}

// ensureUser returns the caller's user record, creating it from the token
// claims on first sight.
func (s *Server) ensureUser(ctx context.Context, p auth.Principal) (*models.User, error) {
	u, err := s.Repos.Users.Get(ctx, p.UserID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	u = &models.User{ID: p.UserID, Email: p.Email, Name: p.Email, CreatedAt: s.now()}
	if err := s.Repos.Users.Put(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", p.UserID, err)
	}
	return u, nil
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	user, err := s.ensureUser(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	access, err := s.Authz.Access(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "access": access})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.Repos.Users.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		v, err := s.viewUser(r.Context(), u)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": views})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.Repos.Users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.viewUser(r.Context(), u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": v})
}

func (s *Server) viewUser(ctx context.Context, u *models.User) (userView, error) {
	access, err := s.Authz.Access(ctx, auth.Principal{UserID: u.ID, Email: u.Email})
	if err != nil {
		return userView{}, err
	}
	return userView{User: u, Role: access.Role, Modules: access.Modules}, nil
}

func (s *Server) handlePutPermissions(w http.ResponseWriter, r *http.Request) {
	var req permissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.Repos.Users.Get(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	modules := make([]string, 0, len(req.Modules))
	for _, m := range req.Modules {
		modules = append(modules, strings.ToLower(strings.TrimSpace(m)))
	}
	perms := &models.UserPermissions{
		UserID:    id,
		Role:      strings.ToLower(strings.TrimSpace(req.Role)),
		Modules:   modules,
		UpdatedAt: s.now(),
		UpdatedBy: author(r),
	}
	if err := s.Repos.Users.PutPermissions(r.Context(), perms); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Log.Info().Str("user_id", id).Str("role", perms.Role).Strs("modules", perms.Modules).Str("by", perms.UpdatedBy).Msg("permissions updated")
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == principal(r).UserID {
		s.writeError(w, r, models.Invalid("cannot delete your own account"))
		return
	}
	if err := s.Repos.Users.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Log.Info().Str("user_id", id).Str("by", author(r)).Msg("user deleted")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
