// ABOUTME: CRM lead handlers: list, detail, create, update, activities, stats
// ABOUTME: The caller's email is recorded as the author of every activity
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/harperreed/taxdesk/models"
)

func author(r *http.Request) string {
	p := principal(r)
	if p.Email != "" {
		return p.Email
	}
	return p.UserID
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := s.CRM.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if leads == nil {
		leads = []*models.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.CRM.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lead": lead})
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var input models.LeadInput
	if err := decodeJSON(w, r, &input); err != nil {
		s.writeError(w, r, err)
		return
	}
	lead, err := s.CRM.Create(r.Context(), input, author(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"lead": lead})
}

func (s *Server) handleUpdateLead(w http.ResponseWriter, r *http.Request) {
	var patch models.LeadPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	lead, err := s.CRM.Update(r.Context(), chi.URLParam(r, "id"), patch, author(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lead": lead})
}

func (s *Server) handleAddActivity(w http.ResponseWriter, r *http.Request) {
	var input models.ActivityInput
	if err := decodeJSON(w, r, &input); err != nil {
		s.writeError(w, r, err)
		return
	}
	lead, err := s.CRM.AddActivity(r.Context(), chi.URLParam(r, "id"), input, author(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"lead": lead})
}

func (s *Server) handleDeleteLead(w http.ResponseWriter, r *http.Request) {
	if err := s.CRM.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleLeadStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.CRM.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}
