// ABOUTME: Lead MCP tool handlers
// ABOUTME: Implements list_leads, get_lead, create_lead, update_lead, add_lead_activity, and lead_stats
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/taxdesk/crm"
	"github.com/harperreed/taxdesk/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultAuthor is recorded on activities created through MCP.
const DefaultAuthor = "mcp"

type LeadHandlers struct {
	crm    *crm.Service
	author string
}

func NewLeadHandlers(service *crm.Service, author string) *LeadHandlers {
	if author == "" {
		author = DefaultAuthor
	}
	return &LeadHandlers{crm: service, author: author}
}

type ActivityOutput struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Author      string `json:"author"`
	CreatedAt   string `json:"created_at"`
}

type LeadOutput struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Email          string           `json:"email,omitempty"`
	Phone          string           `json:"phone,omitempty"`
	Company        string           `json:"company,omitempty"`
	ContactMethod  string           `json:"contact_method"`
	Status         string           `json:"status"`
	EstimatedValue float64          `json:"estimated_value"`
	QuoteSent      bool             `json:"quote_sent"`
	ClosedDate     string           `json:"closed_date,omitempty"`
	LostReason     string           `json:"lost_reason,omitempty"`
	NextStatuses   []string         `json:"next_statuses"`
	Activities     []ActivityOutput `json:"activities,omitempty"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
}

type ListLeadsInput struct {
	Status   string `json:"status,omitempty" jsonschema:"Only leads with this status: new, contacted, quote-sent, negotiating, won, lost"`
	OpenOnly bool   `json:"open_only,omitempty" jsonschema:"Only leads that are neither won nor lost"`
	Query    string `json:"query,omitempty" jsonschema:"Case-insensitive match on name, email, or company"`
}

type ListLeadsOutput struct {
	Leads []LeadOutput `json:"leads"`
	Count int          `json:"count"`
}

func (h *LeadHandlers) ListLeads(ctx context.Context, _ *mcp.CallToolRequest, input ListLeadsInput) (*mcp.CallToolResult, ListLeadsOutput, error) {
	if input.Status != "" && !models.IsValidLeadStatus(input.Status) {
		return nil, ListLeadsOutput{}, fmt.Errorf("invalid status: %s (valid: %s)", input.Status, strings.Join(models.LeadStatuses, ", "))
	}

	leads, err := h.crm.List(ctx)
	if err != nil {
		return nil, ListLeadsOutput{}, fmt.Errorf("failed to list leads: %w", err)
	}

	query := strings.ToLower(strings.TrimSpace(input.Query))
	out := ListLeadsOutput{Leads: []LeadOutput{}}
	for _, l := range leads {
		if input.Status != "" && l.Status != input.Status {
			continue
		}
		if input.OpenOnly && !l.IsOpen() {
			continue
		}
		if query != "" && !matchesLead(l, query) {
			continue
		}
		summary := leadToOutput(l)
		summary.Activities = nil
		out.Leads = append(out.Leads, summary)
	}
	out.Count = len(out.Leads)
	return nil, out, nil
}

func matchesLead(l *models.Lead, query string) bool {
	for _, field := range []string{l.Name, l.Email, l.Company} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

type GetLeadInput struct {
	ID string `json:"id" jsonschema:"Lead ID (required)"`
}

func (h *LeadHandlers) GetLead(ctx context.Context, _ *mcp.CallToolRequest, input GetLeadInput) (*mcp.CallToolResult, LeadOutput, error) {
	if input.ID == "" {
		return nil, LeadOutput{}, fmt.Errorf("id is required")
	}
	lead, err := h.crm.Get(ctx, input.ID)
	if err != nil {
		return nil, LeadOutput{}, err
	}
	return nil, leadToOutput(lead), nil
}

type CreateLeadInput struct {
	Name           string  `json:"name" jsonschema:"Lead name (required)"`
	Email          string  `json:"email,omitempty" jsonschema:"Email address"`
	Phone          string  `json:"phone,omitempty" jsonschema:"Phone number"`
	Company        string  `json:"company,omitempty" jsonschema:"Company name"`
	ContactMethod  string  `json:"contact_method,omitempty" jsonschema:"How the lead reached us: email, whatsapp, phone, form, referral, linkedin, instagram, other"`
	EstimatedValue float64 `json:"estimated_value,omitempty" jsonschema:"Estimated value in dollars, e.g. 499.99"`
	Notes          string  `json:"notes,omitempty" jsonschema:"Free-form notes"`
	Source         string  `json:"source,omitempty" jsonschema:"Lead source"`
}

func (h *LeadHandlers) CreateLead(ctx context.Context, _ *mcp.CallToolRequest, input CreateLeadInput) (*mcp.CallToolResult, LeadOutput, error) {
	lead, err := h.crm.Create(ctx, models.LeadInput{
		Name:           input.Name,
		Email:          input.Email,
		Phone:          input.Phone,
		Company:        input.Company,
		ContactMethod:  input.ContactMethod,
		EstimatedValue: models.Cents(input.EstimatedValue),
		Notes:          input.Notes,
		Source:         input.Source,
	}, h.author)
	if err != nil {
		return nil, LeadOutput{}, err
	}
	return nil, leadToOutput(lead), nil
}

type UpdateLeadInput struct {
	ID             string   `json:"id" jsonschema:"Lead ID (required)"`
	Status         string   `json:"status,omitempty" jsonschema:"New status; must be reachable from the current one"`
	EstimatedValue *float64 `json:"estimated_value,omitempty" jsonschema:"Updated estimated value in dollars"`
	QuoteSent      *bool    `json:"quote_sent,omitempty" jsonschema:"Mark that a quote was sent"`
	LostReason     string   `json:"lost_reason,omitempty" jsonschema:"Why the lead was lost"`
	Notes          *string  `json:"notes,omitempty" jsonschema:"Replace the notes"`
	AssignedTo     string   `json:"assigned_to,omitempty" jsonschema:"Staff member responsible"`
}

func (h *LeadHandlers) UpdateLead(ctx context.Context, _ *mcp.CallToolRequest, input UpdateLeadInput) (*mcp.CallToolResult, LeadOutput, error) {
	if input.ID == "" {
		return nil, LeadOutput{}, fmt.Errorf("id is required")
	}

	patch := models.LeadPatch{
		QuoteSent: input.QuoteSent,
		Notes:     input.Notes,
	}
	if input.EstimatedValue != nil {
		cents := models.Cents(*input.EstimatedValue)
		patch.EstimatedValue = &cents
	}
	if input.Status != "" {
		patch.Status = &input.Status
	}
	if input.LostReason != "" {
		patch.LostReason = &input.LostReason
	}
	if input.AssignedTo != "" {
		patch.AssignedTo = &input.AssignedTo
	}

	lead, err := h.crm.Update(ctx, input.ID, patch, h.author)
	if err != nil {
		return nil, LeadOutput{}, err
	}
	return nil, leadToOutput(lead), nil
}

type AddLeadActivityInput struct {
	ID          string `json:"id" jsonschema:"Lead ID (required)"`
	Type        string `json:"type,omitempty" jsonschema:"Activity type: note, call, email, meeting, quote, status-change (default note)"`
	Description string `json:"description" jsonschema:"What happened (required)"`
}

func (h *LeadHandlers) AddLeadActivity(ctx context.Context, _ *mcp.CallToolRequest, input AddLeadActivityInput) (*mcp.CallToolResult, LeadOutput, error) {
	if input.ID == "" {
		return nil, LeadOutput{}, fmt.Errorf("id is required")
	}
	lead, err := h.crm.AddActivity(ctx, input.ID, models.ActivityInput{Type: input.Type, Description: input.Description}, h.author)
	if err != nil {
		return nil, LeadOutput{}, err
	}
	return nil, leadToOutput(lead), nil
}

type LeadStatsInput struct{}

type LeadStatsOutput struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"by_status"`
	ByContactMethod map[string]int `json:"by_contact_method"`
	ConversionRate  int            `json:"conversion_rate"`
	TotalValue      float64        `json:"total_value"`
	PipelineValue   float64        `json:"pipeline_value"`
}

func (h *LeadHandlers) LeadStats(ctx context.Context, _ *mcp.CallToolRequest, _ LeadStatsInput) (*mcp.CallToolResult, LeadStatsOutput, error) {
	stats, err := h.crm.Stats(ctx)
	if err != nil {
		return nil, LeadStatsOutput{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	return nil, LeadStatsOutput{
		Total:           stats.Total,
		ByStatus:        stats.ByStatus,
		ByContactMethod: stats.ByContactMethod,
		ConversionRate:  stats.ConversionRate,
		TotalValue:      models.MajorUnits(stats.TotalValue),
		PipelineValue:   models.MajorUnits(stats.PipelineValue),
	}, nil
}

func leadToOutput(l *models.Lead) LeadOutput {
	out := LeadOutput{
		ID:             l.ID,
		Name:           l.Name,
		Email:          l.Email,
		Phone:          l.Phone,
		Company:        l.Company,
		ContactMethod:  l.ContactMethod,
		Status:         l.Status,
		EstimatedValue: models.MajorUnits(l.EstimatedValue),
		QuoteSent:      l.QuoteSent,
		LostReason:     l.LostReason,
		NextStatuses:   models.NextLeadStatuses(l.Status),
		CreatedAt:      l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      l.UpdatedAt.Format(time.RFC3339),
	}
	if out.NextStatuses == nil {
		out.NextStatuses = []string{}
	}
	if l.ClosedDate != nil {
		out.ClosedDate = l.ClosedDate.Format(time.RFC3339)
	}
	for _, a := range l.Activities {
		out.Activities = append(out.Activities, ActivityOutput{
			ID:          a.ID,
			Type:        a.Type,
			Description: a.Description,
			Author:      a.Author,
			CreatedAt:   a.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
