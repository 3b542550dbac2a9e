// ABOUTME: Lead repository service for the sales pipeline
// ABOUTME: Create, update, activity logging, deletion, and pipeline stats
package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/taxdesk/db"
	"github.com/harperreed/taxdesk/metrics"
	"github.com/harperreed/taxdesk/models"
	"github.com/rs/zerolog"
)

// Service implements lead operations over the lead repository.
type Service struct {
	leads   *db.LeadRepository
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records lead counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a lead service.
func NewService(leads *db.LeadRepository, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		leads: leads,
		log:   log.With().Str("component", "crm").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every lead, newest first.
func (s *Service) List(ctx context.Context) ([]*models.Lead, error) {
	return s.leads.List(ctx)
}

// Get returns one lead.
func (s *Service) Get(ctx context.Context, id string) (*models.Lead, error) {
	lead, err := s.leads.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lead %s: %w", id, err)
	}
	return lead, nil
}

// Create validates input and stores a new lead.
func (s *Service) Create(ctx context.Context, input models.LeadInput, author string) (*models.Lead, error) {
	lead, err := models.NewLead(input, author, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.leads.Put(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	s.metrics.LeadCreated(lead.ContactMethod)
	s.log.Info().Str("lead_id", lead.ID).Str("contact_method", lead.ContactMethod).Msg("lead created")
	return lead, nil
}

// Update merges patch into the lead atomically.
func (s *Service) Update(ctx context.Context, id string, patch models.LeadPatch, author string) (*models.Lead, error) {
	var from string
	lead, err := s.leads.Update(ctx, id, func(l *models.Lead) error {
		from = l.Status
		return l.Apply(patch, author, s.now())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update lead %s: %w", id, err)
	}

	if lead.Status != from {
		s.metrics.LeadTransition(from, lead.Status)
		s.log.Info().Str("lead_id", id).Str("from", from).Str("to", lead.Status).Msg("lead status changed")
	}
	return lead, nil
}

// AddActivity appends an activity to the lead's log.
func (s *Service) AddActivity(ctx context.Context, id string, input models.ActivityInput, author string) (*models.Lead, error) {
	lead, err := s.leads.Update(ctx, id, func(l *models.Lead) error {
		_, err := l.AddActivity(input, author, s.now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add activity to lead %s: %w", id, err)
	}
	return lead, nil
}

// Delete removes the lead permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.leads.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("lead_id", id).Msg("lead deleted")
	return nil
}

// Stats aggregates the full pipeline.
func (s *Service) Stats(ctx context.Context) (models.LeadStats, error) {
	leads, err := s.leads.List(ctx)
	if err != nil {
		return models.LeadStats{}, err
	}
	return models.ComputeLeadStats(leads), nil
}
