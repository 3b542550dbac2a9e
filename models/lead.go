// ABOUTME: Lead and Activity models for the sales pipeline
// ABOUTME: Field merging, derived activities, and the lead status state machine
package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Lead statuses.
const (
	LeadStatusNew         = "new"
	LeadStatusContacted   = "contacted"
	LeadStatusQuoteSent   = "quote-sent"
	LeadStatusNegotiating = "negotiating"
	LeadStatusWon         = "won"
	LeadStatusLost        = "lost"
)

// LeadStatuses lists every status in pipeline order.
var LeadStatuses = []string{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusQuoteSent,
	LeadStatusNegotiating,
	LeadStatusWon,
	LeadStatusLost,
}

// Contact methods.
const (
	ContactEmail     = "email"
	ContactWhatsApp  = "whatsapp"
	ContactPhone     = "phone"
	ContactForm      = "form"
	ContactReferral  = "referral"
	ContactLinkedIn  = "linkedin"
	ContactInstagram = "instagram"
	ContactOther     = "other"
)

var contactMethods = map[string]bool{
	ContactEmail:     true,
	ContactWhatsApp:  true,
	ContactPhone:     true,
	ContactForm:      true,
	ContactReferral:  true,
	ContactLinkedIn:  true,
	ContactInstagram: true,
	ContactOther:     true,
}

// Activity types.
const (
	ActivityNote         = "note"
	ActivityCall         = "call"
	ActivityEmail        = "email"
	ActivityMeeting      = "meeting"
	ActivityQuote        = "quote"
	ActivityStatusChange = "status-change"
)

var activityTypes = map[string]bool{
	ActivityNote:         true,
	ActivityCall:         true,
	ActivityEmail:        true,
	ActivityMeeting:      true,
	ActivityQuote:        true,
	ActivityStatusChange: true,
}

// leadTransitions is the allowed next-status table. Won is terminal and a
// lost lead may only be re-opened as contacted.
var leadTransitions = map[string][]string{
	LeadStatusNew:         {LeadStatusContacted, LeadStatusQuoteSent, LeadStatusNegotiating, LeadStatusWon, LeadStatusLost},
	LeadStatusContacted:   {LeadStatusQuoteSent, LeadStatusNegotiating, LeadStatusWon, LeadStatusLost},
	LeadStatusQuoteSent:   {LeadStatusContacted, LeadStatusNegotiating, LeadStatusWon, LeadStatusLost},
	LeadStatusNegotiating: {LeadStatusQuoteSent, LeadStatusWon, LeadStatusLost},
	LeadStatusWon:         {},
	LeadStatusLost:        {LeadStatusContacted},
}

type Activity struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Lead struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Company        string     `json:"company,omitempty"`
	ContactMethod  string     `json:"contactMethod"`
	Status         string     `json:"status"`
	EstimatedValue int64      `json:"estimatedValue"` // in cents
	Notes          string     `json:"notes,omitempty"`
	QuoteSent      bool       `json:"quoteSent"`
	QuoteSentDate  *time.Time `json:"quoteSentDate,omitempty"`
	ClosedDate     *time.Time `json:"closedDate,omitempty"`
	LostReason     string     `json:"lostReason,omitempty"`
	Source         string     `json:"source,omitempty"`
	AssignedTo     string     `json:"assignedTo,omitempty"`
	Activities     []Activity `json:"activities"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// LeadInput holds the fields accepted when creating a lead.
type LeadInput struct {
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Company        string `json:"company,omitempty"`
	ContactMethod  string `json:"contactMethod,omitempty"`
	Status         string `json:"status,omitempty"`
	EstimatedValue int64  `json:"estimatedValue,omitempty"`
	Notes          string `json:"notes,omitempty"`
	Source         string `json:"source,omitempty"`
	AssignedTo     string `json:"assignedTo,omitempty"`
}

// LeadPatch is a partial update; nil fields are left unchanged.
type LeadPatch struct {
	Name           *string `json:"name,omitempty"`
	Email          *string `json:"email,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	Company        *string `json:"company,omitempty"`
	ContactMethod  *string `json:"contactMethod,omitempty"`
	Status         *string `json:"status,omitempty"`
	EstimatedValue *int64  `json:"estimatedValue,omitempty"`
	Notes          *string `json:"notes,omitempty"`
	QuoteSent      *bool   `json:"quoteSent,omitempty"`
	LostReason     *string `json:"lostReason,omitempty"`
	Source         *string `json:"source,omitempty"`
	AssignedTo     *string `json:"assignedTo,omitempty"`
}

// ActivityInput is a caller-supplied activity entry.
type ActivityInput struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description"`
}

// IsValidLeadStatus reports whether s is a known lead status.
func IsValidLeadStatus(s string) bool {
	_, ok := leadTransitions[s]
	return ok
}

// IsValidContactMethod reports whether m is a known contact method.
func IsValidContactMethod(m string) bool {
	return contactMethods[m]
}

// CanTransitionLead reports whether a lead may move from one status to another.
func CanTransitionLead(from, to string) bool {
	for _, next := range leadTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextLeadStatuses returns the statuses reachable from status.
func NextLeadStatuses(status string) []string {
	return append([]string(nil), leadTransitions[status]...)
}

func newActivity(kind, description, author string, now time.Time) Activity {
	return Activity{
		ID:          ulid.Make().String(),
		Type:        kind,
		Description: description,
		Author:      author,
		CreatedAt:   now,
	}
}

// NewLead validates input and builds a lead seeded with its creation activity.
func NewLead(input LeadInput, author string, now time.Time) (*Lead, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, Invalid("name is required")
	}

	method := input.ContactMethod
	if method == "" {
		method = ContactOther
	}
	if !IsValidContactMethod(method) {
		return nil, Invalid("unknown contact method %q", method)
	}

	status := input.Status
	if status == "" {
		status = LeadStatusNew
	}
	if !IsValidLeadStatus(status) {
		return nil, Invalid("unknown status %q", status)
	}
	if input.EstimatedValue < 0 {
		return nil, Invalid("estimated value cannot be negative")
	}

	lead := &Lead{
		ID:             uuid.New().String(),
		Name:           name,
		Email:          input.Email,
		Phone:          input.Phone,
		Company:        input.Company,
		ContactMethod:  method,
		Status:         status,
		EstimatedValue: input.EstimatedValue,
		Notes:          input.Notes,
		Source:         input.Source,
		AssignedTo:     input.AssignedTo,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if status == LeadStatusWon {
		closed := now
		lead.ClosedDate = &closed
	}
	lead.Activities = []Activity{
		newActivity(ActivityNote, "Lead created via "+method, author, now),
	}
	return lead, nil
}

// Apply merges patch into the lead and appends the derived activities.
// The lead is left untouched when the patch is rejected.
func (l *Lead) Apply(patch LeadPatch, author string, now time.Time) error {
	if err := l.validatePatch(patch); err != nil {
		return err
	}

	if patch.Name != nil {
		l.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		l.Email = *patch.Email
	}
	if patch.Phone != nil {
		l.Phone = *patch.Phone
	}
	if patch.Company != nil {
		l.Company = *patch.Company
	}
	if patch.ContactMethod != nil {
		l.ContactMethod = *patch.ContactMethod
	}
	if patch.EstimatedValue != nil {
		l.EstimatedValue = *patch.EstimatedValue
	}
	if patch.Notes != nil {
		l.Notes = *patch.Notes
	}
	if patch.LostReason != nil {
		l.LostReason = *patch.LostReason
	}
	if patch.Source != nil {
		l.Source = *patch.Source
	}
	if patch.AssignedTo != nil {
		l.AssignedTo = *patch.AssignedTo
	}

	if patch.QuoteSent != nil {
		if *patch.QuoteSent && !l.QuoteSent {
			sent := now
			l.QuoteSentDate = &sent
			l.Activities = append(l.Activities, newActivity(ActivityQuote, "Quote sent", author, now))
		}
		l.QuoteSent = *patch.QuoteSent
	}

	if patch.Status != nil && *patch.Status != l.Status {
		old := l.Status
		l.Status = *patch.Status
		l.Activities = append(l.Activities, newActivity(ActivityStatusChange,
			fmt.Sprintf("Status changed from %q to %q", old, l.Status), author, now))

		if l.Status == LeadStatusWon && l.ClosedDate == nil {
			closed := now
			l.ClosedDate = &closed
		}
	}

	l.UpdatedAt = now
	return nil
}

func (l *Lead) validatePatch(patch LeadPatch) error {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return Invalid("name cannot be empty")
	}
	if patch.ContactMethod != nil && !IsValidContactMethod(*patch.ContactMethod) {
		return Invalid("unknown contact method %q", *patch.ContactMethod)
	}
	if patch.EstimatedValue != nil && *patch.EstimatedValue < 0 {
		return Invalid("estimated value cannot be negative")
	}
	if patch.Status != nil {
		next := *patch.Status
		if !IsValidLeadStatus(next) {
			return Invalid("unknown status %q", next)
		}
		if next != l.Status && !CanTransitionLead(l.Status, next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, next)
		}
	}
	return nil
}

// AddActivity appends a caller-supplied activity and bumps UpdatedAt.
func (l *Lead) AddActivity(input ActivityInput, author string, now time.Time) (Activity, error) {
	kind := input.Type
	if kind == "" {
		kind = ActivityNote
	}
	if !activityTypes[kind] {
		return Activity{}, Invalid("unknown activity type %q", kind)
	}
	if strings.TrimSpace(input.Description) == "" {
		return Activity{}, Invalid("description is required")
	}

	a := newActivity(kind, input.Description, author, now)
	l.Activities = append(l.Activities, a)
	l.UpdatedAt = now
	return a, nil
}

// IsOpen reports whether the lead still counts toward the pipeline.
func (l *Lead) IsOpen() bool {
	return l.Status != LeadStatusWon && l.Status != LeadStatusLost
}

// LeadStats aggregates the pipeline.
type LeadStats struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"byStatus"`
	ConversionRate  int            `json:"conversionRate"`
	TotalValue      int64          `json:"totalValue"`    // won leads, in cents
	PipelineValue   int64          `json:"pipelineValue"` // open leads, in cents
	ByContactMethod map[string]int `json:"byContactMethod"`
}

// ComputeLeadStats derives LeadStats from a full set of leads.
func ComputeLeadStats(leads []*Lead) LeadStats {
	stats := LeadStats{
		Total:           len(leads),
		ByStatus:        make(map[string]int, len(LeadStatuses)),
		ByContactMethod: map[string]int{},
	}
	for _, s := range LeadStatuses {
		stats.ByStatus[s] = 0
	}

	for _, l := range leads {
		stats.ByStatus[l.Status]++
		stats.ByContactMethod[l.ContactMethod]++
		switch {
		case l.Status == LeadStatusWon:
			stats.TotalValue += l.EstimatedValue
		case l.IsOpen():
			stats.PipelineValue += l.EstimatedValue
		}
	}

	if stats.Total > 0 {
		won := float64(stats.ByStatus[LeadStatusWon])
		stats.ConversionRate = int(math.Round(won / float64(stats.Total) * 100))
	}
	return stats
}
