// Package policy decides what an authenticated principal may do with events,
// registrations and staff accounts. Every function here is pure: callers load
// the records and pass them in, nothing is read from or written to the store.
package policy

import (
	"errors"

	"github.com/google/uuid"

	"github.com/farellandr/eventhub/internal/models"
)

var (
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("not allowed")
)

// Principal is the authenticated caller. A nil *Principal is an anonymous caller.
type Principal struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Role           models.Role     `json:"role"`
	Category       models.Category `json:"category,omitempty"`
	AssignedEvents []uuid.UUID     `json:"assignedEvents,omitempty"`
}

func FromAccount(a *models.Account) *Principal {
	return &Principal{
		ID:             a.ID,
		Name:           a.Name,
		Email:          a.Email,
		Role:           a.Role,
		Category:       a.Category,
		AssignedEvents: a.AssignedEventIDs,
	}
}

func (p *Principal) Authenticated() bool {
	return p != nil && p.ID != uuid.Nil
}

func (p *Principal) Is(role models.Role) bool {
	return p.Authenticated() && p.Role == role
}

// Ref is the typed creator reference stamped on records this principal creates.
func (p *Principal) Ref() models.AccountRef {
	return models.AccountRef{Role: p.Role, ID: p.ID}
}

// restricted reports whether an admin is limited to a single event category.
func (p *Principal) restricted() bool {
	return p.Category != "" && p.Category != models.CategoryAll
}

func (p *Principal) assignedTo(eventID uuid.UUID) bool {
	for _, id := range p.AssignedEvents {
		if id == eventID {
			return true
		}
	}
	return false
}

// CanCreateEvent allows super admins, and admins within their category.
func CanCreateEvent(p *Principal, category models.Category) error {
	switch {
	case !p.Authenticated():
		return ErrUnauthorized
	case p.Role == models.RoleSuperAdmin:
		return nil
	case p.Role == models.RoleAdmin:
		if p.restricted() && category != p.Category {
			return ErrForbidden
		}
		return nil
	}
	return ErrForbidden
}

// CanManageEvent covers update, delete, banner upload and delegation changes.
func CanManageEvent(p *Principal, event *models.Event) error {
	switch {
	case !p.Authenticated():
		return ErrUnauthorized
	case p.Role == models.RoleSuperAdmin:
		return nil
	case p.Role == models.RoleAdmin:
		if event == nil {
			return ErrForbidden
		}
		owned := event.CreatedBy.Is(p.ID)
		delegated := event.AssignedAdminID != nil && *event.AssignedAdminID == p.ID
		if !owned && !delegated {
			return ErrForbidden
		}
		if p.restricted() && event.Category != p.Category {
			return ErrForbidden
		}
		return nil
	}
	return ErrForbidden
}

// CanViewParticipants covers participant listings and exports. Sub-admins get
// read access to the events delegated to them.
func CanViewParticipants(p *Principal, event *models.Event) error {
	if err := CanManageEvent(p, event); err == nil || !errors.Is(err, ErrForbidden) {
		return err
	}
	if p.Role == models.RoleSubAdmin && event != nil {
		if p.assignedTo(event.ID) || event.HasSubAdmin(p.ID) {
			return nil
		}
	}
	return ErrForbidden
}

// CanAssignAdmin guards setting an event's single delegated admin.
func CanAssignAdmin(p *Principal) error {
	if !p.Authenticated() {
		return ErrUnauthorized
	}
	if p.Role != models.RoleSuperAdmin {
		return ErrForbidden
	}
	return nil
}

// CanCreateStaff lets super admins create admins and sub-admins, and admins
// create sub-admins.
func CanCreateStaff(p *Principal, role models.Role) error {
	switch {
	case !p.Authenticated():
		return ErrUnauthorized
	case !role.IsStaff():
		return ErrForbidden
	case p.Role == models.RoleSuperAdmin:
		return nil
	case p.Role == models.RoleAdmin && role == models.RoleSubAdmin:
		return nil
	}
	return ErrForbidden
}

// CanManageStaff covers update and delete of an existing staff account.
func CanManageStaff(p *Principal, account *models.Account) error {
	switch {
	case !p.Authenticated():
		return ErrUnauthorized
	case account == nil || !account.Role.IsStaff():
		return ErrForbidden
	case p.Role == models.RoleSuperAdmin:
		return nil
	case p.Role == models.RoleAdmin && account.Role == models.RoleSubAdmin && account.CreatedBy.Is(p.ID):
		return nil
	}
	return ErrForbidden
}

// CanViewDashboard allows every staff tier.
func CanViewDashboard(p *Principal) error {
	if !p.Authenticated() {
		return ErrUnauthorized
	}
	if p.Role == models.RoleUser {
		return ErrForbidden
	}
	return nil
}

type ScopeKind int

const (
	ScopePublic ScopeKind = iota
	ScopeAll
	ScopeManaged
	ScopeAssigned
)

// EventScope describes which slice of the catalog a principal sees.
type EventScope struct {
	Kind      ScopeKind
	AccountID uuid.UUID
	// Category is set only when a managed scope is limited to one category.
	Category models.Category
}

func ScopeFor(p *Principal) EventScope {
	if !p.Authenticated() {
		return EventScope{Kind: ScopePublic}
	}
	switch p.Role {
	case models.RoleSuperAdmin:
		return EventScope{Kind: ScopeAll}
	case models.RoleAdmin:
		s := EventScope{Kind: ScopeManaged, AccountID: p.ID}
		if p.restricted() {
			s.Category = p.Category
		}
		return s
	case models.RoleSubAdmin:
		return EventScope{Kind: ScopeAssigned, AccountID: p.ID}
	}
	return EventScope{Kind: ScopePublic}
}
