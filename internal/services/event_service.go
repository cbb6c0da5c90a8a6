package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farellandr/eventhub/internal/models"
	"github.com/farellandr/eventhub/internal/policy"
)

type EventService struct {
	db *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{db: db}
}

// EventFields carries event attributes for create and partial update. Nil
// fields are left at their default (create) or current value (update).
// AssignedAdmin set to uuid.Nil clears the delegate.
type EventFields struct {
	Title         *string
	Description   *string
	Date          *time.Time
	Venue         *string
	Location      *string
	Fee           *float64
	Capacity      *int
	Category      *models.Category
	IsTeamEvent   *bool
	MinTeamSize   *int
	MaxTeamSize   *int
	AssignedAdmin *uuid.UUID
	SubAdmins     *[]uuid.UUID
}

func (f *EventFields) apply(e *models.Event) {
	if f.Title != nil {
		e.Title = strings.TrimSpace(*f.Title)
	}
	if f.Description != nil {
		e.Description = *f.Description
	}
	if f.Date != nil {
		e.Date = *f.Date
	}
	// venue and location are two names for one place
	switch {
	case f.Venue != nil:
		e.Venue, e.Location = *f.Venue, *f.Venue
	case f.Location != nil:
		e.Venue, e.Location = *f.Location, *f.Location
	}
	if f.Fee != nil {
		e.Fee = *f.Fee
	}
	if f.Capacity != nil {
		e.Capacity = *f.Capacity
	}
	if f.Category != nil {
		e.Category = *f.Category
	}
	if f.IsTeamEvent != nil {
		e.IsTeamEvent = *f.IsTeamEvent
	}
	if f.MinTeamSize != nil {
		e.MinTeamSize = *f.MinTeamSize
	}
	if f.MaxTeamSize != nil {
		e.MaxTeamSize = *f.MaxTeamSize
	}
}

func validateEvent(e *models.Event) error {
	if e.Title == "" || e.Date.IsZero() {
		return ErrMissingFields
	}
	if !e.Category.EventCategory() {
		return invalid("category must be TECH or NON_TECH")
	}
	if e.Fee < 0 {
		return invalid("fee must not be negative")
	}
	if e.Capacity < 1 {
		return invalid("capacity must be positive")
	}
	if e.IsTeamEvent {
		if e.MinTeamSize < 2 || e.MaxTeamSize < 2 {
			return invalid("team sizes must be at least 2")
		}
		if e.MinTeamSize > e.MaxTeamSize {
			return invalid("minTeamSize must not exceed maxTeamSize")
		}
	}
	return nil
}

func (s *EventService) Create(ctx context.Context, p *policy.Principal, f EventFields) (*models.Event, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthorized
	}

	event := models.Event{
		Category:    models.CategoryTech,
		Capacity:    models.DefaultCapacity,
		MinTeamSize: models.DefaultMinTeamSize,
		MaxTeamSize: models.DefaultMaxTeamSize,
		CreatedBy:   p.Ref(),
	}
	f.apply(&event)

	if event.Title == "" || event.Date.IsZero() {
		return nil, ErrMissingFields
	}
	if err := policy.CanCreateEvent(p, event.Category); err != nil {
		return nil, err
	}
	if err := validateEvent(&event); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if f.AssignedAdmin != nil {
			if err := setAssignedAdmin(tx, p, &event, *f.AssignedAdmin); err != nil {
				return err
			}
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("create event: %w", err)
		}
		subAdmins := []uuid.UUID{}
		if f.SubAdmins != nil {
			subAdmins = *f.SubAdmins
		}
		return setSubAdmins(tx, p, &event, subAdmins)
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func setAssignedAdmin(tx *gorm.DB, p *policy.Principal, event *models.Event, adminID uuid.UUID) error {
	if err := policy.CanAssignAdmin(p); err != nil {
		return err
	}
	if adminID == uuid.Nil {
		event.AssignedAdminID = nil
		return nil
	}

	var admin models.Account
	err := tx.Where("role = ?", models.RoleAdmin).First(&admin, "id = ?", adminID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return invalid("assignedAdmin must reference an admin account")
	}
	if err != nil {
		return fmt.Errorf("load admin: %w", err)
	}
	event.AssignedAdminID = &admin.ID
	return nil
}

// setSubAdmins replaces the event's sub-admin delegates. Admins may only
// delegate to sub-admins they created.
func setSubAdmins(tx *gorm.DB, p *policy.Principal, event *models.Event, ids []uuid.UUID) error {
	ids = dedupe(ids)

	if len(ids) > 0 {
		var accounts []models.Account
		if err := tx.Where("id IN ? AND role = ?", ids, models.RoleSubAdmin).Find(&accounts).Error; err != nil {
			return fmt.Errorf("load sub-admins: %w", err)
		}
		if len(accounts) != len(ids) {
			return invalid("subAdmins must reference sub-admin accounts")
		}
		for i := range accounts {
			if err := policy.CanManageStaff(p, &accounts[i]); err != nil {
				return err
			}
		}
	}

	if err := tx.Where("event_id = ?", event.ID).Delete(&models.Assignment{}).Error; err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}
	for _, id := range ids {
		if err := tx.Create(&models.Assignment{EventID: event.ID, AccountID: id}).Error; err != nil {
			return fmt.Errorf("assign sub-admin: %w", err)
		}
	}
	event.SubAdminIDs = ids
	return nil
}

// load fetches an event with its delegates. Missing events are reported per missingFor.
func (s *EventService) load(tx *gorm.DB, p *policy.Principal, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := tx.First(&event, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, missingFor(p)
	}
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	events := []models.Event{event}
	if err := loadSubAdmins(tx, events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

func (s *EventService) Update(ctx context.Context, p *policy.Principal, id uuid.UUID, f EventFields) (*models.Event, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthorized
	}

	var event *models.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if event, err = s.load(tx, p, id); err != nil {
			return err
		}
		if err := policy.CanManageEvent(p, event); err != nil {
			return err
		}

		f.apply(event)
		if f.Category != nil {
			if err := policy.CanCreateEvent(p, event.Category); err != nil {
				return err
			}
		}
		if err := validateEvent(event); err != nil {
			return err
		}
		if f.AssignedAdmin != nil {
			if err := setAssignedAdmin(tx, p, event, *f.AssignedAdmin); err != nil {
				return err
			}
		}

		if err := tx.Save(event).Error; err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		if f.SubAdmins != nil {
			return setSubAdmins(tx, p, event, *f.SubAdmins)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Delete removes the event, its registrations and every delegation to it.
func (s *EventService) Delete(ctx context.Context, p *policy.Principal, id uuid.UUID) error {
	if !p.Authenticated() {
		return ErrUnauthorized
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := s.load(tx, p, id)
		if err != nil {
			return err
		}
		if err := policy.CanManageEvent(p, event); err != nil {
			return err
		}

		if err := tx.Where("event_id = ?", event.ID).Delete(&models.Registration{}).Error; err != nil {
			return fmt.Errorf("delete registrations: %w", err)
		}
		if err := tx.Where("event_id = ?", event.ID).Delete(&models.Assignment{}).Error; err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}
		if err := tx.Delete(event).Error; err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		return nil
	})
}

// Managed loads an event p is allowed to manage.
func (s *EventService) Managed(ctx context.Context, p *policy.Principal, id uuid.UUID) (*models.Event, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthorized
	}

	event, err := s.load(s.db.WithContext(ctx), p, id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanManageEvent(p, event); err != nil {
		return nil, err
	}
	return event, nil
}

// SetBanner records a new banner and returns the previous URL.
func (s *EventService) SetBanner(ctx context.Context, p *policy.Principal, id uuid.UUID, url string) (*models.Event, string, error) {
	event, err := s.Managed(ctx, p, id)
	if err != nil {
		return nil, "", err
	}

	previous := event.BannerURL
	if err := s.db.WithContext(ctx).Model(event).Update("banner_url", url).Error; err != nil {
		return nil, "", fmt.Errorf("update banner: %w", err)
	}
	event.BannerURL = url
	return event, previous, nil
}

// scoped narrows an event query to what the scope may see. The owner and
// delegate conditions are OR-ed in one query, so an event reachable both ways
// appears once.
func scoped(tx *gorm.DB, scope policy.EventScope) *gorm.DB {
	switch scope.Kind {
	case policy.ScopeManaged:
		tx = tx.Where("(created_by_id = ? OR assigned_admin_id = ?)", scope.AccountID, scope.AccountID)
		if scope.Category != "" {
			tx = tx.Where("category = ?", scope.Category)
		}
	case policy.ScopeAssigned:
		tx = tx.Where("id IN (?)", tx.Session(&gorm.Session{NewDB: true}).
			Model(&models.Assignment{}).Select("event_id").Where("account_id = ?", scope.AccountID))
	}
	return tx
}

// List returns the events visible to p, soonest first. Anonymous callers and
// end users get the full catalog; callers should serve them the public projection.
func (s *EventService) List(ctx context.Context, p *policy.Principal) ([]models.Event, error) {
	var events []models.Event
	if err := scoped(s.db.WithContext(ctx), policy.ScopeFor(p)).Order("date ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if policy.ScopeFor(p).Kind != policy.ScopePublic {
		if err := loadSubAdmins(s.db.WithContext(ctx), events); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// Get is the public event detail.
func (s *EventService) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := s.db.WithContext(ctx).First(&event, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	return &event, nil
}

// IsRegistered reports whether p holds an active registration for the event.
func (s *EventService) IsRegistered(ctx context.Context, p *policy.Principal, eventID uuid.UUID) (bool, error) {
	if !p.Authenticated() {
		return false, ErrUnauthorized
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.Registration{}).
		Where("user_id = ? AND event_id = ? AND status <> ?", p.ID, eventID, models.StatusCancelled).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return count > 0, nil
}

type EventSummary struct {
	models.Event
	ParticipantCount int64 `json:"participantCount"`
}

// WithParticipantCounts lists the staff-visible events with their number of
// active registrations.
func (s *EventService) WithParticipantCounts(ctx context.Context, p *policy.Principal) ([]EventSummary, error) {
	if err := policy.CanViewDashboard(p); err != nil {
		return nil, err
	}

	events, err := s.List(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return []EventSummary{}, nil
	}

	ids := make([]uuid.UUID, len(events))
	for i := range events {
		ids[i] = events[i].ID
	}

	var rows []struct {
		EventID uuid.UUID
		Total   int64
	}
	err = s.db.WithContext(ctx).Model(&models.Registration{}).
		Select("event_id, COUNT(*) AS total").
		Where("event_id IN ? AND status <> ?", ids, models.StatusCancelled).
		Group("event_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count participants: %w", err)
	}
	counts := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		counts[r.EventID] = r.Total
	}

	out := make([]EventSummary, len(events))
	for i := range events {
		out[i] = EventSummary{Event: events[i], ParticipantCount: counts[events[i].ID]}
	}
	return out, nil
}
