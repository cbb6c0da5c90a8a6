package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farellandr/eventhub/internal/models"
	"github.com/farellandr/eventhub/internal/policy"
)

type StaffService struct {
	db *gorm.DB
}

func NewStaffService(db *gorm.DB) *StaffService {
	return &StaffService{db: db}
}

type StaffInput struct {
	Name           string
	Email          string
	Password       string
	Role           models.Role
	Category       models.Category
	AssignedEvents []uuid.UUID
}

// StaffPatch holds the fields of a partial staff update. Nil means unchanged.
type StaffPatch struct {
	Name           *string
	Email          *string
	Password       *string
	Category       *models.Category
	AssignedEvents *[]uuid.UUID
}

func (s *StaffService) Create(ctx context.Context, p *policy.Principal, in StaffInput) (*models.Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" || in.Role == "" {
		return nil, ErrMissingFields
	}
	if err := policy.CanCreateStaff(p, in.Role); err != nil {
		return nil, err
	}
	if len(in.Password) < 6 {
		return nil, invalid("password must be at least 6 characters")
	}

	category, err := staffCategory(p, in.Category)
	if err != nil {
		return nil, err
	}

	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := models.Account{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hashed,
		Role:         in.Role,
		Category:     category,
		CreatedBy:    p.Ref(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&account).Error; err != nil {
			if isDuplicate(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("create staff: %w", err)
		}
		return assignEvents(tx, p, &account, in.AssignedEvents)
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// staffCategory applies the creator's own category restriction to new staff.
func staffCategory(p *policy.Principal, requested models.Category) (models.Category, error) {
	if requested == "" {
		requested = models.CategoryAll
	}
	if _, ok := models.ParseCategory(string(requested)); !ok {
		return "", invalid("unknown category %q", requested)
	}
	if p.Role == models.RoleAdmin && p.Category != "" && p.Category != models.CategoryAll {
		if requested != models.CategoryAll && requested != p.Category {
			return "", ErrForbidden
		}
		return p.Category, nil
	}
	return requested, nil
}

// assignEvents replaces the account's delegated events. Every event must be
// manageable by p.
func assignEvents(tx *gorm.DB, p *policy.Principal, account *models.Account, eventIDs []uuid.UUID) error {
	eventIDs = dedupe(eventIDs)

	var events []models.Event
	if len(eventIDs) > 0 {
		if err := tx.Where("id IN ?", eventIDs).Find(&events).Error; err != nil {
			return fmt.Errorf("load events: %w", err)
		}
		if len(events) != len(eventIDs) {
			return missingFor(p)
		}
		if err := loadSubAdmins(tx, events); err != nil {
			return err
		}
		for i := range events {
			if err := policy.CanManageEvent(p, &events[i]); err != nil {
				return err
			}
		}
	}

	switch account.Role {
	case models.RoleSubAdmin:
		if err := tx.Where("account_id = ?", account.ID).Delete(&models.Assignment{}).Error; err != nil {
			return fmt.Errorf("clear assignments: %w", err)
		}
		for _, id := range eventIDs {
			if err := tx.Create(&models.Assignment{EventID: id, AccountID: account.ID}).Error; err != nil {
				return fmt.Errorf("assign event: %w", err)
			}
		}
	case models.RoleAdmin:
		if len(eventIDs) > 0 {
			if err := policy.CanAssignAdmin(p); err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Event{}).Where("assigned_admin_id = ?", account.ID).
			Update("assigned_admin_id", nil).Error; err != nil {
			return fmt.Errorf("clear admin assignments: %w", err)
		}
		if len(eventIDs) > 0 {
			if err := tx.Model(&models.Event{}).Where("id IN ?", eventIDs).
				Update("assigned_admin_id", account.ID).Error; err != nil {
				return fmt.Errorf("assign admin: %w", err)
			}
		}
	}

	account.AssignedEventIDs = eventIDs
	return nil
}

func (s *StaffService) List(ctx context.Context, p *policy.Principal) ([]models.Account, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthorized
	}

	query := s.db.WithContext(ctx).Where("kind = ?", models.KindStaff)
	switch p.Role {
	case models.RoleSuperAdmin:
	case models.RoleAdmin:
		query = query.Where("role = ? AND created_by_id = ?", models.RoleSubAdmin, p.ID)
	default:
		return nil, ErrForbidden
	}

	var accounts []models.Account
	if err := query.Order("created_at DESC").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}

	ptrs := make([]*models.Account, len(accounts))
	for i := range accounts {
		ptrs[i] = &accounts[i]
	}
	if err := assignedEventIDs(s.db.WithContext(ctx), ptrs); err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	return accounts, nil
}

func (s *StaffService) load(tx *gorm.DB, p *policy.Principal, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := tx.Where("kind = ?", models.KindStaff).First(&account, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, missingFor(p)
	}
	if err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	if err := policy.CanManageStaff(p, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *StaffService) Update(ctx context.Context, p *policy.Principal, id uuid.UUID, patch StaffPatch) (*models.Account, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthorized
	}

	var account *models.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if account, err = s.load(tx, p, id); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return ErrMissingFields
			}
			updates["name"] = name
			account.Name = name
		}
		if patch.Email != nil {
			email := normalizeEmail(*patch.Email)
			if email == "" {
				return ErrMissingFields
			}
			updates["email"] = email
			account.Email = email
		}
		if patch.Password != nil {
			if len(*patch.Password) < 6 {
				return invalid("password must be at least 6 characters")
			}
			hashed, err := hashPassword(*patch.Password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			updates["password_hash"] = hashed
		}
		if patch.Category != nil {
			category, err := staffCategory(p, *patch.Category)
			if err != nil {
				return err
			}
			updates["category"] = category
			account.Category = category
		}

		if len(updates) > 0 {
			if err := tx.Model(account).Updates(updates).Error; err != nil {
				if isDuplicate(err) {
					return ErrEmailTaken
				}
				return fmt.Errorf("update staff: %w", err)
			}
		}

		if patch.AssignedEvents != nil {
			return assignEvents(tx, p, account, *patch.AssignedEvents)
		}
		return assignedEventIDs(tx, []*models.Account{account})
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Delete removes a staff account and every delegation pointing at it.
func (s *StaffService) Delete(ctx context.Context, p *policy.Principal, id uuid.UUID) error {
	if !p.Authenticated() {
		return ErrUnauthorized
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.load(tx, p, id)
		if err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", account.ID).Delete(&models.Assignment{}).Error; err != nil {
			return fmt.Errorf("clear assignments: %w", err)
		}
		if err := tx.Model(&models.Event{}).Where("assigned_admin_id = ?", account.ID).
			Update("assigned_admin_id", nil).Error; err != nil {
			return fmt.Errorf("clear admin assignments: %w", err)
		}
		if err := tx.Delete(account).Error; err != nil {
			return fmt.Errorf("delete staff: %w", err)
		}
		return nil
	})
}
