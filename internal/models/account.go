package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountRef is a typed pointer to the account that created a record.
type AccountRef struct {
	Role Role      `gorm:"type:varchar(16)" json:"role,omitempty"`
	ID   uuid.UUID `gorm:"type:uuid" json:"id,omitempty"`
}

func (r AccountRef) Is(id uuid.UUID) bool {
	return r.ID != uuid.Nil && r.ID == id
}

type Account struct {
	ID               uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Name             string      `gorm:"not null" json:"name"`
	Email            string      `gorm:"not null;uniqueIndex:idx_accounts_kind_email" json:"email"`
	Kind             AccountKind `gorm:"type:varchar(16);not null;uniqueIndex:idx_accounts_kind_email" json:"-"`
	PasswordHash     string      `gorm:"not null" json:"-"`
	Role             Role        `gorm:"type:varchar(16);not null;index" json:"role"`
	Category         Category    `gorm:"type:varchar(16);not null;default:ALL" json:"category"`
	CreatedBy        AccountRef  `gorm:"embedded;embeddedPrefix:created_by_" json:"createdBy"`
	ResetTokenHash   *string     `gorm:"index" json:"-"`
	ResetTokenExpiry *time.Time  `json:"-"`
	AssignedEventIDs []uuid.UUID `gorm:"-" json:"assignedEvents,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

func (account *Account) BeforeCreate(tx *gorm.DB) (err error) {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.Kind = account.Role.Namespace()
	if account.Category == "" {
		account.Category = CategoryAll
	}
	return
}
