package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RegistrationStatus string

const (
	StatusRegistered RegistrationStatus = "REGISTERED"
	StatusCancelled  RegistrationStatus = "CANCELLED"
	StatusAttended   RegistrationStatus = "ATTENDED"
)

// Member is a point-in-time snapshot of a participant's details.
type Member struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	College    string `json:"college,omitempty"`
	Department string `json:"department,omitempty"`
	Year       string `json:"year,omitempty"`
}

type Registration struct {
	ID                 uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID                   `gorm:"type:uuid;not null;index;uniqueIndex:idx_registrations_active,where:status <> 'CANCELLED'" json:"user"`
	EventID            uuid.UUID                   `gorm:"type:uuid;not null;index;uniqueIndex:idx_registrations_active,where:status <> 'CANCELLED'" json:"event"`
	Participant        Member                      `gorm:"embedded;embeddedPrefix:participant_" json:"participant"`
	IsTeamRegistration bool                        `gorm:"not null;default:false" json:"isTeamRegistration"`
	TeamName           string                      `json:"teamName,omitempty"`
	TeamMembers        datatypes.JSONSlice[Member] `json:"teamMembers"`
	TicketID           string                      `gorm:"not null;uniqueIndex" json:"ticketId"`
	Status             RegistrationStatus          `gorm:"type:varchar(16);not null;default:REGISTERED;index" json:"status"`
	CreatedAt          time.Time                   `json:"createdAt"`
	UpdatedAt          time.Time                   `json:"updatedAt"`
}

func (registration *Registration) BeforeCreate(tx *gorm.DB) (err error) {
	if registration.ID == uuid.Nil {
		registration.ID = uuid.New()
	}
	if registration.Status == "" {
		registration.Status = StatusRegistered
	}
	return
}
