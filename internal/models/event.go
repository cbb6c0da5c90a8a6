package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultCapacity    = 100
	DefaultMinTeamSize = 2
	DefaultMaxTeamSize = 5
)

type Event struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string      `gorm:"not null" json:"title"`
	Description     string      `json:"description"`
	Date            time.Time   `gorm:"not null;index" json:"date"`
	Venue           string      `json:"venue"`
	Location        string      `json:"location"`
	Fee             float64     `gorm:"not null;default:0" json:"fee"`
	BannerURL       string      `json:"bannerUrl,omitempty"`
	Capacity        int         `gorm:"not null;default:100" json:"capacity"`
	Category        Category    `gorm:"type:varchar(16);not null;index" json:"category"`
	IsTeamEvent     bool        `gorm:"not null;default:false" json:"isTeamEvent"`
	MinTeamSize     int         `gorm:"not null;default:2" json:"minTeamSize"`
	MaxTeamSize     int         `gorm:"not null;default:5" json:"maxTeamSize"`
	CreatedBy       AccountRef  `gorm:"embedded;embeddedPrefix:created_by_" json:"createdBy"`
	AssignedAdminID *uuid.UUID  `gorm:"type:uuid;index" json:"assignedAdmin,omitempty"`
	SubAdminIDs     []uuid.UUID `gorm:"-" json:"assignedSubAdmins"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

func (event *Event) BeforeCreate(tx *gorm.DB) (err error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return
}

// HasSubAdmin reports whether id is among the event's delegated sub-admins.
func (event *Event) HasSubAdmin(id uuid.UUID) bool {
	for _, sid := range event.SubAdminIDs {
		if sid == id {
			return true
		}
	}
	return false
}

// PublicEvent is the projection served to anonymous callers and end users.
type PublicEvent struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Venue       string    `json:"venue"`
	Location    string    `json:"location"`
	Fee         float64   `json:"fee"`
	BannerURL   string    `json:"bannerUrl,omitempty"`
	Capacity    int       `json:"capacity"`
	Category    Category  `json:"category"`
	IsTeamEvent bool      `json:"isTeamEvent"`
	MinTeamSize int       `json:"minTeamSize,omitempty"`
	MaxTeamSize int       `json:"maxTeamSize,omitempty"`
}

func (event *Event) Public() PublicEvent {
	p := PublicEvent{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		Date:        event.Date,
		Venue:       event.Venue,
		Location:    event.Location,
		Fee:         event.Fee,
		BannerURL:   event.BannerURL,
		Capacity:    event.Capacity,
		Category:    event.Category,
		IsTeamEvent: event.IsTeamEvent,
	}
	if event.IsTeamEvent {
		p.MinTeamSize = event.MinTeamSize
		p.MaxTeamSize = event.MaxTeamSize
	}
	return p
}

// Assignment delegates an event to a sub-admin. It is the single record behind
// both an account's assigned events and an event's assigned sub-admins.
type Assignment struct {
	EventID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	CreatedAt time.Time
}

func (Assignment) TableName() string {
	return "event_assignments"
}
