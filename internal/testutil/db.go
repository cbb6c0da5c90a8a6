// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/farellandr/eventhub/config"
	"github.com/farellandr/eventhub/internal/models"
	"github.com/farellandr/eventhub/internal/policy"
)

// NewDB opens a private in-memory SQLite database migrated like production.
// A single connection keeps every query on the same in-memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := config.GormConfig()
	cfg.Logger = logger.Discard
	db, err := gorm.Open(sqlite.Open(":memory:"), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

const Password = "secret123"

var passwordHash string

func hashed(t *testing.T) string {
	if passwordHash == "" {
		h, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
		require.NoError(t, err)
		passwordHash = string(h)
	}
	return passwordHash
}

// Account inserts an account whose password is Password.
func Account(t *testing.T, db *gorm.DB, role models.Role, category models.Category, email string, createdBy *policy.Principal) *models.Account {
	t.Helper()
	a := models.Account{
		Name:         email,
		Email:        email,
		PasswordHash: hashed(t),
		Role:         role,
		Category:     category,
	}
	if createdBy != nil {
		a.CreatedBy = createdBy.Ref()
	}
	require.NoError(t, db.Create(&a).Error)
	return &a
}

func Principal(a *models.Account) *policy.Principal {
	return policy.FromAccount(a)
}

// Event inserts an event owned by owner.
func Event(t *testing.T, db *gorm.DB, owner *policy.Principal, title string, category models.Category, mutate ...func(*models.Event)) *models.Event {
	t.Helper()
	e := models.Event{
		Title:       title,
		Date:        time.Now().Add(7 * 24 * time.Hour).UTC(),
		Venue:       "Main Hall",
		Location:    "Main Hall",
		Capacity:    models.DefaultCapacity,
		Category:    category,
		MinTeamSize: models.DefaultMinTeamSize,
		MaxTeamSize: models.DefaultMaxTeamSize,
		CreatedBy:   owner.Ref(),
	}
	for _, m := range mutate {
		m(&e)
	}
	require.NoError(t, db.Create(&e).Error)
	return &e
}

// Assign delegates event to a sub-admin and returns the refreshed principal.
func Assign(t *testing.T, db *gorm.DB, event *models.Event, sub *models.Account) *policy.Principal {
	t.Helper()
	require.NoError(t, db.Create(&models.Assignment{EventID: event.ID, AccountID: sub.ID}).Error)
	sub.AssignedEventIDs = append(sub.AssignedEventIDs, event.ID)
	return policy.FromAccount(sub)
}
