// Package services holds the EventHub use cases: authentication, staff
// management, the event catalog, the registration transaction and reporting.
// Every operation takes the calling principal explicitly and runs its
// authorization decision through the policy package.
package services

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/farellandr/eventhub/internal/async"
	"github.com/farellandr/eventhub/internal/models"
)

// Submitter queues work to run after the request has been answered.
type Submitter interface {
	Submit(name string, fn async.Task) error
}

var hashCost = bcrypt.DefaultCost

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// assignedEventIDs returns the events delegated to each account: assignment
// rows for sub-admins, the assignedAdmin column for admins.
func assignedEventIDs(tx *gorm.DB, accounts []*models.Account) error {
	var subIDs, adminIDs []uuid.UUID
	byID := make(map[uuid.UUID]*models.Account, len(accounts))
	for _, a := range accounts {
		a.AssignedEventIDs = []uuid.UUID{}
		byID[a.ID] = a
		switch a.Role {
		case models.RoleSubAdmin:
			subIDs = append(subIDs, a.ID)
		case models.RoleAdmin:
			adminIDs = append(adminIDs, a.ID)
		}
	}

	if len(subIDs) > 0 {
		var rows []models.Assignment
		if err := tx.Where("account_id IN ?", subIDs).Order("created_at").Find(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			a := byID[row.AccountID]
			a.AssignedEventIDs = append(a.AssignedEventIDs, row.EventID)
		}
	}

	if len(adminIDs) > 0 {
		var events []models.Event
		if err := tx.Select("id", "assigned_admin_id").Where("assigned_admin_id IN ?", adminIDs).Find(&events).Error; err != nil {
			return err
		}
		for _, e := range events {
			a := byID[*e.AssignedAdminID]
			a.AssignedEventIDs = append(a.AssignedEventIDs, e.ID)
		}
	}
	return nil
}

// loadSubAdmins fills SubAdminIDs on each event from the assignment rows.
func loadSubAdmins(tx *gorm.DB, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(events))
	index := make(map[uuid.UUID]int, len(events))
	for i := range events {
		ids[i] = events[i].ID
		index[events[i].ID] = i
		events[i].SubAdminIDs = []uuid.UUID{}
	}

	var rows []models.Assignment
	if err := tx.Where("event_id IN ?", ids).Order("created_at").Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		e := &events[index[row.EventID]]
		e.SubAdminIDs = append(e.SubAdminIDs, row.AccountID)
	}
	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
