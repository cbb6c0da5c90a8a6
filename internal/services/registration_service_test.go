package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/farellandr/eventhub/internal/models"
	"github.com/farellandr/eventhub/internal/policy"
	"github.com/farellandr/eventhub/internal/testutil"
	"github.com/farellandr/eventhub/internal/tickets"
)

type registrationFixture struct {
	db     *gorm.DB
	svc    *RegistrationService
	mail   *recordingMailer
	tasks  *inlineTasks
	signer *tickets.Signer
	super  *policy.Principal
}

func newRegistrationFixture(t *testing.T) *registrationFixture {
	db := testutil.NewDB(t)
	f := &registrationFixture{
		db:     db,
		mail:   &recordingMailer{},
		tasks:  &inlineTasks{},
		signer: tickets.NewSigner("ticket-secret"),
	}
	f.svc = NewRegistrationService(db, f.signer, f.mail, f.tasks, nil, nullLogger())
	f.super = testutil.Principal(testutil.Account(t, db, models.RoleSuperAdmin, models.CategoryAll, "root@example.com", nil))
	return f
}

func (f *registrationFixture) teamEvent(t *testing.T, min, max int) *models.Event {
	return testutil.Event(t, f.db, f.super, "Team Hack", models.CategoryTech, func(e *models.Event) {
		e.IsTeamEvent = true
		e.MinTeamSize = min
		e.MaxTeamSize = max
	})
}

func members(n int) []models.Member {
	out := make([]models.Member, n)
	for i := range out {
		out[i] = models.Member{Name: "Mate", Email: uuid.NewString()[:8] + "@example.com"}
	}
	return out
}

func TestRegistrationScenario(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	event := f.teamEvent(t, 2, 4)
	userA := testutil.Principal(testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "a@example.com", nil))

	res, err := f.svc.Register(ctx, userA, RegistrationInput{
		EventID:     event.ID,
		Participant: models.Member{Name: "A", Email: "a@example.com", Phone: "555"},
		TeamName:    "Rockets",
		TeamMembers: []models.Member{{Name: "B", Email: "b@example.com"}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.TicketID)
	assert.True(t, res.IsTeamRegistration)

	var stored models.Registration
	require.NoError(t, f.db.First(&stored, "id = ?", res.RegistrationID).Error)
	assert.Equal(t, models.StatusRegistered, stored.Status)
	assert.Equal(t, res.TicketID, stored.TicketID)
	assert.Equal(t, "Rockets", stored.TeamName)
	require.Len(t, stored.TeamMembers, 1)
	assert.Equal(t, "b@example.com", stored.TeamMembers[0].Email)

	_, err = f.svc.Register(ctx, userA, RegistrationInput{
		EventID:     event.ID,
		Participant: models.Member{Name: "A", Email: "a@example.com"},
		TeamMembers: []models.Member{{Name: "B", Email: "b@example.com"}},
	})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	assigned := testutil.Account(t, f.db, models.RoleSubAdmin, models.CategoryAll, "assigned@example.com", f.super)
	assignedP := testutil.Assign(t, f.db, event, assigned)
	_, regs, err := f.svc.Participants(ctx, assignedP, event.ID)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, userA.ID, regs[0].UserID)

	unassigned := testutil.Principal(testutil.Account(t, f.db, models.RoleSubAdmin, models.CategoryAll, "loose@example.com", f.super))
	_, _, err = f.svc.Participants(ctx, unassigned, event.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestTeamSizeBounds(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	event := f.teamEvent(t, 2, 4)

	cases := []struct {
		members int
		bound   TeamBound
	}{
		{0, TeamBoundMin},
		{1, ""},
		{2, ""},
		{3, ""},
		{4, TeamBoundMax},
	}
	for _, tc := range cases {
		user := testutil.Principal(testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, uuid.NewString()+"@example.com", nil))
		_, err := f.svc.Register(ctx, user, RegistrationInput{
			EventID:     event.ID,
			Participant: models.Member{Name: "Lead", Email: user.Email},
			TeamMembers: members(tc.members),
		})
		if tc.bound == "" {
			assert.NoError(t, err, "members=%d", tc.members)
			continue
		}
		require.ErrorIs(t, err, ErrTeamSizeViolation, "members=%d", tc.members)
		var sizeErr *TeamSizeError
		require.True(t, errors.As(err, &sizeErr))
		assert.Equal(t, tc.bound, sizeErr.Bound)
		assert.Equal(t, tc.members, sizeErr.Got)
	}

	var count int64
	f.db.Model(&models.Registration{}).Count(&count)
	assert.Equal(t, int64(3), count, "rejected registrations leave nothing behind")
}

func TestRegisterValidation(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	event := testutil.Event(t, f.db, f.super, "Solo", models.CategoryTech)
	user := testutil.Principal(testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "u@example.com", nil))

	_, err := f.svc.Register(ctx, nil, RegistrationInput{EventID: event.ID, Participant: models.Member{Name: "U", Email: "u@example.com"}})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Register(ctx, user, RegistrationInput{EventID: event.ID, Participant: models.Member{Name: "U"}})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = f.svc.Register(ctx, user, RegistrationInput{Participant: models.Member{Name: "U", Email: "u@example.com"}})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = f.svc.Register(ctx, user, RegistrationInput{EventID: uuid.New(), Participant: models.Member{Name: "U", Email: "u@example.com"}})
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := f.svc.Register(ctx, user, RegistrationInput{
		EventID:     event.ID,
		Participant: models.Member{Name: "U", Email: "u@example.com"},
		TeamName:    "ignored",
		TeamMembers: members(2),
	})
	require.NoError(t, err)
	assert.False(t, res.IsTeamRegistration, "team data is ignored for solo events")

	var stored models.Registration
	require.NoError(t, f.db.First(&stored, "id = ?", res.RegistrationID).Error)
	assert.Empty(t, stored.TeamMembers)
	assert.Empty(t, stored.TeamName)
}

func TestRegistrationIsAtomic(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	event := testutil.Event(t, f.db, f.super, "Solo", models.CategoryTech)
	user := testutil.Principal(testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "u@example.com", nil))

	storeFailure := errors.New("simulated store failure")
	require.NoError(t, f.db.Callback().Create().After("gorm:create").Register("test:fail_after_insert", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "registrations" {
			tx.AddError(storeFailure)
		}
	}))

	_, err := f.svc.Register(ctx, user, RegistrationInput{EventID: event.ID, Participant: models.Member{Name: "U", Email: "u@example.com"}})
	require.ErrorIs(t, err, storeFailure)

	var count int64
	require.NoError(t, f.db.Model(&models.Registration{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.mail.messages(), "no ticket for a rolled back registration")
}

func TestActiveRegistrationUniqueIndex(t *testing.T) {
	f := newRegistrationFixture(t)
	event := testutil.Event(t, f.db, f.super, "Solo", models.CategoryTech)
	user := testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "u@example.com", nil)

	insert := func() error {
		return f.db.Create(&models.Registration{
			UserID: user.ID, EventID: event.ID, TicketID: tickets.NewTicketID(),
			Participant: models.Member{Name: "U", Email: "u@example.com"},
		}).Error
	}
	require.NoError(t, insert())
	assert.ErrorIs(t, insert(), gorm.ErrDuplicatedKey, "the store rejects a second active registration")
}

func TestCancelRegistration(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	event := testutil.Event(t, f.db, f.super, "Solo", models.CategoryTech)
	user := testutil.Principal(testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "u@example.com", nil))
	other := testutil.Principal(testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "o@example.com", nil))

	res, err := f.svc.Register(ctx, user, RegistrationInput{EventID: event.ID, Participant: models.Member{Name: "U", Email: "u@example.com"}})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Cancel(ctx, other, res.RegistrationID), ErrNotFound, "scoped to the owner")
	require.NoError(t, f.svc.Cancel(ctx, user, res.RegistrationID))
	assert.ErrorIs(t, f.svc.Cancel(ctx, user, res.RegistrationID), ErrNotFound, "second cancel changes nothing")

	var stored models.Registration
	require.NoError(t, f.db.First(&stored, "id = ?", res.RegistrationID).Error)
	assert.Equal(t, models.StatusCancelled, stored.Status)

	again, err := f.svc.Register(ctx, user, RegistrationInput{EventID: event.ID, Participant: models.Member{Name: "U", Email: "u@example.com"}})
	require.NoError(t, err, "a cancelled registration does not block a new one")
	assert.NotEqual(t, res.TicketID, again.TicketID)
}

func TestTicketEmails(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	event := f.teamEvent(t, 2, 5)
	user := testutil.Principal(testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "lead@example.com", nil))

	res, err := f.svc.Register(ctx, user, RegistrationInput{
		EventID:     event.ID,
		Participant: models.Member{Name: "Lead", Email: "lead@example.com"},
		TeamName:    "Rockets",
		TeamMembers: []models.Member{{Name: "B", Email: "b@example.com"}, {Name: "C", Email: "c@example.com"}},
	})
	require.NoError(t, err)

	msgs := f.mail.messages()
	require.Len(t, msgs, 3, "registrant plus one per team member")
	var to []string
	for _, m := range msgs {
		to = append(to, m.To)
		assert.Equal(t, "Registration Confirmation - Team Hack", m.Subject)
		require.Len(t, m.Attachments, 1)
		assert.Equal(t, "Ticket-"+res.TicketID+".pdf", m.Attachments[0].Filename)
		assert.Equal(t, "%PDF-", string(m.Attachments[0].Data[:5]))
	}
	assert.ElementsMatch(t, []string{"lead@example.com", "b@example.com", "c@example.com"}, to)
}

func TestMailFailureKeepsRegistration(t *testing.T) {
	f := newRegistrationFixture(t)
	f.mail.fail = true
	ctx := context.Background()
	event := testutil.Event(t, f.db, f.super, "Solo", models.CategoryTech)
	user := testutil.Principal(testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "u@example.com", nil))

	res, err := f.svc.Register(ctx, user, RegistrationInput{EventID: event.ID, Participant: models.Member{Name: "U", Email: "u@example.com"}})
	require.NoError(t, err)
	assert.Len(t, f.tasks.errs, 1)

	var count int64
	f.db.Model(&models.Registration{}).Where("id = ?", res.RegistrationID).Count(&count)
	assert.Equal(t, int64(1), count)

	f.tasks.reject = true
	other := testutil.Principal(testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "o@example.com", nil))
	_, err = f.svc.Register(ctx, other, RegistrationInput{EventID: event.ID, Participant: models.Member{Name: "O", Email: "o@example.com"}})
	assert.NoError(t, err, "a closed task queue does not fail the request")
}

func TestMine(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	kept := testutil.Event(t, f.db, f.super, "Kept", models.CategoryTech)
	gone := testutil.Event(t, f.db, f.super, "Gone", models.CategoryTech)
	user := testutil.Principal(testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "u@example.com", nil))

	for _, e := range []*models.Event{kept, gone} {
		_, err := f.svc.Register(ctx, user, RegistrationInput{EventID: e.ID, Participant: models.Member{Name: "U", Email: "u@example.com"}})
		require.NoError(t, err)
	}
	require.NoError(t, f.db.Delete(&models.Event{}, "id = ?", gone.ID).Error)

	mine, err := f.svc.Mine(ctx, user)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Kept", mine[0].EventDetails.Title)

	_, err = f.svc.Mine(ctx, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestOverview(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	admin := testutil.Principal(testutil.Account(t, f.db, models.RoleAdmin, models.CategoryAll, "admin@example.com", f.super))
	mine := testutil.Event(t, f.db, admin, "Mine", models.CategoryTech)
	theirs := testutil.Event(t, f.db, f.super, "Theirs", models.CategoryTech)
	user := testutil.Principal(testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "u@example.com", nil))

	for _, e := range []*models.Event{mine, theirs} {
		_, err := f.svc.Register(ctx, user, RegistrationInput{EventID: e.ID, Participant: models.Member{Name: "U", Email: "u@example.com"}})
		require.NoError(t, err)
	}

	regs, err := f.svc.Overview(ctx, admin)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, mine.ID, regs[0].EventID)

	regs, err = f.svc.Overview(ctx, f.super)
	require.NoError(t, err)
	assert.Len(t, regs, 2)

	_, err = f.svc.Overview(ctx, user)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCheckIn(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	event := testutil.Event(t, f.db, f.super, "Gate", models.CategoryTech)
	user := testutil.Principal(testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "u@example.com", nil))
	sub := testutil.Account(t, f.db, models.RoleSubAdmin, models.CategoryAll, "gate@example.com", f.super)
	gate := testutil.Assign(t, f.db, event, sub)

	res, err := f.svc.Register(ctx, user, RegistrationInput{EventID: event.ID, Participant: models.Member{Name: "U", Email: "u@example.com"}})
	require.NoError(t, err)
	payload := f.signer.Payload(res.RegistrationID, res.TicketID, event.ID)

	_, err = f.svc.CheckIn(ctx, user, payload)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CheckIn(ctx, gate, tickets.NewSigner("forged").Payload(res.RegistrationID, res.TicketID, event.ID))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.CheckIn(ctx, gate, "garbage")
	assert.ErrorIs(t, err, ErrInvalidInput)

	reg, err := f.svc.CheckIn(ctx, gate, payload)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAttended, reg.Status)

	_, err = f.svc.CheckIn(ctx, gate, payload)
	assert.ErrorIs(t, err, ErrInvalidInput, "a ticket is redeemed once")
}

func TestRegistrationOutcome(t *testing.T) {
	assert.Equal(t, "success", registrationOutcome(nil))
	assert.Equal(t, "team_size", registrationOutcome(&TeamSizeError{Bound: TeamBoundMax}))
	assert.Equal(t, "already_registered", registrationOutcome(ErrAlreadyRegistered))
	assert.Equal(t, "error", registrationOutcome(errors.New("boom")))
}
