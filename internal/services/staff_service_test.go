package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farellandr/eventhub/internal/models"
	"github.com/farellandr/eventhub/internal/testutil"
)

func TestCreateStaff(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewStaffService(db)
	ctx := context.Background()

	super := testutil.Principal(testutil.Account(t, db, models.RoleSuperAdmin, models.CategoryAll, "root@example.com", nil))

	admin, err := svc.Create(ctx, super, StaffInput{
		Name: "Tech Lead", Email: "Lead@Example.com", Password: "secret1",
		Role: models.RoleAdmin, Category: models.CategoryTech,
	})
	require.NoError(t, err)
	assert.Equal(t, "lead@example.com", admin.Email)
	assert.Equal(t, models.CategoryTech, admin.Category)
	assert.Equal(t, super.ID, admin.CreatedBy.ID)
	assert.Equal(t, models.RoleSuperAdmin, admin.CreatedBy.Role)

	adminP := testutil.Principal(admin)
	own := testutil.Event(t, db, adminP, "Own", models.CategoryTech)
	foreign := testutil.Event(t, db, super, "Foreign", models.CategoryTech)

	t.Run("admin creates sub-admin for its own events", func(t *testing.T) {
		sub, err := svc.Create(ctx, adminP, StaffInput{
			Name: "Helper", Email: "helper@example.com", Password: "secret1",
			Role: models.RoleSubAdmin, AssignedEvents: []uuid.UUID{own.ID, own.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, adminP.ID, sub.CreatedBy.ID)
		assert.Equal(t, models.CategoryTech, sub.Category, "inherits the admin's restriction")
		assert.Equal(t, []uuid.UUID{own.ID}, sub.AssignedEventIDs)

		var rows []models.Assignment
		require.NoError(t, db.Find(&rows, "account_id = ?", sub.ID).Error)
		assert.Len(t, rows, 1)
	})

	t.Run("admin cannot create admins", func(t *testing.T) {
		_, err := svc.Create(ctx, adminP, StaffInput{Name: "X", Email: "x@example.com", Password: "secret1", Role: models.RoleAdmin})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin cannot delegate events it does not manage", func(t *testing.T) {
		_, err := svc.Create(ctx, adminP, StaffInput{
			Name: "Y", Email: "y@example.com", Password: "secret1",
			Role: models.RoleSubAdmin, AssignedEvents: []uuid.UUID{foreign.ID},
		})
		assert.ErrorIs(t, err, ErrForbidden)

		var count int64
		db.Model(&models.Account{}).Where("email = ?", "y@example.com").Count(&count)
		assert.Zero(t, count, "account creation rolled back")
	})

	t.Run("restricted admin cannot create other-category staff", func(t *testing.T) {
		_, err := svc.Create(ctx, adminP, StaffInput{
			Name: "Z", Email: "z@example.com", Password: "secret1",
			Role: models.RoleSubAdmin, Category: models.CategoryNonTech,
		})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("users cannot be created here", func(t *testing.T) {
		_, err := svc.Create(ctx, super, StaffInput{Name: "U", Email: "u@example.com", Password: "secret1", Role: models.RoleUser})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("email unique among staff", func(t *testing.T) {
		_, err := svc.Create(ctx, super, StaffInput{Name: "Dup", Email: "helper@example.com", Password: "secret1", Role: models.RoleAdmin})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Create(ctx, super, StaffInput{Email: "n@example.com", Password: "secret1", Role: models.RoleAdmin})
		assert.ErrorIs(t, err, ErrMissingFields)
	})

	t.Run("super admin assigns events to an admin", func(t *testing.T) {
		delegate, err := svc.Create(ctx, super, StaffInput{
			Name: "Delegate", Email: "delegate@example.com", Password: "secret1",
			Role: models.RoleAdmin, AssignedEvents: []uuid.UUID{foreign.ID},
		})
		require.NoError(t, err)

		var e models.Event
		require.NoError(t, db.First(&e, "id = ?", foreign.ID).Error)
		require.NotNil(t, e.AssignedAdminID)
		assert.Equal(t, delegate.ID, *e.AssignedAdminID)
	})
}

func TestListStaff(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewStaffService(db)
	ctx := context.Background()

	super := testutil.Principal(testutil.Account(t, db, models.RoleSuperAdmin, models.CategoryAll, "root@example.com", nil))
	a1 := testutil.Principal(testutil.Account(t, db, models.RoleAdmin, models.CategoryAll, "a1@example.com", super))
	a2 := testutil.Principal(testutil.Account(t, db, models.RoleAdmin, models.CategoryAll, "a2@example.com", super))
	testutil.Account(t, db, models.RoleSubAdmin, models.CategoryAll, "s1@example.com", a1)
	testutil.Account(t, db, models.RoleSubAdmin, models.CategoryAll, "s2@example.com", a2)
	testutil.Account(t, db, models.RoleUser, models.CategoryAll, "user@example.com", nil)

	all, err := svc.List(ctx, super)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	mine, err := svc.List(ctx, a1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "s1@example.com", mine[0].Email)

	_, err = svc.List(ctx, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateStaff(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewStaffService(db)
	ctx := context.Background()

	super := testutil.Principal(testutil.Account(t, db, models.RoleSuperAdmin, models.CategoryAll, "root@example.com", nil))
	admin := testutil.Principal(testutil.Account(t, db, models.RoleAdmin, models.CategoryAll, "admin@example.com", super))
	other := testutil.Principal(testutil.Account(t, db, models.RoleAdmin, models.CategoryAll, "other@example.com", super))
	sub := testutil.Account(t, db, models.RoleSubAdmin, models.CategoryAll, "sub@example.com", admin)

	e1 := testutil.Event(t, db, admin, "One", models.CategoryTech)
	e2 := testutil.Event(t, db, admin, "Two", models.CategoryNonTech)
	testutil.Assign(t, db, e1, sub)

	name := "Renamed"
	events := []uuid.UUID{e2.ID}
	updated, err := svc.Update(ctx, admin, sub.ID, StaffPatch{Name: &name, AssignedEvents: &events})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "sub@example.com", updated.Email, "unset fields are unchanged")
	assert.Equal(t, []uuid.UUID{e2.ID}, updated.AssignedEventIDs)

	var rows []models.Assignment
	require.NoError(t, db.Find(&rows, "account_id = ?", sub.ID).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, e2.ID, rows[0].EventID)

	t.Run("other admin is forbidden", func(t *testing.T) {
		_, err := svc.Update(ctx, other, sub.ID, StaffPatch{Name: &name})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("missing account hides behind forbidden for admins", func(t *testing.T) {
		_, err := svc.Update(ctx, admin, uuid.New(), StaffPatch{Name: &name})
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = svc.Update(ctx, super, uuid.New(), StaffPatch{Name: &name})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("email clash", func(t *testing.T) {
		email := "other@example.com"
		_, err := svc.Update(ctx, super, sub.ID, StaffPatch{Email: &email})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestDeleteStaffCascades(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewStaffService(db)
	ctx := context.Background()

	super := testutil.Principal(testutil.Account(t, db, models.RoleSuperAdmin, models.CategoryAll, "root@example.com", nil))
	admin := testutil.Account(t, db, models.RoleAdmin, models.CategoryAll, "admin@example.com", super)
	sub := testutil.Account(t, db, models.RoleSubAdmin, models.CategoryAll, "sub@example.com", super)
	event := testutil.Event(t, db, super, "Delegated", models.CategoryTech, func(e *models.Event) {
		e.AssignedAdminID = &admin.ID
	})
	testutil.Assign(t, db, event, sub)

	require.NoError(t, svc.Delete(ctx, super, sub.ID))
	require.NoError(t, svc.Delete(ctx, super, admin.ID))

	var assignments int64
	db.Model(&models.Assignment{}).Where("event_id = ?", event.ID).Count(&assignments)
	assert.Zero(t, assignments)

	var reloaded models.Event
	require.NoError(t, db.First(&reloaded, "id = ?", event.ID).Error)
	assert.Nil(t, reloaded.AssignedAdminID)

	assert.ErrorIs(t, svc.Delete(ctx, super, sub.ID), ErrNotFound)
}
