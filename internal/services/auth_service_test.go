package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/farellandr/eventhub/internal/models"
	"github.com/farellandr/eventhub/internal/testutil"
)

type authFixture struct {
	db    *gorm.DB
	svc   *AuthService
	mail  *recordingMailer
	tasks *inlineTasks
}

func newAuthFixture(t *testing.T) *authFixture {
	db := testutil.NewDB(t)
	f := &authFixture{db: db, mail: &recordingMailer{}, tasks: &inlineTasks{}}
	f.svc = NewAuthService(db, testAuthConfig(), f.mail, f.tasks, nil, nullLogger())
	return f
}

func TestRegisterAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	account, err := f.svc.Register(ctx, SignupInput{Name: " Ana ", Email: " Ana@Example.COM ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", account.Name)
	assert.Equal(t, "ana@example.com", account.Email)
	assert.Equal(t, models.RoleUser, account.Role)
	assert.NotEqual(t, "secret1", account.PasswordHash)

	_, err = f.svc.Register(ctx, SignupInput{Name: "Other", Email: "ANA@example.com", Password: "secret2"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.svc.Register(ctx, SignupInput{Name: "", Email: "x@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = f.svc.Register(ctx, SignupInput{Name: "Short", Email: "short@example.com", Password: "123"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEmailUniquePerNamespace(t *testing.T) {
	f := newAuthFixture(t)
	testutil.Account(t, f.db, models.RoleAdmin, models.CategoryAll, "shared@example.com", nil)

	_, err := f.svc.Register(context.Background(), SignupInput{Name: "User", Email: "shared@example.com", Password: "secret1"})
	assert.NoError(t, err, "user namespace is separate from staff")
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "user@example.com", nil)

	t.Run("success", func(t *testing.T) {
		session, err := f.svc.Login(ctx, RealmUser, Credentials{Email: "USER@example.com", Password: testutil.Password})
		require.NoError(t, err)
		assert.NotEmpty(t, session.Token)
		assert.Equal(t, user.ID, session.Principal.ID)
		assert.Equal(t, models.RoleUser, session.Principal.Role)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), session.ExpiresAt, time.Minute)

		claims := jwt.MapClaims{}
		_, err = jwt.ParseWithClaims(session.Token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte("test-secret"), nil
		})
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), claims["user_id"])
		assert.Equal(t, "USER", claims["role"])
	})

	t.Run("remember me extends lifetime", func(t *testing.T) {
		session, err := f.svc.Login(ctx, RealmUser, Credentials{Email: "user@example.com", Password: testutil.Password, RememberMe: true})
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), session.ExpiresAt, time.Minute)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.svc.Login(ctx, RealmUser, Credentials{Email: "user@example.com", Password: "nope"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.svc.Login(ctx, RealmUser, Credentials{Email: "ghost@example.com", Password: "whatever"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := f.svc.Login(ctx, RealmUser, Credentials{Email: "user@example.com"})
		assert.ErrorIs(t, err, ErrMissingFields)
	})

	t.Run("user cannot use admin login", func(t *testing.T) {
		_, err := f.svc.Login(ctx, RealmAdmin, Credentials{Email: "user@example.com", Password: testutil.Password})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAdminLoginPrefersSuperAdmin(t *testing.T) {
	f := newAuthFixture(t)
	super := testutil.Account(t, f.db, models.RoleSuperAdmin, models.CategoryAll, "boss@example.com", nil)
	testutil.Account(t, f.db, models.RoleAdmin, models.CategoryTech, "boss@example.com", nil)
	sub := testutil.Account(t, f.db, models.RoleSubAdmin, models.CategoryAll, "sub@example.com", nil)

	session, err := f.svc.Login(context.Background(), RealmAdmin, Credentials{Email: "boss@example.com", Password: testutil.Password})
	require.NoError(t, err)
	assert.Equal(t, super.ID, session.Principal.ID)
	assert.Equal(t, models.RoleSuperAdmin, session.Principal.Role)

	session, err = f.svc.Login(context.Background(), RealmAdmin, Credentials{Email: "sub@example.com", Password: testutil.Password})
	require.NoError(t, err)
	assert.Equal(t, sub.ID, session.Principal.ID)
	assert.Equal(t, models.RoleSubAdmin, session.Principal.Role)
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	owner := testutil.Principal(testutil.Account(t, f.db, models.RoleSuperAdmin, models.CategoryAll, "root@example.com", nil))
	sub := testutil.Account(t, f.db, models.RoleSubAdmin, models.CategoryAll, "sub@example.com", nil)
	event := testutil.Event(t, f.db, owner, "Hackathon", models.CategoryTech)
	testutil.Assign(t, f.db, event, sub)

	session, err := f.svc.Login(ctx, RealmAdmin, Credentials{Email: "sub@example.com", Password: testutil.Password})
	require.NoError(t, err)

	p := f.svc.Authenticate(ctx, session.Token)
	require.NotNil(t, p)
	assert.Equal(t, sub.ID, p.ID)
	assert.Equal(t, models.RoleSubAdmin, p.Role)
	assert.Equal(t, []uuid.UUID{event.ID}, p.AssignedEvents)

	t.Run("garbage", func(t *testing.T) {
		assert.Nil(t, f.svc.Authenticate(ctx, "not-a-token"))
		assert.Nil(t, f.svc.Authenticate(ctx, ""))
	})

	t.Run("wrong secret", func(t *testing.T) {
		forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id": sub.ID.String(),
			"role":    "SUB_ADMIN",
			"exp":     time.Now().Add(time.Hour).Unix(),
		})
		signed, err := forged.SignedString([]byte("other-secret"))
		require.NoError(t, err)
		assert.Nil(t, f.svc.Authenticate(ctx, signed))
	})

	t.Run("role claim must match account", func(t *testing.T) {
		elevated := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id": sub.ID.String(),
			"role":    "SUPER_ADMIN",
			"exp":     time.Now().Add(time.Hour).Unix(),
		})
		signed, err := elevated.SignedString([]byte("test-secret"))
		require.NoError(t, err)
		assert.Nil(t, f.svc.Authenticate(ctx, signed))
	})

	t.Run("expired", func(t *testing.T) {
		f.svc.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
		old, err := f.svc.Login(ctx, RealmAdmin, Credentials{Email: "sub@example.com", Password: testutil.Password})
		f.svc.now = func() time.Time { return time.Now().UTC() }
		require.NoError(t, err)
		assert.Nil(t, f.svc.Authenticate(ctx, old.Token))
	})

	t.Run("deleted account", func(t *testing.T) {
		require.NoError(t, f.db.Delete(&models.Account{}, "id = ?", sub.ID).Error)
		assert.Nil(t, f.svc.Authenticate(ctx, session.Token))
	})
}

var resetLink = regexp.MustCompile(`/reset-password/(user|admin)/([0-9a-f]{64})`)

func rawTokenFrom(t *testing.T, html string) (string, string) {
	t.Helper()
	m := resetLink.FindStringSubmatch(html)
	require.Len(t, m, 3, "reset link not found in %q", html)
	return m[1], m[2]
}

func TestPasswordReset(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "ana@example.com", nil)

	t.Run("unknown email looks the same", func(t *testing.T) {
		require.NoError(t, f.svc.RequestReset(ctx, RealmUser, "ghost@example.com"))
		assert.Empty(t, f.mail.messages())
	})

	require.NoError(t, f.svc.RequestReset(ctx, RealmUser, " ANA@example.com "))
	msgs := f.mail.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ana@example.com", msgs[0].To)
	assert.Equal(t, "Password Reset - User", msgs[0].Subject)

	realm, raw := rawTokenFrom(t, msgs[0].HTML)
	assert.Equal(t, "user", realm)

	var stored models.Account
	require.NoError(t, f.db.First(&stored, "id = ?", user.ID).Error)
	require.NotNil(t, stored.ResetTokenHash)
	assert.NotEqual(t, raw, *stored.ResetTokenHash, "only the hash is stored")
	assert.Equal(t, hashResetToken(raw), *stored.ResetTokenHash)
	require.NotNil(t, stored.ResetTokenExpiry)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), *stored.ResetTokenExpiry, time.Minute)

	t.Run("wrong realm", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.PerformReset(ctx, RealmAdmin, raw, "newpass1"), ErrInvalidOrExpiredToken)
	})

	require.NoError(t, f.svc.PerformReset(ctx, RealmUser, raw, "newpass1"))

	t.Run("token is single use", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.PerformReset(ctx, RealmUser, raw, "another1"), ErrInvalidOrExpiredToken)
	})

	_, err := f.svc.Login(ctx, RealmUser, Credentials{Email: "ana@example.com", Password: "newpass1"})
	assert.NoError(t, err)
	_, err = f.svc.Login(ctx, RealmUser, Credentials{Email: "ana@example.com", Password: testutil.Password})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	var cleared models.Account
	require.NoError(t, f.db.First(&cleared, "id = ?", user.ID).Error)
	assert.Nil(t, cleared.ResetTokenHash)
	assert.Nil(t, cleared.ResetTokenExpiry)
}

func TestPasswordResetExpires(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	testutil.Account(t, f.db, models.RoleAdmin, models.CategoryAll, "admin@example.com", nil)

	require.NoError(t, f.svc.RequestReset(ctx, RealmAdmin, "admin@example.com"))
	msgs := f.mail.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Password Reset - Admin", msgs[0].Subject)
	realm, raw := rawTokenFrom(t, msgs[0].HTML)
	assert.Equal(t, "admin", realm)

	f.svc.now = func() time.Time { return time.Now().UTC().Add(16 * time.Minute) }
	assert.ErrorIs(t, f.svc.PerformReset(ctx, RealmAdmin, raw, "newpass1"), ErrInvalidOrExpiredToken)

	purged, err := f.svc.PurgeExpiredResetTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestPasswordResetMailFailureStaysGeneric(t *testing.T) {
	f := newAuthFixture(t)
	f.mail.fail = true
	testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "ana@example.com", nil)

	require.NoError(t, f.svc.RequestReset(context.Background(), RealmUser, "ana@example.com"))
	require.Len(t, f.tasks.errs, 1, "the failure is reported to the task queue, not the caller")
}

func TestProfile(t *testing.T) {
	f := newAuthFixture(t)
	user := testutil.Account(t, f.db, models.RoleUser, models.CategoryAll, "ana@example.com", nil)

	_, err := f.svc.Profile(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	account, err := f.svc.Profile(context.Background(), testutil.Principal(user))
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", account.Email)
}

func TestParseRealm(t *testing.T) {
	r, ok := ParseRealm("Admin")
	assert.True(t, ok)
	assert.Equal(t, RealmAdmin, r)

	_, ok = ParseRealm("root")
	assert.False(t, ok)
}
