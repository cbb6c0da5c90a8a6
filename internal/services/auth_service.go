package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/farellandr/eventhub/internal/mailer"
	"github.com/farellandr/eventhub/internal/models"
	"github.com/farellandr/eventhub/internal/observability"
	"github.com/farellandr/eventhub/internal/policy"
)

// Realm selects which account namespaces a login or reset applies to.
type Realm string

const (
	RealmUser  Realm = "user"
	RealmAdmin Realm = "admin"
)

func ParseRealm(s string) (Realm, bool) {
	switch r := Realm(strings.ToLower(s)); r {
	case RealmUser, RealmAdmin:
		return r, true
	}
	return "", false
}

// kinds lists the namespaces searched for a realm, in lookup order.
func (r Realm) kinds() []models.AccountKind {
	if r == RealmAdmin {
		return []models.AccountKind{models.KindSuperAdmin, models.KindStaff}
	}
	return []models.AccountKind{models.KindUser}
}

const GenericResetMessage = "If that email exists, a reset link has been sent."

type AuthConfig struct {
	JWTSecret        string
	TokenTTL         time.Duration
	RememberTokenTTL time.Duration
	ResetTokenTTL    time.Duration
	FrontendURL      string
}

type AuthService struct {
	db      *gorm.DB
	cfg     AuthConfig
	mail    mailer.Mailer
	tasks   Submitter
	metrics *observability.Metrics
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewAuthService(db *gorm.DB, cfg AuthConfig, mail mailer.Mailer, tasks Submitter, metrics *observability.Metrics, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		db:      db,
		cfg:     cfg,
		mail:    mail,
		tasks:   tasks,
		metrics: metrics,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates an end-user account.
func (s *AuthService) Register(ctx context.Context, in SignupInput) (*models.Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	if len(in.Password) < 6 {
		return nil, invalid("password must be at least 6 characters")
	}

	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := models.Account{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hashed,
		Role:         models.RoleUser,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return &account, nil
}

type Credentials struct {
	Email      string
	Password   string
	RememberMe bool
}

type Session struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Principal *policy.Principal `json:"user"`
}

func (s *AuthService) Login(ctx context.Context, realm Realm, creds Credentials) (*Session, error) {
	email := normalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, ErrMissingFields
	}

	account, err := s.findByEmail(ctx, realm, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := assignedEventIDs(s.db.WithContext(ctx), []*models.Account{account}); err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}

	ttl := s.cfg.TokenTTL
	if creds.RememberMe {
		ttl = s.cfg.RememberTokenTTL
	}
	expiresAt := s.now().Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": account.ID.String(),
		"role":    string(account.Role),
		"exp":     expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Session{Token: signed, ExpiresAt: expiresAt, Principal: policy.FromAccount(account)}, nil
}

// findByEmail searches the realm's namespaces in order and returns the first match.
func (s *AuthService) findByEmail(ctx context.Context, realm Realm, email string) (*models.Account, error) {
	for _, kind := range realm.kinds() {
		var account models.Account
		err := s.db.WithContext(ctx).Where("kind = ? AND email = ?", kind, email).First(&account).Error
		if err == nil {
			return &account, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("find account: %w", err)
		}
	}
	return nil, ErrNotFound
}

// Authenticate resolves a bearer token to a principal. Malformed, expired or
// stale tokens yield nil so the caller is treated as anonymous.
func (s *AuthService) Authenticate(ctx context.Context, raw string) *policy.Principal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	idClaim, _ := claims["user_id"].(string)
	roleClaim, _ := claims["role"].(string)
	id, err := uuid.Parse(idClaim)
	if err != nil {
		return nil
	}
	role, ok := models.ParseRole(roleClaim)
	if !ok {
		return nil
	}

	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.WithError(err).Warn("token account lookup failed")
		}
		return nil
	}
	if account.Role != role {
		return nil
	}
	if err := assignedEventIDs(s.db.WithContext(ctx), []*models.Account{&account}); err != nil {
		s.log.WithError(err).Warn("token assignment lookup failed")
		return nil
	}
	return policy.FromAccount(&account)
}

func hashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RequestReset stores a fresh reset token for the account, if any, and mails
// the raw token. The outcome is never revealed to the caller.
func (s *AuthService) RequestReset(ctx context.Context, realm Realm, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrMissingFields
	}

	account, err := s.findByEmail(ctx, realm, email)
	if errors.Is(err, ErrNotFound) {
		s.log.WithField("realm", realm).Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	raw := hex.EncodeToString(buf)
	hash := hashResetToken(raw)
	expiry := s.now().Add(s.cfg.ResetTokenTTL)

	if err := s.db.WithContext(ctx).Model(account).Updates(map[string]interface{}{
		"reset_token_hash":   hash,
		"reset_token_expiry": expiry,
	}).Error; err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	msg, err := mailer.ResetEmail{
		To:       account.Email,
		Name:     account.Name,
		URL:      fmt.Sprintf("%s/reset-password/%s/%s", s.cfg.FrontendURL, realm, raw),
		ValidFor: fmt.Sprintf("%d minutes", int(s.cfg.ResetTokenTTL.Minutes())),
		Admin:    realm == RealmAdmin,
	}.Message()
	if err != nil {
		return err
	}

	err = s.tasks.Submit("reset mail", func(ctx context.Context) error {
		if err := s.mail.Send(ctx, msg); err != nil {
			s.metrics.Email("reset", "failed")
			return err
		}
		s.metrics.Email("reset", "sent")
		return nil
	})
	if err != nil {
		s.log.WithError(err).Error("could not queue reset mail")
	}
	return nil
}

// PerformReset consumes a reset token. A token works at most once.
func (s *AuthService) PerformReset(ctx context.Context, realm Realm, rawToken, newPassword string) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" || newPassword == "" {
		return ErrMissingFields
	}
	if len(newPassword) < 6 {
		return invalid("password must be at least 6 characters")
	}

	hashed, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("kind IN ? AND reset_token_hash = ? AND reset_token_expiry > ?", realm.kinds(), hashResetToken(rawToken), s.now()).
		Updates(map[string]interface{}{
			"password_hash":      hashed,
			"reset_token_hash":   nil,
			"reset_token_expiry": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("reset password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidOrExpiredToken
	}
	return nil
}

// Profile returns the caller's own account.
func (s *AuthService) Profile(ctx context.Context, p *policy.Principal) (*models.Account, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthorized
	}

	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", p.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if err := assignedEventIDs(s.db.WithContext(ctx), []*models.Account{&account}); err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	return &account, nil
}

// PurgeExpiredResetTokens clears reset fields whose expiry has passed.
func (s *AuthService) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("reset_token_expiry IS NOT NULL AND reset_token_expiry <= ?", s.now()).
		Updates(map[string]interface{}{
			"reset_token_hash":   nil,
			"reset_token_expiry": nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("purge reset tokens: %w", res.Error)
	}
	s.metrics.ResetTokensCleared(res.RowsAffected)
	return res.RowsAffected, nil
}
