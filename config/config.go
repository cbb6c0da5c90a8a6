package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/farellandr/eventhub/internal/models"
)

type Config struct {
	Port        string
	FrontendURL string
	CORSOrigins []string
	UploadDir   string

	DB         DBConfig
	Auth       AuthConfig
	Mail       MailConfig
	SuperAdmin SuperAdminConfig

	LogLevel           string
	LogFormat          string
	ResetPurgeSchedule string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type AuthConfig struct {
	JWTSecret        string
	TicketSecret     string
	TokenTTL         time.Duration
	RememberTokenTTL time.Duration
	ResetTokenTTL    time.Duration
}

type MailConfig struct {
	From     string
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	Workers  int
}

// Enabled reports whether an SMTP relay is configured.
func (m MailConfig) Enabled() bool {
	return m.SMTPHost != ""
}

type SuperAdminConfig struct {
	Name     string
	Email    string
	Password string
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		UploadDir:   getEnv("UPLOAD_DIR", "./uploads/"),
		DB: DBConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     os.Getenv("DB_PORT"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
		},
		Auth: AuthConfig{
			JWTSecret:        os.Getenv("JWT_SECRET"),
			TicketSecret:     getEnv("TICKET_SECRET", os.Getenv("JWT_SECRET")),
			TokenTTL:         24 * time.Hour,
			RememberTokenTTL: 30 * 24 * time.Hour,
			ResetTokenTTL:    15 * time.Minute,
		},
		Mail: MailConfig{
			From:     getEnv("MAIL_FROM", "EventHub <no-reply@eventhub.local>"),
			SMTPHost: os.Getenv("SMTP_HOST"),
			SMTPPort: getEnvInt("SMTP_PORT", 587),
			SMTPUser: os.Getenv("SMTP_USER"),
			SMTPPass: os.Getenv("SMTP_PASS"),
			Workers:  getEnvInt("MAIL_WORKERS", 4),
		},
		SuperAdmin: SuperAdminConfig{
			Name:     getEnv("SUPERADMIN_NAME", "System SuperAdmin"),
			Email:    strings.ToLower(strings.TrimSpace(os.Getenv("SUPERADMIN_EMAIL"))),
			Password: os.Getenv("SUPERADMIN_PASSWORD"),
		},
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		ResetPurgeSchedule: getEnv("RESET_PURGE_SCHEDULE", "@every 15m"),
	}

	for _, origin := range strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET not configured")
	}
	if cfg.Mail.Workers < 1 {
		cfg.Mail.Workers = 1
	}

	return cfg, nil
}

func InitDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DB.Host, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.Port,
	)

	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// GormConfig is shared by the server and the tests so both translate
// driver errors the same way.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// SeedSuperAdmin creates the configured super admin once.
func SeedSuperAdmin(db *gorm.DB, cfg SuperAdminConfig, log *logrus.Logger) error {
	if cfg.Email == "" || cfg.Password == "" {
		log.Warn("SUPERADMIN_EMAIL or SUPERADMIN_PASSWORD not set, skipping super admin seed")
		return nil
	}

	var count int64
	if err := db.Model(&models.Account{}).
		Where("kind = ? AND email = ?", models.KindSuperAdmin, cfg.Email).
		Count(&count).Error; err != nil {
		return fmt.Errorf("look up super admin: %w", err)
	}
	if count > 0 {
		log.WithField("email", cfg.Email).Info("super admin already exists")
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash super admin password: %w", err)
	}

	account := models.Account{
		Name:         cfg.Name,
		Email:        cfg.Email,
		PasswordHash: string(hashed),
		Role:         models.RoleSuperAdmin,
		Category:     models.CategoryAll,
	}
	if err := db.Create(&account).Error; err != nil {
		return fmt.Errorf("create super admin: %w", err)
	}

	log.WithField("email", cfg.Email).Info("super admin created")
	return nil
}
