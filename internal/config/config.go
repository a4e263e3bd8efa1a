package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultJWTSecret        = "change-me-jwt-secret"
	defaultBackupCodePepper = "change-me-backup-pepper"
)

type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	DB           DBConfig
	Auth         AuthConfig
	Redis        RedisConfig
	Notification NotificationConfig
	Email        EmailConfig
}

type AppConfig struct {
	Env      string
	LogLevel string
}

// Development reports whether the app runs in a development environment.
func (c AppConfig) Development() bool {
	return c.Env == "dev" || c.Env == "development" || c.Env == "local"
}

type HTTPConfig struct {
	Addr           string
	AllowedOrigins []string
}

type DBConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret        string
	JWTAccessTTL     time.Duration
	TwoFactorIssuer  string
	BackupCodePepper string
}

type RedisConfig struct {
	URL     string // empty -> in-process routing only
	Channel string
}

type NotificationConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

type EmailConfig struct {
	ResendAPIKey string // empty -> email channel disabled
	From         string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:      strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		HTTP: HTTPConfig{
			Addr:           v.GetString("HTTP_ADDR"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			URL: strings.TrimSpace(v.GetString("DATABASE_URL")),
		},
		Auth: AuthConfig{
			JWTSecret:        strings.TrimSpace(v.GetString("JWT_SECRET")),
			TwoFactorIssuer:  v.GetString("TWO_FACTOR_ISSUER"),
			BackupCodePepper: strings.TrimSpace(v.GetString("BACKUP_CODE_PEPPER")),
		},
		Redis: RedisConfig{
			URL:     strings.TrimSpace(v.GetString("REDIS_URL")),
			Channel: v.GetString("REDIS_CHANNEL"),
		},
		Email: EmailConfig{
			ResendAPIKey: strings.TrimSpace(v.GetString("RESEND_API_KEY")),
			From:         v.GetString("EMAIL_FROM"),
		},
	}

	var err error
	if cfg.Auth.JWTAccessTTL, err = parseDuration(v, "JWT_ACCESS_TTL"); err != nil {
		return nil, err
	}
	if cfg.Notification.TTL, err = parseDuration(v, "NOTIFICATION_TTL"); err != nil {
		return nil, err
	}
	if cfg.Notification.CleanupInterval, err = parseDuration(v, "NOTIFICATION_CLEANUP_INTERVAL"); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "ordertrack.db")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_ACCESS_TTL", "24h")
	v.SetDefault("TWO_FACTOR_ISSUER", "OrderTrack")
	v.SetDefault("BACKUP_CODE_PEPPER", defaultBackupCodePepper)
	v.SetDefault("REDIS_CHANNEL", "ordertrack:rooms")
	v.SetDefault("NOTIFICATION_TTL", "720h")
	v.SetDefault("NOTIFICATION_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EMAIL_FROM", "OrderTrack <noreply@ordertrack.local>")
}

func validateConfig(cfg *Config) error {
	if cfg.Auth.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.Notification.TTL <= 0 {
		return fmt.Errorf("NOTIFICATION_TTL must be > 0")
	}
	if cfg.Notification.CleanupInterval <= 0 {
		return fmt.Errorf("NOTIFICATION_CLEANUP_INTERVAL must be > 0")
	}
	if cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.Redis.URL != "" && strings.TrimSpace(cfg.Redis.Channel) == "" {
		return fmt.Errorf("REDIS_CHANNEL must not be empty when REDIS_URL is set")
	}

	if isProdLike(cfg.App.Env) {
		if isEmptyOrDefault(cfg.Auth.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.Auth.BackupCodePepper, defaultBackupCodePepper) {
			return fmt.Errorf("in prod/release BACKUP_CODE_PEPPER must be set and not default")
		}
	}
	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDuration(v *viper.Viper, name string) (time.Duration, error) {
	value := strings.TrimSpace(v.GetString(name))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
