package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DefaultEncryptionKey is the placeholder shipped in .env.example. It must
// never survive into a production deployment.
const DefaultEncryptionKey = "change-me-32-character-secret!!!"

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Encryption EncryptionConfig
	Enrollment EnrollmentConfig
	RateLimit  RateLimitConfig
	Archive    ArchiveConfig
	Admin      AdminConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EncryptionConfig drives field-level encryption of submitted forms.
type EncryptionConfig struct {
	Key string
}

// EnrollmentConfig tunes the enrollment read path.
type EnrollmentConfig struct {
	SchoolYear        string
	CacheTTL          time.Duration
	SearchPrefetchCap int
	DefaultPageSize   int
	MaxPageSize       int
}

// RateLimitBudget is a sliding-window allowance per client address.
type RateLimitBudget struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig carries the distinct traffic budgets.
type RateLimitConfig struct {
	Enabled bool
	General RateLimitBudget
	Auth    RateLimitBudget
	API     RateLimitBudget
}

// ArchiveConfig selects the archival strategy for enrollments.
type ArchiveConfig struct {
	DeleteOriginal bool
}

// AdminConfig holds the bootstrap admin credential.
type AdminConfig struct {
	Email        string
	PasswordHash string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Encryption = EncryptionConfig{Key: v.GetString("ENCRYPTION_KEY")}

	cfg.Enrollment = EnrollmentConfig{
		SchoolYear:        v.GetString("ENROLLMENT_SCHOOL_YEAR"),
		CacheTTL:          parseDuration(v.GetString("ENROLLMENT_CACHE_TTL"), 5*time.Minute),
		SearchPrefetchCap: v.GetInt("ENROLLMENT_SEARCH_PREFETCH_CAP"),
		DefaultPageSize:   v.GetInt("ENROLLMENT_DEFAULT_PAGE_SIZE"),
		MaxPageSize:       v.GetInt("ENROLLMENT_MAX_PAGE_SIZE"),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled: v.GetBool("RATE_LIMIT_ENABLED"),
		General: RateLimitBudget{
			Limit:  v.GetInt("RATE_LIMIT_GENERAL_MAX"),
			Window: parseDuration(v.GetString("RATE_LIMIT_GENERAL_WINDOW"), 15*time.Minute),
		},
		Auth: RateLimitBudget{
			Limit:  v.GetInt("RATE_LIMIT_AUTH_MAX"),
			Window: parseDuration(v.GetString("RATE_LIMIT_AUTH_WINDOW"), 15*time.Minute),
		},
		API: RateLimitBudget{
			Limit:  v.GetInt("RATE_LIMIT_API_MAX"),
			Window: parseDuration(v.GetString("RATE_LIMIT_API_WINDOW"), time.Minute),
		},
	}

	cfg.Archive = ArchiveConfig{DeleteOriginal: v.GetBool("ARCHIVE_DELETE_ORIGINAL")}

	cfg.Admin = AdminConfig{
		Email:        v.GetString("ADMIN_EMAIL"),
		PasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
	}

	return cfg, nil
}

// EncryptionKeyUsable reports whether the configured key is non-default and
// long enough for AES-256. A production deployment must never run without one.
func (c *Config) EncryptionKeyUsable() bool {
	return c.Encryption.Key != "" && c.Encryption.Key != DefaultEncryptionKey && len(c.Encryption.Key) >= 32
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "enrollment")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "enrollment-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENCRYPTION_KEY", DefaultEncryptionKey)

	v.SetDefault("ENROLLMENT_SCHOOL_YEAR", "2025-2026")
	v.SetDefault("ENROLLMENT_CACHE_TTL", "5m")
	v.SetDefault("ENROLLMENT_SEARCH_PREFETCH_CAP", 100)
	v.SetDefault("ENROLLMENT_DEFAULT_PAGE_SIZE", 20)
	v.SetDefault("ENROLLMENT_MAX_PAGE_SIZE", 100)

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_GENERAL_MAX", 100)
	v.SetDefault("RATE_LIMIT_GENERAL_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_AUTH_MAX", 5)
	v.SetDefault("RATE_LIMIT_AUTH_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_API_MAX", 60)
	v.SetDefault("RATE_LIMIT_API_WINDOW", "1m")

	v.SetDefault("ARCHIVE_DELETE_ORIGINAL", false)

	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
