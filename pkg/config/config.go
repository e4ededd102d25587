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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	Clerk      ClerkConfig
	Calendar   CalendarConfig
	Cloudinary CloudinaryConfig
	CORS       CORSConfig
	Log        LogConfig
	Cache      CacheConfig
	Slots      SlotsConfig
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

// ClerkConfig holds identity-provider credentials. Session tokens are
// verified locally against the instance JWT public key; the secret key is
// only used for backend API calls (delegated OAuth tokens).
type ClerkConfig struct {
	APIBaseURL     string
	SecretKey      string
	WebhookSecret  string
	JWTPublicKey   string
	RequestTimeout time.Duration
}

// CalendarConfig controls the Google Calendar integration.
type CalendarConfig struct {
	CalendarID     string
	RequestTimeout time.Duration
}

// CloudinaryConfig configures the upload proxy.
type CloudinaryConfig struct {
	CloudName       string
	APIKey          string
	APISecret       string
	Folder          string
	MaxImageSize    int64
	MaxDocumentSize int64
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig governs Redis-backed read caching.
type CacheConfig struct {
	Enabled         bool
	ProfileTTL      time.Duration
	AvailabilityTTL time.Duration
}

// SlotsConfig bounds public slot queries.
type SlotsConfig struct {
	MaxRangeDays     int
	DefaultRangeDays int
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

	cfg.Clerk = ClerkConfig{
		APIBaseURL:     v.GetString("CLERK_API_BASE_URL"),
		SecretKey:      v.GetString("CLERK_SECRET_KEY"),
		WebhookSecret:  v.GetString("CLERK_WEBHOOK_SECRET"),
		JWTPublicKey:   v.GetString("CLERK_JWT_PUBLIC_KEY"),
		RequestTimeout: parseDuration(v.GetString("CLERK_REQUEST_TIMEOUT"), 10*time.Second),
	}

	cfg.Calendar = CalendarConfig{
		CalendarID:     v.GetString("GOOGLE_CALENDAR_ID"),
		RequestTimeout: parseDuration(v.GetString("GOOGLE_CALENDAR_TIMEOUT"), 15*time.Second),
	}

	maxImage := v.GetInt64("CLOUDINARY_MAX_IMAGE_SIZE")
	if maxImage <= 0 {
		maxImage = 5 * 1024 * 1024
	}
	maxDocument := v.GetInt64("CLOUDINARY_MAX_DOCUMENT_SIZE")
	if maxDocument <= 0 {
		maxDocument = 50 * 1024 * 1024
	}
	cfg.Cloudinary = CloudinaryConfig{
		CloudName:       v.GetString("CLOUDINARY_CLOUD_NAME"),
		APIKey:          v.GetString("CLOUDINARY_API_KEY"),
		APISecret:       v.GetString("CLOUDINARY_API_SECRET"),
		Folder:          v.GetString("CLOUDINARY_FOLDER"),
		MaxImageSize:    maxImage,
		MaxDocumentSize: maxDocument,
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled:         v.GetBool("ENABLE_CACHE"),
		ProfileTTL:      parseDuration(v.GetString("CACHE_PROFILE_TTL"), 5*time.Minute),
		AvailabilityTTL: parseDuration(v.GetString("CACHE_AVAILABILITY_TTL"), time.Minute),
	}

	cfg.Slots = SlotsConfig{
		MaxRangeDays:     v.GetInt("SLOTS_MAX_RANGE_DAYS"),
		DefaultRangeDays: v.GetInt("SLOTS_DEFAULT_RANGE_DAYS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "schedulrr")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CLERK_API_BASE_URL", "https://api.clerk.com")
	v.SetDefault("CLERK_SECRET_KEY", "")
	v.SetDefault("CLERK_WEBHOOK_SECRET", "")
	v.SetDefault("CLERK_JWT_PUBLIC_KEY", "")
	v.SetDefault("CLERK_REQUEST_TIMEOUT", "10s")

	v.SetDefault("GOOGLE_CALENDAR_ID", "primary")
	v.SetDefault("GOOGLE_CALENDAR_TIMEOUT", "15s")

	v.SetDefault("CLOUDINARY_CLOUD_NAME", "")
	v.SetDefault("CLOUDINARY_API_KEY", "")
	v.SetDefault("CLOUDINARY_API_SECRET", "")
	v.SetDefault("CLOUDINARY_FOLDER", "schedulrr")
	v.SetDefault("CLOUDINARY_MAX_IMAGE_SIZE", 5*1024*1024)
	v.SetDefault("CLOUDINARY_MAX_DOCUMENT_SIZE", 50*1024*1024)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_PROFILE_TTL", "5m")
	v.SetDefault("CACHE_AVAILABILITY_TTL", "1m")

	v.SetDefault("SLOTS_MAX_RANGE_DAYS", 31)
	v.SetDefault("SLOTS_DEFAULT_RANGE_DAYS", 30)
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
