package config

import (
	"errors"
	"io/fs"
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
	Env  string
	Port int

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Calendar CalendarConfig
	Warmer   WarmerConfig
	Export   ExportConfig
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
	// AutoMigrate applies pending migrations when the daemon starts.
	AutoMigrate bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CalendarConfig tunes calendar views.
type CalendarConfig struct {
	DefaultTimezone string
	DayStartHour    int
	DayEndHour      int
	MaxQueryDays    int
	CacheTTL        time.Duration
	DefaultSchemaID string
}

// WarmerConfig controls the background job that precomputes day views.
type WarmerConfig struct {
	Enabled     bool
	Schedule    string
	Workers     int
	Retries     int
	HorizonDays int
}

// ExportConfig configures calendar exports.
type ExportConfig struct {
	ProductID string
	// FeedDir receives published iCalendar feeds; empty disables publishing.
	FeedDir string
	FeedTTL time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Calendar = CalendarConfig{
		DefaultTimezone: v.GetString("CALENDAR_TIMEZONE"),
		DayStartHour:    clampHour(v.GetInt("CALENDAR_DAY_START_HOUR"), 8),
		DayEndHour:      clampHour(v.GetInt("CALENDAR_DAY_END_HOUR"), 19),
		MaxQueryDays:    v.GetInt("CALENDAR_MAX_QUERY_DAYS"),
		CacheTTL:        parseDuration(v.GetString("CALENDAR_CACHE_TTL"), 10*time.Minute),
		DefaultSchemaID: v.GetString("CALENDAR_DEFAULT_SCHEMA_ID"),
	}
	if cfg.Calendar.DayEndHour <= cfg.Calendar.DayStartHour {
		cfg.Calendar.DayStartHour, cfg.Calendar.DayEndHour = 8, 19
	}
	if cfg.Calendar.MaxQueryDays <= 0 {
		cfg.Calendar.MaxQueryDays = 62
	}

	cfg.Warmer = WarmerConfig{
		Enabled:     v.GetBool("ENABLE_CALENDAR_WARMER"),
		Schedule:    v.GetString("CALENDAR_WARMER_SCHEDULE"),
		Workers:     v.GetInt("CALENDAR_WARMER_WORKERS"),
		Retries:     v.GetInt("CALENDAR_WARMER_RETRIES"),
		HorizonDays: v.GetInt("CALENDAR_WARMER_HORIZON_DAYS"),
	}

	cfg.Export = ExportConfig{
		ProductID: v.GetString("EXPORT_PRODUCT_ID"),
		FeedDir:   v.GetString("EXPORT_FEED_DIR"),
		FeedTTL:   parseDuration(v.GetString("EXPORT_FEED_TTL"), 48*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lyceum")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CALENDAR_TIMEZONE", "UTC")
	v.SetDefault("CALENDAR_DAY_START_HOUR", 8)
	v.SetDefault("CALENDAR_DAY_END_HOUR", 19)
	v.SetDefault("CALENDAR_MAX_QUERY_DAYS", 62)
	v.SetDefault("CALENDAR_CACHE_TTL", "10m")
	v.SetDefault("CALENDAR_DEFAULT_SCHEMA_ID", "")

	v.SetDefault("ENABLE_CALENDAR_WARMER", false)
	v.SetDefault("CALENDAR_WARMER_SCHEDULE", "0 5 * * *")
	v.SetDefault("CALENDAR_WARMER_WORKERS", 2)
	v.SetDefault("CALENDAR_WARMER_RETRIES", 3)
	v.SetDefault("CALENDAR_WARMER_HORIZON_DAYS", 7)

	v.SetDefault("EXPORT_PRODUCT_ID", "-//SchoolTool//Lyceum//EN")
}

func clampHour(hour, fallback int) int {
	if hour < 0 || hour > 24 {
		return fallback
	}
	return hour
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
