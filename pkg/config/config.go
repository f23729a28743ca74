package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pharmacyonduty/backend/pkg/secrets"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Google     GoogleConfig
	Resolution ResolutionConfig
	Cache      CacheConfig
	Scraper    ScraperConfig
	Maps       MapsConfig
	OTEL       OTELConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Env          string
	LogLevel     string
	CitySeedPath string
	// DebugTimeOffset shifts "now" for manual testing of duty hours.
	DebugTimeOffset time.Duration
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// GoogleConfig holds Google Maps platform configuration
type GoogleConfig struct {
	APIKey          string
	GeocodeURL      string
	DistanceURL     string
	PlacesNearbyURL string
	MapsScriptURL   string
	Timeout         time.Duration
}

// ResolutionConfig holds the duty resolution tunables
type ResolutionConfig struct {
	Limit               int
	RadiusMeters        float64
	StaleAfter          time.Duration
	CoordinatePrecision int
	ScheduleTimezone    string
}

// CacheConfig holds memo cache settings
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// ScraperConfig holds settings for the external duty roster sources
type ScraperConfig struct {
	Timeout  time.Duration
	Timezone string

	// Concurrency bounds the per-district requests of multi-page sources.
	Concurrency  int
	EskisehirURL string
	IstanbulURL  string
	AnkaraURL    string
}

// MapsConfig holds the maps script proxy settings
type MapsConfig struct {
	AllowedReferers []string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables. A .env file is read
// first when present, then secrets from Vault when VAULT_ENABLED is set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	vaultCfg := secrets.LoadVaultConfigFromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), vaultCfg.Timeout)
	defer cancel()
	if _, err := secrets.ApplyVaultSecrets(ctx, vaultCfg); err != nil {
		return nil, fmt.Errorf("load vault secrets: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Env:             getEnv("APP_ENV", "production"),
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			CitySeedPath:    getEnv("CITY_SEED_PATH", "config/cities.yaml"),
			DebugTimeOffset: getEnvAsDuration("DEBUG_TIME_OFFSET", 0),
		},
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "pharmacy_on_duty"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Google: GoogleConfig{
			APIKey:          getEnv("GOOGLE_MAPS_API_KEY", ""),
			GeocodeURL:      getEnv("GOOGLE_GEOCODE_URL", "https://maps.googleapis.com/maps/api/geocode/json"),
			DistanceURL:     getEnv("GOOGLE_DISTANCE_MATRIX_URL", "https://maps.googleapis.com/maps/api/distancematrix/json"),
			PlacesNearbyURL: getEnv("GOOGLE_PLACES_NEARBY_URL", "https://maps.googleapis.com/maps/api/place/nearbysearch/json"),
			MapsScriptURL:   getEnv("GOOGLE_MAPS_SCRIPT_URL", "https://maps.googleapis.com/maps/api/js"),
			Timeout:         getEnvAsDuration("EXTERNAL_TIMEOUT", 10*time.Second),
		},
		Resolution: ResolutionConfig{
			Limit:               getEnvAsInt("RESOLUTION_LIMIT", 5),
			RadiusMeters:        getEnvAsFloat("DUTY_RADIUS_METERS", 100000),
			StaleAfter:          getEnvAsDuration("FRESHNESS_STALE_AFTER", 6*time.Hour),
			CoordinatePrecision: getEnvAsInt("COORDINATE_PRECISION", 4),
			ScheduleTimezone:    getEnv("SCHEDULE_TIMEZONE", "UTC"),
		},
		Cache: CacheConfig{
			Size: getEnvAsInt("MEMO_CACHE_SIZE", 1024),
			TTL:  getEnvAsDuration("MEMO_CACHE_TTL", 0),
		},
		Scraper: ScraperConfig{
			Timeout:  getEnvAsDuration("SCRAPER_TIMEOUT", 10*time.Second),
			Timezone: getEnv("SCRAPER_TIMEZONE", "Europe/Istanbul"),

			Concurrency:  getEnvAsInt("SCRAPER_CONCURRENCY", 8),
			EskisehirURL: getEnv("SCRAPER_ESKISEHIR_URL", "https://www.eskisehireo.org.tr/eskisehir-nobetci-eczaneler"),
			IstanbulURL:  getEnv("SCRAPER_ISTANBUL_URL", "https://nobetcieczane.istanbulsaglik.gov.tr:88/Home/GetEczaneler"),
			AnkaraURL:    getEnv("SCRAPER_ANKARA_URL", "https://mvc.aeo.org.tr/home/NobetciEczaneGetirTarih"),
		},
		Maps: MapsConfig{
			AllowedReferers: getEnvAsList("ALLOWED_REFERERS", nil),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "pharmacy-on-duty"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the resolution engine cannot work with
func (c *Config) Validate() error {
	if c.Resolution.Limit <= 0 {
		return fmt.Errorf("RESOLUTION_LIMIT must be positive, got %d", c.Resolution.Limit)
	}
	if c.Resolution.RadiusMeters <= 0 {
		return fmt.Errorf("DUTY_RADIUS_METERS must be positive, got %v", c.Resolution.RadiusMeters)
	}
	if c.Resolution.StaleAfter <= 0 {
		return fmt.Errorf("FRESHNESS_STALE_AFTER must be positive, got %s", c.Resolution.StaleAfter)
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("MEMO_CACHE_SIZE must be positive, got %d", c.Cache.Size)
	}
	if _, err := time.LoadLocation(c.Resolution.ScheduleTimezone); err != nil {
		return fmt.Errorf("invalid SCHEDULE_TIMEZONE: %w", err)
	}
	if _, err := time.LoadLocation(c.Scraper.Timezone); err != nil {
		return fmt.Errorf("invalid SCRAPER_TIMEZONE: %w", err)
	}
	return nil
}

// ScheduleLocation returns the zone working schedule times are expressed in
func (c *ResolutionConfig) ScheduleLocation() *time.Location {
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SourceLocation returns the zone the scraped duty rosters are published in
func (c *ScraperConfig) SourceLocation() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	items := strings.Split(value, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
