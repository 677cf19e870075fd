package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort string

	// Catalog pricing service
	CatalogCheckURL string
	CatalogTimeout  time.Duration

	// Bundle rules
	MinBundleItems int
	MaxItemPrice   float64
	AutoAddDelay   time.Duration
	DraftDebounce  time.Duration
	DraftTTL       time.Duration

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	ImageBaseS3URL     string
	ImageNamespace     string
	ImageMaxDimension  int
	ImageMaxSizeMB     int
	ImageQuality       int
	ThumbnailDimension int

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string

	// App Defaults
	AppName    string
	AdminEmail string

	// Rate Limiting Defaults
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode, // Set from flag
	}

	var err error

	// Helper function to get env var or default
	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	// Helper function to get required env var
	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	// Load basic string values
	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.CatalogCheckURL = getEnv("CATALOG_CHECK_URL", "")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.ImageBaseS3URL = getEnv("IMAGE_BASE_S3_URL", "")
	cfg.ImageNamespace = getEnv("IMAGE_NAMESPACE", "listings")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@bookcontainer.example.com")
	cfg.AppName = getEnv("APP_NAME", "BookContainer")
	cfg.AdminEmail = getEnv("ADMIN_EMAIL", "")

	// Load numeric and time duration values with defaults and parsing
	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtTTLSeconds, err := strconv.ParseInt(getEnv("JWT_TTL_SECONDS", "3600"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL_SECONDS: %w", err)
	}
	cfg.JwtTTL = time.Duration(jwtTTLSeconds) * time.Second

	catalogTimeoutSeconds, err := strconv.ParseInt(getEnv("CATALOG_TIMEOUT_SECONDS", "5"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CATALOG_TIMEOUT_SECONDS: %w", err)
	}
	cfg.CatalogTimeout = time.Duration(catalogTimeoutSeconds) * time.Second

	cfg.MinBundleItems, err = strconv.Atoi(getEnv("MIN_BUNDLE_ITEMS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_BUNDLE_ITEMS: %w", err)
	}

	cfg.MaxItemPrice, err = strconv.ParseFloat(getEnv("MAX_ITEM_PRICE", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_ITEM_PRICE: %w", err)
	}

	autoAddDelayMs, err := strconv.ParseInt(getEnv("AUTO_ADD_DELAY_MS", "2000"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_ADD_DELAY_MS: %w", err)
	}
	cfg.AutoAddDelay = time.Duration(autoAddDelayMs) * time.Millisecond

	draftDebounceMs, err := strconv.ParseInt(getEnv("DRAFT_DEBOUNCE_MS", "1000"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DRAFT_DEBOUNCE_MS: %w", err)
	}
	cfg.DraftDebounce = time.Duration(draftDebounceMs) * time.Millisecond

	draftTTLHours, err := strconv.ParseInt(getEnv("DRAFT_TTL_HOURS", "168"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DRAFT_TTL_HOURS: %w", err)
	}
	cfg.DraftTTL = time.Duration(draftTTLHours) * time.Hour

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg.ImageMaxDimension, err = strconv.Atoi(getEnv("IMAGE_MAX_DIMENSION", "1200"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_DIMENSION: %w", err)
	}

	cfg.ImageMaxSizeMB, err = strconv.Atoi(getEnv("IMAGE_MAX_SIZE_MB", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_SIZE_MB: %w", err)
	}

	cfg.ImageQuality, err = strconv.Atoi(getEnv("IMAGE_QUALITY", "85"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_QUALITY: %w", err)
	}

	cfg.ThumbnailDimension, err = strconv.Atoi(getEnv("THUMBNAIL_DIMENSION", "160"))
	if err != nil {
		return nil, fmt.Errorf("invalid THUMBNAIL_DIMENSION: %w", err)
	}

	// Rate Limiting
	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
