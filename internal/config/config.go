package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageBackendS3     = "s3"
	StorageBackendGridFS = "gridfs"
)

// Config holds all configuration for the application.
type Config struct {
	RunMode string // from the -m flag

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Sessions
	JwtSecret       string
	JwtTTL          time.Duration
	CaptchaTokenTTL time.Duration

	// Server
	ApiPort           string
	ServiceApiPort    string
	PublicBaseURL     string
	CorsAllowedOrigin string

	// Cloudflare Turnstile
	CloudflareTurnstileSecretKey string
	CloudflareSiteVerifyURL      string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string
	MockServices    bool
	LogEmailsPath   string
	DefaultLocale   string

	// Object storage
	StorageBackend            string
	AwsAccessKeyID            string
	AwsSecretAccessKey        string
	AwsRegion                 string
	AwsS3Endpoint             string
	AwsS3BucketAvatars        string
	AwsS3BucketPropertyImages string
	ImageBaseS3URL            string
	ImageMaxDimension         int
	AvatarMaxDimension        int
	ImageMaxSizeMB            int
	UploadURLTTL              time.Duration

	// App
	AppName                 string
	PasswordRegexp          string
	SearchDefaultLimit      int
	SearchMaxLimit          int
	InquiryMessageMaxLength int
	ChatMessageMaxLength    int

	// Rate limiting defaults
	RateLimitSoftBucketSize int
	RateLimitSoftRefillRate int // tokens per second
	RateLimitHardBucketSize int
	RateLimitHardRefillRate int // tokens per second
}

// ImageMaxSizeBytes is ImageMaxSizeMB in bytes.
func (c *Config) ImageMaxSizeBytes() int64 {
	return int64(c.ImageMaxSizeMB) * 1024 * 1024
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present. runMode comes from the CLI flag.
func Load(runMode string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{RunMode: runMode}
	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}
	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}
	getInt := func(key, defaultValue string) (int, error) {
		v, err := strconv.Atoi(getEnv(key, defaultValue))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return v, nil
	}
	getSeconds := func(key, defaultValue string) (time.Duration, error) {
		v, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(v) * time.Second, nil
	}

	if cfg.MongoURI, err = getRequiredEnv("MONGO_URI"); err != nil {
		return nil, err
	}
	if cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET"); err != nil {
		return nil, err
	}

	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "homeseeker")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.PublicBaseURL = strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/")
	cfg.CorsAllowedOrigin = getEnv("CORS_ALLOWED_ORIGIN", "*")
	cfg.CloudflareTurnstileSecretKey = getEnv("CLOUDFLARE_TURNSTILE_SECRET_KEY", "")
	cfg.CloudflareSiteVerifyURL = getEnv("CLOUDFLARE_SITEVERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@homeseeker.example.com")
	cfg.MockServices = getEnv("MOCK_SERVICES", "") == "true"
	cfg.LogEmailsPath = getEnv("LOG_EMAILS", "")
	cfg.DefaultLocale = getEnv("DEFAULT_LOCALE", "en-US")
	cfg.StorageBackend = strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendS3))
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "us-east-1")
	cfg.AwsS3Endpoint = getEnv("AWS_S3_ENDPOINT", "")
	cfg.AwsS3BucketAvatars = getEnv("AWS_S3_BUCKET_AVATARS", "avatars")
	cfg.AwsS3BucketPropertyImages = getEnv("AWS_S3_BUCKET_PROPERTY_IMAGES", "property-images")
	cfg.ImageBaseS3URL = strings.TrimRight(getEnv("IMAGE_BASE_S3_URL", ""), "/")
	cfg.AppName = getEnv("APP_NAME", "Homeseeker")
	cfg.PasswordRegexp = getEnv("PASSWORD_REGEXP", "^.{8,}$")

	switch cfg.StorageBackend {
	case StorageBackendS3, StorageBackendGridFS:
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND: %q", cfg.StorageBackend)
	}
	if _, err := regexp.Compile(cfg.PasswordRegexp); err != nil {
		return nil, fmt.Errorf("invalid PASSWORD_REGEXP: %w", err)
	}

	if cfg.RedisDB, err = getInt("REDIS_DB", "0"); err != nil {
		return nil, err
	}
	if cfg.JwtTTL, err = getSeconds("JWT_TTL_SECONDS", "3600"); err != nil {
		return nil, err
	}
	if cfg.CaptchaTokenTTL, err = getSeconds("CAPTCHA_TOKEN_TTL", "1200"); err != nil {
		return nil, err
	}
	if cfg.UploadURLTTL, err = getSeconds("UPLOAD_URL_TTL_SECONDS", "900"); err != nil {
		return nil, err
	}
	if cfg.SmtpPort, err = getInt("SMTP_PORT", "587"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxDimension, err = getInt("IMAGE_MAX_DIMENSION", "2048"); err != nil {
		return nil, err
	}
	if cfg.AvatarMaxDimension, err = getInt("AVATAR_MAX_DIMENSION", "512"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxSizeMB, err = getInt("IMAGE_MAX_SIZE_MB", "10"); err != nil {
		return nil, err
	}
	if cfg.SearchDefaultLimit, err = getInt("SEARCH_DEFAULT_LIMIT", "24"); err != nil {
		return nil, err
	}
	if cfg.SearchMaxLimit, err = getInt("SEARCH_MAX_LIMIT", "100"); err != nil {
		return nil, err
	}
	if cfg.InquiryMessageMaxLength, err = getInt("INQUIRY_MESSAGE_MAX_LENGTH", "2000"); err != nil {
		return nil, err
	}
	if cfg.ChatMessageMaxLength, err = getInt("CHAT_MESSAGE_MAX_LENGTH", "4000"); err != nil {
		return nil, err
	}

	if cfg.RateLimitSoftBucketSize, err = getInt("RATE_LIMIT_SOFT_BUCKET_SIZE", "4"); err != nil {
		return nil, err
	}
	if cfg.RateLimitSoftRefillRate, err = getInt("RATE_LIMIT_SOFT_REFILL_RATE", "2"); err != nil {
		return nil, err
	}
	if cfg.RateLimitHardBucketSize, err = getInt("RATE_LIMIT_HARD_BUCKET_SIZE", "16"); err != nil {
		return nil, err
	}
	if cfg.RateLimitHardRefillRate, err = getInt("RATE_LIMIT_HARD_REFILL_RATE", "8"); err != nil {
		return nil, err
	}

	return cfg, nil
}
