package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDynamo   = "dynamo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	StoreDriver    string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	DatabaseURL    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	JWTExpiry time.Duration

	OTPHashSecret    string // optional; derived from JWTSecret when empty
	OTPTTL           time.Duration
	DevReturnOTP     bool
	OTPRequestLimit  int // per identifier per window, 0 disables
	OTPRequestWindow time.Duration
	OTPVerifyLimit   int // failed verifications per identifier per OTPRequestWindow, 0 disables

	AuthRatePerMinute int
	TrustedProxies    []string // IPs or CIDRs whose X-Forwarded-For is believed

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SMSEnabled bool
	SNSRegion  string

	AllowedOrigins []string // CORS allowed origins

	LogPath  string
	LogDebug bool
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "4001"),
		AppEnv:  getEnv("APP_ENV", "development"),

		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", StoreDynamo)),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users: getEnv("DYNAMO_TABLE_USERS", "users"),
		},
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTExpiry: getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),

		OTPHashSecret:    getEnv("OTP_HASH_SECRET", ""),
		OTPTTL:           otpTTL(),
		DevReturnOTP:     getEnvBool("DEV_RETURN_OTP", false),
		OTPRequestLimit:  getEnvInt("OTP_REQUEST_LIMIT", 5),
		OTPRequestWindow: getEnvDuration("OTP_REQUEST_WINDOW", 10*time.Minute),
		OTPVerifyLimit:   getEnvInt("OTP_VERIFY_LIMIT", 5),

		AuthRatePerMinute: getEnvInt("AUTH_RATE_PER_MINUTE", 30),
		TrustedProxies:    splitList(getEnv("TRUSTED_PROXIES", "")),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SMSEnabled: getEnvBool("SMS_ENABLED", false),
		SNSRegion:  getEnv("SNS_REGION", "us-east-1"),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),

		LogPath:  getEnv("LOG_PATH", "logs/"),
		LogDebug: getEnvBool("LOG_DEBUG", false),
	}
}

// Validate reports configuration that would leave the service unable to
// authenticate anyone. Callers treat a non-nil error as fatal.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWTExpiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRY must be positive"))
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL must be positive"))
	}
	switch c.StoreDriver {
	case StoreDynamo, StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// EchoOTP reports whether request-otp responses may carry the plaintext code.
// Never true in production, whatever DEV_RETURN_OTP says.
func (c *Config) EchoOTP() bool {
	return c.DevReturnOTP && !c.IsProduction()
}

// otpTTL honours OTP_TTL first and falls back to the legacy OTP_EXP_MIN knob.
func otpTTL() time.Duration {
	if v := os.Getenv("OTP_TTL"); v != "" {
		return getEnvDuration("OTP_TTL", 5*time.Minute)
	}
	return time.Duration(getEnvInt("OTP_EXP_MIN", 5)) * time.Minute
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
