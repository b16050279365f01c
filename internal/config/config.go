package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session store drivers.
const (
	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"
)

// Credential sources.
const (
	CredentialSourceStatic   = "static"
	CredentialSourcePostgres = "postgres"
)

// defaultStaticUsers are the demo candidates available without a database.
const defaultStaticUsers = "student1:pass123,student2:exam456,kavi:kavi123,kushi:kushi456"

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	// DatabaseURL is optional. Empty disables PostgreSQL, which also
	// disables result persistence.
	DatabaseURL string
	MaxDBConns  int32
	RedisURL    string

	SessionStore     string
	CredentialSource string
	StaticUsers      map[string]string
	BcryptCost       int

	JWTSecret         string
	SessionTTL        time.Duration
	SessionCookieName string
	CookieSecure      bool
	FlashSecret       string

	ExamDuration       time.Duration
	SubmitGrace        time.Duration
	AutoSubmitOnExpiry bool
	QuestionBankFile   string

	// LoginRateLimit is the number of login posts allowed per IP per minute. Zero disables it.
	LoginRateLimit int
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
	// TrustedProxies lists proxy IPs/CIDRs whose X-Forwarded-For is honoured.
	// Empty means none: the client IP is always the TCP peer.
	TrustedProxies []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		GinMode:            getEnv("GIN_MODE", "debug"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "pretty"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		MaxDBConns:         int32(getEnvInt("MAX_DB_CONNS", 8)),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SessionStore:       getEnv("SESSION_STORE", SessionStoreRedis),
		CredentialSource:   getEnv("CREDENTIAL_SOURCE", CredentialSourceStatic),
		StaticUsers:        parseUsers(getEnv("STATIC_USERS", defaultStaticUsers)),
		BcryptCost:         getEnvInt("BCRYPT_COST", 10),
		JWTSecret:          getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),
		SessionTTL:         time.Duration(getEnvInt("SESSION_TTL_HOURS", 4)) * time.Hour,
		SessionCookieName:  getEnv("SESSION_COOKIE_NAME", "exam_session"),
		CookieSecure:       getEnvBool("COOKIE_SECURE", false),
		FlashSecret:        getEnv("FLASH_SECRET", "change-this-flash-secret-as-well"),
		ExamDuration:       time.Duration(getEnvInt("EXAM_DURATION_MINUTES", 45)) * time.Minute,
		SubmitGrace:        time.Duration(getEnvInt("SUBMIT_GRACE_SECONDS", 10)) * time.Second,
		AutoSubmitOnExpiry: getEnvBool("AUTO_SUBMIT_ON_EXPIRY", true),
		QuestionBankFile:   getEnv("QUESTION_BANK_FILE", ""),
		LoginRateLimit:     getEnvInt("LOGIN_RATE_LIMIT", 20),
		AllowedOrigins:     parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
		TrustedProxies:     parseOrigins(getEnv("TRUSTED_PROXIES", "")),
	}
}

// Validate rejects settings that would break a running exam. The session
// record must outlive the exam plus its submit grace, or it would vanish
// before the candidate can submit.
func (c *Config) Validate() error {
	var errs []error
	if c.ExamDuration <= 0 {
		errs = append(errs, errors.New("EXAM_DURATION_MINUTES must be positive"))
	}
	if c.SubmitGrace < 0 {
		errs = append(errs, errors.New("SUBMIT_GRACE_SECONDS must not be negative"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL_HOURS must be positive"))
	} else if c.ExamDuration > 0 && c.SessionTTL < c.ExamDuration+c.SubmitGrace {
		errs = append(errs, fmt.Errorf("SESSION_TTL_HOURS (%s) is shorter than the exam plus grace (%s)",
			c.SessionTTL, c.ExamDuration+c.SubmitGrace))
	}
	if c.LoginRateLimit < 0 {
		errs = append(errs, errors.New("LOGIN_RATE_LIMIT must not be negative"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// parseOrigins splits a comma-separated list (origins, proxies) into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// parseUsers reads "user:pass,user:pass". Entries without a colon or with an
// empty username are skipped. Passwords may themselves contain colons.
func parseUsers(raw string) map[string]string {
	users := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		name, pass, ok := strings.Cut(entry, ":")
		if !ok || name == "" {
			continue
		}
		users[name] = pass
	}
	return users
}
