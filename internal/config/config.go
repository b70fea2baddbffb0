package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devSessionSecret = "dev-secret-not-for-production"

// Config holds application configuration
type Config struct {
	// Server
	Env  string
	Port string

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration

	// Links in outgoing email point here
	BaseURL string

	// SMTP; an empty host means emails are only logged
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string

	// Security
	BcryptCost     int
	AuthRateLimit  float64
	MetricsAPIKey  string
	AdminUsername  string
	SessionPurgeIn time.Duration
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "3000"),

		SessionSecret: getEnv("SESSION_SECRET", devSessionSecret),
		SessionTTL:    getDuration("SESSION_TTL", 28*24*time.Hour),

		BaseURL: strings.TrimRight(getEnv("BASE_URL", "http://localhost:5173"), "/"),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getInt("SMTP_PORT", 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),

		BcryptCost:     getInt("BCRYPT_COST", 10),
		AuthRateLimit:  getFloat("AUTH_RATE_LIMIT", 5),
		MetricsAPIKey:  getEnv("METRICS_API_KEY", ""),
		AdminUsername:  getEnv("ADMIN_USERNAME", ""),
		SessionPurgeIn: getDuration("SESSION_PURGE_INTERVAL", 15*time.Minute),
	}
	cfg.MailFrom = getEnv("EMAIL_FROM", cfg.SMTPUser)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.IsProduction() && (c.SessionSecret == devSessionSecret || strings.Contains(c.SessionSecret, "change")) {
		return fmt.Errorf("SESSION_SECRET must be set to a secure random value in production")
	}
	if c.IsProduction() && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required in production")
	}
	if c.SMTPHost != "" && c.MailFrom == "" {
		return fmt.Errorf("EMAIL_FROM or SMTP_USER is required when SMTP_HOST is set")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %v\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}
