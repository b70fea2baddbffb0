package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds database configuration
type Config struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Path is the directory holding the SQLite file when Driver is sqlite.
	Path string
	// MigrationsDir holds one subdirectory of SQL migrations per driver.
	MigrationsDir string
}

// NewConfig creates a new database configuration
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, we'll use defaults or environment variables
		fmt.Println("Warning: .env file not found")
	}

	cfg := &Config{
		Driver:   getEnv("DB_DRIVER", DriverSQLite),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "tarot"),
		Password: getEnv("DB_PASSWORD", "tarot"),
		DBName:   getEnv("DB_NAME", "tarot"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
		Path:     getEnv("DB_PATH", "data"),

		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
	}

	switch cfg.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (use postgres or sqlite)", cfg.Driver)
	}
	return cfg, nil
}

// DSN returns the driver-specific connection string used by GORM.
func (c *Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.sqliteFile() + "?_foreign_keys=on&_busy_timeout=5000"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// MigrateURL returns the connection URL understood by golang-migrate.
func (c *Config) MigrateURL() string {
	if c.Driver == DriverSQLite {
		return "sqlite3://" + c.sqliteFile()
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// MigrationsSource returns the golang-migrate source URL for the driver's
// migration set. Postgres columns are TIMESTAMPTZ so instants survive any
// server time zone.
func (c *Config) MigrationsSource() string {
	return "file://" + filepath.ToSlash(filepath.Join(c.MigrationsDir, c.Driver))
}

func (c *Config) sqliteFile() string {
	return filepath.Join(c.Path, c.DBName+".db")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
