package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"
	"time"
)

// Store drivers.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for costs and
// TTLs counted in minutes or days, durations for lock timings.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	StoreDriver    string // "mysql" or "memory"
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	ETagSecret     string // secret used to sign version tokens; defaults to JWTSecret
	AccessTTLMin   int    // access token time‑to‑live in minutes
	RefreshTTLDays int    // refresh token time‑to‑live in days
	BcryptCost     int    // bcrypt cost for password hashing

	LockBackend string        // "local" (single instance) or "redis" (shared)
	LockTTL     time.Duration // expiry of a Redis lock held by a crashed process
	LockRetry   time.Duration // polling interval while waiting for a Redis lock

	EventsEnabled bool // publish ticket events to RabbitMQ and consume them

	SeedAdminLogin    string // bootstrap admin created at startup when set
	SeedAdminPassword string
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Database variables
// are required only for the mysql store.
func Load() Config {
	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		StoreDriver:    strings.ToLower(getenv("STORE_DRIVER", StoreMySQL)),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		LockBackend: strings.ToLower(getenv("LOCK_BACKEND", LockLocal)),
		LockTTL:     envDur("LOCK_TTL", 10*time.Second),
		LockRetry:   envDur("LOCK_RETRY", 25*time.Millisecond),

		EventsEnabled: envBool("EVENTS_ENABLED", false),

		SeedAdminLogin:    os.Getenv("SEED_ADMIN_LOGIN"),
		SeedAdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
	}
	cfg.ETagSecret = getenv("ETAG_SECRET", cfg.JWTSecret)

	switch cfg.StoreDriver {
	case StoreMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case StoreMemory:
	default:
		log.Fatalf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
	}
	if cfg.LockBackend != LockLocal && cfg.LockBackend != LockRedis {
		log.Fatalf("invalid LOCK_BACKEND: %q", cfg.LockBackend)
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
