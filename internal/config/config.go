package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strings"
	"time"
)

// Storage drivers accepted in DB_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Payment providers accepted in PAYMENT_PROVIDER.
const (
	ProviderStripe = "stripe"
	ProviderFake   = "fake"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBDriver       string // "mysql" or "memory"
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	Timezone       string // zone in which departure wall clocks are read
	Currency       string // ISO currency for payment intents
	AdvertiseLimit int    // max tickets advertised at once

	PaymentProvider      string // "stripe" or "fake"
	StripeSecretKey      string
	StripePublishableKey string

	RabbitURL     string // AMQP URL; empty disables events
	EventsEnabled bool
	AuditLogPath  string // file the booking event consumer appends to

	LogLevel  string
	LogFormat string // "json" or "text"

	ShutdownTimeout time.Duration
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Database settings
// are only required for the mysql driver.
func Load() Config {
	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBDriver:       strings.ToLower(getenv("DB_DRIVER", DriverMySQL)),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     envInt("BCRYPT_COST", 12),

		Timezone:       getenv("TIMEZONE", "Asia/Dhaka"),
		Currency:       strings.ToLower(getenv("CURRENCY", "bdt")),
		AdvertiseLimit: envInt("ADVERTISE_LIMIT", 6),

		PaymentProvider:      strings.ToLower(getenv("PAYMENT_PROVIDER", ProviderFake)),
		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripePublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),

		RabbitURL:     os.Getenv("RABBITMQ_URL"),
		EventsEnabled: envBool("EVENTS_ENABLED", true),
		AuditLogPath:  getenv("AUDIT_LOG_PATH", "logs/booking.log"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		ShutdownTimeout: envDur("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	switch cfg.DBDriver {
	case DriverMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case DriverMemory:
	default:
		log.Fatalf("invalid DB_DRIVER: %q", cfg.DBDriver)
	}

	switch cfg.PaymentProvider {
	case ProviderStripe:
		cfg.StripeSecretKey = must("STRIPE_SECRET_KEY")
	case ProviderFake:
	default:
		log.Fatalf("invalid PAYMENT_PROVIDER: %q", cfg.PaymentProvider)
	}

	if cfg.RabbitURL == "" {
		cfg.EventsEnabled = false
	}
	return cfg
}

// Location resolves Timezone.  An unknown zone name is fatal because every
// expiry decision depends on it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Fatalf("invalid TIMEZONE %q: %v", c.Timezone, err)
	}
	return loc
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
