package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	Mongo        MongoConfig
	Redis        RedisConfig
	NATS         NATSConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	SLA          SLAConfig
	Calendar     CalendarConfig
	Intake       IntakeConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the persistence collaborator.
type StoreConfig struct {
	Driver string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// MongoConfig holds document store connection values.
type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// NATSConfig configures event fan-out.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	// Operators maps operator name to bcrypt hash and role, parsed from
	// AUTH_OPERATORS as name:role:hash entries separated by commas.
	Operators []OperatorCredential
}

// OperatorCredential is one configured ops API account.
type OperatorCredential struct {
	Name         string
	Role         string
	PasswordHash string
}

// NotificationConfig controls the log notification sink.
type NotificationConfig struct {
	LogEvents bool
}

// SLAConfig drives the monitors and write-through persistence.
type SLAConfig struct {
	SweepInterval     time.Duration
	AutoCloseInterval time.Duration
	FlushInterval     time.Duration
	WarningAfter      time.Duration
	CloseAfter        time.Duration
	WriteTimeout      time.Duration
	WriteRetries      int
	WriteBackoff      time.Duration
	SweepLockTTL      time.Duration
	AttentionPercent  float64
}

// CalendarConfig configures business-hours reporting.
type CalendarConfig struct {
	Enabled   bool
	Timezone  string
	WorkDays  []time.Weekday
	StartHour int
	EndHour   int
	Holidays  []string
}

// IntakeConfig controls ticket creation limits.
type IntakeConfig struct {
	RateLimit       int
	RateLimitWindow time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	workDays, err := parseWeekdays(getEnv("BUSINESS_WORK_DAYS", "1,2,3,4,5"))
	if err != nil {
		return nil, err
	}
	operators, err := parseOperators(os.Getenv("AUTH_OPERATORS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-sla-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Mongo: MongoConfig{
			URI:            os.Getenv("MONGO_URI"),
			Database:       getEnv("MONGO_DATABASE", "tickets"),
			Collection:     getEnv("MONGO_COLLECTION", "tickets"),
			ConnectTimeout: getEnvAsDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "tickets"),
			MaxReconnects: getEnvAsInt("NATS_MAX_RECONNECTS", 60),
			ReconnectWait: getEnvAsDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			Operators:             operators,
		},
		Notification: NotificationConfig{
			LogEvents: getEnvAsBool("NOTIFY_LOG_EVENTS", true),
		},
		SLA: SLAConfig{
			SweepInterval:     getEnvAsDuration("SLA_SWEEP_INTERVAL", 15*time.Minute),
			AutoCloseInterval: getEnvAsDuration("AUTO_CLOSE_INTERVAL", time.Hour),
			FlushInterval:     getEnvAsDuration("PERSIST_FLUSH_INTERVAL", time.Minute),
			WarningAfter:      getEnvAsDuration("AUTO_CLOSE_WARNING_AFTER", 24*time.Hour),
			CloseAfter:        getEnvAsDuration("AUTO_CLOSE_AFTER", 48*time.Hour),
			WriteTimeout:      getEnvAsDuration("PERSIST_WRITE_TIMEOUT", 2*time.Second),
			WriteRetries:      getEnvAsInt("PERSIST_WRITE_RETRIES", 3),
			WriteBackoff:      getEnvAsDuration("PERSIST_WRITE_BACKOFF", 100*time.Millisecond),
			SweepLockTTL:      getEnvAsDuration("SLA_SWEEP_LOCK_TTL", 5*time.Minute),
			AttentionPercent:  getEnvAsFloat("SLA_ATTENTION_PERCENT", 20),
		},
		Calendar: CalendarConfig{
			Enabled:   getEnvAsBool("BUSINESS_HOURS_ENABLED", true),
			Timezone:  getEnv("BUSINESS_TIMEZONE", "America/Sao_Paulo"),
			WorkDays:  workDays,
			StartHour: getEnvAsInt("BUSINESS_START_HOUR", 9),
			EndHour:   getEnvAsInt("BUSINESS_END_HOUR", 18),
			Holidays:  splitList(os.Getenv("BUSINESS_HOLIDAYS")),
		},
		Intake: IntakeConfig{
			RateLimit:       getEnvAsInt("INTAKE_RATE_LIMIT", 3),
			RateLimitWindow: getEnvAsDuration("INTAKE_RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("STORE_DRIVER=postgres requires POSTGRES_DSN"))
		}
	case StoreMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("STORE_DRIVER=mongo requires MONGO_URI"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	if c.SLA.CloseAfter < c.SLA.WarningAfter {
		errs = append(errs, fmt.Errorf("AUTO_CLOSE_AFTER (%s) must not be shorter than AUTO_CLOSE_WARNING_AFTER (%s)",
			c.SLA.CloseAfter, c.SLA.WarningAfter))
	}
	if c.SLA.SweepInterval <= 0 || c.SLA.AutoCloseInterval <= 0 {
		errs = append(errs, errors.New("sweep intervals must be positive"))
	}
	if c.Calendar.StartHour < 0 || c.Calendar.EndHour > 24 || c.Calendar.StartHour >= c.Calendar.EndHour {
		errs = append(errs, fmt.Errorf("invalid business hours %d-%d", c.Calendar.StartHour, c.Calendar.EndHour))
	}
	for _, h := range c.Calendar.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			errs = append(errs, fmt.Errorf("invalid holiday %q: %w", h, err))
		}
	}
	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid BUSINESS_TIMEZONE: %w", err))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Location resolves the calendar timezone, falling back to UTC.
func (c CalendarConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseWeekdays(raw string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range splitList(raw) {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("invalid BUSINESS_WORK_DAYS entry %q (0=Sunday..6=Saturday)", part)
		}
		days = append(days, time.Weekday(n))
	}
	return days, nil
}

func parseOperators(raw string) ([]OperatorCredential, error) {
	var ops []OperatorCredential
	for _, entry := range splitList(raw) {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("invalid AUTH_OPERATORS entry %q (want name:role:bcrypt-hash)", entry)
		}
		ops = append(ops, OperatorCredential{Name: parts[0], Role: parts[1], PasswordHash: parts[2]})
	}
	return ops, nil
}
