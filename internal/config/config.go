package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported values for the pluggable backends.
const (
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverSQLite   = "sqlite"

	MailProviderLog      = "log"
	MailProviderSendGrid = "sendgrid"

	CheckpointStoreDatabase = "database"
	CheckpointStoreRedis    = "redis"
)

// Config holds runtime configuration values for the notifier service.
type Config struct {
	AppName        string
	AppEnv         string
	AppPort        string
	DatabaseDriver string
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnMaxLife  time.Duration
	RedisURL       string
	NATSURL        string
	NATSSubject    string
	NATSQueue      string
	JWTSecret      string

	MailProvider       string
	SendGridAPIKey     string
	MailFromName       string
	MailFromAddress    string
	MailSubjectPrefix  string
	DefaultReviewQuota int

	LookupTimeout       time.Duration
	SendTimeout         time.Duration
	DispatchConcurrency int
	DedupeTTL           time.Duration

	TrackerInterval      time.Duration
	TrackerUnitTimeout   time.Duration
	TrackerCatchUpWindow time.Duration
	TrackerConcurrency   int
	CheckpointStore      string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Notifier")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8081")
	v.SetDefault("database.driver", DatabaseDriverPostgres)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("nats.subject", "gema.notify.triggers")
	v.SetDefault("nats.queue", "gema-notifier")
	v.SetDefault("mail.provider", MailProviderLog)
	v.SetDefault("mail.from_name", "GEMA Classroom")
	v.SetDefault("mail.from_address", "noreply@gema.local")
	v.SetDefault("mail.subject_prefix", "[GEMA] ")
	v.SetDefault("notify.default_peer_review_quota", 2)
	v.SetDefault("notify.lookup_timeout", "5s")
	v.SetDefault("notify.send_timeout", "10s")
	v.SetDefault("notify.dispatch_concurrency", 8)
	v.SetDefault("notify.dedupe_ttl", "10m")
	v.SetDefault("tracker.interval", "1m")
	v.SetDefault("tracker.unit_timeout", "30s")
	v.SetDefault("tracker.catch_up_window", "168h")
	v.SetDefault("tracker.concurrency", 4)
	v.SetDefault("tracker.checkpoint_store", CheckpointStoreDatabase)

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseDriver:      strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:         v.GetString("database.url"),
		DBMaxOpenConns:      v.GetInt("database.max_open_conns"),
		DBMaxIdleConns:      v.GetInt("database.max_idle_conns"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		NATSSubject:         v.GetString("nats.subject"),
		NATSQueue:           v.GetString("nats.queue"),
		JWTSecret:           v.GetString("jwt.secret"),
		MailProvider:        strings.ToLower(v.GetString("mail.provider")),
		SendGridAPIKey:      v.GetString("mail.sendgrid_api_key"),
		MailFromName:        v.GetString("mail.from_name"),
		MailFromAddress:     v.GetString("mail.from_address"),
		MailSubjectPrefix:   v.GetString("mail.subject_prefix"),
		DefaultReviewQuota:  v.GetInt("notify.default_peer_review_quota"),
		DispatchConcurrency: v.GetInt("notify.dispatch_concurrency"),
		TrackerConcurrency:  v.GetInt("tracker.concurrency"),
		CheckpointStore:     strings.ToLower(v.GetString("tracker.checkpoint_store")),
	}

	durations := map[string]*time.Duration{
		"database.conn_max_lifetime": &cfg.DBConnMaxLife,
		"notify.lookup_timeout":      &cfg.LookupTimeout,
		"notify.send_timeout":        &cfg.SendTimeout,
		"notify.dedupe_ttl":          &cfg.DedupeTTL,
		"tracker.interval":           &cfg.TrackerInterval,
		"tracker.unit_timeout":       &cfg.TrackerUnitTimeout,
		"tracker.catch_up_window":    &cfg.TrackerCatchUpWindow,
	}

	for key, target := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("%s must be positive", key)
		}
		*target = parsed
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret must be provided")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("database url must be provided")
	}

	switch c.DatabaseDriver {
	case DatabaseDriverPostgres, DatabaseDriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}

	switch c.MailProvider {
	case MailProviderLog:
	case MailProviderSendGrid:
		if c.SendGridAPIKey == "" {
			return fmt.Errorf("sendgrid api key must be provided for the sendgrid mail provider")
		}
	default:
		return fmt.Errorf("unsupported mail provider %q", c.MailProvider)
	}

	switch c.CheckpointStore {
	case CheckpointStoreDatabase:
	case CheckpointStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis url must be provided for the redis checkpoint store")
		}
	default:
		return fmt.Errorf("unsupported checkpoint store %q", c.CheckpointStore)
	}

	if c.DefaultReviewQuota <= 0 {
		c.DefaultReviewQuota = 2
	}

	if c.DispatchConcurrency <= 0 {
		c.DispatchConcurrency = 8
	}

	if c.TrackerConcurrency <= 0 {
		c.TrackerConcurrency = 4
	}

	return nil
}
