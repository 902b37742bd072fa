package config

import (
	"strings" // For env key replacement
	"time"    // For durations

	"github.com/sirupsen/logrus" // Logging
	"github.com/spf13/viper"     // For reading environment variables with defaults
)

// Config holds the application configuration
type Config struct {
	AppPort            string        `mapstructure:"APP_PORT"`             // Application port
	DBUser             string        `mapstructure:"DB_USER"`              // Database user
	DBPassword         string        `mapstructure:"DB_PASSWORD"`          // Database password
	DBHost             string        `mapstructure:"DB_HOST"`              // Database host
	DBPort             string        `mapstructure:"DB_PORT"`              // Database port
	DBName             string        `mapstructure:"DB_NAME"`              // Database name
	JWTSecret          string        `mapstructure:"JWT_SECRET"`           // JWT secret key
	RedisAddr          string        `mapstructure:"REDIS_ADDR"`           // Redis server address
	RedisPass          string        `mapstructure:"REDIS_PASS"`           // Redis password
	RedisDB            int           `mapstructure:"REDIS_DB"`             // Redis database number
	RabbitMQURL        string        `mapstructure:"RABBITMQ_URL"`         // Broker URL, empty disables publishing
	NotifyExchange     string        `mapstructure:"NOTIFY_EXCHANGE"`      // Topic exchange for notifications
	IsProd             bool          `mapstructure:"IS_PROD"`              // Is production environment
	SweepSchedule      string        `mapstructure:"SWEEP_SCHEDULE"`       // Cron spec for the inactivity sweep
	InactivityDays     int           `mapstructure:"INACTIVITY_DAYS"`      // Days without activity before freezing
	DeletionNoticeDays int           `mapstructure:"DELETION_NOTICE_DAYS"` // Delay of the post-deletion notice
	TaskPollInterval   time.Duration `mapstructure:"TASK_POLL_INTERVAL"`   // Deferred task poll interval
	TaskBatchSize      int           `mapstructure:"TASK_BATCH_SIZE"`      // Deferred tasks claimed per poll
	StoreMaxRetries    int           `mapstructure:"STORE_MAX_RETRIES"`    // Attempts for one atomic group
	CacheTTL           time.Duration `mapstructure:"CACHE_TTL"`            // Read cache TTL
}

var keys = []string{
	"APP_PORT", "DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME", "JWT_SECRET",
	"REDIS_ADDR", "REDIS_PASS", "REDIS_DB", "RABBITMQ_URL", "NOTIFY_EXCHANGE", "IS_PROD",
	"SWEEP_SCHEDULE", "INACTIVITY_DAYS", "DELETION_NOTICE_DAYS", "TASK_POLL_INTERVAL",
	"TASK_BATCH_SIZE", "STORE_MAX_RETRIES", "CACHE_TTL",
}

// LoadConfig loads configuration from environment variables. Callers load .env first.
func LoadConfig() (*Config, error) {
	v := viper.New() // Isolated instance so tests do not share state
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("NOTIFY_EXCHANGE", "ledger_notifications")
	v.SetDefault("IS_PROD", false)
	v.SetDefault("SWEEP_SCHEDULE", "0 0 * * *")
	v.SetDefault("INACTIVITY_DAYS", 90)
	v.SetDefault("DELETION_NOTICE_DAYS", 15)
	v.SetDefault("TASK_POLL_INTERVAL", "5s")
	v.SetDefault("TASK_BATCH_SIZE", 50)
	v.SetDefault("STORE_MAX_RETRIES", 3)
	v.SetDefault("CACHE_TTL", "60s")

	// Bind every key so Unmarshal sees values that only exist in the environment
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		logrus.Warn("JWT_SECRET is empty; every bearer token will be rejected")
	}
	return &cfg, nil
}

// DSN builds the MySQL Data Source Name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

// InactivityThreshold is how long an account may go without activity before the sweeper freezes it
func (c *Config) InactivityThreshold() time.Duration {
	return time.Duration(c.InactivityDays) * 24 * time.Hour
}

// DeletionNoticeDelay is how long after deletion the confirmation notice is delivered
func (c *Config) DeletionNoticeDelay() time.Duration {
	return time.Duration(c.DeletionNoticeDays) * 24 * time.Hour
}
