package am

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/teranos/tempo/activities"
	"github.com/teranos/tempo/am/geotime"
	"github.com/teranos/tempo/db"
	"github.com/teranos/tempo/pulse/alarm"
)

// Default values
const (
	DefaultDatabasePath         = "tempo.db"
	DefaultLoopIntervalSeconds  = 60
	DefaultRetentionDays        = 30
	DefaultHousekeepingSchedule = "30 3 * * *"
	DefaultAlarmMaxPerMinute    = 10
	DefaultAlarmTimeoutSeconds  = 10
	DefaultServerAddr           = "127.0.0.1:8787"
)

// DefaultAllowedOrigins are the CORS origins accepted by the reporting API
var DefaultAllowedOrigins = []string{
	"http://localhost",
	"https://localhost",
	"http://127.0.0.1",
	"https://127.0.0.1",
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", string(db.SQLite))
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("database.dsn", "")

	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.loop_interval_seconds", DefaultLoopIntervalSeconds)
	v.SetDefault("scheduler.retention_days", DefaultRetentionDays)
	v.SetDefault("scheduler.housekeeping_schedule", DefaultHousekeepingSchedule)

	v.SetDefault("alarm.webhook_url", "")
	v.SetDefault("alarm.max_per_minute", DefaultAlarmMaxPerMinute)
	v.SetDefault("alarm.timeout_seconds", DefaultAlarmTimeoutSeconds)
	v.SetDefault("alarm.allow_private", false)

	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.allowed_origins", DefaultAllowedOrigins)
}

// BindSensitiveEnvVars binds secrets to their environment variables
// explicitly, so they resolve even when no file mentions them.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("database.dsn", EnvPrefix+"_DATABASE_DSN")
	v.BindEnv("alarm.webhook_url", EnvPrefix+"_ALARM_WEBHOOK_URL")
}

// Dialect returns the configured database dialect.
func (c *Config) Dialect() (db.Dialect, error) {
	return db.ParseDialect(c.Database.Driver)
}

// DataSource returns the dialect and the connection string to open.
func (c *Config) DataSource() (db.Dialect, string, error) {
	dialect, err := c.Dialect()
	if err != nil {
		return "", "", err
	}
	if dialect == db.Postgres {
		return dialect, c.Database.DSN, nil
	}
	if c.Database.Path == "" {
		return dialect, DefaultDatabasePath, nil
	}
	return dialect, c.Database.Path, nil
}

// Location returns the zone cron expressions are evaluated in.
func (c *Config) Location() (*time.Location, error) {
	return geotime.LoadLocation(c.Scheduler.Timezone)
}

// LoopInterval returns the time between loop-mode passes.
func (c *Config) LoopInterval() time.Duration {
	if c.Scheduler.LoopIntervalSeconds <= 0 {
		return DefaultLoopIntervalSeconds * time.Second
	}
	return time.Duration(c.Scheduler.LoopIntervalSeconds) * time.Second
}

// GetServerAllowedOrigins returns the allowed CORS origins
func (c *Config) GetServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return DefaultAllowedOrigins
	}
	return c.Server.AllowedOrigins
}

// WebhookConfig returns the alarm webhook settings. ok is false when no
// webhook is configured.
func (c *Config) WebhookConfig() (cfg alarm.WebhookConfig, ok bool) {
	if c.Alarm.WebhookURL == "" {
		return alarm.WebhookConfig{}, false
	}
	return alarm.WebhookConfig{
		URL:          c.Alarm.WebhookURL,
		MaxPerMinute: c.Alarm.MaxPerMinute,
		Timeout:      time.Duration(c.Alarm.TimeoutSeconds) * time.Second,
		AllowPrivate: c.Alarm.AllowPrivate,
	}, true
}

// ActivitySet returns the built-in activities this configuration declares.
func (c *Config) ActivitySet() activities.Set {
	set := activities.Set{
		Housekeeping: activities.HousekeepingConfig{
			Schedule: c.Scheduler.HousekeepingSchedule,
			Days:     int64(c.Scheduler.RetentionDays),
		},
	}
	if set.Housekeeping.Days <= 0 {
		set.Housekeeping.Days = DefaultRetentionDays
	}
	for _, cmd := range c.Commands {
		set.Commands = append(set.Commands, cmd.Spec())
	}
	return set
}

// Spec converts the configured command into an activity spec.
func (c CommandConfig) Spec() activities.CommandSpec {
	return activities.CommandSpec{
		Name:     c.Name,
		Schedule: c.Schedule,
		Command:  c.Command,
		Dir:      c.Dir,
		Fields:   append([]string(nil), c.Fields...),
	}
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s %s, Timezone: %s, Commands: %d}",
		c.Database.Driver, c.Database.Path, c.Scheduler.Timezone, len(c.Commands))
}
