package am

import (
	"net/url"

	"github.com/teranos/tempo/activities"
	"github.com/teranos/tempo/db"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/pulse/schedule"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	dialect, err := c.Dialect()
	if err != nil {
		return errors.Wrap(err, "database.driver")
	}
	if dialect == db.Postgres && c.Database.DSN == "" {
		return errors.WithHint(
			errors.New("database.dsn is required for the postgres driver"),
			"set it in tempo.toml or TEMPO_DATABASE_DSN")
	}

	if _, err := c.Location(); err != nil {
		return errors.Wrap(err, "scheduler.timezone")
	}
	// 0 = default interval, negative = invalid
	if c.Scheduler.LoopIntervalSeconds < 0 {
		return errors.Newf("scheduler.loop_interval_seconds must be >= 0, got %d", c.Scheduler.LoopIntervalSeconds)
	}
	if c.Scheduler.RetentionDays < 0 {
		return errors.Newf("scheduler.retention_days must be >= 0, got %d", c.Scheduler.RetentionDays)
	}
	if c.Scheduler.HousekeepingSchedule != "" {
		if _, err := schedule.ParseRecurrence(c.Scheduler.HousekeepingSchedule); err != nil {
			return errors.Wrap(err, "scheduler.housekeeping_schedule")
		}
	}

	if c.Alarm.WebhookURL != "" {
		u, err := url.Parse(c.Alarm.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.Newf("alarm.webhook_url must be an http(s) URL, got %q", c.Alarm.WebhookURL)
		}
	}
	if c.Alarm.MaxPerMinute < 0 {
		return errors.Newf("alarm.max_per_minute must be >= 0, got %d", c.Alarm.MaxPerMinute)
	}
	if c.Alarm.TimeoutSeconds < 0 {
		return errors.Newf("alarm.timeout_seconds must be >= 0, got %d", c.Alarm.TimeoutSeconds)
	}

	seen := map[string]bool{activities.HousekeepingType: true}
	for i, cmd := range c.Commands {
		if err := cmd.Spec().Validate(); err != nil {
			return errors.Wrapf(err, "commands[%d]", i)
		}
		if seen[cmd.Name] {
			return errors.Newf("commands[%d]: activity type %q is already defined", i, cmd.Name)
		}
		seen[cmd.Name] = true
		if cmd.Schedule != "" {
			if _, err := schedule.ParseRecurrence(cmd.Schedule); err != nil {
				return errors.Wrapf(err, "commands[%d] (%s).schedule", i, cmd.Name)
			}
		}
	}
	return nil
}
