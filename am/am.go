// Package am ("as-macro") loads tempo's configuration: TOML files layered
// by precedence, a project .env file and TEMPO_* environment variables.
package am

// Config represents the tempo configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" json:"database" yaml:"database" toml:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" json:"scheduler" yaml:"scheduler" toml:"scheduler"`
	Alarm     AlarmConfig     `mapstructure:"alarm" json:"alarm" yaml:"alarm" toml:"alarm"`
	Server    ServerConfig    `mapstructure:"server" json:"server" yaml:"server" toml:"server"`
	Commands  []CommandConfig `mapstructure:"commands" json:"commands" yaml:"commands" toml:"commands"`
}

// DatabaseConfig selects the job store backend
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver" toml:"driver"` // sqlite3 or postgres
	Path   string `mapstructure:"path" json:"path" yaml:"path" toml:"path"`         // SQLite file
	DSN    string `mapstructure:"dsn" json:"dsn" yaml:"dsn" toml:"dsn"`             // Postgres connection string
}

// SchedulerConfig configures cron evaluation, loop mode and retention
type SchedulerConfig struct {
	Timezone             string `mapstructure:"timezone" json:"timezone" yaml:"timezone" toml:"timezone"`
	LoopIntervalSeconds  int    `mapstructure:"loop_interval_seconds" json:"loop_interval_seconds" yaml:"loop_interval_seconds" toml:"loop_interval_seconds"`
	RetentionDays        int    `mapstructure:"retention_days" json:"retention_days" yaml:"retention_days" toml:"retention_days"`
	HousekeepingSchedule string `mapstructure:"housekeeping_schedule" json:"housekeeping_schedule" yaml:"housekeeping_schedule" toml:"housekeeping_schedule"` // "" disables the recurring purge
}

// AlarmConfig configures failure notifications. Without a webhook URL
// alarms only go to the log.
type AlarmConfig struct {
	WebhookURL     string `mapstructure:"webhook_url" json:"webhook_url" yaml:"webhook_url" toml:"webhook_url"`
	MaxPerMinute   int    `mapstructure:"max_per_minute" json:"max_per_minute" yaml:"max_per_minute" toml:"max_per_minute"` // 0 = unlimited
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
	AllowPrivate   bool   `mapstructure:"allow_private" json:"allow_private" yaml:"allow_private" toml:"allow_private"` // permit webhooks on private networks
}

// ServerConfig configures the HTTP reporting API
type ServerConfig struct {
	Addr           string   `mapstructure:"addr" json:"addr" yaml:"addr" toml:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins" json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
}

// CommandConfig declares one command activity ([[commands]] in TOML)
type CommandConfig struct {
	Name     string   `mapstructure:"name" json:"name" yaml:"name" toml:"name"`
	Schedule string   `mapstructure:"schedule" json:"schedule,omitempty" yaml:"schedule,omitempty" toml:"schedule,omitempty"`
	Command  string   `mapstructure:"command" json:"command" yaml:"command" toml:"command"`
	Dir      string   `mapstructure:"dir" json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir,omitempty"`
	Fields   []string `mapstructure:"fields" json:"fields,omitempty" yaml:"fields,omitempty" toml:"fields,omitempty"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)
