// Package config loads the taskbot configuration: the shared bot core
// settings plus storage, database and reminder sections.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/taskbot/core/config"
	coredatabase "github.com/m3rciful/taskbot/core/database"
	"github.com/m3rciful/taskbot/internal/reminder"
)

const (
	// BackendFile keeps the task document in a JSON file.
	BackendFile = "file"
	// BackendPostgres keeps the task document in a Postgres row.
	BackendPostgres = "postgres"

	DefaultStoragePath = "tasks.json"
	DefaultTimezone    = "UTC+8"
	DefaultGraceDays   = 1
)

// StorageConfig selects where the task document lives.
type StorageConfig struct {
	Backend string `yaml:"backend" envconfig:"STORAGE_BACKEND"`
	Path    string `yaml:"path" envconfig:"STORAGE_PATH"`
}

// ReminderConfig schedules the daily reminder pass.
type ReminderConfig struct {
	// Time is the wall-clock time of the daily run, "HH:MM".
	Time     string `yaml:"time" envconfig:"REMINDER_TIME"`
	Timezone string `yaml:"timezone" envconfig:"REMINDER_TIMEZONE"`
	// GraceDays is how many days past due a task survives the purge.
	GraceDays *int `yaml:"grace_days" envconfig:"REMINDER_GRACE_DAYS"`

	location *time.Location
}

// Location returns the parsed Timezone. Valid after Normalize.
func (r ReminderConfig) Location() *time.Location {
	if r.location == nil {
		loc, _ := parseZone(DefaultTimezone)
		return loc
	}
	return r.location
}

// Grace returns GraceDays or the default.
func (r ReminderConfig) Grace() int {
	if r.GraceDays == nil {
		return DefaultGraceDays
	}
	return *r.GraceDays
}

// Display renders the run time for users, e.g. "9:00 AM (UTC+8)".
func (r ReminderConfig) Display() string {
	h, m, err := reminder.ParseClock(r.Time)
	if err != nil {
		h, m = 9, 0
	}
	t := time.Date(2000, 1, 1, h, m, 0, 0, r.Location())
	_, offset := t.Zone()
	zone := "UTC"
	if offset != 0 {
		zone = fmt.Sprintf("UTC%+d", offset/3600)
		if rem := (offset % 3600) / 60; rem != 0 {
			zone += fmt.Sprintf(":%02d", abs(rem))
		}
	}
	return fmt.Sprintf("%s (%s)", t.Format("3:04 PM"), zone)
}

// parseZone accepts an IANA name or a fixed offset such as "UTC+8" or "UTC-03:30".
func parseZone(name string) (*time.Location, error) {
	rest, ok := strings.CutPrefix(strings.ToUpper(name), "UTC")
	if !ok || rest == "" {
		return time.LoadLocation(name)
	}
	sign := 1
	switch rest[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return time.LoadLocation(name)
	}
	hours, minutes, _ := strings.Cut(rest[1:], ":")
	h, err := strconv.Atoi(hours)
	if err != nil || h > 14 {
		return nil, fmt.Errorf("bad UTC offset %q", name)
	}
	m := 0
	if minutes != "" {
		if m, err = strconv.Atoi(minutes); err != nil || m > 59 {
			return nil, fmt.Errorf("bad UTC offset %q", name)
		}
	}
	return time.FixedZone(name, sign*(h*3600+m*60)), nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Storage  StorageConfig       `yaml:"storage"`
	Database coredatabase.Config `yaml:"database"`
	Reminder ReminderConfig      `yaml:"reminder"`
}

// CoreConfig exposes the embedded bot core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// UsesDatabase reports whether the Postgres backend is selected.
func (c *Config) UsesDatabase() bool {
	return c.Storage.Backend == BackendPostgres
}

// Load reads path and the environment into a validated Config.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	switch backend {
	case "", BackendFile:
		cfg.Storage.Backend = BackendFile
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			cfg.Storage.Path = DefaultStoragePath
		}
	case BackendPostgres:
		cfg.Storage.Backend = BackendPostgres
		if cfg.Database.Host == "" || cfg.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required when storage.backend is 'postgres'")
		}
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
	default:
		return fmt.Errorf("invalid storage.backend %q; allowed: file, postgres", cfg.Storage.Backend)
	}

	if strings.TrimSpace(cfg.Reminder.Time) == "" {
		cfg.Reminder.Time = reminder.DefaultTime
	}
	if _, _, err := reminder.ParseClock(cfg.Reminder.Time); err != nil {
		return fmt.Errorf("invalid reminder.time: %w", err)
	}

	tz := strings.TrimSpace(cfg.Reminder.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := parseZone(tz)
	if err != nil {
		return fmt.Errorf("invalid reminder.timezone %q: %w", cfg.Reminder.Timezone, err)
	}
	cfg.Reminder.Timezone = tz
	cfg.Reminder.location = loc

	if cfg.Reminder.GraceDays != nil && *cfg.Reminder.GraceDays < 0 {
		return fmt.Errorf("reminder.grace_days must be >= 0")
	}
	return nil
}
