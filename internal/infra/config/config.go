// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/SabaVan/kame-sub000/internal/domain/room"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Rooms    []RoomConfig   `yaml:"rooms" validate:"required,min=1,dive"`
	Grants   []GrantConfig  `yaml:"grants" validate:"dive"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig represents server identity configuration.
type ServerConfig struct {
	Name string `yaml:"name" default:"kame"`
}

// ScheduleConfig represents coordinator loop intervals.
type ScheduleConfig struct {
	SyncIntervalSec    int `yaml:"sync_interval_sec" default:"300" validate:"omitempty,gte=5"`
	AdvanceIntervalSec int `yaml:"advance_interval_sec" default:"60" validate:"omitempty,gte=1"`
}

// RoomConfig represents a single room definition.
type RoomConfig struct {
	ID      string `yaml:"id" validate:"required"`
	Name    string `yaml:"name" validate:"required"`
	OpenAt  string `yaml:"open_at" validate:"required"`
	CloseAt string `yaml:"close_at" validate:"required"`
}

// ParseSchedule builds the room's daily open window from the configured
// time-of-day strings.
func (r *RoomConfig) ParseSchedule() (room.Schedule, error) {
	openAt, err := room.ParseTimeOfDay(r.OpenAt)
	if err != nil {
		return room.Schedule{}, errors.Wrapf(err, "room %s open_at", r.ID)
	}
	closeAt, err := room.ParseTimeOfDay(r.CloseAt)
	if err != nil {
		return room.Schedule{}, errors.Wrapf(err, "room %s close_at", r.ID)
	}
	schedule, err := room.NewSchedule(openAt, closeAt)
	if err != nil {
		return room.Schedule{}, errors.Wrapf(err, "room %s", r.ID)
	}
	return schedule, nil
}

// GrantConfig represents a grant policy's configuration.
type GrantConfig struct {
	Type     string         `yaml:"type" validate:"required"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// SpotifyConfig represents the song catalog credentials.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`
	RefreshToken string `yaml:"refresh_token" validate:"required"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// LogConfig represents logger configuration.
type LogConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for credentials.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	// Room schedules must parse into valid open windows
	seen := make(map[string]bool, len(c.Rooms))
	for _, rc := range c.Rooms {
		if seen[rc.ID] {
			return errors.Newf("duplicate room id: %s", rc.ID)
		}
		seen[rc.ID] = true
		if _, err := rc.ParseSchedule(); err != nil {
			return err
		}
	}

	return nil
}
