// Package config loads serprank settings from defaults, an optional config
// file and SERPRANK_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/fingerprint"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key. Nested keys join with an
// underscore, so run.window_size is SERPRANK_RUN_WINDOW_SIZE.
const EnvPrefix = "SERPRANK"

// Cursor backends.
const (
	CursorFile     = "file"
	CursorSQLite   = "sqlite"
	CursorPostgres = "postgres"
	CursorRedis    = "redis"
)

// Archive backends.
const (
	ArchiveNone     = "none"
	ArchiveSQLite   = "sqlite"
	ArchivePostgres = "postgres"
	ArchiveCSV      = "csv"
	ArchiveJSON     = "json"
)

type Config struct {
	Search      SearchConfig      `mapstructure:"search"`
	Source      EndpointConfig    `mapstructure:"source"`
	Sink        EndpointConfig    `mapstructure:"sink"`
	Run         RunConfig         `mapstructure:"run"`
	Pace        PaceConfig        `mapstructure:"pace"`
	Fingerprint FingerprintConfig `mapstructure:"fingerprint"`
	UserAgents  UserAgentConfig   `mapstructure:"user_agents"`
	Proxy       ProxyConfig       `mapstructure:"proxy"`
	Cursor      StoreConfig       `mapstructure:"cursor"`
	Archive     StoreConfig       `mapstructure:"archive"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Metrics     ListenConfig      `mapstructure:"metrics"`
	Server      ListenConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
}

type SearchConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Num      int    `mapstructure:"num"`
}

type EndpointConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RunConfig struct {
	WindowSize   int           `mapstructure:"window_size"`
	TotalSlots   int           `mapstructure:"total_slots"`
	Concurrency  int           `mapstructure:"concurrency"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	Mobile       bool          `mapstructure:"mobile"`
	DevicePause  time.Duration `mapstructure:"device_pause"`
}

type PaceConfig struct {
	Min time.Duration `mapstructure:"min"`
	Max time.Duration `mapstructure:"max"`
	// Gap is the minimum spacing between any two requests.
	Gap time.Duration `mapstructure:"gap"`
}

type FingerprintConfig struct {
	Desktop string `mapstructure:"desktop"`
	Mobile  string `mapstructure:"mobile"`
}

// UserAgentConfig replaces the built-in pools when non-empty.
type UserAgentConfig struct {
	Desktop []string `mapstructure:"desktop"`
	Mobile  []string `mapstructure:"mobile"`
}

type ProxyConfig struct {
	URLs        []string      `mapstructure:"urls"`
	File        string        `mapstructure:"file"`
	MaxFailures int           `mapstructure:"max_failures"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

// StoreConfig picks a backend. DSN is a file path for file, csv and json
// backends and a connection string for the databases.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

type ListenConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"search.endpoint":     "https://www.google.com/search",
	"search.num":          100,
	"source.url":          "",
	"source.timeout":      30 * time.Second,
	"sink.url":            "",
	"sink.timeout":        30 * time.Second,
	"run.window_size":     10,
	"run.total_slots":     120,
	"run.concurrency":     1,
	"run.fetch_timeout":   30 * time.Second,
	"run.mobile":          true,
	"run.device_pause":    5 * time.Second,
	"pace.min":            10 * time.Second,
	"pace.max":            20 * time.Second,
	"pace.gap":            time.Duration(0),
	"fingerprint.desktop": string(fingerprint.ForDevice(device.Desktop)),
	"fingerprint.mobile":  string(fingerprint.ForDevice(device.Mobile)),
	"user_agents.desktop": []string{},
	"user_agents.mobile":  []string{},
	"proxy.urls":          []string{},
	"proxy.file":          "",
	"proxy.max_failures":  3,
	"proxy.cooldown":      5 * time.Minute,
	"cursor.backend":      CursorFile,
	"cursor.dsn":          "request_counter.txt",
	"archive.backend":     ArchiveNone,
	"archive.dsn":         "",
	"redis.addr":          "localhost:6379",
	"redis.password":      "",
	"redis.db":            0,
	"redis.key":           "serprank:request_counter",
	"metrics.addr":        ":9090",
	"server.addr":         ":8080",
	"log.level":           "info",
	"log.format":          "json",
}

// New returns a viper instance carrying the defaults and environment
// binding. Callers bind command line flags onto it before Load.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file, when given, into v and decodes the result. A named file
// that cannot be read is an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Source.URL == "" {
		errs = append(errs, errors.New("source.url is required"))
	}
	if c.Sink.URL == "" {
		errs = append(errs, errors.New("sink.url is required"))
	}
	if c.Run.WindowSize <= 0 || c.Run.TotalSlots <= 0 {
		errs = append(errs, errors.New("run.window_size and run.total_slots must be positive"))
	}
	if c.Pace.Min < 0 || c.Pace.Max < c.Pace.Min {
		errs = append(errs, fmt.Errorf("pace range %s..%s is invalid", c.Pace.Min, c.Pace.Max))
	}
	if _, err := fingerprint.ParseProfile(c.Fingerprint.Desktop); err != nil {
		errs = append(errs, err)
	}
	if _, err := fingerprint.ParseProfile(c.Fingerprint.Mobile); err != nil {
		errs = append(errs, err)
	}
	switch c.Cursor.Backend {
	case CursorFile, CursorSQLite, CursorPostgres, CursorRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown cursor backend %q", c.Cursor.Backend))
	}
	switch c.Archive.Backend {
	case ArchiveNone, "":
	case ArchiveSQLite, ArchivePostgres, ArchiveCSV, ArchiveJSON:
		if c.Archive.DSN == "" {
			errs = append(errs, fmt.Errorf("archive.dsn is required for the %s archive", c.Archive.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown archive backend %q", c.Archive.Backend))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Devices returns the profiles to rank, desktop first.
func (c *Config) Devices() []device.Name {
	names := []device.Name{device.Desktop}
	if c.Run.Mobile {
		names = append(names, device.Mobile)
	}
	return names
}

// Profiles returns the device profiles with any configured User-Agent
// overrides applied.
func (c *Config) Profiles() []device.Profile {
	profiles := device.DefaultProfiles()
	for i := range profiles {
		switch profiles[i].Name {
		case device.Desktop:
			if len(c.UserAgents.Desktop) > 0 {
				profiles[i].UserAgents = c.UserAgents.Desktop
			}
		case device.Mobile:
			if len(c.UserAgents.Mobile) > 0 {
				profiles[i].UserAgents = c.UserAgents.Mobile
			}
		}
	}
	return profiles
}

// FingerprintFor returns the validated TLS profile of a device.
func (c *Config) FingerprintFor(name device.Name) fingerprint.Profile {
	raw := c.Fingerprint.Desktop
	if name == device.Mobile {
		raw = c.Fingerprint.Mobile
	}
	p, err := fingerprint.ParseProfile(raw)
	if err != nil {
		return fingerprint.ForDevice(name)
	}
	return p
}
