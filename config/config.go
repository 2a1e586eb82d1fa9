// Package config defines service configuration and its layered loader.
//
// Precedence (low -> high):
//  1. defaults (New())
//  2. YAML file named by DUTY_CONFIG
//  3. env vars with prefix DUTY_ (DUTY_DB_PATH -> db_path)
//  4. CLI flags, applied by cmd/dutyengine after Load
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/warp/duty-engine/duty"
	"github.com/warp/duty-engine/factory"
)

const (
	EnvPrefix = "DUTY_"
	EnvFile   = "DUTY_CONFIG"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite file; ":memory:" keeps everything in process.
	DBPath string `koanf:"db_path"`

	// Zone is the IANA zone all local-time rules are evaluated in.
	Zone string `koanf:"zone"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"` // text or json

	// RulesFile is an optional JSON rules document; empty uses the embedded one.
	RulesFile string `koanf:"rules_file"`

	CORSOrigins    []string `koanf:"cors_origins"`
	MetricsEnabled bool     `koanf:"metrics_enabled"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// MonitorInterval is how often the rolling monitor re-evaluates; 0 disables it.
	MonitorInterval time.Duration `koanf:"monitor_interval"`
}

func New() *Config {
	return &Config{
		Addr:            ":8080",
		DBPath:          "./data/duty.db",
		Zone:            duty.DefaultTimezone,
		LogLevel:        "info",
		LogFormat:       "text",
		CORSOrigins:     []string{"*"},
		MetricsEnabled:  true,
		ShutdownTimeout: 30 * time.Second,
		MonitorInterval: 15 * time.Minute,
	}
}

// Load layers defaults, the optional file and the environment.
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		if key == "cors_origins" {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	if c.DBPath == "" {
		return invalid("db_path must not be empty")
	}
	if c.Zone != "" {
		if _, err := time.LoadLocation(c.Zone); err != nil {
			return invalid("zone %q: %v", c.Zone, err)
		}
	}
	if c.MonitorInterval < 0 {
		return invalid("monitor_interval must not be negative")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// Rules reads the rules document (embedded default when RulesFile is empty)
// and applies Zone on top of it.
func (c *Config) Rules() (duty.Rules, error) {
	f := factory.NewRulesFactory()

	var (
		rules duty.Rules
		err   error
	)
	if c.RulesFile == "" {
		rules, err = f.Default()
	} else {
		var raw []byte
		raw, err = os.ReadFile(c.RulesFile)
		if err != nil {
			return duty.Rules{}, fmt.Errorf("%w: rules_file: %v", ErrLoadConfig, err)
		}
		rules, err = f.ParseRules(string(raw))
	}
	if err != nil {
		return duty.Rules{}, err
	}

	if c.Zone != "" {
		loc, err := time.LoadLocation(c.Zone)
		if err != nil {
			return duty.Rules{}, fmt.Errorf("%w: zone %q: %v", ErrInvalidConfig, c.Zone, err)
		}
		rules.Zone = loc
	}
	return rules, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
