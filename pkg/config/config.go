// Kunhua Huang 2026

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/ecstasoy/sockharness/pkg/codec"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "SOCKHARNESS_CONFIG"

// Config carries only ambient settings. The endpoints are fixed by the
// binary and are not configurable.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Registry  RegistryConfig  `yaml:"registry"`
	Extension ExtensionConfig `yaml:"extension"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console/json
	Output string `yaml:"output"` // stderr/stdout/<path>
}

type MetricsConfig struct {
	// Textfile is written once per role on exit, suffixed with the role name.
	Textfile string `yaml:"textfile"`
}

type RegistryConfig struct {
	Type     string `yaml:"type"` // none/memory/etcd
	Codec    string `yaml:"codec"`
	Compress string `yaml:"compress"`
	// Cleanup removes each role's record when the role ends.
	Cleanup bool `yaml:"cleanup"`
	Etcd    struct {
		Endpoints   []string `yaml:"endpoints"`
		DialTimeout Duration `yaml:"dial_timeout"`
		KeyPrefix   string   `yaml:"key_prefix"`
		LeaseTTL    int64    `yaml:"lease_ttl"`
	} `yaml:"etcd"`
}

type ExtensionConfig struct {
	Module string `yaml:"module"`
}

type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func Default() *Config {
	cfg := &Config{
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
			Output: "stderr",
		},
		Registry: RegistryConfig{
			Type:     "none",
			Codec:    string(codec.TypeJSON),
			Compress: string(codec.CompressNone),
		},
	}
	cfg.Registry.Etcd.Endpoints = []string{"localhost:2379"}
	cfg.Registry.Etcd.DialTimeout = Duration{5 * time.Second}
	cfg.Registry.Etcd.KeyPrefix = "/sockharness/runs"
	cfg.Registry.Etcd.LeaseTTL = 30

	return cfg
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv loads the file named by SOCKHARNESS_CONFIG, or returns the
// defaults when it is unset.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv(EnvPath)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) Validate() error {
	var errs []error

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	switch c.Log.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	switch c.Registry.Type {
	case "", "none", "memory":
	case "etcd":
		if len(c.Registry.Etcd.Endpoints) == 0 {
			errs = append(errs, errors.New("registry.etcd.endpoints: required for etcd"))
		}
		if c.Registry.Etcd.LeaseTTL <= 0 {
			errs = append(errs, fmt.Errorf("registry.etcd.lease_ttl: must be positive, got %d", c.Registry.Etcd.LeaseTTL))
		}
	default:
		errs = append(errs, fmt.Errorf("registry.type: unknown type %q", c.Registry.Type))
	}

	if _, err := codec.ParseType(c.Registry.Codec); err != nil {
		errs = append(errs, fmt.Errorf("registry.codec: %w", err))
	}
	if _, err := codec.GetCompressor(codec.CompressType(c.Registry.Compress)); err != nil {
		errs = append(errs, fmt.Errorf("registry.compress: %w", err))
	}

	return errors.Join(errs...)
}
