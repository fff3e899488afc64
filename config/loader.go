// Package config loads wrapper configuration from a YAML file and the
// environment.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("callcache.yaml").
//	    WithEnvPrefix("CALLCACHE").
//	    Load()
//
// Priority: built-in defaults, then the YAML file, then the environment.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/krisalay/callcache"
)

// DefaultEnvPrefix prefixes every environment override.
const DefaultEnvPrefix = "CALLCACHE"

// Config is the whole configuration document.
type Config struct {
	Log LogConfig `yaml:"log"`

	// Defaults applies to every wrapper, and is what per-wrapper
	// entries are merged over.
	Defaults callcache.Config `yaml:"defaults"`

	// Wrappers holds per-wrapper settings keyed by wrapper name.
	Wrappers map[string]callcache.Config `yaml:"wrappers"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console
	Format      string   `yaml:"format" env:"FORMAT"`
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stderr"},
		},
		Defaults: callcache.DefaultConfig(),
		Wrappers: map[string]callcache.Config{},
	}
}

// Wrapper returns the configuration for name, falling back to Defaults.
func (c *Config) Wrapper(name string) callcache.Config {
	if w, ok := c.Wrappers[name]; ok {
		return w
	}
	return c.Defaults
}

// Validate checks the defaults and every wrapper entry.
func (c *Config) Validate() error {
	if err := c.Defaults.Validate(); err != nil {
		return platformerrors.Wrap(err, platformerrors.CodeInvalidConfig, "invalid defaults")
	}
	for name, w := range c.Wrappers {
		if err := w.Validate(); err != nil {
			return platformerrors.Wrapf(err, platformerrors.CodeInvalidConfig, "invalid wrapper %q", name)
		}
	}
	return nil
}

// Loader reads a Config.
type Loader struct {
	configPath string
	envPrefix  string
}

func NewLoader() *Loader {
	return &Loader{envPrefix: DefaultEnvPrefix}
}

// WithConfigPath sets the YAML file. A missing file is not an error.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load builds the configuration and validates it.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, platformerrors.Wrap(err, platformerrors.CodeInvalidConfig, "failed to read config file")
		default:
			if err := Parse(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// document mirrors Config, but keeps wrapper entries undecoded so each one
// can be decoded over a copy of the defaults.
type document struct {
	Log      yaml.Node            `yaml:"log"`
	Defaults yaml.Node            `yaml:"defaults"`
	Wrappers map[string]yaml.Node `yaml:"wrappers"`
}

// Parse decodes a YAML document into cfg. Keys absent from the document keep
// their current values, and wrapper entries inherit whatever defaults hold
// once the document's own defaults section is applied.
func Parse(data []byte, cfg *Config) error {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return platformerrors.Wrap(err, platformerrors.CodeInvalidConfig, "failed to parse config file")
	}

	if doc.Log.Kind != 0 {
		if err := doc.Log.Decode(&cfg.Log); err != nil {
			return platformerrors.Wrap(err, platformerrors.CodeInvalidConfig, "failed to parse log section")
		}
	}
	if doc.Defaults.Kind != 0 {
		if err := doc.Defaults.Decode(&cfg.Defaults); err != nil {
			return platformerrors.Wrap(err, platformerrors.CodeInvalidConfig, "failed to parse defaults section")
		}
	}

	if cfg.Wrappers == nil {
		cfg.Wrappers = make(map[string]callcache.Config, len(doc.Wrappers))
	}
	for name, node := range doc.Wrappers {
		w := cfg.Defaults
		if err := node.Decode(&w); err != nil {
			return platformerrors.Wrapf(err, platformerrors.CodeInvalidConfig, "failed to parse wrapper %q", name)
		}
		cfg.Wrappers[name] = w
	}
	return nil
}

// loadFromEnv applies PREFIX_<FIELD> to the defaults and PREFIX_LOG_<FIELD>
// to the log section.
func (l *Loader) loadFromEnv(cfg *Config) error {
	if err := setFieldsFromEnv(reflect.ValueOf(&cfg.Defaults).Elem(), l.envPrefix); err != nil {
		return err
	}
	return setFieldsFromEnv(reflect.ValueOf(&cfg.Log).Elem(), l.envPrefix+"_LOG")
}

func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag
		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return platformerrors.Wrapf(err, platformerrors.CodeInvalidConfig, "failed to set %s", envKey)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}

	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
