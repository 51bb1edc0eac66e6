// Package config loads console settings from flags, REMOTELAB_* environment
// variables and an optional config file, and persists display presets as
// YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/gotmc/remotelab"
	"github.com/gotmc/remotelab/lib/scope"
)

// EnvPrefix is prepended to every environment variable, so the plotter key
// is read from REMOTELAB_PLOTTER.
const EnvPrefix = "remotelab"

// Console holds the settings shared by the console programs.
type Console struct {
	Plotter     string        `mapstructure:"plotter"`
	Debug       bool          `mapstructure:"debug"`
	LogLevel    string        `mapstructure:"log_level"`
	Interval    time.Duration `mapstructure:"interval"`
	Preset      string        `mapstructure:"preset"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

// Defaults used when neither a flag, an env var nor the config file sets a
// value.
func setDefaults(v *viper.Viper) {
	v.SetDefault("plotter", remotelab.DefaultProgram)
	v.SetDefault("log_level", "info")
	v.SetDefault("interval", 200*time.Millisecond)
}

// New returns a viper instance reading REMOTELAB_* variables, bound to fs,
// and reading cfgFile when it is not empty. Flag names use dashes; the
// matching keys use underscores.
func New(fs *pflag.FlagSet, cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = fmt.Errorf("binding flag %s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
	}
	return v, nil
}

// Decode fills a Console from v.
func Decode(v *viper.Viper) (Console, error) {
	var c Console
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if c.Interval <= 0 {
		return c, fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	return c, nil
}

// Logger builds the console logger: production JSON output at LogLevel, or
// the human readable development logger when Debug is set.
func (c Console) Logger() (*zap.SugaredLogger, error) {
	if c.Debug {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		return l.Sugar(), nil
	}
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// Preset is a saved console state: the scope knobs and the plot session.
type Preset struct {
	Scope   scope.Settings    `yaml:"scope"`
	Session remotelab.Session `yaml:"session"`
}

// DefaultPreset pairs the default scope settings with their session.
func DefaultPreset() Preset {
	s := scope.DefaultSettings()
	return Preset{Scope: s, Session: s.Session("RemoteLab")}
}

// SavePreset writes p to name as YAML.
func SavePreset(name string, p Preset) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0o644)
}

// LoadPreset reads a preset written by SavePreset. A missing file yields the
// default preset and an error matching os.ErrNotExist.
func LoadPreset(name string) (Preset, error) {
	data, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultPreset(), err
	}
	if err != nil {
		return Preset{}, err
	}
	p := DefaultPreset()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("parsing preset %s: %w", name, err)
	}
	if err := p.Scope.Validate(); err != nil {
		return Preset{}, fmt.Errorf("preset %s: %w", name, err)
	}
	return p, nil
}
