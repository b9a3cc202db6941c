package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// Config is the runtime configuration of the kernel runner and CLI
type Config struct {
	Device   DeviceConfig   `mapstructure:"device"`
	Compiler CompilerConfig `mapstructure:"compiler"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type DeviceConfig struct {
	// Props are OCCA device properties; empty tries OpenMP, CUDA, Serial
	Props string `mapstructure:"props"`
	ID    int    `mapstructure:"id"`
}

type CompilerConfig struct {
	Arch            string `mapstructure:"arch"`
	Flags           string `mapstructure:"flags"`
	EnableCallbacks bool   `mapstructure:"enable_callbacks"`
	Precision       string `mapstructure:"precision"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Props: `{"mode": "Serial"}`,
			ID:    0,
		},
		Compiler: CompilerConfig{
			Arch:      "generic",
			Precision: "single",
		},
		Logging: LoggingConfig{
			Level:   "warn",
			Console: true,
		},
	}
}

// Load reads configuration from file, FFTKERNEL_ environment variables and
// defaults. A missing config file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("finding home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, ".fftkernel"))
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("FFTKERNEL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Logging.File = expandPath(cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Device.ID < 0 {
		return errors.New("device.id must not be negative")
	}

	validPrecisions := []string{"single", "double"}
	if !slices.Contains(validPrecisions, c.Compiler.Precision) {
		return fmt.Errorf("compiler.precision must be one of: %v", validPrecisions)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("device.props", cfg.Device.Props)
	v.SetDefault("device.id", cfg.Device.ID)

	v.SetDefault("compiler.arch", cfg.Compiler.Arch)
	v.SetDefault("compiler.flags", cfg.Compiler.Flags)
	v.SetDefault("compiler.enable_callbacks", cfg.Compiler.EnableCallbacks)
	v.SetDefault("compiler.precision", cfg.Compiler.Precision)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
}
