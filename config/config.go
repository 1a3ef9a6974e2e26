package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Engine configuration
	Engine EngineConfig `mapstructure:"engine"`

	// Audio output configuration
	Audio AudioConfig `mapstructure:"audio"`

	// Render service configuration
	Render RenderConfig `mapstructure:"render"`

	// Control API configuration
	API APIConfig `mapstructure:"api"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// EngineConfig holds the mixer timing configuration
type EngineConfig struct {
	TickInterval        time.Duration `mapstructure:"tick_interval"`
	ProgressInterval    time.Duration `mapstructure:"progress_interval"`
	AmbientDuckFraction float64       `mapstructure:"ambient_duck_fraction"`
}

// AudioConfig holds the playback output configuration
type AudioConfig struct {
	SampleRate int `mapstructure:"sample_rate"`
}

// RenderConfig holds the render service connection
type RenderConfig struct {
	URL          string        `mapstructure:"url"`
	APIKey       string        `mapstructure:"api_key"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// APIConfig holds the control server configuration
type APIConfig struct {
	Listen string `mapstructure:"listen"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	// Set defaults
	viper.SetDefault("engine.tick_interval", "50ms")
	viper.SetDefault("engine.progress_interval", "100ms")
	viper.SetDefault("engine.ambient_duck_fraction", 0.25)
	viper.SetDefault("audio.sample_rate", 44100)
	viper.SetDefault("render.poll_interval", "2s")
	viper.SetDefault("api.listen", ":8723")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Read config file
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.mixdeck")
	viper.AddConfigPath("/etc/mixdeck")

	// Allow environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("MIXDECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		slog.Debug("No config file found, using defaults and environment variables")
	} else {
		slog.Info("Using config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Engine.TickInterval <= 0 {
		return &ConfigError{Field: "engine.tick_interval", Message: "tick interval must be positive"}
	}
	if c.Engine.ProgressInterval <= 0 {
		return &ConfigError{Field: "engine.progress_interval", Message: "progress interval must be positive"}
	}
	if c.Engine.AmbientDuckFraction <= 0 || c.Engine.AmbientDuckFraction > 1 {
		return &ConfigError{Field: "engine.ambient_duck_fraction", Message: "duck fraction must be in (0, 1]"}
	}
	if c.Audio.SampleRate <= 0 {
		return &ConfigError{Field: "audio.sample_rate", Message: "sample rate must be positive"}
	}
	if c.API.Listen == "" {
		return &ConfigError{Field: "api.listen", Message: "listen address is required"}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ConfigError{Field: "logging.level", Message: "level must be one of debug, info, warn, error"}
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "format must be text or json"}
	}
	return nil
}

// ValidateRender checks the parts only the render command needs
func (c *Config) ValidateRender() error {
	if c.Render.URL == "" {
		return &ConfigError{Field: "render.url", Message: "render service URL is required"}
	}
	if c.Render.PollInterval <= 0 {
		return &ConfigError{Field: "render.poll_interval", Message: "poll interval must be positive"}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
