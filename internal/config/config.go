package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the typed view over the viper keys used by storyloom.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	TTS       TTSConfig       `mapstructure:"tts"`
	Narration NarrationConfig `mapstructure:"narration"`
	Story     StoryConfig     `mapstructure:"story"`
	Image     ImageConfig     `mapstructure:"image"`
	Library   LibraryConfig   `mapstructure:"library"`
	Display   DisplayConfig   `mapstructure:"display"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type TTSConfig struct {
	Type     string         `mapstructure:"type"`
	Voice    string         `mapstructure:"voice"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	Endpoint EndpointConfig `mapstructure:"endpoint"`
	Murf     MurfConfig     `mapstructure:"murf"`
	Google   GoogleConfig   `mapstructure:"google"`
	Mock     MockConfig     `mapstructure:"mock"`
}

type EndpointConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

type MurfConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type GoogleConfig struct {
	LanguageCode string `mapstructure:"language_code"`
}

type MockConfig struct {
	WordDuration time.Duration `mapstructure:"word_duration"`
}

// NarrationConfig holds the karaoke timing knobs.
type NarrationConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	FlashHold    time.Duration `mapstructure:"flash_hold"`
}

type StoryConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type ImageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type LibraryConfig struct {
	Dir string `mapstructure:"dir"`
}

type DisplayConfig struct {
	Width int `mapstructure:"width"`
}

// SetDefaults registers every default with viper. Safe to call more than once.
func SetDefaults() {
	viper.SetDefault("log.level", "warn")

	viper.SetDefault("tts.type", "auto") // Auto-select best engine
	viper.SetDefault("tts.voice", "")
	viper.SetDefault("tts.timeout", 60*time.Second)
	viper.SetDefault("tts.endpoint.url", "")
	viper.SetDefault("tts.endpoint.api_key", "")
	viper.SetDefault("tts.murf.api_key", "")
	viper.SetDefault("tts.murf.base_url", "https://api.murf.ai")
	viper.SetDefault("tts.google.language_code", "en-US")
	viper.SetDefault("tts.mock.word_duration", 300*time.Millisecond)

	viper.SetDefault("narration.poll_interval", 50*time.Millisecond)
	viper.SetDefault("narration.flash_hold", 500*time.Millisecond)

	viper.SetDefault("story.base_url", "https://ai.gateway.lovable.dev/v1")
	viper.SetDefault("story.api_key", "")
	viper.SetDefault("story.model", "openai/gpt-5-mini")
	viper.SetDefault("story.requests_per_minute", 20)
	viper.SetDefault("story.timeout", 90*time.Second)

	viper.SetDefault("image.enabled", true)
	viper.SetDefault("image.base_url", "https://gen.pollinations.ai")
	viper.SetDefault("image.api_key", "")

	viper.SetDefault("library.dir", defaultLibraryDir())
	viper.SetDefault("display.width", 80)
}

// Init wires config file lookup and environment overrides. A missing
// config file is not an error.
func Init() error {
	viper.SetConfigName("storyloom")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.storyloom")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("STORYLOOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load decodes the current viper state into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the narration and story clients cannot run with.
func (c *Config) Validate() error {
	if c.Narration.PollInterval <= 0 {
		return fmt.Errorf("narration.poll_interval must be positive, got %s", c.Narration.PollInterval)
	}
	if c.Narration.FlashHold < 0 {
		return fmt.Errorf("narration.flash_hold must not be negative, got %s", c.Narration.FlashHold)
	}
	if c.Story.RequestsPerMinute < 0 {
		return fmt.Errorf("story.requests_per_minute must not be negative, got %d", c.Story.RequestsPerMinute)
	}
	if c.Display.Width < 20 {
		return fmt.Errorf("display.width must be at least 20, got %d", c.Display.Width)
	}
	return nil
}

// defaultLibraryDir returns the appropriate directory for saved tales
func defaultLibraryDir() string {
	if cacheDir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cacheDir, "storyloom")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".storyloom", "library")
	}

	return "library"
}
