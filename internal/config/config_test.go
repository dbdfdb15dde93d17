package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Narration.PollInterval != 50*time.Millisecond {
		t.Errorf("PollInterval = %s, want 50ms", cfg.Narration.PollInterval)
	}
	if cfg.Narration.FlashHold != 500*time.Millisecond {
		t.Errorf("FlashHold = %s, want 500ms", cfg.Narration.FlashHold)
	}
	if cfg.TTS.Type != "auto" {
		t.Errorf("TTS.Type = %q, want auto", cfg.TTS.Type)
	}
	if cfg.Story.Model != "openai/gpt-5-mini" {
		t.Errorf("Story.Model = %q", cfg.Story.Model)
	}
	if cfg.Library.Dir == "" {
		t.Error("Library.Dir should have a default")
	}
}

func TestInitEnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("STORYLOOM_TTS_TYPE", "mock")
	t.Setenv("STORYLOOM_NARRATION_POLL_INTERVAL", "20ms")

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TTS.Type != "mock" {
		t.Errorf("TTS.Type = %q, want mock", cfg.TTS.Type)
	}
	if cfg.Narration.PollInterval != 20*time.Millisecond {
		t.Errorf("PollInterval = %s, want 20ms", cfg.Narration.PollInterval)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Narration: NarrationConfig{PollInterval: 50 * time.Millisecond, FlashHold: 500 * time.Millisecond},
			Story:     StoryConfig{RequestsPerMinute: 10},
			Display:   DisplayConfig{Width: 80},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero poll interval", mutate: func(c *Config) { c.Narration.PollInterval = 0 }, wantErr: "poll_interval"},
		{name: "negative flash hold", mutate: func(c *Config) { c.Narration.FlashHold = -time.Second }, wantErr: "flash_hold"},
		{name: "zero flash hold allowed", mutate: func(c *Config) { c.Narration.FlashHold = 0 }},
		{name: "negative rate", mutate: func(c *Config) { c.Story.RequestsPerMinute = -1 }, wantErr: "requests_per_minute"},
		{name: "narrow display", mutate: func(c *Config) { c.Display.Width = 10 }, wantErr: "display.width"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
