// internal/story/tts/tts.go
package tts

import (
	"context"
	"time"
)

type Config struct {
	Type    string
	Voice   string
	Timeout time.Duration

	EndpointURL    string
	EndpointAPIKey string

	MurfAPIKey  string
	MurfBaseURL string

	GoogleLanguageCode string

	// MockWordDuration is how long the mock engine speaks each word.
	MockWordDuration time.Duration
}

// Synthesizer turns narration text into an audio payload (MP3 or WAV).
// Failures reported by a remote service are *remote.Error values.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	Voices(ctx context.Context) ([]VoiceInfo, error)
	Name() string
}

// VoiceInfo provides detailed information about available voices
type VoiceInfo struct {
	Name         string `json:"name"`
	LanguageCode string `json:"language_code"`
	Gender       string `json:"gender"`
	Natural      bool   `json:"natural"`
	Description  string `json:"description"`
}
