package tts

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

const mockSampleRate = beep.SampleRate(22050)

// MockEngine produces silent WAV audio whose length follows the word count,
// so narration can be exercised without a speech service.
type MockEngine struct {
	wordDuration time.Duration
}

func NewMockEngine(c Config) *MockEngine {
	d := c.MockWordDuration
	if d <= 0 {
		d = 300 * time.Millisecond
	}
	return &MockEngine{wordDuration: d}
}

func (m *MockEngine) Name() string { return EngineTypeMock.String() }

func (m *MockEngine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	return SilentWAV(time.Duration(words) * m.wordDuration)
}

func (m *MockEngine) Voices(ctx context.Context) ([]VoiceInfo, error) {
	return []VoiceInfo{{Name: "mock-voice", LanguageCode: "en-US", Description: "silence"}}, nil
}

// SilentWAV encodes d of mono 16-bit silence. wav.Encode needs a seekable
// writer, so the audio goes through a temp file.
func SilentWAV(d time.Duration) ([]byte, error) {
	f, err := os.CreateTemp("", "storyloom-mock-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create mock audio: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	format := beep.Format{SampleRate: mockSampleRate, NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, beep.Silence(format.SampleRate.N(d)), format); err != nil {
		return nil, fmt.Errorf("encode mock audio: %w", err)
	}
	return os.ReadFile(f.Name())
}
