//go:build darwin

package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// SayEngine renders speech with the macOS `say` command.
type SayEngine struct {
	voice string
	// words per minute, say's default is about 175
	rate int
}

func newSystemEngine(config Config) (Synthesizer, error) {
	if !hasSystemVoice() {
		return nil, fmt.Errorf("say not found in PATH")
	}
	return &SayEngine{voice: config.Voice, rate: 175}, nil
}

func hasSystemVoice() bool {
	_, err := exec.LookPath("say")
	return err == nil
}

func (s *SayEngine) Name() string { return EngineTypeSystem.String() }

func (s *SayEngine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = s.voice
	}

	return runToWAV(ctx, text, "say", func(path string) []string {
		args := []string{
			"-o", path,
			"--file-format=WAVE",
			"--data-format=LEI16@22050",
			"-r", strconv.Itoa(s.rate),
		}
		if voice != "" && voice != "default" {
			args = append(args, "-v", voice)
		}
		// read the text from stdin
		return append(args, "-f", "-")
	})
}

func (s *SayEngine) Voices(ctx context.Context) ([]VoiceInfo, error) {
	output, err := exec.CommandContext(ctx, "say", "-v", "?").Output()
	if err != nil {
		return nil, err
	}
	return parseSayVoices(string(output)), nil
}
