// Cross-platform eSpeak implementation
package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var espeakCandidates = []string{"espeak-ng", "espeak"}

// ESpeakEngine renders speech with a local eSpeak/eSpeak-NG binary, which
// writes a WAV file to stdout.
type ESpeakEngine struct {
	path  string
	voice string
	// words per minute, eSpeak's default is 175
	speed int
}

// newESpeakEngine creates a new eSpeak TTS engine
func newESpeakEngine(config Config) (*ESpeakEngine, error) {
	espeakPath, err := findESpeakExecutable()
	if err != nil {
		return nil, fmt.Errorf("eSpeak not found: %w", err)
	}

	return &ESpeakEngine{
		path:  espeakPath,
		voice: config.Voice,
		speed: 165,
	}, nil
}

func findESpeakExecutable() (string, error) {
	for _, candidate := range espeakCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("eSpeak executable not found in PATH")
}

func (e *ESpeakEngine) Name() string { return EngineTypeESpeak.String() }

func (e *ESpeakEngine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = e.voice
	}

	args := []string{"--stdout", "-s", strconv.Itoa(e.speed)}
	if voice != "" && voice != "default" {
		args = append(args, "-v", voice)
	}
	// "--" keeps text that starts with a dash from being read as a flag.
	args = append(args, "--", text)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("espeak failed: %w (output: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func (e *ESpeakEngine) Voices(ctx context.Context) ([]VoiceInfo, error) {
	output, err := exec.CommandContext(ctx, e.path, "--voices").Output()
	if err != nil {
		return nil, err
	}
	return parseESpeakVoices(string(output)), nil
}

func parseESpeakVoices(output string) []VoiceInfo {
	lines := strings.Split(output, "\n")
	voices := make([]VoiceInfo, 0)

	for i, line := range lines {
		// Skip header line
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}

		// Pty Language Age/Gender VoiceName          File          Other Languages
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		gender := ""
		if ag := fields[2]; strings.Contains(ag, "/") {
			switch ag[strings.Index(ag, "/")+1:] {
			case "M":
				gender = "male"
			case "F":
				gender = "female"
			}
		}

		voices = append(voices, VoiceInfo{
			Name:         fields[3],
			LanguageCode: fields[1],
			Gender:       gender,
		})
	}

	return voices
}
