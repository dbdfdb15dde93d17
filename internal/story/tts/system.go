package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// runToWAV runs a platform speech command that writes a WAV file. The text
// goes in on stdin so it is never parsed as a flag or a script.
func runToWAV(ctx context.Context, text, name string, args func(path string) []string) ([]byte, error) {
	f, err := os.CreateTemp("", "storyloom-speech-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create speech file: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args(path)...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s failed: %w (output: %s)", name, err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read speech file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s produced no audio", name)
	}
	return data, nil
}

// parseSayVoices reads `say -v ?` output, one voice per line:
//
//	Bad News            en_US    # The light you see at the end of the tunnel...
func parseSayVoices(output string) []VoiceInfo {
	voices := make([]VoiceInfo, 0)
	for _, line := range strings.Split(output, "\n") {
		left, comment, _ := strings.Cut(line, "#")
		fields := strings.Fields(left)
		if len(fields) < 2 {
			continue
		}
		locale := fields[len(fields)-1]
		voices = append(voices, VoiceInfo{
			Name:         strings.Join(fields[:len(fields)-1], " "),
			LanguageCode: strings.ReplaceAll(locale, "_", "-"),
			Description:  strings.TrimSpace(comment),
		})
	}
	return voices
}

// parseSAPIVoices reads "name|culture|gender" lines printed by PowerShell.
func parseSAPIVoices(output string) []VoiceInfo {
	voices := make([]VoiceInfo, 0)
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Split(strings.TrimSpace(line), "|")
		if len(parts) != 3 || parts[0] == "" {
			continue
		}
		voices = append(voices, VoiceInfo{
			Name:         parts[0],
			LanguageCode: parts[1],
			Gender:       strings.ToLower(parts[2]),
		})
	}
	return voices
}

// psQuote makes s a single-quoted PowerShell literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
