//go:build windows

package tts

import (
	"context"
	"fmt"
	"os/exec"
)

// SAPIEngine renders speech with System.Speech through PowerShell.
type SAPIEngine struct {
	voice string
}

func newSystemEngine(config Config) (Synthesizer, error) {
	if !hasSystemVoice() {
		return nil, fmt.Errorf("powershell not found in PATH")
	}
	return &SAPIEngine{voice: config.Voice}, nil
}

func hasSystemVoice() bool {
	_, err := exec.LookPath("powershell")
	return err == nil
}

func (s *SAPIEngine) Name() string { return EngineTypeSystem.String() }

func (s *SAPIEngine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = s.voice
	}

	return runToWAV(ctx, text, "powershell", func(path string) []string {
		script := `Add-Type -AssemblyName System.Speech;
$text = [Console]::In.ReadToEnd();
$synth = New-Object System.Speech.Synthesis.SpeechSynthesizer;`
		if voice != "" && voice != "default" {
			script += fmt.Sprintf("\n$synth.SelectVoice(%s);", psQuote(voice))
		}
		script += fmt.Sprintf("\n$synth.SetOutputToWaveFile(%s);\n$synth.Speak($text);\n$synth.Dispose()", psQuote(path))
		return []string{"-NoProfile", "-NonInteractive", "-Command", script}
	})
}

func (s *SAPIEngine) Voices(ctx context.Context) ([]VoiceInfo, error) {
	script := `Add-Type -AssemblyName System.Speech;
(New-Object System.Speech.Synthesis.SpeechSynthesizer).GetInstalledVoices() | ForEach-Object {
  $v = $_.VoiceInfo; "{0}|{1}|{2}" -f $v.Name, $v.Culture.Name, $v.Gender
}`
	output, err := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script).Output()
	if err != nil {
		return nil, err
	}
	return parseSAPIVoices(string(output)), nil
}
