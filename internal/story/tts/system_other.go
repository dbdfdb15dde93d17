//go:build !darwin && !windows

package tts

import "fmt"

func newSystemEngine(config Config) (Synthesizer, error) {
	return nil, fmt.Errorf("no system voice on this platform, try espeak")
}

func hasSystemVoice() bool { return false }
