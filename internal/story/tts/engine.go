package tts

import (
	"fmt"
	"os"
	"os/exec"
)

type EngineType string

const (
	EngineTypeMock          EngineType = "mock"
	EngineTypeESpeak        EngineType = "espeak"
	EngineTypeMurf          EngineType = "murf"
	EngineTypeEndpoint      EngineType = "endpoint" // edge-function style proxy
	EngineTypeGoogleClassic EngineType = "googleclassic"
	EngineTypeSystem        EngineType = "system" // say on macOS, SAPI on Windows
	EngineTypeAuto          EngineType = "auto" // Automatically choose best available
)

func (e EngineType) String() string {
	return string(e)
}

// NewEngine creates a speech synthesizer based on the provided config
func NewEngine(config Config) (Synthesizer, error) {
	if config.Type == "" || config.Type == EngineTypeAuto.String() {
		config.Type = bestEngine(config).String()
	}

	switch config.Type {
	case EngineTypeMock.String():
		return NewMockEngine(config), nil

	case EngineTypeMurf.String():
		if config.MurfAPIKey == "" {
			return nil, fmt.Errorf("murf engine requires tts.murf.api_key")
		}
		return NewMurfEngine(config), nil

	case EngineTypeEndpoint.String():
		if config.EndpointURL == "" {
			return nil, fmt.Errorf("endpoint engine requires tts.endpoint.url")
		}
		return NewEndpointEngine(config), nil

	case EngineTypeGoogleClassic.String():
		return newGoogleClassicEngine(config)

	case EngineTypeSystem.String():
		return newSystemEngine(config)

	case EngineTypeESpeak.String():
		return newESpeakEngine(config)

	default:
		return nil, fmt.Errorf("unsupported TTS engine type: %s", config.Type)
	}
}

// bestEngine picks the most natural sounding engine that is configured.
func bestEngine(config Config) EngineType {
	switch {
	case hasGoogleCredentials():
		return EngineTypeGoogleClassic
	case config.MurfAPIKey != "":
		return EngineTypeMurf
	case config.EndpointURL != "":
		return EngineTypeEndpoint
	case hasSystemVoice():
		return EngineTypeSystem
	case hasESpeak():
		return EngineTypeESpeak
	default:
		return EngineTypeMock
	}
}

// GetAvailableEngines returns engines usable with the given config
func GetAvailableEngines(config Config) []EngineType {
	engines := []EngineType{EngineTypeMock}

	if hasESpeak() {
		engines = append(engines, EngineTypeESpeak)
	}
	if hasSystemVoice() {
		engines = append(engines, EngineTypeSystem)
	}
	if config.EndpointURL != "" {
		engines = append(engines, EngineTypeEndpoint)
	}
	if config.MurfAPIKey != "" {
		engines = append(engines, EngineTypeMurf)
	}
	if hasGoogleCredentials() {
		engines = append(engines, EngineTypeGoogleClassic)
	}

	return engines
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}

func hasESpeak() bool {
	for _, candidate := range espeakCandidates {
		if _, err := exec.LookPath(candidate); err == nil {
			return true
		}
	}
	return false
}
