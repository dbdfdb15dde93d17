package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"storyloom/internal/domain/remote"
)

// EndpointEngine posts narration text to a speech function that answers
// with raw audio on success and a JSON `{"error": "..."}` body otherwise.
type EndpointEngine struct {
	url        string
	apiKey     string
	voice      string
	httpClient *http.Client
}

type endpointRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId,omitempty"`
}

func NewEndpointEngine(config Config) *EndpointEngine {
	return &EndpointEngine{
		url:        config.EndpointURL,
		apiKey:     config.EndpointAPIKey,
		voice:      config.Voice,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

func (e *EndpointEngine) Name() string { return EngineTypeEndpoint.String() }

func (e *EndpointEngine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = e.voice
	}

	body, err := json.Marshal(endpointRequest{Text: text, VoiceID: voice})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
		req.Header.Set("apikey", e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, remote.FromResponse("tts", resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("tts returned an empty audio payload")
	}
	return audio, nil
}

// Voices returns the voice the endpoint is configured with; the function
// does not expose a catalogue.
func (e *EndpointEngine) Voices(ctx context.Context) ([]VoiceInfo, error) {
	name := e.voice
	if name == "" {
		name = defaultMurfVoice
	}
	return []VoiceInfo{{Name: name, Description: "voice used by the speech endpoint"}}, nil
}
