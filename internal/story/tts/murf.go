package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"storyloom/internal/domain/remote"

	"github.com/sirupsen/logrus"
)

const (
	defaultMurfBaseURL = "https://api.murf.ai"
	defaultMurfVoice   = "en-US-natalie"
	murfRateLimitMsg   = "Rate limit exceeded, please try again later."
)

// MurfEngine implements synthesis via the Murf.ai speech API.
type MurfEngine struct {
	apiKey     string
	baseURL    string
	voice      string
	httpClient *http.Client
}

type murfRequest struct {
	Text       string `json:"text"`
	VoiceID    string `json:"voiceId"`
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate"`
}

// Murf returns either a short-lived audio URL or base64 audio.
type murfResponse struct {
	AudioFile    string `json:"audioFile"`
	EncodedAudio string `json:"encodedAudio"`
}

func NewMurfEngine(config Config) *MurfEngine {
	m := &MurfEngine{
		apiKey:     config.MurfAPIKey,
		baseURL:    strings.TrimRight(config.MurfBaseURL, "/"),
		voice:      config.Voice,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
	if m.baseURL == "" {
		m.baseURL = defaultMurfBaseURL
	}
	if m.voice == "" {
		m.voice = defaultMurfVoice
	}
	return m
}

func (m *MurfEngine) Name() string { return EngineTypeMurf.String() }

// Synthesize calls POST {baseURL}/v1/speech/generate and returns MP3 bytes.
func (m *MurfEngine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = m.voice
	}

	body, err := json.Marshal(murfRequest{
		Text:       text,
		VoiceID:    voice,
		Format:     "MP3",
		SampleRate: 44100,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal murf request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/speech/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create murf request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("murf request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rerr := remote.FromResponse("murf", resp)
		logrus.WithFields(logrus.Fields{
			"status":  resp.StatusCode,
			"message": rerr.Message,
		}).Warn("Murf synthesis failed")
		if rerr.RateLimited() {
			rerr.Message = murfRateLimitMsg
		}
		return nil, rerr
	}

	var out murfResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode murf response: %w", err)
	}

	switch {
	case out.AudioFile != "":
		return m.fetchAudio(ctx, out.AudioFile)
	case out.EncodedAudio != "":
		audio, err := base64.StdEncoding.DecodeString(out.EncodedAudio)
		if err != nil {
			return nil, fmt.Errorf("decode murf audio: %w", err)
		}
		return audio, nil
	default:
		return nil, fmt.Errorf("no audio data in murf response")
	}
}

func (m *MurfEngine) fetchAudio(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create murf audio request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio from murf url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, remote.New("murf", resp.StatusCode, "Failed to fetch audio from Murf URL")
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read murf audio: %w", err)
	}
	return audio, nil
}

// Voices returns a small curated set of Murf voices suited to narration.
func (m *MurfEngine) Voices(ctx context.Context) ([]VoiceInfo, error) {
	return []VoiceInfo{
		{Name: "en-US-natalie", LanguageCode: "en-US", Gender: "female", Natural: true, Description: "warm storyteller"},
		{Name: "en-US-terrell", LanguageCode: "en-US", Gender: "male", Natural: true, Description: "deep narrator"},
		{Name: "en-UK-hazel", LanguageCode: "en-GB", Gender: "female", Natural: true, Description: "gentle British"},
		{Name: "en-UK-theo", LanguageCode: "en-GB", Gender: "male", Natural: true, Description: "crisp British"},
	}, nil
}
