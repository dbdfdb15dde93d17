package tts

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"github.com/sirupsen/logrus"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"storyloom/internal/domain/remote"
)

const (
	defaultGoogleVoice = "en-US-Chirp3-HD-Charon"
	// A little under the 5000 byte request limit.
	googleChunkLimit = 4800
)

type GoogleClassicTTSEngine struct {
	client       *texttospeech.Client
	voice        string
	languageCode string
}

func newGoogleClassicEngine(config Config) (*GoogleClassicTTSEngine, error) {
	client, err := texttospeech.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}

	g := &GoogleClassicTTSEngine{
		client:       client,
		voice:        config.Voice,
		languageCode: config.GoogleLanguageCode,
	}
	if g.voice == "" {
		g.voice = defaultGoogleVoice
	}
	if g.languageCode == "" {
		g.languageCode = "en-US"
	}
	return g, nil
}

func (g *GoogleClassicTTSEngine) Name() string { return EngineTypeGoogleClassic.String() }

// Synthesize requests MP3 for each chunk and concatenates the frames into a
// single stream.
func (g *GoogleClassicTTSEngine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = g.voice
	}

	var out bytes.Buffer
	chunks := splitIntoChunks(text, googleChunkLimit)
	for i, chunk := range chunks {
		req := &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice: &texttospeechpb.VoiceSelectionParams{
				LanguageCode: g.languageCode,
				Name:         voice,
			},
			AudioConfig: &texttospeechpb.AudioConfig{
				AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			},
		}

		resp, err := g.client.SynthesizeSpeech(ctx, req)
		if err != nil {
			return nil, googleError(fmt.Sprintf("failed to synthesize chunk %d", i), err)
		}
		out.Write(resp.AudioContent)

		logrus.WithFields(logrus.Fields{
			"chunk": i + 1,
			"of":    len(chunks),
			"bytes": len(resp.AudioContent),
		}).Debug("Synthesized Google TTS chunk")
	}

	return out.Bytes(), nil
}

func (g *GoogleClassicTTSEngine) Voices(ctx context.Context) ([]VoiceInfo, error) {
	resp, err := g.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: g.languageCode})
	if err != nil {
		return nil, googleError("failed to list voices", err)
	}

	voices := make([]VoiceInfo, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		lang := ""
		if len(v.LanguageCodes) > 0 {
			lang = v.LanguageCodes[0]
		}
		natural := strings.Contains(v.Name, "Chirp") ||
			strings.Contains(v.Name, "Neural2") ||
			strings.Contains(v.Name, "Wavenet")
		voices = append(voices, VoiceInfo{
			Name:         v.Name,
			LanguageCode: lang,
			Gender:       strings.ToLower(v.SsmlGender.String()),
			Natural:      natural,
		})
	}
	return voices, nil
}

func (g *GoogleClassicTTSEngine) Close() error {
	return g.client.Close()
}

// googleError maps gRPC failures onto remote errors so that quota
// exhaustion reads like any other rate limit.
func googleError(action string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w", action, err)
	}

	code := http.StatusBadGateway
	switch st.Code() {
	case codes.Canceled:
		return fmt.Errorf("%s: %w", action, context.Canceled)
	case codes.ResourceExhausted:
		code = http.StatusTooManyRequests
	case codes.InvalidArgument, codes.FailedPrecondition:
		code = http.StatusBadRequest
	case codes.Unauthenticated:
		code = http.StatusUnauthorized
	case codes.PermissionDenied:
		code = http.StatusForbidden
	case codes.DeadlineExceeded:
		code = http.StatusGatewayTimeout
	}
	return remote.New("google", code, fmt.Sprintf("%s: %s", action, st.Message()))
}

func splitIntoChunks(text string, limit int) []string {
	var chunks []string
	runes := []rune(text) // safe for UTF-8
	for i := 0; i < len(runes); i += limit {
		end := i + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
