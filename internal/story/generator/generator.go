// Package generator writes story chapters through an OpenAI-compatible
// chat-completions gateway.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"storyloom/internal/domain/remote"
	"storyloom/internal/domain/story"
)

const (
	service = "story"

	DefaultModel   = "openai/gpt-5-mini"
	DefaultBaseURL = "https://ai.gateway.lovable.dev/v1"

	rateLimitMsg   = "Rate limit exceeded. Please wait a moment."
	noCreditsMsg   = "AI credits exhausted."
	gatewayFailMsg = "AI gateway error"
)

type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	RequestsPerMinute int
	Timeout           time.Duration
}

// Generator asks the model for one chapter at a time.
type Generator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func New(cfg Config) *Generator {
	g := &Generator{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
	if g.baseURL == "" {
		g.baseURL = DefaultBaseURL
	}
	if g.model == "" {
		g.model = DefaultModel
	}
	if cfg.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return g
}

// NextChapter writes the chapter that follows the tale's latest choice.
func (g *Generator) NextChapter(ctx context.Context, t *story.Tale) (story.Chapter, error) {
	return g.Generate(ctx, RequestFor(t))
}

func (g *Generator) Generate(ctx context.Context, r Request) (story.Chapter, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return story.Chapter{}, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	log := logrus.WithFields(logrus.Fields{
		"model":   g.model,
		"chapter": r.ChapterNumber,
		"total":   r.Setup.TotalChapters,
	})
	log.Debug("requesting chapter")

	content, err := g.complete(ctx, []chatMessage{
		{Role: "system", Content: r.systemMessage()},
		{Role: "user", Content: r.userMessage()},
	})
	if err != nil {
		return story.Chapter{}, err
	}

	ch, err := parseChapter(content)
	if err != nil {
		log.WithError(err).WithField("reply", truncate(content, 200)).Warn("unusable chapter reply")
		return story.Chapter{}, err
	}
	if r.IsFinal() {
		ch.Choices = nil
	}
	return ch, nil
}

func (g *Generator) complete(ctx context.Context, messages []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{Model: g.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return "", remote.New(service, resp.StatusCode, rateLimitMsg)
	case http.StatusPaymentRequired:
		return "", remote.New(service, resp.StatusCode, noCreditsMsg)
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   truncate(string(detail), 200),
		}).Error("AI gateway error")
		return "", remote.New(service, resp.StatusCode, gatewayFailMsg)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrNoJSON
	}
	return out.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
