// Package illustrator fetches chapter illustrations from Pollinations.
package illustrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"storyloom/internal/domain/remote"
)

const (
	service = "image"

	DefaultBaseURL     = "https://gen.pollinations.ai"
	defaultContentType = "image/jpeg"
	defaultTimeout     = 90 * time.Second

	stylePrompt = "Beautiful, atmospheric fantasy book illustration: %s. Style: rich oil painting with dramatic lighting, detailed textures, cinematic composition."
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Illustrator struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Image is a fetched illustration.
type Image struct {
	Data        []byte
	ContentType string
}

func New(cfg Config) *Illustrator {
	i := &Illustrator{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if i.baseURL == "" {
		i.baseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		i.httpClient.Timeout = defaultTimeout
	}
	return i
}

// URL builds the generation URL for a scene description.
func (i *Illustrator) URL(prompt string) string {
	q := url.Values{}
	q.Set("model", "flux")
	q.Set("width", "1024")
	q.Set("height", "576")
	if i.apiKey != "" {
		q.Set("key", i.apiKey)
	}
	q.Set("nologo", "true")

	return i.baseURL + "/image/" + escapeComponent(fmt.Sprintf(stylePrompt, prompt)) + "?" + q.Encode()
}

func (i *Illustrator) Illustrate(ctx context.Context, prompt string) (*Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("empty image prompt")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.URL(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}

	start := time.Now()
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, remote.FromResponse(service, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = defaultContentType
	}

	logrus.WithFields(logrus.Fields{
		"bytes":   len(data),
		"type":    ct,
		"elapsed": time.Since(start),
	}).Debug("illustration fetched")

	return &Image{Data: data, ContentType: ct}, nil
}

// DataURL inlines the image as a data: URL.
func (img *Image) DataURL() string {
	return "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func (img *Image) Extension() string {
	ct, _, _ := strings.Cut(img.ContentType, ";")
	switch strings.TrimSpace(ct) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// Save writes the image into dir as name plus the matching extension and
// returns the path.
func (img *Image) Save(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create image directory: %w", err)
	}
	path := filepath.Join(dir, name+img.Extension())
	if err := os.WriteFile(path, img.Data, 0644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path, nil
}

// escapeComponent matches encodeURIComponent closely enough for prompts:
// spaces become %20 rather than +.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
