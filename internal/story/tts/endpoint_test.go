package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storyloom/internal/domain/remote"
)

func TestEndpointSynthesize(t *testing.T) {
	var got endpointRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Authorization = %q", auth)
		}
		if key := r.Header.Get("apikey"); key != "secret" {
			t.Errorf("apikey = %q", key)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	e := NewEndpointEngine(Config{EndpointURL: srv.URL, EndpointAPIKey: "secret", Voice: "en-US-natalie"})
	audio, err := e.Synthesize(context.Background(), "The cat sat.", "")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "ID3-audio" {
		t.Errorf("audio = %q", audio)
	}
	if got.Text != "The cat sat." || got.VoiceID != "en-US-natalie" {
		t.Errorf("request = %+v", got)
	}
}

func TestEndpointErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantLimited bool
	}{
		{
			name:        "rate limited",
			status:      http.StatusTooManyRequests,
			body:        `{"error":"Rate limit exceeded, please try again later."}`,
			wantMessage: "Rate limit exceeded, please try again later.",
			wantLimited: true,
		},
		{
			name:        "server error without body",
			status:      http.StatusInternalServerError,
			wantMessage: "tts returned 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.body != "" {
					w.Header().Set("Content-Type", "application/json")
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			e := NewEndpointEngine(Config{EndpointURL: srv.URL})
			_, err := e.Synthesize(context.Background(), "hello", "")

			var re *remote.Error
			if !errors.As(err, &re) {
				t.Fatalf("error = %v, want *remote.Error", err)
			}
			if re.Error() != tt.wantMessage {
				t.Errorf("message = %q, want %q", re.Error(), tt.wantMessage)
			}
			if remote.IsRateLimited(err) != tt.wantLimited {
				t.Errorf("IsRateLimited = %v", remote.IsRateLimited(err))
			}
		})
	}
}

func TestEndpointHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	e := NewEndpointEngine(Config{EndpointURL: srv.URL})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := e.Synthesize(ctx, "hello", "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestEndpointEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	e := NewEndpointEngine(Config{EndpointURL: srv.URL})
	if _, err := e.Synthesize(context.Background(), "hello", ""); err == nil {
		t.Fatal("empty audio should be an error")
	}
}
