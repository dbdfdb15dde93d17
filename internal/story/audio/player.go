// Package audio turns synthesized speech payloads into playable tracks.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// Unbounded is reported by tracks whose length cannot be known up front.
const Unbounded = time.Duration(math.MaxInt64)

// DefaultSampleRate is the rate the speaker is opened with; tracks at other
// rates are resampled.
const DefaultSampleRate = beep.SampleRate(44100)

var (
	ErrEmptyPayload   = errors.New("empty audio payload")
	ErrAlreadyPlaying = errors.New("track is already playing")
	ErrClosed         = errors.New("track is closed")
)

// Track is one decoded narration clip. Position and Paused are safe to call
// from any goroutine. The onEnd callback passed to Play runs on its own
// goroutine and never after Close.
type Track interface {
	Duration() time.Duration
	Position() time.Duration
	Play(onEnd func()) error
	Pause()
	Resume()
	Paused() bool
	Close() error
}

// Loader decodes a payload into a Track that is ready to play through.
type Loader interface {
	Load(ctx context.Context, payload []byte) (Track, error)
}

// BeepLoader decodes MP3 and WAV with beep and plays through the system
// speaker. The speaker is opened lazily on the first Play.
type BeepLoader struct {
	rate    beep.SampleRate
	once    sync.Once
	initErr error
}

// NewBeepLoader opens the speaker at rate, or DefaultSampleRate when rate is unset.
func NewBeepLoader(rate beep.SampleRate) *BeepLoader {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return &BeepLoader{rate: rate}
}

func (l *BeepLoader) Load(ctx context.Context, payload []byte) (Track, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	streamer, format, err := decode(payload)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		streamer.Close()
		return nil, err
	}

	return &beepTrack{loader: l, streamer: streamer, format: format}, nil
}

func (l *BeepLoader) initSpeaker() error {
	l.once.Do(func() {
		l.initErr = speaker.Init(l.rate, l.rate.N(time.Second/10))
	})
	return l.initErr
}

// decode sniffs the container: WAV starts with a RIFF header, anything else
// is treated as MP3.
func decode(payload []byte) (beep.StreamSeekCloser, beep.Format, error) {
	if bytes.HasPrefix(payload, []byte("RIFF")) {
		s, f, err := wav.Decode(bytes.NewReader(payload))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decode wav: %w", err)
		}
		return s, f, nil
	}

	// go-mp3 only measures the stream when the source can seek
	s, f, err := mp3.Decode(readSeekNopCloser{bytes.NewReader(payload)})
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode mp3: %w", err)
	}
	return s, f, nil
}

// readSeekNopCloser keeps the reader's Seek visible to the decoder, which
// io.NopCloser would hide.
type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

type beepTrack struct {
	loader   *BeepLoader
	streamer beep.StreamSeekCloser
	format   beep.Format

	// guarded by speaker.Lock once playing
	ctrl   *beep.Ctrl
	closed bool
}

func (t *beepTrack) Duration() time.Duration {
	n := t.streamer.Len()
	if n <= 0 {
		return 0
	}
	return t.format.SampleRate.D(n)
}

func (t *beepTrack) Position() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	if t.closed {
		return 0
	}
	return t.format.SampleRate.D(t.streamer.Position())
}

func (t *beepTrack) Play(onEnd func()) error {
	speaker.Lock()
	switch {
	case t.closed:
		speaker.Unlock()
		return ErrClosed
	case t.ctrl != nil:
		speaker.Unlock()
		return ErrAlreadyPlaying
	}
	speaker.Unlock()

	if err := t.loader.initSpeaker(); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	speaker.Lock()
	if t.closed {
		speaker.Unlock()
		return ErrClosed
	}
	t.ctrl = &beep.Ctrl{Streamer: t.streamer}
	speaker.Unlock()

	var out beep.Streamer = t.ctrl
	if t.format.SampleRate != t.loader.rate {
		out = beep.Resample(4, t.format.SampleRate, t.loader.rate, t.ctrl)
	}

	// Callback runs on the speaker goroutine with the speaker lock held, so
	// the listener is handed off to its own goroutine.
	speaker.Play(beep.Seq(out, beep.Callback(func() {
		if !t.closed && onEnd != nil {
			go onEnd()
		}
	})))
	return nil
}

func (t *beepTrack) Pause() {
	speaker.Lock()
	if t.ctrl != nil {
		t.ctrl.Paused = true
	}
	speaker.Unlock()
}

func (t *beepTrack) Resume() {
	speaker.Lock()
	if t.ctrl != nil {
		t.ctrl.Paused = false
	}
	speaker.Unlock()
}

func (t *beepTrack) Paused() bool {
	speaker.Lock()
	defer speaker.Unlock()
	return t.ctrl == nil || t.ctrl.Paused
}

// Close detaches the track from the speaker and releases the decoder.
// Calling it more than once is fine.
func (t *beepTrack) Close() error {
	speaker.Lock()
	if t.closed {
		speaker.Unlock()
		return nil
	}
	t.closed = true
	if t.ctrl != nil {
		t.ctrl.Paused = true
		t.ctrl.Streamer = nil
	}
	speaker.Unlock()

	return t.streamer.Close()
}
