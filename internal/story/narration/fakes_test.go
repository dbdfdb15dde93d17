package narration

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"storyloom/internal/story/audio"
)

type fakeSynth struct {
	mu      sync.Mutex
	calls   int
	payload []byte
	err     error

	// when set, Synthesize waits for it to be closed
	release chan struct{}
	// ignore cancellation and answer anyway, like a response already in flight
	ignoreCancel bool
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.release != nil {
		if f.ignoreCancel {
			<-f.release
		} else {
			select {
			case <-f.release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if f.err != nil {
		return nil, f.err
	}
	if f.payload == nil {
		return []byte("audio"), nil
	}
	return f.payload, nil
}

type fakeLoader struct {
	mu       sync.Mutex
	duration time.Duration
	err      error
	playErr  error
	tracks   []*fakeTrack
}

func (l *fakeLoader) Load(ctx context.Context, payload []byte) (audio.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.err != nil {
		return nil, l.err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	t := &fakeTrack{duration: l.duration, playErr: l.playErr}
	l.tracks = append(l.tracks, t)
	return t, nil
}

func (l *fakeLoader) all() []*fakeTrack {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeTrack(nil), l.tracks...)
}

func (l *fakeLoader) last(t *testing.T) *fakeTrack {
	t.Helper()
	var track *fakeTrack
	waitFor(t, "a loaded track", func() bool {
		tracks := l.all()
		if len(tracks) == 0 {
			return false
		}
		track = tracks[len(tracks)-1]
		return true
	})
	return track
}

// live counts tracks that are playing and not yet released.
func (l *fakeLoader) live() int {
	n := 0
	for _, t := range l.all() {
		if t.isPlaying() && !t.isClosed() {
			n++
		}
	}
	return n
}

type fakeTrack struct {
	mu       sync.Mutex
	duration time.Duration
	position time.Duration
	playing  bool
	paused   bool
	closed   bool
	playErr  error
	onEnd    func()
}

func (t *fakeTrack) Duration() time.Duration { return t.duration }

func (t *fakeTrack) Position() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

func (t *fakeTrack) Play(onEnd func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playErr != nil {
		return t.playErr
	}
	if t.closed {
		return audio.ErrClosed
	}
	t.playing = true
	t.onEnd = onEnd
	return nil
}

func (t *fakeTrack) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

func (t *fakeTrack) Resume() {
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
}

func (t *fakeTrack) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

func (t *fakeTrack) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *fakeTrack) seek(d time.Duration) {
	t.mu.Lock()
	t.position = d
	t.mu.Unlock()
}

// end plays the clip out the way the speaker does: the listener runs on its
// own goroutine.
func (t *fakeTrack) end() {
	t.mu.Lock()
	t.position = t.duration
	onEnd := t.onEnd
	closed := t.closed
	t.mu.Unlock()
	if onEnd != nil && !closed {
		go onEnd()
	}
}

func (t *fakeTrack) isPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

func (t *fakeTrack) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type recorder struct {
	mu     sync.Mutex
	states []State
	errs   []error
}

func (r *recorder) onChange(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recorder) snapshot() ([]State, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...), append([]error(nil), r.errs...)
}

func (r *recorder) last() State {
	states, _ := r.snapshot()
	if len(states) == 0 {
		return idle(false)
	}
	return states[len(states)-1]
}

func (r *recorder) everSpeaking() bool {
	states, _ := r.snapshot()
	for _, s := range states {
		if s.Speaking {
			return true
		}
	}
	return false
}

type harness struct {
	ctrl   *Controller
	synth  *fakeSynth
	loader *fakeLoader
	rec    *recorder
}

func newHarness(t *testing.T, synth *fakeSynth, loader *fakeLoader) *harness {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	rec := &recorder{}
	ctrl := New(Options{
		Synthesizer:  synth,
		Loader:       loader,
		PollInterval: 5 * time.Millisecond,
		FlashHold:    40 * time.Millisecond,
		OnChange:     rec.onChange,
		OnError:      rec.onError,
		Logger:       logger,
	})
	t.Cleanup(func() { ctrl.Close() })

	return &harness{ctrl: ctrl, synth: synth, loader: loader, rec: rec}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errBadAudio = errors.New("bad audio")
