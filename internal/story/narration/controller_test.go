package narration

import (
	"errors"
	"testing"
	"time"

	"storyloom/internal/domain/remote"
	"storyloom/internal/story/audio"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"The cat sat.", 3},
		{"  The\tcat \n\n sat.  ", 3},
		{"", 0},
		{" \n\t ", 0},
	}

	for _, tt := range tests {
		if got := len(Tokenize(tt.text)); got != tt.want {
			t.Errorf("len(Tokenize(%q)) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestWordIndexAt(t *testing.T) {
	msPerWord := MsPerWord(3000*time.Millisecond, 3)
	if msPerWord != 1000 {
		t.Fatalf("MsPerWord() = %v, want 1000", msPerWord)
	}

	tests := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 0},
		{999 * time.Millisecond, 0},
		{1000 * time.Millisecond, 1},
		{1500 * time.Millisecond, 1},
		{2999 * time.Millisecond, 2},
		{3000 * time.Millisecond, 2},
		{10 * time.Second, 2},
	}

	for _, tt := range tests {
		if got := WordIndexAt(tt.elapsed, msPerWord, 3); got != tt.want {
			t.Errorf("WordIndexAt(%s) = %d, want %d", tt.elapsed, got, tt.want)
		}
	}

	prev := 0
	for e := time.Duration(0); e <= 4*time.Second; e += 7 * time.Millisecond {
		idx := WordIndexAt(e, msPerWord, 3)
		if idx < prev {
			t.Fatalf("WordIndexAt went backwards at %s: %d after %d", e, idx, prev)
		}
		prev = idx
	}

	if got := WordIndexAt(time.Second, 0, 0); got != -1 {
		t.Errorf("WordIndexAt with no words = %d, want -1", got)
	}
}

func TestNarrationFollowsPlayback(t *testing.T) {
	h := newHarness(t, &fakeSynth{}, &fakeLoader{duration: 3000 * time.Millisecond})

	if err := h.ctrl.Speak("The cat sat.", 2); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if s := h.ctrl.State(); !s.Loading || s.Chapter != 2 || s.Speaking {
		t.Fatalf("state after Speak = %+v, want loading chapter 2", s)
	}

	waitFor(t, "speaking at word 0", func() bool {
		s := h.ctrl.State()
		return s.Speaking && !s.Loading && s.WordIndex == 0
	})
	track := h.loader.last(t)

	if !h.ctrl.State().ActiveFor(2) || h.ctrl.State().ActiveFor(1) {
		t.Error("ActiveFor should only hold for the owning chapter")
	}

	track.seek(1500 * time.Millisecond)
	waitFor(t, "word 1", func() bool { return h.ctrl.State().WordIndex == 1 })

	track.seek(2999 * time.Millisecond)
	waitFor(t, "word 2", func() bool { return h.ctrl.State().WordIndex == 2 })

	track.end()
	waitFor(t, "flash of all words", func() bool {
		s := h.ctrl.State()
		return s.Speaking && s.WordIndex == 3
	})
	waitFor(t, "reset after flash", func() bool { return h.ctrl.State() == idle(false) })

	if !track.isClosed() {
		t.Error("track should be released after the session ends")
	}

	waitFor(t, "final notification", func() bool { return h.rec.last() == idle(false) })
	states, errs := h.rec.snapshot()
	if len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}

	var cursor []int
	for _, s := range states {
		cursor = append(cursor, s.WordIndex)
	}
	want := []int{-1, 0, 1, 2, 3, -1}
	if len(cursor) != len(want) {
		t.Fatalf("cursor sequence = %v, want %v", cursor, want)
	}
	for i := range want {
		if cursor[i] != want[i] {
			t.Fatalf("cursor sequence = %v, want %v", cursor, want)
		}
	}
}

func TestEmptyTextNeverSpeaks(t *testing.T) {
	h := newHarness(t, &fakeSynth{}, &fakeLoader{duration: time.Second})

	h.ctrl.Speak(" \n ", 0)
	track := h.loader.last(t)
	waitFor(t, "idle", func() bool { return h.ctrl.State() == idle(false) })

	if h.rec.everSpeaking() {
		t.Error("speaking must never be set for empty text")
	}
	if !track.isClosed() || track.isPlaying() {
		t.Error("track should be released without playing")
	}
}

func TestServiceErrorResetsToIdle(t *testing.T) {
	synth := &fakeSynth{err: remote.New("tts", 429, "Rate limit exceeded, please try again later.")}
	h := newHarness(t, synth, &fakeLoader{duration: time.Second})

	h.ctrl.Speak("Once upon a time", 0)

	waitFor(t, "error reported", func() bool {
		_, errs := h.rec.snapshot()
		return len(errs) == 1
	})
	_, errs := h.rec.snapshot()
	if !remote.IsRateLimited(errs[0]) {
		t.Errorf("error = %v, want rate limit", errs[0])
	}
	if errs[0].Error() != "Rate limit exceeded, please try again later." {
		t.Errorf("message = %q", errs[0].Error())
	}

	if s := h.ctrl.State(); s != idle(false) {
		t.Errorf("state = %+v, want idle", s)
	}
	if len(h.loader.all()) != 0 {
		t.Error("no track should be loaded after a failed request")
	}
	if h.rec.everSpeaking() {
		t.Error("speaking must not be set on failure")
	}
}

func TestPlaybackFailures(t *testing.T) {
	tests := []struct {
		name   string
		loader *fakeLoader
		check  func(error) bool
	}{
		{
			name:   "decode failure",
			loader: &fakeLoader{err: errBadAudio},
			check: func(err error) bool {
				var pe *PlaybackError
				return errors.As(err, &pe) && errors.Is(err, errBadAudio)
			},
		},
		{
			name:   "play failure",
			loader: &fakeLoader{duration: time.Second, playErr: errBadAudio},
			check: func(err error) bool {
				var pe *PlaybackError
				return errors.As(err, &pe)
			},
		},
		{
			name:   "zero duration",
			loader: &fakeLoader{},
			check: func(err error) bool {
				var de *DurationError
				return errors.As(err, &de)
			},
		},
		{
			name:   "unbounded duration",
			loader: &fakeLoader{duration: audio.Unbounded},
			check: func(err error) bool {
				var de *DurationError
				return errors.As(err, &de) && de.Duration == audio.Unbounded
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeSynth{}, tt.loader)
			h.ctrl.Speak("The cat sat.", 1)

			waitFor(t, "error reported", func() bool {
				_, errs := h.rec.snapshot()
				return len(errs) == 1
			})
			_, errs := h.rec.snapshot()
			if !tt.check(errs[0]) {
				t.Errorf("error = %v (%T)", errs[0], errs[0])
			}
			if s := h.ctrl.State(); s != idle(false) {
				t.Errorf("state = %+v, want idle", s)
			}
			for _, track := range tt.loader.all() {
				if !track.isClosed() {
					t.Error("track leaked after failure")
				}
			}
		})
	}
}

func TestDurationErrorNamesDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "could not determine audio duration (got 0s)"},
		{-time.Second, "could not determine audio duration (got -1s)"},
		{audio.Unbounded, "could not determine audio duration (got " + audio.Unbounded.String() + ")"},
	}

	for _, tt := range tests {
		if got := (&DurationError{Duration: tt.d}).Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestStopBeforeResponseDiscardsIt(t *testing.T) {
	synth := &fakeSynth{release: make(chan struct{}), ignoreCancel: true}
	h := newHarness(t, synth, &fakeLoader{duration: time.Second})

	h.ctrl.Speak("The cat sat.", 0)
	waitFor(t, "request in flight", func() bool {
		synth.mu.Lock()
		defer synth.mu.Unlock()
		return synth.calls == 1
	})

	h.ctrl.Stop()
	if s := h.ctrl.State(); s != idle(false) {
		t.Fatalf("state after Stop = %+v, want idle", s)
	}

	close(synth.release)
	time.Sleep(50 * time.Millisecond)

	if s := h.ctrl.State(); s != idle(false) {
		t.Errorf("late response resurrected state: %+v", s)
	}
	if h.rec.everSpeaking() {
		t.Error("speaking must not be set by a discarded response")
	}
	if len(h.loader.all()) != 0 {
		t.Error("a discarded response must not load a track")
	}
	if _, errs := h.rec.snapshot(); len(errs) != 0 {
		t.Errorf("aborts must stay silent, got %v", errs)
	}
}

func TestSpeakSupersedesPreviousSession(t *testing.T) {
	h := newHarness(t, &fakeSynth{}, &fakeLoader{duration: 5 * time.Second})

	h.ctrl.Speak("First chapter text.", 0)
	waitFor(t, "first session playing", func() bool { return h.ctrl.State().Speaking })
	first := h.loader.last(t)

	h.ctrl.Speak("Second chapter text.", 1)
	if !first.isClosed() {
		t.Fatal("first track must be released as soon as a new session starts")
	}
	if s := h.ctrl.State(); !s.Loading || s.Chapter != 1 || s.Speaking {
		t.Errorf("state = %+v, want loading chapter 1", s)
	}

	waitFor(t, "second session playing", func() bool {
		s := h.ctrl.State()
		return s.Speaking && s.Chapter == 1
	})
	if got := len(h.loader.all()); got != 2 {
		t.Fatalf("loaded %d tracks, want 2", got)
	}
	if live := h.loader.live(); live != 1 {
		t.Errorf("%d live tracks, want 1", live)
	}

	// a late end listener from the first track must not touch the new session
	first.onEnd()
	if s := h.ctrl.State(); !s.Speaking || s.Chapter != 1 || s.WordIndex != 0 {
		t.Errorf("stale end changed state: %+v", s)
	}

	h.ctrl.Stop()
	if live := h.loader.live(); live != 0 {
		t.Errorf("%d live tracks after Stop, want 0", live)
	}
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	h := newHarness(t, &fakeSynth{}, &fakeLoader{duration: time.Second})

	h.ctrl.Stop()
	h.ctrl.Stop()

	if s := h.ctrl.State(); s != idle(false) {
		t.Errorf("state = %+v, want idle", s)
	}
	if states, _ := h.rec.snapshot(); len(states) != 0 {
		t.Errorf("Stop when idle notified %d times", len(states))
	}
}

func TestMute(t *testing.T) {
	synth := &fakeSynth{}
	h := newHarness(t, synth, &fakeLoader{duration: 5 * time.Second})

	h.ctrl.Speak("The cat sat.", 0)
	waitFor(t, "speaking", func() bool { return h.ctrl.State().Speaking })
	track := h.loader.last(t)

	if !h.ctrl.ToggleMute() {
		t.Fatal("ToggleMute() should report muted")
	}
	if s := h.ctrl.State(); s != idle(true) {
		t.Errorf("state after mute = %+v, want muted idle", s)
	}
	if !track.isClosed() {
		t.Error("muting must release the track")
	}

	h.ctrl.Speak("Another line.", 1)
	if s := h.ctrl.State(); s != idle(true) {
		t.Errorf("Speak while muted changed state: %+v", s)
	}
	time.Sleep(20 * time.Millisecond)
	synth.mu.Lock()
	calls := synth.calls
	synth.mu.Unlock()
	if calls != 1 {
		t.Errorf("synthesizer called %d times, want 1", calls)
	}

	if h.ctrl.ToggleMute() {
		t.Fatal("ToggleMute() should report unmuted")
	}
	h.ctrl.Speak("Another line.", 1)
	waitFor(t, "speaking after unmute", func() bool {
		s := h.ctrl.State()
		return s.Speaking && s.Chapter == 1 && !s.Muted
	})
}

func TestPauseHoldsCursor(t *testing.T) {
	h := newHarness(t, &fakeSynth{}, &fakeLoader{duration: 3 * time.Second})

	h.ctrl.Speak("The cat sat.", 0)
	waitFor(t, "speaking", func() bool { return h.ctrl.State().Speaking })
	track := h.loader.last(t)

	h.ctrl.Pause()
	if !h.ctrl.Paused() {
		t.Fatal("Paused() = false after Pause")
	}
	track.seek(2500 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if idx := h.ctrl.State().WordIndex; idx != 0 {
		t.Errorf("cursor moved while paused: %d", idx)
	}

	h.ctrl.Resume()
	waitFor(t, "cursor after resume", func() bool { return h.ctrl.State().WordIndex == 2 })
}

func TestCloseRefusesSpeak(t *testing.T) {
	h := newHarness(t, &fakeSynth{}, &fakeLoader{duration: time.Second})

	h.ctrl.Speak("The cat sat.", 0)
	waitFor(t, "speaking", func() bool { return h.ctrl.State().Speaking })
	track := h.loader.last(t)

	if err := h.ctrl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !track.isClosed() {
		t.Error("Close must release the track")
	}
	if err := h.ctrl.Speak("again", 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Speak after Close error = %v, want ErrClosed", err)
	}
}

func TestCallbacksMayReadState(t *testing.T) {
	rec := &recorder{}
	var ctrl *Controller
	ctrl = New(Options{
		Synthesizer:  &fakeSynth{},
		Loader:       &fakeLoader{duration: time.Second},
		PollInterval: 5 * time.Millisecond,
		OnChange: func(s State) {
			// reading state from inside a callback must not deadlock
			_ = ctrl.State()
			rec.onChange(s)
		},
	})
	defer ctrl.Close()

	ctrl.Speak("one two", 0)
	waitFor(t, "speaking notification", func() bool { return rec.everSpeaking() })
}
