// Package narration plays spoken chapters and keeps a word cursor in step
// with the audio so the text can be highlighted as it is read.
package narration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"storyloom/internal/story/audio"
)

// Defaults used when Options leaves the timing knobs unset.
const (
	DefaultPollInterval = 50 * time.Millisecond
	DefaultFlashHold    = 500 * time.Millisecond
)

// Synthesizer turns text into an encoded audio payload. tts engines satisfy it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Options configures a Controller. OnChange and OnError are called in order
// from whichever goroutine caused the change; they may read State but must
// not block for long.
type Options struct {
	Synthesizer  Synthesizer
	Loader       audio.Loader
	Voice        string
	PollInterval time.Duration
	FlashHold    time.Duration
	OnChange     func(State)
	OnError      func(error)
	Logger       logrus.FieldLogger
}

// Controller owns at most one narration session at a time.
type Controller struct {
	opts Options
	log  logrus.FieldLogger

	mu      sync.Mutex
	state   State
	sess    *session
	closed  bool
	pending []event

	notifyMu sync.Mutex
}

type session struct {
	id      string
	chapter int
	ctx     context.Context
	cancel  context.CancelFunc

	// set once the track is loaded; guarded by Controller.mu
	track     audio.Track
	words     []string
	msPerWord float64
	stopPoll  chan struct{}
	flash     *time.Timer
	ended     bool
}

type event struct {
	state State
	err   error
}

// New returns an idle, unmuted Controller.
func New(opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	// zero FlashHold resets as soon as the clip ends
	if opts.FlashHold < 0 {
		opts.FlashHold = DefaultFlashHold
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &Controller{
		opts:  opts,
		log:   opts.Logger.WithField("component", "narration"),
		state: idle(false),
	}
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Speak replaces whatever is playing with a narration of text attributed to
// chapter. It returns immediately; progress is reported through OnChange.
// While muted it only stops the current session.
func (c *Controller) Speak(text string, chapter int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	c.stopLocked()
	if c.state.Muted {
		c.mu.Unlock()
		c.flush()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:      uuid.NewString(),
		chapter: chapter,
		ctx:     ctx,
		cancel:  cancel,
	}
	c.sess = s
	c.setLocked(State{Loading: true, WordIndex: -1, Chapter: chapter})
	c.mu.Unlock()
	c.flush()

	go c.run(s, text)
	return nil
}

// Stop cancels any pending request, releases the track and returns to idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
	c.flush()
}

// ToggleMute flips the mute flag and reports the new value. Muting stops the
// current session.
func (c *Controller) ToggleMute() bool {
	c.mu.Lock()
	muted := !c.state.Muted
	if muted {
		c.teardownLocked()
		c.setLocked(idle(true))
	} else {
		next := c.state
		next.Muted = false
		c.setLocked(next)
	}
	c.mu.Unlock()
	c.flush()

	return muted
}

// Pause holds the current track. The cursor stays where it is until Resume.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.sess; s != nil && s.track != nil && c.state.Speaking && !s.ended {
		s.track.Pause()
	}
}

// Resume continues a track held by Pause.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.sess; s != nil && s.track != nil && c.state.Speaking && !s.ended {
		s.track.Resume()
	}
}

// Paused reports whether a live track is being held.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sess
	return s != nil && s.track != nil && c.state.Speaking && !s.ended && s.track.Paused()
}

// Close stops narration for good. Later calls to Speak fail with ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	c.stopLocked()
	c.mu.Unlock()
	c.flush()
	return nil
}

func (c *Controller) run(s *session, text string) {
	log := c.log.WithFields(logrus.Fields{"session": s.id, "chapter": s.chapter})

	err := c.play(s, text, log)
	switch {
	case err == nil:
	case errors.Is(err, ErrRequestAborted):
		log.Debug("narration superseded")
	default:
		c.fail(s, err, log)
	}
}

func (c *Controller) play(s *session, text string, log logrus.FieldLogger) error {
	start := time.Now()
	payload, err := c.opts.Synthesizer.Synthesize(s.ctx, text, c.opts.Voice)
	if s.ctx.Err() != nil {
		return ErrRequestAborted
	}
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"bytes":   len(payload),
		"elapsed": time.Since(start),
	}).Debug("speech synthesized")

	track, err := c.opts.Loader.Load(s.ctx, payload)
	if s.ctx.Err() != nil {
		if track != nil {
			track.Close()
		}
		return ErrRequestAborted
	}
	if err != nil {
		return &PlaybackError{Err: err}
	}

	return c.start(s, text, track, log)
}

func (c *Controller) start(s *session, text string, track audio.Track, log logrus.FieldLogger) error {
	words := Tokenize(text)
	d := track.Duration()

	c.mu.Lock()
	if c.sess != s {
		c.mu.Unlock()
		track.Close()
		return ErrRequestAborted
	}
	// From here teardown owns the track.
	s.track = track

	if !usableDuration(d) {
		c.mu.Unlock()
		return &DurationError{Duration: d}
	}
	if len(words) == 0 {
		c.stopLocked()
		c.mu.Unlock()
		c.flush()
		log.Debug("nothing to narrate")
		return nil
	}

	s.words = words
	s.msPerWord = MsPerWord(d, len(words))
	if err := track.Play(func() { c.finish(s) }); err != nil {
		c.mu.Unlock()
		return &PlaybackError{Err: err}
	}

	c.setLocked(State{Speaking: true, Muted: c.state.Muted, WordIndex: 0, Chapter: s.chapter})
	s.stopPoll = make(chan struct{})
	go c.poll(s, s.stopPoll)
	c.mu.Unlock()
	c.flush()

	log.WithFields(logrus.Fields{
		"words":       len(words),
		"duration":    d,
		"ms_per_word": s.msPerWord,
	}).Info("narration started")
	return nil
}

func (c *Controller) poll(s *session, stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			c.tick(s)
		}
	}
}

func (c *Controller) tick(s *session) {
	c.mu.Lock()
	if c.sess != s || s.track == nil || s.ended || !c.state.Speaking || s.track.Paused() {
		c.mu.Unlock()
		return
	}

	idx := WordIndexAt(s.track.Position(), s.msPerWord, len(s.words))
	if idx != c.state.WordIndex {
		next := c.state
		next.WordIndex = idx
		c.setLocked(next)
	}
	c.mu.Unlock()
	c.flush()
}

// finish runs when the track plays out: every word is lit for FlashHold, then
// the session resets.
func (c *Controller) finish(s *session) {
	c.mu.Lock()
	if c.sess != s || s.ended {
		c.mu.Unlock()
		return
	}
	s.ended = true
	s.stopPollLocked()

	next := c.state
	next.WordIndex = len(s.words)
	c.setLocked(next)
	s.flash = time.AfterFunc(c.opts.FlashHold, func() {
		c.mu.Lock()
		if c.sess == s {
			c.stopLocked()
		}
		c.mu.Unlock()
		c.flush()
	})
	c.mu.Unlock()
	c.flush()

	c.log.WithFields(logrus.Fields{"session": s.id, "chapter": s.chapter}).Debug("narration finished")
}

func (c *Controller) fail(s *session, err error, log logrus.FieldLogger) {
	c.mu.Lock()
	if c.sess != s {
		c.mu.Unlock()
		log.WithError(err).Debug("discarding error from superseded session")
		return
	}
	c.stopLocked()
	c.pending = append(c.pending, event{err: err})
	c.mu.Unlock()
	c.flush()

	log.WithError(err).Warn("narration failed")
}

// stopLocked tears the session down and resets the state in one step.
func (c *Controller) stopLocked() {
	c.teardownLocked()
	c.setLocked(idle(c.state.Muted))
}

func (c *Controller) teardownLocked() {
	if s := c.sess; s != nil {
		c.sess = nil
		s.cancel()
		if s.track != nil {
			s.track.Pause()
			if err := s.track.Close(); err != nil {
				c.log.WithError(err).WithField("session", s.id).Warn("failed to release track")
			}
		}
		s.stopPollLocked()
		if s.flash != nil {
			s.flash.Stop()
		}
	}
}

func (s *session) stopPollLocked() {
	if s.stopPoll != nil {
		close(s.stopPoll)
		s.stopPoll = nil
	}
}

func (c *Controller) setLocked(next State) {
	if next == c.state {
		return
	}
	c.state = next
	c.pending = append(c.pending, event{state: next})
}

// flush delivers queued events in order. Only one goroutine delivers at a
// time; a callback that re-enters the controller leaves its events for the
// running loop.
func (c *Controller) flush() {
	for {
		if !c.notifyMu.TryLock() {
			return
		}
		c.drain()
		c.notifyMu.Unlock()

		c.mu.Lock()
		more := len(c.pending) > 0
		c.mu.Unlock()
		if !more {
			return
		}
	}
}

func (c *Controller) drain() {
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.mu.Unlock()
			return
		}
		ev := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()

		switch {
		case ev.err != nil:
			if c.opts.OnError != nil {
				c.opts.OnError(ev.err)
			}
		case c.opts.OnChange != nil:
			c.opts.OnChange(ev.state)
		}
	}
}
