package narration

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRequestAborted marks a session that was superseded or stopped while
	// its work was in flight. It is never surfaced to callers.
	ErrRequestAborted = errors.New("narration request aborted")

	ErrClosed = errors.New("narration controller is closed")
)

// PlaybackError means the synthesized audio could not be decoded or played.
type PlaybackError struct {
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("audio playback error: %v", e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// DurationError means the clip length was zero, negative or unknown.
type DurationError struct {
	Duration time.Duration
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("could not determine audio duration (got %s)", e.Duration)
}
