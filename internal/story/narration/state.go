package narration

// State is an immutable snapshot of what the controller is doing.
type State struct {
	Speaking bool
	Loading  bool
	Muted    bool

	// WordIndex is -1 when nothing is highlighted, 0..n-1 for the word being
	// spoken and n for the brief "all spoken" flash after playback ends.
	WordIndex int

	// Chapter owns the session, -1 when idle.
	Chapter int
}

func idle(muted bool) State {
	return State{Muted: muted, WordIndex: -1, Chapter: -1}
}

// ActiveFor reports whether WordIndex should be rendered for chapter.
func (s State) ActiveFor(chapter int) bool {
	return s.Speaking && s.Chapter == chapter
}

// Busy reports whether a session is loading or playing.
func (s State) Busy() bool {
	return s.Speaking || s.Loading
}
