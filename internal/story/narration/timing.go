package narration

import (
	"math"
	"strings"
	"time"

	"storyloom/internal/story/audio"
)

// Tokenize splits narration text into words on runs of whitespace.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// MsPerWord spreads the clip evenly over its words.
func MsPerWord(d time.Duration, words int) float64 {
	if words <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond) / float64(words)
}

// WordIndexAt maps playback progress to the highlighted word. The result is
// clamped to the last word so the cursor never runs past the text while the
// clip is still playing.
func WordIndexAt(elapsed time.Duration, msPerWord float64, words int) int {
	if words <= 0 {
		return -1
	}
	if msPerWord <= 0 || elapsed <= 0 {
		return 0
	}

	idx := int(math.Floor(float64(elapsed) / float64(time.Millisecond) / msPerWord))
	return min(idx, words-1)
}

func usableDuration(d time.Duration) bool {
	return d > 0 && d != audio.Unbounded
}
