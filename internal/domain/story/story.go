package story

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinChapters     = 2
	MaxChapters     = 10
	DefaultChapters = 5
)

// Setup is what the reader asks for before the first chapter.
type Setup struct {
	Prompt        string `json:"prompt"`
	Theme         string `json:"theme,omitempty"`
	CharacterName string `json:"character_name,omitempty"`
	Mood          string `json:"mood,omitempty"`
	TotalChapters int    `json:"total_chapters"`
}

// Normalize trims the free-text fields and clamps the chapter count.
func (s Setup) Normalize() Setup {
	s.Prompt = strings.TrimSpace(s.Prompt)
	s.Theme = strings.TrimSpace(s.Theme)
	s.CharacterName = strings.TrimSpace(s.CharacterName)
	s.Mood = strings.TrimSpace(s.Mood)

	switch {
	case s.TotalChapters == 0:
		s.TotalChapters = DefaultChapters
	case s.TotalChapters < MinChapters:
		s.TotalChapters = MinChapters
	case s.TotalChapters > MaxChapters:
		s.TotalChapters = MaxChapters
	}
	return s
}

// Chapter is one generated step of the tale.
type Chapter struct {
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	ImagePrompt  string   `json:"imagePrompt"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	ImagePath    string   `json:"imagePath,omitempty"`
	Choices      []string `json:"choices"`
	ChosenOption string   `json:"chosenOption,omitempty"`
}

// Tale is a whole branching story in progress or finished.
type Tale struct {
	ID        string    `json:"id"`
	Setup     Setup     `json:"setup"`
	Chapters  []Chapter `json:"chapters"`
	CreatedAt time.Time `json:"created_at"`
}

func NewTale(setup Setup) *Tale {
	return &Tale{
		ID:        uuid.NewString(),
		Setup:     setup.Normalize(),
		CreatedAt: time.Now(),
	}
}

// Title is the first chapter's title, or the prompt before anything was written.
func (t *Tale) Title() string {
	if len(t.Chapters) > 0 && t.Chapters[0].Title != "" {
		return t.Chapters[0].Title
	}
	return t.Setup.Prompt
}

// Current returns the latest chapter, or nil when none was generated yet.
func (t *Tale) Current() *Chapter {
	if len(t.Chapters) == 0 {
		return nil
	}
	return &t.Chapters[len(t.Chapters)-1]
}

// IsComplete reports whether the latest chapter closed the story.
func (t *Tale) IsComplete() bool {
	c := t.Current()
	return c != nil && len(c.Choices) == 0
}

// NextChapterNumber is the 1-based number of the chapter to generate next.
func (t *Tale) NextChapterNumber() int {
	return len(t.Chapters) + 1
}

func (t *Tale) Append(c Chapter) {
	t.Chapters = append(t.Chapters, c)
}

// Choose records the reader's decision on the latest chapter.
func (t *Tale) Choose(option string) error {
	c := t.Current()
	if c == nil {
		return fmt.Errorf("no chapter to choose from")
	}
	if len(c.Choices) == 0 {
		return fmt.Errorf("chapter %q has no choices", c.Title)
	}
	c.ChosenOption = option
	return nil
}

// PreviousStory renders everything so far as context for the next chapter.
func (t *Tale) PreviousStory() string {
	parts := make([]string, 0, len(t.Chapters))
	for i, ch := range t.Chapters {
		s := fmt.Sprintf("Chapter %d: %s\n%s", i+1, ch.Title, ch.Content)
		if ch.ChosenOption != "" {
			s += fmt.Sprintf("\n[Player chose: %s]", ch.ChosenOption)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n\n")
}

// Paragraphs splits chapter content on newlines into word lists. Word
// numbering across the returned paragraphs matches strings.Fields over the
// whole content, which is what narration highlights against.
func Paragraphs(content string) [][]string {
	lines := strings.Split(content, "\n")
	out := make([][]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.Fields(line))
	}
	return out
}
