package generator

import (
	"fmt"
	"strings"

	"storyloom/internal/domain/story"
)

const systemPrompt = `You are a master storyteller creating an interactive branching narrative. Write in vivid, immersive prose with rich sensory details. Each chapter should be 150-250 words.

Style guidelines:
- Write in second person ("You step into the darkness...")
- Use evocative, literary language
- End each chapter at a moment of tension or decision
- Maintain consistency with previous chapters

You MUST respond with valid JSON in this exact format:
{
  "title": "Chapter title",
  "content": "The story text for this chapter...",
  "imagePrompt": "A detailed visual description for generating an illustration of the key scene in this chapter. Be specific about lighting, mood, composition, and style. Always describe it as a fantasy book illustration.",
  "choices": ["Choice 1 text", "Choice 2 text", "Choice 3 text"]
}`

const (
	finalChapterRule = `This is the FINAL chapter. Bring the story to a satisfying, dramatic conclusion. The "choices" array should be EMPTY [].`
	branchRule       = `Provide exactly 2-3 meaningful choices that branch the story in genuinely different directions.`
)

// Request describes the chapter to write.
type Request struct {
	Setup         story.Setup
	PreviousStory string
	ChosenOption  string
	ChapterNumber int
}

// RequestFor builds the request for the tale's next chapter.
func RequestFor(t *story.Tale) Request {
	req := Request{
		Setup:         t.Setup,
		ChapterNumber: t.NextChapterNumber(),
	}
	if c := t.Current(); c != nil {
		req.PreviousStory = t.PreviousStory()
		req.ChosenOption = c.ChosenOption
	}
	return req
}

func (r Request) IsFinal() bool {
	return r.ChapterNumber >= r.Setup.TotalChapters
}

func (r Request) systemMessage() string {
	if r.IsFinal() {
		return systemPrompt + "\n\n" + finalChapterRule
	}
	return systemPrompt + "\n\n" + branchRule
}

func (r Request) userMessage() string {
	s := r.Setup
	if r.ChapterNumber <= 1 {
		var b strings.Builder
		fmt.Fprintf(&b, "Create the opening chapter of a story based on this prompt: %q", s.Prompt)
		if s.Theme != "" {
			fmt.Fprintf(&b, "\nTheme: %s", s.Theme)
		}
		if s.CharacterName != "" {
			fmt.Fprintf(&b, "\nMain character name: %s", s.CharacterName)
		}
		if s.Mood != "" {
			fmt.Fprintf(&b, "\nMood/Tone: %s", s.Mood)
		}
		fmt.Fprintf(&b, "\nThis story will have %d chapters total.", s.TotalChapters)
		return b.String()
	}

	return fmt.Sprintf("Continue the story. Here's what happened so far:\n\n%s\n\nThe reader chose: %q\n\nThis is chapter %d of %d. Write the next chapter based on this choice.",
		r.PreviousStory, r.ChosenOption, r.ChapterNumber, s.TotalChapters)
}
