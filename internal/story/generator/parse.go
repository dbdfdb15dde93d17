package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"storyloom/internal/domain/story"
)

var (
	ErrNoJSON       = errors.New("no JSON found in AI response")
	ErrEmptyChapter = errors.New("AI response has no chapter content")

	jsonFence      = regexp.MustCompile("(?i)```json\\s*")
	bareFence      = regexp.MustCompile("```\\s*")
	controlChars   = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	trailingObject = regexp.MustCompile(`,\s*}`)
	trailingArray  = regexp.MustCompile(`,\s*]`)
)

// extractJSON strips markdown fences and cuts the reply down to its outermost
// JSON value.
func extractJSON(content string) (string, error) {
	content = jsonFence.ReplaceAllString(content, "")
	content = bareFence.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)

	start := strings.IndexAny(content, "{[")
	if start == -1 {
		return "", ErrNoJSON
	}
	closer := "}"
	if content[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(content, closer)
	if end < start {
		return "", ErrNoJSON
	}
	return content[start : end+1], nil
}

// parseChapter decodes a model reply, retrying once on a cleaned copy when the
// model emitted raw newlines or trailing commas.
func parseChapter(content string) (story.Chapter, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return story.Chapter{}, err
	}

	var ch story.Chapter
	if err := json.Unmarshal([]byte(raw), &ch); err != nil {
		cleaned := controlChars.ReplaceAllString(raw, " ")
		cleaned = trailingObject.ReplaceAllString(cleaned, "}")
		cleaned = trailingArray.ReplaceAllString(cleaned, "]")

		ch = story.Chapter{}
		if err := json.Unmarshal([]byte(cleaned), &ch); err != nil {
			return story.Chapter{}, fmt.Errorf("parse chapter: %w", err)
		}
	}

	ch.Title = strings.TrimSpace(ch.Title)
	ch.Content = strings.TrimSpace(ch.Content)
	if ch.Content == "" {
		return story.Chapter{}, ErrEmptyChapter
	}

	choices := ch.Choices[:0]
	for _, c := range ch.Choices {
		if c = strings.TrimSpace(c); c != "" {
			choices = append(choices, c)
		}
	}
	ch.Choices = choices
	return ch, nil
}
