package library

import (
	"time"
)

// Entry summarises one saved tale.
type Entry struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Prompt   string    `json:"prompt"`
	Chapters int       `json:"chapters"`
	Complete bool      `json:"complete"`
	SavedAt  time.Time `json:"saved_at"`
}

// StoryLibrary represents the tales saved on this machine, newest first.
type StoryLibrary struct {
	Name    string  `json:"name"`
	Dir     string  `json:"dir"`
	Entries []Entry `json:"entries"`
}
