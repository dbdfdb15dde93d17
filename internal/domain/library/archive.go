package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"storyloom/internal/domain/story"

	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when no saved tale matches an ID.
var ErrNotFound = errors.New("tale not found")

// Archive stores finished or abandoned tales as JSON files. Only text and
// illustration references are kept; narration audio is never written.
type Archive struct {
	dir string
}

// savedTale is the on-disk envelope for one tale
type savedTale struct {
	Tale     story.Tale `json:"tale"`
	SavedAt  time.Time  `json:"saved_at"`
	Complete bool       `json:"complete"`
}

// Info describes the archive directory.
type Info struct {
	Exists       bool
	Dir          string
	Count        int
	Size         int64
	LastModified time.Time
}

// NewArchive creates an archive rooted at dir.
func NewArchive(dir string) *Archive {
	if err := os.MkdirAll(dir, 0755); err != nil {
		logrus.WithError(err).Warn("Failed to create library directory")
	}
	return &Archive{dir: filepath.Join(dir, "tales")}
}

// ImageDir is where chapter illustrations for saved tales are kept.
func (a *Archive) ImageDir() string {
	return filepath.Join(filepath.Dir(a.dir), "images")
}

func (a *Archive) path(id string) string {
	return filepath.Join(a.dir, id+".json")
}

// Save writes the tale, replacing any previous copy with the same ID.
func (a *Archive) Save(t *story.Tale) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("cannot save tale without an ID")
	}
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return fmt.Errorf("failed to create library directory: %w", err)
	}

	saved := savedTale{
		Tale:     *t,
		SavedAt:  time.Now(),
		Complete: t.IsComplete(),
	}

	// Write to a temp file first so a crash never leaves a torn tale behind.
	tmp, err := os.CreateTemp(a.dir, t.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create library file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(saved); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode tale: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write tale: %w", err)
	}
	if err := os.Rename(tmp.Name(), a.path(t.ID)); err != nil {
		return fmt.Errorf("failed to store tale: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"id":       t.ID,
		"chapters": len(t.Chapters),
		"complete": saved.Complete,
	}).Info("Saved tale to library")

	return nil
}

// List returns every saved tale, newest first. Unreadable files are skipped.
func (a *Archive) List() (*StoryLibrary, error) {
	lib := &StoryLibrary{Name: "Woven Tales", Dir: a.dir}

	files, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return lib, nil
		}
		return nil, fmt.Errorf("failed to read library: %w", err)
	}

	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		saved, err := a.read(filepath.Join(a.dir, f.Name()))
		if err != nil {
			logrus.WithError(err).WithField("file", f.Name()).Warn("Skipping unreadable tale")
			continue
		}
		lib.Entries = append(lib.Entries, Entry{
			ID:       saved.Tale.ID,
			Title:    saved.Tale.Title(),
			Prompt:   saved.Tale.Setup.Prompt,
			Chapters: len(saved.Tale.Chapters),
			Complete: saved.Complete,
			SavedAt:  saved.SavedAt,
		})
	}

	sort.Slice(lib.Entries, func(i, j int) bool {
		return lib.Entries[i].SavedAt.After(lib.Entries[j].SavedAt)
	})
	return lib, nil
}

// Load finds a tale by full ID or unique ID prefix.
func (a *Archive) Load(id string) (*story.Tale, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	if saved, err := a.read(a.path(id)); err == nil {
		return &saved.Tale, nil
	}

	lib, err := a.List()
	if err != nil {
		return nil, err
	}

	var match string
	for _, e := range lib.Entries {
		if strings.HasPrefix(e.ID, id) {
			if match != "" {
				return nil, fmt.Errorf("ambiguous tale id %q", id)
			}
			match = e.ID
		}
	}
	if match == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	saved, err := a.read(a.path(match))
	if err != nil {
		return nil, err
	}
	return &saved.Tale, nil
}

func (a *Archive) read(path string) (*savedTale, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tale: %w", err)
	}
	defer file.Close()

	var saved savedTale
	if err := json.NewDecoder(file).Decode(&saved); err != nil {
		return nil, fmt.Errorf("failed to decode tale: %w", err)
	}
	return &saved, nil
}

// Clear removes every saved tale and its illustrations.
func (a *Archive) Clear() error {
	for _, dir := range []string{a.dir, a.ImageDir()} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clear library: %w", err)
		}
	}
	logrus.Info("Cleared story library")
	return nil
}

// Info returns information about the archive directory.
func (a *Archive) Info() (Info, error) {
	info := Info{Dir: a.dir}

	stat, err := os.Stat(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return info, err
	}
	info.Exists = true
	info.LastModified = stat.ModTime()

	files, err := os.ReadDir(a.dir)
	if err != nil {
		return info, err
	}
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		fi, err := f.Info()
		if err != nil {
			continue
		}
		info.Count++
		info.Size += fi.Size()
		if fi.ModTime().After(info.LastModified) {
			info.LastModified = fi.ModTime()
		}
	}
	return info, nil
}
