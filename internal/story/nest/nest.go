package nest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"storyloom/internal/cli/scheme/colours"
	"storyloom/internal/config"
	"storyloom/internal/domain/library"
	"storyloom/internal/domain/story"
	"storyloom/internal/story/audio"
	"storyloom/internal/story/generator"
	"storyloom/internal/story/illustrator"
	"storyloom/internal/story/narration"
	"storyloom/internal/story/tts"
)

const inputPrompt = "› "

// StoryLoom main application structure
type StoryLoom struct {
	cfg         *config.Config
	archive     *library.Archive
	writer      *generator.Generator
	illustrator *illustrator.Illustrator
	voice       tts.Synthesizer
	Narrator    *narration.Controller
	view        *View
	in          *bufio.Reader

	ctx    context.Context
	Cancel context.CancelFunc

	mu      sync.Mutex
	screen  func(narration.State) []string
	lastErr string
}

func NewStoryLoom(cfg *config.Config) (*StoryLoom, error) {
	engine, err := tts.NewEngine(tts.Config{
		Type:               cfg.TTS.Type,
		Voice:              cfg.TTS.Voice,
		Timeout:            cfg.TTS.Timeout,
		EndpointURL:        cfg.TTS.Endpoint.URL,
		EndpointAPIKey:     cfg.TTS.Endpoint.APIKey,
		MurfAPIKey:         cfg.TTS.Murf.APIKey,
		MurfBaseURL:        cfg.TTS.Murf.BaseURL,
		GoogleLanguageCode: cfg.TTS.Google.LanguageCode,
		MockWordDuration:   cfg.TTS.Mock.WordDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tts engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sl := &StoryLoom{
		cfg:     cfg,
		archive: library.NewArchive(cfg.Library.Dir),
		writer: generator.New(generator.Config{
			BaseURL:           cfg.Story.BaseURL,
			APIKey:            cfg.Story.APIKey,
			Model:             cfg.Story.Model,
			RequestsPerMinute: cfg.Story.RequestsPerMinute,
			Timeout:           cfg.Story.Timeout,
		}),
		voice:  engine,
		view:   NewView(os.Stdout, cfg.Display.Width),
		in:     bufio.NewReader(os.Stdin),
		ctx:    ctx,
		Cancel: cancel,
	}
	if cfg.Image.Enabled {
		sl.illustrator = illustrator.New(illustrator.Config{
			BaseURL: cfg.Image.BaseURL,
			APIKey:  cfg.Image.APIKey,
		})
	}

	sl.Narrator = narration.New(narration.Options{
		Synthesizer:  engine,
		Loader:       audio.NewBeepLoader(audio.DefaultSampleRate),
		Voice:        cfg.TTS.Voice,
		PollInterval: cfg.Narration.PollInterval,
		FlashHold:    cfg.Narration.FlashHold,
		OnChange:     sl.onNarration,
		OnError:      sl.onNarrationError,
		Logger:       logrus.StandardLogger(),
	})

	logrus.WithField("engine", engine.Name()).Debug("narrator ready")
	return sl, nil
}

// Close stops narration and releases the speech engine.
func (sl *StoryLoom) Close() error {
	sl.Cancel()
	sl.Narrator.Close()
	if c, ok := sl.voice.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (sl *StoryLoom) ShowWelcome() {
	fmt.Println()
	colours.Title.Println("🌟 Welcome to StoryLoom! 🌟")
	fmt.Println()
	colours.Info.Println("📚 Available commands:")
	fmt.Println("  • storyloom weave     - Weave a new branching tale")
	fmt.Println("  • storyloom narrate   - Narrate a text file with karaoke highlighting")
	fmt.Println("  • storyloom library   - Browse and re-read saved tales")
	fmt.Println("  • storyloom voices    - List narrator voices")
	fmt.Println("  • storyloom settings  - Show the current configuration")
	fmt.Println()
	colours.Prompt.Println("✨ Ready for a magical story adventure? ✨")
}

// Weave runs an interactive tale from the first chapter to the last.
func (sl *StoryLoom) Weave(cmd *cobra.Command, args []string) {
	prompt, _ := cmd.Flags().GetString("prompt")
	theme, _ := cmd.Flags().GetString("theme")
	character, _ := cmd.Flags().GetString("character")
	mood, _ := cmd.Flags().GetString("mood")
	chapters, _ := cmd.Flags().GetInt("chapters")
	noImages, _ := cmd.Flags().GetBool("no-images")

	if prompt == "" && len(args) > 0 {
		prompt = strings.Join(args, " ")
	}

	setup := story.Setup{
		Prompt:        prompt,
		Theme:         theme,
		CharacterName: character,
		Mood:          mood,
		TotalChapters: chapters,
	}
	if setup.Prompt == "" {
		setup = sl.askSetup(setup)
	}
	if strings.TrimSpace(setup.Prompt) == "" {
		colours.Warning.Println("👋 Maybe next time! Every tale needs a beginning.")
		return
	}

	ill := sl.illustrator
	if noImages {
		ill = nil
	}

	tale := story.NewTale(setup)
	fmt.Println()
	colours.Title.Printf("🧵 Weaving a %d-chapter tale: %q\n", tale.Setup.TotalChapters, tale.Setup.Prompt)

	for !tale.IsComplete() {
		ch, err := sl.weaveNext(tale, ill)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			colours.Error.Printf("❌ %v\n", err)
			if !sl.confirm("🔁 Try again? [y/N] ") {
				break
			}
			continue
		}
		tale.Append(ch)

		choice, quit := sl.chapterLoop(tale, len(tale.Chapters)-1)
		if quit {
			break
		}
		if err := tale.Choose(choice); err != nil {
			colours.Error.Printf("❌ %v\n", err)
			break
		}
	}

	sl.saveTale(tale)
}

func (sl *StoryLoom) askSetup(setup story.Setup) story.Setup {
	fmt.Println()
	colours.Title.Println("🪄 Let's begin a new tale")
	setup.Prompt = sl.ask("📝 What is your story about? ")
	if setup.Prompt == "" {
		return setup
	}
	if setup.Theme == "" {
		setup.Theme = sl.ask("🎭 Theme (optional): ")
	}
	if setup.CharacterName == "" {
		setup.CharacterName = sl.ask("🦸 Main character's name (optional): ")
	}
	if setup.Mood == "" {
		setup.Mood = sl.ask("🌙 Mood or tone (optional): ")
	}
	if setup.TotalChapters == 0 {
		if n, err := strconv.Atoi(sl.ask(fmt.Sprintf("📚 How many chapters? [%d] ", story.DefaultChapters))); err == nil {
			setup.TotalChapters = n
		}
	}
	return setup
}

func (sl *StoryLoom) weaveNext(tale *story.Tale, ill *illustrator.Illustrator) (story.Chapter, error) {
	n := tale.NextChapterNumber()
	fmt.Println()
	colours.Info.Printf("✨ Weaving chapter %d of %d...\n", n, tale.Setup.TotalChapters)

	ch, err := sl.writer.NextChapter(sl.ctx, tale)
	if err != nil {
		return story.Chapter{}, err
	}

	if ill != nil && ch.ImagePrompt != "" {
		colours.Info.Println("🎨 Painting an illustration...")
		img, err := ill.Illustrate(sl.ctx, ch.ImagePrompt)
		if err != nil {
			logrus.WithError(err).Warn("illustration failed")
			colours.Warning.Println("⚠️  No illustration this time")
			return ch, nil
		}
		path, err := img.Save(sl.archive.ImageDir(), fmt.Sprintf("%s-%d", tale.ID, n))
		if err != nil {
			logrus.WithError(err).Warn("failed to save illustration, keeping it inline")
			ch.ImageURL = img.DataURL()
			return ch, nil
		}
		ch.ImagePath = path
	}
	return ch, nil
}

// chapterLoop shows a chapter and handles narration keys until the reader
// picks a choice or quits.
func (sl *StoryLoom) chapterLoop(tale *story.Tale, idx int) (choice string, quit bool) {
	ch := tale.Chapters[idx]
	sl.clearErr()
	sl.page(sl.chapterScreen(tale, idx, true))
	defer sl.endPage()

	for {
		line, err := sl.readLine()
		if err != nil {
			sl.Narrator.Stop()
			return "", true
		}
		sl.view.Advance(1)

		input := strings.ToLower(line)
		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(ch.Choices) {
			sl.Narrator.Stop()
			return ch.Choices[n-1], false
		}

		switch input {
		case "q", "quit":
			sl.Narrator.Stop()
			return "", true
		case "":
			if len(ch.Choices) == 0 {
				sl.Narrator.Stop()
				return "", true
			}
		default:
			sl.handleNarrationKey(input, ch.Content, idx)
		}
		sl.redraw()
	}
}

func (sl *StoryLoom) handleNarrationKey(input, content string, chapter int) {
	switch input {
	case "n", "narrate":
		sl.clearErr()
		if err := sl.Narrator.Speak(content, chapter); err != nil {
			sl.setErr(err.Error())
		}
	case "s", "stop":
		sl.Narrator.Stop()
	case "p", "pause":
		if sl.Narrator.Paused() {
			sl.Narrator.Resume()
		} else {
			sl.Narrator.Pause()
		}
	case "m", "mute":
		sl.Narrator.ToggleMute()
	default:
		sl.setErr("Use n to narrate, s to stop, p to pause, m to mute, q to quit")
	}
}

// chapterScreen builds the frame for one chapter. Word highlighting only
// shows while that chapter owns the narration.
func (sl *StoryLoom) chapterScreen(tale *story.Tale, idx int, interactive bool) func(narration.State) []string {
	return func(st narration.State) []string {
		ch := tale.Chapters[idx]
		width := sl.view.Width()

		var lines []string
		for _, row := range WrapText("📖 ", fmt.Sprintf("Chapter %d of %d: %s", idx+1, tale.Setup.TotalChapters, ch.Title), width) {
			lines = append(lines, colours.Title.Sprint(row))
		}
		if ch.ImagePath != "" {
			lines = append(lines, colours.Info.Sprintf("🖼️  %s", ch.ImagePath))
		}
		lines = append(lines, "")
		lines = append(lines, KaraokeLines(ch.Content, width, st.WordIndex, st.ActiveFor(idx))...)
		lines = append(lines, "")

		if interactive {
			if len(ch.Choices) == 0 {
				lines = append(lines, colours.Success.Sprint("🌟 The End 🌟"))
			}
			for i, c := range ch.Choices {
				for _, row := range WrapText(fmt.Sprintf("  %d. ", i+1), c, width) {
					lines = append(lines, colours.Choice.Sprint(row))
				}
			}
			if ch.ChosenOption != "" {
				lines = append(lines, colours.Author.Sprintf("  ➜ %s", ch.ChosenOption))
			}
		}

		lines = append(lines, "", sl.status(st, idx))
		if interactive {
			lines = append(lines, colours.Info.Sprint(sl.hint(ch)), inputPrompt)
		}
		return lines
	}
}

func (sl *StoryLoom) hint(ch story.Chapter) string {
	keys := "n narrate · s stop · p pause · m mute · q quit"
	switch len(ch.Choices) {
	case 0:
		return keys + " · Enter to finish"
	case 1:
		return "1 choose · " + keys
	default:
		return fmt.Sprintf("1-%d choose · %s", len(ch.Choices), keys)
	}
}

func (sl *StoryLoom) status(st narration.State, chapter int) string {
	sl.mu.Lock()
	errMsg := sl.lastErr
	sl.mu.Unlock()

	switch {
	case st.Loading && st.Chapter == chapter:
		return colours.Info.Sprint("⏳ Summoning the narrator...")
	case st.ActiveFor(chapter) && sl.Narrator.Paused():
		return colours.Warning.Sprint("⏸️  Paused")
	case st.ActiveFor(chapter):
		return colours.Success.Sprint("🔊 Narrating...")
	case errMsg != "":
		return colours.Error.Sprintf("❌ %s", errMsg)
	case st.Muted:
		return colours.Warning.Sprint("🔇 Muted")
	default:
		return colours.Info.Sprint("🔈 Quiet")
	}
}

// Narrate reads a file (or stdin) aloud with karaoke highlighting.
func (sl *StoryLoom) Narrate(cmd *cobra.Command, args []string) {
	var (
		data  []byte
		err   error
		title = "stdin"
	)
	if len(args) > 0 {
		title = filepath.Base(args[0])
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		colours.Error.Printf("❌ Failed to read text: %v\n", err)
		return
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		colours.Warning.Println("🔍 Nothing to narrate.")
		return
	}

	tale := &story.Tale{Setup: story.Setup{Prompt: title, TotalChapters: 1}}
	tale.Append(story.Chapter{Title: title, Content: content})

	sl.narrateChapter(tale, 0)
}

// narrateChapter speaks one chapter and blocks until narration settles.
func (sl *StoryLoom) narrateChapter(tale *story.Tale, idx int) {
	sl.clearErr()
	sl.page(sl.chapterScreen(tale, idx, false))
	defer sl.endPage()

	if err := sl.Narrator.Speak(tale.Chapters[idx].Content, idx); err != nil {
		sl.setErr(err.Error())
		return
	}
	if sl.Narrator.State().Muted {
		sl.setErr("Narration is muted")
		return
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-sl.ctx.Done():
			sl.Narrator.Stop()
			return
		case <-ticker.C:
			if !sl.Narrator.State().Busy() {
				return
			}
		}
	}
}

func (sl *StoryLoom) Voices(cmd *cobra.Command, args []string) {
	fmt.Println()
	colours.Title.Printf("🎤 Voices for the %s engine\n", sl.voice.Name())
	fmt.Println()

	voices, err := sl.voice.Voices(sl.ctx)
	if err != nil {
		colours.Error.Printf("❌ Failed to list voices: %v\n", err)
		return
	}
	if len(voices) == 0 {
		colours.Warning.Println("🔍 This engine does not publish a voice list.")
		return
	}

	for _, v := range voices {
		colours.Info.Printf("  • %s", v.Name)
		fmt.Printf(" (%s", v.LanguageCode)
		if v.Gender != "" {
			fmt.Printf(", %s", v.Gender)
		}
		fmt.Print(")")
		if v.Natural {
			colours.Success.Print(" ✨ natural")
		}
		if v.Description != "" {
			fmt.Printf(" - %s", v.Description)
		}
		fmt.Println()
	}
	fmt.Println()
	colours.Success.Printf("✨ %d voices. Pick one with --voice or tts.voice\n", len(voices))
}

func (sl *StoryLoom) ListTales(cmd *cobra.Command, args []string) {
	fmt.Println()
	colours.Title.Println("📚 Woven Tales 📚")
	fmt.Println()

	lib, err := sl.archive.List()
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	if len(lib.Entries) == 0 {
		colours.Warning.Println("🔍 No tales yet. Start one with: storyloom weave")
		return
	}

	for i, e := range lib.Entries {
		fmt.Printf("  %d. ", i+1)
		colours.Title.Print(e.Title)
		state := "unfinished"
		if e.Complete {
			state = "complete"
		}
		fmt.Printf("\n     📖 %d chapters (%s) | 🕐 %s\n", e.Chapters, state, e.SavedAt.Format("2006-01-02 15:04"))
		fmt.Printf("     💡 %s\n", e.Prompt)
		colours.Info.Printf("     ID: %s\n", shortID(e.ID))
		fmt.Println()
	}
	colours.Success.Printf("✨ Found %d tales! ✨\n", len(lib.Entries))
}

func (sl *StoryLoom) ShowTale(cmd *cobra.Command, args []string) {
	tale, ok := sl.loadTale(args)
	if !ok {
		return
	}

	fmt.Println()
	colours.Title.Printf("📖 %s\n", tale.Title())
	fmt.Printf("💡 %s\n", tale.Setup.Prompt)
	if tale.Setup.Theme != "" || tale.Setup.Mood != "" {
		fmt.Printf("🎭 Theme: %s | 🌙 Mood: %s\n", orDash(tale.Setup.Theme), orDash(tale.Setup.Mood))
	}
	fmt.Println()

	width := sl.view.Width()
	for i, ch := range tale.Chapters {
		colours.Title.Printf("Chapter %d: %s\n", i+1, ch.Title)
		for _, line := range KaraokeLines(ch.Content, width, -1, false) {
			fmt.Println(line)
		}
		if ch.ChosenOption != "" {
			colours.Author.Printf("  ➜ %s\n", ch.ChosenOption)
		}
		fmt.Println()
	}
}

// ReadTale narrates a saved tale, or a single chapter of it.
func (sl *StoryLoom) ReadTale(cmd *cobra.Command, args []string) {
	tale, ok := sl.loadTale(args)
	if !ok {
		return
	}

	from, to := 0, len(tale.Chapters)
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 || n > len(tale.Chapters) {
			colours.Error.Printf("❌ Chapter must be between 1 and %d\n", len(tale.Chapters))
			return
		}
		from, to = n-1, n
	}

	for i := from; i < to; i++ {
		sl.narrateChapter(tale, i)
		if sl.ctx.Err() != nil {
			return
		}
	}
	colours.Success.Println("✅ Story finished! 🌟")
}

func (sl *StoryLoom) ClearLibrary(cmd *cobra.Command, args []string) {
	if !sl.confirm("🗑️  Delete every saved tale? [y/N] ") {
		return
	}
	if err := sl.archive.Clear(); err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	colours.Success.Println("✅ Library cleared")
}

// ShowLibraryStatus displays information about the tale archive
func (sl *StoryLoom) ShowLibraryStatus(cmd *cobra.Command, args []string) {
	colours.Title.Println("📊 Library Status")

	info, err := sl.archive.Info()
	if err != nil {
		colours.Error.Printf("❌ Failed to get library info: %v\n", err)
		return
	}

	if !info.Exists {
		colours.Warning.Println("❌ Library does not exist yet")
		colours.Info.Println("💡 Finish or quit a tale with 'storyloom weave' to create it")
		return
	}

	colours.Success.Println("✅ Library exists")
	colours.Info.Printf("📁 Location: %s\n", info.Dir)
	colours.Info.Printf("📚 Tales: %d\n", info.Count)
	colours.Info.Printf("📏 Size: %d bytes\n", info.Size)
	colours.Info.Printf("🕐 Last modified: %s\n", info.LastModified.Format("2006-01-02 15:04:05"))
}

func (sl *StoryLoom) ConfigureSettings(cmd *cobra.Command, args []string) {
	fmt.Println()
	colours.Title.Println("⚙️ StoryLoom Settings ⚙️")
	fmt.Println()

	colours.Prompt.Println("🎤 Narration:")
	fmt.Printf("  • Engine: %s (configured: %s)\n", sl.voice.Name(), sl.cfg.TTS.Type)
	fmt.Printf("  • Voice: %s\n", orDash(sl.cfg.TTS.Voice))
	fmt.Printf("  • Highlight poll: %s | flash hold: %s\n", sl.cfg.Narration.PollInterval, sl.cfg.Narration.FlashHold)
	engines := tts.GetAvailableEngines(tts.Config{
		MurfAPIKey:  sl.cfg.TTS.Murf.APIKey,
		EndpointURL: sl.cfg.TTS.Endpoint.URL,
	})
	names := make([]string, len(engines))
	for i, e := range engines {
		names[i] = e.String()
	}
	fmt.Printf("  • Available engines: %s\n", strings.Join(names, ", "))
	fmt.Println()

	colours.Prompt.Println("🧵 Story:")
	fmt.Printf("  • Model: %s\n", sl.cfg.Story.Model)
	fmt.Printf("  • Gateway: %s\n", sl.cfg.Story.BaseURL)
	fmt.Printf("  • Requests per minute: %d\n", sl.cfg.Story.RequestsPerMinute)
	fmt.Printf("  • Illustrations: %t\n", sl.cfg.Image.Enabled)
	fmt.Println()

	colours.Prompt.Println("📚 Library:")
	fmt.Printf("  • Directory: %s\n", sl.cfg.Library.Dir)
	fmt.Println()

	colours.Info.Println("💡 Change these in ~/.storyloom/storyloom.yaml or with STORYLOOM_* variables")
}

func (sl *StoryLoom) loadTale(args []string) (*story.Tale, bool) {
	if len(args) == 0 {
		colours.Error.Println("❌ Which tale? Pass an ID from 'storyloom library list'")
		return nil, false
	}
	tale, err := sl.archive.Load(args[0])
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return nil, false
	}
	if len(tale.Chapters) == 0 {
		colours.Warning.Println("🔍 That tale has no chapters.")
		return nil, false
	}
	return tale, true
}

func (sl *StoryLoom) saveTale(tale *story.Tale) {
	if len(tale.Chapters) == 0 {
		return
	}
	if err := sl.archive.Save(tale); err != nil {
		colours.Error.Printf("❌ Failed to save tale: %v\n", err)
		return
	}
	fmt.Println()
	if tale.IsComplete() {
		colours.Success.Printf("✅ Tale saved! Re-read it with: storyloom library read %s\n", shortID(tale.ID))
		colours.Prompt.Println("😴 Sleep tight! 🌙")
		return
	}
	colours.Success.Printf("💾 Saved your unfinished tale as %s\n", shortID(tale.ID))
}

func (sl *StoryLoom) page(screen func(narration.State) []string) {
	sl.mu.Lock()
	sl.screen = screen
	sl.mu.Unlock()
	sl.view.Page(screen(sl.Narrator.State()))
}

func (sl *StoryLoom) endPage() {
	sl.mu.Lock()
	sl.screen = nil
	sl.mu.Unlock()
	sl.view.Release()
}

func (sl *StoryLoom) redraw() {
	sl.onNarration(sl.Narrator.State())
}

func (sl *StoryLoom) onNarration(st narration.State) {
	sl.mu.Lock()
	screen := sl.screen
	sl.mu.Unlock()
	if screen != nil {
		sl.view.Refresh(screen(st))
	}
}

func (sl *StoryLoom) onNarrationError(err error) {
	logrus.WithError(err).Debug("narration error")
	sl.setErr(err.Error())
	if !sl.view.inPlace {
		colours.Error.Printf("\n❌ %v\n", err)
	}
	sl.redraw()
}

func (sl *StoryLoom) setErr(msg string) {
	sl.mu.Lock()
	sl.lastErr = msg
	sl.mu.Unlock()
}

func (sl *StoryLoom) clearErr() {
	sl.setErr("")
}

func (sl *StoryLoom) readLine() (string, error) {
	line, err := sl.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (sl *StoryLoom) ask(question string) string {
	colours.Prompt.Print(question)
	line, _ := sl.readLine()
	return line
}

func (sl *StoryLoom) confirm(question string) bool {
	answer := strings.ToLower(sl.ask(question))
	return answer == "y" || answer == "yes"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
