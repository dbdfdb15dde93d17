package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"storyloom/internal/cli/scheme/colours"
	"storyloom/internal/config"
	"storyloom/internal/story/nest"
)

func main() {
	if err := config.Init(); err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}

	var app *nest.StoryLoom

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		if app != nil {
			app.Close()
		}
		fmt.Println("\n" + colours.Warning.Sprint("👋 Goodbye! Sweet dreams! 🌙"))
		os.Exit(0)
	}()

	rootCmd := &cobra.Command{
		Use:   "storyloom",
		Short: "🧵 Weave branching tales and hear them told",
		Long: `
┌─────────────────────────────────────┐
│  🧵 Welcome to StoryLoom! 📖        │
│  Branching tales, read aloud        │
│  with every word lit as it's told ✨ │
└─────────────────────────────────────┘

StoryLoom writes an interactive story one chapter at a time, paints an
illustration for each scene and narrates it with karaoke highlighting.
		`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := setupLogging(cfg.Log.Level); err != nil {
				return err
			}
			app, err = nest.NewStoryLoom(cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				app.Close()
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			app.ShowWelcome()
		},
	}

	// Weave command
	weaveCmd := &cobra.Command{
		Use:   "weave [prompt]",
		Short: "🧵 Weave a new interactive tale",
		Long:  "Generate a branching story chapter by chapter, choosing what happens next",
		Run:   func(cmd *cobra.Command, args []string) { app.Weave(cmd, args) },
	}

	// Narrate command
	narrateCmd := &cobra.Command{
		Use:   "narrate [file]",
		Short: "🔊 Narrate a text file",
		Long:  "Read a file (or stdin) aloud with word-by-word highlighting",
		Args:  cobra.MaximumNArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { app.Narrate(cmd, args) },
	}

	// Voices command
	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "🎤 List narrator voices",
		Long:  "Show the voices offered by the configured speech engine",
		Run:   func(cmd *cobra.Command, args []string) { app.Voices(cmd, args) },
	}

	// Settings command
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "⚙️ Show settings",
		Long:  "Display the narration, story and library configuration",
		Run:   func(cmd *cobra.Command, args []string) { app.ConfigureSettings(cmd, args) },
	}

	weaveCmd.Flags().StringP("prompt", "p", "", "What the story is about")
	weaveCmd.Flags().String("theme", "", "Theme of the story")
	weaveCmd.Flags().String("character", "", "Name of the main character")
	weaveCmd.Flags().String("mood", "", "Mood or tone")
	weaveCmd.Flags().IntP("chapters", "c", 0, "Total chapters (2-10)")
	weaveCmd.Flags().Bool("no-images", false, "Skip illustrations")
	rootCmd.PersistentFlags().StringP("voice", "v", "", "Voice to narrate with. See 'storyloom voices' for options")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	viper.BindPFlag("tts.voice", rootCmd.PersistentFlags().Lookup("voice"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(weaveCmd, narrateCmd, voicesCmd, settingsCmd, libraryCommand(&app))

	if err := rootCmd.Execute(); err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}

func libraryCommand(app **nest.StoryLoom) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "📚 Browse saved tales",
		Long:  "List, show, re-narrate or clear the tales you have woven",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "📋 List saved tales",
		Run:   func(cmd *cobra.Command, args []string) { (*app).ListTales(cmd, args) },
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "📖 Print a saved tale",
		Args:  cobra.ExactArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { (*app).ShowTale(cmd, args) },
	}

	readCmd := &cobra.Command{
		Use:   "read <id> [chapter]",
		Short: "🔊 Narrate a saved tale",
		Args:  cobra.RangeArgs(1, 2),
		Run:   func(cmd *cobra.Command, args []string) { (*app).ReadTale(cmd, args) },
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "🗑️ Delete every saved tale",
		Run:   func(cmd *cobra.Command, args []string) { (*app).ClearLibrary(cmd, args) },
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "📊 Show library status",
		Long:  "Display information about the local tale archive",
		Run:   func(cmd *cobra.Command, args []string) { (*app).ShowLibraryStatus(cmd, args) },
	}

	libraryCmd.AddCommand(listCmd, showCmd, readCmd, clearCmd, statusCmd)
	return libraryCmd
}

// setupLogging sends logs to stderr so they stay out of the karaoke view.
func setupLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}
