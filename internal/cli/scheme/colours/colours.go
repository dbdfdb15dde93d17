package colours

import "github.com/fatih/color"

// Color scheme for the CLI
var (
	Title   = color.New(color.FgCyan, color.Bold)
	Author  = color.New(color.FgMagenta)
	Prompt  = color.New(color.FgGreen, color.Bold)
	Error   = color.New(color.FgRed, color.Bold)
	Success = color.New(color.FgGreen)
	Info    = color.New(color.FgBlue)
	Warning = color.New(color.FgYellow)

	// Karaoke highlighting
	Spoken  = color.New(color.FgMagenta)
	Current = color.New(color.FgMagenta, color.Bold, color.Underline)
	Choice  = color.New(color.FgCyan)
)
