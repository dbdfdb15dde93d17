package nest

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"storyloom/internal/cli/scheme/colours"
	"storyloom/internal/domain/story"
)

// KaraokeLines wraps content to width and paints the words already narrated.
// Word numbering runs across paragraphs so it lines up with the narration
// cursor. When active is false the text is plain.
func KaraokeLines(content string, width, cursor int, active bool) []string {
	var lines []string
	idx := 0

	for _, words := range story.Paragraphs(content) {
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		for _, row := range wrapWords(words, width) {
			painted := make([]string, len(row))
			for i, w := range row {
				painted[i] = paintWord(w, idx, cursor, active)
				idx++
			}
			lines = append(lines, strings.Join(painted, " "))
		}
	}
	return lines
}

func paintWord(w string, idx, cursor int, active bool) string {
	switch {
	case !active:
		return w
	case idx == cursor:
		return colours.Current.Sprint(w)
	case idx < cursor:
		return colours.Spoken.Sprint(w)
	default:
		return w
	}
}

// wrapWords greedily fills rows by display width. A word wider than the row
// gets a row to itself.
func wrapWords(words []string, width int) [][]string {
	var rows [][]string
	var row []string
	col := 0

	for _, w := range words {
		ww := runewidth.StringWidth(w)
		if len(row) > 0 && col+1+ww > width {
			rows = append(rows, row)
			row, col = nil, 0
		}
		if len(row) > 0 {
			col++
		}
		row = append(row, w)
		col += ww
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// WrapText wraps plain text, keeping any prefix on the first row and
// indenting the rest to match.
func WrapText(prefix, text string, width int) []string {
	indent := strings.Repeat(" ", runewidth.StringWidth(prefix))
	rows := wrapWords(strings.Fields(text), width-runewidth.StringWidth(prefix))

	out := make([]string, 0, len(rows))
	for i, row := range rows {
		lead := indent
		if i == 0 {
			lead = prefix
		}
		out = append(out, lead+strings.Join(row, " "))
	}
	if len(out) == 0 {
		out = append(out, prefix)
	}
	return out
}

// View draws frames to a terminal. On a TTY every frame replaces the previous
// one in place; elsewhere only pages are printed and refreshes are dropped.
// The last line of a frame is left open so it can serve as an input prompt.
type View struct {
	mu      sync.Mutex
	out     io.Writer
	width   int
	inPlace bool
	up      int
	drawn   bool
}

// NewView sizes the view from the terminal behind out, falling back to
// fallbackWidth.
func NewView(out io.Writer, fallbackWidth int) *View {
	v := &View{out: out, width: fallbackWidth}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		v.inPlace = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			v.width = w
		}
	}
	return v
}

// Width leaves one spare column so a full row never triggers the terminal's
// own wrapping.
func (v *View) Width() int {
	return v.width - 1
}

// Page starts a new frame below whatever is already on screen.
func (v *View) Page(lines []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.drawn {
		fmt.Fprintln(v.out)
	}
	v.up = 0
	v.write(lines)
}

// Refresh replaces the current frame.
func (v *View) Refresh(lines []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.inPlace || !v.drawn {
		return
	}
	fmt.Fprint(v.out, "\r")
	if v.up > 0 {
		fmt.Fprintf(v.out, "\x1b[%dA", v.up)
	}
	fmt.Fprint(v.out, "\x1b[J")
	v.write(lines)
}

// Advance records lines the user typed below the frame.
func (v *View) Advance(n int) {
	v.mu.Lock()
	v.up += n
	v.mu.Unlock()
}

// Release ends the frame so later output is not overwritten.
func (v *View) Release() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.drawn {
		fmt.Fprintln(v.out)
	}
	v.drawn = false
	v.up = 0
}

func (v *View) write(lines []string) {
	fmt.Fprint(v.out, strings.Join(lines, "\n"))
	v.up = max(len(lines)-1, 0)
	v.drawn = true
}
