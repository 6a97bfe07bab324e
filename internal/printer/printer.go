// Package printer renders boards and status messages for the CLI.
package printer

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/gmllt/kboard/internal/board"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
	faint  = color.New(color.Faint)
)

// PendingMarker follows the title of a card whose create or delete has not
// been confirmed yet.
const PendingMarker = "(saving)"

// Board writes b to w one list after another. Cards are numbered from 0 so
// the index can be passed straight to `board mv`.
func Board(w io.Writer, b board.Board, pending map[string]bool) {
	if len(b) == 0 {
		fmt.Fprintln(w, "Board is empty")
		return
	}
	for i, l := range b {
		if i > 0 {
			fmt.Fprintln(w)
		}
		cyan.Fprintf(w, "%s", l.Title)
		faint.Fprintf(w, " [%s] (%d)\n", l.ID, len(l.Cards))
		if len(l.Cards) == 0 {
			faint.Fprintln(w, "  no cards")
			continue
		}
		for j, c := range l.Cards {
			fmt.Fprintf(w, "  %d. %s ", j, c.Title)
			faint.Fprintf(w, "[%s]", c.ID)
			if pending[c.ID] {
				yellow.Fprintf(w, " %s", PendingMarker)
			}
			fmt.Fprintln(w)
		}
	}
}

// Success prints a message in green with a checkmark prefix.
func Success(format string, a ...any) {
	green.Printf("✓ %s\n", fmt.Sprintf(format, a...))
}

// Warning prints a message in yellow to stderr.
func Warning(format string, a ...any) {
	yellow.Fprintf(os.Stderr, "⚠️  %s\n", fmt.Sprintf(format, a...))
}

// Error prints title and explanation to stderr and returns a plain error for
// cobra, which is configured not to print it again.
func Error(title, explanation string) error {
	red.Fprintf(os.Stderr, "%s\n", title)
	if explanation != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", explanation)
	}
	return fmt.Errorf("%s", title)
}
