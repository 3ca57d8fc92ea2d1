package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Tourguide banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct{ text, color string }{
		{"  _____                           _     _      ", "#34d399"},
		{" |_   _|__  _   _ _ __ __ _ _   _(_) __| | ___ ", "#2dd4bf"},
		{"   | |/ _ \\| | | | '__/ _` | | | | |/ _` |/ _ \\", "#22d3ee"},
		{"   | | (_) | |_| | | | (_| | |_| | | (_| |  __/", "#38bdf8"},
		{"   |_|\\___/ \\__,_|_|  \\__, |\\__,_|_|\\__,_|\\___|", "#60a5fa"},
		{"                      |___/                    ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
