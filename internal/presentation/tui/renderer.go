package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// TutorialMarkdown describes a tutorial as Markdown. current marks the step on
// screen; pass -1 when there is no session.
func TutorialMarkdown(t domain.Tutorial, current int) string {
	var sb strings.Builder

	title := t.Title
	if title == "" {
		title = t.ID
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	if t.Software != "" || t.Action != "" {
		fmt.Fprintf(&sb, "*%s* · %s\n\n", t.Software, t.Action)
	}
	if t.Description != "" {
		sb.WriteString(t.Description)
		sb.WriteString("\n\n")
	}

	for i, s := range t.Steps {
		marker := ""
		switch {
		case current < 0:
		case i < current:
			marker = "✓ "
		case i == current:
			marker = "▶ "
		}
		fmt.Fprintf(&sb, "%s. %s%s", s.DisplayLabel(), marker, s.Instruction)
		if s.HasTarget() {
			fmt.Fprintf(&sb, " (`%s`)", s.Target)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
