package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/tourguide/pkg/domain"
)

// ProgressOverlay marks how far a session went through the tutorial.
type ProgressOverlay struct {
	// CurrentIndex is the step on screen; steps before it are done.
	CurrentIndex int
}

// GenerateMermaid produces a Mermaid flowchart of a tutorial's steps.
// It applies semantic styling:
// - Step with a target: [Rectangle]
// - Narrative step (no target): ([Stadium])
// - Start and end: ((Circle))
// It also applies progress styles (done/current) if provided.
func GenerateMermaid(t domain.Tutorial, overlay *ProgressOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    start((\"start\"))\n")

	prev := "start"
	for _, step := range t.Steps {
		id := fmt.Sprintf("s%d", step.Index)

		opener, closer := "[", "]"
		if !step.HasTarget() {
			opener, closer = "([", "])"
		}
		label := fmt.Sprintf("%s. %s", step.DisplayLabel(), escape(step.Instruction))
		if step.HasTarget() {
			label += fmt.Sprintf(" <br/> 🎯 %s", escape(step.Target))
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", id, opener, label, closer))
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", prev, id))
		prev = id
	}
	sb.WriteString("    done((\"done\"))\n")
	sb.WriteString(fmt.Sprintf("    %s --> done\n", prev))

	if overlay != nil {
		sb.WriteString("\n    %% Progress Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		for i := 0; i < overlay.CurrentIndex && i < len(t.Steps); i++ {
			sb.WriteString(fmt.Sprintf("    class s%d visited;\n", i))
		}
		switch {
		case overlay.CurrentIndex >= len(t.Steps):
			sb.WriteString("    class done current;\n")
		case overlay.CurrentIndex >= 0:
			sb.WriteString(fmt.Sprintf("    class s%d current;\n", overlay.CurrentIndex))
		}
	}

	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
