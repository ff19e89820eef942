package recipe

import (
	"fmt"
	"strings"
)

// Markdown renders a step card for terminal display.
func Markdown(s Step, base, target float64, timerText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Title)

	if scaled := s.Scaled(base, target); len(scaled) > 0 {
		fmt.Fprintf(&b, "## Ingrédients (pour %.0f g)\n\n", target)
		for _, ing := range scaled {
			fmt.Fprintf(&b, "- **%d %s** %s\n", ing.Amount, ing.Unit, ing.Name)
		}
		b.WriteString("\n")
	}

	for _, line := range s.Instructions {
		fmt.Fprintf(&b, "- %s\n", line)
	}

	if s.Note != "" {
		fmt.Fprintf(&b, "\n> %s\n", s.Note)
	}

	if s.Timer > 0 {
		b.WriteString("\n")
		if s.TimerLabel != "" {
			fmt.Fprintf(&b, "⏱ `%s` (%s)\n", timerText, s.TimerLabel)
		} else {
			fmt.Fprintf(&b, "⏱ `%s`\n", timerText)
		}
	}
	return b.String()
}
