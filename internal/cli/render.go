package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
)

func isInteractive() bool {
	return term.IsTerminal(os.Stdout.Fd())
}

func compactStyle() ansi.StyleConfig {
	var style ansi.StyleConfig
	if lipgloss.HasDarkBackground() {
		style = glamourstyles.DarkStyleConfig
	} else {
		style = glamourstyles.LightStyleConfig
	}

	zero := uint(0)
	style.Document.Margin = &zero
	style.Document.BlockPrefix = ""
	style.Document.BlockSuffix = ""
	return style
}

// newMarkdownRenderer returns nil when stdout is not a terminal, so piped output stays plain.
func newMarkdownRenderer() *glamour.TermRenderer {
	if !isInteractive() {
		return nil
	}

	width, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(compactStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

func printMarkdown(renderer *glamour.TermRenderer, text string) {
	if renderer != nil {
		if rendered, err := renderer.Render(text); err == nil {
			fmt.Print(rendered)
			return
		}
	}
	fmt.Println(strings.TrimSpace(text))
}

func truncate(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}

	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
