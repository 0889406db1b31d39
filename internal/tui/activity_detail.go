package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/hylla/kundkoll/internal/activity"
)

// markdownRenderer renders activity detail markdown and rebuilds the glamour
// renderer only when the wrap width changes.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	wrapWidth := max(width, 24)
	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}
	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// activityMarkdown describes one timeline entry: heading, summary, then the
// structured data as a sorted key list.
func activityMarkdown(entry activity.Display) string {
	var b strings.Builder
	title := string(entry.Type)
	if entry.IsPending {
		title += " (pending)"
	}
	fmt.Fprintf(&b, "### %s\n\n", title)
	fmt.Fprintf(&b, "_%s by %s_\n\n", entry.OccurredAt.UTC().Format("2006-01-02 15:04"), entry.UserID)
	if summary := strings.TrimSpace(entry.Summary); summary != "" {
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- **%s**: %v\n", k, entry.Data[k])
		}
	}
	return b.String()
}
