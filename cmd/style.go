package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerColor  = lipgloss.Color("#F780FF") // Bright pink/magenta
	accentColor  = lipgloss.Color("#BD93F9") // Purple
	numberColor  = lipgloss.Color("#FF79C6") // Pink
	textColor    = lipgloss.Color("#E9E9F4") // Light purple/white
	mutedColor   = lipgloss.Color("#6272A4") // Muted purple
	summaryColor = lipgloss.Color("#8BE9FD") // Cyan accent
	errorColor   = lipgloss.Color("#FF5555") // Red
	successColor = lipgloss.Color("#50FA7B") // Green
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(headerColor).Bold(true)
	accentStyle  = lipgloss.NewStyle().Foreground(accentColor)
	textStyle    = lipgloss.NewStyle().Foreground(textColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	summaryStyle = lipgloss.NewStyle().Foreground(summaryColor).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	borderStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

// column is one table column. Numeric columns are right aligned.
type column struct {
	title   string
	width   int
	numeric bool
}

// printTable renders rows with a bold header, a box-drawing separator and
// the shared palette.
func printTable(cols []column, rows [][]string) {
	cellHeader := lipgloss.NewStyle().Foreground(headerColor).Bold(true).Padding(0, 1)

	headers := make([]string, len(cols))
	separator := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = cellHeader.Width(c.width).Render(c.title)
		separator[i] = strings.Repeat("─", c.width)
	}
	fmt.Println(strings.Join(headers, borderStyle.Render("│")))
	fmt.Println(borderStyle.Render(strings.Join(separator, "┼")))

	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			style := lipgloss.NewStyle().Padding(0, 1).Width(c.width)
			switch {
			case c.numeric:
				style = style.Foreground(numberColor).Align(lipgloss.Right)
			case i == 0:
				style = style.Foreground(accentColor)
			default:
				style = style.Foreground(textColor)
			}
			var value string
			if i < len(row) {
				value = clip(row[i], c.width-2)
			}
			cells[i] = style.Render(value)
		}
		fmt.Println(strings.Join(cells, borderStyle.Render("│")))
	}
}

// clip shortens s to at most n runes, marking the cut with an ellipsis.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 {
		return string(r[:1])
	}
	return string(r[:n-1]) + "…"
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

// writeExport writes v as indented JSON to filename.
func writeExport(filename string, v any) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Exported to %s", filename)))
	return nil
}
