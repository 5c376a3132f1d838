package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var forceColorOnce sync.Once

func shouldPrettyPrint() bool {
	term := strings.TrimSpace(os.Getenv("TERM"))
	if term == "" || term == "dumb" {
		return false
	}
	return os.Getenv("NO_COLOR") == ""
}

func ensureColorOutput() {
	forceColorOnce.Do(func() {
		lipgloss.SetColorProfile(termenv.TrueColor)
	})
}

var (
	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	messageStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	sepStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// FormatEventANSI renders one event with terminal colours. The dashboard
// reuses it for its log pane.
func FormatEventANSI(event Event) string {
	ensureColorOutput()
	label, badge := levelBadge(event.Level)
	line := lipgloss.JoinHorizontal(lipgloss.Center,
		timeStyle.Render(event.Time.Format("15:04:05.000")),
		" ",
		badge.Render(label),
		" ",
		messageStyle.Render(event.Message),
	)
	keys := orderedFieldKeys(event.Fields)
	if len(keys) == 0 {
		return line + "\n"
	}
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, keyStyle.Render(key)+sepStyle.Render("=")+valueStyle.Render(formatFieldValue(event.Fields[key])))
	}
	return line + "  " + strings.Join(parts, " ") + "\n"
}

func levelBadge(level slog.Level) (string, lipgloss.Style) {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	name := levelName(level)
	switch name {
	case "DEBUG":
		return name, base.Foreground(lipgloss.Color("255")).Background(lipgloss.Color("240"))
	case "INFO":
		return name, base.Foreground(lipgloss.Color("230")).Background(lipgloss.Color("31"))
	case "WARN":
		return name, base.Foreground(lipgloss.Color("234")).Background(lipgloss.Color("214"))
	default:
		return name, base.Foreground(lipgloss.Color("231")).Background(lipgloss.Color("160"))
	}
}
