package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"drmonitor/internal/ui/dashboard/health"
	"drmonitor/internal/ui/dashboard/theme"
)

func (m *model) View() string {
	width := max(m.width, 40)
	inner := width - 4

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		theme.TitleStyle.Render("DRmonitor "+m.buildVersion),
		" ",
		m.statusBadge(),
	)

	sections := []string{
		header,
		theme.PanelStyle.Width(width - 2).Render(m.renderSummary(inner)),
		theme.PanelStyle.Width(width - 2).Render(m.renderHealth(inner)),
		theme.PanelStyle.Width(width - 2).Render(m.logView.View()),
		theme.HelpStyle.Render(m.help.View(m.keys)),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *model) statusBadge() string {
	color := theme.IdleColor
	switch m.kind {
	case statusBusy:
		color = theme.BusyColor
	case statusServing:
		color = theme.ActiveColor
	case statusError:
		color = theme.StaleColor
	}
	return theme.BadgeStyle.Background(color).Render(m.status)
}

func (m *model) renderSummary(width int) string {
	lines := []string{
		summaryLine("Directory", m.opts.Parent),
		summaryLine("Listening", "http://"+m.opts.Addr+"/"),
	}
	if m.cycle.Cycle > 0 {
		lines = append(lines,
			summaryLine("Cycle", fmt.Sprintf("%d (%d date dirs, %d files, %s)",
				m.cycle.Cycle, m.cycle.DateDirs, m.cycle.Files, m.cycle.Elapsed.Round(time.Millisecond))),
			summaryLine("Channels", fmt.Sprintf("%d channels, %d rows", m.cycle.Channels, m.cycle.Rows)),
		)
	}
	lines = append(lines, summaryLine("Requests", fmt.Sprintf("%d served, %d failed", m.served, m.failed)))
	if m.runErr != nil {
		lines = append(lines, theme.ErrorStyle.Render(m.runErr.Error()))
	}
	for i, line := range lines {
		lines[i] = ansi.Truncate(line, width, "…")
	}
	return strings.Join(lines, "\n")
}

func summaryLine(label string, value string) string {
	return theme.LabelStyle.Render(fmt.Sprintf("%-10s", label)) + value
}

func (m *model) renderHealth(width int) string {
	if len(m.channelHealth) == 0 {
		detail := m.healthDetail
		if detail == "" {
			detail = "No log files yet."
		}
		return theme.HelpStyle.Render(ansi.Truncate(detail, width, "…"))
	}
	nameWidth := 0
	for _, row := range m.channelHealth {
		nameWidth = max(nameWidth, ansi.StringWidth(row.Name))
	}
	lines := make([]string, 0, len(m.channelHealth))
	for _, row := range m.channelHealth {
		dot := lipgloss.NewStyle().Foreground(healthColor(row.Kind)).Render("●")
		name := row.Name + strings.Repeat(" ", nameWidth-ansi.StringWidth(row.Name))
		lines = append(lines, ansi.Truncate(dot+" "+name+"  "+row.Reason, width, "…"))
	}
	return strings.Join(lines, "\n")
}

func healthColor(kind health.Kind) lipgloss.Color {
	switch kind {
	case health.Active:
		return theme.ActiveColor
	case health.Warn:
		return theme.WarnColor
	case health.Stale:
		return theme.StaleColor
	default:
		return theme.MissingColor
	}
}
