package dashboard

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"drmonitor/internal/logging"
	"drmonitor/internal/runstatus"
	"drmonitor/internal/supervisor"
	"drmonitor/internal/ui/dashboard/health"
)

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.quitting {
		switch msg := msg.(type) {
		case quitNowMsg:
			return m, tea.Quit
		case runDoneMsg:
			m.runErr = msg.err
			return m, tea.Quit
		case logMsg:
			m.appendLog(string(msg))
			return m, waitForLog(m.logCh)
		}
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case logMsg:
		m.appendLog(string(msg))
		return m, waitForLog(m.logCh)
	case statusMsg:
		m.status, m.kind = m.statusFromKey(string(msg))
		return m, waitForStatus(m.statusCh)
	case cycleMsg:
		m.cycle = supervisor.CycleInfo(msg)
		m.refreshHealth()
		return m, waitForCycle(m.cycleCh)
	case startResultMsg:
		if msg.err != nil {
			m.status = runstatus.Failed
			m.kind = statusError
			m.runErr = msg.err
			return m, tea.Quit
		}
		return m, nil
	case runDoneMsg:
		m.runErr = msg.err
		if msg.err != nil {
			m.status = runstatus.Failed
			m.kind = statusError
		}
		return m, tea.Quit
	case tickMsg:
		m.served = m.requests.total.Load()
		m.failed = m.requests.failed.Load()
		if m.now().Sub(m.lastHealthRefresh) >= health.RefreshRate {
			m.refreshHealth()
		}
		return m, tickCmd()
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}
	return m, nil
}

func (m *model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.beginQuitCmd()
	case key.Matches(msg, m.keys.Debug):
		enabled := !m.logger.DebugEnabled()
		m.logger.SetDebugEnabled(enabled)
		m.logger.Info("debug logging toggled", logging.Field("enabled", enabled))
		return m, nil
	case key.Matches(msg, m.keys.Follow):
		m.follow = !m.follow
		if m.follow {
			m.logView.GotoBottom()
		}
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize(m.width, m.height)
		return m, nil
	case key.Matches(msg, m.keys.ScrollUp, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		m.follow = m.logView.AtBottom()
		return m, cmd
	}
	return m, nil
}

func (m *model) beginQuitCmd() tea.Cmd {
	m.quitting = true
	m.status = runstatus.ShuttingDown
	m.kind = statusBusy
	runner := m.runner
	return func() tea.Msg {
		runner.StopAndWait(stopWaitTimeout)
		return quitNowMsg{}
	}
}

func (m *model) appendLog(line string) {
	m.logLines = appendLogLinesWithLimit(m.logLines, line, logLineLimit)
	m.logView.SetContent(strings.Join(m.logLines, "\n"))
	if m.follow {
		m.logView.GotoBottom()
	}
}

func (m *model) refreshHealth() {
	m.channelHealth, m.healthDetail = health.Compute(m.opts.Parent, m.now())
	m.lastHealthRefresh = m.now()
}

func (m *model) resize(width int, height int) {
	m.width = width
	m.height = height
	m.help.Width = width
	m.logView.Width = max(width-4, 10)
	reserve := nonLogReserve + len(m.channelHealth)
	if m.help.ShowAll {
		reserve += 2
	}
	m.logView.Height = max(height-reserve, minLogPanelHeight)
	if m.follow {
		m.logView.GotoBottom()
	}
}

func appendLogLinesWithLimit(current []string, next string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	lines := append(current, splitLogLines(next)...)
	if len(lines) > limit {
		lines = append([]string(nil), lines[len(lines)-limit:]...)
	}
	return lines
}

func splitLogLines(input string) []string {
	normalized := strings.ReplaceAll(input, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	lines := strings.Split(normalized, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
