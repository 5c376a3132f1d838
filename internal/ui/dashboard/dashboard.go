// Package dashboard is the interactive terminal front end. It runs the
// supervisor in the background and shows its state, the freshness of the
// newest day's log files and the live log stream.
package dashboard

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"drmonitor/internal/logging"
	"drmonitor/internal/metrics"
	"drmonitor/internal/runstatus"
	"drmonitor/internal/supervisor"
	"drmonitor/internal/ui/dashboard/keyboard"
)

const (
	logChannelBufferSize    = 512
	statusChannelBufferSize = 16
	cycleChannelBufferSize  = 4
	updateTickInterval      = 250 * time.Millisecond
	stopWaitTimeout         = 10 * time.Second
)

// Run blocks until the user quits or the supervisor exits. The returned
// error is the supervisor's failure, if any.
func Run(rootCtx context.Context, buildVersion string, opts supervisor.Options, logger *logging.Logger, m *metrics.Metrics) error {
	if logger == nil {
		panic("dashboard.Run: logger must not be nil")
	}
	logger.SetTerminalOutputEnabled(false)
	defer logger.SetTerminalOutputEnabled(true)
	logger.Info("starting dashboard", logging.Field("version", buildVersion))

	dm := newModel(rootCtx, buildVersion, opts, logger)
	dm.sup = supervisor.New(opts, logger, m, dm.hooks())
	program := tea.NewProgram(dm, tea.WithAltScreen())
	dm.program = program

	_, runErr := program.Run()
	dm.cleanup()
	if runErr != nil {
		return runErr
	}
	return dm.runErr
}

func newModel(rootCtx context.Context, buildVersion string, opts supervisor.Options, logger *logging.Logger) *model {
	if rootCtx == nil {
		rootCtx = context.Background()
	}
	runCtx, runCancel := context.WithCancel(rootCtx)

	m := &model{
		buildVersion: buildVersion,
		opts:         opts,
		modelDeps: modelDeps{
			runner:     supervisor.NewController(runCtx),
			logger:     logger,
			rootCancel: runCancel,
		},
		modelChannels: modelChannels{
			logCh:    make(chan string, logChannelBufferSize),
			statusCh: make(chan string, statusChannelBufferSize),
			cycleCh:  make(chan supervisor.CycleInfo, cycleChannelBufferSize),
		},
		modelRuntime: modelRuntime{
			status:   "Starting",
			kind:     statusIdle,
			requests: &requestCounters{},
		},
		modelView: modelView{
			keys:    keyboard.New(),
			help:    help.New(),
			logView: viewport.New(80, minLogPanelHeight),
			follow:  true,
		},
		now: time.Now,
	}

	m.unsubscribe = logger.Subscribe(func(event logging.Event) {
		sendDropOldest(m.logCh, logging.FormatEventANSI(event))
	})
	return m
}

func (m *model) hooks() supervisor.Hooks {
	return supervisor.Hooks{
		OnStatus: func(status string) {
			sendDropOldest(m.statusCh, status)
		},
		OnCycle: func(info supervisor.CycleInfo) {
			sendDropOldest(m.cycleCh, info)
		},
		OnRequest: m.requests.observe,
	}
}

func (c *requestCounters) observe(outcome string) {
	c.total.Add(1)
	if outcome != metrics.OutcomeOK {
		c.failed.Add(1)
	}
}

func sendDropOldest[T any](ch chan T, value T) {
	select {
	case ch <- value:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- value:
		default:
		}
	}
}

func (m *model) Init() tea.Cmd {
	m.refreshHealth()
	return tea.Batch(
		waitForLog(m.logCh),
		waitForStatus(m.statusCh),
		waitForCycle(m.cycleCh),
		tickCmd(),
		m.startCmd(),
	)
}

func (m *model) startCmd() tea.Cmd {
	if m.sup == nil {
		return nil
	}
	return func() tea.Msg {
		return startResultMsg{err: m.runner.Start(m.sup, m.onExit)}
	}
}

func (m *model) onExit(runErr error) {
	if m.program == nil {
		return
	}
	m.program.Send(runDoneMsg{err: runErr})
}

func (m *model) cleanup() {
	m.cleanupOnce.Do(func() {
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		if !m.runner.StopAndWait(stopWaitTimeout) {
			m.logger.Warn("supervisor did not stop in time", logging.Field("timeout", stopWaitTimeout))
		}
		if m.rootCancel != nil {
			m.rootCancel()
		}
	})
}

func (m *model) statusFromKey(status string) (string, statusKind) {
	switch runstatus.Key(status) {
	case runstatus.KeyServing:
		return runstatus.Serving, statusServing
	case runstatus.KeyFailed:
		return runstatus.Failed, statusError
	case runstatus.KeyStopped:
		return runstatus.Stopped, statusIdle
	case runstatus.KeyIngesting, runstatus.KeyRestarting, runstatus.KeyShuttingDown:
		return status, statusBusy
	default:
		return status, statusIdle
	}
}

func waitForLog(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return nil
		}
		return logMsg(line)
	}
}

func waitForStatus(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		status, ok := <-ch
		if !ok {
			return nil
		}
		return statusMsg(status)
	}
}

func waitForCycle(ch <-chan supervisor.CycleInfo) tea.Cmd {
	return func() tea.Msg {
		info, ok := <-ch
		if !ok {
			return nil
		}
		return cycleMsg(info)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(updateTickInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}
