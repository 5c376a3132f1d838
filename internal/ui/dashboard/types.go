package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"drmonitor/internal/logging"
	"drmonitor/internal/supervisor"
	"drmonitor/internal/ui/dashboard/health"
	"drmonitor/internal/ui/dashboard/keyboard"
)

const logLineLimit = 500

const (
	minLogPanelHeight = 4
	nonLogReserve     = 16
)

type logMsg string
type statusMsg string
type cycleMsg supervisor.CycleInfo
type tickMsg struct{}
type quitNowMsg struct{}

type runDoneMsg struct {
	err error
}

type startResultMsg struct {
	err error
}

type statusKind int

const (
	statusIdle statusKind = iota
	statusBusy
	statusServing
	statusError
)

// requestCounters is written by gateway goroutines and read on tick.
type requestCounters struct {
	total  atomic.Int64
	failed atomic.Int64
}

type modelDeps struct {
	runner      *supervisor.Controller
	sup         *supervisor.Supervisor
	logger      *logging.Logger
	unsubscribe func()
	rootCancel  context.CancelFunc
	program     *tea.Program
}

type modelChannels struct {
	logCh    chan string
	statusCh chan string
	cycleCh  chan supervisor.CycleInfo
}

type modelRuntime struct {
	quitting bool
	status   string
	kind     statusKind
	runErr   error

	cycle    supervisor.CycleInfo
	served   int64
	failed   int64
	requests *requestCounters

	channelHealth     []health.Row
	healthDetail      string
	lastHealthRefresh time.Time
}

type modelView struct {
	width    int
	height   int
	keys     keyboard.Map
	help     help.Model
	logView  viewport.Model
	logLines []string
	follow   bool
}

type model struct {
	buildVersion string
	opts         supervisor.Options
	modelDeps
	modelChannels
	modelRuntime
	modelView
	cleanupOnce sync.Once
	now         func() time.Time
}
