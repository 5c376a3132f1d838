package supervisor

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"drmonitor/internal/logging"
	"drmonitor/internal/metrics"
	"drmonitor/internal/parse"
	"drmonitor/internal/runstatus"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const waitTimeout = 10 * time.Second

type recorder struct {
	mu       sync.Mutex
	statuses []string
	cycles   chan CycleInfo
}

func newRecorder() *recorder {
	return &recorder{cycles: make(chan CycleInfo, 8)}
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnStatus: func(status string) {
			r.mu.Lock()
			r.statuses = append(r.statuses, status)
			r.mu.Unlock()
		},
		OnCycle: func(info CycleInfo) {
			r.cycles <- info
		},
	}
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.statuses)
}

func (r *recorder) nextCycle(t *testing.T) CycleInfo {
	t.Helper()
	select {
	case info := <-r.cycles:
		return info
	case <-time.After(waitTimeout):
		t.Fatalf("no serving cycle started")
		return CycleInfo{}
	}
}

func quietLogger() *logging.Logger {
	logger := logging.New(false)
	logger.SetTerminalOutputEnabled(false)
	return logger
}

func writeLog(t *testing.T, parent string, dir string, name string, body string) {
	t.Helper()
	full := filepath.Join(parent, dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(full, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func fetch(t *testing.T, addr string, path string) (int, string) {
	t.Helper()
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: waitTimeout}
	resp, err := client.Get("http://" + addr + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func startRun(t *testing.T, sup *Supervisor) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(waitTimeout):
		t.Fatalf("Run() did not return")
		return nil
	}
}

func baseOptions(parent string) Options {
	return Options{
		Parent:          parent,
		Addr:            "127.0.0.1:0",
		SampleThreshold: 4000,
		RetryInitial:    10 * time.Millisecond,
		RetryElapsed:    2 * time.Second,
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	parent := t.TempDir()
	writeLog(t, parent, "23-04-28", "CH1 T 23-04-28.log", "28-04-23,00:00:00,1\n28-04-23,00:01:00,2\n")

	rec := newRecorder()
	sup := New(baseOptions(parent), quietLogger(), nil, rec.hooks())
	cancel, done := startRun(t, sup)

	info := rec.nextCycle(t)
	if info.Cycle != 1 || info.Channels != 1 || info.Rows != 2 {
		t.Fatalf("CycleInfo = %+v", info)
	}
	code, body := fetch(t, info.Addr, "/CH1%20T?last=true")
	if code != http.StatusOK || body != "datetime,2\n2023-04-28T00:01:00,2\n" {
		t.Fatalf("GET = %d %q", code, body)
	}

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run() error = %v, want nil after cancel", err)
	}
	want := []string{runstatus.Ingesting, runstatus.Serving, runstatus.ShuttingDown, runstatus.Stopped}
	if got := rec.seen(); !slices.Equal(got, want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	if sup.Status() != runstatus.Stopped {
		t.Fatalf("Status() = %q", sup.Status())
	}
}

func TestRun_DriftRestartsIngestion(t *testing.T) {
	parent := t.TempDir()
	writeLog(t, parent, "23-04-28", "CH1 T 23-04-28.log", "28-04-23,00:00:00,1\n")
	writeLog(t, parent, "23-04-29", "CH1 T 23-04-29.log", "29-04-23,00:00:00,2\n")

	m := metrics.New()
	rec := newRecorder()
	opts := baseOptions(parent)
	opts.Watch = true
	sup := New(opts, quietLogger(), m, rec.hooks())
	cancel, done := startRun(t, sup)

	first := rec.nextCycle(t)
	if first.DateDirs != 2 {
		t.Fatalf("first cycle = %+v", first)
	}

	if err := os.RemoveAll(filepath.Join(parent, "23-04-28")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if code, _ := fetch(t, first.Addr, "/CH1%20T"); code != http.StatusServiceUnavailable {
		t.Fatalf("GET after drift = %d, want 503", code)
	}

	second := rec.nextCycle(t)
	if second.Cycle != 2 || second.DateDirs != 1 || second.Rows != 1 {
		t.Fatalf("second cycle = %+v", second)
	}
	code, body := fetch(t, second.Addr, "/CH1%20T")
	if code != http.StatusOK || body != "datetime,2\n2023-04-29T00:00:00,2\n" {
		t.Fatalf("GET after restart = %d %q", code, body)
	}
	expected := `
# HELP drmonitor_restarts_total Re-ingestions caused by a change in the date directories.
# TYPE drmonitor_restarts_total counter
drmonitor_restarts_total 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "drmonitor_restarts_total"); err != nil {
		t.Fatalf("restarts: %v", err)
	}

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !slices.Contains(rec.seen(), runstatus.Restarting) {
		t.Fatalf("statuses = %v, want a restart", rec.seen())
	}
}

func TestRun_FaultWhileServingEndsRun(t *testing.T) {
	root := t.TempDir()
	parent := filepath.Join(root, "logs")
	writeLog(t, parent, "23-04-28", "CH1 T 23-04-28.log", "28-04-23,00:00:00,1\n")

	rec := newRecorder()
	sup := New(baseOptions(parent), quietLogger(), nil, rec.hooks())
	_, done := startRun(t, sup)
	info := rec.nextCycle(t)

	if err := os.RemoveAll(parent); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if code, _ := fetch(t, info.Addr, "/CH1%20T"); code != http.StatusInternalServerError {
		t.Fatalf("GET = %d, want 500", code)
	}
	err := waitDone(t, done)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Run() error = %v, want fs.ErrNotExist", err)
	}
	if sup.Status() != runstatus.Failed {
		t.Fatalf("Status() = %q, want Failed", sup.Status())
	}
}

func TestRun_ParseErrorIsFatal(t *testing.T) {
	parent := t.TempDir()
	writeLog(t, parent, "23-04-28", "CH1 T 23-04-28.log", "garbage\n")

	sup := New(baseOptions(parent), quietLogger(), nil, Hooks{})
	_, done := startRun(t, sup)
	err := waitDone(t, done)
	var lineErr *parse.LineError
	if !errors.As(err, &lineErr) {
		t.Fatalf("Run() error = %v, want *parse.LineError", err)
	}
}

func TestRun_WaitsForMissingDirectory(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "logs")

	rec := newRecorder()
	sup := New(baseOptions(parent), quietLogger(), nil, rec.hooks())
	cancel, done := startRun(t, sup)

	time.Sleep(50 * time.Millisecond)
	// Populate elsewhere and move into place so no scan sees a partial tree.
	staging := filepath.Join(t.TempDir(), "staging")
	writeLog(t, staging, "23-04-28", "CH1 T 23-04-28.log", "28-04-23,00:00:00,1\n")
	if err := os.Rename(staging, parent); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if info := rec.nextCycle(t); info.Channels != 1 {
		t.Fatalf("cycle = %+v", info)
	}
	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRun_BusyAddressGivesUp(t *testing.T) {
	parent := t.TempDir()
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	opts := baseOptions(parent)
	opts.Addr = busy.Addr().String()
	opts.RetryElapsed = 200 * time.Millisecond
	sup := New(opts, quietLogger(), nil, Hooks{})
	_, done := startRun(t, sup)

	if err := waitDone(t, done); !errors.Is(err, ErrListen) {
		t.Fatalf("Run() error = %v, want ErrListen", err)
	}
}

func TestRun_MetricsListener(t *testing.T) {
	parent := t.TempDir()
	writeLog(t, parent, "23-04-28", "CH1 T 23-04-28.log", "28-04-23,00:00:00,1\n")

	spare, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	metricsAddr := spare.Addr().String()
	_ = spare.Close()

	opts := baseOptions(parent)
	opts.MetricsListen = metricsAddr
	rec := newRecorder()
	sup := New(opts, quietLogger(), metrics.New(), rec.hooks())
	cancel, done := startRun(t, sup)
	info := rec.nextCycle(t)

	if code, _ := fetch(t, info.Addr, "/CH1%20T"); code != http.StatusOK {
		t.Fatalf("GET = %d", code)
	}
	code, body := fetch(t, metricsAddr, "/metrics")
	if code != http.StatusOK || !strings.Contains(body, `drmonitor_requests_total{outcome="ok"} 1`) {
		t.Fatalf("metrics = %d\n%s", code, body)
	}

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestController(t *testing.T) {
	parent := t.TempDir()
	rec := newRecorder()
	sup := New(baseOptions(parent), quietLogger(), nil, rec.hooks())

	ctrl := NewController(context.Background())
	exited := make(chan error, 1)
	if err := ctrl.Start(sup, func(err error) { exited <- err }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	rec.nextCycle(t)
	if !ctrl.IsRunning() {
		t.Fatalf("IsRunning() = false while serving")
	}
	if err := ctrl.Start(sup, nil); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
	if !ctrl.StopAndWait(waitTimeout) {
		t.Fatalf("StopAndWait() timed out")
	}
	if err := <-exited; err != nil {
		t.Fatalf("onExit error = %v", err)
	}
	if ctrl.IsRunning() {
		t.Fatalf("IsRunning() = true after stop")
	}
}
