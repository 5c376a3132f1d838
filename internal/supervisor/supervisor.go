// Package supervisor runs the ingest and serve cycle. A cycle ingests the
// log directory into a fresh registry, then serves it until a drift, a
// fault or cancellation. Drift starts the next cycle; a fault ends Run
// with an error; cancellation ends Run cleanly.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"drmonitor/internal/drift"
	"drmonitor/internal/gateway"
	"drmonitor/internal/ingest"
	"drmonitor/internal/logging"
	"drmonitor/internal/metrics"
	"drmonitor/internal/runstatus"
)

const (
	defaultShutdownTimeout = 5 * time.Second
	defaultRetryInitial    = 500 * time.Millisecond
	defaultRetryMax        = 30 * time.Second
	defaultRetryElapsed    = 2 * time.Minute
)

type Options struct {
	Parent          string
	Addr            string
	SampleThreshold int
	OnlyChannel     string
	Watch           bool
	MetricsListen   string

	ShutdownTimeout time.Duration
	// RetryInitial and RetryElapsed bound the backoff used while the log
	// directory is missing or the listen address is busy.
	RetryInitial time.Duration
	RetryElapsed time.Duration
}

// CycleInfo describes a completed ingestion, published when serving starts.
type CycleInfo struct {
	Cycle    int
	Addr     string
	DateDirs int
	Files    int
	Channels int
	Rows     int
	Elapsed  time.Duration
}

type Hooks struct {
	OnStatus  func(string)
	OnCycle   func(CycleInfo)
	OnRequest func(outcome string)
}

type Supervisor struct {
	opts    Options
	logger  *logging.Logger
	metrics *metrics.Metrics
	hooks   Hooks
	status  statusState

	// listen is replaced in tests.
	listen func(ctx context.Context, addr string) (net.Listener, error)
}

type statusState struct {
	mu      sync.Mutex
	current string
}

func (s *statusState) update(status string) (string, string, bool) {
	trimmed := strings.TrimSpace(status)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == trimmed {
		return s.current, trimmed, false
	}
	previous := s.current
	s.current = trimmed
	return previous, trimmed, true
}

func (s *statusState) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func New(opts Options, logger *logging.Logger, m *metrics.Metrics, hooks Hooks) *Supervisor {
	if logger == nil {
		panic("supervisor.New: logger must not be nil")
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = defaultRetryInitial
	}
	if opts.RetryElapsed <= 0 {
		opts.RetryElapsed = defaultRetryElapsed
	}
	return &Supervisor{
		opts:    opts,
		logger:  logger,
		metrics: m,
		hooks:   hooks,
		listen: func(ctx context.Context, addr string) (net.Listener, error) {
			var lc net.ListenConfig
			return lc.Listen(ctx, "tcp", addr)
		},
	}
}

// Status returns the most recently published state.
func (s *Supervisor) Status() string {
	return s.status.get()
}

// Run blocks until ctx is done or a fault ends the process. It returns nil
// after cancellation.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if s.opts.MetricsListen != "" {
		g.Go(func() error {
			return s.serveMetrics(gctx)
		})
	}
	g.Go(func() error {
		return s.loop(gctx)
	})
	return g.Wait()
}

type outcome int

const (
	outcomeStopped outcome = iota
	outcomeDrift
	outcomeFault
)

func (s *Supervisor) loop(ctx context.Context) error {
	for cycle := 1; ; cycle++ {
		s.setStatus(runstatus.Ingesting)
		watchdog, res, err := s.ingest(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.setStatus(runstatus.Stopped)
				return nil
			}
			s.setStatus(runstatus.Failed)
			return fmt.Errorf("ingest %s: %w", s.opts.Parent, err)
		}
		s.metrics.ObserveIngest(res.Rows, res.Registry.Len(), res.Elapsed)
		s.logger.Info("ingestion complete",
			logging.Field("cycle", cycle),
			logging.Field("date_dirs", res.DateDirs),
			logging.Field("files", res.Files),
			logging.Field("channels", res.Registry.Len()),
			logging.Field("rows", res.Rows),
			logging.Field("elapsed", res.Elapsed.Round(time.Millisecond).String()),
		)
		warnOnHandleLimit(s.logger, res.Registry.OpenHandles())

		result, fault := s.serve(ctx, cycle, watchdog, res)
		if err := res.Registry.Close(); err != nil {
			s.logger.Warn("closing tail handles", logging.Field("error", err))
		}

		switch result {
		case outcomeDrift:
			s.metrics.ObserveRestart()
			s.setStatus(runstatus.Restarting)
			s.logger.Info("log directory changed; ingesting again", logging.Field("cycle", cycle))
		case outcomeStopped:
			s.setStatus(runstatus.Stopped)
			return nil
		default:
			s.setStatus(runstatus.Failed)
			return fault
		}
	}
}

// ingest captures the drift baseline and scans the directory. A missing
// directory is retried with backoff; anything else ends the attempt.
func (s *Supervisor) ingest(ctx context.Context) (*drift.Watchdog, ingest.Result, error) {
	type scanned struct {
		watchdog *drift.Watchdog
		result   ingest.Result
	}
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = s.opts.RetryInitial
	retry.MaxInterval = defaultRetryMax
	retry.Reset()

	out, err := backoff.Retry(ctx, func() (scanned, error) {
		watchdog, err := drift.New(s.opts.Parent, s.logger)
		if err != nil {
			return scanned{}, classify(err)
		}
		res, err := ingest.Run(ctx, s.opts.Parent, ingest.Options{
			OnlyChannel: s.opts.OnlyChannel,
			Logger:      s.logger,
		})
		if err != nil {
			return scanned{}, classify(err)
		}
		return scanned{watchdog: watchdog, result: res}, nil
	},
		backoff.WithBackOff(retry),
		backoff.WithMaxElapsedTime(s.opts.RetryElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Warn("log directory unavailable; retrying",
				logging.Field("error", err),
				logging.Field("next_retry", next.String()))
		}),
	)
	if err != nil {
		return nil, ingest.Result{}, err
	}
	return out.watchdog, out.result, nil
}

func classify(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return backoff.Permanent(err)
}

func (s *Supervisor) serve(ctx context.Context, cycle int, watchdog *drift.Watchdog, res ingest.Result) (outcome, error) {
	ln, err := s.bind(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return outcomeStopped, nil
		}
		return outcomeFault, err
	}
	logger := s.logger.With(logging.Field("cycle", cycle))

	gw := gateway.New(gateway.Options{
		Registry:        res.Registry,
		Watchdog:        watchdog,
		SampleThreshold: s.opts.SampleThreshold,
		Logger:          logger,
		Metrics:         s.metrics,
		OnRequest:       s.hooks.OnRequest,
	})
	srv := &http.Server{
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	cycleCtx, stopCycle := context.WithCancel(ctx)
	defer stopCycle()
	grp, grpCtx := errgroup.WithContext(cycleCtx)
	grp.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if s.opts.Watch {
		grp.Go(func() error {
			if err := watchdog.Watch(grpCtx); err != nil {
				logger.Warn("directory watch unavailable", logging.Field("error", err))
			}
			return nil
		})
	}

	logger.Info("serving", logging.Field("addr", ln.Addr().String()), logging.Field("channels", res.Registry.Len()))
	s.setStatus(runstatus.Serving)
	if s.hooks.OnCycle != nil {
		s.hooks.OnCycle(CycleInfo{
			Cycle:    cycle,
			Addr:     ln.Addr().String(),
			DateDirs: res.DateDirs,
			Files:    res.Files,
			Channels: res.Registry.Len(),
			Rows:     res.Rows,
			Elapsed:  res.Elapsed,
		})
	}

	result := outcomeStopped
	var fault error
	select {
	case <-grpCtx.Done():
		if ctx.Err() == nil {
			result = outcomeFault
		}
	case <-gw.Drifted():
		result = outcomeDrift
	case fault = <-gw.Faults():
		result = outcomeFault
	}

	if result == outcomeFault || result == outcomeStopped {
		s.setStatus(runstatus.ShuttingDown)
	}
	s.shutdown(srv)
	stopCycle()
	if err := grp.Wait(); err != nil && fault == nil {
		fault = err
		result = outcomeFault
	}
	return result, fault
}

// bind retries a busy address with backoff until RetryElapsed passes.
func (s *Supervisor) bind(ctx context.Context) (net.Listener, error) {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = s.opts.RetryInitial
	retry.MaxInterval = defaultRetryMax
	retry.Reset()

	ln, err := backoff.Retry(ctx, func() (net.Listener, error) {
		return s.listen(ctx, s.opts.Addr)
	},
		backoff.WithBackOff(retry),
		backoff.WithMaxElapsedTime(s.opts.RetryElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Warn("listen failed; retrying",
				logging.Field("addr", s.opts.Addr),
				logging.Field("error", err),
				logging.Field("next_retry", next.String()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrListen, s.opts.Addr, err)
	}
	return ln, nil
}

func (s *Supervisor) shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown incomplete", logging.Field("error", err))
		_ = srv.Close()
	}
}

func (s *Supervisor) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ln, err := s.listen(ctx, s.opts.MetricsListen)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	s.logger.Info("metrics listening", logging.Field("addr", ln.Addr().String()))

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ln)
	}()
	select {
	case <-ctx.Done():
		s.shutdown(srv)
		<-done
		return nil
	case err := <-done:
		return fmt.Errorf("metrics server: %w", err)
	}
}

func (s *Supervisor) setStatus(status string) {
	previous, next, changed := s.status.update(status)
	if !changed {
		return
	}
	s.logger.Debug("supervisor status transition",
		logging.Field("from", previous),
		logging.Field("to", next),
	)
	if s.hooks.OnStatus != nil {
		s.hooks.OnStatus(next)
	}
}
