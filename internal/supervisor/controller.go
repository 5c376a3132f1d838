package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"drmonitor/internal/logging"
)

// Controller runs a Supervisor in the background so a foreground UI can own
// the terminal. It runs at most one supervisor at a time.
type Controller struct {
	rootCtx context.Context
	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

func NewController(rootCtx context.Context) *Controller {
	if rootCtx == nil {
		rootCtx = context.Background()
	}
	return &Controller{rootCtx: rootCtx}
}

// Start launches sup. onExit, if set, receives the result of Run.
func (c *Controller) Start(sup *Supervisor, onExit func(error)) error {
	if sup == nil {
		panic("supervisor.Controller.Start: supervisor must not be nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(c.rootCtx)
	c.cancel = cancel
	c.running = true
	logger := sup.logger
	c.wg.Go(func() {
		defer cancel()
		runErr := sup.Run(ctx)
		switch {
		case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
			logger.Debug("supervisor exited due to context cancellation", logging.Field("error", runErr))
		case runErr != nil:
			logger.Error("supervisor exited with error", logging.Field("error", runErr))
		default:
			logger.Info("supervisor exited")
		}
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.mu.Unlock()

		if onExit != nil {
			onExit(runErr)
		}
	})
	return nil
}

func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the supervisor has exited or timeout passes. A
// non-positive timeout waits indefinitely.
func (c *Controller) Wait(timeout time.Duration) bool {
	waitDone := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(waitDone)
	}()
	if timeout <= 0 {
		<-waitDone
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-waitDone:
		return true
	case <-timer.C:
		return false
	}
}

func (c *Controller) StopAndWait(timeout time.Duration) bool {
	c.Stop()
	return c.Wait(timeout)
}

func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
