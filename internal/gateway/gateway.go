// Package gateway answers channel queries over HTTP for one ingestion
// cycle. Requests are served one at a time; each starts with a drift check
// and a tail poll of the requested channel.
package gateway

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"

	"drmonitor/internal/channel"
	"drmonitor/internal/drift"
	"drmonitor/internal/logging"
	"drmonitor/internal/metrics"
	"drmonitor/internal/query"
	"drmonitor/internal/tail"
)

// Checker reports whether the on-disk layout still matches the store.
type Checker interface {
	Check() (drift.Signal, error)
}

type Options struct {
	Registry        *channel.Registry
	Watchdog        Checker
	SampleThreshold int
	Logger          *logging.Logger
	Metrics         *metrics.Metrics
	// OnRequest, when set, is called with the outcome of every request.
	OnRequest func(outcome string)
}

// Gateway is an http.Handler. It reports a drift through Drifted and a
// fatal fault through Faults, each at most once; after either it answers
// every request with 503 or 500 until the server is shut down.
type Gateway struct {
	mu        sync.Mutex
	reg       *channel.Registry
	watchdog  Checker
	threshold int
	logger    *logging.Logger
	metrics   *metrics.Metrics
	onRequest func(string)

	drifted chan struct{}
	faults  chan error
	halt    int
}

const (
	running = iota
	haltDrift
	haltFault
)

func New(opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	threshold := opts.SampleThreshold
	if threshold <= 0 {
		threshold = query.DefaultSampleThreshold
	}
	return &Gateway{
		reg:       opts.Registry,
		watchdog:  opts.Watchdog,
		threshold: threshold,
		logger:    logger,
		metrics:   opts.Metrics,
		onRequest: opts.OnRequest,
		drifted:   make(chan struct{}, 1),
		faults:    make(chan error, 1),
	}
}

func (g *Gateway) Drifted() <-chan struct{} { return g.drifted }

func (g *Gateway) Faults() <-chan error { return g.faults }

// Handler wraps the gateway with gzip compression for clients that accept
// it.
func (g *Gateway) Handler() http.Handler {
	return gzhttp.GzipHandler(g)
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := uuid.NewString()

	g.mu.Lock()
	defer g.mu.Unlock()

	outcome, rows := g.serve(w, r, requestID)
	g.metrics.ObserveRequest(outcome)
	if g.onRequest != nil {
		g.onRequest(outcome)
	}
	g.logger.Debug("request served",
		logging.Field("request_id", requestID),
		logging.Field("method", r.Method),
		logging.Field("path", r.URL.Path),
		logging.Field("outcome", outcome),
		logging.Field("rows", rows),
		logging.Field("duration", time.Since(started).String()),
	)
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request, requestID string) (string, int) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeText(w, http.StatusMethodNotAllowed, "method not allowed")
		return metrics.OutcomeBadMethod, 0
	}
	switch g.halt {
	case haltDrift:
		writeUnavailable(w)
		return metrics.OutcomeDrift, 0
	case haltFault:
		writeText(w, http.StatusInternalServerError, "server is shutting down")
		return metrics.OutcomeError, 0
	}

	sig, err := g.watchdog.Check()
	if err != nil {
		g.fail(w, requestID, err)
		return metrics.OutcomeError, 0
	}
	if sig == drift.Drifted {
		g.drift(w, requestID)
		return metrics.OutcomeDrift, 0
	}

	name := channelName(r)
	if name == "" {
		writeText(w, http.StatusOK, strings.Join(g.reg.Names(), "\n"))
		return metrics.OutcomeOK, 0
	}
	c, ok := g.reg.Channel(name)
	if !ok {
		writeText(w, http.StatusNotFound, "unknown channel "+name)
		return metrics.OutcomeNotFound, 0
	}

	polled, err := tail.Poll(g.reg, name)
	switch {
	case errors.Is(err, tail.ErrRotated):
		g.logger.Warn("tailed file changed underneath", logging.Field("channel", name), logging.Field("error", err))
		g.drift(w, requestID)
		return metrics.OutcomeDrift, 0
	case err != nil:
		g.fail(w, requestID, err)
		return metrics.OutcomeError, 0
	}
	if polled.Bytes > 0 {
		g.metrics.ObserveTail(polled.Bytes, g.reg.Len())
		for _, added := range polled.NewChannels {
			g.logger.Info("new channel", logging.Field("channel", added))
		}
	}

	params, err := query.ParseParams(r.URL.Query())
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return metrics.OutcomeBadRequest, 0
	}

	rows := query.Run(c.Rows(), params, g.threshold)
	body, err := encodeCSV(c.Kind(), rows)
	if err != nil {
		g.fail(w, requestID, err)
		return metrics.OutcomeError, 0
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		g.logger.Debug("write response", logging.Field("request_id", requestID), logging.Field("error", err))
	}
	return metrics.OutcomeOK, len(rows)
}

// channelName is the decoded request path without its surrounding slashes.
func channelName(r *http.Request) string {
	return strings.Trim(r.URL.Path, "/")
}

func (g *Gateway) drift(w http.ResponseWriter, requestID string) {
	g.halt = haltDrift
	select {
	case g.drifted <- struct{}{}:
	default:
	}
	g.logger.Info("restart requested", logging.Field("request_id", requestID))
	writeUnavailable(w)
}

func (g *Gateway) fail(w http.ResponseWriter, requestID string, err error) {
	g.halt = haltFault
	select {
	case g.faults <- err:
	default:
	}
	g.logger.Error("request failed", logging.Field("request_id", requestID), logging.Field("error", err))
	writeText(w, http.StatusInternalServerError, "internal error")
}

func writeUnavailable(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	writeText(w, http.StatusServiceUnavailable, "log directory changed, reloading")
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg + "\n"))
}
