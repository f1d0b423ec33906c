// Package metrics exports subscriber observations as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rzbill/feedsub/internal/feed"
)

const (
	namespace       = "feedsub"
	shutdownTimeout = 2 * time.Second
)

// Subscriber implements subscriber.Observer on top of Prometheus collectors.
type Subscriber struct {
	eventsReceived *prometheus.CounterVec
	listenerErrors prometheus.Counter
	closures       *prometheus.CounterVec
	connected      prometheus.Gauge
	opened         prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration, which keeps tests independent of the default registry.
func New(reg prometheus.Registerer) *Subscriber {
	m := &Subscriber{
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Events read from the feed stream, by event type.",
		}, []string{"type"}),
		listenerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_errors_total",
			Help:      "Event listener calls that returned an error or panicked.",
		}),
		closures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_closures_total",
			Help:      "Feed stream terminations, split by whether a stop was requested.",
		}, []string{"requested"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connected",
			Help:      "1 while a feed stream is open.",
		}),
		opened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_opened_total",
			Help:      "Feed streams opened.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.eventsReceived, m.listenerErrors, m.closures, m.connected, m.opened)
	}
	return m
}

func (m *Subscriber) StreamOpened() {
	m.opened.Inc()
	m.connected.Set(1)
}

func (m *Subscriber) StreamClosed(requested bool) {
	m.closures.WithLabelValues(strconv.FormatBool(requested)).Inc()
	m.connected.Set(0)
}

func (m *Subscriber) EventReceived(t feed.EventType) {
	m.eventsReceived.WithLabelValues(t.String()).Inc()
}

func (m *Subscriber) ListenerFailed() { m.listenerErrors.Inc() }

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes g on addr at /metrics until ctx is done, then shuts the
// listener down. It returns only listen and serve failures.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics: listen %s: %w", addr, err)
	}
	return ServeListener(ctx, lis, g)
}

// ServeListener is Serve on an existing listener.
func ServeListener(ctx context.Context, lis net.Listener, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	})
	defer stop()
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve: %w", err)
	}
	return nil
}
