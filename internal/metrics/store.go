package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Store implements pebblestore.MetricsHook for the development feed server.
type Store struct {
	readSeconds   prometheus.Histogram
	commitSeconds prometheus.Histogram
	readBytes     prometheus.Counter
	commitBytes   prometheus.Counter
}

// NewStore creates the storage collectors and registers them with reg
// unless it is nil.
func NewStore(reg prometheus.Registerer) *Store {
	buckets := prometheus.ExponentialBuckets(0.00005, 4, 10)
	m := &Store{
		readSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "read_seconds",
			Help:      "Latency of event log point reads.",
			Buckets:   buckets,
		}),
		commitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "commit_seconds",
			Help:      "Latency of event log batch commits.",
			Buckets:   buckets,
		}),
		readBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "read_bytes_total",
			Help:      "Bytes returned by point reads.",
		}),
		commitBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "commit_bytes_total",
			Help:      "Bytes written by committed batches.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.readSeconds, m.commitSeconds, m.readBytes, m.commitBytes)
	}
	return m
}

func (m *Store) ObserveRead(elapsed time.Duration, bytes int) {
	m.readSeconds.Observe(elapsed.Seconds())
	m.readBytes.Add(float64(bytes))
}

func (m *Store) ObserveBatchCommit(elapsed time.Duration, bytes int) {
	m.commitSeconds.Observe(elapsed.Seconds())
	m.commitBytes.Add(float64(bytes))
}
