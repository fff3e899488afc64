// Package prometheus provides a Prometheus implementation of types.Metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/krisalay/callcache/types"
)

// Default histogram buckets for backoff delays (in seconds).
var delayBuckets = []float64{
	.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60,
}

// Collector holds the metric vectors shared by every wrapper. Each wrapper
// reports through its own view obtained with For.
type Collector struct {
	hitsTotal       *prometheus.CounterVec
	missesTotal     *prometheus.CounterVec
	evictionsTotal  *prometheus.CounterVec
	expiriesTotal   *prometheus.CounterVec
	refreshesTotal  *prometheus.CounterVec
	attemptsTotal   *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	exhaustedTotal  *prometheus.CounterVec
	unhashableTotal *prometheus.CounterVec
	retryDelay      *prometheus.HistogramVec
}

// NewCollector creates the metric vectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callcache_" + name,
			Help: help,
		}, []string{"op"})
	}

	c := &Collector{
		hitsTotal:       counter("hits_total", "Calls served from the store"),
		missesTotal:     counter("misses_total", "Calls with no live stored result"),
		evictionsTotal:  counter("evictions_total", "Live entries removed to make room"),
		expiriesTotal:   counter("expirations_total", "Entries removed after their TTL"),
		refreshesTotal:  counter("refreshes_total", "Background refresh-ahead recomputes"),
		attemptsTotal:   counter("attempts_total", "Invocations of the wrapped operation"),
		retriesTotal:    counter("retries_total", "Backoff waits before a retry"),
		exhaustedTotal:  counter("retry_exhausted_total", "Calls that failed after every permitted attempt"),
		unhashableTotal: counter("unhashable_total", "Calls whose arguments could not be keyed"),

		retryDelay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "callcache_retry_delay_seconds",
			Help:    "Backoff delay before each retry in seconds",
			Buckets: delayBuckets,
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.hitsTotal,
		c.missesTotal,
		c.evictionsTotal,
		c.expiriesTotal,
		c.refreshesTotal,
		c.attemptsTotal,
		c.retriesTotal,
		c.exhaustedTotal,
		c.unhashableTotal,
		c.retryDelay,
	)

	return c
}

// For returns the types.Metrics reporting under op.
func (c *Collector) For(op string) types.Metrics {
	return &opMetrics{
		hits:       c.hitsTotal.WithLabelValues(op),
		misses:     c.missesTotal.WithLabelValues(op),
		evictions:  c.evictionsTotal.WithLabelValues(op),
		expiries:   c.expiriesTotal.WithLabelValues(op),
		refreshes:  c.refreshesTotal.WithLabelValues(op),
		attempts:   c.attemptsTotal.WithLabelValues(op),
		retries:    c.retriesTotal.WithLabelValues(op),
		exhausted:  c.exhaustedTotal.WithLabelValues(op),
		unhashable: c.unhashableTotal.WithLabelValues(op),
		delay:      c.retryDelay.WithLabelValues(op),
	}
}

// opMetrics binds the label once so the hot path never looks it up.
type opMetrics struct {
	hits, misses, evictions, expiries, refreshes prometheus.Counter
	attempts, retries, exhausted, unhashable     prometheus.Counter
	delay                                        prometheus.Observer
}

func (m *opMetrics) Hit()       { m.hits.Inc() }
func (m *opMetrics) Miss()      { m.misses.Inc() }
func (m *opMetrics) Eviction()  { m.evictions.Inc() }
func (m *opMetrics) Expire()    { m.expiries.Inc() }
func (m *opMetrics) Refresh()   { m.refreshes.Inc() }
func (m *opMetrics) Attempt()   { m.attempts.Inc() }
func (m *opMetrics) Exhausted() { m.exhausted.Inc() }

func (m *opMetrics) Unhashable() { m.unhashable.Inc() }

func (m *opMetrics) Retry(delay time.Duration) {
	m.retries.Inc()
	m.delay.Observe(delay.Seconds())
}

var _ types.Metrics = (*opMetrics)(nil)
