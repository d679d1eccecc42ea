// Package metrics exposes the pipeline's counters and histograms as
// Prometheus metrics, adapted from ProxyHawk's internal/metrics Collector.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements both the scraper and checker stages' narrow Metrics
// interfaces against a single Prometheus registry.
type Collector struct {
	sourcesScraped    *prometheus.CounterVec
	sourcesFailed     *prometheus.CounterVec
	proxiesDiscovered *prometheus.CounterVec

	proxiesChecked *prometheus.CounterVec
	proxiesEvicted *prometheus.CounterVec
	checkDuration  *prometheus.HistogramVec
	fdExhausted    prometheus.Counter

	registry *prometheus.Registry
	server   *http.Server
	mutex    sync.RWMutex
}

// NewCollector builds and registers every metric the pipeline emits.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}
	c.initMetrics()
	c.registerMetrics()
	return c
}

func (c *Collector) initMetrics() {
	c.sourcesScraped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proxyharvest_sources_scraped_total",
		Help: "Total number of sources successfully scraped, per protocol",
	}, []string{"protocol"})

	c.sourcesFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proxyharvest_sources_failed_total",
		Help: "Total number of sources that failed to fetch or decode, per protocol",
	}, []string{"protocol"})

	c.proxiesDiscovered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proxyharvest_proxies_discovered_total",
		Help: "Total number of candidate proxies parsed out of sources, per protocol",
	}, []string{"protocol"})

	c.proxiesChecked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proxyharvest_proxies_checked_total",
		Help: "Total number of proxies that passed their validating check, per protocol",
	}, []string{"protocol"})

	c.proxiesEvicted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proxyharvest_proxies_evicted_total",
		Help: "Total number of proxies removed after a failed check, per protocol",
	}, []string{"protocol"})

	c.checkDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proxyharvest_check_duration_seconds",
		Help:    "Duration of a single proxy check, per protocol",
		Buckets: prometheus.DefBuckets,
	}, []string{"protocol"})

	c.fdExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proxyharvest_fd_exhausted_total",
		Help: "Number of times the checker stage observed EMFILE/ENFILE",
	})
}

func (c *Collector) registerMetrics() {
	c.registry.MustRegister(
		c.sourcesScraped,
		c.sourcesFailed,
		c.proxiesDiscovered,
		c.proxiesChecked,
		c.proxiesEvicted,
		c.checkDuration,
		c.fdExhausted,
	)
}

// StartServer exposes /metrics on addr.
func (c *Collector) StartServer(addr string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.server != nil {
		return fmt.Errorf("metrics server already running")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	c.server = &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// caller controls the process lifecycle; nothing to escalate to here
		}
	}()
	return nil
}

// StopServer shuts the metrics server down, if running.
func (c *Collector) StopServer() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.server.Shutdown(ctx)
	c.server = nil
	return err
}

// scraper.Metrics

func (c *Collector) SourceScraped(protocol string) {
	c.sourcesScraped.WithLabelValues(protocol).Inc()
}

func (c *Collector) SourceFailed(protocol string) {
	c.sourcesFailed.WithLabelValues(protocol).Inc()
}

func (c *Collector) ProxiesDiscovered(protocol string, n int) {
	c.proxiesDiscovered.WithLabelValues(protocol).Add(float64(n))
}

// checker.Metrics

func (c *Collector) ProxyChecked(protocol string) {
	c.proxiesChecked.WithLabelValues(protocol).Inc()
}

func (c *Collector) ProxyEvicted(protocol string) {
	c.proxiesEvicted.WithLabelValues(protocol).Inc()
}

func (c *Collector) CheckDuration(protocol string, seconds float64) {
	c.checkDuration.WithLabelValues(protocol).Observe(seconds)
}

func (c *Collector) FdExhausted() {
	c.fdExhausted.Inc()
}

// GetMetricsHandler returns the /metrics HTTP handler directly, for callers
// wiring it into an existing mux rather than using StartServer.
func (c *Collector) GetMetricsHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
