package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/proxyharvest/proxyharvest/internal/checker"
	"github.com/proxyharvest/proxyharvest/internal/scraper"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()
	if collector == nil {
		t.Fatal("NewCollector() returned nil")
	}
	if collector.registry == nil {
		t.Error("NewCollector() did not initialize registry")
	}
}

func TestCollectorSatisfiesScraperAndCheckerMetrics(t *testing.T) {
	var _ scraper.Metrics = NewCollector()
	var _ checker.Metrics = NewCollector()
}

func TestSourceScrapedIncrementsPerProtocol(t *testing.T) {
	c := NewCollector()
	c.SourceScraped("http")
	c.SourceScraped("http")
	c.SourceScraped("socks5")

	if got := testutil.ToFloat64(c.sourcesScraped.WithLabelValues("http")); got != 2 {
		t.Errorf("sourcesScraped[http] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.sourcesScraped.WithLabelValues("socks5")); got != 1 {
		t.Errorf("sourcesScraped[socks5] = %v, want 1", got)
	}
}

func TestProxiesDiscoveredAddsCount(t *testing.T) {
	c := NewCollector()
	c.ProxiesDiscovered("http", 42)

	if got := testutil.ToFloat64(c.proxiesDiscovered.WithLabelValues("http")); got != 42 {
		t.Errorf("proxiesDiscovered[http] = %v, want 42", got)
	}
}

func TestProxyCheckedAndEvictedAreIndependentCounters(t *testing.T) {
	c := NewCollector()
	c.ProxyChecked("socks4")
	c.ProxyEvicted("socks4")
	c.ProxyEvicted("socks4")

	if got := testutil.ToFloat64(c.proxiesChecked.WithLabelValues("socks4")); got != 1 {
		t.Errorf("proxiesChecked[socks4] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.proxiesEvicted.WithLabelValues("socks4")); got != 2 {
		t.Errorf("proxiesEvicted[socks4] = %v, want 2", got)
	}
}

func TestFdExhaustedIncrementsOnce(t *testing.T) {
	c := NewCollector()
	c.FdExhausted()

	if got := testutil.ToFloat64(c.fdExhausted); got != 1 {
		t.Errorf("fdExhausted = %v, want 1", got)
	}
}

func TestStartServerRejectsDoubleStart(t *testing.T) {
	c := NewCollector()
	if err := c.StartServer("127.0.0.1:0"); err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	defer c.StopServer()

	if err := c.StartServer("127.0.0.1:0"); err == nil {
		t.Errorf("StartServer() second call should fail while already running")
	}
}
