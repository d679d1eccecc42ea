// Command proxyharvest runs the complete scrape-and-check pipeline: it
// scrapes candidate proxies from configured sources, validates each by
// probing it against a check website, classifies anonymity, and writes
// sorted/geo-annotated output files.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/proxyharvest/proxyharvest/internal/checker"
	"github.com/proxyharvest/proxyharvest/internal/classifier"
	"github.com/proxyharvest/proxyharvest/internal/geoip"
	"github.com/proxyharvest/proxyharvest/internal/logging"
	"github.com/proxyharvest/proxyharvest/internal/metrics"
	"github.com/proxyharvest/proxyharvest/internal/output"
	"github.com/proxyharvest/proxyharvest/internal/pool"
	"github.com/proxyharvest/proxyharvest/internal/proxy"
	"github.com/proxyharvest/proxyharvest/internal/scraper"
	"github.com/proxyharvest/proxyharvest/internal/settings"
	"github.com/proxyharvest/proxyharvest/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the pipeline's YAML configuration")
	geoDBPath := flag.String("geoip-db", "", "path to a GeoLite2/GeoIP2 MMDB file (required when enable_geolocation is set)")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	logFormat := flag.String("log-format", "text", "log output format: text or json")
	flag.Parse()

	logger := logging.New(logging.Config{Level: logging.LevelInfo, Format: *logFormat, Output: os.Stderr})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := settings.LoadConfig(*configPath)
	if err != nil {
		logger.Error("loading configuration", "error", err)
		return 1
	}
	if result := settings.Validate(cfg); !result.Valid {
		for _, e := range result.Errors {
			logger.Error("invalid configuration", "field", e.Field, "message", e.Message)
		}
		return 1
	}

	var collector *metrics.Collector
	if *metricsAddr != "" {
		collector = metrics.NewCollector()
		if err := collector.StartServer(*metricsAddr); err != nil {
			logger.Error("starting metrics server", "error", err)
			return 1
		}
		defer collector.StopServer()
	}

	baselineClient := classifier.NewHTTPClient(time.Duration(cfg.SourceTimeout * float64(time.Second)))
	checkWebsiteType, realIP := classifier.Classify(ctx, baselineClient, logger, cfg.CheckWebsite)

	st, err := settings.Build(cfg, checkWebsiteType, realIP, logger)
	if err != nil {
		logger.Error("resolving settings", "error", err)
		return 1
	}

	var geoReader geoip.Lookuper = geoip.NullReader{}
	if st.EnableGeolocation {
		if *geoDBPath == "" {
			logger.Error("enable_geolocation is set but -geoip-db was not provided")
			return 1
		}
		reader, err := geoip.Open(*geoDBPath)
		if err != nil {
			logger.Error("opening GeoIP database", "error", err)
			return 1
		}
		defer reader.Close()
		geoReader = reader
	}

	store := storage.New(proxy.HTTP, proxy.SOCKS4, proxy.SOCKS5)

	sourceClient := pool.NewSourceClient(pool.DefaultConfig(), time.Duration(st.SourceTimeout*float64(time.Second)))
	sources := buildSources(st)

	var scraperMetrics scraper.Metrics = scraper.NoopMetrics
	var checkerMetrics checker.Metrics = checker.NoopMetrics
	if collector != nil {
		scraperMetrics = collector
		checkerMetrics = collector
	}

	scraper.FetchAll(ctx, sourceClient, sources, store, logger, scraperMetrics)
	logger.ScrapeComplete(len(sources), store.Len())

	before := store.Len()
	gate := checker.NewGate(st.MaxConnections)
	checkParams := checker.Params{
		CheckWebsite:     st.CheckWebsite,
		CheckWebsiteType: st.CheckWebsiteType,
		RealIP:           st.RealIP,
		Timeout:          time.Duration(st.Timeout * float64(time.Second)),
		Gate:             gate,
		ShuffleSeed:      st.ShuffleSeed,
	}
	checker.CheckAll(ctx, store.Snapshot(), checkParams, store, logger, checkerMetrics)
	logger.CheckComplete(store.Len(), before-store.Len())

	outParams := output.Params{
		OutputJSON:        st.OutputJSON,
		OutputTXT:         st.OutputTXT,
		OutputPath:        st.OutputPath,
		SortBySpeed:       st.SortBySpeed,
		CheckingEnabled:   true,
		AnonymityKnown:    st.CheckWebsiteType.SupportsAnonymity(),
		RealIP:            st.RealIP,
		EnableGeolocation: st.EnableGeolocation,
		GeoReader:         geoReader,
	}
	if err := output.Write(store, outParams); err != nil {
		logger.Error("writing output", "error", err)
		return 1
	}
	logger.OutputWritten(st.OutputPath)

	if ctx.Err() != nil {
		return 130
	}
	return 0
}

// buildSources flattens Settings.Sources into one scraper.Source per
// configured URL/path, per protocol.
func buildSources(st *settings.Settings) []scraper.Source {
	var sources []scraper.Source
	for _, proto := range proxy.CanonicalOrder {
		for _, location := range st.Sources[proto] {
			sources = append(sources, scraper.Source{
				Protocol: proto,
				Location: location,
				MatchCap: st.SourceMatchCap,
			})
		}
	}
	return sources
}
