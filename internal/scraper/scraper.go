// Package scraper implements C5: bounded-fanout collection of candidate
// proxies from heterogeneous textual sources (scraped URLs or local
// files), parsed with the shared regex and inserted into storage.
package scraper

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"

	pherrors "github.com/proxyharvest/proxyharvest/internal/errors"
	"github.com/proxyharvest/proxyharvest/internal/logging"
	"github.com/proxyharvest/proxyharvest/internal/parser"
	"github.com/proxyharvest/proxyharvest/internal/proxy"
	"github.com/proxyharvest/proxyharvest/internal/storage"
)

// Source is one configured proxy list to fetch: a URL or local path, with
// the protocol assumed for any match whose regex did not capture its own
// scheme.
type Source struct {
	Protocol       proxy.Protocol
	Location       string
	MatchCap       int
}

// Metrics is the subset of the pipeline's counters the scraper stage
// updates; internal/metrics implements it, kept as an interface here to
// avoid a dependency cycle.
type Metrics interface {
	SourceScraped(protocol string)
	SourceFailed(protocol string)
	ProxiesDiscovered(protocol string, n int)
}

type noopMetrics struct{}

func (noopMetrics) SourceScraped(string)             {}
func (noopMetrics) SourceFailed(string)               {}
func (noopMetrics) ProxiesDiscovered(string, int)     {}

// NoopMetrics is used when the caller has no metrics collector wired up.
var NoopMetrics Metrics = noopMetrics{}

// FetchAll launches every source across every protocol concurrently and
// waits for the group to drain; this is the global barrier before C6
// begins (spec §5: stage boundary). Per-source errors never propagate —
// they are logged and the source simply contributes zero proxies.
func FetchAll(ctx context.Context, client *http.Client, sources []Source, store *storage.Storage, logger *logging.Logger, metrics Metrics) {
	if metrics == nil {
		metrics = NoopMetrics
	}

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			fetchOne(ctx, client, src, store, logger, metrics)
		}(src)
	}
	wg.Wait()
}

func fetchOne(ctx context.Context, client *http.Client, src Source, store *storage.Storage, logger *logging.Logger, metrics Metrics) {
	body, contentType, err := fetchBytes(ctx, client, src.Location)
	if err != nil {
		logger.SourceFailed(src.Location, pherrors.NewSourceError(pherrors.ErrorSourceFailed, "fetching source", src.Location, err))
		metrics.SourceFailed(string(src.Protocol))
		return
	}

	text, err := decodeText(body, contentType)
	if err != nil {
		logger.SourceFailed(src.Location, pherrors.NewSourceError(pherrors.ErrorSourceFailed, "decoding source", src.Location, err))
		metrics.SourceFailed(string(src.Protocol))
		return
	}

	matches := parser.FindAll(text)
	if len(matches) == 0 {
		logger.SourceEmpty(src.Location)
		return
	}
	if src.MatchCap > 0 && len(matches) > src.MatchCap {
		logger.SourceTooLarge(src.Location, len(matches), src.MatchCap)
		return
	}

	for _, p := range matches {
		if p.Protocol == "" {
			p.Protocol = src.Protocol
		}
		store.Add(p)
	}

	metrics.SourceScraped(string(src.Protocol))
	metrics.ProxiesDiscovered(string(src.Protocol), len(matches))
}

func isHTTPURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// fetchBytes retrieves raw source content: an http(s) URL through a colly
// collector sharing client's transport and per-source deadline, or a local
// filesystem path (optional file:// prefix) read directly.
func fetchBytes(ctx context.Context, client *http.Client, location string) ([]byte, string, error) {
	if !isHTTPURL(location) {
		path := strings.TrimPrefix(location, "file://")
		data, err := os.ReadFile(path)
		return data, "", err
	}

	collector := colly.NewCollector()
	collector.WithTransport(client.Transport)
	if client.Timeout > 0 {
		collector.SetRequestTimeout(client.Timeout)
	}

	var body []byte
	var contentType string
	var fetchErr error

	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
		contentType = r.Headers.Get("Content-Type")
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	if err := collector.Visit(location); err != nil {
		return nil, "", err
	}
	collector.Wait()

	if fetchErr != nil {
		return nil, "", fetchErr
	}
	return body, contentType, nil
}

// decodeText decodes body to text, preferring the response-declared
// encoding (from contentType) and falling back to best-effort charset
// detection, matching spec §4.5.
func decodeText(body []byte, contentType string) (string, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body), nil
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(body), nil
	}
	return string(decoded), nil
}
