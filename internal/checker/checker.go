package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/proxyharvest/proxyharvest/internal/classifier"
	pherrors "github.com/proxyharvest/proxyharvest/internal/errors"
	"github.com/proxyharvest/proxyharvest/internal/logging"
	"github.com/proxyharvest/proxyharvest/internal/parser"
	"github.com/proxyharvest/proxyharvest/internal/proxy"
	"github.com/proxyharvest/proxyharvest/internal/storage"
)

// Metrics is the subset of the pipeline's counters the checker stage
// updates; internal/metrics implements it.
type Metrics interface {
	ProxyChecked(protocol string)
	ProxyEvicted(protocol string)
	CheckDuration(protocol string, seconds float64)
	FdExhausted()
}

type noopMetrics struct{}

func (noopMetrics) ProxyChecked(string)              {}
func (noopMetrics) ProxyEvicted(string)               {}
func (noopMetrics) CheckDuration(string, float64)     {}
func (noopMetrics) FdExhausted()                      {}

// NoopMetrics is used when the caller has no metrics collector wired up.
var NoopMetrics Metrics = noopMetrics{}

// Params bundles the per-run inputs the checker stage needs.
type Params struct {
	CheckWebsite     string
	CheckWebsiteType classifier.Type
	RealIP           string
	Timeout          time.Duration
	Gate             Gate
	ShuffleSeed      *int64
}

// fdExhaustedOnce makes "too many open files" reported once per process, matching spec §4.6/§7's
// single operator-facing error-level log for errno 24.
var fdExhaustedOnce sync.Once

// CheckAll probes every proxy in the snapshot, in parallel bounded by
// params.Gate, mutating successes in place and removing failures from
// store. The dispatch order is shuffled first to avoid hammering any
// single upstream target in bursts (spec §4.6); a non-nil ShuffleSeed
// makes that shuffle reproducible for tests.
func CheckAll(ctx context.Context, snapshot []proxy.Proxy, params Params, store *storage.Storage, logger *logging.Logger, metrics Metrics) {
	if metrics == nil {
		metrics = NoopMetrics
	}

	shuffled := make([]proxy.Proxy, len(snapshot))
	copy(shuffled, snapshot)
	shuffle(shuffled, params.ShuffleSeed)

	var wg sync.WaitGroup
	for _, p := range shuffled {
		wg.Add(1)
		go func(p proxy.Proxy) {
			defer wg.Done()
			checkOne(ctx, p, params, store, logger, metrics)
		}(p)
	}
	wg.Wait()
}

func shuffle(proxies []proxy.Proxy, seed *int64) {
	var r *rand.Rand
	if seed != nil {
		r = rand.New(rand.NewPCG(uint64(*seed), uint64(*seed)))
	} else {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	r.Shuffle(len(proxies), func(i, j int) {
		proxies[i], proxies[j] = proxies[j], proxies[i]
	})
}

func checkOne(ctx context.Context, p proxy.Proxy, params Params, store *storage.Storage, logger *logging.Logger, metrics Metrics) {
	if err := params.Gate.Acquire(ctx); err != nil {
		return
	}
	defer params.Gate.Release()

	start := time.Now()
	checked, err := probe(ctx, p, params)
	elapsed := time.Since(start)

	if err != nil {
		code := pherrors.ErrorProbeFailed
		if isTooManyOpenFiles(err) {
			code = pherrors.ErrorFdExhausted
			fdExhaustedOnce.Do(func() {
				logger.FdExhausted()
				metrics.FdExhausted()
			})
		}
		probeErr := pherrors.NewProbeError(code, "probe failed", p.AsString(true), err)
		logger.ProxyEvicted(p.AsString(true), probeErr)
		metrics.ProxyEvicted(string(p.Protocol))
		_ = store.Remove(p)
		return
	}

	seconds := elapsed.Seconds()
	checked.Timeout = &seconds
	store.Update(checked)
	metrics.ProxyChecked(string(p.Protocol))
	metrics.CheckDuration(string(p.Protocol), seconds)

	logger.ProxyChecked(p.AsString(true), seconds, checked.IsAnonymous(params.RealIP))
}

// probe issues the single validating GET through p and derives exit_ip
// per params.CheckWebsiteType, following spec §4.6 steps 3-7. The
// returned Proxy carries ExitIP but not Timeout; the caller stamps Timeout
// from its own monotonic measurement so that semaphore queueing never
// perturbs the recorded latency.
func probe(ctx context.Context, p proxy.Proxy, params Params) (proxy.Proxy, error) {
	client, err := buildClient(p, params.Timeout)
	if err != nil {
		return proxy.Proxy{}, err
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.CheckWebsite, nil)
	if err != nil {
		return proxy.Proxy{}, err
	}
	req.Header.Set("User-Agent", checkUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return proxy.Proxy{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return proxy.Proxy{}, fmt.Errorf("checker: %s returned status %d", p.AsString(true), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return proxy.Proxy{}, err
	}

	result := p
	switch params.CheckWebsiteType {
	case classifier.HTTPBinIP:
		ip, err := extractHTTPBinIP(body)
		if err != nil {
			return proxy.Proxy{}, err
		}
		result.ExitIP = &ip
	case classifier.PlainIP:
		ip, err := parser.ParseIPv4(string(body))
		if err != nil {
			return proxy.Proxy{}, err
		}
		result.ExitIP = &ip
	default:
		result.ExitIP = nil
	}

	return result, nil
}

func extractHTTPBinIP(body []byte) (string, error) {
	var decoded struct {
		Origin string `json:"origin"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("checker: decoding httpbin body: %w", err)
	}
	return parser.ParseIPv4(decoded.Origin)
}

func isTooManyOpenFiles(err error) bool {
	return errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE)
}
