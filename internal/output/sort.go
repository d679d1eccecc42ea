package output

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/proxyharvest/proxyharvest/internal/proxy"
)

// naturalProtocolValue mirrors proxy_types.py's enum values (SOCKS4=1,
// SOCKS5=2, HTTP=3), which is what sort.py's natural_sort_key actually
// keys on. This is deliberately a different order from
// proxy.CanonicalOrder (HTTP, SOCKS4, SOCKS5), which governs grouping and
// per-protocol file layout only — the original uses one order for
// PROTOCOL_ORDER and a different one for the natural line key.
func naturalProtocolValue(p proxy.Protocol) int {
	switch p {
	case proxy.SOCKS4:
		return 1
	case proxy.SOCKS5:
		return 2
	case proxy.HTTP:
		return 3
	default:
		return 4
	}
}

func octets(host string) [4]int {
	var out [4]int
	for i, part := range strings.SplitN(host, ".", 4) {
		if i >= 4 {
			break
		}
		n, _ := strconv.Atoi(part)
		out[i] = n
	}
	return out
}

// natural is `natural`: lexicographic over
// (protocol_value, host_octet_1..4, port), per spec §4.7.
func natural(proxies []proxy.Proxy) {
	sort.SliceStable(proxies, func(i, j int) bool {
		a, b := proxies[i], proxies[j]
		if ra, rb := naturalProtocolValue(a.Protocol), naturalProtocolValue(b.Protocol); ra != rb {
			return ra < rb
		}
		oa, ob := octets(a.Host), octets(b.Host)
		for k := range oa {
			if oa[k] != ob[k] {
				return oa[k] < ob[k]
			}
		}
		return a.Port < b.Port
	})
}

// bySpeed is `by_speed`: ascending timeout. Unchecked proxies (Timeout ==
// nil) sort last, treated as +Inf the way sort.timeout_sort_key does.
func bySpeed(proxies []proxy.Proxy) {
	sort.SliceStable(proxies, func(i, j int) bool {
		return timeoutOrInf(proxies[i]) < timeoutOrInf(proxies[j])
	})
}

func timeoutOrInf(p proxy.Proxy) float64 {
	if p.Timeout == nil {
		return math.Inf(1)
	}
	return *p.Timeout
}

// SortBy orders proxies in place by the active key (spec §4.7); both keys
// are total orders on checked proxies.
func SortBy(proxies []proxy.Proxy, bySpeedKey bool) {
	if bySpeedKey {
		bySpeed(proxies)
	} else {
		natural(proxies)
	}
}
