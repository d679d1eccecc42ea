package output

import (
	"testing"

	"github.com/proxyharvest/proxyharvest/internal/proxy"
)

func timeoutPtr(v float64) *float64 { return &v }

func TestSortByNaturalOrdersByProtocolThenHostThenPort(t *testing.T) {
	proxies := []proxy.Proxy{
		{Protocol: proxy.SOCKS5, Host: "1.1.1.1", Port: 1080},
		{Protocol: proxy.HTTP, Host: "2.2.2.2", Port: 80},
		{Protocol: proxy.HTTP, Host: "1.2.3.4", Port: 8080},
		{Protocol: proxy.HTTP, Host: "1.2.3.4", Port: 80},
		{Protocol: proxy.SOCKS4, Host: "9.9.9.9", Port: 1},
	}
	SortBy(proxies, false)

	// natural keys on protocol_value (SOCKS4=1, SOCKS5=2, HTTP=3), the
	// ground-truth original's enum order, distinct from the canonical
	// HTTP-first order used for grouping.
	want := []string{
		"socks4://9.9.9.9:1",
		"socks5://1.1.1.1:1080",
		"http://1.2.3.4:80",
		"http://1.2.3.4:8080",
		"http://2.2.2.2:80",
	}
	for i, p := range proxies {
		if got := p.AsString(true); got != want[i] {
			t.Errorf("natural()[%d] = %q, want %q", i, got, want[i])
		}
	}
}

func TestSortByNaturalComparesOctetsNumericallyNotLexically(t *testing.T) {
	proxies := []proxy.Proxy{
		{Protocol: proxy.HTTP, Host: "1.2.30.4", Port: 1},
		{Protocol: proxy.HTTP, Host: "1.2.4.4", Port: 1},
	}
	SortBy(proxies, false)

	if proxies[0].Host != "1.2.4.4" {
		t.Errorf("expected numeric octet comparison to place 1.2.4.4 before 1.2.30.4, got order %v, %v", proxies[0].Host, proxies[1].Host)
	}
}

func TestSortBySpeedOrdersAscendingAndUncheckedLast(t *testing.T) {
	proxies := []proxy.Proxy{
		{Protocol: proxy.HTTP, Host: "1.1.1.1", Port: 1, Timeout: timeoutPtr(0.5)},
		{Protocol: proxy.HTTP, Host: "2.2.2.2", Port: 1}, // unchecked
		{Protocol: proxy.HTTP, Host: "3.3.3.3", Port: 1, Timeout: timeoutPtr(0.1)},
	}
	SortBy(proxies, true)

	if proxies[0].Host != "3.3.3.3" || proxies[1].Host != "1.1.1.1" {
		t.Fatalf("checked proxies not in ascending timeout order: %v", proxies)
	}
	if proxies[2].Host != "2.2.2.2" {
		t.Errorf("unchecked proxy must sort last, got order %v", proxies)
	}
}

func TestSortByStableAcrossEqualSpeedKeys(t *testing.T) {
	proxies := []proxy.Proxy{
		{Protocol: proxy.HTTP, Host: "1.1.1.1", Port: 1, Timeout: timeoutPtr(0.2)},
		{Protocol: proxy.HTTP, Host: "2.2.2.2", Port: 1, Timeout: timeoutPtr(0.2)},
	}
	SortBy(proxies, true)

	if proxies[0].Host != "1.1.1.1" || proxies[1].Host != "2.2.2.2" {
		t.Errorf("equal-timeout proxies should keep their relative order, got %v", proxies)
	}
}
