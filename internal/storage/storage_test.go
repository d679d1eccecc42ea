package storage

import (
	"testing"

	"github.com/proxyharvest/proxyharvest/internal/proxy"
)

func mkProxy(proto proxy.Protocol, host string, port int) proxy.Proxy {
	return proxy.Proxy{Protocol: proto, Host: host, Port: port}
}

func TestAddDeduplicatesByIdentity(t *testing.T) {
	s := New(proxy.HTTP)
	s.Add(mkProxy(proxy.HTTP, "1.2.3.4", 8080))
	s.Add(mkProxy(proxy.HTTP, "1.2.3.4", 8080))

	if got := s.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1 after adding a duplicate identity twice", got)
	}
}

func TestRemoveMissingIsError(t *testing.T) {
	s := New()
	if err := s.Remove(mkProxy(proxy.HTTP, "1.2.3.4", 8080)); err == nil {
		t.Errorf("Remove() on an absent proxy returned nil error, want error")
	}
}

func TestGroupedIncludesEmptyEnabledProtocols(t *testing.T) {
	s := New(proxy.HTTP, proxy.SOCKS4, proxy.SOCKS5)
	s.Add(mkProxy(proxy.HTTP, "1.2.3.4", 8080))

	grouped := s.Grouped()
	if len(grouped[proxy.SOCKS4]) != 0 {
		t.Errorf("grouped[SOCKS4] = %v, want empty slice", grouped[proxy.SOCKS4])
	}
	if len(grouped[proxy.HTTP]) != 1 {
		t.Errorf("grouped[HTTP] = %v, want 1 entry", grouped[proxy.HTTP])
	}
}

func TestCountZeroDefaultsForEnabledProtocols(t *testing.T) {
	s := New(proxy.HTTP, proxy.SOCKS5)
	counts := s.Count()

	if counts[proxy.HTTP] != 0 || counts[proxy.SOCKS5] != 0 {
		t.Errorf("Count() = %v, want zero defaults for enabled protocols", counts)
	}
}

func TestDropUncheckedRemovesOnlyUnsetTimeout(t *testing.T) {
	s := New(proxy.HTTP)
	checked := mkProxy(proxy.HTTP, "1.2.3.4", 8080)
	timeout := 0.2
	checked.Timeout = &timeout
	unchecked := mkProxy(proxy.HTTP, "5.6.7.8", 8080)

	s.Add(checked)
	s.Add(unchecked)
	s.DropUnchecked()

	if s.Len() != 1 {
		t.Fatalf("Len() = %d after DropUnchecked, want 1", s.Len())
	}
	if !s.Contains(checked) {
		t.Errorf("expected checked proxy to survive DropUnchecked")
	}
}

func TestGroupOrderCanonicalFirst(t *testing.T) {
	s := New(proxy.SOCKS5, proxy.HTTP, proxy.SOCKS4)
	order := s.GroupOrder()

	want := []proxy.Protocol{proxy.HTTP, proxy.SOCKS4, proxy.SOCKS5}
	if len(order) != len(want) {
		t.Fatalf("GroupOrder() = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("GroupOrder()[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}
