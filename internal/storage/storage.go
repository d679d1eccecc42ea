// Package storage implements the de-duplicating in-memory proxy set (C3):
// O(1) add/remove/contains keyed by proxy identity, plus the grouped and
// counted views the output writer consumes.
package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/proxyharvest/proxyharvest/internal/proxy"
)

// Storage is a concurrency-safe set of Proxy values, de-duplicated by
// identity. C5 only adds; C6 only updates and removes; C5 completes before C6 starts,
// but both phases are internally guarded so each is race-free on its own.
type Storage struct {
	mu               sync.Mutex
	proxies          map[proxy.Identity]proxy.Proxy
	enabledProtocols map[proxy.Protocol]struct{}
}

// New returns an empty Storage with the given protocols pre-enabled, so
// that protocols configured but never populated still appear as empty
// groups in Grouped() and zero entries in Count().
func New(protocols ...proxy.Protocol) *Storage {
	enabled := make(map[proxy.Protocol]struct{}, len(protocols))
	for _, p := range protocols {
		enabled[p] = struct{}{}
	}
	return &Storage{
		proxies:          make(map[proxy.Identity]proxy.Proxy),
		enabledProtocols: enabled,
	}
}

// Add inserts p, recording its protocol as enabled even if it was not
// among the protocols New was constructed with (a source may override the
// default protocol per line).
func (s *Storage) Add(p proxy.Proxy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabledProtocols[p.Protocol] = struct{}{}
	s.proxies[p.Identity()] = p
}

// Remove deletes p. Removing a proxy not present is an error.
func (s *Storage) Remove(p proxy.Proxy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := p.Identity()
	if _, ok := s.proxies[id]; !ok {
		return fmt.Errorf("storage: proxy %s not present", p.AsString(true))
	}
	delete(s.proxies, id)
	return nil
}

// Update overwrites the stored copy of a proxy sharing p's identity,
// applying C6's exactly-once mutation of the observation fields.
func (s *Storage) Update(p proxy.Proxy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proxies[p.Identity()] = p
}

// Contains reports whether a proxy with p's identity is present.
func (s *Storage) Contains(p proxy.Proxy) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.proxies[p.Identity()]
	return ok
}

// Snapshot returns a point-in-time copy of every stored proxy, safe for the
// checker stage to range over while C3 continues to be mutated elsewhere
// (it will not be, once C6 starts, but the copy keeps the contract
// explicit regardless).
func (s *Storage) Snapshot() []proxy.Proxy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]proxy.Proxy, 0, len(s.proxies))
	for _, p := range s.proxies {
		out = append(out, p)
	}
	return out
}

func protocolRank(p proxy.Protocol) int {
	for i, canon := range proxy.CanonicalOrder {
		if canon == p {
			return i
		}
	}
	return len(proxy.CanonicalOrder)
}

// Grouped returns every proxy grouped by protocol. The result is a map, so
// it carries no order of its own; GroupOrder gives the display order
// (canonical [HTTP, SOCKS4, SOCKS5] first, override protocols after).
// Protocols enabled but never populated appear as empty slices.
func (s *Storage) Grouped() map[proxy.Protocol][]proxy.Proxy {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[proxy.Protocol][]proxy.Proxy)
	for proto := range s.enabledProtocols {
		result[proto] = nil
	}
	for _, p := range s.proxies {
		result[p.Protocol] = append(result[p.Protocol], p)
	}
	return result
}

// GroupOrder returns the protocol keys of Grouped in display order:
// canonical order first, then any override protocols sorted alphabetically
// for determinism.
func (s *Storage) GroupOrder() []proxy.Protocol {
	s.mu.Lock()
	enabled := make([]proxy.Protocol, 0, len(s.enabledProtocols))
	for proto := range s.enabledProtocols {
		enabled = append(enabled, proto)
	}
	s.mu.Unlock()

	sort.Slice(enabled, func(i, j int) bool {
		ri, rj := protocolRank(enabled[i]), protocolRank(enabled[j])
		if ri != rj {
			return ri < rj
		}
		return enabled[i] < enabled[j]
	})
	return enabled
}

// Count returns cardinality per protocol, with zero defaults for every
// enabled protocol.
func (s *Storage) Count() map[proxy.Protocol]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[proxy.Protocol]int, len(s.enabledProtocols))
	for proto := range s.enabledProtocols {
		counts[proto] = 0
	}
	for _, p := range s.proxies {
		counts[p.Protocol]++
	}
	return counts
}

// Len returns the total number of stored proxies.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.proxies)
}

// DropUnchecked removes every proxy whose Timeout is unset, the pre-save
// sweep C7 performs when checking is enabled.
func (s *Storage) DropUnchecked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.proxies {
		if !p.IsChecked() {
			delete(s.proxies, id)
		}
	}
}
