// Package proxy defines the Proxy value type at the center of the
// scrape-and-check pipeline: its identity, lifecycle state, and canonical
// string form.
package proxy

import (
	"fmt"
	"strings"
)

// Protocol is the canonical set of proxy protocols this pipeline
// understands. https is folded into Protocol HTTP at parse time: HTTP-type
// proxies are always tunneled via a CONNECT-capable transport regardless of
// whether the source advertised http or https.
type Protocol string

const (
	HTTP   Protocol = "http"
	SOCKS4 Protocol = "socks4"
	SOCKS5 Protocol = "socks5"
)

// CanonicalOrder is the fixed ordering used by every grouped or multi-file
// view of proxy storage and output.
var CanonicalOrder = []Protocol{HTTP, SOCKS4, SOCKS5}

// Proxy is the central entity: identity (protocol, host, port, username,
// password) plus two observation fields set only after a successful check.
// Proxy is a plain value; ProxyStorage owns its own copies.
type Proxy struct {
	Protocol Protocol
	Host     string // IPv4 dotted-quad
	Port     int    // 1..65535

	Username *string
	Password *string

	// Timeout and ExitIP are unset until a successful check (C6) mutates
	// them exactly once. They are excluded from identity and equality.
	Timeout *float64 // seconds
	ExitIP  *string
}

// Identity is the (protocol, host, port, username, password) tuple used for
// de-duplication and hashing. Proxy itself is not directly comparable with
// == because Username/Password are pointers; callers needing equality or a
// map key should use Identity().
type Identity struct {
	Protocol Protocol
	Host     string
	Port     int
	Username string
	Password string
}

// Identity returns the de-duplication key for p. Absent username/password
// collapse to the empty string, which is safe because the parser never
// admits an empty credential (password is required iff username is
// present, and neither may be the empty string).
func (p Proxy) Identity() Identity {
	var user, pass string
	if p.Username != nil {
		user = *p.Username
	}
	if p.Password != nil {
		pass = *p.Password
	}
	return Identity{Protocol: p.Protocol, Host: p.Host, Port: p.Port, Username: user, Password: pass}
}

// Equal reports whether p and other share an identity. Observation fields
// are ignored.
func (p Proxy) Equal(other Proxy) bool {
	return p.Identity() == other.Identity()
}

// IsChecked reports whether C6 has successfully probed this proxy.
func (p Proxy) IsChecked() bool {
	return p.Timeout != nil
}

// IsAnonymous reports whether exit_ip is known and differs from realIP.
// Anonymity is undefined when exit_ip is unknown; callers must not call
// this when the check-website type is UNKNOWN.
func (p Proxy) IsAnonymous(realIP string) bool {
	return p.ExitIP != nil && *p.ExitIP != realIP
}

// AsString renders the canonical textual form
// [proto://][user:pass@]host:port. The protocol, when included, is always
// lowercase.
func (p Proxy) AsString(includeProtocol bool) string {
	var b strings.Builder
	if includeProtocol {
		b.WriteString(strings.ToLower(string(p.Protocol)))
		b.WriteString("://")
	}
	if p.Username != nil && p.Password != nil {
		fmt.Fprintf(&b, "%s:%s@", *p.Username, *p.Password)
	}
	fmt.Fprintf(&b, "%s:%d", p.Host, p.Port)
	return b.String()
}

func (p Proxy) String() string {
	return p.AsString(true)
}
