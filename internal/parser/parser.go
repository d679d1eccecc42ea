// Package parser extracts Proxy values from arbitrary text, following
// proxy_scraper_checker's parsers.py regex pair: a broad pattern for
// scraped blobs and a stricter one for a single baseline-IP line.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/proxyharvest/proxyharvest/internal/proxy"
)

const (
	octet      = `(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])`
	firstOctet = `(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9][0-9]?)`
	ipv4       = firstOctet + `(?:\.` + octet + `){3}`
	port       = `(?:6553[0-5]|655[0-2][0-9]|65[0-4][0-9]{2}|6[0-4][0-9]{3}|[1-5][0-9]{4}|[1-9][0-9]{0,3})`
)

// proxyPattern mirrors PROXY_REGEX. Go's RE2 engine has no lookaround, so
// the pattern carries no boundary assertions at all: FindAll checks the
// byte before and the byte after each match against the raw text.
var proxyPattern = regexp.MustCompile(
	`(?i:(?P<protocol>https?|socks[45]):/{2})?` +
		`(?:(?P<username>[^\s:@]+):(?P<password>[^\s:@]+)@)?` +
		`(?P<host>` + ipv4 + `):(?P<port>` + port + `)`,
)

// ipv4Pattern mirrors IPV4_REGEX: an optional IPv6-style prefix terminated
// by a comma, optional surrounding whitespace, a mandatory IPv4 quad, and
// an optional port suffix that is accepted but never required.
var ipv4Pattern = regexp.MustCompile(
	`^(?:[0-9:A-Fa-f]+,)?\s*(?P<host>` + ipv4 + `)(?::` + port + `)?\s*$`,
)

var boundaryNonAlnum = func(c byte) bool {
	return !((c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z'))
}

// FindAll extracts every non-overlapping proxy occurrence in text. Matches
// must not be preceded or followed by a digit or letter, so that
// "x1.2.3.4:8080y" is rejected while " 1.2.3.4:8080 " is accepted.
func FindAll(text string) []proxy.Proxy {
	names := proxyPattern.SubexpNames()
	idx := func(name string) int {
		for i, n := range names {
			if n == name {
				return i
			}
		}
		return -1
	}
	protoIdx, userIdx, passIdx, hostIdx, portIdx := idx("protocol"), idx("username"), idx("password"), idx("host"), idx("port")

	var results []proxy.Proxy
	pos := 0
	for pos <= len(text) {
		loc := proxyPattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += pos
			}
		}
		matchStart, matchEnd := loc[0], loc[1]

		if matchStart > 0 && !boundaryNonAlnum(text[matchStart-1]) {
			pos = matchStart + 1
			continue
		}
		if matchEnd < len(text) && !boundaryNonAlnum(text[matchEnd]) {
			pos = matchStart + 1
			continue
		}

		p, ok := buildProxy(text, loc, protoIdx, userIdx, passIdx, hostIdx, portIdx)
		if ok {
			results = append(results, p)
		}
		if matchEnd == matchStart {
			pos = matchEnd + 1
		} else {
			pos = matchEnd
		}
	}
	return results
}

func groupText(text string, loc []int, groupIdx int) (string, bool) {
	if groupIdx < 0 || 2*groupIdx+1 >= len(loc) {
		return "", false
	}
	start, end := loc[2*groupIdx], loc[2*groupIdx+1]
	if start < 0 {
		return "", false
	}
	return text[start:end], true
}

// buildProxy leaves Protocol empty when a match carries no explicit
// scheme; the caller (the scraper stage) supplies the source's configured
// default protocol instead.
func buildProxy(text string, loc []int, protoIdx, userIdx, passIdx, hostIdx, portIdx int) (proxy.Proxy, bool) {
	host, ok := groupText(text, loc, hostIdx)
	if !ok {
		return proxy.Proxy{}, false
	}
	portStr, ok := groupText(text, loc, portIdx)
	if !ok {
		return proxy.Proxy{}, false
	}
	portNum, err := strconv.Atoi(portStr)
	if err != nil {
		return proxy.Proxy{}, false
	}

	p := proxy.Proxy{Host: host, Port: portNum}

	if protoStr, ok := groupText(text, loc, protoIdx); ok {
		p.Protocol = NormalizeProtocol(protoStr)
	}

	user, userOK := groupText(text, loc, userIdx)
	pass, passOK := groupText(text, loc, passIdx)
	if userOK && passOK {
		p.Username = &user
		p.Password = &pass
	}

	return p, true
}

// NormalizeProtocol folds https into http, per spec: HTTPS proxies are
// treated as HTTP CONNECT endpoints for the tunneling connector.
func NormalizeProtocol(s string) proxy.Protocol {
	switch strings.ToLower(s) {
	case "http", "https":
		return proxy.HTTP
	case "socks4":
		return proxy.SOCKS4
	case "socks5":
		return proxy.SOCKS5
	default:
		return proxy.Protocol(strings.ToLower(s))
	}
}

// ParseIPv4 parses the host out of a single "host[:port]" line, tolerating
// a leading IPv6-style prefix terminated by a comma and surrounding
// whitespace. Returns an error if the line does not match.
func ParseIPv4(s string) (string, error) {
	match := ipv4Pattern.FindStringSubmatch(s)
	if match == nil {
		return "", fmt.Errorf("parser: %q is not a bare IPv4 line", s)
	}
	hostIdx := ipv4Pattern.SubexpIndex("host")
	return match[hostIdx], nil
}
