package checker

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/armon/go-socks5"
	"github.com/elazarl/goproxy"

	"github.com/proxyharvest/proxyharvest/internal/classifier"
	"github.com/proxyharvest/proxyharvest/internal/logging"
	"github.com/proxyharvest/proxyharvest/internal/proxy"
	"github.com/proxyharvest/proxyharvest/internal/storage"
)

func newHTTPProxyFixture(t *testing.T) (host string, port int, close func()) {
	t.Helper()
	handler := goproxy.NewProxyHttpServer()
	srv := httptest.NewServer(handler)

	parsed, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", srv.URL, err)
	}
	_, portStr, err := net.SplitHostPort(parsed.Host)
	if err != nil {
		t.Fatalf("net.SplitHostPort: %v", err)
	}
	portNum, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parsing port %q: %v", portStr, err)
	}
	return "127.0.0.1", portNum, srv.Close
}

func newSOCKS5Fixture(t *testing.T) (host string, port int, close func()) {
	t.Helper()
	server, err := socks5.New(&socks5.Config{})
	if err != nil {
		t.Fatalf("socks5.New: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	go server.Serve(listener)

	addr := listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, func() { listener.Close() }
}

// newAuthenticatedSOCKS5Fixture requires a username/password handshake,
// rejecting anonymous connections, so that an authenticated candidate can
// only pass its check if the dialer actually presents the credentials.
func newAuthenticatedSOCKS5Fixture(t *testing.T, user, pass string) (host string, port int, close func()) {
	t.Helper()
	creds := socks5.StaticCredentials{user: pass}
	auth := socks5.UserPassAuthenticator{Credentials: creds}
	server, err := socks5.New(&socks5.Config{AuthMethods: []socks5.Authenticator{auth}})
	if err != nil {
		t.Fatalf("socks5.New: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	go server.Serve(listener)

	addr := listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, func() { listener.Close() }
}

func TestCheckAllHTTPProxyHTTPBinBaseline(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"origin":"9.9.9.9"}`))
	}))
	defer backend.Close()

	proxyHost, proxyPort, closeProxy := newHTTPProxyFixture(t)
	defer closeProxy()

	store := storage.New(proxy.HTTP)
	candidate := proxy.Proxy{Protocol: proxy.HTTP, Host: proxyHost, Port: proxyPort}
	store.Add(candidate)

	params := Params{
		CheckWebsite:     backend.URL,
		CheckWebsiteType: classifier.HTTPBinIP,
		Timeout:          5 * time.Second,
		Gate:             NewGate(4),
	}

	CheckAll(context.Background(), store.Snapshot(), params, store, logging.Default(), nil)

	if store.Len() != 1 {
		t.Fatalf("store.Len() = %d, want 1 (proxy should survive a successful check)", store.Len())
	}
	snap := store.Snapshot()
	if !snap[0].IsChecked() {
		t.Errorf("expected proxy to be checked")
	}
	if snap[0].ExitIP == nil || *snap[0].ExitIP != "9.9.9.9" {
		t.Errorf("ExitIP = %v, want 9.9.9.9", snap[0].ExitIP)
	}
}

func TestCheckAllEvictsFailedProxy(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer backend.Close()

	store := storage.New(proxy.HTTP)
	// Nothing is listening on this port, so the probe must fail.
	candidate := proxy.Proxy{Protocol: proxy.HTTP, Host: "127.0.0.1", Port: 1}
	store.Add(candidate)

	params := Params{
		CheckWebsite:     backend.URL,
		CheckWebsiteType: classifier.Unknown,
		Timeout:          time.Second,
		Gate:             NewGate(4),
	}

	CheckAll(context.Background(), store.Snapshot(), params, store, logging.Default(), nil)

	if store.Len() != 0 {
		t.Fatalf("store.Len() = %d, want 0 after evicting a failed proxy", store.Len())
	}
}

func TestCheckAllSOCKS5ProxyPlainIPBaseline(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("9.9.9.9\n"))
	}))
	defer backend.Close()

	proxyHost, proxyPort, closeProxy := newSOCKS5Fixture(t)
	defer closeProxy()

	store := storage.New(proxy.SOCKS5)
	candidate := proxy.Proxy{Protocol: proxy.SOCKS5, Host: proxyHost, Port: proxyPort}
	store.Add(candidate)

	params := Params{
		CheckWebsite:     backend.URL,
		CheckWebsiteType: classifier.PlainIP,
		Timeout:          5 * time.Second,
		Gate:             NewGate(4),
	}

	CheckAll(context.Background(), store.Snapshot(), params, store, logging.Default(), nil)

	snap := store.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("store.Len() = %d, want 1", len(snap))
	}
	if snap[0].ExitIP == nil || *snap[0].ExitIP != "9.9.9.9" {
		t.Errorf("ExitIP = %v, want 9.9.9.9", snap[0].ExitIP)
	}
}

func TestCheckAllAuthenticatedSOCKS5ProxySucceeds(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("9.9.9.9\n"))
	}))
	defer backend.Close()

	user, pass := "alice", "s3cret"
	proxyHost, proxyPort, closeProxy := newAuthenticatedSOCKS5Fixture(t, user, pass)
	defer closeProxy()

	store := storage.New(proxy.SOCKS5)
	candidate := proxy.Proxy{Protocol: proxy.SOCKS5, Host: proxyHost, Port: proxyPort, Username: &user, Password: &pass}
	store.Add(candidate)

	params := Params{
		CheckWebsite:     backend.URL,
		CheckWebsiteType: classifier.PlainIP,
		Timeout:          5 * time.Second,
		Gate:             NewGate(4),
	}

	CheckAll(context.Background(), store.Snapshot(), params, store, logging.Default(), nil)

	// The fixture rejects unauthenticated handshakes, so surviving the
	// check proves the dialer actually presented the credentials.
	if store.Len() != 1 {
		t.Fatalf("store.Len() = %d, want 1 (authenticated proxy should survive its check)", store.Len())
	}
}
