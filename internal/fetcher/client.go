package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// maxFollowedRedirects bounds the chain walked when resolving a final location.
const maxFollowedRedirects = 10

// ClientOptions configures the HTTP client shared by all fetches.
type ClientOptions struct {
	// Proxy is an optional proxy address. "host:port" and "socks5://host:port"
	// use SOCKS5; "http://host:port" and "https://host:port" use an HTTP proxy.
	Proxy string

	// Cookie is a raw cookie string sent with every request.
	Cookie string

	// Headers are extra headers sent with every request.
	Headers map[string]string

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
}

// NewHTTPClient creates the client used for crawl requests. Only the
// configured cookie is sent; cookies set by responses are discarded. It never follows
// redirects; use FollowingClient for a client sharing the same transport that
// does.
func NewHTTPClient(opts ClientOptions) (*http.Client, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
		// Bodies are decoded by readBody so brotli is supported too.
		DisableCompression: true,
	}
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // Explicitly requested by the user
		}
	}

	if err := applyProxy(transport, opts.Proxy); err != nil {
		return nil, err
	}

	var rt http.RoundTripper = transport
	if opts.Cookie != "" || len(opts.Headers) > 0 {
		rt = &headerInjectingTransport{
			base:    transport,
			cookie:  opts.Cookie,
			headers: opts.Headers,
		}
	}

	// No cookie jar: a fetch must not depend on what earlier pages set.
	return &http.Client{
		Transport: rt,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// FollowingClient returns a copy of client that follows up to ten redirects.
func FollowingClient(client *http.Client) *http.Client {
	c := *client
	c.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxFollowedRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}
	return &c
}

// applyProxy configures transport to route through addr. An empty addr
// leaves the transport untouched.
func applyProxy(transport *http.Transport, addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	if !strings.Contains(addr, "://") {
		addr = "socks5://" + addr
	}

	u, err := url.Parse(addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}
	if !isValidProxyAddress(u.Host) {
		return fmt.Errorf("%w: %q", ErrInvalidProxy, addr)
	}

	switch u.Scheme {
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.DialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, address)
			}
			return dialer.Dial(network, address)
		}
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, u.Scheme)
	}
	return nil
}

// isValidProxyAddress checks that address is "host:port" with a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// headerInjectingTransport adds a cookie and custom headers to every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
