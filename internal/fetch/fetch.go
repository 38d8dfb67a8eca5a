// Package fetch provides the HTTP client used for article pages and
// images. It mimics a real browser's TLS fingerprint via utls to avoid
// bot detection, and refuses to connect to private address ranges.
package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0"

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64 // per-response body cap; 0 means unlimited

	// AllowPrivate disables the private-IP guard. Only tests against
	// loopback servers should set it.
	AllowPrivate bool

	// PlainTLS skips the utls fingerprint and uses the standard library
	// TLS stack. Tests with self-signed httptest servers set it together
	// with InsecureTLS.
	PlainTLS    bool
	InsecureTLS bool
}

// Client fetches pages and images.
type Client struct {
	http      *http.Client
	userAgent string
	maxBytes  int64
}

// New creates a Client from the given options.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	dialer := &net.Dialer{Timeout: opts.Timeout}
	dial := safeDialContext(dialer, opts.AllowPrivate)

	var transport http.RoundTripper
	if opts.PlainTLS {
		transport = &http.Transport{
			DialContext:     dial,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.InsecureTLS},
		}
	} else {
		transport = &browserTransport{
			dial: dial,
			h1:   &http.Transport{DialContext: dial},
			h2:   &http2.Transport{},
		}
	}

	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
	}
}

// Page downloads a URL and returns the response body.
func (c *Client) Page(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.8,en;q=0.5")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, rawURL)
	}

	body, err := readLimited(resp.Body, c.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// Image downloads an image URL and returns its bytes and MIME type.
// Non-2xx statuses and empty bodies are errors.
func (c *Client) Image(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body, c.maxBytes)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image body")
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.TrimSpace(mime)
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
		if i := strings.Index(mime, ";"); i >= 0 {
			mime = mime[:i]
		}
	}
	return data, mime, nil
}

// readLimited reads up to limit bytes from r, rejecting larger bodies.
// limit <= 0 reads without bound.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	// Read limit+1 bytes so overflow is detectable without a custom reader.
	lr := io.LimitReader(r, limit+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response body exceeds maximum allowed size (%d bytes)", limit)
	}
	return data, nil
}

// utlsConn wraps a utls.UConn and satisfies net.Conn plus the
// ConnectionState interface that net/http2 needs.
type utlsConn struct {
	*utls.UConn
}

func (c *utlsConn) ConnectionState() tls.ConnectionState {
	cs := c.UConn.ConnectionState()
	return tls.ConnectionState{
		Version:                    cs.Version,
		HandshakeComplete:          cs.HandshakeComplete,
		CipherSuite:                cs.CipherSuite,
		NegotiatedProtocol:         cs.NegotiatedProtocol,
		NegotiatedProtocolIsMutual: cs.NegotiatedProtocolIsMutual,
		ServerName:                 cs.ServerName,
		PeerCertificates:           cs.PeerCertificates,
		VerifiedChains:             cs.VerifiedChains,
		OCSPResponse:               cs.OCSPResponse,
		TLSUnique:                  cs.TLSUnique,
	}
}

// browserTransport dials HTTPS with a Firefox TLS fingerprint and routes
// the connection to an HTTP/1.1 or HTTP/2 transport based on ALPN.
type browserTransport struct {
	dial func(context.Context, string, string) (net.Conn, error)
	h1   *http.Transport
	h2   *http2.Transport
}

func (bt *browserTransport) dialUTLS(ctx context.Context, network, addr string) (net.Conn, string, error) {
	conn, err := bt.dial(ctx, network, addr)
	if err != nil {
		return nil, "", err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	tlsConn := utls.UClient(conn, &utls.Config{
		ServerName: host,
	}, utls.HelloFirefox_120)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, "", err
	}

	alpn := tlsConn.ConnectionState().NegotiatedProtocol
	return &utlsConn{tlsConn}, alpn, nil
}

func (bt *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return bt.h1.RoundTrip(req)
	}

	addr := req.URL.Host
	if !hasPort(addr) {
		addr = addr + ":443"
	}

	conn, alpn, err := bt.dialUTLS(req.Context(), "tcp", addr)
	if err != nil {
		return nil, err
	}

	if alpn == "h2" {
		h2conn, err := bt.h2.NewClientConn(conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return h2conn.RoundTrip(req)
	}

	// HTTP/1.1: inject the TLS conn into a one-shot transport.
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return conn, nil
		},
	}
	return transport.RoundTrip(req)
}

func hasPort(host string) bool {
	_, _, err := net.SplitHostPort(host)
	return err == nil
}
