package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"
)

const (
	// maxRedirects caps redirect chains. Jcink answers searches with a
	// meta refresh rather than a 3xx, so real chains are short.
	maxRedirects = 10

	defaultTimeout     = 30 * time.Second
	defaultMaxBodySize = 5 * 1024 * 1024
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Client fetches pages from a board.
// It is safe for concurrent use; requests to the same host are spaced by
// the configured interval no matter how many goroutines share the client.
type Client struct {
	httpClient  *http.Client
	proxyAddr   string
	userAgent   string
	cookie      string
	headers     map[string]string
	interval    time.Duration
	maxBodySize int64
	forced      encoding.Encoding
	logger      *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout     time.Duration
	interval    time.Duration
	proxyAddr   string
	userAgent   string
	cookie      string
	headers     map[string]string
	maxBodySize int64
	charset     string
	logger      *slog.Logger
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithInterval sets the minimum delay between requests to one host.
// Zero disables rate limiting.
func WithInterval(d time.Duration) Option {
	return func(o *clientOptions) {
		o.interval = d
	}
}

// WithProxy routes all connections through a SOCKS5 proxy at "host:port".
func WithProxy(addr string) Option {
	return func(o *clientOptions) {
		o.proxyAddr = addr
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *clientOptions) {
		o.userAgent = ua
	}
}

// WithCookie sends a raw cookie string with every request.
func WithCookie(cookie string) Option {
	return func(o *clientOptions) {
		o.cookie = cookie
	}
}

// WithHeaders sends extra headers with every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *clientOptions) {
		o.headers = headers
	}
}

// WithMaxBodySize sets the largest response body accepted. A larger body
// fails the request with ErrBodyTooLarge.
func WithMaxBodySize(n int64) Option {
	return func(o *clientOptions) {
		o.maxBodySize = n
	}
}

// WithCharset forces the response encoding instead of detecting it.
// The name is a WHATWG encoding label such as "windows-1252".
func WithCharset(name string) Option {
	return func(o *clientOptions) {
		o.charset = name
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// NewClient creates a Client. It validates the proxy address but does
// not connect to it; call CheckProxy for that.
func NewClient(opts ...Option) (*Client, error) {
	o := clientOptions{
		timeout:     defaultTimeout,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.maxBodySize <= 0 {
		o.maxBodySize = defaultMaxBodySize
	}

	c := &Client{
		proxyAddr:   o.proxyAddr,
		userAgent:   o.userAgent,
		cookie:      o.cookie,
		headers:     o.headers,
		interval:    o.interval,
		maxBodySize: o.maxBodySize,
		logger:      o.logger,
		limiters:    make(map[string]*rate.Limiter),
	}

	if o.charset != "" {
		enc, err := htmlindex.Get(o.charset)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCharset, o.charset)
		}
		c.forced = enc
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}

	if o.proxyAddr != "" {
		if !isValidProxyAddress(o.proxyAddr) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", o.proxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	c.httpClient = &http.Client{
		Transport: &headerInjectingTransport{
			base:      transport,
			userAgent: o.userAgent,
			cookie:    o.cookie,
			headers:   o.headers,
		},
		Timeout: o.timeout,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	c.logger.Debug("client configured",
		"proxy", o.proxyAddr,
		"interval", o.interval,
		"cookie", o.cookie,
		"headers", o.headers,
	)

	return c, nil
}

// ProxyAddress returns the configured SOCKS5 proxy address, if any.
func (c *Client) ProxyAddress() string {
	return c.proxyAddr
}

// Get fetches rawURL and returns its body decoded to UTF-8.
func (c *Client) Get(ctx context.Context, rawURL string) (string, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil)
}

// Post submits form to rawURL and returns the response body decoded to UTF-8.
// A nil form sends an empty body.
func (c *Client) Post(ctx context.Context, rawURL string, form url.Values) (string, error) {
	return c.do(ctx, http.MethodPost, rawURL, form)
}

func (c *Client) do(ctx context.Context, method, rawURL string, form url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse request URL %s: %w", rawURL, err)
	}

	if err := c.limiterFor(u.Host).Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait interrupted: %w", err)
	}

	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return "", fmt.Errorf("failed to create %s request for %s: %w", method, rawURL, err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.logger.Debug("fetching", "method", method, "url", rawURL)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s failed: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{
			StatusCode: resp.StatusCode,
			URL:        rawURL,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response body from %s: %w", rawURL, err)
	}
	if int64(len(raw)) > c.maxBodySize {
		return "", fmt.Errorf("%w: %s is larger than %d bytes", ErrBodyTooLarge, rawURL, c.maxBodySize)
	}

	text, err := c.decode(raw, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("failed to decode response body from %s: %w", rawURL, err)
	}

	c.logger.Debug("fetched",
		"url", rawURL,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	return text, nil
}

// decode converts raw to UTF-8 using the forced encoding, the
// Content-Type charset, or a sniffed meta charset, in that order.
func (c *Client) decode(raw []byte, contentType string) (string, error) {
	enc := c.forced
	if enc == nil {
		var name string
		enc, name, _ = charset.DetermineEncoding(raw, contentType)
		if name == "utf-8" {
			return string(bytes.TrimPrefix(raw, utf8BOM)), nil
		}
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimPrefix(out, utf8BOM)), nil
}

// limiterFor returns the token bucket for host, creating it on first use.
func (c *Client) limiterFor(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.limiters[host]; ok {
		return l
	}

	limit := rate.Inf
	if c.interval > 0 {
		limit = rate.Every(c.interval)
	}
	l := rate.NewLimiter(limit, 1)
	c.limiters[host] = l
	return l
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// headerInjectingTransport wraps an http.RoundTripper to inject
// the user agent, custom headers and cookies into every request.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	cookie    string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}

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
