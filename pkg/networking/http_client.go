// Package networking builds the HTTP clients used for endpoint discovery and
// the delegated-authorization handshake.
package networking

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient is the subset of *http.Client the SDK depends on.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPTimeout is the default timeout for outgoing HTTP requests
const HTTPTimeout = 30 * time.Second

// ValidatingTransport is for validating URLs prior to request
type ValidatingTransport struct {
	Transport http.RoundTripper

	// AllowHTTP permits plain http URLs. Only sandbox deployments and tests
	// set this.
	AllowHTTP bool
}

// RoundTrip validates the request URL prior to forwarding
func (t *ValidatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	parsedURL, err := url.Parse(req.URL.String())
	if err != nil {
		return nil, fmt.Errorf("the supplied URL %s is malformed", req.URL.String())
	}

	if parsedURL.Scheme != "https" && !(t.AllowHTTP && parsedURL.Scheme == "http") {
		return nil, fmt.Errorf("the supplied URL %s is not HTTPS scheme", req.URL.String())
	}

	return t.Transport.RoundTrip(req)
}

// userAgentTransport attaches the client descriptor to every request
type userAgentTransport struct {
	transport http.RoundTripper
	userAgent string
}

// RoundTrip adds the User-Agent header and forwards the request
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	newReq := req.Clone(req.Context())
	newReq.Header.Set("User-Agent", t.userAgent)

	return t.transport.RoundTrip(newReq)
}

// HTTPClientBuilder provides a fluent interface for building HTTP clients
type HTTPClientBuilder struct {
	clientTimeout         time.Duration
	tlsHandshakeTimeout   time.Duration
	responseHeaderTimeout time.Duration
	userAgent             string
	allowHTTP             bool
}

// NewHTTPClientBuilder returns a new HTTPClientBuilder
func NewHTTPClientBuilder() *HTTPClientBuilder {
	return &HTTPClientBuilder{
		clientTimeout:         HTTPTimeout,
		tlsHandshakeTimeout:   10 * time.Second,
		responseHeaderTimeout: 10 * time.Second,
	}
}

// WithTimeout sets the overall request timeout
func (b *HTTPClientBuilder) WithTimeout(timeout time.Duration) *HTTPClientBuilder {
	if timeout > 0 {
		b.clientTimeout = timeout
	}
	return b
}

// WithUserAgent sets the User-Agent header attached to every request
func (b *HTTPClientBuilder) WithUserAgent(userAgent string) *HTTPClientBuilder {
	b.userAgent = userAgent
	return b
}

// WithAllowHTTP allows plain http endpoints (sandbox deployments and tests)
func (b *HTTPClientBuilder) WithAllowHTTP(allow bool) *HTTPClientBuilder {
	b.allowHTTP = allow
	return b
}

// Build creates the configured HTTP client
func (b *HTTPClientBuilder) Build() *http.Client {
	transport := &http.Transport{
		TLSHandshakeTimeout:   b.tlsHandshakeTimeout,
		ResponseHeaderTimeout: b.responseHeaderTimeout,
	}

	// Start with validation transport
	var clientTransport http.RoundTripper = &ValidatingTransport{
		Transport: transport,
		AllowHTTP: b.allowHTTP,
	}

	if b.userAgent != "" {
		clientTransport = &userAgentTransport{
			transport: clientTransport,
			userAgent: b.userAgent,
		}
	}

	return &http.Client{
		Transport: clientTransport,
		Timeout:   b.clientTimeout,
	}
}
