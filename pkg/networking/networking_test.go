package networking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notewell/notewell-go/pkg/errors"
)

func TestIsURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "valid https url",
			input:    "https://example.com",
			expected: true,
		},
		{
			name:     "valid http url",
			input:    "http://example.com",
			expected: true,
		},
		{
			name:     "valid https url with path",
			input:    "https://example.com/edam/note",
			expected: true,
		},
		{
			name:     "valid https url with port",
			input:    "https://example.com:8080",
			expected: true,
		},
		{
			name:     "empty string",
			input:    "",
			expected: false,
		},
		{
			name:     "invalid URL",
			input:    "not-a-url",
			expected: false,
		},
		{
			name:     "unsupported scheme",
			input:    "ftp://example.com",
			expected: false,
		},
		{
			name:     "missing host",
			input:    "https://",
			expected: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsURL(tt.input))
		})
	}
}

func TestValidatingTransport_RejectsPlainHTTP(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClientBuilder().Build()
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = client.Do(req) //nolint:bodyclose // request is expected to fail
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not HTTPS scheme")
}

func TestValidatingTransport_AllowHTTP(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClientBuilder().WithAllowHTTP(true).Build()
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUserAgentTransport(t *testing.T) {
	t.Parallel()

	var seenUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClientBuilder().
		WithAllowHTTP(true).
		WithUserAgent("Notewell/1.0 (linux; test)").
		Build()
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "Notewell/1.0 (linux; test)", seenUserAgent)
}

func TestPostForm(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "req-token", r.PostForm.Get("oauth_token"))

		w.Header().Set("Content-Type", ContentTypeFormURLEncoded)
		_, _ = w.Write([]byte("oauth_token=access-token&edam_userId=42"))
	}))
	defer server.Close()

	client := NewHTTPClientBuilder().WithAllowHTTP(true).Build()
	values, err := PostForm(context.Background(), client, server.URL, url.Values{
		"oauth_token": {"req-token"},
	})
	require.NoError(t, err)

	assert.Equal(t, "access-token", values.Get("oauth_token"))
	assert.Equal(t, "42", values.Get("edam_userId"))
}

func TestPostForm_HTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewHTTPClientBuilder().WithAllowHTTP(true).Build()
	_, err := PostForm(context.Background(), client, server.URL, url.Values{})
	require.Error(t, err)
	assert.True(t, IsHTTPError(err, http.StatusUnauthorized))
}

func TestPostForm_TransportError(t *testing.T) {
	t.Parallel()

	client := NewHTTPClientBuilder().
		WithAllowHTTP(true).
		WithTimeout(250 * time.Millisecond).
		Build()

	// Nothing listens on this address.
	_, err := PostForm(context.Background(), client, "http://127.0.0.1:1/token", url.Values{})
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
}
