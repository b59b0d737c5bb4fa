package networking

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/notewell/notewell-go/pkg/errors"
)

const (
	// DefaultMaxResponseSize is the maximum response body size (1MB).
	DefaultMaxResponseSize = 1024 * 1024

	// DefaultErrorPreviewSize is the maximum size of error body preview in HTTPError.
	DefaultErrorPreviewSize = 1024

	// ContentTypeFormURLEncoded is the form-urlencoded content type.
	ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"
)

// PostForm performs a POST request with a form-urlencoded body and parses the
// form-urlencoded response body. Token endpoints of the delegated-auth
// handshake speak this encoding in both directions.
//
// Transport failures are returned as transport errors from pkg/errors;
// non-200 responses are returned as *HTTPError.
func PostForm(
	ctx context.Context,
	client HTTPClient,
	requestURL string,
	formData url.Values,
) (url.Values, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, requestURL, strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, errors.NewTransportError("failed to create request", err)
	}
	req.Header.Set("Content-Type", ContentTypeFormURLEncoded)

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.NewTransportError("request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Read body with size limit
	body, err := io.ReadAll(io.LimitReader(resp.Body, DefaultMaxResponseSize))
	if err != nil {
		return nil, errors.NewTransportError("failed to read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyPreview := string(body)
		if len(bodyPreview) > DefaultErrorPreviewSize {
			bodyPreview = bodyPreview[:DefaultErrorPreviewSize]
		}
		return nil, NewHTTPError(resp.StatusCode, requestURL, bodyPreview)
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, errors.NewTransportError("failed to parse response body", err)
	}

	return values, nil
}
