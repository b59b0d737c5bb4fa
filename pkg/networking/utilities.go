package networking

import (
	"fmt"
	"net/url"
)

// IsURL reports whether the string is a well-formed http or https URL with a
// host component.
func IsURL(s string) bool {
	parsed, err := url.Parse(s)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

// ValidateEndpointURL validates a service endpoint URL before it is used for
// a request.
func ValidateEndpointURL(endpoint string) error {
	if !IsURL(endpoint) {
		return fmt.Errorf("invalid endpoint URL: %s", endpoint)
	}
	return nil
}
