package utils

import (
	"net/http"
	"time"
)

type authTransport struct {
	base      http.RoundTripper
	token     string
	userAgent string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// NewAuthenticatedHTTPClient returns an *http.Client that attaches the
// bearer token and a default User-Agent to every request. The timeout is
// generous because image uploads ride through the same client.
func NewAuthenticatedHTTPClient(token, userAgent string, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &authTransport{
			base:      http.DefaultTransport,
			token:     token,
			userAgent: userAgent,
		},
	}
}
