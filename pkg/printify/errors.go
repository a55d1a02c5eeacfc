package printify

import (
	"errors"
	"fmt"
)

// ErrMissingToken indicates the client was configured without credentials.
var ErrMissingToken = errors.New("printify: api token is required")

// ErrNoShops indicates the account has no shops to resolve a shop id from.
var ErrNoShops = errors.New("printify: no shops found for this account")

// APIError is any non-2xx response from the Printify API. Calls are made
// at most once; there is no retry layer behind this error.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Status     string `json:"status"`
	Method     string `json:"method"`
	URL        string `json:"url"`
	Body       string `json:"body,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return "printify: api error"
	}
	return fmt.Sprintf("printify: %s %s failed: %s", e.Method, e.URL, e.Status)
}

func previewBody(b []byte, max int) string {
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}
