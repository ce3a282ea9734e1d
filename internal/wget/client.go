package wget

import (
	"net/http"
	"time"
)

// Client is an interface satisfied by *http.Client or *RetryClient, allowing
// tests to inject a deterministic fake transport.
type Client interface {
	Do(*http.Request) (*http.Response, error)
}

// newDefaultClient returns the Client this package uses to make individual
// GET/HEAD requests unless overridden.
func newDefaultClient(timeout time.Duration, maxTries int) Client {
	return NewRetryClient(maxTries, time.Second, timeout)
}
