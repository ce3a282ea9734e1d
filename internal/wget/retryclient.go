package wget

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eapache/go-resiliency/retrier"
)

// ErrStatusNope is registered as non-retriable with the retrier's blacklist
// classifier. Do returns 4xx responses to the caller directly rather than as
// this error.
var ErrStatusNope error = errors.New("non-retriable HTTP status received")

// RetryClient wraps an *http.Client with constant-backoff retries: one first
// attempt plus up to `retries` more, `every` apart, each attempt timing out
// after timeout.
type RetryClient struct {
	client  *http.Client
	timeout time.Duration
	retrier *retrier.Retrier
}

// NewRetryClient returns a RetryClient that retries a failed request up to
// retries times, every `every`, timing each attempt out after `timeout`.
func NewRetryClient(retries int, every, timeout time.Duration) *RetryClient {
	if retries < 1 {
		retries = 1
	}
	b := make(retrier.BlacklistClassifier, 1)
	b[0] = ErrStatusNope

	return &RetryClient{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		retrier: retrier.New(retrier.ConstantBackoff(retries, every), b),
	}
}

// Do issues req, retrying on transient failure or 5xx per the RetryClient's rules.
// Responses below 500, 4xx included, are not retried and are returned
// immediately as a successful round trip so callers can inspect the status
// themselves.
func (w *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var ret *http.Response

	try := func() error {
		resp, tryErr := w.client.Do(req)
		if tryErr != nil {
			return tryErr
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return fmt.Errorf("server error: %s", resp.Status)
		}
		ret = resp
		return nil
	}

	if err := w.retrier.Run(try); err != nil {
		return nil, err
	}
	return ret, nil
}
