package wget

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/cognusion/go-timings"
)

// ProbeResult is everything an HTTP probe can learn about a target URL
// before any bytes are transferred.
type ProbeResult struct {
	FinalURL           string
	TotalSize          int64
	HasTotalSize       bool
	SupportsRange      bool
	ContentType        string
	LastModified       string
	ContentDisposition string
}

// ProbeOptions configures Probe.
type ProbeOptions struct {
	Client     Client
	Headers    map[string]string
	Timeout    time.Duration
	MaxTries   int
	TimingsOut *log.Logger
	DebugOut   *log.Logger
}

// Probe issues a HEAD request (following redirects), capturing Content-Length,
// Accept-Ranges, Content-Type, Last-Modified, and Content-Disposition. If any
// of those five is absent, it falls back to a ranged GET (bytes=0-0): a 206
// status or Content-Range header confirms range support and reveals total
// size. Retries up to MaxTries with a 1-second linear backoff and a
// per-attempt timeout of Timeout*(attempt+1). An unknown total size or
// unknown range support is a valid outcome, not an error.
func Probe(ctx context.Context, url string, opts ProbeOptions) (ProbeResult, error) {
	timingsOut := loggerOrDiscard(opts.TimingsOut)
	debugOut := loggerOrDiscard(opts.DebugOut)
	dlid := seq.NextHashID()
	defer timings.Track("["+dlid+"] probe", time.Now(), timingsOut)

	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	maxTries := opts.MaxTries
	if maxTries < 1 {
		maxTries = 1
	}

	result := ProbeResult{FinalURL: url}
	var lastErr error

	for attempt := 0; attempt < maxTries; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, opts.Timeout*time.Duration(attempt+1))
		req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, url, nil)
		if err != nil {
			cancel()
			return result, err
		}
		applyHeaders(req, opts.Headers)

		resp, err := client.Do(req)
		cancel()
		if err != nil {
			lastErr = err
			debugOut.Printf("[%s] HEAD attempt %d failed: %v\n", dlid, attempt, err)
			time.Sleep(time.Second)
			continue
		}
		resp.Body.Close()

		result.FinalURL = resp.Request.URL.String()
		if n, ok := parseContentLength(resp.Header.Get("Content-Length")); ok {
			result.TotalSize = n
			result.HasTotalSize = true
		}
		result.SupportsRange = resp.Header.Get("Accept-Ranges") == "bytes"
		result.ContentType = resp.Header.Get("Content-Type")
		result.LastModified = resp.Header.Get("Last-Modified")
		result.ContentDisposition = resp.Header.Get("Content-Disposition")
		lastErr = nil
		break
	}

	needsFallback := !result.HasTotalSize || !result.SupportsRange ||
		result.ContentType == "" || result.LastModified == "" || result.ContentDisposition == ""

	if needsFallback {
		for attempt := 0; attempt < maxTries; attempt++ {
			reqCtx, cancel := context.WithTimeout(ctx, opts.Timeout*time.Duration(attempt+1))
			req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
			if err != nil {
				cancel()
				return result, err
			}
			applyHeaders(req, opts.Headers)
			req.Header.Set("Range", "bytes=0-0")

			resp, err := client.Do(req)
			cancel()
			if err != nil {
				lastErr = err
				debugOut.Printf("[%s] range-fallback attempt %d failed: %v\n", dlid, attempt, err)
				time.Sleep(time.Second)
				continue
			}
			func() {
				defer resp.Body.Close()
				result.FinalURL = resp.Request.URL.String()
				if cr := resp.Header.Get("Content-Range"); cr != "" {
					if n, ok := parseContentRange(cr); ok {
						result.TotalSize = n
						result.HasTotalSize = true
					}
					result.SupportsRange = true
				} else if resp.StatusCode == http.StatusPartialContent {
					result.SupportsRange = true
				} else if !result.HasTotalSize {
					if n, ok := parseContentLength(resp.Header.Get("Content-Length")); ok {
						result.TotalSize = n
						result.HasTotalSize = true
					}
				}
				if result.ContentType == "" {
					result.ContentType = resp.Header.Get("Content-Type")
				}
				if result.LastModified == "" {
					result.LastModified = resp.Header.Get("Last-Modified")
				}
				if result.ContentDisposition == "" {
					result.ContentDisposition = resp.Header.Get("Content-Disposition")
				}
			}()
			lastErr = nil
			break
		}
	}

	if lastErr != nil {
		return result, lastErr
	}
	return result, nil
}

func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}
