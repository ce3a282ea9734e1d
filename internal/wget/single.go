package wget

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cognusion/go-timings"
)

// chunkSize is the fixed read/write chunk used by single-stream and
// segmented fetchers.
const chunkSize = 256 * 1024

// SingleFetchOptions configures FetchSingle.
type SingleFetchOptions struct {
	Client     Client
	Headers    map[string]string
	Timeout    time.Duration
	MaxTries   int
	ResumeFrom int64
	OnBytes    func(n int64) // called after each chunk write; n<0 signals a reset to 0
	Cancel     *CancelFlag
	TimingsOut *log.Logger
	DebugOut   *log.Logger
}

// FetchSingle opens one connection to url, sending "Range: bytes=N-" when
// ResumeFrom > 0, and streams the body into outputPath in chunkSize reads.
// If the server ignores the range and returns 200 while a resume was
// requested, it resets the output to empty and starts over. Retries up to
// MaxTries with linear backoff, observing cancellation between chunks and
// between retries. Returns true on success; false (with the partial file left
// in place) on unrecoverable failure or cancellation.
func FetchSingle(ctx context.Context, url, outputPath string, opts SingleFetchOptions) (bool, error) {
	timingsOut := loggerOrDiscard(opts.TimingsOut)
	debugOut := loggerOrDiscard(opts.DebugOut)
	dlid := seq.NextHashID()
	defer timings.Track("["+dlid+"] single fetch", time.Now(), timingsOut)

	maxTries := opts.MaxTries
	if maxTries < 1 {
		maxTries = 1
	}
	resumeFrom := opts.ResumeFrom

	for attempt := 0; attempt < maxTries; attempt++ {
		if opts.Cancel.Cancelled() {
			return false, nil
		}

		reqCtx, cancel := context.WithTimeout(ctx, opts.Timeout*time.Duration(attempt+1))
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			cancel()
			return false, err
		}
		applyHeaders(req, opts.Headers)
		if resumeFrom > 0 {
			req.Header.Set("Range", rangeHeaderValue(resumeFrom, -1))
		}

		ok, retryable, attemptErr := doSingleAttempt(req, outputPath, &resumeFrom, opts)
		cancel()
		if ok {
			return true, nil
		}
		if !retryable {
			return false, attemptErr
		}
		debugOut.Printf("[%s] attempt %d failed: %v\n", dlid, attempt, attemptErr)
		if attempt < maxTries-1 {
			opts.Cancel.Sleep(time.Second)
		}
	}
	return false, nil
}

// doSingleAttempt performs one GET+stream attempt. retryable=false means the
// caller should stop retrying (cancellation); otherwise err carries the cause.
func doSingleAttempt(req *http.Request, outputPath string, resumeFrom *int64, opts SingleFetchOptions) (ok bool, retryable bool, err error) {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, true, err
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch {
	case *resumeFrom > 0 && resp.StatusCode == http.StatusOK:
		// Server ignored our Range request: it's sending the whole body.
		*resumeFrom = 0
		if opts.OnBytes != nil {
			opts.OnBytes(-1) // signal reset; caller treats as downloaded=0
		}
		flags |= os.O_TRUNC
	case *resumeFrom > 0:
		flags |= os.O_APPEND
	default:
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(outputPath, flags, 0o644)
	if err != nil {
		return false, true, err
	}
	defer f.Close()

	for {
		if opts.Cancel.Cancelled() {
			return false, false, ErrCancelled
		}
		n, copyErr := io.CopyN(f, resp.Body, chunkSize)
		if n > 0 && opts.OnBytes != nil {
			opts.OnBytes(n)
		}
		if copyErr == io.EOF {
			return true, false, nil
		}
		if copyErr != nil {
			return false, true, copyErr
		}
	}
}

// rangeHeaderValue formats a "bytes=start-" or "bytes=start-end" range header.
func rangeHeaderValue(start, end int64) string {
	if end < 0 {
		return "bytes=" + strconv.FormatInt(start, 10) + "-"
	}
	return "bytes=" + strconv.FormatInt(start, 10) + "-" + strconv.FormatInt(end, 10)
}
