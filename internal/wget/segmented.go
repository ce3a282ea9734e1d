package wget

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/cognusion/go-timings"
	"go.uber.org/atomic"
)

// fetchState is the shared mutable state a segmented download's workers
// coordinate through: one mutex guarding {plan, pending queue}, an atomic
// counter for errors (so the adaptive controller can read error deltas
// lock-free), and the error list itself under the same mutex.
type fetchState struct {
	mu         sync.Mutex
	plan       *plan
	planPath   string
	outputPath string
	queue      []pendingSegment
	errs       []error
	errCount   atomic.Int64
	downloaded atomic.Int64
}

func newFetchState(p *plan, planPath, outputPath string) *fetchState {
	return &fetchState{
		plan:       p,
		planPath:   planPath,
		outputPath: outputPath,
		queue:      p.pending(),
	}
}

func (s *fetchState) popSegment() (pendingSegment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return pendingSegment{}, false
	}
	seg := s.queue[0]
	s.queue = s.queue[1:]
	return seg, true
}

func (s *fetchState) queueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *fetchState) markDone(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan.Ranges[index].Done = true
	return savePlan(s.planPath, s.plan)
}

func (s *fetchState) addError(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
	s.errCount.Inc()
}

func (s *fetchState) errorCount() int64 {
	return s.errCount.Load()
}

func (s *fetchState) errorList() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.errs))
	copy(out, s.errs)
	return out
}

// SegmentedFetchOptions configures FetchSegmented.
type SegmentedFetchOptions struct {
	Client      Client
	Headers     map[string]string
	Timeout     time.Duration
	MaxTries    int
	SegmentSize int64
	Workers     int
	Resume      bool
	OnBytes     func(n int64)
	OnThreads   func(n int)
	Cancel      *CancelFlag
	TimingsOut  *log.Logger
	DebugOut    *log.Logger

	// Adaptive controller knobs; zero AutoThreads means fixed-size pool.
	AutoThreads bool
	MinThreads  int
	MaxThreads  int
	AutoWindow  time.Duration
	AutoMinGain float64
}

// FetchSegmented adopts or creates a plan, ensures the output file has the
// right length, builds the pending queue, and runs workers (either a
// fixed-size pool or the adaptive controller) until the queue drains, an
// unrecoverable condition occurs, or cancellation fires. It returns the
// final plan (for status reporting) and any per-segment errors in the
// returned []error.
func FetchSegmented(ctx context.Context, url, outputPath string, totalSize int64, opts SegmentedFetchOptions) (*plan, []error, error) {
	timingsOut := loggerOrDiscard(opts.TimingsOut)
	defer timings.Track("segmented fetch "+outputPath, time.Now(), timingsOut)

	planPath := partsPathFor(outputPath)

	p, err := adoptOrCreatePlan(planPath, url, totalSize, opts.SegmentSize, opts.Resume)
	if err != nil {
		return nil, nil, err
	}

	if err := ensureOutputSize(outputPath, planPath, p, totalSize); err != nil {
		return nil, nil, err
	}

	state := newFetchState(p, planPath, outputPath)
	state.downloaded.Store(p.completedBytes())

	if len(state.queue) == 0 {
		return p, nil, nil
	}

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	workerOpts := workerOptions{
		url:      url,
		headers:  opts.Headers,
		timeout:  opts.Timeout,
		maxTries: opts.MaxTries,
		client:   client,
		cancel:   opts.Cancel,
		onBytes: func(n int64) {
			state.downloaded.Add(n)
			if opts.OnBytes != nil {
				opts.OnBytes(n)
			}
		},
	}

	if opts.AutoThreads {
		runAdaptiveController(ctx, state, workerOpts, opts)
	} else {
		workers := opts.Workers
		if workers < 1 {
			workers = 1
		}
		runFixedPool(ctx, state, workerOpts, workers, opts.OnThreads)
	}

	return state.plan, state.errorList(), nil
}

func adoptOrCreatePlan(planPath, url string, totalSize, segmentSize int64, resume bool) (*plan, error) {
	if resume {
		if p, err := loadPlan(planPath); err == nil {
			if p.TotalSize == totalSize {
				if p.SegmentSize == 0 && len(p.Ranges) > 0 {
					p.SegmentSize = p.Ranges[0].End - p.Ranges[0].Start + 1
				}
				return p, nil
			}
			// Plan mismatch: discard and fall through to create fresh.
		}
	}

	ranges := buildRanges(totalSize, segmentSize)
	p := &plan{URL: url, TotalSize: totalSize, SegmentSize: segmentSize, Ranges: ranges}
	if err := savePlan(planPath, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ensureOutputSize makes outputPath exactly totalSize bytes: create with
// preallocation, extend by truncation if shorter, or shrink and invalidate
// all Done flags if longer (any previous completion bits are stale).
func ensureOutputSize(outputPath, planPath string, p *plan, totalSize int64) error {
	info, err := os.Stat(outputPath)
	switch {
	case os.IsNotExist(err):
		f, cerr := os.Create(outputPath)
		if cerr != nil {
			return cerr
		}
		defer f.Close()
		return f.Truncate(totalSize)
	case err != nil:
		return err
	}

	switch {
	case info.Size() < totalSize:
		f, oerr := os.OpenFile(outputPath, os.O_WRONLY, 0o644)
		if oerr != nil {
			return oerr
		}
		defer f.Close()
		return f.Truncate(totalSize)
	case info.Size() > totalSize:
		f, oerr := os.OpenFile(outputPath, os.O_WRONLY, 0o644)
		if oerr != nil {
			return oerr
		}
		if terr := f.Truncate(totalSize); terr != nil {
			f.Close()
			return terr
		}
		f.Close()
		for i := range p.Ranges {
			p.Ranges[i].Done = false
		}
		return savePlan(planPath, p)
	}
	return nil
}

type workerOptions struct {
	url      string
	headers  map[string]string
	timeout  time.Duration
	maxTries int
	client   Client
	cancel   *CancelFlag
	onBytes  func(int64)
}

// windowSignal is a lightweight stop flag a measurement window raises to end
// a batch of workers without touching the process-wide CancelFlag.
type windowSignal struct {
	done atomic.Bool
}

func (w *windowSignal) Set()        { w.done.Store(true) }
func (w *windowSignal) IsSet() bool { return w.done.Load() }

// runFixedPool spawns min(workers, pending) workers sharing state's queue and
// waits for them all to finish.
func runFixedPool(ctx context.Context, state *fetchState, wo workerOptions, workers int, onThreads func(int)) {
	n := workers
	if qlen := state.queueLen(); n > qlen {
		n = qlen
	}
	if n < 1 {
		n = 1
	}
	if onThreads != nil {
		onThreads(n)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			segmentWorker(ctx, state, wo, nil)
		}()
	}
	wg.Wait()
}

// segmentWorker dequeues segments until the queue is empty, the window
// signal fires, or cancellation fires.
func segmentWorker(ctx context.Context, state *fetchState, wo workerOptions, window *windowSignal) {
	for {
		if wo.cancel.Cancelled() {
			return
		}
		if window != nil && window.IsSet() {
			return
		}
		seg, ok := state.popSegment()
		if !ok {
			return
		}
		if err := fetchOneSegment(ctx, state, wo, seg); err != nil {
			if err != ErrCancelled {
				state.addError(fmt.Errorf("segment %d-%d: %w", seg.Start, seg.End, err))
			}
		}
	}
}

// fetchOneSegment issues "Range: bytes=start-end" for one pending segment,
// retrying up to MaxTries with linear backoff, and writes the body at the
// segment's absolute offset. A 200 response to a non-zero-start range is a
// protocol violation treated as fatal for the segment.
func fetchOneSegment(ctx context.Context, state *fetchState, wo workerOptions, seg pendingSegment) error {
	length := seg.End - seg.Start + 1
	maxTries := wo.maxTries
	if maxTries < 1 {
		maxTries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxTries; attempt++ {
		if wo.cancel.Cancelled() {
			return ErrCancelled
		}

		reqCtx, cancel := context.WithTimeout(ctx, wo.timeout*time.Duration(attempt+1))
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, wo.url, nil)
		if err != nil {
			cancel()
			return err
		}
		applyHeaders(req, wo.headers)
		req.Header.Set("Range", rangeHeaderValue(seg.Start, seg.End))

		resp, err := wo.client.Do(req)
		cancel()
		if err != nil {
			lastErr = err
			wo.cancel.Sleep(time.Second)
			continue
		}

		if resp.StatusCode == http.StatusOK && seg.Start != 0 {
			resp.Body.Close()
			return ErrRangeRejected
		}

		f, err := os.OpenFile(state.outputPath, os.O_WRONLY, 0o644)
		if err != nil {
			resp.Body.Close()
			return err
		}
		written, copyErr := copySegmentBody(f, resp.Body, seg.Start, length, wo.cancel, wo.onBytes)
		syncErr := f.Sync()
		f.Close()
		resp.Body.Close()

		if wo.cancel.Cancelled() {
			return ErrCancelled
		}
		if copyErr == nil && syncErr == nil && written == length {
			return state.markDone(seg.Index)
		}
		switch {
		case copyErr != nil:
			lastErr = copyErr
		case syncErr != nil:
			lastErr = syncErr
		default:
			lastErr = io.ErrUnexpectedEOF
		}
		wo.cancel.Sleep(time.Second)
	}
	return lastErr
}

// copySegmentBody streams body into w at absolute offset start, chunkSize at
// a time, reporting progress and observing cancellation between chunks.
func copySegmentBody(w io.WriterAt, body io.Reader, start, length int64, cancel *CancelFlag, onBytes func(int64)) (int64, error) {
	offset := start
	var written int64
	sw := io.NewOffsetWriter(w, offset)
	for written < length {
		if cancel.Cancelled() {
			return written, ErrCancelled
		}
		want := int64(chunkSize)
		if remaining := length - written; remaining < want {
			want = remaining
		}
		n, err := io.CopyN(sw, body, want)
		written += n
		if n > 0 && onBytes != nil {
			onBytes(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
