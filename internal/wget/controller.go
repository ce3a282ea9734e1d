package wget

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cognusion/semaphore"
)

// runAdaptiveController holds the worker count constant for a measurement
// window, observes throughput and error deltas, and probes +1/-1 to find a
// worker count that maximises throughput without wasted parallelism or
// induced errors.
func runAdaptiveController(ctx context.Context, state *fetchState, wo workerOptions, opts SegmentedFetchOptions) {
	minThreads := opts.MinThreads
	if minThreads < 1 {
		minThreads = 1
	}
	maxThreads := opts.MaxThreads
	if maxThreads < minThreads {
		maxThreads = minThreads
	}
	window := opts.AutoWindow
	if window <= 0 {
		window = 30 * time.Second
	}
	minGain := opts.AutoMinGain
	if minGain < 0 {
		minGain = 0
	}

	currentThreads := clampInt(opts.Workers, minThreads, maxThreads)
	baselineThreads := currentThreads
	var baselineRate float64
	haveBaseline := false

	debugOut := loggerOrDiscard(opts.DebugOut)

	for {
		if wo.cancel.Cancelled() {
			return
		}
		queueLen := state.queueLen()
		if queueLen == 0 {
			return
		}

		if opts.OnThreads != nil {
			opts.OnThreads(currentThreads)
		}

		startBytes := state.downloaded.Load()
		startErrors := state.errorCount()
		startTime := time.Now()

		workerCount := currentThreads
		if workerCount > queueLen {
			workerCount = queueLen
		}

		runWindow(ctx, state, wo, workerCount, window, debugOut)

		elapsed := time.Since(startTime).Seconds()
		if elapsed <= 0 {
			elapsed = 0.001
		}
		rate := float64(state.downloaded.Load()-startBytes) / elapsed
		errorsDelta := state.errorCount() - startErrors
		queueEmpty := state.queueLen() == 0

		switch {
		case errorsDelta > 0:
			if baselineThreads > minThreads {
				baselineThreads--
			}
			currentThreads = baselineThreads
			debugOut.Printf("auto-threads: errors observed, reducing to %d\n", currentThreads)

		case !haveBaseline:
			baselineRate = rate
			baselineThreads = currentThreads
			haveBaseline = true
			if baselineThreads < maxThreads {
				currentThreads = baselineThreads + 1
			}

		case currentThreads == baselineThreads:
			switch {
			case baselineThreads < maxThreads:
				currentThreads = baselineThreads + 1
			case baselineThreads > minThreads:
				currentThreads = baselineThreads - 1
			}

		default:
			improved := rate > 0
			if baselineRate > 0 {
				improved = rate >= baselineRate*(1.0+minGain)
			}
			if improved {
				baselineThreads = currentThreads
				baselineRate = rate
				if baselineThreads < maxThreads {
					currentThreads = baselineThreads + 1
				}
			} else if currentThreads > baselineThreads && baselineThreads > minThreads {
				currentThreads = baselineThreads - 1
			} else {
				currentThreads = baselineThreads
			}
		}

		currentThreads = clampInt(currentThreads, minThreads, maxThreads)

		if queueEmpty {
			return
		}
	}
}

// runWindow spawns workerCount workers sharing state's queue and a
// semaphore-bounded slot set, sleeps in 0.2s steps until window elapses, the
// queue drains, or cancellation fires, then signals workers to stop and
// joins them.
func runWindow(ctx context.Context, state *fetchState, wo workerOptions, workerCount int, window time.Duration, debugOut *log.Logger) {
	if workerCount < 1 {
		workerCount = 1
	}
	sem := semaphore.NewSemaphore(workerCount)
	signal := &windowSignal{}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		sem.Lock()
		wg.Add(1)
		go func() {
			defer sem.Unlock()
			defer wg.Done()
			segmentWorker(ctx, state, wo, signal)
		}()
	}

	deadline := time.Now().Add(window)
	for {
		if wo.cancel.Cancelled() {
			break
		}
		if time.Now().After(deadline) {
			break
		}
		if state.queueLen() == 0 {
			break
		}
		wo.cancel.Sleep(200 * time.Millisecond)
	}

	signal.Set()
	wg.Wait()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
