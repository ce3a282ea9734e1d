package wget

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/atomic"
)

// ProgressSnapshot tracks bytes downloaded so far, the start wall-clock, and
// the current worker count.
type ProgressSnapshot struct {
	Downloaded atomic.Int64
	Start      time.Time
	Threads    atomic.Int32
}

// NewProgressSnapshot returns a snapshot seeded with an initial byte count
// (e.g. bytes already completed on resume) and the current wall-clock.
func NewProgressSnapshot(initialBytes int64, threads int) *ProgressSnapshot {
	p := &ProgressSnapshot{Start: time.Now()}
	p.Downloaded.Store(initialBytes)
	p.Threads.Store(int32(threads))
	return p
}

// formatProgressLine renders "pct% Tn done/total rate/s ETA hh:mm:ss" (the ETA
// as mm:ss under an hour) when totalSize is known (>0), else "Tn done rate/s".
func formatProgressLine(downloaded, totalSize int64, start time.Time, threads int32) string {
	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 {
		elapsed = 0.001
	}
	rate := float64(downloaded) / elapsed
	threadText := ""
	if threads > 0 {
		threadText = fmt.Sprintf(" T%d", threads)
	}
	if totalSize > 0 {
		pct := float64(downloaded) / float64(totalSize) * 100
		remaining := totalSize - downloaded
		if remaining < 0 {
			remaining = 0
		}
		var eta float64
		if rate > 0 {
			eta = float64(remaining) / rate
		}
		return fmt.Sprintf("%6.2f%%%s %s/%s %s/s ETA %s",
			pct, threadText, formatSize(downloaded), formatSize(totalSize), formatSize(int64(rate)), formatETA(eta))
	}
	return fmt.Sprintf("%s %s %s/s", threadText, formatSize(downloaded), formatSize(int64(rate)))
}

// RunProgressReporter prints formatProgressLine to out every 0.5 seconds,
// carriage-returned in place, until cancel fires or stop is closed. It
// prints one final, newline-terminated line before returning.
func RunProgressReporter(out io.Writer, snapshot *ProgressSnapshot, totalSize int64, stop <-chan struct{}, cancel *CancelFlag) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			writeFinalLine(out, snapshot, totalSize)
			return
		case <-ticker.C:
			if cancel.Cancelled() {
				writeFinalLine(out, snapshot, totalSize)
				return
			}
			line := formatProgressLine(snapshot.Downloaded.Load(), totalSize, snapshot.Start, snapshot.Threads.Load())
			fmt.Fprint(out, "\r"+line)
		}
	}
}

func writeFinalLine(out io.Writer, snapshot *ProgressSnapshot, totalSize int64) {
	line := formatProgressLine(snapshot.Downloaded.Load(), totalSize, snapshot.Start, snapshot.Threads.Load())
	fmt.Fprint(out, "\r"+line+"\n")
}
