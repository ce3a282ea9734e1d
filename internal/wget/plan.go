package wget

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// segmentRange is one [start, end] (inclusive) byte range and its completion bit.
type segmentRange struct {
	Start int64
	End   int64
	Done  bool
}

// plan is the persisted record of all segments and their completion state
// for one download.
type plan struct {
	URL         string
	TotalSize   int64
	SegmentSize int64
	Ranges      []segmentRange
}

// buildRanges clamps segmentSize into [1, totalSize] and emits consecutive
// inclusive [start, end] byte ranges of that size, the last possibly shorter.
func buildRanges(totalSize, segmentSize int64) []segmentRange {
	if segmentSize < 1 {
		segmentSize = 1
	}
	if segmentSize > totalSize {
		segmentSize = totalSize
	}
	if segmentSize < 1 {
		segmentSize = 1
	}

	var ranges []segmentRange
	start := int64(0)
	for start < totalSize {
		end := start + segmentSize - 1
		if end > totalSize-1 {
			end = totalSize - 1
		}
		ranges = append(ranges, segmentRange{Start: start, End: end})
		start = end + 1
	}
	return ranges
}

// completedBytes sums the length of every segment marked done.
func (p *plan) completedBytes() int64 {
	var total int64
	for _, r := range p.Ranges {
		if r.Done {
			total += r.End - r.Start + 1
		}
	}
	return total
}

// pendingSegment is the index and bounds of one segment not yet done; pending
// returns them in plan order.
type pendingSegment struct {
	Index int
	Start int64
	End   int64
}

func (p *plan) pending() []pendingSegment {
	var out []pendingSegment
	for i, r := range p.Ranges {
		if !r.Done {
			out = append(out, pendingSegment{Index: i, Start: r.Start, End: r.End})
		}
	}
	return out
}

// tempDownloadPath / partsPathFor (urlutil.go) compose the two on-disk names
// for one in-progress download: "<final>.par" (data) and "<final>.par.parts"
// (plan).

// savePlan writes the plan to path atomically: write to path+".tmp", then
// rename over path. The on-disk encoding is a compact, sorted, deterministic
// textual record (one "key=value" line per field, ranges one per line),
// chosen over JSON so the format stays trivially diffable and dependency-free
// while remaining just as deterministic as the original tool's sorted-key JSON.
func savePlan(path string, p *plan) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "url=%s\n", p.URL)
	fmt.Fprintf(w, "total_size=%d\n", p.TotalSize)
	fmt.Fprintf(w, "segment_size=%d\n", p.SegmentSize)
	for _, r := range p.Ranges {
		done := 0
		if r.Done {
			done = 1
		}
		fmt.Fprintf(w, "range=%d,%d,%d\n", r.Start, r.End, done)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// loadPlan reads and validates a persisted plan. It rejects any record whose
// total_size or range elements are malformed, whose ranges are negative,
// whose end < start, or whose total_size/segment_size is non-integer.
func loadPlan(path string) (*plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := &plan{}
	sawTotal := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w: malformed line %q", ErrPlanCorrupt, line)
		}
		switch key {
		case "url":
			p.URL = value
		case "total_size":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: bad total_size", ErrPlanCorrupt)
			}
			p.TotalSize = n
			sawTotal = true
		case "segment_size":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: bad segment_size", ErrPlanCorrupt)
			}
			p.SegmentSize = n
		case "range":
			parts := strings.Split(value, ",")
			if len(parts) != 3 {
				return nil, fmt.Errorf("%w: bad range %q", ErrPlanCorrupt, value)
			}
			start, err1 := strconv.ParseInt(parts[0], 10, 64)
			end, err2 := strconv.ParseInt(parts[1], 10, 64)
			doneFlag, err3 := strconv.ParseInt(parts[2], 10, 64)
			if err1 != nil || err2 != nil || err3 != nil {
				return nil, fmt.Errorf("%w: non-integer range %q", ErrPlanCorrupt, value)
			}
			if start < 0 || end < start {
				return nil, fmt.Errorf("%w: invalid range %d-%d", ErrPlanCorrupt, start, end)
			}
			p.Ranges = append(p.Ranges, segmentRange{Start: start, End: end, Done: doneFlag != 0})
		default:
			// Unknown keys are ignored for forward compatibility.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawTotal {
		return nil, fmt.Errorf("%w: missing total_size", ErrPlanCorrupt)
	}
	sort.Slice(p.Ranges, func(i, j int) bool { return p.Ranges[i].Start < p.Ranges[j].Start })
	return p, nil
}

// planStatus is a snapshot of a plan's progress for --status reporting.
type planStatus struct {
	Path             string
	URL              string
	TotalSize        int64
	Completed        int64
	Percent          float64
	RangesDone       int
	RangesTotal      int
	SegmentSize      int64
	TempPath         string
	FinalPath        string
}

// statusFromPlan computes a planStatus purely from the plan and its path.
func statusFromPlan(planPath string, p *plan) planStatus {
	completed := p.completedBytes()
	var pct float64
	if p.TotalSize > 0 {
		pct = float64(completed) / float64(p.TotalSize) * 100
	}
	done := 0
	for _, r := range p.Ranges {
		if r.Done {
			done++
		}
	}
	segSize := p.SegmentSize
	if segSize == 0 && len(p.Ranges) > 0 {
		segSize = p.Ranges[0].End - p.Ranges[0].Start + 1
	}

	tempPath := strings.TrimSuffix(planPath, ".parts")
	finalPath := strings.TrimSuffix(tempPath, ".par")

	return planStatus{
		Path:        planPath,
		URL:         p.URL,
		TotalSize:   p.TotalSize,
		Completed:   completed,
		Percent:     pct,
		RangesDone:  done,
		RangesTotal: len(p.Ranges),
		SegmentSize: segSize,
		TempPath:    tempPath,
		FinalPath:   finalPath,
	}
}
