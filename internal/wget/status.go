package wget

import (
	"context"
	"fmt"
)

// ParseSize exposes the size-suffix parser for the CLI layer's
// --segment-size flag validation.
func ParseSize(value string) (int64, error) {
	return parseSize(value)
}

// StatusFor implements the --status flag: probe the URL just enough to
// resolve its on-disk paths, then report the segment plan's progress without
// fetching any data. ok is true when the on-disk state shows a complete
// download; false for "no state" or "incomplete".
func StatusFor(rawURL string, opts *Options, pathFor func(finalURL, suggested string) string) (string, bool, error) {
	client := ensureClient(opts)
	probeRes, err := Probe(context.Background(), rawURL, ProbeOptions{
		Client:     client,
		Headers:    opts.requestHeaders(),
		Timeout:    opts.Timeout,
		MaxTries:   opts.MaxTries,
		TimingsOut: opts.TimingsOut,
		DebugOut:   opts.DebugOut,
	})
	if err != nil {
		return "", false, err
	}

	suggested := filenameFromContentDisposition(probeRes.ContentDisposition)
	finalPath := pathFor(probeRes.FinalURL, suggested)
	tempPath := tempDownloadPath(finalPath)
	planPath := partsPathFor(tempPath)

	if fileExists(finalPath) {
		size := fileSize(finalPath)
		if !probeRes.HasTotalSize || size >= probeRes.TotalSize {
			return fmt.Sprintf("%s: complete (%s)", finalPath, formatSize(size)), true, nil
		}
		return fmt.Sprintf("%s: present but smaller than server size (%s/%s)", finalPath, formatSize(size), formatSize(probeRes.TotalSize)), false, nil
	}

	if !fileExists(planPath) {
		if fileExists(tempPath) {
			return fmt.Sprintf("%s: partial, no segment plan (%s downloaded)", tempPath, formatSize(fileSize(tempPath))), false, nil
		}
		return fmt.Sprintf("%s: no state on disk", finalPath), false, nil
	}

	p, err := loadPlan(planPath)
	if err != nil {
		return "", false, err
	}
	st := statusFromPlan(planPath, p)
	return fmt.Sprintf("%s: %.2f%% (%d/%d segments, %s/%s)", st.FinalPath, st.Percent, st.RangesDone, st.RangesTotal, formatSize(st.Completed), formatSize(st.TotalSize)), st.RangesDone == st.RangesTotal && st.RangesTotal > 0, nil
}
