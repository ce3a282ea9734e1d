package wget

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Options collects every knob the core downloader exposes, independent of
// how the CLI layer gathers them.
type Options struct {
	OutputPath  string // -O; empty means derive from directory + filename
	Directory   string // -P
	Threads     int    // -t
	AutoThreads bool
	MinThreads  int
	MaxThreads  int
	AutoWindow  time.Duration
	AutoMinGain float64
	Resume      bool // -c
	Recursive   bool // -r
	MaxDepth    int
	NoParent    bool // -np
	Timestamp   bool // -N
	Overwrite   bool
	SegmentSize int64
	Headers     map[string]string
	UserAgent   string
	Timeout     time.Duration
	MaxTries    int
	Quiet       bool

	Client     Client
	Cancel     *CancelFlag
	Stdout     io.Writer
	TimingsOut *log.Logger
	DebugOut   *log.Logger
}

func (o *Options) requestHeaders() map[string]string {
	headers := map[string]string{"User-Agent": o.UserAgent}
	for k, v := range o.Headers {
		headers[k] = v
	}
	return headers
}

func (o *Options) logf(format string, args ...interface{}) {
	if o.Quiet {
		return
	}
	fmt.Fprintf(o.Stdout, format+"\n", args...)
}

// ResolveOutputPath picks the final on-disk path for a download: -O wins (as
// a literal path or, if it names/looks like a directory, a directory to
// place the suggested/derived filename into); otherwise Directory/filename.
func ResolveOutputPath(finalURL string, o *Options, suggested string) string {
	if o.OutputPath != "" {
		outputIsDir := len(o.OutputPath) > 0 && (o.OutputPath[len(o.OutputPath)-1] == '/' || o.OutputPath[len(o.OutputPath)-1] == os.PathSeparator)
		if fi, err := os.Stat(o.OutputPath); (err == nil && fi.IsDir()) || outputIsDir {
			name := suggested
			if name == "" {
				name = safeFilenameFromURL(finalURL)
			}
			return filepath.Join(o.OutputPath, name)
		}
		return o.OutputPath
	}
	name := suggested
	if name == "" {
		name = safeFilenameFromURL(finalURL)
	}
	return filepath.Join(o.Directory, name)
}

// DownloadResult reports the outcome of one URL's processing.
type DownloadResult struct {
	FinalURL    string
	FinalPath   string
	Skipped     bool
	SkipReason  string
	Downloaded  bool
	ContentType string
}

// DownloadOne runs the full single-URL decision tree: probe,
// conditional/resume/overwrite handling, single-or-segmented fetch
// selection, and finalize-on-completion. pathFor resolves the final output
// path for a probed URL (differs between the flat CLI mode and the
// recursive crawler's host-rooted layout).
func DownloadOne(ctx context.Context, rawURL string, opts *Options, pathFor func(finalURL, suggested string) string) (DownloadResult, error) {
	client := ensureClient(opts)
	probeRes, err := Probe(ctx, rawURL, ProbeOptions{
		Client:     client,
		Headers:    opts.requestHeaders(),
		Timeout:    opts.Timeout,
		MaxTries:   opts.MaxTries,
		TimingsOut: opts.TimingsOut,
		DebugOut:   opts.DebugOut,
	})
	if err != nil {
		return DownloadResult{}, fmt.Errorf("probing %s: %w", rawURL, err)
	}

	suggested := filenameFromContentDisposition(probeRes.ContentDisposition)
	finalPath := pathFor(probeRes.FinalURL, suggested)
	tempPath := tempDownloadPath(finalPath)
	planPath := partsPathFor(tempPath)
	result := DownloadResult{FinalURL: probeRes.FinalURL, FinalPath: finalPath, ContentType: probeRes.ContentType}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return result, err
	}

	lastModified, _ := parseHTTPDate(probeRes.LastModified)

	if opts.Overwrite {
		os.Remove(planPath)
		os.Remove(tempPath)
		os.Remove(finalPath)
	}

	if opts.Timestamp && lastModified > 0 {
		if fi, err := os.Stat(finalPath); err == nil {
			if fi.ModTime().Unix() >= int64(lastModified) {
				opts.logf("Not modified: %s", finalPath)
				result.Skipped = true
				result.SkipReason = "not-modified"
				return result, nil
			}
		}
	}

	if opts.Resume {
		handled, err := resumeDownload(ctx, probeRes, opts, client, finalPath, tempPath, planPath, lastModified, &result)
		if handled {
			return result, err
		}
	} else if !opts.Overwrite {
		if fileExists(planPath) || fileExists(tempPath) {
			opts.logf("Partial download found for %s; use -c to resume.", tempPath)
			result.Skipped = true
			result.SkipReason = "partial-exists"
			return result, ErrPartialStateConflict
		}
		if fi, err := os.Stat(finalPath); err == nil {
			if probeRes.HasTotalSize && fi.Size() >= probeRes.TotalSize {
				opts.logf("Skipping %s; already complete.", finalPath)
				result.Skipped = true
				result.SkipReason = "already-complete"
				return result, nil
			}
			opts.logf("File exists: %s; use -c to resume or --overwrite to restart.", finalPath)
			result.Skipped = true
			result.SkipReason = "exists"
			return result, ErrPartialStateConflict
		}
	}

	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}

	var success bool
	if probeRes.SupportsRange && probeRes.HasTotalSize && (threads > 1 || opts.AutoThreads) {
		opts.logf("Downloading %s to %s with %d threads.", probeRes.FinalURL, tempPath, threads)
		success, err = runSegmented(ctx, probeRes, opts, client, tempPath, false)
	} else {
		opts.logf("Downloading %s to %s.", probeRes.FinalURL, tempPath)
		success, err = runSingle(ctx, probeRes, opts, client, tempPath, 0)
	}
	if err != nil && success {
		// Defensive: treat as failure if an error slipped through alongside success.
		success = false
	}

	if success {
		if finalizeErr := finalizeDownload(tempPath, finalPath, lastModified); finalizeErr != nil {
			return result, finalizeErr
		}
		result.Downloaded = true
		return result, nil
	}
	opts.logf("Download incomplete for %s; run -c to resume.", tempPath)
	return result, err
}

// resumeDownload implements the -c branch of the decision tree: plan-based
// resume, partial-file resume, already-complete final file, or a
// non-resumable server with leftover state. handled=false means -c applies
// but none of its special cases matched, so the normal fresh-download path
// below should run instead.
func resumeDownload(ctx context.Context, probe ProbeResult, opts *Options, client Client, finalPath, tempPath, planPath string, lastModified float64, result *DownloadResult) (handled bool, err error) {
	if fileExists(planPath) && probe.SupportsRange && probe.HasTotalSize {
		opts.logf("Resuming %s using range metadata.", tempPath)
		success, ferr := runSegmented(ctx, probe, opts, client, tempPath, true)
		if success {
			if err := finalizeDownload(tempPath, finalPath, lastModified); err != nil {
				return true, err
			}
			result.Downloaded = true
			return true, nil
		}
		opts.logf("Download incomplete for %s; run -c to resume.", tempPath)
		return true, ferr
	}

	if fileExists(tempPath) && probe.SupportsRange {
		existing := fileSize(tempPath)
		if existing > 0 {
			opts.logf("Resuming %s at byte %d.", tempPath, existing)
			success, ferr := runSingle(ctx, probe, opts, client, tempPath, existing)
			if success {
				if err := finalizeDownload(tempPath, finalPath, lastModified); err != nil {
					return true, err
				}
				result.Downloaded = true
				return true, nil
			}
			opts.logf("Download incomplete for %s; run -c to resume.", tempPath)
			return true, ferr
		}
	}

	if fileExists(finalPath) && probe.SupportsRange && probe.HasTotalSize {
		existing := fileSize(finalPath)
		if existing >= probe.TotalSize {
			opts.logf("Skipping %s; already complete.", finalPath)
			result.Skipped = true
			result.SkipReason = "already-complete"
			return true, nil
		}
		if !fileExists(tempPath) {
			if err := os.Rename(finalPath, tempPath); err != nil {
				return true, err
			}
		}
		opts.logf("Resuming %s at byte %d.", tempPath, existing)
		success, ferr := runSingle(ctx, probe, opts, client, tempPath, existing)
		if success {
			if err := finalizeDownload(tempPath, finalPath, lastModified); err != nil {
				return true, err
			}
			result.Downloaded = true
			return true, nil
		}
		opts.logf("Download incomplete for %s; run -c to resume.", tempPath)
		return true, ferr
	}

	if !probe.SupportsRange && (fileExists(planPath) || fileExists(tempPath) || fileExists(finalPath)) {
		if fileExists(finalPath) && probe.HasTotalSize && fileSize(finalPath) >= probe.TotalSize {
			opts.logf("Skipping %s; already complete.", finalPath)
			result.Skipped = true
			result.SkipReason = "already-complete"
			return true, nil
		}
		opts.logf("Cannot resume %s; server does not support ranges.", finalPath)
		result.Skipped = true
		result.SkipReason = "no-range-support"
		return true, ErrNoRangeSupport
	}

	return false, nil
}

func runSegmented(ctx context.Context, probe ProbeResult, opts *Options, client Client, tempPath string, resume bool) (bool, error) {
	var alreadyDone int64
	if resume {
		if p, err := loadPlan(partsPathFor(tempPath)); err == nil && p.TotalSize == probe.TotalSize {
			alreadyDone = p.completedBytes()
		}
	}
	snapshot := NewProgressSnapshot(alreadyDone, opts.Threads)
	stop := startProgress(opts, snapshot, probe.TotalSize)
	defer close(stop)

	_, errs, err := FetchSegmented(ctx, probe.FinalURL, tempPath, probe.TotalSize, SegmentedFetchOptions{
		Client:      client,
		Headers:     opts.requestHeaders(),
		Timeout:     opts.Timeout,
		MaxTries:    opts.MaxTries,
		SegmentSize: opts.SegmentSize,
		Workers:     opts.Threads,
		Resume:      resume,
		OnBytes:     func(n int64) { snapshot.Downloaded.Add(n) },
		OnThreads:   func(n int) { snapshot.Threads.Store(int32(n)) },
		Cancel:      opts.Cancel,
		TimingsOut:  opts.TimingsOut,
		DebugOut:    opts.DebugOut,
		AutoThreads: opts.AutoThreads,
		MinThreads:  opts.MinThreads,
		MaxThreads:  opts.MaxThreads,
		AutoWindow:  opts.AutoWindow,
		AutoMinGain: opts.AutoMinGain,
	})
	if err != nil {
		return false, err
	}
	if opts.Cancel.Cancelled() {
		return false, nil
	}
	return len(errs) == 0, firstError(errs)
}

func runSingle(ctx context.Context, probe ProbeResult, opts *Options, client Client, tempPath string, resumeFrom int64) (bool, error) {
	snapshot := NewProgressSnapshot(resumeFrom, 1)
	stop := startProgress(opts, snapshot, probe.TotalSize)
	defer close(stop)

	ok, err := FetchSingle(ctx, probe.FinalURL, tempPath, SingleFetchOptions{
		Client:     client,
		Headers:    opts.requestHeaders(),
		Timeout:    opts.Timeout,
		MaxTries:   opts.MaxTries,
		ResumeFrom: resumeFrom,
		OnBytes: func(n int64) {
			if n < 0 {
				snapshot.Downloaded.Store(0)
				return
			}
			snapshot.Downloaded.Add(n)
		},
		Cancel:     opts.Cancel,
		TimingsOut: opts.TimingsOut,
		DebugOut:   opts.DebugOut,
	})
	return ok, err
}

// startProgress launches the progress reporter in the background unless
// quiet mode is set, returning the channel the caller closes to stop it.
func startProgress(opts *Options, snapshot *ProgressSnapshot, totalSize int64) chan struct{} {
	stop := make(chan struct{})
	if opts.Quiet || opts.Stdout == nil {
		return stop
	}
	go RunProgressReporter(opts.Stdout, snapshot, totalSize, stop, opts.Cancel)
	return stop
}

func finalizeDownload(tempPath, finalPath string, lastModified float64) error {
	planPath := partsPathFor(tempPath)
	os.Remove(planPath)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return err
	}
	if lastModified > 0 {
		t := time.Unix(int64(lastModified), 0)
		os.Chtimes(finalPath, t, t)
	}
	return nil
}

func ensureClient(opts *Options) Client {
	if opts.Client != nil {
		return opts.Client
	}
	return newDefaultClient(opts.Timeout, opts.MaxTries)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func firstError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}
