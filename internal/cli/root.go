// Package cli implements the external command-line interface onto
// internal/wget: flag parsing, signal-driven cancellation, and exit-code
// translation.
package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbarnes-io/parwget/internal/wget"
)

// Process exit codes: success, a completed run with failures, argument
// misuse, and an interrupted run.
const (
	ExitSuccess       = 0
	ExitStatusFailure = 1
	ExitArgumentError = 2
	ExitInterrupted   = 130
)

type flags struct {
	output      string
	directory   string
	threads     int
	autoThreads bool
	minThreads  int
	maxThreads  int
	autoWindow  time.Duration
	autoMinGain float64
	resume      bool
	recursive   bool
	maxDepth    int
	noParent    bool
	timestamp   bool
	overwrite   bool
	status      bool
	segmentSize string
	headers     []string
	userAgent   string
	timeout     time.Duration
	maxTries    int
	quiet       bool
	verbose     bool
	timingLog   string
}

// Execute builds and runs the root command, returning the process exit code.
func Execute(version string) int {
	f := &flags{}

	root := &cobra.Command{
		Use:           "parwget [flags] URL...",
		Short:         "A resumable, segmented HTTP(S) downloader with adaptive parallelism",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one URL is required")
			}
			return nil
		},
	}

	root.Flags().StringVarP(&f.output, "output-document", "O", "", "write a single, non-recursive download to this path")
	root.Flags().StringVarP(&f.directory, "directory-prefix", "P", ".", "destination directory")
	root.Flags().IntVarP(&f.threads, "threads", "t", 1, "fixed worker count for segmented downloads")
	root.Flags().BoolVar(&f.autoThreads, "auto-threads", false, "adapt the worker count to observed throughput")
	root.Flags().IntVar(&f.minThreads, "min-threads", 1, "lower bound for --auto-threads")
	root.Flags().IntVar(&f.maxThreads, "max-threads", 16, "upper bound for --auto-threads")
	root.Flags().DurationVar(&f.autoWindow, "auto-window", 30*time.Second, "measurement window for --auto-threads")
	root.Flags().Float64Var(&f.autoMinGain, "auto-min-gain", 0.05, "minimum fractional throughput gain to accept a probe")
	root.Flags().BoolVarP(&f.resume, "continue", "c", false, "resume an existing partial download")
	root.Flags().BoolVarP(&f.recursive, "recursive", "r", false, "recursively follow same-host links")
	root.Flags().IntVar(&f.maxDepth, "max-depth", 5, "maximum recursion depth")
	root.Flags().BoolVar(&f.noParent, "no-parent", false, "never ascend to the parent of the start URL's path")
	root.Flags().BoolVarP(&f.timestamp, "timestamping", "N", false, "skip when the local file is not older than the server's")
	root.Flags().BoolVar(&f.overwrite, "overwrite", false, "discard any prior state and restart from scratch")
	root.Flags().BoolVar(&f.status, "status", false, "report on-disk plan state without fetching")
	root.Flags().StringVar(&f.segmentSize, "segment-size", "8M", "segment size (integer bytes, or K/M/G suffixed)")
	root.Flags().StringArrayVar(&f.headers, "header", nil, "extra request header NAME:VALUE (repeatable)")
	root.Flags().StringVar(&f.userAgent, "user-agent", "parwget/1.0", "User-Agent header value")
	root.Flags().DurationVar(&f.timeout, "timeout", 30*time.Second, "per-attempt network timeout")
	root.Flags().IntVar(&f.maxTries, "max-tries", 5, "maximum attempts per request before giving up")
	root.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "suppress progress and status output")
	root.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "write debug detail to stderr")
	root.Flags().StringVar(&f.timingLog, "timing-log", "", "append per-operation timing lines to this file")

	exitCode := ExitSuccess
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return runRoot(cmd, args, f, &exitCode)
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "parwget:", err)
		return ExitArgumentError
	}
	return exitCode
}

func runRoot(cmd *cobra.Command, args []string, f *flags, exitCode *int) error {
	if f.output != "" && (f.recursive || len(args) > 1) {
		*exitCode = ExitArgumentError
		return wget.ErrOutputConflict
	}

	segmentSize, err := parseSegmentSizeFlag(f.segmentSize)
	if err != nil {
		*exitCode = ExitArgumentError
		return err
	}

	headers, err := parseHeaderFlags(f.headers)
	if err != nil {
		*exitCode = ExitArgumentError
		return err
	}

	timingsOut, closeTiming, err := openTimingLog(f.timingLog)
	if err != nil {
		*exitCode = ExitArgumentError
		return err
	}
	defer closeTiming()

	debugOut := discardLogger()
	if f.verbose {
		debugOut = log.New(os.Stderr, "", log.LstdFlags)
	}

	ctx, cancelCtx := signalContext(context.Background())
	defer cancelCtx()
	cancelFlag := wget.NewCancelFlag()
	go func() {
		<-ctx.Done()
		cancelFlag.Cancel()
	}()

	opts := &wget.Options{
		OutputPath:  f.output,
		Directory:   f.directory,
		Threads:     f.threads,
		AutoThreads: f.autoThreads,
		MinThreads:  f.minThreads,
		MaxThreads:  f.maxThreads,
		AutoWindow:  f.autoWindow,
		AutoMinGain: f.autoMinGain,
		Resume:      f.resume,
		Recursive:   f.recursive,
		MaxDepth:    f.maxDepth,
		NoParent:    f.noParent,
		Timestamp:   f.timestamp,
		Overwrite:   f.overwrite,
		SegmentSize: segmentSize,
		Headers:     headers,
		UserAgent:   f.userAgent,
		Timeout:     f.timeout,
		MaxTries:    f.maxTries,
		Quiet:       f.quiet,
		Cancel:      cancelFlag,
		Stdout:      cmd.OutOrStdout(),
		TimingsOut:  timingsOut,
		DebugOut:    debugOut,
	}

	if f.status {
		return runStatus(args, opts, exitCode)
	}

	var failed bool
	if f.recursive {
		results := wget.RunRecursive(ctx, args, opts, f.directory)
		for _, r := range results {
			if r.Err != nil {
				fmt.Fprintf(os.Stderr, "parwget: %s: %v\n", r.URL, r.Err)
				failed = true
			}
		}
	} else {
		for _, u := range args {
			pathFor := func(finalURL, suggested string) string {
				return wget.ResolveOutputPath(finalURL, opts, suggested)
			}
			res, derr := wget.DownloadOne(ctx, u, opts, pathFor)
			if derr != nil {
				fmt.Fprintf(os.Stderr, "parwget: %s: %v\n", u, derr)
				failed = true
				continue
			}
			_ = res
		}
	}

	if cancelFlag.Cancelled() {
		*exitCode = ExitInterrupted
		return nil
	}
	if failed {
		*exitCode = ExitStatusFailure
		return nil
	}
	*exitCode = ExitSuccess
	return nil
}

// signalContext cancels ctx on SIGINT/SIGTERM so the process-wide CancelFlag
// can be wired to the same signal.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func parseSegmentSizeFlag(value string) (int64, error) {
	n, err := parseSizeArg(value)
	if err != nil {
		return 0, fmt.Errorf("--segment-size: %w", err)
	}
	return n, nil
}

func parseHeaderFlags(values []string) (map[string]string, error) {
	headers := map[string]string{}
	for _, v := range values {
		idx := strings.Index(v, ":")
		if idx <= 0 {
			return nil, fmt.Errorf("--header %q: %w", v, wget.ErrInvalidHeader)
		}
		name := strings.TrimSpace(v[:idx])
		val := strings.TrimSpace(v[idx+1:])
		if name == "" {
			return nil, fmt.Errorf("--header %q: %w", v, wget.ErrInvalidHeader)
		}
		headers[name] = val
	}
	return headers, nil
}

func openTimingLog(path string) (*log.Logger, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, func() {}, err
	}
	return log.New(f, "", log.LstdFlags), func() { f.Close() }, nil
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func runStatus(args []string, opts *wget.Options, exitCode *int) error {
	anyIncomplete := false
	for _, u := range args {
		pathFor := func(finalURL, suggested string) string {
			return wget.ResolveOutputPath(finalURL, opts, suggested)
		}
		report, ok, err := wget.StatusFor(u, opts, pathFor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parwget: %s: %v\n", u, err)
			anyIncomplete = true
			continue
		}
		fmt.Fprintln(opts.Stdout, report)
		if !ok {
			anyIncomplete = true
		}
	}
	if anyIncomplete {
		*exitCode = ExitStatusFailure
	} else {
		*exitCode = ExitSuccess
	}
	return nil
}

func parseSizeArg(value string) (int64, error) {
	return wget.ParseSize(value)
}
