package wget

import (
	"context"
	"net/url"
)

// crawlContext is the per-start-URL crawl state: the anchoring host and base
// path, and the set of already-seen normalised URLs shared across the whole
// BFS run rooted at one start URL. The depth limit comes from Options.MaxDepth.
type crawlContext struct {
	host     string
	basePath string
	seen     map[string]bool
}

func newCrawlContext(startURL string, noParent bool) (*crawlContext, error) {
	u, err := url.Parse(startURL)
	if err != nil {
		return nil, err
	}
	cc := &crawlContext{host: u.Host, seen: map[string]bool{}}
	if noParent {
		cc.basePath = basePathForNoParent(u.Path)
	}
	return cc, nil
}

type crawlItem struct {
	url   string
	depth int
}

// CrawlResult reports one visited page within a recursive run.
type CrawlResult struct {
	StartURL string
	URL      string
	Depth    int
	Download DownloadResult
	Err      error
}

// RunRecursive runs a breadth-first walk, one queue and seen-set per start
// URL, downloading every enqueued resource and, for HTML pages within depth,
// extracting and enqueueing its links. rootDir anchors the host-mirrored
// output layout (recursiveOutputPath).
func RunRecursive(ctx context.Context, startURLs []string, opts *Options, rootDir string) []CrawlResult {
	var results []CrawlResult
	for _, start := range startURLs {
		if opts.Cancel.Cancelled() {
			return results
		}
		results = append(results, crawlOne(ctx, start, opts, rootDir)...)
	}
	return results
}

func crawlOne(ctx context.Context, startURL string, opts *Options, rootDir string) []CrawlResult {
	var results []CrawlResult

	cc, err := newCrawlContext(startURL, opts.NoParent)
	if err != nil {
		return []CrawlResult{{StartURL: startURL, URL: startURL, Err: err}}
	}

	queue := []crawlItem{{url: startURL, depth: 0}}
	if normalizedStart, err := normalizeURL(startURL); err == nil {
		cc.seen[normalizedStart] = true
	}

	for len(queue) > 0 {
		if opts.Cancel.Cancelled() {
			return results
		}

		item := queue[0]
		queue = queue[1:]

		pathFor := func(finalURL, suggested string) string {
			return recursiveOutputPath(finalURL, rootDir, suggested)
		}

		res, derr := DownloadOne(ctx, item.url, opts, pathFor)
		results = append(results, CrawlResult{StartURL: startURL, URL: item.url, Depth: item.depth, Download: res, Err: derr})
		if derr != nil {
			continue
		}

		finalNormalized, nerr := normalizeURL(res.FinalURL)
		if nerr != nil {
			continue
		}
		if item.depth == 0 {
			// Re-anchor on the depth-0 final URL: a redirect (to another
			// host, or a normalising redirect like .../a -> .../a/) must
			// not leave the same-host/no-parent filters pointed at the
			// pre-redirect URL.
			if fu, ferr := url.Parse(res.FinalURL); ferr == nil {
				cc.host = fu.Host
				if opts.NoParent {
					cc.basePath = basePathForNoParent(fu.Path)
				}
			}
		}
		if !sameHost(finalNormalized, cc.host) {
			continue
		}
		if opts.NoParent && !pathWithinBase(finalNormalized, cc.basePath) {
			continue
		}

		if item.depth >= opts.MaxDepth {
			continue
		}
		if !isHTMLContent(res.ContentType, res.FinalPath) {
			continue
		}

		links, lerr := extractLinksFromFile(res.FinalPath, res.FinalURL)
		if lerr != nil {
			continue
		}
		for _, link := range links {
			normalized, nerr := normalizeURL(link)
			if nerr != nil || cc.seen[normalized] {
				continue
			}
			if !sameHost(normalized, cc.host) {
				continue
			}
			if opts.NoParent && !pathWithinBase(normalized, cc.basePath) {
				continue
			}
			cc.seen[normalized] = true
			queue = append(queue, crawlItem{url: link, depth: item.depth + 1})
		}
	}

	return results
}
