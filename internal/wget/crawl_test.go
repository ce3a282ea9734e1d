package wget

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	. "github.com/smartystreets/goconvey/convey"
)

func crawlOptions(dir string) *Options {
	return &Options{
		Threads:   1,
		MaxDepth:  5,
		Timeout:   time.Second,
		MaxTries:  1,
		UserAgent: "wget-test",
		Quiet:     true,
		Stdout:    io.Discard,
		Cancel:    NewCancelFlag(),
		Directory: dir,
	}
}

func TestCrawlOneReanchorsOnDepthZeroRedirectToAnotherHost(t *testing.T) {
	defer leaktest.Check(t)()

	Convey("Given a start URL that redirects depth-0 to a different host", t, func() {
		var startURL string // set once the start server exists; read by other's handler at request time

		other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/landing":
				w.Header().Set("Content-Type", "text/html")
				fmt.Fprintf(w, `<html><body>
					<a href="/same-host-page">same host</a>
					<a href="%s/other-host-page">original host</a>
				</body></html>`, startURL)
			case "/same-host-page":
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte(`<html><body>leaf</body></html>`))
			default:
				http.NotFound(w, r)
			}
		}))
		defer other.Close()

		start := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/start" {
				http.Redirect(w, r, other.URL+"/landing", http.StatusFound)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<html><body>original host page</body></html>`))
		}))
		defer start.Close()
		startURL = start.URL

		dir := t.TempDir()
		opts := crawlOptions(dir)
		opts.Client = start.Client()

		Convey("The crawl re-anchors same-host/no-parent filtering on the redirected host", func() {
			results := crawlOne(context.Background(), start.URL+"/start", opts, dir)

			var visited []string
			for _, r := range results {
				So(r.Err, ShouldBeNil)
				visited = append(visited, r.URL)
			}

			// The depth-0 item itself, plus the same-host link discovered on
			// the landing page; the link back to the pre-redirect host must
			// be filtered out once the context re-anchors to "other".
			So(visited, ShouldContain, start.URL+"/start")
			So(visited, ShouldContain, other.URL+"/same-host-page")
			So(visited, ShouldNotContain, start.URL+"/other-host-page")
		})
	})
}

func TestCrawlOneNoParentRestrictsToBasePath(t *testing.T) {
	defer leaktest.Check(t)()

	Convey("Given a start page under /dir/ with -no-parent in effect", t, func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/dir/start.html":
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte(`<html><body>
					<a href="/dir/sub/page.html">within base</a>
					<a href="/other/page.html">outside base</a>
				</body></html>`))
			case "/dir/sub/page.html":
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte(`<html><body>leaf</body></html>`))
			case "/other/page.html":
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte(`<html><body>should not be visited</body></html>`))
			default:
				http.NotFound(w, r)
			}
		}))
		defer server.Close()

		dir := t.TempDir()
		opts := crawlOptions(dir)
		opts.Client = server.Client()
		opts.NoParent = true

		Convey("Only the link within /dir/ is followed", func() {
			results := crawlOne(context.Background(), server.URL+"/dir/start.html", opts, dir)

			var visited []string
			for _, r := range results {
				So(r.Err, ShouldBeNil)
				visited = append(visited, r.URL)
			}

			So(visited, ShouldContain, server.URL+"/dir/start.html")
			So(visited, ShouldContain, server.URL+"/dir/sub/page.html")
			So(visited, ShouldNotContain, server.URL+"/other/page.html")
		})
	})
}

func TestCrawlOneStopsAtMaxDepth(t *testing.T) {
	defer leaktest.Check(t)()

	Convey("Given a chain of pages each linking to the next", t, func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			switch r.URL.Path {
			case "/p0":
				w.Write([]byte(`<html><body><a href="/p1">next</a></body></html>`))
			case "/p1":
				w.Write([]byte(`<html><body><a href="/p2">next</a></body></html>`))
			case "/p2":
				w.Write([]byte(`<html><body>leaf, never reached</body></html>`))
			default:
				http.NotFound(w, r)
			}
		}))
		defer server.Close()

		dir := t.TempDir()
		opts := crawlOptions(dir)
		opts.Client = server.Client()
		opts.MaxDepth = 1

		Convey("The walk visits depth 0 and 1 but not depth 2", func() {
			results := crawlOne(context.Background(), server.URL+"/p0", opts, dir)

			var visited []string
			for _, r := range results {
				visited = append(visited, r.URL)
			}

			So(visited, ShouldContain, server.URL+"/p0")
			So(visited, ShouldContain, server.URL+"/p1")
			So(visited, ShouldNotContain, server.URL+"/p2")
		})
	})
}
