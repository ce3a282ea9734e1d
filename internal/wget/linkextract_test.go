package wget

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func mustParseURLForTest(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

func TestExtractLinksFromFile(t *testing.T) {
	Convey("Given an HTML file with a variety of reference-bearing tags", t, func() {
		html := `<html><body>
			<a href="/next.html">next</a>
			<a href="https://other.example.com/page">external</a>
			<img src="images/pic.png">
			<link rel="stylesheet" href="style.css">
			<a href="#section">same page</a>
			<a href="javascript:void(0)">noop</a>
			<a href="mailto:x@example.com">mail</a>
		</body></html>`
		dir := t.TempDir()
		path := filepath.Join(dir, "page.html")
		So(os.WriteFile(path, []byte(html), 0o644), ShouldBeNil)

		Convey("Only http(s) links are resolved against the base URL, with noise filtered out", func() {
			links, err := extractLinksFromFile(path, "https://example.com/dir/page.html")
			So(err, ShouldBeNil)
			So(links, ShouldContain, "https://example.com/dir/next.html")
			So(links, ShouldContain, "https://other.example.com/page")
			So(links, ShouldContain, "https://example.com/dir/images/pic.png")
			So(links, ShouldContain, "https://example.com/dir/style.css")
			for _, l := range links {
				So(l, ShouldNotContainSubstring, "javascript:")
				So(l, ShouldNotContainSubstring, "mailto:")
				So(l, ShouldNotContainSubstring, "#section")
			}
		})
	})
}

func TestResolveLink(t *testing.T) {
	Convey("Given a base URL", t, func() {
		base := mustParseURLForTest("https://example.com/a/b.html")
		Convey("A relative link resolves against the base and drops the fragment", func() {
			So(resolveLink(base, "c.html#top"), ShouldEqual, "https://example.com/a/c.html")
		})
		Convey("A non-http(s) scheme is filtered", func() {
			So(resolveLink(base, "ftp://example.com/x"), ShouldEqual, "")
		})
		Convey("An empty or fragment-only value is filtered", func() {
			So(resolveLink(base, ""), ShouldEqual, "")
			So(resolveLink(base, "#x"), ShouldEqual, "")
		})
	})
}
