package wget

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFetchSingleFullDownload(t *testing.T) {
	defer leaktest.Check(t)()

	Convey("Given a server that serves the whole body on one GET", t, func() {
		serverBytes := []byte("the quick brown fox jumps over the lazy dog")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(serverBytes)
		}))
		defer server.Close()

		dir := t.TempDir()
		outPath := filepath.Join(dir, "out.par")

		Convey("FetchSingle streams the full body to disk", func() {
			ok, err := FetchSingle(context.Background(), server.URL, outPath, SingleFetchOptions{
				Client: server.Client(), Timeout: time.Second, MaxTries: 1, Cancel: NewCancelFlag(),
			})
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			got, rerr := os.ReadFile(outPath)
			So(rerr, ShouldBeNil)
			So(string(got), ShouldEqual, string(serverBytes))
		})
	})
}

func TestFetchSingleResume(t *testing.T) {
	defer leaktest.Check(t)()

	Convey("Given a server that honors Range requests", t, func() {
		serverBytes := []byte("0123456789ABCDEFGHIJ")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rng := r.Header.Get("Range")
			if rng == "" {
				w.Write(serverBytes)
				return
			}
			start, err := parseRangeStart(rng)
			if err != nil {
				http.Error(w, "bad range", http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusPartialContent)
			w.Write(serverBytes[start:])
		}))
		defer server.Close()

		dir := t.TempDir()
		outPath := filepath.Join(dir, "out.par")
		So(os.WriteFile(outPath, serverBytes[:10], 0o644), ShouldBeNil)

		Convey("FetchSingle resumes from ResumeFrom and appends the remainder", func() {
			ok, err := FetchSingle(context.Background(), server.URL, outPath, SingleFetchOptions{
				Client: server.Client(), Timeout: time.Second, MaxTries: 1,
				ResumeFrom: 10, Cancel: NewCancelFlag(),
			})
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			got, rerr := os.ReadFile(outPath)
			So(rerr, ShouldBeNil)
			So(string(got), ShouldEqual, string(serverBytes))
		})
	})
}

// parseRangeStart extracts the start offset from a "bytes=N-" header value
// for the fake range server above; these fixtures only ever send the
// suffix-less "bytes=N-" form.
func parseRangeStart(header string) (int, error) {
	trimmed := header
	if len(trimmed) > 6 && trimmed[:6] == "bytes=" {
		trimmed = trimmed[6:]
	}
	for i, r := range trimmed {
		if r == '-' {
			trimmed = trimmed[:i]
			break
		}
	}
	var n int
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
