package wget

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseContentLength(t *testing.T) {
	Convey("Given Content-Length header values", t, func() {
		Convey("A numeric value parses to bytes", func() {
			n, ok := parseContentLength("1024")
			So(ok, ShouldBeTrue)
			So(n, ShouldEqual, 1024)
		})
		Convey("An empty value is unknown", func() {
			_, ok := parseContentLength("")
			So(ok, ShouldBeFalse)
		})
		Convey("A non-numeric value is unknown", func() {
			_, ok := parseContentLength("abc")
			So(ok, ShouldBeFalse)
		})
		Convey("A negative value is unknown", func() {
			_, ok := parseContentLength("-5")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestParseContentRange(t *testing.T) {
	Convey("Given Content-Range header values", t, func() {
		Convey("bytes A-B/T yields T", func() {
			n, ok := parseContentRange("bytes 0-99/2048")
			So(ok, ShouldBeTrue)
			So(n, ShouldEqual, 2048)
		})
		Convey("An unknown total (T=*) is unknown", func() {
			_, ok := parseContentRange("bytes 0-99/*")
			So(ok, ShouldBeFalse)
		})
		Convey("A malformed value is unknown", func() {
			_, ok := parseContentRange("nonsense")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestParseHTTPDate(t *testing.T) {
	Convey("Given Last-Modified style header values", t, func() {
		Convey("RFC 1123 parses", func() {
			_, ok := parseHTTPDate("Sun, 06 Nov 1994 08:49:37 GMT")
			So(ok, ShouldBeTrue)
		})
		Convey("RFC 850 parses", func() {
			_, ok := parseHTTPDate("Sunday, 06-Nov-94 08:49:37 GMT")
			So(ok, ShouldBeTrue)
		})
		Convey("asctime parses", func() {
			_, ok := parseHTTPDate("Sun Nov  6 08:49:37 1994")
			So(ok, ShouldBeTrue)
		})
		Convey("Garbage does not parse", func() {
			_, ok := parseHTTPDate("not a date")
			So(ok, ShouldBeFalse)
		})
		Convey("An empty value does not parse", func() {
			_, ok := parseHTTPDate("")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestFilenameFromContentDisposition(t *testing.T) {
	Convey("Given Content-Disposition header values", t, func() {
		Convey("A plain filename is used", func() {
			So(filenameFromContentDisposition(`attachment; filename="report.pdf"`), ShouldEqual, "report.pdf")
		})
		Convey("filename* (RFC 5987) is preferred over filename", func() {
			got := filenameFromContentDisposition(`attachment; filename="fallback.pdf"; filename*=UTF-8''r%C3%A9sum%C3%A9.pdf`)
			So(got, ShouldEqual, "résumé.pdf")
		})
		Convey("An empty header yields an empty suggestion", func() {
			So(filenameFromContentDisposition(""), ShouldEqual, "")
		})
	})
}

func TestParseSize(t *testing.T) {
	Convey("Given --segment-size style values", t, func() {
		Convey("Bare digits are bytes", func() {
			n, err := parseSize("2048")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2048)
		})
		Convey("A K suffix is KiB", func() {
			n, err := parseSize("4K")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 4*1024)
		})
		Convey("An M suffix is MiB", func() {
			n, err := parseSize("8M")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 8*1024*1024)
		})
		Convey("A G suffix is GiB", func() {
			n, err := parseSize("1G")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1*1024*1024*1024)
		})
		Convey("A fractional number with a suffix is honored", func() {
			n, err := parseSize("1.5M")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, int64(1.5*1024*1024))
		})
		Convey("An invalid value yields ErrInvalidSize", func() {
			_, err := parseSize("abc")
			So(err, ShouldNotBeNil)
		})
		Convey("An unknown unit yields ErrInvalidSize", func() {
			_, err := parseSize("5Q")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestFormatSizeAndETA(t *testing.T) {
	Convey("formatSize renders a single binary unit", t, func() {
		So(formatSize(512), ShouldEqual, "512.00B")
		So(formatSize(2048), ShouldEqual, "2.00KB")
	})
	Convey("formatETA renders mm:ss under an hour and hh:mm:ss over one", t, func() {
		So(formatETA(65), ShouldEqual, "01:05")
		So(formatETA(3665), ShouldEqual, "01:01:05")
	})
}
