package wget

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBuildRanges(t *testing.T) {
	Convey("Given a total size and segment size", t, func() {
		Convey("Even division yields equal-length ranges", func() {
			ranges := buildRanges(30, 10)
			So(ranges, ShouldHaveLength, 3)
			So(ranges[0], ShouldResemble, segmentRange{Start: 0, End: 9})
			So(ranges[2], ShouldResemble, segmentRange{Start: 20, End: 29})
		})
		Convey("An uneven division leaves a shorter final range", func() {
			ranges := buildRanges(25, 10)
			So(ranges, ShouldHaveLength, 3)
			So(ranges[2], ShouldResemble, segmentRange{Start: 20, End: 24})
		})
		Convey("A segment size larger than the total is clamped down to it", func() {
			ranges := buildRanges(5, 100)
			So(ranges, ShouldHaveLength, 1)
			So(ranges[0], ShouldResemble, segmentRange{Start: 0, End: 4})
		})
	})
}

func TestPlanCompletedBytesAndPending(t *testing.T) {
	Convey("Given a plan with some segments done", t, func() {
		p := &plan{
			TotalSize: 30,
			Ranges: []segmentRange{
				{Start: 0, End: 9, Done: true},
				{Start: 10, End: 19, Done: false},
				{Start: 20, End: 29, Done: true},
			},
		}
		Convey("completedBytes sums only done ranges", func() {
			So(p.completedBytes(), ShouldEqual, 20)
		})
		Convey("pending returns only the not-done ranges with their index", func() {
			pending := p.pending()
			So(pending, ShouldHaveLength, 1)
			So(pending[0], ShouldResemble, pendingSegment{Index: 1, Start: 10, End: 19})
		})
	})
}

func TestSaveAndLoadPlanRoundTrip(t *testing.T) {
	Convey("Given a plan persisted to disk", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "x.par.parts")
		p := &plan{
			URL:         "http://example.com/x",
			TotalSize:   30,
			SegmentSize: 10,
			Ranges: []segmentRange{
				{Start: 0, End: 9, Done: true},
				{Start: 10, End: 19, Done: false},
				{Start: 20, End: 29, Done: false},
			},
		}
		So(savePlan(path, p), ShouldBeNil)

		Convey("loadPlan reconstructs an equivalent plan", func() {
			got, err := loadPlan(path)
			So(err, ShouldBeNil)
			So(got.URL, ShouldEqual, p.URL)
			So(got.TotalSize, ShouldEqual, p.TotalSize)
			So(got.Ranges, ShouldResemble, p.Ranges)
		})

		Convey("No .tmp file is left behind after a successful save", func() {
			_, err := os.Stat(path + ".tmp")
			So(os.IsNotExist(err), ShouldBeTrue)
		})

		Convey("A corrupt plan file is rejected", func() {
			corrupt := filepath.Join(dir, "corrupt.parts")
			So(os.WriteFile(corrupt, []byte("total_size=abc\n"), 0o644), ShouldBeNil)
			_, err := loadPlan(corrupt)
			So(err, ShouldNotBeNil)
		})

		Convey("A plan missing total_size is rejected", func() {
			missing := filepath.Join(dir, "missing.parts")
			So(os.WriteFile(missing, []byte("url=http://example.com/x\n"), 0o644), ShouldBeNil)
			_, err := loadPlan(missing)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestStatusFromPlan(t *testing.T) {
	Convey("Given a partially completed plan", t, func() {
		p := &plan{
			URL:         "http://example.com/x",
			TotalSize:   30,
			SegmentSize: 10,
			Ranges: []segmentRange{
				{Start: 0, End: 9, Done: true},
				{Start: 10, End: 19, Done: false},
				{Start: 20, End: 29, Done: false},
			},
		}
		st := statusFromPlan("/tmp/x.par.parts", p)
		Convey("Percent and range counts reflect completion", func() {
			So(st.RangesDone, ShouldEqual, 1)
			So(st.RangesTotal, ShouldEqual, 3)
			So(st.Completed, ShouldEqual, 10)
			So(st.Percent, ShouldAlmostEqual, 33.33, 0.01)
		})
		Convey("Temp and final paths are derived by trimming suffixes", func() {
			So(st.TempPath, ShouldEqual, "/tmp/x.par")
			So(st.FinalPath, ShouldEqual, "/tmp/x")
		})
	})
}
