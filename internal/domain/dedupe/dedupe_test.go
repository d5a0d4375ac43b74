package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/datalens/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryIndex(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new in-memory index", t, func() {
		d := dedupe.NewInMemoryIndex()

		Convey("When a digest is recorded for the first time", func() {
			id, seen := d.SeenAndRecord(ctx, "digest-1", "run-1")

			Convey("Then the new run is returned", func() {
				So(seen, ShouldBeFalse)
				So(id, ShouldEqual, "run-1")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the same digest is recorded again", func() {
			d.SeenAndRecord(ctx, "digest-1", "run-1")
			id, seen := d.SeenAndRecord(ctx, "digest-1", "run-2")

			Convey("Then the first run is returned", func() {
				So(seen, ShouldBeTrue)
				So(id, ShouldEqual, "run-1")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When looking up digests", func() {
			d.SeenAndRecord(ctx, "digest-1", "run-1")

			id, ok := d.Lookup(ctx, "digest-1")
			So(ok, ShouldBeTrue)
			So(id, ShouldEqual, "run-1")

			_, ok = d.Lookup(ctx, "missing")
			So(ok, ShouldBeFalse)
		})

		Convey("When a digest is forgotten", func() {
			d.SeenAndRecord(ctx, "digest-1", "run-1")
			d.SeenAndRecord(ctx, "digest-2", "run-2")
			d.Forget(ctx, "digest-1")
			d.Forget(ctx, "nonexistent")

			Convey("Then it can be recorded with a new run", func() {
				So(d.Size(), ShouldEqual, 1)
				id, seen := d.SeenAndRecord(ctx, "digest-1", "run-3")
				So(seen, ShouldBeFalse)
				So(id, ShouldEqual, "run-3")

				id, ok := d.Lookup(ctx, "digest-2")
				So(ok, ShouldBeTrue)
				So(id, ShouldEqual, "run-2")
			})
		})
	})

	Convey("Given a bounded index", t, func() {
		d := dedupe.NewInMemoryIndex(dedupe.WithMaxSize(3))
		for i := 1; i <= 3; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("digest-%d", i), fmt.Sprintf("run-%d", i))
		}

		Convey("When a fourth digest arrives", func() {
			d.SeenAndRecord(ctx, "digest-4", "run-4")

			Convey("Then the oldest digest is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				_, ok := d.Lookup(ctx, "digest-1")
				So(ok, ShouldBeFalse)
				for i := 2; i <= 4; i++ {
					_, ok := d.Lookup(ctx, fmt.Sprintf("digest-%d", i))
					So(ok, ShouldBeTrue)
				}
			})
		})

		Convey("When the head is forgotten and more digests arrive", func() {
			d.Forget(ctx, "digest-3")
			d.SeenAndRecord(ctx, "digest-5", "run-5")
			d.SeenAndRecord(ctx, "digest-6", "run-6")

			Convey("Then eviction still removes the oldest", func() {
				So(d.Size(), ShouldEqual, 3)
				_, ok := d.Lookup(ctx, "digest-1")
				So(ok, ShouldBeFalse)
				_, ok = d.Lookup(ctx, "digest-2")
				So(ok, ShouldBeTrue)
			})
		})
	})

	Convey("Given an index of size one", t, func() {
		d := dedupe.NewInMemoryIndex(dedupe.WithMaxSize(1))
		d.SeenAndRecord(ctx, "a", "run-a")
		d.SeenAndRecord(ctx, "b", "run-b")

		So(d.Size(), ShouldEqual, 1)
		_, ok := d.Lookup(ctx, "a")
		So(ok, ShouldBeFalse)
	})

	Convey("Given an unbounded index", t, func() {
		d := dedupe.NewInMemoryIndex(dedupe.WithMaxSize(0))
		const n = 1000
		for i := 0; i < n; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("digest-%d", i), "run")
		}
		So(d.Size(), ShouldEqual, int64(n))
	})
}

func TestDigest(t *testing.T) {
	Convey("Given the same payload", t, func() {
		data := []byte("a,b\n1,2\n")

		Convey("Then the digest is stable for the same format", func() {
			So(dedupe.Digest("delimited-text", data), ShouldEqual, dedupe.Digest("delimited-text", data))
			So(dedupe.Digest("delimited-text", data), ShouldHaveLength, 64)
		})

		Convey("Then a different format hint gives a different digest", func() {
			So(dedupe.Digest("delimited-text", data), ShouldNotEqual, dedupe.Digest("structured-record", data))
		})
	})
}

func TestIndexConcurrency(t *testing.T) {
	Convey("Given concurrent submitters of the same content", t, func() {
		d := dedupe.NewInMemoryIndex()
		const workers = 16
		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0
		ids := make(map[string]struct{})

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id, seen := d.SeenAndRecord(context.Background(), "same", fmt.Sprintf("run-%d", i))
				mu.Lock()
				defer mu.Unlock()
				if !seen {
					fresh++
				}
				ids[id] = struct{}{}
			}(i)
		}
		wg.Wait()

		Convey("Then exactly one run is recorded and everyone sees it", func() {
			So(fresh, ShouldEqual, 1)
			So(ids, ShouldHaveLength, 1)
			So(d.Size(), ShouldEqual, 1)
		})
	})
}
