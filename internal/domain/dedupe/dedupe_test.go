package dedupe_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	dedupe "github.com/okian/onetoone/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should start empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When claiming keys", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(100))

			Convey("And the key is new", func() {
				result, seen := d.Claim(ctx, "req-1")

				Convey("Then it should be recorded as a fresh claim", func() {
					So(seen, ShouldBeFalse)
					So(result, ShouldEqual, "")
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the key is claimed again before it resolves", func() {
				d.Claim(ctx, "req-1")
				result, seen := d.Claim(ctx, "req-1")

				Convey("Then it should be reported as pending", func() {
					So(seen, ShouldBeTrue)
					So(result, ShouldEqual, "")
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the key is claimed again after it resolves", func() {
				d.Claim(ctx, "req-1")
				d.Resolve(ctx, "req-1", "meeting-42")
				result, seen := d.Claim(ctx, "req-1")

				Convey("Then the first result should be returned", func() {
					So(seen, ShouldBeTrue)
					So(result, ShouldEqual, "meeting-42")
				})
			})

			Convey("And an unknown key is resolved", func() {
				d.Resolve(ctx, "ghost", "x")

				Convey("Then nothing should be recorded", func() {
					So(d.Size(), ShouldEqual, 0)
				})
			})
		})

		Convey("When unrecording claims", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(100))
			d.Claim(ctx, "a")
			d.Claim(ctx, "b")
			d.Claim(ctx, "c")

			Convey("And the middle key is released", func() {
				d.Unrecord(ctx, "b")

				Convey("Then it can be claimed afresh", func() {
					So(d.Size(), ShouldEqual, 2)
					_, seen := d.Claim(ctx, "b")
					So(seen, ShouldBeFalse)
				})
			})

			Convey("And an unknown key is released", func() {
				d.Unrecord(ctx, "zzz")

				Convey("Then the size should not change", func() {
					So(d.Size(), ShouldEqual, 3)
				})
			})

			Convey("And every key is released", func() {
				d.Unrecord(ctx, "c")
				d.Unrecord(ctx, "a")
				d.Unrecord(ctx, "b")

				Convey("Then the deduper is empty and usable", func() {
					So(d.Size(), ShouldEqual, 0)
					_, seen := d.Claim(ctx, "a")
					So(seen, ShouldBeFalse)
				})
			})
		})

		Convey("When using bounded mode with eviction", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, k := range []string{"k1", "k2", "k3"} {
				d.Claim(ctx, k)
			}

			Convey("And the deduper is at capacity", func() {
				d.Claim(ctx, "k4")

				Convey("Then the oldest key should be evicted", func() {
					So(d.Size(), ShouldEqual, 3)
					_, seen := d.Claim(ctx, "k2")
					So(seen, ShouldBeTrue)
					_, seen = d.Claim(ctx, "k4")
					So(seen, ShouldBeTrue)
					_, seen = d.Claim(ctx, "k1")
					So(seen, ShouldBeFalse)
				})
			})
		})

		Convey("When using unbounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-1))

			Convey("Then keys are never evicted", func() {
				const numKeys = 1000
				for i := 0; i < numKeys; i++ {
					_, seen := d.Claim(ctx, fmt.Sprintf("key-%d", i))
					So(seen, ShouldBeFalse)
				}
				So(d.Size(), ShouldEqual, int64(numKeys))
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper with concurrent access", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const numGoroutines = 10
		const keysPerGoroutine = 100

		Convey("When multiple goroutines claim distinct keys", func() {
			var wg sync.WaitGroup
			for i := 0; i < numGoroutines; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for j := 0; j < keysPerGoroutine; j++ {
						d.Claim(context.Background(), fmt.Sprintf("key-%d-%d", id, j))
					}
				}(i)
			}
			wg.Wait()

			Convey("Then every key is recorded", func() {
				So(d.Size(), ShouldEqual, int64(numGoroutines*keysPerGoroutine))
			})
		})

		Convey("When multiple goroutines race for the same key", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			winners := 0
			for i := 0; i < numGoroutines; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, seen := d.Claim(context.Background(), "shared"); !seen {
						mu.Lock()
						winners++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one claim wins", func() {
				So(winners, ShouldEqual, 1)
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})
}

func TestDedupeEdgeCases(t *testing.T) {
	Convey("Given a deduper with edge cases", t, func() {
		Convey("When claiming very long keys", func() {
			d := dedupe.NewInMemoryDeduper()
			long := strings.Repeat("a", 10000)
			_, first := d.Claim(context.Background(), long)
			_, second := d.Claim(context.Background(), long)

			Convey("Then they behave like any other key", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
			})
		})

		Convey("When using a max size of one", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1))
			d.Claim(context.Background(), "k1")
			d.Claim(context.Background(), "k2")

			Convey("Then only the newest key is kept", func() {
				So(d.Size(), ShouldEqual, 1)
				_, seen := d.Claim(context.Background(), "k2")
				So(seen, ShouldBeTrue)
			})
		})
	})
}
