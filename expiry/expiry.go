// Package expiry draws randomized TTLs so that entries written together do
// not all expire together.
package expiry

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"
)

// Band is an inclusive range of TTLs. Draws are whole seconds.
type Band struct {
	Name   string
	Lo, Hi time.Duration
}

var (
	Medium    = Band{Name: "medium", Lo: 1 * time.Hour, Hi: 3 * time.Hour}
	Long      = Band{Name: "long", Lo: 4 * time.Hour, Hi: 8 * time.Hour}
	ExtraLong = Band{Name: "extra-long", Lo: 9 * time.Hour, Hi: 24 * time.Hour}

	// CacheAge bounds the max-age advertised to HTTP caches.
	CacheAge = Band{Name: "cache-age", Lo: 30 * time.Minute, Hi: 24 * time.Hour}
)

const (
	CacheAge30Mins = 30 * time.Minute
	CacheAge1Day   = 24 * time.Hour
)

func (b Band) Validate() error {
	if b.Lo < time.Second || b.Hi <= b.Lo {
		return fmt.Errorf("expiry: invalid band %q [%s, %s]", b.Name, b.Lo, b.Hi)
	}
	return nil
}

// Random returns a uniformly drawn TTL in [Lo, Hi].
func (b Band) Random() time.Duration {
	return time.Duration(b.Seconds()) * time.Second
}

// Seconds is Random in whole seconds.
func (b Band) Seconds() int64 { return b.draw(rand.Int64N) }

// draw maps int64n, which must return a value in [0, n), onto the band.
func (b Band) draw(int64n func(n int64) int64) int64 {
	lo, hi := int64(b.Lo/time.Second), int64(b.Hi/time.Second)
	if hi <= lo {
		return lo
	}
	return lo + int64n(hi-lo+1)
}

func MediumExpiry() time.Duration    { return Medium.Random() }
func LongExpiry() time.Duration      { return Long.Random() }
func ExtraLongExpiry() time.Duration { return ExtraLong.Random() }

// CacheControl renders a public Cache-Control value for d, clamped to CacheAge.
func CacheControl(d time.Duration) string {
	if d < CacheAge.Lo {
		d = CacheAge.Lo
	}
	if d > CacheAge.Hi {
		d = CacheAge.Hi
	}
	n := strconv.FormatInt(int64(d/time.Second), 10)
	return "public, s-maxage=" + n + ", max-age=" + n
}
