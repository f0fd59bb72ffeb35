package sampling

import (
	"hash/fnv"
	"time"
)

// DaySeed builds the seed string for a (region, locale, calendar day) triple.
// The day is taken in loc; nil means UTC.
func DaySeed(region, locale string, day time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return region + ":" + locale + ":" + day.In(loc).Format("2006-01-02")
}

// DayStart returns midnight of t's calendar day in loc; nil means UTC.
func DayStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// HashSeed maps a seed string to an integer with 32-bit FNV-1a. The algorithm
// is frozen: changing it reshuffles every deployed feed.
func HashSeed(seed string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(seed))
	return h.Sum32()
}

// rng is a mulberry32 generator. Frozen for the same reason as HashSeed.
type rng struct {
	state uint32
}

func newRNG(seed uint32) *rng {
	return &rng{state: seed}
}

func (r *rng) next() uint32 {
	r.state += 0x6D2B79F5
	t := r.state
	t = (t ^ t>>15) * (t | 1)
	t = (t + (t^t>>7)*(t|61)) ^ t
	return t ^ t>>14
}

// intn returns a value in [0, n) using the high bits of next.
func (r *rng) intn(n int) int {
	return int((uint64(r.next()) * uint64(n)) >> 32)
}
