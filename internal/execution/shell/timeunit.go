package shell

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TimeUnit is the unit of a timeout value passed to the bounded waits.
type TimeUnit int

const (
	Nanoseconds TimeUnit = iota
	Microseconds
	Milliseconds
	Seconds
	Minutes
	Hours
	Days
)

var timeUnitNames = map[TimeUnit]string{
	Nanoseconds:  "ns",
	Microseconds: "us",
	Milliseconds: "ms",
	Seconds:      "s",
	Minutes:      "m",
	Hours:        "h",
	Days:         "d",
}

var timeUnitAliases = map[string]TimeUnit{
	"ns": Nanoseconds, "nanos": Nanoseconds, "nanoseconds": Nanoseconds,
	"us": Microseconds, "micros": Microseconds, "microseconds": Microseconds,
	"ms": Milliseconds, "millis": Milliseconds, "milliseconds": Milliseconds,
	"s": Seconds, "sec": Seconds, "seconds": Seconds,
	"m": Minutes, "min": Minutes, "minutes": Minutes,
	"h": Hours, "hours": Hours,
	"d": Days, "days": Days,
}

func (u TimeUnit) String() string {
	if name, ok := timeUnitNames[u]; ok {
		return name
	}

	return fmt.Sprintf("TimeUnit(%d)", int(u))
}

// Size returns the length of one unit.
func (u TimeUnit) Size() time.Duration {
	switch u {
	case Nanoseconds:
		return time.Nanosecond
	case Microseconds:
		return time.Microsecond
	case Milliseconds:
		return time.Millisecond
	case Seconds:
		return time.Second
	case Minutes:
		return time.Minute
	case Hours:
		return time.Hour
	case Days:
		return 24 * time.Hour
	}

	return 0
}

// Duration converts n units to a duration. Values that do not fit into a
// time.Duration saturate at the min/max duration.
func (u TimeUnit) Duration(n int64) time.Duration {
	size := int64(u.Size())
	if size == 0 || n == 0 {
		return 0
	}

	if n > math.MaxInt64/size {
		return time.Duration(math.MaxInt64)
	}

	if n < math.MinInt64/size {
		return time.Duration(math.MinInt64)
	}

	return time.Duration(n * size)
}

// ParseTimeUnit parses a unit name like "ms", "seconds" or "m".
func ParseTimeUnit(s string) (TimeUnit, error) {
	if unit, ok := timeUnitAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return unit, nil
	}

	return 0, fmt.Errorf("unknown time unit %q", s)
}

// waitPrecision converts the remaining budget into the unit used for the
// final wait on the output promise: nanoseconds below one second, whole
// seconds from 1000 seconds on, milliseconds in between. The budget is
// decomposed into seconds and nanoseconds first, so the result never
// exceeds the remaining budget.
func waitPrecision(remaining time.Duration) (int64, TimeUnit) {
	secs := int64(remaining / time.Second)
	nanos := int64(remaining % time.Second)

	switch {
	case secs == 0:
		return nanos, Nanoseconds
	case secs >= 1000:
		return secs, Seconds
	default:
		return secs*1000 + nanos/int64(time.Millisecond), Milliseconds
	}
}
