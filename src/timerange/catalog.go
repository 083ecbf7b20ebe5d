package timerange

import (
	"fmt"

	"candle-aggregator/src/helpers"
)

// Default window policy. Both are overridable through the aggregation config.
const (
	DefaultCloseOffsetMs   int64 = 1000
	DefaultContinuityGapMs int64 = 10000
)

const (
	minute int64 = 60 * 1000
	hour         = 60 * minute
	day          = 24 * hour
)

// supported maps every accepted timerange name to its length in milliseconds.
// Windows are counted from the Unix epoch (Thursday 1970-01-01 UTC), so 3d
// windows follow the epoch and 1w windows open on Thursday 00:00 UTC, not on
// the Monday used by exchange weekly klines.
var supported = map[string]int64{
	"1m":  minute,
	"3m":  3 * minute,
	"5m":  5 * minute,
	"15m": 15 * minute,
	"30m": 30 * minute,
	"1h":  hour,
	"2h":  2 * hour,
	"4h":  4 * hour,
	"6h":  6 * hour,
	"8h":  8 * hour,
	"12h": 12 * hour,
	"1d":  day,
	"3d":  3 * day,
	"1w":  7 * day,
}

// -----------------------------------------------------------------------------

// Timerange is a named fixed-length aggregation window
type Timerange struct {
	Name       string
	DurationMs int64
}

// -----------------------------------------------------------------------------

// IsSupported reports whether name is a known timerange
func IsSupported(name string) bool {
	_, ok := supported[name]
	return ok
}

// DurationOf returns the length of a supported timerange in milliseconds
func DurationOf(name string) (int64, error) {
	d, ok := supported[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", helpers.ErrUnknownTimerange, name)
	}
	return d, nil
}

// -----------------------------------------------------------------------------

// Bounds returns the window containing t for a window of durationMs:
// open = t - t mod durationMs, close = open + durationMs - closeOffsetMs.
func Bounds(durationMs, closeOffsetMs, t int64) (int64, int64) {
	open := t - (t % durationMs)
	return open, open + durationMs - closeOffsetMs
}

// -----------------------------------------------------------------------------

// Catalog is the ordered, read-only set of configured timeranges
type Catalog struct {
	ranges        []Timerange
	byName        map[string]Timerange
	base          Timerange
	closeOffsetMs int64
}

// -----------------------------------------------------------------------------

// NewCatalog validates names and builds the catalog in the given order.
// The base timerange is the shortest one.
func NewCatalog(names []string, closeOffsetMs int64) (*Catalog, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one timerange must be configured")
	}
	if closeOffsetMs < 0 {
		return nil, fmt.Errorf("close offset cannot be negative: %d", closeOffsetMs)
	}

	c := &Catalog{
		ranges:        make([]Timerange, 0, len(names)),
		byName:        make(map[string]Timerange, len(names)),
		closeOffsetMs: closeOffsetMs,
	}

	for _, name := range names {
		d, err := DurationOf(name)
		if err != nil {
			return nil, err
		}
		if _, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("duplicate timerange %q", name)
		}
		if closeOffsetMs >= d {
			return nil, fmt.Errorf("close offset %dms must be shorter than timerange %q", closeOffsetMs, name)
		}

		tr := Timerange{Name: name, DurationMs: d}
		c.ranges = append(c.ranges, tr)
		c.byName[name] = tr

		if c.base.Name == "" || d < c.base.DurationMs {
			c.base = tr
		}
	}

	return c, nil
}

// -----------------------------------------------------------------------------

// Timeranges returns the configured timeranges in iteration order
func (c *Catalog) Timeranges() []Timerange {
	out := make([]Timerange, len(c.ranges))
	copy(out, c.ranges)
	return out
}

// Names returns the configured timerange names in iteration order
func (c *Catalog) Names() []string {
	out := make([]string, len(c.ranges))
	for i, tr := range c.ranges {
		out[i] = tr.Name
	}
	return out
}

// Base returns the shortest configured timerange
func (c *Catalog) Base() Timerange {
	return c.base
}

// Has reports whether name is part of this catalog
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// CloseOffsetMs returns the distance kept between close_time and the next open
func (c *Catalog) CloseOffsetMs() int64 {
	return c.closeOffsetMs
}

// -----------------------------------------------------------------------------

// GetTimerange returns the (open, close) window of name containing t.
// Unknown names yield (0, 0) and ErrUnknownTimerange; (0, 0) is never a
// valid window.
func (c *Catalog) GetTimerange(name string, t int64) (int64, int64, error) {
	tr, ok := c.byName[name]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", helpers.ErrUnknownTimerange, name)
	}
	openTime, closeTime := Bounds(tr.DurationMs, c.closeOffsetMs, t)
	return openTime, closeTime, nil
}
