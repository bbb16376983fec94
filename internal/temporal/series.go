package temporal

import (
	"fmt"
	"time"

	"github.com/alucardeht/amgp/internal/timespec"
)

// DefaultInterval is the step used when a range is given without one.
const DefaultInterval = 5 * time.Minute

// DefaultMaxSteps bounds expansion of very long ranges.
const DefaultMaxSteps = 10000

// Series is an ordered, non-empty list of timestamps.
type Series []time.Time

// Expand turns an expression into its series: start alone, or start, end and
// every interval step in between, inclusive of end when it lands on a step.
// Sub-second precision is dropped from every element.
func Expand(expr timespec.Expression, maxSteps int) (Series, error) {
	start := expr.Start.Truncate(time.Second)
	if expr.End == nil {
		return Series{start}, nil
	}

	end := expr.End.Truncate(time.Second)
	interval := DefaultInterval
	if expr.Interval != nil {
		interval = *expr.Interval
	}

	if interval <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrNonTerminatingInterval, interval)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrEmptyTimeSeries,
			end.Format(timespec.Layout), start.Format(timespec.Layout))
	}

	steps := int64(end.Sub(start)/interval) + 1
	if maxSteps > 0 && steps > int64(maxSteps) {
		return nil, fmt.Errorf("%w: %d steps, limit %d", ErrSeriesTooLong, steps, maxSteps)
	}

	series := make(Series, 0, steps)
	for ts := start; !ts.After(end); ts = ts.Add(interval) {
		series = append(series, ts)
	}
	return series, nil
}

func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}
