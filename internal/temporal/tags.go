package temporal

import (
	"fmt"
	"time"
)

// Tag is a resolution tag: the native time granularity of a data capability.
type Tag string

const (
	Tag1m  Tag = "1m"
	Tag5m  Tag = "5m"
	Tag10m Tag = "10m"
	Tag15m Tag = "15m"
	Tag20m Tag = "20m"
	Tag30m Tag = "30m"
	Tag40m Tag = "40m"
	Tag45m Tag = "45m"
	Tag1h  Tag = "1h"
	Tag2h  Tag = "2h"
	Tag3h  Tag = "3h"
	Tag4h  Tag = "4h"
	Tag6h  Tag = "6h"
	Tag8h  Tag = "8h"
	Tag12h Tag = "12h"
	Tag24h Tag = "24h"

	TagDay1 Tag = "day1"
	TagDay2 Tag = "day2"
	TagDay3 Tag = "day3"
	TagDay4 Tag = "day4"
	TagDay5 Tag = "day5"
	TagDay6 Tag = "day6"
	TagDay7 Tag = "day7"
	TagDay8 Tag = "day8"
)

type truncateFunc func(time.Time) time.Time

type granularity struct {
	tag      Tag
	truncate truncateFunc
}

// granularities is ordered coarse to fine. sync walks it forward, nearest
// walks it backward.
var granularities = []granularity{
	{Tag24h, truncateHours(24)},
	{Tag12h, truncateHours(12)},
	{Tag8h, truncateHours(8)},
	{Tag6h, truncateHours(6)},
	{Tag4h, truncateHours(4)},
	{Tag3h, truncateHours(3)},
	{Tag2h, truncateHours(2)},
	{Tag1h, truncateHours(1)},
	{Tag45m, truncateMinutes(45)},
	{Tag40m, truncateMinutes(40)},
	{Tag30m, truncateMinutes(30)},
	{Tag20m, truncateMinutes(20)},
	{Tag15m, truncateMinutes(15)},
	{Tag10m, truncateMinutes(10)},
	{Tag5m, truncateMinutes(5)},
	{Tag1m, truncateMinutes(1)},
}

// cutovers holds the irregular schedules as ascending minute-of-day
// thresholds. An empty schedule truncates to midnight.
var cutovers = map[Tag][]int{
	TagDay1: {1 * 60, 6 * 60, 13 * 60, 16*60 + 30, 20 * 60},
	TagDay2: {8 * 60, 17*60 + 30},
	TagDay3: {7*60 + 30},
	TagDay4: nil,
	TagDay5: nil,
	TagDay6: nil,
	TagDay7: nil,
	TagDay8: nil,
}

var regularIndex = func() map[Tag]int {
	m := make(map[Tag]int, len(granularities))
	for i, g := range granularities {
		m[g.tag] = i
	}
	return m
}()

func (t Tag) Regular() bool {
	_, ok := regularIndex[t]
	return ok
}

func (t Tag) Irregular() bool {
	_, ok := cutovers[t]
	return ok
}

func (t Tag) Valid() bool {
	return t.Regular() || t.Irregular()
}

// ParseTag validates a tag string against the vocabulary.
func ParseTag(s string) (Tag, error) {
	t := Tag(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTag, s)
	}
	return t, nil
}

// Truncate applies the tag's own rule to ts: the granularity boundary for a
// regular tag, the cutover schedule for an irregular one.
func (t Tag) Truncate(ts time.Time) time.Time {
	if i, ok := regularIndex[t]; ok {
		return granularities[i].truncate(ts)
	}
	if schedule, ok := cutovers[t]; ok {
		return applyCutover(ts, schedule)
	}
	return ts
}

func truncateHours(n int) truncateFunc {
	return func(ts time.Time) time.Time {
		y, mo, d := ts.Date()
		h := ts.Hour()
		return time.Date(y, mo, d, h-h%n, 0, 0, 0, ts.Location())
	}
}

func truncateMinutes(n int) truncateFunc {
	return func(ts time.Time) time.Time {
		y, mo, d := ts.Date()
		total := ts.Hour()*60 + ts.Minute()
		total -= total % n
		return time.Date(y, mo, d, total/60, total%60, 0, 0, ts.Location())
	}
}

func applyCutover(ts time.Time, schedule []int) time.Time {
	y, mo, d := ts.Date()
	if len(schedule) == 0 {
		return time.Date(y, mo, d, 0, 0, 0, 0, ts.Location())
	}

	minuteOfDay := ts.Hour()*60 + ts.Minute()
	for i := len(schedule) - 1; i >= 0; i-- {
		if schedule[i] <= minuteOfDay {
			return time.Date(y, mo, d, schedule[i]/60, schedule[i]%60, 0, 0, ts.Location())
		}
	}

	last := schedule[len(schedule)-1]
	return time.Date(y, mo, d-1, last/60, last%60, 0, 0, ts.Location())
}
