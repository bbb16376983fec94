// Package timespec parses the free-form time expressions users give a render
// pass, such as "recent" or
// "20240101-00:00:00 to 20240102-00:00:00 interval 06:00:00".
package timespec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Layout is the fixed absolute timestamp format, YYYYmmdd-HH:MM:SS in UTC.
const Layout = "20060102-15:04:05"

const (
	keywordRecent   = "recent"
	keywordTo       = "to"
	keywordInterval = "interval"
)

var (
	ErrAmbiguousTimeSpec = errors.New("ambiguous time specification")
	ErrMalformedTimeSpec = errors.New("malformed time specification")
)

// folded case-folds a token. A Caser is stateful, so each call gets its own.
func folded(s string) string {
	return cases.Fold().String(s)
}

// Expression is a parsed time specification. End and Interval are optional.
type Expression struct {
	Start    time.Time
	End      *time.Time
	Interval *time.Duration
}

// Spec is what callers hand the engine: either an expression string or the
// structured fields, never both.
type Spec struct {
	Expression string         `json:"expression,omitempty" yaml:"expression,omitempty"`
	Start      *time.Time     `json:"start,omitempty" yaml:"start,omitempty"`
	End        *time.Time     `json:"end,omitempty" yaml:"end,omitempty"`
	Interval   *time.Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
}

func (s Spec) structured() bool {
	return s.Start != nil || s.End != nil || s.Interval != nil
}

// Resolve turns the spec into an Expression. "recent" resolves to anchor.
func (s Spec) Resolve(anchor time.Time) (Expression, error) {
	hasExpr := strings.TrimSpace(s.Expression) != ""

	switch {
	case hasExpr && s.structured():
		return Expression{}, fmt.Errorf("%w: expression %q given together with explicit start/end/interval", ErrAmbiguousTimeSpec, s.Expression)
	case hasExpr:
		return Parse(s.Expression, anchor)
	case s.Start == nil:
		return Expression{}, fmt.Errorf("%w: no start time", ErrMalformedTimeSpec)
	}

	expr := Expression{Start: s.Start.UTC()}
	if s.End != nil {
		end := s.End.UTC()
		expr.End = &end
	}
	if s.Interval != nil {
		iv := *s.Interval
		expr.Interval = &iv
	}
	return expr, nil
}

// Parse accepts
//
//	<start>
//	<start> to <end>
//	<start> to <end> interval <HH:MM:SS>
//
// where <start> and <end> are "recent" or an absolute timestamp in Layout.
// Keywords are matched case-insensitively.
func Parse(expression string, anchor time.Time) (Expression, error) {
	tokens := strings.Fields(expression)
	if len(tokens) == 0 {
		return Expression{}, fmt.Errorf("%w: empty expression", ErrMalformedTimeSpec)
	}

	toIndex := -1
	for i, tok := range tokens {
		if folded(tok) != keywordTo {
			continue
		}
		if toIndex >= 0 {
			return Expression{}, fmt.Errorf("%w: %q has more than one %q", ErrMalformedTimeSpec, expression, keywordTo)
		}
		toIndex = i
	}

	if toIndex < 0 {
		if len(tokens) != 1 {
			return Expression{}, fmt.Errorf("%w: %q is not a single timestamp", ErrMalformedTimeSpec, expression)
		}
		start, err := parseTimestamp(tokens[0], anchor)
		if err != nil {
			return Expression{}, err
		}
		return Expression{Start: start}, nil
	}

	if toIndex != 1 {
		return Expression{}, fmt.Errorf("%w: %q must have exactly one start before %q", ErrMalformedTimeSpec, expression, keywordTo)
	}
	if toIndex+1 >= len(tokens) {
		return Expression{}, fmt.Errorf("%w: %q has no end after %q", ErrMalformedTimeSpec, expression, keywordTo)
	}

	start, err := parseTimestamp(tokens[0], anchor)
	if err != nil {
		return Expression{}, err
	}
	end, err := parseTimestamp(tokens[toIndex+1], anchor)
	if err != nil {
		return Expression{}, err
	}
	expr := Expression{Start: start, End: &end}

	rest := tokens[toIndex+2:]
	switch {
	case len(rest) == 0:
		return expr, nil
	case folded(rest[0]) != keywordInterval:
		return Expression{}, fmt.Errorf("%w: unexpected token %q", ErrMalformedTimeSpec, rest[0])
	case len(rest) == 1:
		return Expression{}, fmt.Errorf("%w: %q is missing its duration", ErrMalformedTimeSpec, keywordInterval)
	case len(rest) > 2:
		return Expression{}, fmt.Errorf("%w: unexpected token %q", ErrMalformedTimeSpec, rest[2])
	}

	interval, err := ParseDuration(rest[1])
	if err != nil {
		return Expression{}, err
	}
	expr.Interval = &interval
	return expr, nil
}

func parseTimestamp(tok string, anchor time.Time) (time.Time, error) {
	if folded(tok) == keywordRecent {
		return anchor, nil
	}
	ts, err := time.ParseInLocation(Layout, tok, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not %s or %q", ErrMalformedTimeSpec, tok, Layout, keywordRecent)
	}
	return ts, nil
}

// ParseDuration parses an HH:MM:SS interval. Hours may exceed 23.
func ParseDuration(tok string) (time.Duration, error) {
	fields := strings.Split(tok, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("%w: interval %q is not HH:MM:SS", ErrMalformedTimeSpec, tok)
	}

	var values [3]int
	for i, f := range fields {
		if len(f) < 2 || strings.TrimLeft(f, "0123456789") != "" {
			return 0, fmt.Errorf("%w: interval %q is not HH:MM:SS", ErrMalformedTimeSpec, tok)
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			return 0, fmt.Errorf("%w: interval %q: %v", ErrMalformedTimeSpec, tok, err)
		}
		values[i] = v
	}
	if values[1] > 59 || values[2] > 59 {
		return 0, fmt.Errorf("%w: interval %q has out-of-range minutes or seconds", ErrMalformedTimeSpec, tok)
	}

	return time.Duration(values[0])*time.Hour +
		time.Duration(values[1])*time.Minute +
		time.Duration(values[2])*time.Second, nil
}

// Format renders an expression back into the grammar Parse accepts.
func (e Expression) Format() string {
	var b strings.Builder
	b.WriteString(e.Start.UTC().Format(Layout))
	if e.End != nil {
		b.WriteString(" to ")
		b.WriteString(e.End.UTC().Format(Layout))
		if e.Interval != nil {
			d := *e.Interval
			fmt.Fprintf(&b, " interval %02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
		}
	}
	return b.String()
}
