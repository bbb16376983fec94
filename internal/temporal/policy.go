package temporal

import (
	"fmt"
	"strings"
)

// Policy decides how several components' granularities are reconciled into
// one figure's timestamp.
type Policy string

const (
	PolicySync    Policy = "sync"
	PolicyAsync   Policy = "async"
	PolicyNearest Policy = "nearest"
	PolicyRaw     Policy = "raw"
)

func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PolicySync, PolicyAsync, PolicyNearest, PolicyRaw:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

func (p Policy) String() string { return string(p) }
