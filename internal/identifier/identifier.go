// Package identifier encodes and decodes the 8-digit component identifiers
// that every plugin declares through its identity contract.
//
// The layout is CCCRPPPP: three category digits, one role digit and four
// priority digits. The priority is the sort key inside a role class.
package identifier

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	Width         = 8
	categoryWidth = 3
	roleWidth     = 1
	priorityWidth = 4

	MaxCategory = 999
	MaxPriority = 9999
)

var (
	ErrMalformedIdentifier = errors.New("malformed identifier")
	ErrInvalidIdentifier   = errors.New("invalid identifier")
)

type RoleClass int

const (
	RoleUtility RoleClass = 0
	RoleData    RoleClass = 1
	RoleMenu    RoleClass = 2
	// RoleCombo is reserved for composite components and is not accepted yet.
	RoleCombo RoleClass = 3
)

// Roles lists the role classes a registry buckets components into.
var Roles = []RoleClass{RoleUtility, RoleData, RoleMenu}

func (r RoleClass) Valid() bool {
	switch r {
	case RoleUtility, RoleData, RoleMenu:
		return true
	}
	return false
}

func (r RoleClass) String() string {
	switch r {
	case RoleUtility:
		return "utility"
	case RoleData:
		return "data"
	case RoleMenu:
		return "menu"
	case RoleCombo:
		return "combo"
	default:
		return "unknown"
	}
}

// ParseRole accepts either the role name or its digit.
func ParseRole(s string) (RoleClass, error) {
	switch s {
	case "utility", "util", "0":
		return RoleUtility, nil
	case "data", "1":
		return RoleData, nil
	case "menu", "2":
		return RoleMenu, nil
	}
	return 0, fmt.Errorf("%w: unknown role %q", ErrInvalidIdentifier, s)
}

// ID is the raw 8-character identifier string.
type ID string

func (id ID) String() string { return string(id) }

type Parts struct {
	Role     RoleClass
	Category int
	Priority int
}

func Encode(role RoleClass, category, priority int) (ID, error) {
	if !role.Valid() {
		return "", fmt.Errorf("%w: role %d is not recognized", ErrInvalidIdentifier, int(role))
	}
	if category < 0 || category > MaxCategory {
		return "", fmt.Errorf("%w: category %d does not fit %d digits", ErrInvalidIdentifier, category, categoryWidth)
	}
	if priority < 0 || priority > MaxPriority {
		return "", fmt.Errorf("%w: priority %d does not fit %d digits", ErrInvalidIdentifier, priority, priorityWidth)
	}
	return ID(fmt.Sprintf("%03d%d%04d", category, int(role), priority)), nil
}

func Decode(code string) (Parts, error) {
	if len(code) != Width {
		return Parts{}, fmt.Errorf("%w: %q must be exactly %d characters", ErrMalformedIdentifier, code, Width)
	}

	category, err := digits(code[:categoryWidth])
	if err != nil {
		return Parts{}, fmt.Errorf("%w: category of %q: %v", ErrMalformedIdentifier, code, err)
	}
	role, err := digits(code[categoryWidth : categoryWidth+roleWidth])
	if err != nil {
		return Parts{}, fmt.Errorf("%w: role of %q: %v", ErrMalformedIdentifier, code, err)
	}
	priority, err := digits(code[categoryWidth+roleWidth:])
	if err != nil {
		return Parts{}, fmt.Errorf("%w: priority of %q: %v", ErrMalformedIdentifier, code, err)
	}

	p := Parts{Role: RoleClass(role), Category: category, Priority: priority}
	if !p.Role.Valid() {
		return Parts{}, fmt.Errorf("%w: %q has unrecognized role %d", ErrInvalidIdentifier, code, role)
	}
	return p, nil
}

// digits parses an unsigned decimal segment; strconv alone would accept a sign.
func digits(s string) (int, error) {
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-numeric segment %q", s)
		}
	}
	return strconv.Atoi(s)
}

func (p Parts) ID() ID {
	return ID(fmt.Sprintf("%03d%d%04d", p.Category, int(p.Role), p.Priority))
}

// Compare orders parts by role class, then priority.
func Compare(a, b Parts) int {
	switch {
	case a.Role < b.Role:
		return -1
	case a.Role > b.Role:
		return 1
	case a.Priority < b.Priority:
		return -1
	case a.Priority > b.Priority:
		return 1
	}
	return 0
}
