// Package versions orders framework and mod version strings. Plain dotted
// numeric versions of any length (BepInEx uses four components) are compared
// component-wise; anything else must be a valid semantic version.
package versions

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrInvalidVersion is returned for strings that cannot be ordered.
var ErrInvalidVersion = errors.New("invalid version")

// Normalize trims whitespace and a leading "v".
func Normalize(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	return strings.TrimPrefix(v, "V")
}

// Valid reports whether v can take part in a comparison.
func Valid(v string) bool {
	n := Normalize(v)
	if _, ok := numericParts(n); ok {
		return true
	}
	return semver.IsValid("v" + n)
}

// Compare returns -1, 0 or 1 as a is older than, equal to or newer than b.
func Compare(a, b string) (int, error) {
	na, nb := Normalize(a), Normalize(b)

	pa, okA := numericParts(na)
	pb, okB := numericParts(nb)
	if okA && okB {
		return compareNumeric(pa, pb), nil
	}

	sa, sb := "v"+na, "v"+nb
	if !semver.IsValid(sa) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, a)
	}
	if !semver.IsValid(sb) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, b)
	}
	return semver.Compare(sa, sb), nil
}

// Newer reports whether candidate is strictly newer than current.
func Newer(candidate, current string) (bool, error) {
	c, err := Compare(candidate, current)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// InRange reports whether v satisfies lower <= v <= upper. Empty bounds are open.
func InRange(v, lower, upper string) (bool, error) {
	if lower != "" {
		c, err := Compare(v, lower)
		if err != nil {
			return false, err
		}
		if c < 0 {
			return false, nil
		}
	}
	if upper != "" {
		c, err := Compare(v, upper)
		if err != nil {
			return false, err
		}
		if c > 0 {
			return false, nil
		}
	}
	return true, nil
}

// SortDesc orders vs newest first in place. Unparseable entries sink to the end
// in their original relative order.
func SortDesc(vs []string) {
	slices.SortStableFunc(vs, func(a, b string) int {
		validA, validB := Valid(a), Valid(b)
		switch {
		case !validA && !validB:
			return 0
		case !validA:
			return 1
		case !validB:
			return -1
		}
		c, err := Compare(b, a)
		if err != nil {
			return 0
		}
		return c
	})
}

// Contains reports whether vs holds a version equal to v.
func Contains(vs []string, v string) bool {
	for _, candidate := range vs {
		if Normalize(candidate) == Normalize(v) {
			return true
		}
		if c, err := Compare(candidate, v); err == nil && c == 0 {
			return true
		}
	}
	return false
}

func numericParts(v string) ([]uint64, bool) {
	if v == "" {
		return nil, false
	}
	fields := strings.Split(v, ".")
	parts := make([]uint64, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			return nil, false
		}
		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, false
		}
		parts = append(parts, n)
	}
	return parts, true
}

func compareNumeric(a, b []uint64) int {
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		var x, y uint64
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}
