// Package partpath implements the bijective naming convention between a
// logical path and its physical, part-numbered siblings: "{path}.part{N}".
// Both partedfile (which allocates new parts directly against the backend
// it's writing to) and partedfs (which lists and renames whole logical
// files) depend on this package so that neither has to depend on the other.
package partpath

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

const partInfix = ".part"

// partRegexp matches the ".partN" suffix: N is a non-negative decimal
// integer with no leading zeros (except the literal "0").
var partRegexp = regexp.MustCompile(`\.part(0|[1-9][0-9]*)$`)

// Encode returns the physical path of part i of the logical file at p.
func Encode(p string, i int) string {
	return p + partInfix + strconv.Itoa(i)
}

// Decode strips the ".partN" suffix from a physical path, returning the
// logical path, the part number, and whether q was in fact a part path.
func Decode(q string) (logical string, part int, ok bool) {
	loc := partRegexp.FindStringIndex(q)
	if loc == nil {
		return "", 0, false
	}

	logical = q[:loc[0]]
	numStr := strings.TrimPrefix(q[loc[0]:loc[1]], partInfix)
	n, err := strconv.Atoi(numStr)
	if err != nil {
		return "", 0, false
	}

	return logical, n, true
}

// IsPart reports whether q names any part of a logical file.
func IsPart(q string) bool {
	_, _, ok := Decode(q)
	return ok
}

// IsPartZero reports whether q is specifically part 0 of a logical file —
// the existence sentinel for that file.
func IsPartZero(q string) bool {
	_, n, ok := Decode(q)
	return ok && n == 0
}

// Base returns the base-name part of a path, for wildcard matching against
// logical (decoded) names.
func Base(p string) string {
	return path.Base(p)
}
