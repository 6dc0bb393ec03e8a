package tree

import (
	"strings"

	"github.com/platinummonkey/stratum/pkg/errdef"
)

const base36Digits = "0123456789abcdefghijklmnopqrstuvwxyz"

// System codes are fixed-width base36 segments concatenated per tree level, so
// lexicographic order equals tree order and a LIKE prefix scan selects a whole
// subtree. With width 4, the first top-level node is "0000" and its first
// child is "00000000".

// firstCode returns the sys code of the first child under a parent prefix.
func firstCode(parentSysCode string, width int) string {
	return parentSysCode + strings.Repeat("0", width)
}

// nextCode returns the sibling code after the given one: the last segment is
// incremented in base36 with carry. A fully saturated segment is a Conflict,
// the level is out of codes.
func nextCode(sysCode string, width int) (string, error) {
	if len(sysCode) < width {
		return "", errdef.InvalidArgumentf("sys code %q is shorter than segment width %d", sysCode, width)
	}
	prefix := sysCode[:len(sysCode)-width]
	segment := []byte(sysCode[len(sysCode)-width:])
	for i := len(segment) - 1; i >= 0; i-- {
		idx := strings.IndexByte(base36Digits, segment[i])
		if idx < 0 {
			return "", errdef.InvalidArgumentf("sys code %q contains invalid digit %q", sysCode, segment[i])
		}
		if idx < len(base36Digits)-1 {
			segment[i] = base36Digits[idx+1]
			return prefix + string(segment), nil
		}
		segment[i] = '0'
	}
	return "", errdef.Conflictf("sys codes exhausted under prefix %q", prefix)
}

// parentCodes returns the ancestor sys codes of a node, nearest first. The
// top-level node has none.
func parentCodes(sysCode string, width int) []string {
	var parents []string
	for l := len(sysCode) - width; l >= width; l -= width {
		parents = append(parents, sysCode[:l])
	}
	return parents
}

// codeLevel returns the 1-based depth of a sys code.
func codeLevel(sysCode string, width int) int {
	return len(sysCode) / width
}

// validSysCode reports whether a sys code is a non-empty whole number of
// base36 segments.
func validSysCode(sysCode string, width int) bool {
	if len(sysCode) == 0 || len(sysCode)%width != 0 {
		return false
	}
	for i := 0; i < len(sysCode); i++ {
		if strings.IndexByte(base36Digits, sysCode[i]) < 0 {
			return false
		}
	}
	return true
}
