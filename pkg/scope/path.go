// Package scope implements hierarchical ownership paths and the visibility
// rules built on them.
//
// An ownership path is a string of '/'-separated segments, conceptually a
// root-to-node path in a global ownership tree (e.g. "tenant1/app1"). Segment
// count is the scope level: level 0 is global/root, level 1 a tenant, level 2
// an application, and so on. All visibility filtering reduces to prefix
// comparisons between a record's stored ownership path and the caller's path,
// optionally widened by the record's scope level.
package scope

import (
	"strings"

	"github.com/platinummonkey/stratum/pkg/errdef"
)

// MaxLevel is the deepest enumerated scope level (root/tenant/app/unit).
const MaxLevel = 3

// normalize trims whitespace and a single trailing separator.
func normalize(ownPaths string) string {
	return strings.TrimSuffix(strings.TrimSpace(ownPaths), "/")
}

// Level returns the segment count of an ownership path. The empty path is
// level 0.
func Level(ownPaths string) int {
	p := normalize(ownPaths)
	if p == "" {
		return 0
	}
	return strings.Count(p, "/") + 1
}

// DeriveScopeLevel returns the enumerated scope level of a caller's path, or
// InvalidArgument when the path is deeper than MaxLevel.
func DeriveScopeLevel(ownPaths string) (int, error) {
	level := Level(ownPaths)
	if level > MaxLevel {
		return 0, errdef.InvalidArgumentf("own paths %q exceeds max scope level %d", ownPaths, MaxLevel)
	}
	return level, nil
}

// AncestorPath truncates ownPaths to its first scopeLevel segments. Level 0
// always yields the empty path. A path with fewer segments than requested is
// returned with a trailing "//" so it can never be mistaken for a real
// ancestor (in particular, the empty path at a nonzero level becomes "//").
func AncestorPath(scopeLevel int, ownPaths string) string {
	if scopeLevel <= 0 {
		return ""
	}
	p := normalize(ownPaths)
	var segments []string
	if p != "" {
		segments = strings.Split(p, "/")
	}
	if len(segments) < scopeLevel {
		return strings.Join(segments, "/") + "//"
	}
	return strings.Join(segments[:scopeLevel], "/")
}

// ancestorPath is the strict form used by visibility checks: ok is false
// when ownPaths has fewer than scopeLevel segments.
func ancestorPath(scopeLevel int, ownPaths string) (string, bool) {
	if scopeLevel <= 0 {
		return "", true
	}
	p := normalize(ownPaths)
	var segments []string
	if p != "" {
		segments = strings.Split(p, "/")
	}
	if len(segments) < scopeLevel {
		return "", false
	}
	return strings.Join(segments[:scopeLevel], "/"), true
}

// Segment returns the path segment at the given 1-indexed level, or false
// when the level is 0 or out of range.
func Segment(scopeLevel int, ownPaths string) (string, bool) {
	p := normalize(ownPaths)
	if scopeLevel <= 0 || p == "" {
		return "", false
	}
	segments := strings.Split(p, "/")
	if len(segments) < scopeLevel {
		return "", false
	}
	return segments[scopeLevel-1], true
}

// DeepestSegment returns the last segment of an ownership path (the caller's
// most specific owning unit), or false when the path is empty.
func DeepestSegment(ownPaths string) (string, bool) {
	p := normalize(ownPaths)
	if p == "" {
		return "", false
	}
	segments := strings.Split(p, "/")
	return segments[len(segments)-1], true
}
