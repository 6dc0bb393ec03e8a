package scope

import "strings"

// PrivateScopeLevel marks a record that never widens beyond its exact
// ownership path.
const PrivateScopeLevel = -1

// Visible reports whether a record is visible to a caller whose effective
// ownership path is standardOwnPaths.
//
// A record is visible when its ownership path equals the caller's, or (with
// withSub) is a descendant of it. Otherwise the record's scope level widens
// the check: the caller's level-N ancestor path must be prefixed by the
// record's ownership path (truncated to the same length). A record with
// PrivateScopeLevel never widens.
func Visible(recordOwnPaths string, recordScopeLevel int, standardOwnPaths string, withSub bool) bool {
	if recordOwnPaths == standardOwnPaths || withSub && strings.HasPrefix(recordOwnPaths, standardOwnPaths) {
		return true
	}
	if recordScopeLevel < 0 {
		return false
	}
	standardSub, ok := ancestorPath(recordScopeLevel, standardOwnPaths)
	if !ok {
		return false
	}
	recordSub := recordOwnPaths
	if len(recordOwnPaths) > len(standardSub) {
		recordSub = recordOwnPaths[:len(standardSub)]
	}
	return strings.HasPrefix(standardSub, recordSub)
}
