// Package taxonomy manages resource domains and resource kinds: the registry
// every concrete resource item is classified against. Domains represent
// owning subsystems; kinds are typed categories, optionally backed by a
// per-kind extension table and optionally arranged in a kind hierarchy.
package taxonomy

import (
	"regexp"
	"time"
)

// codePattern constrains domain and kind codes.
var codePattern = regexp.MustCompile(`^[a-z0-9.-]+$`)

// ValidCode reports whether a domain or kind code is well formed.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// Domain represents a subsystem that owns a family of resource kinds.
// Identity fields (id, code) are immutable after creation.
type Domain struct {
	ID         string
	Code       string
	Name       string
	Note       string
	Icon       string
	Sort       int64
	ScopeLevel int
	OwnPaths   string
	Owner      string
	CreateTime time.Time
	UpdateTime time.Time
}

// Kind represents a typed category of resource. Module is a soft grouping;
// ExtTableName names the optional per-kind extension table; ParentID links
// into an optional kind hierarchy.
type Kind struct {
	ID           string
	Module       string
	Code         string
	Name         string
	Note         string
	Icon         string
	Sort         int64
	ExtTableName string
	ParentID     string
	ScopeLevel   int
	OwnPaths     string
	Owner        string
	CreateTime   time.Time
	UpdateTime   time.Time
}

// DomainModify carries the mutable descriptive fields of a domain. Nil
// fields are left unchanged.
type DomainModify struct {
	Name       *string
	Note       *string
	Icon       *string
	Sort       *int64
	ScopeLevel *int
}

// KindModify carries the mutable descriptive fields of a kind. Nil fields
// are left unchanged.
type KindModify struct {
	Module     *string
	Name       *string
	Note       *string
	Icon       *string
	Sort       *int64
	ScopeLevel *int
}

// Filter selects domains or kinds in list queries. String filters follow the
// shared conventions: Name matches anywhere, Code matches as a prefix.
type Filter struct {
	IDs             []string
	Name            string
	Code            string
	WithSubOwnPaths bool
}
