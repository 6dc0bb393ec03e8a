// Package resource implements concrete resource items: instances classified
// under a taxonomy kind and domain, owned by a scope path, and optionally
// backed by a kind-specific extension table.
package resource

import (
	"context"
	"time"
)

// Item is one concrete resource instance. Its code is unique within the
// (kind, domain) pair, not globally.
type Item struct {
	ID          string
	Code        string
	Name        string
	RelKindID   string
	RelDomainID string
	ScopeLevel  int
	OwnPaths    string
	Owner       string
	Disabled    bool
	CreateTime  time.Time
	UpdateTime  time.Time
}

// ItemModify carries the mutable fields of an item. Nil means unchanged.
type ItemModify struct {
	Code       *string
	Name       *string
	ScopeLevel *int
	Disabled   *bool
}

// Filter narrows item listings. Zero values are ignored.
type Filter struct {
	IDs             []string
	Code            string
	Name            string
	KindID          string
	DomainID        string
	ScopeLevel      *int
	Enabled         *bool
	WithSubOwnPaths bool
}

// Page addresses one page of a listing. Numbers are 1-based.
type Page struct {
	Number int
	Size   int
}

// PageResult is one page of items plus the unpaged total.
type PageResult struct {
	Items []*Item
	Total int64
}

// ColumnSpec describes one column of an extension table.
type ColumnSpec struct {
	Name    string
	SQLType string
}

// ExtensionTable is implemented by kind-specific extensions that persist
// extra columns in their own table, joined to resource_item by the item id.
// The migration tool creates the table from this description.
type ExtensionTable interface {
	TableName() string
	Columns() []ColumnSpec
}

// RefGuard vetoes an item delete. Packages holding references to items
// (bindings, relations) register a guard; a non-nil error blocks the delete.
type RefGuard func(ctx context.Context, itemID string) error
