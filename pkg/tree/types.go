// Package tree implements resource sets: named hierarchies of categories with
// items mounted onto category nodes. Category positions are encoded as
// fixed-width base36 system codes so subtree and ancestor queries are prefix
// scans.
package tree

import (
	"time"
)

// Set is one named tree.
type Set struct {
	ID         string
	Code       string
	Kind       string
	Name       string
	Note       string
	Icon       string
	Sort       int64
	Ext        string
	ScopeLevel int
	OwnPaths   string
	Owner      string
	Disabled   bool
	CreateTime time.Time
	UpdateTime time.Time
}

// SetModify carries the mutable fields of a set. Nil means unchanged.
type SetModify struct {
	Name       *string
	Note       *string
	Icon       *string
	Sort       *int64
	Ext        *string
	ScopeLevel *int
	Disabled   *bool
}

// Category is one tree node. SysCode is its full position path; BusCode is a
// caller-defined business key with no structural meaning.
type Category struct {
	ID         string
	SysCode    string
	BusCode    string
	Name       string
	Icon       string
	Sort       int64
	Ext        string
	RelSetID   string
	ScopeLevel int
	OwnPaths   string
	Owner      string
	CreateTime time.Time
	UpdateTime time.Time
}

// CategoryModify carries the mutable fields of a category. Position is
// changed through MoveCategory, never here.
type CategoryModify struct {
	BusCode    *string
	Name       *string
	Icon       *string
	Sort       *int64
	Ext        *string
	ScopeLevel *int
}

// Binding mounts one item onto one category node, identified by the node's
// sys code so bindings follow the node through moves.
type Binding struct {
	ID             string
	Sort           int64
	RelSetID       string
	RelCateSysCode string
	RelItemID      string
	OwnPaths       string
	Owner          string
	CreateTime     time.Time
	UpdateTime     time.Time
}

// QueryKind selects which nodes a tree fetch returns relative to an anchor
// category.
type QueryKind int

const (
	// QueryCurrentAndSub returns the anchor and its whole subtree. With no
	// anchor it returns the whole tree.
	QueryCurrentAndSub QueryKind = iota
	// QuerySub returns the anchor's subtree without the anchor itself.
	QuerySub
	// QueryCurrentAndParent returns the anchor and its ancestors.
	QueryCurrentAndParent
	// QueryParent returns the anchor's ancestors without the anchor itself.
	QueryParent
	// QueryCurrent returns only the anchor.
	QueryCurrent
)

var queryKindNames = map[QueryKind]string{
	QueryCurrentAndSub:    "current_and_sub",
	QuerySub:              "sub",
	QueryCurrentAndParent: "current_and_parent",
	QueryParent:           "parent",
	QueryCurrent:          "current",
}

// String returns the query kind's wire name.
func (k QueryKind) String() string {
	if name, ok := queryKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether the query kind is one of the defined values.
func (k QueryKind) Valid() bool {
	_, ok := queryKindNames[k]
	return ok
}

// FetchReq describes one tree fetch.
type FetchReq struct {
	// SetID selects the tree.
	SetID string
	// AnchorSysCode positions the query. Empty means the whole tree; only
	// QueryCurrentAndSub and QuerySub allow that.
	AnchorSysCode string
	// QueryKind selects nodes relative to the anchor.
	QueryKind QueryKind
	// MaxDepth caps subtree depth in levels below the anchor (or below the
	// root when unanchored). Zero means unlimited.
	MaxDepth int
	// FetchItems also loads the items bound to each returned node.
	FetchItems bool
	// HideItemWithDisabled drops disabled items from fetched items.
	HideItemWithDisabled bool
	// HideCateWithEmptyItem drops leaf categories that end up with no items.
	// Only meaningful together with FetchItems.
	HideCateWithEmptyItem bool
}

// Node is one fetched tree node with its derived parent linkage and, when
// requested, the items bound to it.
type Node struct {
	ID       string       `json:"id"`
	SysCode  string       `json:"sys_code"`
	BusCode  string       `json:"bus_code"`
	Name     string       `json:"name"`
	Icon     string       `json:"icon"`
	Sort     int64        `json:"sort"`
	Ext      string       `json:"ext"`
	ParentID string       `json:"parent_id"`
	Level    int          `json:"level"`
	OwnPaths string       `json:"own_paths"`
	Owner    string       `json:"owner"`
	Items    []*BoundItem `json:"items,omitempty"`
}

// BoundItem is one item mounted on a node.
type BoundItem struct {
	BindingID string `json:"binding_id"`
	ItemID    string `json:"item_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Sort      int64  `json:"sort"`
	Disabled  bool   `json:"disabled"`
	OwnPaths  string `json:"own_paths"`
}

// Tree is the result of a fetch: nodes in sys-code order.
type Tree struct {
	Nodes []*Node `json:"nodes"`
}

// Mount is one (set, node) position an item is bound to.
type Mount struct {
	BindingID   string
	SetID       string
	CateID      string
	CateSysCode string
	Sort        int64
}
