// Package rel implements tagged, conditional relations between resources.
// A relation links a from-endpoint (an item, a tree node or a whole tree) to
// a target item, optionally guarded by attribute and environment conditions
// that are evaluated at check time.
package rel

import (
	"time"

	"github.com/platinummonkey/stratum/pkg/errdef"
)

// FromKind discriminates what the from side of a stored relation points at.
type FromKind int

const (
	// FromItem links from a resource item.
	FromItem FromKind = iota
	// FromSet links from a whole tree.
	FromSet
	// FromSetCategory links from one tree node, stored by category id.
	FromSetCategory
	// FromCert links from a credential record held outside this module.
	FromCert
)

var fromKindNames = map[FromKind]string{
	FromItem:        "item",
	FromSet:         "set",
	FromSetCategory: "set_category",
	FromCert:        "cert",
}

// String returns the from kind's wire name.
func (k FromKind) String() string {
	if name, ok := fromKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether the from kind is one of the defined values.
func (k FromKind) Valid() bool {
	_, ok := fromKindNames[k]
	return ok
}

// Endpoint addresses the from side of a relation at the service boundary.
// Exactly one addressing form is used per kind; TreeNode positions resolve to
// the category id before storage.
type Endpoint struct {
	Kind FromKind
	// ItemID addresses FromItem endpoints.
	ItemID string
	// SetID addresses FromSet endpoints, and scopes NodeSysCode for
	// FromSetCategory endpoints.
	SetID string
	// NodeSysCode addresses FromSetCategory endpoints by position.
	NodeSysCode string
	// CertID addresses FromCert endpoints.
	CertID string
}

// ItemEndpoint addresses a relation from an item.
func ItemEndpoint(itemID string) Endpoint {
	return Endpoint{Kind: FromItem, ItemID: itemID}
}

// SetEndpoint addresses a relation from a whole tree.
func SetEndpoint(setID string) Endpoint {
	return Endpoint{Kind: FromSet, SetID: setID}
}

// NodeEndpoint addresses a relation from one tree node by position.
func NodeEndpoint(setID, sysCode string) Endpoint {
	return Endpoint{Kind: FromSetCategory, SetID: setID, NodeSysCode: sysCode}
}

// CertEndpoint addresses a relation from an external credential record.
func CertEndpoint(certID string) Endpoint {
	return Endpoint{Kind: FromCert, CertID: certID}
}

// AttrOp is the comparison applied to one attribute condition.
type AttrOp int

const (
	// AttrEq matches when the presented value equals the stored one.
	AttrEq AttrOp = iota
	// AttrNe matches when the presented value differs from the stored one.
	AttrNe
	// AttrInclude matches when the presented sys code is the stored one or a
	// descendant of it.
	AttrInclude
	// AttrLike matches when the presented sys code is a strict descendant of
	// the stored one.
	AttrLike
)

var attrOpNames = map[AttrOp]string{
	AttrEq:      "eq",
	AttrNe:      "ne",
	AttrInclude: "include",
	AttrLike:    "like",
}

// String returns the operator's wire name.
func (op AttrOp) String() string {
	if name, ok := attrOpNames[op]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether the operator is one of the defined values.
func (op AttrOp) Valid() bool {
	_, ok := attrOpNames[op]
	return ok
}

// EnvKind discriminates environment conditions.
type EnvKind int

const (
	// EnvDatetimeRange requires the check instant between two RFC 3339
	// timestamps.
	EnvDatetimeRange EnvKind = iota
	// EnvTimeRange requires the check instant's clock time between two
	// HH:MM:SS walls, date ignored.
	EnvTimeRange
	// EnvIPs requires the caller IP in a comma-separated allow list.
	EnvIPs
	// EnvCallFrequency caps the caller's presented call frequency.
	EnvCallFrequency
	// EnvCallCount caps the caller's presented cumulative call count.
	EnvCallCount
)

var envKindNames = map[EnvKind]string{
	EnvDatetimeRange: "datetime_range",
	EnvTimeRange:     "time_range",
	EnvIPs:           "ips",
	EnvCallFrequency: "call_frequency",
	EnvCallCount:     "call_count",
}

// String returns the env kind's wire name.
func (k EnvKind) String() string {
	if name, ok := envKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether the env kind is one of the defined values.
func (k EnvKind) Valid() bool {
	_, ok := envKindNames[k]
	return ok
}

// AttrCond is one stored attribute condition of a relation. RecordOnly
// conditions are annotations excluded from evaluation.
type AttrCond struct {
	ID            string
	IsFrom        bool
	Name          string
	Value         string
	RecordOnly    bool
	Operator      AttrOp
	RelKindAttrID string
	RelRelID      string
	OwnPaths      string
	Owner         string
	CreateTime    time.Time
	UpdateTime    time.Time
}

// EnvCond is one stored environment condition of a relation.
type EnvCond struct {
	ID         string
	Kind       EnvKind
	Value1     string
	Value2     string
	RelRelID   string
	OwnPaths   string
	Owner      string
	CreateTime time.Time
	UpdateTime time.Time
}

// Rel is one stored relation with its conditions.
type Rel struct {
	ID         string
	Tag        string
	Note       string
	FromKind   FromKind
	FromID     string
	ToItemID   string
	ToOwnPaths string
	Ext        string
	OwnPaths   string
	Owner      string
	CreateTime time.Time
	UpdateTime time.Time

	Attrs []*AttrCond
	Envs  []*EnvCond
}

// EnvContext carries the caller's environment presented at check time.
type EnvContext struct {
	// Now is the check instant. Zero means time.Now.
	Now time.Time
	// CallerIP is the caller's address for EnvIPs conditions.
	CallerIP string
	// CallFrequency is the caller's presented call rate.
	CallFrequency int64
	// CallCount is the caller's presented cumulative call count.
	CallCount int64
}

// Filter narrows relation listings. Zero values are ignored.
type Filter struct {
	Tag       string
	FromKinds []FromKind
	FromIDs   []string
	ToItemID  string
}

func validateEndpoint(ep Endpoint) (string, error) {
	switch ep.Kind {
	case FromItem:
		if ep.ItemID == "" {
			return "", errdef.InvalidArgumentf("item endpoint requires an item id")
		}
		return ep.ItemID, nil
	case FromSet:
		if ep.SetID == "" {
			return "", errdef.InvalidArgumentf("set endpoint requires a set id")
		}
		return ep.SetID, nil
	case FromSetCategory:
		if ep.SetID == "" || ep.NodeSysCode == "" {
			return "", errdef.InvalidArgumentf("node endpoint requires a set id and sys code")
		}
		// resolved to the category id by the service
		return "", nil
	case FromCert:
		if ep.CertID == "" {
			return "", errdef.InvalidArgumentf("cert endpoint requires a cert id")
		}
		return ep.CertID, nil
	default:
		return "", errdef.InvalidArgumentf("unknown from kind %d", ep.Kind)
	}
}
