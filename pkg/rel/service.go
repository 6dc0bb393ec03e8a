package rel

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/stratum/pkg/errdef"
	"github.com/platinummonkey/stratum/pkg/observability"
	"github.com/platinummonkey/stratum/pkg/scope"
	"github.com/platinummonkey/stratum/pkg/tree"
)

// ItemChecker reports whether an item id exists. The item service satisfies
// it.
type ItemChecker interface {
	ItemExists(ctx context.Context, id string) (bool, error)
}

// TreeResolver resolves node positions and item mounts. The tree service
// satisfies it.
type TreeResolver interface {
	ResolveNodeID(ctx context.Context, setID, sysCode string) (string, error)
	FindItemMounts(ctx context.Context, itemID string) ([]*tree.Mount, error)
	AncestorCategoryIDs(ctx context.Context, setID, sysCode string) ([]string, error)
}

// AttrSpec describes one attribute condition at relation-add time.
type AttrSpec struct {
	IsFrom        bool
	Name          string
	Value         string
	RecordOnly    bool
	Operator      AttrOp
	RelKindAttrID string
}

// EnvSpec describes one environment condition at relation-add time.
type EnvSpec struct {
	Kind   EnvKind
	Value1 string
	Value2 string
}

// AddRelReq carries the fields for creating a relation.
type AddRelReq struct {
	Tag        string
	Note       string
	From       Endpoint
	ToItemID   string
	ToOwnPaths string
	Ext        string
	Attrs      []AttrSpec
	Envs       []EnvSpec
}

// CheckReq describes one relation check: does any relation tagged Tag hold
// from the subject endpoint to the target, given the presented attributes
// and environment? FromAttrs describes the subject, ToAttrs the target;
// each stored condition reads the side its IsFrom flag names.
type CheckReq struct {
	Tag       string
	From      Endpoint
	ToItemID  string
	FromAttrs map[string]string
	ToAttrs   map[string]string
	Env       EnvContext
}

// Service exposes the relation operations: conditional links, checks with
// tree escalation, and listings.
type Service struct {
	store   *Store
	items   ItemChecker
	trees   TreeResolver
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewService creates a relation service.
func NewService(store *Store, items ItemChecker, trees TreeResolver, metrics *observability.Metrics, logger *observability.Logger) *Service {
	if metrics == nil {
		metrics = observability.NewDefaultMetrics()
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{store: store, items: items, trees: trees, metrics: metrics, logger: logger}
}

// AddRel creates a relation with its conditions. The target item must exist;
// a dead target is an InvalidReference. Node endpoints are resolved to their
// category id before storage so they survive renames.
func (s *Service) AddRel(ctx context.Context, req AddRelReq, sc scope.Context) (string, error) {
	if req.Tag == "" {
		return "", errdef.InvalidArgumentf("relation tag must not be empty")
	}
	if !req.From.Kind.Valid() {
		return "", errdef.InvalidArgumentf("unknown from kind %d", req.From.Kind)
	}

	exists, err := s.items.ItemExists(ctx, req.ToItemID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", errdef.InvalidReferencef("target item %s does not exist", req.ToItemID)
	}

	fromID, err := validateEndpoint(req.From)
	if err != nil {
		return "", err
	}
	if req.From.Kind == FromSetCategory {
		fromID, err = s.trees.ResolveNodeID(ctx, req.From.SetID, req.From.NodeSysCode)
		if err != nil {
			return "", fmt.Errorf("failed to resolve node endpoint: %w", err)
		}
	}

	rel := &Rel{
		Tag:        req.Tag,
		Note:       req.Note,
		FromKind:   req.From.Kind,
		FromID:     fromID,
		ToItemID:   req.ToItemID,
		ToOwnPaths: req.ToOwnPaths,
		Ext:        req.Ext,
	}
	for _, spec := range req.Attrs {
		if !spec.Operator.Valid() {
			return "", errdef.InvalidArgumentf("unknown attribute operator %d", spec.Operator)
		}
		rel.Attrs = append(rel.Attrs, &AttrCond{
			IsFrom:        spec.IsFrom,
			Name:          spec.Name,
			Value:         spec.Value,
			RecordOnly:    spec.RecordOnly,
			Operator:      spec.Operator,
			RelKindAttrID: spec.RelKindAttrID,
		})
	}
	for _, spec := range req.Envs {
		if !spec.Kind.Valid() {
			return "", errdef.InvalidArgumentf("unknown environment kind %d", spec.Kind)
		}
		rel.Envs = append(rel.Envs, &EnvCond{
			Kind:   spec.Kind,
			Value1: spec.Value1,
			Value2: spec.Value2,
		})
	}

	id, err := s.store.CreateRel(ctx, rel, sc)
	if err != nil {
		return "", fmt.Errorf("failed to add relation %q: %w", req.Tag, err)
	}
	s.logger.WithField("tag", req.Tag).WithField("id", id).
		WithField("from_kind", req.From.Kind.String()).Info("added relation")
	return id, nil
}

// CheckRel decides whether any relation tagged req.Tag holds from the
// subject to the target. The direct relations are tried first; when none
// hold, an item subject escalates through the trees it is mounted on (its
// node, the node's ancestors, then the whole set) and a node subject
// escalates through its ancestors and its owning set.
func (s *Service) CheckRel(ctx context.Context, req CheckReq, sc scope.Context) (bool, error) {
	start := time.Now()
	accepted, err := s.checkRel(ctx, req, sc)
	if err != nil {
		return false, err
	}
	s.metrics.ObserveRelationCheck(req.Tag, accepted, time.Since(start))
	return accepted, nil
}

func (s *Service) checkRel(ctx context.Context, req CheckReq, sc scope.Context) (bool, error) {
	if !req.From.Kind.Valid() {
		return false, errdef.InvalidArgumentf("unknown from kind %d", req.From.Kind)
	}
	fromID, err := s.resolveEndpointID(ctx, req.From)
	if err != nil {
		return false, err
	}

	direct, err := s.store.FindRels(ctx, Filter{
		Tag:       req.Tag,
		FromKinds: []FromKind{req.From.Kind},
		FromIDs:   []string{fromID},
		ToItemID:  req.ToItemID,
	}, sc)
	if err != nil {
		return false, err
	}
	ok, err := anyHolds(direct, req)
	if err != nil || ok {
		return ok, err
	}

	fromIDs, err := s.escalationIDs(ctx, req.From, fromID)
	if err != nil {
		return false, err
	}
	if len(fromIDs) == 0 {
		return false, nil
	}

	escalated, err := s.store.FindRels(ctx, Filter{
		Tag:       req.Tag,
		FromKinds: []FromKind{FromSetCategory, FromSet},
		FromIDs:   fromIDs,
		ToItemID:  req.ToItemID,
	}, sc)
	if err != nil {
		return false, err
	}
	return anyHolds(escalated, req)
}

// escalationIDs lists the tree positions a subject inherits relations from:
// for an item, every mount's node, the node's ancestors and its set; for a
// node, its ancestors and its owning set. Other subjects do not escalate.
func (s *Service) escalationIDs(ctx context.Context, from Endpoint, fromID string) ([]string, error) {
	switch from.Kind {
	case FromItem:
		mounts, err := s.trees.FindItemMounts(ctx, fromID)
		if err != nil {
			return nil, err
		}
		var fromIDs []string
		seenSets := map[string]bool{}
		for _, mount := range mounts {
			fromIDs = append(fromIDs, mount.CateID)
			ancestors, err := s.trees.AncestorCategoryIDs(ctx, mount.SetID, mount.CateSysCode)
			if err != nil {
				return nil, err
			}
			fromIDs = append(fromIDs, ancestors...)
			if !seenSets[mount.SetID] {
				seenSets[mount.SetID] = true
				fromIDs = append(fromIDs, mount.SetID)
			}
		}
		return fromIDs, nil
	case FromSetCategory:
		ancestors, err := s.trees.AncestorCategoryIDs(ctx, from.SetID, from.NodeSysCode)
		if err != nil {
			return nil, err
		}
		return append(ancestors, from.SetID), nil
	default:
		return nil, nil
	}
}

func anyHolds(rels []*Rel, req CheckReq) (bool, error) {
	for _, rel := range rels {
		ok, err := evalRel(rel, req.FromAttrs, req.ToAttrs, req.Env)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// GetRel loads one relation with its conditions.
func (s *Service) GetRel(ctx context.Context, id string) (*Rel, error) {
	return s.store.GetRel(ctx, id)
}

// FindRels lists visible relations with their conditions.
func (s *Service) FindRels(ctx context.Context, filter Filter, sc scope.Context) ([]*Rel, error) {
	return s.store.FindRels(ctx, filter, sc)
}

// FindFromRels lists the visible relations leaving an endpoint under a tag.
func (s *Service) FindFromRels(ctx context.Context, tag string, from Endpoint, sc scope.Context) ([]*Rel, error) {
	fromID, err := s.resolveEndpointID(ctx, from)
	if err != nil {
		return nil, err
	}
	return s.store.FindRels(ctx, Filter{
		Tag:       tag,
		FromKinds: []FromKind{from.Kind},
		FromIDs:   []string{fromID},
	}, sc)
}

// PaginateFromRels lists one page of the visible relations leaving an
// endpoint under a tag, plus the total.
func (s *Service) PaginateFromRels(ctx context.Context, tag string, from Endpoint, pageNumber, pageSize int, sc scope.Context) ([]*Rel, int64, error) {
	fromID, err := s.resolveEndpointID(ctx, from)
	if err != nil {
		return nil, 0, err
	}
	return s.store.PaginateRels(ctx, Filter{
		Tag:       tag,
		FromKinds: []FromKind{from.Kind},
		FromIDs:   []string{fromID},
	}, pageNumber, pageSize, sc)
}

func (s *Service) resolveEndpointID(ctx context.Context, from Endpoint) (string, error) {
	fromID, err := validateEndpoint(from)
	if err != nil {
		return "", err
	}
	if from.Kind == FromSetCategory {
		return s.trees.ResolveNodeID(ctx, from.SetID, from.NodeSysCode)
	}
	return fromID, nil
}

// RemoveRel deletes a relation and cascades to its conditions.
func (s *Service) RemoveRel(ctx context.Context, id string, sc scope.Context) error {
	if err := s.store.DeleteRel(ctx, id, sc); err != nil {
		return err
	}
	s.logger.WithField("id", id).Info("removed relation")
	return nil
}

// AddAttr appends an attribute condition to an existing relation.
func (s *Service) AddAttr(ctx context.Context, relID string, spec AttrSpec, sc scope.Context) (string, error) {
	if !spec.Operator.Valid() {
		return "", errdef.InvalidArgumentf("unknown attribute operator %d", spec.Operator)
	}
	if _, err := s.store.GetRel(ctx, relID); err != nil {
		return "", err
	}
	return s.store.AddAttr(ctx, relID, &AttrCond{
		IsFrom:        spec.IsFrom,
		Name:          spec.Name,
		Value:         spec.Value,
		RecordOnly:    spec.RecordOnly,
		Operator:      spec.Operator,
		RelKindAttrID: spec.RelKindAttrID,
	}, sc)
}

// AddEnv appends an environment condition to an existing relation.
func (s *Service) AddEnv(ctx context.Context, relID string, spec EnvSpec, sc scope.Context) (string, error) {
	if !spec.Kind.Valid() {
		return "", errdef.InvalidArgumentf("unknown environment kind %d", spec.Kind)
	}
	if _, err := s.store.GetRel(ctx, relID); err != nil {
		return "", err
	}
	return s.store.AddEnv(ctx, relID, &EnvCond{
		Kind:   spec.Kind,
		Value1: spec.Value1,
		Value2: spec.Value2,
	}, sc)
}

// RemoveAttr deletes one attribute condition.
func (s *Service) RemoveAttr(ctx context.Context, id string, sc scope.Context) error {
	return s.store.DeleteAttr(ctx, id, sc)
}

// RemoveEnv deletes one environment condition.
func (s *Service) RemoveEnv(ctx context.Context, id string, sc scope.Context) error {
	return s.store.DeleteEnv(ctx, id, sc)
}

// ItemDeleteGuard returns a veto callback blocking the delete of items that
// still participate in relations on either side.
func (s *Service) ItemDeleteGuard() func(ctx context.Context, itemID string) error {
	return func(ctx context.Context, itemID string) error {
		count, err := s.store.CountRelsByItem(ctx, itemID)
		if err != nil {
			return err
		}
		if count > 0 {
			return errdef.Conflictf("item %s still participates in %d relations", itemID, count)
		}
		return nil
	}
}
