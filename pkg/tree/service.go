package tree

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/stratum/pkg/errdef"
	"github.com/platinummonkey/stratum/pkg/observability"
	"github.com/platinummonkey/stratum/pkg/scope"
	"github.com/platinummonkey/stratum/pkg/taxonomy"
)

// ItemChecker reports whether an item id exists. The item service satisfies
// it.
type ItemChecker interface {
	ItemExists(ctx context.Context, id string) (bool, error)
}

// LookupCache is the injectable cache for set-id resolution and whole-tree
// fetches. A nil cache disables caching.
type LookupCache interface {
	GetSetID(ctx context.Context, code string) (string, bool)
	PutSetID(ctx context.Context, code, id string)
	InvalidateSetID(ctx context.Context, code string)
	GetTree(ctx context.Context, setID, key string, dest interface{}) bool
	PutTree(ctx context.Context, setID, key string, value interface{})
	InvalidateTree(ctx context.Context, setID string)
}

// AddSetReq carries the fields for creating a set.
type AddSetReq struct {
	Code       string
	Kind       string
	Name       string
	Note       string
	Icon       string
	Sort       int64
	Ext        string
	ScopeLevel int
}

// AddCategoryReq carries the fields for creating a category. ParentID empty
// means a top-level node.
type AddCategoryReq struct {
	SetID      string
	ParentID   string
	BusCode    string
	Name       string
	Icon       string
	Sort       int64
	Ext        string
	ScopeLevel int
}

// PathStep is one node on a root-to-mount path.
type PathStep struct {
	CateID  string
	SysCode string
	Name    string
}

// Service exposes the tree operations: sets, categories with allocated
// positions, item bindings and tree fetches.
type Service struct {
	store   *Store
	items   ItemChecker
	cache   LookupCache
	metrics *observability.Metrics
	logger  *observability.Logger
	width   int
}

// NewService creates a tree service. Width is the sys-code segment width; a
// non-positive value falls back to 4.
func NewService(store *Store, items ItemChecker, cache LookupCache, metrics *observability.Metrics, logger *observability.Logger, width int) *Service {
	if width <= 0 {
		width = 4
	}
	if metrics == nil {
		metrics = observability.NewDefaultMetrics()
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{store: store, items: items, cache: cache, metrics: metrics, logger: logger, width: width}
}

// CreateSet creates a new tree.
func (s *Service) CreateSet(ctx context.Context, req AddSetReq, sc scope.Context) (string, error) {
	if !taxonomy.ValidCode(req.Code) {
		return "", errdef.InvalidArgumentf("set code %q is malformed", req.Code)
	}
	set := &Set{
		Code:       req.Code,
		Kind:       req.Kind,
		Name:       req.Name,
		Note:       req.Note,
		Icon:       req.Icon,
		Sort:       req.Sort,
		Ext:        req.Ext,
		ScopeLevel: req.ScopeLevel,
	}
	id, err := s.store.CreateSet(ctx, set, sc)
	if err != nil {
		return "", fmt.Errorf("failed to create set %q: %w", req.Code, err)
	}
	if s.cache != nil {
		s.cache.InvalidateSetID(ctx, req.Code)
	}
	s.logger.WithField("code", req.Code).WithField("id", id).Info("created set")
	return id, nil
}

// GetSet loads one visible set by id.
func (s *Service) GetSet(ctx context.Context, id string, sc scope.Context) (*Set, error) {
	return s.store.GetSet(ctx, id, sc)
}

// GetSetByCode resolves a set by code, through the id cache when possible.
func (s *Service) GetSetByCode(ctx context.Context, code string, sc scope.Context) (*Set, error) {
	if s.cache != nil {
		if id, ok := s.cache.GetSetID(ctx, code); ok {
			s.metrics.CacheHitsTotal.WithLabelValues("set_id").Inc()
			return s.store.GetSet(ctx, id, sc)
		}
		s.metrics.CacheMissesTotal.WithLabelValues("set_id").Inc()
	}
	set, err := s.store.GetSetByCode(ctx, code, sc)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.PutSetID(ctx, code, set.ID)
	}
	return set, nil
}

// FindSets lists visible sets, optionally narrowed by kind.
func (s *Service) FindSets(ctx context.Context, kind string, sc scope.Context) ([]*Set, error) {
	return s.store.FindSets(ctx, kind, sc)
}

// UpdateSet mutates descriptive fields of a set.
func (s *Service) UpdateSet(ctx context.Context, id string, modify SetModify, sc scope.Context) error {
	if err := s.store.UpdateSet(ctx, id, modify, sc); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// DeleteSet removes an empty set.
func (s *Service) DeleteSet(ctx context.Context, id string, sc scope.Context) error {
	set, err := s.store.GetSet(ctx, id, sc)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSet(ctx, id, sc); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateSetID(ctx, set.Code)
		s.cache.InvalidateTree(ctx, id)
	}
	s.logger.WithField("code", set.Code).Info("deleted set")
	return nil
}

// AddCategory creates a category under the given parent, allocating the next
// sibling sys code inside one transaction.
func (s *Service) AddCategory(ctx context.Context, req AddCategoryReq, sc scope.Context) (string, error) {
	if _, err := s.store.GetSet(ctx, req.SetID, sc); err != nil {
		return "", err
	}

	parentSysCode := ""
	if req.ParentID != "" {
		parent, err := s.store.GetCategory(ctx, req.ParentID, sc)
		if err != nil {
			return "", err
		}
		if parent.RelSetID != req.SetID {
			return "", errdef.InvalidArgumentf("parent category %s belongs to another set", req.ParentID)
		}
		parentSysCode = parent.SysCode
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	sysCode, err := s.allocateSysCode(ctx, tx, req.SetID, parentSysCode)
	if err != nil {
		return "", err
	}

	cate := &Category{
		SysCode:    sysCode,
		BusCode:    req.BusCode,
		Name:       req.Name,
		Icon:       req.Icon,
		Sort:       req.Sort,
		Ext:        req.Ext,
		RelSetID:   req.SetID,
		ScopeLevel: req.ScopeLevel,
	}
	id, err := s.store.InsertCategory(ctx, tx, cate, sc)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit category create: %w", err)
	}

	s.invalidate(ctx, req.SetID)
	s.logger.WithField("set_id", req.SetID).WithField("sys_code", sysCode).
		WithField("id", id).Info("added category")
	return id, nil
}

func (s *Service) allocateSysCode(ctx context.Context, tx dbtx, setID, parentSysCode string) (string, error) {
	maxCode, ok, err := s.store.MaxSiblingSysCode(ctx, tx, setID, parentSysCode, s.width)
	if err != nil {
		return "", err
	}
	if !ok {
		return firstCode(parentSysCode, s.width), nil
	}
	next, err := nextCode(maxCode, s.width)
	if err != nil {
		return "", fmt.Errorf("failed to allocate sys code under %q: %w", parentSysCode, err)
	}
	return next, nil
}

// GetCategory loads one visible category by id.
func (s *Service) GetCategory(ctx context.Context, id string, sc scope.Context) (*Category, error) {
	return s.store.GetCategory(ctx, id, sc)
}

// UpdateCategory mutates descriptive fields of a category.
func (s *Service) UpdateCategory(ctx context.Context, id string, modify CategoryModify, sc scope.Context) error {
	cate, err := s.store.GetCategory(ctx, id, sc)
	if err != nil {
		return err
	}
	if err := s.store.UpdateCategory(ctx, id, modify, sc); err != nil {
		return err
	}
	s.invalidate(ctx, cate.RelSetID)
	return nil
}

// DeleteCategory removes a leaf category with no bound items.
func (s *Service) DeleteCategory(ctx context.Context, id string, sc scope.Context) error {
	cate, err := s.store.GetCategory(ctx, id, sc)
	if err != nil {
		return err
	}
	children, err := s.store.CountChildren(ctx, cate.RelSetID, cate.SysCode)
	if err != nil {
		return err
	}
	if children > 0 {
		return errdef.Conflictf("category %s still has %d descendants", id, children)
	}
	bindings, err := s.store.CountBindingsBySysCode(ctx, cate.RelSetID, cate.SysCode)
	if err != nil {
		return err
	}
	if bindings > 0 {
		return errdef.Conflictf("category %s still has %d bound items", id, bindings)
	}
	if err := s.store.DeleteCategory(ctx, id, sc); err != nil {
		return err
	}
	s.invalidate(ctx, cate.RelSetID)
	return nil
}

// MoveCategory reparents a category: a fresh sys code is allocated under the
// new parent and the whole subtree plus its bindings are rewritten in one
// transaction. Moving a node under its own subtree is a Conflict.
func (s *Service) MoveCategory(ctx context.Context, cateID, newParentID string, sc scope.Context) error {
	cate, err := s.store.GetCategory(ctx, cateID, sc)
	if err != nil {
		return err
	}

	parentSysCode := ""
	if newParentID != "" {
		if newParentID == cateID {
			return errdef.Conflictf("category %s cannot be its own parent", cateID)
		}
		parent, err := s.store.GetCategory(ctx, newParentID, sc)
		if err != nil {
			return err
		}
		if parent.RelSetID != cate.RelSetID {
			return errdef.InvalidArgumentf("category %s belongs to another set", newParentID)
		}
		if strings.HasPrefix(parent.SysCode, cate.SysCode) {
			return errdef.Conflictf("category %s cannot move under its own subtree", cateID)
		}
		parentSysCode = parent.SysCode
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	newSysCode, err := s.allocateSysCode(ctx, tx, cate.RelSetID, parentSysCode)
	if err != nil {
		return err
	}
	moved, err := s.store.RewriteSysCodes(ctx, tx, cate.RelSetID, cate.SysCode, newSysCode)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit category move: %w", err)
	}

	s.metrics.ObserveMove(moved)
	s.invalidate(ctx, cate.RelSetID)
	s.logger.WithField("id", cateID).WithField("from", cate.SysCode).
		WithField("to", newSysCode).WithField("rewritten", moved).Info("moved category")
	return nil
}

// GetTree fetches nodes of a set per the request, with derived parent
// linkage and, when requested, the items bound to each node.
func (s *Service) GetTree(ctx context.Context, req FetchReq, sc scope.Context) (*Tree, error) {
	if !req.QueryKind.Valid() {
		return nil, errdef.InvalidArgumentf("unknown query kind %d", req.QueryKind)
	}
	start := time.Now()
	defer func() {
		s.metrics.ObserveTreeQuery(req.QueryKind.String(), time.Since(start))
	}()

	cacheKey := fetchCacheKey(req, sc)
	if s.cache != nil {
		tree := &Tree{}
		if s.cache.GetTree(ctx, req.SetID, cacheKey, tree) {
			s.metrics.CacheHitsTotal.WithLabelValues("tree").Inc()
			return tree, nil
		}
		s.metrics.CacheMissesTotal.WithLabelValues("tree").Inc()
	}

	cates, err := s.store.FindCategories(ctx, req, s.width, sc)
	if err != nil {
		return nil, err
	}

	idBySysCode := make(map[string]string, len(cates))
	for _, cate := range cates {
		idBySysCode[cate.SysCode] = cate.ID
	}

	nodes := make([]*Node, 0, len(cates))
	for _, cate := range cates {
		node := &Node{
			ID:       cate.ID,
			SysCode:  cate.SysCode,
			BusCode:  cate.BusCode,
			Name:     cate.Name,
			Icon:     cate.Icon,
			Sort:     cate.Sort,
			Ext:      cate.Ext,
			Level:    codeLevel(cate.SysCode, s.width),
			OwnPaths: cate.OwnPaths,
			Owner:    cate.Owner,
		}
		if len(cate.SysCode) > s.width {
			node.ParentID = idBySysCode[cate.SysCode[:len(cate.SysCode)-s.width]]
		}
		nodes = append(nodes, node)
	}

	if req.FetchItems {
		byNode, err := s.store.FindBoundItems(ctx, req.SetID, req.HideItemWithDisabled)
		if err != nil {
			return nil, err
		}
		for _, node := range nodes {
			node.Items = byNode[node.SysCode]
		}
		if req.HideCateWithEmptyItem {
			nodes = pruneEmpty(nodes, s.width)
		}
	}

	tree := &Tree{Nodes: nodes}
	if s.cache != nil {
		s.cache.PutTree(ctx, req.SetID, cacheKey, tree)
	}
	return tree, nil
}

// pruneEmpty drops categories that carry no items and no surviving children,
// bottom-up so whole empty branches disappear.
func pruneEmpty(nodes []*Node, width int) []*Node {
	kept := make(map[string]*Node, len(nodes))
	for _, node := range nodes {
		kept[node.SysCode] = node
	}
	for {
		hasChild := make(map[string]bool, len(kept))
		for sysCode := range kept {
			if len(sysCode) > width {
				hasChild[sysCode[:len(sysCode)-width]] = true
			}
		}
		removed := false
		for sysCode, node := range kept {
			if len(node.Items) == 0 && !hasChild[sysCode] {
				delete(kept, sysCode)
				removed = true
			}
		}
		if !removed {
			break
		}
	}

	var out []*Node
	for _, node := range nodes {
		if _, ok := kept[node.SysCode]; ok {
			out = append(out, node)
		}
	}
	return out
}

func fetchCacheKey(req FetchReq, sc scope.Context) string {
	return fmt.Sprintf("%s:%s:%d:%t:%t:%t:%s",
		req.AnchorSysCode, req.QueryKind, req.MaxDepth,
		req.FetchItems, req.HideItemWithDisabled, req.HideCateWithEmptyItem, sc.OwnPaths)
}

// BindItem mounts an item onto a category. Re-binding the same triple with a
// different sort updates the sort and returns the existing binding id;
// re-binding with the same sort is a Conflict.
func (s *Service) BindItem(ctx context.Context, setID, cateID, itemID string, sort int64, sc scope.Context) (string, error) {
	cate, err := s.store.GetCategory(ctx, cateID, sc)
	if err != nil {
		return "", err
	}
	if cate.RelSetID != setID {
		return "", errdef.InvalidArgumentf("category %s belongs to another set", cateID)
	}
	exists, err := s.items.ItemExists(ctx, itemID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", errdef.NotFoundf("item %s not found", itemID)
	}

	existing, err := s.store.GetBindingByTriple(ctx, setID, cate.SysCode, itemID)
	if err == nil {
		if existing.Sort == sort {
			return "", errdef.Conflictf("item %s is already bound to category %s", itemID, cateID)
		}
		if err := s.store.UpdateBindingSort(ctx, existing.ID, sort); err != nil {
			return "", err
		}
		s.invalidate(ctx, setID)
		return existing.ID, nil
	}
	if !errdef.IsNotFound(err) {
		return "", err
	}

	binding := &Binding{
		Sort:           sort,
		RelSetID:       setID,
		RelCateSysCode: cate.SysCode,
		RelItemID:      itemID,
	}
	id, err := s.store.InsertBinding(ctx, binding, sc)
	if err != nil {
		return "", err
	}
	s.invalidate(ctx, setID)
	s.logger.WithField("set_id", setID).WithField("sys_code", cate.SysCode).
		WithField("item_id", itemID).Info("bound item")
	return id, nil
}

// UnbindItem removes a binding.
func (s *Service) UnbindItem(ctx context.Context, bindingID string, sc scope.Context) error {
	binding, err := s.store.GetBinding(ctx, bindingID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBinding(ctx, bindingID, sc); err != nil {
		return err
	}
	s.invalidate(ctx, binding.RelSetID)
	return nil
}

// FindItemMounts lists every (set, node) position an item is bound to.
func (s *Service) FindItemMounts(ctx context.Context, itemID string) ([]*Mount, error) {
	return s.store.FindMountsByItem(ctx, itemID)
}

// FindParentCategoryIDs returns the ids of a category's ancestors, nearest
// first.
func (s *Service) FindParentCategoryIDs(ctx context.Context, cateID string, sc scope.Context) ([]string, error) {
	cate, err := s.store.GetCategory(ctx, cateID, sc)
	if err != nil {
		return nil, err
	}
	codes := parentCodes(cate.SysCode, s.width)
	if len(codes) == 0 {
		return nil, nil
	}
	parents, err := s.store.FindCategoriesBySysCodes(ctx, cate.RelSetID, codes)
	if err != nil {
		return nil, err
	}
	// nearest first
	ids := make([]string, 0, len(parents))
	for i := len(parents) - 1; i >= 0; i-- {
		ids = append(ids, parents[i].ID)
	}
	return ids, nil
}

// ResolveNodeID resolves a node position to its category id, regardless of
// visibility.
func (s *Service) ResolveNodeID(ctx context.Context, setID, sysCode string) (string, error) {
	if !validSysCode(sysCode, s.width) {
		return "", errdef.InvalidArgumentf("sys code %q is malformed", sysCode)
	}
	cate, err := s.store.GetCategoryBySysCode(ctx, s.store.db, setID, sysCode)
	if err != nil {
		return "", err
	}
	return cate.ID, nil
}

// AncestorCategoryIDs returns the ids of the ancestors of a node position,
// nearest first, regardless of visibility. Internal traversals use this.
func (s *Service) AncestorCategoryIDs(ctx context.Context, setID, sysCode string) ([]string, error) {
	codes := parentCodes(sysCode, s.width)
	if len(codes) == 0 {
		return nil, nil
	}
	cates, err := s.store.FindCategoriesBySysCodes(ctx, setID, codes)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(cates))
	for i := len(cates) - 1; i >= 0; i-- {
		ids = append(ids, cates[i].ID)
	}
	return ids, nil
}

// FindSetPaths returns, for every mount of an item in a set, the
// root-to-node path.
func (s *Service) FindSetPaths(ctx context.Context, itemID, setID string) ([][]PathStep, error) {
	mounts, err := s.store.FindMountsByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var paths [][]PathStep
	for _, mount := range mounts {
		if mount.SetID != setID {
			continue
		}
		codes := append(reverseStrings(parentCodes(mount.CateSysCode, s.width)), mount.CateSysCode)
		cates, err := s.store.FindCategoriesBySysCodes(ctx, setID, codes)
		if err != nil {
			return nil, err
		}
		path := make([]PathStep, 0, len(cates))
		for _, cate := range cates {
			path = append(path, PathStep{CateID: cate.ID, SysCode: cate.SysCode, Name: cate.Name})
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// IsItemAncestor reports whether, within a set, item a is mounted on a strict
// ancestor of a node item b is mounted on.
func (s *Service) IsItemAncestor(ctx context.Context, setID, itemAID, itemBID string) (bool, error) {
	return s.compareMounts(ctx, setID, itemAID, itemBID, func(a, b string) bool {
		return a != b && strings.HasPrefix(b, a)
	})
}

// IsItemSibling reports whether, within a set, items a and b share a mount
// node.
func (s *Service) IsItemSibling(ctx context.Context, setID, itemAID, itemBID string) (bool, error) {
	return s.compareMounts(ctx, setID, itemAID, itemBID, func(a, b string) bool {
		return a == b
	})
}

// IsItemAncestorOrSibling reports whether item a is mounted on b's node or on
// any of its ancestors.
func (s *Service) IsItemAncestorOrSibling(ctx context.Context, setID, itemAID, itemBID string) (bool, error) {
	return s.compareMounts(ctx, setID, itemAID, itemBID, func(a, b string) bool {
		return strings.HasPrefix(b, a)
	})
}

func (s *Service) compareMounts(ctx context.Context, setID, itemAID, itemBID string, match func(a, b string) bool) (bool, error) {
	aCodes, err := s.mountSysCodes(ctx, setID, itemAID)
	if err != nil {
		return false, err
	}
	bCodes, err := s.mountSysCodes(ctx, setID, itemBID)
	if err != nil {
		return false, err
	}
	for _, a := range aCodes {
		for _, b := range bCodes {
			if match(a, b) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Service) mountSysCodes(ctx context.Context, setID, itemID string) ([]string, error) {
	mounts, err := s.store.FindMountsByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	var codes []string
	for _, mount := range mounts {
		if mount.SetID == setID {
			codes = append(codes, mount.CateSysCode)
		}
	}
	return codes, nil
}

// ItemDeleteGuard returns a veto callback blocking the delete of items that
// are still mounted somewhere.
func (s *Service) ItemDeleteGuard() func(ctx context.Context, itemID string) error {
	return func(ctx context.Context, itemID string) error {
		count, err := s.store.CountBindingsByItem(ctx, itemID)
		if err != nil {
			return err
		}
		if count > 0 {
			return errdef.Conflictf("item %s is still bound to %d tree nodes", itemID, count)
		}
		return nil
	}
}

// Width returns the sys-code segment width.
func (s *Service) Width() int {
	return s.width
}

func (s *Service) invalidate(ctx context.Context, setID string) {
	if s.cache != nil {
		s.cache.InvalidateTree(ctx, setID)
	}
}

func reverseStrings(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
