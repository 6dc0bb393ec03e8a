package tree

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/stratum/pkg/errdef"
	"github.com/platinummonkey/stratum/pkg/resource"
	"github.com/platinummonkey/stratum/pkg/scope"
	"github.com/platinummonkey/stratum/pkg/taxonomy"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	statements := []string{
		`CREATE TABLE resource_domain (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			sort INTEGER NOT NULL DEFAULT 0,
			scope_level INTEGER NOT NULL DEFAULT -1,
			own_paths TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			create_time TIMESTAMP NOT NULL,
			update_time TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE resource_kind (
			id TEXT PRIMARY KEY,
			module TEXT NOT NULL DEFAULT '',
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			sort INTEGER NOT NULL DEFAULT 0,
			ext_table_name TEXT NOT NULL DEFAULT '',
			parent_id TEXT NOT NULL DEFAULT '',
			scope_level INTEGER NOT NULL DEFAULT -1,
			own_paths TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			create_time TIMESTAMP NOT NULL,
			update_time TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE resource_item (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL,
			name TEXT NOT NULL,
			rel_kind_id TEXT NOT NULL,
			rel_domain_id TEXT NOT NULL,
			scope_level INTEGER NOT NULL DEFAULT -1,
			own_paths TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			disabled BOOLEAN NOT NULL DEFAULT 0,
			create_time TIMESTAMP NOT NULL,
			update_time TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE resource_set (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			sort INTEGER NOT NULL DEFAULT 0,
			ext TEXT NOT NULL DEFAULT '',
			scope_level INTEGER NOT NULL DEFAULT -1,
			own_paths TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			disabled BOOLEAN NOT NULL DEFAULT 0,
			create_time TIMESTAMP NOT NULL,
			update_time TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE set_category (
			id TEXT PRIMARY KEY,
			sys_code TEXT NOT NULL,
			bus_code TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			icon TEXT NOT NULL DEFAULT '',
			sort INTEGER NOT NULL DEFAULT 0,
			ext TEXT NOT NULL DEFAULT '',
			rel_set_id TEXT NOT NULL,
			scope_level INTEGER NOT NULL DEFAULT -1,
			own_paths TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			create_time TIMESTAMP NOT NULL,
			update_time TIMESTAMP NOT NULL,
			UNIQUE (rel_set_id, sys_code)
		)`,
		`CREATE TABLE set_item_binding (
			id TEXT PRIMARY KEY,
			sort INTEGER NOT NULL DEFAULT 0,
			rel_set_id TEXT NOT NULL,
			rel_cate_sys_code TEXT NOT NULL,
			rel_item_id TEXT NOT NULL,
			own_paths TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			create_time TIMESTAMP NOT NULL,
			update_time TIMESTAMP NOT NULL,
			UNIQUE (rel_set_id, rel_cate_sys_code, rel_item_id)
		)`,
	}
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

type testEnv struct {
	svc   *Service
	items *resource.Service
	sc    scope.Context
	setID string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	sc := scope.Context{OwnPaths: "t001", Owner: "admin1"}

	db := newTestDB(t)
	cache, err := taxonomy.NewCache(64)
	require.NoError(t, err)
	taxSvc := taxonomy.NewService(taxonomy.NewStore(db), cache, nil)
	sys := scope.Context{Owner: "sys"}
	_, err = taxSvc.RegisterDomain(ctx, taxonomy.RegisterDomainReq{Code: "iam", Name: "IAM", ScopeLevel: 0}, sys)
	require.NoError(t, err)
	_, err = taxSvc.RegisterKind(ctx, taxonomy.RegisterKindReq{Code: "iam-account", Name: "Account", ScopeLevel: 0}, sys)
	require.NoError(t, err)

	items := resource.NewService(resource.NewStore(db), taxSvc, nil)
	svc := NewService(NewStore(db), items, nil, nil, nil, 4)
	items.RegisterDeleteGuard(svc.ItemDeleteGuard())

	setID, err := svc.CreateSet(ctx, AddSetReq{Code: "org", Name: "Org Tree"}, sc)
	require.NoError(t, err)

	return &testEnv{svc: svc, items: items, sc: sc, setID: setID}
}

func (e *testEnv) addCate(t *testing.T, parentID, name string) string {
	t.Helper()
	id, err := e.svc.AddCategory(context.Background(), AddCategoryReq{
		SetID: e.setID, ParentID: parentID, Name: name,
	}, e.sc)
	require.NoError(t, err)
	return id
}

func (e *testEnv) addItem(t *testing.T, code string) string {
	t.Helper()
	id, err := e.items.AddItem(context.Background(), resource.AddItemReq{
		Code: code, Name: code, KindCode: "iam-account", DomainCode: "iam",
	}, e.sc)
	require.NoError(t, err)
	return id
}

func TestSysCodeAllocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rootID := env.addCate(t, "", "hq")
	root, err := env.svc.GetCategory(ctx, rootID, env.sc)
	require.NoError(t, err)
	assert.Equal(t, "0000", root.SysCode)

	siblingID := env.addCate(t, "", "branch")
	sibling, err := env.svc.GetCategory(ctx, siblingID, env.sc)
	require.NoError(t, err)
	assert.Equal(t, "0001", sibling.SysCode)

	childID := env.addCate(t, rootID, "eng")
	child, err := env.svc.GetCategory(ctx, childID, env.sc)
	require.NoError(t, err)
	assert.Equal(t, "00000000", child.SysCode)

	grandID := env.addCate(t, childID, "backend")
	grand, err := env.svc.GetCategory(ctx, grandID, env.sc)
	require.NoError(t, err)
	assert.Equal(t, "000000000000", grand.SysCode)
}

func TestGetTreeLinkage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rootID := env.addCate(t, "", "hq")
	engID := env.addCate(t, rootID, "eng")
	env.addCate(t, engID, "backend")
	env.addCate(t, "", "branch")

	tree, err := env.svc.GetTree(ctx, FetchReq{SetID: env.setID, QueryKind: QueryCurrentAndSub}, env.sc)
	require.NoError(t, err)
	require.Len(t, tree.Nodes, 4)

	byName := map[string]*Node{}
	for _, node := range tree.Nodes {
		byName[node.Name] = node
	}
	assert.Equal(t, "", byName["hq"].ParentID)
	assert.Equal(t, 1, byName["hq"].Level)
	assert.Equal(t, byName["hq"].ID, byName["eng"].ParentID)
	assert.Equal(t, 2, byName["eng"].Level)
	assert.Equal(t, byName["eng"].ID, byName["backend"].ParentID)
	assert.Equal(t, 3, byName["backend"].Level)
	assert.Equal(t, "", byName["branch"].ParentID)

	// nodes come back in sys-code order
	assert.Equal(t, "hq", tree.Nodes[0].Name)
	assert.Equal(t, "branch", tree.Nodes[3].Name)
}

func TestGetTreeQueryKinds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rootID := env.addCate(t, "", "hq")
	engID := env.addCate(t, rootID, "eng")
	env.addCate(t, engID, "backend")
	env.addCate(t, "", "branch")

	eng, err := env.svc.GetCategory(ctx, engID, env.sc)
	require.NoError(t, err)

	names := func(tree *Tree) []string {
		var out []string
		for _, node := range tree.Nodes {
			out = append(out, node.Name)
		}
		return out
	}

	sub, err := env.svc.GetTree(ctx, FetchReq{SetID: env.setID, AnchorSysCode: eng.SysCode, QueryKind: QuerySub}, env.sc)
	require.NoError(t, err)
	assert.Equal(t, []string{"backend"}, names(sub))

	currentAndSub, err := env.svc.GetTree(ctx, FetchReq{SetID: env.setID, AnchorSysCode: eng.SysCode, QueryKind: QueryCurrentAndSub}, env.sc)
	require.NoError(t, err)
	assert.Equal(t, []string{"eng", "backend"}, names(currentAndSub))

	parent, err := env.svc.GetTree(ctx, FetchReq{SetID: env.setID, AnchorSysCode: eng.SysCode, QueryKind: QueryParent}, env.sc)
	require.NoError(t, err)
	assert.Equal(t, []string{"hq"}, names(parent))

	currentAndParent, err := env.svc.GetTree(ctx, FetchReq{SetID: env.setID, AnchorSysCode: eng.SysCode, QueryKind: QueryCurrentAndParent}, env.sc)
	require.NoError(t, err)
	assert.Equal(t, []string{"hq", "eng"}, names(currentAndParent))

	current, err := env.svc.GetTree(ctx, FetchReq{SetID: env.setID, AnchorSysCode: eng.SysCode, QueryKind: QueryCurrent}, env.sc)
	require.NoError(t, err)
	assert.Equal(t, []string{"eng"}, names(current))

	depth1, err := env.svc.GetTree(ctx, FetchReq{SetID: env.setID, QueryKind: QueryCurrentAndSub, MaxDepth: 1}, env.sc)
	require.NoError(t, err)
	assert.Equal(t, []string{"hq", "branch"}, names(depth1))

	_, err = env.svc.GetTree(ctx, FetchReq{SetID: env.setID, QueryKind: QueryParent}, env.sc)
	require.Error(t, err)
	assert.True(t, errdef.IsInvalidArgument(err))
}

func TestBindItemSemantics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cateID := env.addCate(t, "", "hq")
	itemID := env.addItem(t, "alice")

	bindingID, err := env.svc.BindItem(ctx, env.setID, cateID, itemID, 10, env.sc)
	require.NoError(t, err)

	// same triple and sort is a conflict
	_, err = env.svc.BindItem(ctx, env.setID, cateID, itemID, 10, env.sc)
	require.Error(t, err)
	assert.True(t, errdef.IsConflict(err))

	// a different sort updates the existing binding in place
	again, err := env.svc.BindItem(ctx, env.setID, cateID, itemID, 20, env.sc)
	require.NoError(t, err)
	assert.Equal(t, bindingID, again)

	mounts, err := env.svc.FindItemMounts(ctx, itemID)
	require.NoError(t, err)
	require.Len(t, mounts, 1)
	assert.EqualValues(t, 20, mounts[0].Sort)

	_, err = env.svc.BindItem(ctx, env.setID, cateID, "missing", 0, env.sc)
	require.Error(t, err)
	assert.True(t, errdef.IsNotFound(err))
}

func TestFetchItemsAndHideFlags(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rootID := env.addCate(t, "", "hq")
	engID := env.addCate(t, rootID, "eng")
	env.addCate(t, rootID, "empty")

	aliceID := env.addItem(t, "alice")
	bobID := env.addItem(t, "bob")
	_, err := env.svc.BindItem(ctx, env.setID, engID, aliceID, 0, env.sc)
	require.NoError(t, err)
	_, err = env.svc.BindItem(ctx, env.setID, engID, bobID, 1, env.sc)
	require.NoError(t, err)
	require.NoError(t, env.items.SetDisabled(ctx, bobID, true, env.sc))

	tree, err := env.svc.GetTree(ctx, FetchReq{
		SetID: env.setID, QueryKind: QueryCurrentAndSub,
		FetchItems: true, HideItemWithDisabled: true,
	}, env.sc)
	require.NoError(t, err)
	require.Len(t, tree.Nodes, 3)
	for _, node := range tree.Nodes {
		if node.Name == "eng" {
			require.Len(t, node.Items, 1)
			assert.Equal(t, "alice", node.Items[0].Code)
		}
	}

	pruned, err := env.svc.GetTree(ctx, FetchReq{
		SetID: env.setID, QueryKind: QueryCurrentAndSub,
		FetchItems: true, HideCateWithEmptyItem: true,
	}, env.sc)
	require.NoError(t, err)
	// "empty" disappears, "hq" survives because "eng" under it has items
	require.Len(t, pruned.Nodes, 2)
	assert.Equal(t, "hq", pruned.Nodes[0].Name)
	assert.Equal(t, "eng", pruned.Nodes[1].Name)
}

func TestMoveCategoryRewritesSubtree(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hqID := env.addCate(t, "", "hq")
	engID := env.addCate(t, hqID, "eng")
	backendID := env.addCate(t, engID, "backend")
	branchID := env.addCate(t, "", "branch")

	itemID := env.addItem(t, "alice")
	_, err := env.svc.BindItem(ctx, env.setID, backendID, itemID, 0, env.sc)
	require.NoError(t, err)

	require.NoError(t, env.svc.MoveCategory(ctx, engID, branchID, env.sc))

	eng, err := env.svc.GetCategory(ctx, engID, env.sc)
	require.NoError(t, err)
	assert.Equal(t, "00010000", eng.SysCode)

	backend, err := env.svc.GetCategory(ctx, backendID, env.sc)
	require.NoError(t, err)
	assert.Equal(t, "000100000000", backend.SysCode)

	// the binding followed the moved node
	mounts, err := env.svc.FindItemMounts(ctx, itemID)
	require.NoError(t, err)
	require.Len(t, mounts, 1)
	assert.Equal(t, "000100000000", mounts[0].CateSysCode)

	// parent linkage is intact after the move
	parents, err := env.svc.FindParentCategoryIDs(ctx, backendID, env.sc)
	require.NoError(t, err)
	assert.Equal(t, []string{engID, branchID}, parents)
}

func TestMoveCategoryIntoOwnSubtree(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hqID := env.addCate(t, "", "hq")
	engID := env.addCate(t, hqID, "eng")

	err := env.svc.MoveCategory(ctx, hqID, engID, env.sc)
	require.Error(t, err)
	assert.True(t, errdef.IsConflict(err))

	err = env.svc.MoveCategory(ctx, hqID, hqID, env.sc)
	require.Error(t, err)
	assert.True(t, errdef.IsConflict(err))

	// nothing moved
	hq, err := env.svc.GetCategory(ctx, hqID, env.sc)
	require.NoError(t, err)
	assert.Equal(t, "0000", hq.SysCode)
	eng, err := env.svc.GetCategory(ctx, engID, env.sc)
	require.NoError(t, err)
	assert.Equal(t, "00000000", eng.SysCode)
}

func TestDeleteGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hqID := env.addCate(t, "", "hq")
	engID := env.addCate(t, hqID, "eng")
	itemID := env.addItem(t, "alice")
	bindingID, err := env.svc.BindItem(ctx, env.setID, engID, itemID, 0, env.sc)
	require.NoError(t, err)

	// non-leaf category
	err = env.svc.DeleteCategory(ctx, hqID, env.sc)
	require.Error(t, err)
	assert.True(t, errdef.IsConflict(err))

	// category with bound items
	err = env.svc.DeleteCategory(ctx, engID, env.sc)
	require.Error(t, err)
	assert.True(t, errdef.IsConflict(err))

	// mounted item
	err = env.items.DeleteItem(ctx, itemID, env.sc)
	require.Error(t, err)
	assert.True(t, errdef.IsConflict(err))

	// set with categories
	err = env.svc.DeleteSet(ctx, env.setID, env.sc)
	require.Error(t, err)
	assert.True(t, errdef.IsConflict(err))

	// unwinding in order succeeds
	require.NoError(t, env.svc.UnbindItem(ctx, bindingID, env.sc))
	require.NoError(t, env.items.DeleteItem(ctx, itemID, env.sc))
	require.NoError(t, env.svc.DeleteCategory(ctx, engID, env.sc))
	require.NoError(t, env.svc.DeleteCategory(ctx, hqID, env.sc))
	require.NoError(t, env.svc.DeleteSet(ctx, env.setID, env.sc))
}

func TestFindSetPaths(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hqID := env.addCate(t, "", "hq")
	engID := env.addCate(t, hqID, "eng")
	backendID := env.addCate(t, engID, "backend")
	branchID := env.addCate(t, "", "branch")

	itemID := env.addItem(t, "alice")
	_, err := env.svc.BindItem(ctx, env.setID, backendID, itemID, 0, env.sc)
	require.NoError(t, err)
	_, err = env.svc.BindItem(ctx, env.setID, branchID, itemID, 0, env.sc)
	require.NoError(t, err)

	paths, err := env.svc.FindSetPaths(ctx, itemID, env.setID)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	require.Len(t, paths[0], 3)
	assert.Equal(t, "hq", paths[0][0].Name)
	assert.Equal(t, "eng", paths[0][1].Name)
	assert.Equal(t, "backend", paths[0][2].Name)

	require.Len(t, paths[1], 1)
	assert.Equal(t, "branch", paths[1][0].Name)
}

func TestItemAncestorAndSiblingChecks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hqID := env.addCate(t, "", "hq")
	engID := env.addCate(t, hqID, "eng")
	branchID := env.addCate(t, "", "branch")

	boss := env.addItem(t, "boss")
	alice := env.addItem(t, "alice")
	bob := env.addItem(t, "bob")
	carol := env.addItem(t, "carol")

	_, err := env.svc.BindItem(ctx, env.setID, hqID, boss, 0, env.sc)
	require.NoError(t, err)
	_, err = env.svc.BindItem(ctx, env.setID, engID, alice, 0, env.sc)
	require.NoError(t, err)
	_, err = env.svc.BindItem(ctx, env.setID, engID, bob, 1, env.sc)
	require.NoError(t, err)
	_, err = env.svc.BindItem(ctx, env.setID, branchID, carol, 0, env.sc)
	require.NoError(t, err)

	got, err := env.svc.IsItemAncestor(ctx, env.setID, boss, alice)
	require.NoError(t, err)
	assert.True(t, got)

	// not the other way around, and not across branches
	got, err = env.svc.IsItemAncestor(ctx, env.setID, alice, boss)
	require.NoError(t, err)
	assert.False(t, got)
	got, err = env.svc.IsItemAncestor(ctx, env.setID, boss, carol)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = env.svc.IsItemSibling(ctx, env.setID, alice, bob)
	require.NoError(t, err)
	assert.True(t, got)
	got, err = env.svc.IsItemSibling(ctx, env.setID, boss, alice)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = env.svc.IsItemAncestorOrSibling(ctx, env.setID, boss, alice)
	require.NoError(t, err)
	assert.True(t, got)
	got, err = env.svc.IsItemAncestorOrSibling(ctx, env.setID, alice, bob)
	require.NoError(t, err)
	assert.True(t, got)
	got, err = env.svc.IsItemAncestorOrSibling(ctx, env.setID, carol, alice)
	require.NoError(t, err)
	assert.False(t, got)

	// an unmounted item is nobody's ancestor or sibling
	mallory := env.addItem(t, "mallory")
	got, err = env.svc.IsItemAncestorOrSibling(ctx, env.setID, mallory, alice)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestSetCodeLookupAndDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	set, err := env.svc.GetSetByCode(ctx, "org", env.sc)
	require.NoError(t, err)
	assert.Equal(t, env.setID, set.ID)

	_, err = env.svc.CreateSet(ctx, AddSetReq{Code: "org", Name: "dup"}, env.sc)
	require.Error(t, err)
	assert.True(t, errdef.IsConflict(err))

	_, err = env.svc.CreateSet(ctx, AddSetReq{Code: "Bad Code", Name: "x"}, env.sc)
	require.Error(t, err)
	assert.True(t, errdef.IsInvalidArgument(err))
}
