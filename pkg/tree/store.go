package tree

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/stratum/pkg/errdef"
	"github.com/platinummonkey/stratum/pkg/query"
	"github.com/platinummonkey/stratum/pkg/scope"
	"github.com/platinummonkey/stratum/pkg/storage/postgres"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so allocation and insert can
// share one transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store persists sets, categories and item bindings.
type Store struct {
	db *sql.DB
}

// NewStore creates a new tree store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Begin opens a transaction for multi-statement operations.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

const setColumns = "id, code, kind, name, note, icon, sort, ext, scope_level, own_paths, owner, disabled, create_time, update_time"

const cateColumns = "id, sys_code, bus_code, name, icon, sort, ext, rel_set_id, scope_level, own_paths, owner, create_time, update_time"

const bindingColumns = "id, sort, rel_set_id, rel_cate_sys_code, rel_item_id, own_paths, owner, create_time, update_time"

// CreateSet inserts a new set. A duplicate code is a Conflict.
func (s *Store) CreateSet(ctx context.Context, set *Set, sc scope.Context) (string, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM resource_set WHERE code = $1`, set.Code).Scan(&count)
	if err != nil {
		return "", fmt.Errorf("failed to check set code: %w", err)
	}
	if count > 0 {
		return "", errdef.Conflictf("set code %q already exists", set.Code)
	}

	set.ID = uuid.NewString()
	set.OwnPaths = sc.OwnPaths
	set.Owner = sc.Owner
	now := time.Now().UTC()
	set.CreateTime = now
	set.UpdateTime = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resource_set (`+setColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		set.ID, set.Code, set.Kind, set.Name, set.Note, set.Icon, set.Sort, set.Ext,
		set.ScopeLevel, set.OwnPaths, set.Owner, set.Disabled, set.CreateTime, set.UpdateTime)
	if err != nil {
		// the pre-check does not cover a concurrent insert of the same code
		if postgres.IsUniqueViolation(err) {
			return "", errdef.Conflictf("set code %q already exists", set.Code)
		}
		return "", fmt.Errorf("failed to insert set: %w", err)
	}
	return set.ID, nil
}

// GetSet loads one visible set by id.
func (s *Store) GetSet(ctx context.Context, id string, sc scope.Context) (*Set, error) {
	visibility, args, _ := scope.VisibilityClause("", sc.OwnPaths, false, 2)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+setColumns+`
		FROM resource_set
		WHERE id = $1 AND `+visibility,
		append([]interface{}{id}, args...)...)
	return scanSet(row, id)
}

// GetSetByCode loads one visible set by code.
func (s *Store) GetSetByCode(ctx context.Context, code string, sc scope.Context) (*Set, error) {
	visibility, args, _ := scope.VisibilityClause("", sc.OwnPaths, false, 2)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+setColumns+`
		FROM resource_set
		WHERE code = $1 AND `+visibility,
		append([]interface{}{code}, args...)...)
	return scanSet(row, code)
}

// FindSets lists visible sets, optionally narrowed by kind.
func (s *Store) FindSets(ctx context.Context, kind string, sc scope.Context) ([]*Set, error) {
	b := query.NewBuilder()
	if kind != "" {
		if err := b.Add("kind", query.Eq, kind); err != nil {
			return nil, err
		}
	}
	visibility, args, _ := scope.VisibilityClause("", sc.OwnPaths, false, b.Next())
	b.AddRaw(visibility, args...)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+setColumns+`
		FROM resource_set
		WHERE `+b.Clause()+`
		ORDER BY sort, code`, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sets: %w", err)
	}
	defer rows.Close()

	var sets []*Set
	for rows.Next() {
		set := &Set{}
		if err := rows.Scan(&set.ID, &set.Code, &set.Kind, &set.Name, &set.Note, &set.Icon,
			&set.Sort, &set.Ext, &set.ScopeLevel, &set.OwnPaths, &set.Owner, &set.Disabled,
			&set.CreateTime, &set.UpdateTime); err != nil {
			return nil, fmt.Errorf("failed to scan set: %w", err)
		}
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

// UpdateSet mutates descriptive fields of a set owned by the caller's scope.
func (s *Store) UpdateSet(ctx context.Context, id string, modify SetModify, sc scope.Context) error {
	var sets []string
	var args []interface{}
	set := func(col string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if modify.Name != nil {
		set("name", *modify.Name)
	}
	if modify.Note != nil {
		set("note", *modify.Note)
	}
	if modify.Icon != nil {
		set("icon", *modify.Icon)
	}
	if modify.Sort != nil {
		set("sort", *modify.Sort)
	}
	if modify.Ext != nil {
		set("ext", *modify.Ext)
	}
	if modify.ScopeLevel != nil {
		set("scope_level", *modify.ScopeLevel)
	}
	if modify.Disabled != nil {
		set("disabled", *modify.Disabled)
	}
	if len(sets) == 0 {
		return nil
	}
	set("update_time", time.Now().UTC())

	args = append(args, id, sc.OwnPaths+"%")
	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE resource_set SET %s WHERE id = $%d AND own_paths LIKE $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args)), args...)
	if err != nil {
		return fmt.Errorf("failed to update set: %w", err)
	}
	return requireRow(result, "set", id)
}

// DeleteSet removes a set. Remaining categories block the delete.
func (s *Store) DeleteSet(ctx context.Context, id string, sc scope.Context) error {
	var cates int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM set_category WHERE rel_set_id = $1`, id).Scan(&cates)
	if err != nil {
		return fmt.Errorf("failed to check set categories: %w", err)
	}
	if cates > 0 {
		return errdef.Conflictf("set %s still has %d categories", id, cates)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM resource_set WHERE id = $1 AND own_paths LIKE $2`, id, sc.OwnPaths+"%")
	if err != nil {
		return fmt.Errorf("failed to delete set: %w", err)
	}
	return requireRow(result, "set", id)
}

// MaxSiblingSysCode returns the highest sys code directly under a parent
// prefix, or ok=false when the parent has no children yet.
func (s *Store) MaxSiblingSysCode(ctx context.Context, q dbtx, setID, parentSysCode string, width int) (string, bool, error) {
	var sysCode string
	err := q.QueryRowContext(ctx, `
		SELECT sys_code FROM set_category
		WHERE rel_set_id = $1 AND sys_code LIKE $2 AND length(sys_code) = $3
		ORDER BY sys_code DESC
		LIMIT 1`,
		setID, parentSysCode+"%", len(parentSysCode)+width).Scan(&sysCode)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query max sibling sys code: %w", err)
	}
	return sysCode, true, nil
}

// InsertCategory inserts a category row, stamping id, ownership and audit
// times. Callers allocate the sys code first, inside the same transaction.
func (s *Store) InsertCategory(ctx context.Context, q dbtx, cate *Category, sc scope.Context) (string, error) {
	cate.ID = uuid.NewString()
	cate.OwnPaths = sc.OwnPaths
	cate.Owner = sc.Owner
	now := time.Now().UTC()
	cate.CreateTime = now
	cate.UpdateTime = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO set_category (`+cateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		cate.ID, cate.SysCode, cate.BusCode, cate.Name, cate.Icon, cate.Sort, cate.Ext,
		cate.RelSetID, cate.ScopeLevel, cate.OwnPaths, cate.Owner, cate.CreateTime, cate.UpdateTime)
	if err != nil {
		// two allocators may race to the same sibling code
		if postgres.IsUniqueViolation(err) {
			return "", errdef.Conflictf("sys code %q already exists in set %s", cate.SysCode, cate.RelSetID)
		}
		return "", fmt.Errorf("failed to insert category: %w", err)
	}
	return cate.ID, nil
}

// GetCategory loads one visible category by id.
func (s *Store) GetCategory(ctx context.Context, id string, sc scope.Context) (*Category, error) {
	visibility, args, _ := scope.VisibilityClause("", sc.OwnPaths, false, 2)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+cateColumns+`
		FROM set_category
		WHERE id = $1 AND `+visibility,
		append([]interface{}{id}, args...)...)
	return scanCategory(row, id)
}

// GetCategoryBySysCode loads one category by its position in a set,
// regardless of visibility. Internal traversals use this.
func (s *Store) GetCategoryBySysCode(ctx context.Context, q dbtx, setID, sysCode string) (*Category, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+cateColumns+`
		FROM set_category
		WHERE rel_set_id = $1 AND sys_code = $2`,
		setID, sysCode)
	return scanCategory(row, sysCode)
}

// FindCategories lists visible categories of a set selected by the fetch
// request, in sys-code order.
func (s *Store) FindCategories(ctx context.Context, req FetchReq, width int, sc scope.Context) ([]*Category, error) {
	b := query.NewBuilder()
	if err := b.Add("rel_set_id", query.Eq, req.SetID); err != nil {
		return nil, err
	}
	if err := applyQueryKind(b, req, width); err != nil {
		return nil, err
	}
	visibility, args, _ := scope.VisibilityClause("", sc.OwnPaths, false, b.Next())
	b.AddRaw(visibility, args...)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cateColumns+`
		FROM set_category
		WHERE `+b.Clause()+`
		ORDER BY sys_code`, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var cates []*Category
	for rows.Next() {
		cate := &Category{}
		if err := rows.Scan(&cate.ID, &cate.SysCode, &cate.BusCode, &cate.Name, &cate.Icon,
			&cate.Sort, &cate.Ext, &cate.RelSetID, &cate.ScopeLevel, &cate.OwnPaths,
			&cate.Owner, &cate.CreateTime, &cate.UpdateTime); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cates = append(cates, cate)
	}
	return cates, rows.Err()
}

func applyQueryKind(b *query.Builder, req FetchReq, width int) error {
	anchor := req.AnchorSysCode

	if anchor == "" {
		switch req.QueryKind {
		case QueryCurrentAndSub, QuerySub:
			if req.MaxDepth > 0 {
				return b.Add("length(sys_code)", query.Le, req.MaxDepth*width)
			}
			return nil
		default:
			return errdef.InvalidArgumentf("query kind %s requires an anchor sys code", req.QueryKind)
		}
	}

	switch req.QueryKind {
	case QueryCurrent:
		return b.Add("sys_code", query.Eq, anchor)
	case QuerySub:
		if err := b.Add("sys_code", query.Like, anchor+"%"); err != nil {
			return err
		}
		if err := b.Add("sys_code", query.Ne, anchor); err != nil {
			return err
		}
	case QueryCurrentAndSub:
		if err := b.Add("sys_code", query.Like, anchor+"%"); err != nil {
			return err
		}
	case QueryParent, QueryCurrentAndParent:
		codes := parentCodes(anchor, width)
		if req.QueryKind == QueryCurrentAndParent {
			codes = append(codes, anchor)
		}
		if len(codes) == 0 {
			// top-level node with no ancestors
			return b.Add("sys_code", query.Eq, "")
		}
		values := make([]interface{}, len(codes))
		for i, code := range codes {
			values[i] = code
		}
		return b.Add("sys_code", query.In, values...)
	default:
		return errdef.InvalidArgumentf("unknown query kind %d", req.QueryKind)
	}

	if req.MaxDepth > 0 {
		return b.Add("length(sys_code)", query.Le, len(anchor)+req.MaxDepth*width)
	}
	return nil
}

// UpdateCategory mutates descriptive fields of a category owned by the
// caller's scope.
func (s *Store) UpdateCategory(ctx context.Context, id string, modify CategoryModify, sc scope.Context) error {
	var sets []string
	var args []interface{}
	set := func(col string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if modify.BusCode != nil {
		set("bus_code", *modify.BusCode)
	}
	if modify.Name != nil {
		set("name", *modify.Name)
	}
	if modify.Icon != nil {
		set("icon", *modify.Icon)
	}
	if modify.Sort != nil {
		set("sort", *modify.Sort)
	}
	if modify.Ext != nil {
		set("ext", *modify.Ext)
	}
	if modify.ScopeLevel != nil {
		set("scope_level", *modify.ScopeLevel)
	}
	if len(sets) == 0 {
		return nil
	}
	set("update_time", time.Now().UTC())

	args = append(args, id, sc.OwnPaths+"%")
	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE set_category SET %s WHERE id = $%d AND own_paths LIKE $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args)), args...)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return requireRow(result, "category", id)
}

// CountChildren returns the number of direct and indirect children of a node.
func (s *Store) CountChildren(ctx context.Context, setID, sysCode string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM set_category
		WHERE rel_set_id = $1 AND sys_code LIKE $2 AND sys_code != $3`,
		setID, sysCode+"%", sysCode).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count child categories: %w", err)
	}
	return count, nil
}

// CountBindingsBySysCode returns the number of items bound to a node.
func (s *Store) CountBindingsBySysCode(ctx context.Context, setID, sysCode string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM set_item_binding
		WHERE rel_set_id = $1 AND rel_cate_sys_code = $2`,
		setID, sysCode).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bindings: %w", err)
	}
	return count, nil
}

// DeleteCategory removes a category row.
func (s *Store) DeleteCategory(ctx context.Context, id string, sc scope.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM set_category WHERE id = $1 AND own_paths LIKE $2`, id, sc.OwnPaths+"%")
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return requireRow(result, "category", id)
}

// RewriteSysCodes replaces the sys-code prefix of a node and its whole
// subtree, and of every binding mounted on them, inside the given
// transaction. It returns the number of rewritten category rows.
func (s *Store) RewriteSysCodes(ctx context.Context, tx dbtx, setID, oldSysCode, newSysCode string) (int, error) {
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		UPDATE set_category
		SET sys_code = $1 || substr(sys_code, $2), update_time = $3
		WHERE rel_set_id = $4 AND sys_code LIKE $5`,
		newSysCode, len(oldSysCode)+1, now, setID, oldSysCode+"%")
	if err != nil {
		return 0, fmt.Errorf("failed to rewrite category sys codes: %w", err)
	}
	moved, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rewritten row count: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE set_item_binding
		SET rel_cate_sys_code = $1 || substr(rel_cate_sys_code, $2), update_time = $3
		WHERE rel_set_id = $4 AND rel_cate_sys_code LIKE $5`,
		newSysCode, len(oldSysCode)+1, now, setID, oldSysCode+"%")
	if err != nil {
		return 0, fmt.Errorf("failed to rewrite binding sys codes: %w", err)
	}
	return int(moved), nil
}

// GetBinding loads one binding by id.
func (s *Store) GetBinding(ctx context.Context, id string) (*Binding, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+bindingColumns+`
		FROM set_item_binding
		WHERE id = $1`, id)
	b := &Binding{}
	err := row.Scan(&b.ID, &b.Sort, &b.RelSetID, &b.RelCateSysCode, &b.RelItemID,
		&b.OwnPaths, &b.Owner, &b.CreateTime, &b.UpdateTime)
	if err == sql.ErrNoRows {
		return nil, errdef.NotFoundf("binding %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan binding: %w", err)
	}
	return b, nil
}

// GetBindingByTriple loads a binding by its unique (set, node, item) triple.
func (s *Store) GetBindingByTriple(ctx context.Context, setID, sysCode, itemID string) (*Binding, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+bindingColumns+`
		FROM set_item_binding
		WHERE rel_set_id = $1 AND rel_cate_sys_code = $2 AND rel_item_id = $3`,
		setID, sysCode, itemID)
	b := &Binding{}
	err := row.Scan(&b.ID, &b.Sort, &b.RelSetID, &b.RelCateSysCode, &b.RelItemID,
		&b.OwnPaths, &b.Owner, &b.CreateTime, &b.UpdateTime)
	if err == sql.ErrNoRows {
		return nil, errdef.NotFoundf("binding for item %s not found", itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan binding: %w", err)
	}
	return b, nil
}

// InsertBinding inserts a binding row, stamping id, ownership and audit times.
func (s *Store) InsertBinding(ctx context.Context, binding *Binding, sc scope.Context) (string, error) {
	binding.ID = uuid.NewString()
	binding.OwnPaths = sc.OwnPaths
	binding.Owner = sc.Owner
	now := time.Now().UTC()
	binding.CreateTime = now
	binding.UpdateTime = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO set_item_binding (`+bindingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		binding.ID, binding.Sort, binding.RelSetID, binding.RelCateSysCode, binding.RelItemID,
		binding.OwnPaths, binding.Owner, binding.CreateTime, binding.UpdateTime)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return "", errdef.Conflictf("item %s is already bound to node %s", binding.RelItemID, binding.RelCateSysCode)
		}
		return "", fmt.Errorf("failed to insert binding: %w", err)
	}
	return binding.ID, nil
}

// UpdateBindingSort changes the sort of an existing binding.
func (s *Store) UpdateBindingSort(ctx context.Context, id string, sort int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE set_item_binding SET sort = $1, update_time = $2 WHERE id = $3`,
		sort, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update binding sort: %w", err)
	}
	return requireRow(result, "binding", id)
}

// DeleteBinding removes a binding row.
func (s *Store) DeleteBinding(ctx context.Context, id string, sc scope.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM set_item_binding WHERE id = $1 AND own_paths LIKE $2`, id, sc.OwnPaths+"%")
	if err != nil {
		return fmt.Errorf("failed to delete binding: %w", err)
	}
	return requireRow(result, "binding", id)
}

// FindBoundItems loads every bound item of a set joined with its item row,
// ordered by node position then binding sort.
func (s *Store) FindBoundItems(ctx context.Context, setID string, hideDisabled bool) (map[string][]*BoundItem, error) {
	q := `
		SELECT b.id, b.rel_cate_sys_code, b.sort, i.id, i.code, i.name, i.disabled, i.own_paths
		FROM set_item_binding b
		JOIN resource_item i ON i.id = b.rel_item_id
		WHERE b.rel_set_id = $1`
	if hideDisabled {
		q += ` AND i.disabled = false`
	}
	q += ` ORDER BY b.rel_cate_sys_code, b.sort`

	rows, err := s.db.QueryContext(ctx, q, setID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bound items: %w", err)
	}
	defer rows.Close()

	byNode := make(map[string][]*BoundItem)
	for rows.Next() {
		var sysCode string
		item := &BoundItem{}
		if err := rows.Scan(&item.BindingID, &sysCode, &item.Sort, &item.ItemID,
			&item.Code, &item.Name, &item.Disabled, &item.OwnPaths); err != nil {
			return nil, fmt.Errorf("failed to scan bound item: %w", err)
		}
		byNode[sysCode] = append(byNode[sysCode], item)
	}
	return byNode, rows.Err()
}

// FindMountsByItem lists every (set, node) position an item is bound to.
func (s *Store) FindMountsByItem(ctx context.Context, itemID string) ([]*Mount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.rel_set_id, b.rel_cate_sys_code, b.sort, c.id
		FROM set_item_binding b
		JOIN set_category c ON c.rel_set_id = b.rel_set_id AND c.sys_code = b.rel_cate_sys_code
		WHERE b.rel_item_id = $1
		ORDER BY b.rel_set_id, b.rel_cate_sys_code`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query item mounts: %w", err)
	}
	defer rows.Close()

	var mounts []*Mount
	for rows.Next() {
		m := &Mount{}
		if err := rows.Scan(&m.BindingID, &m.SetID, &m.CateSysCode, &m.Sort, &m.CateID); err != nil {
			return nil, fmt.Errorf("failed to scan item mount: %w", err)
		}
		mounts = append(mounts, m)
	}
	return mounts, rows.Err()
}

// CountBindingsByItem returns the number of bindings referencing an item.
func (s *Store) CountBindingsByItem(ctx context.Context, itemID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM set_item_binding WHERE rel_item_id = $1`, itemID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count item bindings: %w", err)
	}
	return count, nil
}

// FindCategoriesBySysCodes loads category rows by sys code within a set, in
// sys-code order.
func (s *Store) FindCategoriesBySysCodes(ctx context.Context, setID string, sysCodes []string) ([]*Category, error) {
	if len(sysCodes) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(sysCodes))
	args := make([]interface{}, 0, len(sysCodes)+1)
	args = append(args, setID)
	for i, code := range sysCodes {
		args = append(args, code)
		placeholders[i] = fmt.Sprintf("$%d", i+2)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cateColumns+`
		FROM set_category
		WHERE rel_set_id = $1 AND sys_code IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY sys_code`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories by sys code: %w", err)
	}
	defer rows.Close()

	var cates []*Category
	for rows.Next() {
		cate := &Category{}
		if err := rows.Scan(&cate.ID, &cate.SysCode, &cate.BusCode, &cate.Name, &cate.Icon,
			&cate.Sort, &cate.Ext, &cate.RelSetID, &cate.ScopeLevel, &cate.OwnPaths,
			&cate.Owner, &cate.CreateTime, &cate.UpdateTime); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cates = append(cates, cate)
	}
	return cates, rows.Err()
}

// CategoryIDsBySysCodes resolves category ids from sys codes within a set.
func (s *Store) CategoryIDsBySysCodes(ctx context.Context, setID string, sysCodes []string) ([]string, error) {
	if len(sysCodes) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(sysCodes))
	args := make([]interface{}, 0, len(sysCodes)+1)
	args = append(args, setID)
	for i, code := range sysCodes {
		args = append(args, code)
		placeholders[i] = fmt.Sprintf("$%d", i+2)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM set_category
		WHERE rel_set_id = $1 AND sys_code IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY sys_code`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query category ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan category id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanSet(row *sql.Row, key string) (*Set, error) {
	set := &Set{}
	err := row.Scan(&set.ID, &set.Code, &set.Kind, &set.Name, &set.Note, &set.Icon,
		&set.Sort, &set.Ext, &set.ScopeLevel, &set.OwnPaths, &set.Owner, &set.Disabled,
		&set.CreateTime, &set.UpdateTime)
	if err == sql.ErrNoRows {
		return nil, errdef.NotFoundf("set %s not found", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan set: %w", err)
	}
	return set, nil
}

func scanCategory(row *sql.Row, key string) (*Category, error) {
	cate := &Category{}
	err := row.Scan(&cate.ID, &cate.SysCode, &cate.BusCode, &cate.Name, &cate.Icon,
		&cate.Sort, &cate.Ext, &cate.RelSetID, &cate.ScopeLevel, &cate.OwnPaths,
		&cate.Owner, &cate.CreateTime, &cate.UpdateTime)
	if err == sql.ErrNoRows {
		return nil, errdef.NotFoundf("category %s not found", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}
	return cate, nil
}

func requireRow(result sql.Result, entity, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return errdef.NotFoundf("%s %s not found", entity, id)
	}
	return nil
}
