package rel

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
)

// Store persists relations and their conditions.
type Store struct {
	db *sql.DB
}

// NewStore creates a new relation store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const relColumns = "id, tag, note, from_kind, from_id, to_item_id, to_own_paths, ext, own_paths, owner, create_time, update_time"

const attrColumns = "id, is_from, name, value, record_only, operator, rel_kind_attr_id, rel_rel_id, own_paths, owner, create_time, update_time"

const envColumns = "id, kind, value1, value2, rel_rel_id, own_paths, owner, create_time, update_time"

// CreateRel inserts a relation and its conditions in one transaction.
func (s *Store) CreateRel(ctx context.Context, rel *Rel, sc scope.Context) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rel.ID = uuid.NewString()
	rel.OwnPaths = sc.OwnPaths
	rel.Owner = sc.Owner
	now := time.Now().UTC()
	rel.CreateTime = now
	rel.UpdateTime = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO resource_rel (`+relColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rel.ID, rel.Tag, rel.Note, int(rel.FromKind), rel.FromID, rel.ToItemID,
		rel.ToOwnPaths, rel.Ext, rel.OwnPaths, rel.Owner, rel.CreateTime, rel.UpdateTime)
	if err != nil {
		return "", fmt.Errorf("failed to insert relation: %w", err)
	}

	for _, attr := range rel.Attrs {
		if err := insertAttr(ctx, tx, rel.ID, attr, sc, now); err != nil {
			return "", err
		}
	}
	for _, env := range rel.Envs {
		if err := insertEnv(ctx, tx, rel.ID, env, sc, now); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit relation create: %w", err)
	}
	return rel.ID, nil
}

func insertAttr(ctx context.Context, tx *sql.Tx, relID string, attr *AttrCond, sc scope.Context, now time.Time) error {
	attr.ID = uuid.NewString()
	attr.RelRelID = relID
	attr.OwnPaths = sc.OwnPaths
	attr.Owner = sc.Owner
	attr.CreateTime = now
	attr.UpdateTime = now

	_, err := tx.ExecContext(ctx, `
		INSERT INTO rel_attr (`+attrColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		attr.ID, attr.IsFrom, attr.Name, attr.Value, attr.RecordOnly, int(attr.Operator),
		attr.RelKindAttrID, attr.RelRelID, attr.OwnPaths, attr.Owner, attr.CreateTime, attr.UpdateTime)
	if err != nil {
		return fmt.Errorf("failed to insert relation attribute: %w", err)
	}
	return nil
}

func insertEnv(ctx context.Context, tx *sql.Tx, relID string, env *EnvCond, sc scope.Context, now time.Time) error {
	env.ID = uuid.NewString()
	env.RelRelID = relID
	env.OwnPaths = sc.OwnPaths
	env.Owner = sc.Owner
	env.CreateTime = now
	env.UpdateTime = now

	_, err := tx.ExecContext(ctx, `
		INSERT INTO rel_env (`+envColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		env.ID, int(env.Kind), env.Value1, env.Value2, env.RelRelID,
		env.OwnPaths, env.Owner, env.CreateTime, env.UpdateTime)
	if err != nil {
		return fmt.Errorf("failed to insert relation environment: %w", err)
	}
	return nil
}

// GetRel loads one relation with its conditions.
func (s *Store) GetRel(ctx context.Context, id string) (*Rel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+relColumns+`
		FROM resource_rel
		WHERE id = $1`, id)
	rel, err := scanRel(row)
	if err == sql.ErrNoRows {
		return nil, errdef.NotFoundf("relation %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan relation: %w", err)
	}
	if err := s.loadConds(ctx, []*Rel{rel}); err != nil {
		return nil, err
	}
	return rel, nil
}

// FindRels lists relations matching the filter, with their conditions,
// limited to those visible from the caller's path on either side.
func (s *Store) FindRels(ctx context.Context, filter Filter, sc scope.Context) ([]*Rel, error) {
	b := query.NewBuilder()
	if err := applyRelFilter(b, filter); err != nil {
		return nil, err
	}
	b.AddRaw(fmt.Sprintf("(own_paths LIKE $%d OR to_own_paths LIKE $%d)", b.Next(), b.Next()+1),
		sc.OwnPaths+"%", sc.OwnPaths+"%")

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+relColumns+`
		FROM resource_rel
		WHERE `+b.Clause()+`
		ORDER BY create_time, id`, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	defer rows.Close()

	rels, err := collectRels(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadConds(ctx, rels); err != nil {
		return nil, err
	}
	return rels, nil
}

// PaginateRels lists one page of relations matching the filter plus the
// total match count.
func (s *Store) PaginateRels(ctx context.Context, filter Filter, pageNumber, pageSize int, sc scope.Context) ([]*Rel, int64, error) {
	if pageNumber < 1 || pageSize < 1 {
		return nil, 0, errdef.InvalidArgumentf("page number and size must be positive, got %d/%d", pageNumber, pageSize)
	}

	b := query.NewBuilder()
	if err := applyRelFilter(b, filter); err != nil {
		return nil, 0, err
	}
	b.AddRaw(fmt.Sprintf("(own_paths LIKE $%d OR to_own_paths LIKE $%d)", b.Next(), b.Next()+1),
		sc.OwnPaths+"%", sc.OwnPaths+"%")

	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM resource_rel WHERE `+b.Clause(), b.Args()...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count relations: %w", err)
	}

	limitArgs := append(b.Args(), pageSize, (pageNumber-1)*pageSize)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+relColumns+`
		FROM resource_rel
		WHERE `+b.Clause()+`
		ORDER BY create_time, id
		LIMIT $%d OFFSET $%d`, b.Next(), b.Next()+1), limitArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query relation page: %w", err)
	}
	defer rows.Close()

	rels, err := collectRels(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := s.loadConds(ctx, rels); err != nil {
		return nil, 0, err
	}
	return rels, total, nil
}

// DeleteRel removes a relation and cascades to its conditions in one
// transaction.
func (s *Store) DeleteRel(ctx context.Context, id string, sc scope.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rel_attr WHERE rel_rel_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete relation attributes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rel_env WHERE rel_rel_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete relation environments: %w", err)
	}
	result, err := tx.ExecContext(ctx, `
		DELETE FROM resource_rel WHERE id = $1 AND own_paths LIKE $2`, id, sc.OwnPaths+"%")
	if err != nil {
		return fmt.Errorf("failed to delete relation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return errdef.NotFoundf("relation %s not found", id)
	}
	return tx.Commit()
}

// CountRelsByItem returns the number of relations referencing an item on
// either side.
func (s *Store) CountRelsByItem(ctx context.Context, itemID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM resource_rel
		WHERE to_item_id = $1 OR (from_kind = $2 AND from_id = $3)`,
		itemID, int(FromItem), itemID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count item relations: %w", err)
	}
	return count, nil
}

// AddAttr appends an attribute condition to an existing relation.
func (s *Store) AddAttr(ctx context.Context, relID string, attr *AttrCond, sc scope.Context) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := insertAttr(ctx, tx, relID, attr, sc, time.Now().UTC()); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit attribute add: %w", err)
	}
	return attr.ID, nil
}

// AddEnv appends an environment condition to an existing relation.
func (s *Store) AddEnv(ctx context.Context, relID string, env *EnvCond, sc scope.Context) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := insertEnv(ctx, tx, relID, env, sc, time.Now().UTC()); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit environment add: %w", err)
	}
	return env.ID, nil
}

// DeleteAttr removes one attribute condition.
func (s *Store) DeleteAttr(ctx context.Context, id string, sc scope.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM rel_attr WHERE id = $1 AND own_paths LIKE $2`, id, sc.OwnPaths+"%")
	if err != nil {
		return fmt.Errorf("failed to delete relation attribute: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return errdef.NotFoundf("relation attribute %s not found", id)
	}
	return nil
}

// DeleteEnv removes one environment condition.
func (s *Store) DeleteEnv(ctx context.Context, id string, sc scope.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM rel_env WHERE id = $1 AND own_paths LIKE $2`, id, sc.OwnPaths+"%")
	if err != nil {
		return fmt.Errorf("failed to delete relation environment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return errdef.NotFoundf("relation environment %s not found", id)
	}
	return nil
}

func applyRelFilter(b *query.Builder, filter Filter) error {
	if filter.Tag != "" {
		if err := b.Add("tag", query.Eq, filter.Tag); err != nil {
			return err
		}
	}
	if len(filter.FromKinds) > 0 {
		kinds := make([]interface{}, len(filter.FromKinds))
		for i, kind := range filter.FromKinds {
			kinds[i] = int(kind)
		}
		if err := b.Add("from_kind", query.In, kinds...); err != nil {
			return err
		}
	}
	if len(filter.FromIDs) > 0 {
		ids := make([]interface{}, len(filter.FromIDs))
		for i, id := range filter.FromIDs {
			ids[i] = id
		}
		if err := b.Add("from_id", query.In, ids...); err != nil {
			return err
		}
	}
	if filter.ToItemID != "" {
		if err := b.Add("to_item_id", query.Eq, filter.ToItemID); err != nil {
			return err
		}
	}
	return nil
}

// loadConds attaches attribute and environment conditions to the given
// relations in two batched queries.
func (s *Store) loadConds(ctx context.Context, rels []*Rel) error {
	if len(rels) == 0 {
		return nil
	}
	byID := make(map[string]*Rel, len(rels))
	placeholders := make([]string, len(rels))
	args := make([]interface{}, len(rels))
	for i, rel := range rels {
		byID[rel.ID] = rel
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = rel.ID
	}
	in := strings.Join(placeholders, ", ")

	attrRows, err := s.db.QueryContext(ctx, `
		SELECT `+attrColumns+`
		FROM rel_attr
		WHERE rel_rel_id IN (`+in+`)
		ORDER BY create_time, id`, args...)
	if err != nil {
		return fmt.Errorf("failed to query relation attributes: %w", err)
	}
	defer attrRows.Close()
	for attrRows.Next() {
		attr := &AttrCond{}
		var op int
		if err := attrRows.Scan(&attr.ID, &attr.IsFrom, &attr.Name, &attr.Value, &attr.RecordOnly,
			&op, &attr.RelKindAttrID, &attr.RelRelID, &attr.OwnPaths, &attr.Owner,
			&attr.CreateTime, &attr.UpdateTime); err != nil {
			return fmt.Errorf("failed to scan relation attribute: %w", err)
		}
		attr.Operator = AttrOp(op)
		if rel, ok := byID[attr.RelRelID]; ok {
			rel.Attrs = append(rel.Attrs, attr)
		}
	}
	if err := attrRows.Err(); err != nil {
		return err
	}

	envRows, err := s.db.QueryContext(ctx, `
		SELECT `+envColumns+`
		FROM rel_env
		WHERE rel_rel_id IN (`+in+`)
		ORDER BY create_time, id`, args...)
	if err != nil {
		return fmt.Errorf("failed to query relation environments: %w", err)
	}
	defer envRows.Close()
	for envRows.Next() {
		env := &EnvCond{}
		var kind int
		if err := envRows.Scan(&env.ID, &kind, &env.Value1, &env.Value2, &env.RelRelID,
			&env.OwnPaths, &env.Owner, &env.CreateTime, &env.UpdateTime); err != nil {
			return fmt.Errorf("failed to scan relation environment: %w", err)
		}
		env.Kind = EnvKind(kind)
		if rel, ok := byID[env.RelRelID]; ok {
			rel.Envs = append(rel.Envs, env)
		}
	}
	return envRows.Err()
}

func collectRels(rows *sql.Rows) ([]*Rel, error) {
	var rels []*Rel
	for rows.Next() {
		rel := &Rel{}
		var kind int
		if err := rows.Scan(&rel.ID, &rel.Tag, &rel.Note, &kind, &rel.FromID, &rel.ToItemID,
			&rel.ToOwnPaths, &rel.Ext, &rel.OwnPaths, &rel.Owner,
			&rel.CreateTime, &rel.UpdateTime); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		rel.FromKind = FromKind(kind)
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

func scanRel(row *sql.Row) (*Rel, error) {
	rel := &Rel{}
	var kind int
	err := row.Scan(&rel.ID, &rel.Tag, &rel.Note, &kind, &rel.FromID, &rel.ToItemID,
		&rel.ToOwnPaths, &rel.Ext, &rel.OwnPaths, &rel.Owner,
		&rel.CreateTime, &rel.UpdateTime)
	if err != nil {
		return nil, err
	}
	rel.FromKind = FromKind(kind)
	return rel, nil
}
