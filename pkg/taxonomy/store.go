package taxonomy

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

// Store persists domains and kinds.
type Store struct {
	db *sql.DB
}

// NewStore creates a new taxonomy store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const domainColumns = "id, code, name, note, icon, sort, scope_level, own_paths, owner, create_time, update_time"

const kindColumns = "id, module, code, name, note, icon, sort, ext_table_name, parent_id, scope_level, own_paths, owner, create_time, update_time"

// CreateDomain inserts a new domain, stamping id, ownership and audit times.
// A duplicate code is a Conflict.
func (s *Store) CreateDomain(ctx context.Context, d *Domain, sc scope.Context) (string, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM resource_domain WHERE code = $1`, d.Code).Scan(&count)
	if err != nil {
		return "", fmt.Errorf("failed to check domain code: %w", err)
	}
	if count > 0 {
		return "", errdef.Conflictf("domain code %q already exists", d.Code)
	}

	d.ID = uuid.NewString()
	d.OwnPaths = sc.OwnPaths
	d.Owner = sc.Owner
	now := time.Now().UTC()
	d.CreateTime = now
	d.UpdateTime = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resource_domain (`+domainColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.Code, d.Name, d.Note, d.Icon, d.Sort, d.ScopeLevel, d.OwnPaths, d.Owner, d.CreateTime, d.UpdateTime)
	if err != nil {
		// the pre-check does not cover a concurrent insert of the same code
		if postgres.IsUniqueViolation(err) {
			return "", errdef.Conflictf("domain code %q already exists", d.Code)
		}
		return "", fmt.Errorf("failed to insert domain: %w", err)
	}
	return d.ID, nil
}

// GetDomain loads one visible domain by id.
func (s *Store) GetDomain(ctx context.Context, id string, sc scope.Context) (*Domain, error) {
	visibility, args, _ := scope.VisibilityClause("", sc.OwnPaths, false, 2)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+domainColumns+`
		FROM resource_domain
		WHERE id = $1 AND `+visibility,
		append([]interface{}{id}, args...)...)
	return scanDomain(row, id)
}

// GetDomainByCode loads one visible domain by code.
func (s *Store) GetDomainByCode(ctx context.Context, code string, sc scope.Context) (*Domain, error) {
	visibility, args, _ := scope.VisibilityClause("", sc.OwnPaths, false, 2)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+domainColumns+`
		FROM resource_domain
		WHERE code = $1 AND `+visibility,
		append([]interface{}{code}, args...)...)
	return scanDomain(row, code)
}

// FindDomains lists visible domains matching the filter, ordered by sort.
func (s *Store) FindDomains(ctx context.Context, filter Filter, sc scope.Context) ([]*Domain, error) {
	b := query.NewBuilder()
	if err := applyFilter(b, filter); err != nil {
		return nil, err
	}
	visibility, args, _ := scope.VisibilityClause("", sc.OwnPaths, filter.WithSubOwnPaths, b.Next())
	b.AddRaw(visibility, args...)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+domainColumns+`
		FROM resource_domain
		WHERE `+b.Clause()+`
		ORDER BY sort, code`, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query domains: %w", err)
	}
	defer rows.Close()

	var domains []*Domain
	for rows.Next() {
		d := &Domain{}
		if err := rows.Scan(&d.ID, &d.Code, &d.Name, &d.Note, &d.Icon, &d.Sort, &d.ScopeLevel,
			&d.OwnPaths, &d.Owner, &d.CreateTime, &d.UpdateTime); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// UpdateDomain mutates descriptive fields of a domain owned by the caller's
// scope. Identity fields never change.
func (s *Store) UpdateDomain(ctx context.Context, id string, modify DomainModify, sc scope.Context) error {
	sets, args := modifyClauses(map[string]interface{}{
		"name":        strPtrValue(modify.Name),
		"note":        strPtrValue(modify.Note),
		"icon":        strPtrValue(modify.Icon),
		"sort":        int64PtrValue(modify.Sort),
		"scope_level": intPtrValue(modify.ScopeLevel),
	})
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, fmt.Sprintf("update_time = $%d", len(args)+1))
	args = append(args, time.Now().UTC())

	args = append(args, id, sc.OwnPaths+"%")
	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE resource_domain SET %s WHERE id = $%d AND own_paths LIKE $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args)), args...)
	if err != nil {
		return fmt.Errorf("failed to update domain: %w", err)
	}
	return requireRow(result, "domain", id)
}

// DeleteDomain removes a domain. Items still classified under it block the
// delete with a Conflict.
func (s *Store) DeleteDomain(ctx context.Context, id string, sc scope.Context) error {
	var refs int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM resource_item WHERE rel_domain_id = $1`, id).Scan(&refs)
	if err != nil {
		return fmt.Errorf("failed to check domain references: %w", err)
	}
	if refs > 0 {
		return errdef.Conflictf("domain %s is referenced by %d items", id, refs)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM resource_domain WHERE id = $1 AND own_paths LIKE $2`, id, sc.OwnPaths+"%")
	if err != nil {
		return fmt.Errorf("failed to delete domain: %w", err)
	}
	return requireRow(result, "domain", id)
}

// CreateKind inserts a new kind. A duplicate code is a Conflict; a missing
// parent kind is a NotFound.
func (s *Store) CreateKind(ctx context.Context, k *Kind, sc scope.Context) (string, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM resource_kind WHERE code = $1`, k.Code).Scan(&count)
	if err != nil {
		return "", fmt.Errorf("failed to check kind code: %w", err)
	}
	if count > 0 {
		return "", errdef.Conflictf("kind code %q already exists", k.Code)
	}

	if k.ParentID != "" {
		var parents int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM resource_kind WHERE id = $1`, k.ParentID).Scan(&parents)
		if err != nil {
			return "", fmt.Errorf("failed to check parent kind: %w", err)
		}
		if parents == 0 {
			return "", errdef.NotFoundf("parent kind %s not found", k.ParentID)
		}
	}

	k.ID = uuid.NewString()
	k.OwnPaths = sc.OwnPaths
	k.Owner = sc.Owner
	now := time.Now().UTC()
	k.CreateTime = now
	k.UpdateTime = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resource_kind (`+kindColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		k.ID, k.Module, k.Code, k.Name, k.Note, k.Icon, k.Sort, k.ExtTableName, k.ParentID,
		k.ScopeLevel, k.OwnPaths, k.Owner, k.CreateTime, k.UpdateTime)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return "", errdef.Conflictf("kind code %q already exists", k.Code)
		}
		return "", fmt.Errorf("failed to insert kind: %w", err)
	}
	return k.ID, nil
}

// GetKind loads one visible kind by id.
func (s *Store) GetKind(ctx context.Context, id string, sc scope.Context) (*Kind, error) {
	visibility, args, _ := scope.VisibilityClause("", sc.OwnPaths, false, 2)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+kindColumns+`
		FROM resource_kind
		WHERE id = $1 AND `+visibility,
		append([]interface{}{id}, args...)...)
	return scanKind(row, id)
}

// GetKindByCode loads one visible kind by code.
func (s *Store) GetKindByCode(ctx context.Context, code string, sc scope.Context) (*Kind, error) {
	visibility, args, _ := scope.VisibilityClause("", sc.OwnPaths, false, 2)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+kindColumns+`
		FROM resource_kind
		WHERE code = $1 AND `+visibility,
		append([]interface{}{code}, args...)...)
	return scanKind(row, code)
}

// FindKinds lists visible kinds matching the filter, ordered by sort.
func (s *Store) FindKinds(ctx context.Context, filter Filter, sc scope.Context) ([]*Kind, error) {
	b := query.NewBuilder()
	if err := applyFilter(b, filter); err != nil {
		return nil, err
	}
	visibility, args, _ := scope.VisibilityClause("", sc.OwnPaths, filter.WithSubOwnPaths, b.Next())
	b.AddRaw(visibility, args...)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+kindColumns+`
		FROM resource_kind
		WHERE `+b.Clause()+`
		ORDER BY sort, code`, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query kinds: %w", err)
	}
	defer rows.Close()

	var kinds []*Kind
	for rows.Next() {
		k := &Kind{}
		if err := rows.Scan(&k.ID, &k.Module, &k.Code, &k.Name, &k.Note, &k.Icon, &k.Sort,
			&k.ExtTableName, &k.ParentID, &k.ScopeLevel, &k.OwnPaths, &k.Owner,
			&k.CreateTime, &k.UpdateTime); err != nil {
			return nil, fmt.Errorf("failed to scan kind: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, rows.Err()
}

// UpdateKind mutates descriptive fields of a kind owned by the caller's scope.
func (s *Store) UpdateKind(ctx context.Context, id string, modify KindModify, sc scope.Context) error {
	sets, args := modifyClauses(map[string]interface{}{
		"module":      strPtrValue(modify.Module),
		"name":        strPtrValue(modify.Name),
		"note":        strPtrValue(modify.Note),
		"icon":        strPtrValue(modify.Icon),
		"sort":        int64PtrValue(modify.Sort),
		"scope_level": intPtrValue(modify.ScopeLevel),
	})
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, fmt.Sprintf("update_time = $%d", len(args)+1))
	args = append(args, time.Now().UTC())

	args = append(args, id, sc.OwnPaths+"%")
	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE resource_kind SET %s WHERE id = $%d AND own_paths LIKE $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args)), args...)
	if err != nil {
		return fmt.Errorf("failed to update kind: %w", err)
	}
	return requireRow(result, "kind", id)
}

// DeleteKind removes a kind. Items still classified under it or child kinds
// referencing it block the delete with a Conflict.
func (s *Store) DeleteKind(ctx context.Context, id string, sc scope.Context) error {
	var refs int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM resource_item WHERE rel_kind_id = $1`, id).Scan(&refs)
	if err != nil {
		return fmt.Errorf("failed to check kind references: %w", err)
	}
	if refs > 0 {
		return errdef.Conflictf("kind %s is referenced by %d items", id, refs)
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM resource_kind WHERE parent_id = $1`, id).Scan(&refs)
	if err != nil {
		return fmt.Errorf("failed to check child kinds: %w", err)
	}
	if refs > 0 {
		return errdef.Conflictf("kind %s has %d child kinds", id, refs)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM resource_kind WHERE id = $1 AND own_paths LIKE $2`, id, sc.OwnPaths+"%")
	if err != nil {
		return fmt.Errorf("failed to delete kind: %w", err)
	}
	return requireRow(result, "kind", id)
}

func applyFilter(b *query.Builder, filter Filter) error {
	if len(filter.IDs) > 0 {
		ids := make([]interface{}, len(filter.IDs))
		for i, id := range filter.IDs {
			ids[i] = id
		}
		if err := b.Add("id", query.In, ids...); err != nil {
			return err
		}
	}
	if filter.Name != "" {
		if err := b.Add("name", query.Like, "%"+filter.Name+"%"); err != nil {
			return err
		}
	}
	if filter.Code != "" {
		if err := b.Add("code", query.Like, filter.Code+"%"); err != nil {
			return err
		}
	}
	return nil
}

func scanDomain(row *sql.Row, key string) (*Domain, error) {
	d := &Domain{}
	err := row.Scan(&d.ID, &d.Code, &d.Name, &d.Note, &d.Icon, &d.Sort, &d.ScopeLevel,
		&d.OwnPaths, &d.Owner, &d.CreateTime, &d.UpdateTime)
	if err == sql.ErrNoRows {
		return nil, errdef.NotFoundf("domain %s not found", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan domain: %w", err)
	}
	return d, nil
}

func scanKind(row *sql.Row, key string) (*Kind, error) {
	k := &Kind{}
	err := row.Scan(&k.ID, &k.Module, &k.Code, &k.Name, &k.Note, &k.Icon, &k.Sort,
		&k.ExtTableName, &k.ParentID, &k.ScopeLevel, &k.OwnPaths, &k.Owner,
		&k.CreateTime, &k.UpdateTime)
	if err == sql.ErrNoRows {
		return nil, errdef.NotFoundf("kind %s not found", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan kind: %w", err)
	}
	return k, nil
}

// modifyClauses builds SET fragments for the non-nil modify fields, ordered
// deterministically for testability.
func modifyClauses(fields map[string]interface{}) ([]string, []interface{}) {
	columns := []string{"module", "name", "note", "icon", "sort", "scope_level"}
	var sets []string
	var args []interface{}
	for _, col := range columns {
		value, ok := fields[col]
		if !ok || value == nil {
			continue
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	return sets, args
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

func strPtrValue(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func int64PtrValue(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func intPtrValue(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
