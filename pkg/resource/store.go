package resource

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

// Store persists resource items.
type Store struct {
	db *sql.DB
}

// NewStore creates a new item store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const itemColumns = "id, code, name, rel_kind_id, rel_domain_id, scope_level, own_paths, owner, disabled, create_time, update_time"

// Create inserts a new item, stamping id, ownership and audit times. The code
// must be unique within its (kind, domain) pair; a duplicate is a Conflict.
func (s *Store) Create(ctx context.Context, item *Item, sc scope.Context) (string, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM resource_item
		WHERE code = $1 AND rel_kind_id = $2 AND rel_domain_id = $3`,
		item.Code, item.RelKindID, item.RelDomainID).Scan(&count)
	if err != nil {
		return "", fmt.Errorf("failed to check item code: %w", err)
	}
	if count > 0 {
		return "", errdef.Conflictf("item code %q already exists for kind %s in domain %s",
			item.Code, item.RelKindID, item.RelDomainID)
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.OwnPaths = sc.OwnPaths
	item.Owner = sc.Owner
	now := time.Now().UTC()
	item.CreateTime = now
	item.UpdateTime = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resource_item (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		item.ID, item.Code, item.Name, item.RelKindID, item.RelDomainID,
		item.ScopeLevel, item.OwnPaths, item.Owner, item.Disabled,
		item.CreateTime, item.UpdateTime)
	if err != nil {
		// the pre-check does not cover a concurrent insert of the same code
		if postgres.IsUniqueViolation(err) {
			return "", errdef.Conflictf("item code %q already exists for kind %s in domain %s",
				item.Code, item.RelKindID, item.RelDomainID)
		}
		return "", fmt.Errorf("failed to insert item: %w", err)
	}
	return item.ID, nil
}

// Get loads one visible item by id.
func (s *Store) Get(ctx context.Context, id string, sc scope.Context) (*Item, error) {
	visibility, args, _ := scope.VisibilityClause("", sc.OwnPaths, false, 2)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM resource_item
		WHERE id = $1 AND `+visibility,
		append([]interface{}{id}, args...)...)
	return scanItem(row, id)
}

// GetByCode loads one visible item by code within a kind and domain.
func (s *Store) GetByCode(ctx context.Context, code, kindID, domainID string, sc scope.Context) (*Item, error) {
	visibility, args, _ := scope.VisibilityClause("", sc.OwnPaths, false, 4)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM resource_item
		WHERE code = $1 AND rel_kind_id = $2 AND rel_domain_id = $3 AND `+visibility,
		append([]interface{}{code, kindID, domainID}, args...)...)
	return scanItem(row, code)
}

// Find lists visible items matching the filter, ordered by creation time.
func (s *Store) Find(ctx context.Context, filter Filter, sc scope.Context) ([]*Item, error) {
	b := query.NewBuilder()
	if err := applyItemFilter(b, filter); err != nil {
		return nil, err
	}
	visibility, args, _ := scope.VisibilityClause("", sc.OwnPaths, filter.WithSubOwnPaths, b.Next())
	b.AddRaw(visibility, args...)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM resource_item
		WHERE `+b.Clause()+`
		ORDER BY create_time, code`, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// Paginate lists one page of visible items matching the filter, plus the
// total match count.
func (s *Store) Paginate(ctx context.Context, filter Filter, page Page, sc scope.Context) (*PageResult, error) {
	if page.Number < 1 || page.Size < 1 {
		return nil, errdef.InvalidArgumentf("page number and size must be positive, got %d/%d", page.Number, page.Size)
	}

	b := query.NewBuilder()
	if err := applyItemFilter(b, filter); err != nil {
		return nil, err
	}
	visibility, args, _ := scope.VisibilityClause("", sc.OwnPaths, filter.WithSubOwnPaths, b.Next())
	b.AddRaw(visibility, args...)

	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM resource_item WHERE `+b.Clause(), b.Args()...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}

	limitArgs := append(b.Args(), page.Size, (page.Number-1)*page.Size)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+itemColumns+`
		FROM resource_item
		WHERE `+b.Clause()+`
		ORDER BY create_time, code
		LIMIT $%d OFFSET $%d`, b.Next(), b.Next()+1), limitArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query item page: %w", err)
	}
	defer rows.Close()

	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	return &PageResult{Items: items, Total: total}, nil
}

// Update mutates the set fields of an item owned by the caller's scope. When
// the code changes, the (kind, domain) uniqueness is re-checked.
func (s *Store) Update(ctx context.Context, id string, modify ItemModify, sc scope.Context) error {
	if modify.Code != nil {
		current, err := s.Get(ctx, id, sc)
		if err != nil {
			return err
		}
		if *modify.Code != current.Code {
			var count int
			err := s.db.QueryRowContext(ctx, `
				SELECT COUNT(1) FROM resource_item
				WHERE code = $1 AND rel_kind_id = $2 AND rel_domain_id = $3`,
				*modify.Code, current.RelKindID, current.RelDomainID).Scan(&count)
			if err != nil {
				return fmt.Errorf("failed to check item code: %w", err)
			}
			if count > 0 {
				return errdef.Conflictf("item code %q already exists for kind %s in domain %s",
					*modify.Code, current.RelKindID, current.RelDomainID)
			}
		}
	}

	var sets []string
	var args []interface{}
	set := func(col string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if modify.Code != nil {
		set("code", *modify.Code)
	}
	if modify.Name != nil {
		set("name", *modify.Name)
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
		UPDATE resource_item SET %s WHERE id = $%d AND own_paths LIKE $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args)), args...)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return requireRow(result, id)
}

// Delete removes an item owned by the caller's scope.
func (s *Store) Delete(ctx context.Context, id string, sc scope.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM resource_item WHERE id = $1 AND own_paths LIKE $2`, id, sc.OwnPaths+"%")
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return requireRow(result, id)
}

// Exists reports whether any item with the id exists, regardless of
// visibility. Referential checks use this rather than Get so a reference to
// an item in a sibling scope is still detected.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM resource_item WHERE id = $1`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check item existence: %w", err)
	}
	return count > 0, nil
}

func applyItemFilter(b *query.Builder, filter Filter) error {
	if len(filter.IDs) > 0 {
		ids := make([]interface{}, len(filter.IDs))
		for i, id := range filter.IDs {
			ids[i] = id
		}
		if err := b.Add("id", query.In, ids...); err != nil {
			return err
		}
	}
	if filter.Code != "" {
		if err := b.Add("code", query.Like, filter.Code+"%"); err != nil {
			return err
		}
	}
	if filter.Name != "" {
		if err := b.Add("name", query.Like, "%"+filter.Name+"%"); err != nil {
			return err
		}
	}
	if filter.KindID != "" {
		if err := b.Add("rel_kind_id", query.Eq, filter.KindID); err != nil {
			return err
		}
	}
	if filter.DomainID != "" {
		if err := b.Add("rel_domain_id", query.Eq, filter.DomainID); err != nil {
			return err
		}
	}
	if filter.ScopeLevel != nil {
		if err := b.Add("scope_level", query.Eq, *filter.ScopeLevel); err != nil {
			return err
		}
	}
	if filter.Enabled != nil {
		if err := b.Add("disabled", query.Eq, !*filter.Enabled); err != nil {
			return err
		}
	}
	return nil
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item := &Item{}
		if err := rows.Scan(&item.ID, &item.Code, &item.Name, &item.RelKindID, &item.RelDomainID,
			&item.ScopeLevel, &item.OwnPaths, &item.Owner, &item.Disabled,
			&item.CreateTime, &item.UpdateTime); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row *sql.Row, key string) (*Item, error) {
	item := &Item{}
	err := row.Scan(&item.ID, &item.Code, &item.Name, &item.RelKindID, &item.RelDomainID,
		&item.ScopeLevel, &item.OwnPaths, &item.Owner, &item.Disabled,
		&item.CreateTime, &item.UpdateTime)
	if err == sql.ErrNoRows {
		return nil, errdef.NotFoundf("item %s not found", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}
	return item, nil
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return errdef.NotFoundf("item %s not found", id)
	}
	return nil
}
