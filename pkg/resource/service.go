package resource

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/platinummonkey/stratum/pkg/errdef"
	"github.com/platinummonkey/stratum/pkg/observability"
	"github.com/platinummonkey/stratum/pkg/scope"
	"github.com/platinummonkey/stratum/pkg/taxonomy"
)

// AddItemReq carries the fields for creating an item. Kind and domain are
// addressed by code and resolved through the taxonomy cache.
type AddItemReq struct {
	ID         string
	Code       string
	Name       string
	KindCode   string
	DomainCode string
	ScopeLevel int
	Disabled   bool
}

// Service exposes item operations on top of the store, with taxonomy
// resolution, extension-table registration and delete guards.
type Service struct {
	store    *Store
	taxonomy *taxonomy.Service
	logger   *observability.Logger

	mu         sync.RWMutex
	extensions map[string]ExtensionTable
	guards     []RefGuard
}

// NewService creates an item service.
func NewService(store *Store, taxonomySvc *taxonomy.Service, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		store:      store,
		taxonomy:   taxonomySvc,
		logger:     logger,
		extensions: make(map[string]ExtensionTable),
	}
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// RegisterExtension registers an extension table for a kind. The table and
// column names must be lowercase identifiers; a second registration for the
// same table is a Conflict.
func (s *Service) RegisterExtension(ext ExtensionTable) error {
	name := ext.TableName()
	if !identPattern.MatchString(name) {
		return errdef.InvalidArgumentf("extension table name %q is malformed", name)
	}
	for _, col := range ext.Columns() {
		if !identPattern.MatchString(col.Name) {
			return errdef.InvalidArgumentf("extension column name %q is malformed", col.Name)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.extensions[name]; ok {
		return errdef.Conflictf("extension table %q already registered", name)
	}
	s.extensions[name] = ext
	return nil
}

// Extensions returns the registered extension tables.
func (s *Service) Extensions() []ExtensionTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exts := make([]ExtensionTable, 0, len(s.extensions))
	for _, ext := range s.extensions {
		exts = append(exts, ext)
	}
	return exts
}

// ApplyExtensionSchema creates the registered extension tables if they do
// not exist. Each table gets an id column keyed to the item id plus the
// columns the extension declares. Names are validated at registration, so
// interpolating them here is safe.
func (s *Service) ApplyExtensionSchema(ctx context.Context) error {
	for _, ext := range s.Extensions() {
		columns := []string{"id VARCHAR(36) PRIMARY KEY"}
		for _, col := range ext.Columns() {
			columns = append(columns, col.Name+" "+col.SQLType)
		}
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", ext.TableName(), strings.Join(columns, ", "))
		if _, err := s.store.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create extension table %s: %w", ext.TableName(), err)
		}
	}
	return nil
}

// RegisterDeleteGuard adds a veto callback consulted before every item
// delete. Packages that reference items register one at wiring time.
func (s *Service) RegisterDeleteGuard(guard RefGuard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guards = append(s.guards, guard)
}

// AddItem resolves the kind and domain codes and creates the item.
func (s *Service) AddItem(ctx context.Context, req AddItemReq, sc scope.Context) (string, error) {
	if !taxonomy.ValidCode(req.Code) {
		return "", errdef.InvalidArgumentf("item code %q is malformed", req.Code)
	}
	kind, err := s.taxonomy.GetKindByCode(ctx, req.KindCode, sc)
	if err != nil {
		return "", fmt.Errorf("failed to resolve kind %q: %w", req.KindCode, err)
	}
	domain, err := s.taxonomy.GetDomainByCode(ctx, req.DomainCode, sc)
	if err != nil {
		return "", fmt.Errorf("failed to resolve domain %q: %w", req.DomainCode, err)
	}

	item := &Item{
		ID:          req.ID,
		Code:        req.Code,
		Name:        req.Name,
		RelKindID:   kind.ID,
		RelDomainID: domain.ID,
		ScopeLevel:  req.ScopeLevel,
		Disabled:    req.Disabled,
	}
	id, err := s.store.Create(ctx, item, sc)
	if err != nil {
		return "", fmt.Errorf("failed to add item %q: %w", req.Code, err)
	}
	s.logger.WithField("code", req.Code).WithField("id", id).
		WithField("kind", req.KindCode).Info("added item")
	return id, nil
}

// GetItem loads one visible item by id.
func (s *Service) GetItem(ctx context.Context, id string, sc scope.Context) (*Item, error) {
	return s.store.Get(ctx, id, sc)
}

// GetItemByCode loads one visible item by code within a kind and domain,
// both addressed by code.
func (s *Service) GetItemByCode(ctx context.Context, code, kindCode, domainCode string, sc scope.Context) (*Item, error) {
	kind, err := s.taxonomy.GetKindByCode(ctx, kindCode, sc)
	if err != nil {
		return nil, err
	}
	domain, err := s.taxonomy.GetDomainByCode(ctx, domainCode, sc)
	if err != nil {
		return nil, err
	}
	return s.store.GetByCode(ctx, code, kind.ID, domain.ID, sc)
}

// FindItems lists visible items.
func (s *Service) FindItems(ctx context.Context, filter Filter, sc scope.Context) ([]*Item, error) {
	return s.store.Find(ctx, filter, sc)
}

// PaginateItems lists one page of visible items plus the total.
func (s *Service) PaginateItems(ctx context.Context, filter Filter, page Page, sc scope.Context) (*PageResult, error) {
	return s.store.Paginate(ctx, filter, page, sc)
}

// UpdateItem mutates the set fields of an item.
func (s *Service) UpdateItem(ctx context.Context, id string, modify ItemModify, sc scope.Context) error {
	return s.store.Update(ctx, id, modify, sc)
}

// SetDisabled flips the disabled flag. Disabled items stay visible to direct
// lookups but are excluded from enabled-only listings and can be hidden from
// tree views.
func (s *Service) SetDisabled(ctx context.Context, id string, disabled bool, sc scope.Context) error {
	return s.store.Update(ctx, id, ItemModify{Disabled: &disabled}, sc)
}

// DeleteItem removes an item after consulting every registered delete guard.
func (s *Service) DeleteItem(ctx context.Context, id string, sc scope.Context) error {
	s.mu.RLock()
	guards := s.guards
	s.mu.RUnlock()
	for _, guard := range guards {
		if err := guard(ctx, id); err != nil {
			return fmt.Errorf("failed to delete item %s: %w", id, err)
		}
	}
	if err := s.store.Delete(ctx, id, sc); err != nil {
		return err
	}
	s.logger.WithField("id", id).Info("deleted item")
	return nil
}

// ItemExists reports whether an item id exists, regardless of visibility.
func (s *Service) ItemExists(ctx context.Context, id string) (bool, error) {
	return s.store.Exists(ctx, id)
}
