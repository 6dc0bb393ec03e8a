package taxonomy

import (
	"context"
	"fmt"

	"github.com/platinummonkey/stratum/pkg/errdef"
	"github.com/platinummonkey/stratum/pkg/observability"
	"github.com/platinummonkey/stratum/pkg/scope"
)

// RegisterDomainReq carries the fields for registering a domain.
type RegisterDomainReq struct {
	Code       string
	Name       string
	Note       string
	Icon       string
	Sort       int64
	ScopeLevel int
}

// RegisterKindReq carries the fields for registering a kind.
type RegisterKindReq struct {
	Module       string
	Code         string
	Name         string
	Note         string
	Icon         string
	Sort         int64
	ExtTableName string
	ParentKindID string
	ScopeLevel   int
}

// Service exposes the taxonomy operations with caching and logging on top of
// the store. Registration is an idempotent bootstrap pattern: callers check
// for an existing code before registering and treat Conflict as "already
// bootstrapped".
type Service struct {
	store  *Store
	cache  *Cache
	logger *observability.Logger
}

// NewService creates a taxonomy service. The cache is owned by the caller so
// multiple services can share or isolate it.
func NewService(store *Store, cache *Cache, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{store: store, cache: cache, logger: logger}
}

// RegisterDomain creates a domain and returns its id.
func (s *Service) RegisterDomain(ctx context.Context, req RegisterDomainReq, sc scope.Context) (string, error) {
	if !ValidCode(req.Code) {
		return "", errdef.InvalidArgumentf("domain code %q is malformed", req.Code)
	}
	d := &Domain{
		Code:       req.Code,
		Name:       req.Name,
		Note:       req.Note,
		Icon:       req.Icon,
		Sort:       req.Sort,
		ScopeLevel: req.ScopeLevel,
	}
	id, err := s.store.CreateDomain(ctx, d, sc)
	if err != nil {
		return "", fmt.Errorf("failed to register domain %q: %w", req.Code, err)
	}
	s.cache.DropDomain(req.Code)
	s.logger.WithField("code", req.Code).WithField("id", id).Info("registered domain")
	return id, nil
}

// RegisterKind creates a kind and returns its id.
func (s *Service) RegisterKind(ctx context.Context, req RegisterKindReq, sc scope.Context) (string, error) {
	if !ValidCode(req.Code) {
		return "", errdef.InvalidArgumentf("kind code %q is malformed", req.Code)
	}
	k := &Kind{
		Module:       req.Module,
		Code:         req.Code,
		Name:         req.Name,
		Note:         req.Note,
		Icon:         req.Icon,
		Sort:         req.Sort,
		ExtTableName: req.ExtTableName,
		ParentID:     req.ParentKindID,
		ScopeLevel:   req.ScopeLevel,
	}
	id, err := s.store.CreateKind(ctx, k, sc)
	if err != nil {
		return "", fmt.Errorf("failed to register kind %q: %w", req.Code, err)
	}
	s.cache.DropKind(req.Code)
	s.logger.WithField("code", req.Code).WithField("id", id).Info("registered kind")
	return id, nil
}

// GetDomain loads one visible domain by id.
func (s *Service) GetDomain(ctx context.Context, id string, sc scope.Context) (*Domain, error) {
	return s.store.GetDomain(ctx, id, sc)
}

// GetDomainByCode resolves a domain by code through the cache.
func (s *Service) GetDomainByCode(ctx context.Context, code string, sc scope.Context) (*Domain, error) {
	if d, ok := s.cache.Domain(code, sc.OwnPaths); ok {
		return d, nil
	}
	d, err := s.store.GetDomainByCode(ctx, code, sc)
	if err != nil {
		return nil, err
	}
	s.cache.PutDomain(sc.OwnPaths, d)
	return d, nil
}

// GetKind loads one visible kind by id.
func (s *Service) GetKind(ctx context.Context, id string, sc scope.Context) (*Kind, error) {
	return s.store.GetKind(ctx, id, sc)
}

// GetKindByCode resolves a kind by code through the cache.
func (s *Service) GetKindByCode(ctx context.Context, code string, sc scope.Context) (*Kind, error) {
	if k, ok := s.cache.Kind(code, sc.OwnPaths); ok {
		return k, nil
	}
	k, err := s.store.GetKindByCode(ctx, code, sc)
	if err != nil {
		return nil, err
	}
	s.cache.PutKind(sc.OwnPaths, k)
	return k, nil
}

// FindDomains lists visible domains.
func (s *Service) FindDomains(ctx context.Context, filter Filter, sc scope.Context) ([]*Domain, error) {
	return s.store.FindDomains(ctx, filter, sc)
}

// FindKinds lists visible kinds.
func (s *Service) FindKinds(ctx context.Context, filter Filter, sc scope.Context) ([]*Kind, error) {
	return s.store.FindKinds(ctx, filter, sc)
}

// UpdateDomain mutates descriptive fields and invalidates the cache entry.
func (s *Service) UpdateDomain(ctx context.Context, id string, modify DomainModify, sc scope.Context) error {
	d, err := s.store.GetDomain(ctx, id, sc)
	if err != nil {
		return err
	}
	if err := s.store.UpdateDomain(ctx, id, modify, sc); err != nil {
		return err
	}
	s.cache.DropDomain(d.Code)
	return nil
}

// UpdateKind mutates descriptive fields and invalidates the cache entry.
func (s *Service) UpdateKind(ctx context.Context, id string, modify KindModify, sc scope.Context) error {
	k, err := s.store.GetKind(ctx, id, sc)
	if err != nil {
		return err
	}
	if err := s.store.UpdateKind(ctx, id, modify, sc); err != nil {
		return err
	}
	s.cache.DropKind(k.Code)
	return nil
}

// DeleteDomain removes a domain and invalidates the cache entry.
func (s *Service) DeleteDomain(ctx context.Context, id string, sc scope.Context) error {
	d, err := s.store.GetDomain(ctx, id, sc)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDomain(ctx, id, sc); err != nil {
		return err
	}
	s.cache.DropDomain(d.Code)
	s.logger.WithField("code", d.Code).Info("deleted domain")
	return nil
}

// DeleteKind removes a kind and invalidates the cache entry.
func (s *Service) DeleteKind(ctx context.Context, id string, sc scope.Context) error {
	k, err := s.store.GetKind(ctx, id, sc)
	if err != nil {
		return err
	}
	if err := s.store.DeleteKind(ctx, id, sc); err != nil {
		return err
	}
	s.cache.DropKind(k.Code)
	s.logger.WithField("code", k.Code).Info("deleted kind")
	return nil
}
