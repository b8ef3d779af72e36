package testutil

import (
	"context"
	"sync"

	"github.com/renewly/renewly/internal/domain/catalog"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// InMemoryCatalogStore implements catalog.Repository over seeded fixtures
type InMemoryCatalogStore struct {
	mu       sync.RWMutex
	products map[string]*catalog.Product
	variants map[string]*catalog.Variant
	plans    map[string]*catalog.Plan
	taxes    map[string]*catalog.Tax
}

func NewInMemoryCatalogStore() *InMemoryCatalogStore {
	return &InMemoryCatalogStore{
		products: make(map[string]*catalog.Product),
		variants: make(map[string]*catalog.Variant),
		plans:    make(map[string]*catalog.Plan),
		taxes:    make(map[string]*catalog.Tax),
	}
}

// AddProduct seeds a product fixture
func (s *InMemoryCatalogStore) AddProduct(p *catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// AddVariant seeds a variant fixture
func (s *InMemoryCatalogStore) AddVariant(v *catalog.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[v.ID] = v
}

// AddPlan seeds a plan fixture
func (s *InMemoryCatalogStore) AddPlan(p *catalog.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
}

// AddTax seeds a tax fixture
func (s *InMemoryCatalogStore) AddTax(t *catalog.Tax) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taxes[t.ID] = t
}

func (s *InMemoryCatalogStore) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.products[id]; ok && p.Status != types.StatusDeleted {
		cp := *p
		return &cp, nil
	}
	return nil, ierr.NewError("product not found").
		WithHintf("Product with ID %s was not found", id).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryCatalogStore) GetVariant(ctx context.Context, id string) (*catalog.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.variants[id]; ok && v.Status != types.StatusDeleted {
		cp := *v
		return &cp, nil
	}
	return nil, ierr.NewError("variant not found").
		WithHintf("Variant with ID %s was not found", id).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryCatalogStore) GetPlan(ctx context.Context, id string) (*catalog.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.plans[id]; ok && p.Status != types.StatusDeleted {
		cp := *p
		return &cp, nil
	}
	return nil, ierr.NewError("plan not found").
		WithHintf("Plan with ID %s was not found", id).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryCatalogStore) GetTax(ctx context.Context, id string) (*catalog.Tax, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.taxes[id]; ok && t.Status != types.StatusDeleted {
		cp := *t
		return &cp, nil
	}
	return nil, ierr.NewError("tax not found").
		WithHintf("Tax with ID %s was not found", id).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryCatalogStore) ListTaxes(ctx context.Context) ([]*catalog.Tax, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*catalog.Tax
	for _, t := range s.taxes {
		if t.Status == types.StatusDeleted {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// Clear removes all seeded fixtures
func (s *InMemoryCatalogStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = make(map[string]*catalog.Product)
	s.variants = make(map[string]*catalog.Variant)
	s.plans = make(map[string]*catalog.Plan)
	s.taxes = make(map[string]*catalog.Tax)
}
