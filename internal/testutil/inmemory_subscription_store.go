package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/renewly/renewly/internal/domain/subscription"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]

	// casMu serializes status transitions so the compare-and-set
	// semantics match the SQL implementation
	casMu sync.Mutex

	linesMu sync.RWMutex
	lines   map[string][]*subscription.Line // map[subscriptionID][]lines

	seqMu sync.Mutex
	seq   int
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
		lines:         make(map[string][]*subscription.Line),
	}
}

func subscriptionFilterFn(ctx context.Context, sub *subscription.Subscription, filter interface{}) bool {
	if sub == nil || sub.Status == types.StatusDeleted {
		return false
	}
	if !checkTenant(ctx, sub.TenantID) {
		return false
	}

	f, ok := filter.(*types.SubscriptionFilter)
	if !ok || f == nil {
		return true
	}

	if f.CustomerID != "" && sub.CustomerID != f.CustomerID {
		return false
	}
	if f.PlanID != "" && sub.PlanID != f.PlanID {
		return false
	}
	if len(f.SubscriptionStatus) > 0 && !lo.Contains(f.SubscriptionStatus, sub.SubscriptionStatus) {
		return false
	}
	if f.OriginSubscriptionID != "" {
		if sub.OriginSubscriptionID == nil || *sub.OriginSubscriptionID != f.OriginSubscriptionID {
			return false
		}
	}
	return true
}

func subscriptionSortFn(i, j *subscription.Subscription) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").Mark(ierr.ErrValidation)
	}

	stored := *sub
	stored.Lines = nil
	if err := s.InMemoryStore.Create(ctx, sub.ID, &stored); err != nil {
		return err
	}

	for _, line := range sub.Lines {
		if err := s.AddLine(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || sub.Status == types.StatusDeleted {
		return nil, ierr.NewError("subscription not found").
			WithHintf("Subscription with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}

	cp := *sub
	cp.Lines = s.activeLines(id)
	return &cp, nil
}

func (s *InMemorySubscriptionStore) activeLines(subscriptionID string) []*subscription.Line {
	s.linesMu.RLock()
	defer s.linesMu.RUnlock()

	var out []*subscription.Line
	for _, line := range s.lines[subscriptionID] {
		if line.Status == types.StatusDeleted {
			continue
		}
		lc := *line
		out = append(out, &lc)
	}
	return out
}

// Update writes the mutable document fields. The subscription status is
// owned by UpdateStatus and never touched here.
func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	s.casMu.Lock()
	defer s.casMu.Unlock()

	existing, err := s.InMemoryStore.Get(ctx, sub.ID)
	if err != nil || existing.Status == types.StatusDeleted {
		return ierr.NewError("subscription not found").
			WithHintf("Subscription with ID %s was not found", sub.ID).
			Mark(ierr.ErrNotFound)
	}

	existing.SubscriptionNumber = sub.SubscriptionNumber
	existing.StartDate = sub.StartDate
	existing.ExpirationDate = sub.ExpirationDate
	existing.NextInvoiceDate = sub.NextInvoiceDate
	existing.PaymentTerms = sub.PaymentTerms
	existing.Notes = sub.Notes
	existing.Touch(ctx)
	return nil
}

func (s *InMemorySubscriptionStore) Delete(ctx context.Context, id string) error {
	s.casMu.Lock()
	defer s.casMu.Unlock()

	existing, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || existing.Status == types.StatusDeleted {
		return ierr.NewError("subscription not found").
			WithHintf("Subscription with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	existing.Status = types.StatusDeleted
	existing.Touch(ctx)
	return nil
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	subs, err := s.InMemoryStore.List(ctx, filter, subscriptionFilterFn, subscriptionSortFn)
	if err != nil {
		return nil, err
	}

	out := make([]*subscription.Subscription, len(subs))
	for i, sub := range subs {
		cp := *sub
		cp.Lines = s.activeLines(sub.ID)
		out[i] = &cp
	}
	return out, nil
}

func (s *InMemorySubscriptionStore) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, subscriptionFilterFn)
}

func (s *InMemorySubscriptionStore) UpdateStatus(ctx context.Context, id string, from, to types.SubscriptionStatus) error {
	s.casMu.Lock()
	defer s.casMu.Unlock()

	existing, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || existing.Status == types.StatusDeleted || existing.SubscriptionStatus != from {
		return ierr.NewError("subscription status changed concurrently").
			WithHintf("Subscription is no longer in status %s", from).
			WithReportableDetails(map[string]any{
				"subscription_id": id,
				"expected_status": from,
				"target_status":   to,
			}).
			Mark(ierr.ErrIllegalTransition)
	}

	existing.SubscriptionStatus = to
	existing.Touch(ctx)
	return nil
}

func (s *InMemorySubscriptionStore) ListDue(ctx context.Context, asOf time.Time) ([]*subscription.Subscription, error) {
	filter := &types.SubscriptionFilter{
		QueryFilter:        types.NoLimitQueryFilter,
		SubscriptionStatus: []types.SubscriptionStatus{types.SubscriptionStatusActive},
	}

	subs, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return lo.Filter(subs, func(sub *subscription.Subscription, _ int) bool {
		return sub.NextInvoiceDate != nil && !sub.NextInvoiceDate.After(asOf)
	}), nil
}

func (s *InMemorySubscriptionStore) NextSubscriptionNumber(ctx context.Context) (string, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.seq++
	return fmt.Sprintf("SUB-%06d", s.seq), nil
}

func (s *InMemorySubscriptionStore) AddLine(ctx context.Context, line *subscription.Line) error {
	if line == nil {
		return ierr.NewError("line cannot be nil").Mark(ierr.ErrValidation)
	}

	s.linesMu.Lock()
	defer s.linesMu.Unlock()

	lc := *line
	s.lines[line.SubscriptionID] = append(s.lines[line.SubscriptionID], &lc)
	return nil
}

func (s *InMemorySubscriptionStore) UpdateLine(ctx context.Context, line *subscription.Line) error {
	s.linesMu.Lock()
	defer s.linesMu.Unlock()

	for _, existing := range s.lines[line.SubscriptionID] {
		if existing.ID != line.ID || existing.Status == types.StatusDeleted {
			continue
		}
		existing.Quantity = line.Quantity
		existing.UnitPrice = line.UnitPrice
		existing.DiscountPercent = line.DiscountPercent
		existing.TaxID = line.TaxID
		existing.Touch(ctx)
		return nil
	}

	return ierr.NewError("subscription line not found").
		WithHintf("Subscription line with ID %s was not found", line.ID).
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) RemoveLine(ctx context.Context, subscriptionID, lineID string) error {
	s.linesMu.Lock()
	defer s.linesMu.Unlock()

	for _, existing := range s.lines[subscriptionID] {
		if existing.ID != lineID || existing.Status == types.StatusDeleted {
			continue
		}
		existing.Status = types.StatusDeleted
		existing.Touch(ctx)
		return nil
	}

	return ierr.NewError("subscription line not found").
		WithHintf("Subscription line with ID %s was not found", lineID).
		Mark(ierr.ErrNotFound)
}

// Clear removes all subscriptions and lines
func (s *InMemorySubscriptionStore) Clear() {
	s.InMemoryStore.Clear()
	s.linesMu.Lock()
	s.lines = make(map[string][]*subscription.Line)
	s.linesMu.Unlock()
}
