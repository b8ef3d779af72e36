package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/renewly/renewly/internal/domain/subscription"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
	"github.com/renewly/renewly/internal/types"
)

type subscriptionRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewSubscriptionRepository(client postgres.IClient, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{client: client, logger: logger}
}

const subscriptionColumns = `
	id, subscription_number, customer_id, plan_id, subscription_status,
	start_date, expiration_date, next_invoice_date, payment_terms, notes,
	origin_subscription_id, tenant_id, status, created_at, updated_at,
	created_by, updated_by
`

const subscriptionLineColumns = `
	id, subscription_id, product_id, quantity, unit_price, discount_percent,
	tax_id, tenant_id, status, created_at, updated_at, created_by, updated_by
`

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	r.logger.Debugw("creating subscription", "subscription_id", sub.ID, "customer_id", sub.CustomerID)

	query := `
	INSERT INTO subscriptions (` + subscriptionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		sub.ID,
		sub.SubscriptionNumber,
		sub.CustomerID,
		sub.PlanID,
		sub.SubscriptionStatus,
		sub.StartDate,
		sub.ExpirationDate,
		sub.NextInvoiceDate,
		sub.PaymentTerms,
		sub.Notes,
		sub.OriginSubscriptionID,
		sub.TenantID,
		sub.Status,
		sub.CreatedAt,
		sub.UpdatedAt,
		sub.CreatedBy,
		sub.UpdatedBy,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}

	for _, line := range sub.Lines {
		if err := r.AddLine(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := `
	SELECT ` + subscriptionColumns + `
	FROM subscriptions
	WHERE id = $1 AND tenant_id = $2 AND status != $3
	`

	var sub subscription.Subscription
	err := r.client.Querier(ctx).GetContext(ctx, &sub, query,
		id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("subscription not found").
				WithHintf("Subscription with ID %s was not found", id).
				WithReportableDetails(map[string]any{
					"subscription_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}

	lines, err := r.getLines(ctx, id)
	if err != nil {
		return nil, err
	}
	sub.Lines = lines
	return &sub, nil
}

func (r *subscriptionRepository) getLines(ctx context.Context, subscriptionID string) ([]*subscription.Line, error) {
	query := `
	SELECT ` + subscriptionLineColumns + `
	FROM subscription_lines
	WHERE subscription_id = $1 AND status != $2
	ORDER BY created_at
	`

	var lines []*subscription.Line
	err := r.client.Querier(ctx).SelectContext(ctx, &lines, query, subscriptionID, types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription lines").
			Mark(ierr.ErrDatabase)
	}
	return lines, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
	UPDATE subscriptions SET
		subscription_number = $2,
		start_date = $3,
		expiration_date = $4,
		next_invoice_date = $5,
		payment_terms = $6,
		notes = $7,
		updated_at = $8,
		updated_by = $9
	WHERE id = $1 AND tenant_id = $10 AND status != $11
	`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		sub.ID,
		sub.SubscriptionNumber,
		sub.StartDate,
		sub.ExpirationDate,
		sub.NextInvoiceDate,
		sub.PaymentTerms,
		sub.Notes,
		time.Now().UTC(),
		types.GetUserID(ctx),
		types.GetTenantID(ctx),
		types.StatusDeleted,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "subscription", sub.ID)
}

func (r *subscriptionRepository) Delete(ctx context.Context, id string) error {
	query := `
	UPDATE subscriptions SET status = $2, updated_at = $3, updated_by = $4
	WHERE id = $1 AND tenant_id = $5 AND status != $2
	`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		id, types.StatusDeleted, time.Now().UTC(), types.GetUserID(ctx), types.GetTenantID(ctx))
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete subscription").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "subscription", id)
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	query := `
	SELECT ` + subscriptionColumns + `
	FROM subscriptions
	WHERE tenant_id = $1 AND status != $2
	`
	args := []interface{}{types.GetTenantID(ctx), types.StatusDeleted}

	query, args = applySubscriptionFilter(query, args, filter)
	query += orderAndPaginate(filter, "created_at")

	var subs []*subscription.Subscription
	err := r.client.Querier(ctx).SelectContext(ctx, &subs, query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscriptions").
			Mark(ierr.ErrDatabase)
	}

	for _, sub := range subs {
		lines, err := r.getLines(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		sub.Lines = lines
	}
	return subs, nil
}

func (r *subscriptionRepository) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM subscriptions
	WHERE tenant_id = $1 AND status != $2
	`
	args := []interface{}{types.GetTenantID(ctx), types.StatusDeleted}
	query, args = applySubscriptionFilter(query, args, filter)

	var count int
	err := r.client.Querier(ctx).GetContext(ctx, &count, query, args...)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

// UpdateStatus is a compare-and-set on subscription_status. A zero row
// count means someone else moved the subscription first.
func (r *subscriptionRepository) UpdateStatus(ctx context.Context, id string, from, to types.SubscriptionStatus) error {
	query := `
	UPDATE subscriptions SET subscription_status = $3, updated_at = $4, updated_by = $5
	WHERE id = $1 AND subscription_status = $2 AND tenant_id = $6 AND status != $7
	`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		id, from, to, time.Now().UTC(), types.GetUserID(ctx),
		types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription status").
			Mark(ierr.ErrDatabase)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	if rows == 0 {
		return ierr.NewError("subscription status changed concurrently").
			WithHintf("Subscription is no longer in status %s", from).
			WithReportableDetails(map[string]any{
				"subscription_id": id,
				"expected_status": from,
				"target_status":   to,
			}).
			Mark(ierr.ErrIllegalTransition)
	}
	return nil
}

func (r *subscriptionRepository) ListDue(ctx context.Context, asOf time.Time) ([]*subscription.Subscription, error) {
	query := `
	SELECT ` + subscriptionColumns + `
	FROM subscriptions
	WHERE subscription_status = $1 AND next_invoice_date IS NOT NULL
		AND next_invoice_date <= $2 AND status != $3
	ORDER BY next_invoice_date
	`

	var subs []*subscription.Subscription
	err := r.client.Querier(ctx).SelectContext(ctx, &subs, query,
		types.SubscriptionStatusActive, asOf, types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list due subscriptions").
			Mark(ierr.ErrDatabase)
	}

	for _, sub := range subs {
		lines, err := r.getLines(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		sub.Lines = lines
	}
	return subs, nil
}

func (r *subscriptionRepository) NextSubscriptionNumber(ctx context.Context) (string, error) {
	return nextDocumentNumber(ctx, r.client, "subscription_number_seq", "SUB")
}

func (r *subscriptionRepository) AddLine(ctx context.Context, line *subscription.Line) error {
	query := `
	INSERT INTO subscription_lines (` + subscriptionLineColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		line.ID,
		line.SubscriptionID,
		line.ProductID,
		line.Quantity,
		line.UnitPrice,
		line.DiscountPercent,
		line.TaxID,
		line.TenantID,
		line.Status,
		line.CreatedAt,
		line.UpdatedAt,
		line.CreatedBy,
		line.UpdatedBy,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to add subscription line").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) UpdateLine(ctx context.Context, line *subscription.Line) error {
	query := `
	UPDATE subscription_lines SET
		quantity = $3, unit_price = $4, discount_percent = $5, tax_id = $6,
		updated_at = $7, updated_by = $8
	WHERE id = $1 AND subscription_id = $2 AND status != $9
	`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		line.ID,
		line.SubscriptionID,
		line.Quantity,
		line.UnitPrice,
		line.DiscountPercent,
		line.TaxID,
		time.Now().UTC(),
		types.GetUserID(ctx),
		types.StatusDeleted,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription line").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "subscription line", line.ID)
}

func (r *subscriptionRepository) RemoveLine(ctx context.Context, subscriptionID, lineID string) error {
	query := `
	UPDATE subscription_lines SET status = $3, updated_at = $4, updated_by = $5
	WHERE id = $1 AND subscription_id = $2 AND status != $3
	`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		lineID, subscriptionID, types.StatusDeleted, time.Now().UTC(), types.GetUserID(ctx))
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to remove subscription line").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "subscription line", lineID)
}
