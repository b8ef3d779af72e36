package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/renewly/renewly/internal/domain/discount"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
	"github.com/renewly/renewly/internal/types"
)

type discountRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewDiscountRepository(client postgres.IClient, logger *logger.Logger) discount.Repository {
	return &discountRepository{client: client, logger: logger}
}

const discountColumns = `
	id, code, discount_type, value, min_purchase, min_quantity,
	start_date, end_date, usage_limit, times_used, product_id,
	tenant_id, status, created_at, updated_at, created_by, updated_by
`

func (r *discountRepository) Create(ctx context.Context, d *discount.Discount) error {
	r.logger.Debugw("creating discount", "discount_id", d.ID, "code", d.Code)

	query := `
	INSERT INTO discounts (` + discountColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		d.ID,
		d.Code,
		d.DiscountType,
		d.Value,
		d.MinPurchase,
		d.MinQuantity,
		d.StartDate,
		d.EndDate,
		d.UsageLimit,
		d.TimesUsed,
		d.ProductID,
		d.TenantID,
		d.Status,
		d.CreatedAt,
		d.UpdatedAt,
		d.CreatedBy,
		d.UpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHintf("A discount with code %s already exists", d.Code).
				WithReportableDetails(map[string]any{
					"code": d.Code,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create discount").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *discountRepository) Get(ctx context.Context, id string) (*discount.Discount, error) {
	query := `
	SELECT ` + discountColumns + `
	FROM discounts
	WHERE id = $1 AND tenant_id = $2 AND status != $3
	`

	var d discount.Discount
	err := r.client.Querier(ctx).GetContext(ctx, &d, query,
		id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("discount not found").
				WithHintf("Discount with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get discount").
			Mark(ierr.ErrDatabase)
	}
	return &d, nil
}

func (r *discountRepository) GetByCode(ctx context.Context, code string) (*discount.Discount, error) {
	query := `
	SELECT ` + discountColumns + `
	FROM discounts
	WHERE code = $1 AND tenant_id = $2 AND status != $3
	`

	var d discount.Discount
	err := r.client.Querier(ctx).GetContext(ctx, &d, query,
		code, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("discount not found").
				WithHintf("No discount with code %s", code).
				WithReportableDetails(map[string]any{
					"code": code,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get discount").
			Mark(ierr.ErrDatabase)
	}
	return &d, nil
}

func (r *discountRepository) Update(ctx context.Context, d *discount.Discount) error {
	query := `
	UPDATE discounts SET
		discount_type = $2, value = $3, min_purchase = $4, min_quantity = $5,
		start_date = $6, end_date = $7, usage_limit = $8, product_id = $9,
		updated_at = $10, updated_by = $11
	WHERE id = $1 AND tenant_id = $12 AND status != $13
	`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		d.ID,
		d.DiscountType,
		d.Value,
		d.MinPurchase,
		d.MinQuantity,
		d.StartDate,
		d.EndDate,
		d.UsageLimit,
		d.ProductID,
		time.Now().UTC(),
		types.GetUserID(ctx),
		types.GetTenantID(ctx),
		types.StatusDeleted,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update discount").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "discount", d.ID)
}

func (r *discountRepository) Delete(ctx context.Context, id string) error {
	query := `
	UPDATE discounts SET status = $2, updated_at = $3, updated_by = $4
	WHERE id = $1 AND tenant_id = $5 AND status != $2
	`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		id, types.StatusDeleted, time.Now().UTC(), types.GetUserID(ctx), types.GetTenantID(ctx))
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete discount").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "discount", id)
}

func (r *discountRepository) List(ctx context.Context, filter *types.DiscountFilter) ([]*discount.Discount, error) {
	query := `
	SELECT ` + discountColumns + `
	FROM discounts
	WHERE tenant_id = $1 AND status != $2
	`
	args := []interface{}{types.GetTenantID(ctx), types.StatusDeleted}
	query, args = applyDiscountFilter(query, args, filter)
	query += orderAndPaginate(filter, "created_at")

	var discounts []*discount.Discount
	err := r.client.Querier(ctx).SelectContext(ctx, &discounts, query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list discounts").
			Mark(ierr.ErrDatabase)
	}
	return discounts, nil
}

func (r *discountRepository) Count(ctx context.Context, filter *types.DiscountFilter) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM discounts
	WHERE tenant_id = $1 AND status != $2
	`
	args := []interface{}{types.GetTenantID(ctx), types.StatusDeleted}
	query, args = applyDiscountFilter(query, args, filter)

	var count int
	err := r.client.Querier(ctx).GetContext(ctx, &count, query, args...)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count discounts").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func applyDiscountFilter(query string, args []interface{}, filter *types.DiscountFilter) (string, []interface{}) {
	if filter == nil {
		return query, args
	}
	if filter.Code != "" {
		args = append(args, filter.Code)
		query += fmt.Sprintf(" AND code = $%d", len(args))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		query += fmt.Sprintf(" AND discount_type = $%d", len(args))
	}
	if filter.ProductID != "" {
		args = append(args, filter.ProductID)
		query += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	return query, args
}

// IncrementRedemptions bumps times_used only while under the cap. The
// guard lives in the WHERE clause so concurrent redemptions can never
// push the counter past usage_limit.
func (r *discountRepository) IncrementRedemptions(ctx context.Context, id string) error {
	query := `
	UPDATE discounts SET times_used = times_used + 1, updated_at = $2, updated_by = $3
	WHERE id = $1 AND tenant_id = $4 AND status != $5
		AND (usage_limit = 0 OR times_used < usage_limit)
	`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		id, time.Now().UTC(), types.GetUserID(ctx),
		types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to redeem discount").
			Mark(ierr.ErrDatabase)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	if rows == 0 {
		return ierr.NewError("discount usage limit reached").
			WithHint("This discount code has no redemptions left").
			WithReportableDetails(map[string]any{
				"discount_id": id,
			}).
			Mark(ierr.ErrUsageLimitExceeded)
	}
	return nil
}
