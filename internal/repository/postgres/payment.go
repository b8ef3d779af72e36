package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/renewly/renewly/internal/domain/payment"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
	"github.com/renewly/renewly/internal/types"
)

type paymentRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewPaymentRepository(client postgres.IClient, logger *logger.Logger) payment.Repository {
	return &paymentRepository{client: client, logger: logger}
}

const paymentColumns = `
	id, invoice_id, amount, payment_method, payment_date, reference,
	idempotency_key, tenant_id, status, created_at, updated_at,
	created_by, updated_by
`

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	r.logger.Debugw("creating payment", "payment_id", p.ID, "invoice_id", p.InvoiceID)

	query := `
	INSERT INTO payments (` + paymentColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		p.ID,
		p.InvoiceID,
		p.Amount,
		p.PaymentMethod,
		p.PaymentDate,
		p.Reference,
		p.IdempotencyKey,
		p.TenantID,
		p.Status,
		p.CreatedAt,
		p.UpdatedAt,
		p.CreatedBy,
		p.UpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A payment for this invoice already exists").
				WithReportableDetails(map[string]any{
					"invoice_id": p.InvoiceID,
				}).
				Mark(ierr.ErrAlreadyPaid)
		}
		return ierr.WithError(err).
			WithHint("Failed to create payment").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	query := `
	SELECT ` + paymentColumns + `
	FROM payments
	WHERE id = $1 AND tenant_id = $2 AND status != $3
	`

	var p payment.Payment
	err := r.client.Querier(ctx).GetContext(ctx, &p, query,
		id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("payment not found").
				WithHintf("Payment with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *paymentRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*payment.Payment, error) {
	query := `
	SELECT ` + paymentColumns + `
	FROM payments
	WHERE invoice_id = $1 AND tenant_id = $2 AND status != $3
	`

	var p payment.Payment
	err := r.client.Querier(ctx).GetContext(ctx, &p, query,
		invoiceID, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("payment not found").
				WithHintf("No payment recorded for invoice %s", invoiceID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *paymentRepository) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	query := `
	SELECT ` + paymentColumns + `
	FROM payments
	WHERE tenant_id = $1 AND status != $2
	`
	args := []interface{}{types.GetTenantID(ctx), types.StatusDeleted}

	if filter != nil && filter.InvoiceID != "" {
		args = append(args, filter.InvoiceID)
		query += fmt.Sprintf(" AND invoice_id = $%d", len(args))
	}
	query += orderAndPaginate(filter, "payment_date")

	var payments []*payment.Payment
	err := r.client.Querier(ctx).SelectContext(ctx, &payments, query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list payments").
			Mark(ierr.ErrDatabase)
	}
	return payments, nil
}

func (r *paymentRepository) Count(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM payments
	WHERE tenant_id = $1 AND status != $2
	`
	args := []interface{}{types.GetTenantID(ctx), types.StatusDeleted}

	if filter != nil && filter.InvoiceID != "" {
		args = append(args, filter.InvoiceID)
		query += fmt.Sprintf(" AND invoice_id = $%d", len(args))
	}

	var count int
	err := r.client.Querier(ctx).GetContext(ctx, &count, query, args...)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count payments").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}
