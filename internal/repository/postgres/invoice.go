package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/renewly/renewly/internal/domain/invoice"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
	"github.com/renewly/renewly/internal/types"
)

type invoiceRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewInvoiceRepository(client postgres.IClient, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{client: client, logger: logger}
}

const invoiceColumns = `
	id, invoice_number, customer_id, subscription_id, invoice_status,
	billing_reason, idempotency_key, issue_date, due_date, paid_at,
	payment_terms, subtotal, tax_total, discount_amount, total, amount_paid,
	tenant_id, status, created_at, updated_at, created_by, updated_by
`

const invoiceLineColumns = `
	id, invoice_id, product_id, display_name, quantity, unit_price,
	discount_percent, tax_id, amount, tenant_id, status, created_at,
	updated_at, created_by, updated_by
`

func (r *invoiceRepository) CreateWithLines(ctx context.Context, inv *invoice.Invoice) error {
	r.logger.Debugw("creating invoice", "invoice_id", inv.ID, "customer_id", inv.CustomerID)

	query := `
	INSERT INTO invoices (` + invoiceColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		$17, $18, $19, $20, $21, $22)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		inv.ID,
		inv.InvoiceNumber,
		inv.CustomerID,
		inv.SubscriptionID,
		inv.InvoiceStatus,
		inv.BillingReason,
		inv.IdempotencyKey,
		inv.IssueDate,
		inv.DueDate,
		inv.PaidAt,
		inv.PaymentTerms,
		inv.Subtotal,
		inv.TaxTotal,
		inv.DiscountAmount,
		inv.Total,
		inv.AmountPaid,
		inv.TenantID,
		inv.Status,
		inv.CreatedAt,
		inv.UpdatedAt,
		inv.CreatedBy,
		inv.UpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("An invoice for this billing event already exists").
				WithReportableDetails(map[string]any{
					"idempotency_key": inv.IdempotencyKey,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create invoice").
			Mark(ierr.ErrDatabase)
	}

	lineQuery := `
	INSERT INTO invoice_lines (` + invoiceLineColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	for _, line := range inv.Lines {
		_, err := r.client.Querier(ctx).ExecContext(ctx, lineQuery,
			line.ID,
			line.InvoiceID,
			line.ProductID,
			line.DisplayName,
			line.Quantity,
			line.UnitPrice,
			line.DiscountPercent,
			line.TaxID,
			line.Amount,
			line.TenantID,
			line.Status,
			line.CreatedAt,
			line.UpdatedAt,
			line.CreatedBy,
			line.UpdatedBy,
		)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to create invoice line").
				Mark(ierr.ErrDatabase)
		}
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	query := `
	SELECT ` + invoiceColumns + `
	FROM invoices
	WHERE id = $1 AND tenant_id = $2 AND status != $3
	`

	var inv invoice.Invoice
	err := r.client.Querier(ctx).GetContext(ctx, &inv, query,
		id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("invoice not found").
				WithHintf("Invoice with ID %s was not found", id).
				WithReportableDetails(map[string]any{
					"invoice_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice").
			Mark(ierr.ErrDatabase)
	}

	lines, err := r.getLines(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return &inv, nil
}

func (r *invoiceRepository) getLines(ctx context.Context, invoiceID string) ([]*invoice.Line, error) {
	query := `
	SELECT ` + invoiceLineColumns + `
	FROM invoice_lines
	WHERE invoice_id = $1 AND status != $2
	ORDER BY created_at
	`

	var lines []*invoice.Line
	err := r.client.Querier(ctx).SelectContext(ctx, &lines, query, invoiceID, types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice lines").
			Mark(ierr.ErrDatabase)
	}
	return lines, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	query := `
	UPDATE invoices SET
		invoice_number = $2,
		due_date = $3,
		payment_terms = $4,
		subtotal = $5,
		tax_total = $6,
		discount_amount = $7,
		total = $8,
		updated_at = $9,
		updated_by = $10
	WHERE id = $1 AND tenant_id = $11 AND status != $12
	`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		inv.ID,
		inv.InvoiceNumber,
		inv.DueDate,
		inv.PaymentTerms,
		inv.Subtotal,
		inv.TaxTotal,
		inv.DiscountAmount,
		inv.Total,
		time.Now().UTC(),
		types.GetUserID(ctx),
		types.GetTenantID(ctx),
		types.StatusDeleted,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update invoice").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "invoice", inv.ID)
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	query := `
	SELECT ` + invoiceColumns + `
	FROM invoices
	WHERE tenant_id = $1 AND status != $2
	`
	args := []interface{}{types.GetTenantID(ctx), types.StatusDeleted}

	query, args = applyInvoiceFilter(query, args, filter)
	query += orderAndPaginate(filter, "created_at")

	var invoices []*invoice.Invoice
	err := r.client.Querier(ctx).SelectContext(ctx, &invoices, query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list invoices").
			Mark(ierr.ErrDatabase)
	}

	for _, inv := range invoices {
		lines, err := r.getLines(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		inv.Lines = lines
	}
	return invoices, nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM invoices
	WHERE tenant_id = $1 AND status != $2
	`
	args := []interface{}{types.GetTenantID(ctx), types.StatusDeleted}
	query, args = applyInvoiceFilter(query, args, filter)

	var count int
	err := r.client.Querier(ctx).GetContext(ctx, &count, query, args...)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count invoices").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *invoiceRepository) GetByIdempotencyKey(ctx context.Context, key string) (*invoice.Invoice, error) {
	query := `
	SELECT ` + invoiceColumns + `
	FROM invoices
	WHERE idempotency_key = $1 AND tenant_id = $2 AND status != $3
	`

	var inv invoice.Invoice
	err := r.client.Querier(ctx).GetContext(ctx, &inv, query,
		key, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("invoice not found").
				WithHintf("No invoice for idempotency key %s", key).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice by idempotency key").
			Mark(ierr.ErrDatabase)
	}

	lines, err := r.getLines(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return &inv, nil
}

// UpdateStatus is a compare-and-set on invoice_status
func (r *invoiceRepository) UpdateStatus(ctx context.Context, id string, from, to types.InvoiceStatus) error {
	query := `
	UPDATE invoices SET invoice_status = $3, updated_at = $4, updated_by = $5
	WHERE id = $1 AND invoice_status = $2 AND tenant_id = $6 AND status != $7
	`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		id, from, to, time.Now().UTC(), types.GetUserID(ctx),
		types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update invoice status").
			Mark(ierr.ErrDatabase)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	if rows == 0 {
		return ierr.NewError("invoice status changed concurrently").
			WithHintf("Invoice is no longer in status %s", from).
			WithReportableDetails(map[string]any{
				"invoice_id":      id,
				"expected_status": from,
				"target_status":   to,
			}).
			Mark(ierr.ErrIllegalTransition)
	}
	return nil
}

// RecordPayment flips the invoice to paid and settles the amount. The
// compare-and-set from confirmed guarantees a single winner among
// concurrent payment attempts.
func (r *invoiceRepository) RecordPayment(ctx context.Context, id string, amountPaid decimal.Decimal) error {
	query := `
	UPDATE invoices SET
		invoice_status = $2, amount_paid = $3, paid_at = $4,
		updated_at = $4, updated_by = $5
	WHERE id = $1 AND invoice_status = $6 AND tenant_id = $7 AND status != $8
	`

	now := time.Now().UTC()
	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		id, types.InvoiceStatusPaid, amountPaid, now, types.GetUserID(ctx),
		types.InvoiceStatusConfirmed, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to record payment").
			Mark(ierr.ErrDatabase)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	if rows == 0 {
		return ierr.NewError("invoice is not payable").
			WithHint("The invoice was already paid or is not confirmed").
			WithReportableDetails(map[string]any{
				"invoice_id": id,
			}).
			Mark(ierr.ErrAlreadyPaid)
	}
	return nil
}

func (r *invoiceRepository) NextInvoiceNumber(ctx context.Context) (string, error) {
	return nextDocumentNumber(ctx, r.client, "invoice_number_seq", "INV")
}
