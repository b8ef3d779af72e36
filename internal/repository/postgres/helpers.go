package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/samber/lo"

	ierr "github.com/renewly/renewly/internal/errors"
	pgclient "github.com/renewly/renewly/internal/postgres"
	"github.com/renewly/renewly/internal/types"
)

// requireRowAffected turns a zero-row write into a not found error
func requireRowAffected(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	if rows == 0 {
		return ierr.NewError(entity + " not found").
			WithHintf("No %s with ID %s", entity, id).
			WithReportableDetails(map[string]any{
				"id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

// isUniqueViolation reports whether the error is a postgres unique
// constraint violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if ierr.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// nextDocumentNumber draws from a postgres sequence and formats it as a
// prefixed document number, e.g. SUB-000042.
func nextDocumentNumber(ctx context.Context, client pgclient.IClient, sequence, prefix string) (string, error) {
	var n int64
	query := fmt.Sprintf("SELECT nextval('%s')", sequence)
	if err := client.Querier(ctx).GetContext(ctx, &n, query); err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to issue document number").
			Mark(ierr.ErrDatabase)
	}
	return fmt.Sprintf("%s-%06d", prefix, n), nil
}

// orderAndPaginate renders the trailing ORDER BY / LIMIT / OFFSET clause
// from a filter. Sort columns come from our own code, never user input.
func orderAndPaginate(filter types.BaseFilter, defaultSort string) string {
	sort := defaultSort
	order := "DESC"
	if s := filter.GetSort(); s != "" {
		sort = s
	}
	if o := filter.GetOrder(); strings.EqualFold(o, "asc") {
		order = "ASC"
	}

	clause := fmt.Sprintf(" ORDER BY %s %s", sort, order)
	if !filter.IsUnlimited() {
		clause += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.GetLimit(), filter.GetOffset())
	}
	return clause
}

func applySubscriptionFilter(query string, args []interface{}, filter *types.SubscriptionFilter) (string, []interface{}) {
	if filter == nil {
		return query, args
	}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if filter.PlanID != "" {
		args = append(args, filter.PlanID)
		query += fmt.Sprintf(" AND plan_id = $%d", len(args))
	}
	if len(filter.SubscriptionStatus) > 0 {
		statuses := lo.Map(filter.SubscriptionStatus, func(s types.SubscriptionStatus, _ int) string {
			return string(s)
		})
		args = append(args, pq.Array(statuses))
		query += fmt.Sprintf(" AND subscription_status = ANY($%d)", len(args))
	}
	if filter.OriginSubscriptionID != "" {
		args = append(args, filter.OriginSubscriptionID)
		query += fmt.Sprintf(" AND origin_subscription_id = $%d", len(args))
	}
	return query, args
}

func applyInvoiceFilter(query string, args []interface{}, filter *types.InvoiceFilter) (string, []interface{}) {
	if filter == nil {
		return query, args
	}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if filter.SubscriptionID != "" {
		args = append(args, filter.SubscriptionID)
		query += fmt.Sprintf(" AND subscription_id = $%d", len(args))
	}
	if len(filter.InvoiceStatus) > 0 {
		statuses := lo.Map(filter.InvoiceStatus, func(s types.InvoiceStatus, _ int) string {
			return string(s)
		})
		args = append(args, pq.Array(statuses))
		query += fmt.Sprintf(" AND invoice_status = ANY($%d)", len(args))
	}
	return query, args
}
