package testutil

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
	"github.com/renewly/renewly/internal/types"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

// MockPostgresClient is a mock implementation of postgres client for testing
type MockPostgresClient struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger) postgres.IClient {
	return &MockPostgresClient{
		logger: logger,
	}
}

// WithTx executes the given function within a transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	// If we're already in a transaction, reuse it
	if tx := c.TxFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	// For testing, we just execute the function without a real transaction
	return fn(ctx)
}

// TxFromContext returns the transaction from context if it exists
func (c *MockPostgresClient) TxFromContext(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(types.CtxDBTransaction).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

// Querier returns the underlying database handle
func (c *MockPostgresClient) Querier(ctx context.Context) postgres.Querier {
	if tx := c.TxFromContext(ctx); tx != nil {
		return tx
	}
	return c.db
}
