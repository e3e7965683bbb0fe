package storage

import (
	"context"

	"travelshare/internal/core"
)

// ExpenseStore persists expenses together with the shares they own.
//
// Implementations assign expense ids as max+1 (1 when empty) and keep share
// ids supplied by the caller, filling in max+1 for shares without one.
// Returned expenses are copies.
type ExpenseStore interface {
	Create(ctx context.Context, e core.Expense) (core.Expense, error)
	// GetAll returns every expense in insertion order.
	GetAll(ctx context.Context) ([]core.Expense, error)
	// GetByID fails with core.ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id int64) (core.Expense, error)
	// Update replaces the stored fields and shares of e.ID. It reports false
	// when no such expense exists.
	Update(ctx context.Context, e core.Expense) (bool, error)
	// Delete removes the expense and its shares. It reports false when no
	// such expense exists and leaves the store untouched.
	Delete(ctx context.Context, id int64) (bool, error)
	ListByTrip(ctx context.Context, tripID int64) ([]core.Expense, error)
	// MaxShareID returns the highest share id in use, 0 when there are none.
	MaxShareID(ctx context.Context) (int64, error)
}
