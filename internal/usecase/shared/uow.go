package shared

import (
	"context"

	"marmite-orders/internal/domain/batch"
	"marmite-orders/internal/domain/order"

	"github.com/google/uuid"
)

// OrderRepository is the write-side port for orders.
type OrderRepository interface {
	Create(ctx context.Context, o *order.Order) error
	Update(ctx context.Context, o *order.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
	FindByPaymentIntent(ctx context.Context, paymentIntent string) ([]*order.Order, error)
	// UpdateByPaymentIntent is the degraded reconciliation path: a single
	// targeted UPDATE keyed on the payment reference, bypassing entity
	// loading. Returns the number of rows touched.
	UpdateByPaymentIntent(ctx context.Context, paymentIntent string, status order.Status, paymentStatus order.PaymentStatus, amountCents *int64) (int64, error)
	// UpdatePaymentStatus is the minimal last-resort path: payment status
	// only, keyed on order id.
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, paymentStatus order.PaymentStatus) error
}

// BatchRepository is the write-side port for batches. FindByIDForUpdate
// acquires the pessimistic row lock that serializes capacity decisions.
type BatchRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*batch.Batch, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*batch.Batch, error)
	UpdateRemaining(ctx context.Context, b *batch.Batch) error
}

// Tx exposes transaction-scoped repositories.
type Tx interface {
	Orders() OrderRepository
	Batches() BatchRepository
}

// UnitOfWork runs fn inside a database transaction; the whole fn commits or
// rolls back as one unit. The pool-backed repositories are for single-row
// operations that need no surrounding transaction.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Orders() OrderRepository
	Batches() BatchRepository
}
