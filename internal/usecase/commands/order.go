package commands

import (
	"context"
	"fmt"

	"marmite-orders/internal/domain/batch"
	"marmite-orders/internal/domain/order"
	"marmite-orders/internal/domain/user"
	reqdto "marmite-orders/internal/handler/dto/request"
	"marmite-orders/internal/infra"
	"marmite-orders/internal/infra/metrics"
	"marmite-orders/internal/pkg/clock"
	"marmite-orders/internal/pkg/errs"
	"marmite-orders/internal/usecase/queries"
	"marmite-orders/internal/usecase/shared"

	"github.com/google/uuid"
)

var (
	ErrBatchNotFound           = errs.New("batch not found")
	ErrNoUpcomingBatch         = errs.New("no upcoming batch to attach the order to")
	ErrOrderNotFound           = errs.New("order not found")
	ErrOrderAccessDenied       = errs.New("order does not belong to the requesting user")
	ErrOrderAlreadyCanceled    = errs.New("order already canceled")
	ErrCapacityExceeded        = errs.New("not enough portions remaining")
	ErrInvalidBatchRef         = errs.New("invalid batch reference")
	ErrDomainValidation        = errs.New("domain validation error")
	ErrDatabaseOperationFailed = errs.New("database operation failed")
)

// CapacityError carries the remaining-portions detail surfaced to the
// storefront so the customer can lower the quantity instead of guessing.
type CapacityError struct {
	Requested int32
	Remaining int32
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("requested %d portions but only %d remain", e.Requested, e.Remaining)
}

type OrderCommands interface {
	CreateOrder(ctx context.Context, req reqdto.CreateOrderRequest, userID uuid.UUID) (*queries.OrderView, error)
	UpdateOrder(ctx context.Context, req reqdto.UpdateOrderRequest, orderID, actorID uuid.UUID, actorRole string) (*queries.OrderView, error)
	CancelOrder(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) error
}

type orderCommandsImpl struct {
	uow          shared.UnitOfWork
	batchQueries queries.BatchQueries
	orderViews   queries.OrderViewRepo
	notifier     Notifier
	metrics      *metrics.Metrics
	clock        clock.Clock
}

func NewOrderCommands(
	uow shared.UnitOfWork,
	batchQueries queries.BatchQueries,
	orderViews queries.OrderViewRepo,
	notifier Notifier,
	m *metrics.Metrics,
	clk clock.Clock,
) OrderCommands {
	return &orderCommandsImpl{
		uow:          uow,
		batchQueries: batchQueries,
		orderViews:   orderViews,
		notifier:     notifier,
		metrics:      m,
		clock:        clk,
	}
}

func (c *orderCommandsImpl) CreateOrder(ctx context.Context, req reqdto.CreateOrderRequest, userID uuid.UUID) (*queries.OrderView, error) {
	quantity, err := order.NewQuantity(req.Quantity)
	if err != nil {
		return nil, errs.Mark(err, ErrDomainValidation)
	}
	comment, err := order.NewComment(req.TrimmedComment())
	if err != nil {
		return nil, errs.Mark(err, ErrDomainValidation)
	}

	ref, err := req.BatchRef()
	if err != nil {
		return nil, errs.Mark(err, ErrInvalidBatchRef)
	}
	batchID, err := c.resolveBatchID(ctx, ref, nil)
	if err != nil {
		return nil, err
	}

	var orderID uuid.UUID
	err = c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		b, err := c.lockBatch(ctx, tx, batchID)
		if err != nil {
			return err
		}

		if err := c.reservePortions(b, quantity.Value()); err != nil {
			return err
		}
		if err := tx.Batches().UpdateRemaining(ctx, b); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		o := order.NewOrder(userID, batchID, quantity, order.Money(0), req.PaymentIntent, comment, c.clock.Now())
		if err := tx.Orders().Create(ctx, o); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		orderID = o.ID()
		return nil
	})
	if err != nil {
		c.metrics.OrdersRejectedTotal.Inc()
		return nil, err
	}

	c.metrics.OrdersAdmittedTotal.Inc()
	c.notifier.NotifyOrderEvent("order_created", map[string]any{
		"order_id": orderID,
		"quantity": quantity.Value(),
		"batch_id": batchID,
	})

	// Read-after-write: return the full view with user and batch joins
	return c.orderViews.FindByID(ctx, orderID)
}

func (c *orderCommandsImpl) UpdateOrder(ctx context.Context, req reqdto.UpdateOrderRequest, orderID, actorID uuid.UUID, actorRole string) (*queries.OrderView, error) {
	ref, err := req.BatchRef()
	if err != nil {
		return nil, errs.Mark(err, ErrInvalidBatchRef)
	}

	err = c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		o, err := c.loadOwnedOrder(ctx, tx, orderID, actorID, actorRole)
		if err != nil {
			return err
		}
		if o.IsCanceled() {
			return ErrOrderAlreadyCanceled
		}

		if req.TouchesCapacity() {
			if err := c.rebalanceCapacity(ctx, tx, o, req, ref); err != nil {
				return err
			}
		}

		now := c.clock.Now()
		if req.PaymentIntent != nil {
			o.SetPaymentIntent(req.PaymentIntent, now)
		}
		if req.Comment != nil {
			comment, err := order.NewComment(*req.Comment)
			if err != nil {
				return errs.Mark(err, ErrDomainValidation)
			}
			o.SetComment(comment, now)
		}

		if err := tx.Orders().Update(ctx, o); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return c.orderViews.FindByID(ctx, orderID)
}

// CancelOrder is always admitted: whatever the payment state, the customer
// can walk away and the portions go back on sale.
func (c *orderCommandsImpl) CancelOrder(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) error {
	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		o, err := c.loadOwnedOrder(ctx, tx, orderID, actorID, actorRole)
		if err != nil {
			return err
		}

		if !o.Cancel(c.clock.Now()) {
			// Already canceled; nothing to release, nothing to write.
			return nil
		}

		if err := c.releasePortions(ctx, tx, o.BatchID(), o.Quantity().Value()); err != nil {
			return err
		}
		if err := tx.Orders().Update(ctx, o); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.notifier.NotifyOrderEvent("order_canceled", map[string]any{"order_id": orderID})
	return nil
}

// rebalanceCapacity gives back the previously held portions and claims the
// new ones, locking every touched batch row for the transaction.
func (c *orderCommandsImpl) rebalanceCapacity(
	ctx context.Context,
	tx shared.Tx,
	o *order.Order,
	req reqdto.UpdateOrderRequest,
	ref order.BatchRef,
) error {
	newQuantity := o.Quantity()
	if req.Quantity != nil {
		q, err := order.NewQuantity(*req.Quantity)
		if err != nil {
			return errs.Mark(err, ErrDomainValidation)
		}
		newQuantity = q
	}

	newBatchID := o.BatchID()
	if !ref.IsInherited() {
		newBatchID = ref.ID()
	}

	now := c.clock.Now()

	if newBatchID == o.BatchID() {
		delta := newQuantity.Value() - o.Quantity().Value()
		if delta != 0 {
			b, err := c.lockBatch(ctx, tx, o.BatchID())
			if err != nil {
				return err
			}
			if delta > 0 {
				if err := c.reservePortions(b, delta); err != nil {
					return err
				}
			} else if err := b.Release(-delta); err != nil {
				return errs.Mark(err, ErrDomainValidation)
			}
			if err := tx.Batches().UpdateRemaining(ctx, b); err != nil {
				return errs.Mark(err, ErrDatabaseOperationFailed)
			}
		}
		o.SetQuantity(newQuantity, now)
		return nil
	}

	if err := c.releasePortions(ctx, tx, o.BatchID(), o.Quantity().Value()); err != nil {
		return err
	}

	newBatch, err := c.lockBatch(ctx, tx, newBatchID)
	if err != nil {
		return err
	}
	if err := c.reservePortions(newBatch, newQuantity.Value()); err != nil {
		return err
	}
	if err := tx.Batches().UpdateRemaining(ctx, newBatch); err != nil {
		return errs.Mark(err, ErrDatabaseOperationFailed)
	}

	o.SetBatch(newBatchID, now)
	o.SetQuantity(newQuantity, now)
	return nil
}

func (c *orderCommandsImpl) releasePortions(ctx context.Context, tx shared.Tx, batchID uuid.UUID, quantity int32) error {
	b, err := c.lockBatch(ctx, tx, batchID)
	if err != nil {
		return err
	}
	if err := b.Release(quantity); err != nil {
		return errs.Mark(err, ErrDomainValidation)
	}
	if err := tx.Batches().UpdateRemaining(ctx, b); err != nil {
		return errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return nil
}

func (c *orderCommandsImpl) reservePortions(b *batch.Batch, quantity int32) error {
	remaining := b.Remaining()
	if err := b.Reserve(quantity); err != nil {
		capErr := &CapacityError{Requested: quantity, Remaining: remaining}
		return errs.Mark(capErr, ErrCapacityExceeded)
	}
	return nil
}

func (c *orderCommandsImpl) lockBatch(ctx context.Context, tx shared.Tx, id uuid.UUID) (*batch.Batch, error) {
	b, err := tx.Batches().FindByIDForUpdate(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return b, nil
}

func (c *orderCommandsImpl) loadOwnedOrder(ctx context.Context, tx shared.Tx, orderID, actorID uuid.UUID, actorRole string) (*order.Order, error) {
	o, err := tx.Orders().FindByID(ctx, orderID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	if o.UserID() != actorID && actorRole != user.RoleAdmin.String() {
		return nil, ErrOrderAccessDenied
	}
	return o, nil
}

func (c *orderCommandsImpl) resolveBatchID(ctx context.Context, ref order.BatchRef, fallback *uuid.UUID) (uuid.UUID, error) {
	if !ref.IsInherited() {
		return ref.ID(), nil
	}
	if fallback != nil {
		return *fallback, nil
	}

	next, err := c.batchQueries.NextBatch(ctx, c.clock.Now())
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return uuid.Nil, ErrNoUpcomingBatch
		}
		return uuid.Nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return next.ID, nil
}
