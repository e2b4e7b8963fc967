//go:build unit

package commands

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marmite-orders/internal/domain/batch"
	"marmite-orders/internal/domain/order"
	"marmite-orders/internal/domain/user"
	reqdto "marmite-orders/internal/handler/dto/request"
	"marmite-orders/internal/infra"
	"marmite-orders/internal/infra/metrics"
	"marmite-orders/internal/pkg/clock"
	"marmite-orders/internal/usecase/queries"
	"marmite-orders/internal/usecase/shared"
)

// In-memory write stores. Finds hand out clones so an aborted mutation never
// leaks into the store; UpdateRemaining and Update write the clone back.

type fakeBatchRepo struct {
	batches map[uuid.UUID]*batch.Batch
}

func newFakeBatchRepo() *fakeBatchRepo {
	return &fakeBatchRepo{batches: make(map[uuid.UUID]*batch.Batch)}
}

func (r *fakeBatchRepo) put(b *batch.Batch) {
	r.batches[b.ID()] = b
}

func (r *fakeBatchRepo) clone(b *batch.Batch) *batch.Batch {
	return batch.ReconstructBatch(b.ID(), b.Name(), b.ServedOn(), b.Total(), b.Remaining(), b.CreatedAt(), b.UpdatedAt())
}

func (r *fakeBatchRepo) FindByID(_ context.Context, id uuid.UUID) (*batch.Batch, error) {
	b, ok := r.batches[id]
	if !ok {
		return nil, infra.WrapRepoErr("batch not found", nil, infra.KindNotFound)
	}
	return r.clone(b), nil
}

func (r *fakeBatchRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*batch.Batch, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeBatchRepo) UpdateRemaining(_ context.Context, b *batch.Batch) error {
	r.batches[b.ID()] = b
	return nil
}

type fakeOrderRepo struct {
	orders map[uuid.UUID]*order.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*order.Order)}
}

func (r *fakeOrderRepo) clone(o *order.Order) *order.Order {
	return order.ReconstructOrder(
		o.ID(), o.UserID(), o.BatchID(),
		o.Quantity(), o.Amount(), o.Status(), o.PaymentStatus(),
		o.PaymentIntent(), o.Comment(), o.CreatedAt(), o.UpdatedAt(),
	)
}

func (r *fakeOrderRepo) Create(_ context.Context, o *order.Order) error {
	r.orders[o.ID()] = r.clone(o)
	return nil
}

func (r *fakeOrderRepo) Update(_ context.Context, o *order.Order) error {
	if _, ok := r.orders[o.ID()]; !ok {
		return infra.WrapRepoErr("order not found", nil, infra.KindNotFound)
	}
	r.orders[o.ID()] = r.clone(o)
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, infra.WrapRepoErr("order not found", nil, infra.KindNotFound)
	}
	return r.clone(o), nil
}

func (r *fakeOrderRepo) FindByPaymentIntent(_ context.Context, paymentIntent string) ([]*order.Order, error) {
	var out []*order.Order
	for _, o := range r.orders {
		if o.PaymentIntent() != nil && *o.PaymentIntent() == paymentIntent {
			out = append(out, r.clone(o))
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) UpdateByPaymentIntent(_ context.Context, paymentIntent string, status order.Status, paymentStatus order.PaymentStatus, amountCents *int64) (int64, error) {
	var touched int64
	for id, o := range r.orders {
		if o.PaymentIntent() == nil || *o.PaymentIntent() != paymentIntent {
			continue
		}
		amount := o.Amount()
		if amountCents != nil {
			amount = order.Money(*amountCents)
		}
		r.orders[id] = order.ReconstructOrder(
			o.ID(), o.UserID(), o.BatchID(),
			o.Quantity(), amount, status, paymentStatus,
			o.PaymentIntent(), o.Comment(), o.CreatedAt(), o.UpdatedAt(),
		)
		touched++
	}
	return touched, nil
}

func (r *fakeOrderRepo) UpdatePaymentStatus(_ context.Context, id uuid.UUID, paymentStatus order.PaymentStatus) error {
	o, ok := r.orders[id]
	if !ok {
		return infra.WrapRepoErr("order not found", nil, infra.KindNotFound)
	}
	r.orders[id] = order.ReconstructOrder(
		o.ID(), o.UserID(), o.BatchID(),
		o.Quantity(), o.Amount(), o.Status(), paymentStatus,
		o.PaymentIntent(), o.Comment(), o.CreatedAt(), o.UpdatedAt(),
	)
	return nil
}

type fakeUoW struct {
	orders  *fakeOrderRepo
	batches *fakeBatchRepo
}

func newFakeUoW() *fakeUoW {
	return &fakeUoW{orders: newFakeOrderRepo(), batches: newFakeBatchRepo()}
}

func (u *fakeUoW) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	return fn(ctx, u)
}

func (u *fakeUoW) Orders() shared.OrderRepository  { return u.orders }
func (u *fakeUoW) Batches() shared.BatchRepository { return u.batches }

type fakeBatchQueries struct {
	next *queries.BatchView
}

func (q *fakeBatchQueries) GetByID(_ context.Context, _ uuid.UUID) (*queries.BatchView, error) {
	return nil, infra.WrapRepoErr("batch not found", nil, infra.KindNotFound)
}

func (q *fakeBatchQueries) NextBatch(_ context.Context, _ time.Time) (*queries.BatchView, error) {
	if q.next == nil {
		return nil, infra.WrapRepoErr("no upcoming batch", nil, infra.KindNotFound)
	}
	return q.next, nil
}

// fakeOrderViews projects views straight out of the write store.
type fakeOrderViews struct {
	orders *fakeOrderRepo
}

func (v *fakeOrderViews) FindByID(ctx context.Context, id uuid.UUID) (*queries.OrderView, error) {
	o, err := v.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var comment *string
	if !o.Comment().IsEmpty() {
		s := o.Comment().String()
		comment = &s
	}
	return &queries.OrderView{
		ID:            o.ID(),
		UserID:        o.UserID(),
		BatchID:       o.BatchID(),
		Quantity:      o.Quantity().Value(),
		AmountCents:   o.Amount().Cents(),
		Status:        o.Status().String(),
		PaymentStatus: o.PaymentStatus().String(),
		PaymentIntent: o.PaymentIntent(),
		Comment:       comment,
		CreatedAt:     o.CreatedAt(),
		UpdatedAt:     o.UpdatedAt(),
	}, nil
}

func (v *fakeOrderViews) FindByUserID(_ context.Context, _ uuid.UUID, _ int32) ([]*queries.OrderListItem, error) {
	return nil, nil
}

type notifiedEvent struct {
	topic   string
	payload map[string]any
}

type fakeNotifier struct {
	events []notifiedEvent
}

func (n *fakeNotifier) NotifyOrderEvent(topic string, payload map[string]any) {
	n.events = append(n.events, notifiedEvent{topic: topic, payload: payload})
}

type orderCommandsFixture struct {
	commands OrderCommands
	uow      *fakeUoW
	batchQ   *fakeBatchQueries
	notifier *fakeNotifier
	clock    *clock.MockClock
}

func newOrderCommandsFixture(t *testing.T) *orderCommandsFixture {
	t.Helper()
	uow := newFakeUoW()
	batchQ := &fakeBatchQueries{}
	notifier := &fakeNotifier{}
	clk := clock.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	return &orderCommandsFixture{
		commands: NewOrderCommands(uow, batchQ, &fakeOrderViews{orders: uow.orders}, notifier, metrics.New(), clk),
		uow:      uow,
		batchQ:   batchQ,
		notifier: notifier,
		clock:    clk,
	}
}

func (f *orderCommandsFixture) seedBatch(t *testing.T, totalPortions int32) *batch.Batch {
	t.Helper()
	b, err := batch.NewBatch("Marmite du vendredi", f.clock.Now().AddDate(0, 0, 6), totalPortions, f.clock.Now())
	require.NoError(t, err)
	f.uow.batches.put(b)
	return b
}

func (f *orderCommandsFixture) remaining(t *testing.T, batchID uuid.UUID) int32 {
	t.Helper()
	b, err := f.uow.batches.FindByID(context.Background(), batchID)
	require.NoError(t, err)
	return b.Remaining()
}

func batchRefJSON(id uuid.UUID) json.RawMessage {
	return json.RawMessage(`"` + id.String() + `"`)
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("admits while portions remain and rejects past capacity", func(t *testing.T) {
		f := newOrderCommandsFixture(t)
		b := f.seedBatch(t, 10)
		userID := uuid.New()

		view, err := f.commands.CreateOrder(ctx, reqdto.CreateOrderRequest{Quantity: 4, Batch: batchRefJSON(b.ID())}, userID)
		require.NoError(t, err)
		assert.Equal(t, int32(4), view.Quantity)
		assert.Equal(t, "pending", view.Status)
		assert.Equal(t, int32(6), f.remaining(t, b.ID()))

		_, err = f.commands.CreateOrder(ctx, reqdto.CreateOrderRequest{Quantity: 8, Batch: batchRefJSON(b.ID())}, userID)
		require.ErrorIs(t, err, ErrCapacityExceeded)

		var capErr *CapacityError
		require.ErrorAs(t, err, &capErr)
		assert.Equal(t, int32(8), capErr.Requested)
		assert.Equal(t, int32(6), capErr.Remaining)
		assert.Equal(t, int32(6), f.remaining(t, b.ID()), "rejected order must not consume portions")

		_, err = f.commands.CreateOrder(ctx, reqdto.CreateOrderRequest{Quantity: 6, Batch: batchRefJSON(b.ID())}, userID)
		require.NoError(t, err)
		assert.Equal(t, int32(0), f.remaining(t, b.ID()))

		_, err = f.commands.CreateOrder(ctx, reqdto.CreateOrderRequest{Quantity: 1, Batch: batchRefJSON(b.ID())}, userID)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	})

	t.Run("missing batch reference attaches to the next upcoming batch", func(t *testing.T) {
		f := newOrderCommandsFixture(t)
		b := f.seedBatch(t, 10)
		f.batchQ.next = &queries.BatchView{ID: b.ID(), Name: b.Name(), Remaining: b.Remaining()}

		view, err := f.commands.CreateOrder(ctx, reqdto.CreateOrderRequest{Quantity: 2}, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, b.ID(), view.BatchID)
		assert.Equal(t, int32(8), f.remaining(t, b.ID()))
	})

	t.Run("no upcoming batch", func(t *testing.T) {
		f := newOrderCommandsFixture(t)

		_, err := f.commands.CreateOrder(ctx, reqdto.CreateOrderRequest{Quantity: 2}, uuid.New())
		assert.ErrorIs(t, err, ErrNoUpcomingBatch)
	})

	t.Run("unknown batch id", func(t *testing.T) {
		f := newOrderCommandsFixture(t)

		_, err := f.commands.CreateOrder(ctx, reqdto.CreateOrderRequest{Quantity: 2, Batch: batchRefJSON(uuid.New())}, uuid.New())
		assert.ErrorIs(t, err, ErrBatchNotFound)
	})

	t.Run("malformed batch reference", func(t *testing.T) {
		f := newOrderCommandsFixture(t)
		f.seedBatch(t, 10)

		_, err := f.commands.CreateOrder(ctx, reqdto.CreateOrderRequest{Quantity: 2, Batch: json.RawMessage(`"nope"`)}, uuid.New())
		assert.ErrorIs(t, err, ErrInvalidBatchRef)
	})

	t.Run("relation list wrapper resolves the linked batch", func(t *testing.T) {
		f := newOrderCommandsFixture(t)
		b := f.seedBatch(t, 10)

		raw := json.RawMessage(`{"set":[{"id":"` + b.ID().String() + `"}]}`)
		view, err := f.commands.CreateOrder(ctx, reqdto.CreateOrderRequest{Quantity: 3, Batch: raw}, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, b.ID(), view.BatchID)
	})

	t.Run("notifies order_created", func(t *testing.T) {
		f := newOrderCommandsFixture(t)
		b := f.seedBatch(t, 10)

		_, err := f.commands.CreateOrder(ctx, reqdto.CreateOrderRequest{Quantity: 2, Batch: batchRefJSON(b.ID())}, uuid.New())
		require.NoError(t, err)

		require.Len(t, f.notifier.events, 1)
		assert.Equal(t, "order_created", f.notifier.events[0].topic)
	})
}

func TestUpdateOrder(t *testing.T) {
	ctx := context.Background()
	adminRole := user.RoleAdmin.String()
	customerRole := user.RoleCustomer.String()

	seedOrder := func(t *testing.T, f *orderCommandsFixture, b *batch.Batch, userID uuid.UUID, quantity int32) uuid.UUID {
		t.Helper()
		view, err := f.commands.CreateOrder(ctx, reqdto.CreateOrderRequest{Quantity: quantity, Batch: batchRefJSON(b.ID())}, userID)
		require.NoError(t, err)
		return view.ID
	}

	t.Run("raising quantity claims the difference", func(t *testing.T) {
		f := newOrderCommandsFixture(t)
		b := f.seedBatch(t, 10)
		userID := uuid.New()
		orderID := seedOrder(t, f, b, userID, 3)

		q := int32(5)
		view, err := f.commands.UpdateOrder(ctx, reqdto.UpdateOrderRequest{Quantity: &q}, orderID, userID, customerRole)
		require.NoError(t, err)
		assert.Equal(t, int32(5), view.Quantity)
		assert.Equal(t, int32(5), f.remaining(t, b.ID()))
	})

	t.Run("lowering quantity releases the difference", func(t *testing.T) {
		f := newOrderCommandsFixture(t)
		b := f.seedBatch(t, 10)
		userID := uuid.New()
		orderID := seedOrder(t, f, b, userID, 5)

		q := int32(2)
		_, err := f.commands.UpdateOrder(ctx, reqdto.UpdateOrderRequest{Quantity: &q}, orderID, userID, customerRole)
		require.NoError(t, err)
		assert.Equal(t, int32(8), f.remaining(t, b.ID()))
	})

	t.Run("raising past capacity is rejected with detail", func(t *testing.T) {
		f := newOrderCommandsFixture(t)
		b := f.seedBatch(t, 10)
		userID := uuid.New()
		orderID := seedOrder(t, f, b, userID, 3)

		q := int32(11)
		_, err := f.commands.UpdateOrder(ctx, reqdto.UpdateOrderRequest{Quantity: &q}, orderID, userID, customerRole)
		require.ErrorIs(t, err, ErrCapacityExceeded)

		var capErr *CapacityError
		require.ErrorAs(t, err, &capErr)
		assert.Equal(t, int32(8), capErr.Requested, "only the delta competes for portions")
		assert.Equal(t, int32(7), capErr.Remaining)
	})

	t.Run("moving to another batch rebalances both ledgers", func(t *testing.T) {
		f := newOrderCommandsFixture(t)
		src := f.seedBatch(t, 10)
		dst := f.seedBatch(t, 6)
		userID := uuid.New()
		orderID := seedOrder(t, f, src, userID, 4)

		view, err := f.commands.UpdateOrder(ctx, reqdto.UpdateOrderRequest{Batch: batchRefJSON(dst.ID())}, orderID, userID, customerRole)
		require.NoError(t, err)
		assert.Equal(t, dst.ID(), view.BatchID)
		assert.Equal(t, int32(10), f.remaining(t, src.ID()))
		assert.Equal(t, int32(2), f.remaining(t, dst.ID()))
	})

	t.Run("payment intent and comment bypass capacity accounting", func(t *testing.T) {
		f := newOrderCommandsFixture(t)
		b := f.seedBatch(t, 3)
		userID := uuid.New()
		orderID := seedOrder(t, f, b, userID, 3) // batch now sold out

		pi := "pi_123"
		comment := "extra bread please"
		view, err := f.commands.UpdateOrder(ctx, reqdto.UpdateOrderRequest{PaymentIntent: &pi, Comment: &comment}, orderID, userID, customerRole)
		require.NoError(t, err)
		require.NotNil(t, view.PaymentIntent)
		assert.Equal(t, "pi_123", *view.PaymentIntent)
		require.NotNil(t, view.Comment)
		assert.Equal(t, "extra bread please", *view.Comment)
		assert.Equal(t, int32(0), f.remaining(t, b.ID()))
	})

	t.Run("other users cannot touch the order, admins can", func(t *testing.T) {
		f := newOrderCommandsFixture(t)
		b := f.seedBatch(t, 10)
		owner := uuid.New()
		orderID := seedOrder(t, f, b, owner, 2)

		pi := "pi_123"
		_, err := f.commands.UpdateOrder(ctx, reqdto.UpdateOrderRequest{PaymentIntent: &pi}, orderID, uuid.New(), customerRole)
		assert.ErrorIs(t, err, ErrOrderAccessDenied)

		_, err = f.commands.UpdateOrder(ctx, reqdto.UpdateOrderRequest{PaymentIntent: &pi}, orderID, uuid.New(), adminRole)
		assert.NoError(t, err)
	})

	t.Run("canceled orders are immutable", func(t *testing.T) {
		f := newOrderCommandsFixture(t)
		b := f.seedBatch(t, 10)
		userID := uuid.New()
		orderID := seedOrder(t, f, b, userID, 2)
		require.NoError(t, f.commands.CancelOrder(ctx, orderID, userID, customerRole))

		pi := "pi_123"
		_, err := f.commands.UpdateOrder(ctx, reqdto.UpdateOrderRequest{PaymentIntent: &pi}, orderID, userID, customerRole)
		assert.ErrorIs(t, err, ErrOrderAlreadyCanceled)
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newOrderCommandsFixture(t)

		pi := "pi_123"
		_, err := f.commands.UpdateOrder(ctx, reqdto.UpdateOrderRequest{PaymentIntent: &pi}, uuid.New(), uuid.New(), customerRole)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	customerRole := user.RoleCustomer.String()

	t.Run("releases portions and records the cancellation", func(t *testing.T) {
		f := newOrderCommandsFixture(t)
		b := f.seedBatch(t, 10)
		userID := uuid.New()
		view, err := f.commands.CreateOrder(ctx, reqdto.CreateOrderRequest{Quantity: 4, Batch: batchRefJSON(b.ID())}, userID)
		require.NoError(t, err)
		require.Equal(t, int32(6), f.remaining(t, b.ID()))

		require.NoError(t, f.commands.CancelOrder(ctx, view.ID, userID, customerRole))
		assert.Equal(t, int32(10), f.remaining(t, b.ID()))

		stored, err := f.uow.orders.FindByID(ctx, view.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusCanceled, stored.Status())
		assert.Equal(t, order.PaymentCanceled, stored.PaymentStatus())

		require.Len(t, f.notifier.events, 2)
		assert.Equal(t, "order_canceled", f.notifier.events[1].topic)
	})

	t.Run("second cancel is a no-op and releases nothing", func(t *testing.T) {
		f := newOrderCommandsFixture(t)
		b := f.seedBatch(t, 10)
		userID := uuid.New()
		view, err := f.commands.CreateOrder(ctx, reqdto.CreateOrderRequest{Quantity: 4, Batch: batchRefJSON(b.ID())}, userID)
		require.NoError(t, err)

		require.NoError(t, f.commands.CancelOrder(ctx, view.ID, userID, customerRole))
		require.NoError(t, f.commands.CancelOrder(ctx, view.ID, userID, customerRole))
		assert.Equal(t, int32(10), f.remaining(t, b.ID()), "portions must flow back exactly once")
	})

	t.Run("strangers cannot cancel", func(t *testing.T) {
		f := newOrderCommandsFixture(t)
		b := f.seedBatch(t, 10)
		view, err := f.commands.CreateOrder(ctx, reqdto.CreateOrderRequest{Quantity: 4, Batch: batchRefJSON(b.ID())}, uuid.New())
		require.NoError(t, err)

		err = f.commands.CancelOrder(ctx, view.ID, uuid.New(), customerRole)
		assert.ErrorIs(t, err, ErrOrderAccessDenied)
	})
}

// Compile-time guards for the fakes.
var (
	_ shared.UnitOfWork     = (*fakeUoW)(nil)
	_ queries.BatchQueries  = (*fakeBatchQueries)(nil)
	_ queries.OrderViewRepo = (*fakeOrderViews)(nil)
	_ Notifier              = (*fakeNotifier)(nil)
)
