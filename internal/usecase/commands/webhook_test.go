//go:build unit

package commands

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marmite-orders/internal/domain/batch"
	"marmite-orders/internal/domain/order"
	"marmite-orders/internal/domain/payment"
	"marmite-orders/internal/domain/user"
	"marmite-orders/internal/infra/metrics"
	"marmite-orders/internal/infra/stripeclient"
	"marmite-orders/internal/infra/webhookmon"
	"marmite-orders/internal/pkg/clock"
	"marmite-orders/internal/pkg/errs"
	"marmite-orders/internal/usecase/queries"
	"marmite-orders/internal/usecase/shared"
)

type fakeGateway struct {
	verifyErr error
	piInfo    *stripeclient.PaymentIntentInfo
	piErr     error
}

func (g *fakeGateway) VerifyNotification(_ []byte, _ string) error {
	return g.verifyErr
}

func (g *fakeGateway) GetPaymentIntent(_ context.Context, _ string) (*stripeclient.PaymentIntentInfo, error) {
	if g.piErr != nil {
		return nil, g.piErr
	}
	return g.piInfo, nil
}

// flakyOrderRepo injects write failures to steer reconciliation down the
// fallback strategies.
type flakyOrderRepo struct {
	*fakeOrderRepo
	failUpdate       bool
	failDirectUpdate bool
	failStatusOnly   bool
}

func (r *flakyOrderRepo) Update(ctx context.Context, o *order.Order) error {
	if r.failUpdate {
		return errs.New("injected update failure")
	}
	return r.fakeOrderRepo.Update(ctx, o)
}

func (r *flakyOrderRepo) UpdateByPaymentIntent(ctx context.Context, paymentIntent string, status order.Status, paymentStatus order.PaymentStatus, amountCents *int64) (int64, error) {
	if r.failDirectUpdate {
		return 0, errs.New("injected direct update failure")
	}
	return r.fakeOrderRepo.UpdateByPaymentIntent(ctx, paymentIntent, status, paymentStatus, amountCents)
}

func (r *flakyOrderRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, paymentStatus order.PaymentStatus) error {
	if r.failStatusOnly {
		return errs.New("injected status update failure")
	}
	return r.fakeOrderRepo.UpdatePaymentStatus(ctx, id, paymentStatus)
}

type flakyUoW struct {
	orders  *flakyOrderRepo
	batches *fakeBatchRepo
}

func (u *flakyUoW) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	return fn(ctx, u)
}

func (u *flakyUoW) Orders() shared.OrderRepository  { return u.orders }
func (u *flakyUoW) Batches() shared.BatchRepository { return u.batches }

type webhookFixture struct {
	commands *webhookCommandsImpl
	uow      *flakyUoW
	gateway  *fakeGateway
	monitor  *webhookmon.Monitor
	notifier *fakeNotifier
	clock    *clock.MockClock
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	clk := clock.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	uow := &flakyUoW{
		orders:  &flakyOrderRepo{fakeOrderRepo: newFakeOrderRepo()},
		batches: newFakeBatchRepo(),
	}
	gateway := &fakeGateway{}
	monitor := webhookmon.NewMonitor(clk)
	notifier := &fakeNotifier{}
	orderQueries := queries.NewOrderQueries(&fakeOrderViews{orders: uow.orders.fakeOrderRepo})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cmds := NewWebhookCommands(uow, gateway, monitor, orderQueries, notifier, metrics.New(), clk, logger)

	return &webhookFixture{
		commands: cmds.(*webhookCommandsImpl),
		uow:      uow,
		gateway:  gateway,
		monitor:  monitor,
		notifier: notifier,
		clock:    clk,
	}
}

// seedOrder stores a pending order holding quantity portions of a fresh batch
// and returns both.
func (f *webhookFixture) seedOrder(t *testing.T, paymentIntent string, quantity, totalPortions int32) (*order.Order, *batch.Batch) {
	t.Helper()
	ctx := context.Background()

	b, err := batch.NewBatch("test", f.clock.Now(), totalPortions, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, b.Reserve(quantity))
	f.uow.batches.put(b)

	qty, err := order.NewQuantity(quantity)
	require.NoError(t, err)
	var pi *string
	if paymentIntent != "" {
		pi = &paymentIntent
	}
	o := order.NewOrder(uuid.New(), b.ID(), qty, order.Money(0), pi, "", f.clock.Now())
	require.NoError(t, f.uow.orders.fakeOrderRepo.Create(ctx, o))
	return o, b
}

func succeededEvent(paymentIntent string) *payment.Event {
	return &payment.Event{
		ID:          "evt_1",
		Type:        payment.TypeSucceeded,
		ObjectID:    paymentIntent,
		AmountCents: 15000,
		Currency:    "eur",
		Status:      "succeeded",
	}
}

func TestHandleNotification(t *testing.T) {
	validPayload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","amount":15000}}}`)

	t.Run("rejects a bad signature", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.gateway.verifyErr = errs.New("signature mismatch")

		err := f.commands.HandleNotification(validPayload, "t=1,v1=bad")
		assert.ErrorIs(t, err, ErrWebhookSignature)
	})

	t.Run("rejects an unparseable payload", func(t *testing.T) {
		f := newWebhookFixture(t)

		err := f.commands.HandleNotification([]byte(`{"type":"payment_intent.succeeded"}`), "sig")
		assert.ErrorIs(t, err, payment.ErrMalformedEvent)
	})

	t.Run("replayed event id is acked without reprocessing", func(t *testing.T) {
		f := newWebhookFixture(t)
		o, _ := f.seedOrder(t, "pi_1", 2, 10)
		f.monitor.Track("evt_1", payment.TypeSucceeded, "pi_1")

		require.NoError(t, f.commands.HandleNotification(validPayload, "sig"))

		stored, err := f.uow.orders.FindByID(context.Background(), o.ID())
		require.NoError(t, err)
		assert.Equal(t, order.StatusPending, stored.Status(), "replay must not touch the order")
	})

	t.Run("first delivery reconciles asynchronously", func(t *testing.T) {
		f := newWebhookFixture(t)
		o, _ := f.seedOrder(t, "pi_1", 2, 10)

		require.NoError(t, f.commands.HandleNotification(validPayload, "sig"))

		assert.Eventually(t, func() bool {
			stored, err := f.uow.orders.FindByID(context.Background(), o.ID())
			return err == nil && stored.Status() == order.StatusValidated
		}, time.Second, 5*time.Millisecond)
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeded payment validates every matched order", func(t *testing.T) {
		f := newWebhookFixture(t)
		o1, b := f.seedOrder(t, "pi_1", 2, 10)
		o2, _ := f.seedOrder(t, "pi_1", 3, 10)

		f.commands.reconcile(ctx, succeededEvent("pi_1"))

		for _, id := range []uuid.UUID{o1.ID(), o2.ID()} {
			stored, err := f.uow.orders.FindByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, order.StatusValidated, stored.Status())
			assert.Equal(t, order.PaymentSucceeded, stored.PaymentStatus())
			assert.Equal(t, int64(15000), stored.Amount().Cents())
		}

		got, err := f.uow.batches.FindByID(ctx, b.ID())
		require.NoError(t, err)
		assert.Equal(t, int32(8), got.Remaining(), "success keeps the portions reserved")

		require.Len(t, f.notifier.events, 1)
		assert.Equal(t, "payment_succeeded", f.notifier.events[0].topic)
		assert.Equal(t, 150.0, f.notifier.events[0].payload["amount"])
	})

	t.Run("failed payment cancels the order and releases capacity", func(t *testing.T) {
		f := newWebhookFixture(t)
		o, b := f.seedOrder(t, "pi_1", 4, 10)

		f.commands.reconcile(ctx, &payment.Event{ID: "evt_1", Type: payment.TypeFailed, ObjectID: "pi_1"})

		stored, err := f.uow.orders.FindByID(ctx, o.ID())
		require.NoError(t, err)
		assert.Equal(t, order.StatusCanceled, stored.Status())
		assert.Equal(t, order.PaymentFailed, stored.PaymentStatus())

		got, err := f.uow.batches.FindByID(ctx, b.ID())
		require.NoError(t, err)
		assert.Equal(t, int32(10), got.Remaining())
	})

	t.Run("canceled payment releases capacity too", func(t *testing.T) {
		f := newWebhookFixture(t)
		o, b := f.seedOrder(t, "pi_1", 4, 10)

		f.commands.reconcile(ctx, &payment.Event{ID: "evt_1", Type: payment.TypeCanceled, ObjectID: "pi_1"})

		stored, err := f.uow.orders.FindByID(ctx, o.ID())
		require.NoError(t, err)
		assert.Equal(t, order.PaymentCanceled, stored.PaymentStatus())

		got, err := f.uow.batches.FindByID(ctx, b.ID())
		require.NoError(t, err)
		assert.Equal(t, int32(10), got.Remaining())
	})

	t.Run("event matching no order is recorded as unmatched", func(t *testing.T) {
		f := newWebhookFixture(t)

		f.commands.reconcile(ctx, succeededEvent("pi_ghost"))

		stats := f.monitor.GetStats()
		assert.Equal(t, 1, stats.UnmatchedEvents)
		assert.Empty(t, f.notifier.events)
	})

	t.Run("non-settlement event types are recorded as unmatched", func(t *testing.T) {
		f := newWebhookFixture(t)
		o, _ := f.seedOrder(t, "pi_1", 2, 10)

		evt := &payment.Event{ID: "evt_1", Type: "payment_intent.created", ObjectID: "pi_1"}
		f.monitor.Track(evt.ID, evt.Type, evt.ObjectID)
		f.commands.reconcile(ctx, evt)

		stored, err := f.uow.orders.FindByID(ctx, o.ID())
		require.NoError(t, err)
		assert.Equal(t, order.StatusPending, stored.Status())

		stats := f.monitor.GetStats()
		assert.Equal(t, 1, stats.UnmatchedEvents)
		assert.Equal(t, 0, stats.ProcessedEvents)
		assert.False(t, f.monitor.WasProcessed(evt.ID), "non-settlement ids must stay replayable")
	})

	t.Run("late succeeded event cannot resurrect a canceled order", func(t *testing.T) {
		f := newWebhookFixture(t)
		o, b := f.seedOrder(t, "pi_1", 3, 10)

		require.True(t, o.Cancel(f.clock.Now()))
		require.NoError(t, f.uow.orders.fakeOrderRepo.Update(ctx, o))
		require.NoError(t, b.Release(3))
		f.uow.batches.put(b)

		evt := succeededEvent("pi_1")
		f.monitor.Track(evt.ID, evt.Type, evt.ObjectID)
		f.commands.reconcile(ctx, evt)

		stored, err := f.uow.orders.FindByID(ctx, o.ID())
		require.NoError(t, err)
		assert.Equal(t, order.StatusCanceled, stored.Status(), "no transition out of canceled")
		assert.Equal(t, order.PaymentCanceled, stored.PaymentStatus())

		got, err := f.uow.batches.FindByID(ctx, b.ID())
		require.NoError(t, err)
		assert.Equal(t, int32(10), got.Remaining(), "released portions must not be consumed again")

		failures := f.monitor.GetFailedEvents()
		require.Len(t, failures, 1)
		assert.Contains(t, failures[0].Error, order.ErrTransitionNotAllowed.Error())
		assert.Empty(t, f.notifier.events)
	})

	t.Run("falls back to the direct update when the transaction fails", func(t *testing.T) {
		f := newWebhookFixture(t)
		o, _ := f.seedOrder(t, "pi_1", 2, 10)
		f.uow.orders.failUpdate = true

		f.commands.reconcile(ctx, succeededEvent("pi_1"))

		stored, err := f.uow.orders.FindByID(ctx, o.ID())
		require.NoError(t, err)
		assert.Equal(t, order.StatusValidated, stored.Status())
		assert.Equal(t, int64(15000), stored.Amount().Cents(), "direct update still settles the amount")
	})

	t.Run("falls back to status-only when the keyed update fails", func(t *testing.T) {
		f := newWebhookFixture(t)
		o, _ := f.seedOrder(t, "pi_1", 2, 10)
		f.uow.orders.failUpdate = true
		f.uow.orders.failDirectUpdate = true

		f.commands.reconcile(ctx, succeededEvent("pi_1"))

		stored, err := f.uow.orders.FindByID(ctx, o.ID())
		require.NoError(t, err)
		assert.Equal(t, order.PaymentSucceeded, stored.PaymentStatus())
		assert.Equal(t, order.StatusPending, stored.Status(), "last resort touches payment status only")
	})

	t.Run("exhausting every strategy marks the event failed", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.seedOrder(t, "pi_1", 2, 10)
		f.uow.orders.failUpdate = true
		f.uow.orders.failDirectUpdate = true
		f.uow.orders.failStatusOnly = true

		evt := succeededEvent("pi_1")
		f.monitor.Track(evt.ID, evt.Type, evt.ObjectID)
		f.commands.reconcile(ctx, evt)

		failures := f.monitor.GetFailedEvents()
		require.Len(t, failures, 1)
		assert.Contains(t, failures[0].Error, "transactional")
		assert.Contains(t, failures[0].Error, "direct-update")
		assert.Contains(t, failures[0].Error, "status-only")
		assert.False(t, f.monitor.WasProcessed(evt.ID), "failed events stay retryable")
		assert.Empty(t, f.notifier.events)
	})
}

func TestSyncPaymentStatus(t *testing.T) {
	ctx := context.Background()
	customerRole := user.RoleCustomer.String()

	t.Run("pulls the provider state and reconciles", func(t *testing.T) {
		f := newWebhookFixture(t)
		o, _ := f.seedOrder(t, "pi_1", 2, 10)
		f.gateway.piInfo = &stripeclient.PaymentIntentInfo{
			ID:          "pi_1",
			AmountCents: 15000,
			Currency:    "eur",
			Status:      "succeeded",
		}

		view, err := f.commands.SyncPaymentStatus(ctx, o.ID(), o.UserID(), customerRole)
		require.NoError(t, err)
		assert.Equal(t, "validated", view.Status)
		assert.Equal(t, "succeeded", view.PaymentStatus)
	})

	t.Run("intermediate provider states change nothing", func(t *testing.T) {
		f := newWebhookFixture(t)
		o, _ := f.seedOrder(t, "pi_1", 2, 10)
		f.gateway.piInfo = &stripeclient.PaymentIntentInfo{ID: "pi_1", Status: "processing"}

		view, err := f.commands.SyncPaymentStatus(ctx, o.ID(), o.UserID(), customerRole)
		require.NoError(t, err)
		assert.Equal(t, "pending", view.Status)
		assert.Equal(t, "pending", view.PaymentStatus)
	})

	t.Run("order without a payment intent", func(t *testing.T) {
		f := newWebhookFixture(t)
		o, _ := f.seedOrder(t, "", 2, 10)

		_, err := f.commands.SyncPaymentStatus(ctx, o.ID(), o.UserID(), customerRole)
		assert.ErrorIs(t, err, ErrNoPaymentIntent)
	})

	t.Run("provider failure", func(t *testing.T) {
		f := newWebhookFixture(t)
		o, _ := f.seedOrder(t, "pi_1", 2, 10)
		f.gateway.piErr = errs.New("provider unreachable")

		_, err := f.commands.SyncPaymentStatus(ctx, o.ID(), o.UserID(), customerRole)
		assert.ErrorIs(t, err, ErrProviderSync)
	})

	t.Run("strangers are denied, admins allowed", func(t *testing.T) {
		f := newWebhookFixture(t)
		o, _ := f.seedOrder(t, "pi_1", 2, 10)
		f.gateway.piInfo = &stripeclient.PaymentIntentInfo{ID: "pi_1", Status: "processing"}

		_, err := f.commands.SyncPaymentStatus(ctx, o.ID(), uuid.New(), customerRole)
		assert.ErrorIs(t, err, ErrOrderAccessDenied)

		_, err = f.commands.SyncPaymentStatus(ctx, o.ID(), uuid.New(), user.RoleAdmin.String())
		assert.NoError(t, err)
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newWebhookFixture(t)

		_, err := f.commands.SyncPaymentStatus(ctx, uuid.New(), uuid.New(), customerRole)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

var _ PaymentGateway = (*fakeGateway)(nil)
