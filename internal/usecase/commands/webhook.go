package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"marmite-orders/internal/domain/batch"
	"marmite-orders/internal/domain/order"
	"marmite-orders/internal/domain/payment"
	"marmite-orders/internal/domain/user"
	"marmite-orders/internal/infra"
	"marmite-orders/internal/infra/metrics"
	"marmite-orders/internal/infra/webhookmon"
	"marmite-orders/internal/pkg/clock"
	"marmite-orders/internal/pkg/errs"
	"marmite-orders/internal/usecase/queries"
	"marmite-orders/internal/usecase/shared"

	"github.com/google/uuid"
)

var (
	ErrWebhookSignature = errs.New("webhook signature verification failed")
	ErrNoPaymentIntent  = errs.New("order has no payment intent to sync against")
	ErrProviderSync     = errs.New("payment provider sync failed")
)

const reconcileTimeout = 30 * time.Second

type WebhookCommands interface {
	// HandleNotification ingests a raw provider notification. Reconciliation
	// runs asynchronously; the returned error only reports ingestion problems
	// (bad signature, unparseable payload) for logging.
	HandleNotification(payload []byte, signature string) error
	// SyncPaymentStatus pulls the payment object from the provider and runs
	// the same reconciliation the webhook would have triggered.
	SyncPaymentStatus(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*queries.PaymentStatusView, error)
	Stats() webhookmon.Stats
	FailedEvents() []webhookmon.FailedEvent
	ClearHistory()
	// ClearHistoryOlderThan purges only ledger entries older than maxAge and
	// reports how many were removed.
	ClearHistoryOlderThan(maxAge time.Duration) int
}

type webhookCommandsImpl struct {
	uow          shared.UnitOfWork
	gateway      PaymentGateway
	ledger       WebhookLedger
	orderQueries queries.OrderQueries
	notifier     Notifier
	metrics      *metrics.Metrics
	clock        clock.Clock
	logger       *slog.Logger
}

func NewWebhookCommands(
	uow shared.UnitOfWork,
	gateway PaymentGateway,
	ledger WebhookLedger,
	orderQueries queries.OrderQueries,
	notifier Notifier,
	m *metrics.Metrics,
	clk clock.Clock,
	logger *slog.Logger,
) WebhookCommands {
	return &webhookCommandsImpl{
		uow:          uow,
		gateway:      gateway,
		ledger:       ledger,
		orderQueries: orderQueries,
		notifier:     notifier,
		metrics:      m,
		clock:        clk,
		logger:       logger,
	}
}

func (w *webhookCommandsImpl) HandleNotification(payload []byte, signature string) error {
	start := time.Now()
	defer func() {
		w.metrics.WebhookHandlerDuration.Observe(time.Since(start).Seconds())
	}()
	w.metrics.WebhookEventsTotal.Inc()

	if err := w.gateway.VerifyNotification(payload, signature); err != nil {
		w.metrics.WebhookMalformedTotal.Inc()
		return errs.Mark(err, ErrWebhookSignature)
	}

	evt, err := payment.Normalize(payload)
	if err != nil {
		w.metrics.WebhookMalformedTotal.Inc()
		return err
	}

	if w.ledger.WasProcessed(evt.ID) {
		w.logger.Info("webhook event already processed, skipping replay", "event_id", evt.ID)
		return nil
	}
	w.ledger.Track(evt.ID, evt.Type, evt.ObjectID)

	// The provider expects an immediate ack; reconciliation continues on its
	// own context so a slow database never forces a redelivery.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()
		w.reconcile(ctx, evt)
	}()

	return nil
}

func (w *webhookCommandsImpl) reconcile(ctx context.Context, evt *payment.Event) {
	outcome := evt.Outcome()
	if outcome == payment.OutcomeOther {
		// Not a settlement outcome; record it as unmatched so the stats do
		// not count it as processed and the id stays replayable.
		w.markUnmatched(evt)
		return
	}

	if evt.ObjectID == "" {
		w.markUnmatched(evt)
		return
	}

	matched, err := w.uow.Orders().FindByPaymentIntent(ctx, evt.ObjectID)
	if err != nil {
		w.markFailed(evt, errs.Wrap(err, "order lookup failed"))
		return
	}
	if len(matched) == 0 {
		w.markUnmatched(evt)
		return
	}

	// Persistence strategies in decreasing order of fidelity. The full
	// transactional path also settles batch capacity; the fallbacks trade
	// that for still landing the payment status.
	strategies := []struct {
		name string
		run  func(context.Context) error
	}{
		{"transactional", func(ctx context.Context) error { return w.applyTransactional(ctx, evt, outcome) }},
		{"direct-update", func(ctx context.Context) error { return w.applyDirectUpdate(ctx, evt, outcome) }},
		{"status-only", func(ctx context.Context) error { return w.applyStatusOnly(ctx, matched, outcome) }},
	}

	var failures []string
	for _, s := range strategies {
		if err := s.run(ctx); err != nil {
			// A domain rejection means the event conflicts with the order's
			// current state. Fallbacks only exist to survive storage
			// failures; they must never force a forbidden transition.
			if isDomainRejection(err) {
				w.metrics.WebhookFailedTotal.Inc()
				w.ledger.MarkFailed(evt.ID, s.name+": "+err.Error())
				w.logger.Warn("webhook event refused by order state",
					"event_id", evt.ID, "type", evt.Type, "error", err.Error())
				return
			}
			w.logger.Warn("webhook persistence strategy failed",
				"event_id", evt.ID, "strategy", s.name, "error", err.Error())
			failures = append(failures, s.name+": "+err.Error())
			continue
		}

		w.metrics.WebhookProcessedTotal.Inc()
		w.logger.Info("webhook event reconciled",
			"event_id", evt.ID, "type", evt.Type, "strategy", s.name, "orders", len(matched))
		w.notifier.NotifyOrderEvent("payment_"+string(outcome), map[string]any{
			"payment_intent": evt.ObjectID,
			"amount":         float64(evt.AmountCents) / 100,
			"currency":       evt.Currency,
		})
		return
	}

	w.metrics.WebhookFailedTotal.Inc()
	w.ledger.MarkFailed(evt.ID, strings.Join(failures, "; "))
	w.logger.Error("webhook event could not be persisted",
		"event_id", evt.ID, "type", evt.Type, "attempts", len(strategies))
}

// applyTransactional runs the domain transitions and capacity settlement in
// one transaction across every matched order.
func (w *webhookCommandsImpl) applyTransactional(ctx context.Context, evt *payment.Event, outcome payment.Outcome) error {
	return w.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		matched, err := tx.Orders().FindByPaymentIntent(ctx, evt.ObjectID)
		if err != nil {
			return err
		}

		now := w.clock.Now()
		for _, o := range matched {
			switch outcome {
			case payment.OutcomeSucceeded:
				amount, err := order.NewMoney(evt.AmountCents)
				if err != nil {
					return err
				}
				changed, err := o.MarkPaymentSucceeded(amount, now)
				if err != nil {
					return err
				}
				if !changed {
					continue
				}

			case payment.OutcomeFailed:
				if !o.MarkPaymentFailed(now) {
					continue
				}
				if err := w.releaseInTx(ctx, tx, o); err != nil {
					return err
				}

			case payment.OutcomeCanceled:
				if !o.MarkPaymentCanceled(now) {
					continue
				}
				if err := w.releaseInTx(ctx, tx, o); err != nil {
					return err
				}
			}

			if err := tx.Orders().Update(ctx, o); err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *webhookCommandsImpl) releaseInTx(ctx context.Context, tx shared.Tx, o *order.Order) error {
	b, err := tx.Batches().FindByIDForUpdate(ctx, o.BatchID())
	if err != nil {
		// The batch may have been removed after the season; the payment
		// outcome still has to land.
		if infra.IsKind(err, infra.KindNotFound) {
			return nil
		}
		return err
	}
	if err := b.Release(o.Quantity().Value()); err != nil {
		return err
	}
	return tx.Batches().UpdateRemaining(ctx, b)
}

// applyDirectUpdate bypasses entity loading with a single keyed UPDATE.
func (w *webhookCommandsImpl) applyDirectUpdate(ctx context.Context, evt *payment.Event, outcome payment.Outcome) error {
	status, paymentStatus := outcomeStates(outcome)

	var amountCents *int64
	if outcome == payment.OutcomeSucceeded {
		amountCents = &evt.AmountCents
	}

	affected, err := w.uow.Orders().UpdateByPaymentIntent(ctx, evt.ObjectID, status, paymentStatus, amountCents)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.New("no orders updated by payment reference")
	}
	return nil
}

// applyStatusOnly is the last resort: payment status per order, nothing else.
func (w *webhookCommandsImpl) applyStatusOnly(ctx context.Context, matched []*order.Order, outcome payment.Outcome) error {
	_, paymentStatus := outcomeStates(outcome)
	for _, o := range matched {
		if err := w.uow.Orders().UpdatePaymentStatus(ctx, o.ID(), paymentStatus); err != nil {
			return err
		}
	}
	return nil
}

// isDomainRejection separates the state machine refusing an event from the
// storage layer failing to persist it. Only the latter may trigger a
// fallback strategy.
func isDomainRejection(err error) bool {
	return errors.Is(err, order.ErrTransitionNotAllowed) ||
		errors.Is(err, order.ErrNegativeAmount) ||
		errors.Is(err, batch.ErrInvalidReleaseAmount) ||
		errors.Is(err, batch.ErrNonPositiveQuantity)
}

func outcomeStates(outcome payment.Outcome) (order.Status, order.PaymentStatus) {
	switch outcome {
	case payment.OutcomeSucceeded:
		return order.StatusValidated, order.PaymentSucceeded
	case payment.OutcomeFailed:
		return order.StatusCanceled, order.PaymentFailed
	default:
		return order.StatusCanceled, order.PaymentCanceled
	}
}

func (w *webhookCommandsImpl) markUnmatched(evt *payment.Event) {
	w.metrics.WebhookUnmatchedTotal.Inc()
	w.ledger.MarkUnmatched(evt.ID, evt.Type, evt.ObjectID)
	w.logger.Warn("webhook event matched no order",
		"event_id", evt.ID, "type", evt.Type, "payment_intent", evt.ObjectID)
}

func (w *webhookCommandsImpl) markFailed(evt *payment.Event, err error) {
	w.metrics.WebhookFailedTotal.Inc()
	w.ledger.MarkFailed(evt.ID, err.Error())
	w.logger.Error("webhook event reconciliation failed",
		"event_id", evt.ID, "type", evt.Type, "error", err.Error())
}

func (w *webhookCommandsImpl) SyncPaymentStatus(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*queries.PaymentStatusView, error) {
	o, err := w.uow.Orders().FindByID(ctx, orderID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	if o.UserID() != actorID && actorRole != user.RoleAdmin.String() {
		return nil, ErrOrderAccessDenied
	}
	if o.PaymentIntent() == nil {
		return nil, ErrNoPaymentIntent
	}

	info, err := w.gateway.GetPaymentIntent(ctx, *o.PaymentIntent())
	if err != nil {
		return nil, errs.Mark(err, ErrProviderSync)
	}

	if evt := syntheticEvent(info.ID, info.Status, info.AmountCents, info.Currency, w.clock.Now()); evt != nil {
		w.ledger.Track(evt.ID, evt.Type, evt.ObjectID)
		w.reconcile(ctx, evt)
	}

	return w.orderQueries.GetPaymentStatus(ctx, actorID, actorRole, orderID)
}

// syntheticEvent translates a pulled payment object into the event shape the
// reconciler consumes. Intermediate provider states map to no event at all.
func syntheticEvent(paymentIntentID, providerStatus string, amountCents int64, currency string, now time.Time) *payment.Event {
	var eventType string
	switch providerStatus {
	case "succeeded":
		eventType = payment.TypeSucceeded
	case "canceled":
		eventType = payment.TypeCanceled
	default:
		return nil
	}

	return &payment.Event{
		ID:          "sync_" + paymentIntentID + "_" + now.UTC().Format("20060102150405"),
		Type:        eventType,
		ObjectID:    paymentIntentID,
		AmountCents: amountCents,
		Currency:    currency,
		Status:      providerStatus,
		CreatedAt:   now,
	}
}

func (w *webhookCommandsImpl) Stats() webhookmon.Stats {
	return w.ledger.GetStats()
}

func (w *webhookCommandsImpl) FailedEvents() []webhookmon.FailedEvent {
	return w.ledger.GetFailedEvents()
}

func (w *webhookCommandsImpl) ClearHistory() {
	w.ledger.Reset()
}

func (w *webhookCommandsImpl) ClearHistoryOlderThan(maxAge time.Duration) int {
	return w.ledger.ClearOlderThan(maxAge)
}
