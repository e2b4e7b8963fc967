package order

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTransitionNotAllowed = errors.New("order state transition not allowed")
	ErrAlreadyCanceled      = errors.New("order is already canceled")
)

// Order is a customer's reservation against a batch's portions, tied to a
// payment lifecycle. Lifecycle transitions are idempotent: re-applying the
// state an order is already in changes nothing and never errors.
type Order struct {
	id            uuid.UUID
	userID        uuid.UUID
	batchID       uuid.UUID
	quantity      Quantity
	amount        Money
	status        Status
	paymentStatus PaymentStatus
	paymentIntent *string
	comment       Comment
	createdAt     time.Time
	updatedAt     time.Time
}

// NewOrder creates a pending order. When a payment intent reference is
// present the order stays pending until the provider confirms; callers with
// a synchronously confirmed payment promote it with MarkPaymentSucceeded.
func NewOrder(
	userID, batchID uuid.UUID,
	quantity Quantity,
	amount Money,
	paymentIntent *string,
	comment Comment,
	now time.Time,
) *Order {
	return &Order{
		id:            uuid.New(),
		userID:        userID,
		batchID:       batchID,
		quantity:      quantity,
		amount:        amount,
		status:        StatusPending,
		paymentStatus: PaymentPending,
		paymentIntent: paymentIntent,
		comment:       comment,
		createdAt:     now,
		updatedAt:     now,
	}
}

func ReconstructOrder(
	id, userID, batchID uuid.UUID,
	quantity Quantity,
	amount Money,
	status Status,
	paymentStatus PaymentStatus,
	paymentIntent *string,
	comment Comment,
	createdAt, updatedAt time.Time,
) *Order {
	return &Order{
		id:            id,
		userID:        userID,
		batchID:       batchID,
		quantity:      quantity,
		amount:        amount,
		status:        status,
		paymentStatus: paymentStatus,
		paymentIntent: paymentIntent,
		comment:       comment,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

// MarkPaymentSucceeded records a succeeded payment: payment status becomes
// succeeded, the lifecycle moves to validated and the amount is overwritten
// with the provider-settled one. Returns changed=false on idempotent replay.
func (o *Order) MarkPaymentSucceeded(amount Money, now time.Time) (bool, error) {
	if o.status == StatusValidated && o.paymentStatus == PaymentSucceeded {
		return false, nil
	}
	if !o.status.CanTransitionTo(StatusValidated) {
		return false, ErrTransitionNotAllowed
	}
	o.status = StatusValidated
	o.paymentStatus = PaymentSucceeded
	o.amount = amount
	o.updatedAt = now
	return true, nil
}

// MarkPaymentFailed cancels the order with a failed payment status. A failed
// payment always cancels; entering canceled is never blocked.
func (o *Order) MarkPaymentFailed(now time.Time) bool {
	if o.status == StatusCanceled && o.paymentStatus == PaymentFailed {
		return false
	}
	released := o.status != StatusCanceled
	o.status = StatusCanceled
	o.paymentStatus = PaymentFailed
	o.updatedAt = now
	return released
}

// MarkPaymentCanceled cancels the order with a canceled payment status.
func (o *Order) MarkPaymentCanceled(now time.Time) bool {
	if o.status == StatusCanceled && o.paymentStatus == PaymentCanceled {
		return false
	}
	released := o.status != StatusCanceled
	o.status = StatusCanceled
	o.paymentStatus = PaymentCanceled
	o.updatedAt = now
	return released
}

// Cancel is the user-initiated cancellation. It reports whether the order
// actually left a non-canceled state, which is what decides whether portions
// flow back to the batch.
func (o *Order) Cancel(now time.Time) bool {
	if o.status == StatusCanceled {
		return false
	}
	o.status = StatusCanceled
	o.paymentStatus = PaymentCanceled
	o.updatedAt = now
	return true
}

func (o *Order) SetBatch(batchID uuid.UUID, now time.Time) {
	o.batchID = batchID
	o.updatedAt = now
}

func (o *Order) SetQuantity(q Quantity, now time.Time) {
	o.quantity = q
	o.updatedAt = now
}

func (o *Order) SetAmount(m Money, now time.Time) {
	o.amount = m
	o.updatedAt = now
}

func (o *Order) SetPaymentIntent(ref *string, now time.Time) {
	o.paymentIntent = ref
	o.updatedAt = now
}

func (o *Order) SetComment(c Comment, now time.Time) {
	o.comment = c
	o.updatedAt = now
}

func (o *Order) ID() uuid.UUID                { return o.id }
func (o *Order) UserID() uuid.UUID            { return o.userID }
func (o *Order) BatchID() uuid.UUID           { return o.batchID }
func (o *Order) Quantity() Quantity           { return o.quantity }
func (o *Order) Amount() Money                { return o.amount }
func (o *Order) Status() Status               { return o.status }
func (o *Order) PaymentStatus() PaymentStatus { return o.paymentStatus }
func (o *Order) PaymentIntent() *string       { return o.paymentIntent }
func (o *Order) Comment() Comment             { return o.comment }
func (o *Order) CreatedAt() time.Time         { return o.createdAt }
func (o *Order) UpdatedAt() time.Time         { return o.updatedAt }

func (o *Order) IsCanceled() bool {
	return o.status == StatusCanceled
}
