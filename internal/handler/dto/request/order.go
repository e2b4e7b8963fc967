package request

import (
	"encoding/json"
	"strings"

	"marmite-orders/internal/domain/order"
)

// CreateOrderRequest accepts the batch reference in any of the shapes the
// storefront sends: a bare UUID string, a relation object, or nothing at
// all (the order then attaches to the next upcoming batch).
type CreateOrderRequest struct {
	Quantity      int32           `json:"quantity" binding:"required,min=1"`
	Batch         json.RawMessage `json:"batch,omitempty"`
	PaymentIntent *string         `json:"payment_intent,omitempty"`
	Comment       *string         `json:"comment,omitempty"`
}

func (r CreateOrderRequest) BatchRef() (order.BatchRef, error) {
	return order.ParseBatchRef(r.Batch)
}

func (r CreateOrderRequest) TrimmedComment() string {
	if r.Comment == nil {
		return ""
	}
	return strings.TrimSpace(*r.Comment)
}

// UpdateOrderRequest carries only the fields the caller wants to change.
type UpdateOrderRequest struct {
	Quantity      *int32          `json:"quantity,omitempty" binding:"omitempty,min=1"`
	Batch         json.RawMessage `json:"batch,omitempty"`
	PaymentIntent *string         `json:"payment_intent,omitempty"`
	Comment       *string         `json:"comment,omitempty"`
}

func (r UpdateOrderRequest) BatchRef() (order.BatchRef, error) {
	return order.ParseBatchRef(r.Batch)
}

// TouchesCapacity reports whether the update changes quantity or moves the
// order to another batch. Everything else is bookkeeping and never competes
// for portions.
func (r UpdateOrderRequest) TouchesCapacity() bool {
	if r.Quantity != nil {
		return true
	}
	ref, err := order.ParseBatchRef(r.Batch)
	if err != nil {
		return true
	}
	return !ref.IsInherited()
}
