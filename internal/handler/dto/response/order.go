package response

import (
	"time"

	"marmite-orders/internal/usecase/queries"

	"github.com/google/uuid"
)

// OrderResponse exposes the amount in major currency units (15000 cents
// becomes 150.00), which is what the storefront renders.
type OrderResponse struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"userId"`
	UserEmail     string    `json:"userEmail"`
	BatchID       uuid.UUID `json:"batchId"`
	BatchName     string    `json:"batchName"`
	Quantity      int32     `json:"quantity"`
	Amount        float64   `json:"amount"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	PaymentIntent *string   `json:"paymentIntent,omitempty"`
	Comment       *string   `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type OrderListResponse struct {
	ID            uuid.UUID `json:"id"`
	BatchID       uuid.UUID `json:"batchId"`
	BatchName     string    `json:"batchName"`
	Quantity      int32     `json:"quantity"`
	Amount        float64   `json:"amount"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	CreatedAt     time.Time `json:"createdAt"`
}

type PaymentStatusResponse struct {
	OrderID       uuid.UUID `json:"orderId"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	PaymentIntent *string   `json:"paymentIntent,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func FromOrderView(v *queries.OrderView) *OrderResponse {
	return &OrderResponse{
		ID:            v.ID,
		UserID:        v.UserID,
		UserEmail:     v.UserEmail,
		BatchID:       v.BatchID,
		BatchName:     v.BatchName,
		Quantity:      v.Quantity,
		Amount:        float64(v.AmountCents) / 100,
		Status:        v.Status,
		PaymentStatus: v.PaymentStatus,
		PaymentIntent: v.PaymentIntent,
		Comment:       v.Comment,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func FromOrderListItem(v *queries.OrderListItem) *OrderListResponse {
	return &OrderListResponse{
		ID:            v.ID,
		BatchID:       v.BatchID,
		BatchName:     v.BatchName,
		Quantity:      v.Quantity,
		Amount:        float64(v.AmountCents) / 100,
		Status:        v.Status,
		PaymentStatus: v.PaymentStatus,
		CreatedAt:     v.CreatedAt,
	}
}

func FromPaymentStatusView(v *queries.PaymentStatusView) *PaymentStatusResponse {
	return &PaymentStatusResponse{
		OrderID:       v.OrderID,
		Status:        v.Status,
		PaymentStatus: v.PaymentStatus,
		PaymentIntent: v.PaymentIntent,
		UpdatedAt:     v.UpdatedAt,
	}
}
