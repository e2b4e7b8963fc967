package queries

import (
	"time"

	"github.com/google/uuid"
)

// Read models (DTO for read side)
type OrderView struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	UserEmail     string    `json:"user_email"`
	BatchID       uuid.UUID `json:"batch_id"`
	BatchName     string    `json:"batch_name"`
	Quantity      int32     `json:"quantity"`
	AmountCents   int64     `json:"amount_cents"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	PaymentIntent *string   `json:"payment_intent,omitempty"`
	Comment       *string   `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type OrderListItem struct {
	ID            uuid.UUID `json:"id"`
	BatchID       uuid.UUID `json:"batch_id"`
	BatchName     string    `json:"batch_name"`
	Quantity      int32     `json:"quantity"`
	AmountCents   int64     `json:"amount_cents"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
}

type PaymentStatusView struct {
	OrderID       uuid.UUID `json:"order_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	PaymentIntent *string   `json:"payment_intent,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type BatchView struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ServedOn  time.Time `json:"served_on"`
	Total     int32     `json:"total_portions"`
	Remaining int32     `json:"remaining_portions"`
	SoldOut   bool      `json:"sold_out"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AuthorizedUserView struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	IsActive bool      `json:"is_active"`
}
