package response

import (
	"time"

	"marmite-orders/internal/usecase/queries"

	"github.com/google/uuid"
)

type BatchResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ServedOn  string    `json:"servedOn"`
	Total     int32     `json:"totalPortions"`
	Remaining int32     `json:"remainingPortions"`
	SoldOut   bool      `json:"soldOut"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func FromBatchView(v *queries.BatchView) *BatchResponse {
	return &BatchResponse{
		ID:        v.ID,
		Name:      v.Name,
		ServedOn:  v.ServedOn.Format("2006-01-02"),
		Total:     v.Total,
		Remaining: v.Remaining,
		SoldOut:   v.SoldOut,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}
