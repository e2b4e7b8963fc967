package response

import (
	"marmite-orders/internal/usecase/queries"

	"github.com/google/uuid"
)

type LoginResponse struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role"`
}

type MeResponse struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	IsActive bool      `json:"isActive"`
}

func FromAuthorizedUserView(v *queries.AuthorizedUserView) *MeResponse {
	return &MeResponse{
		ID:       v.ID,
		Email:    v.Email,
		Role:     v.Role,
		IsActive: v.IsActive,
	}
}
