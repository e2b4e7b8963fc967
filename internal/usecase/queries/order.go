package queries

import (
	"context"

	"marmite-orders/internal/domain/user"
	"marmite-orders/internal/pkg/errs"

	"github.com/google/uuid"
)

var ErrOrderAccessDenied = errs.New("order does not belong to the requesting user")

type OrderQueries interface {
	// GetByID returns the order when the actor owns it or is an admin.
	GetByID(ctx context.Context, actorID uuid.UUID, actorRole string, id uuid.UUID) (*OrderView, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*OrderListItem, error)
	GetPaymentStatus(ctx context.Context, actorID uuid.UUID, actorRole string, id uuid.UUID) (*PaymentStatusView, error)
}

type OrderViewRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*OrderView, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, limit int32) ([]*OrderListItem, error)
}

type orderQueriesImpl struct {
	repo OrderViewRepo
}

func NewOrderQueries(repo OrderViewRepo) OrderQueries {
	return &orderQueriesImpl{repo: repo}
}

func (q *orderQueriesImpl) GetByID(ctx context.Context, actorID uuid.UUID, actorRole string, id uuid.UUID) (*OrderView, error) {
	view, err := q.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if view.UserID != actorID && actorRole != user.RoleAdmin.String() {
		return nil, ErrOrderAccessDenied
	}
	return view, nil
}

func (q *orderQueriesImpl) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*OrderListItem, error) {
	if limit <= 0 {
		limit = 50
	}
	return q.repo.FindByUserID(ctx, userID, int32(limit))
}

func (q *orderQueriesImpl) GetPaymentStatus(ctx context.Context, actorID uuid.UUID, actorRole string, id uuid.UUID) (*PaymentStatusView, error) {
	view, err := q.GetByID(ctx, actorID, actorRole, id)
	if err != nil {
		return nil, err
	}
	return &PaymentStatusView{
		OrderID:       view.ID,
		Status:        view.Status,
		PaymentStatus: view.PaymentStatus,
		PaymentIntent: view.PaymentIntent,
		UpdatedAt:     view.UpdatedAt,
	}, nil
}
