package readstore

import (
	"context"

	"marmite-orders/internal/infra"
	"marmite-orders/internal/infra/db"
	"marmite-orders/internal/pkg/ptr"
	"marmite-orders/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type OrderReadStore struct {
	db db.DBTX
}

func NewOrderReadStore(dbtx db.DBTX) *OrderReadStore {
	return &OrderReadStore{db: dbtx}
}

func (r *OrderReadStore) FindByID(ctx context.Context, id uuid.UUID) (*queries.OrderView, error) {
	row := r.db.QueryRow(ctx, `
		SELECT o.id, o.user_id, u.email, o.batch_id, b.name,
		       o.quantity, o.amount_cents, o.status, o.payment_status,
		       o.payment_intent, o.comment, o.created_at, o.updated_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		JOIN batches b ON b.id = o.batch_id
		WHERE o.id = $1`, id)

	var (
		view          queries.OrderView
		paymentIntent pgtype.Text
		comment       pgtype.Text
		createdAt     pgtype.Timestamptz
		updatedAt     pgtype.Timestamptz
	)
	err := row.Scan(&view.ID, &view.UserID, &view.UserEmail, &view.BatchID, &view.BatchName,
		&view.Quantity, &view.AmountCents, &view.Status, &view.PaymentStatus,
		&paymentIntent, &comment, &createdAt, &updatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, infra.WrapRepoErr("order not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find order by ID", err)
	}

	view.PaymentIntent = ptr.StringFromPgtype(paymentIntent)
	view.Comment = ptr.StringFromPgtype(comment)
	view.CreatedAt = ptr.TimeFromPgtype(createdAt)
	view.UpdatedAt = ptr.TimeFromPgtype(updatedAt)
	return &view, nil
}

func (r *OrderReadStore) FindByUserID(ctx context.Context, userID uuid.UUID, limit int32) ([]*queries.OrderListItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT o.id, o.batch_id, b.name, o.quantity, o.amount_cents,
		       o.status, o.payment_status, o.created_at
		FROM orders o
		JOIN batches b ON b.id = o.batch_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to find orders by user", err)
	}
	defer rows.Close()

	var result []*queries.OrderListItem
	for rows.Next() {
		var (
			item      queries.OrderListItem
			createdAt pgtype.Timestamptz
		)
		err := rows.Scan(&item.ID, &item.BatchID, &item.BatchName, &item.Quantity,
			&item.AmountCents, &item.Status, &item.PaymentStatus, &createdAt)
		if err != nil {
			return nil, infra.WrapRepoErr("failed to scan order list row", err)
		}
		item.CreatedAt = ptr.TimeFromPgtype(createdAt)
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate order list rows", err)
	}
	return result, nil
}
