package repository

import (
	"context"

	"marmite-orders/internal/domain/order"
	"marmite-orders/internal/infra"
	"marmite-orders/internal/infra/db"
	"marmite-orders/internal/pkg/ptr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type OrderRepository struct {
	db db.DBTX
}

func NewOrderRepository(dbtx db.DBTX) *OrderRepository {
	return &OrderRepository{db: dbtx}
}

const orderColumns = `id, user_id, batch_id, quantity, amount_cents, status, payment_status, payment_intent, comment, created_at, updated_at`

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO orders (id, user_id, batch_id, quantity, amount_cents, status, payment_status, payment_intent, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID(), o.UserID(), o.BatchID(), o.Quantity().Value(), o.Amount().Cents(),
		o.Status().String(), o.PaymentStatus().String(), ptr.TextFromPtr(o.PaymentIntent()),
		nullableComment(o.Comment()), o.CreatedAt(), o.UpdatedAt(),
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return infra.WrapRepoErr("order with this payment reference already exists", err, infra.KindDuplicateKey)
		}
		return infra.WrapRepoErr("failed to create order", err)
	}
	return nil
}

func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET quantity = $2, amount_cents = $3, status = $4, payment_status = $5,
		    payment_intent = $6, comment = $7, updated_at = $8
		WHERE id = $1`,
		o.ID(), o.Quantity().Value(), o.Amount().Cents(), o.Status().String(),
		o.PaymentStatus().String(), ptr.TextFromPtr(o.PaymentIntent()),
		nullableComment(o.Comment()), o.UpdatedAt(),
	)
	if err != nil {
		return infra.WrapRepoErr("failed to update order", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("order not found", nil, infra.KindNotFound)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, infra.WrapRepoErr("order not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find order by id", err)
	}
	return o, nil
}

func (r *OrderRepository) FindByPaymentIntent(ctx context.Context, paymentIntent string) ([]*order.Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE payment_intent = $1
		ORDER BY created_at`, paymentIntent)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to find orders by payment reference", err)
	}
	defer rows.Close()

	var result []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, infra.WrapRepoErr("failed to scan order row", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate order rows", err)
	}
	return result, nil
}

func (r *OrderRepository) UpdateByPaymentIntent(
	ctx context.Context,
	paymentIntent string,
	status order.Status,
	paymentStatus order.PaymentStatus,
	amountCents *int64,
) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3,
		    amount_cents = COALESCE($4, amount_cents),
		    updated_at = now()
		WHERE payment_intent = $1`,
		paymentIntent, status.String(), paymentStatus.String(), amountCents,
	)
	if err != nil {
		return 0, infra.WrapRepoErr("failed to update order by payment reference", err)
	}
	return tag.RowsAffected(), nil
}

func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, paymentStatus order.PaymentStatus) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1`,
		id, paymentStatus.String(),
	)
	if err != nil {
		return infra.WrapRepoErr("failed to update order payment status", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("order not found", nil, infra.KindNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		id, userID, batchID uuid.UUID
		quantity            int32
		amountCents         int64
		status              string
		paymentStatus       string
		paymentIntent       pgtype.Text
		comment             pgtype.Text
		createdAt           pgtype.Timestamptz
		updatedAt           pgtype.Timestamptz
	)

	err := row.Scan(&id, &userID, &batchID, &quantity, &amountCents, &status,
		&paymentStatus, &paymentIntent, &comment, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	q, err := order.NewQuantity(quantity)
	if err != nil {
		return nil, err
	}
	m, err := order.NewMoney(amountCents)
	if err != nil {
		return nil, err
	}
	c, err := order.NewComment(comment.String)
	if err != nil {
		return nil, err
	}

	return order.ReconstructOrder(
		id, userID, batchID,
		q, m,
		order.Status(status), order.PaymentStatus(paymentStatus),
		ptr.StringFromPgtype(paymentIntent), c,
		ptr.TimeFromPgtype(createdAt), ptr.TimeFromPgtype(updatedAt),
	), nil
}

func nullableComment(c order.Comment) pgtype.Text {
	if c.IsEmpty() {
		return pgtype.Text{}
	}
	return pgtype.Text{String: c.String(), Valid: true}
}
