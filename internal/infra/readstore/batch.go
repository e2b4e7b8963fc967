package readstore

import (
	"context"
	"time"

	"marmite-orders/internal/infra"
	"marmite-orders/internal/infra/db"
	"marmite-orders/internal/pkg/ptr"
	"marmite-orders/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type BatchReadStore struct {
	db db.DBTX
}

func NewBatchReadStore(dbtx db.DBTX) *BatchReadStore {
	return &BatchReadStore{db: dbtx}
}

const batchViewColumns = `id, name, served_on, total_portions, remaining_portions, created_at, updated_at`

func (r *BatchReadStore) FindByID(ctx context.Context, id uuid.UUID) (*queries.BatchView, error) {
	row := r.db.QueryRow(ctx, `SELECT `+batchViewColumns+` FROM batches WHERE id = $1`, id)
	return r.scan(row, "batch not found")
}

func (r *BatchReadStore) FindNext(ctx context.Context, from time.Time) (*queries.BatchView, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+batchViewColumns+`
		FROM batches
		WHERE served_on >= $1
		ORDER BY served_on ASC
		LIMIT 1`, from)
	return r.scan(row, "no upcoming batch")
}

func (r *BatchReadStore) scan(row interface{ Scan(dest ...any) error }, notFoundMsg string) (*queries.BatchView, error) {
	var (
		view      queries.BatchView
		servedOn  pgtype.Date
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := row.Scan(&view.ID, &view.Name, &servedOn, &view.Total, &view.Remaining, &createdAt, &updatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, infra.WrapRepoErr(notFoundMsg, err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to scan batch view row", err)
	}

	view.ServedOn = servedOn.Time
	view.SoldOut = view.Remaining <= 0
	view.CreatedAt = ptr.TimeFromPgtype(createdAt)
	view.UpdatedAt = ptr.TimeFromPgtype(updatedAt)
	return &view, nil
}
