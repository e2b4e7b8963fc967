package repository

import (
	"context"

	"marmite-orders/internal/domain/batch"
	"marmite-orders/internal/infra"
	"marmite-orders/internal/infra/db"
	"marmite-orders/internal/pkg/ptr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type BatchRepository struct {
	db db.DBTX
}

func NewBatchRepository(dbtx db.DBTX) *BatchRepository {
	return &BatchRepository{db: dbtx}
}

const batchColumns = `id, name, served_on, total_portions, remaining_portions, created_at, updated_at`

func (r *BatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*batch.Batch, error) {
	row := r.db.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, id)
	return r.scan(row)
}

// FindByIDForUpdate locks the batch row for the rest of the transaction.
// Every capacity check-and-decrement must come through here so that two
// concurrent admissions cannot both read stale remaining portions.
func (r *BatchRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*batch.Batch, error) {
	row := r.db.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR UPDATE`, id)
	return r.scan(row)
}

func (r *BatchRepository) UpdateRemaining(ctx context.Context, b *batch.Batch) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE batches SET remaining_portions = $2, updated_at = now() WHERE id = $1`,
		b.ID(), b.Remaining(),
	)
	if err != nil {
		return infra.WrapRepoErr("failed to update batch remaining portions", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("batch not found", nil, infra.KindNotFound)
	}
	return nil
}

func (r *BatchRepository) scan(row rowScanner) (*batch.Batch, error) {
	var (
		id               uuid.UUID
		name             string
		servedOn         pgtype.Date
		total, remaining int32
		createdAt        pgtype.Timestamptz
		updatedAt        pgtype.Timestamptz
	)

	err := row.Scan(&id, &name, &servedOn, &total, &remaining, &createdAt, &updatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, infra.WrapRepoErr("batch not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to scan batch row", err)
	}

	return batch.ReconstructBatch(
		id, name, servedOn.Time, total, remaining,
		ptr.TimeFromPgtype(createdAt), ptr.TimeFromPgtype(updatedAt),
	), nil
}
