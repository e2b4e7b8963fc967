package queries

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type BatchQueries interface {
	GetByID(ctx context.Context, id uuid.UUID) (*BatchView, error)
	// NextBatch returns the earliest batch served on or after the given day.
	NextBatch(ctx context.Context, from time.Time) (*BatchView, error)
}

type BatchViewRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*BatchView, error)
	FindNext(ctx context.Context, from time.Time) (*BatchView, error)
}

type batchQueriesImpl struct {
	repo BatchViewRepo
}

func NewBatchQueries(repo BatchViewRepo) BatchQueries {
	return &batchQueriesImpl{repo: repo}
}

func (q *batchQueriesImpl) GetByID(ctx context.Context, id uuid.UUID) (*BatchView, error) {
	return q.repo.FindByID(ctx, id)
}

func (q *batchQueriesImpl) NextBatch(ctx context.Context, from time.Time) (*BatchView, error) {
	return q.repo.FindNext(ctx, from)
}
