package batch

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidCapacity      = errors.New("total portions must be a positive integer")
	ErrInsufficientPortions = errors.New("not enough portions remaining")
	ErrInvalidReleaseAmount = errors.New("released quantity exceeds consumed portions")
	ErrNonPositiveQuantity  = errors.New("quantity must be a positive integer")
)

// Batch is a meal-preparation run ("marmite") with a finite number of
// portions. remaining is the single source of truth for admission checks;
// it is only ever mutated under a row lock held by the order validator.
type Batch struct {
	id        uuid.UUID
	name      string
	servedOn  time.Time
	total     int32
	remaining int32
	createdAt time.Time
	updatedAt time.Time
}

func NewBatch(name string, servedOn time.Time, totalPortions int32, now time.Time) (*Batch, error) {
	if totalPortions <= 0 {
		return nil, ErrInvalidCapacity
	}

	return &Batch{
		id:        uuid.New(),
		name:      name,
		servedOn:  servedOn,
		total:     totalPortions,
		remaining: totalPortions,
		createdAt: now,
		updatedAt: now,
	}, nil
}

func ReconstructBatch(id uuid.UUID, name string, servedOn time.Time, total, remaining int32, createdAt, updatedAt time.Time) *Batch {
	return &Batch{
		id:        id,
		name:      name,
		servedOn:  servedOn,
		total:     total,
		remaining: remaining,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// Reserve consumes quantity portions. The caller must hold the batch row
// lock so that check and decrement are a single serialized decision.
func (b *Batch) Reserve(quantity int32) error {
	if quantity <= 0 {
		return ErrNonPositiveQuantity
	}
	if quantity > b.remaining {
		return ErrInsufficientPortions
	}
	b.remaining -= quantity
	return nil
}

// Release returns portions consumed by a canceled order.
func (b *Batch) Release(quantity int32) error {
	if quantity <= 0 {
		return ErrNonPositiveQuantity
	}
	if b.remaining+quantity > b.total {
		return ErrInvalidReleaseAmount
	}
	b.remaining += quantity
	return nil
}

func (b *Batch) ID() uuid.UUID        { return b.id }
func (b *Batch) Name() string         { return b.name }
func (b *Batch) ServedOn() time.Time  { return b.servedOn }
func (b *Batch) Total() int32         { return b.total }
func (b *Batch) Remaining() int32     { return b.remaining }
func (b *Batch) CreatedAt() time.Time { return b.createdAt }
func (b *Batch) UpdatedAt() time.Time { return b.updatedAt }

func (b *Batch) IsSoldOut() bool {
	return b.remaining <= 0
}
