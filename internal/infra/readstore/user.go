package readstore

import (
	"context"

	"marmite-orders/internal/infra"
	"marmite-orders/internal/infra/db"
	"marmite-orders/internal/usecase/queries"

	"github.com/google/uuid"
)

var _ queries.UserReadStore = (*UserReadStore)(nil)

type UserReadStore struct {
	db db.DBTX
}

func NewUserReadStore(dbtx db.DBTX) *UserReadStore {
	return &UserReadStore{db: dbtx}
}

func (r *UserReadStore) FindByID(ctx context.Context, id uuid.UUID) (*queries.AuthorizedUserView, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, email, role, is_active FROM users WHERE id = $1`, id)

	var view queries.AuthorizedUserView
	if err := row.Scan(&view.ID, &view.Email, &view.Role, &view.IsActive); err != nil {
		if db.IsNoRows(err) {
			return nil, infra.WrapRepoErr("user not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find user by ID", err)
	}
	return &view, nil
}

// FindByEmail also returns the stored password hash for credential checks.
func (r *UserReadStore) FindByEmail(ctx context.Context, email string) (*queries.AuthorizedUserView, string, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, email, role, is_active, password_hash FROM users WHERE email = $1`, email)

	var (
		view         queries.AuthorizedUserView
		passwordHash string
	)
	if err := row.Scan(&view.ID, &view.Email, &view.Role, &view.IsActive, &passwordHash); err != nil {
		if db.IsNoRows(err) {
			return nil, "", infra.WrapRepoErr("user not found", err, infra.KindNotFound)
		}
		return nil, "", infra.WrapRepoErr("failed to find user by email", err)
	}
	return &view, passwordHash, nil
}
