package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-shop-core/internal/orders"
)

type UserRepo struct{ DB *pgxpool.Pool }

func (r *UserRepo) Get(ctx context.Context, id string) (orders.User, error) {
	var u orders.User
	err := r.DB.QueryRow(ctx, `
		SELECT id, email, name, deleted_at, created_at, updated_at
		FROM users WHERE id=$1 AND deleted_at IS NULL`, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.DeletedAt, &u.CreatedAt, &u.UpdatedAt)
	if isNoRows(err) {
		return orders.User{}, orders.NotFound("user", id)
	}
	if err != nil {
		return orders.User{}, err
	}
	return u, nil
}

func (r *UserRepo) Save(ctx context.Context, u orders.User) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO users(id, email, name, deleted_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE
		SET email=EXCLUDED.email, name=EXCLUDED.name,
		    deleted_at=EXCLUDED.deleted_at, updated_at=EXCLUDED.updated_at`,
		u.ID, u.Email, u.Name, u.DeletedAt, u.CreatedAt, u.UpdatedAt)
	return err
}
