package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-shop-core/internal/orders"
)

type OrderRepo struct{ DB *pgxpool.Pool }

const orderColumns = `id, user_id, product_id, quantity, unit_price, total_price, status, shipping, created_at, updated_at`

func scanOrder(row pgx.Row) (orders.Order, error) {
	var o orders.Order
	var status string
	err := row.Scan(&o.ID, &o.UserID, &o.ProductID, &o.Quantity, &o.UnitPrice, &o.TotalPrice,
		&status, &o.Shipping, &o.CreatedAt, &o.UpdatedAt)
	o.Status = orders.Status(status)
	return o, err
}

func (r *OrderRepo) CreateOrder(ctx context.Context, o orders.Order) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO orders(`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		o.ID, o.UserID, o.ProductID, o.Quantity, o.UnitPrice, o.TotalPrice,
		string(o.Status), o.Shipping, o.CreatedAt, o.UpdatedAt)
	return err
}

func (r *OrderRepo) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if isNoRows(err) {
		return orders.Order{}, orders.NotFound("order", id)
	}
	if err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func (r *OrderRepo) ListOrdersByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]orders.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OrderRepo) TransitionStatus(ctx context.Context, id string, from, to orders.Status, at time.Time) (orders.Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET status=$3, updated_at=$4
		WHERE id=$1 AND status=$2
		RETURNING `+orderColumns, id, string(from), string(to), at))
	if err == nil {
		return o, nil
	}
	if !isNoRows(err) {
		return orders.Order{}, err
	}

	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
		return orders.Order{}, err
	}
	if !exists {
		return orders.Order{}, orders.NotFound("order", id)
	}
	return orders.Order{}, orders.ErrStatusConflict
}
