package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-shop-core/internal/orders"
)

type ProductRepo struct{ DB *pgxpool.Pool }

func (r *ProductRepo) Get(ctx context.Context, id string) (orders.Product, error) {
	var p orders.Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, price, stock, is_available, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt)
	if isNoRows(err) {
		return orders.Product{}, orders.NotFound("product", id)
	}
	if err != nil {
		return orders.Product{}, err
	}
	return p, nil
}

// Save inserts p; on an existing row it never writes stock, which only the
// ledger methods below may change.
func (r *ProductRepo) Save(ctx context.Context, p orders.Product) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, name, price, stock, is_available, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE
		SET name=EXCLUDED.name, price=EXCLUDED.price,
		    is_available=EXCLUDED.is_available, updated_at=EXCLUDED.updated_at`,
		p.ID, p.Name, orders.RoundPrice(p.Price), p.Stock, p.IsAvailable, p.CreatedAt, p.UpdatedAt)
	return err
}

// AdjustStock: lock row (FOR UPDATE) -> hitung max(0, stock+delta) -> update.
func (r *ProductRepo) AdjustStock(ctx context.Context, id string, delta int) (orders.StockChange, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return orders.StockChange{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var stock int
	err = tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, id).Scan(&stock)
	if isNoRows(err) {
		return orders.StockChange{}, orders.NotFound("product", id)
	}
	if err != nil {
		return orders.StockChange{}, err
	}

	ch := orders.StockChange{ProductID: id, Previous: stock, Current: stock + delta}
	if ch.Current < 0 {
		ch.Current = 0
		ch.Clamped = true
	}
	if _, err := tx.Exec(ctx, `UPDATE products SET stock=$2, updated_at=now() WHERE id=$1`, id, ch.Current); err != nil {
		return orders.StockChange{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return orders.StockChange{}, err
	}
	return ch, nil
}

// DecrementStock is a single conditional UPDATE; zero affected rows means the
// product is missing or short, which the follow-up read tells apart.
func (r *ProductRepo) DecrementStock(ctx context.Context, id string, qty int) (orders.StockChange, error) {
	var current int
	err := r.DB.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2
		RETURNING stock`, id, qty).Scan(&current)
	if err == nil {
		return orders.StockChange{ProductID: id, Previous: current + qty, Current: current}, nil
	}
	if !isNoRows(err) {
		return orders.StockChange{}, err
	}

	var available int
	err = r.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, id).Scan(&available)
	if isNoRows(err) {
		return orders.StockChange{}, orders.NotFound("product", id)
	}
	if err != nil {
		return orders.StockChange{}, err
	}
	return orders.StockChange{}, &orders.InsufficientStockError{ProductID: id, Requested: qty, Available: available}
}
