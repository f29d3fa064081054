package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ariefcatur/go-shop-core/internal/orders"
)

func startDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("shop"),
		tcpostgres.WithUsername("app"),
		tcpostgres.WithPassword("secret"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db), "migrate is repeatable")
	return db
}

func TestRepositories(t *testing.T) {
	db := startDB(t)
	ctx := context.Background()
	users := &UserRepo{DB: db}
	products := &ProductRepo{DB: db}
	ords := &OrderRepo{DB: db}
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("users", func(t *testing.T) {
		require.NoError(t, users.Save(ctx, orders.User{ID: "u1", Email: "a@example.com", Name: "A", CreatedAt: now, UpdatedAt: now}))
		u, err := users.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "A", u.Name)

		u.Name = "B"
		require.NoError(t, users.Save(ctx, u))
		u, err = users.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "B", u.Name)

		require.NoError(t, users.Save(ctx, orders.User{ID: "u2", Email: "d@example.com", DeletedAt: &now, CreatedAt: now, UpdatedAt: now}))
		_, err = users.Get(ctx, "u2")
		assert.True(t, errors.Is(err, orders.ErrNotFound))
	})

	t.Run("products", func(t *testing.T) {
		p := orders.Product{ID: "p1", Name: "Lamp", Price: decimal.RequireFromString("12.50"), Stock: 5, IsAvailable: true, CreatedAt: now, UpdatedAt: now}
		require.NoError(t, products.Save(ctx, p))

		p.Name = "Desk lamp"
		p.Stock = 100
		require.NoError(t, products.Save(ctx, p))

		got, err := products.Get(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "Desk lamp", got.Name)
		assert.Equal(t, 5, got.Stock, "save never writes stock of an existing product")
		assert.True(t, got.Price.Equal(decimal.RequireFromString("12.5")))

		ch, err := products.AdjustStock(ctx, "p1", -9)
		require.NoError(t, err)
		assert.Equal(t, orders.StockChange{ProductID: "p1", Previous: 5, Current: 0, Clamped: true}, ch)

		_, err = products.AdjustStock(ctx, "p1", 3)
		require.NoError(t, err)

		_, err = products.DecrementStock(ctx, "p1", 4)
		var ise *orders.InsufficientStockError
		require.True(t, errors.As(err, &ise))
		assert.Equal(t, 3, ise.Available)

		ch, err = products.DecrementStock(ctx, "p1", 3)
		require.NoError(t, err)
		assert.Equal(t, 0, ch.Current)

		_, err = products.DecrementStock(ctx, "ghost", 1)
		assert.True(t, errors.Is(err, orders.ErrNotFound))
		_, err = products.AdjustStock(ctx, "ghost", 1)
		assert.True(t, errors.Is(err, orders.ErrNotFound))
	})

	t.Run("concurrent decrements", func(t *testing.T) {
		require.NoError(t, products.Save(ctx, orders.Product{ID: "p2", Name: "Hot", Price: decimal.NewFromInt(1), Stock: 10, IsAvailable: true, CreatedAt: now, UpdatedAt: now}))

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := products.DecrementStock(ctx, "p2", 3); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 3, wins)
		got, err := products.Get(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Stock)
	})

	t.Run("orders", func(t *testing.T) {
		o := orders.Order{
			ID: "o1", UserID: "u1", ProductID: "p1", Quantity: 2,
			UnitPrice:  decimal.RequireFromString("12.50"),
			TotalPrice: decimal.RequireFromString("25.00"),
			Status:     orders.StatusPending,
			Shipping:   orders.ShippingInfo{Recipient: "A", City: "Jakarta"},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		require.NoError(t, ords.CreateOrder(ctx, o))
		later := o
		later.ID = "o2"
		later.CreatedAt = now.Add(time.Minute)
		later.UpdatedAt = later.CreatedAt
		require.NoError(t, ords.CreateOrder(ctx, later))

		got, err := ords.GetOrder(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, "Jakarta", got.Shipping.City)
		assert.True(t, got.TotalPrice.Equal(o.TotalPrice))
		assert.Equal(t, orders.StatusPending, got.Status)

		list, err := ords.ListOrdersByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "o2", list[0].ID)

		moved, err := ords.TransitionStatus(ctx, "o1", orders.StatusPending, orders.StatusConfirmed, now.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, orders.StatusConfirmed, moved.Status)

		_, err = ords.TransitionStatus(ctx, "o1", orders.StatusPending, orders.StatusCancelled, now)
		assert.ErrorIs(t, err, orders.ErrStatusConflict)
		_, err = ords.TransitionStatus(ctx, "nope", orders.StatusPending, orders.StatusCancelled, now)
		assert.True(t, errors.Is(err, orders.ErrNotFound))
		_, err = ords.GetOrder(ctx, "nope")
		assert.True(t, errors.Is(err, orders.ErrNotFound))
	})
}
