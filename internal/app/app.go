// Package app assembles stores, cache, lookups and services from Config.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-core/internal/cache"
	"github.com/ariefcatur/go-shop-core/internal/config"
	kafkax "github.com/ariefcatur/go-shop-core/internal/kafka"
	"github.com/ariefcatur/go-shop-core/internal/lookup"
	"github.com/ariefcatur/go-shop-core/internal/memstore"
	"github.com/ariefcatur/go-shop-core/internal/orders"
	"github.com/ariefcatur/go-shop-core/internal/postgres"
	"github.com/ariefcatur/go-shop-core/internal/redisx"
)

type App struct {
	Cache   cache.Cache
	Ledger  *orders.Ledger
	Orders  *orders.Service
	Catalog *orders.Catalog

	closers []func()
}

type stores struct {
	users      lookup.Store[orders.User]
	products   interface {
		lookup.Store[orders.Product]
		orders.StockStore
	}
	orderStore orders.OrderStore
}

func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	st, err := a.openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if a.Cache, err = a.openCache(ctx, cfg, log); err != nil {
		return nil, err
	}

	var pub orders.Publisher = orders.NopPublisher{}
	if cfg.EventsEnabled {
		prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
		prod.Start()
		a.closers = append(a.closers, prod.Close)
		pub = prod
	}

	users := lookup.New[orders.User]("user", st.users, a.Cache, cfg.EntityCacheTTL, log)
	products := lookup.New[orders.Product]("product", st.products, a.Cache, cfg.EntityCacheTTL, log)

	a.Ledger = orders.NewLedger(st.products, products, pub, cfg.ServiceName, log)
	a.Orders = &orders.Service{
		Orders:      st.orderStore,
		Users:       users,
		Products:    products,
		Ledger:      a.Ledger,
		Publisher:   pub,
		ServiceName: cfg.ServiceName,
		Log:         log,
	}
	a.Catalog = &orders.Catalog{
		Users:        users,
		Products:     products,
		UserStore:    st.users,
		ProductStore: st.products,
		Ledger:       a.Ledger,
	}
	ok = true
	return a, nil
}

func (a *App) openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (stores, error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn("using in-memory stores; data is lost on exit")
		return stores{users: memstore.NewUsers(), products: memstore.NewProducts(), orderStore: memstore.NewOrders()}, nil
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return stores{}, fmt.Errorf("db connect: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	if err := postgres.Migrate(ctx, db); err != nil {
		return stores{}, fmt.Errorf("db migrate: %w", err)
	}
	return stores{
		users:      &postgres.UserRepo{DB: db},
		products:   &postgres.ProductRepo{DB: db},
		orderStore: &postgres.OrderRepo{DB: db},
	}, nil
}

func (a *App) openCache(ctx context.Context, cfg config.Config, log *zap.Logger) (cache.Cache, error) {
	if cfg.CacheBackend == config.BackendMemory {
		return cache.NewMemory(), nil
	}
	rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := rdb.Close(); err != nil {
			log.Warn("redis close", zap.Error(err))
		}
	})
	return cache.NewRedis(rdb, redisx.CachePrefix), nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
