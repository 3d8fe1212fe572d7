package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/job-portal/job-portal-server/config"
	"github.com/job-portal/job-portal-server/internal/docstore"
	"github.com/job-portal/job-portal-server/internal/events"
)

// Backends holds the long-lived handles opened for a config. Close releases
// them; it is safe on a partially opened value.
type Backends struct {
	Store     docstore.Store
	Publisher events.Publisher
	DB        *pgxpool.Pool
	Redis     *redis.Client
}

// OpenBackends opens the document store selected by STORE_DRIVER. A Redis
// client is also opened whenever REDIS_ADDR is set so application events can
// be published.
func OpenBackends(ctx context.Context, cfg *config.Config) (*Backends, error) {
	b := &Backends{Publisher: events.Nop{}}

	if cfg.Redis.Addr != "" {
		client, err := OpenRedis(ctx, RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		b.Redis = client
		publisher := events.NewRedisPublisher(client, cfg.Redis.Prefix)
		b.Publisher = publisher
		log.Printf("application events: redis channel %s", publisher.Channel())
	}

	switch cfg.Store.Driver {
	case config.StorePostgres:
		pool, err := OpenDB(ctx, DBOptions{
			DSN:      cfg.Database.ConnString(),
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			b.Close()
			return nil, err
		}
		b.DB = pool

		store := docstore.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			b.Close()
			return nil, err
		}
		b.Store = store
	case config.StoreRedis:
		if b.Redis == nil {
			return nil, fmt.Errorf("REDIS_ADDR is required when STORE_DRIVER=redis")
		}
		b.Store = docstore.NewRedisStore(b.Redis, cfg.Redis.Prefix)
	case config.StoreMemory:
		b.Store = docstore.NewMemoryStore()
	default:
		b.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	log.Printf("document store: %s", cfg.Store.Driver)
	return b, nil
}

func (b *Backends) Close() {
	if b == nil {
		return
	}
	if b.DB != nil {
		b.DB.Close()
	}
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
}
