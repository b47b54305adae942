package dependencies

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/leadhub/leadhub/internal/log"
	"github.com/leadhub/leadhub/internal/objects"
	"github.com/leadhub/leadhub/internal/pkg/xcache"
	"github.com/leadhub/leadhub/internal/pkg/xredis"
)

// NewRedisClient connects only when the cache mode needs redis, otherwise it
// returns nil.
func NewRedisClient(lc fx.Lifecycle, cfg xcache.Config) (*redis.Client, error) {
	if !cfg.UsesRedis() {
		return nil, nil
	}

	client, err := xredis.NewClient(context.Background(), cfg.Redis.Client)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := client.Close(); err != nil {
				log.Error(ctx, "redis close error", log.Cause(err))
			}

			return nil
		},
	})

	return client, nil
}

func NewRecordCache(cfg xcache.Config, client *redis.Client) (xcache.Cache[objects.Record], error) {
	return xcache.NewFromConfig[objects.Record](cfg, client)
}
