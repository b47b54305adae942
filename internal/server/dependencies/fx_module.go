package dependencies

import (
	"context"
	"database/sql"

	"github.com/zhenzou/executors"
	"go.uber.org/fx"

	"github.com/leadhub/leadhub/internal/log"
	"github.com/leadhub/leadhub/internal/server/db"
)

var Module = fx.Module("dependencies",
	fx.Provide(log.New),
	fx.Provide(db.NewRecordDB),
	fx.Provide(NewExecutors),
	fx.Provide(NewRedisClient),
	fx.Provide(NewRecordCache),
	fx.Invoke(func(lc fx.Lifecycle, executor executors.ScheduledExecutor, recordDB *sql.DB) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if err := recordDB.Close(); err != nil {
					log.Error(ctx, "record db close error", log.Cause(err))
				}

				return executor.Shutdown(ctx)
			},
		})
	}),
)
