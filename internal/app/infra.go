package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/xdelay/pkg/config/xconf"
	"github.com/omeyang/xdelay/pkg/distributed/xdlock"
	"github.com/omeyang/xdelay/pkg/mq/xidem"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/storage/xetcd"
	"github.com/omeyang/xdelay/pkg/storage/xmongo"
	"github.com/omeyang/xdelay/pkg/storage/xsql"
)

func (a *App) buildLogger(context.Context) error {
	if a.opts.logger != nil {
		a.logger = a.opts.logger
		return nil
	}
	logger, cleanup, err := a.cfg.Log.Logger()
	if err != nil {
		return err
	}
	a.logger = logger
	a.onClose("logger", func(context.Context) error { return cleanup() })
	return nil
}

// needsRedis 锁、去重缓存或共享限流任一用到 Redis。
func (a *App) needsRedis() bool {
	if a.cfg.Lock.Type == xconf.LockRedis {
		return true
	}
	if a.cfg.Cache.Dedupe == xconf.CacheRedis || a.cfg.Cache.Dedupe == xconf.CacheTiered {
		return true
	}
	return slices.ContainsFunc(a.cfg.Containers, func(c xconf.ContainerConfig) bool {
		return c.SharedRateLimit
	})
}

func (a *App) buildRedis(ctx context.Context) error {
	if !a.needsRedis() {
		return nil
	}
	if a.opts.redis != nil {
		a.redis = a.opts.redis
		return nil
	}
	rc := a.cfg.Redis
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    rc.Addrs,
		Password: rc.Password,
		DB:       rc.DB,
	})
	a.onClose("redis", func(context.Context) error { return client.Close() })
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping %v: %w", rc.Addrs, err)
	}
	a.redis = client
	return nil
}

func (a *App) buildStore(ctx context.Context) error {
	if a.opts.store != nil {
		a.store = a.opts.store
		return nil
	}
	sc := a.cfg.Store
	logger := a.logger.With(xlog.Component("store"))
	switch sc.Type {
	case xconf.StoreMongo:
		return a.buildMongoStore(ctx, sc, logger)
	case xconf.StoreMySQL:
		return a.buildMySQLStore(ctx, sc, logger)
	default:
		a.store = xidem.NewMemoryStore()
		return nil
	}
}

func (a *App) buildMongoStore(ctx context.Context, sc xconf.StoreConfig, logger xlog.Logger) error {
	client, err := mongo.Connect(mongooptions.Client().ApplyURI(sc.Mongo.URI))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	a.onClose("mongo", client.Disconnect)

	coll := client.Database(sc.Mongo.Database).Collection(sc.Mongo.Collection)
	store, err := xmongo.NewRecordStore(coll,
		xmongo.WithSlowQueryThreshold(sc.SlowQuery),
		xmongo.WithLogger(logger),
		xmongo.WithObserver(a.opts.observer),
	)
	if err != nil {
		return err
	}
	a.onClose("mongo store", store.Close)
	if sc.Mongo.EnsureIndexes {
		if err := store.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	a.store = store
	return nil
}

func (a *App) buildMySQLStore(ctx context.Context, sc xconf.StoreConfig, logger xlog.Logger) error {
	m := sc.MySQL
	store, err := xsql.Open(m.DSN,
		xsql.WithTable(m.Table),
		xsql.WithPool(m.MaxOpenConns, m.MaxIdleConns, 0),
		xsql.WithSQLLog(m.LogSQL),
		xsql.WithSlowQueryThreshold(sc.SlowQuery),
		xsql.WithLogger(logger),
		xsql.WithObserver(a.opts.observer),
	)
	if err != nil {
		return err
	}
	a.onClose("mysql store", store.Close)
	if m.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}
	a.store = store
	return nil
}

func (a *App) buildLocker(ctx context.Context) error {
	prefix := xdlock.WithKeyPrefix(a.cfg.Lock.KeyPrefix)
	switch a.cfg.Lock.Type {
	case xconf.LockRedis:
		l, err := xdlock.NewRedisLocker([]redis.UniversalClient{a.redis}, prefix)
		if err != nil {
			return err
		}
		a.setLocker(l)
	case xconf.LockEtcd:
		ec := a.cfg.Etcd
		cli, err := xetcd.NewClient(&xetcd.Config{
			Endpoints:   ec.Endpoints,
			Username:    ec.Username,
			Password:    ec.Password,
			DialTimeout: ec.DialTimeout,
		}, xetcd.WithHealthCheck(true, ec.DialTimeout))
		if err != nil {
			return err
		}
		a.onClose("etcd", func(context.Context) error { return cli.Close() })
		l, err := xdlock.NewEtcdLocker(cli.Raw(), prefix)
		if err != nil {
			return err
		}
		a.setLocker(l)
	default:
		a.setLocker(xdlock.NewLocalLocker(prefix))
	}
	return nil
}

func (a *App) setLocker(l xdlock.Locker) {
	a.locker = l
	a.onClose("lock", func(context.Context) error { return l.Close() })
}
