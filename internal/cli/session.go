package cli

import (
	"context"
	"database/sql"
	"time"

	"github.com/RicardoMLopes/wsh/common/database"
	"github.com/RicardoMLopes/wsh/common/logger"
	commonredis "github.com/RicardoMLopes/wsh/common/redis"
	"github.com/RicardoMLopes/wsh/internal/config"
	"github.com/RicardoMLopes/wsh/internal/events"
	"github.com/RicardoMLopes/wsh/internal/repository"
	"github.com/RicardoMLopes/wsh/internal/service"
	"github.com/RicardoMLopes/wsh/internal/store"

	"go.uber.org/zap"
)

// session database handle and service for one command run
type session struct {
	db      *sql.DB
	dialect repository.Dialect
	svc     service.PutawayService
	redis   *commonredis.Client
	logger  *zap.Logger
}

func (o *RootOptions) loadConfig() *config.Config {
	cfg := config.Load()
	if o.Driver != "" {
		cfg.Database.Driver = o.Driver
	}
	if o.SQLitePath != "" {
		cfg.Database.SQLitePath = o.SQLitePath
	}
	return cfg
}

func (o *RootOptions) newLogger() *zap.Logger {
	if !o.Verbose {
		return zap.NewNop()
	}
	l, err := logger.NewLogger("debug", "console", "wsh-putawayctl")
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// openSession connects and, unless migrate is false, applies the schema first
func (o *RootOptions) openSession(ctx context.Context, migrate bool) (*session, error) {
	cfg := o.loadConfig()
	d, err := repository.DialectFor(cfg.Database.Driver)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --driver", err)
	}
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	if migrate {
		if err := repository.Migrate(ctx, db, d); err != nil {
			_ = db.Close()
			return nil, WrapExitError(ExitCommandError, "failed to migrate", err)
		}
	}

	log := o.newLogger()
	lockTimeout := time.Duration(cfg.Database.LockTimeoutMS) * time.Millisecond
	repo := repository.NewPutawayRepository(db, d, lockTimeout, log)
	opts := service.Options{AcquireAttempts: cfg.Putaway.AcquireAttempts}
	sess := &session{db: db, dialect: d, logger: log}

	// writes made here must evict what the server cached
	if cfg.RedisEnabled {
		client, err := commonredis.Connect(ctx, &cfg.Redis)
		if err != nil {
			log.Warn("Redis enabled but unreachable, cached snapshots may stay stale until they expire", zap.Error(err))
		} else {
			sess.redis = client
			opts.Cache = store.NewAggregateCache(store.NewRedisKV(client), cfg.Putaway.CachePrefix, cfg.Putaway.CacheTTL)
			opts.Publisher = events.NewRedisStreamPublisher(client, cfg.Putaway.EventStream)
		}
	}
	sess.svc = service.NewPutawayService(repo, opts, log)
	return sess, nil
}

func (s *session) Close() {
	_ = s.logger.Sync()
	if s.redis != nil {
		_ = s.redis.Close()
	}
	_ = database.Close(s.db)
}
