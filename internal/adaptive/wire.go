package adaptive

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/skilltune/internal/bkt"
	"github.com/abhisek/skilltune/internal/cache"
	"github.com/abhisek/skilltune/internal/config"
	"github.com/abhisek/skilltune/internal/difficulty"
	"github.com/abhisek/skilltune/internal/knowledge"
	"github.com/abhisek/skilltune/internal/logging"
	"github.com/abhisek/skilltune/internal/performance"
	"github.com/abhisek/skilltune/internal/remote"
	"github.com/abhisek/skilltune/internal/store"
	"github.com/abhisek/skilltune/internal/syncer"
)

// Redis cache settings.
const (
	redisPrefix = "skilltune:knowledge:"
	redisTTL    = 24 * time.Hour
)

// syncDebounce lets a burst of failed writes share one sync pass.
const syncDebounce = 250 * time.Millisecond

// Deps are the collaborators New cannot build from configuration alone.
type Deps struct {
	Logger *logrus.Logger

	// Store is the durable offline cache. Nil keeps everything in memory.
	Store *store.Store

	// API replaces the HTTP client built from config.APIBaseURL.
	API remote.API

	// Encourager writes messages for struggling students. Nil disables them.
	Encourager difficulty.Encourager
}

// New builds the service selected by cfg.Mode.
func New(ctx context.Context, cfg config.Config, deps Deps) (DifficultyService, error) {
	policy, err := difficulty.ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	log := logging.OrDiscard(deps.Logger).WithField("mode", cfg.Mode)
	controller := difficulty.NewController(policy)

	kopts := []knowledge.Option{
		knowledge.WithLogger(log.WithField("component", "knowledge")),
		knowledge.WithTimeout(cfg.RemoteTimeout),
	}
	popts := []performance.StoreOption{
		performance.WithLogger(log.WithField("component", "performance")),
	}
	if deps.Store != nil {
		kopts = append(kopts, knowledge.WithDurable(deps.Store))
		popts = append(popts, performance.WithDurable(deps.Store))
	}

	var closers []func() error
	if cfg.RedisURL != "" {
		client, err := cache.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("redis unavailable; continuing without the shared cache")
		} else {
			kopts = append(kopts, knowledge.WithRedis(cache.NewRedisJSON[bkt.KnowledgeState](client, redisPrefix, redisTTL)))
			closers = append(closers, client.Close)
		}
	}

	switch cfg.Mode {
	case config.ModeLocal:
		kstore := knowledge.NewStore(kopts...)
		pstore := performance.NewStore(popts...)
		log.Info("difficulty service started")
		return &LocalOnlyService{
			engine:     newEngine(kstore, pstore, controller, deps.Encourager, log),
			kstore:     kstore,
			closeExtra: closers,
		}, nil

	case config.ModeRemote:
		api := deps.API
		if api == nil {
			client, err := remote.NewClient(cfg.APIBaseURL, remote.WithTimeout(cfg.RemoteTimeout))
			if err != nil {
				return nil, err
			}
			api = client
		}
		api = remote.WithLogging(api, log.WithField("component", "remote"))

		svc := &RemoteBackedService{api: api, closeExtra: closers}
		if deps.Store != nil {
			retry := remote.RetryConfig{
				MaxAttempts: cfg.Sync.MaxAttempts,
				InitialWait: cfg.Sync.InitialWait,
				MaxWait:     cfg.Sync.MaxWait,
				Multiplier:  cfg.Sync.Multiplier,
			}
			svc.sync = syncer.New(deps.Store, remote.WithRetry(api, retry),
				syncer.WithLogger(log.WithField("component", "sync")),
				syncer.WithDebounce(syncDebounce),
			)
			kopts = append(kopts, knowledge.WithSyncer(svc.sync))

			syncCtx, cancel := context.WithCancel(context.Background())
			svc.stopSync = cancel
			svc.sync.Start(syncCtx, cfg.SyncOnStart)
		}

		svc.kstore = knowledge.NewStore(append(kopts, knowledge.WithRemote(api))...)
		pstore := performance.NewStore(append(popts, performance.WithRemote(api))...)
		svc.engine = newEngine(svc.kstore, pstore, controller, deps.Encourager, log)
		log.WithField("api", cfg.APIBaseURL).Info("difficulty service started")
		return svc, nil
	}
	return nil, fmt.Errorf("unknown mode: %q", cfg.Mode)
}
