package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/emworks/ux-agent/internal/cache"
	"github.com/emworks/ux-agent/internal/config"
	"github.com/emworks/ux-agent/internal/repository"
	"github.com/emworks/ux-agent/internal/service"
	"github.com/emworks/ux-agent/internal/transport/rest"
	"github.com/emworks/ux-agent/internal/transport/ws"
)

// App wires the configured store, caches and services together.
type App struct {
	Config   *config.Config
	Registry *service.Registry
	Engine   *service.Engine
	Users    *service.UserService
	Rooms    *service.RoomService
	Hub      *ws.Hub

	closers []func() error
}

// New builds every component. Call Close when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	armCache, err := a.openArmCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	registry, err := service.NewRegistry(ctx, store)
	if err != nil {
		a.Close()
		return nil, err
	}

	roles, err := service.NewDefaultRoleClassifier()
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.AI.IsEnabled() {
		log.Printf("[App] Recommendations via %s", cfg.AI.Model)
	} else {
		log.Println("[App] GEMINI_API_KEY not set, using template recommendations")
	}

	a.Hub = ws.NewHub()
	a.Registry = registry
	a.Engine = service.NewEngine(
		registry,
		a.Hub,
		service.NewBanditSelector(armCache, cfg.BanditEpsilon),
		roles,
		service.NewRecommendationService(&cfg.AI),
		service.EngineOptions{BridgeTimeout: cfg.BridgeTimeout, Debug: cfg.Debug},
	)
	a.Users = service.NewUserService(registry)
	a.Rooms = service.NewRoomService(registry, a.Engine)
	return a, nil
}

// openStore opens the persistence adapter selected by STORE_DRIVER.
func (a *App) openStore(ctx context.Context) (repository.Store, error) {
	cfg := a.Config
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Println("[App] Using in-memory store, nothing will be persisted")
		return repository.NewMemoryStore(nil), nil

	case config.DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect to MongoDB: %w", err)
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			return nil, fmt.Errorf("ping MongoDB: %w", err)
		}
		log.Printf("[App] Connected to MongoDB database %s", cfg.MongoDatabase)
		return repository.NewMongoStore(client.Database(cfg.MongoDatabase)), nil

	case config.DriverSQLite:
		store, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		log.Printf("[App] Using SQLite store %s", cfg.SQLitePath)
		return store, nil

	default:
		log.Printf("[App] Using file store %s", cfg.StorePath)
		return repository.NewFileStore(cfg.StorePath), nil
	}
}

func (a *App) openArmCache(ctx context.Context) (cache.ArmCache, error) {
	if a.Config.RedisURI == "" {
		log.Println("[App] REDIS_URI not set, bandit state kept in memory")
		return cache.NewMemoryArmCache(), nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr()})
	a.closers = append(a.closers, rdb.Close)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("ping Redis: %w", err)
	}
	log.Println("[App] Connected to Redis")
	return cache.NewArmCache(rdb, a.Config.BanditTTL), nil
}

// Handler returns the HTTP router.
func (a *App) Handler() http.Handler {
	return rest.NewRouter(&rest.Container{
		UserService: a.Users,
		RoomService: a.Rooms,
		Engine:      a.Engine,
		WSHub:       a.Hub,
		CORS:        a.Config.CORS,
		Debug:       a.Config.Debug,
	})
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	if a.Hub != nil {
		a.Hub.Shutdown()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
