package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-hotel/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-hotel/internal/alerts"
	"github.com/odyssey-erp/odyssey-hotel/internal/app"
	"github.com/odyssey-erp/odyssey-hotel/internal/changefeed"
	"github.com/odyssey-erp/odyssey-hotel/internal/connectivity"
	"github.com/odyssey-erp/odyssey-hotel/internal/inventory"
	"github.com/odyssey-erp/odyssey-hotel/internal/observability"
	"github.com/odyssey-erp/odyssey-hotel/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-hotel/internal/platform/db"
	"github.com/odyssey-erp/odyssey-hotel/internal/preferences"
	"github.com/odyssey-erp/odyssey-hotel/internal/rbac"
	"github.com/odyssey-erp/odyssey-hotel/internal/realtime"
	"github.com/odyssey-erp/odyssey-hotel/internal/recipes"
	"github.com/odyssey-erp/odyssey-hotel/internal/shared"
	"github.com/odyssey-erp/odyssey-hotel/internal/sound"
	"github.com/odyssey-erp/odyssey-hotel/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobs(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// backend is the storage selected by STORE_DRIVER.
type backend struct {
	pool        *pgxpool.Pool
	items       inventory.RepositoryPort
	recipes     recipes.IngredientSource
	audit       inventory.AuditPort
	idempotency recipes.IdempotencyPort
}

func openBackend(ctx context.Context, cfg *app.Config, logger *slog.Logger) (backend, error) {
	if cfg.StoreDriver == app.StoreDriverMemory {
		var seed app.Seed
		if cfg.SeedFile != "" {
			loaded, err := app.LoadSeed(cfg.SeedFile)
			if err != nil {
				return backend{}, err
			}
			seed = loaded
		}
		recipeRepo := recipes.NewMemoryRepository()
		for id, reqs := range seed.Recipes {
			recipeRepo.Put(id, reqs)
		}
		logger.Info("using memory store", slog.Int("items", len(seed.Items)), slog.Int("recipes", len(seed.Recipes)))
		return backend{
			items:   inventory.NewMemoryStore(seed.Items...),
			recipes: recipeRepo,
			audit:   shared.NewMemoryAuditLog(0),
		}, nil
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return backend{}, fmt.Errorf("connect postgres: %w", err)
	}
	return backend{
		pool:        pool,
		items:       inventory.NewRepository(pool),
		recipes:     recipes.NewRepository(pool),
		audit:       shared.NewAuditLogger(pool),
		idempotency: shared.NewIdempotencyStore(pool),
	}, nil
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()
	pipeline := observability.NewPipeline(metrics.Registerer())

	store, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if store.pool != nil {
		defer store.pool.Close()
	}

	var redisClient *redis.Client
	if cfg.UsesRedis() || store.idempotency == nil {
		redisClient, err = cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		switch {
		case err == nil:
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
		case cfg.UsesRedis():
			return fmt.Errorf("connect redis: %w", err)
		default:
			logger.Warn("redis unavailable, deductions run without idempotency keys", slog.Any("error", err))
			redisClient = nil
		}
	}
	if store.idempotency == nil && redisClient != nil {
		store.idempotency = shared.NewRedisIdempotencyStore(redisClient, cfg.IdempotencyRetention)
	}

	var (
		listener  changefeed.Listener
		publisher changefeed.Publisher
	)
	switch cfg.ChangeFeed {
	case app.ChangeFeedPostgres:
		feed := changefeed.NewPostgresFeed(store.pool, cfg.ChangeFeedChannel, logger)
		if err := feed.BindTrigger(ctx); err != nil {
			return fmt.Errorf("bind change trigger: %w", err)
		}
		listener = feed
	case app.ChangeFeedRedis:
		feed := changefeed.NewRedisFeed(redisClient, cfg.ChangeFeedChannel, logger)
		listener, publisher = feed, feed
	default:
		feed := changefeed.NewMemoryFeed(cfg.EventQueueSize)
		listener, publisher = feed, feed
	}

	inventoryService := inventory.NewService(store.items, store.audit, inventory.ServiceConfig{Publisher: publisher, Logger: logger})
	inventoryCache := inventory.NewCache(store.items, inventory.CacheConfig{
		QueueSize: cfg.EventQueueSize,
		Logger:    logger,
		Metrics:   pipeline,
	})

	var (
		hub          *realtime.Hub
		alertService *alerts.Service
		monitor      *connectivity.Monitor
		player       *sound.Manager
	)
	hub = realtime.NewHub(realtime.HubConfig{
		Logger:         logger,
		AllowedOrigins: cfg.WSAllowedOrigins,
		OnConnect: func(id shared.Identity) {
			sess := alertService.Session(id.SessionID, rbac.ParseRole(id.Role))
			hub.PushView(id.SessionID, sess.View())
			hub.SendTo(id.SessionID, realtime.Frame{Type: realtime.FrameConnectivity, Data: monitor.Status()})
		},
		OnMessage: func(id shared.Identity, msg realtime.Message) {
			switch msg.Type {
			case "dismiss":
				sess := alertService.Session(id.SessionID, rbac.ParseRole(id.Role))
				alertService.Dismiss(sess, msg.ItemID)
			case "online":
				monitor.TriggerOnline()
			case "resume":
				if err := player.Resume(ctx); err != nil {
					logger.Warn("resume sound device", slog.Any("error", err))
				}
			case "sound":
				if !rbac.ResolveName(id.Role).CanManage {
					return
				}
				if msg.Enabled != nil {
					player.SetEnabled(*msg.Enabled)
				}
				if msg.Volume != nil {
					player.SetVolume(*msg.Volume)
				}
			case "sound-test":
				if rbac.ResolveName(id.Role).CanManage {
					player.PlaySequence(ctx, []sound.Kind{sound.KindCritical, sound.KindWarning, sound.KindInfo, sound.KindSuccess}, 400*time.Millisecond, id.SessionID)
				}
			default:
				logger.Debug("ignoring client message", slog.String("type", msg.Type))
			}
		},
	})

	player = sound.NewManager(func(context.Context) (sound.Device, error) {
		return sound.Multi{sound.NewLogDevice(logger), realtime.NewSoundDevice(hub)}, nil
	}, sound.Config{
		Enabled: cfg.SoundEnabled,
		Volume:  cfg.SoundVolume,
		Logger:  logger,
		Metrics: pipeline,
	})

	alertService = alerts.NewService(inventoryCache, alerts.ServiceConfig{
		Preferences: preferences.NewStore(),
		Notifier:    hub,
		Player:      player,
		Logger:      logger,
		Metrics:     pipeline,
	})

	checker := recipes.NewChecker(inventoryCache, inventoryService, recipes.CheckerConfig{
		Idempotency: store.idempotency,
		Announcer:   alertService,
		Logger:      logger,
	})

	probe := connectivity.NewHTTPProbe(&http.Client{}, cfg.StoreHealthURL, cfg.StoreBaseURL, cfg.ProbeTimeout)
	monitor = connectivity.NewMonitor(probe, connectivity.MonitorConfig{
		Interval: cfg.ProbeInterval,
		Logger:   logger,
		Metrics:  pipeline,
	})
	monitor.OnChange(func(status connectivity.Status) {
		hub.Broadcast(realtime.Frame{Type: realtime.FrameConnectivity, Data: status})
		if status.Connected {
			inventoryCache.Enqueue(changefeed.RefreshEvent())
			alertService.Cue(sound.KindInfo)
		}
	})

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	inspector := asynq.NewInspector(redisOpts)
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	rbacMiddleware := rbac.Middleware{Logger: logger}
	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		RBACMiddleware:      rbacMiddleware,
		InventoryHandler:    inventory.NewHandler(logger, inventoryService, inventoryCache, rbacMiddleware),
		AlertsHandler:       alerts.NewHandler(logger, alertService),
		RecipesHandler:      recipes.NewHandler(logger, checker, store.recipes, rbacMiddleware),
		ConnectivityHandler: connectivity.NewHandler(monitor),
		JobHandler:          jobs.NewHandler(inspector, jobClient, logger),
		Realtime:            hub,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listener.Listen(gctx, func(evt changefeed.Event) {
			inventoryCache.Enqueue(evt)
		})
	})
	g.Go(func() error { return inventoryCache.Run(gctx) })
	g.Go(func() error { return alertService.Run(gctx) })
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", slog.Any("error", err))
		}
		hub.Close()
		player.Wait()
		if err := player.Close(); err != nil {
			logger.Warn("close sound device", slog.Any("error", err))
		}
		return nil
	})
	return g.Wait()
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	c := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}, cfg.IdempotencyRetention)
	defer c.Close()

	if len(args) == 0 {
		return errors.New("usage: odyssey jobs trigger <job> [arg] | odyssey jobs stats")
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("usage: odyssey jobs trigger <job> [arg]")
		}
		arg := ""
		if len(args) > 2 {
			arg = args[2]
		}
		info, err := c.Trigger(ctx, args[1], arg)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	default:
		return fmt.Errorf("unknown jobs command %q", args[0])
	}
}
