package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskflow/api/handler"
	"github.com/fastygo/taskflow/internal/ai"
	"github.com/fastygo/taskflow/internal/config"
	"github.com/fastygo/taskflow/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/taskflow/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskflow/internal/infrastructure/redis"
	"github.com/fastygo/taskflow/internal/infrastructure/syncqueue"
	"github.com/fastygo/taskflow/internal/middleware"
	"github.com/fastygo/taskflow/internal/ratelimit"
	"github.com/fastygo/taskflow/internal/router"
	"github.com/fastygo/taskflow/internal/services"
	"github.com/fastygo/taskflow/internal/services/lifecycle"
	"github.com/fastygo/taskflow/pkg/httpcontext"
	"github.com/fastygo/taskflow/pkg/logger"
	"github.com/fastygo/taskflow/repository"
	"github.com/fastygo/taskflow/repository/postgres"
	redisRepo "github.com/fastygo/taskflow/repository/redis"
	assistUC "github.com/fastygo/taskflow/usecase/assist"
	identityUC "github.com/fastygo/taskflow/usecase/identity"
	taskUC "github.com/fastygo/taskflow/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Output:   cfg.Logger.Output,
		Fields:   map[string]string{"app": cfg.AppName, "env": cfg.Environment},
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, stop := manager.SignalContext(context.Background())
	defer stop()

	if err := pgInfra.RunMigrations(cfg.Migrations, cfg.Database.URL, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}

	var (
		sessionRepo repository.SessionRepository
		redisPinger monitor.Pinger
	)
	if redisClient != nil {
		manager.RegisterCloser("redis", redisClient)
		sessionRepo = redisRepo.NewSessionRepository(redisClient, cfg.Redis.SessionTTL)
		redisPinger = monitor.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	} else {
		zapLogger.Info("redis disabled, profiles sync on every request")
	}

	queue, err := syncqueue.Open(cfg.Sync.Path)
	if err != nil {
		zapLogger.Fatal("failed to open sync queue", zap.Error(err))
	}
	manager.RegisterCloser("sync_queue", queue)

	mon := monitor.New(pool, redisPinger, queue, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(context.Context) error {
		mon.Stop()
		return nil
	})

	userRepo := postgres.NewUserRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)

	profileSync := services.NewProfileSync(queue, mon, userRepo, zapLogger, services.SyncConfig{
		BatchSize:  cfg.Sync.BatchSize,
		MaxRetries: cfg.Sync.MaxRetry,
		Retention:  cfg.Sync.Retention,
	})

	limits := cfg.RateLimit
	suggestLimiter := ratelimit.New("ai-suggest", limits.Suggest.Requests, limits.Suggest.Window)
	imageLimiter := ratelimit.New("fal-image", limits.Image.Requests, limits.Image.Window)
	voiceLimiter := ratelimit.New("voice-to-text", limits.Voice.Requests, limits.Voice.Window)
	createLimiter := ratelimit.New("task-create", limits.TaskCreate.Requests, limits.TaskCreate.Window)

	scheduler := services.NewScheduler(zapLogger)
	if err := scheduler.Every("profile-sync", cfg.Sync.Interval, services.DrainJob(profileSync, zapLogger)); err != nil {
		zapLogger.Fatal("failed to schedule profile sync", zap.Error(err))
	}
	if err := scheduler.Every("ratelimit-sweep", limits.SweepInterval,
		services.SweepJob(zapLogger, suggestLimiter, imageLimiter, voiceLimiter, createLimiter)); err != nil {
		zapLogger.Fatal("failed to schedule limiter sweep", zap.Error(err))
	}
	scheduler.Start()
	manager.Register("scheduler", scheduler.Stop)

	suggester, err := ai.NewSuggester(cfg.Providers.OpenAIKey, cfg.Providers.OpenAIModel)
	if err != nil {
		zapLogger.Fatal("failed to create suggestion client", zap.Error(err))
	}
	outbound := &fasthttp.Client{
		Name:                cfg.AppName,
		MaxIdleConnDuration: time.Minute,
	}
	falClient := ai.NewFalClient(outbound, cfg.Providers.FalBaseURL, cfg.Providers.FalModel, cfg.Providers.FalKey)
	speechClient := ai.NewElevenLabsClient(outbound, cfg.Providers.ElevenLabsURL, cfg.Providers.ElevenLabsModel, cfg.Providers.ElevenLabsKey)

	identityUseCase := identityUC.New(userRepo, sessionRepo, profileSync, cfg.Redis.SessionTTL, zapLogger)
	taskUseCase := taskUC.New(taskRepo, zapLogger)
	assistUseCase := assistUC.New(suggester, falClient, speechClient, zapLogger)

	crudAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	upstreamAdapter := httpcontext.NewAdapter(cfg.Context.UpstreamTimeout)
	production := cfg.IsProduction()

	handlers := router.Handlers{
		Health:  apiHandler.NewHealthHandler(mon, crudAdapter, zapLogger),
		Profile: apiHandler.NewProfileHandler(identityUseCase, crudAdapter, zapLogger),
		Task:    apiHandler.NewTaskHandler(taskUseCase, createLimiter, crudAdapter, zapLogger, production),
		Assist: apiHandler.NewAssistHandler(assistUseCase, apiHandler.Limiters{
			Suggest: suggestLimiter,
			Image:   imageLimiter,
			Voice:   voiceLimiter,
		}, upstreamAdapter, zapLogger, production),
	}

	verifier, err := middleware.NewVerifier(cfg.Auth)
	if err != nil {
		zapLogger.Fatal("invalid auth configuration", zap.Error(err))
	}
	authMiddleware := middleware.JWTAuth(verifier, identityUseCase, crudAdapter, zapLogger)
	r := router.New(handlers, authMiddleware, zapLogger)

	server := &fasthttp.Server{
		Handler:            middleware.RequestLogger(zapLogger)(r.Handler),
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxBodySize,
		Name:               cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Error("server crashed", zap.Error(err))
			stop()
		}
	}()

	manager.Register("http_server", server.ShutdownWithContext)

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
