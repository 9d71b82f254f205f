package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	jwtpkg "drivehub/backend/internal/auth/jwt"
	"drivehub/backend/internal/config"
	"drivehub/backend/internal/health"
	"drivehub/backend/internal/logger"
	"drivehub/backend/internal/monitoring"
	"drivehub/backend/internal/pool"
	"drivehub/backend/internal/service"
	"drivehub/backend/internal/storage"
	"drivehub/backend/internal/storage/memory"
	redisstore "drivehub/backend/internal/storage/redis"
	sqlstore "drivehub/backend/internal/storage/sql"
	httptransport "drivehub/backend/internal/transport/http"
	"drivehub/backend/internal/websocket"
)

// main 启动 DriveHub API 服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting drivehub server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		sqlStore, err := sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		store = sqlStore
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}

	// Redis 会话缓存（可选）
	var redisClient *redisstore.Client
	var sessionCache *redisstore.SessionCache
	if cfg.Redis.Address != "" {
		redisClient, err = redisstore.New(&cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, continuing without session cache", zap.Error(err))
		} else {
			sessionCache = redisstore.NewSessionCache(redisClient, cfg.Redis.SessionTTL)
			log.Info("redis session cache initialized",
				zap.String("address", cfg.Redis.Address),
				zap.Duration("ttl", cfg.Redis.SessionTTL),
			)
		}
	}

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(store, redisClient, log)

	// 初始化服务层
	namespaceRegistry := service.NewNamespaceRegistry()
	registrationService := service.NewRegistrationService(store, namespaceRegistry, cfg, log)
	groupService := service.NewGroupService(store, namespaceRegistry, log)
	contactService := service.NewContactImportService(store, cfg, log)

	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	log.Info("JWT configuration",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.Duration("access_expiry", cfg.JWT.AccessExpiry),
		zap.Duration("refresh_expiry", cfg.JWT.RefreshExpiry),
	)

	// WebSocket Hub 与广播协程池
	broadcastPool := pool.NewWorkerPool(8, 1024)
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, jwtManager, store, broadcastPool, log)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:              cfg,
		RegistrationService: registrationService,
		GroupService:        groupService,
		ContactService:      contactService,
		JWTManager:          jwtManager,
		SessionCache:        sessionCache,
		WebSocketHub:        wsHub,
		HealthChecker:       healthChecker,
		Metrics:             metrics,
		Store:               store,
		Logger:              log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		broadcastPool.Start(groupCtx)
		wsHub.Run(groupCtx)
		return nil
	})

	// WebSocket 连接数指标 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				metrics.UpdateWebSocketClients(wsHub.ClientCount())
			}
		}
	})

	// 定期健康巡检 goroutine
	group.Go(func() error {
		healthChecker.StartPeriodicCheck(groupCtx.Done(), 30*time.Second)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				log.Warn("redis close warning", zap.Error(err))
			}
		}
		if err := store.Close(); err != nil {
			log.Warn("storage close warning", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
