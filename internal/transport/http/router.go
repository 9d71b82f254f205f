package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "drivehub/backend/internal/auth/jwt"
	"drivehub/backend/internal/config"
	"drivehub/backend/internal/health"
	"drivehub/backend/internal/middleware"
	"drivehub/backend/internal/monitoring"
	"drivehub/backend/internal/service"
	"drivehub/backend/internal/storage"
	redisstore "drivehub/backend/internal/storage/redis"
	"drivehub/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config              *config.Config
	RegistrationService *service.RegistrationService
	GroupService        *service.GroupService
	ContactService      *service.ContactImportService
	JWTManager          *jwtpkg.Manager
	SessionCache        *redisstore.SessionCache // 可为 nil
	WebSocketHub        *websocket.Hub           // 可为 nil
	HealthChecker       *health.HealthChecker    // 可为 nil
	Metrics             *monitoring.Metrics      // 可为 nil
	Store               storage.Store
	Logger              *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router.Use(middleware.RecoveryHandler(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())

	// 全局请求体上限，导入端点另有更严格的业务上限
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	if deps.Metrics != nil {
		mon := middleware.NewMonitoringMiddleware(deps.Metrics, log)
		router.Use(mon.HTTPMetrics())
		router.Use(mon.BusinessMetrics())
		router.Use(mon.RateLimitMetrics())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins: deps.Config.CORS.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Session-Token"},
		ExposeHeaders: []string{
			"Content-Length",
			"X-Max-Body-Size",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	authHandler := NewAuthHandler(deps.RegistrationService, deps.JWTManager, deps.SessionCache, log)
	userHandler := NewUserHandler(deps.Store, log)
	groupHandler := NewGroupHandler(deps.GroupService, deps.WebSocketHub, log)
	contactHandler := NewContactHandler(deps.ContactService, deps.WebSocketHub, deps.Metrics, log)

	authn := middleware.NewAuth(deps.Store, deps.JWTManager, deps.SessionCache, log)
	rateLimiter := middleware.NewRateLimiter(deps.Config.RateLimit.RequestsPerSecond, deps.Config.RateLimit.Burst, log)

	// 健康检查
	if deps.HealthChecker != nil {
		router.GET("/live", gin.WrapH(deps.HealthChecker.Handler()))
		router.GET("/ready", gin.WrapH(deps.HealthChecker.Handler()))
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		{
			// 注册端点带可选认证：服务层据此拒绝已登录的调用者
			authRoutes.POST("/register", rateLimiter.Limit(), authn.OptionalUser(), authHandler.Register)
			authRoutes.POST("/register/complete", rateLimiter.Limit(), authn.OptionalUser(), authHandler.CompleteRegistration)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.GET("/me", authn.RequireUser(), authHandler.Me)
			authRoutes.GET("/sessions", authn.RequireUser(), userHandler.Sessions)
		}

		// ========== User Routes ==========
		userRoutes := v1.Group("/users")
		userRoutes.Use(authn.RequireUser())
		{
			userRoutes.GET("/:username", userHandler.GetByUsername)
		}

		// ========== Group Routes ==========
		groupRoutes := v1.Group("/groups")
		groupRoutes.Use(authn.RequireUser())
		{
			groupRoutes.POST("", groupHandler.Create)
			groupRoutes.GET("/:id", groupHandler.Get)
			groupRoutes.DELETE("/:id", groupHandler.Delete)
		}

		// ========== Contact Routes ==========
		namespaceRoutes := v1.Group("/namespaces")
		namespaceRoutes.Use(authn.RequireUser())
		{
			importLimit := deps.Config.Contacts.MaxCSVBytes + 1024 // 业务上限另行校验
			namespaceRoutes.POST("/:id/contacts/import",
				rateLimiter.Limit(),
				middleware.BodySizeLimit(importLimit),
				contactHandler.Import)
		}

		// ========== WebSocket Routes ==========
		if deps.WebSocketHub != nil {
			v1.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
		}
	}

	return router
}
