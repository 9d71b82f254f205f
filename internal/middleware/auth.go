package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"drivehub/backend/internal/auth"
	jwtpkg "drivehub/backend/internal/auth/jwt"
	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/storage"
	redisstore "drivehub/backend/internal/storage/redis"
)

// ActorKey 上下文中当前用户的键名
const ActorKey = "actor"

// Auth 认证中间件：把请求凭证解析为具体的用户实体
//
// 支持两种凭证：
//   - Authorization: Bearer <JWT>
//   - X-Session-Token: <sessionID>:<token>（会话凭证，优先查 Redis 缓存）
type Auth struct {
	store      storage.Store
	jwtManager *jwtpkg.Manager
	sessions   *redisstore.SessionCache // 可为 nil（未启用 Redis 时）
	log        *zap.Logger
}

// NewAuth 创建认证中间件
func NewAuth(store storage.Store, jwtManager *jwtpkg.Manager, sessions *redisstore.SessionCache, log *zap.Logger) *Auth {
	return &Auth{
		store:      store,
		jwtManager: jwtManager,
		sessions:   sessions,
		log:        log,
	}
}

// RequireUser 要求已认证用户，并把用户实体注入上下文
func (a *Auth) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := a.resolveActor(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		if user.BlockedAt != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "account blocked"})
			c.Abort()
			return
		}

		c.Set(ActorKey, user)
		c.Set("userID", user.ID)
		c.Next()
	}
}

// OptionalUser 可选认证：凭证有效则注入用户，无凭证直接放行
//
// 注册相关端点依赖它来区分"未登录"与"已登录"两种调用方。
func (a *Auth) OptionalUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := a.resolveActor(c)
		if err == nil && user.BlockedAt == nil {
			c.Set(ActorKey, user)
			c.Set("userID", user.ID)
		}
		c.Next()
	}
}

// RequireAdmin 要求平台管理员，须跟在 RequireUser 之后
func (a *Auth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := Actor(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		if !user.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// Actor 从上下文取出当前用户，未认证返回 nil
func Actor(c *gin.Context) *domain.User {
	val, exists := c.Get(ActorKey)
	if !exists {
		return nil
	}
	user, ok := val.(*domain.User)
	if !ok {
		return nil
	}
	return user
}

// resolveActor 按凭证类型解析当前用户
func (a *Auth) resolveActor(c *gin.Context) (*domain.User, error) {
	if credentials := c.GetHeader("X-Session-Token"); credentials != "" {
		return a.resolveSession(c, credentials)
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return a.resolveJWT(c, parts[1])
		}
	}

	// cookie 兜底，便于浏览器端直连
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return a.resolveJWT(c, token)
	}

	return nil, jwtpkg.ErrInvalidToken
}

// resolveJWT 校验访问令牌并加载用户
func (a *Auth) resolveJWT(c *gin.Context, token string) (*domain.User, error) {
	claims, err := a.jwtManager.ValidateToken(token)
	if err != nil {
		a.log.Warn("invalid access token",
			zap.String("error", err.Error()),
			zap.String("ip", c.ClientIP()),
		)
		return nil, err
	}

	user, err := a.store.GetUserByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// resolveSession 校验会话凭证并加载用户
//
// 会话优先从 Redis 读取；未命中时回源数据库并回填缓存，
// 缓存故障只降级不拒绝。
func (a *Auth) resolveSession(c *gin.Context, credentials string) (*domain.User, error) {
	sessionID, token, err := auth.DecodeSessionCredentials(credentials)
	if err != nil {
		return nil, err
	}

	var session *domain.Session
	if a.sessions != nil {
		if cached, err := a.sessions.Get(c.Request.Context(), sessionID); err == nil {
			session = cached
		}
	}
	if session == nil {
		session, err = a.store.GetSessionByID(sessionID)
		if err != nil {
			return nil, err
		}
		if a.sessions != nil {
			if err := a.sessions.Put(c.Request.Context(), session); err != nil {
				a.log.Warn("failed to cache session", zap.Error(err))
			}
		}
	}

	if !auth.CheckSessionToken(token, session.TokenHash) {
		a.log.Warn("session token mismatch",
			zap.String("session_id", sessionID),
			zap.String("ip", c.ClientIP()),
		)
		return nil, auth.ErrInvalidSessionToken
	}

	return a.store.GetUserByID(session.UserID)
}
