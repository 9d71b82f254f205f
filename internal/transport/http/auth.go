package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "drivehub/backend/internal/auth/jwt"
	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/middleware"
	"drivehub/backend/internal/service"
	redisstore "drivehub/backend/internal/storage/redis"
)

// AuthHandler 处理注册与认证相关的 HTTP 请求
type AuthHandler struct {
	registration *service.RegistrationService
	jwtManager   *jwtpkg.Manager
	sessions     *redisstore.SessionCache // 可为 nil
	log          *zap.Logger
}

// NewAuthHandler 创建新的认证处理器实例
func NewAuthHandler(registration *service.RegistrationService, jwtManager *jwtpkg.Manager, sessions *redisstore.SessionCache, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		registration: registration,
		jwtManager:   jwtManager,
		sessions:     sessions,
		log:          log,
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
}

type registerResponse struct {
	PendingUserID string `json:"pendingUserId"`
	CreatedAt     string `json:"createdAt"`
}

type completeRegistrationRequest struct {
	PendingUserID string `json:"pendingUserId" binding:"required"`
	Code          string `json:"code" binding:"required"`
}

type completeRegistrationResponse struct {
	User         userResponse `json:"user"`
	SessionToken string       `json:"sessionToken"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	IsAdmin     bool      `json:"isAdmin"`
	Plan        string    `json:"plan"`
	NamespaceID string    `json:"namespaceId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Register 发起注册
//
// 创建待验证的注册记录；验证码经由邮件送达，这里只返回记录
// 标识。已登录用户调用会被拒绝。
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	out, err := h.registration.StartRegistration(service.StartRegistrationInput{
		Actor:    middleware.Actor(c),
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		switch err {
		case service.ErrMustNotBeAuthenticated:
			Forbidden(c, GetErrorMessage(err))
		case domain.ErrInvalidNamespacePath, domain.ErrNamespacePathTooShort,
			domain.ErrNamespacePathTooLong, domain.ErrInvalidEmail, domain.ErrEmailTooLong:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to start registration", zap.Error(err))
			InternalError(c, MsgRegistrationStartFailed)
		}
		return
	}

	h.log.Info("registration started",
		zap.String("pending_user_id", out.PendingUser.ID),
	)

	Created(c, registerResponse{
		PendingUserID: out.PendingUser.ID,
		CreatedAt:     out.PendingUser.CreatedAt.Format(time.RFC3339),
	})
}

// CompleteRegistration 完成注册
//
// 校验验证码并原子化地创建用户、个人命名空间与会话，返回
// 会话凭证和 JWT 令牌对。
func (h *AuthHandler) CompleteRegistration(c *gin.Context) {
	var req completeRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	out, err := h.registration.CompleteRegistration(service.CompleteRegistrationInput{
		Actor:         middleware.Actor(c),
		PendingUserID: req.PendingUserID,
		Code:          req.Code,
	})
	if err != nil {
		switch err {
		case service.ErrMustNotBeAuthenticated:
			Forbidden(c, GetErrorMessage(err))
		case service.ErrRegistrationNotFound:
			NotFound(c, GetErrorMessage(err))
		case service.ErrMaxRegistrationAttempts, service.ErrRegistrationCodeExpired:
			Forbidden(c, GetErrorMessage(err))
		case service.ErrInvalidRegistrationCode:
			Unauthorized(c, GetErrorMessage(err))
		case service.ErrEmailAlreadyExists, service.ErrUsernameAlreadyExists:
			Conflict(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to complete registration", zap.Error(err))
			InternalError(c, MsgRegistrationCompleteFailed)
		}
		return
	}

	// 缓存失败不影响注册结果
	if h.sessions != nil {
		if err := h.sessions.Put(c.Request.Context(), out.Session); err != nil {
			h.log.Warn("failed to cache session", zap.Error(err))
		}
	}

	tokens, err := h.jwtManager.GenerateTokenPair(out.User.ID, out.User.Username, string(out.User.Plan))
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		InternalError(c, MsgRegistrationCompleteFailed)
		return
	}

	h.log.Info("registration completed",
		zap.String("user_id", out.User.ID),
		zap.String("username", out.User.Username),
	)

	Created(c, completeRegistrationResponse{
		User:         toUserResponse(out.User),
		SessionToken: out.SessionToken,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh 刷新访问令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	accessToken, err := h.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		switch err {
		case jwtpkg.ErrInvalidToken:
			Unauthorized(c, MsgTokenInvalid)
		case jwtpkg.ErrExpiredToken:
			Unauthorized(c, MsgTokenExpired)
		default:
			h.log.Error("failed to refresh token", zap.Error(err))
			InternalError(c, MsgInternalError)
		}
		return
	}

	Success(c, gin.H{
		"accessToken": accessToken,
		"expiresIn":   int64(15 * 60), // 15 分钟
	})
}

// Me 获取当前用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.Actor(c)
	if user == nil {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	Success(c, toUserResponse(user))
}

// toUserResponse 转换用户实体为响应体
func toUserResponse(user *domain.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Name:        user.Name,
		IsAdmin:     user.IsAdmin,
		Plan:        string(user.Plan),
		NamespaceID: user.NamespaceID,
		CreatedAt:   user.CreatedAt,
	}
}
