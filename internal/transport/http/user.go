package httptransport

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"drivehub/backend/internal/middleware"
	"drivehub/backend/internal/storage"
)

// UserHandler 处理用户资料与会话查询
type UserHandler struct {
	store storage.Store
	log   *zap.Logger
}

// NewUserHandler 创建新的用户处理器实例
func NewUserHandler(store storage.Store, log *zap.Logger) *UserHandler {
	return &UserHandler{
		store: store,
		log:   log,
	}
}

// publicUserResponse 是对其他用户可见的公开资料
type publicUserResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type listSessionsResponse struct {
	Items []sessionResponse `json:"items"`
	Count int               `json:"count"`
}

// GetByUsername 按用户名查询公开资料
//
// 邮箱、计费方案等私有字段不出现在响应中。
func (h *UserHandler) GetByUsername(c *gin.Context) {
	username := strings.ToLower(strings.TrimSpace(c.Param("username")))

	user, err := h.store.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			NotFound(c, MsgUserNotFound)
			return
		}
		h.log.Error("failed to get user by username",
			zap.String("username", username),
			zap.Error(err))
		InternalError(c, MsgUserGetFailed)
		return
	}

	Success(c, publicUserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Name:        user.Name,
		Description: user.Description,
		CreatedAt:   user.CreatedAt,
	})
}

// Sessions 列出当前用户的全部会话
func (h *UserHandler) Sessions(c *gin.Context) {
	actor := middleware.Actor(c)
	if actor == nil {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	sessions, err := h.store.ListSessionsByUserID(actor.ID)
	if err != nil {
		h.log.Error("failed to list sessions",
			zap.String("user_id", actor.ID),
			zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	items := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, sessionResponse{
			ID:        session.ID,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		})
	}

	Success(c, listSessionsResponse{
		Items: items,
		Count: len(items),
	})
}
