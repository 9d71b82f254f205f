package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/middleware"
	"drivehub/backend/internal/service"
	"drivehub/backend/internal/websocket"
)

// GroupHandler 处理群组相关的 HTTP 请求
type GroupHandler struct {
	groups *service.GroupService
	hub    *websocket.Hub // 可为 nil
	log    *zap.Logger
}

// NewGroupHandler 创建群组处理器
func NewGroupHandler(groups *service.GroupService, hub *websocket.Hub, log *zap.Logger) *GroupHandler {
	return &GroupHandler{
		groups: groups,
		hub:    hub,
		log:    log,
	}
}

type createGroupRequest struct {
	Path        string `json:"path" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type groupResponse struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Plan        string    `json:"plan"`
	NamespaceID string    `json:"namespaceId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Create 创建群组
//
// 同时创建群组命名空间，并把调用者设为管理员成员。
func (h *GroupHandler) Create(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	group, err := h.groups.Create(service.CreateGroupInput{
		Actor:       middleware.Actor(c),
		Path:        req.Path,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		switch err {
		case service.ErrNotAuthenticated:
			Unauthorized(c, GetErrorMessage(err))
		case service.ErrNamespaceAlreadyExists:
			Conflict(c, GetErrorMessage(err))
		case domain.ErrInvalidNamespacePath, domain.ErrNamespacePathTooShort,
			domain.ErrNamespacePathTooLong, domain.ErrGroupNameEmpty,
			domain.ErrGroupNameTooLong, domain.ErrDescriptionTooLong:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to create group", zap.Error(err))
			InternalError(c, MsgGroupCreateFailed)
		}
		return
	}

	if h.hub != nil {
		h.hub.NotifyGroupCreated(group)
	}

	Created(c, toGroupResponse(group))
}

// Delete 删除群组
//
// 仅群组管理员可删除，且要求群组没有生效中的付费订阅。
func (h *GroupHandler) Delete(c *gin.Context) {
	groupID := c.Param("id")

	// 删除前取一次命名空间，用于事后通知
	var namespaceID string
	if group, err := h.groups.Get(middleware.Actor(c), groupID); err == nil {
		namespaceID = group.NamespaceID
	}

	if err := h.groups.Delete(service.DeleteGroupInput{
		Actor:   middleware.Actor(c),
		GroupID: groupID,
	}); err != nil {
		switch err {
		case service.ErrNotAuthenticated:
			Unauthorized(c, GetErrorMessage(err))
		case service.ErrGroupNotFound:
			NotFound(c, GetErrorMessage(err))
		case service.ErrAdminRoleRequired:
			Forbidden(c, GetErrorMessage(err))
		case service.ErrSubscriptionIsActive:
			Conflict(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to delete group",
				zap.String("group_id", groupID),
				zap.Error(err))
			InternalError(c, MsgGroupDeleteFailed)
		}
		return
	}

	if h.hub != nil && namespaceID != "" {
		h.hub.NotifyGroupDeleted(namespaceID, groupID)
	}

	NoContent(c)
}

// Get 获取群组详情
func (h *GroupHandler) Get(c *gin.Context) {
	group, err := h.groups.Get(middleware.Actor(c), c.Param("id"))
	if err != nil {
		switch err {
		case service.ErrNotAuthenticated:
			Unauthorized(c, GetErrorMessage(err))
		case service.ErrGroupNotFound:
			NotFound(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to get group", zap.Error(err))
			InternalError(c, MsgInternalError)
		}
		return
	}

	Success(c, toGroupResponse(group))
}

// toGroupResponse 转换群组实体为响应体
func toGroupResponse(group *domain.Group) groupResponse {
	return groupResponse{
		ID:          group.ID,
		Path:        group.Path,
		Name:        group.Name,
		Description: group.Description,
		Plan:        string(group.Plan),
		NamespaceID: group.NamespaceID,
		CreatedAt:   group.CreatedAt,
	}
}
