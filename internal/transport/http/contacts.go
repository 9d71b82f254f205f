package httptransport

import (
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/middleware"
	"drivehub/backend/internal/monitoring"
	"drivehub/backend/internal/service"
	"drivehub/backend/internal/storage"
	"drivehub/backend/internal/websocket"
)

// ContactHandler 处理联系人导入相关的 HTTP 请求
type ContactHandler struct {
	contacts *service.ContactImportService
	hub      *websocket.Hub      // 可为 nil
	metrics  *monitoring.Metrics // 可为 nil
	log      *zap.Logger
}

// NewContactHandler 创建联系人处理器
func NewContactHandler(contacts *service.ContactImportService, hub *websocket.Hub, metrics *monitoring.Metrics, log *zap.Logger) *ContactHandler {
	return &ContactHandler{
		contacts: contacts,
		hub:      hub,
		metrics:  metrics,
		log:      log,
	}
}

type contactResponse struct {
	ID          string    `json:"id"`
	NamespaceID string    `json:"namespaceId"`
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type importContactsResponse struct {
	Items []contactResponse `json:"items"`
	Count int               `json:"count"`
}

// Import 批量导入联系人
//
// 请求体为原始 CSV（每行 name,email），可选 listId 查询参数把
// 导入结果关联到已有邮件列表。整个导入要么全部生效要么全部
// 失败。
func (h *ContactHandler) Import(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		PayloadTooLarge(c, MsgContactsReadFailed)
		return
	}
	if len(payload) == 0 {
		BadRequest(c, MsgRequestBodyEmpty)
		return
	}

	var listID *string
	if raw := c.Query("listId"); raw != "" {
		listID = &raw
	}

	contacts, err := h.contacts.Import(service.ImportContactsInput{
		Actor:       middleware.Actor(c),
		NamespaceID: c.Param("id"),
		ListID:      listID,
		Payload:     payload,
	})
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordContactImportRejected()
		}
		switch {
		case errors.Is(err, service.ErrNotAuthenticated):
			Unauthorized(c, GetErrorMessage(service.ErrNotAuthenticated))
		case errors.Is(err, service.ErrPermissionDenied):
			Forbidden(c, GetErrorMessage(service.ErrPermissionDenied))
		case errors.Is(err, storage.ErrNamespaceNotFound):
			NotFound(c, GetErrorMessage(storage.ErrNamespaceNotFound))
		case errors.Is(err, service.ErrContactsCSVTooLarge):
			PayloadTooLarge(c, GetErrorMessage(service.ErrContactsCSVTooLarge))
		case errors.Is(err, service.ErrListNotFound):
			NotFound(c, GetErrorMessage(service.ErrListNotFound))
		case errors.Is(err, service.ErrContactsCSVInvalid):
			UnprocessableEntity(c, GetErrorMessage(service.ErrContactsCSVInvalid))
		case errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, domain.ErrEmailTooLong),
			errors.Is(err, domain.ErrInvalidContactName), errors.Is(err, domain.ErrContactNameTooLong):
			UnprocessableEntity(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to import contacts",
				zap.String("namespace_id", c.Param("id")),
				zap.Error(err))
			InternalError(c, MsgContactsImportFailed)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordContactsImported(len(contacts), int64(len(payload)))
	}
	if h.hub != nil {
		h.hub.NotifyContactsImported(c.Param("id"), len(contacts), listID)
	}

	items := make([]contactResponse, 0, len(contacts))
	for i := range contacts {
		items = append(items, toContactResponse(&contacts[i]))
	}

	Success(c, importContactsResponse{
		Items: items,
		Count: len(items),
	})
}

// toContactResponse 转换联系人实体为响应体
func toContactResponse(contact *domain.Contact) contactResponse {
	return contactResponse{
		ID:          contact.ID,
		NamespaceID: contact.NamespaceID,
		Email:       contact.Email,
		Name:        contact.Name,
		CreatedAt:   contact.CreatedAt,
		UpdatedAt:   contact.UpdatedAt,
	}
}
