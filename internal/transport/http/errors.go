package httptransport

import (
	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/service"
	"drivehub/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 注册错误
	service.ErrMustNotBeAuthenticated:  "已登录用户不能发起注册",
	service.ErrRegistrationNotFound:    "注册记录不存在或已失效",
	service.ErrMaxRegistrationAttempts: "验证失败次数过多，请重新发起注册",
	service.ErrRegistrationCodeExpired: "验证码已过期，请重新发起注册",
	service.ErrInvalidRegistrationCode: "验证码错误",
	service.ErrEmailAlreadyExists:      "该邮箱已被注册",
	service.ErrUsernameAlreadyExists:   "该用户名已被占用",

	// 群组错误
	service.ErrNotAuthenticated:       "需要登录认证",
	service.ErrGroupNotFound:          "群组不存在",
	service.ErrAdminRoleRequired:      "需要群组管理员权限",
	service.ErrSubscriptionIsActive:   "请先取消订阅再删除群组",
	service.ErrNamespaceAlreadyExists: "该路径已被占用",

	// 联系人导入错误
	service.ErrPermissionDenied:    "无权访问该命名空间",
	service.ErrContactsCSVTooLarge: "导入文件超过大小限制",
	service.ErrContactsCSVInvalid:  "CSV 格式无效",
	service.ErrListNotFound:        "邮件列表不存在",

	// 校验错误
	domain.ErrInvalidEmail:          "邮箱格式无效",
	domain.ErrEmailTooLong:          "邮箱地址过长",
	domain.ErrInvalidNamespacePath:  "路径格式无效",
	domain.ErrNamespacePathTooShort: "路径过短（至少 3 个字符）",
	domain.ErrNamespacePathTooLong:  "路径过长（最多 32 个字符）",
	domain.ErrGroupNameEmpty:        "群组名称不能为空",
	domain.ErrGroupNameTooLong:      "群组名称过长",
	domain.ErrDescriptionTooLong:    "描述过长",
	domain.ErrContactNameTooLong:    "联系人姓名过长",
	domain.ErrInvalidContactName:    "联系人姓名无效",

	// 存储错误
	storage.ErrNamespaceNotFound: "命名空间不存在",
	storage.ErrUserNotFound:      "用户不存在",
	storage.ErrSessionNotFound:   "会话不存在",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgRequestBodyEmpty = "请求体不能为空"

	// 认证相关
	MsgAuthRequired     = "需要登录认证"
	MsgTokenExpired     = "登录已过期，请重新登录"
	MsgTokenInvalid     = "无效的访问令牌"
	MsgPermissionDenied = "权限不足"

	// 注册相关
	MsgRegistrationStartFailed    = "发起注册失败"
	MsgRegistrationCompleteFailed = "完成注册失败"

	// 群组相关
	MsgGroupCreateFailed = "创建群组失败"
	MsgGroupDeleteFailed = "删除群组失败"

	// 联系人相关
	MsgContactsImportFailed = "导入联系人失败"
	MsgContactsReadFailed   = "读取导入文件失败"

	// 用户相关
	MsgUserNotFound  = "用户不存在"
	MsgUserGetFailed = "获取用户信息失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
