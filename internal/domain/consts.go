package domain

import "time"

// BillingPlan 计费方案
type BillingPlan string

const (
	PlanFree       BillingPlan = "free"
	PlanStarter    BillingPlan = "starter"
	PlanPro        BillingPlan = "pro"
	PlanEnterprise BillingPlan = "enterprise"
)

// NamespaceType 命名空间所有者类型
type NamespaceType string

const (
	NamespaceTypeUser  NamespaceType = "user"
	NamespaceTypeGroup NamespaceType = "group"
)

// GroupRole 群组成员角色
type GroupRole string

const (
	RoleAdministrator GroupRole = "administrator"
	RoleMember        GroupRole = "member"
)

// 注册流程相关常量
const (
	// RegistrationMaxFailedAttempts 单条待注册记录允许的最大验证失败次数，
	// 达到后该记录被永久拒绝
	RegistrationMaxFailedAttempts = 10

	// RegistrationCodeTTL 注册验证码有效期，从记录创建时刻起算
	RegistrationCodeTTL = 30 * time.Minute

	// RegistrationCodeLength 注册验证码长度（生成时）
	RegistrationCodeLength = 8
)

// 联系人导入相关常量
const (
	// MaxContactsCSVBytes 联系人导入 CSV 的最大字节数，超出则在解析前整体拒绝
	MaxContactsCSVBytes = 512 * 1024
)
