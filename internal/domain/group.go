package domain

import "time"

// Group 表示由多个用户共同拥有的共享账户
type Group struct {
	ID          string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Path        string      `json:"path" gorm:"type:varchar(64);not null"`
	Name        string      `json:"name" gorm:"type:varchar(128);not null"`
	Description string      `json:"description" gorm:"type:varchar(512)"`
	Plan        BillingPlan `json:"plan" gorm:"type:varchar(20);default:'free'"`
	UsedStorage int64       `json:"usedStorage" gorm:"default:0"`
	NamespaceID string      `json:"namespaceId" gorm:"uniqueIndex;type:varchar(36);not null"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// GroupMembership 表示用户在群组中的角色
//
// 群组创建时至少存在一名 Administrator（创建者本人）。
type GroupMembership struct {
	UserID   string    `json:"userId" gorm:"primaryKey;type:varchar(36)"`
	GroupID  string    `json:"groupId" gorm:"primaryKey;type:varchar(36)"`
	Role     GroupRole `json:"role" gorm:"type:varchar(20);not null"`
	JoinedAt time.Time `json:"joinedAt"`
}

// IsAdministrator 判断成员是否持有管理员角色
func (m *GroupMembership) IsAdministrator() bool {
	return m.Role == RoleAdministrator
}

// Customer 表示计费身份，可弱关联到一个命名空间
//
// 群组删除时仅解除关联（namespace_id 置空），Customer 本身为保留
// 计费历史而永不删除。
type Customer struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	NamespaceID *string   `json:"namespaceId,omitempty" gorm:"type:varchar(36);index"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
