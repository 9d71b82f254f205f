package domain

import "time"

// User 表示已注册账户的业务实体
type User struct {
	ID          string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username    string      `json:"username" gorm:"uniqueIndex;type:varchar(64);not null"`
	Email       string      `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Name        string      `json:"name" gorm:"type:varchar(128)"`
	Description string      `json:"description" gorm:"type:varchar(512)"`
	IsAdmin     bool        `json:"isAdmin" gorm:"default:false"`
	Plan        BillingPlan `json:"plan" gorm:"type:varchar(20);default:'free'"`
	UsedStorage int64       `json:"usedStorage" gorm:"default:0"`
	NamespaceID string      `json:"namespaceId" gorm:"uniqueIndex;type:varchar(36);not null"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	BlockedAt   *time.Time  `json:"blockedAt,omitempty"`
}

// PendingUser 表示等待验证码确认的注册记录
//
// 验证成功后在同一事务内被消费（删除）；失败次数达到
// RegistrationMaxFailedAttempts 后永久拒绝；创建 30 分钟后过期。
type PendingUser struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username       string    `json:"username" gorm:"type:varchar(64);not null"`
	Email          string    `json:"email" gorm:"type:varchar(255);not null;index"`
	CodeHash       string    `json:"-" gorm:"type:varchar(255);not null"` // bcrypt 哈希，不返回给前端
	FailedAttempts int       `json:"failedAttempts" gorm:"default:0"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Expired 判断注册记录是否已超过验证码有效期
func (p *PendingUser) Expired(now time.Time) bool {
	return !now.Before(p.CreatedAt.Add(RegistrationCodeTTL))
}

// Session 表示一次已认证会话，与 User 同事务创建
type Session struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"userId" gorm:"type:varchar(36);not null;index"`
	TokenHash string    `json:"-" gorm:"type:varchar(255);not null"` // 会话令牌哈希，不返回给前端
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
