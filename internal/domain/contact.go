package domain

import "time"

// Contact 表示归属某命名空间的邮件联系人
//
// email 在命名空间内大小写不敏感唯一，任何比较或存储前均
// 归一化为去空白的小写形式。
type Contact struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	NamespaceID string    `json:"namespaceId" gorm:"type:varchar(36);not null;uniqueIndex:idx_contacts_ns_email"`
	Email       string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex:idx_contacts_ns_email"`
	Name        string    `json:"name" gorm:"type:varchar(128)"`
	Birthday    *time.Time `json:"birthday,omitempty"`
	Phone       string    `json:"phone" gorm:"type:varchar(64)"`
	Address     string    `json:"address" gorm:"type:varchar(512)"`
	Website     string    `json:"website" gorm:"type:varchar(255)"`
	Twitter     string    `json:"twitter" gorm:"type:varchar(128)"`
	Instagram   string    `json:"instagram" gorm:"type:varchar(128)"`
	Facebook    string    `json:"facebook" gorm:"type:varchar(128)"`
	LinkedIn    string    `json:"linkedin" gorm:"column:linkedin;type:varchar(128)"`
	Skype       string    `json:"skype" gorm:"type:varchar(128)"`
	Telegram    string    `json:"telegram" gorm:"type:varchar(128)"`
	Notes       string    `json:"notes" gorm:"type:text"`
	Country     string    `json:"country" gorm:"type:varchar(64)"`
	CountryCode string    `json:"countryCode" gorm:"type:varchar(8)"`
	PGPKey      string    `json:"pgpKey" gorm:"column:pgp_key;type:text"`
	AvatarKey   *string   `json:"avatarKey,omitempty" gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewsletterList 表示联系人的分组列表
type NewsletterList struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	NamespaceID string    `json:"namespaceId" gorm:"type:varchar(36);not null;index"`
	Name        string    `json:"name" gorm:"type:varchar(128);not null"`
	Description string    `json:"description" gorm:"type:varchar(512)"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewsletterListContactRelation 表示列表与联系人的关联
//
// 仅在联系人已存在后创建；重复创建视为幂等成功。
type NewsletterListContactRelation struct {
	ListID    string `json:"listId" gorm:"primaryKey;type:varchar(36)"`
	ContactID string `json:"contactId" gorm:"primaryKey;type:varchar(36)"`
}

// ImportedContact 表示导入载荷中经归一化的一行记录
type ImportedContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
