package domain

import "time"

// Namespace 表示用户或群组的唯一寻址根。
//
// path 全局唯一；每个命名空间被且仅被一个用户或群组引用，
// 该引用与命名空间本身在同一事务中创建。
type Namespace struct {
	ID        string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Path      string        `json:"path" gorm:"uniqueIndex;type:varchar(64);not null"`
	Type      NamespaceType `json:"type" gorm:"type:varchar(10);not null"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
