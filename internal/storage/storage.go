package storage

import (
	"errors"

	"drivehub/backend/internal/domain"
)

// 存储层错误定义
var (
	// ErrNamespaceNotFound 命名空间未找到错误
	ErrNamespaceNotFound = errors.New("namespace not found")
	// ErrPendingUserNotFound 待注册记录未找到错误
	ErrPendingUserNotFound = errors.New("pending user not found")
	// ErrUserNotFound 用户未找到错误
	ErrUserNotFound = errors.New("user not found")
	// ErrGroupNotFound 群组未找到错误
	ErrGroupNotFound = errors.New("group not found")
	// ErrMembershipNotFound 群组成员关系未找到错误
	ErrMembershipNotFound = errors.New("group membership not found")
	// ErrCustomerNotFound 计费客户未找到错误
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrContactNotFound 联系人未找到错误
	ErrContactNotFound = errors.New("contact not found")
	// ErrListNotFound 联系人列表未找到错误
	ErrListNotFound = errors.New("newsletter list not found")
	// ErrSessionNotFound 会话未找到错误
	ErrSessionNotFound = errors.New("session not found")
	// ErrDuplicateKey 唯一约束冲突错误（存储层兜底，应用层预检查的安全网）
	ErrDuplicateKey = errors.New("duplicate key")
)

// NamespaceRepository 定义命名空间数据存取操作。
type NamespaceRepository interface {
	CreateNamespace(ns *domain.Namespace) error
	GetNamespaceByID(id string) (*domain.Namespace, error)
	GetNamespaceByPath(path string) (*domain.Namespace, error)
	NamespaceExists(path string) (bool, error)
	// DeleteNamespace 删除命名空间；所属群组与成员关系的级联删除
	// 由持久层的引用完整性规则完成
	DeleteNamespace(id string) error
	// IsNamespaceMember 判断用户是否为该命名空间的成员
	//（用户命名空间的所有者，或群组命名空间对应群组的成员）
	IsNamespaceMember(namespaceID, userID string) (bool, error)
}

// PendingUserRepository 定义待注册记录数据存取操作。
type PendingUserRepository interface {
	CreatePendingUser(pending *domain.PendingUser) error
	GetPendingUserByID(id string) (*domain.PendingUser, error)
	UpdatePendingUser(pending *domain.PendingUser) error
	DeletePendingUser(id string) error
}

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	CountUsers() (int64, error)
}

// SessionRepository 定义会话数据存取操作。
type SessionRepository interface {
	CreateSession(session *domain.Session) error
	GetSessionByID(id string) (*domain.Session, error)
	ListSessionsByUserID(userID string) ([]domain.Session, error)
}

// GroupRepository 定义群组数据存取操作。
type GroupRepository interface {
	CreateGroup(group *domain.Group) error
	GetGroupByID(id string) (*domain.Group, error)
	UpdateGroup(group *domain.Group) error
	CreateGroupMembership(membership *domain.GroupMembership) error
	GetGroupMembership(groupID, userID string) (*domain.GroupMembership, error)
}

// CustomerRepository 定义计费客户数据存取操作。
type CustomerRepository interface {
	CreateCustomer(customer *domain.Customer) error
	GetCustomerByID(id string) (*domain.Customer, error)
	GetCustomerByNamespaceID(namespaceID string) (*domain.Customer, error)
	UpdateCustomer(customer *domain.Customer) error
}

// ContactRepository 定义联系人及列表数据存取操作。
type ContactRepository interface {
	CreateContact(contact *domain.Contact) error
	UpdateContact(contact *domain.Contact) error
	// GetContactByEmail 按归一化邮箱在命名空间内查找联系人
	GetContactByEmail(namespaceID, email string) (*domain.Contact, error)
	CreateNewsletterList(list *domain.NewsletterList) error
	GetNewsletterListByID(id string) (*domain.NewsletterList, error)
	// CreateListContactRelation 创建列表与联系人的关联；
	// 关联已存在时视为幂等成功而非错误
	CreateListContactRelation(relation *domain.NewsletterListContactRelation) error
	ListContactsByList(listID string) ([]domain.Contact, error)
}

// Queries 聚合全部数据存取操作，事务内外共用同一方法集
type Queries interface {
	NamespaceRepository
	PendingUserRepository
	UserRepository
	SessionRepository
	GroupRepository
	CustomerRepository
	ContactRepository
}

// Tx 表示一次显式事务
//
// 多实体写入流程通过显式传递 Tx 句柄完成，提交/回滚边界在每个
// 调用点可见；任一步骤失败后整个事务回滚，不留下部分效果。
type Tx interface {
	Queries

	Commit() error
	Rollback() error
}

// Store 聚合所有存储接口
type Store interface {
	Queries

	// Begin 开启一次事务
	Begin() (Tx, error)
	// Health 检查存储健康状态
	Health() error
	// Close 关闭存储
	Close() error
}
