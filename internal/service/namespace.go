package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/storage"
)

var (
	// ErrNamespaceAlreadyExists 命名空间路径已被占用
	ErrNamespaceAlreadyExists = errors.New("namespace already exists")
)

// NamespaceRegistry 保证命名空间路径的全局唯一性。
//
// Create 的查重与插入必须发生在持有方实体写入的同一事务中，
// 调用方负责传入事务句柄；存储层的唯一约束是并发竞争下的
// 最终兜底，约束冲突被翻译为与预检查相同的冲突错误。
type NamespaceRegistry struct{}

// NewNamespaceRegistry 创建命名空间注册表
func NewNamespaceRegistry() *NamespaceRegistry {
	return &NamespaceRegistry{}
}

// Exists 判断路径是否已被占用
func (r *NamespaceRegistry) Exists(q storage.Queries, path string) (bool, error) {
	return q.NamespaceExists(path)
}

// Create 在事务内执行查重并创建命名空间
func (r *NamespaceRegistry) Create(q storage.Queries, path string, ownerType domain.NamespaceType) (*domain.Namespace, error) {
	exists, err := q.NamespaceExists(path)
	if err != nil {
		return nil, fmt.Errorf("failed to check namespace existence: %w", err)
	}
	if exists {
		return nil, ErrNamespaceAlreadyExists
	}

	now := time.Now().UTC()
	ns := &domain.Namespace{
		ID:        uuid.NewString(),
		Path:      path,
		Type:      ownerType,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := q.CreateNamespace(ns); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrNamespaceAlreadyExists
		}
		return nil, fmt.Errorf("failed to create namespace: %w", err)
	}

	return ns, nil
}
