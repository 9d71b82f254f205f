package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/storage"
)

var (
	// ErrNotAuthenticated 调用者未登录
	ErrNotAuthenticated = errors.New("authentication required")
	// ErrGroupNotFound 群组不存在
	ErrGroupNotFound = errors.New("group not found")
	// ErrAdminRoleRequired 操作要求群组管理员角色
	ErrAdminRoleRequired = errors.New("administrator role required")
	// ErrSubscriptionIsActive 群组仍有生效中的付费订阅，必须先降级
	ErrSubscriptionIsActive = errors.New("subscription is active")
)

// GroupService 封装群组生命周期的业务操作。
type GroupService struct {
	store     storage.Store
	namespace *NamespaceRegistry
	log       *zap.Logger
}

// NewGroupService 创建群组业务服务。
func NewGroupService(store storage.Store, namespace *NamespaceRegistry, log *zap.Logger) *GroupService {
	return &GroupService{
		store:     store,
		namespace: namespace,
		log:       log,
	}
}

// CreateGroupInput 定义创建群组所需的输入。
type CreateGroupInput struct {
	Actor       *domain.User
	Path        string
	Name        string
	Description string
}

// Create 创建群组及其命名空间，并授予创建者管理员成员关系。
//
// 命名空间查重、三条实体写入在同一事务内完成，任一步骤失败
// 整体回滚。
func (s *GroupService) Create(input CreateGroupInput) (*domain.Group, error) {
	if input.Actor == nil {
		return nil, ErrNotAuthenticated
	}

	path := strings.ToLower(strings.TrimSpace(input.Path))
	name := strings.TrimSpace(input.Name)
	description := strings.TrimSpace(input.Description)

	if err := domain.ValidateNamespacePath(path); err != nil {
		return nil, err
	}
	if err := domain.ValidateGroupName(name); err != nil {
		return nil, err
	}
	if err := domain.ValidateGroupDescription(description); err != nil {
		return nil, err
	}

	tx, err := s.store.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	ns, err := s.namespace.Create(tx, path, domain.NamespaceTypeGroup)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	now := time.Now().UTC()
	group := &domain.Group{
		ID:          uuid.NewString(),
		Path:        path,
		Name:        name,
		Description: description,
		Plan:        domain.PlanFree,
		UsedStorage: 0,
		NamespaceID: ns.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := tx.CreateGroup(group); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	membership := &domain.GroupMembership{
		UserID:   input.Actor.ID,
		GroupID:  group.ID,
		Role:     domain.RoleAdministrator,
		JoinedAt: now,
	}

	if err := tx.CreateGroupMembership(membership); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create group membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group creation: %w", err)
	}

	s.log.Info("group created",
		zap.String("group_id", group.ID),
		zap.String("path", group.Path),
		zap.String("creator_id", input.Actor.ID),
	)

	return group, nil
}

// Get 查询群组：仅群组成员可见。
func (s *GroupService) Get(actor *domain.User, groupID string) (*domain.Group, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}

	group, err := s.store.GetGroupByID(groupID)
	if err != nil {
		if errors.Is(err, storage.ErrGroupNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	if _, err := s.store.GetGroupMembership(group.ID, actor.ID); err != nil {
		if errors.Is(err, storage.ErrMembershipNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group membership: %w", err)
	}

	return group, nil
}

// DeleteGroupInput 定义删除群组所需的输入。
type DeleteGroupInput struct {
	Actor   *domain.User
	GroupID string
}

// Delete 删除群组：要求调用者持有管理员角色且群组处于免费方案。
//
// 关联的计费客户只解除绑定不删除，计费历史得以保留；群组与
// 成员关系随命名空间删除一并级联清除。
func (s *GroupService) Delete(input DeleteGroupInput) error {
	if input.Actor == nil {
		return ErrNotAuthenticated
	}

	group, err := s.store.GetGroupByID(input.GroupID)
	if err != nil {
		if errors.Is(err, storage.ErrGroupNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("failed to get group: %w", err)
	}

	ns, err := s.store.GetNamespaceByID(group.NamespaceID)
	if err != nil {
		if errors.Is(err, storage.ErrNamespaceNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("failed to get namespace: %w", err)
	}

	membership, err := s.store.GetGroupMembership(group.ID, input.Actor.ID)
	if err != nil {
		if errors.Is(err, storage.ErrMembershipNotFound) {
			return ErrAdminRoleRequired
		}
		return fmt.Errorf("failed to get group membership: %w", err)
	}
	if !membership.IsAdministrator() {
		return ErrAdminRoleRequired
	}

	// 付费方案必须先通过独立的计费流程降级
	if group.Plan != domain.PlanFree {
		return ErrSubscriptionIsActive
	}

	// 计费客户可能不存在，缺失不是错误
	customer, err := s.store.GetCustomerByNamespaceID(ns.ID)
	if err != nil && !errors.Is(err, storage.ErrCustomerNotFound) {
		return fmt.Errorf("failed to get customer: %w", err)
	}

	tx, err := s.store.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if customer != nil {
		customer.NamespaceID = nil
		customer.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateCustomer(customer); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to unbind customer: %w", err)
		}
	}

	if err := tx.DeleteNamespace(ns.ID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete namespace: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group deletion: %w", err)
	}

	s.log.Info("group deleted",
		zap.String("group_id", group.ID),
		zap.String("path", group.Path),
		zap.String("actor_id", input.Actor.ID),
	)

	return nil
}
