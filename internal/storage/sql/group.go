package sql

import (
	"database/sql"
	"errors"
	"fmt"

	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/storage"
)

// CreateGroup 创建群组
func (q queries) CreateGroup(group *domain.Group) error {
	query := q.rebind(fmt.Sprintf(`
		INSERT INTO %s (
			id, path, name, description, plan, used_storage,
			namespace_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.groupsTable()))

	_, err := q.db.Exec(query,
		group.ID, group.Path, group.Name, group.Description, group.Plan,
		group.UsedStorage, group.NamespaceID, group.CreatedAt, group.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// GetGroupByID 根据 ID 获取群组
func (q queries) GetGroupByID(id string) (*domain.Group, error) {
	query := q.rebind(fmt.Sprintf(`
		SELECT id, path, name, description, plan, used_storage,
		       namespace_id, created_at, updated_at
		FROM %s WHERE id = ?
	`, q.groupsTable()))

	var group domain.Group
	err := q.db.QueryRow(query, id).Scan(
		&group.ID, &group.Path, &group.Name, &group.Description, &group.Plan,
		&group.UsedStorage, &group.NamespaceID, &group.CreatedAt, &group.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &group, nil
}

// UpdateGroup 更新群组（方案、名称、用量）
func (q queries) UpdateGroup(group *domain.Group) error {
	query := q.rebind(fmt.Sprintf(`
		UPDATE %s SET
			name = ?, description = ?, plan = ?, used_storage = ?, updated_at = ?
		WHERE id = ?
	`, q.groupsTable()))

	result, err := q.db.Exec(query,
		group.Name, group.Description, group.Plan, group.UsedStorage,
		group.UpdatedAt, group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return storage.ErrGroupNotFound
	}
	return nil
}

// CreateGroupMembership 创建群组成员关系
func (q queries) CreateGroupMembership(membership *domain.GroupMembership) error {
	query := q.rebind(`
		INSERT INTO group_memberships (user_id, group_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`)

	_, err := q.db.Exec(query,
		membership.UserID, membership.GroupID, membership.Role, membership.JoinedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create group membership: %w", err)
	}
	return nil
}

// GetGroupMembership 获取用户在群组中的成员关系
func (q queries) GetGroupMembership(groupID, userID string) (*domain.GroupMembership, error) {
	query := q.rebind(`
		SELECT user_id, group_id, role, joined_at
		FROM group_memberships WHERE group_id = ? AND user_id = ?
	`)

	var membership domain.GroupMembership
	err := q.db.QueryRow(query, groupID, userID).Scan(
		&membership.UserID, &membership.GroupID, &membership.Role, &membership.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get group membership: %w", err)
	}
	return &membership, nil
}

// CreateCustomer 创建计费客户
func (q queries) CreateCustomer(customer *domain.Customer) error {
	query := q.rebind(`
		INSERT INTO customers (id, namespace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`)

	_, err := q.db.Exec(query,
		customer.ID, customer.NamespaceID, customer.CreatedAt, customer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// GetCustomerByID 根据 ID 获取计费客户
func (q queries) GetCustomerByID(id string) (*domain.Customer, error) {
	query := q.rebind(`
		SELECT id, namespace_id, created_at, updated_at
		FROM customers WHERE id = ?
	`)

	var customer domain.Customer
	err := q.db.QueryRow(query, id).Scan(
		&customer.ID, &customer.NamespaceID, &customer.CreatedAt, &customer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &customer, nil
}

// GetCustomerByNamespaceID 根据命名空间 ID 获取计费客户
func (q queries) GetCustomerByNamespaceID(namespaceID string) (*domain.Customer, error) {
	query := q.rebind(`
		SELECT id, namespace_id, created_at, updated_at
		FROM customers WHERE namespace_id = ?
	`)

	var customer domain.Customer
	err := q.db.QueryRow(query, namespaceID).Scan(
		&customer.ID, &customer.NamespaceID, &customer.CreatedAt, &customer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &customer, nil
}

// UpdateCustomer 更新计费客户（解除命名空间关联）
func (q queries) UpdateCustomer(customer *domain.Customer) error {
	query := q.rebind(`
		UPDATE customers SET namespace_id = ?, updated_at = ? WHERE id = ?
	`)

	result, err := q.db.Exec(query, customer.NamespaceID, customer.UpdatedAt, customer.ID)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return storage.ErrCustomerNotFound
	}
	return nil
}
