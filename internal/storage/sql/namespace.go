package sql

import (
	"database/sql"
	"errors"
	"fmt"

	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/storage"
)

// CreateNamespace 创建命名空间
func (q queries) CreateNamespace(ns *domain.Namespace) error {
	query := q.rebind(`
		INSERT INTO namespaces (id, path, type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`)

	_, err := q.db.Exec(query, ns.ID, ns.Path, ns.Type, ns.CreatedAt, ns.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create namespace: %w", err)
	}
	return nil
}

// GetNamespaceByID 根据 ID 获取命名空间
func (q queries) GetNamespaceByID(id string) (*domain.Namespace, error) {
	query := q.rebind(`
		SELECT id, path, type, created_at, updated_at
		FROM namespaces WHERE id = ?
	`)

	return q.scanNamespace(q.db.QueryRow(query, id))
}

// GetNamespaceByPath 根据路径获取命名空间
func (q queries) GetNamespaceByPath(path string) (*domain.Namespace, error) {
	query := q.rebind(`
		SELECT id, path, type, created_at, updated_at
		FROM namespaces WHERE path = ?
	`)

	return q.scanNamespace(q.db.QueryRow(query, path))
}

// NamespaceExists 判断路径是否已被占用
func (q queries) NamespaceExists(path string) (bool, error) {
	query := q.rebind(`SELECT COUNT(*) FROM namespaces WHERE path = ?`)

	var count int64
	if err := q.db.QueryRow(query, path).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check namespace existence: %w", err)
	}
	return count > 0, nil
}

// DeleteNamespace 删除命名空间，并级联删除其承载的群组与成员关系
func (q queries) DeleteNamespace(id string) error {
	// 先删成员关系，再删群组，最后删命名空间本身
	delMemberships := q.rebind(fmt.Sprintf(`
		DELETE FROM group_memberships
		WHERE group_id IN (SELECT id FROM %s WHERE namespace_id = ?)
	`, q.groupsTable()))
	if _, err := q.db.Exec(delMemberships, id); err != nil {
		return fmt.Errorf("failed to delete group memberships: %w", err)
	}

	delGroups := q.rebind(fmt.Sprintf(`DELETE FROM %s WHERE namespace_id = ?`, q.groupsTable()))
	if _, err := q.db.Exec(delGroups, id); err != nil {
		return fmt.Errorf("failed to delete groups: %w", err)
	}

	delNamespace := q.rebind(`DELETE FROM namespaces WHERE id = ?`)
	result, err := q.db.Exec(delNamespace, id)
	if err != nil {
		return fmt.Errorf("failed to delete namespace: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return storage.ErrNamespaceNotFound
	}
	return nil
}

// IsNamespaceMember 判断用户是否为命名空间成员：
// 用户命名空间要求用户本人持有该命名空间；
// 群组命名空间要求用户在对应群组中存在成员关系。
func (q queries) IsNamespaceMember(namespaceID, userID string) (bool, error) {
	ns, err := q.GetNamespaceByID(namespaceID)
	if err != nil {
		return false, err
	}

	switch ns.Type {
	case domain.NamespaceTypeUser:
		query := q.rebind(`SELECT COUNT(*) FROM users WHERE namespace_id = ? AND id = ?`)
		var count int64
		if err := q.db.QueryRow(query, namespaceID, userID).Scan(&count); err != nil {
			return false, fmt.Errorf("failed to check namespace ownership: %w", err)
		}
		return count > 0, nil
	case domain.NamespaceTypeGroup:
		query := q.rebind(fmt.Sprintf(`
			SELECT COUNT(*)
			FROM group_memberships m
			JOIN %s g ON g.id = m.group_id
			WHERE g.namespace_id = ? AND m.user_id = ?
		`, q.groupsTable()))
		var count int64
		if err := q.db.QueryRow(query, namespaceID, userID).Scan(&count); err != nil {
			return false, fmt.Errorf("failed to check group membership: %w", err)
		}
		return count > 0, nil
	default:
		return false, fmt.Errorf("unknown namespace type: %s", ns.Type)
	}
}

func (q queries) scanNamespace(row *sql.Row) (*domain.Namespace, error) {
	var ns domain.Namespace
	err := row.Scan(&ns.ID, &ns.Path, &ns.Type, &ns.CreatedAt, &ns.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNamespaceNotFound
		}
		return nil, fmt.Errorf("failed to get namespace: %w", err)
	}
	return &ns, nil
}
