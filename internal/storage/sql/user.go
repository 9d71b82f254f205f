package sql

import (
	"database/sql"
	"errors"
	"fmt"

	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/storage"
)

// CreateUser 创建用户
func (q queries) CreateUser(user *domain.User) error {
	query := q.rebind(`
		INSERT INTO users (
			id, username, email, name, description, is_admin, plan,
			used_storage, namespace_id, created_at, updated_at, blocked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := q.db.Exec(query,
		user.ID, user.Username, user.Email, user.Name, user.Description,
		user.IsAdmin, user.Plan, user.UsedStorage, user.NamespaceID,
		user.CreatedAt, user.UpdatedAt, user.BlockedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID 根据 ID 获取用户
func (q queries) GetUserByID(id string) (*domain.User, error) {
	query := q.rebind(userSelect + ` WHERE id = ?`)
	return q.scanUser(q.db.QueryRow(query, id))
}

// GetUserByEmail 根据邮箱获取用户
func (q queries) GetUserByEmail(email string) (*domain.User, error) {
	query := q.rebind(userSelect + ` WHERE email = ?`)
	return q.scanUser(q.db.QueryRow(query, email))
}

// GetUserByUsername 根据用户名获取用户
func (q queries) GetUserByUsername(username string) (*domain.User, error) {
	query := q.rebind(userSelect + ` WHERE username = ?`)
	return q.scanUser(q.db.QueryRow(query, username))
}

// CountUsers 统计用户总数
func (q queries) CountUsers() (int64, error) {
	var count int64
	if err := q.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

const userSelect = `
	SELECT id, username, email, name, description, is_admin, plan,
	       used_storage, namespace_id, created_at, updated_at, blocked_at
	FROM users`

func (q queries) scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.Name, &user.Description,
		&user.IsAdmin, &user.Plan, &user.UsedStorage, &user.NamespaceID,
		&user.CreatedAt, &user.UpdatedAt, &user.BlockedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// CreatePendingUser 创建待注册记录
func (q queries) CreatePendingUser(pending *domain.PendingUser) error {
	query := q.rebind(`
		INSERT INTO pending_users (
			id, username, email, code_hash, failed_attempts, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := q.db.Exec(query,
		pending.ID, pending.Username, pending.Email, pending.CodeHash,
		pending.FailedAttempts, pending.CreatedAt, pending.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pending user: %w", err)
	}
	return nil
}

// GetPendingUserByID 根据 ID 获取待注册记录
func (q queries) GetPendingUserByID(id string) (*domain.PendingUser, error) {
	query := q.rebind(`
		SELECT id, username, email, code_hash, failed_attempts, created_at, updated_at
		FROM pending_users WHERE id = ?
	`)

	var pending domain.PendingUser
	err := q.db.QueryRow(query, id).Scan(
		&pending.ID, &pending.Username, &pending.Email, &pending.CodeHash,
		&pending.FailedAttempts, &pending.CreatedAt, &pending.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrPendingUserNotFound
		}
		return nil, fmt.Errorf("failed to get pending user: %w", err)
	}
	return &pending, nil
}

// UpdatePendingUser 更新待注册记录（失败次数）
func (q queries) UpdatePendingUser(pending *domain.PendingUser) error {
	query := q.rebind(`
		UPDATE pending_users
		SET failed_attempts = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := q.db.Exec(query, pending.FailedAttempts, pending.UpdatedAt, pending.ID)
	if err != nil {
		return fmt.Errorf("failed to update pending user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return storage.ErrPendingUserNotFound
	}
	return nil
}

// DeletePendingUser 删除待注册记录
func (q queries) DeletePendingUser(id string) error {
	query := q.rebind(`DELETE FROM pending_users WHERE id = ?`)

	result, err := q.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return storage.ErrPendingUserNotFound
	}
	return nil
}

// CreateSession 创建会话
func (q queries) CreateSession(session *domain.Session) error {
	query := q.rebind(`
		INSERT INTO sessions (id, user_id, token_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`)

	_, err := q.db.Exec(query,
		session.ID, session.UserID, session.TokenHash,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSessionByID 根据 ID 获取会话
func (q queries) GetSessionByID(id string) (*domain.Session, error) {
	query := q.rebind(`
		SELECT id, user_id, token_hash, created_at, updated_at
		FROM sessions WHERE id = ?
	`)

	var session domain.Session
	err := q.db.QueryRow(query, id).Scan(
		&session.ID, &session.UserID, &session.TokenHash,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// ListSessionsByUserID 列出用户的全部会话
func (q queries) ListSessionsByUserID(userID string) ([]domain.Session, error) {
	query := q.rebind(`
		SELECT id, user_id, token_hash, created_at, updated_at
		FROM sessions WHERE user_id = ?
		ORDER BY created_at DESC
	`)

	rows, err := q.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var session domain.Session
		if err := rows.Scan(
			&session.ID, &session.UserID, &session.TokenHash,
			&session.CreatedAt, &session.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}
