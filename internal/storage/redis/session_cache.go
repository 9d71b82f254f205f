package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"drivehub/backend/internal/domain"
)

// ErrSessionNotCached 会话缓存未命中
var ErrSessionNotCached = errors.New("session not cached")

// SessionCache 会话读路径缓存
//
// 只缓存认证中间件的会话查询结果，存储层永远是事实来源；
// 缓存失败只影响延迟，不影响正确性。
type SessionCache struct {
	client *Client
	ttl    time.Duration
}

// NewSessionCache 创建会话缓存
func NewSessionCache(client *Client, ttl time.Duration) *SessionCache {
	return &SessionCache{
		client: client,
		ttl:    ttl,
	}
}

// Put 写入会话缓存
func (c *SessionCache) Put(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return c.client.rdb.Set(ctx, sessionKey(session.ID), data, c.ttl).Err()
}

// Get 读取会话缓存
func (c *SessionCache) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	data, err := c.client.rdb.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrSessionNotCached
		}
		return nil, fmt.Errorf("failed to get cached session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete 删除会话缓存
func (c *SessionCache) Delete(ctx context.Context, sessionID string) error {
	return c.client.rdb.Del(ctx, sessionKey(sessionID)).Err()
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}
