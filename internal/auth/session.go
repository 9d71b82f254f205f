package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidSessionToken 会话令牌格式无效
	ErrInvalidSessionToken = errors.New("invalid session token")
)

const sessionTokenBytes = 32

// GenerateSessionToken 生成会话令牌的随机部分
func GenerateSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashSessionToken 对会话令牌做 bcrypt 哈希后入库
func HashSessionToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash session token: %w", err)
	}
	return string(hash), nil
}

// CheckSessionToken 校验会话令牌是否与哈希匹配
func CheckSessionToken(token, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// EncodeSessionCredentials 将会话 ID 与令牌编码为客户端凭证
func EncodeSessionCredentials(sessionID, token string) string {
	return sessionID + ":" + token
}

// DecodeSessionCredentials 解析客户端凭证为会话 ID 与令牌
func DecodeSessionCredentials(credentials string) (sessionID, token string, err error) {
	sessionID, token, ok := strings.Cut(credentials, ":")
	if !ok || sessionID == "" || token == "" {
		return "", "", ErrInvalidSessionToken
	}
	return sessionID, token, nil
}
