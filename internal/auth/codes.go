package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	"drivehub/backend/internal/domain"
)

// 验证码字符集（去除易混淆字符 0/O/1/I/L）
const codeAlphabet = "23456789abcdefghjkmnpqrstuvwxyz"

// GenerateRegistrationCode 生成注册验证码
func GenerateRegistrationCode() (string, error) {
	code := make([]byte, domain.RegistrationCodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate registration code: %w", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// FormatRegistrationCode 将验证码格式化为展示形式（中间插入连字符）
func FormatRegistrationCode(code string) string {
	if len(code) != domain.RegistrationCodeLength {
		return code
	}
	half := len(code) / 2
	return code[:half] + "-" + code[half:]
}

// HashRegistrationCode 对归一化后的验证码做 bcrypt 哈希
func HashRegistrationCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash registration code: %w", err)
	}
	return string(hash), nil
}

// CheckRegistrationCode 校验归一化后的验证码是否与哈希匹配
func CheckRegistrationCode(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
