package domain

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidEmail          = errors.New("invalid email format")
	ErrEmailTooLong          = errors.New("email address too long")
	ErrInvalidNamespacePath  = errors.New("invalid namespace path format")
	ErrNamespacePathTooShort = errors.New("namespace path too short (min 3 chars)")
	ErrNamespacePathTooLong  = errors.New("namespace path too long (max 32 chars)")
	ErrGroupNameEmpty        = errors.New("group name must not be empty")
	ErrGroupNameTooLong      = errors.New("group name too long (max 128 chars)")
	ErrDescriptionTooLong    = errors.New("description too long (max 512 chars)")
	ErrContactNameTooLong    = errors.New("contact name too long (max 128 chars)")
	ErrInvalidContactName    = errors.New("invalid contact name")
)

// 验证常量
const (
	// RFC 5322 邮箱地址长度限制
	MaxEmailLength = 254

	// 命名空间路径长度限制（用户名与群组路径共用）
	MinNamespacePathLength = 3
	MaxNamespacePathLength = 32

	// 群组名称与描述长度限制
	MaxGroupNameLength   = 128
	MaxDescriptionLength = 512

	// 联系人姓名长度限制
	MaxContactNameLength = 128
)

// 命名空间路径：小写字母开头，仅允许小写字母、数字与连字符，不得以连字符结尾
var namespacePathRegex = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$`)

// ValidateEmail 完整验证邮箱地址
//
// 输入应已归一化（去空白、小写）；验证使用标准库解析加长度检查。
func ValidateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}

	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return ErrInvalidEmail
	}

	// mail.ParseAddress 接受 "Name <addr>" 形式，这里只允许裸地址
	if addr.Address != email {
		return ErrInvalidEmail
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ErrInvalidEmail
	}

	// 域名必须至少包含一个点
	if !strings.Contains(parts[1], ".") {
		return ErrInvalidEmail
	}

	return nil
}

// ValidateNamespacePath 验证命名空间路径（用户名与群组路径共用规则）
func ValidateNamespacePath(path string) error {
	if len(path) < MinNamespacePathLength {
		return ErrNamespacePathTooShort
	}

	if len(path) > MaxNamespacePathLength {
		return ErrNamespacePathTooLong
	}

	if !namespacePathRegex.MatchString(path) {
		return ErrInvalidNamespacePath
	}

	// 不允许连续连字符
	if strings.Contains(path, "--") {
		return ErrInvalidNamespacePath
	}

	return nil
}

// ValidateGroupName 验证群组名称
func ValidateGroupName(name string) error {
	if name == "" {
		return ErrGroupNameEmpty
	}

	if len(name) > MaxGroupNameLength {
		return ErrGroupNameTooLong
	}

	return nil
}

// ValidateGroupDescription 验证群组描述
func ValidateGroupDescription(description string) error {
	if len(description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}

	return nil
}

// ValidateContactName 验证联系人姓名
//
// 空姓名是合法的（导入时表示不覆盖已有姓名）。
func ValidateContactName(name string) error {
	if len(name) > MaxContactNameLength {
		return ErrContactNameTooLong
	}

	// 姓名不允许包含控制字符
	for _, r := range name {
		if r < 0x20 {
			return ErrInvalidContactName
		}
	}

	return nil
}

// NormalizeEmail 将邮箱归一化为去空白的小写形式
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeRegistrationCode 归一化用户提交的注册验证码（去空白、小写、去分隔符）
func NormalizeRegistrationCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	return strings.ReplaceAll(code, "-", "")
}
