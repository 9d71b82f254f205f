package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"drivehub/backend/internal/config"
	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/service"
	"drivehub/backend/internal/storage"
	"drivehub/backend/internal/storage/memory"
	sqlstore "drivehub/backend/internal/storage/sql"
)

// create-admin 直接在数据库中创建一个管理员账户，
// 绕过注册验证码流程。命名空间与用户在同一事务内写入。
func main() {
	if len(os.Args) < 3 {
		fmt.Println("用法: create-admin <username> <email>")
		fmt.Println("示例: create-admin alice alice@example.com")
		os.Exit(1)
	}

	username := os.Args[1]
	email := domain.NormalizeEmail(os.Args[2])

	if err := domain.ValidateNamespacePath(username); err != nil {
		fmt.Printf("错误: 用户名不合法: %v\n", err)
		os.Exit(1)
	}
	if err := domain.ValidateEmail(email); err != nil {
		fmt.Printf("错误: 邮箱不合法: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("错误: 加载配置失败: %v\n", err)
		os.Exit(1)
	}

	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			fmt.Printf("错误: 连接数据库失败: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Println("警告: 未配置数据库，使用内存存储（进程退出后数据丢失）")
		store = memory.NewStore()
	}
	defer store.Close()

	user, err := createAdmin(store, username, email)
	if err != nil {
		fmt.Printf("错误: 创建管理员失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ 管理员创建成功")
	fmt.Printf("  ID:        %s\n", user.ID)
	fmt.Printf("  用户名:    %s\n", user.Username)
	fmt.Printf("  邮箱:      %s\n", user.Email)
	fmt.Printf("  命名空间:  %s\n", user.NamespaceID)
	fmt.Println("登录会话需通过注册接口或会话签发流程获取。")
}

// createAdmin 在一个事务内创建命名空间与管理员用户
func createAdmin(store storage.Store, username, email string) (*domain.User, error) {
	registry := service.NewNamespaceRegistry()

	tx, err := store.Begin()
	if err != nil {
		return nil, fmt.Errorf("开启事务失败: %w", err)
	}

	ns, err := registry.Create(tx, username, domain.NamespaceTypeUser)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, service.ErrNamespaceAlreadyExists) {
			return nil, fmt.Errorf("用户名 '%s' 已被占用", username)
		}
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:          uuid.NewString(),
		Username:    username,
		Email:       email,
		IsAdmin:     true,
		Plan:        domain.PlanFree,
		NamespaceID: ns.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := tx.CreateUser(user); err != nil {
		tx.Rollback()
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("用户名或邮箱已存在")
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("提交事务失败: %w", err)
	}

	return user, nil
}
