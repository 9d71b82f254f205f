package service

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"drivehub/backend/internal/auth"
	"drivehub/backend/internal/config"
	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/storage"
)

var (
	// ErrMustNotBeAuthenticated 已登录用户不允许执行注册操作
	ErrMustNotBeAuthenticated = errors.New("must not be authenticated")
	// ErrRegistrationNotFound 待注册记录不存在
	ErrRegistrationNotFound = errors.New("registration not found")
	// ErrMaxRegistrationAttempts 验证失败次数已达上限，该记录被永久拒绝
	ErrMaxRegistrationAttempts = errors.New("max registration attempts reached")
	// ErrRegistrationCodeExpired 验证码已过期
	ErrRegistrationCodeExpired = errors.New("registration code expired")
	// ErrInvalidRegistrationCode 验证码不正确
	ErrInvalidRegistrationCode = errors.New("invalid registration code")
	// ErrEmailAlreadyExists 邮箱已被注册
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrUsernameAlreadyExists 用户名已被占用
	ErrUsernameAlreadyExists = errors.New("username already exists")
)

// RegistrationService 封装账号注册的业务操作。
type RegistrationService struct {
	store     storage.Store
	namespace *NamespaceRegistry
	cfg       *config.Config
	log       *zap.Logger
	now       func() time.Time
}

// NewRegistrationService 创建注册业务服务。
func NewRegistrationService(store storage.Store, namespace *NamespaceRegistry, cfg *config.Config, log *zap.Logger) *RegistrationService {
	return &RegistrationService{
		store:     store,
		namespace: namespace,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// StartRegistrationInput 定义发起注册所需的输入。
type StartRegistrationInput struct {
	Actor    *domain.User // 当前登录用户，未登录为 nil
	Username string
	Email    string
}

// StartRegistrationOutput 发起注册的结果。
type StartRegistrationOutput struct {
	PendingUser *domain.PendingUser
	// Code 明文验证码，仅用于投递（邮件发送属外部协作方），不落库
	Code string
}

// StartRegistration 发起注册：校验输入并创建待注册记录。
func (s *RegistrationService) StartRegistration(input StartRegistrationInput) (*StartRegistrationOutput, error) {
	if input.Actor != nil {
		return nil, ErrMustNotBeAuthenticated
	}

	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := domain.NormalizeEmail(input.Email)

	if err := domain.ValidateNamespacePath(username); err != nil {
		return nil, err
	}
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}

	code, err := auth.GenerateRegistrationCode()
	if err != nil {
		return nil, err
	}

	codeHash, err := auth.HashRegistrationCode(code)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	pending := &domain.PendingUser{
		ID:             uuid.NewString(),
		Username:       username,
		Email:          email,
		CodeHash:       codeHash,
		FailedAttempts: 0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreatePendingUser(pending); err != nil {
		return nil, fmt.Errorf("failed to create pending user: %w", err)
	}

	s.log.Info("registration started",
		zap.String("pending_user_id", pending.ID),
		zap.String("username", username),
	)

	return &StartRegistrationOutput{
		PendingUser: pending,
		Code:        auth.FormatRegistrationCode(code),
	}, nil
}

// CompleteRegistrationInput 定义完成注册所需的输入。
type CompleteRegistrationInput struct {
	Actor         *domain.User // 当前登录用户，未登录为 nil
	PendingUserID string
	Code          string
}

// CompleteRegistrationOutput 完成注册的结果。
type CompleteRegistrationOutput struct {
	User    *domain.User
	Session *domain.Session
	// SessionToken 客户端会话凭证（明文令牌只在此处出现一次）
	SessionToken string
}

// CompleteRegistration 验证注册码并原子化地创建用户、命名空间与会话。
//
// 验证步骤在事务外完成；验证通过后在单个事务内按固定顺序执行
// 全部写入，任一步骤失败整体回滚，不留下部分创建的实体。
func (s *RegistrationService) CompleteRegistration(input CompleteRegistrationInput) (*CompleteRegistrationOutput, error) {
	if input.Actor != nil {
		return nil, ErrMustNotBeAuthenticated
	}

	// 随机延迟，钝化暴力破解与时序探测
	s.sleepRandom()

	pending, err := s.store.GetPendingUserByID(input.PendingUserID)
	if err != nil {
		if errors.Is(err, storage.ErrPendingUserNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get pending user: %w", err)
	}

	// 失败次数检查先于一切验证，已达上限的记录永久拒绝
	if pending.FailedAttempts >= domain.RegistrationMaxFailedAttempts {
		return nil, ErrMaxRegistrationAttempts
	}

	code := domain.NormalizeRegistrationCode(input.Code)
	codeValid := auth.CheckRegistrationCode(code, pending.CodeHash)

	// 过期检查不依赖验证码是否正确
	if pending.Expired(s.now().UTC()) {
		return nil, ErrRegistrationCodeExpired
	}

	if !codeValid {
		s.recordFailedAttempt(pending)
		return nil, ErrInvalidRegistrationCode
	}

	tx, err := s.store.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	// 邮箱必须未被任何已注册用户占用
	if _, err := tx.GetUserByEmail(pending.Email); err == nil {
		tx.Rollback()
		return nil, ErrEmailAlreadyExists
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		tx.Rollback()
		return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
	}

	// 用户名不得与已有命名空间路径冲突
	exists, err := s.namespace.Exists(tx, pending.Username)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to check username availability: %w", err)
	}
	if exists {
		tx.Rollback()
		return nil, ErrUsernameAlreadyExists
	}

	// 待注册记录在成功路径上被消费
	if err := tx.DeletePendingUser(pending.ID); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to consume pending user: %w", err)
	}

	ns, err := s.namespace.Create(tx, pending.Username, domain.NamespaceTypeUser)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, ErrNamespaceAlreadyExists) {
			return nil, ErrUsernameAlreadyExists
		}
		return nil, err
	}

	// 系统的第一个用户自动成为管理员
	userCount, err := tx.CountUsers()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:          uuid.NewString(),
		Username:    pending.Username,
		Email:       pending.Email,
		IsAdmin:     userCount == 0,
		Plan:        domain.PlanFree,
		UsedStorage: 0,
		NamespaceID: ns.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := tx.CreateUser(user); err != nil {
		tx.Rollback()
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	tokenHash, err := auth.HashSessionToken(token)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: tokenHash,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := tx.CreateSession(session); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit registration: %w", err)
	}

	s.log.Info("registration completed",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.Bool("is_admin", user.IsAdmin),
	)

	return &CompleteRegistrationOutput{
		User:         user,
		Session:      session,
		SessionToken: auth.EncodeSessionCredentials(session.ID, token),
	}, nil
}

// recordFailedAttempt 尽力递增失败计数。
//
// 这里的持久化失败被吞掉只记日志：主错误必须保持为
// ErrInvalidRegistrationCode，不被簿记失败掩盖。
func (s *RegistrationService) recordFailedAttempt(pending *domain.PendingUser) {
	pending.FailedAttempts++
	pending.UpdatedAt = s.now().UTC()

	if err := s.store.UpdatePendingUser(pending); err != nil {
		s.log.Warn("failed to persist registration attempt counter",
			zap.String("pending_user_id", pending.ID),
			zap.Error(err),
		)
	}
}

// sleepRandom 在配置的上下界之间随机延迟。
// 请求并发执行，这里必须使用并发安全的包级随机源。
func (s *RegistrationService) sleepRandom() {
	min := s.cfg.Registration.SleepMin
	max := s.cfg.Registration.SleepMax
	if max <= min {
		if min > 0 {
			time.Sleep(min)
		}
		return
	}
	time.Sleep(min + time.Duration(rand.Int63n(int64(max-min))))
}
