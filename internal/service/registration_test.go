package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"drivehub/backend/internal/config"
	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/storage"
	"drivehub/backend/internal/storage/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		Registration: config.RegistrationConfig{
			SleepMin: 0,
			SleepMax: 0,
		},
		Contacts: config.ContactsConfig{
			MaxCSVBytes: 512 * 1024,
		},
	}
}

func newRegistrationService(store storage.Store) *RegistrationService {
	return NewRegistrationService(store, NewNamespaceRegistry(), testConfig(), zap.NewNop())
}

func startRegistration(t *testing.T, svc *RegistrationService, username, email string) *StartRegistrationOutput {
	t.Helper()
	out, err := svc.StartRegistration(StartRegistrationInput{
		Username: username,
		Email:    email,
	})
	require.NoError(t, err)
	require.NotNil(t, out.PendingUser)
	require.NotEmpty(t, out.Code)
	return out
}

func TestStartRegistration(t *testing.T) {
	store := memory.NewStore()
	svc := newRegistrationService(store)

	out := startRegistration(t, svc, "alice", "alice@example.com")
	assert.Equal(t, "alice", out.PendingUser.Username)
	assert.Equal(t, "alice@example.com", out.PendingUser.Email)
	assert.Zero(t, out.PendingUser.FailedAttempts)

	// 验证码不以明文落库
	assert.NotContains(t, out.PendingUser.CodeHash, domain.NormalizeRegistrationCode(out.Code))
}

func TestStartRegistrationNormalizesInput(t *testing.T) {
	store := memory.NewStore()
	svc := newRegistrationService(store)

	out := startRegistration(t, svc, "  Alice  ", "  ALICE@Example.COM ")
	assert.Equal(t, "alice", out.PendingUser.Username)
	assert.Equal(t, "alice@example.com", out.PendingUser.Email)
}

func TestStartRegistrationRejectsAuthenticated(t *testing.T) {
	store := memory.NewStore()
	svc := newRegistrationService(store)

	_, err := svc.StartRegistration(StartRegistrationInput{
		Actor:    &domain.User{ID: "someone"},
		Username: "alice",
		Email:    "alice@example.com",
	})
	assert.ErrorIs(t, err, ErrMustNotBeAuthenticated)
}

func TestCompleteRegistrationCreatesUserNamespaceSession(t *testing.T) {
	store := memory.NewStore()
	svc := newRegistrationService(store)

	out := startRegistration(t, svc, "alice", "alice@example.com")

	result, err := svc.CompleteRegistration(CompleteRegistrationInput{
		PendingUserID: out.PendingUser.ID,
		Code:          out.Code,
	})
	require.NoError(t, err)

	// 用户、命名空间、会话各创建一个
	user, err := store.GetUserByEmail("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, user.ID)
	assert.True(t, user.IsAdmin, "first user should be admin")
	assert.Equal(t, domain.PlanFree, user.Plan)

	ns, err := store.GetNamespaceByPath("alice")
	require.NoError(t, err)
	assert.Equal(t, user.NamespaceID, ns.ID)
	assert.Equal(t, domain.NamespaceTypeUser, ns.Type)

	session, err := store.GetSessionByID(result.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)
	assert.NotEmpty(t, result.SessionToken)

	// 待注册记录已被消费
	_, err = store.GetPendingUserByID(out.PendingUser.ID)
	assert.ErrorIs(t, err, storage.ErrPendingUserNotFound)
}

func TestCompleteRegistrationSecondUserNotAdmin(t *testing.T) {
	store := memory.NewStore()
	svc := newRegistrationService(store)

	first := startRegistration(t, svc, "alice", "alice@example.com")
	_, err := svc.CompleteRegistration(CompleteRegistrationInput{
		PendingUserID: first.PendingUser.ID,
		Code:          first.Code,
	})
	require.NoError(t, err)

	second := startRegistration(t, svc, "bob", "bob@example.com")
	result, err := svc.CompleteRegistration(CompleteRegistrationInput{
		PendingUserID: second.PendingUser.ID,
		Code:          second.Code,
	})
	require.NoError(t, err)
	assert.False(t, result.User.IsAdmin)
}

func TestCompleteRegistrationRejectsAuthenticated(t *testing.T) {
	store := memory.NewStore()
	svc := newRegistrationService(store)

	out := startRegistration(t, svc, "alice", "alice@example.com")

	_, err := svc.CompleteRegistration(CompleteRegistrationInput{
		Actor:         &domain.User{ID: "someone"},
		PendingUserID: out.PendingUser.ID,
		Code:          out.Code,
	})
	assert.ErrorIs(t, err, ErrMustNotBeAuthenticated)
}

func TestCompleteRegistrationUnknownPending(t *testing.T) {
	store := memory.NewStore()
	svc := newRegistrationService(store)

	_, err := svc.CompleteRegistration(CompleteRegistrationInput{
		PendingUserID: "missing",
		Code:          "whatever",
	})
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestCompleteRegistrationInvalidCodeIncrementsCounter(t *testing.T) {
	store := memory.NewStore()
	svc := newRegistrationService(store)

	out := startRegistration(t, svc, "alice", "alice@example.com")

	_, err := svc.CompleteRegistration(CompleteRegistrationInput{
		PendingUserID: out.PendingUser.ID,
		Code:          "wrong-code",
	})
	assert.ErrorIs(t, err, ErrInvalidRegistrationCode)

	pending, err := store.GetPendingUserByID(out.PendingUser.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pending.FailedAttempts)
}

func TestCompleteRegistrationMaxAttempts(t *testing.T) {
	store := memory.NewStore()
	svc := newRegistrationService(store)

	out := startRegistration(t, svc, "alice", "alice@example.com")

	// 耗尽全部允许的失败次数
	for i := 0; i < domain.RegistrationMaxFailedAttempts; i++ {
		_, err := svc.CompleteRegistration(CompleteRegistrationInput{
			PendingUserID: out.PendingUser.ID,
			Code:          "wrong-code",
		})
		assert.ErrorIs(t, err, ErrInvalidRegistrationCode)
	}

	// 第 MAX+1 次返回上限错误而非验证码错误，即使验证码正确
	_, err := svc.CompleteRegistration(CompleteRegistrationInput{
		PendingUserID: out.PendingUser.ID,
		Code:          out.Code,
	})
	assert.ErrorIs(t, err, ErrMaxRegistrationAttempts)
}

func TestCompleteRegistrationExpiredCode(t *testing.T) {
	store := memory.NewStore()
	svc := newRegistrationService(store)

	out := startRegistration(t, svc, "alice", "alice@example.com")

	// 越过 30 分钟有效期
	svc.now = func() time.Time {
		return out.PendingUser.CreatedAt.Add(domain.RegistrationCodeTTL + time.Second)
	}

	// 正确的验证码也会被过期拒绝
	_, err := svc.CompleteRegistration(CompleteRegistrationInput{
		PendingUserID: out.PendingUser.ID,
		Code:          out.Code,
	})
	assert.ErrorIs(t, err, ErrRegistrationCodeExpired)
}

func TestCompleteRegistrationEmailConflict(t *testing.T) {
	store := memory.NewStore()
	svc := newRegistrationService(store)

	first := startRegistration(t, svc, "alice", "alice@example.com")
	_, err := svc.CompleteRegistration(CompleteRegistrationInput{
		PendingUserID: first.PendingUser.ID,
		Code:          first.Code,
	})
	require.NoError(t, err)

	// 同一邮箱的第二条待注册记录在完成时失败
	second := startRegistration(t, svc, "alice2", "alice@example.com")
	_, err = svc.CompleteRegistration(CompleteRegistrationInput{
		PendingUserID: second.PendingUser.ID,
		Code:          second.Code,
	})
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestCompleteRegistrationUsernameConflict(t *testing.T) {
	store := memory.NewStore()
	svc := newRegistrationService(store)

	first := startRegistration(t, svc, "alice", "alice@example.com")
	_, err := svc.CompleteRegistration(CompleteRegistrationInput{
		PendingUserID: first.PendingUser.ID,
		Code:          first.Code,
	})
	require.NoError(t, err)

	second := startRegistration(t, svc, "alice", "other@example.com")
	_, err = svc.CompleteRegistration(CompleteRegistrationInput{
		PendingUserID: second.PendingUser.ID,
		Code:          second.Code,
	})
	assert.ErrorIs(t, err, ErrUsernameAlreadyExists)

	// 冲突失败不消费待注册记录
	_, err = store.GetPendingUserByID(second.PendingUser.ID)
	assert.NoError(t, err)
}

func TestCompleteRegistrationCodeWithSeparators(t *testing.T) {
	store := memory.NewStore()
	svc := newRegistrationService(store)

	out := startRegistration(t, svc, "alice", "alice@example.com")

	// 提交带空白和大写的展示形式验证码
	result, err := svc.CompleteRegistration(CompleteRegistrationInput{
		PendingUserID: out.PendingUser.ID,
		Code:          "  " + out.Code + "  ",
	})
	require.NoError(t, err)
	assert.NotNil(t, result.User)
}

func TestCompleteRegistrationConcurrentAttempts(t *testing.T) {
	store := memory.NewStore()
	cfg := testConfig()
	// 打开随机延迟窗口，验证操作可以安全并发执行
	cfg.Registration.SleepMin = time.Microsecond
	cfg.Registration.SleepMax = 200 * time.Microsecond
	svc := NewRegistrationService(store, NewNamespaceRegistry(), cfg, zap.NewNop())

	const workers = 8
	const attemptsPerWorker = 4

	pendings := make([]*domain.PendingUser, workers)
	for i := range pendings {
		out := startRegistration(t, svc,
			fmt.Sprintf("user%d", i), fmt.Sprintf("user%d@example.com", i))
		pendings[i] = out.PendingUser
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers*attemptsPerWorker)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(pending *domain.PendingUser) {
			defer wg.Done()
			for j := 0; j < attemptsPerWorker; j++ {
				_, err := svc.CompleteRegistration(CompleteRegistrationInput{
					PendingUserID: pending.ID,
					Code:          "aaaa-2222",
				})
				errs <- err
			}
		}(pendings[i])
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, ErrInvalidRegistrationCode)
	}

	// 每条记录都累计了全部失败次数
	for _, pending := range pendings {
		stored, err := store.GetPendingUserByID(pending.ID)
		require.NoError(t, err)
		assert.Equal(t, attemptsPerWorker, stored.FailedAttempts)
	}
}
