package httptransport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	jwtpkg "drivehub/backend/internal/auth/jwt"
	"drivehub/backend/internal/config"
	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/service"
	"drivehub/backend/internal/storage"
	"drivehub/backend/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// envelope 与统一响应结构对应，Data 延迟解码
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testEnv struct {
	router       *gin.Engine
	store        storage.Store
	jwtManager   *jwtpkg.Manager
	registration *service.RegistrationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Registration: config.RegistrationConfig{},
		Contacts:     config.ContactsConfig{MaxCSVBytes: domain.MaxContactsCSVBytes},
		RateLimit:    config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		CORS:         config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	store := memory.NewStore()
	registry := service.NewNamespaceRegistry()
	log := zap.NewNop()

	registration := service.NewRegistrationService(store, registry, cfg, log)
	groups := service.NewGroupService(store, registry, log)
	contacts := service.NewContactImportService(store, cfg, log)
	jwtManager := jwtpkg.NewManager(
		"test-secret-at-least-32-characters!!",
		"drivehub-test",
		15*time.Minute,
		7*24*time.Hour,
	)

	router := NewRouter(RouterDependencies{
		Config:              cfg,
		RegistrationService: registration,
		GroupService:        groups,
		ContactService:      contacts,
		JWTManager:          jwtManager,
		Store:               store,
		Logger:              log,
	})

	return &testEnv{
		router:       router,
		store:        store,
		jwtManager:   jwtManager,
		registration: registration,
	}
}

// seedUser 直接写入一个已注册用户（带个人命名空间）
func (e *testEnv) seedUser(t *testing.T, username string) *domain.User {
	t.Helper()
	now := time.Now().UTC()

	ns := &domain.Namespace{
		ID:        uuid.NewString(),
		Path:      username,
		Type:      domain.NamespaceTypeUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.store.CreateNamespace(ns))

	user := &domain.User{
		ID:          uuid.NewString(),
		Username:    username,
		Email:       username + "@example.com",
		Plan:        domain.PlanFree,
		NamespaceID: ns.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, e.store.CreateUser(user))
	return user
}

func (e *testEnv) bearerFor(t *testing.T, user *domain.User) string {
	t.Helper()
	pair, err := e.jwtManager.GenerateTokenPair(user.ID, user.Username, string(user.Plan))
	require.NoError(t, err)
	return "Bearer " + pair.AccessToken
}

func (e *testEnv) do(t *testing.T, method, path, auth string, body []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestRegisterEndpoint(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(gin.H{"username": "alice", "email": "alice@example.com"})
	w, resp := env.do(t, http.MethodPost, "/v1/auth/register", "", body)

	require.Equal(t, http.StatusCreated, w.Code)

	var data struct {
		PendingUserID string `json:"pendingUserId"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.NotEmpty(t, data.PendingUserID)

	// 待注册记录已落库
	pending, err := env.store.GetPendingUserByID(data.PendingUserID)
	require.NoError(t, err)
	assert.Equal(t, "alice", pending.Username)
}

func TestRegisterRejectsAuthenticatedCaller(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "bob")

	body, _ := json.Marshal(gin.H{"username": "carol", "email": "carol@example.com"})
	w, _ := env.do(t, http.MethodPost, "/v1/auth/register", env.bearerFor(t, user), body)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegisterRejectsInvalidUsername(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(gin.H{"username": "x", "email": "x@example.com"})
	w, _ := env.do(t, http.MethodPost, "/v1/auth/register", "", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompleteRegistrationEndpoint(t *testing.T) {
	env := newTestEnv(t)

	// 验证码经由邮件投递，这里直接从服务层取
	out, err := env.registration.StartRegistration(service.StartRegistrationInput{
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)

	body, _ := json.Marshal(gin.H{"pendingUserId": out.PendingUser.ID, "code": out.Code})
	w, resp := env.do(t, http.MethodPost, "/v1/auth/register/complete", "", body)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		User struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			IsAdmin  bool   `json:"isAdmin"`
		} `json:"user"`
		SessionToken string `json:"sessionToken"`
		AccessToken  string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "alice", data.User.Username)
	assert.True(t, data.User.IsAdmin) // 首个用户自动成为管理员
	assert.NotEmpty(t, data.SessionToken)
	assert.NotEmpty(t, data.AccessToken)

	// 返回的访问令牌立刻可用
	w2, resp2 := env.do(t, http.MethodGet, "/v1/auth/me", "Bearer "+data.AccessToken, nil)
	require.Equal(t, http.StatusOK, w2.Code)

	var me struct {
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(resp2.Data, &me))
	assert.Equal(t, "alice", me.Username)
}

func TestCompleteRegistrationWrongCode(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.registration.StartRegistration(service.StartRegistrationInput{
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)

	body, _ := json.Marshal(gin.H{"pendingUserId": out.PendingUser.ID, "code": "WRONGCOD"})
	w, _ := env.do(t, http.MethodPost, "/v1/auth/register/complete", "", body)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGroupRoutesRequireAuthentication(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(gin.H{"path": "acme", "name": "Acme"})
	w, _ := env.do(t, http.MethodPost, "/v1/groups", "", body)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGroupLifecycle(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice")
	auth := env.bearerFor(t, user)

	body, _ := json.Marshal(gin.H{"path": "acme-team", "name": "Acme Team", "description": "shared"})
	w, resp := env.do(t, http.MethodPost, "/v1/groups", auth, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID   string `json:"id"`
		Path string `json:"path"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, "acme-team", created.Path)

	// 成员可以读取群组
	w2, _ := env.do(t, http.MethodGet, "/v1/groups/"+created.ID, auth, nil)
	assert.Equal(t, http.StatusOK, w2.Code)

	// 非成员看不到群组存在
	outsider := env.seedUser(t, "mallory")
	w3, _ := env.do(t, http.MethodGet, "/v1/groups/"+created.ID, env.bearerFor(t, outsider), nil)
	assert.Equal(t, http.StatusNotFound, w3.Code)

	// 管理员删除群组
	w4, _ := env.do(t, http.MethodDelete, "/v1/groups/"+created.ID, auth, nil)
	require.Equal(t, http.StatusNoContent, w4.Code)

	w5, _ := env.do(t, http.MethodGet, "/v1/groups/"+created.ID, auth, nil)
	assert.Equal(t, http.StatusNotFound, w5.Code)
}

func TestGroupDeleteRequiresAdministrator(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "alice")

	body, _ := json.Marshal(gin.H{"path": "acme-team", "name": "Acme Team"})
	w, resp := env.do(t, http.MethodPost, "/v1/groups", env.bearerFor(t, admin), body)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))

	// 普通成员无权删除
	member := env.seedUser(t, "bob")
	require.NoError(t, env.store.CreateGroupMembership(&domain.GroupMembership{
		UserID:   member.ID,
		GroupID:  created.ID,
		Role:     domain.RoleMember,
		JoinedAt: time.Now().UTC(),
	}))

	w2, _ := env.do(t, http.MethodDelete, "/v1/groups/"+created.ID, env.bearerFor(t, member), nil)
	assert.Equal(t, http.StatusForbidden, w2.Code)
}

func TestImportContactsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice")

	csv := "Ada Lovelace,ada@example.com\nGrace Hopper,grace@example.com\n"
	req := httptest.NewRequest(http.MethodPost, "/v1/namespaces/"+user.NamespaceID+"/contacts/import",
		strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", env.bearerFor(t, user))

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	var data struct {
		Count int `json:"count"`
		Items []struct {
			Email string `json:"email"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, 2, data.Count)

	contact, err := env.store.GetContactByEmail(user.NamespaceID, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", contact.Name)
}

func TestImportContactsForeignNamespace(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice")
	other := env.seedUser(t, "bob")

	csv := "Ada Lovelace,ada@example.com\n"
	req := httptest.NewRequest(http.MethodPost, "/v1/namespaces/"+other.NamespaceID+"/contacts/import",
		strings.NewReader(csv))
	req.Header.Set("Authorization", env.bearerFor(t, user))

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestImportContactsMalformedCSV(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice")

	// 列数错误，整体拒绝
	csv := "Ada Lovelace,ada@example.com,extra\n"
	req := httptest.NewRequest(http.MethodPost, "/v1/namespaces/"+user.NamespaceID+"/contacts/import",
		strings.NewReader(csv))
	req.Header.Set("Authorization", env.bearerFor(t, user))

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// 没有任何部分写入
	_, err := env.store.GetContactByEmail(user.NamespaceID, "ada@example.com")
	assert.ErrorIs(t, err, storage.ErrContactNotFound)
}

func TestUserProfileEndpoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "alice")
	env.seedUser(t, "bob")

	w, resp := env.do(t, http.MethodGet, "/v1/users/bob", env.bearerFor(t, alice), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "bob", data.Username)
	assert.NotEmpty(t, data.ID)

	// 公开资料不含邮箱等私有字段
	assert.NotContains(t, string(resp.Data), "email")

	// 未知用户名
	w2, _ := env.do(t, http.MethodGet, "/v1/users/nobody", env.bearerFor(t, alice), nil)
	assert.Equal(t, http.StatusNotFound, w2.Code)

	// 需要认证
	w3, _ := env.do(t, http.MethodGet, "/v1/users/bob", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w3.Code)
}

func TestListSessionsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice")
	other := env.seedUser(t, "bob")

	now := time.Now().UTC()
	for i := 0; i < 2; i++ {
		require.NoError(t, env.store.CreateSession(&domain.Session{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			TokenHash: "hash",
			CreatedAt: now,
			UpdatedAt: now,
		}))
	}
	// 其他用户的会话不得混入
	require.NoError(t, env.store.CreateSession(&domain.Session{
		ID:        uuid.NewString(),
		UserID:    other.ID,
		TokenHash: "hash",
		CreatedAt: now,
		UpdatedAt: now,
	}))

	w, resp := env.do(t, http.MethodGet, "/v1/auth/sessions", env.bearerFor(t, user), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Count int `json:"count"`
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, 2, data.Count)
	assert.Len(t, data.Items, 2)
}
