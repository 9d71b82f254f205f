package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/storage"
	"drivehub/backend/internal/storage/memory"
)

func newGroupService(store storage.Store) *GroupService {
	return NewGroupService(store, NewNamespaceRegistry(), zap.NewNop())
}

// seedUser 直接写入一个已注册用户（带命名空间）
func seedUser(t *testing.T, store storage.Store, username string) *domain.User {
	t.Helper()
	now := time.Now().UTC()

	ns := &domain.Namespace{
		ID:        uuid.NewString(),
		Path:      username,
		Type:      domain.NamespaceTypeUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.CreateNamespace(ns))

	user := &domain.User{
		ID:          uuid.NewString(),
		Username:    username,
		Email:       username + "@example.com",
		Plan:        domain.PlanFree,
		NamespaceID: ns.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, store.CreateUser(user))
	return user
}

func TestCreateGroup(t *testing.T) {
	store := memory.NewStore()
	svc := newGroupService(store)
	actor := seedUser(t, store, "alice")

	group, err := svc.Create(CreateGroupInput{
		Actor:       actor,
		Path:        "  Acme-Team ",
		Name:        " Acme Team ",
		Description: "shared workspace",
	})
	require.NoError(t, err)

	assert.Equal(t, "acme-team", group.Path)
	assert.Equal(t, "Acme Team", group.Name)
	assert.Equal(t, domain.PlanFree, group.Plan)
	assert.Zero(t, group.UsedStorage)

	ns, err := store.GetNamespaceByPath("acme-team")
	require.NoError(t, err)
	assert.Equal(t, group.NamespaceID, ns.ID)
	assert.Equal(t, domain.NamespaceTypeGroup, ns.Type)

	// 创建者获得管理员成员关系
	membership, err := store.GetGroupMembership(group.ID, actor.ID)
	require.NoError(t, err)
	assert.True(t, membership.IsAdministrator())
}

func TestCreateGroupRequiresAuthentication(t *testing.T) {
	store := memory.NewStore()
	svc := newGroupService(store)

	_, err := svc.Create(CreateGroupInput{Path: "team", Name: "Team"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCreateGroupValidation(t *testing.T) {
	store := memory.NewStore()
	svc := newGroupService(store)
	actor := seedUser(t, store, "alice")

	_, err := svc.Create(CreateGroupInput{Actor: actor, Path: "ab", Name: "Team"})
	assert.ErrorIs(t, err, domain.ErrNamespacePathTooShort)

	_, err = svc.Create(CreateGroupInput{Actor: actor, Path: "team", Name: "   "})
	assert.ErrorIs(t, err, domain.ErrGroupNameEmpty)
}

func TestCreateGroupPathConflict(t *testing.T) {
	store := memory.NewStore()
	svc := newGroupService(store)
	actor := seedUser(t, store, "alice")

	first, err := svc.Create(CreateGroupInput{Actor: actor, Path: "team", Name: "Team"})
	require.NoError(t, err)

	_, err = svc.Create(CreateGroupInput{Actor: actor, Path: "team", Name: "Other"})
	assert.ErrorIs(t, err, ErrNamespaceAlreadyExists)

	// 第一个群组不受影响
	got, err := store.GetGroupByID(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Team", got.Name)
}

func TestDeleteGroup(t *testing.T) {
	store := memory.NewStore()
	svc := newGroupService(store)
	actor := seedUser(t, store, "alice")

	group, err := svc.Create(CreateGroupInput{Actor: actor, Path: "team", Name: "Team"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(DeleteGroupInput{Actor: actor, GroupID: group.ID}))

	_, err = store.GetGroupByID(group.ID)
	assert.ErrorIs(t, err, storage.ErrGroupNotFound)
	_, err = store.GetNamespaceByID(group.NamespaceID)
	assert.ErrorIs(t, err, storage.ErrNamespaceNotFound)
	_, err = store.GetGroupMembership(group.ID, actor.ID)
	assert.ErrorIs(t, err, storage.ErrMembershipNotFound)
}

func TestDeleteGroupNotFound(t *testing.T) {
	store := memory.NewStore()
	svc := newGroupService(store)
	actor := seedUser(t, store, "alice")

	err := svc.Delete(DeleteGroupInput{Actor: actor, GroupID: "missing"})
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestDeleteGroupRequiresAdminRole(t *testing.T) {
	store := memory.NewStore()
	svc := newGroupService(store)
	admin := seedUser(t, store, "alice")
	member := seedUser(t, store, "bob")
	outsider := seedUser(t, store, "carol")

	group, err := svc.Create(CreateGroupInput{Actor: admin, Path: "team", Name: "Team"})
	require.NoError(t, err)

	require.NoError(t, store.CreateGroupMembership(&domain.GroupMembership{
		UserID:   member.ID,
		GroupID:  group.ID,
		Role:     domain.RoleMember,
		JoinedAt: time.Now().UTC(),
	}))

	// 普通成员与非成员都被拒绝
	err = svc.Delete(DeleteGroupInput{Actor: member, GroupID: group.ID})
	assert.ErrorIs(t, err, ErrAdminRoleRequired)
	err = svc.Delete(DeleteGroupInput{Actor: outsider, GroupID: group.ID})
	assert.ErrorIs(t, err, ErrAdminRoleRequired)

	// 群组、命名空间、成员关系保持不变
	_, err = store.GetGroupByID(group.ID)
	assert.NoError(t, err)
	_, err = store.GetNamespaceByID(group.NamespaceID)
	assert.NoError(t, err)
	_, err = store.GetGroupMembership(group.ID, member.ID)
	assert.NoError(t, err)
}

func TestDeleteGroupSubscriptionActive(t *testing.T) {
	store := memory.NewStore()
	svc := newGroupService(store)
	actor := seedUser(t, store, "alice")

	group, err := svc.Create(CreateGroupInput{Actor: actor, Path: "team", Name: "Team"})
	require.NoError(t, err)

	// 升级到付费方案
	group.Plan = domain.PlanPro
	require.NoError(t, store.UpdateGroup(group))

	err = svc.Delete(DeleteGroupInput{Actor: actor, GroupID: group.ID})
	assert.ErrorIs(t, err, ErrSubscriptionIsActive)

	_, err = store.GetGroupByID(group.ID)
	assert.NoError(t, err)
}

func TestDeleteGroupUnbindsCustomer(t *testing.T) {
	store := memory.NewStore()
	svc := newGroupService(store)
	actor := seedUser(t, store, "alice")

	group, err := svc.Create(CreateGroupInput{Actor: actor, Path: "team", Name: "Team"})
	require.NoError(t, err)

	now := time.Now().UTC()
	nsID := group.NamespaceID
	customer := &domain.Customer{
		ID:          uuid.NewString(),
		NamespaceID: &nsID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, store.CreateCustomer(customer))

	require.NoError(t, svc.Delete(DeleteGroupInput{Actor: actor, GroupID: group.ID}))

	// 客户被解绑而非删除
	_, err = store.GetCustomerByNamespaceID(nsID)
	assert.ErrorIs(t, err, storage.ErrCustomerNotFound)

	unbound, err := store.GetCustomerByID(customer.ID)
	require.NoError(t, err)
	assert.Nil(t, unbound.NamespaceID)
}
