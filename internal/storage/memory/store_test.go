package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/storage"
)

func TestTxCommitMakesWritesVisible(t *testing.T) {
	store := NewStore()

	tx, err := store.Begin()
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, tx.CreateNamespace(&domain.Namespace{
		ID:        "ns-1",
		Path:      "alice",
		Type:      domain.NamespaceTypeUser,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	require.NoError(t, tx.Commit())

	ns, err := store.GetNamespaceByPath("alice")
	require.NoError(t, err)
	assert.Equal(t, "ns-1", ns.ID)
}

func TestTxRollbackDiscardsWrites(t *testing.T) {
	store := NewStore()

	tx, err := store.Begin()
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, tx.CreateNamespace(&domain.Namespace{
		ID:        "ns-1",
		Path:      "alice",
		Type:      domain.NamespaceTypeUser,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	require.NoError(t, tx.CreateUser(&domain.User{
		ID:          "u-1",
		Username:    "alice",
		Email:       "alice@example.com",
		NamespaceID: "ns-1",
	}))

	require.NoError(t, tx.Rollback())

	_, err = store.GetNamespaceByPath("alice")
	assert.ErrorIs(t, err, storage.ErrNamespaceNotFound)
	_, err = store.GetUserByEmail("alice@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestTxDoubleFinishFails(t *testing.T) {
	store := NewStore()

	tx, err := store.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Error(t, tx.Commit())
	assert.Error(t, tx.Rollback())
}

func TestNamespacePathUniqueness(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.CreateNamespace(&domain.Namespace{ID: "ns-1", Path: "taken", Type: domain.NamespaceTypeUser}))
	err := store.CreateNamespace(&domain.Namespace{ID: "ns-2", Path: "taken", Type: domain.NamespaceTypeGroup})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestDeleteNamespaceCascadesGroup(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.CreateNamespace(&domain.Namespace{ID: "ns-1", Path: "team", Type: domain.NamespaceTypeGroup}))
	require.NoError(t, store.CreateGroup(&domain.Group{ID: "g-1", Path: "team", Name: "Team", NamespaceID: "ns-1"}))
	require.NoError(t, store.CreateGroupMembership(&domain.GroupMembership{UserID: "u-1", GroupID: "g-1", Role: domain.RoleAdministrator}))

	require.NoError(t, store.DeleteNamespace("ns-1"))

	_, err := store.GetGroupByID("g-1")
	assert.ErrorIs(t, err, storage.ErrGroupNotFound)
	_, err = store.GetGroupMembership("g-1", "u-1")
	assert.ErrorIs(t, err, storage.ErrMembershipNotFound)
}

func TestIsNamespaceMember(t *testing.T) {
	store := NewStore()

	// 用户命名空间：仅所有者是成员
	require.NoError(t, store.CreateNamespace(&domain.Namespace{ID: "ns-u", Path: "alice", Type: domain.NamespaceTypeUser}))
	require.NoError(t, store.CreateUser(&domain.User{ID: "u-1", Username: "alice", Email: "alice@example.com", NamespaceID: "ns-u"}))

	ok, err := store.IsNamespaceMember("ns-u", "u-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.IsNamespaceMember("ns-u", "u-2")
	require.NoError(t, err)
	assert.False(t, ok)

	// 群组命名空间：群组成员才是成员
	require.NoError(t, store.CreateNamespace(&domain.Namespace{ID: "ns-g", Path: "team", Type: domain.NamespaceTypeGroup}))
	require.NoError(t, store.CreateGroup(&domain.Group{ID: "g-1", Path: "team", Name: "Team", NamespaceID: "ns-g"}))
	require.NoError(t, store.CreateGroupMembership(&domain.GroupMembership{UserID: "u-1", GroupID: "g-1", Role: domain.RoleMember}))

	ok, err = store.IsNamespaceMember("ns-g", "u-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.IsNamespaceMember("ns-g", "u-9")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListContactRelationIdempotent(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.CreateNewsletterList(&domain.NewsletterList{ID: "l-1", NamespaceID: "ns-1", Name: "news"}))
	require.NoError(t, store.CreateContact(&domain.Contact{ID: "c-1", NamespaceID: "ns-1", Email: "a@b.co"}))

	rel := &domain.NewsletterListContactRelation{ListID: "l-1", ContactID: "c-1"}
	require.NoError(t, store.CreateListContactRelation(rel))
	require.NoError(t, store.CreateListContactRelation(rel)) // 重复创建幂等

	contacts, err := store.ListContactsByList("l-1")
	require.NoError(t, err)
	assert.Len(t, contacts, 1)
}

func TestUpdateCustomerUnbindsNamespace(t *testing.T) {
	store := NewStore()

	nsID := "ns-1"
	require.NoError(t, store.CreateCustomer(&domain.Customer{ID: "cus-1", NamespaceID: &nsID}))

	customer, err := store.GetCustomerByNamespaceID(nsID)
	require.NoError(t, err)

	customer.NamespaceID = nil
	require.NoError(t, store.UpdateCustomer(customer))

	_, err = store.GetCustomerByNamespaceID(nsID)
	assert.ErrorIs(t, err, storage.ErrCustomerNotFound)
}
