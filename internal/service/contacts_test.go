package service

import (
	"bytes"
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

func newContactService(store storage.Store) *ContactImportService {
	return NewContactImportService(store, testConfig(), zap.NewNop())
}

func seedList(t *testing.T, store storage.Store, namespaceID string) *domain.NewsletterList {
	t.Helper()
	now := time.Now().UTC()
	list := &domain.NewsletterList{
		ID:          uuid.NewString(),
		NamespaceID: namespaceID,
		Name:        "Subscribers",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, store.CreateNewsletterList(list))
	return list
}

func TestImportContacts(t *testing.T) {
	store := memory.NewStore()
	svc := newContactService(store)
	actor := seedUser(t, store, "alice")

	contacts, err := svc.Import(ImportContactsInput{
		Actor:       actor,
		NamespaceID: actor.NamespaceID,
		Payload:     []byte("Bob,bob@example.com\nCarol,carol@example.com\n"),
	})
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	assert.Equal(t, "bob@example.com", contacts[0].Email)
	assert.Equal(t, "Bob", contacts[0].Name)
	assert.Equal(t, "carol@example.com", contacts[1].Email)

	stored, err := store.GetContactByEmail(actor.NamespaceID, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Bob", stored.Name)
}

func TestImportContactsRequiresAuthentication(t *testing.T) {
	store := memory.NewStore()
	svc := newContactService(store)

	_, err := svc.Import(ImportContactsInput{NamespaceID: "ns", Payload: []byte("a,a@b.com")})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestImportContactsRequiresMembership(t *testing.T) {
	store := memory.NewStore()
	svc := newContactService(store)
	owner := seedUser(t, store, "alice")
	outsider := seedUser(t, store, "bob")

	_, err := svc.Import(ImportContactsInput{
		Actor:       outsider,
		NamespaceID: owner.NamespaceID,
		Payload:     []byte("Bob,bob@example.com"),
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestImportContactsListNamespaceMismatch(t *testing.T) {
	store := memory.NewStore()
	svc := newContactService(store)
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")

	// 列表属于另一个命名空间
	foreign := seedList(t, store, bob.NamespaceID)

	_, err := svc.Import(ImportContactsInput{
		Actor:       alice,
		NamespaceID: alice.NamespaceID,
		ListID:      &foreign.ID,
		Payload:     []byte("Bob,bob@example.com"),
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// 失败发生在任何写入之前
	_, err = store.GetContactByEmail(alice.NamespaceID, "bob@example.com")
	assert.ErrorIs(t, err, storage.ErrContactNotFound)
}

func TestImportContactsPayloadTooLarge(t *testing.T) {
	store := memory.NewStore()
	svc := newContactService(store)
	actor := seedUser(t, store, "alice")

	payload := bytes.Repeat([]byte("a"), int(testConfig().Contacts.MaxCSVBytes)+1)

	_, err := svc.Import(ImportContactsInput{
		Actor:       actor,
		NamespaceID: actor.NamespaceID,
		Payload:     payload,
	})
	assert.ErrorIs(t, err, ErrContactsCSVTooLarge)
}

func TestImportContactsMalformedPayload(t *testing.T) {
	store := memory.NewStore()
	svc := newContactService(store)
	actor := seedUser(t, store, "alice")

	// 第二行缺少邮箱列，整个导入失败
	_, err := svc.Import(ImportContactsInput{
		Actor:       actor,
		NamespaceID: actor.NamespaceID,
		Payload:     []byte("Bob,bob@example.com\nonly-one-field\n"),
	})
	assert.ErrorIs(t, err, ErrContactsCSVInvalid)

	_, err = store.GetContactByEmail(actor.NamespaceID, "bob@example.com")
	assert.ErrorIs(t, err, storage.ErrContactNotFound)
}

func TestImportContactsInvalidEmailAbortsAll(t *testing.T) {
	store := memory.NewStore()
	svc := newContactService(store)
	actor := seedUser(t, store, "alice")

	_, err := svc.Import(ImportContactsInput{
		Actor:       actor,
		NamespaceID: actor.NamespaceID,
		Payload:     []byte("Bob,bob@example.com\nBad,not-an-email\n"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	// 校验失败不产生任何写入
	_, err = store.GetContactByEmail(actor.NamespaceID, "bob@example.com")
	assert.ErrorIs(t, err, storage.ErrContactNotFound)
}

func TestImportContactsDedupLastWriteWins(t *testing.T) {
	store := memory.NewStore()
	svc := newContactService(store)
	actor := seedUser(t, store, "alice")

	contacts, err := svc.Import(ImportContactsInput{
		Actor:       actor,
		NamespaceID: actor.NamespaceID,
		Payload:     []byte("Bob, X@Y.com \nBob2,x@y.com\n"),
	})
	require.NoError(t, err)
	require.Len(t, contacts, 1)

	assert.Equal(t, "x@y.com", contacts[0].Email)
	assert.Equal(t, "Bob2", contacts[0].Name)
}

func TestImportContactsDropsEmptyEmails(t *testing.T) {
	store := memory.NewStore()
	svc := newContactService(store)
	actor := seedUser(t, store, "alice")

	contacts, err := svc.Import(ImportContactsInput{
		Actor:       actor,
		NamespaceID: actor.NamespaceID,
		Payload:     []byte("NoEmail,   \nBob,bob@example.com\n"),
	})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "bob@example.com", contacts[0].Email)
}

func TestImportContactsUpsertSemantics(t *testing.T) {
	store := memory.NewStore()
	svc := newContactService(store)
	actor := seedUser(t, store, "alice")

	first, err := svc.Import(ImportContactsInput{
		Actor:       actor,
		NamespaceID: actor.NamespaceID,
		Payload:     []byte("Bob,bob@example.com\n"),
	})
	require.NoError(t, err)
	require.Len(t, first, 1)

	// 空名字不覆盖已有名字
	second, err := svc.Import(ImportContactsInput{
		Actor:       actor,
		NamespaceID: actor.NamespaceID,
		Payload:     []byte(",bob@example.com\n"),
	})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, "Bob", second[0].Name)

	// 新的非空名字覆盖
	third, err := svc.Import(ImportContactsInput{
		Actor:       actor,
		NamespaceID: actor.NamespaceID,
		Payload:     []byte("Robert,bob@example.com\n"),
	})
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.Equal(t, first[0].ID, third[0].ID)
	assert.Equal(t, "Robert", third[0].Name)

	stored, err := store.GetContactByEmail(actor.NamespaceID, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Robert", stored.Name)
}

func TestImportContactsIntoList(t *testing.T) {
	store := memory.NewStore()
	svc := newContactService(store)
	actor := seedUser(t, store, "alice")
	list := seedList(t, store, actor.NamespaceID)

	contacts, err := svc.Import(ImportContactsInput{
		Actor:       actor,
		NamespaceID: actor.NamespaceID,
		ListID:      &list.ID,
		Payload:     []byte("Bob,bob@example.com\nCarol,carol@example.com\n"),
	})
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	members, err := store.ListContactsByList(list.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	// 重复导入同一列表：关联幂等，不报错也不重复
	_, err = svc.Import(ImportContactsInput{
		Actor:       actor,
		NamespaceID: actor.NamespaceID,
		ListID:      &list.ID,
		Payload:     []byte("Bob,bob@example.com\n"),
	})
	require.NoError(t, err)

	members, err = store.ListContactsByList(list.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestImportContactsUnknownList(t *testing.T) {
	store := memory.NewStore()
	svc := newContactService(store)
	actor := seedUser(t, store, "alice")

	missing := "missing-list"
	_, err := svc.Import(ImportContactsInput{
		Actor:       actor,
		NamespaceID: actor.NamespaceID,
		ListID:      &missing,
		Payload:     []byte("Bob,bob@example.com"),
	})
	assert.ErrorIs(t, err, ErrListNotFound)
}

func TestDedupeContactsOrdering(t *testing.T) {
	records := []domain.ImportedContact{
		{Name: "A", Email: "a@x.com"},
		{Name: "B", Email: "b@x.com"},
		{Name: "A2", Email: "a@x.com"},
		{Name: "", Email: ""},
		{Name: "C", Email: "c@x.com"},
	}

	out := dedupeContacts(records)
	require.Len(t, out, 3)

	// 顺序取首次出现位置，值取最后一次出现
	assert.Equal(t, "a@x.com", out[0].Email)
	assert.Equal(t, "A2", out[0].Name)
	assert.Equal(t, "b@x.com", out[1].Email)
	assert.Equal(t, "c@x.com", out[2].Email)
}
