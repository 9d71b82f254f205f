package memory

import (
	"errors"
	"sync"
	"time"

	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/storage"
)

// Store 使用内存保存全部实体数据，主要用于开发验证与测试。
//
// 事务通过整库快照实现：Begin 持有全局锁并克隆当前状态，事务内的
// 写操作只作用于克隆，Commit 时整体替换，Rollback 时丢弃。事务之间
// 完全串行，天然满足编排核心所要求的隔离语义。
type Store struct {
	mu    sync.Mutex
	state *state
}

// state 保存全部实体表及派生索引
type state struct {
	namespaces     map[string]*domain.Namespace // namespaceID -> namespace
	nsByPath       map[string]string            // path -> namespaceID
	pendingUsers   map[string]*domain.PendingUser
	users          map[string]*domain.User
	userByEmail    map[string]string // email -> userID
	userByUsername map[string]string // username -> userID
	sessions       map[string]*domain.Session
	groups         map[string]*domain.Group
	memberships    map[string]*domain.GroupMembership // groupID:userID
	customers      map[string]*domain.Customer
	customerByNS   map[string]string // namespaceID -> customerID
	contacts       map[string]*domain.Contact
	contactByKey   map[string]string // namespaceID:email -> contactID
	lists          map[string]*domain.NewsletterList
	relations      map[string][]string // listID -> contactIDs（保持插入顺序）
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{state: newState()}
}

func newState() *state {
	return &state{
		namespaces:     make(map[string]*domain.Namespace),
		nsByPath:       make(map[string]string),
		pendingUsers:   make(map[string]*domain.PendingUser),
		users:          make(map[string]*domain.User),
		userByEmail:    make(map[string]string),
		userByUsername: make(map[string]string),
		sessions:       make(map[string]*domain.Session),
		groups:         make(map[string]*domain.Group),
		memberships:    make(map[string]*domain.GroupMembership),
		customers:      make(map[string]*domain.Customer),
		customerByNS:   make(map[string]string),
		contacts:       make(map[string]*domain.Contact),
		contactByKey:   make(map[string]string),
		lists:          make(map[string]*domain.NewsletterList),
		relations:      make(map[string][]string),
	}
}

// clone 深拷贝当前状态，作为事务的工作副本
func (st *state) clone() *state {
	out := newState()
	for k, v := range st.namespaces {
		ns := *v
		out.namespaces[k] = &ns
	}
	for k, v := range st.nsByPath {
		out.nsByPath[k] = v
	}
	for k, v := range st.pendingUsers {
		p := *v
		out.pendingUsers[k] = &p
	}
	for k, v := range st.users {
		u := *v
		out.users[k] = &u
	}
	for k, v := range st.userByEmail {
		out.userByEmail[k] = v
	}
	for k, v := range st.userByUsername {
		out.userByUsername[k] = v
	}
	for k, v := range st.sessions {
		s := *v
		out.sessions[k] = &s
	}
	for k, v := range st.groups {
		g := *v
		out.groups[k] = &g
	}
	for k, v := range st.memberships {
		m := *v
		out.memberships[k] = &m
	}
	for k, v := range st.customers {
		c := *v
		out.customers[k] = &c
	}
	for k, v := range st.customerByNS {
		out.customerByNS[k] = v
	}
	for k, v := range st.contacts {
		c := *v
		out.contacts[k] = &c
	}
	for k, v := range st.contactByKey {
		out.contactByKey[k] = v
	}
	for k, v := range st.lists {
		l := *v
		out.lists[k] = &l
	}
	for k, v := range st.relations {
		ids := make([]string, len(v))
		copy(ids, v)
		out.relations[k] = ids
	}
	return out
}

// Begin 开启事务：持有存储锁并在快照上工作，Commit/Rollback 释放锁。
func (s *Store) Begin() (storage.Tx, error) {
	s.mu.Lock()
	return &memTx{store: s, state: s.state.clone()}, nil
}

// Health 检查存储健康状态（内存存储恒为健康）。
func (s *Store) Health() error { return nil }

// Close 关闭存储（内存存储无需清理）。
func (s *Store) Close() error { return nil }

// memTx 内存事务：所有操作作用于状态快照
type memTx struct {
	store *Store
	state *state
	done  bool
}

var errTxDone = errors.New("transaction already finished")

// Commit 提交事务，将快照整体替换为当前状态
func (tx *memTx) Commit() error {
	if tx.done {
		return errTxDone
	}
	tx.done = true
	tx.store.state = tx.state
	tx.store.mu.Unlock()
	return nil
}

// Rollback 回滚事务，丢弃快照
func (tx *memTx) Rollback() error {
	if tx.done {
		return errTxDone
	}
	tx.done = true
	tx.store.mu.Unlock()
	return nil
}

// ========== Namespace Repository ==========

func (st *state) createNamespace(ns *domain.Namespace) error {
	if _, exists := st.nsByPath[ns.Path]; exists {
		return storage.ErrDuplicateKey
	}
	stored := *ns
	st.namespaces[ns.ID] = &stored
	st.nsByPath[ns.Path] = ns.ID
	return nil
}

func (st *state) getNamespaceByID(id string) (*domain.Namespace, error) {
	ns, ok := st.namespaces[id]
	if !ok {
		return nil, storage.ErrNamespaceNotFound
	}
	out := *ns
	return &out, nil
}

func (st *state) getNamespaceByPath(path string) (*domain.Namespace, error) {
	id, ok := st.nsByPath[path]
	if !ok {
		return nil, storage.ErrNamespaceNotFound
	}
	return st.getNamespaceByID(id)
}

func (st *state) namespaceExists(path string) (bool, error) {
	_, ok := st.nsByPath[path]
	return ok, nil
}

func (st *state) deleteNamespace(id string) error {
	ns, ok := st.namespaces[id]
	if !ok {
		return storage.ErrNamespaceNotFound
	}
	delete(st.nsByPath, ns.Path)
	delete(st.namespaces, id)

	// 级联删除所属群组及其成员关系（模拟持久层引用完整性规则）
	for gid, g := range st.groups {
		if g.NamespaceID != id {
			continue
		}
		for key, m := range st.memberships {
			if m.GroupID == gid {
				delete(st.memberships, key)
			}
		}
		delete(st.groups, gid)
	}
	return nil
}

func (st *state) isNamespaceMember(namespaceID, userID string) (bool, error) {
	ns, ok := st.namespaces[namespaceID]
	if !ok {
		return false, storage.ErrNamespaceNotFound
	}

	switch ns.Type {
	case domain.NamespaceTypeUser:
		user, ok := st.users[userID]
		return ok && user.NamespaceID == namespaceID, nil
	case domain.NamespaceTypeGroup:
		for _, g := range st.groups {
			if g.NamespaceID != namespaceID {
				continue
			}
			_, ok := st.memberships[membershipKey(g.ID, userID)]
			return ok, nil
		}
		return false, nil
	default:
		return false, nil
	}
}

// ========== PendingUser Repository ==========

func (st *state) createPendingUser(pending *domain.PendingUser) error {
	stored := *pending
	st.pendingUsers[pending.ID] = &stored
	return nil
}

func (st *state) getPendingUserByID(id string) (*domain.PendingUser, error) {
	p, ok := st.pendingUsers[id]
	if !ok {
		return nil, storage.ErrPendingUserNotFound
	}
	out := *p
	return &out, nil
}

func (st *state) updatePendingUser(pending *domain.PendingUser) error {
	if _, ok := st.pendingUsers[pending.ID]; !ok {
		return storage.ErrPendingUserNotFound
	}
	stored := *pending
	stored.UpdatedAt = time.Now()
	st.pendingUsers[pending.ID] = &stored
	return nil
}

func (st *state) deletePendingUser(id string) error {
	if _, ok := st.pendingUsers[id]; !ok {
		return storage.ErrPendingUserNotFound
	}
	delete(st.pendingUsers, id)
	return nil
}

// ========== User Repository ==========

func (st *state) createUser(user *domain.User) error {
	if _, exists := st.userByEmail[user.Email]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := st.userByUsername[user.Username]; exists {
		return storage.ErrDuplicateKey
	}
	stored := *user
	st.users[user.ID] = &stored
	st.userByEmail[user.Email] = user.ID
	st.userByUsername[user.Username] = user.ID
	return nil
}

func (st *state) getUserByID(id string) (*domain.User, error) {
	u, ok := st.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (st *state) getUserByEmail(email string) (*domain.User, error) {
	id, ok := st.userByEmail[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return st.getUserByID(id)
}

func (st *state) getUserByUsername(username string) (*domain.User, error) {
	id, ok := st.userByUsername[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return st.getUserByID(id)
}

func (st *state) countUsers() (int64, error) {
	return int64(len(st.users)), nil
}

// ========== Session Repository ==========

func (st *state) createSession(session *domain.Session) error {
	stored := *session
	st.sessions[session.ID] = &stored
	return nil
}

func (st *state) getSessionByID(id string) (*domain.Session, error) {
	s, ok := st.sessions[id]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	out := *s
	return &out, nil
}

func (st *state) listSessionsByUserID(userID string) ([]domain.Session, error) {
	var out []domain.Session
	for _, s := range st.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

// ========== Group Repository ==========

func membershipKey(groupID, userID string) string {
	return groupID + ":" + userID
}

func (st *state) createGroup(group *domain.Group) error {
	stored := *group
	st.groups[group.ID] = &stored
	return nil
}

func (st *state) getGroupByID(id string) (*domain.Group, error) {
	g, ok := st.groups[id]
	if !ok {
		return nil, storage.ErrGroupNotFound
	}
	out := *g
	return &out, nil
}

func (st *state) updateGroup(group *domain.Group) error {
	if _, ok := st.groups[group.ID]; !ok {
		return storage.ErrGroupNotFound
	}
	stored := *group
	st.groups[group.ID] = &stored
	return nil
}

func (st *state) createGroupMembership(membership *domain.GroupMembership) error {
	key := membershipKey(membership.GroupID, membership.UserID)
	if _, exists := st.memberships[key]; exists {
		return storage.ErrDuplicateKey
	}
	stored := *membership
	st.memberships[key] = &stored
	return nil
}

func (st *state) getGroupMembership(groupID, userID string) (*domain.GroupMembership, error) {
	m, ok := st.memberships[membershipKey(groupID, userID)]
	if !ok {
		return nil, storage.ErrMembershipNotFound
	}
	out := *m
	return &out, nil
}

// ========== Customer Repository ==========

func (st *state) createCustomer(customer *domain.Customer) error {
	stored := *customer
	st.customers[customer.ID] = &stored
	if customer.NamespaceID != nil {
		st.customerByNS[*customer.NamespaceID] = customer.ID
	}
	return nil
}

func (st *state) getCustomerByID(id string) (*domain.Customer, error) {
	c, ok := st.customers[id]
	if !ok {
		return nil, storage.ErrCustomerNotFound
	}
	out := *c
	return &out, nil
}

func (st *state) getCustomerByNamespaceID(namespaceID string) (*domain.Customer, error) {
	id, ok := st.customerByNS[namespaceID]
	if !ok {
		return nil, storage.ErrCustomerNotFound
	}
	c := st.customers[id]
	out := *c
	return &out, nil
}

func (st *state) updateCustomer(customer *domain.Customer) error {
	old, ok := st.customers[customer.ID]
	if !ok {
		return storage.ErrCustomerNotFound
	}
	if old.NamespaceID != nil {
		delete(st.customerByNS, *old.NamespaceID)
	}
	stored := *customer
	st.customers[customer.ID] = &stored
	if customer.NamespaceID != nil {
		st.customerByNS[*customer.NamespaceID] = customer.ID
	}
	return nil
}

// ========== Contact Repository ==========

func contactKey(namespaceID, email string) string {
	return namespaceID + ":" + email
}

func (st *state) createContact(contact *domain.Contact) error {
	key := contactKey(contact.NamespaceID, contact.Email)
	if _, exists := st.contactByKey[key]; exists {
		return storage.ErrDuplicateKey
	}
	stored := *contact
	st.contacts[contact.ID] = &stored
	st.contactByKey[key] = contact.ID
	return nil
}

func (st *state) updateContact(contact *domain.Contact) error {
	if _, ok := st.contacts[contact.ID]; !ok {
		return storage.ErrContactNotFound
	}
	stored := *contact
	st.contacts[contact.ID] = &stored
	return nil
}

func (st *state) getContactByEmail(namespaceID, email string) (*domain.Contact, error) {
	id, ok := st.contactByKey[contactKey(namespaceID, email)]
	if !ok {
		return nil, storage.ErrContactNotFound
	}
	c := st.contacts[id]
	out := *c
	return &out, nil
}

func (st *state) createNewsletterList(list *domain.NewsletterList) error {
	stored := *list
	st.lists[list.ID] = &stored
	return nil
}

func (st *state) getNewsletterListByID(id string) (*domain.NewsletterList, error) {
	l, ok := st.lists[id]
	if !ok {
		return nil, storage.ErrListNotFound
	}
	out := *l
	return &out, nil
}

func (st *state) createListContactRelation(relation *domain.NewsletterListContactRelation) error {
	ids := st.relations[relation.ListID]
	for _, id := range ids {
		if id == relation.ContactID {
			// 关联已存在，幂等成功
			return nil
		}
	}
	st.relations[relation.ListID] = append(ids, relation.ContactID)
	return nil
}

func (st *state) listContactsByList(listID string) ([]domain.Contact, error) {
	if _, ok := st.lists[listID]; !ok {
		return nil, storage.ErrListNotFound
	}
	ids := st.relations[listID]
	out := make([]domain.Contact, 0, len(ids))
	for _, id := range ids {
		if c, ok := st.contacts[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}
