package memory

import "drivehub/backend/internal/domain"

// Store 级方法：短临界区内直接作用于当前状态（自动提交语义）。
// memTx 级方法：作用于事务快照，无需加锁（Begin 已持有存储锁）。

func (s *Store) CreateNamespace(ns *domain.Namespace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createNamespace(ns)
}

func (s *Store) GetNamespaceByID(id string) (*domain.Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getNamespaceByID(id)
}

func (s *Store) GetNamespaceByPath(path string) (*domain.Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getNamespaceByPath(path)
}

func (s *Store) NamespaceExists(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.namespaceExists(path)
}

func (s *Store) DeleteNamespace(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.deleteNamespace(id)
}

func (s *Store) IsNamespaceMember(namespaceID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.isNamespaceMember(namespaceID, userID)
}

func (s *Store) CreatePendingUser(pending *domain.PendingUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createPendingUser(pending)
}

func (s *Store) GetPendingUserByID(id string) (*domain.PendingUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getPendingUserByID(id)
}

func (s *Store) UpdatePendingUser(pending *domain.PendingUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.updatePendingUser(pending)
}

func (s *Store) DeletePendingUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.deletePendingUser(id)
}

func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createUser(user)
}

func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getUserByID(id)
}

func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getUserByEmail(email)
}

func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getUserByUsername(username)
}

func (s *Store) CountUsers() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.countUsers()
}

func (s *Store) CreateSession(session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createSession(session)
}

func (s *Store) GetSessionByID(id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getSessionByID(id)
}

func (s *Store) ListSessionsByUserID(userID string) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.listSessionsByUserID(userID)
}

func (s *Store) CreateGroup(group *domain.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createGroup(group)
}

func (s *Store) GetGroupByID(id string) (*domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getGroupByID(id)
}

func (s *Store) UpdateGroup(group *domain.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.updateGroup(group)
}

func (s *Store) CreateGroupMembership(membership *domain.GroupMembership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createGroupMembership(membership)
}

func (s *Store) GetGroupMembership(groupID, userID string) (*domain.GroupMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getGroupMembership(groupID, userID)
}

func (s *Store) CreateCustomer(customer *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createCustomer(customer)
}

func (s *Store) GetCustomerByID(id string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getCustomerByID(id)
}

func (s *Store) GetCustomerByNamespaceID(namespaceID string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getCustomerByNamespaceID(namespaceID)
}

func (s *Store) UpdateCustomer(customer *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.updateCustomer(customer)
}

func (s *Store) CreateContact(contact *domain.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createContact(contact)
}

func (s *Store) UpdateContact(contact *domain.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.updateContact(contact)
}

func (s *Store) GetContactByEmail(namespaceID, email string) (*domain.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getContactByEmail(namespaceID, email)
}

func (s *Store) CreateNewsletterList(list *domain.NewsletterList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createNewsletterList(list)
}

func (s *Store) GetNewsletterListByID(id string) (*domain.NewsletterList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getNewsletterListByID(id)
}

func (s *Store) CreateListContactRelation(relation *domain.NewsletterListContactRelation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createListContactRelation(relation)
}

func (s *Store) ListContactsByList(listID string) ([]domain.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.listContactsByList(listID)
}

// ---------- 事务内操作 ----------

func (tx *memTx) CreateNamespace(ns *domain.Namespace) error {
	return tx.state.createNamespace(ns)
}

func (tx *memTx) GetNamespaceByID(id string) (*domain.Namespace, error) {
	return tx.state.getNamespaceByID(id)
}

func (tx *memTx) GetNamespaceByPath(path string) (*domain.Namespace, error) {
	return tx.state.getNamespaceByPath(path)
}

func (tx *memTx) NamespaceExists(path string) (bool, error) {
	return tx.state.namespaceExists(path)
}

func (tx *memTx) DeleteNamespace(id string) error {
	return tx.state.deleteNamespace(id)
}

func (tx *memTx) IsNamespaceMember(namespaceID, userID string) (bool, error) {
	return tx.state.isNamespaceMember(namespaceID, userID)
}

func (tx *memTx) CreatePendingUser(pending *domain.PendingUser) error {
	return tx.state.createPendingUser(pending)
}

func (tx *memTx) GetPendingUserByID(id string) (*domain.PendingUser, error) {
	return tx.state.getPendingUserByID(id)
}

func (tx *memTx) UpdatePendingUser(pending *domain.PendingUser) error {
	return tx.state.updatePendingUser(pending)
}

func (tx *memTx) DeletePendingUser(id string) error {
	return tx.state.deletePendingUser(id)
}

func (tx *memTx) CreateUser(user *domain.User) error {
	return tx.state.createUser(user)
}

func (tx *memTx) GetUserByID(id string) (*domain.User, error) {
	return tx.state.getUserByID(id)
}

func (tx *memTx) GetUserByEmail(email string) (*domain.User, error) {
	return tx.state.getUserByEmail(email)
}

func (tx *memTx) GetUserByUsername(username string) (*domain.User, error) {
	return tx.state.getUserByUsername(username)
}

func (tx *memTx) CountUsers() (int64, error) {
	return tx.state.countUsers()
}

func (tx *memTx) CreateSession(session *domain.Session) error {
	return tx.state.createSession(session)
}

func (tx *memTx) GetSessionByID(id string) (*domain.Session, error) {
	return tx.state.getSessionByID(id)
}

func (tx *memTx) ListSessionsByUserID(userID string) ([]domain.Session, error) {
	return tx.state.listSessionsByUserID(userID)
}

func (tx *memTx) CreateGroup(group *domain.Group) error {
	return tx.state.createGroup(group)
}

func (tx *memTx) GetGroupByID(id string) (*domain.Group, error) {
	return tx.state.getGroupByID(id)
}

func (tx *memTx) UpdateGroup(group *domain.Group) error {
	return tx.state.updateGroup(group)
}

func (tx *memTx) CreateGroupMembership(membership *domain.GroupMembership) error {
	return tx.state.createGroupMembership(membership)
}

func (tx *memTx) GetGroupMembership(groupID, userID string) (*domain.GroupMembership, error) {
	return tx.state.getGroupMembership(groupID, userID)
}

func (tx *memTx) CreateCustomer(customer *domain.Customer) error {
	return tx.state.createCustomer(customer)
}

func (tx *memTx) GetCustomerByID(id string) (*domain.Customer, error) {
	return tx.state.getCustomerByID(id)
}

func (tx *memTx) GetCustomerByNamespaceID(namespaceID string) (*domain.Customer, error) {
	return tx.state.getCustomerByNamespaceID(namespaceID)
}

func (tx *memTx) UpdateCustomer(customer *domain.Customer) error {
	return tx.state.updateCustomer(customer)
}

func (tx *memTx) CreateContact(contact *domain.Contact) error {
	return tx.state.createContact(contact)
}

func (tx *memTx) UpdateContact(contact *domain.Contact) error {
	return tx.state.updateContact(contact)
}

func (tx *memTx) GetContactByEmail(namespaceID, email string) (*domain.Contact, error) {
	return tx.state.getContactByEmail(namespaceID, email)
}

func (tx *memTx) CreateNewsletterList(list *domain.NewsletterList) error {
	return tx.state.createNewsletterList(list)
}

func (tx *memTx) GetNewsletterListByID(id string) (*domain.NewsletterList, error) {
	return tx.state.getNewsletterListByID(id)
}

func (tx *memTx) CreateListContactRelation(relation *domain.NewsletterListContactRelation) error {
	return tx.state.createListContactRelation(relation)
}

func (tx *memTx) ListContactsByList(listID string) ([]domain.Contact, error) {
	return tx.state.listContactsByList(listID)
}
