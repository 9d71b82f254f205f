package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/storage"
)

const contactColumns = `
	id, namespace_id, email, name, birthday, phone, address, website,
	twitter, instagram, facebook, linkedin, skype, telegram, notes,
	country, country_code, pgp_key, avatar_key, created_at, updated_at`

// CreateContact 创建联系人
func (q queries) CreateContact(contact *domain.Contact) error {
	query := q.rebind(fmt.Sprintf(`
		INSERT INTO contacts (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, contactColumns))

	_, err := q.db.Exec(query,
		contact.ID, contact.NamespaceID, contact.Email, contact.Name,
		contact.Birthday, contact.Phone, contact.Address, contact.Website,
		contact.Twitter, contact.Instagram, contact.Facebook, contact.LinkedIn,
		contact.Skype, contact.Telegram, contact.Notes, contact.Country,
		contact.CountryCode, contact.PGPKey, contact.AvatarKey,
		contact.CreatedAt, contact.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

// UpdateContact 更新联系人
func (q queries) UpdateContact(contact *domain.Contact) error {
	query := q.rebind(`
		UPDATE contacts SET
			email = ?, name = ?, birthday = ?, phone = ?, address = ?,
			website = ?, twitter = ?, instagram = ?, facebook = ?, linkedin = ?,
			skype = ?, telegram = ?, notes = ?, country = ?, country_code = ?,
			pgp_key = ?, avatar_key = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := q.db.Exec(query,
		contact.Email, contact.Name, contact.Birthday, contact.Phone,
		contact.Address, contact.Website, contact.Twitter, contact.Instagram,
		contact.Facebook, contact.LinkedIn, contact.Skype, contact.Telegram,
		contact.Notes, contact.Country, contact.CountryCode, contact.PGPKey,
		contact.AvatarKey, contact.UpdatedAt, contact.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return storage.ErrContactNotFound
	}
	return nil
}

// GetContactByEmail 按归一化邮箱在命名空间内查找联系人
func (q queries) GetContactByEmail(namespaceID, email string) (*domain.Contact, error) {
	query := q.rebind(fmt.Sprintf(`
		SELECT %s FROM contacts WHERE namespace_id = ? AND email = ?
	`, contactColumns))

	contact, err := q.scanContact(q.db.QueryRow(query, namespaceID, email))
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// CreateNewsletterList 创建联系人列表
func (q queries) CreateNewsletterList(list *domain.NewsletterList) error {
	query := q.rebind(`
		INSERT INTO newsletter_lists (
			id, namespace_id, name, description, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`)

	_, err := q.db.Exec(query,
		list.ID, list.NamespaceID, list.Name, list.Description,
		list.CreatedAt, list.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create newsletter list: %w", err)
	}
	return nil
}

// GetNewsletterListByID 根据 ID 获取联系人列表
func (q queries) GetNewsletterListByID(id string) (*domain.NewsletterList, error) {
	query := q.rebind(`
		SELECT id, namespace_id, name, description, created_at, updated_at
		FROM newsletter_lists WHERE id = ?
	`)

	var list domain.NewsletterList
	err := q.db.QueryRow(query, id).Scan(
		&list.ID, &list.NamespaceID, &list.Name, &list.Description,
		&list.CreatedAt, &list.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrListNotFound
		}
		return nil, fmt.Errorf("failed to get newsletter list: %w", err)
	}
	return &list, nil
}

// CreateListContactRelation 创建列表与联系人的关联，已存在时幂等成功
func (q queries) CreateListContactRelation(relation *domain.NewsletterListContactRelation) error {
	query := q.rebind(`
		INSERT INTO newsletter_list_contact_relations (list_id, contact_id)
		VALUES (?, ?)
	`)

	_, err := q.db.Exec(query, relation.ListID, relation.ContactID)
	if err != nil {
		if isDuplicateKey(err) {
			return nil
		}
		return fmt.Errorf("failed to create list contact relation: %w", err)
	}
	return nil
}

// ListContactsByList 列出列表内的全部联系人
func (q queries) ListContactsByList(listID string) ([]domain.Contact, error) {
	query := q.rebind(fmt.Sprintf(`
		SELECT %s FROM contacts c
		JOIN newsletter_list_contact_relations r ON r.contact_id = c.id
		WHERE r.list_id = ?
		ORDER BY c.created_at
	`, qualifyContactColumns()))

	rows, err := q.db.Query(query, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []domain.Contact
	for rows.Next() {
		var contact domain.Contact
		if err := rows.Scan(
			&contact.ID, &contact.NamespaceID, &contact.Email, &contact.Name,
			&contact.Birthday, &contact.Phone, &contact.Address, &contact.Website,
			&contact.Twitter, &contact.Instagram, &contact.Facebook, &contact.LinkedIn,
			&contact.Skype, &contact.Telegram, &contact.Notes, &contact.Country,
			&contact.CountryCode, &contact.PGPKey, &contact.AvatarKey,
			&contact.CreatedAt, &contact.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	return contacts, rows.Err()
}

func (q queries) scanContact(row *sql.Row) (*domain.Contact, error) {
	var contact domain.Contact
	err := row.Scan(
		&contact.ID, &contact.NamespaceID, &contact.Email, &contact.Name,
		&contact.Birthday, &contact.Phone, &contact.Address, &contact.Website,
		&contact.Twitter, &contact.Instagram, &contact.Facebook, &contact.LinkedIn,
		&contact.Skype, &contact.Telegram, &contact.Notes, &contact.Country,
		&contact.CountryCode, &contact.PGPKey, &contact.AvatarKey,
		&contact.CreatedAt, &contact.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &contact, nil
}

// qualifyContactColumns 为 JOIN 查询生成带 c. 前缀的列名列表
func qualifyContactColumns() string {
	cols := []string{
		"id", "namespace_id", "email", "name", "birthday", "phone", "address",
		"website", "twitter", "instagram", "facebook", "linkedin", "skype",
		"telegram", "notes", "country", "country_code", "pgp_key", "avatar_key",
		"created_at", "updated_at",
	}
	for i, c := range cols {
		cols[i] = "c." + c
	}
	return strings.Join(cols, ", ")
}
