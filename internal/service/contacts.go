package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"drivehub/backend/internal/config"
	"drivehub/backend/internal/domain"
	"drivehub/backend/internal/storage"
)

var (
	// ErrPermissionDenied 调用者无权访问目标命名空间或列表
	ErrPermissionDenied = errors.New("permission denied")
	// ErrContactsCSVTooLarge 导入载荷超过大小上限
	ErrContactsCSVTooLarge = errors.New("contacts csv too large")
	// ErrContactsCSVInvalid 导入载荷格式错误，整体拒绝
	ErrContactsCSVInvalid = errors.New("contacts csv invalid")
	// ErrListNotFound 目标联系人列表不存在
	ErrListNotFound = errors.New("newsletter list not found")
)

// ContactImportService 封装联系人批量导入的业务操作。
type ContactImportService struct {
	store storage.Store
	cfg   *config.Config
	log   *zap.Logger
}

// NewContactImportService 创建联系人导入服务。
func NewContactImportService(store storage.Store, cfg *config.Config, log *zap.Logger) *ContactImportService {
	return &ContactImportService{
		store: store,
		cfg:   cfg,
		log:   log,
	}
}

// ImportContactsInput 定义导入联系人所需的输入。
type ImportContactsInput struct {
	Actor       *domain.User
	NamespaceID string
	ListID      *string // 可选：导入后关联到的列表
	Payload     []byte  // 原始 CSV 载荷，每行 name,email
}

// Import 批量导入联系人：解析、归一化、去重、校验，然后在单个
// 事务内逐条 upsert 并按需建立列表关联。
//
// 校验全部通过后才开始写入；任一写入失败整体回滚，不产生部分
// 导入。返回按处理顺序排列的全部联系人（更新与新建都包含）。
func (s *ContactImportService) Import(input ImportContactsInput) ([]domain.Contact, error) {
	if input.Actor == nil {
		return nil, ErrNotAuthenticated
	}

	// 授权：调用者必须是目标命名空间的成员
	isMember, err := s.store.IsNamespaceMember(input.NamespaceID, input.Actor.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNamespaceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to check namespace membership: %w", err)
	}
	if !isMember {
		return nil, ErrPermissionDenied
	}

	// 目标列表必须归属同一命名空间
	if input.ListID != nil {
		list, err := s.store.GetNewsletterListByID(*input.ListID)
		if err != nil {
			if errors.Is(err, storage.ErrListNotFound) {
				return nil, ErrListNotFound
			}
			return nil, fmt.Errorf("failed to get newsletter list: %w", err)
		}
		if list.NamespaceID != input.NamespaceID {
			return nil, ErrPermissionDenied
		}
	}

	// 大小上限在解析之前检查，限制最坏情况的内存与处理成本
	if int64(len(input.Payload)) > s.cfg.Contacts.MaxCSVBytes {
		return nil, ErrContactsCSVTooLarge
	}

	records, err := parseContactRecords(input.Payload)
	if err != nil {
		return nil, err
	}

	survivors := dedupeContacts(records)

	// 写入前整体校验，校验失败的导入不产生任何副作用
	for _, record := range survivors {
		if err := domain.ValidateEmail(record.Email); err != nil {
			return nil, err
		}
		if err := domain.ValidateContactName(record.Name); err != nil {
			return nil, err
		}
	}

	tx, err := s.store.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	contacts := make([]domain.Contact, 0, len(survivors))
	for _, record := range survivors {
		contact, err := s.upsertContact(tx, input.NamespaceID, record)
		if err != nil {
			tx.Rollback()
			return nil, err
		}

		if input.ListID != nil {
			relation := &domain.NewsletterListContactRelation{
				ListID:    *input.ListID,
				ContactID: contact.ID,
			}
			if err := tx.CreateListContactRelation(relation); err != nil {
				tx.Rollback()
				return nil, fmt.Errorf("failed to create list relation: %w", err)
			}
		}

		contacts = append(contacts, *contact)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit contact import: %w", err)
	}

	s.log.Info("contacts imported",
		zap.String("namespace_id", input.NamespaceID),
		zap.Int("count", len(contacts)),
	)

	return contacts, nil
}

// upsertContact 在事务内按归一化邮箱查找并更新或创建联系人
func (s *ContactImportService) upsertContact(tx storage.Tx, namespaceID string, record domain.ImportedContact) (*domain.Contact, error) {
	existing, err := tx.GetContactByEmail(namespaceID, record.Email)
	if err == nil {
		// 仅当新名字非空且与已有名字不同才覆盖
		if record.Name != "" && record.Name != existing.Name {
			existing.Name = record.Name
			existing.UpdatedAt = time.Now().UTC()
			if err := tx.UpdateContact(existing); err != nil {
				return nil, fmt.Errorf("failed to update contact: %w", err)
			}
		}
		return existing, nil
	}
	if !errors.Is(err, storage.ErrContactNotFound) {
		return nil, fmt.Errorf("failed to look up contact: %w", err)
	}

	now := time.Now().UTC()
	contact := &domain.Contact{
		ID:          uuid.NewString(),
		NamespaceID: namespaceID,
		Email:       record.Email,
		Name:        record.Name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.CreateContact(contact); err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	return contact, nil
}

// parseContactRecords 将 CSV 载荷解析为归一化的 (name, email) 记录。
//
// 任一行格式错误都使整个导入失败，不做部分解析。
func parseContactRecords(payload []byte) ([]domain.ImportedContact, error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	var records []domain.ImportedContact
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrContactsCSVInvalid, err)
		}

		records = append(records, domain.ImportedContact{
			Name:  strings.TrimSpace(fields[0]),
			Email: domain.NormalizeEmail(fields[1]),
		})
	}
	return records, nil
}

// dedupeContacts 按归一化邮箱做 last-write-wins 去重。
//
// 显式的有序遍历：同一邮箱后出现的记录覆盖先出现的，结果顺序
// 取该邮箱首次出现的位置，保证确定性。空邮箱记录被丢弃。
func dedupeContacts(records []domain.ImportedContact) []domain.ImportedContact {
	index := make(map[string]int, len(records))
	survivors := make([]domain.ImportedContact, 0, len(records))

	for _, record := range records {
		if record.Email == "" {
			continue
		}
		if i, ok := index[record.Email]; ok {
			survivors[i] = record
			continue
		}
		index[record.Email] = len(survivors)
		survivors = append(survivors, record)
	}
	return survivors
}
