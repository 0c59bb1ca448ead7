package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrDocumentNotFound = errors.New("DOCUMENT_NOT_FOUND")

type Document struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerID   uint64    `gorm:"index" json:"ownerId"`
	Title     string    `gorm:"type:varchar(255);uniqueIndex" json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

type DocumentStore struct{ db *gorm.DB }

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) GetDocumentID(ctx context.Context, title string) (string, error) {
	var d Document
	err := s.db.WithContext(ctx).Select("id").Where("title = ?", title).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrDocumentNotFound
	}
	if err != nil {
		return "", err
	}
	return d.ID, nil
}

// CreateDocument 新建文档并返回生成的 ID。
func (s *DocumentStore) CreateDocument(ctx context.Context, ownerID uint64, title string) (string, error) {
	d := Document{ID: uuid.NewString(), OwnerID: ownerID, Title: title}
	if err := s.db.WithContext(ctx).Create(&d).Error; err != nil {
		return "", err
	}
	return d.ID, nil
}

// DocumentExists 供快照恢复时区分“新文档”和“不存在的文档”。
func (s *DocumentStore) DocumentExists(ctx context.Context, docID string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Document{}).Where("id = ?", docID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
