// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model: an append-only feed per conversation key, always read newest first.
//
// Ordering is (created_at DESC, id DESC) everywhere so that two messages
// sharing a timestamp still come back in a stable order.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrihub-davao/chat-backend/internal/domain"
)

const feedOrder = "created_at DESC, id DESC"

// CreateMessage inserts a new message row. The id is generated before the
// insert so the stored row always carries it.
func CreateMessage(ctx context.Context, db *gorm.DB, key, senderID, body string, at time.Time) (*domain.Message, error) {
	m := &domain.Message{
		ID:              uuid.NewString(),
		ConversationKey: key,
		Body:            body,
		SenderID:        senderID,
		CreatedAt:       at.UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListRecentMessages returns at most limit messages of a conversation, newest
// first. A non-positive limit returns the whole feed.
func ListRecentMessages(ctx context.Context, db *gorm.DB, key string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).Where("conversation_key = ?", key).Order(feedOrder)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListMessagesPage returns a paginated slice ordered newest first.
func ListMessagesPage(ctx context.Context, db *gorm.DB, key string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("conversation_key = ?", key).
		Order(feedOrder).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, key string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages WHERE conversation_key = ?", key).Scan(&total).Error
	return total, err
}

// GetMessage fetches a message by ID within a conversation.
func GetMessage(ctx context.Context, db *gorm.DB, key, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ? AND conversation_key = ?", id, key).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
