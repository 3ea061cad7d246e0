// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ConversationSummary model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions.
//
// Error semantics:
//   - When a summary is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated.
//
// Functions:
//
//   - UpsertSummary(ctx, db, key, a, b, body, senderID, at) -> error
//     Creates the row on the first message, otherwise overwrites the
//     last-message fields and updated_at. One statement, so concurrent
//     first messages cannot produce two rows or lose an update.
//
//   - GetSummary(ctx, db, key) -> *domain.ConversationSummary, error
//
//   - ListSummariesForUser(ctx, db, userID, offset, limit) -> []domain.ConversationSummary, error
//     Conversations the user takes part in, most recently active first.
//
//   - CountSummariesForUser(ctx, db, userID) -> (int64, error)
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agrihub-davao/chat-backend/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// UpsertSummary writes the latest state of a conversation with a single
// INSERT ... ON CONFLICT(key) DO UPDATE. created_at and participants are only
// written by the insert branch.
func UpsertSummary(ctx context.Context, db *gorm.DB, key, participantA, participantB, body, senderID string, at time.Time) error {
	at = at.UTC()
	row := &domain.ConversationSummary{
		Key:          key,
		LastMessage:  domain.LastMessage{Body: body, SenderID: senderID},
		ParticipantA: participantA,
		ParticipantB: participantB,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "key"}},
			DoUpdates: clause.Assignments(map[string]any{
				"last_body":      body,
				"last_sender_id": senderID,
				"updated_at":     at,
			}),
		}).
		Create(row).Error
}

// GetSummary fetches the summary for key or returns ErrNotFound.
func GetSummary(ctx context.Context, db *gorm.DB, key string) (*domain.ConversationSummary, error) {
	var s domain.ConversationSummary
	if err := db.WithContext(ctx).Where("key = ?", key).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func summariesOf(ctx context.Context, db *gorm.DB, userID string) *gorm.DB {
	return db.WithContext(ctx).
		Model(&domain.ConversationSummary{}).
		Where("participant_a = ? OR participant_b = ?", userID, userID)
}

// ListSummariesForUser returns a page of the user's conversations ordered by
// updated_at descending.
func ListSummariesForUser(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.ConversationSummary, error) {
	var out []domain.ConversationSummary
	err := summariesOf(ctx, db, userID).
		Order("updated_at DESC, key ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountSummariesForUser returns how many conversations the user takes part in.
func CountSummariesForUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := summariesOf(ctx, db, userID).Count(&n).Error
	return n, err
}

// SummaryStore exposes the summary functions as methods so services can
// depend on an interface.
type SummaryStore struct{}

func (SummaryStore) UpsertSummary(ctx context.Context, db *gorm.DB, key, participantA, participantB, body, senderID string, at time.Time) error {
	return UpsertSummary(ctx, db, key, participantA, participantB, body, senderID, at)
}

func (SummaryStore) GetSummary(ctx context.Context, db *gorm.DB, key string) (*domain.ConversationSummary, error) {
	return GetSummary(ctx, db, key)
}

func (SummaryStore) ListSummariesForUser(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.ConversationSummary, error) {
	return ListSummariesForUser(ctx, db, userID, offset, limit)
}

func (SummaryStore) CountSummariesForUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return CountSummariesForUser(ctx, db, userID)
}
