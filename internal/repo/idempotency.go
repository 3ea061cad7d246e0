package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agrihub-davao/chat-backend/internal/domain"
)

// ErrDuplicate reports that a live record already holds the
// (user, scope, key) slot.
var ErrDuplicate = errors.New("duplicate idempotency key")

// GetIdempotency returns the live record for (userID, scope, key) or
// ErrNotFound. A blank scope never matches.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(scope) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where(map[string]any{"user_id": userID, "scope": scope, "key": key}).
		Where("expires_at > ?", now).
		Take(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency stores messageID as the result of key. An expired
// record in the same slot is overwritten in place, so keys are reusable
// before the sweeper runs; a live one yields ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, messageID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		UserID:    userID,
		Scope:     scope,
		Key:       key,
		MessageID: messageID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "scope"}, {Name: "key"}},
			DoUpdates: clause.Assignments(map[string]any{
				"id":         rec.ID,
				"message_id": messageID,
				"status":     status,
				"created_at": rec.CreatedAt,
				"expires_at": rec.ExpiresAt,
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "idempotency.expires_at <= ?", Vars: []any{now}},
			}},
		}).
		Create(rec)
	switch {
	case res.Error != nil:
		return nil, res.Error
	case res.RowsAffected == 0:
		return nil, ErrDuplicate
	}
	return rec, nil
}

// DeleteExpiredIdempotency removes records expired at now and reports how
// many went.
func DeleteExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
