package domain

import "time"

// Idempotency remembers the message a send produced under a client's
// Idempotency-Key. Records are unique per (user, conversation key, client
// key), so the same client key may be reused in another conversation.
type Idempotency struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;uniqueIndex:ux_idem_owner,priority:1"`
	Scope     string    `gorm:"not null;uniqueIndex:ux_idem_owner,priority:2"` // conversation key
	Key       string    `gorm:"not null;uniqueIndex:ux_idem_owner,priority:3"`
	MessageID string    `gorm:"not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (Idempotency) TableName() string { return "idempotency" }

// Live reports whether the record still answers retries at now.
func (r Idempotency) Live(now time.Time) bool { return now.Before(r.ExpiresAt) }
