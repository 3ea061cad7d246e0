// Package domain defines the persistence models for two-party conversations:
// the append-only message feed and the denormalised per-conversation summary.
// These types are mapped with GORM and form the core data layer of the
// messaging backend.
package domain

import (
	"time"
)

// Message is one append-only entry of a conversation feed. Messages are never
// updated or deleted once written.
//
// Fields:
//   - ID: UUID primary key (char(36)), assigned before insert.
//   - ConversationKey: canonical key of the owning conversation (indexed with CreatedAt).
//   - Body: trimmed, non-empty message text.
//   - SenderID: participant identifier of the author.
//   - CreatedAt: server timestamp; the feed is ordered by it descending.
//   - TimeLabel: display time computed on read; never persisted.
type Message struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	ConversationKey string    `json:"conversation_key" gorm:"type:varchar(320);not null;index:idx_conv_msgs,priority:1"`
	Body            string    `json:"body"             gorm:"type:text;not null"`
	SenderID        string    `json:"sender_id"        gorm:"type:varchar(160);not null"`
	CreatedAt       time.Time `json:"created_at"       gorm:"not null;index:idx_conv_msgs,priority:2"`
	TimeLabel       string    `json:"time_label,omitempty" gorm:"-"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// LastMessage is the preview of the most recent message of a conversation.
type LastMessage struct {
	Body     string `json:"body"      gorm:"type:text;not null;default:''"`
	SenderID string `json:"sender_id" gorm:"type:varchar(160);not null;default:''"`
}

// ConversationSummary is the single latest-state record of a conversation.
// It is created by the first message and overwritten by every later one.
//
// Fields:
//   - Key: conversation key (primary key; at most one row per conversation).
//   - LastMessage: body and sender of the newest message.
//   - ParticipantA / ParticipantB: the two ids in ascending order; set once.
//   - CreatedAt: set on creation only.
//   - UpdatedAt: time of the newest message (indexed for list views).
type ConversationSummary struct {
	Key          string      `json:"key"          gorm:"type:varchar(320);primaryKey"`
	LastMessage  LastMessage `json:"last_message" gorm:"embedded;embeddedPrefix:last_"`
	ParticipantA string      `json:"-"            gorm:"type:varchar(160);not null;index:idx_conv_participant_a"`
	ParticipantB string      `json:"-"            gorm:"type:varchar(160);not null;index:idx_conv_participant_b"`
	CreatedAt    time.Time   `json:"created_at"   gorm:"not null"`
	UpdatedAt    time.Time   `json:"updated_at"   gorm:"not null;index"`
}

// TableName returns the database table name for ConversationSummary.
func (ConversationSummary) TableName() string { return "conversations" }

// Participants returns both participant ids in ascending order.
func (s ConversationSummary) Participants() []string {
	return []string{s.ParticipantA, s.ParticipantB}
}
