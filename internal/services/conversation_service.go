// Package services – ConversationService
//
// ConversationService owns the per-conversation summary: the single
// latest-state record that conversation lists are built from. Summaries are
// written by Upsert (and by MessageService.Send inside its transaction) and
// read per conversation or per participant.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agrihub-davao/chat-backend/internal/convkey"
	"github.com/agrihub-davao/chat-backend/internal/domain"
	"github.com/agrihub-davao/chat-backend/internal/utils"
)

// SummaryRepo defines the repository contract required by ConversationService.
type SummaryRepo interface {
	// UpsertSummary creates or updates the summary of key atomically.
	UpsertSummary(ctx context.Context, db *gorm.DB, key, participantA, participantB, body, senderID string, at time.Time) error

	// GetSummary fetches the summary of key or returns gorm.ErrRecordNotFound.
	GetSummary(ctx context.Context, db *gorm.DB, key string) (*domain.ConversationSummary, error)

	// ListSummariesForUser returns a page of the user's conversations.
	ListSummariesForUser(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.ConversationSummary, error)

	// CountSummariesForUser returns the number of conversations of the user.
	CountSummariesForUser(ctx context.Context, db *gorm.DB, userID string) (int64, error)
}

// Conversation is a summary as seen by one participant.
type Conversation struct {
	domain.ConversationSummary
	Members []string `json:"participants"`
	PeerID  string   `json:"peer_id"`
}

func newConversation(sum domain.ConversationSummary, userID string) Conversation {
	return Conversation{
		ConversationSummary: sum,
		Members:             sum.Participants(),
		PeerID:              convkey.Pair{sum.ParticipantA, sum.ParticipantB}.Peer(userID),
	}
}

// ConversationService provides conversation-level reads and the summary upsert.
type ConversationService struct {
	DB   *gorm.DB
	Repo SummaryRepo
	Now  func() time.Time
}

// NewConversationService constructs a ConversationService.
func NewConversationService(db *gorm.DB, r SummaryRepo) *ConversationService {
	return &ConversationService{DB: db, Repo: r, Now: time.Now}
}

// Key derives the conversation key for userID and peerID.
func (s *ConversationService) Key(userID, peerID string) (string, error) {
	return convkey.Derive(userID, peerID)
}

// Upsert records lastBody from lastSenderID as the newest message of the
// conversation between the pair. The first call creates the summary; later
// calls only replace the last message and updated_at.
func (s *ConversationService) Upsert(ctx context.Context, pair convkey.Pair, lastBody, lastSenderID string) error {
	ctx, span := otel.Tracer("services/ConversationService").Start(ctx, "Upsert",
		trace.WithAttributes(attribute.String("conversation.key", pair.Key())),
	)
	defer span.End()

	p, err := convkey.Participants(pair[0], pair[1])
	if err != nil {
		return err
	}
	if !p.Has(lastSenderID) {
		return ErrNotParticipant
	}

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	err = s.Repo.UpsertSummary(ctx, s.DB, p.Key(), p[0], p[1], lastBody, lastSenderID, now)
	return storeErr("upsert summary", err)
}

// Get returns the conversation between userID and peerID, or
// ErrConversationNotFound when no message has been exchanged yet.
func (s *ConversationService) Get(ctx context.Context, userID, peerID string) (*Conversation, error) {
	key, err := convkey.Derive(userID, peerID)
	if err != nil {
		return nil, err
	}
	sum, err := s.Repo.GetSummary(ctx, s.DB, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, storeErr("get summary", err)
	}
	conv := newConversation(*sum, userID)
	return &conv, nil
}

// ListPage returns a page of userID's conversations, most recently active
// first, and the total count. It applies defaults for invalid page/pageSize.
func (s *ConversationService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]Conversation, int64, error) {
	_, pageSize, offset := utils.Window(page, pageSize)

	total, err := s.Repo.CountSummariesForUser(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, storeErr("count summaries", err)
	}
	if total == 0 {
		return []Conversation{}, 0, nil
	}

	items, err := s.Repo.ListSummariesForUser(ctx, s.DB, userID, offset, pageSize)
	if err != nil {
		return nil, 0, storeErr("list summaries", err)
	}
	out := lo.Map(items, func(sum domain.ConversationSummary, _ int) Conversation {
		return newConversation(sum, userID)
	})
	return out, total, nil
}
