// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns the message feed of every conversation. It validates message bodies,
// derives the conversation key, writes the message together with the
// conversation summary in one transaction, and announces the change to live
// subscribers once the transaction has committed.
//
// Reads are always newest first and every returned message carries a display
// time label for the configured locale and time zone.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// carry the conversation key and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/language"

	"github.com/agrihub-davao/chat-backend/internal/convkey"
	"github.com/agrihub-davao/chat-backend/internal/domain"
	"github.com/agrihub-davao/chat-backend/internal/feed"
	"github.com/agrihub-davao/chat-backend/internal/repo"
	"github.com/agrihub-davao/chat-backend/internal/search"
	"github.com/agrihub-davao/chat-backend/internal/utils"
)

// FeedNotifier receives a feed event after each committed write.
type FeedNotifier interface {
	Notify(ctx context.Context, ev feed.Event) error
}

// MessageService coordinates message persistence, feed reads and search.
type MessageService struct {
	DB   *gorm.DB
	Feed FeedNotifier

	// MaxBodyRunes caps message bodies; 0 disables the check.
	MaxBodyRunes int
	// Window is how many of the newest messages a live snapshot holds.
	Window int

	// Location and Locale drive the display time label.
	Location *time.Location
	Locale   language.Tag

	// IdempotencyTTL is how long a send can be replayed by key.
	IdempotencyTTL time.Duration

	Now func() time.Time
}

// NewMessageService constructs a MessageService with default limits.
// notifier may be nil, in which case no live updates are published.
func NewMessageService(db *gorm.DB, notifier FeedNotifier) *MessageService {
	return &MessageService{
		DB:             db,
		Feed:           notifier,
		MaxBodyRunes:   2000,
		Window:         200,
		Location:       time.UTC,
		Locale:         language.AmericanEnglish,
		IdempotencyTTL: 24 * time.Hour,
		Now:            time.Now,
	}
}

func (s *MessageService) tracer() trace.Tracer { return otel.Tracer("services/MessageService") }

func (s *MessageService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// normalizeBody trims and length-checks a message body.
func (s *MessageService) normalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	if s.MaxBodyRunes > 0 && utf8.RuneCountInString(body) > s.MaxBodyRunes {
		return "", ErrBodyTooLong
	}
	return body, nil
}

// Append adds one message to the feed of key without touching the
// conversation summary, then notifies subscribers. Send is the entry point
// for user messages; Append serves imports and system notices.
func (s *MessageService) Append(ctx context.Context, key, senderID, body string) (*domain.Message, error) {
	ctx, span := s.tracer().Start(ctx, "Append",
		trace.WithAttributes(attribute.String("conversation.key", key)),
	)
	defer span.End()

	if strings.TrimSpace(key) == "" || strings.TrimSpace(senderID) == "" {
		return nil, convkey.ErrEmptyParticipant
	}
	body, err := s.normalizeBody(body)
	if err != nil {
		return nil, err
	}

	m, err := repo.CreateMessage(ctx, s.DB, key, senderID, body, s.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return nil, storeErr("append message", err)
	}
	s.label(m)
	s.notify(ctx, span, m)
	return m, nil
}

// Send delivers body from senderID to peerID. The message insert and the
// summary upsert commit together or not at all; subscribers are notified
// only after the commit.
func (s *MessageService) Send(ctx context.Context, senderID, peerID, body string) (*domain.Message, error) {
	m, _, err := s.SendOnce(ctx, senderID, peerID, body, "", 0)
	return m, err
}

// SendOnce is Send guarded by idemKey. The idempotency record is written in
// the same transaction as the message, so of two concurrent attempts with
// one key exactly one commits; the other is rolled back and receives the
// committed message with replayed set. An empty idemKey behaves like Send.
func (s *MessageService) SendOnce(ctx context.Context, senderID, peerID, body, idemKey string, status int) (msg *domain.Message, replayed bool, err error) {
	ctx, span := s.tracer().Start(ctx, "Send",
		trace.WithAttributes(attribute.String("user.id", senderID)),
	)
	defer span.End()

	pair, err := convkey.Participants(senderID, peerID)
	if err != nil {
		return nil, false, err
	}
	body, err = s.normalizeBody(body)
	if err != nil {
		return nil, false, err
	}
	key := pair.Key()
	span.SetAttributes(attribute.String("conversation.key", key))

	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(ctx, tx, key, senderID, body, now)
		if err != nil {
			return err
		}
		if err := repo.UpsertSummary(ctx, tx, key, pair[0], pair[1], body, senderID, now); err != nil {
			return err
		}
		if idemKey != "" {
			if _, err := repo.CreateIdempotency(ctx, tx, senderID, key, idemKey, m.ID, status, s.IdempotencyTTL); err != nil {
				return err
			}
		}
		msg = m
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		span.AddEvent("idempotency key already committed")
		if prev, found := s.Replay(ctx, senderID, peerID, idemKey); found {
			return prev, true, nil
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return nil, false, storeErr("send message", err)
	}

	s.label(msg)
	s.notify(ctx, span, msg)
	return msg, false, nil
}

// notify publishes the committed message. A failure here does not undo the
// write; subscribers catch up on the next change.
func (s *MessageService) notify(ctx context.Context, span trace.Span, m *domain.Message) {
	if s.Feed == nil {
		return
	}
	added := *m
	if err := s.Feed.Notify(ctx, feed.Event{Key: m.ConversationKey, Added: &added}); err != nil {
		span.AddEvent("feed notify failed", trace.WithAttributes(attribute.String("error", err.Error())))
		log.Warn().Err(err).Str("conversation_key", m.ConversationKey).Msg("feed notify failed")
	}
}

// ListPage returns a page of the conversation between userID and peerID,
// newest first, with the total message count.
func (s *MessageService) ListPage(ctx context.Context, userID, peerID string, page, pageSize int) ([]domain.Message, int64, error) {
	ctx, span := s.tracer().Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	key, err := convkey.Derive(userID, peerID)
	if err != nil {
		return nil, 0, err
	}
	_, pageSize, offset := utils.Window(page, pageSize)

	total, err := repo.CountMessages(ctx, s.DB, key)
	if err != nil {
		return nil, 0, storeErr("count messages", err)
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, key, offset, pageSize)
	if err != nil {
		return nil, 0, storeErr("list messages", err)
	}
	s.labelAll(items)
	return items, total, nil
}

// Recent returns the newest Window messages of key. It is the feed loader
// for live subscriptions.
func (s *MessageService) Recent(ctx context.Context, key string) ([]domain.Message, error) {
	items, err := repo.ListRecentMessages(ctx, s.DB, key, s.Window)
	if err != nil {
		return nil, storeErr("load feed", err)
	}
	s.labelAll(items)
	return items, nil
}

// Search ranks the newest Window messages of the conversation against query.
func (s *MessageService) Search(ctx context.Context, userID, peerID, query string, k int) ([]search.Result, error) {
	ctx, span := s.tracer().Start(ctx, "Search",
		trace.WithAttributes(attribute.Int("k", k)),
	)
	defer span.End()

	key, err := convkey.Derive(userID, peerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return []search.Result{}, nil
	}
	items, err := repo.ListRecentMessages(ctx, s.DB, key, s.Window)
	if err != nil {
		return nil, storeErr("search messages", err)
	}
	docs := lo.Map(items, func(m domain.Message, _ int) search.Document {
		return search.Document{ID: m.ID, Text: m.Body}
	})
	res := search.New(docs, search.WithStopwords(search.CommonStopwords...)).TopK(query, k)
	span.SetAttributes(attribute.Int("results", len(res)))
	if res == nil {
		res = []search.Result{}
	}
	return res, nil
}

// Replay returns the message previously created by userID in the
// conversation with peerID under idempotency key idemKey, if any.
func (s *MessageService) Replay(ctx context.Context, userID, peerID, idemKey string) (*domain.Message, bool) {
	key, err := convkey.Derive(userID, peerID)
	if err != nil || idemKey == "" {
		return nil, false
	}
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, key, idemKey, s.now())
	if err != nil {
		return nil, false
	}
	m, err := repo.GetMessage(ctx, s.DB, key, rec.MessageID)
	if err != nil {
		return nil, false
	}
	s.label(m)
	return m, true
}

func (s *MessageService) label(m *domain.Message) {
	m.TimeLabel = utils.TimeLabel(m.CreatedAt, s.Location, s.Locale)
}

func (s *MessageService) labelAll(ms []domain.Message) {
	for i := range ms {
		s.label(&ms[i])
	}
}
